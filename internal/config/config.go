package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application. It is resolved
// once per cold start and read-only afterwards.
type Config struct {
	Environment string
	Port        string
	Teams       TeamsConfig
	HTTP        HTTPConfig
}

// TeamsConfig holds the Microsoft identity and Graph settings. The
// client secret is never logged.
type TeamsConfig struct {
	TenantID              string
	ClientID              string
	ClientSecret          string
	RefreshTokenParamName string
	GraphBaseURL          string
	LoginBaseURL          string
}

// HTTPConfig holds outbound HTTP settings.
type HTTPConfig struct {
	Timeout time.Duration
}

// Load loads configuration from environment variables and an optional
// .env file.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("PORT", "8081")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("REFRESH_TOKEN_PARAM_NAME", "/teams/refresh_token")
	viper.SetDefault("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0")
	viper.SetDefault("LOGIN_BASE_URL", "https://login.microsoftonline.com")
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 30)

	config := &Config{
		Environment: viper.GetString("ENVIRONMENT"),
		Port:        viper.GetString("PORT"),
		Teams: TeamsConfig{
			TenantID:              viper.GetString("TENANT_ID"),
			ClientID:              viper.GetString("CLIENT_ID"),
			ClientSecret:          viper.GetString("CLIENT_SECRET"),
			RefreshTokenParamName: viper.GetString("REFRESH_TOKEN_PARAM_NAME"),
			GraphBaseURL:          viper.GetString("GRAPH_BASE_URL"),
			LoginBaseURL:          viper.GetString("LOGIN_BASE_URL"),
		},
		HTTP: HTTPConfig{
			Timeout: time.Duration(viper.GetInt("HTTP_TIMEOUT_SECONDS")) * time.Second,
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks the credentials needed to obtain an access token are
// present before any invocation runs.
func (c *Config) validate() error {
	switch {
	case c.Teams.TenantID == "":
		return fmt.Errorf("TENANT_ID is required")
	case c.Teams.ClientID == "":
		return fmt.Errorf("CLIENT_ID is required")
	case c.Teams.ClientSecret == "":
		return fmt.Errorf("CLIENT_SECRET is required")
	}
	return nil
}

// GetEnv gets an environment variable with a fallback value
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvAsInt gets an environment variable as integer with a fallback value
func GetEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}
