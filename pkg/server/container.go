package server

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"teams-notify-api/internal/auth"
	"teams-notify-api/internal/config"
	"teams-notify-api/internal/graph"
	"teams-notify-api/internal/handlers"
	"teams-notify-api/internal/services"
)

// Container holds all application dependencies. It is built once at cold
// start; everything inside is read-only afterwards and shared by every
// invocation, including the outbound connection pools.
type Container struct {
	Config    *config.Config
	Log       *logrus.Logger
	Graph     *graph.Client
	Tokens    *auth.TokenProvider
	Messenger services.MessengerService
	Handler   *handlers.NotifyHandler
}

// NewContainer creates a new dependency injection container.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	store, err := auth.NewSSMParameterStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create parameter store: %w", err)
	}
	return NewContainerWithStore(cfg, store), nil
}

// NewContainerWithStore builds a container around an explicit parameter
// store. Tests use this to avoid touching AWS.
func NewContainerWithStore(cfg *config.Config, store auth.ParameterStore) *Container {
	log := newLogger(cfg)

	graphClient := graph.NewClient(cfg.Teams.GraphBaseURL, cfg.HTTP.Timeout, log)
	tokens := auth.NewTokenProvider(
		cfg.Teams.TenantID,
		cfg.Teams.ClientID,
		cfg.Teams.ClientSecret,
		cfg.Teams.RefreshTokenParamName,
		cfg.Teams.LoginBaseURL,
		cfg.HTTP.Timeout,
		store,
		log,
	)
	messenger := services.NewMessengerService(graphClient, tokens, log)

	return &Container{
		Config:    cfg,
		Log:       log,
		Graph:     graphClient,
		Tokens:    tokens,
		Messenger: messenger,
		Handler:   handlers.NewNotifyHandler(messenger, log),
	}
}

// newLogger builds the process-wide logger. Lambda log streams get JSON
// lines; local development keeps the text formatter.
func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if config.IsServerlessMode() || cfg.Environment == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
