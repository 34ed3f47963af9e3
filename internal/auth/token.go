package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"teams-notify-api/internal/apperrors"
)

// tokenScope lists the Graph permissions the sender needs.
const tokenScope = "Channel.ReadBasic.All ChannelMessage.Send Chat.ReadBasic ChatMessage.Send offline_access User.ReadBasic.All"

// expirySkew keeps a safety margin before a cached token's expiry.
const expirySkew = 2 * time.Minute

// TokenProvider exchanges the stored refresh token for access tokens and
// persists rotated refresh tokens. One provider exists per process; the
// HTTP client and credentials are fixed at cold start.
type TokenProvider struct {
	tenantID     string
	clientID     string
	clientSecret string
	paramName    string
	loginBaseURL string

	store ParameterStore
	http  *http.Client
	log   *logrus.Logger

	mu          sync.Mutex
	cachedToken string
}

// NewTokenProvider builds a provider. An empty loginBaseURL selects the
// Microsoft identity platform endpoint; a zero timeout selects 30s.
func NewTokenProvider(tenantID, clientID, clientSecret, paramName, loginBaseURL string, timeout time.Duration, store ParameterStore, log *logrus.Logger) *TokenProvider {
	if loginBaseURL == "" {
		loginBaseURL = "https://login.microsoftonline.com"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TokenProvider{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		paramName:    paramName,
		loginBaseURL: loginBaseURL,
		store:        store,
		http:         &http.Client{Timeout: timeout},
		log:          log,
	}
}

// AccessToken returns a valid access token, refreshing through the stored
// refresh token when no usable cached token exists. A rotated refresh
// token is persisted back to the parameter store.
func (p *TokenProvider) AccessToken(ctx context.Context, requestID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedToken != "" && !tokenExpired(p.cachedToken) {
		return p.cachedToken, nil
	}

	if err := p.rotate(ctx, requestID); err != nil {
		return "", err
	}
	return p.cachedToken, nil
}

// Rotate performs one refresh-token exchange and persists the rotated
// refresh token when the identity platform issued a new one.
func (p *TokenProvider) Rotate(ctx context.Context, requestID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotate(ctx, requestID)
}

func (p *TokenProvider) rotate(ctx context.Context, requestID string) error {
	refreshToken, err := p.store.GetParameter(ctx, p.paramName)
	if err != nil {
		return err
	}

	accessToken, newRefreshToken, err := p.exchange(ctx, refreshToken, requestID)
	if err != nil {
		return err
	}
	p.cachedToken = accessToken

	if newRefreshToken != "" && newRefreshToken != refreshToken {
		if err := p.store.PutParameter(ctx, p.paramName, newRefreshToken); err != nil {
			return err
		}
		p.log.WithField("request_id", requestID).Info("TOKEN_UPDATED")
	}
	return nil
}

// exchange posts the refresh grant to the token endpoint. Credentials and
// tokens never appear in logs.
func (p *TokenProvider) exchange(ctx context.Context, refreshToken, requestID string) (string, string, error) {
	p.log.WithFields(logrus.Fields{
		"endpoint":   "/oauth2/v2.0/token",
		"request_id": requestID,
	}).Info("TOKEN_API_CALL")

	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("scope", tokenScope)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	form.Set("client_secret", p.clientSecret)

	tokenURL := p.loginBaseURL + "/" + p.tenantID + "/oauth2/v2.0/token"
	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", apperrors.Internal("Failed to build token request: %s", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		p.log.WithField("request_id", requestID).Error("TOKEN_API_EXCEPTION")
		return "", "", apperrors.Upstream("Token refresh process failed: %s", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == 401 {
		p.log.WithField("request_id", requestID).Error("TOKEN_API_401")
		return "", "", apperrors.Auth("Invalid refresh token")
	}
	if resp.StatusCode != 200 {
		p.log.WithFields(logrus.Fields{
			"status":     resp.StatusCode,
			"request_id": requestID,
		}).Error("TOKEN_API_ERROR")
		return "", "", apperrors.Upstream("Token refresh failed %d: %s", resp.StatusCode, string(data))
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(data, &tokenResp); err != nil {
		p.log.WithField("request_id", requestID).Error("TOKEN_API_PARSE_ERROR")
		return "", "", apperrors.Internal("Failed to parse token response: %s", err)
	}

	p.log.WithFields(logrus.Fields{
		"status":     resp.StatusCode,
		"request_id": requestID,
	}).Info("TOKEN_API_SUCCESS")

	return tokenResp.AccessToken, tokenResp.RefreshToken, nil
}

// tokenExpired inspects the access token's exp claim without verifying
// the signature; verification belongs to the resource server. Tokens
// that cannot be parsed are treated as expired.
func tokenExpired(accessToken string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return time.Now().Add(expirySkew).After(exp.Time)
}
