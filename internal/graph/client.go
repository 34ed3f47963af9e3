package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"teams-notify-api/internal/apperrors"
)

// DefaultTimeout bounds every outbound call, connect and read included.
const DefaultTimeout = 30 * time.Second

// Client issues requests against the Microsoft Graph API. The underlying
// http.Client and its connection pool are created once at cold start and
// shared across invocations; request logic never closes them.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

// NewClient builds a Graph client. An empty baseURL selects the
// production endpoint; a zero timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, log *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Call issues one request to the given Graph endpoint and returns the
// decoded response body. No retries happen at this layer. Transport
// failures surface as 502; received statuses map onto the error taxonomy:
// 200/201 succeed, 401 and 404 keep their status, everything else is 502.
func (c *Client) Call(ctx context.Context, method, endpoint, accessToken string, body interface{}, requestID string) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := encodeBody(body)
		if err != nil {
			return nil, apperrors.Internal("Failed to encode request body: %s", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, apperrors.Internal("Failed to build request: %s", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	// The endpoint is logged for tracing; the bearer token never is.
	c.log.WithFields(logrus.Fields{
		"method":     method,
		"endpoint":   endpoint,
		"request_id": requestID,
	}).Info("GRAPH_API_CALL")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"error":      err.Error(),
			"request_id": requestID,
		}).Error("GRAPH_API_EXCEPTION")
		return nil, apperrors.Upstream("External API request failed: %s", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	decoded, externalMessage := decodeResponse(data, readErr)

	switch {
	case resp.StatusCode == 401:
		return nil, apperrors.External(401, "Unauthorized access", resp.StatusCode, externalMessage)
	case resp.StatusCode == 404:
		return nil, apperrors.External(404, "Resource not found", resp.StatusCode, externalMessage)
	case resp.StatusCode != 200 && resp.StatusCode != 201:
		return nil, apperrors.External(502, "External API error", resp.StatusCode, externalMessage)
	}

	c.log.WithFields(logrus.Fields{
		"status":     resp.StatusCode,
		"request_id": requestID,
	}).Info("GRAPH_API_SUCCESS")

	return decoded, nil
}

// encodeBody marshals without escaping non-ASCII characters so message
// text crosses the wire literally.
func encodeBody(body interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeResponse extracts the response object and the remote error
// message. Decoding failure never raises; it only degrades the
// diagnostic detail to a sentinel message.
func decodeResponse(data []byte, readErr error) (map[string]interface{}, string) {
	if readErr != nil || len(data) == 0 {
		return map[string]interface{}{}, "Unable to parse response"
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return map[string]interface{}{}, "Unable to parse response"
	}

	externalMessage := "Unknown error"
	if errObj, ok := decoded["error"].(map[string]interface{}); ok {
		if msg, ok := errObj["message"].(string); ok {
			externalMessage = msg
		}
	}
	return decoded, externalMessage
}

// stringField safely extracts a string value from a decoded object.
func stringField(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}

// listField extracts the Graph collection wrapper's "value" array.
func listField(obj map[string]interface{}) []interface{} {
	list, _ := obj["value"].([]interface{})
	return list
}
