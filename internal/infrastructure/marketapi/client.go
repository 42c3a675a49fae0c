package marketapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"bibomarket/pkg/errors"
	"bibomarket/pkg/logger"
	"bibomarket/pkg/metrics"
)

const (
	msgSessionExpired = "Your session has expired. Please sign in again."
	msgForbidden      = "You are not allowed to perform this action"
)

// TokenSource hands out the bearer token of the current session. It
// returns an AUTH_REQUIRED AppError when nobody is signed in and an
// UNAUTHORIZED one when the token is known to be expired.
type TokenSource interface {
	Token() (string, error)
}

// Client performs authenticated calls against the marketplace REST API.
// Each call is attempted once; there is no retry or backoff.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource

	mu             sync.RWMutex
	onUnauthorized func()
}

func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

// OnUnauthorized registers the hook run whenever the backend rejects the
// token (401) or the token is found expired before a call. It is the one
// place where an auth failure turns into a logout.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

type request struct {
	endpoint    string
	method      string
	path        string
	body        io.Reader
	contentType string
}

func jsonRequest(endpoint, method, path string, payload interface{}) (request, error) {
	req := request{endpoint: endpoint, method: method, path: path}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return req, errors.Internal("Failed to encode request", err)
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	return req, nil
}

// do sends req and decodes a successful body into out. out may be nil, in
// which case the body of a 2xx response is not looked at.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	token, err := c.tokens.Token()
	if err != nil {
		if errors.Is(err, errors.CodeUnauthorized) {
			c.unauthorized()
		}
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return errors.Internal("Failed to create request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordBackendRequest(req.endpoint, "network_error", time.Since(start).Seconds())
		logger.Warn("%s Error: request failed: %v", req.endpoint, err)
		return errors.Network(err)
	}
	defer resp.Body.Close()
	metrics.RecordBackendRequest(req.endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Network(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appErr := statusError(resp.StatusCode, serverMessage(body))
		logger.Warn("%s Error: backend returned %d: %s", req.endpoint, resp.StatusCode, appErr.Message)
		if resp.StatusCode == http.StatusUnauthorized {
			c.unauthorized()
		}
		return appErr
	}

	if out == nil {
		return nil
	}
	if err := decodeData(body, out); err != nil {
		logger.Warn("%s Error: failed to decode response: %v", req.endpoint, err)
		return errors.MalformedResponse(err)
	}
	return nil
}

func statusError(status int, message string) *errors.AppError {
	switch status {
	case http.StatusUnauthorized:
		if message == "" {
			message = msgSessionExpired
		}
		return errors.Unauthorized(message, nil)
	case http.StatusForbidden:
		if message == "" {
			message = msgForbidden
		}
		return errors.Forbidden(message, nil)
	case http.StatusNotFound:
		e := errors.Server(status, message)
		e.Code = errors.CodeNotFound
		return e
	default:
		return errors.Server(status, message)
	}
}

// serverMessage pulls the "message" field every backend error carries.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// decodeData accepts both bare payloads and payloads wrapped in
// {"data": ...}.
func decodeData(body []byte, out interface{}) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}

	if body[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err == nil {
			data := bytes.TrimSpace(envelope.Data)
			if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
				return json.Unmarshal(data, out)
			}
		}
	}
	return json.Unmarshal(body, out)
}
