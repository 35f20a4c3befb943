// Package transport talks to the assistant backend: it creates sessions and
// opens server-sent event streams, normalizing inbound payloads into Events.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/funda-chat/internal/config"
)

const maxErrorBody = 4 << 10

// Client wraps the backend's session, chat and stream endpoints.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The client must not set
// a global Timeout, since that would cut long streams short.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client for the configured backend.
func New(cfg config.BackendConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionRequest struct {
	UserID string `json:"user_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Answer *string `json:"answer"`
}

// CreateSession asks the backend for a new session bound to userID.
// Every failure is a *SessionCreationError.
func (c *Client) CreateSession(ctx context.Context, userID string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.postJSON(ctx, "/session", sessionRequest{UserID: userID})
	if err != nil {
		return "", &SessionCreationError{Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", &SessionCreationError{StatusCode: resp.StatusCode, Err: statusError(resp)}
	}

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &SessionCreationError{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "decode session response")}
	}
	if out.SessionID == "" {
		return "", &SessionCreationError{StatusCode: resp.StatusCode, Err: errors.New("response missing session_id")}
	}

	log.Debug().Str("component", "transport").Str("user_id", userID).Str("session_id", out.SessionID).Msg("session created")
	return out.SessionID, nil
}

// Chat sends one message and waits for the complete answer without streaming.
func (c *Client) Chat(ctx context.Context, sessionID, userID, message string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.postJSON(ctx, "/chat", chatRequest{SessionID: sessionID, UserID: userID, Message: message})
	if err != nil {
		return "", &StreamTransportError{Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", &StreamTransportError{StatusCode: resp.StatusCode, Err: statusError(resp)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &StreamTransportError{Err: errors.Wrap(err, "read chat response")}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &StreamParseError{Payload: string(raw), Err: err}
	}
	if out.Answer == nil {
		return "", &StreamParseError{Payload: string(raw), Err: errors.New("response missing answer")}
	}
	return *out.Answer, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "build request %s", path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "post %s", path)
	}
	return resp, nil
}

func (c *Client) streamURL(r StreamRequest) string {
	q := url.Values{}
	q.Set("session_id", r.SessionID)
	q.Set("user_id", r.UserID)
	q.Set("q", r.Message)
	return c.baseURL + "/chat/stream?" + q.Encode()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

// statusError turns a non-2xx response into an error carrying the backend's
// message when it sent one.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if msg := firstNonEmpty(payload.Error, payload.Detail); msg != "" {
			return errors.Errorf("backend returned %s: %s", resp.Status, msg)
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return errors.Errorf("backend returned %s: %s", resp.Status, truncate(text, 200))
	}
	return errors.Errorf("backend returned %s", resp.Status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
