// Package sensorpush talks to the SensorPush cloud API.
// It implements ports.SessionManager and ports.SampleFetcher.
package sensorpush

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/budwatch/internal/domain"
)

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 4 << 10

// Client is the SensorPush API client
type Client struct {
	baseURL     string
	credentials domain.Credentials
	limit       int
	httpClient  *http.Client
	now         func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithTimeout bounds every request (default 10s)
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLimit sets the per-call sample limit (default 1)
func WithLimit(n int) Option {
	return func(c *Client) { c.limit = n }
}

// WithTLSConfig sets the TLS configuration used to reach the API
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		c.httpClient.Transport = transport
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new API client.
func New(baseURL string, credentials domain.Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		limit:       1,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type authorizeRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authorizeResponse struct {
	Authorization string `json:"authorization"`
}

type samplesRequest struct {
	Limit int `json:"limit"`
}

// Authorize exchanges the account credentials for a session.
// It makes exactly one attempt; retry policy belongs to the caller.
func (c *Client) Authorize(ctx context.Context) (domain.Session, error) {
	body := authorizeRequest{Email: c.credentials.Email, Password: c.credentials.Password}

	resp, err := c.post(ctx, "/oauth/authorize", "", body)
	if err != nil {
		return domain.Session{}, &domain.AuthError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return domain.Session{}, &domain.AuthError{StatusCode: resp.StatusCode, Err: errors.New(readMessage(resp.Body))}
	}

	var out authorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Session{}, &domain.AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Authorization == "" {
		return domain.Session{}, &domain.AuthError{StatusCode: resp.StatusCode, Err: errors.New("response has no authorization token")}
	}

	session := domain.NewSession(out.Authorization, c.now())
	log.Debug().Str("token", session.Redacted()).Msg("authorization token issued")
	return session, nil
}

// FetchSamples requests the latest samples across all sensors.
// An invalid session fails with ReasonNoSession before any network call.
func (c *Client) FetchSamples(ctx context.Context, session domain.Session) (*domain.RawSample, error) {
	if !session.Valid() {
		return nil, &domain.FetchError{Reason: domain.ReasonNoSession}
	}

	resp, err := c.post(ctx, "/samples", session.Token, samplesRequest{Limit: c.limit})
	if err != nil {
		return nil, &domain.FetchError{Reason: domain.ReasonNetwork, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &domain.FetchError{
			Reason:     domain.ReasonUnauthorized,
			StatusCode: resp.StatusCode,
			Err:        errors.New(readMessage(resp.Body)),
		}
	default:
		return nil, &domain.FetchError{
			Reason:     domain.ReasonAPIError,
			StatusCode: resp.StatusCode,
			Err:        errors.New(readMessage(resp.Body)),
		}
	}

	var raw domain.RawSample
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		// a body cut off by the timeout is a network failure, not a bad payload
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &domain.FetchError{Reason: domain.ReasonNetwork, Err: err}
		}
		return nil, &domain.FetchError{
			Reason:     domain.ReasonAPIError,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return &raw, nil
}

func (c *Client) post(ctx context.Context, path, token string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// readMessage extracts the API's error message, falling back to the raw body
func readMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("failed to read body: %v", err)
	}
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	if len(body) == 0 {
		return "empty response"
	}
	return strings.TrimSpace(string(body))
}
