// Package syncapi implements the request/response contract with the remote
// authoritative store. Each call is single-shot: retry policy belongs to the
// caller, not this layer.
package syncapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/visited-atlas/internal/types"
)

// ErrNoRecord reports that the store holds no record yet for the identity.
// It is a normal empty-state signal for a new user, not a failure.
var ErrNoRecord = errors.New("no record for identity")

// TransientError classifies network-level failures, timeouts, and unexpected
// response statuses. Whether it is worth retrying is the caller's decision.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

// Error implements error.
func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

// Unwrap exposes the underlying cause.
func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError reports malformed input rejected before any request is
// sent.
type ValidationError struct {
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string { return e.Reason }

// IsTransient reports whether the error is a transient protocol failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each protocol call. Expiry is classified as a
// TransientError.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client talks to the authoritative store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient constructs a protocol client for the given base URL.
func NewClient(baseURL string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: 10 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll retrieves the full visited list for an identity. A 404 response
// maps to ErrNoRecord; any other non-200 status or network failure is a
// TransientError.
func (c *Client) FetchAll(ctx context.Context, user types.UserID) ([]types.CountryName, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := apiTracer.Start(ctx, "syncapi.FetchAll", trace.WithAttributes(attribute.String("user_id", string(user))))
	defer span.End()

	endpoint := fmt.Sprintf("%s/api/countries?userId=%s", c.baseURL, url.QueryEscape(string(user)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransientError{Op: "fetch visited set", Err: err}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	observeCall("fetch", started, err)
	if err != nil {
		return nil, &TransientError{Op: "fetch visited set", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var names []types.CountryName
		if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
			return nil, &TransientError{Op: "decode visited set", Err: err}
		}
		return names, nil
	case http.StatusNotFound:
		return nil, ErrNoRecord
	default:
		c.logger.Warn().Int("status", resp.StatusCode).Str("user_id", string(user)).Msg("unexpected fetch status")
		return nil, &TransientError{Op: "fetch visited set", Status: resp.StatusCode}
	}
}

// PostOne submits a single country addition. A 201 response is the only
// success signal; anything else, including 200, is a failure. Silent partial
// success would desynchronize every dependent view, so the contract is
// strict rather than best-effort.
func (c *Client) PostOne(ctx context.Context, user types.UserID, country types.CountryName) error {
	if country == "" {
		return &ValidationError{Reason: "country must not be empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := apiTracer.Start(ctx, "syncapi.PostOne", trace.WithAttributes(
		attribute.String("user_id", string(user)),
		attribute.String("country", string(country)),
	))
	defer span.End()

	body, err := json.Marshal(addRequest{UserID: string(user), Country: string(country)})
	if err != nil {
		return &TransientError{Op: "encode add request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/countries", bytes.NewReader(body))
	if err != nil {
		return &TransientError{Op: "add country", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	observeCall("post", started, err)
	if err != nil {
		return &TransientError{Op: "add country", Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated {
		c.logger.Warn().Int("status", resp.StatusCode).Str("country", string(country)).Msg("add not confirmed")
		return &TransientError{Op: "add country", Status: resp.StatusCode}
	}
	return nil
}

type addRequest struct {
	UserID  string `json:"userId"`
	Country string `json:"country"`
}
