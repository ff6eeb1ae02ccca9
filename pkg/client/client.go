// Package client provides the core HTTP client for the feasibility
// platform API: URL resolution, identity header injection, JSON
// encode/decode at the wire boundary, and error classification.
//
// All wire payloads use snake_case field names; in-memory models carry
// camelCase Go fields mapped through their json struct tags, so the rest
// of the system only ever sees one casing convention.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for platform API operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feas_requests_total",
		Help: "Total platform API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feas_request_duration_seconds",
		Help:    "Platform API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feas_errors_total",
		Help: "Total platform API errors by kind",
	}, []string{"kind"})
)

// Identity header names consumed by the platform backend.
const (
	headerUserRole  = "X-User-Role"
	headerUserID    = "X-User-Id"
	headerUserEmail = "X-User-Email"
)

// Identity carries the acting user's context. It is set once when the
// client is constructed and injected into every outgoing call; it is
// never mutated afterwards.
type Identity struct {
	Role      string
	UserID    string
	UserEmail string
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the platform origin, defaulted to "/" when blank so the
	// client works against the hosting origin.
	BaseURL string

	// Identity is the acting user's context.
	Identity Identity

	// HTTPClient overrides the underlying transport (mainly for tests).
	HTTPClient *http.Client

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// Client issues single remote calls against the platform API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	identity   Identity
	logger     zerolog.Logger
}

// New creates a platform API client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "/"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := log.With().Str("component", "feas-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		identity:   cfg.Identity,
		logger:     logger,
	}
}

// BaseURL returns the configured base address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do issues a single call against the platform API and decodes the
// response into T. A 204 or empty-body success yields the zero value of T
// without a decode attempt. Every failure is returned as an *APIError
// with the kinds documented in this package; in particular a cancelled
// ctx always surfaces as KindCancelled so callers can distinguish
// "superseded" from "broken".
func Do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var zero T

	endpoint := path
	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var payload io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			apiErrorsTotal.WithLabelValues(string(KindMalformed)).Inc()
			return zero, &APIError{
				Kind:    KindMalformed,
				Message: "request body could not be serialised",
				Err:     err,
			}
		}
		payload = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, ResolveURL(c.baseURL, path), payload)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(KindMalformed)).Inc()
		return zero, &APIError{
			Kind:    KindMalformed,
			Message: "request could not be constructed",
			Err:     err,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	if c.identity.Role != "" {
		req.Header.Set(headerUserRole, c.identity.Role)
	}
	if c.identity.UserID != "" {
		req.Header.Set(headerUserID, c.identity.UserID)
	}
	if c.identity.UserEmail != "" {
		req.Header.Set(headerUserEmail, c.identity.UserEmail)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Executing platform request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classifyTransport(ctx, err)
		apiErrorsTotal.WithLabelValues(string(classified.Kind)).Inc()
		if classified.Kind == KindCancelled {
			apiRequestsTotal.WithLabelValues(endpoint, "cancelled").Inc()
			c.logger.Debug().Str("endpoint", endpoint).Msg("Request cancelled by caller")
		} else {
			apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Platform request failed")
		}
		return zero, classified
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		classified := classifyStatus(resp)
		apiErrorsTotal.WithLabelValues(string(classified.Kind)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Platform request error")
		return zero, classified
	}

	if resp.StatusCode == http.StatusNoContent {
		return zero, nil
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// An empty success body is equivalent to a 204.
		if errors.Is(err, io.EOF) {
			return zero, nil
		}
		classified := classifyDecode(err)
		apiErrorsTotal.WithLabelValues(string(classified.Kind)).Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Response decode failed")
		return zero, classified
	}

	return result, nil
}

// Get issues a GET request against the platform API.
func Get[T any](ctx context.Context, c *Client, path string) (T, error) {
	return Do[T](ctx, c, http.MethodGet, path, nil)
}

// Post issues a POST request against the platform API.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Do[T](ctx, c, http.MethodPost, path, body)
}

// Patch issues a PATCH request against the platform API.
func Patch[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Do[T](ctx, c, http.MethodPatch, path, body)
}

// Delete issues a DELETE request against the platform API.
func Delete[T any](ctx context.Context, c *Client, path string) (T, error) {
	return Do[T](ctx, c, http.MethodDelete, path, nil)
}
