// Package testutil provides testing utilities for the feasibility
// platform client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behaviour of a mock platform endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPlatform is a configurable mock of the feasibility platform API.
type MockPlatform struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockPlatform creates a new mock platform server.
func NewMockPlatform() *MockPlatform {
	mock := &MockPlatform{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockPlatform) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPlatform) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPlatform) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockPlatform) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockPlatform) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if resp.Headers["Content-Type"] == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetStatusSequence configures the import status endpoint for importID to
// serve the given JSON payloads one after another, repeating the last
// payload once the sequence is exhausted.
func (m *MockPlatform) SetStatusSequence(importID string, payloads []string) {
	var (
		mu   sync.Mutex
		next int
	)

	path := fmt.Sprintf("/api/imports/%s/status", importID)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		payload := payloads[next]
		if next < len(payloads)-1 {
			next++
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(payload))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPlatform) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler answers unconfigured paths with an empty object.
func (m *MockPlatform) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{}`))
}

// NewDetailErrorResponse creates a non-success response carrying the
// platform's structured error body.
func NewDetailErrorResponse(status int, detail string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"detail": %q}`, detail),
	}
}

// RunningStatusBody renders a running import status payload.
func RunningStatusBody(importID string) string {
	return fmt.Sprintf(`{"job_id": %q, "status": "running", "requested_at": %q}`,
		importID, time.Now().UTC().Format(time.RFC3339))
}

// CompletedStatusBody renders a completed import status payload with the
// given detected units.
func CompletedStatusBody(importID string, units []string) string {
	list := ""
	for i, u := range units {
		if i > 0 {
			list += ", "
		}
		list += fmt.Sprintf("%q", u)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	return fmt.Sprintf(`{"job_id": %q, "status": "completed", "requested_at": %q, "completed_at": %q, "result": {"detected_units": [%s]}}`,
		importID, now, now, list)
}
