package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed platform call. It is the only error
// taxonomy surfaced to feature code; callers branch on the kind to decide
// between toast, fallback, and silent stop.
type ErrorKind string

const (
	// KindCancelled means the caller's context was cancelled before a
	// response arrived. Never downgraded to a network failure.
	KindCancelled ErrorKind = "cancelled"

	// KindNetworkUnreachable means the transport failed before producing
	// any response (host unreachable, DNS, connection refused).
	KindNetworkUnreachable ErrorKind = "network_unreachable"

	// KindHTTPStatus means the platform produced a non-success status.
	KindHTTPStatus ErrorKind = "http_status"

	// KindMalformed means a success response body could not be decoded.
	KindMalformed ErrorKind = "malformed"
)

// maxErrorBodyBytes caps how much of a non-JSON error body is used as a
// message. Anything longer is assumed to be an HTML error page.
const maxErrorBodyBytes = 200

// APIError is the classified error returned by every client operation.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("platform %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("platform %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("platform %s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error returned by this
// package. Unrecognised errors report KindMalformed.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindMalformed
}

// IsCancelled reports whether err represents a caller-initiated
// cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// statusMessages maps well-known statuses to fixed human-readable
// messages, used when the server supplies no usable error body.
var statusMessages = map[int]string{
	http.StatusBadRequest:          "the request was rejected as invalid",
	http.StatusUnauthorized:        "authentication is required",
	http.StatusForbidden:           "you do not have permission to perform this action",
	http.StatusNotFound:            "the requested resource was not found",
	http.StatusConflict:            "the request conflicts with the current state",
	http.StatusUnprocessableEntity: "the request could not be processed",
	http.StatusTooManyRequests:     "too many requests, slow down",
	http.StatusInternalServerError: "the server encountered an internal error",
	http.StatusBadGateway:          "the server is temporarily unavailable",
	http.StatusServiceUnavailable:  "the server is temporarily unavailable",
	http.StatusGatewayTimeout:      "the server is temporarily unavailable",
}

// errorBody is the structured error payload the platform attaches to
// non-success responses.
type errorBody struct {
	Detail string `json:"detail"`
}

// classifyTransport turns an error from the HTTP transport into an
// APIError. Context cancellation takes priority over everything else so a
// superseded request is never misreported as a network failure.
func classifyTransport(ctx context.Context, err error) *APIError {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &APIError{
			Kind:    KindCancelled,
			Message: "request cancelled",
			Err:     err,
		}
	}

	return &APIError{
		Kind:    KindNetworkUnreachable,
		Message: "cannot reach the server",
		Err:     err,
	}
}

// classifyStatus turns a non-success response into an APIError, reading
// the body at most once. A JSON {detail} message is preferred, then a
// short plain-text body, then the fixed per-status message, then a
// generic fallback.
func classifyStatus(resp *http.Response) *APIError {
	message := ""

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		text := strings.TrimSpace(string(body))
		switch {
		case strings.HasPrefix(text, "{") || strings.HasPrefix(text, "["):
			var structured errorBody
			if json.Unmarshal(body, &structured) == nil && structured.Detail != "" {
				message = structured.Detail
			}
		case len(text) > 0 && len(text) <= maxErrorBodyBytes && !strings.Contains(text, "<"):
			message = text
		}
	}

	if message == "" {
		message = statusMessages[resp.StatusCode]
	}
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	return &APIError{
		Kind:       KindHTTPStatus,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// classifyDecode wraps a body decode failure on a success response.
func classifyDecode(err error) *APIError {
	return &APIError{
		Kind:    KindMalformed,
		Message: "response body did not match the expected shape",
		Err:     err,
	}
}
