package client

import "context"

// Operation produces a value from a remote call.
type Operation[T any] func(ctx context.Context) (T, error)

// WithFallback runs op and, if it fails because the server is
// unreachable, returns fallback() instead of the error. Every other
// error kind, including Cancelled, propagates unchanged.
//
// Several features degrade to client-only defaults when the backend is
// down during local development; this wrapper gives them that behaviour
// without ever swallowing a real application error (4xx/5xx) or hiding a
// caller-initiated cancellation.
func WithFallback[T any](ctx context.Context, op Operation[T], fallback func() T) (T, error) {
	result, err := op(ctx)
	if err == nil {
		return result, nil
	}

	if KindOf(err) == KindNetworkUnreachable {
		return fallback(), nil
	}

	return result, err
}
