// Package statuscache keeps the last known status of each import job in
// Redis, so a reloaded client can show where a long-running import stood
// without waiting for the next poll.
//
// Only statuses that were actually forwarded to a poll session's
// subscriber are recorded; a response that arrived after cancellation is
// discarded upstream and never reaches the cache.
package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/parcelio/feas-client/pkg/importjob"
)

// Prometheus metrics for status cache operations.
var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feas_status_cache_hits_total",
		Help: "Total import status cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feas_status_cache_misses_total",
		Help: "Total import status cache misses",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feas_status_cache_errors_total",
		Help: "Total import status cache errors by operation",
	}, []string{"operation"})
)

var (
	// ErrCacheMiss indicates no status is recorded for the import id.
	ErrCacheMiss = errors.New("status cache miss")

	// ErrInvalidEntry indicates the recorded entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid status cache entry")
)

// DefaultTTL bounds how long a recorded status is kept. Import jobs are
// short-lived; a day-old status is noise.
const DefaultTTL = 24 * time.Hour

// Cache stores the last known JobStatus per import id in Redis. It
// implements importjob.Recorder.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New creates a status cache with the default TTL.
func New(redisClient *redis.Client) *Cache {
	return NewWithTTL(redisClient, DefaultTTL)
}

// NewWithTTL creates a status cache with an explicit entry TTL.
func NewWithTTL(redisClient *redis.Client, ttl time.Duration) *Cache {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		redis: redisClient,
		ttl:   ttl,
	}
}

// key builds the Redis key for an import id.
func key(importID string) string {
	return "feas:import_status:" + importID
}

// Get returns the last recorded status for importID, or ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, importID string) (*importjob.JobStatus, error) {
	data, err := c.redis.Get(ctx, key(importID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var status importjob.JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	cacheHits.Inc()
	return &status, nil
}

// Record stores status as the last known state of its import job,
// implementing importjob.Recorder.
func (c *Cache) Record(ctx context.Context, status *importjob.JobStatus) error {
	if status == nil || status.ImportID == "" {
		return errors.New("status with import id is required")
	}

	data, err := json.Marshal(status)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal status: %w", err)
	}

	if err := c.redis.Set(ctx, key(status.ImportID), data, c.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes the recorded status for importID. Missing keys are not
// an error.
func (c *Cache) Delete(ctx context.Context, importID string) error {
	if err := c.redis.Del(ctx, key(importID)).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
