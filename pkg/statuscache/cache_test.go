package statuscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parcelio/feas-client/pkg/importjob"
)

// setupTestRedis creates a test Redis client, skipping when no local
// Redis is available. Integration tests use testcontainers-go instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestCache_RecordAndGet(t *testing.T) {
	redisClient := setupTestRedis(t)
	cache := New(redisClient)
	ctx := context.Background()

	status := &importjob.JobStatus{
		ImportID:    "imp-1",
		State:       importjob.StateRunning,
		RequestedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := cache.Record(ctx, status); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := cache.Get(ctx, "imp-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.ImportID != "imp-1" {
		t.Errorf("ImportID = %q, want imp-1", got.ImportID)
	}
	if got.State != importjob.StateRunning {
		t.Errorf("State = %q, want running", got.State)
	}
	if !got.RequestedAt.Equal(status.RequestedAt) {
		t.Errorf("RequestedAt = %v, want %v", got.RequestedAt, status.RequestedAt)
	}
}

func TestCache_GetMiss(t *testing.T) {
	redisClient := setupTestRedis(t)
	cache := New(redisClient)

	_, err := cache.Get(context.Background(), "imp-unknown")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get error = %v, want ErrCacheMiss", err)
	}
}

func TestCache_RecordOverwrites(t *testing.T) {
	redisClient := setupTestRedis(t)
	cache := New(redisClient)
	ctx := context.Background()

	running := &importjob.JobStatus{ImportID: "imp-2", State: importjob.StateRunning, RequestedAt: time.Now()}
	completed := &importjob.JobStatus{
		ImportID:    "imp-2",
		State:       importjob.StateCompleted,
		RequestedAt: time.Now(),
		Result:      &importjob.ImportResult{DetectedUnits: []string{"01-01"}},
	}

	if err := cache.Record(ctx, running); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := cache.Record(ctx, completed); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := cache.Get(ctx, "imp-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.State != importjob.StateCompleted {
		t.Errorf("State = %q, want completed (last write wins)", got.State)
	}
	if got.Result == nil || len(got.Result.DetectedUnits) != 1 {
		t.Errorf("Result = %+v, want 1 detected unit", got.Result)
	}
}

func TestCache_RecordValidation(t *testing.T) {
	redisClient := setupTestRedis(t)
	cache := New(redisClient)

	if err := cache.Record(context.Background(), nil); err == nil {
		t.Error("Expected error for nil status")
	}
	if err := cache.Record(context.Background(), &importjob.JobStatus{State: importjob.StateRunning}); err == nil {
		t.Error("Expected error for missing import id")
	}
}

func TestCache_Delete(t *testing.T) {
	redisClient := setupTestRedis(t)
	cache := New(redisClient)
	ctx := context.Background()

	status := &importjob.JobStatus{ImportID: "imp-3", State: importjob.StateQueued, RequestedAt: time.Now()}
	if err := cache.Record(ctx, status); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if err := cache.Delete(ctx, "imp-3"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := cache.Delete(ctx, "imp-3"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}

	if _, err := cache.Get(ctx, "imp-3"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after delete = %v, want ErrCacheMiss", err)
	}
}

func TestCache_TTLApplied(t *testing.T) {
	redisClient := setupTestRedis(t)
	cache := NewWithTTL(redisClient, time.Minute)
	ctx := context.Background()

	status := &importjob.JobStatus{ImportID: "imp-4", State: importjob.StateRunning, RequestedAt: time.Now()}
	if err := cache.Record(ctx, status); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	ttl, err := redisClient.TTL(ctx, "feas:import_status:imp-4").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want within (0, 1m]", ttl)
	}
}
