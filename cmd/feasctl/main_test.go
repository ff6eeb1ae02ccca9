package main

import (
	"context"
	"testing"

	"github.com/parcelio/feas-client/internal/testutil"
)

func TestImportStatusCommand(t *testing.T) {
	mock := testutil.NewMockPlatform()
	defer mock.Close()

	mock.SetStatusSequence("imp-1", []string{
		testutil.CompletedStatusBody("imp-1", []string{"01-01"}),
	})

	t.Setenv("FEAS_BASE_URL", mock.URL())
	t.Setenv("FEAS_USER_ROLE", "planner")
	t.Setenv("FEAS_REDIS_ADDR", "")

	app := newApp()
	err := app.Run(context.Background(), []string{"feasctl", "import", "status", "--env", "", "--id", "imp-1"})
	if err != nil {
		t.Fatalf("status command failed: %v", err)
	}

	if mock.GetRequestCount() != 1 {
		t.Errorf("Request count = %d, want 1", mock.GetRequestCount())
	}
}

func TestImportWatchCommand(t *testing.T) {
	mock := testutil.NewMockPlatform()
	defer mock.Close()

	mock.SetStatusSequence("imp-2", []string{
		testutil.RunningStatusBody("imp-2"),
		testutil.CompletedStatusBody("imp-2", []string{"01-01", "01-02"}),
	})

	t.Setenv("FEAS_BASE_URL", mock.URL())
	t.Setenv("FEAS_REDIS_ADDR", "")
	t.Setenv("FEAS_POLL_INTERVAL", "5ms")
	t.Setenv("FEAS_POLL_TIMEOUT", "2s")

	app := newApp()
	err := app.Run(context.Background(), []string{"feasctl", "import", "watch", "--env", "", "--id", "imp-2"})
	if err != nil {
		t.Fatalf("watch command failed: %v", err)
	}

	if mock.GetRequestCount() < 2 {
		t.Errorf("Request count = %d, want at least 2", mock.GetRequestCount())
	}
}

func TestImportWatchCommand_FailedJob(t *testing.T) {
	mock := testutil.NewMockPlatform()
	defer mock.Close()

	mock.SetStatusSequence("imp-3", []string{
		`{"job_id": "imp-3", "status": "failed", "requested_at": "2026-08-12T09:30:00Z", "error": "layer table missing"}`,
	})

	t.Setenv("FEAS_BASE_URL", mock.URL())
	t.Setenv("FEAS_REDIS_ADDR", "")
	t.Setenv("FEAS_POLL_INTERVAL", "5ms")
	t.Setenv("FEAS_POLL_TIMEOUT", "2s")

	app := newApp()
	err := app.Run(context.Background(), []string{"feasctl", "import", "watch", "--env", "", "--id", "imp-3"})
	if err == nil {
		t.Fatal("Expected error for a failed import job")
	}
}
