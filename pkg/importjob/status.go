// Package importjob implements polling for long-running CAD drawing
// import jobs on the feasibility platform.
//
// A drawing import is started server-side and parsed asynchronously; the
// client repeatedly checks the job status endpoint until the job reaches
// a terminal state, the session times out, or the caller cancels.
package importjob

import (
	"context"
	"fmt"
	"time"

	"github.com/parcelio/feas-client/pkg/client"
)

// State is the server-reported lifecycle state of an import job. It is
// monotonic within one polling session: queued -> running -> completed or
// failed, never backwards.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further job transition can occur.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// rank orders states for the monotonicity guard. Completed and failed
// share a rank because they are alternative terminals, not a sequence.
func (s State) rank() int {
	switch s {
	case StateQueued:
		return 0
	case StateRunning:
		return 1
	case StateCompleted, StateFailed:
		return 2
	default:
		return -1
	}
}

// Valid reports whether the server sent a known state value.
func (s State) Valid() bool {
	return s.rank() >= 0
}

// ImportResult is the parsed outcome of a completed drawing import.
type ImportResult struct {
	// DetectedUnits lists the unit identifiers recognised in the
	// drawing, e.g. "01-01" for floor 1 unit 1.
	DetectedUnits []string `json:"detected_units"`

	// FloorCount is the number of floors recognised in the drawing.
	FloorCount int `json:"floor_count,omitempty"`

	// SourceFile is the original drawing file name.
	SourceFile string `json:"source_file,omitempty"`
}

// JobStatus is one observation of an import job, echoed verbatim from
// the status endpoint.
type JobStatus struct {
	ImportID    string        `json:"job_id,omitempty"`
	State       State         `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Result      *ImportResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// StatusFetcher checks the current status of an import job. The poller
// depends on this interface so tests can script status sequences without
// a server.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, importID string) (*JobStatus, error)
}

// APIFetcher checks import status through the platform request client.
type APIFetcher struct {
	client *client.Client
}

// NewAPIFetcher creates a StatusFetcher backed by the platform API.
func NewAPIFetcher(c *client.Client) *APIFetcher {
	return &APIFetcher{client: c}
}

// FetchStatus implements StatusFetcher against the import status
// endpoint.
func (f *APIFetcher) FetchStatus(ctx context.Context, importID string) (*JobStatus, error) {
	status, err := client.Get[JobStatus](ctx, f.client, fmt.Sprintf("/api/imports/%s/status", importID))
	if err != nil {
		return nil, err
	}
	if status.ImportID == "" {
		status.ImportID = importID
	}
	return &status, nil
}
