// Package resultstore persists benchmark runs, their result records and the
// embedding cache.
package resultstore

import (
	"context"
	"errors"
	"time"

	"github.com/localrivet/summbench/internal/schema"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run describes one benchmark invocation.
type Run struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitzero"`
	Status     string            `json:"status"`
	Model      string            `json:"model"`
	Dataset    string            `json:"dataset"`
	Strategies []schema.Strategy `json:"strategies"`
	Samples    int               `json:"samples"`
	Records    int               `json:"records"`
	Error      string            `json:"error,omitempty"`
}

// ResultStore defines the persistence operations used by the benchmark.
type ResultStore interface {
	// SaveRun inserts or replaces a run.
	SaveRun(ctx context.Context, run Run) error

	// GetRun returns a run by ID or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// SaveRecord stores one result record of a run.
	SaveRecord(ctx context.Context, runID string, rec schema.ResultRecord) error

	// ListRecords returns the records of a run, optionally filtered by strategy.
	ListRecords(ctx context.Context, runID string, strategy schema.Strategy) ([]schema.ResultRecord, error)

	// Close closes the store and releases any resources.
	Close() error
}
