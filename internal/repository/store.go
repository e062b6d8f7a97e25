// Package store defines the storage interface and its SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/gogo/flightdeck/internal/domain"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// Store defines the interface for data persistence.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.Run, error)
	FinalizeRun(ctx context.Context, runID string, status domain.RunStatus, endedAt time.Time) (bool, error)
	CountEvents(ctx context.Context, runID string) (map[string]int64, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEventByIdempotencyKey(ctx context.Context, runID, key string) (*domain.Event, error)
	ListEvents(ctx context.Context, runID string, filter domain.EventFilter) ([]domain.Event, error)
	StepExists(ctx context.Context, runID, stepID string) (bool, error)

	// Replay session operations
	CreateReplaySession(ctx context.Context, session *domain.ReplaySession) error
	GetReplaySession(ctx context.Context, sessionID string) (*domain.ReplaySession, error)
	ClaimPendingReplaySessions(ctx context.Context, limit int) ([]domain.ReplaySession, error)
	RequestReplayCancel(ctx context.Context, sessionID string, at time.Time) (*domain.ReplaySession, error)
	CommitReplayOutcome(ctx context.Context, sessionID string, outcome *domain.ReplayOutcome, endedAt time.Time) (bool, error)
	FailReplaySession(ctx context.Context, sessionID string, status domain.ReplayStatus, reasonCode string, endedAt time.Time) (bool, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
