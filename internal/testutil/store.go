// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/xiaot623/gogo/flightdeck/internal/domain"
	"github.com/xiaot623/gogo/flightdeck/internal/repository"
)

func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedEvent is one event of a seeded run, in timeline order.
type SeedEvent struct {
	StepID    string
	EventType domain.EventType
	Mode      domain.DeterminismMode
	Payload   string
}

// SeedRun stores a terminal live run with the given events at sequence 0..n-1.
func SeedRun(t *testing.T, s store.Store, runID string, status domain.RunStatus, events ...SeedEvent) *domain.Run {
	t.Helper()
	ctx := context.Background()

	started := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	ended := started.Add(30 * time.Second)
	run := &domain.Run{
		RunID:          runID,
		TraceID:        "trace_" + runID,
		AppID:          "support-bot",
		Environment:    "staging",
		Status:         status,
		SourceType:     domain.SourceTypeLive,
		StartedAt:      started,
		RetentionClass: "standard",
	}
	if status.Terminal() {
		run.EndedAt = &ended
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	for i, ev := range events {
		mode := ev.Mode
		if mode == "" {
			mode = domain.DeterminismMode("live")
		}
		payload := ev.Payload
		if payload == "" {
			payload = `{}`
		}
		err := s.CreateEvent(ctx, &domain.Event{
			EventID:         fmt.Sprintf("%s_evt_%d", runID, i),
			RunID:           runID,
			StepID:          ev.StepID,
			SequenceNo:      int64(i),
			EventType:       ev.EventType,
			Timestamp:       started.Add(time.Duration(i) * time.Second),
			DeterminismMode: mode,
			RedactionStatus: "not_required",
			Payload:         json.RawMessage(payload),
			ActorType:       domain.ActorSDK,
		})
		if err != nil {
			t.Fatalf("CreateEvent %d: %v", i, err)
		}
	}
	return run
}
