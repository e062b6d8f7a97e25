package domain

import (
	"encoding/json"
	"time"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// Run represents one recorded or derived execution.
type Run struct {
	RunID          string          `json:"run_id"`
	TraceID        string          `json:"trace_id"`
	AppID          string          `json:"app_id"`
	Environment    string          `json:"environment"`
	Status         RunStatus       `json:"status"`
	SourceType     SourceType      `json:"source_type"`
	SourceRunID    string          `json:"source_run_id,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
	RetentionClass string          `json:"retention_class"`
	Tags           json.RawMessage `json:"tags,omitempty"`
}

// ToAPI converts the run to its wire shape.
func (r *Run) ToAPI() api.RunSummary {
	out := api.RunSummary{
		RunID:          r.RunID,
		TraceID:        r.TraceID,
		AppID:          r.AppID,
		Environment:    r.Environment,
		Status:         string(r.Status),
		SourceType:     string(r.SourceType),
		StartedAtUTC:   r.StartedAt.UTC(),
		RetentionClass: r.RetentionClass,
	}
	if r.SourceRunID != "" {
		src := r.SourceRunID
		out.SourceRunID = &src
	}
	if r.EndedAt != nil {
		ended := r.EndedAt.UTC()
		out.EndedAtUTC = &ended
	}
	return out
}

// Event represents one ordered occurrence within a run.
type Event struct {
	EventID         string          `json:"event_id"`
	RunID           string          `json:"run_id"`
	StepID          string          `json:"step_id"`
	ParentStepID    string          `json:"parent_step_id,omitempty"`
	SequenceNo      int64           `json:"sequence_no"`
	EventType       EventType       `json:"event_type"`
	Timestamp       time.Time       `json:"timestamp"`
	DeterminismMode DeterminismMode `json:"determinism_mode"`
	RedactionStatus string          `json:"redaction_status"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	ActorType       ActorType       `json:"actor_type"`
}

// ToAPI converts the event to its wire shape. A payload that is not a JSON
// object is exposed as an empty object.
func (e *Event) ToAPI() api.Event {
	payload := map[string]interface{}{}
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &payload)
		if payload == nil {
			payload = map[string]interface{}{}
		}
	}
	return api.Event{
		EventID:         e.EventID,
		RunID:           e.RunID,
		StepID:          e.StepID,
		SequenceNo:      e.SequenceNo,
		EventType:       string(e.EventType),
		TimestampUTC:    e.Timestamp.UTC(),
		DeterminismMode: e.DeterminismMode,
		RedactionStatus: e.RedactionStatus,
		Payload:         payload,
	}
}

// RunFilter narrows a run listing.
type RunFilter struct {
	AppID       string
	Environment string
	Status      string
	SourceType  string
	From        *time.Time
	To          *time.Time
	// Before and BeforeRunID form the exclusive cursor of the next page.
	Before      *time.Time
	BeforeRunID string
	Limit       int
}

// EventFilter narrows an event listing.
type EventFilter struct {
	EventType    string
	StepID       string
	SequenceFrom *int64
	SequenceTo   *int64
	// After is the exclusive sequence_no cursor of the next page.
	After *int64
	Limit int
}
