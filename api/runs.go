package api

import "time"

// Run source types.
const (
	SourceTypeLive   = "live"
	SourceTypeReplay = "replay"
)

// Run statuses reported by the recording pipeline.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// DeterminismMode classifies how an event's outcome was obtained.
type DeterminismMode string

const (
	ModeLive      DeterminismMode = "live"
	ModeExact     DeterminismMode = "exact"
	ModeCached    DeterminismMode = "cached"
	ModeSimulated DeterminismMode = "simulated"
)

// Valid reports whether m is one of the four known modes.
func (m DeterminismMode) Valid() bool {
	switch m {
	case ModeLive, ModeExact, ModeCached, ModeSimulated:
		return true
	}
	return false
}

// Redaction statuses.
const (
	RedactionNotRequired = "not_required"
	RedactionRedacted    = "redacted"
	RedactionBlocked     = "blocked"
	RedactionFailed      = "failed"
)

// RunSummary is one recorded or derived execution.
type RunSummary struct {
	RunID          string     `json:"run_id"`
	TraceID        string     `json:"trace_id"`
	AppID          string     `json:"app_id"`
	Environment    string     `json:"environment"`
	Status         string     `json:"status"`
	SourceType     string     `json:"source_type"`
	SourceRunID    *string    `json:"source_run_id"`
	StartedAtUTC   time.Time  `json:"started_at_utc"`
	EndedAtUTC     *time.Time `json:"ended_at_utc"`
	RetentionClass string     `json:"retention_class"`
}

// IsDerived reports whether the run was produced by a replay.
func (r RunSummary) IsDerived() bool {
	return r.SourceType == SourceTypeReplay
}

// Event is one ordered occurrence within a run's timeline.
type Event struct {
	EventID         string                 `json:"event_id"`
	RunID           string                 `json:"run_id"`
	StepID          string                 `json:"step_id"`
	SequenceNo      int64                  `json:"sequence_no"`
	EventType       string                 `json:"event_type"`
	TimestampUTC    time.Time              `json:"timestamp_utc"`
	DeterminismMode DeterminismMode        `json:"determinism_mode"`
	RedactionStatus string                 `json:"redaction_status"`
	Payload         map[string]interface{} `json:"payload"`
}

// ListRunsResponse is the data of GET /runs.
type ListRunsResponse struct {
	Items         []RunSummary `json:"items"`
	NextPageToken *string      `json:"next_page_token"`
}

// RunDetailResponse is the data of GET /runs/{run_id}.
type RunDetailResponse struct {
	Run      RunSummary       `json:"run"`
	Counters map[string]int64 `json:"counters"`
}

// ListEventsResponse is the data of GET /runs/{run_id}/events.
type ListEventsResponse struct {
	Items         []Event `json:"items"`
	NextPageToken *string `json:"next_page_token"`
}

// CreateRunRequest is the body of POST /runs.
type CreateRunRequest struct {
	AppID          string                 `json:"app_id"`
	Environment    string                 `json:"environment"`
	SourceType     string                 `json:"source_type,omitempty"`
	Tags           map[string]interface{} `json:"tags,omitempty"`
	RetentionClass string                 `json:"retention_class,omitempty"`
}

// CreateRunResponse is the data of POST /runs.
type CreateRunResponse struct {
	RunID   string `json:"run_id"`
	TraceID string `json:"trace_id"`
	Status  string `json:"status"`
}

// IngestEvent is the event half of an ingestion request.
type IngestEvent struct {
	TraceID         string                 `json:"trace_id"`
	RunID           string                 `json:"run_id"`
	StepID          string                 `json:"step_id"`
	ParentStepID    string                 `json:"parent_step_id,omitempty"`
	SequenceNo      int64                  `json:"sequence_no"`
	EventType       string                 `json:"event_type"`
	TimestampUTC    time.Time              `json:"timestamp_utc"`
	DeterminismMode DeterminismMode        `json:"determinism_mode,omitempty"`
	RedactionStatus string                 `json:"redaction_status,omitempty"`
	Payload         map[string]interface{} `json:"payload,omitempty"`
}

// IngestEventRequest is the body of POST /runs/{run_id}/events.
type IngestEventRequest struct {
	IdempotencyKey string      `json:"idempotency_key"`
	Event          IngestEvent `json:"event"`
}

// IngestEventResponse is the data of POST /runs/{run_id}/events.
type IngestEventResponse struct {
	EventID            string   `json:"event_id"`
	Accepted           bool     `json:"accepted"`
	ValidationWarnings []string `json:"validation_warnings"`
}

// FinalizeRunRequest is the body of POST /runs/{run_id}/finalize.
type FinalizeRunRequest struct {
	FinalStatus string `json:"final_status"`
}

// FinalizeRunResponse is the data of POST /runs/{run_id}/finalize.
type FinalizeRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}
