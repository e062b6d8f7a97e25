// Package domain defines the core domain models for the flight recorder.
package domain

import "github.com/xiaot623/gogo/flightdeck/api"

// SourceType says whether a run was recorded live or derived by a replay.
type SourceType string

const (
	SourceTypeLive   SourceType = api.SourceTypeLive
	SourceTypeReplay SourceType = api.SourceTypeReplay
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusRunning RunStatus = api.RunStatusRunning
	RunStatusSuccess RunStatus = api.RunStatusSuccess
	RunStatusFailed  RunStatus = api.RunStatusFailed
)

// Terminal reports whether the run has finished recording.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// DeterminismMode is aliased from the wire contract.
type DeterminismMode = api.DeterminismMode

// EventType represents the type of a recorded event.
type EventType string

const (
	EventTypeRunStarted        EventType = "run_started"
	EventTypeInputReceived     EventType = "input_received"
	EventTypePromptRendered    EventType = "prompt_rendered"
	EventTypeRetrievalExecuted EventType = "retrieval_executed"
	EventTypeToolCalled        EventType = "tool_called"
	EventTypeToolResult        EventType = "tool_result"
	EventTypeModelCalled       EventType = "model_called"
	EventTypeModelResult       EventType = "model_result"
	EventTypeValidatorDecision EventType = "validator_decision"
	EventTypeSafetyDecision    EventType = "safety_decision"
	EventTypeFinalOutput       EventType = "final_output"
	EventTypeRunCompleted      EventType = "run_completed"
	EventTypeRunFailed         EventType = "run_failed"
)

var knownEventTypes = map[EventType]bool{
	EventTypeRunStarted:        true,
	EventTypeInputReceived:     true,
	EventTypePromptRendered:    true,
	EventTypeRetrievalExecuted: true,
	EventTypeToolCalled:        true,
	EventTypeToolResult:        true,
	EventTypeModelCalled:       true,
	EventTypeModelResult:       true,
	EventTypeValidatorDecision: true,
	EventTypeSafetyDecision:    true,
	EventTypeFinalOutput:       true,
	EventTypeRunCompleted:      true,
	EventTypeRunFailed:         true,
}

// Known reports whether t is part of the recorded vocabulary.
func (t EventType) Known() bool {
	return knownEventTypes[t]
}

// Cacheable reports whether a replay may reuse a prior result for t.
func (t EventType) Cacheable() bool {
	switch t {
	case EventTypeToolCalled, EventTypeToolResult, EventTypeModelCalled, EventTypeModelResult, EventTypeRetrievalExecuted:
		return true
	}
	return false
}

// ActorType records who wrote an event.
type ActorType string

const (
	ActorSDK          ActorType = "sdk"
	ActorBackend      ActorType = "backend"
	ActorReplayEngine ActorType = "replay_engine"
)

// ReplayStatus represents the status of a replay session.
type ReplayStatus string

const (
	ReplayStatusPending            ReplayStatus = api.ReplayStatusPending
	ReplayStatusRunning            ReplayStatus = api.ReplayStatusRunning
	ReplayStatusCompletedExact     ReplayStatus = api.ReplayStatusCompletedExact
	ReplayStatusCompletedMixed     ReplayStatus = api.ReplayStatusCompletedMixed
	ReplayStatusCompletedSimulated ReplayStatus = api.ReplayStatusCompletedSimulated
	ReplayStatusFailedValidation   ReplayStatus = api.ReplayStatusFailedValidation
	ReplayStatusFailedExecution    ReplayStatus = api.ReplayStatusFailedExecution
)

// Terminal reports whether the session will not change again.
func (s ReplayStatus) Terminal() bool {
	return s != ReplayStatusPending && s != ReplayStatusRunning
}
