package api

import "time"

// Replay session statuses emitted by the replay engine. The client must not
// assume this set is closed; see client.Classify.
const (
	ReplayStatusPending            = "pending"
	ReplayStatusRunning            = "running"
	ReplayStatusCompletedExact     = "completed_exact"
	ReplayStatusCompletedMixed     = "completed_mixed"
	ReplayStatusCompletedSimulated = "completed_simulated"
	ReplayStatusFailedValidation   = "failed_validation"
	ReplayStatusFailedExecution    = "failed_execution"
)

// Reason codes attached to replayed events and sessions.
const (
	ReasonSourceOutputReused   = "source_output_reused"
	ReasonCacheHit             = "cache_hit_signature_match"
	ReasonOperatorOverride     = "simulation_operator_override"
	ReasonSourceRunEmpty       = "source_run_empty"
	ReasonCancelRequested      = "cancel_requested"
	ReasonSimulationDisallowed = "simulation_disallowed"
	ReasonExecutionError       = "execution_error"
)

// DefaultPreferredModes is the fallback order this client always requests:
// live execution is excluded because the request is a replay.
func DefaultPreferredModes() []DeterminismMode {
	return []DeterminismMode{ModeExact, ModeCached, ModeSimulated}
}

// PromptOverride replaces the prompt template used from the fork onward.
type PromptOverride struct {
	TemplateID      string                 `json:"template_id,omitempty"`
	TemplateVersion string                 `json:"template_version,omitempty"`
	Variables       map[string]interface{} `json:"variables,omitempty"`
}

// ModelOverride replaces the model used from the fork onward.
type ModelOverride struct {
	Provider string `json:"provider,omitempty"`
	ModelID  string `json:"model_id,omitempty"`
}

// RetrieverOverride changes retrieval parameters from the fork onward.
type RetrieverOverride struct {
	TopK             *int                   `json:"top_k,omitempty"`
	Filters          map[string]interface{} `json:"filters,omitempty"`
	EmbeddingProfile string                 `json:"embedding_profile,omitempty"`
}

// OverrideProfile is the sparse set of changes requested for a forked replay.
// A nil sub-override is omitted from the wire entirely.
type OverrideProfile struct {
	PromptOverride          *PromptOverride                   `json:"prompt_override,omitempty"`
	ModelOverride           *ModelOverride                    `json:"model_override,omitempty"`
	RetrieverOverride       *RetrieverOverride                `json:"retriever_override,omitempty"`
	ToolSimulationOverrides map[string]map[string]interface{} `json:"tool_simulation_overrides,omitempty"`
}

// IsEmpty reports whether no override of any kind is present.
func (p OverrideProfile) IsEmpty() bool {
	return p.PromptOverride == nil && p.ModelOverride == nil &&
		p.RetrieverOverride == nil && len(p.ToolSimulationOverrides) == 0
}

// ReplayPreferences tells the engine which determinism modes it may fall back to.
type ReplayPreferences struct {
	PreferredModes  []DeterminismMode `json:"preferred_modes"`
	FailOnSimulated bool              `json:"fail_on_simulated"`
}

// ReplayRequest is the body of POST /replays.
type ReplayRequest struct {
	SourceRunID       string            `json:"source_run_id"`
	ForkStepID        string            `json:"fork_step_id,omitempty"`
	OverrideProfile   OverrideProfile   `json:"override_profile"`
	ReplayPreferences ReplayPreferences `json:"replay_preferences"`
}

// CreateReplayResponse is the data of POST /replays.
type CreateReplayResponse struct {
	ReplaySessionID string `json:"replay_session_id"`
	Status          string `json:"status"`
}

// ReplayStatus is the data of GET /replays/{replay_session_id}.
type ReplayStatus struct {
	ReplaySessionID   string   `json:"replay_session_id"`
	Status            string   `json:"status"`
	DerivedRunID      *string  `json:"derived_run_id"`
	ReasonCodes       []string `json:"reason_codes"`
	FailureReasonCode *string  `json:"failure_reason_code"`
}

// CancelReplayResponse is the data of POST /replays/{replay_session_id}/cancel.
type CancelReplayResponse struct {
	Status         string    `json:"status"`
	CancelledAtUTC time.Time `json:"cancelled_at_utc"`
}
