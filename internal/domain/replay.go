package domain

import (
	"time"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// ReplaySession tracks one fork-and-replay from request to terminal state.
type ReplaySession struct {
	ReplaySessionID   string                `json:"replay_session_id"`
	SourceRunID       string                `json:"source_run_id"`
	ForkStepID        string                `json:"fork_step_id,omitempty"`
	OverrideProfile   api.OverrideProfile   `json:"override_profile"`
	Preferences       api.ReplayPreferences `json:"replay_preferences"`
	Status            ReplayStatus          `json:"status"`
	DerivedRunID      string                `json:"derived_run_id,omitempty"`
	ReasonCodes       []string              `json:"reason_codes"`
	FailureReasonCode string                `json:"failure_reason_code,omitempty"`
	CancelRequested   bool                  `json:"cancel_requested"`
	CreatedAt         time.Time             `json:"created_at"`
	EndedAt           *time.Time            `json:"ended_at,omitempty"`
}

// ToAPI converts the session to its wire shape.
func (s *ReplaySession) ToAPI() api.ReplayStatus {
	out := api.ReplayStatus{
		ReplaySessionID: s.ReplaySessionID,
		Status:          string(s.Status),
		ReasonCodes:     s.ReasonCodes,
	}
	if out.ReasonCodes == nil {
		out.ReasonCodes = []string{}
	}
	if s.DerivedRunID != "" {
		id := s.DerivedRunID
		out.DerivedRunID = &id
	}
	if s.FailureReasonCode != "" {
		code := s.FailureReasonCode
		out.FailureReasonCode = &code
	}
	return out
}

// ReplayOutcome is what the engine produced for a session.
type ReplayOutcome struct {
	Status            ReplayStatus
	DerivedRun        *Run
	Events            []Event
	ReasonCodes       []string
	FailureReasonCode string
}
