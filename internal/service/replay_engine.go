package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
)

var tracer = otel.Tracer("github.com/xiaot623/gogo/flightdeck/internal/service")

// errReplayCancelled stops an execution once cancellation was requested.
var errReplayCancelled = errors.New("replay cancelled")

// replayInput is everything the engine needs to derive a run.
type replayInput struct {
	session *domain.ReplaySession
	source  *domain.Run
	events  []domain.Event
	now     time.Time
	// cancelled is polled before each event.
	cancelled func() (bool, error)
}

// deriveReplay replays the source timeline against the session's override
// profile and returns the outcome to commit.
func deriveReplay(in replayInput) (*domain.ReplayOutcome, error) {
	if len(in.events) == 0 {
		return failedOutcome(domain.ReplayStatusFailedValidation, api.ReasonSourceRunEmpty), nil
	}

	forkSeq := in.events[0].SequenceNo
	if in.session.ForkStepID != "" {
		for _, ev := range in.events {
			if ev.StepID == in.session.ForkStepID {
				forkSeq = ev.SequenceNo
				break
			}
		}
	}

	derived := &domain.Run{
		RunID:          newID("run_"),
		TraceID:        in.source.TraceID,
		AppID:          in.source.AppID,
		Environment:    in.source.Environment,
		Status:         domain.RunStatusFailed,
		SourceType:     domain.SourceTypeReplay,
		SourceRunID:    in.source.RunID,
		StartedAt:      in.now,
		RetentionClass: in.source.RetentionClass,
	}
	derived.Tags, _ = json.Marshal(map[string]string{"replay_session_id": in.session.ReplaySessionID})
	if in.source.Status == domain.RunStatusSuccess {
		derived.Status = domain.RunStatusSuccess
	}

	steps := make(map[string]string)
	for _, ev := range in.events {
		if _, ok := steps[ev.StepID]; !ok {
			steps[ev.StepID] = newID("stp_")
		}
	}

	profile := in.session.OverrideProfile
	counts := make(map[domain.DeterminismMode]int)
	seen := make(map[string]bool)
	out := make([]domain.Event, 0, len(in.events))

	for i, ev := range in.events {
		if in.cancelled != nil {
			stop, err := in.cancelled()
			if err != nil {
				return nil, fmt.Errorf("failed to check cancellation: %w", err)
			}
			if stop {
				return nil, errReplayCancelled
			}
		}

		payload := map[string]interface{}{}
		if len(ev.Payload) > 0 {
			_ = json.Unmarshal(ev.Payload, &payload)
			if payload == nil {
				payload = map[string]interface{}{}
			}
		}
		payload["source_run_id"] = in.source.RunID
		payload["fork_step_id"] = in.session.ForkStepID
		payload["override_profile_id"] = in.session.ReplaySessionID

		mode, reason := replayDecision(ev, ev.SequenceNo >= forkSeq, profile, payload)
		payload["replay_reason_code"] = reason
		counts[mode]++
		seen[reason] = true

		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode replayed payload: %w", err)
		}
		out = append(out, domain.Event{
			EventID:         newID("evt_"),
			RunID:           derived.RunID,
			StepID:          steps[ev.StepID],
			ParentStepID:    steps[ev.ParentStepID],
			SequenceNo:      int64(i),
			EventType:       ev.EventType,
			Timestamp:       in.now.Add(time.Duration(i) * time.Millisecond),
			DeterminismMode: mode,
			RedactionStatus: ev.RedactionStatus,
			Payload:         raw,
			IdempotencyKey:  fmt.Sprintf("replay:%s:%s", in.session.ReplaySessionID, ev.EventID),
			ActorType:       domain.ActorReplayEngine,
		})
	}

	if in.session.Preferences.FailOnSimulated && counts[api.ModeSimulated] > 0 {
		return failedOutcome(domain.ReplayStatusFailedExecution, api.ReasonSimulationDisallowed), nil
	}

	ended := in.now.Add(time.Duration(len(out)) * time.Millisecond)
	derived.EndedAt = &ended

	reasons := make([]string, 0, len(seen))
	for r := range seen {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	return &domain.ReplayOutcome{
		Status:      sessionStatus(counts),
		DerivedRun:  derived,
		Events:      out,
		ReasonCodes: reasons,
	}, nil
}

// replayDecision picks the determinism mode of one replayed event and applies
// any matching override to payload.
func replayDecision(ev domain.Event, atOrAfterFork bool, profile api.OverrideProfile, payload map[string]interface{}) (domain.DeterminismMode, string) {
	if !atOrAfterFork {
		return api.ModeExact, api.ReasonSourceOutputReused
	}

	switch ev.EventType {
	case domain.EventTypePromptRendered:
		if po := profile.PromptOverride; po != nil {
			setIf(payload, "prompt_template_id", po.TemplateID)
			setIf(payload, "prompt_template_version", po.TemplateVersion)
			if len(po.Variables) > 0 {
				payload["prompt_variables_override"] = po.Variables
			}
			return api.ModeSimulated, api.ReasonOperatorOverride
		}
	case domain.EventTypeModelCalled, domain.EventTypeModelResult:
		if mo := profile.ModelOverride; mo != nil {
			setIf(payload, "provider", mo.Provider)
			setIf(payload, "model_id", mo.ModelID)
			return api.ModeSimulated, api.ReasonOperatorOverride
		}
	case domain.EventTypeRetrievalExecuted:
		if ro := profile.RetrieverOverride; ro != nil {
			if ro.TopK != nil {
				payload["top_k"] = *ro.TopK
			}
			if len(ro.Filters) > 0 {
				payload["filters"] = ro.Filters
			}
			setIf(payload, "embedding_profile", ro.EmbeddingProfile)
			return api.ModeSimulated, api.ReasonOperatorOverride
		}
	case domain.EventTypeToolResult:
		if sim, ok := profile.ToolSimulationOverrides[ev.StepID]; ok {
			payload["result_ref"] = sim
			return api.ModeSimulated, api.ReasonOperatorOverride
		}
	}

	if ev.EventType.Cacheable() {
		return api.ModeCached, api.ReasonCacheHit
	}
	return api.ModeExact, api.ReasonSourceOutputReused
}

func setIf(payload map[string]interface{}, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

// sessionStatus summarizes the mode mix of a completed replay.
func sessionStatus(counts map[domain.DeterminismMode]int) domain.ReplayStatus {
	simulated := counts[api.ModeSimulated]
	cached := counts[api.ModeCached]
	exact := counts[api.ModeExact]

	switch {
	case simulated == 0 && cached == 0 && exact > 0:
		return domain.ReplayStatusCompletedExact
	case simulated > 0 && (cached > 0 || exact > 0):
		return domain.ReplayStatusCompletedMixed
	case simulated > 0:
		return domain.ReplayStatusCompletedSimulated
	default:
		return domain.ReplayStatusCompletedMixed
	}
}

func failedOutcome(status domain.ReplayStatus, reason string) *domain.ReplayOutcome {
	return &domain.ReplayOutcome{Status: status, ReasonCodes: []string{reason}, FailureReasonCode: reason}
}

// executeReplay runs one claimed session to a terminal state.
func (s *Service) executeReplay(ctx context.Context, rs *domain.ReplaySession) error {
	ctx, span := tracer.Start(ctx, "replay.execute", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("replay.session_id", rs.ReplaySessionID),
		attribute.String("replay.source_run_id", rs.SourceRunID),
		attribute.String("replay.fork_step_id", rs.ForkStepID),
	)

	outcome, err := s.planReplay(ctx, rs)
	if errors.Is(err, errReplayCancelled) {
		span.SetAttributes(attribute.String("replay.status", api.ReplayStatusFailedExecution))
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if _, failErr := s.store.FailReplaySession(ctx, rs.ReplaySessionID, domain.ReplayStatusFailedExecution, api.ReasonExecutionError, s.now()); failErr != nil {
			return fmt.Errorf("failed to mark replay session failed: %w", failErr)
		}
		return err
	}

	committed, err := s.store.CommitReplayOutcome(ctx, rs.ReplaySessionID, outcome, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if _, failErr := s.store.FailReplaySession(ctx, rs.ReplaySessionID, domain.ReplayStatusFailedExecution, api.ReasonExecutionError, s.now()); failErr != nil {
			return fmt.Errorf("failed to mark replay session failed: %w", failErr)
		}
		return fmt.Errorf("failed to commit replay outcome: %w", err)
	}
	if committed {
		span.SetAttributes(
			attribute.String("replay.status", string(outcome.Status)),
			attribute.Int("replay.events", len(outcome.Events)),
		)
	}
	return nil
}

// planReplay loads the source timeline and derives the outcome.
func (s *Service) planReplay(ctx context.Context, rs *domain.ReplaySession) (*domain.ReplayOutcome, error) {
	source, err := s.store.GetRun(ctx, rs.SourceRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to get source run: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("source run %s disappeared", rs.SourceRunID)
	}
	events, err := s.store.ListEvents(ctx, source.RunID, domain.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list source events: %w", err)
	}

	return deriveReplay(replayInput{
		session: rs,
		source:  source,
		events:  events,
		now:     s.now(),
		cancelled: func() (bool, error) {
			current, err := s.store.GetReplaySession(ctx, rs.ReplaySessionID)
			if err != nil {
				return false, err
			}
			return current == nil || current.CancelRequested, nil
		},
	})
}
