package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
	"github.com/xiaot623/gogo/flightdeck/internal/repository"
)

// WarningUnknownEventType is returned when an event type is outside the
// recorded vocabulary. The event is still stored.
const WarningUnknownEventType = "unknown_event_type"

var redactionStatuses = map[string]bool{
	api.RedactionNotRequired: true,
	api.RedactionRedacted:    true,
	api.RedactionBlocked:     true,
	api.RedactionFailed:      true,
}

// CreateRun starts recording a live run.
func (s *Service) CreateRun(ctx context.Context, req api.CreateRunRequest) (*api.CreateRunResponse, error) {
	req.AppID = strings.TrimSpace(req.AppID)
	req.Environment = strings.TrimSpace(req.Environment)
	if req.AppID == "" || req.Environment == "" {
		return nil, validation("app_id and environment are required", nil)
	}
	if req.SourceType != "" && req.SourceType != api.SourceTypeLive {
		return nil, validation("only live runs can be recorded directly", map[string]interface{}{"source_type": req.SourceType})
	}

	run := &domain.Run{
		RunID:          newID("run_"),
		TraceID:        newID("trc_"),
		AppID:          req.AppID,
		Environment:    req.Environment,
		Status:         domain.RunStatusRunning,
		SourceType:     domain.SourceTypeLive,
		StartedAt:      s.now(),
		RetentionClass: req.RetentionClass,
	}
	if run.RetentionClass == "" {
		run.RetentionClass = "standard"
	}
	if len(req.Tags) > 0 {
		tags, err := json.Marshal(req.Tags)
		if err != nil {
			return nil, validation("tags must be a JSON object", nil)
		}
		run.Tags = tags
	}

	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	log.Debugf("run created: %s (app: %s)", run.RunID, run.AppID)

	return &api.CreateRunResponse{RunID: run.RunID, TraceID: run.TraceID, Status: string(run.Status)}, nil
}

// IngestEvent appends one event to a running run. Retries with the same
// idempotency key return the originally stored event.
func (s *Service) IngestEvent(ctx context.Context, runID string, req api.IngestEventRequest) (*api.IngestEventResponse, error) {
	ev := req.Event
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return nil, validation("idempotency_key is required", nil)
	}
	if ev.RunID != "" && ev.RunID != runID {
		return nil, validation("event run_id does not match path", map[string]interface{}{"run_id": ev.RunID})
	}
	if ev.StepID == "" || ev.EventType == "" {
		return nil, validation("step_id and event_type are required", nil)
	}
	if ev.SequenceNo < 0 {
		return nil, validation("sequence_no must not be negative", map[string]interface{}{"sequence_no": ev.SequenceNo})
	}
	if ev.DeterminismMode == "" {
		ev.DeterminismMode = api.ModeLive
	}
	if !ev.DeterminismMode.Valid() {
		return nil, validation("invalid determinism_mode", map[string]interface{}{"determinism_mode": string(ev.DeterminismMode)})
	}
	if ev.RedactionStatus == "" {
		ev.RedactionStatus = api.RedactionNotRequired
	}
	if !redactionStatuses[ev.RedactionStatus] {
		return nil, validation("invalid redaction_status", map[string]interface{}{"redaction_status": ev.RedactionStatus})
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, notFound("run", runID)
	}
	if ev.TraceID != "" && ev.TraceID != run.TraceID {
		return nil, validation("event trace_id does not match run", map[string]interface{}{"trace_id": ev.TraceID})
	}

	if existing, err := s.store.GetEventByIdempotencyKey(ctx, runID, req.IdempotencyKey); err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	} else if existing != nil {
		return &api.IngestEventResponse{EventID: existing.EventID, Accepted: false, ValidationWarnings: []string{}}, nil
	}

	if run.Status != domain.RunStatusRunning {
		return nil, conflict("run is already finalized", map[string]interface{}{"run_id": runID, "status": string(run.Status)})
	}

	warnings := []string{}
	eventType := domain.EventType(ev.EventType)
	if !eventType.Known() {
		warnings = append(warnings, WarningUnknownEventType)
		log.Warnf("unknown event type %q accepted for run %s", ev.EventType, runID)
	}

	payload := []byte(`{}`)
	if ev.Payload != nil {
		if payload, err = json.Marshal(ev.Payload); err != nil {
			return nil, validation("payload must be a JSON object", nil)
		}
	}
	ts := ev.TimestampUTC.UTC()
	if ev.TimestampUTC.IsZero() {
		ts = s.now()
	}

	event := &domain.Event{
		EventID:         newID("evt_"),
		RunID:           runID,
		StepID:          ev.StepID,
		ParentStepID:    ev.ParentStepID,
		SequenceNo:      ev.SequenceNo,
		EventType:       eventType,
		Timestamp:       ts,
		DeterminismMode: ev.DeterminismMode,
		RedactionStatus: ev.RedactionStatus,
		Payload:         payload,
		IdempotencyKey:  req.IdempotencyKey,
		ActorType:       domain.ActorSDK,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create event: %w", err)
		}
		// A concurrent retry may have won the insert.
		if existing, lookupErr := s.store.GetEventByIdempotencyKey(ctx, runID, req.IdempotencyKey); lookupErr == nil && existing != nil {
			return &api.IngestEventResponse{EventID: existing.EventID, Accepted: false, ValidationWarnings: []string{}}, nil
		}
		return nil, conflict("sequence_no already recorded for run", map[string]interface{}{"run_id": runID, "sequence_no": ev.SequenceNo})
	}

	return &api.IngestEventResponse{EventID: event.EventID, Accepted: true, ValidationWarnings: warnings}, nil
}

// FinalizeRun records a run's final status. Finalizing again with the same
// status is a no-op.
func (s *Service) FinalizeRun(ctx context.Context, runID string, req api.FinalizeRunRequest) (*api.FinalizeRunResponse, error) {
	status := domain.RunStatus(req.FinalStatus)
	if !status.Terminal() {
		return nil, validation("final_status must be success or failed", map[string]interface{}{"final_status": req.FinalStatus})
	}

	updated, err := s.store.FinalizeRun(ctx, runID, status, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to finalize run: %w", err)
	}
	if !updated {
		run, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run: %w", err)
		}
		if run == nil {
			return nil, notFound("run", runID)
		}
		if run.Status != status {
			return nil, conflict("run is already finalized", map[string]interface{}{"run_id": runID, "status": string(run.Status)})
		}
	}
	return &api.FinalizeRunResponse{RunID: runID, Status: string(status)}, nil
}
