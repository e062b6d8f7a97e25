package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
	"github.com/xiaot623/gogo/flightdeck/internal/policy"
)

// CreateReplay admits a fork-and-replay request and queues it for the worker.
func (s *Service) CreateReplay(ctx context.Context, req api.ReplayRequest) (*api.CreateReplayResponse, error) {
	req.SourceRunID = strings.TrimSpace(req.SourceRunID)
	req.ForkStepID = strings.TrimSpace(req.ForkStepID)
	if req.SourceRunID == "" {
		return nil, validation("source_run_id is required", nil)
	}

	prefs := req.ReplayPreferences
	if len(prefs.PreferredModes) == 0 {
		prefs.PreferredModes = api.DefaultPreferredModes()
	}
	modes := make([]string, 0, len(prefs.PreferredModes))
	for _, m := range prefs.PreferredModes {
		if !m.Valid() {
			return nil, validation("invalid preferred mode", map[string]interface{}{"mode": string(m)})
		}
		modes = append(modes, string(m))
	}

	source, err := s.store.GetRun(ctx, req.SourceRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to get source run: %w", err)
	}
	if source == nil {
		return nil, notFound("run", req.SourceRunID)
	}

	forkStepExists := false
	if req.ForkStepID != "" {
		if forkStepExists, err = s.store.StepExists(ctx, source.RunID, req.ForkStepID); err != nil {
			return nil, fmt.Errorf("failed to look up fork step: %w", err)
		}
	}

	input := policy.Input{
		SourceRunStatus: string(source.Status),
		ForkStepID:      req.ForkStepID,
		ForkStepExists:  forkStepExists,
		PreferredModes:  modes,
	}
	if ro := req.OverrideProfile.RetrieverOverride; ro != nil {
		input.RetrieverTopK = ro.TopK
	}
	reasons, err := s.policyEngine.Evaluate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate replay policy: %w", err)
	}
	if len(reasons) > 0 {
		return nil, validation("replay request rejected", map[string]interface{}{"reasons": reasons})
	}

	session := &domain.ReplaySession{
		ReplaySessionID: newID("rps_"),
		SourceRunID:     source.RunID,
		ForkStepID:      req.ForkStepID,
		OverrideProfile: req.OverrideProfile,
		Preferences:     prefs,
		Status:          domain.ReplayStatusPending,
		ReasonCodes:     []string{},
		CreatedAt:       s.now(),
	}
	if err := s.store.CreateReplaySession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create replay session: %w", err)
	}
	log.Infof("replay session %s queued (source run: %s, fork step: %q)", session.ReplaySessionID, source.RunID, req.ForkStepID)
	s.publish(session)

	return &api.CreateReplayResponse{ReplaySessionID: session.ReplaySessionID, Status: string(session.Status)}, nil
}

// GetReplay returns the current status of a replay session.
func (s *Service) GetReplay(ctx context.Context, sessionID string) (*api.ReplayStatus, error) {
	rs, err := s.store.GetReplaySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get replay session: %w", err)
	}
	if rs == nil {
		return nil, notFound("replay_session", sessionID)
	}
	status := rs.ToAPI()
	return &status, nil
}

// CancelReplay requests cancellation. Sessions that already finished keep
// their outcome; the returned status is whatever the session ended up in.
func (s *Service) CancelReplay(ctx context.Context, sessionID string) (*api.CancelReplayResponse, error) {
	at := s.now()
	rs, err := s.store.RequestReplayCancel(ctx, sessionID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel replay session: %w", err)
	}
	if rs == nil {
		return nil, notFound("replay_session", sessionID)
	}
	if rs.FailureReasonCode == api.ReasonCancelRequested {
		log.Infof("replay session %s cancelled", sessionID)
		s.publish(rs)
	}
	return &api.CancelReplayResponse{Status: string(rs.Status), CancelledAtUTC: at}, nil
}
