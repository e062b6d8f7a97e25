package service

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
)

// RunReplayWorker claims and executes pending replay sessions until ctx is done.
func (s *Service) RunReplayWorker(ctx context.Context) {
	ticker := time.NewTicker(s.workerInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processPendingReplays(ctx)
		}
	}
}

// processPendingReplays runs one claim-and-execute pass and returns how many
// sessions it claimed.
func (s *Service) processPendingReplays(ctx context.Context) int {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	claimed, err := s.store.ClaimPendingReplaySessions(claimCtx, s.workerBatch())
	cancel()
	if err != nil {
		log.Warnf("replay claim failed: %v", err)
	}

	for i := range claimed {
		rs := &claimed[i]
		s.publish(rs)

		if err := s.executeReplay(ctx, rs); err != nil {
			log.Errorf("replay session %s failed: %v", rs.ReplaySessionID, err)
		}

		final, err := s.store.GetReplaySession(ctx, rs.ReplaySessionID)
		if err != nil {
			log.Warnf("failed to reload replay session %s: %v", rs.ReplaySessionID, err)
			continue
		}
		if final != nil {
			log.Infof("replay session %s finished: %s", final.ReplaySessionID, final.Status)
			s.publish(final)
		}
	}
	return len(claimed)
}
