package service

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/config"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
	"github.com/xiaot623/gogo/flightdeck/internal/policy"
	"github.com/xiaot623/gogo/flightdeck/internal/repository"
)

// Notifier receives every replay session status transition.
type Notifier interface {
	PublishReplayStatus(status api.ReplayStatus)
}

type Service struct {
	store        store.Store
	notifier     Notifier
	config       *config.Config
	policyEngine *policy.Engine
	now          func() time.Time
}

func New(store store.Store, notifier Notifier, cfg *config.Config, policyEngine *policy.Engine) *Service {
	return &Service{
		store:        store,
		notifier:     notifier,
		config:       cfg,
		policyEngine: policyEngine,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publish(rs *domain.ReplaySession) {
	if s.notifier == nil || rs == nil {
		return
	}
	s.notifier.PublishReplayStatus(rs.ToAPI())
}

func (s *Service) workerBatch() int {
	if s.config == nil || s.config.ReplayWorkerBatch <= 0 {
		return 10
	}
	return s.config.ReplayWorkerBatch
}

func (s *Service) workerInterval() time.Duration {
	if s.config == nil || s.config.ReplayWorkerInterval <= 0 {
		return 500 * time.Millisecond
	}
	return s.config.ReplayWorkerInterval
}

func newID(prefix string) string {
	return prefix + uuid8()
}

// Ping checks that storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
