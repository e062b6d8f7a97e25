package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// DefaultPollInterval is the fixed delay between replay status polls.
const DefaultPollInterval = 1500 * time.Millisecond

var tracer = otel.Tracer("github.com/xiaot623/gogo/flightdeck/client")

// Phase is the client's view of a replay session.
type Phase int

const (
	PhaseInProgress Phase = iota
	PhaseSucceeded
	PhaseFailed
)

// Terminal reports whether polling should stop.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

func (p Phase) String() string {
	switch p {
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "in_progress"
	}
}

// Classify maps a status to a phase using its fields rather than the status
// string, so statuses this client has never seen stay in progress. A session
// carrying both a derived run and a failure reason is a domain violation.
func Classify(s *api.ReplayStatus) (Phase, error) {
	hasRun := s.DerivedRunID != nil && *s.DerivedRunID != ""
	hasFailure := s.FailureReasonCode != nil && *s.FailureReasonCode != ""
	switch {
	case hasRun && hasFailure:
		return PhaseInProgress, &DomainViolation{
			Entity: "replay session",
			ID:     s.ReplaySessionID,
			Reason: "both derived_run_id and failure_reason_code are set",
		}
	case hasFailure:
		return PhaseFailed, nil
	case hasRun:
		return PhaseSucceeded, nil
	}
	return PhaseInProgress, nil
}

// StatusSource fetches replay status. *Client and *CachedClient satisfy it.
type StatusSource interface {
	GetReplayStatus(ctx context.Context, sessionID string) (*api.ReplayStatus, error)
}

// Observation is reported after every poll. Status is the last successfully
// fetched status and is kept when a later poll fails; Err is set when this
// poll failed.
type Observation struct {
	Status  *api.ReplayStatus
	Phase   Phase
	Attempt int
	Err     error
}

// Poller tracks one replay session at a time.
type Poller struct {
	source   StatusSource
	interval time.Duration
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval overrides DefaultPollInterval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewPoller creates a poller reading from source.
func NewPoller(source StatusSource, opts ...PollerOption) *Poller {
	p := &Poller{source: source, interval: DefaultPollInterval}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll fetches the session immediately and then once per interval until it
// reaches a terminal phase. At most one request is in flight. Retryable
// failures are reported and polling continues; a non-retryable failure or a
// domain violation stops it. When ctx ends, Poll returns ctx.Err() and any
// response still in flight is discarded.
func (p *Poller) Poll(ctx context.Context, sessionID string, onUpdate func(Observation)) (*api.ReplayStatus, error) {
	ctx, span := tracer.Start(ctx, "replay.poll", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("replay.session_id", sessionID))
	defer span.End()

	notify := func(obs Observation) {
		if onUpdate != nil {
			onUpdate(obs)
		}
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *api.ReplayStatus
	for attempt := 1; ; attempt++ {
		status, err := p.source.GetReplayStatus(ctx, sessionID)
		if ctx.Err() != nil {
			return last, ctx.Err()
		}

		obs := Observation{Status: last, Attempt: attempt}
		if err == nil && status.ReplaySessionID != sessionID {
			err = &DomainViolation{Entity: "replay session", ID: sessionID, Reason: "response describes session " + status.ReplaySessionID}
		}
		if err != nil {
			obs.Err = err
			notify(obs)
			if !IsRetryable(err) {
				span.RecordError(err)
				span.SetStatus(codes.Error, Message(err))
				return last, err
			}
		} else {
			phase, verr := Classify(status)
			if verr != nil {
				obs.Err = verr
				notify(obs)
				span.RecordError(verr)
				span.SetStatus(codes.Error, verr.Error())
				return status, verr
			}
			last = status
			obs.Status = status
			obs.Phase = phase
			notify(obs)
			if phase.Terminal() {
				span.SetAttributes(
					attribute.String("replay.status", status.Status),
					attribute.Int("replay.attempts", attempt),
				)
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Watch runs Poll in the background and streams observations. The channel
// is closed when polling stops for any reason.
func (p *Poller) Watch(ctx context.Context, sessionID string) <-chan Observation {
	out := make(chan Observation, 1)
	go func() {
		defer close(out)
		_, _ = p.Poll(ctx, sessionID, func(obs Observation) {
			select {
			case out <- obs:
			case <-ctx.Done():
			}
		})
	}()
	return out
}
