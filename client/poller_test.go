package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/flightdeck/api"
)

type scriptedStep struct {
	status *api.ReplayStatus
	err    error
	wait   <-chan struct{}
}

// scriptedSource replays a fixed sequence of responses; the last one repeats.
type scriptedSource struct {
	mu       sync.Mutex
	steps    []scriptedStep
	calls    int
	inFlight int
	maxInFly int
}

func (s *scriptedSource) GetReplayStatus(ctx context.Context, sessionID string) (*api.ReplayStatus, error) {
	s.mu.Lock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxInFly {
		s.maxInFly = s.inFlight
	}
	step := s.steps[i]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if step.wait != nil {
		<-step.wait
	}
	return step.status, step.err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func replayStatus(status string, derived, failure string) *api.ReplayStatus {
	s := &api.ReplayStatus{ReplaySessionID: "rps_1", Status: status, ReasonCodes: []string{}}
	if derived != "" {
		s.DerivedRunID = &derived
	}
	if failure != "" {
		s.FailureReasonCode = &failure
	}
	return s
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status *api.ReplayStatus
		want   Phase
	}{
		{"pending", replayStatus(api.ReplayStatusPending, "", ""), PhaseInProgress},
		{"running", replayStatus(api.ReplayStatusRunning, "", ""), PhaseInProgress},
		{"unknown status", replayStatus("warming_up", "", ""), PhaseInProgress},
		{"completed", replayStatus(api.ReplayStatusCompletedExact, "run_d", ""), PhaseSucceeded},
		{"unknown status with run", replayStatus("completed_partially", "run_d", ""), PhaseSucceeded},
		{"failed", replayStatus(api.ReplayStatusFailedValidation, "", "source_run_empty"), PhaseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phase, err := Classify(tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.want, phase)
			assert.Equal(t, tt.want.Terminal(), tt.want != PhaseInProgress)
		})
	}
}

func TestClassify_BothOutcomesIsViolation(t *testing.T) {
	_, err := Classify(replayStatus(api.ReplayStatusCompletedExact, "run_d", "execution_error"))
	var violation *DomainViolation
	assert.True(t, errors.As(err, &violation))
}

func TestPoll_StopsOnTerminal(t *testing.T) {
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusPending, "", "")},
		{status: replayStatus(api.ReplayStatusRunning, "", "")},
		{status: replayStatus(api.ReplayStatusCompletedMixed, "run_d", "")},
	}}

	var seen []Observation
	final, err := NewPoller(src, WithInterval(5*time.Millisecond)).Poll(context.Background(), "rps_1", func(obs Observation) {
		seen = append(seen, obs)
	})
	require.NoError(t, err)
	assert.Equal(t, "run_d", *final.DerivedRunID)
	assert.Equal(t, 3, src.Calls())
	require.Len(t, seen, 3)
	assert.Equal(t, PhaseSucceeded, seen[2].Phase)
	assert.Equal(t, 1, src.maxInFly)
}

func TestPoll_FailedIsTerminal(t *testing.T) {
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusFailedExecution, "", api.ReasonCancelRequested)},
	}}
	final, err := NewPoller(src, WithInterval(time.Millisecond)).Poll(context.Background(), "rps_1", nil)
	require.NoError(t, err)
	assert.Equal(t, api.ReasonCancelRequested, *final.FailureReasonCode)
	assert.Equal(t, 1, src.Calls())
}

func TestPoll_PendingThenModelUnavailable(t *testing.T) {
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusPending, "", "")},
		{status: replayStatus(api.ReplayStatusFailedExecution, "", "MODEL_UNAVAILABLE")},
	}}

	var phases []Phase
	final, err := NewPoller(src, WithInterval(time.Millisecond)).Poll(context.Background(), "rps_1", func(obs Observation) {
		phases = append(phases, obs.Phase)
	})
	require.NoError(t, err)
	assert.Nil(t, final.DerivedRunID)
	require.NotNil(t, final.FailureReasonCode)
	assert.Equal(t, "MODEL_UNAVAILABLE", *final.FailureReasonCode)
	assert.Equal(t, 2, src.Calls())
	assert.Equal(t, []Phase{PhaseInProgress, PhaseFailed}, phases)
}

func TestPoll_TransientErrorKeepsLastStatusAndContinues(t *testing.T) {
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusRunning, "", "")},
		{err: &TransportError{Method: "GET", URL: "x", Err: errors.New("connection reset")}},
		{status: replayStatus(api.ReplayStatusCompletedExact, "run_d", "")},
	}}

	var seen []Observation
	_, err := NewPoller(src, WithInterval(time.Millisecond)).Poll(context.Background(), "rps_1", func(obs Observation) {
		seen = append(seen, obs)
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Error(t, seen[1].Err)
	require.NotNil(t, seen[1].Status)
	assert.Equal(t, api.ReplayStatusRunning, seen[1].Status.Status)
}

func TestPoll_NonRetryableErrorAborts(t *testing.T) {
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusRunning, "", "")},
		{err: &ApplicationError{StatusCode: 404, Code: api.CodeNotFound, Message: "replay session not found"}},
		{status: replayStatus(api.ReplayStatusCompletedExact, "run_d", "")},
	}}
	last, err := NewPoller(src, WithInterval(time.Millisecond)).Poll(context.Background(), "rps_1", nil)

	var appErr *ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, api.ReplayStatusRunning, last.Status)
	assert.Equal(t, 2, src.Calls())
}

func TestPoll_ViolationStops(t *testing.T) {
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusCompletedExact, "run_d", "execution_error")},
	}}
	_, err := NewPoller(src, WithInterval(time.Millisecond)).Poll(context.Background(), "rps_1", nil)
	var violation *DomainViolation
	assert.True(t, errors.As(err, &violation))
}

func TestPoll_ForeignSessionIsViolation(t *testing.T) {
	other := replayStatus(api.ReplayStatusRunning, "", "")
	other.ReplaySessionID = "rps_other"
	src := &scriptedSource{steps: []scriptedStep{{status: other}}}

	_, err := NewPoller(src, WithInterval(time.Millisecond)).Poll(context.Background(), "rps_1", nil)
	var violation *DomainViolation
	assert.True(t, errors.As(err, &violation))
}

func TestPoll_CancelDiscardsLateResponse(t *testing.T) {
	release := make(chan struct{})
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusCompletedExact, "run_d", ""), wait: release},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var observed int
	done := make(chan error, 1)
	go func() {
		_, err := NewPoller(src).Poll(ctx, "rps_1", func(Observation) { observed++ })
		done <- err
	}()

	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poll did not stop after cancel")
	}
	assert.Zero(t, observed)
}

func TestPoll_WaitsForInterval(t *testing.T) {
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusRunning, "", "")},
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	_, err := NewPoller(src, WithInterval(50*time.Millisecond)).Poll(ctx, "rps_1", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, src.Calls(), 2)
	assert.LessOrEqual(t, src.Calls(), 3)
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	p := NewPoller(&scriptedSource{})
	assert.Equal(t, 1500*time.Millisecond, p.interval)
}

func TestWatch_ClosesAfterTerminal(t *testing.T) {
	src := &scriptedSource{steps: []scriptedStep{
		{status: replayStatus(api.ReplayStatusRunning, "", "")},
		{status: replayStatus(api.ReplayStatusCompletedSimulated, "run_d", "")},
	}}

	var phases []Phase
	for obs := range NewPoller(src, WithInterval(time.Millisecond)).Watch(context.Background(), "rps_1") {
		phases = append(phases, obs.Phase)
	}
	assert.Equal(t, []Phase{PhaseInProgress, PhaseSucceeded}, phases)
}
