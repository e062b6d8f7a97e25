package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/config"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
	"github.com/xiaot623/gogo/flightdeck/internal/hub"
	"github.com/xiaot623/gogo/flightdeck/internal/policy"
	"github.com/xiaot623/gogo/flightdeck/internal/service"
	"github.com/xiaot623/gogo/flightdeck/internal/testutil"
	server "github.com/xiaot623/gogo/flightdeck/internal/transport/http"
)

func newTestGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db := testutil.NewTestSQLiteStore(t)
	testutil.SeedRun(t, db, "run_src", domain.RunStatusSuccess,
		testutil.SeedEvent{StepID: "s_start", EventType: domain.EventTypeRunStarted},
		testutil.SeedEvent{StepID: "s_model", EventType: domain.EventTypeModelCalled},
		testutil.SeedEvent{StepID: "s_model", EventType: domain.EventTypeModelResult},
		testutil.SeedEvent{StepID: "s_end", EventType: domain.EventTypeFinalOutput},
	)
	testutil.SeedRun(t, db, "run_open", domain.RunStatusRunning)

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	cfg := &config.Config{
		ReplayWorkerInterval: 20 * time.Millisecond,
		ReplayWorkerBatch:    5,
		LogLevel:             "off",
	}
	h := hub.NewHub()
	go h.Run(ctx)
	svc := service.New(db, h, cfg, engine)
	go svc.RunReplayWorker(ctx)

	srv := httptest.NewServer(server.NewServer(svc, h, cfg))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	return &Globals{APIURL: srv.URL, Timeout: 5 * time.Second, Output: "text", Out: &out}, &out
}

func TestRunsList(t *testing.T) {
	g, out := newTestGlobals(t)

	require.NoError(t, (&RunsListCmd{Limit: 50}).Run(g))
	assert.Contains(t, out.String(), "run_src")
	assert.Contains(t, out.String(), "run_open")

	out.Reset()
	require.NoError(t, (&RunsListCmd{Limit: 50, Search: "SRC"}).Run(g))
	assert.Contains(t, out.String(), "run_src")
	assert.NotContains(t, out.String(), "run_open")

	out.Reset()
	g.Output = "json"
	require.NoError(t, (&RunsListCmd{Limit: 50, Status: "running"}).Run(g))
	var runs []api.RunSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run_open", runs[0].RunID)
}

func TestRunsShowAndEvents(t *testing.T) {
	g, out := newTestGlobals(t)

	require.NoError(t, (&RunsShowCmd{RunID: "run_src"}).Run(g))
	assert.Contains(t, out.String(), "trace_run_src")
	assert.Contains(t, out.String(), "support-bot (staging)")

	out.Reset()
	require.NoError(t, (&RunsEventsCmd{RunID: "run_src"}).Run(g))
	assert.Contains(t, out.String(), "model_called")
	assert.Contains(t, out.String(), "4 events")

	err := (&RunsShowCmd{RunID: "run_missing"}).Run(g)
	require.Error(t, err)
	assert.Equal(t, exitNotFound, exitCode(err))
}

func TestReplayStart(t *testing.T) {
	t.Run("Returns Immediately", func(t *testing.T) {
		g, out := newTestGlobals(t)
		g.Output = "json"

		require.NoError(t, (&ReplayStartCmd{SourceRunID: "run_src"}).Run(g))
		var created api.CreateReplayResponse
		require.NoError(t, json.Unmarshal(out.Bytes(), &created))
		assert.NotEmpty(t, created.ReplaySessionID)
		assert.Equal(t, api.ReplayStatusPending, created.Status)
	})

	t.Run("Waits For Exact Replay", func(t *testing.T) {
		g, out := newTestGlobals(t)
		g.Output = "json"

		cmd := &ReplayStartCmd{SourceRunID: "run_src", Wait: true, Interval: 20 * time.Millisecond}
		require.NoError(t, cmd.Run(g))
		var final api.ReplayStatus
		require.NoError(t, json.Unmarshal(out.Bytes(), &final))
		assert.NotNil(t, final.DerivedRunID)
		assert.Nil(t, final.FailureReasonCode)
	})

	t.Run("Fails On Simulated", func(t *testing.T) {
		g, _ := newTestGlobals(t)

		cmd := &ReplayStartCmd{
			SourceRunID:     "run_src",
			ForkStep:        "s_model",
			ModelID:         "gpt-5",
			FailOnSimulated: true,
			Watch:           true,
			Interval:        20 * time.Millisecond,
		}
		err := cmd.Run(g)
		require.Error(t, err)
		assert.Equal(t, exitSimulated, exitCode(err))
	})

	t.Run("Rejected By Policy", func(t *testing.T) {
		g, _ := newTestGlobals(t)

		err := (&ReplayStartCmd{SourceRunID: "run_open"}).Run(g)
		require.Error(t, err)
		assert.Equal(t, exitValidation, exitCode(err))
	})

	t.Run("Missing Source", func(t *testing.T) {
		g, _ := newTestGlobals(t)

		err := (&ReplayStartCmd{SourceRunID: "  "}).Run(g)
		assert.Equal(t, exitValidation, exitCode(err))
	})
}

func TestReplayStatusAndCancel(t *testing.T) {
	g, out := newTestGlobals(t)
	g.Output = "json"

	require.NoError(t, (&ReplayStartCmd{SourceRunID: "run_src"}).Run(g))
	var created api.CreateReplayResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &created))

	out.Reset()
	require.NoError(t, (&ReplayCancelCmd{SessionID: created.ReplaySessionID}).Run(g))
	var cancelled api.CancelReplayResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &cancelled))
	assert.False(t, cancelled.CancelledAtUTC.IsZero())

	out.Reset()
	require.NoError(t, (&ReplayStatusCmd{SessionID: created.ReplaySessionID}).Run(g))
	var status api.ReplayStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, created.ReplaySessionID, status.ReplaySessionID)

	err := (&ReplayStatusCmd{SessionID: "rps_missing"}).Run(g)
	assert.Equal(t, exitNotFound, exitCode(err))
}

func TestUnreachableServer(t *testing.T) {
	var out bytes.Buffer
	g := &Globals{APIURL: "http://127.0.0.1:1", Timeout: time.Second, Output: "text", Out: &out}

	err := (&RunsListCmd{Limit: 10}).Run(g)
	require.Error(t, err)
	assert.Equal(t, exitUnavailable, exitCode(err))
}
