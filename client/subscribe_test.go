package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/flightdeck/api"
)

func streamServer(t *testing.T, frames ...interface{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/replays/rps_1/stream", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			raw, err := json.Marshal(frame)
			require.NoError(t, err)
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
		conn.ReadMessage()
	}))
}

func successFrame(t *testing.T, status *api.ReplayStatus) *api.Envelope {
	env, err := api.Success("req_ws", status)
	require.NoError(t, err)
	return env
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/api/v1/replays/rps_1/stream", New("http://localhost:8080").StreamURL("rps_1"))
	assert.Equal(t, "wss://fd.example.com/api/v1/replays/rps_1/stream", New("https://fd.example.com/").StreamURL("rps_1"))
}

func TestSubscribe_FollowsToTerminal(t *testing.T) {
	srv := streamServer(t,
		successFrame(t, replayStatus(api.ReplayStatusPending, "", "")),
		successFrame(t, replayStatus(api.ReplayStatusRunning, "", "")),
		successFrame(t, replayStatus(api.ReplayStatusCompletedExact, "run_d", "")),
	)
	defer srv.Close()

	var phases []Phase
	final, err := New(srv.URL).Subscribe(context.Background(), "rps_1", func(obs Observation) {
		phases = append(phases, obs.Phase)
	})
	require.NoError(t, err)
	assert.Equal(t, "run_d", *final.DerivedRunID)
	assert.Equal(t, []Phase{PhaseInProgress, PhaseInProgress, PhaseSucceeded}, phases)
}

func TestSubscribe_ErrorFrameStops(t *testing.T) {
	srv := streamServer(t, api.Failure("req_ws", api.ErrorBody{Code: api.CodeNotFound, Message: "replay session not found"}))
	defer srv.Close()

	_, err := New(srv.URL).Subscribe(context.Background(), "rps_1", nil)
	var appErr *ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "replay session not found", Message(err))
}

func TestSubscribe_DialFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.URL).Subscribe(context.Background(), "rps_1", nil)
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestSubscribe_SkipsStalePending(t *testing.T) {
	srv := streamServer(t,
		successFrame(t, replayStatus(api.ReplayStatusRunning, "", "")),
		successFrame(t, replayStatus(api.ReplayStatusPending, "", "")),
		successFrame(t, replayStatus(api.ReplayStatusCompletedMixed, "run_d", "")),
	)
	defer srv.Close()

	var seen []string
	final, err := New(srv.URL).Subscribe(context.Background(), "rps_1", func(obs Observation) {
		seen = append(seen, obs.Status.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, api.ReplayStatusCompletedMixed, final.Status)
	assert.Equal(t, []string{api.ReplayStatusRunning, api.ReplayStatusCompletedMixed}, seen)
}
