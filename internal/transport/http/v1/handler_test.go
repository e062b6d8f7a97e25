package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/config"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
	"github.com/xiaot623/gogo/flightdeck/internal/hub"
	"github.com/xiaot623/gogo/flightdeck/internal/policy"
	"github.com/xiaot623/gogo/flightdeck/internal/repository"
	"github.com/xiaot623/gogo/flightdeck/internal/service"
	"github.com/xiaot623/gogo/flightdeck/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *store.SQLiteStore) {
	t.Helper()
	db := testutil.NewTestSQLiteStore(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	h := hub.NewHub()
	cfg := &config.Config{ReplayWorkerBatch: 10}
	return NewHandler(service.New(db, h, cfg, engine), h, cfg), db
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) api.Envelope {
	t.Helper()
	var env api.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if out != nil && env.Status == api.StatusSuccess {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func TestListRuns(t *testing.T) {
	e := echo.New()
	handler, db := newTestHandler(t)
	testutil.SeedRun(t, db, "run_1", domain.RunStatusSuccess)

	t.Run("Lists Runs", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?page_size=10", nil)
		req.Header.Set(echo.HeaderXRequestID, "req_test")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		assert.NoError(t, handler.ListRuns(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var data api.ListRunsResponse
		env := decodeEnvelope(t, rec, &data)
		assert.Equal(t, "req_test", env.RequestID)
		assert.Nil(t, env.Error)
		require.Len(t, data.Items, 1)
		assert.Equal(t, "run_1", data.Items[0].RunID)
		assert.Nil(t, data.NextPageToken)
	})

	t.Run("Rejects Bad Time", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?from_utc=yesterday", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		assert.NoError(t, handler.ListRuns(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		env := decodeEnvelope(t, rec, nil)
		assert.Equal(t, api.StatusError, env.Status)
		require.NotNil(t, env.Error)
		assert.Equal(t, api.CodeValidation, env.Error.Code)
		assert.NotEmpty(t, env.RequestID)
	})
}

func TestGetRun_NotFound(t *testing.T) {
	e := echo.New()
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run_x", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/runs/:run_id")
	c.SetParamNames("run_id")
	c.SetParamValues("run_x")

	assert.NoError(t, handler.GetRun(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env := decodeEnvelope(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, api.CodeNotFound, env.Error.Code)
	assert.Equal(t, "run not found", env.Error.Message)
	assert.False(t, env.Error.Retryable)
}

func TestIngestFlow(t *testing.T) {
	e := echo.New()
	handler, _ := newTestHandler(t)

	body, _ := json.Marshal(api.CreateRunRequest{AppID: "support-bot", Environment: "dev"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	assert.NoError(t, handler.CreateRun(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created api.CreateRunResponse
	decodeEnvelope(t, rec, &created)
	require.NotEmpty(t, created.RunID)

	ingest := func(key string, seq int64) *httptest.ResponseRecorder {
		body, _ := json.Marshal(api.IngestEventRequest{
			IdempotencyKey: key,
			Event:          api.IngestEvent{StepID: "s1", SequenceNo: seq, EventType: "run_started"},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/"+created.RunID+"/events", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/api/v1/runs/:run_id/events")
		c.SetParamNames("run_id")
		c.SetParamValues(created.RunID)
		assert.NoError(t, handler.IngestEvent(c))
		return rec
	}

	assert.Equal(t, http.StatusAccepted, ingest("k1", 0).Code)
	assert.Equal(t, http.StatusOK, ingest("k1", 0).Code)
	assert.Equal(t, http.StatusConflict, ingest("k2", 0).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/runs/"+created.RunID+"/finalize", bytes.NewReader([]byte(`{"final_status":"success"}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("run_id")
	c.SetParamValues(created.RunID)
	assert.NoError(t, handler.FinalizeRun(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateReplay_PolicyRejection(t *testing.T) {
	e := echo.New()
	handler, db := newTestHandler(t)
	testutil.SeedRun(t, db, "run_live", domain.RunStatusRunning,
		testutil.SeedEvent{StepID: "s1", EventType: domain.EventTypeRunStarted})

	body, _ := json.Marshal(api.ReplayRequest{SourceRunID: "run_live"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/replays", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	assert.NoError(t, handler.CreateReplay(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, api.CodeValidation, env.Error.Code)
	assert.Equal(t, []interface{}{policy.ReasonSourceRunNotTerminal}, env.Error.Details["reasons"])
}

func TestCreateAndCancelReplay(t *testing.T) {
	e := echo.New()
	handler, db := newTestHandler(t)
	testutil.SeedRun(t, db, "run_src", domain.RunStatusSuccess,
		testutil.SeedEvent{StepID: "s1", EventType: domain.EventTypeRunStarted})

	body, _ := json.Marshal(api.ReplayRequest{SourceRunID: "run_src"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/replays", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	assert.NoError(t, handler.CreateReplay(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var created api.CreateReplayResponse
	decodeEnvelope(t, rec, &created)
	assert.Equal(t, api.ReplayStatusPending, created.Status)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/replays/"+created.ReplaySessionID+"/cancel", bytes.NewReader([]byte(`{}`)))
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("replay_session_id")
	c.SetParamValues(created.ReplaySessionID)
	assert.NoError(t, handler.CancelReplay(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var cancelled api.CancelReplayResponse
	decodeEnvelope(t, rec, &cancelled)
	assert.Equal(t, api.ReplayStatusFailedExecution, cancelled.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/replays/"+created.ReplaySessionID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("replay_session_id")
	c.SetParamValues(created.ReplaySessionID)
	assert.NoError(t, handler.GetReplay(c))

	var status api.ReplayStatus
	decodeEnvelope(t, rec, &status)
	require.NotNil(t, status.FailureReasonCode)
	assert.Equal(t, api.ReasonCancelRequested, *status.FailureReasonCode)
	assert.Equal(t, []string{api.ReasonCancelRequested}, status.ReasonCodes)
}

func TestRequireToken(t *testing.T) {
	e := echo.New()
	mw := requireToken("secret")
	next := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	tests := []struct {
		name   string
		header string
		query  string
		code   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", "", http.StatusForbidden},
		{"header", "Bearer secret", "", http.StatusNoContent},
		{"query", "", "secret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/v1/runs"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			assert.NoError(t, mw(next)(e.NewContext(req, rec)))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestErrorHandler_RendersEnvelope(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rec := httptest.NewRecorder()

	ErrorHandler(echo.ErrNotFound, e.NewContext(req, rec))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env := decodeEnvelope(t, rec, nil)
	assert.Equal(t, api.StatusError, env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, api.CodeNotFound, env.Error.Code)
	assert.Contains(t, []string{"", "null"}, string(env.Data))
}

func TestHealth(t *testing.T) {
	e := echo.New()
	handler, _ := newTestHandler(t)

	for _, check := range []func(echo.Context) error{handler.Live, handler.Ready} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		assert.NoError(t, check(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	}
}
