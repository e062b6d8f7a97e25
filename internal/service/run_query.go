package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
)

const (
	defaultRunPageSize   = 50
	maxRunPageSize       = 200
	defaultEventPageSize = 200
	maxEventPageSize     = 500
)

// RunQuery holds the filters of a run listing.
type RunQuery struct {
	AppID       string
	Environment string
	Status      string
	SourceType  string
	From        *time.Time
	To          *time.Time
	PageSize    int
	PageToken   string
}

// EventQuery holds the filters of an event listing.
type EventQuery struct {
	EventType    string
	StepID       string
	SequenceFrom *int64
	SequenceTo   *int64
	PageSize     int
	PageToken    string
}

func clampPageSize(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ListRuns lists runs newest first.
func (s *Service) ListRuns(ctx context.Context, q RunQuery) (*api.ListRunsResponse, error) {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, validation("from_utc must not be after to_utc", nil)
	}
	pageSize := clampPageSize(q.PageSize, defaultRunPageSize, maxRunPageSize)

	filter := domain.RunFilter{
		AppID:       q.AppID,
		Environment: q.Environment,
		Status:      q.Status,
		SourceType:  q.SourceType,
		From:        q.From,
		To:          q.To,
		Limit:       pageSize + 1,
	}
	if q.PageToken != "" {
		before, runID, err := decodeRunToken(q.PageToken)
		if err != nil {
			return nil, validation("invalid page_token", map[string]interface{}{"page_token": q.PageToken})
		}
		filter.Before = &before
		filter.BeforeRunID = runID
	}

	runs, err := s.store.ListRuns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	resp := &api.ListRunsResponse{Items: make([]api.RunSummary, 0, len(runs))}
	if len(runs) > pageSize {
		runs = runs[:pageSize]
		last := runs[len(runs)-1]
		token := encodeRunToken(last.StartedAt, last.RunID)
		resp.NextPageToken = &token
	}
	for i := range runs {
		resp.Items = append(resp.Items, runs[i].ToAPI())
	}
	return resp, nil
}

// GetRun returns a run with its event counters.
func (s *Service) GetRun(ctx context.Context, runID string) (*api.RunDetailResponse, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, notFound("run", runID)
	}

	counters, err := s.store.CountEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	return &api.RunDetailResponse{Run: run.ToAPI(), Counters: counters}, nil
}

// ListEvents lists a run's events in ascending sequence order.
func (s *Service) ListEvents(ctx context.Context, runID string, q EventQuery) (*api.ListEventsResponse, error) {
	if q.SequenceFrom != nil && q.SequenceTo != nil && *q.SequenceFrom > *q.SequenceTo {
		return nil, validation("sequence_from must not exceed sequence_to", nil)
	}

	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, notFound("run", runID)
	}

	pageSize := clampPageSize(q.PageSize, defaultEventPageSize, maxEventPageSize)
	filter := domain.EventFilter{
		EventType:    q.EventType,
		StepID:       q.StepID,
		SequenceFrom: q.SequenceFrom,
		SequenceTo:   q.SequenceTo,
		Limit:        pageSize + 1,
	}
	if q.PageToken != "" {
		after, err := decodeEventToken(q.PageToken)
		if err != nil {
			return nil, validation("invalid page_token", map[string]interface{}{"page_token": q.PageToken})
		}
		filter.After = &after
	}

	events, err := s.store.ListEvents(ctx, runID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	resp := &api.ListEventsResponse{Items: make([]api.Event, 0, len(events))}
	if len(events) > pageSize {
		events = events[:pageSize]
		token := encodeEventToken(events[len(events)-1].SequenceNo)
		resp.NextPageToken = &token
	}
	for i := range events {
		resp.Items = append(resp.Items, events[i].ToAPI())
	}
	return resp, nil
}

func encodeRunToken(startedAt time.Time, runID string) string {
	raw := strconv.FormatInt(startedAt.UTC().UnixNano(), 10) + ":" + runID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeRunToken(token string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	nanos, runID, ok := strings.Cut(string(raw), ":")
	if !ok || runID == "" {
		return time.Time{}, "", fmt.Errorf("malformed run page token")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, n).UTC(), runID, nil
}

func encodeEventToken(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

func decodeEventToken(token string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}
