package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// ListRunsOptions narrows GET /runs. Zero values are not sent.
type ListRunsOptions struct {
	AppID       string
	Environment string
	Status      string
	SourceType  string
	From        time.Time
	To          time.Time
	PageSize    int
	PageToken   string
}

func (o ListRunsOptions) values() url.Values {
	q := url.Values{}
	setIf(q, "app_id", o.AppID)
	setIf(q, "environment", o.Environment)
	setIf(q, "status", o.Status)
	setIf(q, "source_type", o.SourceType)
	if !o.From.IsZero() {
		q.Set("from_utc", o.From.UTC().Format(time.RFC3339Nano))
	}
	if !o.To.IsZero() {
		q.Set("to_utc", o.To.UTC().Format(time.RFC3339Nano))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	setIf(q, "page_token", o.PageToken)
	return q
}

// ListEventsOptions narrows GET /runs/{run_id}/events. Zero values are not sent.
type ListEventsOptions struct {
	EventType    string
	StepID       string
	SequenceFrom *int64
	SequenceTo   *int64
	PageSize     int
	PageToken    string
}

func (o ListEventsOptions) values() url.Values {
	q := url.Values{}
	setIf(q, "event_type", o.EventType)
	setIf(q, "step_id", o.StepID)
	if o.SequenceFrom != nil {
		q.Set("sequence_from", strconv.FormatInt(*o.SequenceFrom, 10))
	}
	if o.SequenceTo != nil {
		q.Set("sequence_to", strconv.FormatInt(*o.SequenceTo, 10))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	setIf(q, "page_token", o.PageToken)
	return q
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

// ListRuns fetches one page of run summaries.
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOptions) (*api.ListRunsResponse, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/runs", opts.values(), &raw); err != nil {
		return nil, err
	}
	if err := requireKeys(raw, "items"); err != nil {
		return nil, err
	}
	var resp api.ListRunsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Reason: "unexpected runs shape", Err: err}
	}
	for _, run := range resp.Items {
		if err := validateRun(run); err != nil {
			return nil, err
		}
	}
	if resp.Items == nil {
		resp.Items = []api.RunSummary{}
	}
	return &resp, nil
}

// ListAllRuns follows page tokens until the listing is exhausted.
func (c *Client) ListAllRuns(ctx context.Context, opts ListRunsOptions) ([]api.RunSummary, error) {
	var all []api.RunSummary
	seen := map[string]bool{opts.PageToken: true}
	for {
		page, err := c.ListRuns(ctx, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.NextPageToken == nil || *page.NextPageToken == "" {
			return all, nil
		}
		if err := checkPageToken(seen, *page.NextPageToken); err != nil {
			return nil, err
		}
		opts.PageToken = *page.NextPageToken
	}
}

// checkPageToken records token and fails if the server already handed it out.
func checkPageToken(seen map[string]bool, token string) error {
	if seen[token] {
		return &ProtocolError{Reason: "next_page_token repeated: " + token}
	}
	seen[token] = true
	return nil
}

// GetRun fetches one run and its per-event-type counters.
func (c *Client) GetRun(ctx context.Context, runID string) (*api.RunDetailResponse, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/runs/"+url.PathEscape(runID), nil, &raw); err != nil {
		return nil, err
	}
	if err := requireKeys(raw, "run", "counters"); err != nil {
		return nil, err
	}
	var resp api.RunDetailResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Reason: "unexpected run shape", Err: err}
	}
	if err := validateRun(resp.Run); err != nil {
		return nil, err
	}
	if resp.Run.RunID != runID {
		return nil, &DomainViolation{Entity: "run", ID: runID, Reason: "response describes run " + resp.Run.RunID}
	}
	for key, n := range resp.Counters {
		if n < 0 {
			return nil, &DomainViolation{Entity: "run", ID: runID, Reason: "negative counter " + key}
		}
	}
	return &resp, nil
}

// ListRunEvents fetches one page of a run's timeline. Items are returned in
// ascending sequence_no order regardless of the order received.
func (c *Client) ListRunEvents(ctx context.Context, runID string, opts ListEventsOptions) (*api.ListEventsResponse, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/runs/"+url.PathEscape(runID)+"/events", opts.values(), &raw); err != nil {
		return nil, err
	}
	if err := requireKeys(raw, "items"); err != nil {
		return nil, err
	}
	var resp api.ListEventsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Reason: "unexpected events shape", Err: err}
	}
	for _, ev := range resp.Items {
		if ev.EventID == "" || ev.StepID == "" || ev.EventType == "" {
			return nil, &ProtocolError{Reason: "event is missing event_id, step_id or event_type"}
		}
	}
	SortEvents(resp.Items)
	if err := ValidateTimeline(runID, resp.Items); err != nil {
		return nil, err
	}
	if resp.Items == nil {
		resp.Items = []api.Event{}
	}
	return &resp, nil
}

// ListAllRunEvents follows page tokens and returns the whole timeline.
func (c *Client) ListAllRunEvents(ctx context.Context, runID string, opts ListEventsOptions) ([]api.Event, error) {
	var all []api.Event
	seen := map[string]bool{opts.PageToken: true}
	for {
		page, err := c.ListRunEvents(ctx, runID, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		if err := checkPageToken(seen, *page.NextPageToken); err != nil {
			return nil, err
		}
		opts.PageToken = *page.NextPageToken
	}
	SortEvents(all)
	if err := ValidateTimeline(runID, all); err != nil {
		return nil, err
	}
	return all, nil
}

// VerifyLineage checks that a derived run shares its source run's trace.
// Live runs pass without a request.
func (c *Client) VerifyLineage(ctx context.Context, run api.RunSummary) error {
	if !run.IsDerived() || run.SourceRunID == nil {
		return nil
	}
	source, err := c.GetRun(ctx, *run.SourceRunID)
	if err != nil {
		return err
	}
	if source.Run.TraceID != run.TraceID {
		return &DomainViolation{
			Entity: "run",
			ID:     run.RunID,
			Reason: "trace_id differs from source run " + source.Run.RunID,
		}
	}
	return nil
}

func validateRun(run api.RunSummary) error {
	if run.RunID == "" || run.TraceID == "" || run.SourceType == "" || run.StartedAtUTC.IsZero() {
		return &ProtocolError{Reason: "run is missing run_id, trace_id, source_type or started_at_utc"}
	}
	switch {
	case run.IsDerived() && (run.SourceRunID == nil || *run.SourceRunID == ""):
		return &DomainViolation{Entity: "run", ID: run.RunID, Reason: "derived run has no source_run_id"}
	case !run.IsDerived() && run.SourceRunID != nil:
		return &DomainViolation{Entity: "run", ID: run.RunID, Reason: "live run has a source_run_id"}
	}
	return nil
}
