package client

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// SortEvents orders events by ascending sequence_no in place.
func SortEvents(events []api.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].SequenceNo < events[j].SequenceNo
	})
}

// ValidateTimeline checks a sorted timeline: every event belongs to runID,
// sequence numbers are unique and every determinism mode is known.
func ValidateTimeline(runID string, events []api.Event) error {
	for i, ev := range events {
		if ev.RunID != runID {
			return &DomainViolation{Entity: "event", ID: ev.EventID, Reason: fmt.Sprintf("belongs to run %s, not %s", ev.RunID, runID)}
		}
		if !ev.DeterminismMode.Valid() {
			return &DomainViolation{Entity: "event", ID: ev.EventID, Reason: fmt.Sprintf("unknown determinism_mode %q", ev.DeterminismMode)}
		}
		if i > 0 && events[i-1].SequenceNo >= ev.SequenceNo {
			return &DomainViolation{Entity: "run", ID: runID, Reason: fmt.Sprintf("duplicate sequence_no %d", ev.SequenceNo)}
		}
	}
	return nil
}

// ForkPoint returns the first event recorded for stepID.
func ForkPoint(events []api.Event, stepID string) (api.Event, bool) {
	for _, ev := range events {
		if ev.StepID == stepID {
			return ev, true
		}
	}
	return api.Event{}, false
}

// FixedHistory returns the events that precede the fork point and are
// therefore reused unchanged by a replay. Without a fork step nothing is fixed.
func FixedHistory(events []api.Event, stepID string) []api.Event {
	if stepID == "" {
		return nil
	}
	fork, ok := ForkPoint(events, stepID)
	if !ok {
		return nil
	}
	var fixed []api.Event
	for _, ev := range events {
		if ev.SequenceNo < fork.SequenceNo {
			fixed = append(fixed, ev)
		}
	}
	return fixed
}

// ModeCounts tallies events per determinism mode.
func ModeCounts(events []api.Event) map[api.DeterminismMode]int {
	counts := make(map[api.DeterminismMode]int)
	for _, ev := range events {
		counts[ev.DeterminismMode]++
	}
	return counts
}

// RunQuery is a local search over already fetched runs.
type RunQuery struct {
	Text        string
	Status      string
	SourceType  string
	Environment string
}

// FilterRuns keeps the runs matching every non-empty field of q. Text is
// matched case-insensitively against run_id, trace_id and app_id.
func FilterRuns(runs []api.RunSummary, q RunQuery) []api.RunSummary {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]api.RunSummary, 0, len(runs))
	for _, run := range runs {
		if q.Status != "" && run.Status != q.Status {
			continue
		}
		if q.SourceType != "" && run.SourceType != q.SourceType {
			continue
		}
		if q.Environment != "" && run.Environment != q.Environment {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(run.RunID), text) &&
			!strings.Contains(strings.ToLower(run.TraceID), text) &&
			!strings.Contains(strings.ToLower(run.AppID), text) {
			continue
		}
		out = append(out, run)
	}
	return out
}
