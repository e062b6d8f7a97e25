package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/client"
)

// Run lists runs. --search fetches every page matching the server-side
// filters and narrows them locally.
func (c *RunsListCmd) Run(g *Globals) error {
	ctx := context.Background()
	cl := g.Client()
	opts := client.ListRunsOptions{
		AppID:       c.AppID,
		Environment: c.Environment,
		Status:      c.Status,
		SourceType:  c.SourceType,
	}

	var runs []api.RunSummary
	if strings.TrimSpace(c.Search) != "" {
		all, err := cl.ListAllRuns(ctx, opts)
		if err != nil {
			return err
		}
		runs = client.FilterRuns(all, client.RunQuery{Text: c.Search})
	} else {
		opts.PageSize = c.Limit
		page, err := cl.ListRuns(ctx, opts)
		if err != nil {
			return err
		}
		runs = page.Items
	}
	if c.Limit > 0 && len(runs) > c.Limit {
		runs = runs[:c.Limit]
	}

	if g.Output == "json" {
		return g.printJSON(runs)
	}
	if len(runs) == 0 {
		g.printf("%s\n", dimStyle.Render("no runs"))
		return nil
	}
	for _, run := range runs {
		lineage := ""
		if run.SourceRunID != nil {
			lineage = dimStyle.Render(" <- " + *run.SourceRunID)
		}
		g.printf("%-14s %-8s %-10s %s/%s %s%s\n",
			run.RunID,
			run.SourceType,
			statusLabel(run.Status),
			run.AppID,
			run.Environment,
			dimStyle.Render(run.StartedAtUTC.Format(time.RFC3339)),
			lineage,
		)
	}
	return nil
}

// Run shows one run. A derived run is also checked against its source.
func (c *RunsShowCmd) Run(g *Globals) error {
	ctx := context.Background()
	cl := g.Client()

	detail, err := cl.GetRun(ctx, c.RunID)
	if err != nil {
		return err
	}
	if err := cl.VerifyLineage(ctx, detail.Run); err != nil {
		return err
	}

	if g.Output == "json" {
		return g.printJSON(detail)
	}
	run := detail.Run
	g.printf("%s %s\n", titleStyle.Render(run.RunID), statusLabel(run.Status))
	g.printf("  trace:       %s\n", run.TraceID)
	g.printf("  app:         %s (%s)\n", run.AppID, run.Environment)
	g.printf("  source:      %s\n", run.SourceType)
	if run.SourceRunID != nil {
		g.printf("  forked from: %s\n", *run.SourceRunID)
	}
	g.printf("  started:     %s\n", run.StartedAtUTC.Format(time.RFC3339))
	if run.EndedAtUTC != nil {
		g.printf("  ended:       %s (%s)\n", run.EndedAtUTC.Format(time.RFC3339), run.EndedAtUTC.Sub(run.StartedAtUTC))
	}
	g.printf("  retention:   %s\n", run.RetentionClass)

	keys := make([]string, 0, len(detail.Counters))
	for k := range detail.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		g.printf("%s\n", titleStyle.Render("counters"))
	}
	for _, k := range keys {
		g.printf("  %-24s %d\n", k, detail.Counters[k])
	}
	return nil
}

// Run prints the timeline in sequence order, one line per event.
func (c *RunsEventsCmd) Run(g *Globals) error {
	events, err := g.Client().ListAllRunEvents(context.Background(), c.RunID, client.ListEventsOptions{
		EventType: c.EventType,
		StepID:    c.StepID,
	})
	if err != nil {
		return err
	}

	if g.Output == "json" {
		return g.printJSON(events)
	}
	for _, ev := range events {
		g.printf("%4d %s %-12s %-20s %s\n",
			ev.SequenceNo,
			dimStyle.Render(ev.TimestampUTC.Format("15:04:05.000")),
			ev.StepID,
			ev.EventType,
			modeLabel(ev.DeterminismMode),
		)
	}

	counts := client.ModeCounts(events)
	parts := make([]string, 0, len(modeStyles))
	for _, mode := range []api.DeterminismMode{api.ModeLive, api.ModeExact, api.ModeCached, api.ModeSimulated} {
		if counts[mode] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", modeLabel(mode), counts[mode]))
		}
	}
	g.printf("%s %s\n", dimStyle.Render(fmt.Sprintf("%d events", len(events))), strings.Join(parts, " "))
	return nil
}
