package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/client"
)

// Run forks the source run. --fail-on-simulated implies --wait because the
// verdict needs the derived run's counters.
func (c *ReplayStartCmd) Run(g *Globals) error {
	ctx := context.Background()
	cl := g.Client()

	base := api.OverrideProfile{}
	if c.OverrideProfile != "" {
		loaded, err := loadOverrideProfile(c.OverrideProfile)
		if err != nil {
			return withExitCode(exitValidation, "override profile %s: %w", c.OverrideProfile, err)
		}
		base = loaded
	}
	if strings.TrimSpace(c.TopK) != "" {
		if _, ok := client.ParseTopK(c.TopK); !ok {
			fmt.Fprintf(os.Stderr, "%s --top-k %q is not a positive integer, retriever override skipped\n",
				dimStyle.Render("note:"), c.TopK)
		}
	}

	in := client.ForkInput{
		SourceRunID:           c.SourceRunID,
		ForkStepID:            c.ForkStep,
		PromptTemplateID:      c.PromptTemplateID,
		PromptTemplateVersion: c.PromptTemplateVersion,
		ModelProvider:         c.ModelProvider,
		ModelID:               c.ModelID,
		RetrieverTopK:         c.TopK,
	}
	req, err := in.Request(base)
	if err != nil {
		return err
	}

	created, err := cl.CreateReplay(ctx, req)
	if err != nil {
		return err
	}
	if !c.Wait && !c.Watch && !c.FailOnSimulated {
		if g.Output == "json" {
			return g.printJSON(created)
		}
		g.printf("%s %s\n", titleStyle.Render(created.ReplaySessionID), statusLabel(created.Status))
		return nil
	}

	final, err := c.follow(ctx, g, cl, created.ReplaySessionID)
	if err != nil {
		return err
	}
	if err := printReplayStatus(g, final); err != nil {
		return err
	}
	return c.verdict(ctx, cl, final)
}

// follow tracks the session to a terminal state. --watch uses the status
// stream and falls back to polling when the stream cannot be used.
func (c *ReplayStartCmd) follow(ctx context.Context, g *Globals, cl *client.Client, sessionID string) (*api.ReplayStatus, error) {
	progress := func(o client.Observation) {
		if g.Output == "json" {
			return
		}
		if o.Err != nil {
			fmt.Fprintf(os.Stderr, "%s %s\n", dimStyle.Render("retrying:"), describe(o.Err))
			return
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", dimStyle.Render(sessionID), statusLabel(o.Status.Status))
	}

	if c.Watch {
		final, err := cl.Subscribe(ctx, sessionID, progress)
		var transportErr *client.TransportError
		if err == nil || !errors.As(err, &transportErr) {
			return final, err
		}
		fmt.Fprintf(os.Stderr, "%s stream unavailable (%v), polling instead\n", dimStyle.Render("note:"), err)
	}
	return client.NewPoller(cl, client.WithInterval(c.Interval)).Poll(ctx, sessionID, progress)
}

// verdict maps a terminal session to the process exit code.
func (c *ReplayStartCmd) verdict(ctx context.Context, cl *client.Client, final *api.ReplayStatus) error {
	phase, err := client.Classify(final)
	if err != nil {
		return err
	}
	if phase == client.PhaseFailed {
		code := exitRuntime
		if final.Status == api.ReplayStatusFailedValidation {
			code = exitValidation
		}
		return withExitCode(code, "replay %s ended %s (%s)", final.ReplaySessionID, final.Status, *final.FailureReasonCode)
	}
	if !c.FailOnSimulated || final.Status == api.ReplayStatusCompletedExact {
		return nil
	}

	derived, err := cl.GetRun(ctx, *final.DerivedRunID)
	if err != nil {
		return err
	}
	if n := derived.Counters["mode_simulated"]; n > 0 {
		return withExitCode(exitSimulated, "replay %s simulated %d event(s)", final.ReplaySessionID, n)
	}
	return nil
}

// Run shows one replay session.
func (c *ReplayStatusCmd) Run(g *Globals) error {
	status, err := g.Client().GetReplayStatus(context.Background(), c.SessionID)
	if err != nil {
		return err
	}
	if _, err := client.Classify(status); err != nil {
		return err
	}
	return printReplayStatus(g, status)
}

// Run requests cancellation. A session that already finished keeps its
// outcome and is printed as is.
func (c *ReplayCancelCmd) Run(g *Globals) error {
	resp, err := g.Client().CancelReplay(context.Background(), c.SessionID)
	if err != nil {
		return err
	}
	if g.Output == "json" {
		return g.printJSON(resp)
	}
	g.printf("%s %s at %s\n", titleStyle.Render(c.SessionID), statusLabel(resp.Status), resp.CancelledAtUTC.Format(time.RFC3339))
	return nil
}

func printReplayStatus(g *Globals, s *api.ReplayStatus) error {
	if g.Output == "json" {
		return g.printJSON(s)
	}
	g.printf("%s %s\n", titleStyle.Render(s.ReplaySessionID), statusLabel(s.Status))
	if s.DerivedRunID != nil {
		g.printf("  derived run: %s\n", *s.DerivedRunID)
	}
	if s.FailureReasonCode != nil {
		g.printf("  failure:     %s\n", errorStyle.Render(*s.FailureReasonCode))
	}
	if len(s.ReasonCodes) > 0 {
		g.printf("  reasons:     %s\n", strings.Join(s.ReasonCodes, ", "))
	}
	return nil
}

// loadOverrideProfile reads a profile written as JSON or YAML. YAML is
// decoded first and re-encoded so both formats go through the JSON field
// names, and unknown keys are rejected.
func loadOverrideProfile(path string) (api.OverrideProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return api.OverrideProfile{}, err
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return api.OverrideProfile{}, fmt.Errorf("failed to parse: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return api.OverrideProfile{}, fmt.Errorf("failed to convert: %w", err)
	}

	var profile api.OverrideProfile
	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&profile); err != nil {
		return api.OverrideProfile{}, fmt.Errorf("failed to decode: %w", err)
	}
	if profile.RetrieverOverride != nil && profile.RetrieverOverride.TopK != nil && *profile.RetrieverOverride.TopK <= 0 {
		return api.OverrideProfile{}, errors.New("retriever_override.top_k must be a positive integer")
	}
	return profile, nil
}
