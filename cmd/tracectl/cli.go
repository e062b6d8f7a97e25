// Package main defines the tracectl command line using kong.
package main

import (
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/xiaot623/gogo/flightdeck/client"
)

// CLI defines the command-line interface.
type CLI struct {
	Globals `embed:""`

	Version kong.VersionFlag `help:"Print version and exit"`

	Runs   RunsCmd   `cmd:"" help:"Browse recorded and derived runs"`
	Replay ReplayCmd `cmd:"" help:"Fork, watch and cancel replays"`
}

// Globals are the flags shared by every command.
type Globals struct {
	APIURL  string        `name:"api-url" env:"FLIGHTDECK_API_URL" default:"http://localhost:8080" help:"Flight recorder API base URL"`
	Token   string        `env:"FLIGHTDECK_API_TOKEN" help:"Bearer token"`
	Timeout time.Duration `default:"10s" help:"Per-request timeout"`
	Output  string        `short:"o" enum:"text,json" default:"text" help:"Output format (text, json)"`

	Out io.Writer `kong:"-"`
}

// Client builds an API client from the global flags.
func (g *Globals) Client() *client.Client {
	return client.New(g.APIURL,
		client.WithTimeout(g.Timeout),
		client.WithAuthToken(g.Token),
		client.WithRetries(2),
	)
}

func (g *Globals) writer() io.Writer {
	if g.Out != nil {
		return g.Out
	}
	return os.Stdout
}

// RunsCmd groups the run query commands.
type RunsCmd struct {
	List   RunsListCmd   `cmd:"" help:"List runs, newest first"`
	Show   RunsShowCmd   `cmd:"" help:"Show one run with its counters"`
	Events RunsEventsCmd `cmd:"" help:"Print a run's event timeline"`
}

// RunsListCmd lists runs.
type RunsListCmd struct {
	AppID       string `help:"Filter by app_id"`
	Environment string `help:"Filter by environment"`
	Status      string `help:"Filter by status (running, success, failed)"`
	SourceType  string `help:"Filter by source type (live, replay)"`
	Search      string `help:"Case-insensitive match on run, trace or app id"`
	Limit       int    `default:"50" help:"Maximum runs to print"`
}

// RunsShowCmd shows one run.
type RunsShowCmd struct {
	RunID string `arg:"" help:"Run ID"`
}

// RunsEventsCmd prints a run's events in timeline order.
type RunsEventsCmd struct {
	RunID     string `arg:"" help:"Run ID"`
	EventType string `help:"Only events of this type"`
	StepID    string `help:"Only events of this step"`
}

// ReplayCmd groups the replay commands.
type ReplayCmd struct {
	Start  ReplayStartCmd  `cmd:"" help:"Fork a run and replay it"`
	Status ReplayStatusCmd `cmd:"" help:"Show a replay session"`
	Cancel ReplayCancelCmd `cmd:"" help:"Request cancellation of a replay"`
}

// ReplayStartCmd creates a replay session.
type ReplayStartCmd struct {
	SourceRunID           string        `arg:"" name:"run" help:"Source run ID"`
	ForkStep              string        `help:"Step to fork at (default: first event)"`
	PromptTemplateID      string        `help:"Prompt template override"`
	PromptTemplateVersion string        `help:"Prompt template version override"`
	ModelProvider         string        `help:"Model provider override"`
	ModelID               string        `help:"Model ID override"`
	TopK                  string        `name:"top-k" help:"Retriever top_k override (positive integer)"`
	OverrideProfile       string        `type:"existingfile" help:"Override profile file (JSON or YAML); flags win over it"`
	FailOnSimulated       bool          `help:"Exit 5 if any event had to be simulated"`
	Wait                  bool          `help:"Poll until the session is terminal"`
	Watch                 bool          `help:"Follow the session over the status stream"`
	Interval              time.Duration `default:"1.5s" help:"Poll interval for --wait"`
}

// ReplayStatusCmd shows one replay session.
type ReplayStatusCmd struct {
	SessionID string `arg:"" help:"Replay session ID"`
}

// ReplayCancelCmd cancels a replay session.
type ReplayCancelCmd struct {
	SessionID string `arg:"" help:"Replay session ID"`
}
