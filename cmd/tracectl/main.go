// Command tracectl is the operator cockpit for the flight recorder: it
// browses recorded runs, forks them into replays and follows the sessions.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Build-time variables (set via ldflags)
var version = "dev"

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("tracectl"),
		kong.Description("Browse flight recorder runs and drive fork-and-replay sessions."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), describe(err))
		os.Exit(exitCode(err))
	}
}

func (g *Globals) printJSON(v interface{}) error {
	enc := json.NewEncoder(g.writer())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (g *Globals) printf(format string, args ...interface{}) {
	fmt.Fprintf(g.writer(), format, args...)
}
