package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/client"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("tracectl"), kong.Vars{"version": "test"})
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, ctx
}

func TestCLI_ReplayStartFlags(t *testing.T) {
	t.Setenv("FLIGHTDECK_API_URL", "http://recorder:9000")

	cli, ctx := parse(t, "replay", "start", "run_1",
		"--fork-step", "s_model",
		"--model-id", "gpt-5",
		"--top-k", "8",
		"--fail-on-simulated",
		"-o", "json",
	)
	assert.Equal(t, "replay start <run>", ctx.Command())
	assert.Equal(t, "http://recorder:9000", cli.APIURL)
	assert.Equal(t, 10*time.Second, cli.Timeout)
	assert.Equal(t, "json", cli.Output)

	start := cli.Replay.Start
	assert.Equal(t, "run_1", start.SourceRunID)
	assert.Equal(t, "s_model", start.ForkStep)
	assert.Equal(t, "gpt-5", start.ModelID)
	assert.Equal(t, "8", start.TopK)
	assert.True(t, start.FailOnSimulated)
	assert.Equal(t, 1500*time.Millisecond, start.Interval)
}

func TestCLI_RunsCommands(t *testing.T) {
	cli, ctx := parse(t, "runs", "list", "--status", "failed", "--search", "support")
	assert.Equal(t, "runs list", ctx.Command())
	assert.Equal(t, "failed", cli.Runs.List.Status)
	assert.Equal(t, "support", cli.Runs.List.Search)
	assert.Equal(t, 50, cli.Runs.List.Limit)

	cli, ctx = parse(t, "runs", "events", "run_9", "--step-id", "s_tool")
	assert.Equal(t, "runs events <run-id>", ctx.Command())
	assert.Equal(t, "run_9", cli.Runs.Events.RunID)
	assert.Equal(t, "s_tool", cli.Runs.Events.StepID)
}

func TestCLI_RejectsUnknownOutput(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("tracectl"), kong.Vars{"version": "test"})
	require.NoError(t, err)
	_, err = parser.Parse([]string{"-o", "xml", "runs", "list"})
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, exitOK},
		{"validation", &client.ApplicationError{Code: api.CodeValidation}, exitValidation},
		{"conflict", &client.ApplicationError{Code: api.CodeConflict}, exitValidation},
		{"auth", &client.ApplicationError{Code: api.CodeAuthForbidden}, exitAuth},
		{"not found", &client.ApplicationError{Code: api.CodeNotFound}, exitNotFound},
		{"unavailable", &client.ApplicationError{Code: api.CodeDependencyUnavailable}, exitUnavailable},
		{"internal", &client.ApplicationError{Code: api.CodeInternal}, exitRuntime},
		{"transport", &client.TransportError{Err: errors.New("refused")}, exitUnavailable},
		{"missing source", client.ErrSourceRunRequired, exitValidation},
		{"simulated", withExitCode(exitSimulated, "simulated"), exitSimulated},
		{"violation", &client.DomainViolation{Entity: "run", Reason: "bad"}, exitRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestDescribe_ListsReasons(t *testing.T) {
	err := &client.ApplicationError{
		Code:    api.CodeValidation,
		Message: "replay rejected",
		Details: map[string]interface{}{"reasons": []interface{}{"source run is not terminal"}},
	}
	assert.Equal(t, "VALIDATION_ERROR: replay rejected\n  - source run is not terminal", describe(err))
}

func TestLoadOverrideProfile(t *testing.T) {
	dir := t.TempDir()

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(dir, "profile.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
model_override:
  provider: openai
retriever_override:
  top_k: 3
  filters:
    lang: en
tool_simulation_overrides:
  s_tool:
    status: ok
`), 0o644))

		profile, err := loadOverrideProfile(path)
		require.NoError(t, err)
		require.NotNil(t, profile.ModelOverride)
		assert.Equal(t, "openai", profile.ModelOverride.Provider)
		require.NotNil(t, profile.RetrieverOverride)
		assert.Equal(t, 3, *profile.RetrieverOverride.TopK)
		assert.Equal(t, "en", profile.RetrieverOverride.Filters["lang"])
		assert.Equal(t, "ok", profile.ToolSimulationOverrides["s_tool"]["status"])
		assert.Nil(t, profile.PromptOverride)
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "profile.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"prompt_override":{"template_id":"tpl_support"}}`), 0o644))

		profile, err := loadOverrideProfile(path)
		require.NoError(t, err)
		require.NotNil(t, profile.PromptOverride)
		assert.Equal(t, "tpl_support", profile.PromptOverride.TemplateID)
	})

	t.Run("Unknown Key", func(t *testing.T) {
		path := filepath.Join(dir, "typo.yaml")
		require.NoError(t, os.WriteFile(path, []byte("model_overide:\n  model_id: x\n"), 0o644))

		_, err := loadOverrideProfile(path)
		assert.Error(t, err)
	})

	t.Run("Bad TopK", func(t *testing.T) {
		path := filepath.Join(dir, "topk.yaml")
		require.NoError(t, os.WriteFile(path, []byte("retriever_override:\n  top_k: 0\n"), 0o644))

		_, err := loadOverrideProfile(path)
		assert.Error(t, err)
	})
}
