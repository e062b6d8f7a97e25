package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	zero := 0
	five := 5
	tests := []struct {
		name  string
		input Input
		want  []string
	}{
		{
			name:  "admitted",
			input: Input{SourceRunStatus: "success", PreferredModes: []string{"exact", "cached", "simulated"}, RetrieverTopK: &five},
			want:  []string{},
		},
		{
			name:  "failed source is replayable",
			input: Input{SourceRunStatus: "failed", ForkStepID: "s1", ForkStepExists: true},
			want:  []string{},
		},
		{
			name:  "running source",
			input: Input{SourceRunStatus: "running"},
			want:  []string{ReasonSourceRunNotTerminal},
		},
		{
			name:  "unknown fork step",
			input: Input{SourceRunStatus: "success", ForkStepID: "nope"},
			want:  []string{ReasonForkStepNotInSource},
		},
		{
			name:  "live mode and bad top_k",
			input: Input{SourceRunStatus: "success", PreferredModes: []string{"live"}, RetrieverTopK: &zero},
			want:  []string{ReasonInvalidTopK, ReasonLiveModeRequested},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons, err := engine.Evaluate(ctx, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, reasons)
		})
	}
}

func TestNewEngine_RejectsBrokenPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package replay_policy\n deny[ {")
	assert.Error(t, err)
}

const denyAllPolicy = `
package replay_policy

deny["replays_frozen"] {
	true
}
`

func TestEngine_Reload(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	assert.Error(t, engine.Reload(ctx, "not rego"))
	reasons, err := engine.Evaluate(ctx, Input{SourceRunStatus: "success"})
	require.NoError(t, err)
	assert.Empty(t, reasons)

	require.NoError(t, engine.Reload(ctx, denyAllPolicy))
	reasons, err = engine.Evaluate(ctx, Input{SourceRunStatus: "success"})
	require.NoError(t, err)
	assert.Equal(t, []string{"replays_frozen"}, reasons)
}

func TestWatchFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "replay.rego")
	require.NoError(t, os.WriteFile(path, []byte(DefaultPolicy), 0o644))
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- WatchFile(ctx, engine, path) }()

	frozen := func() bool {
		reasons, err := engine.Evaluate(ctx, Input{SourceRunStatus: "success"})
		return err == nil && len(reasons) == 1 && reasons[0] == "replays_frozen"
	}

	// The watcher may not be registered yet, so keep rewriting until it sees one.
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(denyAllPolicy), 0o644)
		return frozen()
	}, 5*time.Second, 200*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("broken {"), 0o644))
	time.Sleep(3 * reloadDebounce)
	assert.True(t, frozen())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
