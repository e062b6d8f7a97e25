package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/flightdeck/api"
)

func TestBuildOverrideProfile_OnlyPopulatedSubOverrides(t *testing.T) {
	p := BuildOverrideProfile(ForkInput{ModelProvider: "openai"})
	require.NotNil(t, p.ModelOverride)
	assert.Equal(t, "openai", p.ModelOverride.Provider)
	assert.Empty(t, p.ModelOverride.ModelID)
	assert.Nil(t, p.PromptOverride)
	assert.Nil(t, p.RetrieverOverride)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model_override":{"provider":"openai"}}`, string(raw))
}

func TestBuildOverrideProfile_EmptyInput(t *testing.T) {
	p := BuildOverrideProfile(ForkInput{PromptTemplateID: "   ", ModelID: ""})
	assert.True(t, p.IsEmpty())

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestBuildOverrideProfile_TopK(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"", nil},
		{"abc", nil},
		{"0", nil},
		{"-4", nil},
		{"2.5", nil},
		{"8", intPtr(8)},
		{" 12 ", intPtr(12)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := BuildOverrideProfile(ForkInput{RetrieverTopK: tt.in})
			if tt.want == nil {
				assert.Nil(t, p.RetrieverOverride)
				return
			}
			require.NotNil(t, p.RetrieverOverride)
			assert.Equal(t, *tt.want, *p.RetrieverOverride.TopK)
		})
	}
}

func TestBuildReplayRequest(t *testing.T) {
	req, err := BuildReplayRequest(ForkInput{
		SourceRunID:      "run_1",
		ForkStepID:       "step_3",
		PromptTemplateID: "support_v2",
		RetrieverTopK:    "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "run_1", req.SourceRunID)
	assert.Equal(t, "step_3", req.ForkStepID)
	assert.Equal(t, []api.DeterminismMode{api.ModeExact, api.ModeCached, api.ModeSimulated}, req.ReplayPreferences.PreferredModes)
	assert.False(t, req.ReplayPreferences.FailOnSimulated)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"source_run_id": "run_1",
		"fork_step_id": "step_3",
		"override_profile": {
			"prompt_override": {"template_id": "support_v2"},
			"retriever_override": {"top_k": 5}
		},
		"replay_preferences": {
			"preferred_modes": ["exact", "cached", "simulated"],
			"fail_on_simulated": false
		}
	}`, string(raw))
}

func TestBuildReplayRequest_NoForkStep(t *testing.T) {
	req, err := BuildReplayRequest(ForkInput{SourceRunID: "run_1"})
	require.NoError(t, err)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "fork_step_id")
}

func TestBuildReplayRequest_RequiresSource(t *testing.T) {
	_, err := BuildReplayRequest(ForkInput{ForkStepID: "s"})
	assert.ErrorIs(t, err, ErrSourceRunRequired)
}

func TestApplyTo_LayersOverBase(t *testing.T) {
	base := api.OverrideProfile{
		ModelOverride: &api.ModelOverride{Provider: "anthropic", ModelID: "base-model"},
		ToolSimulationOverrides: map[string]map[string]interface{}{
			"weather": {"temp_c": 21.0},
		},
	}
	p := ForkInput{ModelID: "flag-model"}.ApplyTo(base)

	require.NotNil(t, p.ModelOverride)
	assert.Equal(t, "anthropic", p.ModelOverride.Provider)
	assert.Equal(t, "flag-model", p.ModelOverride.ModelID)
	assert.Contains(t, p.ToolSimulationOverrides, "weather")
	assert.Equal(t, "base-model", base.ModelOverride.ModelID)
}

func intPtr(n int) *int { return &n }
