package client

import (
	"errors"
	"strconv"
	"strings"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// ErrSourceRunRequired is returned when a replay request has no source run.
var ErrSourceRunRequired = errors.New("source_run_id is required")

// ForkInput is the operator's free-form input for a fork-and-replay.
// Empty or whitespace-only fields mean "no override".
type ForkInput struct {
	SourceRunID           string
	ForkStepID            string
	PromptTemplateID      string
	PromptTemplateVersion string
	ModelProvider         string
	ModelID               string
	RetrieverTopK         string
}

// BuildOverrideProfile turns the input into a sparse profile. A sub-override
// is included only when at least one of its fields is set, and a top_k that
// does not parse as a positive integer drops the retriever override.
func BuildOverrideProfile(in ForkInput) api.OverrideProfile {
	return in.ApplyTo(api.OverrideProfile{})
}

// ApplyTo layers the input's non-empty fields over base. Fields left empty
// keep whatever base had.
func (in ForkInput) ApplyTo(base api.OverrideProfile) api.OverrideProfile {
	p := base

	templateID := strings.TrimSpace(in.PromptTemplateID)
	templateVersion := strings.TrimSpace(in.PromptTemplateVersion)
	if templateID != "" || templateVersion != "" {
		prompt := api.PromptOverride{}
		if p.PromptOverride != nil {
			prompt = *p.PromptOverride
		}
		if templateID != "" {
			prompt.TemplateID = templateID
		}
		if templateVersion != "" {
			prompt.TemplateVersion = templateVersion
		}
		p.PromptOverride = &prompt
	}

	provider := strings.TrimSpace(in.ModelProvider)
	modelID := strings.TrimSpace(in.ModelID)
	if provider != "" || modelID != "" {
		model := api.ModelOverride{}
		if p.ModelOverride != nil {
			model = *p.ModelOverride
		}
		if provider != "" {
			model.Provider = provider
		}
		if modelID != "" {
			model.ModelID = modelID
		}
		p.ModelOverride = &model
	}

	if topK, ok := ParseTopK(in.RetrieverTopK); ok {
		retriever := api.RetrieverOverride{}
		if p.RetrieverOverride != nil {
			retriever = *p.RetrieverOverride
		}
		retriever.TopK = &topK
		p.RetrieverOverride = &retriever
	}

	return p
}

// ParseTopK accepts only positive base-10 integers.
func ParseTopK(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// BuildReplayRequest assembles the full request. Preferences are fixed:
// exact, then cached, then simulated, and simulation is not fatal.
func BuildReplayRequest(in ForkInput) (api.ReplayRequest, error) {
	return in.Request(api.OverrideProfile{})
}

// Request assembles a replay request whose profile is in layered over base.
func (in ForkInput) Request(base api.OverrideProfile) (api.ReplayRequest, error) {
	sourceRunID := strings.TrimSpace(in.SourceRunID)
	if sourceRunID == "" {
		return api.ReplayRequest{}, ErrSourceRunRequired
	}
	return api.ReplayRequest{
		SourceRunID:     sourceRunID,
		ForkStepID:      strings.TrimSpace(in.ForkStepID),
		OverrideProfile: in.ApplyTo(base),
		ReplayPreferences: api.ReplayPreferences{
			PreferredModes:  api.DefaultPreferredModes(),
			FailOnSimulated: false,
		},
	}, nil
}
