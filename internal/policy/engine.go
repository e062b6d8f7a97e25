package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine that admits replay requests.
type Engine struct {
	mu    sync.RWMutex
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content. The
// module must define a partial set rule data.replay_policy.deny of reason
// strings.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	query, err := prepare(ctx, policyContent)
	if err != nil {
		return nil, err
	}
	return &Engine{query: query}, nil
}

// Reload swaps in new policy content. On error the current policy stays.
func (e *Engine) Reload(ctx context.Context, policyContent string) error {
	query, err := prepare(ctx, policyContent)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.query = query
	e.mu.Unlock()
	return nil
}

func prepare(ctx context.Context, policyContent string) (rego.PreparedEvalQuery, error) {
	r := rego.New(
		rego.Query("data.replay_policy.deny"),
		rego.Module("replay_policy.rego", policyContent),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return query, nil
}

// Input is what the policy sees about one replay request.
type Input struct {
	SourceRunStatus string
	ForkStepID      string
	ForkStepExists  bool
	PreferredModes  []string
	RetrieverTopK   *int
}

func (in Input) toMap() map[string]interface{} {
	modes := make([]interface{}, 0, len(in.PreferredModes))
	for _, m := range in.PreferredModes {
		modes = append(modes, m)
	}
	doc := map[string]interface{}{
		"source_run":       map[string]interface{}{"status": in.SourceRunStatus},
		"fork_step_id":     in.ForkStepID,
		"fork_step_exists": in.ForkStepExists,
		"preferred_modes":  modes,
	}
	if in.RetrieverTopK != nil {
		doc["retriever_top_k"] = *in.RetrieverTopK
	}
	return doc
}

// Evaluate returns the sorted deny reasons for in. An empty slice admits the
// request.
func (e *Engine) Evaluate(ctx context.Context, in Input) ([]string, error) {
	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	results, err := query.Eval(ctx, rego.EvalInput(in.toMap()))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return []string{}, nil
	}

	values, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}
	reasons := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			reasons = append(reasons, s)
		}
	}
	sort.Strings(reasons)
	return reasons, nil
}

// Deny reasons produced by DefaultPolicy.
const (
	ReasonSourceRunNotTerminal = "source_run_not_terminal"
	ReasonForkStepNotInSource  = "fork_step_not_in_source_run"
	ReasonLiveModeRequested    = "live_mode_not_replayable"
	ReasonInvalidTopK          = "invalid_retriever_top_k"
)

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package replay_policy

terminal_statuses = {"success", "failed"}

deny["source_run_not_terminal"] {
	not terminal_statuses[input.source_run.status]
}

deny["fork_step_not_in_source_run"] {
	input.fork_step_id != ""
	not input.fork_step_exists
}

# Replays never re-execute live.
deny["live_mode_not_replayable"] {
	input.preferred_modes[_] == "live"
}

deny["invalid_retriever_top_k"] {
	input.retriever_top_k <= 0
}
`
