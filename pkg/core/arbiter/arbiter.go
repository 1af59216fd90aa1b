// Package arbiter decides when a question goes to the LLM collaborator
// and runs that single round trip. The heuristic path stays primary: the
// collaborator is consulted only for questions the rules cannot place or
// that ask for analysis, and its output is still subject to the safety
// gate downstream.
package arbiter

import (
	"context"
	"fmt"
	"time"

	"harbor_insight/pkg/core/classify"
	"harbor_insight/pkg/core/llm"
	"harbor_insight/pkg/core/prompt"
	"harbor_insight/pkg/core/sqlgen"
	"harbor_insight/pkg/core/utils"
)

// DefaultTimeout bounds one collaborator round trip.
const DefaultTimeout = 30 * time.Second

// Arbiter owns the optional LLM collaborator.
type Arbiter struct {
	provider llm.Provider
	timeout  time.Duration
	model    string
}

// New wires the arbiter around a provider. A nil provider yields an
// arbiter that never consults, which keeps the engine purely heuristic.
func New(provider llm.Provider, timeout time.Duration) *Arbiter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Arbiter{provider: provider, timeout: timeout}
}

// WithModel overrides the provider's default model name.
func (a *Arbiter) WithModel(model string) *Arbiter {
	if a != nil {
		a.model = model
	}
	return a
}

// Available reports whether a collaborator is configured.
func (a *Arbiter) Available() bool { return a != nil && a.provider != nil }

// ShouldConsult reports whether the parsed question warrants the
// collaborator: either the rules found no intent, or the question asked
// for analysis beyond a template answer.
func (a *Arbiter) ShouldConsult(pq *classify.ParsedQuery) bool {
	if !a.Available() {
		return false
	}
	return pq.Intent == classify.IntentUnsupported || pq.Analytical
}

// GenerateSQL asks the collaborator for one statement. Exactly one round
// trip: no retries, no repair loop. The returned SQL has already been
// unwrapped from the model's envelope and had canonical names fixed up,
// but is otherwise untrusted.
func (a *Arbiter) GenerateSQL(ctx context.Context, question string) (*sqlgen.GeneratedSQL, error) {
	if !a.Available() {
		return nil, fmt.Errorf("no LLM collaborator configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	options := map[string]interface{}{"response_format": "json"}
	if a.model != "" {
		options["model"] = a.model
	}
	raw, err := a.provider.GenerateResponse(ctx, prompt.BuildSQLPrompt(question), prompt.SystemPrompt, options)
	if err != nil {
		return nil, fmt.Errorf("LLM SQL generation failed: %w", err)
	}

	sqlText, err := utils.ExtractSQL(raw)
	if err != nil {
		return nil, fmt.Errorf("unusable LLM response: %w", err)
	}
	sqlText = utils.SanitizeCanonicalNames(sqlText)

	return &sqlgen.GeneratedSQL{Text: sqlText, Provenance: sqlgen.ProvenanceLLM}, nil
}
