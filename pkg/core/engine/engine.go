// Package engine orchestrates one question end to end: classify, generate
// SQL (heuristic templates first, LLM collaborator when warranted), gate
// through the safety validator, execute, format. Every outcome is a
// sentence; the engine never returns raw errors to callers.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"harbor_insight/pkg/core/answer"
	"harbor_insight/pkg/core/arbiter"
	"harbor_insight/pkg/core/classify"
	"harbor_insight/pkg/core/registry"
	"harbor_insight/pkg/core/resolve"
	"harbor_insight/pkg/core/safety"
	"harbor_insight/pkg/core/sqlgen"
	"harbor_insight/pkg/core/store"
)

// Status classifies the outcome for callers that branch on it; the Answer
// sentence is always the user-facing surface.
const (
	StatusOK          = "ok"
	StatusEmpty       = "empty"
	StatusUnsupported = "unsupported"
	StatusError       = "error"
)

// Scoped refusal and error sentences. Internal failure detail goes to the
// log, never into these.
const (
	unscopedAnswer = "I'm sorry, I can only answer questions about company finance and cargo operations contained in the provided dataset."
	cannotAnswer   = "I was unable to answer that question from the available data."
)

// Result is the engine's reply to one question.
type Result struct {
	RequestID string `json:"request_id"`
	Answer    string `json:"answer"`
	Status    string `json:"status"`
	Method    string `json:"method"` // heuristic, llm, or none
	SQL       string `json:"sql,omitempty"`
}

// Engine wires the pipeline components. All dependencies are injected so
// tests can run against an in-memory warehouse and a stub collaborator.
type Engine struct {
	warehouse  *store.Warehouse
	reg        *registry.Registry
	classifier *classify.Classifier
	builder    *sqlgen.Builder
	arb        *arbiter.Arbiter
}

// New assembles an engine. The arbiter may be nil for a purely heuristic
// deployment.
func New(w *store.Warehouse, reg *registry.Registry, arb *arbiter.Arbiter) *Engine {
	return &Engine{
		warehouse:  w,
		reg:        reg,
		classifier: classify.New(reg),
		builder:    sqlgen.NewBuilder(reg),
		arb:        arb,
	}
}

// Ask answers one natural-language question.
func (e *Engine) Ask(ctx context.Context, questionText string) Result {
	reqID := uuid.New().String()
	fmt.Printf("[DEBUG] request %s: %q\n", reqID, questionText)

	pq, err := e.classifier.Classify(questionText)
	if err != nil {
		return e.resolutionFailure(reqID, err)
	}
	fmt.Printf("[DEBUG] request %s: intent=%s metrics=%v periods=%d analytical=%v\n",
		reqID, pq.Intent, pq.Metrics, len(pq.Periods), pq.Analytical)

	// Collaborator first when the rules cannot place the question or it
	// asks for analysis; a failed LLM attempt falls back to the heuristic
	// path when one exists.
	if e.arb.ShouldConsult(pq) {
		if res, ok := e.askLLM(ctx, reqID, pq); ok {
			return res
		}
	}

	if pq.Intent == classify.IntentUnsupported {
		return Result{RequestID: reqID, Answer: unscopedAnswer, Status: StatusUnsupported, Method: "none"}
	}
	return e.askHeuristic(ctx, reqID, pq)
}

func (e *Engine) askHeuristic(ctx context.Context, reqID string, pq *classify.ParsedQuery) Result {
	gen, err := e.builder.Build(pq)
	if err != nil {
		fmt.Printf("[WARNING] request %s: template build failed: %v\n", reqID, err)
		return Result{RequestID: reqID, Answer: cannotAnswer, Status: StatusError, Method: "heuristic"}
	}
	return e.execute(ctx, reqID, pq, gen, "heuristic")
}

// askLLM runs the single collaborator round trip. ok=false means the
// caller should continue with the heuristic path.
func (e *Engine) askLLM(ctx context.Context, reqID string, pq *classify.ParsedQuery) (Result, bool) {
	gen, err := e.arb.GenerateSQL(ctx, pq.Question)
	if err != nil {
		fmt.Printf("[WARNING] request %s: collaborator failed: %v\n", reqID, err)
		return Result{}, false
	}
	if v := safety.Validate(gen.Text); !v.Accepted {
		fmt.Printf("[WARNING] request %s: collaborator SQL rejected: %s\n", reqID, v.Reason)
		return Result{}, false
	}

	rs, err := e.warehouse.Query(ctx, gen.Text, gen.Args...)
	if err != nil {
		fmt.Printf("[WARNING] request %s: collaborator SQL execution failed: %v\n", reqID, err)
		return Result{}, false
	}

	var text string
	if pq.Intent != classify.IntentUnsupported {
		// The rules placed the intent, so the template formatter applies
		// even though the SQL came from the collaborator.
		text = answer.Format(e.answerContext(pq), rs)
	} else {
		text = answer.FormatTable(rs)
	}
	status := StatusOK
	if rs.Empty() {
		status = StatusEmpty
	}
	return Result{RequestID: reqID, Answer: text, Status: status, Method: "llm", SQL: gen.Text}, true
}

func (e *Engine) execute(ctx context.Context, reqID string, pq *classify.ParsedQuery, gen *sqlgen.GeneratedSQL, method string) Result {
	if v := safety.Validate(gen.Text); !v.Accepted {
		fmt.Printf("[WARNING] request %s: SQL rejected by safety gate: %s\n", reqID, v.Reason)
		return Result{RequestID: reqID, Answer: cannotAnswer, Status: StatusError, Method: method}
	}

	rs, err := e.warehouse.Query(ctx, gen.Text, gen.Args...)
	if err != nil {
		fmt.Printf("[WARNING] request %s: query execution failed: %v\n", reqID, err)
		return Result{RequestID: reqID, Answer: cannotAnswer, Status: StatusError, Method: method}
	}

	text := answer.Format(e.answerContext(pq), rs)
	status := StatusOK
	if rs.Empty() {
		status = StatusEmpty
	}
	return Result{RequestID: reqID, Answer: text, Status: status, Method: method, SQL: gen.Text}
}

// resolutionFailure maps slot resolution errors to scoped sentences.
func (e *Engine) resolutionFailure(reqID string, err error) Result {
	fmt.Printf("[WARNING] request %s: resolution failed: %v\n", reqID, err)
	switch {
	case errors.Is(err, resolve.ErrUnknownPeriod):
		return Result{
			RequestID: reqID,
			Answer:    "I don't have data for that fiscal period. Try a period like 2024-25.",
			Status:    StatusError,
			Method:    "none",
		}
	case errors.Is(err, resolve.ErrAmbiguousMetric):
		return Result{
			RequestID: reqID,
			Answer:    "That question matches more than one financial metric. Please name the exact metric, for example EBITDA or EBITDA Margin.",
			Status:    StatusError,
			Method:    "none",
		}
	case errors.Is(err, resolve.ErrUnknownMetric):
		return Result{RequestID: reqID, Answer: unscopedAnswer, Status: StatusUnsupported, Method: "none"}
	}
	return Result{RequestID: reqID, Answer: cannotAnswer, Status: StatusError, Method: "none"}
}

// answerContext projects the parsed query into what the formatter needs.
func (e *Engine) answerContext(pq *classify.ParsedQuery) answer.Context {
	actx := answer.Context{
		Intent:    pq.Intent,
		CargoType: pq.CargoType,
		TopN:      pq.TopN,
	}
	if len(pq.Metrics) > 0 {
		actx.Metric = pq.Metrics[0]
		if acct, ok := e.reg.Account(actx.Metric); ok {
			actx.MetricType = acct.MetricType
		}
	}
	if len(pq.Periods) > 0 {
		actx.Period = pq.Periods[len(pq.Periods)-1].Label
	} else if latest, ok := e.reg.LatestPeriod(); ok {
		actx.Period = latest.Label
	}
	return actx
}
