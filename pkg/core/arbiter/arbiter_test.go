package arbiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"harbor_insight/pkg/core/classify"
	"harbor_insight/pkg/core/sqlgen"
)

type stubProvider struct {
	response string
	err      error
}

func (s *stubProvider) GenerateResponse(ctx context.Context, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	return s.response, s.err
}

func (s *stubProvider) AdaptInstructions(raw string) string { return raw }

func TestNilArbiterNeverConsults(t *testing.T) {
	var a *Arbiter
	if a.Available() {
		t.Error("nil arbiter must not be available")
	}
	if a.ShouldConsult(&classify.ParsedQuery{Intent: classify.IntentUnsupported}) {
		t.Error("nil arbiter must never consult")
	}

	a = New(nil, time.Second)
	if a.Available() {
		t.Error("arbiter without provider must not be available")
	}
}

func TestShouldConsult(t *testing.T) {
	a := New(&stubProvider{}, time.Second)

	cases := []struct {
		pq   classify.ParsedQuery
		want bool
	}{
		{classify.ParsedQuery{Intent: classify.IntentUnsupported}, true},
		{classify.ParsedQuery{Intent: classify.IntentSingleMetric, Analytical: true}, true},
		{classify.ParsedQuery{Intent: classify.IntentSingleMetric}, false},
		{classify.ParsedQuery{Intent: classify.IntentPortRanking}, false},
	}
	for _, tc := range cases {
		if got := a.ShouldConsult(&tc.pq); got != tc.want {
			t.Errorf("%s analytical=%v: expected %v, got %v", tc.pq.Intent, tc.pq.Analytical, tc.want, got)
		}
	}
}

func TestGenerateSQLUnwrapsAndSanitizes(t *testing.T) {
	a := New(&stubProvider{
		response: "```json\n{\"sql\": \"SELECT f.value FROM fact_pnl_annual f JOIN dim_account a ON f.account_id = a.account_id WHERE a.canonical_name = 'Revenue'\"}\n```",
	}, time.Second)

	gen, err := a.GenerateSQL(context.Background(), "total revenue please")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Provenance != sqlgen.ProvenanceLLM {
		t.Errorf("expected llm provenance, got %s", gen.Provenance)
	}
	if !strings.Contains(gen.Text, "'Revenue from Operation'") {
		t.Errorf("expected canonical name sanitation in %q", gen.Text)
	}
}

func TestGenerateSQLProviderError(t *testing.T) {
	a := New(&stubProvider{err: errors.New("quota exceeded")}, time.Second)

	if _, err := a.GenerateSQL(context.Background(), "anything"); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestGenerateSQLUnusableResponse(t *testing.T) {
	a := New(&stubProvider{response: "I am sorry, I cannot answer that."}, time.Second)

	if _, err := a.GenerateSQL(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for response without SQL")
	}
}
