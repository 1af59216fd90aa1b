package utils

import (
	"strings"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```sql\nSELECT 1\n```":  "SELECT 1",
		"```json\n{\"a\":1}\n```": "{\"a\":1}",
		"```\nSELECT 1\n```":     "SELECT 1",
		"SELECT 1":               "SELECT 1",
		"  SELECT 1  ":           "SELECT 1",
	}
	for in, want := range cases {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestParseSQLEnvelope(t *testing.T) {
	got, err := ParseSQLEnvelope(`{"sql": "SELECT value FROM fact_pnl_annual"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT value FROM fact_pnl_annual" {
		t.Errorf("unexpected sql: %q", got)
	}
}

func TestParseSQLEnvelopeFenced(t *testing.T) {
	got, err := ParseSQLEnvelope("```json\n{\"sql\": \"SELECT 1 FROM dim_period\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT 1 FROM dim_period" {
		t.Errorf("unexpected sql: %q", got)
	}
}

func TestParseSQLEnvelopeRepairsBrokenJSON(t *testing.T) {
	// Missing closing brace: json-repair or hjson should still recover it.
	got, err := ParseSQLEnvelope(`{"sql": "SELECT value FROM fact_pnl_annual"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "SELECT value") {
		t.Errorf("unexpected sql: %q", got)
	}
}

func TestExtractSQLFromProse(t *testing.T) {
	raw := "Sure! Here is the query you asked for:\nSELECT value FROM fact_pnl_annual;\nLet me know if you need anything else."
	got, err := ExtractSQL(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT value FROM fact_pnl_annual;" {
		t.Errorf("unexpected sql: %q", got)
	}
}

func TestExtractSQLCollapsesWhitespace(t *testing.T) {
	got, err := ExtractSQL("SELECT value\n  FROM fact_pnl_annual\n  WHERE 1 = 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT value FROM fact_pnl_annual WHERE 1 = 1" {
		t.Errorf("unexpected sql: %q", got)
	}
}

func TestExtractSQLNoStatement(t *testing.T) {
	if _, err := ExtractSQL("I cannot answer that question."); err == nil {
		t.Fatal("expected error when no SELECT present")
	}
}

func TestSanitizeCanonicalNames(t *testing.T) {
	in := "SELECT f.value FROM fact_pnl_annual f JOIN dim_account a ON f.account_id = a.account_id WHERE a.canonical_name = 'Revenue'"
	got := SanitizeCanonicalNames(in)
	if !strings.Contains(got, "'Revenue from Operation'") {
		t.Errorf("expected canonical rewrite, got %q", got)
	}
	// Already-correct names are untouched.
	ok := "WHERE a.canonical_name = 'Revenue from Operation'"
	if SanitizeCanonicalNames(ok) != ok {
		t.Error("correct canonical name must pass through unchanged")
	}
}
