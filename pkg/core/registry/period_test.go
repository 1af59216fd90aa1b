package registry

import "testing"

func TestParseAnnualLabel(t *testing.T) {
	p, err := ParsePeriodLabel("2024-25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.StartYear != 2024 || p.EndYear != 2025 {
		t.Errorf("expected 2024..2025, got %d..%d", p.StartYear, p.EndYear)
	}
	if p.PeriodType != "annual" || p.Quarter != 0 {
		t.Errorf("expected annual period, got %s q%d", p.PeriodType, p.Quarter)
	}
	// Sort key is start*10 so quarters of the same year slot in after.
	if p.SortKey != 20240 {
		t.Errorf("expected sort key 20240, got %d", p.SortKey)
	}
}

func TestParseQuarterLabel(t *testing.T) {
	p, err := ParsePeriodLabel("Q3 2023-24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PeriodType != "quarterly" || p.Quarter != 3 {
		t.Errorf("expected quarterly q3, got %s q%d", p.PeriodType, p.Quarter)
	}
	if p.StartYear != 2023 || p.EndYear != 2024 {
		t.Errorf("expected 2023..2024, got %d..%d", p.StartYear, p.EndYear)
	}
	if p.SortKey != 20233 {
		t.Errorf("expected sort key 20233, got %d", p.SortKey)
	}
}

func TestParseBareYear(t *testing.T) {
	p, err := ParsePeriodLabel("2024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.StartYear != 2024 || p.EndYear != 2024 {
		t.Errorf("expected 2024..2024, got %d..%d", p.StartYear, p.EndYear)
	}
}

func TestParseCenturyRollover(t *testing.T) {
	p, err := ParsePeriodLabel("2099-00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.EndYear != 2100 {
		t.Errorf("expected end year 2100, got %d", p.EndYear)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, label := range []string{"", "FY25", "24-25", "Q5 2024-25"} {
		if _, err := ParsePeriodLabel(label); err == nil {
			t.Errorf("expected error for %q", label)
		}
	}
}
