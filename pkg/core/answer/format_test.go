package answer

import (
	"strings"
	"testing"

	"harbor_insight/pkg/core/classify"
	"harbor_insight/pkg/core/store"
)

func rows(cols []string, data ...[]interface{}) *store.ResultSet {
	return &store.ResultSet{Columns: cols, Rows: data}
}

func TestEmptyResult(t *testing.T) {
	got := Format(Context{Intent: classify.IntentSingleMetric, Metric: "EBITDA"},
		rows([]string{"period", "value"}))
	if got != EmptyResultAnswer {
		t.Errorf("expected empty-result sentence, got %q", got)
	}
}

func TestSingleMetricSentence(t *testing.T) {
	got := Format(Context{Intent: classify.IntentSingleMetric, Metric: "EBITDA"},
		rows([]string{"period", "value"}, []interface{}{"2024-25", 1234.5}))
	want := "EBITDA in 2024-25 was 1234.5."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNarrowRowsFallBackToTable(t *testing.T) {
	// Collaborator SQL controls its own column list; a single-column row
	// must never reach an intent template that reads two.
	got := Format(Context{Intent: classify.IntentSingleMetric, Metric: "EBITDA"},
		rows([]string{"value"}, []interface{}{66.0}))
	if got != "value=66" {
		t.Errorf("expected table fallback, got %q", got)
	}

	// Three-column templates fall back the same way on two columns.
	got = Format(Context{Intent: classify.IntentCapitalEmployedVsEBIT},
		rows([]string{"period", "ebit"}, []interface{}{"2024-25", 600.0}))
	if !strings.Contains(got, "600") {
		t.Errorf("expected table fallback with the value, got %q", got)
	}
}

func TestRatioMetricRendersAsPercent(t *testing.T) {
	// View stores the fraction; presentation is one decimal with %.
	got := Format(Context{Intent: classify.IntentSingleMetric, Metric: "EBITDA Margin", MetricType: "ratio"},
		rows([]string{"period", "value"}, []interface{}{"2024-25", 0.615}))
	want := "EBITDA Margin in 2024-25 was 61.5%."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTrendListsPeriodsInOrder(t *testing.T) {
	got := Format(Context{Intent: classify.IntentMultiYearTrend, Metric: "Revenue from Operation"},
		rows([]string{"period", "value"},
			[]interface{}{"2022-23", 100.0},
			[]interface{}{"2023-24", 110.0},
			[]interface{}{"2024-25", 125.0}))
	want := "Revenue from Operation by period: 2022-23: 100; 2023-24: 110; 2024-25: 125."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestYoYGrowthTwentyPercent(t *testing.T) {
	// (120 - 100) / 100 = +20.0%
	got := Format(Context{Intent: classify.IntentYoYGrowth, Metric: "EBITDA"},
		rows([]string{"period", "value"},
			[]interface{}{"2023-24", 100.0},
			[]interface{}{"2024-25", 120.0}))
	want := "EBITDA YoY growth from 2023-24 to 2024-25: +20.0% (from 100 to 120)."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestYoYGrowthZeroBase(t *testing.T) {
	got := Format(Context{Intent: classify.IntentYoYGrowth, Metric: "EBITDA"},
		rows([]string{"period", "value"},
			[]interface{}{"2023-24", 0.0},
			[]interface{}{"2024-25", 120.0}))
	if !strings.Contains(got, UndefinedGrowth) {
		t.Errorf("expected undefined-growth sentinel, got %q", got)
	}
}

func TestYoYGrowthNegative(t *testing.T) {
	got := Format(Context{Intent: classify.IntentYoYGrowth, Metric: "EBITDA"},
		rows([]string{"period", "value"},
			[]interface{}{"2023-24", 200.0},
			[]interface{}{"2024-25", 150.0}))
	if !strings.Contains(got, "-25.0%") {
		t.Errorf("expected -25.0%%, got %q", got)
	}
}

func TestPortRankingClampsLabel(t *testing.T) {
	// Asked for top 5, only 3 ports exist: the label reports 3.
	got := Format(Context{Intent: classify.IntentPortRanking, Period: "2024-25", TopN: 5},
		rows([]string{"port_name", "ebit"},
			[]interface{}{"Alpha Port", 300.0},
			[]interface{}{"Beta Port", 200.0},
			[]interface{}{"Gamma Port", 100.0}))
	want := "Top 3 ports by EBIT in 2024-25: 1. Alpha Port (300), 2. Beta Port (200), 3. Gamma Port (100)."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMultiMetricSummaryDerivesMargin(t *testing.T) {
	// Margin is 50/200 = 25.0%, derived, not read from a fact row.
	got := Format(Context{Intent: classify.IntentMultiMetricSummary},
		rows([]string{"period", "revenue", "ebitda"},
			[]interface{}{"2024-25", 200.0, 50.0}))
	if !strings.Contains(got, "Revenue 200") || !strings.Contains(got, "EBITDA 50") {
		t.Errorf("missing metric values in %q", got)
	}
	if !strings.Contains(got, "EBITDA Margin 25.0%") {
		t.Errorf("expected derived margin 25.0%% in %q", got)
	}
}

func TestMultiMetricSummaryZeroRevenue(t *testing.T) {
	got := Format(Context{Intent: classify.IntentMultiMetricSummary},
		rows([]string{"period", "revenue", "ebitda"},
			[]interface{}{"2024-25", 0.0, 50.0}))
	if !strings.Contains(got, "EBITDA Margin n/a") {
		t.Errorf("expected n/a margin for zero revenue, got %q", got)
	}
}

func TestCorrelationNeedsThreePeriods(t *testing.T) {
	got := Format(Context{Intent: classify.IntentCorrelation},
		rows([]string{"period", "revenue", "margin"},
			[]interface{}{"2023-24", 100.0, 0.5},
			[]interface{}{"2024-25", 110.0, 0.52}))
	if got != "Insufficient data for correlation analysis." {
		t.Errorf("expected insufficient-data sentence, got %q", got)
	}
}

func TestCorrelationPerfectPositive(t *testing.T) {
	// Growth and margin delta move together each step, so r = 1.00.
	got := Format(Context{Intent: classify.IntentCorrelation},
		rows([]string{"period", "revenue", "margin"},
			[]interface{}{"2021-22", 100.0, 0.50},
			[]interface{}{"2022-23", 110.0, 0.51},
			[]interface{}{"2023-24", 132.0, 0.53},
			[]interface{}{"2024-25", 171.6, 0.56}))
	if !strings.Contains(got, "1.00") || !strings.Contains(got, "moderately positive") {
		t.Errorf("expected perfect positive correlation, got %q", got)
	}
}

func TestCapitalVsEBITDerivesROCE(t *testing.T) {
	// ROCE = 120 / 1000 = 12.0%
	got := Format(Context{Intent: classify.IntentCapitalEmployedVsEBIT},
		rows([]string{"period", "ebit", "capital_employed"},
			[]interface{}{"2024-25", 120.0, 1000.0}))
	if !strings.Contains(got, "EBIT 120") || !strings.Contains(got, "Average capital employed 1000") {
		t.Errorf("missing values in %q", got)
	}
	if !strings.Contains(got, "ROCE 12.0%") {
		t.Errorf("expected derived ROCE 12.0%% in %q", got)
	}
}

func TestAmountFormattingTrimsZeros(t *testing.T) {
	cases := map[float64]string{
		1234.5: "1234.5",
		1000:   "1000",
		0.126:  "0.13", // two decimals, rounded
		-0.001: "0",
		99.999: "100",
	}
	for in, want := range cases {
		if got := formatAmount(in); got != want {
			t.Errorf("formatAmount(%v): expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatTableGeneric(t *testing.T) {
	got := FormatTable(rows([]string{"period", "pat"}, []interface{}{"2024-25", 42.0}))
	if !strings.Contains(got, "2024-25") || !strings.Contains(got, "42") {
		t.Errorf("generic rendering lost values: %q", got)
	}
}
