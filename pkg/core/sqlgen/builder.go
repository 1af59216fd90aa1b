package sqlgen

import (
	"fmt"
	"strings"

	"harbor_insight/pkg/core/classify"
	"harbor_insight/pkg/core/registry"
)

// Provenance records where a SQL statement came from so the safety gate can
// apply identical rules regardless of origin.
type Provenance string

const (
	ProvenanceHeuristic Provenance = "heuristic"
	ProvenanceLLM       Provenance = "llm"
)

// GeneratedSQL is a candidate read-only query plus its provenance and the
// tables/views it references.
type GeneratedSQL struct {
	Text       string
	Args       []interface{}
	Provenance Provenance
	Tables     []string
}

// factTableForStatement routes each statement type to its fact table.
var factTableForStatement = map[string]string{
	"PnLAnnual":    "fact_pnl_annual",
	"PnLQuarterly": "fact_pnl_quarterly",
	"BalanceSheet": "fact_balance_sheet",
	"CashFlow":     "fact_cash_flow",
	"ROCEExternal": "fact_roce_external",
	"ROCEInternal": "fact_roce_internal",
}

// Builder produces one parameterized SQL statement per intent. Every
// builder is a pure function of the ParsedQuery and the registry; nothing
// here touches the database.
type Builder struct {
	reg *registry.Registry
}

// NewBuilder creates a builder over the registry.
func NewBuilder(reg *registry.Registry) *Builder {
	return &Builder{reg: reg}
}

// Build dispatches on intent. Unsupported intents cannot be built
// heuristically and return an error; the arbiter owns those.
func (b *Builder) Build(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	switch pq.Intent {
	case classify.IntentSingleMetric:
		return b.singleMetric(pq, true)
	case classify.IntentMultiYearTrend:
		return b.singleMetric(pq, false)
	case classify.IntentRanking:
		return b.ranking(pq)
	case classify.IntentMultiMetricSummary:
		return b.multiMetricSummary(pq)
	case classify.IntentYoYGrowth:
		return b.yoyGrowth(pq)
	case classify.IntentPortRanking:
		return b.portRanking(pq)
	case classify.IntentCargoVolumeByPort:
		return b.cargoVolumeByPort(pq)
	case classify.IntentEBITPerVolume:
		return b.ebitPerVolume(pq)
	case classify.IntentCorrelation:
		return b.correlation(pq)
	case classify.IntentCapitalEmployedVsEBIT:
		return b.capitalVsEBIT(pq)
	default:
		return nil, fmt.Errorf("no template for intent %s", pq.Intent)
	}
}

// singleMetric covers both the one-period lookup and the multi-year trend.
// Ratio metrics backed by views short-circuit to the view; everything else
// reads its statement's fact table. The MIN(account_id) guard pins one
// account row per canonical name so unconsolidated duplicate accounts in
// dim_account cannot double-count.
func (b *Builder) singleMetric(pq *classify.ParsedQuery, defaultLatest bool) (*GeneratedSQL, error) {
	metric, err := b.primaryMetric(pq)
	if err != nil {
		return nil, err
	}

	switch metric {
	case "EBITDA Margin":
		return b.viewSeries("view_ebitda_margin", "ebitda_margin", pq, defaultLatest), nil
	case "ROCE":
		return b.viewSeries("view_roce", "roce", pq, defaultLatest), nil
	}

	acct, ok := b.reg.Account(metric)
	if !ok {
		return nil, fmt.Errorf("canonical account %q not in registry", metric)
	}
	fact, ok := factTableForStatement[acct.Statement]
	if !ok {
		fact = "fact_pnl_annual"
	}

	var sb strings.Builder
	args := []interface{}{metric, metric}
	fmt.Fprintf(&sb,
		"SELECT p.raw_label AS period, f.value AS value "+
			"FROM %s f "+
			"JOIN dim_account a ON f.account_id = a.account_id "+
			"JOIN dim_period p ON p.period_id = f.period_id "+
			"WHERE a.canonical_name = ? "+
			"AND a.account_id = (SELECT MIN(account_id) FROM dim_account WHERE canonical_name = ?)",
		fact)

	periods := b.targetPeriods(pq, defaultLatest)
	if len(periods) > 0 {
		sb.WriteString(" AND p.raw_label IN (" + placeholders(len(periods)) + ")")
		for _, p := range periods {
			args = append(args, p.Label)
		}
	}
	sb.WriteString(" ORDER BY p.sort_key ASC")

	return &GeneratedSQL{
		Text:       sb.String(),
		Args:       args,
		Provenance: ProvenanceHeuristic,
		Tables:     []string{fact, "dim_account", "dim_period"},
	}, nil
}

// ranking orders periods by metric value. Ties break by period sort key
// descending so the result is stable; Top-N clamps naturally because LIMIT
// never errors on short result sets.
func (b *Builder) ranking(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	metric, err := b.primaryMetric(pq)
	if err != nil {
		return nil, err
	}
	acct, ok := b.reg.Account(metric)
	if !ok {
		return nil, fmt.Errorf("canonical account %q not in registry", metric)
	}
	fact, ok := factTableForStatement[acct.Statement]
	if !ok {
		fact = "fact_pnl_annual"
	}

	var sb strings.Builder
	args := []interface{}{metric, metric}
	fmt.Fprintf(&sb,
		"SELECT p.raw_label AS period, f.value AS value "+
			"FROM %s f "+
			"JOIN dim_account a ON f.account_id = a.account_id "+
			"JOIN dim_period p ON p.period_id = f.period_id "+
			"WHERE a.canonical_name = ? "+
			"AND a.account_id = (SELECT MIN(account_id) FROM dim_account WHERE canonical_name = ?)",
		fact)
	if len(pq.Periods) > 0 {
		sb.WriteString(" AND p.raw_label IN (" + placeholders(len(pq.Periods)) + ")")
		for _, p := range pq.Periods {
			args = append(args, p.Label)
		}
	}
	sb.WriteString(" ORDER BY value DESC, p.sort_key DESC")
	if pq.TopN > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", pq.TopN)
	}

	return &GeneratedSQL{
		Text:       sb.String(),
		Args:       args,
		Provenance: ProvenanceHeuristic,
		Tables:     []string{fact, "dim_account", "dim_period"},
	}, nil
}

// multiMetricSummary fetches Revenue and EBITDA side by side per period.
// The margin is derived by the formatter as EBITDA/Revenue, never read from
// a separate fact row.
func (b *Builder) multiMetricSummary(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	var sb strings.Builder
	sb.WriteString(
		"SELECT p.raw_label AS period, " +
			"(SELECT f1.value FROM fact_pnl_annual f1 JOIN dim_account a1 ON f1.account_id = a1.account_id " +
			"WHERE a1.canonical_name = 'Revenue from Operation' " +
			"AND a1.account_id = (SELECT MIN(account_id) FROM dim_account WHERE canonical_name = 'Revenue from Operation') " +
			"AND f1.period_id = p.period_id) AS revenue, " +
			"(SELECT f2.value FROM fact_pnl_annual f2 JOIN dim_account a2 ON f2.account_id = a2.account_id " +
			"WHERE a2.canonical_name = 'EBITDA' " +
			"AND a2.account_id = (SELECT MIN(account_id) FROM dim_account WHERE canonical_name = 'EBITDA') " +
			"AND f2.period_id = p.period_id) AS ebitda " +
			"FROM dim_period p")

	var args []interface{}
	periods := b.targetPeriods(pq, true)
	if len(periods) > 0 {
		sb.WriteString(" WHERE p.raw_label IN (" + placeholders(len(periods)) + ")")
		for _, p := range periods {
			args = append(args, p.Label)
		}
	}
	sb.WriteString(" ORDER BY p.sort_key DESC")

	return &GeneratedSQL{
		Text:       sb.String(),
		Args:       args,
		Provenance: ProvenanceHeuristic,
		Tables:     []string{"dim_period", "fact_pnl_annual", "dim_account"},
	}, nil
}

// yoyGrowth fetches the two endpoint values; the growth arithmetic
// (including the zero-denominator sentinel) lives in the answer formatter.
func (b *Builder) yoyGrowth(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	metric, err := b.primaryMetric(pq)
	if err != nil {
		return nil, err
	}
	if len(pq.Periods) < 2 {
		return nil, fmt.Errorf("year over year growth needs two fiscal periods")
	}
	p0, p1 := pq.Periods[0], pq.Periods[len(pq.Periods)-1]

	text := "SELECT p.raw_label AS period, SUM(f.value) AS value " +
		"FROM fact_pnl_annual f " +
		"JOIN dim_account a ON f.account_id = a.account_id " +
		"JOIN dim_period p ON p.period_id = f.period_id " +
		"WHERE a.canonical_name = ? AND p.raw_label IN (?, ?) " +
		"GROUP BY p.raw_label, p.sort_key ORDER BY p.sort_key ASC"

	return &GeneratedSQL{
		Text:       text,
		Args:       []interface{}{metric, p0.Label, p1.Label},
		Provenance: ProvenanceHeuristic,
		Tables:     []string{"fact_pnl_annual", "dim_account", "dim_period"},
	}, nil
}

// portRanking aggregates EBIT per port across ROCE categories for one
// period, highest first.
func (b *Builder) portRanking(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	period, err := b.singlePeriod(pq)
	if err != nil {
		return nil, err
	}
	topN := pq.TopN
	if topN <= 0 {
		topN = 3
	}

	text := fmt.Sprintf(
		"SELECT dp.port_name, SUM(fri.value) AS ebit "+
			"FROM fact_roce_internal fri "+
			"JOIN dim_account a ON fri.account_id = a.account_id AND a.canonical_name = ? "+
			"JOIN dim_period p ON p.period_id = fri.period_id "+
			"JOIN dim_port dp ON dp.port_id = fri.port_id "+
			"WHERE p.raw_label = ? "+
			"GROUP BY dp.port_name ORDER BY ebit DESC, dp.port_name ASC LIMIT %d", topN)

	return &GeneratedSQL{
		Text:       text,
		Args:       []interface{}{"EBIT", period.Label},
		Provenance: ProvenanceHeuristic,
		Tables:     []string{"fact_roce_internal", "dim_account", "dim_period", "dim_port"},
	}, nil
}

// cargoVolumeByPort sums volumes per port for one period, with an optional
// cargo type filter.
func (b *Builder) cargoVolumeByPort(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	period, err := b.singlePeriod(pq)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(
		"SELECT dp.port_name, SUM(v.volume_value) AS volume " +
			"FROM fact_volume v " +
			"JOIN dim_port dp ON dp.port_id = v.port_id " +
			"JOIN dim_period p ON p.period_id = v.period_id " +
			"JOIN dim_cargo_type ct ON ct.cargo_type_id = v.cargo_type_id " +
			"WHERE p.raw_label = ?")
	args := []interface{}{period.Label}
	if pq.CargoType != "" {
		sb.WriteString(" AND ct.name = ?")
		args = append(args, pq.CargoType)
	}
	sb.WriteString(" GROUP BY dp.port_name ORDER BY volume DESC")

	return &GeneratedSQL{
		Text:       sb.String(),
		Args:       args,
		Provenance: ProvenanceHeuristic,
		Tables:     []string{"fact_volume", "dim_port", "dim_period", "dim_cargo_type"},
	}, nil
}

// ebitPerVolume reads the derived EBIT-per-MMT view for one period.
func (b *Builder) ebitPerVolume(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	period, err := b.singlePeriod(pq)
	if err != nil {
		return nil, err
	}
	return &GeneratedSQL{
		Text:       "SELECT port_name, ebit_per_mmt FROM view_port_ebit_volume WHERE period = ? ORDER BY ebit_per_mmt DESC",
		Args:       []interface{}{period.Label},
		Provenance: ProvenanceHeuristic,
		Tables:     []string{"view_port_ebit_volume"},
	}, nil
}

// correlation pairs revenue with EBITDA margin per period, oldest first;
// the Pearson computation over consecutive deltas happens in the formatter.
func (b *Builder) correlation(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	text := "SELECT p.raw_label AS period, f.value AS revenue, m.ebitda_margin AS margin " +
		"FROM fact_pnl_annual f " +
		"JOIN dim_account a ON f.account_id = a.account_id " +
		"JOIN dim_period p ON p.period_id = f.period_id " +
		"JOIN view_ebitda_margin m ON m.period = p.raw_label " +
		"WHERE a.canonical_name = ? " +
		"AND a.account_id = (SELECT MIN(account_id) FROM dim_account WHERE canonical_name = ?) " +
		"ORDER BY p.sort_key ASC"

	return &GeneratedSQL{
		Text:       text,
		Args:       []interface{}{"Revenue from Operation", "Revenue from Operation"},
		Provenance: ProvenanceHeuristic,
		Tables:     []string{"fact_pnl_annual", "dim_account", "dim_period", "view_ebitda_margin"},
	}, nil
}

// capitalVsEBIT fetches EBIT and average capital employed side by side,
// newest first; ROCE is derived inline by the formatter.
func (b *Builder) capitalVsEBIT(pq *classify.ParsedQuery) (*GeneratedSQL, error) {
	var sb strings.Builder
	sb.WriteString(
		"SELECT p.raw_label AS period, " +
			"(SELECT SUM(f.value) FROM fact_roce_external f JOIN dim_account a ON f.account_id = a.account_id " +
			"WHERE a.canonical_name = 'EBIT' AND f.period_id = p.period_id) AS ebit, " +
			"(SELECT SUM(f.value) FROM fact_roce_external f JOIN dim_account a ON f.account_id = a.account_id " +
			"WHERE a.canonical_name = 'Average capital employed' AND f.period_id = p.period_id) AS capital_employed " +
			"FROM dim_period p")

	var args []interface{}
	if len(pq.Periods) > 0 {
		sb.WriteString(" WHERE p.raw_label IN (" + placeholders(len(pq.Periods)) + ")")
		for _, p := range pq.Periods {
			args = append(args, p.Label)
		}
		sb.WriteString(" ORDER BY p.sort_key DESC")
	} else {
		sb.WriteString(" ORDER BY p.sort_key DESC LIMIT 4")
	}

	return &GeneratedSQL{
		Text:       sb.String(),
		Args:       args,
		Provenance: ProvenanceHeuristic,
		Tables:     []string{"dim_period", "fact_roce_external", "dim_account"},
	}, nil
}

func (b *Builder) primaryMetric(pq *classify.ParsedQuery) (string, error) {
	if len(pq.Metrics) == 0 {
		return "", fmt.Errorf("intent %s requires a resolved metric", pq.Intent)
	}
	return pq.Metrics[0], nil
}

// singlePeriod picks the explicit period, defaulting to the latest.
func (b *Builder) singlePeriod(pq *classify.ParsedQuery) (registry.PeriodRef, error) {
	if len(pq.Periods) > 0 {
		// Newest of the referenced periods.
		return pq.Periods[len(pq.Periods)-1], nil
	}
	latest, ok := b.reg.LatestPeriod()
	if !ok {
		return registry.PeriodRef{}, fmt.Errorf("no periods loaded in registry")
	}
	return latest, nil
}

// targetPeriods returns the explicit periods, or the latest when the
// question named none and the intent wants a single snapshot.
func (b *Builder) targetPeriods(pq *classify.ParsedQuery, defaultLatest bool) []registry.PeriodRef {
	if len(pq.Periods) > 0 {
		return pq.Periods
	}
	if !defaultLatest {
		return nil
	}
	if latest, ok := b.reg.LatestPeriod(); ok {
		return []registry.PeriodRef{latest}
	}
	return nil
}

// viewSeries reads a period/value pair from one of the derived views.
func (b *Builder) viewSeries(view, column string, pq *classify.ParsedQuery, defaultLatest bool) *GeneratedSQL {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT period, %s FROM %s", column, view)
	var args []interface{}
	periods := b.targetPeriods(pq, defaultLatest)
	if len(periods) > 0 {
		sb.WriteString(" WHERE period IN (" + placeholders(len(periods)) + ")")
		for _, p := range periods {
			args = append(args, p.Label)
		}
	}
	sb.WriteString(" ORDER BY period ASC")
	return &GeneratedSQL{
		Text:       sb.String(),
		Args:       args,
		Provenance: ProvenanceHeuristic,
		Tables:     []string{view},
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
