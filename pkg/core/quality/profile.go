// Package quality profiles a built warehouse: row counts, missing metric
// values, duplicate canonical accounts, and the internal-versus-external
// ROCE reconciliation. The profile is advisory; ingestion never fails on
// quality findings.
package quality

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// metricColumns lists the nullable metric columns per fact table.
var metricColumns = map[string][]string{
	"fact_balance_sheet":  {"value"},
	"fact_cash_flow":      {"value"},
	"fact_pnl_annual":     {"value"},
	"fact_pnl_quarterly":  {"value"},
	"fact_roce_external":  {"value"},
	"fact_roce_internal":  {"value"},
	"fact_roro":           {"value", "number_of_cars"},
	"fact_volume":         {"volume_value"},
}

// MissingCounts is one table's per-column NULL tally.
type MissingCounts struct {
	Table  string
	Counts map[string]int
}

// Reconciliation compares the summed port-level EBIT against the external
// statement's EBIT for one period.
type Reconciliation struct {
	Period   string
	Internal float64
	External float64
	Diff     float64
	PctDiff  float64
	HasPct   bool
}

// Profile is the full quality report.
type Profile struct {
	RowCounts         map[string]int
	Missing           []MissingCounts
	DuplicateAccounts int
	ROCE              []Reconciliation
}

// Run collects the profile from an open warehouse handle.
func Run(ctx context.Context, db *sql.DB) (*Profile, error) {
	p := &Profile{RowCounts: make(map[string]int)}

	tables, err := userTables(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t, err)
		}
		p.RowCounts[t] = n
	}

	for _, t := range sortedKeys(metricColumns) {
		mc := MissingCounts{Table: t, Counts: make(map[string]int)}
		for _, col := range metricColumns[t] {
			var n int
			q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", t, col)
			if err := db.QueryRowContext(ctx, q).Scan(&n); err != nil {
				return nil, fmt.Errorf("missing-value scan of %s failed: %w", t, err)
			}
			mc.Counts[col] = n
		}
		p.Missing = append(p.Missing, mc)
	}

	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM (SELECT canonical_name FROM dim_account GROUP BY canonical_name HAVING COUNT(*) > 1)").
		Scan(&p.DuplicateAccounts); err != nil {
		return nil, fmt.Errorf("duplicate account scan failed: %w", err)
	}

	recs, err := reconcileROCE(ctx, db)
	if err != nil {
		return nil, err
	}
	p.ROCE = recs
	return p, nil
}

func userTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// reconcileROCE sums port-level EBIT per period and compares it against the
// external statement's EBIT line. Periods missing either side are skipped.
func reconcileROCE(ctx context.Context, db *sql.DB) ([]Reconciliation, error) {
	rows, err := db.QueryContext(ctx, `
SELECT p.raw_label,
       (SELECT SUM(fri.value) FROM fact_roce_internal fri
        JOIN dim_account ai ON fri.account_id = ai.account_id AND ai.canonical_name = 'EBIT'
        WHERE fri.period_id = p.period_id) AS internal_ebit,
       (SELECT SUM(fe.value) FROM fact_roce_external fe
        JOIN dim_account ae ON fe.account_id = ae.account_id AND ae.canonical_name = 'EBIT'
        WHERE fe.period_id = p.period_id) AS external_ebit
FROM dim_period p ORDER BY p.sort_key DESC`)
	if err != nil {
		return nil, fmt.Errorf("ROCE reconciliation query failed: %w", err)
	}
	defer rows.Close()

	var out []Reconciliation
	for rows.Next() {
		var period string
		var internal, external sql.NullFloat64
		if err := rows.Scan(&period, &internal, &external); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation row: %w", err)
		}
		if !internal.Valid || !external.Valid {
			continue
		}
		r := Reconciliation{
			Period:   period,
			Internal: internal.Float64,
			External: external.Float64,
			Diff:     internal.Float64 - external.Float64,
		}
		if external.Float64 != 0 {
			r.PctDiff = r.Diff / external.Float64
			r.HasPct = true
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Render formats the profile for the CLI.
func (p *Profile) Render() string {
	var b strings.Builder
	b.WriteString("Row counts:\n")
	for _, t := range sortedKeys(p.RowCounts) {
		fmt.Fprintf(&b, "  %s: %d\n", t, p.RowCounts[t])
	}

	b.WriteString("\nMissing value scan:\n")
	for _, mc := range p.Missing {
		var parts []string
		for _, col := range metricColumns[mc.Table] {
			parts = append(parts, fmt.Sprintf("%s=%d", col, mc.Counts[col]))
		}
		fmt.Fprintf(&b, "  %s: %s\n", mc.Table, strings.Join(parts, ", "))
	}

	fmt.Fprintf(&b, "\nDuplicate canonical accounts: %d\n", p.DuplicateAccounts)

	b.WriteString("\nROCE reconciliation (internal vs external):\n")
	for _, r := range p.ROCE {
		pct := "n/a"
		if r.HasPct {
			pct = fmt.Sprintf("%.2f%%", r.PctDiff*100)
		}
		fmt.Fprintf(&b, "  %s: internal=%.2f external=%.2f diff=%.2f (%s)\n",
			r.Period, r.Internal, r.External, r.Diff, pct)
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
