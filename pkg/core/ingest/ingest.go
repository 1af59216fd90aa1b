// Package ingest builds the analytical warehouse from the raw dataset
// CSVs. Each source file maps to one fact table; dimension rows are
// created on first sight. Account names are canonicalized through the
// registry's alias index during loading so queries never see raw
// spreadsheet spellings.
package ingest

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"harbor_insight/pkg/core/registry"
)

//go:embed schema.sql
var schemaDDL string

// Source CSV file names inside the dataset directory.
const (
	fileBalanceSheet = "BalanceSheet.csv"
	fileCashFlow     = "CashFlowStatement.csv"
	filePnLAnnual    = "Consolidated PnL.csv"
	filePnLQuarterly = "Quarterly PnL.csv"
	fileROCEExternal = "ROCE External.csv"
	fileROCEInternal = "ROCE Internal.csv"
	fileRORO         = "RORO.csv"
	fileVolumes      = "Volumes.csv"
)

// Pipeline loads one dataset directory into one database.
type Pipeline struct {
	db  *sql.DB
	reg *registry.Registry
	dir string

	periodIDs  map[string]int64
	accountIDs map[string]int64
}

// NewPipeline creates a pipeline over an open database handle.
func NewPipeline(db *sql.DB, reg *registry.Registry, datasetDir string) *Pipeline {
	return &Pipeline{
		db:         db,
		reg:        reg,
		dir:        datasetDir,
		periodIDs:  make(map[string]int64),
		accountIDs: make(map[string]int64),
	}
}

// Run creates the schema and loads every dataset file that exists.
// Missing files are skipped with a log line so partial datasets still
// produce a usable warehouse.
func (p *Pipeline) Run(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create warehouse schema: %w", err)
	}

	loaders := []struct {
		file string
		load func(ctx context.Context, rows *table) error
	}{
		{fileBalanceSheet, p.loadBalanceSheet},
		{fileCashFlow, p.loadCashFlow},
		{filePnLAnnual, p.loadPnLAnnual},
		{filePnLQuarterly, p.loadPnLQuarterly},
		{fileROCEExternal, p.loadROCEExternal},
		{fileROCEInternal, p.loadROCEInternal},
		{fileRORO, p.loadRORO},
		{fileVolumes, p.loadVolumes},
	}

	for _, l := range loaders {
		t, err := readCSV(filepath.Join(p.dir, l.file))
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("[WARNING] dataset file %s not found, skipping\n", l.file)
				continue
			}
			return fmt.Errorf("failed to read %s: %w", l.file, err)
		}
		if err := p.ensurePeriods(ctx, t.column("Period")); err != nil {
			return fmt.Errorf("failed to register periods from %s: %w", l.file, err)
		}
		if err := l.load(ctx, t); err != nil {
			return fmt.Errorf("failed to load %s: %w", l.file, err)
		}
		fmt.Printf("[DEBUG] loaded %s (%d rows)\n", l.file, len(t.rows))
	}
	return nil
}

// table is one parsed CSV: a header index plus raw string rows.
type table struct {
	index map[string]int
	rows  [][]string
}

func readCSV(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV")
	}

	t := &table{index: make(map[string]int)}
	for i, name := range records[0] {
		t.index[strings.TrimSpace(name)] = i
	}
	t.rows = records[1:]
	return t, nil
}

// get returns the trimmed cell for a header name, empty when the column
// is absent or the row is short.
func (t *table) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// column collects the distinct non-empty values of one column.
func (t *table) column(col string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.rows {
		v := t.get(row, col)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// CleanNumber parses a spreadsheet numeric cell: commas and quotes are
// stripped, blanks and non-numbers report ok=false.
func CleanNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, `"`, "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// canonicalize maps a raw account name to its canonical form through the
// registry aliases; unknown names pass through trimmed.
func (p *Pipeline) canonicalize(name string) string {
	if canonical, ok := p.reg.CanonicalForAlias(name); ok {
		return canonical
	}
	return strings.TrimSpace(name)
}

func (p *Pipeline) ensurePeriods(ctx context.Context, labels []string) error {
	for _, label := range labels {
		if _, ok := p.periodIDs[label]; ok {
			continue
		}
		// Unparseable labels still get a dimension row, just without a
		// sort key, so their facts are not lost.
		ref, parseErr := registry.ParsePeriodLabel(label)
		var periodType interface{}
		if parseErr == nil {
			periodType = ref.PeriodType
		} else {
			ref = registry.PeriodRef{Label: label}
		}
		res, err := p.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO dim_period(raw_label, start_year, end_year, period_type, quarter, sort_key) VALUES (?, ?, ?, ?, ?, ?)",
			label, nullYear(ref.StartYear), nullYear(ref.EndYear), periodType, nullQuarter(ref.Quarter), nullYear(ref.SortKey))
		if err != nil {
			return fmt.Errorf("failed to insert period %q: %w", label, err)
		}
		// LastInsertId is only meaningful when the insert actually ran; an
		// ignored duplicate reports zero rows affected.
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			if id, err := res.LastInsertId(); err == nil && id > 0 {
				p.periodIDs[label] = id
				continue
			}
		}
		var id int64
		if err := p.db.QueryRowContext(ctx, "SELECT period_id FROM dim_period WHERE raw_label = ?", label).Scan(&id); err != nil {
			return fmt.Errorf("failed to resolve period %q: %w", label, err)
		}
		p.periodIDs[label] = id
	}
	return nil
}

func nullYear(y int) interface{} {
	if y == 0 {
		return nil
	}
	return y
}

func nullQuarter(q int) interface{} {
	if q == 0 {
		return nil
	}
	return q
}

// upsertAccount returns the account id for (name, statement), inserting on
// first sight. The cache key includes the statement because the same line
// item name can appear on several statements.
func (p *Pipeline) upsertAccount(ctx context.Context, name, statement, category, subCategory, subSubCategory, metricType string) (int64, error) {
	key := statement + "\x00" + name
	if id, ok := p.accountIDs[key]; ok {
		return id, nil
	}

	var id int64
	err := p.db.QueryRowContext(ctx,
		"SELECT account_id FROM dim_account WHERE name = ? AND statement_type = ?", name, statement).Scan(&id)
	if err == sql.ErrNoRows {
		res, insErr := p.db.ExecContext(ctx,
			"INSERT INTO dim_account(name, canonical_name, statement_type, category, sub_category, sub_sub_category, metric_type) VALUES (?, ?, ?, ?, ?, ?, ?)",
			name, p.canonicalize(name), statement, nullString(category), nullString(subCategory), nullString(subSubCategory), metricType)
		if insErr != nil {
			return 0, fmt.Errorf("failed to insert account %q: %w", name, insErr)
		}
		id, insErr = res.LastInsertId()
		if insErr != nil {
			return 0, fmt.Errorf("failed to read account id for %q: %w", name, insErr)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to look up account %q: %w", name, err)
	}

	p.accountIDs[key] = id
	return id, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// loadStatementFacts is the shared shape of the simple statement loaders:
// one account column, one period, one value, straight into a two-key fact
// table.
func (p *Pipeline) loadStatementFacts(ctx context.Context, t *table, fact, accountCol, statement string, withCategories bool) error {
	insert := fmt.Sprintf("INSERT INTO %s(account_id, period_id, value) VALUES (?, ?, ?)", fact)
	for _, row := range t.rows {
		name := t.get(row, accountCol)
		if name == "" {
			continue
		}
		metricType := "absolute"
		if statement == "PnLAnnual" && isRatioAccount(name, p.canonicalize(name)) {
			metricType = "ratio"
		}
		var category, sub, subSub string
		if withCategories {
			category = t.get(row, "Category")
			sub = t.get(row, "SubCategory")
			subSub = t.get(row, "SubSubCategory")
		}
		acctID, err := p.upsertAccount(ctx, name, statement, category, sub, subSub, metricType)
		if err != nil {
			return err
		}
		if err := p.insertFact(ctx, insert, acctID, t.get(row, "Period"), t.get(row, "Value")); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) insertFact(ctx context.Context, insert string, acctID int64, periodLabel, rawValue string) error {
	pid, ok := p.periodIDs[periodLabel]
	if !ok {
		return fmt.Errorf("unregistered period %q", periodLabel)
	}
	var value interface{}
	if v, ok := CleanNumber(rawValue); ok {
		value = v
	}
	if _, err := p.db.ExecContext(ctx, insert, acctID, pid, value); err != nil {
		return fmt.Errorf("failed to insert fact row: %w", err)
	}
	return nil
}

// isRatioAccount flags percentage-style P&L lines so ratio metrics are
// never summed like currency.
func isRatioAccount(name, canonical string) bool {
	return strings.Contains(name, "%") ||
		strings.HasSuffix(canonical, "%") ||
		strings.HasSuffix(strings.ToLower(canonical), "cagr") ||
		strings.Contains(strings.ToLower(canonical), "margin")
}

func (p *Pipeline) loadBalanceSheet(ctx context.Context, t *table) error {
	return p.loadStatementFacts(ctx, t, "fact_balance_sheet", "Line Item", "BalanceSheet", true)
}

func (p *Pipeline) loadCashFlow(ctx context.Context, t *table) error {
	return p.loadStatementFacts(ctx, t, "fact_cash_flow", "Item", "CashFlow", true)
}

func (p *Pipeline) loadPnLAnnual(ctx context.Context, t *table) error {
	return p.loadStatementFacts(ctx, t, "fact_pnl_annual", "Line Item", "PnLAnnual", false)
}

func (p *Pipeline) loadPnLQuarterly(ctx context.Context, t *table) error {
	return p.loadStatementFacts(ctx, t, "fact_pnl_quarterly", "Item", "PnLQuarterly", true)
}

func (p *Pipeline) loadROCEExternal(ctx context.Context, t *table) error {
	return p.loadStatementFacts(ctx, t, "fact_roce_external", "Particular", "ROCEExternal", false)
}

func (p *Pipeline) loadROCEInternal(ctx context.Context, t *table) error {
	catIDs, err := p.ensureDimension(ctx, "dim_roce_category", "roce_category_id", "name", t.column("Category"))
	if err != nil {
		return err
	}
	portIDs, err := p.ensureDimension(ctx, "dim_port", "port_id", "port_name", t.column("Port"))
	if err != nil {
		return err
	}

	for _, row := range t.rows {
		name := t.get(row, "Line Item")
		if name == "" {
			continue
		}
		acctID, err := p.upsertAccount(ctx, name, "ROCEInternal", "", "", "", "absolute")
		if err != nil {
			return err
		}
		pid, ok := p.periodIDs[t.get(row, "Period")]
		if !ok {
			return fmt.Errorf("unregistered period %q", t.get(row, "Period"))
		}
		var value interface{}
		if v, ok := CleanNumber(t.get(row, "Value")); ok {
			value = v
		}
		_, err = p.db.ExecContext(ctx,
			"INSERT INTO fact_roce_internal(roce_category_id, port_id, account_id, period_id, value) VALUES (?, ?, ?, ?, ?)",
			nullID(catIDs, t.get(row, "Category")), nullID(portIDs, t.get(row, "Port")), acctID, pid, value)
		if err != nil {
			return fmt.Errorf("failed to insert ROCE internal row: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) loadRORO(ctx context.Context, t *table) error {
	portIDs, err := p.ensureDimension(ctx, "dim_port", "port_id", "port_name", t.column("Port"))
	if err != nil {
		return err
	}
	for _, row := range t.rows {
		pid, ok := p.periodIDs[t.get(row, "Period")]
		if !ok {
			return fmt.Errorf("unregistered period %q", t.get(row, "Period"))
		}
		var value, cars interface{}
		if v, ok := CleanNumber(t.get(row, "Value")); ok {
			value = v
		}
		if v, ok := CleanNumber(t.get(row, "Number of Cars")); ok {
			cars = v
		}
		_, err := p.db.ExecContext(ctx,
			"INSERT INTO fact_roro(port_id, period_id, type, value, number_of_cars) VALUES (?, ?, ?, ?, ?)",
			nullID(portIDs, t.get(row, "Port")), pid, nullString(t.get(row, "Type")), value, cars)
		if err != nil {
			return fmt.Errorf("failed to insert RORO row: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) loadVolumes(ctx context.Context, t *table) error {
	// The volumes sheet labels cargo type "State".
	portIDs, err := p.ensureDimension(ctx, "dim_port", "port_id", "port_name", t.column("Port"))
	if err != nil {
		return err
	}
	cargoIDs, err := p.ensureDimension(ctx, "dim_cargo_type", "cargo_type_id", "name", t.column("State"))
	if err != nil {
		return err
	}
	commodityIDs, err := p.ensureDimension(ctx, "dim_commodity", "commodity_id", "name", t.column("Commodity"))
	if err != nil {
		return err
	}
	entityIDs, err := p.ensureDimension(ctx, "dim_entity", "entity_id", "name", t.column("Entity"))
	if err != nil {
		return err
	}
	finIDs, err := p.ensureDimension(ctx, "dim_fin_type", "fin_type_id", "name", t.column("Type"))
	if err != nil {
		return err
	}

	for _, row := range t.rows {
		pid, ok := p.periodIDs[t.get(row, "Period")]
		if !ok {
			return fmt.Errorf("unregistered period %q", t.get(row, "Period"))
		}
		var value interface{}
		if v, ok := CleanNumber(t.get(row, "Value")); ok {
			value = v
		}
		_, err := p.db.ExecContext(ctx,
			"INSERT INTO fact_volume(port_id, cargo_type_id, commodity_id, entity_id, fin_type_id, period_id, volume_value) VALUES (?, ?, ?, ?, ?, ?, ?)",
			nullID(portIDs, t.get(row, "Port")), nullID(cargoIDs, t.get(row, "State")),
			nullID(commodityIDs, t.get(row, "Commodity")), nullID(entityIDs, t.get(row, "Entity")),
			nullID(finIDs, t.get(row, "Type")), pid, value)
		if err != nil {
			return fmt.Errorf("failed to insert volume row: %w", err)
		}
	}
	return nil
}

// ensureDimension inserts any missing members of a name-keyed dimension and
// returns the full name to id map.
func (p *Pipeline) ensureDimension(ctx context.Context, dim, idCol, nameCol string, names []string) (map[string]int64, error) {
	for _, name := range names {
		_, err := p.db.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO %s(%s) VALUES (?)", dim, nameCol), name)
		if err != nil {
			return nil, fmt.Errorf("failed to insert into %s: %w", dim, err)
		}
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, %s FROM %s", idCol, nameCol, dim))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dim, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", dim, err)
		}
		out[name] = id
	}
	return out, rows.Err()
}

func nullID(ids map[string]int64, name string) interface{} {
	if id, ok := ids[name]; ok {
		return id
	}
	return nil
}
