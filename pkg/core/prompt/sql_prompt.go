// Package prompt builds the single prompt this system sends to an LLM:
// the schema contract, canonical table routing hints, and a few worked
// examples, followed by the user's question. The model only ever sees
// metadata and the question, never rows.
package prompt

import (
	"fmt"
	"strings"
)

// schemaSummary mirrors the warehouse DDL. It is kept as text rather than
// introspected at runtime because the analytical schema is fixed; the
// safety whitelist tracks the same name set.
const schemaSummary = `dim_period(period_id, raw_label, start_year, end_year, period_type, quarter, sort_key)
dim_account(account_id, name, canonical_name, statement_type, category, sub_category, sub_sub_category, metric_type)
dim_port(port_id, port_name)
dim_cargo_type(cargo_type_id, name)
dim_commodity(commodity_id, name)
dim_entity(entity_id, name)
dim_fin_type(fin_type_id, name)
dim_roce_category(roce_category_id, name)
fact_pnl_annual(account_id, period_id, value)
fact_pnl_quarterly(account_id, period_id, value)
fact_balance_sheet(account_id, period_id, value)
fact_cash_flow(account_id, period_id, value)
fact_roce_external(account_id, period_id, value)
fact_roce_internal(roce_category_id, port_id, account_id, period_id, value)
fact_volume(port_id, cargo_type_id, commodity_id, entity_id, fin_type_id, period_id, volume_value)
fact_roro(port_id, period_id, type, value, number_of_cars)
view_ebitda_margin(period, ebitda_margin)
view_roce(period, roce)
view_port_ebit_volume(period, port_name, ebit_per_mmt)`

// tableHints routes canonical accounts to the right fact table. The model
// reliably misroutes EBIT to the balance sheet without these.
const tableHints = `Canonical table mapping hints:
EBIT -> fact_roce_external (never fact_balance_sheet)
Average capital employed -> fact_roce_external (never fact_balance_sheet)
Revenue from Operation -> fact_pnl_annual
EBITDA -> fact_pnl_annual
EBITDA Margin -> view_ebitda_margin (period, ebitda_margin)
ROCE -> view_roce (period, roce)`

// examples are worked question/SQL pairs, carried over from the heuristic
// templates so both paths produce structurally identical SQL.
var examples = []struct {
	Question string
	SQL      string
}{
	{
		"What was EBITDA in 2024-25?",
		"SELECT p.raw_label AS period, f.value AS ebitda FROM fact_pnl_annual f JOIN dim_account a ON f.account_id = a.account_id JOIN dim_period p ON p.period_id = f.period_id WHERE a.canonical_name = 'EBITDA' AND p.raw_label = '2024-25';",
	},
	{
		"Rank years by Revenue from Operation",
		"SELECT p.raw_label AS period, f.value AS revenue FROM fact_pnl_annual f JOIN dim_account a ON f.account_id = a.account_id JOIN dim_period p ON p.period_id = f.period_id WHERE a.canonical_name = 'Revenue from Operation' ORDER BY revenue DESC;",
	},
	{
		"Year over year growth in EBITDA between 2023-24 and 2024-25",
		"WITH vals AS (SELECT p.raw_label AS period, f.value FROM fact_pnl_annual f JOIN dim_account a ON f.account_id = a.account_id JOIN dim_period p ON p.period_id = f.period_id WHERE a.canonical_name = 'EBITDA' AND p.raw_label IN ('2023-24', '2024-25')) SELECT v1.period AS current_period, v1.value AS current_ebitda, v0.value AS prior_ebitda, (v1.value - v0.value) / v0.value AS yoy_growth FROM vals v1 JOIN vals v0 ON v0.period = '2023-24' WHERE v1.period = '2024-25';",
	},
}

// SystemPrompt is the fixed instruction header sent as the system message.
const SystemPrompt = `You are a strict SQL generator for a read-only SQLite financial warehouse.
Respond with a JSON object {"sql": "<one SQL statement>"} and nothing else.
Rules: one statement only; SELECT or WITH only; no data modification of any kind; use only the listed tables and views; avoid SELECT *; write period labels as literals like '2024-25'.`

// BuildSQLPrompt assembles the user prompt for one question.
func BuildSQLPrompt(question string) string {
	var b strings.Builder
	b.WriteString("Schema:\n")
	b.WriteString(schemaSummary)
	b.WriteString("\n\n")
	b.WriteString(tableHints)
	b.WriteString("\n\nExamples:\n")
	for _, ex := range examples {
		fmt.Fprintf(&b, "Q: %s\nSQL: %s\n", ex.Question, ex.SQL)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\nJSON:", question)
	return b.String()
}
