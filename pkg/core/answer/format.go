// Package answer turns executed rows plus intent context into one
// natural-language sentence. Formatting rules: currency values keep the
// dataset's native unit with no invented precision, percentages get one
// decimal place and an explicit %, empty result sets always produce the
// same scoped sentence.
package answer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"harbor_insight/pkg/core/classify"
	"harbor_insight/pkg/core/store"
)

// EmptyResultAnswer is returned whenever a query runs cleanly but matches
// nothing.
const EmptyResultAnswer = "No matching data for the requested criteria."

// UndefinedGrowth is the sentinel rendered when a growth denominator is
// zero; division never raises.
const UndefinedGrowth = "undefined (prior value was zero)"

// Context carries what the formatter needs beyond the rows themselves.
// Consumed once, then discarded.
type Context struct {
	Intent     classify.Intent
	Metric     string
	MetricType string // "absolute" or "ratio"
	Period     string // display period for single-period intents
	CargoType  string
	TopN       int
}

// templateWidth is the narrowest row each intent template reads. Rows can
// arrive from collaborator-generated SQL with an arbitrary shape, so
// anything narrower is handed to the generic table renderer instead of
// indexing past the end of the row.
var templateWidth = map[classify.Intent]int{
	classify.IntentSingleMetric:          2,
	classify.IntentMultiYearTrend:        2,
	classify.IntentRanking:               2,
	classify.IntentMultiMetricSummary:    3,
	classify.IntentYoYGrowth:             2,
	classify.IntentPortRanking:           2,
	classify.IntentCargoVolumeByPort:     2,
	classify.IntentEBITPerVolume:         2,
	classify.IntentCorrelation:           3,
	classify.IntentCapitalEmployedVsEBIT: 3,
}

// Format renders the result set for the given intent.
func Format(actx Context, rs *store.ResultSet) string {
	if rs.Empty() {
		return EmptyResultAnswer
	}
	width, ok := templateWidth[actx.Intent]
	if !ok {
		width = 2
	}
	if !rowsWide(rs, width) {
		return FormatTable(rs)
	}

	switch actx.Intent {
	case classify.IntentSingleMetric:
		return formatSingle(actx, rs)
	case classify.IntentMultiYearTrend:
		return formatTrend(actx, rs)
	case classify.IntentRanking:
		return formatRanking(actx, rs)
	case classify.IntentMultiMetricSummary:
		return formatMultiMetric(rs)
	case classify.IntentYoYGrowth:
		return formatYoYGrowth(actx, rs)
	case classify.IntentPortRanking:
		return formatPortRanking(actx, rs)
	case classify.IntentCargoVolumeByPort:
		return formatCargoVolumes(actx, rs)
	case classify.IntentEBITPerVolume:
		return formatEBITPerVolume(actx, rs)
	case classify.IntentCorrelation:
		return formatCorrelation(rs)
	case classify.IntentCapitalEmployedVsEBIT:
		return formatCapitalVsEBIT(rs)
	}
	return formatTrend(actx, rs)
}

func formatSingle(actx Context, rs *store.ResultSet) string {
	if len(rs.Rows) > 1 {
		// A single-metric question over several explicit periods reads
		// like a short trend.
		return formatTrend(actx, rs)
	}
	period := str(rs.Rows[0][0])
	val, ok := num(rs.Rows[0][1])
	if !ok {
		return fmt.Sprintf("Data for %s is unavailable.", period)
	}
	return fmt.Sprintf("%s in %s was %s.", actx.Metric, period, renderValue(val, actx.MetricType))
}

func formatTrend(actx Context, rs *store.ResultSet) string {
	var parts []string
	for _, row := range rs.Rows {
		val, ok := num(row[1])
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", str(row[0]), renderValue(val, actx.MetricType)))
	}
	if len(parts) == 0 {
		return EmptyResultAnswer
	}
	return fmt.Sprintf("%s by period: %s.", actx.Metric, strings.Join(parts, "; "))
}

func formatRanking(actx Context, rs *store.ResultSet) string {
	var parts []string
	for i, row := range rs.Rows {
		val, ok := num(row[1])
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d. %s (%s)", i+1, str(row[0]), renderValue(val, actx.MetricType)))
	}
	if len(parts) == 0 {
		return EmptyResultAnswer
	}
	return fmt.Sprintf("Top %d periods by %s: %s.", len(parts), actx.Metric, strings.Join(parts, ", "))
}

// formatMultiMetric renders one line per period with the margin derived as
// EBITDA/Revenue, never read from a separate fact row.
func formatMultiMetric(rs *store.ResultSet) string {
	var parts []string
	for _, row := range rs.Rows {
		period := str(row[0])
		revenue, rok := num(row[1])
		ebitda, eok := num(row[2])
		if !rok && !eok {
			continue
		}
		seg := period + ":"
		if rok {
			seg += " Revenue " + formatAmount(revenue) + ";"
		}
		if eok {
			seg += " EBITDA " + formatAmount(ebitda) + ";"
		}
		if rok && eok && revenue != 0 {
			seg += " EBITDA Margin " + formatPercent(ebitda/revenue*100)
		} else {
			seg += " EBITDA Margin n/a"
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return EmptyResultAnswer
	}
	return strings.Join(parts, " | ")
}

// formatYoYGrowth expects the two endpoint rows ordered oldest first.
// Growth is (later - earlier) / earlier * 100; a zero base yields the
// sentinel, never a division error.
func formatYoYGrowth(actx Context, rs *store.ResultSet) string {
	if len(rs.Rows) < 2 {
		return "Data unavailable for the requested periods."
	}
	p0, p1 := str(rs.Rows[0][0]), str(rs.Rows[1][0])
	v0, ok0 := num(rs.Rows[0][1])
	v1, ok1 := num(rs.Rows[1][1])
	if !ok0 || !ok1 {
		return fmt.Sprintf("Insufficient data to compute YoY growth for %s.", actx.Metric)
	}
	if v0 == 0 {
		return fmt.Sprintf("%s YoY growth from %s to %s is %s.", actx.Metric, p0, p1, UndefinedGrowth)
	}
	growth := (v1 - v0) / v0 * 100
	return fmt.Sprintf("%s YoY growth from %s to %s: %s (from %s to %s).",
		actx.Metric, p0, p1, formatSignedPercent(growth), formatAmount(v0), formatAmount(v1))
}

func formatPortRanking(actx Context, rs *store.ResultSet) string {
	var parts []string
	for i, row := range rs.Rows {
		val, ok := num(row[1])
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d. %s (%s)", i+1, str(row[0]), formatAmount(val)))
	}
	if len(parts) == 0 {
		return EmptyResultAnswer
	}
	return fmt.Sprintf("Top %d ports by EBIT in %s: %s.", len(parts), actx.Period, strings.Join(parts, ", "))
}

func formatCargoVolumes(actx Context, rs *store.ResultSet) string {
	var parts []string
	for _, row := range rs.Rows {
		val, ok := num(row[1])
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", str(row[0]), formatAmount(val)))
	}
	if len(parts) == 0 {
		return EmptyResultAnswer
	}
	label := "Cargo volumes"
	if actx.CargoType != "" {
		label = actx.CargoType + " cargo volumes"
	}
	return fmt.Sprintf("%s by port in %s: %s.", label, actx.Period, strings.Join(parts, ", "))
}

func formatEBITPerVolume(actx Context, rs *store.ResultSet) string {
	var parts []string
	for _, row := range rs.Rows {
		val, ok := num(row[1])
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", str(row[0]), formatAmount(val)))
	}
	if len(parts) == 0 {
		return EmptyResultAnswer
	}
	return fmt.Sprintf("EBIT per MMT by port in %s: %s.", actx.Period, strings.Join(parts, ", "))
}

// formatCorrelation expects period-ordered rows of (period, revenue,
// ebitda_margin). Pearson is computed over consecutive revenue growth
// versus margin deltas, which needs at least three periods.
func formatCorrelation(rs *store.ResultSet) string {
	var revenues, margins []float64
	for _, row := range rs.Rows {
		rev, rok := num(row[1])
		mar, mok := num(row[2])
		if !rok || !mok {
			continue
		}
		revenues = append(revenues, rev)
		margins = append(margins, mar)
	}
	if len(revenues) < 3 {
		return "Insufficient data for correlation analysis."
	}

	var growths, deltas []float64
	for i := 1; i < len(revenues); i++ {
		if revenues[i-1] == 0 {
			continue
		}
		growths = append(growths, (revenues[i]-revenues[i-1])/revenues[i-1])
		deltas = append(deltas, margins[i]-margins[i-1])
	}
	if len(growths) < 2 {
		return "Insufficient data for correlation analysis."
	}

	r, ok := pearson(growths, deltas)
	if !ok {
		return "Correlation is undefined for the available data (no variation)."
	}
	return fmt.Sprintf("Correlation between revenue growth and EBITDA margin change: %s (%s) over %d periods.",
		strconv.FormatFloat(r, 'f', 2, 64), interpretCorrelation(r), len(revenues))
}

// pearson returns the sample correlation coefficient, or ok=false when
// either series has zero variance.
func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

func interpretCorrelation(r float64) string {
	switch {
	case r >= 0.5:
		return "moderately positive"
	case r >= 0.2:
		return "weakly positive"
	case r <= -0.5:
		return "moderately negative"
	case r <= -0.2:
		return "weakly negative"
	default:
		return "little to no relationship"
	}
}

// formatCapitalVsEBIT renders EBIT against average capital employed with
// ROCE derived inline per period.
func formatCapitalVsEBIT(rs *store.ResultSet) string {
	var parts []string
	for _, row := range rs.Rows {
		period := str(row[0])
		ebit, eok := num(row[1])
		capital, cok := num(row[2])
		if !eok || !cok {
			continue
		}
		roce := "n/a"
		if capital != 0 {
			roce = formatPercent(ebit / capital * 100)
		}
		parts = append(parts, fmt.Sprintf("%s: EBIT %s; Average capital employed %s; ROCE %s",
			period, formatAmount(ebit), formatAmount(capital), roce))
	}
	if len(parts) == 0 {
		return "No data available to compare EBIT and average capital employed."
	}
	return strings.Join(parts, " | ")
}

// FormatTable renders an arbitrary result set when no intent template
// applies, such as rows from a collaborator-generated query. One line per
// row, column names as labels.
func FormatTable(rs *store.ResultSet) string {
	if rs.Empty() {
		return EmptyResultAnswer
	}
	if len(rs.Columns) == 2 && len(rs.Rows) == 1 {
		if val, ok := num(rs.Rows[0][1]); ok {
			return fmt.Sprintf("%s %s: %s.", rs.Columns[1], str(rs.Rows[0][0]), formatAmount(val))
		}
	}
	var lines []string
	for _, row := range rs.Rows {
		var cells []string
		for i, col := range rs.Columns {
			if i >= len(row) {
				break
			}
			if val, ok := num(row[i]); ok {
				cells = append(cells, fmt.Sprintf("%s=%s", col, formatAmount(val)))
				continue
			}
			cells = append(cells, fmt.Sprintf("%s=%s", col, str(row[i])))
		}
		lines = append(lines, strings.Join(cells, ", "))
	}
	return strings.Join(lines, " | ")
}

// rowsWide reports whether every row carries at least n columns.
func rowsWide(rs *store.ResultSet, n int) bool {
	for _, row := range rs.Rows {
		if len(row) < n {
			return false
		}
	}
	return true
}

func renderValue(v float64, metricType string) string {
	if metricType == "ratio" {
		// Ratio facts and views store fractions.
		return formatPercent(v * 100)
	}
	return formatAmount(v)
}

// formatAmount keeps the dataset's native unit: round to two decimals,
// then drop trailing zeros rather than inventing precision.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" || s == "" {
		s = "0"
	}
	return s
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

func formatSignedPercent(p float64) string {
	if p >= 0 {
		return "+" + formatPercent(p)
	}
	return formatPercent(p)
}

func str(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func num(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
