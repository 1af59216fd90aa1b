package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the outcome of the static gate. Computed fresh per statement,
// never cached.
type Verdict struct {
	Accepted bool
	Reason   string
}

func accepted() Verdict           { return Verdict{Accepted: true} }
func rejected(why string) Verdict { return Verdict{Accepted: false, Reason: why} }

// schemaWhitelist is the exact table/view name set of the warehouse
// contract. It must track the ingestion collaborator's DDL.
var schemaWhitelist = map[string]bool{
	"dim_period":            true,
	"dim_account":           true,
	"dim_port":              true,
	"dim_cargo_type":        true,
	"dim_commodity":         true,
	"dim_entity":            true,
	"dim_fin_type":          true,
	"dim_roce_category":     true,
	"fact_pnl_annual":       true,
	"fact_pnl_quarterly":    true,
	"fact_balance_sheet":    true,
	"fact_cash_flow":        true,
	"fact_roce_external":    true,
	"fact_roce_internal":    true,
	"fact_volume":           true,
	"fact_roro":             true,
	"view_ebitda_margin":    true,
	"view_roce":             true,
	"view_port_ebit_volume": true,
}

var (
	startRe  = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
	denyRe   = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|ATTACH|PRAGMA)\b`)
	stringRe = regexp.MustCompile(`'[^']*'`)
	tableRe  = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	cteRe    = regexp.MustCompile(`(?i)\b(?:WITH|,)\s*([A-Za-z_][A-Za-z0-9_]*)\s+AS\s*\(`)
)

// Whitelist returns a copy of the schema whitelist, for callers that need
// to enumerate the contract (prompt building, tests).
func Whitelist() map[string]bool {
	out := make(map[string]bool, len(schemaWhitelist))
	for k := range schemaWhitelist {
		out[k] = true
	}
	return out
}

// Validate applies the static gate to a candidate SQL statement. The same
// checks run regardless of provenance, in order: exactly one statement;
// begins with SELECT (or WITH for CTEs); no denylisted keyword anywhere,
// comments included; every referenced table/view is whitelisted.
func Validate(sql string) Verdict {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return rejected("empty statement")
	}

	// One statement only. A single trailing semicolon is tolerated.
	body := strings.TrimSuffix(trimmed, ";")
	if strings.Contains(body, ";") {
		return rejected("multiple statements")
	}

	if !startRe.MatchString(body) {
		return rejected("statement must begin with SELECT")
	}

	// The denylist runs over the raw text, string literals and comments
	// included: a keyword smuggled into a comment is still a rejection.
	if m := denyRe.FindString(body); m != "" {
		return rejected(fmt.Sprintf("forbidden keyword %s", strings.ToUpper(m)))
	}

	// Table whitelist. String literals are removed first so period labels
	// like '2024-25' cannot fake table references, and CTE names defined
	// in the statement itself are excluded.
	noStrings := stringRe.ReplaceAllString(body, "''")
	ctes := make(map[string]bool)
	for _, m := range cteRe.FindAllStringSubmatch(noStrings, -1) {
		ctes[strings.ToLower(m[1])] = true
	}
	for _, m := range tableRe.FindAllStringSubmatch(noStrings, -1) {
		name := strings.ToLower(m[1])
		if ctes[name] {
			continue
		}
		if !schemaWhitelist[name] {
			return rejected(fmt.Sprintf("unknown table %s", name))
		}
	}

	return accepted()
}
