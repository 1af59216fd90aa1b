// Package utils cleans up raw LLM output into a usable SQL statement.
// Models wrap SQL in markdown fences, chat prose, or slightly broken JSON;
// everything here is about recovering the statement without trusting it.
// The safety gate still runs on whatever comes out.
package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// sqlEnvelope is the JSON shape the prompt asks the model for.
type sqlEnvelope struct {
	SQL string `json:"sql"`
}

var selectStartRe = regexp.MustCompile(`(?is)\b(SELECT|WITH)\b.*`)

// StripCodeFence removes an outer markdown code block (```sql ... ```,
// ```json ... ```, or bare ```) and surrounding whitespace.
func StripCodeFence(input string) string {
	cleaned := strings.TrimSpace(input)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```sql")
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// ParseSQLEnvelope tries progressively more lenient parses of a
// {"sql": "..."} response: standard JSON, then json-repair, then Hjson.
func ParseSQLEnvelope(input string) (string, error) {
	cleaned := StripCodeFence(input)

	var env sqlEnvelope
	if err := json.Unmarshal([]byte(cleaned), &env); err == nil && env.SQL != "" {
		return env.SQL, nil
	}

	if repaired, err := jsonrepair.RepairJSON(cleaned); err == nil {
		env = sqlEnvelope{}
		if err := json.Unmarshal([]byte(repaired), &env); err == nil && env.SQL != "" {
			return env.SQL, nil
		}
	}

	env = sqlEnvelope{}
	if err := hjson.Unmarshal([]byte(cleaned), &env); err == nil && env.SQL != "" {
		return env.SQL, nil
	}

	return "", fmt.Errorf("no sql field in model response")
}

// ExtractSQL recovers one SQL statement from arbitrary model output. The
// JSON envelope is tried first; failing that, the first SELECT/WITH run of
// the fence-stripped text is taken and whitespace collapsed to one line.
func ExtractSQL(input string) (string, error) {
	if sql, err := ParseSQLEnvelope(input); err == nil {
		return normalizeStatement(sql), nil
	}

	cleaned := StripCodeFence(input)
	m := selectStartRe.FindString(cleaned)
	if m == "" {
		return "", fmt.Errorf("model response contains no SELECT statement")
	}
	// Cut at the first statement boundary if the model kept talking.
	if i := strings.Index(m, ";"); i >= 0 {
		m = m[:i+1]
	}
	return normalizeStatement(m), nil
}

func normalizeStatement(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// canonicalRewrites fixes the shortened canonical names models habitually
// produce, so the generated SQL matches the warehouse spelling.
var canonicalRewrites = []struct{ old, new string }{
	{"canonical_name = 'Revenue'", "canonical_name = 'Revenue from Operation'"},
	{"canonical_name='Revenue'", "canonical_name='Revenue from Operation'"},
	{"canonical_name = 'Revenues'", "canonical_name = 'Revenue from Operation'"},
	{"canonical_name='Revenues'", "canonical_name='Revenue from Operation'"},
}

// SanitizeCanonicalNames applies the known canonical-name rewrites.
func SanitizeCanonicalNames(sql string) string {
	for _, r := range canonicalRewrites {
		sql = strings.ReplaceAll(sql, r.old, r.new)
	}
	return sql
}
