package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"harbor_insight/pkg/core/registry"
)

var tokenSplitRe = regexp.MustCompile(`[^a-zA-Z0-9%]+`)

// MetricResolver maps free-text metric mentions to canonical accounts.
type MetricResolver struct {
	reg *registry.Registry
}

// NewMetricResolver creates a resolver over the given registry.
func NewMetricResolver(reg *registry.Registry) *MetricResolver {
	return &MetricResolver{reg: reg}
}

// Resolve maps one metric mention to a canonical account name. Matching is
// case-insensitive alias-exact first; when that fails, a small
// edit-distance/substring fallback runs, restricted to statementHint when
// one is given. Two or more surviving canonicals is ErrAmbiguousMetric;
// the caller surfaces that rather than guessing.
func (m *MetricResolver) Resolve(mention, statementHint string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(mention))
	if key == "" {
		return "", fmt.Errorf("%w: empty mention", ErrUnknownMetric)
	}
	if canonical, ok := m.reg.CanonicalForAlias(key); ok {
		return canonical, nil
	}

	candidates := make(map[string]bool)
	for alias, canonical := range m.reg.Aliases() {
		if statementHint != "" {
			if acct, ok := m.reg.Account(canonical); ok && acct.Statement != statementHint {
				continue
			}
		}
		if fuzzyMatch(key, alias) {
			candidates[canonical] = true
		}
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrUnknownMetric, mention)
	case 1:
		for canonical := range candidates {
			return canonical, nil
		}
	}
	names := make([]string, 0, len(candidates))
	for canonical := range candidates {
		names = append(names, canonical)
	}
	sort.Strings(names)
	return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousMetric, mention, strings.Join(names, ", "))
}

// Detect scans a whole question for canonical accounts. An alias matches
// when all of its words appear as tokens of the question, so "revenue from
// operations" is found inside "show revenue from operations for 2024-25".
// Results are sorted by canonical name for deterministic slot extraction.
func (m *MetricResolver) Detect(question string) []string {
	tokens := make(map[string]bool)
	for _, tok := range tokenSplitRe.Split(strings.ToLower(question), -1) {
		if tok != "" {
			tokens[tok] = true
		}
	}

	found := make(map[string]bool)
	for alias, canonical := range m.reg.Aliases() {
		words := strings.Fields(alias)
		if len(words) == 0 {
			continue
		}
		all := true
		for _, w := range words {
			if !tokens[w] {
				all = false
				break
			}
		}
		if all {
			found[canonical] = true
		}
	}

	out := make([]string, 0, len(found))
	for canonical := range found {
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}

// fuzzyMatch accepts substring containment either way, or a small edit
// distance for mentions long enough that a typo is plausible. Mentions
// under six characters get a single edit at most so short everyday words
// cannot collide with short aliases ("price" is two edits from "roce"),
// and aliases under five characters are never matched as substrings of a
// longer mention ("process" contains "roce", "dispatch" contains "pat").
func fuzzyMatch(mention, alias string) bool {
	if strings.Contains(alias, mention) {
		return true
	}
	if len(alias) >= 5 && strings.Contains(mention, alias) {
		return true
	}
	switch {
	case len(mention) < 4:
		return false
	case len(mention) < 6:
		return levenshtein(mention, alias) <= 1
	}
	return levenshtein(mention, alias) <= 2
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
