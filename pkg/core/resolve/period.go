package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"harbor_insight/pkg/core/registry"
)

var (
	fiscalLabelRe = regexp.MustCompile(`20\d{2}-\d{2}`)
	bareYearRe    = regexp.MustCompile(`\b20\d{2}\b`)
	lastNYearsRe  = regexp.MustCompile(`last\s+(\d+)\s+years?`)
)

// PeriodResolver maps period expressions inside a question to ordered
// PeriodRefs from the registry.
type PeriodResolver struct {
	reg *registry.Registry
}

// NewPeriodResolver creates a resolver over the given registry.
func NewPeriodResolver(reg *registry.Registry) *PeriodResolver {
	return &PeriodResolver{reg: reg}
}

// Resolve extracts every period reference from the question and returns
// them deduplicated, oldest first. Recognized forms:
//
//	explicit labels        "2024-25"
//	ranges                 "2021-22 to 2024-25" (expands to all in between)
//	comparison pairs       "between 2023-24 and 2024-25" (just the pair)
//	relative windows       "last 3 years"
//	bare years             "2024" (the fiscal year starting that year)
//
// A question with no period expression returns an empty slice and no error;
// the caller decides the default (normally the latest period). A label that
// matches no registry entry returns ErrUnknownPeriod. A relative window
// larger than the available history returns the maximal available prefix.
func (r *PeriodResolver) Resolve(question string) ([]registry.PeriodRef, error) {
	lower := strings.ToLower(question)

	labels := fiscalLabelRe.FindAllString(question, -1)
	var refs []registry.PeriodRef
	for _, label := range labels {
		p, ok := r.reg.Period(label)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPeriod, label)
		}
		refs = append(refs, p)
	}

	// Range expansion: "X to Y" covers every annual period in between.
	// "between X and Y" keeps just the endpoints for comparison.
	if len(refs) == 2 && !strings.Contains(lower, "between") {
		rangeExpr := fmt.Sprintf("%s to %s", strings.ToLower(labels[0]), strings.ToLower(labels[1]))
		if strings.Contains(lower, rangeExpr) {
			refs = r.expandRange(refs[0], refs[1])
		}
	}

	// Relative window: "last N years" means the N most recent annual
	// periods. Fewer available periods is degraded, not an error.
	if m := lastNYearsRe.FindStringSubmatch(lower); m != nil && len(refs) == 0 {
		n, _ := strconv.Atoi(m[1])
		if n < 1 {
			n = 1
		}
		annual := r.reg.AnnualPeriods()
		if n > len(annual) {
			n = len(annual)
		}
		refs = append(refs, annual[len(annual)-n:]...)
	}

	// Bare years: strip fiscal labels first so "2024-25" does not also
	// match as "2024".
	if len(refs) == 0 {
		stripped := fiscalLabelRe.ReplaceAllString(question, "")
		for _, y := range bareYearRe.FindAllString(stripped, -1) {
			year, _ := strconv.Atoi(y)
			p, ok := r.annualStarting(year)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownPeriod, y)
			}
			refs = append(refs, p)
		}
	}

	return dedupeAscending(refs), nil
}

// expandRange returns every annual period whose sort key falls inside
// [from, to], inclusive.
func (r *PeriodResolver) expandRange(from, to registry.PeriodRef) []registry.PeriodRef {
	lo, hi := from.SortKey, to.SortKey
	if lo > hi {
		lo, hi = hi, lo
	}
	var out []registry.PeriodRef
	for _, p := range r.reg.AnnualPeriods() {
		if p.SortKey >= lo && p.SortKey <= hi {
			out = append(out, p)
		}
	}
	return out
}

func (r *PeriodResolver) annualStarting(year int) (registry.PeriodRef, bool) {
	for _, p := range r.reg.AnnualPeriods() {
		if p.StartYear == year {
			return p, true
		}
	}
	return registry.PeriodRef{}, false
}

func dedupeAscending(refs []registry.PeriodRef) []registry.PeriodRef {
	if len(refs) == 0 {
		return refs
	}
	seen := make(map[string]bool, len(refs))
	out := refs[:0]
	for _, p := range refs {
		if !seen[p.Label] {
			seen[p.Label] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey < out[j].SortKey })
	return out
}
