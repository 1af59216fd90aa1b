package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"harbor_insight/pkg/core/registry"
	"harbor_insight/pkg/core/resolve"
)

var topNRe = regexp.MustCompile(`top\s+(\d+)`)

var metricTokenRe = regexp.MustCompile(`[a-z0-9%]+`)

// fuzzyStopwords are question words that would otherwise brush against the
// alias table ("from" sits inside "revenue from operation", "over" inside
// "turnover"). Only consulted on the typo fallback path.
var fuzzyStopwords = map[string]bool{
	"from": true, "over": true, "what": true, "when": true, "where": true,
	"which": true, "show": true, "tell": true, "give": true, "that": true,
	"this": true, "does": true, "were": true, "have": true, "about": true,
	"much": true, "many": true, "last": true, "year": true, "years": true,
	"period": true, "periods": true, "between": true, "compare": true,
}

// defaultCargoTypes backs cargo detection before the warehouse dimension
// has been loaded into the registry.
var defaultCargoTypes = []string{"Dry", "Crude", "Liquid", "Container", "Cars"}

// analyticalKeywords flag questions that usually want a synthesized
// explanation rather than a template answer.
var analyticalKeywords = []string{"explain", "forecast", "why", "correlation"}

// Classifier assigns one intent to a question by evaluating a fixed,
// priority-ordered rule list. The order is a design contract: two rules can
// both syntactically match the same question ("top 3 ports" is also a
// ranking with a port word), so the first match wins and the list runs most
// specific first.
type Classifier struct {
	reg     *registry.Registry
	periods *resolve.PeriodResolver
	metrics *resolve.MetricResolver
	rules   []rule
}

// question carries the normalized question and pre-extracted slots shared
// by every rule predicate.
type question struct {
	raw     string
	lower   string
	metrics []string
	periods []registry.PeriodRef
	topN    int
}

type rule struct {
	name   string
	intent Intent
	match  func(q *question) bool
	fill   func(c *Classifier, q *question, pq *ParsedQuery) error
}

// New creates a classifier over the registry.
func New(reg *registry.Registry) *Classifier {
	c := &Classifier{
		reg:     reg,
		periods: resolve.NewPeriodResolver(reg),
		metrics: resolve.NewMetricResolver(reg),
	}
	c.rules = ruleList()
	return c
}

// Classify resolves slots and runs the rule list. Slot extraction is
// idempotent: the same question always yields the same ParsedQuery.
// Resolution failures (unknown period, ambiguous metric) propagate so the
// orchestrator can answer with a scoped message.
func (c *Classifier) Classify(q string) (*ParsedQuery, error) {
	periods, err := c.periods.Resolve(q)
	if err != nil {
		return nil, err
	}

	qq := &question{
		raw:     q,
		lower:   strings.ToLower(q),
		metrics: c.metrics.Detect(q),
		periods: periods,
	}
	if len(qq.metrics) == 0 {
		qq.metrics = c.fuzzyMetrics(qq.lower)
	}
	if m := topNRe.FindStringSubmatch(qq.lower); m != nil {
		qq.topN, _ = strconv.Atoi(m[1])
	}

	pq := &ParsedQuery{
		Intent:     IntentUnsupported,
		Question:   q,
		Periods:    periods,
		TopN:       qq.topN,
		Analytical: isAnalytical(qq.lower),
	}

	for _, r := range c.rules {
		if r.match(qq) {
			pq.Intent = r.intent
			if r.fill != nil {
				if err := r.fill(c, qq, pq); err != nil {
					return nil, err
				}
			}
			return pq, nil
		}
	}
	return pq, nil
}

// ruleList is the documented precedence order. Do not reorder without
// revisiting the overlap cases in the classifier tests.
func ruleList() []rule {
	return []rule{
		{
			name:   "multi-metric-summary",
			intent: IntentMultiMetricSummary,
			match: func(q *question) bool {
				combined := hasMetric(q, "EBITDA") && hasMetric(q, "Revenue from Operation")
				keyword := strings.Contains(q.lower, "summary") || strings.Contains(q.lower, "performance")
				if !combined && !keyword {
					return false
				}
				// Comparative phrasing wants a trend or growth answer, not
				// the combined snapshot.
				return !containsAny(q.lower, "growth", "compare", "change", "trend", "correlation")
			},
		},
		{
			name:   "yoy-growth",
			intent: IntentYoYGrowth,
			match: func(q *question) bool {
				return strings.Contains(q.lower, "yoy growth") ||
					strings.Contains(q.lower, "year over year growth") ||
					strings.Contains(q.lower, "year-over-year growth")
			},
			fill: fillGrowthMetric,
		},
		{
			name:   "ebit-per-volume",
			intent: IntentEBITPerVolume,
			match: func(q *question) bool {
				return containsAny(q.lower, "ebit per mmt", "ebitda per mmt", "ebit per cargo", "ebit per tonne")
			},
		},
		{
			name:   "correlation",
			intent: IntentCorrelation,
			match: func(q *question) bool {
				return strings.Contains(q.lower, "correlation") || strings.Contains(q.lower, "correlate")
			},
		},
		{
			name:   "capital-vs-ebit",
			intent: IntentCapitalEmployedVsEBIT,
			match: func(q *question) bool {
				return strings.Contains(q.lower, "capital employed") &&
					strings.Contains(q.lower, "ebit") &&
					containsAny(q.lower, "trend", "change", "compare", "explain", "versus", " vs ")
			},
		},
		{
			name:   "ranking",
			intent: IntentRanking,
			match: func(q *question) bool {
				if strings.Contains(q.lower, "port") {
					return false // port-ranking claims those below
				}
				if strings.Contains(q.lower, "rank") && strings.Contains(q.lower, "year") {
					return true
				}
				return q.topN > 0 && len(q.metrics) > 0
			},
			fill: fillPrimaryMetric,
		},
		{
			name:   "cargo-volume-by-port",
			intent: IntentCargoVolumeByPort,
			match: func(q *question) bool {
				if !containsAny(q.lower, "cargo", "volume") {
					return false
				}
				// "Top 3 ports by cargo volume" is a volume question, not an
				// EBIT port ranking.
				return containsAny(q.lower, "by port", "per port", "across ports", "ports by") ||
					(strings.Contains(q.lower, "port") && containsAny(q.lower, "top", "rank", "best"))
			},
			fill: fillCargoType,
		},
		{
			name:   "port-ranking",
			intent: IntentPortRanking,
			match: func(q *question) bool {
				return containsAny(q.lower, "top", "rank", "best") && strings.Contains(q.lower, "port")
			},
			fill: func(c *Classifier, q *question, pq *ParsedQuery) error {
				// Port-level profitability lives in the internal ROCE facts;
				// EBIT is the only metric surfaced there.
				pq.Metrics = []string{"EBIT"}
				if pq.TopN == 0 {
					pq.TopN = 3
				}
				return nil
			},
		},
		{
			name:   "multi-year-trend",
			intent: IntentMultiYearTrend,
			match: func(q *question) bool {
				if len(q.metrics) == 0 {
					return false
				}
				return containsAny(q.lower, "all years", "each year", "every year", "trend", "over the years", "last") ||
					len(q.periods) > 1
			},
			fill: fillPrimaryMetric,
		},
		{
			name:   "single-metric",
			intent: IntentSingleMetric,
			match: func(q *question) bool {
				return len(q.metrics) > 0
			},
			fill: fillPrimaryMetric,
		},
	}
}

// fuzzyMetrics is the typo fallback: when exact alias detection finds
// nothing, each substantial token runs through the fuzzy metric resolver
// so a misspelled metric still reaches a rule. Tokens that match more than
// one account are skipped, not guessed.
func (c *Classifier) fuzzyMetrics(lower string) []string {
	found := make(map[string]bool)
	for _, tok := range metricTokenRe.FindAllString(lower, -1) {
		if len(tok) < 4 || fuzzyStopwords[tok] {
			continue
		}
		canonical, err := c.metrics.Resolve(tok, "")
		if err != nil {
			continue
		}
		found[canonical] = true
	}

	out := make([]string, 0, len(found))
	for canonical := range found {
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out
}

// fillPrimaryMetric picks the single metric the question is about. When
// token detection found more than one canonical account, the one whose
// matched alias is most specific wins ("ebitda margin" beats "ebitda");
// a genuine tie is ambiguous and must not be guessed.
func fillPrimaryMetric(c *Classifier, q *question, pq *ParsedQuery) error {
	switch len(q.metrics) {
	case 0:
		return fmt.Errorf("%w: no metric in question", resolve.ErrUnknownMetric)
	case 1:
		pq.Metrics = []string{q.metrics[0]}
		return nil
	}

	best, bestLen, tied := "", 0, false
	for _, canonical := range q.metrics {
		l := c.longestAliasMatch(q.lower, canonical)
		switch {
		case l > bestLen:
			best, bestLen, tied = canonical, l, false
		case l == bestLen:
			tied = true
		}
	}
	if tied || best == "" {
		return fmt.Errorf("%w: %s", resolve.ErrAmbiguousMetric, strings.Join(q.metrics, ", "))
	}
	pq.Metrics = []string{best}
	return nil
}

// fillGrowthMetric resolves the single account a YoY question targets,
// falling back to the common P&L metrics when token detection found none.
func fillGrowthMetric(c *Classifier, q *question, pq *ParsedQuery) error {
	if err := fillPrimaryMetric(c, q, pq); err == nil {
		return nil
	}
	switch {
	case strings.Contains(q.lower, "ebitda"):
		pq.Metrics = []string{"EBITDA"}
	case strings.Contains(q.lower, "revenue"):
		pq.Metrics = []string{"Revenue from Operation"}
	default:
		return fmt.Errorf("%w: growth question names no metric", resolve.ErrUnknownMetric)
	}
	return nil
}

func fillCargoType(c *Classifier, q *question, pq *ParsedQuery) error {
	types := c.reg.CargoTypes()
	if len(types) == 0 {
		types = defaultCargoTypes
	}
	for _, ct := range types {
		if strings.Contains(q.lower, strings.ToLower(ct)) {
			pq.CargoType = ct
			break
		}
	}
	return nil
}

// longestAliasMatch returns the length of the longest alias of canonical
// that appears verbatim in the lowered question.
func (c *Classifier) longestAliasMatch(lower, canonical string) int {
	best := 0
	for alias, canon := range c.reg.Aliases() {
		if canon != canonical {
			continue
		}
		if strings.Contains(lower, alias) && len(alias) > best {
			best = len(alias)
		}
	}
	return best
}

func hasMetric(q *question, canonical string) bool {
	for _, m := range q.metrics {
		if m == canonical {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isAnalytical(lower string) bool {
	if containsAny(lower, analyticalKeywords...) {
		return true
	}
	return strings.Contains(lower, "compare") && strings.Contains(lower, "trend")
}
