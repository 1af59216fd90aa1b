package classify

import "harbor_insight/pkg/core/registry"

// Intent is the closed set of question categories the engine answers
// deterministically. Anything else is Unsupported and goes to the arbiter.
type Intent string

const (
	IntentSingleMetric          Intent = "single_metric"
	IntentMultiYearTrend        Intent = "multi_year_trend"
	IntentRanking               Intent = "ranking"
	IntentMultiMetricSummary    Intent = "multi_metric_summary"
	IntentYoYGrowth             Intent = "yoy_growth"
	IntentPortRanking           Intent = "port_ranking"
	IntentCargoVolumeByPort     Intent = "cargo_volume_by_port"
	IntentEBITPerVolume         Intent = "ebit_per_volume"
	IntentCorrelation           Intent = "correlation"
	IntentCapitalEmployedVsEBIT Intent = "capital_vs_ebit"
	IntentUnsupported           Intent = "unsupported"
)

// ParsedQuery is the immutable result of classification: one intent plus
// the slots the matching rule extracted. Built fresh per request and
// consumed by the SQL template builder.
type ParsedQuery struct {
	Intent     Intent
	Metrics    []string             // canonical account names
	Periods    []registry.PeriodRef // oldest first; empty means "latest"
	Port       string               // entity filter, empty means all ports
	CargoType  string               // entity filter, empty means all cargo
	TopN       int                  // 0 means no explicit limit
	Analytical bool                 // phrasing that wants a synthesized explanation
	Question   string
}
