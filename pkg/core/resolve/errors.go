package resolve

import "errors"

var (
	// ErrUnknownPeriod means a period expression named a label that is not
	// in the period registry.
	ErrUnknownPeriod = errors.New("unknown period")

	// ErrUnknownMetric means no canonical account matched the mention.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrAmbiguousMetric means two or more canonical accounts tied after
	// the fuzzy fallback. Callers must surface this, never guess.
	ErrAmbiguousMetric = errors.New("ambiguous metric")
)
