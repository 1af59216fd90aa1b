package registry

import (
	"fmt"
	"regexp"
	"strconv"
)

// PeriodRef identifies one fiscal period in the warehouse.
// SortKey totally orders all periods; the ingestion layer guarantees
// one PeriodRef per raw label.
type PeriodRef struct {
	Label      string
	StartYear  int
	EndYear    int
	PeriodType string // "annual" or "quarterly"
	Quarter    int    // 1-4 when PeriodType is "quarterly", else 0
	SortKey    int
}

var (
	fiscalLabelRe  = regexp.MustCompile(`^(20\d{2})-(\d{2})$`)
	quarterLabelRe = regexp.MustCompile(`^Q([1-4])\s+(20\d{2})-(\d{2})$`)
	bareYearRe     = regexp.MustCompile(`^(20\d{2})$`)
)

// ParsePeriodLabel turns a raw label like "2024-25" or "Q1 2024-25" into a
// PeriodRef. The sort key is derived from the start year (and quarter for
// quarterly labels) so labels never need a lookup to compare.
func ParsePeriodLabel(label string) (PeriodRef, error) {
	if m := quarterLabelRe.FindStringSubmatch(label); m != nil {
		q, _ := strconv.Atoi(m[1])
		start, _ := strconv.Atoi(m[2])
		end, err := expandEndYear(start, m[3])
		if err != nil {
			return PeriodRef{}, err
		}
		return PeriodRef{
			Label:      label,
			StartYear:  start,
			EndYear:    end,
			PeriodType: "quarterly",
			Quarter:    q,
			SortKey:    start*10 + q,
		}, nil
	}
	if m := fiscalLabelRe.FindStringSubmatch(label); m != nil {
		start, _ := strconv.Atoi(m[1])
		end, err := expandEndYear(start, m[2])
		if err != nil {
			return PeriodRef{}, err
		}
		return PeriodRef{
			Label:      label,
			StartYear:  start,
			EndYear:    end,
			PeriodType: "annual",
			SortKey:    start * 10,
		}, nil
	}
	if m := bareYearRe.FindStringSubmatch(label); m != nil {
		year, _ := strconv.Atoi(m[1])
		return PeriodRef{
			Label:      label,
			StartYear:  year,
			EndYear:    year,
			PeriodType: "annual",
			SortKey:    year * 10,
		}, nil
	}
	return PeriodRef{}, fmt.Errorf("unrecognized period label %q", label)
}

// expandEndYear resolves the two-digit suffix of a fiscal label against the
// start year, handling the century rollover ("2099-00").
func expandEndYear(start int, suffix string) (int, error) {
	s, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("bad fiscal year suffix %q", suffix)
	}
	end := start/100*100 + s
	if end < start {
		end += 100
	}
	return end, nil
}
