package registry

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed data_dictionary.yaml
var defaultDictionary []byte

// CanonicalAccount is one normalized metric with all raw spellings that map
// to it. Statement types mirror the warehouse fact tables: PnLAnnual,
// PnLQuarterly, BalanceSheet, CashFlow, ROCEExternal, ROCEInternal.
type CanonicalAccount struct {
	Canonical  string   `yaml:"canonical"`
	Statement  string   `yaml:"statement"`
	Category   string   `yaml:"category"`
	MetricType string   `yaml:"metric_type"`
	Aliases    []string `yaml:"aliases"`
}

type dictionaryFile struct {
	Accounts []CanonicalAccount `yaml:"accounts"`
}

// Registry holds the static lookup data the question engine reads: the
// account dictionary plus the period, port and cargo dimensions pulled from
// the warehouse at startup. It is immutable after construction; the
// ingestion pipeline owns refreshing the underlying tables.
type Registry struct {
	accounts   map[string]CanonicalAccount // canonical name -> account
	aliasIndex map[string]string           // lowered alias -> canonical name

	periods     []PeriodRef // ascending by sort key
	periodIndex map[string]PeriodRef

	ports      []string
	cargoTypes []string
}

// New builds a registry from the embedded data dictionary.
func New() (*Registry, error) {
	return NewFromDictionary(defaultDictionary)
}

// NewFromDictionary builds a registry from raw dictionary YAML.
func NewFromDictionary(raw []byte) (*Registry, error) {
	var file dictionaryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse data dictionary: %w", err)
	}

	r := &Registry{
		accounts:    make(map[string]CanonicalAccount),
		aliasIndex:  make(map[string]string),
		periodIndex: make(map[string]PeriodRef),
	}
	for _, acct := range file.Accounts {
		if acct.Canonical == "" {
			return nil, fmt.Errorf("data dictionary entry with empty canonical name")
		}
		if _, dup := r.accounts[acct.Canonical]; dup {
			return nil, fmt.Errorf("duplicate canonical account %q in data dictionary", acct.Canonical)
		}
		r.accounts[acct.Canonical] = acct
		// The canonical spelling itself always resolves.
		r.aliasIndex[strings.ToLower(acct.Canonical)] = acct.Canonical
		for _, alias := range acct.Aliases {
			key := strings.ToLower(strings.TrimSpace(alias))
			if key == "" {
				continue
			}
			if existing, ok := r.aliasIndex[key]; ok && existing != acct.Canonical {
				return nil, fmt.Errorf("alias %q maps to both %q and %q", alias, existing, acct.Canonical)
			}
			r.aliasIndex[key] = acct.Canonical
		}
	}
	return r, nil
}

// SetPeriods installs the period dimension, ordered by sort key ascending.
// Called once at startup with rows from dim_period.
func (r *Registry) SetPeriods(periods []PeriodRef) {
	sorted := make([]PeriodRef, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SortKey < sorted[j].SortKey })
	r.periods = sorted
	r.periodIndex = make(map[string]PeriodRef, len(sorted))
	for _, p := range sorted {
		r.periodIndex[p.Label] = p
	}
}

// SetPorts installs the port dimension values.
func (r *Registry) SetPorts(ports []string) {
	r.ports = append([]string(nil), ports...)
}

// SetCargoTypes installs the cargo type dimension values.
func (r *Registry) SetCargoTypes(types []string) {
	r.cargoTypes = append([]string(nil), types...)
}

// Account returns the canonical account for a canonical name.
func (r *Registry) Account(canonical string) (CanonicalAccount, bool) {
	acct, ok := r.accounts[canonical]
	return acct, ok
}

// CanonicalForAlias resolves a lowered alias to its canonical name.
func (r *Registry) CanonicalForAlias(alias string) (string, bool) {
	canonical, ok := r.aliasIndex[strings.ToLower(strings.TrimSpace(alias))]
	return canonical, ok
}

// Accounts returns all canonical accounts, sorted by canonical name so
// iteration order is deterministic.
func (r *Registry) Accounts() []CanonicalAccount {
	out := make([]CanonicalAccount, 0, len(r.accounts))
	for _, acct := range r.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Canonical < out[j].Canonical })
	return out
}

// Aliases returns the alias index; callers must not mutate it.
func (r *Registry) Aliases() map[string]string {
	return r.aliasIndex
}

// Period looks up a period by raw label.
func (r *Registry) Period(label string) (PeriodRef, bool) {
	p, ok := r.periodIndex[label]
	return p, ok
}

// Periods returns all known periods, oldest first.
func (r *Registry) Periods() []PeriodRef {
	return r.periods
}

// AnnualPeriods returns the annual periods, oldest first.
func (r *Registry) AnnualPeriods() []PeriodRef {
	var out []PeriodRef
	for _, p := range r.periods {
		if p.PeriodType == "annual" {
			out = append(out, p)
		}
	}
	return out
}

// LatestPeriod returns the most recent annual period.
func (r *Registry) LatestPeriod() (PeriodRef, bool) {
	annual := r.AnnualPeriods()
	if len(annual) == 0 {
		return PeriodRef{}, false
	}
	return annual[len(annual)-1], true
}

// Ports returns the known port names.
func (r *Registry) Ports() []string { return r.ports }

// CargoTypes returns the known cargo type names.
func (r *Registry) CargoTypes() []string { return r.cargoTypes }
