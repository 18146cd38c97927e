/*
legislation.go - Contribution legislation snapshots

PURPOSE:
  A Snapshot is the contribution law in force from a date: for each regime
  (employer, employee) a table giving, per employment category, the bracket
  schedule of every levy. A History orders snapshots so the law valid at
  any date can be found.

FIXED TABLES:
  Categories form a closed enumeration, so a CategoryTable is an array
  indexed by Category rather than a map keyed by strings. Which categories
  have no schedule for a levy is known as soon as the table is built
  (Missing), before any computation runs. Absence still means "exempt":
  aggregation treats it as a zero contribution.

SEE ALSO:
  - factory/legislation.go: Builds snapshots from YAML/JSON
  - dispatch.go: Reads a CategoryTable
*/
package cotsoc

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/contribution-engine/generic"
)

// =============================================================================
// REGIME
// =============================================================================

// Regime is the side of a contribution: who pays it.
type Regime string

const (
	RegimeEmployer Regime = "employer"
	RegimeEmployee Regime = "employee"
)

// Regimes lists both regimes in a fixed order.
func Regimes() []Regime { return []Regime{RegimeEmployer, RegimeEmployee} }

func ParseRegime(s string) (Regime, error) {
	switch Regime(s) {
	case RegimeEmployer, RegimeEmployee:
		return Regime(s), nil
	case "":
		return "", generic.Missing("regime")
	default:
		return "", &generic.ConfigurationError{Field: "regime", Reason: fmt.Sprintf("unknown regime %q", s)}
	}
}

// =============================================================================
// CATEGORY TABLE
// =============================================================================

// CategoryTable maps category and levy name to a schedule.
type CategoryTable struct {
	entries [categoryCount]map[string]*BracketSchedule
}

func NewCategoryTable() *CategoryTable {
	return &CategoryTable{}
}

// Set registers the schedule of a levy for a category.
func (t *CategoryTable) Set(c Category, levy string, s *BracketSchedule) error {
	if !c.Valid() {
		return &generic.ConfigurationError{Field: "category", Reason: fmt.Sprintf("invalid category %d", int(c))}
	}
	if levy == "" {
		return generic.Missing("levy name")
	}
	if s == nil {
		return generic.Missing("schedule")
	}
	if t.entries[c] == nil {
		t.entries[c] = make(map[string]*BracketSchedule)
	}
	t.entries[c][levy] = s
	return nil
}

// Has reports whether the category appears in the table at all.
func (t *CategoryTable) Has(c Category) bool {
	return c.Valid() && t.entries[c] != nil
}

// Schedule returns the schedule of a levy for a category, if any.
func (t *CategoryTable) Schedule(c Category, levy string) (*BracketSchedule, bool) {
	if !t.Has(c) {
		return nil, false
	}
	s, ok := t.entries[c][levy]
	return s, ok
}

// Levies lists every levy name appearing for any category, sorted.
func (t *CategoryTable) Levies() []string {
	seen := make(map[string]bool)
	for _, byLevy := range t.entries {
		for name := range byLevy {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing lists the categories with no schedule for the levy, in
// enumeration order.
func (t *CategoryTable) Missing(levy string) []Category {
	var missing []Category
	for _, c := range AllCategories() {
		if _, ok := t.Schedule(c, levy); !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the legislation in force from ValidFrom until the next one.
type Snapshot struct {
	ValidFrom generic.TimePoint

	// MonthlyCeiling is the social-security ceiling for one month.
	MonthlyCeiling decimal.Decimal

	Employer *CategoryTable
	Employee *CategoryTable
}

// Table returns the half of the snapshot for a regime.
func (s *Snapshot) Table(r Regime) (*CategoryTable, error) {
	var t *CategoryTable
	switch r {
	case RegimeEmployer:
		t = s.Employer
	case RegimeEmployee:
		t = s.Employee
	case "":
		return nil, generic.Missing("regime")
	default:
		return nil, &generic.ConfigurationError{Field: "regime", Reason: fmt.Sprintf("unknown regime %q", r)}
	}
	if t == nil {
		return nil, &generic.ConfigurationError{Field: "regime", Reason: fmt.Sprintf("no %s table in snapshot %s", r, s.ValidFrom)}
	}
	return t, nil
}

// MissingEntry reports categories without a schedule for one levy.
type MissingEntry struct {
	Regime     Regime
	Levy       string
	Categories []Category
}

// MissingEntries lists, for every levy of every regime, the categories that
// have no schedule. Levies applying to every category are omitted.
func (s *Snapshot) MissingEntries() []MissingEntry {
	var report []MissingEntry
	for _, r := range Regimes() {
		t, err := s.Table(r)
		if err != nil {
			continue
		}
		for _, levy := range t.Levies() {
			if missing := t.Missing(levy); len(missing) > 0 {
				report = append(report, MissingEntry{Regime: r, Levy: levy, Categories: missing})
			}
		}
	}
	return report
}

// =============================================================================
// HISTORY
// =============================================================================

// LegislationSource finds the snapshot in force at a date.
type LegislationSource interface {
	At(date generic.TimePoint) (*Snapshot, error)
}

// History is an ordered set of snapshots.
type History struct {
	snapshots []*Snapshot
}

// NewHistory orders snapshots by ValidFrom. Two snapshots with the same
// ValidFrom are rejected.
func NewHistory(snapshots ...*Snapshot) (*History, error) {
	sorted := make([]*Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s == nil {
			return nil, generic.Missing("snapshot")
		}
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ValidFrom.Before(sorted[j].ValidFrom) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].ValidFrom.Equal(sorted[i-1].ValidFrom) {
			return nil, &generic.ConfigurationError{Field: "valid_from", Reason: fmt.Sprintf("two snapshots valid from %s", sorted[i].ValidFrom)}
		}
	}
	return &History{snapshots: sorted}, nil
}

// At returns the latest snapshot whose ValidFrom is not after date.
func (h *History) At(date generic.TimePoint) (*Snapshot, error) {
	i := sort.Search(len(h.snapshots), func(i int) bool {
		return h.snapshots[i].ValidFrom.After(date)
	})
	if i == 0 {
		return nil, fmt.Errorf("%w at %s", generic.ErrNoLegislation, date)
	}
	return h.snapshots[i-1], nil
}

// Snapshots returns the snapshots in order.
func (h *History) Snapshots() []*Snapshot {
	return append([]*Snapshot(nil), h.snapshots...)
}

// Levies lists every (regime, levy) pair appearing in any snapshot.
func (h *History) Levies() []Levy {
	seen := make(map[Levy]bool)
	var levies []Levy
	for _, s := range h.snapshots {
		for _, r := range Regimes() {
			t, err := s.Table(r)
			if err != nil {
				continue
			}
			for _, name := range t.Levies() {
				l := Levy{Regime: r, Name: name}
				if !seen[l] {
					seen[l] = true
					levies = append(levies, l)
				}
			}
		}
	}
	sort.Slice(levies, func(i, j int) bool { return levies[i].Variable() < levies[j].Variable() })
	return levies
}
