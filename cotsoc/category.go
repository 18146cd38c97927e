package cotsoc

import (
	"fmt"

	"github.com/warp/contribution-engine/generic"
)

// =============================================================================
// EMPLOYMENT CATEGORIES - Closed enumeration
// =============================================================================

// Category is an employment classification. The set is closed: legislation
// keys that do not name one of these are rejected when the document loads.
type Category int

const (
	CategoryPrivateNonExecutive Category = iota
	CategoryPrivateExecutive
	CategoryCivilServiceState
	CategoryCivilServiceMilitary
	CategoryCivilServiceLocal
	CategoryCivilServiceHospital
	CategoryPublicContractual
	CategoryNotApplicable

	categoryCount
)

var categoryKeys = [categoryCount]string{
	CategoryPrivateNonExecutive:  "prive_non_cadre",
	CategoryPrivateExecutive:     "prive_cadre",
	CategoryCivilServiceState:    "public_titulaire_etat",
	CategoryCivilServiceMilitary: "public_titulaire_militaire",
	CategoryCivilServiceLocal:    "public_titulaire_territoriale",
	CategoryCivilServiceHospital: "public_titulaire_hospitaliere",
	CategoryPublicContractual:    "public_non_titulaire",
	CategoryNotApplicable:        "non_pertinent",
}

// AllCategories returns every category in enumeration order. Aggregation
// iterates in this order.
func AllCategories() []Category {
	all := make([]Category, categoryCount)
	for i := range all {
		all[i] = Category(i)
	}
	return all
}

// Key is the name legislation documents use for the category.
func (c Category) Key() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryKeys[c]
}

func (c Category) String() string { return c.Key() }

func (c Category) Valid() bool { return c >= 0 && c < categoryCount }

// ParseCategory maps a legislation key back to its category.
func ParseCategory(key string) (Category, error) {
	for i, k := range categoryKeys {
		if k == key {
			return Category(i), nil
		}
	}
	return 0, &generic.ConfigurationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", key)}
}

// CategoriesFrom converts a vector of category codes.
func CategoriesFrom(codes generic.Vector) ([]Category, error) {
	if codes == nil {
		return nil, generic.Missing("category vector")
	}
	out := make([]Category, len(codes))
	for i, d := range codes {
		c := Category(d.IntPart())
		if !d.Equal(d.Truncate(0)) || !c.Valid() {
			return nil, &generic.ConfigurationError{Field: "category vector", Reason: fmt.Sprintf("invalid code %s at %d", d, i)}
		}
		out[i] = c
	}
	return out, nil
}

// =============================================================================
// SETTLEMENT MODES
// =============================================================================

// SettlementMode selects how a contribution is collected over the year.
type SettlementMode int

const (
	// SettlementAnticipated withholds every month and reconciles in December.
	SettlementAnticipated SettlementMode = 0
	// SettlementAnnual collects the whole year's amount in December.
	SettlementAnnual SettlementMode = 1
)

func (m SettlementMode) String() string {
	switch m {
	case SettlementAnticipated:
		return "anticipated"
	case SettlementAnnual:
		return "annual"
	default:
		return fmt.Sprintf("settlement(%d)", int(m))
	}
}

// ParseSettlementMode accepts "anticipated" or "annual". Empty means anticipated.
func ParseSettlementMode(s string) (SettlementMode, error) {
	switch s {
	case "", "anticipated":
		return SettlementAnticipated, nil
	case "annual":
		return SettlementAnnual, nil
	default:
		return 0, &generic.ConfigurationError{Field: "settlement mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

// ModesFrom converts a vector of settlement mode codes.
func ModesFrom(codes generic.Vector) ([]SettlementMode, error) {
	if codes == nil {
		return nil, generic.Missing("settlement mode")
	}
	out := make([]SettlementMode, len(codes))
	for i, d := range codes {
		m := SettlementMode(d.IntPart())
		if !d.Equal(d.Truncate(0)) || (m != SettlementAnticipated && m != SettlementAnnual) {
			return nil, &generic.ConfigurationError{Field: "settlement mode", Reason: fmt.Sprintf("invalid code %s at %d", d, i)}
		}
		out[i] = m
	}
	return out, nil
}
