/*
Package factory converts legislation documents into validated snapshots.

PURPOSE:
  Contribution law changes every year. It is kept as data (YAML or JSON)
  rather than code, and this package turns those documents into
  cotsoc.Snapshot values. Everything that can be wrong with a document is
  detected here, before any computation: unknown category keys, thresholds
  out of order, a missing valid_from.

DOCUMENT SCHEMA (YAML):
  valid_from: "2025-01-01"
  monthly_ceiling: 3925
  employer:
    prive_non_cadre:
      old_age_capped:
        - {threshold: 0, rate: 0.0855}
        - {threshold: 1, rate: 0}
  employee:
    prive_non_cadre:
      old_age_capped:
        - {threshold: 0, rate: 0.069}
        - {threshold: 1, rate: 0}

  Several snapshots may be grouped under a top-level "snapshots:" list.
  Thresholds are fractions of the ceiling.

USAGE:
  factory := NewLegislationFactory()
  history, err := factory.ParseHistory("yaml", data)

  // Store one document per snapshot
  docs, err := factory.Split("yaml", data)

SEE ALSO:
  - cotsoc/legislation.go: Snapshot and History
  - generic/store.go: LegislationDocument
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/contribution-engine/cotsoc"
	"github.com/warp/contribution-engine/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// DocumentJSON is a legislation document: one inline snapshot, a list of
// snapshots, or both.
type DocumentJSON struct {
	Snapshots    []SnapshotJSON `json:"snapshots,omitempty" yaml:"snapshots,omitempty"`
	SnapshotJSON `yaml:",inline"`
}

// SnapshotJSON is the legislation in force from ValidFrom.
type SnapshotJSON struct {
	ValidFrom      string          `json:"valid_from,omitempty" yaml:"valid_from,omitempty"`
	MonthlyCeiling decimal.Decimal `json:"monthly_ceiling" yaml:"monthly_ceiling"`
	Employer       RegimeJSON      `json:"employer,omitempty" yaml:"employer,omitempty"`
	Employee       RegimeJSON      `json:"employee,omitempty" yaml:"employee,omitempty"`
}

// RegimeJSON maps category key -> levy name -> brackets.
type RegimeJSON map[string]map[string][]BracketJSON

// BracketJSON is one tier. Threshold is a fraction of the ceiling.
type BracketJSON struct {
	Threshold decimal.Decimal `json:"threshold" yaml:"threshold"`
	Rate      decimal.Decimal `json:"rate" yaml:"rate"`
}

// =============================================================================
// LEGISLATION FACTORY
// =============================================================================

// LegislationFactory parses and validates legislation documents.
type LegislationFactory struct{}

func NewLegislationFactory() *LegislationFactory {
	return &LegislationFactory{}
}

// Decode reads a document in the given format ("yaml", "yml" or "json").
func (f *LegislationFactory) Decode(format string, data []byte) ([]SnapshotJSON, error) {
	var doc DocumentJSON
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &generic.ConfigurationError{Field: "document", Reason: "failed to parse legislation YAML: " + err.Error()}
		}
	case "json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &generic.ConfigurationError{Field: "document", Reason: "failed to parse legislation JSON: " + err.Error()}
		}
	default:
		return nil, &generic.ConfigurationError{Field: "format", Reason: fmt.Sprintf("unsupported legislation format %q", format)}
	}

	snapshots := doc.Snapshots
	if doc.ValidFrom != "" {
		snapshots = append(snapshots, doc.SnapshotJSON)
	}
	if len(snapshots) == 0 {
		return nil, &generic.ConfigurationError{Field: "snapshots", Reason: "document holds no snapshot"}
	}
	return snapshots, nil
}

// ParseHistory decodes and validates a document into a History.
func (f *LegislationFactory) ParseHistory(format string, data []byte) (*cotsoc.History, error) {
	raw, err := f.Decode(format, data)
	if err != nil {
		return nil, err
	}
	snapshots := make([]*cotsoc.Snapshot, 0, len(raw))
	for _, sj := range raw {
		s, err := f.FromJSON(sj)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return cotsoc.NewHistory(snapshots...)
}

// FromDocuments builds a History from stored documents.
func (f *LegislationFactory) FromDocuments(docs []generic.LegislationDocument) (*cotsoc.History, error) {
	var snapshots []*cotsoc.Snapshot
	for _, doc := range docs {
		raw, err := f.Decode(doc.Format, doc.Body)
		if err != nil {
			return nil, fmt.Errorf("legislation valid from %s: %w", doc.ValidFrom, err)
		}
		for _, sj := range raw {
			s, err := f.FromJSON(sj)
			if err != nil {
				return nil, fmt.Errorf("legislation valid from %s: %w", doc.ValidFrom, err)
			}
			snapshots = append(snapshots, s)
		}
	}
	return cotsoc.NewHistory(snapshots...)
}

// Split validates a document and returns one YAML document per snapshot,
// ready to be stored.
func (f *LegislationFactory) Split(format string, data []byte) ([]generic.LegislationDocument, error) {
	raw, err := f.Decode(format, data)
	if err != nil {
		return nil, err
	}
	docs := make([]generic.LegislationDocument, 0, len(raw))
	for _, sj := range raw {
		s, err := f.FromJSON(sj)
		if err != nil {
			return nil, err
		}
		body, err := yaml.Marshal(sj)
		if err != nil {
			return nil, fmt.Errorf("failed to encode snapshot %s: %w", sj.ValidFrom, err)
		}
		docs = append(docs, generic.LegislationDocument{ValidFrom: s.ValidFrom, Format: "yaml", Body: body})
	}
	return docs, nil
}

// FromJSON validates one snapshot.
func (f *LegislationFactory) FromJSON(sj SnapshotJSON) (*cotsoc.Snapshot, error) {
	if sj.ValidFrom == "" {
		return nil, generic.Missing("valid_from")
	}
	validFrom, err := generic.ParseTimePoint(sj.ValidFrom)
	if err != nil {
		return nil, &generic.ConfigurationError{Field: "valid_from", Reason: err.Error()}
	}
	if !sj.MonthlyCeiling.IsPositive() {
		return nil, &generic.ConfigurationError{Field: "monthly_ceiling", Reason: fmt.Sprintf("must be positive in snapshot %s", sj.ValidFrom)}
	}

	employer, err := parseRegime(sj.Employer)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s employer: %w", sj.ValidFrom, err)
	}
	employee, err := parseRegime(sj.Employee)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s employee: %w", sj.ValidFrom, err)
	}

	return &cotsoc.Snapshot{
		ValidFrom:      validFrom,
		MonthlyCeiling: sj.MonthlyCeiling,
		Employer:       employer,
		Employee:       employee,
	}, nil
}

func parseRegime(rj RegimeJSON) (*cotsoc.CategoryTable, error) {
	table := cotsoc.NewCategoryTable()

	// Sorted keys so the first reported error is stable.
	keys := make([]string, 0, len(rj))
	for k := range rj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		category, err := cotsoc.ParseCategory(key)
		if err != nil {
			return nil, err
		}
		for levy, brackets := range rj[key] {
			schedule, err := parseSchedule(brackets)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", key, levy, err)
			}
			if err := table.Set(category, levy, schedule); err != nil {
				return nil, fmt.Errorf("%s/%s: %w", key, levy, err)
			}
		}
	}
	return table, nil
}

func parseSchedule(brackets []BracketJSON) (*cotsoc.BracketSchedule, error) {
	converted := make([]cotsoc.Bracket, len(brackets))
	for i, b := range brackets {
		converted[i] = cotsoc.Bracket{Threshold: b.Threshold, Rate: b.Rate}
	}
	return cotsoc.NewBracketSchedule(converted)
}
