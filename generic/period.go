package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - The unit every computation is requested for
// =============================================================================

// Period is a run of Size consecutive months or years starting at Start.
// Start is always normalized to the first day of its unit.
//
// Examples:
//   - March 2025:             {2025-03-01, month, 1}
//   - January..November 2025: {2025-01-01, month, 11}
//   - Calendar year 2025:     {2025-01-01, year, 1}
type Period struct {
	Start TimePoint
	Unit  PeriodUnit
	Size  int
}

// PeriodUnit is the granularity of a Period.
type PeriodUnit string

const (
	UnitMonth PeriodUnit = "month"
	UnitYear  PeriodUnit = "year"
)

// MaxPeriodMonths bounds the months a period may cover.
const MaxPeriodMonths = 1200

// NewPeriod builds a normalized period. Size below 1, or a period covering
// more than MaxPeriodMonths months, is rejected.
func NewPeriod(unit PeriodUnit, start TimePoint, size int) (Period, error) {
	if size < 1 {
		return Period{}, fmt.Errorf("%w: size %d", ErrInvalidPeriod, size)
	}
	switch unit {
	case UnitMonth:
		if size > MaxPeriodMonths {
			return Period{}, fmt.Errorf("%w: %d months exceeds %d", ErrInvalidPeriod, size, MaxPeriodMonths)
		}
		start = StartOfMonth(start.Year(), start.Month())
	case UnitYear:
		if size > MaxPeriodMonths/12 {
			return Period{}, fmt.Errorf("%w: %d years exceeds %d months", ErrInvalidPeriod, size, MaxPeriodMonths)
		}
		start = StartOfYear(start.Year())
	default:
		return Period{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidPeriod, unit)
	}
	return Period{Start: start, Unit: unit, Size: size}, nil
}

// Month returns the single-month period for year/month.
func Month(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), Unit: UnitMonth, Size: 1}
}

// Year returns the calendar-year period.
func Year(year int) Period {
	return Period{Start: StartOfYear(year), Unit: UnitYear, Size: 1}
}

// ParsePeriod accepts "2025" (year), "2025-03" (month) and "month:2025-01:11"
// (unit:start:size).
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		size, err := strconv.Atoi(parts[2])
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		inner, err := ParsePeriod(parts[1])
		if err != nil {
			return Period{}, err
		}
		return NewPeriod(PeriodUnit(parts[0]), inner.Start, size)
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return Month(t.Year(), t.Month()), nil
	}
	if t, err := time.Parse("2006", s); err == nil {
		return Year(t.Year()), nil
	}
	return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// ThisMonth is the first month of the period.
func (p Period) ThisMonth() Period {
	return Month(p.Start.Year(), p.Start.Month())
}

// ThisYear is the calendar year containing the period start.
func (p Period) ThisYear() Period {
	return Year(p.Start.Year())
}

// Offset shifts the start by n units, keeping unit and size.
func (p Period) Offset(n int, unit PeriodUnit) Period {
	start := p.Start
	switch unit {
	case UnitMonth:
		start = start.AddMonths(n)
	case UnitYear:
		start = start.AddYears(n)
	}
	return Period{Start: start, Unit: p.Unit, Size: p.Size}
}

// MonthsBefore is the n months immediately preceding the start of the period,
// as a single period. For December 2025 and n=11 it is January..November 2025.
func (p Period) MonthsBefore(n int) Period {
	first := StartOfMonth(p.Start.Year(), p.Start.Month()).AddMonths(-n)
	return Period{Start: first, Unit: UnitMonth, Size: n}
}

// End is the last day covered by the period.
func (p Period) End() TimePoint {
	switch p.Unit {
	case UnitYear:
		return p.Start.AddYears(p.Size).AddDays(-1)
	default:
		return p.Start.AddMonths(p.Size).AddDays(-1)
	}
}

// Contains returns true if the time point is within the period.
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End())
}

// MonthCount is the number of months covered.
func (p Period) MonthCount() int {
	if p.Unit == UnitYear {
		return 12 * p.Size
	}
	return p.Size
}

// Months enumerates the single-month sub-periods, in order.
func (p Period) Months() []Period {
	months := make([]Period, 0, p.MonthCount())
	current := p.ThisMonth()
	for i := 0; i < p.MonthCount(); i++ {
		months = append(months, current)
		current = current.Offset(1, UnitMonth)
	}
	return months
}

// IsMonth is true for a single-month period.
func (p Period) IsMonth() bool { return p.Unit == UnitMonth && p.Size == 1 }

// String renders the period in the same forms ParsePeriod accepts.
func (p Period) String() string {
	switch {
	case p.Unit == UnitMonth && p.Size == 1:
		return p.Start.Time.Format("2006-01")
	case p.Unit == UnitYear && p.Size == 1:
		return p.Start.Time.Format("2006")
	case p.Unit == UnitYear:
		return fmt.Sprintf("year:%s:%d", p.Start.Time.Format("2006"), p.Size)
	default:
		return fmt.Sprintf("month:%s:%d", p.Start.Time.Format("2006-01"), p.Size)
	}
}
