// Package period implements calendar buckets (month, quarter, year)
// with canonical display values, navigation and date-shortcut
// resolution.
package period

import (
	"errors"
	"fmt"
	"time"
)

const (
	Monthly   Grouping = "MONTH"
	Quarterly Grouping = "QUARTER"
	Yearly    Grouping = "YEAR"
)

type (
	// Grouping selects the calendar bucket size.
	Grouping string

	// Period is an immutable calendar bucket. Start is floored to the
	// start of day, End is ceiled to the end of day, and Value is a
	// pure function of (Start, End, Grouping). QuarterNr is 1..4 for
	// quarterly periods and 0 otherwise.
	Period struct {
		Start     time.Time
		End       time.Time
		Grouping  Grouping
		Value     string
		QuarterNr int
	}
)

var (
	ErrInvalidPeriod   = errors.New("invalid period")
	ErrUnknownGrouping = errors.New("unknown grouping")
)

// monthQuarters maps a calendar month to its fixed quarter, built once
// and reused by every quarter computation.
var monthQuarters = func() map[time.Month]int {
	m := make(map[time.Month]int, 12)
	for month := time.January; month <= time.December; month++ {
		m[month] = (int(month)-1)/3 + 1
	}
	return m
}()

// FromDate returns the period of the given grouping containing d.
func FromDate(d time.Time, g Grouping) (Period, error) {
	if d.IsZero() {
		return Period{}, fmt.Errorf("zero date: %w", ErrInvalidPeriod)
	}
	switch g {
	case Monthly:
		return MonthOf(d), nil
	case Quarterly:
		return QuarterOf(d), nil
	case Yearly:
		return YearOf(d), nil
	default:
		return Period{}, fmt.Errorf("%q: %w", g, ErrUnknownGrouping)
	}
}

// MonthOf returns the calendar month containing d.
func MonthOf(d time.Time) Period {
	return MonthFromParts(int(d.Month()), d.Year(), d.Location())
}

// MonthFromParts returns the period for a calendar month given as
// month number (1..12) and year.
func MonthFromParts(month, year int, loc *time.Location) Period {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end := endOfDay(start.AddDate(0, 1, -1))
	return Period{
		Start:    start,
		End:      end,
		Grouping: Monthly,
		Value:    fmt.Sprintf("%02d/%04d", start.Month(), start.Year()),
	}
}

// QuarterOf returns the fixed calendar quarter containing d
// (Q1 = Jan-Mar .. Q4 = Oct-Dec).
func QuarterOf(d time.Time) Period {
	nr := monthQuarters[d.Month()]
	return quarterFromParts(nr, d.Year(), d.Location())
}

func quarterFromParts(nr, year int, loc *time.Location) Period {
	firstMonth := time.Month((nr-1)*3 + 1)
	start := time.Date(year, firstMonth, 1, 0, 0, 0, 0, loc)
	end := endOfDay(start.AddDate(0, 3, -1))
	return Period{
		Start:     start,
		End:       end,
		Grouping:  Quarterly,
		Value:     fmt.Sprintf("%02d/%04d - %02d/%04d", start.Month(), start.Year(), end.Month(), end.Year()),
		QuarterNr: nr,
	}
}

// YearOf returns the calendar year containing d.
func YearOf(d time.Time) Period {
	start := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, d.Location())
	end := endOfDay(time.Date(d.Year(), time.December, 31, 0, 0, 0, 0, d.Location()))
	return Period{
		Start:    start,
		End:      end,
		Grouping: Yearly,
		Value:    fmt.Sprintf("%04d - %04d", start.Year(), end.Year()),
	}
}

// Next returns the adjacent period after p, wrapping year boundaries
// (December to January, Q4 to Q1).
func (p Period) Next() Period {
	switch p.Grouping {
	case Quarterly:
		if p.QuarterNr == 4 {
			return quarterFromParts(1, p.Start.Year()+1, p.Start.Location())
		}
		return quarterFromParts(p.QuarterNr+1, p.Start.Year(), p.Start.Location())
	case Yearly:
		return YearOf(p.Start.AddDate(1, 0, 0))
	default:
		return MonthOf(p.Start.AddDate(0, 1, 0))
	}
}

// Previous returns the adjacent period before p.
func (p Period) Previous() Period {
	switch p.Grouping {
	case Quarterly:
		if p.QuarterNr == 1 {
			return quarterFromParts(4, p.Start.Year()-1, p.Start.Location())
		}
		return quarterFromParts(p.QuarterNr-1, p.Start.Year(), p.Start.Location())
	case Yearly:
		return YearOf(p.Start.AddDate(-1, 0, 0))
	default:
		return MonthOf(p.Start.AddDate(0, -1, 0))
	}
}

// Equal compares periods over all fields.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) &&
		p.End.Equal(other.End) &&
		p.Grouping == other.Grouping &&
		p.Value == other.Value
}

// Before orders periods chronologically by start date. Together with
// Equal this is a total order over periods of one grouping.
func (p Period) Before(other Period) bool {
	return p.Start.Before(other.Start)
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d time.Time) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Validate checks that the period was produced by a factory and not
// zero-constructed.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.Value == "" {
		return ErrInvalidPeriod
	}
	switch p.Grouping {
	case Monthly, Quarterly, Yearly:
	default:
		return fmt.Errorf("%q: %w", p.Grouping, ErrUnknownGrouping)
	}
	if p.Grouping == Quarterly && (p.QuarterNr < 1 || p.QuarterNr > 4) {
		return fmt.Errorf("quarter number %d: %w", p.QuarterNr, ErrInvalidPeriod)
	}
	return nil
}

func endOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), d.Location())
}

func startOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}
