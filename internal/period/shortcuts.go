package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Date shortcuts accepted by ResolveShortcut.
const (
	ShortcutCurrentMonth    = "current month"
	ShortcutPreviousMonth   = "previous month"
	ShortcutCurrentQuarter  = "current quarter"
	ShortcutPreviousQuarter = "previous quarter"
	ShortcutCurrentYear     = "current year"
	ShortcutPreviousYear    = "previous year"
	ShortcutAll             = "all"
)

// allRangeStartYear bounds the "all" shortcut; no supported bank export
// reaches further back.
const allRangeStartYear = 1900

var ErrUnknownShortcut = errors.New("unknown date shortcut")

// DateRange is a closed interval of days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ResolveShortcut translates a named date shortcut into the concrete
// range it denotes at the given reference time.
func ResolveShortcut(name string, now time.Time) (DateRange, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ShortcutCurrentMonth:
		p := MonthOf(now)
		return DateRange{Start: p.Start, End: p.End}, nil
	case ShortcutPreviousMonth:
		p := MonthOf(now).Previous()
		return DateRange{Start: p.Start, End: p.End}, nil
	case ShortcutCurrentQuarter:
		p := QuarterOf(now)
		return DateRange{Start: p.Start, End: p.End}, nil
	case ShortcutPreviousQuarter:
		p := QuarterOf(now).Previous()
		return DateRange{Start: p.Start, End: p.End}, nil
	case ShortcutCurrentYear:
		p := YearOf(now)
		return DateRange{Start: p.Start, End: p.End}, nil
	case ShortcutPreviousYear:
		p := YearOf(now).Previous()
		return DateRange{Start: p.Start, End: p.End}, nil
	case ShortcutAll:
		start := time.Date(allRangeStartYear, time.January, 1, 0, 0, 0, 0, now.Location())
		return DateRange{Start: start, End: endOfDay(now)}, nil
	default:
		return DateRange{}, fmt.Errorf("%q: %w", name, ErrUnknownShortcut)
	}
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Normalized floors the start to the start of day and ceils the end to
// the end of day.
func (r DateRange) Normalized() DateRange {
	return DateRange{Start: startOfDay(r.Start), End: endOfDay(r.End)}
}
