package period

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMonthValueFormat(t *testing.T) {
	p := MonthFromParts(3, 2023, time.UTC)
	if p.Value != "03/2023" {
		t.Fatalf("value = %q, want 03/2023", p.Value)
	}
	if !p.Start.Equal(date(2023, time.March, 1)) {
		t.Fatalf("start = %v", p.Start)
	}
	if p.End.Day() != 31 || p.End.Month() != time.March || p.End.Hour() != 23 {
		t.Fatalf("end = %v, want end of 2023-03-31", p.End)
	}
}

func TestMonthRoundTrip(t *testing.T) {
	for month := 1; month <= 12; month++ {
		p := MonthFromParts(month, 2023, time.UTC)
		back := p.Next().Previous()
		if !p.Equal(back) {
			t.Fatalf("month %d: next().previous() = %v, want %v", month, back.Value, p.Value)
		}
	}
}

func TestMonthYearWrap(t *testing.T) {
	dec := MonthFromParts(12, 2023, time.UTC)
	jan := dec.Next()
	if jan.Value != "01/2024" {
		t.Fatalf("after december: %q", jan.Value)
	}
	if prev := MonthFromParts(1, 2024, time.UTC).Previous(); prev.Value != "12/2023" {
		t.Fatalf("before january: %q", prev.Value)
	}
}

func TestQuarterOf(t *testing.T) {
	cases := []struct {
		d     time.Time
		nr    int
		start time.Time
		end   time.Time
	}{
		{date(2023, time.January, 15), 1, date(2023, time.January, 1), date(2023, time.March, 31)},
		{date(2023, time.May, 2), 2, date(2023, time.April, 1), date(2023, time.June, 30)},
		{date(2023, time.August, 31), 3, date(2023, time.July, 1), date(2023, time.September, 30)},
		{date(2023, time.December, 31), 4, date(2023, time.October, 1), date(2023, time.December, 31)},
	}
	for _, tc := range cases {
		p := QuarterOf(tc.d)
		if p.QuarterNr != tc.nr {
			t.Fatalf("%v: quarter_nr = %d, want %d", tc.d, p.QuarterNr, tc.nr)
		}
		if !p.Start.Equal(tc.start) {
			t.Fatalf("%v: start = %v, want %v", tc.d, p.Start, tc.start)
		}
		if p.End.Year() != tc.end.Year() || p.End.Month() != tc.end.Month() || p.End.Day() != tc.end.Day() {
			t.Fatalf("%v: end = %v, want end of %v", tc.d, p.End, tc.end)
		}
		if p.End.Hour() != 23 || p.End.Minute() != 59 || p.End.Second() != 59 {
			t.Fatalf("%v: end not ceiled to end of day: %v", tc.d, p.End)
		}
	}
}

func TestQuarterValueFormat(t *testing.T) {
	p := QuarterOf(date(2023, time.February, 10))
	if p.Value != "01/2023 - 03/2023" {
		t.Fatalf("value = %q", p.Value)
	}
}

func TestQuarterWrap(t *testing.T) {
	q4 := QuarterOf(date(2023, time.November, 5))
	q1 := q4.Next()
	if q1.QuarterNr != 1 || q1.Start.Year() != 2024 {
		t.Fatalf("after Q4 2023: nr=%d year=%d", q1.QuarterNr, q1.Start.Year())
	}
	back := q1.Previous()
	if back.QuarterNr != 4 || back.Start.Year() != 2023 {
		t.Fatalf("before Q1 2024: nr=%d year=%d", back.QuarterNr, back.Start.Year())
	}
}

func TestYearValueFormatAndNavigation(t *testing.T) {
	p := YearOf(date(2023, time.June, 1))
	if p.Value != "2023 - 2023" {
		t.Fatalf("value = %q", p.Value)
	}
	if next := p.Next(); next.Start.Year() != 2024 {
		t.Fatalf("next year start = %v", next.Start)
	}
	if prev := p.Previous(); prev.Start.Year() != 2022 {
		t.Fatalf("previous year start = %v", prev.Start)
	}
}

func TestFromDate(t *testing.T) {
	if _, err := FromDate(time.Time{}, Monthly); err == nil {
		t.Fatalf("zero date must be rejected")
	}
	if _, err := FromDate(date(2023, time.March, 1), "WEEK"); err == nil {
		t.Fatalf("unknown grouping must be rejected")
	}
	p, err := FromDate(date(2023, time.March, 14), Quarterly)
	if err != nil {
		t.Fatalf("from date: %v", err)
	}
	if p.QuarterNr != 1 {
		t.Fatalf("quarter_nr = %d", p.QuarterNr)
	}
}

func TestPeriodOrdering(t *testing.T) {
	feb := MonthFromParts(2, 2023, time.UTC)
	mar := MonthFromParts(3, 2023, time.UTC)
	if !feb.Before(mar) {
		t.Fatalf("february must sort before march")
	}
	if mar.Before(feb) {
		t.Fatalf("march must not sort before february")
	}
	if feb.Before(feb) {
		t.Fatalf("a period must not sort before itself")
	}
}

func TestPeriodValidate(t *testing.T) {
	if err := (Period{}).Validate(); err == nil {
		t.Fatalf("zero period must be invalid")
	}
	if err := MonthFromParts(1, 2023, time.UTC).Validate(); err != nil {
		t.Fatalf("factory period must validate: %v", err)
	}
}

func TestResolveShortcut(t *testing.T) {
	now := time.Date(2026, time.January, 15, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{ShortcutCurrentMonth, date(2026, time.January, 1), date(2026, time.January, 31)},
		{ShortcutPreviousMonth, date(2025, time.December, 1), date(2025, time.December, 31)},
		{ShortcutCurrentQuarter, date(2026, time.January, 1), date(2026, time.March, 31)},
		{ShortcutPreviousQuarter, date(2025, time.October, 1), date(2025, time.December, 31)},
		{ShortcutCurrentYear, date(2026, time.January, 1), date(2026, time.December, 31)},
		{ShortcutPreviousYear, date(2025, time.January, 1), date(2025, time.December, 31)},
		{ShortcutAll, date(1900, time.January, 1), date(2026, time.January, 15)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := ResolveShortcut(tc.name, now)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !r.Start.Equal(tc.start) {
				t.Fatalf("start = %v, want %v", r.Start, tc.start)
			}
			if r.End.Year() != tc.end.Year() || r.End.Month() != tc.end.Month() || r.End.Day() != tc.end.Day() {
				t.Fatalf("end = %v, want end of %v", r.End, tc.end)
			}
			if r.End.Hour() != 23 || r.End.Second() != 59 {
				t.Fatalf("end not ceiled to end of day: %v", r.End)
			}
		})
	}

	if _, err := ResolveShortcut("next month", now); err == nil {
		t.Fatalf("unknown shortcut must be rejected")
	}
}
