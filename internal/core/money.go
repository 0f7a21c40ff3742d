package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is a signed monetary amount in cents. Revenue amounts are
// non-negative, expense amounts are negative.
type Money struct {
	Cents int64
}

// ParseMoney parses a decimal amount like "-42.50" or "1.234,56" into
// cents. Both comma and dot are accepted as decimal separator; at most
// two fraction digits are allowed.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("empty amount")
	}
	// Normalize "1.234,56" to "1234.56".
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	sign := int64(1)
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, fraction := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, fraction = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(fraction) > 2 {
		return Money{}, fmt.Errorf("amount %q: more than two fraction digits", s)
	}
	for len(fraction) < 2 {
		fraction += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	cents, err := strconv.ParseInt(fraction, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("amount %q: %w", s, err)
	}
	return Money{Cents: sign * (units*100 + cents)}, nil
}

// Float returns the amount in currency units for display and statistics.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

// Add returns the sum of two amounts.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}
