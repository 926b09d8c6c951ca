package domain

import "fmt"

// Money is a canonical-currency amount expressed in minor units (cents).
// Adapters convert their platform's native sub-unit (micros, yuan-fen, ...)
// into Money at the boundary; nothing past the Adapter Registry ever sees a
// raw platform integer (§4.1 canonicalisation contract).
type Money struct {
	Minor int64 // amount in minor units (cents) of Currency
	// Currency is an ISO-4217 code. The core does not convert between
	// currencies itself — that is the Metric Normaliser's job against the
	// daily FX table — but Money carries the tag so a mismatch is
	// detectable rather than silently summed.
	Currency string
}

// NewMoney builds a Money from a float64 major-unit amount, rounding to the
// nearest minor unit. Used at adapter boundaries converting platform units.
func NewMoney(major float64, currency string) Money {
	return Money{Minor: int64(major*100 + sign(major)*0.5), Currency: currency}
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// Float64 returns the amount in major units.
func (m Money) Float64() float64 {
	return float64(m.Minor) / 100
}

// Add returns m+o. Panics on currency mismatch — a cross-currency sum is a
// programmer error, not a runtime condition to recover from. A zero-value
// m (no currency set yet, e.g. an accumulator starting from Money{}) adopts
// o's currency rather than silently discarding it.
func (m Money) Add(o Money) Money {
	m.mustMatch(o)
	return Money{Minor: m.Minor + o.Minor, Currency: m.currencyOr(o)}
}

// Sub returns m-o, with the same zero-value currency adoption as Add.
func (m Money) Sub(o Money) Money {
	m.mustMatch(o)
	return Money{Minor: m.Minor - o.Minor, Currency: m.currencyOr(o)}
}

func (m Money) currencyOr(o Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return o.Currency
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Minor < 0 {
		return Money{Minor: -m.Minor, Currency: m.Currency}
	}
	return m
}

// Fraction returns m scaled by f, rounded to the nearest minor unit. This is
// the single rounding point used by I5's per-campaign cap calculation, so
// cumulative drift never exceeds one minor unit per campaign per day
// (spec.md §8 boundary behaviour).
func (m Money) Fraction(f float64) Money {
	scaled := float64(m.Minor) * f
	rounded := int64(scaled + sign(scaled)*0.5)
	return Money{Minor: rounded, Currency: m.Currency}
}

// GreaterThan reports whether m > o.
func (m Money) GreaterThan(o Money) bool {
	m.mustMatch(o)
	return m.Minor > o.Minor
}

func (m Money) mustMatch(o Money) {
	if m.Currency != "" && o.Currency != "" && m.Currency != o.Currency {
		panic(fmt.Sprintf("domain: currency mismatch %s vs %s", m.Currency, o.Currency))
	}
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Float64(), m.Currency)
}
