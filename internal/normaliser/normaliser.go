// Package normaliser folds heterogeneous adapter output into canonical
// domain.MetricSample rows (§4.2). It is a pure function of its inputs plus
// a daily FX table — it keeps no state of its own; the Decision Engine owns
// the last-seen bookkeeping this package only computes from what it is
// handed. Grounded on the teacher's internal/data/facade.Facade, which
// folds per-venue payloads into one shape and fills in "last known" values
// when a venue omits a field (facade_impl.go's health/attribution
// tracking) — the same carry-forward posture this package applies to each
// campaign's last-seen watermark via Result.LastSeenAt.
package normaliser

import (
	"fmt"
	"time"

	"github.com/zurychhh/ai-budget-optimizer/internal/domain"
)

// FXTable is a daily currency-conversion table: day (truncated to UTC
// midnight) -> currency code -> rate to CanonicalCurrency. A missing entry
// is a per-sample error, not a silent 1:1 passthrough — unit mismatches at
// the boundary must surface (§4.1 canonicalisation contract).
type FXTable map[time.Time]map[string]float64

// RateTo returns the rate that converts one unit of currency into
// canonical on day, truncated to its UTC calendar date.
func (t FXTable) RateTo(day time.Time, currency string) (float64, bool) {
	byCurrency, ok := t[day.UTC().Truncate(24*time.Hour)]
	if !ok {
		return 0, false
	}
	rate, ok := byCurrency[currency]
	return rate, ok
}

// MissingRateError reports a sample whose currency has no FX entry for its
// day. The normaliser skips that one sample and continues with the rest —
// a single platform's FX gap must not blank out the whole tick's metrics.
type MissingRateError struct {
	Campaign domain.CampaignRef
	Currency string
	Day      time.Time
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("normaliser: no FX rate for %s on %s (campaign %s/%s)",
		e.Currency, e.Day.Format("2006-01-02"), e.Campaign.Platform, e.Campaign.ExternalID)
}

// Normaliser converts raw adapter samples into canonical-currency
// MetricSamples. It is constructed once with the canonical currency and a
// daily FX table; Normalise is then a pure function of its arguments.
type Normaliser struct {
	CanonicalCurrency string
	FX                FXTable
}

// New returns a Normaliser targeting canonical, using fx for conversion.
func New(canonical string, fx FXTable) *Normaliser {
	return &Normaliser{CanonicalCurrency: canonical, FX: fx}
}

// Seen bundles the bookkeeping the Decision Engine threads across ticks:
// the last time each campaign produced a sample. The normaliser reads it
// to compute NewlySeen but never mutates the caller's map.
type Seen map[domain.CampaignRef]time.Time

// Result is one normalised sample plus the carry-forward metadata §4.2
// requires: whether the campaign is newly observed this tick, and the
// watermark to fold into the caller's Seen map for the next tick.
type Result struct {
	Sample     domain.MetricSample
	NewlySeen  bool
	LastSeenAt time.Time
}

// Normalise converts raw into canonical-currency samples. Samples whose
// currency cannot be converted are omitted from results and reported in
// errs rather than aborting the whole batch — the same partial-failure
// posture the Decision Engine applies to platform-level errors (§4.3 step
// 1: "partial failure is tolerated").
func (n *Normaliser) Normalise(raw []domain.MetricSample, seen Seen) (results []Result, errs []error) {
	for _, s := range raw {
		converted, err := n.convert(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		last, wasSeen := seen[s.Campaign]
		results = append(results, Result{
			Sample:     converted,
			NewlySeen:  !wasSeen,
			LastSeenAt: latestOf(last, converted.SampleTime),
		})
	}
	return results, errs
}

func (n *Normaliser) convert(s domain.MetricSample) (domain.MetricSample, error) {
	if s.Spend.Currency == "" || s.Spend.Currency == n.CanonicalCurrency {
		s.Spend.Currency = n.CanonicalCurrency
		s.Revenue.Currency = n.CanonicalCurrency
		return s, nil
	}
	rate, ok := n.FX.RateTo(s.SampleTime, s.Spend.Currency)
	if !ok {
		return domain.MetricSample{}, &MissingRateError{Campaign: s.Campaign, Currency: s.Spend.Currency, Day: s.SampleTime}
	}
	s.Spend = domain.NewMoney(s.Spend.Float64()*rate, n.CanonicalCurrency)
	s.Revenue = domain.NewMoney(s.Revenue.Float64()*rate, n.CanonicalCurrency)
	return s, nil
}

func latestOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
