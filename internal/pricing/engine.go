// Package pricing computes daily prices from a unit's PricingPolicy (C3):
// weekday base, weekend markup, and intraday discount buckets.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"channel-integration-engine/internal/models"
)

// Engine computes per-date prices for a unit given its policy.
type Engine struct {
	// Now returns the current instant; overridable in tests.
	Now func() time.Time
}

func New() *Engine {
	return &Engine{Now: func() time.Time { return time.Now().UTC() }}
}

// DayPrice is the weekend-adjusted, undiscounted price for a single date,
// used for calendar/channel-push generation.
func (e *Engine) DayPrice(policy *models.PricingPolicy, date time.Time) decimal.Decimal {
	base := policy.BaseWeekdayPrice
	if policy.IsWeekendDay(date.Weekday()) {
		markup := policy.WeekendMarkupPercent.Div(decimal.NewFromInt(100))
		base = base.Mul(decimal.NewFromInt(1).Add(markup))
	}
	return base
}

// activeDiscountPercent returns the intraday discount bucket applicable at
// local hour H, per the fixed thresholds 16/21/23.
func activeDiscountPercent(policy *models.PricingPolicy, hour int) decimal.Decimal {
	switch {
	case hour >= 23:
		return policy.Discount23Percent
	case hour >= 21:
		return policy.Discount21Percent
	case hour >= 16:
		return policy.Discount16Percent
	default:
		return decimal.Zero
	}
}

// applyDiscount rounds base*(1-discount/100) to 2dp with half-up rounding.
func applyDiscount(base, discountPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(decimal.NewFromInt(100)))
	value := base.Mul(factor)
	// shopspring/decimal's Round uses round-half-away-from-zero, which for
	// positive money values is equivalent to round-half-up.
	return value.Round(2)
}

// CalendarPrice computes the price pushed to the Channel for date D: weekend
// markup applied, intraday discount ignored.
func (e *Engine) CalendarPrice(policy *models.PricingPolicy, date time.Time) decimal.Decimal {
	return roundMoney(e.DayPrice(policy, date))
}

// QuotePrice computes the real-time price for date D as seen by a guest or a
// booking-creation flow: if D is "today" in the policy's local timezone, the
// current intraday discount bucket applies; otherwise the undiscounted
// calendar price applies.
func (e *Engine) QuotePrice(policy *models.PricingPolicy, date time.Time) decimal.Decimal {
	dayPrice := e.DayPrice(policy, date)

	loc := policy.Location()
	now := e.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	if !d.Equal(today) {
		return roundMoney(dayPrice)
	}

	discount := activeDiscountPercent(policy, now.Hour())
	return applyDiscount(dayPrice, discount)
}

// BookingTotal sums per-night QuotePrice for every night in [checkIn, checkOut).
func (e *Engine) BookingTotal(policy *models.PricingPolicy, checkIn, checkOut time.Time) decimal.Decimal {
	total := decimal.Zero
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		total = total.Add(e.QuotePrice(policy, d))
	}
	return total
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
