package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"channel-integration-engine/internal/models"
)

func testPolicy() *models.PricingPolicy {
	return &models.PricingPolicy{
		BaseWeekdayPrice:     decimal.NewFromInt(100),
		WeekendMarkupPercent: decimal.NewFromInt(20),
		Discount16Percent:    decimal.NewFromInt(10),
		Discount21Percent:    decimal.NewFromInt(20),
		Discount23Percent:    decimal.NewFromInt(30),
		Timezone:             "Asia/Riyadh",
		WeekendDays:          "4,5", // Friday, Saturday
	}
}

func TestDayPriceWeekday(t *testing.T) {
	policy := testPolicy()
	// 2030-05-08 is a Wednesday
	date := time.Date(2030, 5, 8, 0, 0, 0, 0, time.UTC)
	got := New().DayPrice(policy, date)
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100, got %s", got)
	}
}

func TestDayPriceWeekendMarkup(t *testing.T) {
	policy := testPolicy()
	// 2030-05-10 is a Friday
	date := time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC)
	got := New().DayPrice(policy, date)
	want := decimal.NewFromInt(120)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCalendarPriceIgnoresDiscount(t *testing.T) {
	e := New()
	e.Now = func() time.Time {
		return time.Date(2030, 5, 8, 23, 0, 0, 0, time.UTC) // late hour, should be ignored
	}
	policy := testPolicy()
	date := time.Date(2030, 5, 8, 0, 0, 0, 0, time.UTC)
	got := e.CalendarPrice(policy, date)
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected undiscounted 100, got %s", got)
	}
}

func TestQuotePriceAppliesDiscountOnlyToday(t *testing.T) {
	policy := testPolicy()
	loc := policy.Location()
	now := time.Date(2030, 5, 8, 17, 0, 0, 0, loc) // 17:00 local -> 16<=H<21 bucket
	e := &Engine{Now: func() time.Time { return now }}

	today := time.Date(2030, 5, 8, 0, 0, 0, 0, loc)
	tomorrow := today.AddDate(0, 0, 1)

	gotToday := e.QuotePrice(policy, today)
	wantToday := decimal.NewFromInt(90) // 100 * (1 - 10/100)
	if !gotToday.Equal(wantToday) {
		t.Fatalf("expected discounted %s today, got %s", wantToday, gotToday)
	}

	gotTomorrow := e.QuotePrice(policy, tomorrow)
	wantTomorrow := decimal.NewFromInt(100)
	if !gotTomorrow.Equal(wantTomorrow) {
		t.Fatalf("expected undiscounted %s tomorrow, got %s", wantTomorrow, gotTomorrow)
	}
}

func TestBookingTotalSumsNights(t *testing.T) {
	policy := testPolicy()
	e := New()
	e.Now = func() time.Time {
		return time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC) // far from stay dates, no discount applies
	}
	checkIn := time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC)  // Friday
	checkOut := time.Date(2030, 5, 12, 0, 0, 0, 0, time.UTC) // Sunday, exclusive
	got := e.BookingTotal(policy, checkIn, checkOut)
	// May 10 (Fri, weekend) = 120, May 11 (Sat, weekend) = 120
	want := decimal.NewFromInt(240)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
