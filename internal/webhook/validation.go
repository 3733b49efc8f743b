package webhook

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"channel-integration-engine/internal/models"
)

// validationError carries the typed reason a booking payload was routed to
// quarantine rather than accepted.
type validationError struct {
	reason models.UnmatchedReason
}

func (e *validationError) Error() string { return string(e.reason) }

func newValidationError(reason models.UnmatchedReason) error {
	return &validationError{reason: reason}
}

const dateLayout = "2006-01-02"

// parseBookingFields extracts dates and price from the payload, returning a
// validationError for malformed input rather than a wrapped parse error so
// callers can route straight to quarantine.
func parseBookingFields(d inboundData) (checkIn, checkOut time.Time, price decimal.Decimal, err error) {
	if d.ArrivalDate == "" || d.DepartureDate == "" {
		return time.Time{}, time.Time{}, decimal.Zero, newValidationError(models.ReasonMissingDates)
	}

	checkIn, err = time.Parse(dateLayout, d.ArrivalDate)
	if err != nil {
		return time.Time{}, time.Time{}, decimal.Zero, newValidationError(models.ReasonInvalidPayload)
	}
	checkOut, err = time.Parse(dateLayout, d.DepartureDate)
	if err != nil {
		return time.Time{}, time.Time{}, decimal.Zero, newValidationError(models.ReasonInvalidPayload)
	}

	price = decimal.Zero
	if d.TotalPrice != "" {
		price, err = decimal.NewFromString(d.TotalPrice)
		if err != nil {
			return time.Time{}, time.Time{}, decimal.Zero, newValidationError(models.ReasonInvalidPrice)
		}
	}
	return checkIn, checkOut, price, nil
}

// validateBooking applies the date/price/conflict checks, excluding
// excludeReservationID from the overlap scan (the booking being modified
// must not be compared against its own prior row).
func validateBooking(tx *gorm.DB, unitID uuid.UUID, checkIn, checkOut time.Time, price decimal.Decimal, excludeReservationID *string) error {
	if !checkOut.After(checkIn) {
		return newValidationError(models.ReasonInvalidDateRange)
	}

	today := time.Now().UTC()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	if checkOut.Before(today) {
		return newValidationError(models.ReasonDatesInPast)
	}
	if checkIn.After(today.AddDate(0, 0, 730)) {
		return newValidationError(models.ReasonDatesTooFar)
	}

	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights < 1 {
		return newValidationError(models.ReasonDurationTooShort)
	}
	if nights > 365 {
		return newValidationError(models.ReasonDurationTooLong)
	}

	if price.IsNegative() {
		return newValidationError(models.ReasonInvalidPrice)
	}
	if !price.IsZero() {
		perNight := price.Div(decimal.NewFromInt(int64(nights)))
		if perNight.GreaterThan(decimal.NewFromInt(1000000)) {
			return newValidationError(models.ReasonInvalidPrice)
		}
	}

	var candidates []models.Booking
	if err := tx.Where("unit_id = ? AND status != ?", unitID, models.BookingStatusCancelled).Find(&candidates).Error; err != nil {
		return fmt.Errorf("load bookings for conflict check: %w", err)
	}
	for _, b := range candidates {
		if b.IsDeleted {
			continue
		}
		if excludeReservationID != nil && b.ExternalReservationID != nil && *b.ExternalReservationID == *excludeReservationID {
			continue
		}
		if b.OverlapsRange(checkIn, checkOut) {
			return newValidationError(models.ReasonDateConflict)
		}
	}
	return nil
}
