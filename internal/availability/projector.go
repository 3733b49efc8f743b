// Package availability derives per-date availability for a unit from its
// active bookings and manual status (C4). The projector is pure: given the
// same booking set and unit state it always returns the same projection.
package availability

import (
	"fmt"
	"time"

	"channel-integration-engine/internal/models"
)

// EffectiveStatus is the resolved unit status for "today", combining manual
// overrides with the active booking set.
type EffectiveStatus string

const (
	StatusAvailable   EffectiveStatus = "available"
	StatusBooked      EffectiveStatus = "booked"
	StatusMaintenance EffectiveStatus = "maintenance"
	StatusCleaning    EffectiveStatus = "needs_cleaning"
	StatusHidden      EffectiveStatus = "hidden"
)

// DateAvailability is one entry in the projection's output sequence.
type DateAvailability struct {
	Date         time.Time
	Availability int // 0 or 1
	StopSell     bool
	Reason       string
}

// EffectiveUnitStatus resolves manual status overrides against the active
// booking set for "today" only — manual statuses never look forward.
func EffectiveUnitStatus(manual models.ManualUnitStatus, bookings []models.Booking, today time.Time) EffectiveStatus {
	switch manual {
	case models.ManualStatusMaintenance:
		return StatusMaintenance
	case models.ManualStatusCleaning:
		return StatusCleaning
	case models.ManualStatusHidden:
		return StatusHidden
	}

	for _, b := range bookings {
		if !b.IsActiveForOverlap() {
			continue
		}
		if b.Status != models.BookingStatusConfirmed && b.Status != models.BookingStatusCheckedIn && b.Status != models.BookingStatusPending {
			continue
		}
		if !today.Before(b.CheckInDate) && !today.After(b.CheckOutDate) {
			return StatusBooked
		}
	}
	return StatusAvailable
}

// Project computes the availability sequence for horizonDays starting at
// today, given the unit's manual status and its bookings (any status; the
// projector filters).
func Project(manual models.ManualUnitStatus, bookings []models.Booking, today time.Time, horizonDays int) []DateAvailability {
	today = dateOnly(today)
	effective := EffectiveUnitStatus(manual, bookings, today)

	out := make([]DateAvailability, 0, horizonDays)
	for i := 0; i < horizonDays; i++ {
		d := today.AddDate(0, 0, i)
		out = append(out, projectDate(d, today, effective, bookings))
	}
	return out
}

func projectDate(d, today time.Time, effective EffectiveStatus, bookings []models.Booking) DateAvailability {
	// Manual closures block only "today" in the pushed projection; future
	// dates default open even while the unit is under a manual status.
	if d.Equal(today) {
		switch effective {
		case StatusMaintenance, StatusCleaning, StatusHidden:
			return DateAvailability{Date: d, Availability: 0, StopSell: true, Reason: string(effective)}
		}
	}

	for _, b := range bookings {
		if !b.IsActiveForOverlap() {
			continue
		}
		if d.Before(b.CheckInDate) || !d.Before(b.CheckOutDate) {
			// d == check_out is handled below by the cleaning-buffer rule,
			// not by the overlap rule (bookings are half-open).
			if d.Equal(b.CheckOutDate) {
				return DateAvailability{
					Date:         d,
					Availability: 0,
					StopSell:     true,
					Reason:       fmt.Sprintf("post_checkout_buffer:%s", b.ID),
				}
			}
			continue
		}
		return DateAvailability{
			Date:         d,
			Availability: 0,
			StopSell:     true,
			Reason:       fmt.Sprintf("booking:%s", b.ID),
		}
	}

	return DateAvailability{Date: d, Availability: 1}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
