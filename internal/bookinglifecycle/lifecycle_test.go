package bookinglifecycle

import (
	"testing"

	"channel-integration-engine/internal/models"
)

func TestTransitionRules(t *testing.T) {
	cases := []struct {
		from models.BookingStatus
		to   models.BookingStatus
		want bool
	}{
		{models.BookingStatusConfirmed, models.BookingStatusCheckedIn, true},
		{models.BookingStatusConfirmed, models.BookingStatusCancelled, true},
		{models.BookingStatusCheckedIn, models.BookingStatusCheckedOut, true},
		{models.BookingStatusCheckedIn, models.BookingStatusCompleted, true},
		{models.BookingStatusCheckedIn, models.BookingStatusCancelled, false},
		{models.BookingStatusCheckedOut, models.BookingStatusCompleted, true},
		{models.BookingStatusCompleted, models.BookingStatusCancelled, false},
		{models.BookingStatusCancelled, models.BookingStatusConfirmed, false},
	}

	for _, c := range cases {
		b := models.Booking{Status: c.from}
		got := b.CanTransitionTo(c.to)
		if got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
