package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"channel-integration-engine/internal/models"
)

func mkDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestProjectAvailableWithNoBookings(t *testing.T) {
	today := mkDate(2030, 5, 1)
	out := Project(models.ManualStatusNone, nil, today, 3)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	for _, e := range out {
		if e.Availability != 1 {
			t.Fatalf("expected available, got %+v", e)
		}
	}
}

func TestProjectBookingBlocksOverlapAndBuffer(t *testing.T) {
	today := mkDate(2030, 5, 1)
	booking := models.Booking{
		ID:           uuid.New(),
		Status:       models.BookingStatusConfirmed,
		CheckInDate:  mkDate(2030, 5, 2),
		CheckOutDate: mkDate(2030, 5, 4),
	}
	out := Project(models.ManualStatusNone, []models.Booking{booking}, today, 5)

	// today: available
	if out[0].Availability != 1 {
		t.Fatalf("expected today available, got %+v", out[0])
	}
	// May 2, May 3: booked
	if out[1].Availability != 0 || out[2].Availability != 0 {
		t.Fatalf("expected booked nights unavailable, got %+v %+v", out[1], out[2])
	}
	// May 4 (checkout): cleaning buffer, unavailable
	if out[3].Availability != 0 {
		t.Fatalf("expected post-checkout buffer day unavailable, got %+v", out[3])
	}
	// May 5: available again
	if out[4].Availability != 1 {
		t.Fatalf("expected day after buffer available, got %+v", out[4])
	}
}

func TestProjectManualStatusClosesTodayOnly(t *testing.T) {
	today := mkDate(2030, 5, 1)
	out := Project(models.ManualStatusMaintenance, nil, today, 3)

	if out[0].Availability != 0 {
		t.Fatalf("expected today blocked by maintenance, got %+v", out[0])
	}
	if out[1].Availability != 1 || out[2].Availability != 1 {
		t.Fatalf("expected future days unaffected by manual status, got %+v %+v", out[1], out[2])
	}
}

func TestProjectCancelledBookingIgnored(t *testing.T) {
	today := mkDate(2030, 5, 1)
	booking := models.Booking{
		ID:           uuid.New(),
		Status:       models.BookingStatusCancelled,
		CheckInDate:  mkDate(2030, 5, 1),
		CheckOutDate: mkDate(2030, 5, 3),
	}
	out := Project(models.ManualStatusNone, []models.Booking{booking}, today, 3)
	for _, e := range out {
		if e.Availability != 1 {
			t.Fatalf("expected cancelled booking to not affect availability, got %+v", e)
		}
	}
}

func TestEffectiveUnitStatusBooked(t *testing.T) {
	today := mkDate(2030, 5, 1)
	booking := models.Booking{
		Status:       models.BookingStatusCheckedIn,
		CheckInDate:  mkDate(2030, 4, 30),
		CheckOutDate: mkDate(2030, 5, 2),
	}
	got := EffectiveUnitStatus(models.ManualStatusNone, []models.Booking{booking}, today)
	if got != StatusBooked {
		t.Fatalf("expected booked, got %s", got)
	}
}
