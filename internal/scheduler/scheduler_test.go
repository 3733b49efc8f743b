package scheduler

import (
	"testing"
	"time"
)

func TestNextTickPicksLaterHourSameDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		t.Skip("tzdata not available")
	}
	s := &Scheduler{location: loc, now: func() time.Time {
		return time.Date(2030, 5, 10, 10, 0, 0, 0, loc)
	}}
	next := s.nextTick()
	want := time.Date(2030, 5, 10, 16, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestNextTickRollsOverToNextDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		t.Skip("tzdata not available")
	}
	s := &Scheduler{location: loc, now: func() time.Time {
		return time.Date(2030, 5, 10, 23, 30, 0, 0, loc)
	}}
	next := s.nextTick()
	want := time.Date(2030, 5, 11, 0, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestNextTickAtExactBoundaryPicksNextOne(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		t.Skip("tzdata not available")
	}
	s := &Scheduler{location: loc, now: func() time.Time {
		return time.Date(2030, 5, 10, 0, 0, 0, 0, loc)
	}}
	next := s.nextTick()
	want := time.Date(2030, 5, 10, 16, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}
