// Package bookinglifecycle implements the booking state machine and its
// periodic auto-transition job: checked_in -> completed after checkout, and
// an optional gated no-show auto-cancel.
package bookinglifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"channel-integration-engine/internal/dbutil"
	"channel-integration-engine/internal/models"
)

// ErrInvalidTransition is returned when the requested status change is not
// permitted from the booking's current status.
var ErrInvalidTransition = errors.New("booking transition not permitted")

// Transition moves bookingID to next under a row lock, validating the
// transition against Booking.CanTransitionTo.
func Transition(tx *gorm.DB, bookingID string, next models.BookingStatus) (*models.Booking, error) {
	var booking models.Booking
	if err := dbutil.ForUpdate(tx.Where("id = ?", bookingID)).First(&booking).Error; err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if !booking.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, next)
	}

	booking.Status = next
	if err := tx.Save(&booking).Error; err != nil {
		return nil, fmt.Errorf("save booking: %w", err)
	}
	return &booking, nil
}

// AutoTransitioner periodically completes stays past checkout and,
// optionally, cancels no-shows.
type AutoTransitioner struct {
	db                      *gorm.DB
	noShowAutoCancelEnabled bool
}

func NewAutoTransitioner(db *gorm.DB, noShowAutoCancelEnabled bool) *AutoTransitioner {
	return &AutoTransitioner{db: db, noShowAutoCancelEnabled: noShowAutoCancelEnabled}
}

// Run completes one sweep: every checked_in booking whose check_out is
// before today becomes completed (and its unit is marked needs_cleaning);
// every confirmed booking whose check_out is before today is cancelled as a
// no-show, only when that behavior is enabled.
func (a *AutoTransitioner) Run(today time.Time) error {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	var overdueCheckedIn []models.Booking
	if err := a.db.Where("status = ? AND check_out_date < ?", models.BookingStatusCheckedIn, today).
		Find(&overdueCheckedIn).Error; err != nil {
		return fmt.Errorf("list overdue checked-in bookings: %w", err)
	}

	for _, b := range overdueCheckedIn {
		if err := a.completeAndFlagCleaning(b.ID.String(), b.UnitID.String()); err != nil {
			return err
		}
	}

	if !a.noShowAutoCancelEnabled {
		return nil
	}

	var noShows []models.Booking
	if err := a.db.Where("status = ? AND check_out_date < ?", models.BookingStatusConfirmed, today).
		Find(&noShows).Error; err != nil {
		return fmt.Errorf("list no-show candidates: %w", err)
	}

	for _, b := range noShows {
		if err := a.db.Transaction(func(tx *gorm.DB) error {
			_, err := Transition(tx, b.ID.String(), models.BookingStatusCancelled)
			return err
		}); err != nil {
			return fmt.Errorf("cancel no-show booking %s: %w", b.ID, err)
		}
	}
	return nil
}

func (a *AutoTransitioner) completeAndFlagCleaning(bookingID, unitID string) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		if _, err := Transition(tx, bookingID, models.BookingStatusCompleted); err != nil {
			return fmt.Errorf("complete booking %s: %w", bookingID, err)
		}
		if err := tx.Model(&models.Unit{}).Where("id = ?", unitID).
			Update("manual_status", models.ManualStatusCleaning).Error; err != nil {
			return fmt.Errorf("flag unit %s for cleaning: %w", unitID, err)
		}
		return nil
	})
}

// RunLoop sweeps every interval until ctx is cancelled.
func (a *AutoTransitioner) RunLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Run(time.Now().UTC()); err != nil {
				slog.Error("booking lifecycle sweep failed", "error", err)
			}
		}
	}
}
