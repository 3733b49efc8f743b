package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingStatus enumerates the lifecycle states of a booking.
// Transitions: confirmed -> checked_in -> checked_out -> completed;
// confirmed -> cancelled; checked_in -> cancelled is disallowed.
type BookingStatus string

const (
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusCheckedIn  BookingStatus = "checked_in"
	BookingStatusCheckedOut BookingStatus = "checked_out"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusPending    BookingStatus = "pending"
)

// BookingSourceType records where a booking originated.
type BookingSourceType string

const (
	BookingSourceManual    BookingSourceType = "manual"
	BookingSourceChannex   BookingSourceType = "channex"
	BookingSourceDirectAPI BookingSourceType = "direct_api"
)

// Booking is the subset of the host-owned booking table this core reads and
// writes. Dates are date-only (midnight UTC) and check_out is exclusive.
type Booking struct {
	ID                     uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UnitID                 uuid.UUID         `json:"unit_id" gorm:"type:uuid;not null;index"`
	CustomerID             *uuid.UUID        `json:"customer_id" gorm:"type:uuid;index"`
	GuestName              string            `json:"guest_name" gorm:"size:255"`
	GuestPhone             string            `json:"guest_phone" gorm:"size:20"`
	GuestEmail             string            `json:"guest_email" gorm:"size:255"`
	CheckInDate            time.Time         `json:"check_in_date" gorm:"type:date;not null;index"`
	CheckOutDate           time.Time         `json:"check_out_date" gorm:"type:date;not null;index"`
	TotalPrice             decimal.Decimal   `json:"total_price" gorm:"type:numeric(14,2);not null;default:0"`
	Currency               string            `json:"currency" gorm:"size:3;not null;default:'SAR'"`
	Status                 BookingStatus     `json:"status" gorm:"type:varchar(20);not null;default:'confirmed';index"`
	SourceType             BookingSourceType `json:"source_type" gorm:"type:varchar(20);not null;default:'manual'"`
	ChannelSource          string            `json:"channel_source" gorm:"size:50"`
	ExternalReservationID  *string           `json:"external_reservation_id" gorm:"size:255;uniqueIndex"`
	ExternalRevisionID     *string           `json:"external_revision_id" gorm:"size:255"`
	LastAppliedRevisionID  *string           `json:"last_applied_revision_id" gorm:"size:255"`
	LastAppliedRevisionAt  *time.Time        `json:"last_applied_revision_at"`
	ChannelData            datatypes.JSON    `json:"channel_data"`
	CustomerSnapshot       datatypes.JSON    `json:"customer_snapshot"`
	Notes                  string            `json:"notes" gorm:"type:text"`
	IsDeleted              bool              `json:"is_deleted" gorm:"not null;default:false;index"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// IsActiveForOverlap reports whether this booking should be considered when
// checking for date-range conflicts on its unit.
func (b *Booking) IsActiveForOverlap() bool {
	return !b.IsDeleted && b.Status != BookingStatusCancelled
}

// OverlapsRange reports half-open interval overlap: new.in < existing.out
// AND new.out > existing.in.
func (b *Booking) OverlapsRange(checkIn, checkOut time.Time) bool {
	return checkIn.Before(b.CheckOutDate) && checkOut.After(b.CheckInDate)
}

// CanTransitionTo reports whether the given status transition is permitted.
func (b *Booking) CanTransitionTo(next BookingStatus) bool {
	switch b.Status {
	case BookingStatusConfirmed:
		return next == BookingStatusCheckedIn || next == BookingStatusCancelled
	case BookingStatusCheckedIn:
		return next == BookingStatusCheckedOut || next == BookingStatusCompleted
	case BookingStatusCheckedOut:
		return next == BookingStatusCompleted
	default:
		return false
	}
}

// IsActiveOnDate reports whether the booking occupies the unit on date D,
// per the Availability projector's "effective status" rule (confirmed,
// checked_in, or pending, spanning check_in <= D <= check_out).
func (b *Booking) IsActiveOnDate(d time.Time) bool {
	if b.IsDeleted {
		return false
	}
	if b.Status != BookingStatusConfirmed && b.Status != BookingStatusCheckedIn && b.Status != BookingStatusPending {
		return false
	}
	return !d.Before(b.CheckInDate) && !d.After(b.CheckOutDate)
}
