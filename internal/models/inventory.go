package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ManualUnitStatus overrides the effective status computed from bookings.
// Per the Availability projector (C4), these statuses close only "today" in
// the outbound projection, not forward.
type ManualUnitStatus string

const (
	ManualStatusNone        ManualUnitStatus = ""
	ManualStatusMaintenance ManualUnitStatus = "maintenance"
	ManualStatusCleaning    ManualUnitStatus = "needs_cleaning"
	ManualStatusHidden      ManualUnitStatus = "hidden"
)

// Unit is a minimal stub of the host-owned unit table: this core only
// reads/writes ManualStatus and references the unit by id elsewhere.
type Unit struct {
	ID           uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProjectID    uuid.UUID        `json:"project_id" gorm:"type:uuid;not null;index"`
	ManualStatus ManualUnitStatus `json:"manual_status" gorm:"type:varchar(20);not null;default:''"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (Unit) TableName() string { return "units" }

func (u *Unit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Project is a minimal stub of the host-owned project table: only its id is
// referenced by Connection.
type Project struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// InventoryCalendar is an optional, non-authoritative projection cache for
// (unit_id, date). The Availability projector recomputes truth on demand;
// this row only accelerates scans.
type InventoryCalendar struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UnitID            uuid.UUID  `json:"unit_id" gorm:"type:uuid;not null;index:idx_inventory_unit_date,unique"`
	Date              time.Time  `json:"date" gorm:"type:date;not null;index:idx_inventory_unit_date,unique"`
	IsAvailable       bool       `json:"is_available" gorm:"not null;default:true"`
	IsBlocked         bool       `json:"is_blocked" gorm:"not null;default:false"`
	BlockReason       string     `json:"block_reason" gorm:"size:100"`
	BookingID         *uuid.UUID `json:"booking_id" gorm:"type:uuid"`
	MinStay           int        `json:"min_stay" gorm:"default:0"`
	ClosedToArrival   bool       `json:"closed_to_arrival" gorm:"default:false"`
	ClosedToDeparture bool       `json:"closed_to_departure" gorm:"default:false"`
	SyncPending       bool       `json:"sync_pending" gorm:"not null;default:false;index"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (InventoryCalendar) TableName() string { return "inventory_calendar" }

func (i *InventoryCalendar) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
