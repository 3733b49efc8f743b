package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Gender is an optional, best-effort classification derived from webhook guest data.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Customer is host-owned; the core upserts it by normalized phone number.
type Customer struct {
	ID                     uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name                   string          `json:"name" gorm:"size:255"`
	Phone                  string          `json:"phone" gorm:"size:20;not null;unique"`
	Email                  string          `json:"email" gorm:"size:255"`
	Gender                 *Gender         `json:"gender" gorm:"type:varchar(10)"`
	BookingCount           int             `json:"booking_count" gorm:"not null;default:0"`
	CompletedBookingCount  int             `json:"completed_booking_count" gorm:"not null;default:0"`
	TotalRevenue           decimal.Decimal `json:"total_revenue" gorm:"type:numeric(14,2);not null;default:0"`
	IsBanned               bool            `json:"is_banned" gorm:"not null;default:false"`
	BanReason              string          `json:"ban_reason" gorm:"size:500"`
	IsProfileComplete      bool            `json:"is_profile_complete" gorm:"not null;default:false"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// UpdateProfileCompleteStatus recomputes IsProfileComplete from the current
// name/phone state: name length >= 2 and phone length >= 9.
func (c *Customer) UpdateProfileCompleteStatus() {
	c.IsProfileComplete = len(c.Name) >= 2 && len(c.Phone) >= 9
}
