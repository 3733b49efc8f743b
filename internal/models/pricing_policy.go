package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricingPolicy holds the per-unit pricing rules consumed by the pricing engine.
type PricingPolicy struct {
	ID                   uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UnitID               uuid.UUID       `json:"unit_id" gorm:"type:uuid;not null;unique"`
	BaseWeekdayPrice     decimal.Decimal `json:"base_weekday_price" gorm:"type:numeric(12,2);not null"`
	Currency             string          `json:"currency" gorm:"size:3;not null;default:'SAR'"`
	WeekendMarkupPercent decimal.Decimal `json:"weekend_markup_percent" gorm:"type:numeric(6,2);not null;default:0"`
	Discount16Percent    decimal.Decimal `json:"discount_16_percent" gorm:"type:numeric(6,2);not null;default:0"`
	Discount21Percent    decimal.Decimal `json:"discount_21_percent" gorm:"type:numeric(6,2);not null;default:0"`
	Discount23Percent    decimal.Decimal `json:"discount_23_percent" gorm:"type:numeric(6,2);not null;default:0"`
	Timezone             string          `json:"timezone" gorm:"size:64;not null;default:'Asia/Riyadh'"`
	WeekendDays          string          `json:"weekend_days" gorm:"size:20;not null;default:'4,5'"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (PricingPolicy) TableName() string { return "pricing_policies" }

func (p *PricingPolicy) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// WeekendWeekdays parses WeekendDays ("4,5") into time.Weekday values.
// Entries are numbered from Monday=0 to Sunday=6, so "4,5" is Friday and
// Saturday. Invalid or empty entries are skipped rather than failing the
// whole policy.
func (p *PricingPolicy) WeekendWeekdays() []time.Weekday {
	parts := strings.Split(p.WeekendDays, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days = append(days, time.Weekday((n+1)%7))
	}
	return days
}

// IsWeekendDay reports whether the given weekday is configured as a weekend day.
func (p *PricingPolicy) IsWeekendDay(d time.Weekday) bool {
	for _, w := range p.WeekendWeekdays() {
		if w == d {
			return true
		}
	}
	return false
}

// Location loads the IANA timezone for this policy, falling back to UTC
// if the configured zone is malformed (never fails the caller outright).
func (p *PricingPolicy) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
