package customer

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"channel-integration-engine/internal/dbutil"
	"channel-integration-engine/internal/models"
)

// UpsertInput carries the fields a webhook payload contributes to a customer record.
type UpsertInput struct {
	Name          string
	Phone         string
	Email         string
	Gender        *models.Gender
	BookingAmount decimal.Decimal
}

// Upsert finds-or-creates a Customer by normalized phone within tx, applying
// the non-destructive merge rule: name replaced only if longer, gender set
// only if previously unset, booking_count incremented, total_revenue
// increased by amount. The counters are each incremented by an atomic
// UPDATE expression, never read-modify-write.
func Upsert(tx *gorm.DB, in UpsertInput) (*models.Customer, error) {
	phone := NormalizePhone(in.Phone)
	name := SanitizeName(in.Name)

	var existing models.Customer
	err := dbutil.ForUpdate(tx.Where("phone = ?", phone)).First(&existing).Error
	if err == nil {
		return updateExisting(tx, &existing, name, in)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	c := &models.Customer{
		Name:         name,
		Phone:        phone,
		Email:        in.Email,
		Gender:       in.Gender,
		BookingCount: 1,
		TotalRevenue: in.BookingAmount,
	}
	c.UpdateProfileCompleteStatus()
	if err := tx.Create(c).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

func updateExisting(tx *gorm.DB, existing *models.Customer, newName string, in UpsertInput) (*models.Customer, error) {
	if len(newName) > len(existing.Name) {
		existing.Name = newName
	}
	if existing.Gender == nil {
		existing.Gender = in.Gender
	}
	if in.Email != "" {
		existing.Email = in.Email
	}
	existing.UpdateProfileCompleteStatus()

	if err := tx.Model(existing).Select("Name", "Gender", "Email", "IsProfileComplete").Updates(existing).Error; err != nil {
		return nil, fmt.Errorf("update customer fields: %w", err)
	}

	if err := dbutil.IncrementInt(tx, &models.Customer{}, "id = ?", []interface{}{existing.ID}, "booking_count", 1); err != nil {
		return nil, fmt.Errorf("increment booking count: %w", err)
	}
	if err := dbutil.IncrementDecimal(tx, &models.Customer{}, "id = ?", []interface{}{existing.ID}, "total_revenue", in.BookingAmount.String()); err != nil {
		return nil, fmt.Errorf("increment total revenue: %w", err)
	}

	existing.BookingCount++
	existing.TotalRevenue = existing.TotalRevenue.Add(in.BookingAmount)
	return existing, nil
}

// IsBanned reports whether the customer is banned from new bookings.
func IsBanned(c *models.Customer) bool {
	return c.IsBanned
}
