package dbutil

import (
	"gorm.io/gorm"
)

// IncrementInt atomically increments an integer column via
// SET col = COALESCE(col,0) + delta, never a read-modify-write round trip.
func IncrementInt(tx *gorm.DB, model interface{}, where string, args []interface{}, column string, delta int) error {
	return tx.Model(model).Where(where, args...).
		UpdateColumn(column, gorm.Expr("COALESCE("+column+",0) + ?", delta)).Error
}

// IncrementDecimal atomically increments a numeric column by a decimal
// amount expressed as a string (avoids float round-trip through the driver).
func IncrementDecimal(tx *gorm.DB, model interface{}, where string, args []interface{}, column string, delta string) error {
	return tx.Model(model).Where(where, args...).
		UpdateColumn(column, gorm.Expr("COALESCE("+column+",0) + ?", delta)).Error
}
