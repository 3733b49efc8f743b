package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"channel-integration-engine/internal/models"
)

// Connect establishes a connection to the database
func Connect(databaseURL string) (*gorm.DB, error) {
	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)

	// Open database connection
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Auto-migrate models
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated successfully")
	return db, nil
}

// autoMigrate runs automatic migrations for all models
func autoMigrate(db *gorm.DB) error {
	migrations := []interface{}{
		// Host-owned stubs, migrated first for FK targets
		&models.Project{},
		&models.Unit{},
		&models.Customer{},
		&models.Booking{},

		// Channel connection and mapping
		&models.Connection{},
		&models.ExternalMapping{},
		&models.PricingPolicy{},
		&models.PropertyRateState{},

		// Outbound sync
		&models.IntegrationOutbox{},
		&models.InventoryCalendar{},

		// Inbound webhook pipeline
		&models.WebhookEventLog{},
		&models.BookingRevision{},
		&models.UnmatchedWebhookEvent{},
		&models.InboundIdempotency{},

		// Audit / observability
		&models.IntegrationLog{},
		&models.IntegrationAudit{},
		&models.IntegrationAlert{},
	}

	for _, model := range migrations {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	if err := createConstraints(db); err != nil {
		return fmt.Errorf("failed to create constraints: %w", err)
	}

	return nil
}

// createIndexes creates additional database indexes beyond the GORM tags,
// mirroring the access patterns of the outbox worker, webhook processor and
// rate-state lookups.
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Outbox worker: claim oldest due pending/retrying row
		"CREATE INDEX IF NOT EXISTS idx_outbox_claimable ON integration_outbox(status, next_attempt_at)",
		"CREATE INDEX IF NOT EXISTS idx_outbox_unit_event ON integration_outbox(unit_id, event_type)",

		// Webhook processor: poll received events in arrival order
		"CREATE INDEX IF NOT EXISTS idx_webhook_status_received ON webhook_event_logs(status, received_at)",

		// Booking overlap scans
		"CREATE INDEX IF NOT EXISTS idx_bookings_unit_dates ON bookings(unit_id, check_in_date, check_out_date)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)",

		// Customer lookup by normalized phone
		"CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			slog.Warn("Failed to create index", "query", index, "error", err)
		}
	}

	return nil
}

// createConstraints creates domain-invariant CHECK constraints that are
// cheaper to enforce in the database than to re-verify on every write.
func createConstraints(db *gorm.DB) error {
	constraints := []string{
		"ALTER TABLE bookings ADD CONSTRAINT IF NOT EXISTS chk_booking_dates CHECK (check_out_date > check_in_date)",
		"ALTER TABLE property_rate_states ADD CONSTRAINT IF NOT EXISTS chk_rate_state_price_tokens CHECK (price_tokens >= 0 AND price_tokens <= 10)",
		"ALTER TABLE property_rate_states ADD CONSTRAINT IF NOT EXISTS chk_rate_state_avail_tokens CHECK (avail_tokens >= 0 AND avail_tokens <= 10)",
		"ALTER TABLE integration_outbox ADD CONSTRAINT IF NOT EXISTS chk_outbox_attempts CHECK (attempts >= 0)",
	}

	for _, constraint := range constraints {
		if err := db.Exec(constraint).Error; err != nil {
			slog.Warn("Failed to create constraint", "query", constraint, "error", err)
		}
	}

	return nil
}

// CreateUniqueConstraints installs the Postgres trigger that rejects
// overlapping active bookings for the same unit at the database level, as a
// last line of defense behind the application-level overlap check in the
// webhook processor's booking validation.
func CreateUniqueConstraints(db *gorm.DB) error {
	uniqueConstraints := []string{
		`CREATE OR REPLACE FUNCTION check_booking_conflict()
			RETURNS TRIGGER AS $$
			BEGIN
			IF EXISTS (
				SELECT 1 FROM bookings
				WHERE unit_id = NEW.unit_id
				AND id != COALESCE(NEW.id, '00000000-0000-0000-0000-000000000000'::uuid)
				AND status IN ('confirmed', 'checked_in')
				AND (check_in_date, check_out_date) OVERLAPS (NEW.check_in_date, NEW.check_out_date)
			) THEN
				RAISE EXCEPTION 'booking conflicts with existing reservation for unit';
			END IF;
			RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,

		`DROP TRIGGER IF EXISTS booking_conflict_trigger ON bookings`,

		`CREATE TRIGGER booking_conflict_trigger
			BEFORE INSERT OR UPDATE ON bookings
			FOR EACH ROW EXECUTE FUNCTION check_booking_conflict()`,
	}

	for _, constraint := range uniqueConstraints {
		if err := db.Exec(constraint).Error; err != nil {
			slog.Warn("Failed to create unique constraint", "query", constraint, "error", err)
		}
	}

	return nil
}

// RecoverInFlightWork reverts any outbox/webhook rows left in a
// processing state by a process that crashed mid-attempt, so a restart
// never leaves work stuck claimed by a worker that no longer exists.
func RecoverInFlightWork(db *gorm.DB) error {
	if err := db.Model(&models.IntegrationOutbox{}).
		Where("status = ?", models.OutboxStatusProcessing).
		Update("status", models.OutboxStatusRetrying).Error; err != nil {
		return fmt.Errorf("failed to recover in-flight outbox rows: %w", err)
	}

	if err := db.Model(&models.WebhookEventLog{}).
		Where("status = ?", models.WebhookEventProcessing).
		Update("status", models.WebhookEventReceived).Error; err != nil {
		return fmt.Errorf("failed to recover in-flight webhook rows: %w", err)
	}

	return nil
}

// CloseConnection closes the database connection
func CloseConnection(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	slog.Info("Database connection closed")
	return nil
}
