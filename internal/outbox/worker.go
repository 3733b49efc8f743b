// Package outbox implements the outbound sync worker (C6): polls pending
// events, merges overlapping work, and delegates to the pricing engine,
// availability projector, batch builder, and channel client.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"channel-integration-engine/internal/availability"
	"channel-integration-engine/internal/batch"
	"channel-integration-engine/internal/channel"
	"channel-integration-engine/internal/dbutil"
	"channel-integration-engine/internal/models"
	"channel-integration-engine/internal/pricing"
)

// Config controls the worker's polling cadence and batching limits.
type Config struct {
	PollInterval    time.Duration
	BatchSize       int
	MaxPayloadBytes int
	SyncHorizonDays int
}

// Worker polls IntegrationOutbox for claimable rows and executes them.
type Worker struct {
	db      *gorm.DB
	client  *channel.Client
	pricing *pricing.Engine
	cfg     Config
}

func NewWorker(db *gorm.DB, client *channel.Client, pricingEngine *pricing.Engine, cfg Config) *Worker {
	return &Worker{db: db, client: client, pricing: pricingEngine, cfg: cfg}
}

// Run polls at cfg.PollInterval until ctx is cancelled. Every tick is
// independent; a tick that errors is logged and the worker continues.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				slog.Error("outbox tick failed", "error", err)
			}
		}
	}
}

// Tick claims up to BatchSize claimable rows, merges overlapping events,
// and executes each surviving one.
func (w *Worker) Tick(ctx context.Context) error {
	rows, err := w.claim()
	if err != nil {
		return fmt.Errorf("claim outbox rows: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	survivors, err := w.mergeOverlapping(rows)
	if err != nil {
		return fmt.Errorf("merge overlapping events: %w", err)
	}

	for _, row := range survivors {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		w.process(ctx, row)
	}
	return nil
}

func (w *Worker) claim() ([]models.IntegrationOutbox, error) {
	var rows []models.IntegrationOutbox
	now := time.Now().UTC()

	err := w.db.Transaction(func(tx *gorm.DB) error {
		q := dbutil.ForUpdateSkipLocked(tx).
			Where("status IN ? AND next_attempt_at <= ? AND attempts < max_attempts", []models.OutboxStatus{models.OutboxStatusPending, models.OutboxStatusRetrying}, now).
			Order("next_attempt_at").
			Limit(w.cfg.BatchSize)

		if err := q.Find(&rows).Error; err != nil {
			return err
		}

		for i := range rows {
			rows[i].Status = models.OutboxStatusProcessing
			rows[i].Attempts++
			if err := tx.Model(&models.IntegrationOutbox{}).Where("id = ?", rows[i].ID).
				Updates(map[string]interface{}{"status": models.OutboxStatusProcessing, "attempts": rows[i].Attempts}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeOverlapping groups claimed rows by (unit_id, event_type), keeping the
// newest by created_at and marking older duplicates completed with a
// last-write-wins note.
func (w *Worker) mergeOverlapping(rows []models.IntegrationOutbox) ([]models.IntegrationOutbox, error) {
	type key struct {
		unitID    uuid.UUID
		eventType models.OutboxEventType
	}
	newest := make(map[key]models.IntegrationOutbox)

	for _, row := range rows {
		k := key{row.UnitID, row.EventType}
		if cur, ok := newest[k]; !ok || row.CreatedAt.After(cur.CreatedAt) {
			newest[k] = row
		}
	}

	var survivors []models.IntegrationOutbox
	for _, row := range rows {
		k := key{row.UnitID, row.EventType}
		if newest[k].ID == row.ID {
			survivors = append(survivors, row)
			continue
		}
		now := time.Now().UTC()
		if err := w.db.Model(&models.IntegrationOutbox{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
			"status":       models.OutboxStatusCompleted,
			"last_error":   "merged with newer event",
			"completed_at": now,
		}).Error; err != nil {
			return nil, fmt.Errorf("mark merged event completed: %w", err)
		}
	}
	return survivors, nil
}

func (w *Worker) process(ctx context.Context, row models.IntegrationOutbox) {
	var execErr error
	var paused bool

	switch row.EventType {
	case models.OutboxEventPriceUpdate:
		paused, execErr = w.executePriceUpdate(ctx, row)
	case models.OutboxEventAvailUpdate:
		paused, execErr = w.executeAvailUpdate(ctx, row)
	case models.OutboxEventFullSync:
		execErr = w.executeFullSync(row)
	default:
		execErr = fmt.Errorf("unknown event type %q", row.EventType)
	}

	if execErr == nil {
		w.markSuccess(row)
		return
	}

	if paused {
		w.markRetryingAfterPause(row)
		return
	}

	w.markFailureOrRetry(row, execErr)
}

func (w *Worker) executePriceUpdate(ctx context.Context, row models.IntegrationOutbox) (paused bool, err error) {
	var conn models.Connection
	var mapping models.ExternalMapping
	if err := w.db.First(&conn, "id = ?", row.ConnectionID).Error; err != nil {
		return false, fmt.Errorf("load connection: %w", err)
	}
	if err := w.db.Where("connection_id = ? AND unit_id = ?", row.ConnectionID, row.UnitID).First(&mapping).Error; err != nil {
		return false, fmt.Errorf("load mapping: %w", err)
	}
	if !mapping.IsUsableForRates() {
		return false, fmt.Errorf("mapping for unit %s is not usable for rates", row.UnitID)
	}

	var policy models.PricingPolicy
	if err := w.db.Where("unit_id = ?", row.UnitID).First(&policy).Error; err != nil {
		return false, fmt.Errorf("load pricing policy: %w", err)
	}

	today := time.Now().UTC()
	values := make([]batch.DateValue, 0, w.cfg.SyncHorizonDays)
	for i := 0; i < w.cfg.SyncHorizonDays; i++ {
		d := today.AddDate(0, 0, i)
		price := w.pricing.CalendarPrice(&policy, d)
		values = append(values, batch.DateValue{
			ExternalID: mapping.ExternalRatePlanID,
			Date:       d,
			Value:      price.StringFixed(2),
		})
	}

	batches, err := batch.BuildRateBatches(conn.ExternalPropertyID, values, w.cfg.MaxPayloadBytes)
	if err != nil {
		return false, fmt.Errorf("build rate batches: %w", err)
	}

	for _, b := range batches {
		if err := w.client.PushRates(ctx, &conn, b); err != nil {
			if isPauseError(err) {
				return true, err
			}
			return false, err
		}
	}

	now := time.Now().UTC()
	mapping.LastPriceSyncAt = &now
	if err := w.db.Save(&mapping).Error; err != nil {
		return false, fmt.Errorf("update mapping sync time: %w", err)
	}
	return false, nil
}

func (w *Worker) executeAvailUpdate(ctx context.Context, row models.IntegrationOutbox) (paused bool, err error) {
	var conn models.Connection
	var mapping models.ExternalMapping
	var unit models.Unit
	if err := w.db.First(&conn, "id = ?", row.ConnectionID).Error; err != nil {
		return false, fmt.Errorf("load connection: %w", err)
	}
	if err := w.db.Where("connection_id = ? AND unit_id = ?", row.ConnectionID, row.UnitID).First(&mapping).Error; err != nil {
		return false, fmt.Errorf("load mapping: %w", err)
	}
	if !mapping.IsUsableForAvailability() {
		return false, fmt.Errorf("mapping for unit %s is not usable for availability", row.UnitID)
	}
	if err := w.db.First(&unit, "id = ?", row.UnitID).Error; err != nil {
		return false, fmt.Errorf("load unit: %w", err)
	}

	var bookings []models.Booking
	if err := w.db.Where("unit_id = ?", row.UnitID).Find(&bookings).Error; err != nil {
		return false, fmt.Errorf("load bookings: %w", err)
	}

	today := time.Now().UTC()
	projection := availability.Project(unit.ManualStatus, bookings, today, w.cfg.SyncHorizonDays)

	values := make([]batch.DateValue, 0, len(projection))
	for _, p := range projection {
		v := "0"
		if p.Availability == 1 {
			v = "1"
		}
		values = append(values, batch.DateValue{ExternalID: mapping.ExternalRoomTypeID, Date: p.Date, Value: v})
	}

	batches, err := batch.BuildAvailabilityBatches(conn.ExternalPropertyID, values, w.cfg.MaxPayloadBytes)
	if err != nil {
		return false, fmt.Errorf("build availability batches: %w", err)
	}

	for _, b := range batches {
		if err := w.client.PushAvailability(ctx, &conn, b); err != nil {
			if isPauseError(err) {
				return true, err
			}
			return false, err
		}
	}

	now := time.Now().UTC()
	mapping.LastAvailSyncAt = &now
	if err := w.db.Save(&mapping).Error; err != nil {
		return false, fmt.Errorf("update mapping sync time: %w", err)
	}
	return false, nil
}

func (w *Worker) executeFullSync(row models.IntegrationOutbox) error {
	payload, err := marshalPayload(map[string]interface{}{
		"unit_id":    row.UnitID,
		"days_ahead": w.cfg.SyncHorizonDays,
	})
	if err != nil {
		return fmt.Errorf("marshal full_sync payload: %w", err)
	}

	return w.db.Transaction(func(tx *gorm.DB) error {
		price := models.IntegrationOutbox{
			ConnectionID: row.ConnectionID,
			EventType:    models.OutboxEventPriceUpdate,
			UnitID:       row.UnitID,
			Payload:      payload,
		}
		if err := tx.Create(&price).Error; err != nil {
			return fmt.Errorf("enqueue price_update from full_sync: %w", err)
		}
		avail := models.IntegrationOutbox{
			ConnectionID: row.ConnectionID,
			EventType:    models.OutboxEventAvailUpdate,
			UnitID:       row.UnitID,
			Payload:      payload,
		}
		if err := tx.Create(&avail).Error; err != nil {
			return fmt.Errorf("enqueue avail_update from full_sync: %w", err)
		}
		return nil
	})
}

func isPauseError(err error) bool {
	var chErr *channel.Error
	if errors.As(err, &chErr) {
		return chErr.Code == "rate_limited"
	}
	return false
}

func (w *Worker) markSuccess(row models.IntegrationOutbox) {
	now := time.Now().UTC()
	if err := w.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.IntegrationOutbox{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
			"status":       models.OutboxStatusCompleted,
			"completed_at": now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Connection{}).Where("id = ?", row.ConnectionID).Updates(map[string]interface{}{
			"last_sync_at": now,
			"error_count":  0,
		}).Error
	}); err != nil {
		slog.Error("failed to record outbox success", "outbox_id", row.ID, "error", err)
	}
}

func (w *Worker) markRetryingAfterPause(row models.IntegrationOutbox) {
	next := time.Now().UTC().Add(60 * time.Second)
	if err := w.db.Model(&models.IntegrationOutbox{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":          models.OutboxStatusRetrying,
		"next_attempt_at": next,
		"last_error":      "property rate-limited",
	}).Error; err != nil {
		slog.Error("failed to reschedule paused outbox row", "outbox_id", row.ID, "error", err)
	}
}

func (w *Worker) markFailureOrRetry(row models.IntegrationOutbox, execErr error) {
	msg := truncate(execErr.Error(), 1000)

	if row.Attempts >= row.MaxAttempts {
		if err := w.db.Model(&models.IntegrationOutbox{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
			"status":     models.OutboxStatusFailed,
			"last_error": msg,
		}).Error; err != nil {
			slog.Error("failed to mark outbox row failed", "outbox_id", row.ID, "error", err)
		}
		return
	}

	backoffMinutes := minInt(pow2Int(row.Attempts-1), 60)
	next := time.Now().UTC().Add(time.Duration(backoffMinutes) * time.Minute)
	if err := w.db.Model(&models.IntegrationOutbox{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":          models.OutboxStatusRetrying,
		"next_attempt_at": next,
		"last_error":      msg,
	}).Error; err != nil {
		slog.Error("failed to reschedule outbox row", "outbox_id", row.ID, "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func pow2Int(n int) int {
	if n < 0 {
		return 1
	}
	result := 1
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}

// Enqueue inserts a new outbox event, honoring idempotency_key when set (a
// duplicate key is a no-op due to the unique constraint).
func Enqueue(db *gorm.DB, row *models.IntegrationOutbox) error {
	err := db.Create(row).Error
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return nil
	}
	return fmt.Errorf("enqueue outbox event: %w", err)
}

func isUniqueViolation(err error) bool {
	return err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || containsAny(err.Error(), []string{"duplicate key", "UNIQUE constraint"}))
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}

// marshalPayload is a small helper kept here so callers constructing an
// outbox row's denormalized payload don't need to import encoding/json
// directly.
func marshalPayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
