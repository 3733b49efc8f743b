package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"channel-integration-engine/internal/customer"
	"channel-integration-engine/internal/dbutil"
	"channel-integration-engine/internal/models"
	"channel-integration-engine/internal/outbox"
)

var errNoMapping = errors.New("no mapping for room type or rate plan")

// Config controls the processor's polling cadence.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// Processor is the background worker for C8.
type Processor struct {
	db  *gorm.DB
	cfg Config
}

func NewProcessor(db *gorm.DB, cfg Config) *Processor {
	return &Processor{db: db, cfg: cfg}
}

// Run polls at cfg.PollInterval until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Tick(); err != nil {
				slog.Error("webhook processor tick failed", "error", err)
			}
		}
	}
}

// Tick claims up to BatchSize received rows and processes each.
func (p *Processor) Tick() error {
	rows, err := p.claim()
	if err != nil {
		return fmt.Errorf("claim webhook rows: %w", err)
	}
	for _, row := range rows {
		p.processOne(row)
	}
	return nil
}

func (p *Processor) claim() ([]models.WebhookEventLog, error) {
	var rows []models.WebhookEventLog
	err := p.db.Transaction(func(tx *gorm.DB) error {
		q := dbutil.ForUpdateSkipLocked(tx).
			Where("status = ?", models.WebhookEventReceived).
			Order("received_at").
			Limit(p.cfg.BatchSize)
		if err := q.Find(&rows).Error; err != nil {
			return err
		}
		for i := range rows {
			if err := tx.Model(&models.WebhookEventLog{}).Where("id = ?", rows[i].ID).
				Update("status", models.WebhookEventProcessing).Error; err != nil {
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

func (p *Processor) processOne(row models.WebhookEventLog) {
	var parsed inboundPayload
	if err := json.Unmarshal(row.PayloadJSON, &parsed); err != nil {
		p.fail(row, fmt.Errorf("parse payload: %w", err))
		return
	}

	eventType := deriveEventType(parsed)
	kind := classifyDispatch(eventType)

	var action string
	var bookingID *uuid.UUID

	txErr := p.db.Transaction(func(tx *gorm.DB) error {
		var herr error
		switch kind {
		case dispatchNew:
			action, bookingID, herr = p.handleNew(tx, row, parsed)
		case dispatchModified:
			action, bookingID, herr = p.handleModified(tx, row, parsed)
		case dispatchCancelled:
			action, bookingID, herr = p.handleCancelled(tx, row, parsed)
		default:
			action = "ignored"
		}
		return herr
	})

	if txErr != nil {
		p.fail(row, txErr)
		return
	}

	status := models.WebhookEventProcessed
	if kind == dispatchUnknown {
		status = models.WebhookEventSkipped
	}
	updates := map[string]interface{}{
		"status":        status,
		"result_action": action,
		"processed_at":  time.Now().UTC(),
	}
	if bookingID != nil {
		updates["result_booking_id"] = *bookingID
	}
	if err := p.db.Model(&models.WebhookEventLog{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
		slog.Error("failed to record webhook processing result", "event_id", row.ID, "error", err)
	}
}

func (p *Processor) fail(row models.WebhookEventLog, err error) {
	msg := err.Error()
	if len(msg) > 1000 {
		msg = msg[:1000]
	}
	now := time.Now().UTC()
	if updErr := p.db.Model(&models.WebhookEventLog{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":        models.WebhookEventFailed,
		"error_message": msg,
		"processed_at":  now,
	}).Error; updErr != nil {
		slog.Error("failed to record webhook processing failure", "event_id", row.ID, "error", updErr)
	}
}

// handleNew implements §4.8.1: resolve connection and mapping, dedupe by
// external reservation id, validate, upsert the customer, create the
// booking, and enqueue an availability sync.
func (p *Processor) handleNew(tx *gorm.DB, row models.WebhookEventLog, parsed inboundPayload) (string, *uuid.UUID, error) {
	var conn models.Connection
	if err := tx.Where("external_property_id = ? AND status = ?", parsed.PropertyID, models.ConnectionStatusActive).First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := quarantine(tx, row, parsed, models.ReasonNoConnection); err != nil {
				return "", nil, err
			}
			return "unmatched", nil, nil
		}
		return "", nil, fmt.Errorf("lookup connection: %w", err)
	}

	mapping, err := resolveMapping(tx, conn.ID, parsed.Data.RoomTypeID, parsed.Data.RatePlanID)
	if err != nil {
		if errors.Is(err, errNoMapping) {
			if err := quarantine(tx, row, parsed, models.ReasonNoMapping); err != nil {
				return "", nil, err
			}
			return "unmatched", nil, nil
		}
		return "", nil, err
	}

	if parsed.Data.ID == "" {
		if err := quarantine(tx, row, parsed, models.ReasonInvalidPayload); err != nil {
			return "", nil, err
		}
		return "unmatched", nil, nil
	}

	var existing models.Booking
	err = dbutil.ForUpdate(tx.Where("external_reservation_id = ?", parsed.Data.ID)).First(&existing).Error
	if err == nil {
		return "skipped", &existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, fmt.Errorf("check existing booking: %w", err)
	}

	checkIn, checkOut, price, valErr := parseBookingFields(parsed.Data)
	if valErr == nil {
		valErr = validateBooking(tx, mapping.UnitID, checkIn, checkOut, price, nil)
	}
	if valErr != nil {
		var ve *validationError
		if errors.As(valErr, &ve) {
			if err := quarantine(tx, row, parsed, ve.reason); err != nil {
				return "", nil, err
			}
			return "unmatched", nil, nil
		}
		return "", nil, valErr
	}

	cust, err := customer.Upsert(tx, customer.UpsertInput{
		Name:          parsed.Data.Guest.Name,
		Phone:         parsed.Data.Guest.Phone,
		Email:         parsed.Data.Guest.Email,
		BookingAmount: price,
	})
	if err != nil {
		return "", nil, fmt.Errorf("upsert customer: %w", err)
	}

	snapshot, err := json.Marshal(map[string]string{"name": cust.Name, "phone": cust.Phone, "email": cust.Email})
	if err != nil {
		return "", nil, fmt.Errorf("marshal customer snapshot: %w", err)
	}

	now := time.Now().UTC()
	extID := parsed.Data.ID
	var revIDPtr *string
	if parsed.Data.RevisionID != "" {
		r := parsed.Data.RevisionID
		revIDPtr = &r
	}

	booking := models.Booking{
		UnitID:                mapping.UnitID,
		CustomerID:            &cust.ID,
		GuestName:             cust.Name,
		GuestPhone:            cust.Phone,
		GuestEmail:            parsed.Data.Guest.Email,
		CheckInDate:           checkIn,
		CheckOutDate:          checkOut,
		TotalPrice:            price,
		Currency:              defaultString(parsed.Data.Currency, "SAR"),
		Status:                models.BookingStatusConfirmed,
		SourceType:            models.BookingSourceChannex,
		ChannelSource:         parsed.Data.OTAName,
		ExternalReservationID: &extID,
		ExternalRevisionID:    revIDPtr,
		LastAppliedRevisionID: revIDPtr,
		LastAppliedRevisionAt: &now,
		ChannelData:           datatypes.JSON(row.PayloadJSON),
		CustomerSnapshot:      datatypes.JSON(snapshot),
	}
	if err := tx.Create(&booking).Error; err != nil {
		return "", nil, fmt.Errorf("create booking: %w", err)
	}

	revision := models.BookingRevision{
		ExternalBookingID: extID,
		RevisionID:        defaultString(parsed.Data.RevisionID, "initial"),
		BookingID:         &booking.ID,
		EventType:         models.BookingRevisionNew,
		Payload:           datatypes.JSON(row.PayloadJSON),
		Applied:           true,
	}
	if err := tx.Create(&revision).Error; err != nil {
		return "", nil, fmt.Errorf("persist booking revision: %w", err)
	}

	if err := outbox.Enqueue(tx, &models.IntegrationOutbox{
		ConnectionID: conn.ID,
		EventType:    models.OutboxEventAvailUpdate,
		UnitID:       mapping.UnitID,
	}); err != nil {
		return "", nil, fmt.Errorf("enqueue avail_update: %w", err)
	}

	return "created", &booking.ID, nil
}

// handleModified implements §4.8.2.
func (p *Processor) handleModified(tx *gorm.DB, row models.WebhookEventLog, parsed inboundPayload) (string, *uuid.UUID, error) {
	extID := parsed.Data.ID
	if extID == "" {
		if err := quarantine(tx, row, parsed, models.ReasonInvalidPayload); err != nil {
			return "", nil, err
		}
		return "unmatched", nil, nil
	}

	var booking models.Booking
	err := dbutil.ForUpdate(tx.Where("external_reservation_id = ?", extID)).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p.handleNew(tx, row, parsed)
	}
	if err != nil {
		return "", nil, fmt.Errorf("load booking for modification: %w", err)
	}

	revID := parsed.Data.RevisionID
	if revID != "" {
		var existingRev models.BookingRevision
		err := tx.Where("external_booking_id = ? AND revision_id = ?", extID, revID).First(&existingRev).Error
		if err == nil {
			return "skipped", &booking.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fmt.Errorf("check existing revision: %w", err)
		}
	}

	if revisionTime, ok := parseRevisionTime(parsed.Data.UpdatedAt); ok && booking.LastAppliedRevisionAt != nil && revisionTime.Before(*booking.LastAppliedRevisionAt) {
		revRow := models.BookingRevision{
			ExternalBookingID: extID,
			RevisionID:        defaultString(revID, uuid.NewString()),
			BookingID:         &booking.ID,
			EventType:         models.BookingRevisionModification,
			Payload:           datatypes.JSON(row.PayloadJSON),
			Applied:           false,
		}
		if err := tx.Create(&revRow).Error; err != nil {
			return "", nil, fmt.Errorf("persist out-of-order revision: %w", err)
		}
		return "skipped_out_of_order", &booking.ID, nil
	}

	checkIn, checkOut, price, valErr := parseBookingFields(parsed.Data)
	if valErr == nil {
		valErr = validateBooking(tx, booking.UnitID, checkIn, checkOut, price, &extID)
	}
	if valErr != nil {
		var ve *validationError
		if errors.As(valErr, &ve) {
			if err := quarantine(tx, row, parsed, ve.reason); err != nil {
				return "", nil, err
			}
			return "unmatched", nil, nil
		}
		return "", nil, valErr
	}

	var conn models.Connection
	hasConn := tx.Where("external_property_id = ?", parsed.PropertyID).First(&conn).Error == nil

	oldUnitID := booking.UnitID
	unitChanged := false
	if hasConn && parsed.Data.RoomTypeID != "" {
		if mapping, merr := resolveMapping(tx, conn.ID, parsed.Data.RoomTypeID, parsed.Data.RatePlanID); merr == nil && mapping.UnitID != booking.UnitID {
			booking.UnitID = mapping.UnitID
			unitChanged = true
		}
	}

	if parsed.Data.Guest.Name != "" {
		booking.GuestName = customer.SanitizeName(parsed.Data.Guest.Name)
	}
	if parsed.Data.Guest.Phone != "" {
		booking.GuestPhone = customer.NormalizePhone(parsed.Data.Guest.Phone)
	}
	if parsed.Data.Guest.Email != "" {
		booking.GuestEmail = parsed.Data.Guest.Email
	}

	datesChanged := !booking.CheckInDate.Equal(checkIn) || !booking.CheckOutDate.Equal(checkOut)
	booking.CheckInDate = checkIn
	booking.CheckOutDate = checkOut
	if !price.IsZero() {
		booking.TotalPrice = price
	}
	if parsed.Data.Currency != "" {
		booking.Currency = parsed.Data.Currency
	}
	booking.ChannelData = datatypes.JSON(row.PayloadJSON)

	now := time.Now().UTC()
	var revIDPtr *string
	if revID != "" {
		revIDPtr = &revID
	}
	booking.ExternalRevisionID = revIDPtr
	booking.LastAppliedRevisionID = revIDPtr
	booking.LastAppliedRevisionAt = &now

	if err := tx.Save(&booking).Error; err != nil {
		return "", nil, fmt.Errorf("update booking: %w", err)
	}

	revRow := models.BookingRevision{
		ExternalBookingID: extID,
		RevisionID:        defaultString(revID, uuid.NewString()),
		BookingID:         &booking.ID,
		EventType:         models.BookingRevisionModification,
		Payload:           datatypes.JSON(row.PayloadJSON),
		Applied:           true,
	}
	if err := tx.Create(&revRow).Error; err != nil {
		return "", nil, fmt.Errorf("persist booking revision: %w", err)
	}

	if (datesChanged || unitChanged) && hasConn {
		if unitChanged {
			if err := outbox.Enqueue(tx, &models.IntegrationOutbox{ConnectionID: conn.ID, EventType: models.OutboxEventAvailUpdate, UnitID: oldUnitID}); err != nil {
				return "", nil, fmt.Errorf("enqueue avail_update for old unit: %w", err)
			}
		}
		if err := outbox.Enqueue(tx, &models.IntegrationOutbox{ConnectionID: conn.ID, EventType: models.OutboxEventAvailUpdate, UnitID: booking.UnitID}); err != nil {
			return "", nil, fmt.Errorf("enqueue avail_update: %w", err)
		}
	}

	return "updated", &booking.ID, nil
}

// handleCancelled implements §4.8.3.
func (p *Processor) handleCancelled(tx *gorm.DB, row models.WebhookEventLog, parsed inboundPayload) (string, *uuid.UUID, error) {
	extID := parsed.Data.ID
	if extID == "" {
		return "not_found", nil, nil
	}

	var booking models.Booking
	err := dbutil.ForUpdate(tx.Where("external_reservation_id = ?", extID)).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		idem := models.InboundIdempotency{
			Provider:        row.Provider,
			ExternalEventID: extID,
			ResultAction:    "not_found",
		}
		if err := tx.Create(&idem).Error; err != nil {
			return "", nil, fmt.Errorf("record idempotency for missing cancellation: %w", err)
		}
		return "not_found", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("load booking for cancellation: %w", err)
	}

	now := time.Now().UTC()
	note := fmt.Sprintf("[%s] cancelled via channel webhook", now.Format(time.RFC3339))
	if booking.Notes != "" {
		booking.Notes = booking.Notes + "\n" + note
	} else {
		booking.Notes = note
	}
	booking.Status = models.BookingStatusCancelled

	var revIDPtr *string
	if parsed.Data.RevisionID != "" {
		r := parsed.Data.RevisionID
		revIDPtr = &r
	}
	booking.ExternalRevisionID = revIDPtr
	booking.LastAppliedRevisionID = revIDPtr
	booking.LastAppliedRevisionAt = &now

	if err := tx.Save(&booking).Error; err != nil {
		return "", nil, fmt.Errorf("cancel booking: %w", err)
	}

	revision := models.BookingRevision{
		ExternalBookingID: extID,
		RevisionID:        defaultString(parsed.Data.RevisionID, uuid.NewString()),
		BookingID:         &booking.ID,
		EventType:         models.BookingRevisionCancellation,
		Payload:           datatypes.JSON(row.PayloadJSON),
		Applied:           true,
	}
	if err := tx.Create(&revision).Error; err != nil {
		return "", nil, fmt.Errorf("persist cancellation revision: %w", err)
	}

	var connID uuid.UUID
	var conn models.Connection
	if err := tx.Where("external_property_id = ?", parsed.PropertyID).First(&conn).Error; err == nil {
		connID = conn.ID
	}
	if err := outbox.Enqueue(tx, &models.IntegrationOutbox{
		ConnectionID: connID,
		EventType:    models.OutboxEventAvailUpdate,
		UnitID:       booking.UnitID,
	}); err != nil {
		return "", nil, fmt.Errorf("enqueue avail_update: %w", err)
	}

	return "cancelled", &booking.ID, nil
}

func quarantine(tx *gorm.DB, row models.WebhookEventLog, parsed inboundPayload, reason models.UnmatchedReason) error {
	ev := models.UnmatchedWebhookEvent{
		EventType:             deriveEventType(parsed),
		ExternalReservationID: parsed.Data.ID,
		PropertyID:            parsed.PropertyID,
		RoomTypeID:            parsed.Data.RoomTypeID,
		RatePlanID:            parsed.Data.RatePlanID,
		RawPayload:            datatypes.JSON(row.PayloadJSON),
		Reason:                reason,
		Status:                models.UnmatchedStatusPending,
	}
	if err := tx.Create(&ev).Error; err != nil {
		return fmt.Errorf("persist unmatched event: %w", err)
	}
	return nil
}

func resolveMapping(tx *gorm.DB, connID uuid.UUID, roomTypeID, ratePlanID string) (*models.ExternalMapping, error) {
	var m models.ExternalMapping
	if roomTypeID != "" {
		err := tx.Where("connection_id = ? AND external_room_type_id = ? AND is_active = ?", connID, roomTypeID, true).First(&m).Error
		if err == nil {
			return &m, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup mapping by room type: %w", err)
		}
	}
	if ratePlanID != "" {
		err := tx.Where("connection_id = ? AND external_rate_plan_id = ? AND is_active = ?", connID, ratePlanID, true).First(&m).Error
		if err == nil {
			return &m, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup mapping by rate plan: %w", err)
		}
	}
	return nil, errNoMapping
}

func parseRevisionTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
