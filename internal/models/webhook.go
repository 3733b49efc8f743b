package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEventStatus enumerates the lifecycle of a raw inbound event row.
type WebhookEventStatus string

const (
	WebhookEventReceived   WebhookEventStatus = "received"
	WebhookEventProcessing WebhookEventStatus = "processing"
	WebhookEventProcessed  WebhookEventStatus = "processed"
	WebhookEventFailed     WebhookEventStatus = "failed"
	WebhookEventSkipped    WebhookEventStatus = "skipped"
)

// WebhookEventLog is the raw record of every inbound webhook delivery.
// (provider, event_id) is deduped at receive time when both are non-null.
type WebhookEventLog struct {
	ID              uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Provider        string             `json:"provider" gorm:"size:50;not null;default:'channex'"`
	EndpointType    string             `json:"endpoint_type" gorm:"size:20;not null;default:'bookings'"`
	PropertyID      string             `json:"property_id" gorm:"size:100;index"`
	EventID         *string            `json:"event_id" gorm:"size:255;index"`
	EventType       string             `json:"event_type" gorm:"size:100;not null"`
	ExternalID      *string            `json:"external_id" gorm:"size:255;index"`
	RevisionID      *string            `json:"revision_id" gorm:"size:255"`
	PayloadJSON     datatypes.JSON     `json:"payload_json"`
	PayloadHash     string             `json:"payload_hash" gorm:"size:64;index"`
	RequestHeaders  datatypes.JSON     `json:"request_headers"`
	Status          WebhookEventStatus `json:"status" gorm:"type:varchar(20);not null;default:'received';index"`
	ReceivedAt      time.Time          `json:"received_at"`
	ProcessedAt     *time.Time         `json:"processed_at"`
	ResultAction    string             `json:"result_action" gorm:"size:50"`
	ResultBookingID *uuid.UUID         `json:"result_booking_id" gorm:"type:uuid"`
	ErrorMessage    string             `json:"error_message" gorm:"size:1000"`
}

func (WebhookEventLog) TableName() string { return "webhook_event_logs" }

func (w *WebhookEventLog) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.ReceivedAt.IsZero() {
		w.ReceivedAt = time.Now().UTC()
	}
	return nil
}

// BookingRevisionEventType enumerates the kind of change a revision represents.
type BookingRevisionEventType string

const (
	BookingRevisionNew          BookingRevisionEventType = "new"
	BookingRevisionModification BookingRevisionEventType = "modification"
	BookingRevisionCancellation BookingRevisionEventType = "cancellation"
)

// BookingRevision is a per-revision audit row; (external_booking_id, revision_id) is unique.
type BookingRevision struct {
	ID                uuid.UUID                `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ExternalBookingID string                   `json:"external_booking_id" gorm:"size:255;not null;index:idx_revision_unique,unique"`
	RevisionID        string                   `json:"revision_id" gorm:"size:255;not null;index:idx_revision_unique,unique"`
	BookingID         *uuid.UUID               `json:"booking_id" gorm:"type:uuid;index"`
	EventType         BookingRevisionEventType `json:"event_type" gorm:"type:varchar(20);not null"`
	Payload           datatypes.JSON           `json:"payload"`
	Applied           bool                     `json:"applied" gorm:"not null"`
	CreatedAt         time.Time                `json:"created_at"`
}

func (BookingRevision) TableName() string { return "booking_revisions" }

func (r *BookingRevision) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// UnmatchedReason is the taxonomy of reasons an inbound event is quarantined.
type UnmatchedReason string

const (
	ReasonNoConnection     UnmatchedReason = "no_connection"
	ReasonNoMapping        UnmatchedReason = "no_mapping"
	ReasonMissingDates     UnmatchedReason = "missing_dates"
	ReasonInvalidDateRange UnmatchedReason = "invalid_date_range"
	ReasonDatesInPast      UnmatchedReason = "dates_in_past"
	ReasonDatesTooFar      UnmatchedReason = "dates_too_far"
	ReasonDurationTooShort UnmatchedReason = "duration_too_short"
	ReasonDurationTooLong  UnmatchedReason = "duration_too_long"
	ReasonInvalidPrice     UnmatchedReason = "invalid_price"
	ReasonDateConflict     UnmatchedReason = "date_conflict"
	ReasonMissingGuest     UnmatchedReason = "missing_guest"
	ReasonInvalidPayload   UnmatchedReason = "invalid_payload"
)

// UnmatchedEventStatus enumerates the lifecycle of a quarantined event.
type UnmatchedEventStatus string

const (
	UnmatchedStatusPending  UnmatchedEventStatus = "pending"
	UnmatchedStatusResolved UnmatchedEventStatus = "resolved"
	UnmatchedStatusIgnored  UnmatchedEventStatus = "ignored"
)

// UnmatchedWebhookEvent is the quarantine for unroutable or invalid inbound payloads.
// Rows here are never dropped; they remain visible for manual resolution.
type UnmatchedWebhookEvent struct {
	ID                    uuid.UUID            `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventType             string               `json:"event_type" gorm:"size:100"`
	ExternalReservationID string               `json:"external_reservation_id" gorm:"size:255;index"`
	PropertyID            string               `json:"property_id" gorm:"size:100;index"`
	RoomTypeID            string               `json:"room_type_id" gorm:"size:100"`
	RatePlanID            string               `json:"rate_plan_id" gorm:"size:100"`
	RawPayload            datatypes.JSON       `json:"raw_payload"`
	Reason                UnmatchedReason      `json:"reason" gorm:"type:varchar(30);not null;index"`
	Status                UnmatchedEventStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ResolvedBookingID     *uuid.UUID           `json:"resolved_booking_id" gorm:"type:uuid"`
	ResolvedAt            *time.Time           `json:"resolved_at"`
	ResolvedByID          *uuid.UUID           `json:"resolved_by_id" gorm:"type:uuid"`
	CreatedAt             time.Time            `json:"created_at"`
}

func (UnmatchedWebhookEvent) TableName() string { return "unmatched_webhook_events" }

func (u *UnmatchedWebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// InboundIdempotency is one row per processed webhook event, keyed by
// (provider, external_event_id).
type InboundIdempotency struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Provider          string     `json:"provider" gorm:"size:50;not null;index:idx_idempotency_unique,unique"`
	ExternalEventID   string     `json:"external_event_id" gorm:"size:255;not null;index:idx_idempotency_unique,unique"`
	InternalBookingID *uuid.UUID `json:"internal_booking_id" gorm:"type:uuid"`
	ResultAction      string     `json:"result_action" gorm:"size:50"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (InboundIdempotency) TableName() string { return "inbound_idempotency" }

func (i *InboundIdempotency) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
