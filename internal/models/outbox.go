package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OutboxEventType enumerates the kinds of work an outbox row represents.
type OutboxEventType string

const (
	OutboxEventPriceUpdate OutboxEventType = "price_update"
	OutboxEventAvailUpdate OutboxEventType = "avail_update"
	OutboxEventFullSync    OutboxEventType = "full_sync"
)

// OutboxStatus enumerates the lifecycle of an outbox row.
// completed and failed are terminal: once reached a row is never mutated again.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
	OutboxStatusRetrying   OutboxStatus = "retrying"
)

// IntegrationOutbox is the durable outbound event queue (C6 consumes it).
type IntegrationOutbox struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ConnectionID    uuid.UUID       `json:"connection_id" gorm:"type:uuid;not null;index"`
	EventType       OutboxEventType `json:"event_type" gorm:"type:varchar(20);not null"`
	Payload         datatypes.JSON  `json:"payload"`
	UnitID          uuid.UUID       `json:"unit_id" gorm:"type:uuid;not null;index"`
	Status          OutboxStatus    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts        int             `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts     int             `json:"max_attempts" gorm:"not null;default:5"`
	NextAttemptAt   time.Time       `json:"next_attempt_at" gorm:"index"`
	LastError       string          `json:"last_error" gorm:"size:1000"`
	ResponseData    datatypes.JSON  `json:"response_data"`
	CompletedAt     *time.Time      `json:"completed_at"`
	IdempotencyKey  *string         `json:"idempotency_key" gorm:"size:255;uniqueIndex"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (IntegrationOutbox) TableName() string { return "integration_outbox" }

func (o *IntegrationOutbox) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.NextAttemptAt.IsZero() {
		o.NextAttemptAt = time.Now().UTC()
	}
	return nil
}

// IsTerminal reports whether the row may no longer be mutated.
func (o *IntegrationOutbox) IsTerminal() bool {
	return o.Status == OutboxStatusCompleted || o.Status == OutboxStatusFailed
}

// IsClaimable reports whether the outbox worker's poll query should pick this row up.
func (o *IntegrationOutbox) IsClaimable(now time.Time) bool {
	if o.Status != OutboxStatusPending && o.Status != OutboxStatusRetrying {
		return false
	}
	if o.Attempts >= o.MaxAttempts {
		return false
	}
	return !o.NextAttemptAt.After(now)
}
