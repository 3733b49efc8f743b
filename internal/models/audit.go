package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IntegrationLog is one row per outbound HTTP call made by the Channel
// client (C2), with sanitized payload for audit.
type IntegrationLog struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ConnectionID    uuid.UUID      `json:"connection_id" gorm:"type:uuid;not null;index"`
	LogType         string         `json:"log_type" gorm:"size:30;not null;default:'api_call'"`
	Direction       string         `json:"direction" gorm:"size:10;not null;default:'outbound'"`
	EventType       string         `json:"event_type" gorm:"size:50"`
	RequestMethod   string         `json:"request_method" gorm:"size:10"`
	RequestURL      string         `json:"request_url" gorm:"size:500"`
	RequestPayload  datatypes.JSON `json:"request_payload"`
	ResponseStatus  int            `json:"response_status"`
	ResponseBody    datatypes.JSON `json:"response_body"`
	Success         bool           `json:"success"`
	ErrorMessage    string         `json:"error_message" gorm:"size:1000"`
	DurationMs      int            `json:"duration_ms"`
	CorrelationID   string         `json:"correlation_id" gorm:"size:100;index"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (IntegrationLog) TableName() string { return "integration_logs" }

func (l *IntegrationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// AuditDirection records which way a synced entity moved.
type AuditDirection string

const (
	AuditDirectionOutbound AuditDirection = "outbound"
	AuditDirectionInbound  AuditDirection = "inbound"
)

// AuditEntityType enumerates the kinds of synced entities audited by C11.
type AuditEntityType string

const (
	AuditEntityRate         AuditEntityType = "rate"
	AuditEntityAvailability AuditEntityType = "availability"
	AuditEntityRestrictions AuditEntityType = "restrictions"
	AuditEntityBooking      AuditEntityType = "booking"
	AuditEntityFullSync     AuditEntityType = "full_sync"
)

// IntegrationAudit is one sync-attempt audit row, written by
// health.RecordAudit; payload_hash lets an operator verify what was sent
// without retaining the body. The outbox worker and the webhook processor
// do not call RecordAudit, so sync attempts do not produce rows on their own.
type IntegrationAudit struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ConnectionID  uuid.UUID       `json:"connection_id" gorm:"type:uuid;not null;index"`
	Direction     AuditDirection  `json:"direction" gorm:"type:varchar(10);not null"`
	EntityType    AuditEntityType `json:"entity_type" gorm:"type:varchar(20);not null"`
	Status        string          `json:"status" gorm:"size:20;not null"`
	PayloadHash   string          `json:"payload_hash" gorm:"size:64"`
	RecordsCount  int             `json:"records_count"`
	DateFrom      *time.Time      `json:"date_from" gorm:"type:date"`
	DateTo        *time.Time      `json:"date_to" gorm:"type:date"`
	DurationMs    int             `json:"duration_ms"`
	RetryCount    int             `json:"retry_count"`
	CorrelationID string          `json:"correlation_id" gorm:"size:100;index"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (IntegrationAudit) TableName() string { return "integration_audits" }

func (a *IntegrationAudit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// AlertType classifies an operational alert raised from a Channel health webhook.
type AlertType string

const (
	AlertTypeUnmappedRoom AlertType = "unmapped_room"
	AlertTypeUnmappedRate AlertType = "unmapped_rate"
	AlertTypeSyncError    AlertType = "sync_error"
	AlertTypeRateError    AlertType = "rate_error"
	AlertTypeNonAcked     AlertType = "non_acked"
	AlertTypeChannelError AlertType = "channel_error"
)

// AlertSeverity ranks an IntegrationAlert for operator triage.
type AlertSeverity string

const (
	AlertSeverityLow    AlertSeverity = "low"
	AlertSeverityMedium AlertSeverity = "medium"
	AlertSeverityHigh   AlertSeverity = "high"
)

// AlertStatus tracks whether an alert has been handled.
type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)

// IntegrationAlert is raised when the Channel reports a health/error event
// via webhook (unmapped room/rate, sync error, etc). Supplemented feature:
// see SPEC_FULL.md §8.
type IntegrationAlert struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Provider    string         `json:"provider" gorm:"size:50;not null;default:'channex'"`
	PropertyID  string         `json:"property_id" gorm:"size:100;index"`
	AlertType   AlertType      `json:"alert_type" gorm:"type:varchar(30);not null"`
	Severity    AlertSeverity  `json:"severity" gorm:"type:varchar(10);not null"`
	Message     string         `json:"message" gorm:"size:1000"`
	PayloadRaw  datatypes.JSON `json:"payload_raw"`
	Status      AlertStatus    `json:"status" gorm:"type:varchar(10);not null;default:'open';index"`
	CreatedAt   time.Time      `json:"created_at"`
	ResolvedAt  *time.Time     `json:"resolved_at"`
}

func (IntegrationAlert) TableName() string { return "integration_alerts" }

func (a *IntegrationAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
