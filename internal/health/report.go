// Package health implements the read-only health report and the
// IntegrationAudit writer (C11).
package health

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"channel-integration-engine/internal/models"
	"channel-integration-engine/internal/ratestate"
)

// Status is the aggregate health verdict.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Report is a point-in-time snapshot assembled purely from reads.
type Report struct {
	Status               Status    `json:"status"`
	ChannelEnabled       bool      `json:"channel_enabled"`
	ActiveConnections    int       `json:"active_connections"`
	ErroredConnections   int       `json:"errored_connections"`
	LastAPICallSuccess   *bool     `json:"last_api_call_success"`
	OutboxPending        int64     `json:"outbox_pending"`
	OutboxRetrying       int64     `json:"outbox_retrying"`
	OutboxFailed         int64     `json:"outbox_failed"`
	WebhookReceived      int64     `json:"webhook_received"`
	WebhookFailed        int64     `json:"webhook_failed"`
	PausedPropertyCount  int       `json:"paused_property_count"`
	PausedProperties     []string  `json:"paused_properties,omitempty"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// Reporter assembles a Report from the database.
type Reporter struct {
	db         *gorm.DB
	rateStates *ratestate.Store
	enabled    bool
}

func NewReporter(db *gorm.DB, rateStates *ratestate.Store, channelEnabled bool) *Reporter {
	return &Reporter{db: db, rateStates: rateStates, enabled: channelEnabled}
}

// Generate assembles the current Report. Thresholds: unhealthy if the
// channel is enabled but every connection is errored, or the outbox-failed
// count exceeds 50; degraded if any connection is errored, any property is
// paused, or the last recorded API call failed; healthy otherwise.
func (r *Reporter) Generate() (*Report, error) {
	report := &Report{ChannelEnabled: r.enabled, GeneratedAt: time.Now().UTC()}

	var activeConnections, erroredConnections int64
	if err := r.db.Model(&models.Connection{}).Where("status = ?", models.ConnectionStatusActive).Count(&activeConnections).Error; err != nil {
		return nil, fmt.Errorf("count active connections: %w", err)
	}
	report.ActiveConnections = int(activeConnections)

	if err := r.db.Model(&models.Connection{}).Where("status = ?", models.ConnectionStatusError).Count(&erroredConnections).Error; err != nil {
		return nil, fmt.Errorf("count errored connections: %w", err)
	}
	report.ErroredConnections = int(erroredConnections)

	var lastLog models.IntegrationLog
	err := r.db.Order("created_at DESC").First(&lastLog).Error
	switch {
	case err == nil:
		success := lastLog.Success
		report.LastAPICallSuccess = &success
	case err == gorm.ErrRecordNotFound:
		// no calls made yet; leave nil
	default:
		return nil, fmt.Errorf("load last integration log: %w", err)
	}

	if err := r.db.Model(&models.IntegrationOutbox{}).Where("status = ?", models.OutboxStatusPending).Count(&report.OutboxPending).Error; err != nil {
		return nil, fmt.Errorf("count pending outbox rows: %w", err)
	}
	if err := r.db.Model(&models.IntegrationOutbox{}).Where("status = ?", models.OutboxStatusRetrying).Count(&report.OutboxRetrying).Error; err != nil {
		return nil, fmt.Errorf("count retrying outbox rows: %w", err)
	}
	if err := r.db.Model(&models.IntegrationOutbox{}).Where("status = ?", models.OutboxStatusFailed).Count(&report.OutboxFailed).Error; err != nil {
		return nil, fmt.Errorf("count failed outbox rows: %w", err)
	}

	if err := r.db.Model(&models.WebhookEventLog{}).Where("status = ?", models.WebhookEventReceived).Count(&report.WebhookReceived).Error; err != nil {
		return nil, fmt.Errorf("count received webhook rows: %w", err)
	}
	if err := r.db.Model(&models.WebhookEventLog{}).Where("status = ?", models.WebhookEventFailed).Count(&report.WebhookFailed).Error; err != nil {
		return nil, fmt.Errorf("count failed webhook rows: %w", err)
	}

	paused, err := r.rateStates.PausedProperties()
	if err != nil {
		return nil, fmt.Errorf("list paused properties: %w", err)
	}
	report.PausedPropertyCount = len(paused)
	for _, p := range paused {
		report.PausedProperties = append(report.PausedProperties, p.ExternalPropertyID)
	}

	report.Status = classify(report)
	return report, nil
}

func classify(r *Report) Status {
	if r.ChannelEnabled && r.ErroredConnections > 0 && r.ActiveConnections == 0 {
		return StatusUnhealthy
	}
	if r.OutboxFailed > 50 {
		return StatusUnhealthy
	}
	if r.ErroredConnections > 0 || r.PausedPropertyCount > 0 {
		return StatusDegraded
	}
	if r.LastAPICallSuccess != nil && !*r.LastAPICallSuccess {
		return StatusDegraded
	}
	return StatusHealthy
}

// RecordAudit writes one IntegrationAudit row for a completed sync attempt.
// payloadHash is computed here so callers never need to retain the body
// past the call that produced it.
func RecordAudit(db *gorm.DB, connectionID uuid.UUID, direction models.AuditDirection, entityType models.AuditEntityType, status string, payload interface{}, recordsCount int, dateFrom, dateTo *time.Time, durationMs, retryCount int, correlationID string) error {
	hash, err := hashPayload(payload)
	if err != nil {
		return fmt.Errorf("hash audit payload: %w", err)
	}

	audit := &models.IntegrationAudit{
		ConnectionID:  connectionID,
		Direction:     direction,
		EntityType:    entityType,
		Status:        status,
		PayloadHash:   hash,
		RecordsCount:  recordsCount,
		DateFrom:      dateFrom,
		DateTo:        dateTo,
		DurationMs:    durationMs,
		RetryCount:    retryCount,
		CorrelationID: correlationID,
	}
	if err := db.Create(audit).Error; err != nil {
		return fmt.Errorf("persist integration audit: %w", err)
	}
	return nil
}

func hashPayload(payload interface{}) (string, error) {
	if payload == nil {
		return "", nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
