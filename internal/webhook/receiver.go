// Package webhook implements the inbound webhook pipeline: the HTTP-facing
// receiver (C7) that persists raw events fast, and the background processor
// (C8) that resolves mappings, dedupes, and upserts bookings.
package webhook

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"channel-integration-engine/internal/models"
)

// ErrBodyTooLarge is returned when a body exceeds the configured hard cap.
var ErrBodyTooLarge = errors.New("webhook body exceeds max size")

// ReceiveResult carries what the HTTP handler needs to build its response.
type ReceiveResult struct {
	Log              *models.WebhookEventLog
	AlreadyProcessed bool
}

// VerifySecretHeader compares the provided header value against want in
// constant time. An empty want means no secret is configured and any value
// (including none) is accepted.
func VerifySecretHeader(provided, want string) bool {
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(want)) == 1
}

// CanonicalHash returns the hex SHA-256 of body re-serialized with sorted
// object keys, so semantically identical payloads with reordered keys hash
// identically.
func CanonicalHash(body []byte) (string, error) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return "", fmt.Errorf("parse payload for hashing: %w", err)
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal canonical payload: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Receive validates and persists one inbound delivery. The secret check
// happens before this is called (the HTTP handler owns request parsing);
// Receive enforces maxBodyBytes and owns parsing, hashing, dedup, and the
// insert.
func Receive(db *gorm.DB, provider, endpointType string, body []byte, headers map[string]string, maxBodyBytes int) (*ReceiveResult, error) {
	if maxBodyBytes > 0 && len(body) > maxBodyBytes {
		return nil, ErrBodyTooLarge
	}

	var parsed inboundPayload
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse webhook payload: %w", err)
	}

	hash, err := CanonicalHash(body)
	if err != nil {
		return nil, err
	}
	eventType := deriveEventType(parsed)

	var eventID, externalID, revisionID *string
	if id := parsed.deliveryID(); id != "" {
		eventID = &id
	}
	if parsed.Data.ID != "" {
		id := parsed.Data.ID
		externalID = &id
	}
	if parsed.Data.RevisionID != "" {
		r := parsed.Data.RevisionID
		revisionID = &r
	}

	var existing models.WebhookEventLog

	if eventID != nil {
		processedStates := []models.WebhookEventStatus{models.WebhookEventProcessed, models.WebhookEventProcessing}
		err := db.Where("provider = ? AND event_id = ? AND status IN ?", provider, *eventID, processedStates).First(&existing).Error
		if err == nil {
			return &ReceiveResult{Log: &existing, AlreadyProcessed: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check existing event by id: %w", err)
		}
	}

	nonTerminal := []models.WebhookEventStatus{models.WebhookEventReceived, models.WebhookEventProcessing}
	err = db.Where("payload_hash = ? AND status IN ?", hash, nonTerminal).First(&existing).Error
	if err == nil {
		return &ReceiveResult{Log: &existing, AlreadyProcessed: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing event by hash: %w", err)
	}

	headerJSON, err := json.Marshal(redactHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("marshal request headers: %w", err)
	}

	log := &models.WebhookEventLog{
		Provider:       provider,
		EndpointType:   endpointType,
		PropertyID:     parsed.PropertyID,
		EventID:        eventID,
		EventType:      eventType,
		ExternalID:     externalID,
		RevisionID:     revisionID,
		PayloadJSON:    datatypes.JSON(body),
		PayloadHash:    hash,
		RequestHeaders: datatypes.JSON(headerJSON),
		Status:         models.WebhookEventReceived,
	}
	if err := db.Create(log).Error; err != nil {
		return nil, fmt.Errorf("persist webhook event: %w", err)
	}
	return &ReceiveResult{Log: log, AlreadyProcessed: false}, nil
}

var sensitiveHeaders = map[string]bool{
	"x-mnam-webhook-token": true,
	"authorization":        true,
	"cookie":               true,
}

func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveHeaders[lower(k)] {
			out[k] = "[redacted]"
			continue
		}
		out[k] = v
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
