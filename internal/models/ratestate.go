package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RateBucket distinguishes the two independent token buckets a property holds.
type RateBucket string

const (
	RateBucketPrice RateBucket = "price"
	RateBucketAvail RateBucket = "avail"
)

const (
	rateTokenCapacity  = 10.0
	rateRefillPerMin   = 10.0
	basePauseSeconds   = 60.0
	maxPauseSeconds    = 600.0
)

// PropertyRateState is one row per external property id, tracking token
// buckets and 429-pause state. It is the only cross-worker shared mutable
// state beyond the outbox/webhook tables.
type PropertyRateState struct {
	ID                 uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ExternalPropertyID string     `json:"external_property_id" gorm:"size:100;not null;unique"`
	PriceTokens        float64    `json:"price_tokens" gorm:"not null;default:10"`
	PriceLastRefillAt  time.Time  `json:"price_last_refill_at"`
	AvailTokens        float64    `json:"avail_tokens" gorm:"not null;default:10"`
	AvailLastRefillAt  time.Time  `json:"avail_last_refill_at"`
	PausedUntil        *time.Time `json:"paused_until"`
	PauseCount         int        `json:"pause_count" gorm:"not null;default:0"`
	Last429At          *time.Time `json:"last_429_at"`
	TotalRequests      int64      `json:"total_requests" gorm:"not null;default:0"`
	Total429s          int64      `json:"total_429s" gorm:"not null;default:0"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (PropertyRateState) TableName() string { return "property_rate_states" }

func (s *PropertyRateState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	if s.PriceLastRefillAt.IsZero() {
		s.PriceLastRefillAt = now
	}
	if s.AvailLastRefillAt.IsZero() {
		s.AvailLastRefillAt = now
	}
	return nil
}

// Refill tops up the given bucket's tokens based on elapsed time since its
// last refill, capped at rateTokenCapacity. Mutates the receiver in place;
// the caller persists the change.
func (s *PropertyRateState) Refill(bucket RateBucket, now time.Time) {
	switch bucket {
	case RateBucketPrice:
		elapsed := now.Sub(s.PriceLastRefillAt).Seconds()
		if elapsed > 0 {
			s.PriceTokens = minF(rateTokenCapacity, s.PriceTokens+elapsed*(rateRefillPerMin/60.0))
			s.PriceLastRefillAt = now
		}
	case RateBucketAvail:
		elapsed := now.Sub(s.AvailLastRefillAt).Seconds()
		if elapsed > 0 {
			s.AvailTokens = minF(rateTokenCapacity, s.AvailTokens+elapsed*(rateRefillPerMin/60.0))
			s.AvailLastRefillAt = now
		}
	}
}

// TryConsume attempts to consume one token from the given bucket, returning
// true (and decrementing) if at least one token was available.
func (s *PropertyRateState) TryConsume(bucket RateBucket, now time.Time) bool {
	s.Refill(bucket, now)
	s.TotalRequests++
	switch bucket {
	case RateBucketPrice:
		if s.PriceTokens >= 1.0 {
			s.PriceTokens--
			return true
		}
	case RateBucketAvail:
		if s.AvailTokens >= 1.0 {
			s.AvailTokens--
			return true
		}
	}
	return false
}

// WaitTimeFor returns how long the caller must wait before a token becomes
// available in the given bucket.
func (s *PropertyRateState) WaitTimeFor(bucket RateBucket) time.Duration {
	var tokens float64
	switch bucket {
	case RateBucketPrice:
		tokens = s.PriceTokens
	case RateBucketAvail:
		tokens = s.AvailTokens
	}
	if tokens >= 1.0 {
		return 0
	}
	deficit := 1.0 - tokens
	seconds := deficit / (rateRefillPerMin / 60.0)
	return time.Duration(seconds * float64(time.Second))
}

// IsPaused reports whether the property is currently paused due to a 429.
func (s *PropertyRateState) IsPaused(now time.Time) bool {
	return s.PausedUntil != nil && s.PausedUntil.After(now)
}

// PauseOn429 increments the pause count and computes the new paused_until
// with exponential backoff capped at maxPauseSeconds.
func (s *PropertyRateState) PauseOn429(now time.Time) {
	s.PauseCount++
	s.Total429s++
	seconds := basePauseSeconds * pow2(s.PauseCount-1)
	if seconds > maxPauseSeconds {
		seconds = maxPauseSeconds
	}
	until := now.Add(time.Duration(seconds) * time.Second)
	s.PausedUntil = &until
	s.Last429At = &now
}

// ClearPause zeros paused_until once elapsed and decays pause_count by one
// (never straight to zero) so repeated flapping doesn't reset instantly.
func (s *PropertyRateState) ClearPause(now time.Time) {
	if s.PausedUntil != nil && !s.PausedUntil.After(now) {
		s.PausedUntil = nil
	}
	if s.PauseCount > 0 {
		s.PauseCount--
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func pow2(n int) float64 {
	if n < 0 {
		return 1
	}
	result := 1.0
	for i := 0; i < n; i++ {
		result *= 2
	}
	return result
}
