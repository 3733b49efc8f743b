// Package ratestate implements the per-property token-bucket rate limiter
// (C1): two independent buckets (price, avail) persisted in
// PropertyRateState so a restart never resets rate credits.
package ratestate

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"channel-integration-engine/internal/dbutil"
	"channel-integration-engine/internal/models"
)

// Store reads and mutates PropertyRateState rows under a row lock so
// consumption and pause are observed consistently across worker goroutines
// and processes.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// getOrCreate locks (or creates) the rate-state row for propertyID within tx.
func (s *Store) getOrCreate(tx *gorm.DB, propertyID string) (*models.PropertyRateState, error) {
	var state models.PropertyRateState
	err := dbutil.ForUpdate(tx.Where("external_property_id = ?", propertyID)).First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load rate state: %w", err)
	}

	now := time.Now().UTC()
	state = models.PropertyRateState{
		ExternalPropertyID: propertyID,
		PriceTokens:        10,
		PriceLastRefillAt:  now,
		AvailTokens:        10,
		AvailLastRefillAt:  now,
	}
	if err := tx.Create(&state).Error; err != nil {
		// another concurrent caller may have inserted first; re-read under lock
		if err2 := dbutil.ForUpdate(tx.Where("external_property_id = ?", propertyID)).First(&state).Error; err2 == nil {
			return &state, nil
		}
		return nil, fmt.Errorf("create rate state: %w", err)
	}
	return &state, nil
}

// TryConsume refills then attempts to consume one token from bucket for
// propertyID, persisting the result. Returns true if a token was consumed.
func (s *Store) TryConsume(propertyID string, bucket models.RateBucket) (bool, error) {
	var consumed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.getOrCreate(tx, propertyID)
		if err != nil {
			return err
		}
		consumed = state.TryConsume(bucket, time.Now().UTC())
		return tx.Save(state).Error
	})
	if err != nil {
		return false, err
	}
	return consumed, nil
}

// WaitTime reports how long the caller should wait before a token becomes
// available in bucket, without consuming a token (the refill it computes is
// saved).
func (s *Store) WaitTime(propertyID string, bucket models.RateBucket) (time.Duration, error) {
	var wait time.Duration
	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.getOrCreate(tx, propertyID)
		if err != nil {
			return err
		}
		state.Refill(bucket, time.Now().UTC())
		wait = state.WaitTimeFor(bucket)
		return tx.Save(state).Error
	})
	return wait, err
}

// IsPaused reports whether propertyID is currently paused for outbound calls.
func (s *Store) IsPaused(propertyID string) (bool, time.Time, error) {
	var paused bool
	var until time.Time
	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.getOrCreate(tx, propertyID)
		if err != nil {
			return err
		}
		paused = state.IsPaused(time.Now().UTC())
		if state.PausedUntil != nil {
			until = *state.PausedUntil
		}
		return nil
	})
	return paused, until, err
}

// PauseOn429 records a 429 response, applying exponential backoff.
func (s *Store) PauseOn429(propertyID string) (time.Time, error) {
	var until time.Time
	err := s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.getOrCreate(tx, propertyID)
		if err != nil {
			return err
		}
		state.PauseOn429(time.Now().UTC())
		until = *state.PausedUntil
		return tx.Save(state).Error
	})
	return until, err
}

// ClearPause is called after a successful call to decay the pause state.
func (s *Store) ClearPause(propertyID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		state, err := s.getOrCreate(tx, propertyID)
		if err != nil {
			return err
		}
		state.ClearPause(time.Now().UTC())
		return tx.Save(state).Error
	})
}

// Snapshot returns the current rate state for propertyID without consuming a
// token; used by the admin rate-state endpoint.
func (s *Store) Snapshot(propertyID string) (*models.PropertyRateState, error) {
	var state models.PropertyRateState
	err := s.db.Where("external_property_id = ?", propertyID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rate state: %w", err)
	}
	return &state, nil
}

// PausedProperties lists every property currently paused, for the health report.
func (s *Store) PausedProperties() ([]models.PropertyRateState, error) {
	var states []models.PropertyRateState
	now := time.Now().UTC()
	if err := s.db.Where("paused_until IS NOT NULL AND paused_until > ?", now).Find(&states).Error; err != nil {
		return nil, fmt.Errorf("list paused properties: %w", err)
	}
	return states, nil
}
