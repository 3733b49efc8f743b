// Package scheduler implements the fixed local-time price re-sync ticks
// (C10): at 00:00, 16:00, 21:00, and 23:00 in the channel's local timezone,
// enqueue a price_update for every actively mapped unit.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"

	"channel-integration-engine/internal/models"
	"channel-integration-engine/internal/outbox"
)

var tickHours = []int{0, 16, 21, 23}

// Scheduler fires Tick at each configured local hour.
type Scheduler struct {
	db       *gorm.DB
	location *time.Location
	now      func() time.Time
}

func New(db *gorm.DB, timezone string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone %q: %w", timezone, err)
	}
	return &Scheduler{db: db, location: loc, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Run blocks until ctx is cancelled, firing Tick at each configured local hour.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.nextTick()
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.Tick(next); err != nil {
				slog.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// nextTick returns the next configured local-time instant strictly after now.
func (s *Scheduler) nextTick() time.Time {
	now := s.now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)

	candidates := make([]time.Time, 0, len(tickHours)*2)
	for _, h := range tickHours {
		candidates = append(candidates, today.Add(time.Duration(h)*time.Hour))
		candidates = append(candidates, today.AddDate(0, 0, 1).Add(time.Duration(h)*time.Hour))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Before(candidates[j]) })

	for _, c := range candidates {
		if c.After(now) {
			return c
		}
	}
	return today.AddDate(0, 0, 2)
}

// Tick enqueues a price_update for every active connection's active
// rate-plan mapping, keyed by an hour-granularity idempotency key so
// duplicate ticks or worker restarts never create duplicate work.
func (s *Scheduler) Tick(at time.Time) error {
	var connections []models.Connection
	if err := s.db.Where("status = ?", models.ConnectionStatusActive).Find(&connections).Error; err != nil {
		return fmt.Errorf("list active connections: %w", err)
	}

	stamp := at.In(s.location).Format("2006010215")

	for _, conn := range connections {
		var mappings []models.ExternalMapping
		if err := s.db.Where("connection_id = ? AND is_active = ? AND external_rate_plan_id != ?", conn.ID, true, "").
			Find(&mappings).Error; err != nil {
			return fmt.Errorf("list mappings for connection %s: %w", conn.ID, err)
		}
		for _, m := range mappings {
			key := fmt.Sprintf("scheduled_price_%s_%s", m.UnitID, stamp)
			if err := outbox.Enqueue(s.db, &models.IntegrationOutbox{
				ConnectionID:   conn.ID,
				EventType:      models.OutboxEventPriceUpdate,
				UnitID:         m.UnitID,
				IdempotencyKey: &key,
			}); err != nil {
				return fmt.Errorf("enqueue scheduled price update for unit %s: %w", m.UnitID, err)
			}
		}
	}
	return nil
}
