package ratestate

import (
	"testing"
	"time"

	"channel-integration-engine/internal/models"
)

func TestTryConsumeDecrements(t *testing.T) {
	now := time.Now().UTC()
	state := &models.PropertyRateState{
		PriceTokens:       10,
		PriceLastRefillAt: now,
	}

	if ok := state.TryConsume(models.RateBucketPrice, now); !ok {
		t.Fatal("expected token to be available")
	}
	if state.PriceTokens != 9 {
		t.Fatalf("expected 9 tokens remaining, got %v", state.PriceTokens)
	}
}

func TestTryConsumeExhausted(t *testing.T) {
	now := time.Now().UTC()
	state := &models.PropertyRateState{
		PriceTokens:       0,
		PriceLastRefillAt: now,
	}

	if ok := state.TryConsume(models.RateBucketPrice, now); ok {
		t.Fatal("expected no token available")
	}
}

func TestRefillCapsAtCapacity(t *testing.T) {
	now := time.Now().UTC()
	state := &models.PropertyRateState{
		PriceTokens:       5,
		PriceLastRefillAt: now.Add(-10 * time.Minute),
	}
	state.Refill(models.RateBucketPrice, now)
	if state.PriceTokens != 10 {
		t.Fatalf("expected tokens capped at 10, got %v", state.PriceTokens)
	}
}

func TestRefillIsMonotone(t *testing.T) {
	now := time.Now().UTC()
	state := &models.PropertyRateState{
		PriceTokens:       3,
		PriceLastRefillAt: now,
	}
	before := state.PriceTokens
	state.TryConsume(models.RateBucketPrice, now.Add(1*time.Second))
	if state.PriceTokens < before-1 {
		t.Fatalf("token refill not monotone: before=%v after=%v", before, state.PriceTokens)
	}
}

func TestPauseOn429Doubling(t *testing.T) {
	now := time.Now().UTC()
	state := &models.PropertyRateState{}

	state.PauseOn429(now)
	first := state.PausedUntil.Sub(now)
	if first != 60*time.Second {
		t.Fatalf("expected first pause of 60s, got %v", first)
	}

	state.PauseOn429(now)
	second := state.PausedUntil.Sub(now)
	if second != 120*time.Second {
		t.Fatalf("expected second pause of 120s, got %v", second)
	}
}

func TestPauseOn429CapsAt600(t *testing.T) {
	now := time.Now().UTC()
	state := &models.PropertyRateState{PauseCount: 10}

	state.PauseOn429(now)
	wait := state.PausedUntil.Sub(now)
	if wait != 600*time.Second {
		t.Fatalf("expected pause capped at 600s, got %v", wait)
	}
}

func TestIsPausedAfterExpiry(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-1 * time.Second)
	state := &models.PropertyRateState{PausedUntil: &past}

	if state.IsPaused(now) {
		t.Fatal("expected pause to have expired")
	}
}

func TestClearPauseDecaysCount(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-1 * time.Second)
	state := &models.PropertyRateState{PausedUntil: &past, PauseCount: 3}

	state.ClearPause(now)
	if state.PausedUntil != nil {
		t.Fatal("expected paused_until to be cleared")
	}
	if state.PauseCount != 2 {
		t.Fatalf("expected pause count to decay by one, got %d", state.PauseCount)
	}
}
