// Package channel implements the outbound HTTP client to the channel-manager
// provider (C2): fixed-header auth, rate-limit gating via the ratestate
// store, 429/5xx retry with backoff, stable error mapping, and a sanitized
// IntegrationLog row per attempt.
package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"channel-integration-engine/internal/models"
	"channel-integration-engine/internal/ratestate"
)

const (
	maxAttemptsPer429 = 3
	maxAttemptsPer5xx = 3
	base5xxBackoff    = 1 * time.Second
	cap5xxBackoff     = 30 * time.Second
	hardRateLimitWait = 60 * time.Second
)

// Client talks to the channel provider on behalf of one Connection at a time.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateStore  *ratestate.Store
	db         *gorm.DB
}

func New(baseURL string, rateStore *ratestate.Store, db *gorm.DB) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateStore: rateStore,
		db:        db,
	}
}

// Response is a successful call's parsed body.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Do issues one logical call against the channel provider on behalf of
// conn, consuming the bucket's rate-limit token and retrying per the
// provider's documented behavior for 429 and 5xx responses.
func (c *Client) Do(ctx context.Context, conn *models.Connection, method, endpoint string, payload interface{}, bucket models.RateBucket) (*Response, error) {
	correlationID := uuid.NewString()

	if paused, until, err := c.rateStore.IsPaused(conn.ExternalPropertyID); err != nil {
		return nil, fmt.Errorf("check pause state: %w", err)
	} else if paused {
		return nil, &Error{
			Code:       "rate_limited",
			Message:    fmt.Sprintf("property paused until %s", until.Format(time.RFC3339)),
			HTTPStatus: 0,
			Retryable:  true,
		}
	}

	if err := c.acquireToken(conn.ExternalPropertyID, bucket); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		resp, status, body, callErr := c.doHTTP(ctx, conn.APIKey, method, endpoint, payload, correlationID)
		duration := resp.duration

		c.logAttempt(conn, method, endpoint, payload, status, body, callErr, duration, correlationID)

		if callErr != nil {
			lastErr = c.classifyTransportError(ctx, callErr)
			if attempt >= maxAttemptsPer5xx {
				return nil, lastErr
			}
			if !sleepCtx(ctx, backoffFor(attempt)) {
				return nil, lastErr
			}
			continue
		}

		if status >= 200 && status < 300 {
			if err := c.rateStore.ClearPause(conn.ExternalPropertyID); err != nil {
				slog.Warn("failed to clear pause state", "error", err)
			}
			return &Response{StatusCode: status, Body: body}, nil
		}

		if status == 429 {
			until, err := c.rateStore.PauseOn429(conn.ExternalPropertyID)
			if err != nil {
				slog.Warn("failed to record 429 pause", "error", err)
			}
			lastErr = errorForStatus(status, string(body))
			if attempt >= maxAttemptsPer429 {
				return nil, lastErr
			}
			wait := time.Until(until)
			if wait > hardRateLimitWait {
				wait = hardRateLimitWait
			}
			if !sleepCtx(ctx, wait) {
				return nil, lastErr
			}
			continue
		}

		if status >= 500 {
			lastErr = errorForStatus(status, string(body))
			if attempt >= maxAttemptsPer5xx {
				return nil, lastErr
			}
			if !sleepCtx(ctx, backoffFor(attempt)) {
				return nil, lastErr
			}
			continue
		}

		// Non-retryable 4xx.
		return nil, errorForStatus(status, string(body))
	}
}

// acquireToken consumes one token from bucket, waiting once on refill up to
// a hard cap before giving up with a rate_limited error.
func (c *Client) acquireToken(propertyID string, bucket models.RateBucket) error {
	ok, err := c.rateStore.TryConsume(propertyID, bucket)
	if err != nil {
		return fmt.Errorf("consume rate token: %w", err)
	}
	if ok {
		return nil
	}

	wait, err := c.rateStore.WaitTime(propertyID, bucket)
	if err != nil {
		return fmt.Errorf("compute rate wait: %w", err)
	}
	if wait > hardRateLimitWait {
		wait = hardRateLimitWait
	}
	time.Sleep(wait)

	ok, err = c.rateStore.TryConsume(propertyID, bucket)
	if err != nil {
		return fmt.Errorf("consume rate token: %w", err)
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

type httpResult struct {
	duration time.Duration
}

func (c *Client) doHTTP(ctx context.Context, apiKey, method, endpoint string, payload interface{}, correlationID string) (httpResult, int, json.RawMessage, error) {
	start := time.Now()

	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return httpResult{time.Since(start)}, 0, nil, fmt.Errorf("marshal request payload: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return httpResult{time.Since(start)}, 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", correlationID)
	// The provider authenticates via a fixed header carrying the raw key,
	// never as a bearer token.
	req.Header.Set("user-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return httpResult{time.Since(start)}, 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return httpResult{time.Since(start)}, resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}

	return httpResult{time.Since(start)}, resp.StatusCode, json.RawMessage(raw), nil
}

func (c *Client) classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return NewTimeoutError(ctx.Err())
	}
	return NewNetworkError(err)
}

func backoffFor(attempt int) time.Duration {
	d := base5xxBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap5xxBackoff {
			return cap5xxBackoff
		}
	}
	return d
}

// sleepCtx sleeps for d or until ctx is cancelled, returning false if the
// context was cancelled first (callers must abandon the retry loop then).
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) logAttempt(conn *models.Connection, method, endpoint string, payload interface{}, status int, body json.RawMessage, callErr error, duration time.Duration, correlationID string) {
	entry := models.IntegrationLog{
		ConnectionID:   conn.ID,
		LogType:        "api_call",
		Direction:      "outbound",
		RequestMethod:  method,
		RequestURL:     endpoint,
		RequestPayload: datatypes.JSON(sanitizePayload(payload)),
		ResponseStatus: status,
		Success:        callErr == nil && status >= 200 && status < 300,
		DurationMs:     int(duration.Milliseconds()),
		CorrelationID:  correlationID,
	}
	if callErr != nil {
		entry.ErrorMessage = truncate(callErr.Error(), 1000)
	}
	if len(body) > 0 {
		entry.ResponseBody = datatypes.JSON(body)
	}

	if err := c.db.Create(&entry).Error; err != nil {
		slog.Warn("failed to write integration log", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
