package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"channel-integration-engine/internal/batch"
	"channel-integration-engine/internal/models"
)

// PushRates sends one compressed rate batch to /restrictions. Bucket: price.
func (c *Client) PushRates(ctx context.Context, conn *models.Connection, b batch.RateBatch) error {
	_, err := c.Do(ctx, conn, "POST", "/restrictions", b, models.RateBucketPrice)
	if err != nil {
		return fmt.Errorf("push rates: %w", err)
	}
	return nil
}

// PushAvailability sends one compressed availability batch to /availability. Bucket: avail.
func (c *Client) PushAvailability(ctx context.Context, conn *models.Connection, b batch.AvailabilityBatch) error {
	_, err := c.Do(ctx, conn, "POST", "/availability", b, models.RateBucketAvail)
	if err != nil {
		return fmt.Errorf("push availability: %w", err)
	}
	return nil
}

// GetProperty fetches one property's raw representation from the Channel.
func (c *Client) GetProperty(ctx context.Context, conn *models.Connection, externalPropertyID string) (json.RawMessage, error) {
	resp, err := c.Do(ctx, conn, "GET", "/properties/"+externalPropertyID, nil, models.RateBucketPrice)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	return resp.Body, nil
}

// GetBookings fetches the raw booking list for a property.
func (c *Client) GetBookings(ctx context.Context, conn *models.Connection, externalPropertyID string) (json.RawMessage, error) {
	resp, err := c.Do(ctx, conn, "GET", "/properties/"+externalPropertyID+"/bookings", nil, models.RateBucketAvail)
	if err != nil {
		return nil, fmt.Errorf("get bookings: %w", err)
	}
	return resp.Body, nil
}

// ConfirmBooking acknowledges a booking on the Channel side.
func (c *Client) ConfirmBooking(ctx context.Context, conn *models.Connection, externalBookingID string) error {
	_, err := c.Do(ctx, conn, "POST", "/bookings/"+externalBookingID+"/confirm", nil, models.RateBucketAvail)
	if err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	return nil
}

// CancelBooking notifies the Channel that a booking was cancelled locally.
func (c *Client) CancelBooking(ctx context.Context, conn *models.Connection, externalBookingID string) error {
	_, err := c.Do(ctx, conn, "POST", "/bookings/"+externalBookingID+"/cancel", nil, models.RateBucketAvail)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	return nil
}
