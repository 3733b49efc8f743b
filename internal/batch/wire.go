package batch

import (
	"encoding/json"
	"fmt"
)

// RateValue is one entry of the /restrictions wire payload. Rate is always a
// decimal string with two fractional digits.
type RateValue struct {
	PropertyID string `json:"property_id"`
	RatePlanID string `json:"rate_plan_id"`
	Date       string `json:"date"`
	Rate       string `json:"rate"`
}

// AvailValue is one entry of the /availability wire payload.
type AvailValue struct {
	PropertyID   string `json:"property_id"`
	RoomTypeID   string `json:"room_type_id"`
	Date         string `json:"date"`
	Availability int    `json:"availability"`
}

// RateBatch is a ready-to-send chunk of rate values for /restrictions.
type RateBatch struct {
	Values []RateValue `json:"values"`
}

// AvailabilityBatch is a ready-to-send chunk of availability values for /availability.
type AvailabilityBatch struct {
	Values []AvailValue `json:"values"`
}

const dateLayout = "2006-01-02"

// BuildRateBatches compresses and splits rate tuples for one property into
// one or more wire-ready batches, each serializing to at most maxBytes.
func BuildRateBatches(propertyID string, values []DateValue, maxBytes int) ([]RateBatch, error) {
	ranges := Compress(values)
	expanded := Expand(ranges)

	entries := make([]RateValue, 0, len(expanded))
	for _, v := range expanded {
		entries = append(entries, RateValue{
			PropertyID: propertyID,
			RatePlanID: v.ExternalID,
			Date:       v.Date.Format(dateLayout),
			Rate:       v.Value,
		})
	}

	chunks, err := Split(entries, maxBytes, func(es []RateValue) ([]byte, error) {
		return json.Marshal(RateBatch{Values: es})
	})
	if err != nil {
		return nil, fmt.Errorf("split rate batch: %w", err)
	}

	batches := make([]RateBatch, 0, len(chunks))
	for _, c := range chunks {
		batches = append(batches, RateBatch{Values: c})
	}
	return batches, nil
}

// BuildAvailabilityBatches compresses and splits availability tuples for one
// property into one or more wire-ready batches.
func BuildAvailabilityBatches(propertyID string, values []DateValue, maxBytes int) ([]AvailabilityBatch, error) {
	ranges := Compress(values)
	expanded := Expand(ranges)

	entries := make([]AvailValue, 0, len(expanded))
	for _, v := range expanded {
		availability := 0
		if v.Value == "1" {
			availability = 1
		}
		entries = append(entries, AvailValue{
			PropertyID:   propertyID,
			RoomTypeID:   v.ExternalID,
			Date:         v.Date.Format(dateLayout),
			Availability: availability,
		})
	}

	chunks, err := Split(entries, maxBytes, func(es []AvailValue) ([]byte, error) {
		return json.Marshal(AvailabilityBatch{Values: es})
	})
	if err != nil {
		return nil, fmt.Errorf("split availability batch: %w", err)
	}

	batches := make([]AvailabilityBatch, 0, len(chunks))
	for _, c := range chunks {
		batches = append(batches, AvailabilityBatch{Values: c})
	}
	return batches, nil
}
