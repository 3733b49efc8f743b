// Package batch groups outbound rate/availability values by property,
// compresses consecutive identical-value dates into ranges, and splits the
// result into chunks under a configured payload size cap (C5).
package batch

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DateValue is one resolved (date, value) tuple for a single external id
// (rate_plan_id or room_type_id) before compression.
type DateValue struct {
	ExternalID string
	Date       time.Time
	Value      string
}

// DateRange is a compressed run of consecutive dates sharing the same value.
type DateRange struct {
	ExternalID string
	DateFrom   time.Time
	DateTo     time.Time
	Value      string
}

// Compress sorts values by (external id, date) and merges consecutive dates
// with identical values into ranges. Any missing day, or a value change,
// breaks the run. Deterministic given the same input.
func Compress(values []DateValue) []DateRange {
	sorted := make([]DateValue, len(values))
	copy(sorted, values)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ExternalID != sorted[j].ExternalID {
			return sorted[i].ExternalID < sorted[j].ExternalID
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var ranges []DateRange
	for _, v := range sorted {
		if n := len(ranges); n > 0 {
			last := &ranges[n-1]
			sameRun := last.ExternalID == v.ExternalID &&
				last.Value == v.Value &&
				last.DateTo.AddDate(0, 0, 1).Equal(v.Date)
			if sameRun {
				last.DateTo = v.Date
				continue
			}
		}
		ranges = append(ranges, DateRange{
			ExternalID: v.ExternalID,
			DateFrom:   v.Date,
			DateTo:     v.Date,
			Value:      v.Value,
		})
	}
	return ranges
}

// Expand reverses Compress, producing one DateValue per day in each range.
// Round-trip law: Expand(Compress(vs)) reproduces vs (after sort, dedup).
func Expand(ranges []DateRange) []DateValue {
	var out []DateValue
	for _, r := range ranges {
		for d := r.DateFrom; !d.After(r.DateTo); d = d.AddDate(0, 0, 1) {
			out = append(out, DateValue{ExternalID: r.ExternalID, Date: d, Value: r.Value})
		}
	}
	return out
}

// Split divides entries into chunks whose JSON-serialized size (via encode)
// does not exceed maxBytes. A single entry larger than maxBytes still forms
// its own chunk (never silently dropped).
func Split[T any](entries []T, maxBytes int, encode func([]T) ([]byte, error)) ([][]T, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	var chunks [][]T
	var current []T

	for _, e := range entries {
		candidate := append(append([]T{}, current...), e)
		size, err := jsonSize(candidate, encode)
		if err != nil {
			return nil, fmt.Errorf("estimate payload size: %w", err)
		}
		if size > maxBytes && len(current) > 0 {
			chunks = append(chunks, current)
			current = []T{e}
			continue
		}
		current = candidate
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

func jsonSize[T any](entries []T, encode func([]T) ([]byte, error)) (int, error) {
	if encode != nil {
		b, err := encode(entries)
		if err != nil {
			return 0, err
		}
		return len(b), nil
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
