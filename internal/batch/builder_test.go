package batch

import (
	"reflect"
	"testing"
	"time"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestCompressMergesConsecutiveDates(t *testing.T) {
	values := []DateValue{
		{ExternalID: "RT1", Date: d(2030, 5, 1), Value: "1"},
		{ExternalID: "RT1", Date: d(2030, 5, 2), Value: "1"},
		{ExternalID: "RT1", Date: d(2030, 5, 3), Value: "1"},
		{ExternalID: "RT1", Date: d(2030, 5, 4), Value: "0"},
	}
	ranges := Compress(values)
	if len(ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %d: %+v", len(ranges), ranges)
	}
	if !ranges[0].DateFrom.Equal(d(2030, 5, 1)) || !ranges[0].DateTo.Equal(d(2030, 5, 3)) {
		t.Fatalf("unexpected first range: %+v", ranges[0])
	}
}

func TestCompressBreaksOnGap(t *testing.T) {
	values := []DateValue{
		{ExternalID: "RT1", Date: d(2030, 5, 1), Value: "1"},
		{ExternalID: "RT1", Date: d(2030, 5, 3), Value: "1"}, // gap of one day
	}
	ranges := Compress(values)
	if len(ranges) != 2 {
		t.Fatalf("expected gap to break the range, got %+v", ranges)
	}
}

func TestExpandCompressRoundTrip(t *testing.T) {
	values := []DateValue{
		{ExternalID: "RT1", Date: d(2030, 5, 1), Value: "1"},
		{ExternalID: "RT1", Date: d(2030, 5, 2), Value: "1"},
		{ExternalID: "RT2", Date: d(2030, 5, 1), Value: "0"},
	}
	got := Expand(Compress(values))
	if !reflect.DeepEqual(sortedCopy(got), sortedCopy(values)) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, values)
	}
}

func sortedCopy(vs []DateValue) []DateValue {
	out := make([]DateValue, len(vs))
	copy(out, vs)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].ExternalID < out[i].ExternalID ||
				(out[j].ExternalID == out[i].ExternalID && out[j].Date.Before(out[i].Date)) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func TestSplitRespectsMaxBytes(t *testing.T) {
	var values []DateValue
	for i := 1; i <= 50; i++ {
		values = append(values, DateValue{ExternalID: "RT1", Date: d(2030, 1, i), Value: "100.00"})
	}
	batches, err := BuildRateBatches("P1", values, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) < 2 {
		t.Fatalf("expected multiple batches under a small cap, got %d", len(batches))
	}
	total := 0
	for _, b := range batches {
		total += len(b.Values)
	}
	if total != 50 {
		t.Fatalf("expected all 50 entries preserved across batches, got %d", total)
	}
}

func TestBuildRateBatchesFormat(t *testing.T) {
	values := []DateValue{{ExternalID: "RP1", Date: d(2030, 5, 1), Value: "100.00"}}
	batches, err := BuildRateBatches("P1", values, 10_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 1 || len(batches[0].Values) != 1 {
		t.Fatalf("expected single batch with single value, got %+v", batches)
	}
	v := batches[0].Values[0]
	if v.PropertyID != "P1" || v.RatePlanID != "RP1" || v.Date != "2030-05-01" || v.Rate != "100.00" {
		t.Fatalf("unexpected rate value: %+v", v)
	}
}
