package webhook

import (
	"testing"

	"github.com/shopspring/decimal"

	"channel-integration-engine/internal/models"
)

func TestDeriveEventTypeJoinedForm(t *testing.T) {
	p := inboundPayload{Event: "booking.new"}
	if got := deriveEventType(p); got != "booking.new" {
		t.Errorf("got %q, want booking.new", got)
	}
}

func TestDeriveEventTypeSplitForm(t *testing.T) {
	p := inboundPayload{Event: "booking", EventType: "new"}
	if got := deriveEventType(p); got != "booking.new" {
		t.Errorf("got %q, want booking.new", got)
	}
}

func TestDeriveEventTypeUnderscoreForm(t *testing.T) {
	p := inboundPayload{Event: "booking_created"}
	if got := deriveEventType(p); got != "booking_created" {
		t.Errorf("got %q, want booking_created", got)
	}
}

func TestClassifyDispatchCoversAllAliases(t *testing.T) {
	cases := map[string]dispatchKind{
		"booking.new":        dispatchNew,
		"booking_created":    dispatchNew,
		"booking.modified":   dispatchModified,
		"booking_updated":    dispatchModified,
		"booking.cancelled":  dispatchCancelled,
		"booking_cancelled":  dispatchCancelled,
		"something_else":     dispatchUnknown,
	}
	for eventType, want := range cases {
		if got := classifyDispatch(eventType); got != want {
			t.Errorf("classifyDispatch(%q) = %v, want %v", eventType, got, want)
		}
	}
}

func TestVerifySecretHeaderAcceptsWhenUnconfigured(t *testing.T) {
	if !VerifySecretHeader("anything", "") {
		t.Fatal("expected acceptance when no secret configured")
	}
}

func TestVerifySecretHeaderRejectsMismatch(t *testing.T) {
	if VerifySecretHeader("wrong", "correct-secret") {
		t.Fatal("expected rejection on mismatch")
	}
	if !VerifySecretHeader("correct-secret", "correct-secret") {
		t.Fatal("expected acceptance on match")
	}
}

func TestCanonicalHashStableAcrossKeyOrder(t *testing.T) {
	a := []byte(`{"b":1,"a":2}`)
	b := []byte(`{"a":2,"b":1}`)
	hashA, err := CanonicalHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hashB, err := CanonicalHash(b)
	if err != nil {
		t.Fatal(err)
	}
	if hashA != hashB {
		t.Fatalf("expected identical hashes, got %s vs %s", hashA, hashB)
	}
}

func TestCanonicalHashDiffersOnContentChange(t *testing.T) {
	a, _ := CanonicalHash([]byte(`{"a":1}`))
	b, _ := CanonicalHash([]byte(`{"a":2}`))
	if a == b {
		t.Fatal("expected different hashes for different content")
	}
}

func TestParseBookingFieldsRejectsMissingDates(t *testing.T) {
	_, _, _, err := parseBookingFields(inboundData{})
	var ve *validationError
	if err == nil {
		t.Fatal("expected error for missing dates")
	}
	if !asValidationError(err, &ve) || ve.reason != models.ReasonMissingDates {
		t.Fatalf("expected missing_dates reason, got %v", err)
	}
}

func TestParseBookingFieldsRejectsBadPrice(t *testing.T) {
	_, _, _, err := parseBookingFields(inboundData{
		ArrivalDate:   "2030-05-10",
		DepartureDate: "2030-05-12",
		TotalPrice:    "not-a-number",
	})
	var ve *validationError
	if !asValidationError(err, &ve) || ve.reason != models.ReasonInvalidPrice {
		t.Fatalf("expected invalid_price reason, got %v", err)
	}
}

func TestParseBookingFieldsHappyPath(t *testing.T) {
	checkIn, checkOut, price, err := parseBookingFields(inboundData{
		ArrivalDate:   "2030-05-10",
		DepartureDate: "2030-05-12",
		TotalPrice:    "400.00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if checkIn.After(checkOut) {
		t.Fatal("checkIn should be before checkOut")
	}
	if !price.Equal(decimal.RequireFromString("400.00")) {
		t.Errorf("got price %s", price)
	}
}

func TestRedactHeadersMasksSensitiveKeys(t *testing.T) {
	out := redactHeaders(map[string]string{
		"X-MNAM-Webhook-Token": "super-secret",
		"Content-Type":         "application/json",
	})
	if out["X-MNAM-Webhook-Token"] != "[redacted]" {
		t.Errorf("expected secret header redacted, got %q", out["X-MNAM-Webhook-Token"])
	}
	if out["Content-Type"] != "application/json" {
		t.Errorf("expected non-sensitive header preserved, got %q", out["Content-Type"])
	}
}

func asValidationError(err error, target **validationError) bool {
	ve, ok := err.(*validationError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
