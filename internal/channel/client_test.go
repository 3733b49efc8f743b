package channel

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifyWebhookSignatureValid(t *testing.T) {
	body := []byte(`{"event":"booking.new"}`)
	secret := "shh"
	// HMAC-SHA256 of body with key "shh", computed with the test helper
	mac := computeHMAC(body, secret)
	if !VerifyWebhookSignature(body, secret, mac) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyWebhookSignatureInvalid(t *testing.T) {
	body := []byte(`{"event":"booking.new"}`)
	if VerifyWebhookSignature(body, "shh", "deadbeef") {
		t.Fatal("expected invalid signature to fail verification")
	}
}

func TestVerifyWebhookSignatureEmptySecret(t *testing.T) {
	if VerifyWebhookSignature([]byte("x"), "", "abc") {
		t.Fatal("expected empty secret to always fail")
	}
}

func TestSanitizePayloadRedactsSecrets(t *testing.T) {
	payload := map[string]interface{}{
		"user-api-key": "top-secret",
		"values":       []interface{}{map[string]interface{}{"rate": "100.00", "password": "hunter2"}},
	}
	out := string(sanitizePayload(payload))
	if contains(out, "top-secret") || contains(out, "hunter2") {
		t.Fatalf("expected secrets redacted, got %s", out)
	}
	if !contains(out, "100.00") {
		t.Fatalf("expected non-sensitive fields preserved, got %s", out)
	}
}

func TestIsSensitiveName(t *testing.T) {
	cases := map[string]bool{
		"user-api-key":  true,
		"Authorization": true,
		"PASSWORD":      true,
		"rate":          false,
		"date":          false,
	}
	for name, want := range cases {
		if got := isSensitiveName(name); got != want {
			t.Errorf("isSensitiveName(%q) = %v, want %v", name, got, want)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func computeHMAC(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
