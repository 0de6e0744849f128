package hash

import "testing"

func TestHashPassword_RoundTrip(t *testing.T) {
	h, err := HashPassword("user123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h == "user123" {
		t.Fatal("hash must not equal the plain password")
	}
	if !CheckPasswordHash("user123", h) {
		t.Error("expected matching password to verify")
	}
	if CheckPasswordHash("wrong", h) {
		t.Error("expected wrong password to be rejected")
	}
}
