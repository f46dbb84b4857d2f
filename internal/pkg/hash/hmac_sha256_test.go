package hash

import "testing"

func TestHMACSHA256(t *testing.T) {
	// Arrange
	h := NewHMACSHA256("secret")

	// Act
	sum, err := h.Hash("123456")

	// Assert
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if len(sum) != 64 {
		t.Errorf("hex length = %d, want 64", len(sum))
	}
	if !h.Verify(string(sum), "123456") {
		t.Error("Verify() rejected the original code")
	}
	if h.Verify(string(sum), "654321") {
		t.Error("Verify() accepted a different code")
	}
	if NewHMACSHA256("other").Verify(string(sum), "123456") {
		t.Error("Verify() accepted a hash from another key")
	}
}
