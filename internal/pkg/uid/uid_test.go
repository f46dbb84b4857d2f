package uid

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerate(t *testing.T) {
	// Act
	id := NewUUID().Generate()

	// Assert
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("uuid.Parse(%q) error = %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Errorf("version = %d, want 7", parsed.Version())
	}
}

func TestSnowflakeIsIncreasing(t *testing.T) {
	// Arrange
	gen, err := NewSnowflake(1)
	if err != nil {
		t.Fatalf("NewSnowflake() error = %v", err)
	}

	// Act
	a, b := gen.Generate(), gen.Generate()

	// Assert
	if a <= 0 || b <= a {
		t.Errorf("ids not increasing: %d then %d", a, b)
	}
}

func TestSnowflakeRejectsNode(t *testing.T) {
	if _, err := NewSnowflake(4096); err == nil {
		t.Fatal("expected error for out-of-range node")
	}
}
