package uid

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGenerate(t *testing.T) {
	t.Parallel()

	id := NewUUID().Generate()
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("expected valid uuid, got %q: %v", id, err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected uuid v7, got v%d", parsed.Version())
	}
}

func TestSnowflakeGenerate(t *testing.T) {
	t.Parallel()

	gen, err := NewSnowflake(1)
	if err != nil {
		t.Fatalf("new snowflake: %v", err)
	}

	a, b := gen.Generate(), gen.Generate()
	if a <= 0 || b <= a {
		t.Fatalf("expected increasing positive ids, got %d then %d", a, b)
	}
}

func TestSnowflakeInvalidNode(t *testing.T) {
	t.Parallel()

	if _, err := NewSnowflake(5000); err == nil {
		t.Fatalf("expected error for out of range node")
	}
}
