package otp

import (
	"errors"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestNumericGenerate(t *testing.T) {
	t.Parallel()

	gen := New()
	for range 500 {
		code := gen.Generate()
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		if strings.Trim(code, "0123456789") != "" {
			t.Fatalf("expected only digits, got %q", code)
		}
	}
}

func TestNumericGenerateCoversLeadingZeros(t *testing.T) {
	t.Parallel()

	// Arrange
	gen := NewNumeric(1)
	seen := make(map[string]bool)

	// Act
	for range 1000 {
		seen[gen.Generate()] = true
	}

	// Assert
	if !seen["0"] {
		t.Fatalf("expected zero to be generated")
	}
	if len(seen) != 10 {
		t.Fatalf("expected all 10 digits, got %d", len(seen))
	}
}

func TestNewNumericFallsBackToDefault(t *testing.T) {
	t.Parallel()

	if got := NewNumeric(0).Digits(); got != DefaultDigits {
		t.Fatalf("expected %d digits, got %d", DefaultDigits, got)
	}
	if got := NewNumeric(40).Digits(); got != DefaultDigits {
		t.Fatalf("expected %d digits, got %d", DefaultDigits, got)
	}
}

func TestNumericGeneratePanicsWithoutRandomness(t *testing.T) {
	t.Parallel()

	gen := New()
	gen.rand = failingReader{}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()

	gen.Generate()
}
