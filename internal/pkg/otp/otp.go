package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// DefaultDigits is the length of codes produced by New.
const DefaultDigits = 6

// Generator produces one-time codes.
type Generator interface {
	Generate() string
}

// Numeric produces fixed-length decimal codes.
type Numeric struct {
	digits int
	max    *big.Int
	format string
	rand   io.Reader
}

// New returns a 6-digit generator.
func New() *Numeric {
	return NewNumeric(DefaultDigits)
}

// NewNumeric returns a generator for codes of the given length.
// Lengths outside 1..18 fall back to DefaultDigits.
func NewNumeric(digits int) *Numeric {
	if digits < 1 || digits > 18 {
		digits = DefaultDigits
	}

	return &Numeric{
		digits: digits,
		max:    new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil),
		format: fmt.Sprintf("%%0%dd", digits),
		rand:   rand.Reader,
	}
}

// Digits returns the code length.
func (n *Numeric) Digits() int {
	return n.digits
}

// Generate returns a uniformly distributed code.
//
// It panics when the randomness source fails: issuing a predictable code is
// worse than failing the request.
func (n *Numeric) Generate() string {
	v, err := rand.Int(n.rand, n.max)
	if err != nil {
		panic(fmt.Sprintf("otp: randomness source unavailable: %v", err))
	}

	return fmt.Sprintf(n.format, v.Int64())
}
