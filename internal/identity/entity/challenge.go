package entity

import (
	"crypto/subtle"
	"time"
)

// VerifyOutcome is the decision of the verification engine for one submission.
type VerifyOutcome int

const (
	OutcomeNotFound VerifyOutcome = iota
	OutcomeExpired
	OutcomeAttemptsExceeded
	OutcomeInvalid
	OutcomeVerified
)

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeExpired:
		return "expired"
	case OutcomeAttemptsExceeded:
		return "attempts_exceeded"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// Challenge is the single live one-time code of an identifier.
type Challenge struct {
	Identifier string
	Code       string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Attempts   int
}

// NewChallenge returns a fresh challenge valid for ttl starting at now.
func NewChallenge(identifier, code string, now time.Time, ttl time.Duration) Challenge {
	return Challenge{
		Identifier: identifier,
		Code:       code,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		Attempts:   0,
	}
}

// IsExpired reports whether now is strictly after the expiry instant.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Evaluate decides a submission without side effects. The checks run in a
// fixed order: missing, expired, exhausted, mismatch. Only OutcomeInvalid asks
// the caller to count an attempt.
func (c *Challenge) Evaluate(submitted string, now time.Time, maxAttempts int) VerifyOutcome {
	if c == nil {
		return OutcomeNotFound
	}

	if c.IsExpired(now) {
		return OutcomeExpired
	}

	if c.Attempts >= maxAttempts {
		return OutcomeAttemptsExceeded
	}

	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(submitted)) != 1 {
		return OutcomeInvalid
	}

	return OutcomeVerified
}

// Dispatch asks the delivery collaborator to send a message to an identifier.
type Dispatch struct {
	Identifier string
	Channel    Channel
	UseCase    DispatchUseCase
	Code       string
	Name       string
}

// Delivery is the outcome of a synchronous dispatch.
type Delivery struct {
	ID     string
	Failed bool
}
