package clock

import "time"

// Clocker is the time source for challenge expiry, rate-limit windows and
// token issuance.
type Clocker interface {
	Now() time.Time
}

// TimeClocker reads the system clock.
type TimeClocker struct{}

func New() *TimeClocker {
	return &TimeClocker{}
}

// Now returns the current time in UTC so stored timestamps compare cleanly.
func (*TimeClocker) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}
