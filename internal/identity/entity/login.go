package entity

import (
	"errors"
	"time"
)

// ErrLoginNotVerified is returned by the session store when a consume is
// attempted before both channels are verified.
var ErrLoginNotVerified = errors.New("identity: login is not fully verified")

// LoginState is the progress of a dual-channel login.
type LoginState int

const (
	LoginAwaitingCredentials LoginState = iota
	LoginCodesIssued
	LoginPartiallyVerified
	LoginBothVerified
	LoginResolved
)

func (s LoginState) String() string {
	switch s {
	case LoginCodesIssued:
		return "codes_issued"
	case LoginPartiallyVerified:
		return "partially_verified"
	case LoginBothVerified:
		return "both_verified"
	case LoginResolved:
		return "resolved"
	default:
		return "awaiting_credentials"
	}
}

// LoginSession correlates the email and phone verifications of one login.
type LoginSession struct {
	Email         string
	Phone         string
	EmailVerified bool
	PhoneVerified bool
	CreatedAt     time.Time
}

func (s *LoginSession) State() LoginState {
	switch {
	case s == nil || (s.Email == "" && s.Phone == ""):
		return LoginAwaitingCredentials
	case s.EmailVerified && s.PhoneVerified:
		return LoginBothVerified
	case s.EmailVerified || s.PhoneVerified:
		return LoginPartiallyVerified
	default:
		return LoginCodesIssued
	}
}

// Identifier returns the identifier the session tracks on ch.
func (s *LoginSession) Identifier(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return s.Email
	case ChannelPhone:
		return s.Phone
	default:
		return ""
	}
}

// Tracks reports whether identifier is the one the session expects on ch.
func (s *LoginSession) Tracks(ch Channel, identifier string) bool {
	if s == nil || identifier == "" {
		return false
	}
	return s.Identifier(ch) == identifier
}
