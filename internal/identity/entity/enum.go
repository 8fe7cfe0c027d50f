package entity

import "strings"

// Channel is the delivery channel of a one-time code.
type Channel string

const (
	ChannelUnknown Channel = ""
	ChannelEmail   Channel = "email"
	ChannelPhone   Channel = "phone"
)

func ChannelFromString(s string) Channel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ChannelEmail
	case "phone", "sms":
		return ChannelPhone
	default:
		return ChannelUnknown
	}
}

// ChannelOf guesses the channel of an identifier. Anything with an @ is an
// email address, everything else a phone number.
func ChannelOf(identifier string) Channel {
	if identifier == "" {
		return ChannelUnknown
	}
	if strings.Contains(identifier, "@") {
		return ChannelEmail
	}
	return ChannelPhone
}

func (c Channel) String() string {
	return string(c)
}

func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelPhone
}

// DispatchUseCase selects the message template rendered for a dispatch.
type DispatchUseCase string

const (
	UseCaseLoginCode DispatchUseCase = "login_code"
	UseCaseResetCode DispatchUseCase = "reset_code"
	UseCaseWelcome   DispatchUseCase = "welcome"
)

func (u DispatchUseCase) String() string {
	return string(u)
}
