package entity

import (
	"strings"
)

type Channel int16

const (
	ChannelUnknown Channel = 0
	ChannelEmail   Channel = 1
	ChannelSMS     Channel = 2
)

// ChannelFromString accepts the identity channel names, so "phone" maps to
// ChannelSMS.
func ChannelFromString(raw string) Channel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "email":
		return ChannelEmail
	case "phone", "sms":
		return ChannelSMS
	default:
		return ChannelUnknown
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelSMS:
		return "sms"
	default:
		return "unknown"
	}
}

type TriggerKey string

const (
	TriggerKeyLoginCode TriggerKey = "login_code"
	TriggerKeyResetCode TriggerKey = "reset_code"
	TriggerKeyWelcome   TriggerKey = "welcome"
)

func (t TriggerKey) String() string {
	return string(t)
}

func (t TriggerKey) IsValid() bool {
	switch t {
	case TriggerKeyLoginCode, TriggerKeyResetCode, TriggerKeyWelcome:
		return true
	default:
		return false
	}
}

// NeedsCode reports whether messages of this kind carry a one-time code.
func (t TriggerKey) NeedsCode() bool {
	return t == TriggerKeyLoginCode || t == TriggerKeyResetCode
}

type DeliveryStatus int16

const (
	DeliveryStatusUnknown   DeliveryStatus = 0
	DeliveryStatusSent      DeliveryStatus = 1
	DeliveryStatusDuplicate DeliveryStatus = 2
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryStatusSent:
		return "sent"
	case DeliveryStatusDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}
