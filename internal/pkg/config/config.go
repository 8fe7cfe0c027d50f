// Package config exposes typed, read-only access to application settings.
package config

import (
	"io"
	"time"
)

// DurationConfig reads integer settings as durations in a fixed unit.
type DurationConfig interface {
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration
}

// NumberConfig reads numeric settings. Missing or malformed keys yield zero.
type NumberConfig interface {
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint64(key string) uint64
	GetFloat64(key string) float64
}

// Config is the settings source shared by every module.
//
// Keys are dotted paths such as "modules.identity.otp.ttl_minutes". A missing
// key reads as the zero value, so callers apply their own defaults.
type Config interface {
	io.Closer
	DurationConfig
	NumberConfig

	GetBool(key string) bool
	GetString(key string) string

	// GetArray accepts a YAML list or a comma separated string. Blank
	// elements are dropped and an unset key returns nil.
	GetArray(key string) []string
}
