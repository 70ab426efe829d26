// Package config abstracts configuration lookup behind a flat key interface.
// Keys use dotted paths ("jwt.ttl_minutes"); missing keys yield zero values so
// callers decide their own defaults.
package config

import (
	"io"
	"time"
)

// Config is the read surface the application composes against. The duration
// getters interpret the stored integer in the named unit, so a config file can
// say `otp_ttl_minutes: 5` and the caller receives 5*time.Minute.
type Config interface {
	io.Closer

	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetFloat64(key string) float64

	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration

	// GetBinary decodes a base64-encoded string value. Invalid or missing
	// values return nil.
	GetBinary(key string) []byte

	// GetArray splits a comma-separated string value.
	GetArray(key string) []string
}
