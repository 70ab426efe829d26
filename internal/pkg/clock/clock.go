// Package clock abstracts the wall clock so expiry and cooldown logic can be
// tested against a frozen time source.
package clock

import "time"

// Clocker yields the current time.
type Clocker interface {
	Now() time.Time
}

// TimeClocker is the production clock, a thin wrapper over time.Now.
type TimeClocker struct{}

func New() *TimeClocker {
	return &TimeClocker{}
}

func (*TimeClocker) Now() time.Time {
	return time.Now()
}
