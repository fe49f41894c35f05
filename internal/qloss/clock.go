package qloss

import "time"

// Clock abstracts the current time so tests can drive it deterministically
// instead of reading the wall clock. Every timing-sensitive method takes an
// explicit now rather than reading time.Now() internally.
type Clock interface {
	Now() time.Time
}

// realClock is the production Clock, backed by the monotonic wall clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewClock returns the production Clock implementation.
func NewClock() Clock { return realClock{} }
