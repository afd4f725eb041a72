// ABOUTME: Clock abstraction for time-dependent sync decisions
// ABOUTME: Lets tests pin token freshness checks and the sync window
package calsync

import "time"

// Clock supplies the current time. Token freshness and the sync window both
// depend on it, so tests inject a fixed instant instead of racing the wall
// clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return systemClock{}
}
