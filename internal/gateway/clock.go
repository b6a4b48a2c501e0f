package gateway

import "time"

// Clock abstracts wall-clock time so day-boundary and TTL logic can be
// tested without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the Clock used when none is injected.
var SystemClock Clock = systemClock{}
