// Package timeutil lets periodic loops run against either the wall clock or
// a clock that tests step by hand.
package timeutil

import "time"

// Clock is the time source for periodic loops.
type Clock interface {
	Now() time.Time
	// NewTicker delivers ticks every d until stopped.
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of *time.Ticker that loops use.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return wallTicker{time.NewTicker(d)}
}

type wallTicker struct{ t *time.Ticker }

func (w wallTicker) C() <-chan time.Time { return w.t.C }
func (w wallTicker) Stop()               { w.t.Stop() }
