package teleop

import (
	"context"
	"time"

	"github.com/banshee-data/rov.teleop/internal/monitoring"
	"github.com/banshee-data/rov.teleop/internal/timeutil"
)

// DefaultResendInterval is the thrust re-send period. 0.2 s is close to the
// most the controller board's 115200 baud link sustains alongside telemetry.
const DefaultResendInterval = 200 * time.Millisecond

// Resender re-publishes the last stored command.
type Resender interface {
	Resend() error
}

// Dispatcher calls Resend at a fixed period, decoupling the outbound
// command rate from the gamepad sample rate.
type Dispatcher struct {
	target   Resender
	clock    timeutil.Clock
	interval time.Duration
}

// NewDispatcher creates a dispatcher. A nil clock uses the real clock and a
// non-positive interval uses DefaultResendInterval.
func NewDispatcher(target Resender, clock timeutil.Clock, interval time.Duration) *Dispatcher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = DefaultResendInterval
	}
	return &Dispatcher{target: target, clock: clock, interval: interval}
}

// Interval returns the resend period.
func (d *Dispatcher) Interval() time.Duration { return d.interval }

// Run resends until ctx is cancelled. Send failures are logged, and only on
// the transition into failure so a dead link does not flood the log.
func (d *Dispatcher) Run(ctx context.Context) error {
	monitoring.Logf("[dispatch] resending thrust every %v", d.interval)

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			err := d.target.Resend()
			switch {
			case err != nil && !failing:
				monitoring.Logf("[dispatch] resend failed: %v", err)
				failing = true
			case err == nil && failing:
				monitoring.Logf("[dispatch] resend recovered")
				failing = false
			}
		}
	}
}
