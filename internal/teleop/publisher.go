package teleop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/rov.teleop/internal/allocation"
	"github.com/banshee-data/rov.teleop/internal/auxiliary"
)

// Publisher carries actuator commands out of the engine. The three kinds
// are independent and may be sent at different rates.
type Publisher interface {
	PublishThrust(allocation.Command) error
	PublishLight(level float64) error
	PublishLaser(auxiliary.LaserState) error
}

// NopPublisher discards everything.
type NopPublisher struct{}

func (NopPublisher) PublishThrust(allocation.Command) error  { return nil }
func (NopPublisher) PublishLight(float64) error              { return nil }
func (NopPublisher) PublishLaser(auxiliary.LaserState) error { return nil }

// MultiPublisher sends each command to every publisher in order and joins
// their errors. One failing sink does not stop the others.
type MultiPublisher []Publisher

func (m MultiPublisher) PublishThrust(c allocation.Command) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishThrust(c))
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) PublishLight(level float64) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishLight(level))
	}
	return errors.Join(errs...)
}

func (m MultiPublisher) PublishLaser(s auxiliary.LaserState) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishLaser(s))
	}
	return errors.Join(errs...)
}

// CommandSender writes one line-oriented command to the vehicle controller.
// serialmux.SerialMuxInterface satisfies it.
type CommandSender interface {
	SendCommand(string) error
}

// Controller board command formats.
func FormatThrust(c allocation.Command) string {
	return fmt.Sprintf("go(%d,%d,%d);", c.Port, c.Vertical, c.Starboard)
}

func FormatLight(level float64) string {
	return fmt.Sprintf("ligt(%.2f);", level)
}

func FormatLaser(s auxiliary.LaserState) string {
	return fmt.Sprintf("claser(%d);", int(s))
}

// SerialPublisher writes commands to the controller board link.
type SerialPublisher struct {
	sender CommandSender
}

// NewSerialPublisher wraps a command sender.
func NewSerialPublisher(sender CommandSender) *SerialPublisher {
	return &SerialPublisher{sender: sender}
}

func (p *SerialPublisher) PublishThrust(c allocation.Command) error {
	return p.sender.SendCommand(FormatThrust(c))
}

func (p *SerialPublisher) PublishLight(level float64) error {
	return p.sender.SendCommand(FormatLight(level))
}

func (p *SerialPublisher) PublishLaser(s auxiliary.LaserState) error {
	return p.sender.SendCommand(FormatLaser(s))
}

// EventRecorder persists actuator events. *db.Session satisfies it.
type EventRecorder interface {
	RecordThrust(cmd [3]int) error
	RecordLight(level float64) error
	RecordLaser(state int) error
}

// RecordingPublisher logs actuator events. Thrust is re-sent every dispatch
// period, so only changes in the thrust command are recorded.
type RecordingPublisher struct {
	rec EventRecorder

	mu       sync.Mutex
	last     allocation.Command
	recorded bool
}

// NewRecordingPublisher wraps an event recorder.
func NewRecordingPublisher(rec EventRecorder) *RecordingPublisher {
	return &RecordingPublisher{rec: rec}
}

func (p *RecordingPublisher) PublishThrust(c allocation.Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.recorded && c == p.last {
		return nil
	}
	if err := p.rec.RecordThrust(c.Array()); err != nil {
		return fmt.Errorf("record thrust: %w", err)
	}
	p.last = c
	p.recorded = true
	return nil
}

func (p *RecordingPublisher) PublishLight(level float64) error {
	if err := p.rec.RecordLight(level); err != nil {
		return fmt.Errorf("record light: %w", err)
	}
	return nil
}

func (p *RecordingPublisher) PublishLaser(s auxiliary.LaserState) error {
	if err := p.rec.RecordLaser(int(s)); err != nil {
		return fmt.Errorf("record laser: %w", err)
	}
	return nil
}
