// Package telemetry streams actuator commands to remote observers over gRPC.
//
// Broadcaster sits alongside the serial link as one more command sink: every
// thrust, light and laser command the engine publishes is copied to each
// connected Watch stream. Slow clients lose events rather than stall the
// command path.
package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rov.teleop/internal/allocation"
	"github.com/banshee-data/rov.teleop/internal/auxiliary"
)

const (
	KindThrust = "thrust"
	KindLight  = "light"
	KindLaser  = "laser"
)

// DefaultClientBuffer is the per-client event queue length.
const DefaultClientBuffer = 32

// Event is one actuator command as seen by observers. Exactly one of
// Command, Light and Laser is set, according to Kind.
type Event struct {
	Seq     uint64
	Kind    string
	Time    time.Time
	Command *allocation.Command
	Light   *float64
	Laser   *auxiliary.LaserState
}

// Broadcaster fans actuator events out to subscribers.
type Broadcaster struct {
	now func() time.Time

	mu      sync.Mutex
	clients map[uint64]chan Event
	nextID  uint64
	closed  bool
	seq     uint64

	dropped atomic.Uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		now:     time.Now,
		clients: make(map[uint64]chan Event),
	}
}

// Subscribe registers a client and returns its id and event channel. The
// channel is closed by Unsubscribe or Close.
func (b *Broadcaster) Subscribe(buffer int) (uint64, <-chan Event) {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.closed {
		close(ch)
		return id, ch
	}
	b.clients[id] = ch
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
	}
}

// ClientCount returns the number of live subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Dropped returns how many per-client deliveries were skipped because the
// client's queue was full.
func (b *Broadcaster) Dropped() uint64 { return b.dropped.Load() }

// Close closes every subscriber channel. Later publishes are discarded.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

func (b *Broadcaster) PublishThrust(c allocation.Command) error {
	b.broadcast(Event{Kind: KindThrust, Command: &c})
	return nil
}

func (b *Broadcaster) PublishLight(level float64) error {
	b.broadcast(Event{Kind: KindLight, Light: &level})
	return nil
}

func (b *Broadcaster) PublishLaser(state auxiliary.LaserState) error {
	b.broadcast(Event{Kind: KindLaser, Laser: &state})
	return nil
}

// broadcast numbers ev under the lock so every client sees sequence
// numbers in increasing order.
func (b *Broadcaster) broadcast(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	ev.Seq = b.seq
	ev.Time = b.now()
	for _, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func (e Event) String() string {
	switch {
	case e.Command != nil:
		return fmt.Sprintf("#%d %s go(%d,%d,%d)", e.Seq, e.Kind, e.Command.Port, e.Command.Vertical, e.Command.Starboard)
	case e.Light != nil:
		return fmt.Sprintf("#%d %s %.2f", e.Seq, e.Kind, *e.Light)
	case e.Laser != nil:
		return fmt.Sprintf("#%d %s %s", e.Seq, e.Kind, *e.Laser)
	}
	return fmt.Sprintf("#%d %s", e.Seq, e.Kind)
}
