package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rov.teleop/internal/allocation"
	"github.com/banshee-data/rov.teleop/internal/auxiliary"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	b.now = func() time.Time { return time.Unix(10, 0) }

	_, a := b.Subscribe(4)
	_, c := b.Subscribe(4)
	assert.Equal(t, 2, b.ClientCount())

	require.NoError(t, b.PublishThrust(allocation.Command{Port: 1568, Vertical: 1500, Starboard: 1568}))
	require.NoError(t, b.PublishLight(0.4))
	require.NoError(t, b.PublishLaser(auxiliary.LaserOn))

	for _, ch := range []<-chan Event{a, c} {
		ev := <-ch
		assert.Equal(t, uint64(1), ev.Seq)
		assert.Equal(t, KindThrust, ev.Kind)
		assert.Equal(t, &allocation.Command{Port: 1568, Vertical: 1500, Starboard: 1568}, ev.Command)
		assert.Equal(t, time.Unix(10, 0), ev.Time)

		ev = <-ch
		assert.Equal(t, KindLight, ev.Kind)
		assert.Equal(t, 0.4, *ev.Light)

		ev = <-ch
		assert.Equal(t, KindLaser, ev.Kind)
		assert.Equal(t, auxiliary.LaserOn, *ev.Laser)
		assert.Equal(t, uint64(3), ev.Seq)
	}
}

func TestBroadcaster_SlowClientDrops(t *testing.T) {
	b := NewBroadcaster()
	_, slow := b.Subscribe(1)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.PublishLight(float64(i)/10))
	}
	assert.Equal(t, uint64(4), b.Dropped())

	ev := <-slow
	assert.Equal(t, 0.0, *ev.Light, "the first event is kept")
}

func TestBroadcaster_UnsubscribeAndClose(t *testing.T) {
	b := NewBroadcaster()
	id, ch := b.Subscribe(0)
	_, other := b.Subscribe(0)

	b.Unsubscribe(id)
	b.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	b.Close()
	b.Close()
	_, ok = <-other
	assert.False(t, ok)
	assert.Zero(t, b.ClientCount())

	_, late := b.Subscribe(0)
	_, ok = <-late
	assert.False(t, ok, "subscribe after close returns a closed channel")
	assert.NoError(t, b.PublishThrust(allocation.NeutralCommand()))
}

func TestBroadcaster_ConcurrentPublish(t *testing.T) {
	b := NewBroadcaster()
	_, ch := b.Subscribe(1000)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = b.PublishThrust(allocation.NeutralCommand())
			}
		}()
	}
	wg.Wait()
	b.Close()

	var last uint64
	count := 0
	for ev := range ch {
		require.Greater(t, ev.Seq, last, "seq out of order")
		last = ev.Seq
		count++
	}
	assert.Equal(t, 400, count)
	assert.Equal(t, uint64(400), last)
}

func TestEventString(t *testing.T) {
	level := 0.25
	laser := auxiliary.LaserOff
	assert.Equal(t, "#1 thrust go(1,2,3)", Event{Seq: 1, Kind: KindThrust, Command: &allocation.Command{Port: 1, Vertical: 2, Starboard: 3}}.String())
	assert.Equal(t, "#2 light 0.25", Event{Seq: 2, Kind: KindLight, Light: &level}.String())
	assert.Equal(t, "#3 laser off", Event{Seq: 3, Kind: KindLaser, Laser: &laser}.String())
}
