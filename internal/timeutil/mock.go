package timeutil

import (
	"sync"
	"time"
)

// MockClock only moves when Advance is called.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*MockTicker
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance steps the clock by d. Each live ticker whose deadline has passed
// delivers one tick, stamped with the new time; like time.Ticker, a tick is
// lost if the previous one is still unread. Deadlines stay on the ticker's
// original phase however far the clock jumps.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := make([]*MockTicker, len(c.tickers))
	copy(due, c.tickers)
	c.mu.Unlock()

	for _, t := range due {
		t.fireIfDue(now)
	}
}

func (c *MockClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("timeutil: non-positive interval for NewTicker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &MockTicker{
		ch:       make(chan time.Time, 1),
		period:   d,
		deadline: c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// TickerCount reports how many tickers have been created. Tests poll it to
// know a loop has started before advancing the clock.
func (c *MockClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// MockTicker is created by MockClock.NewTicker.
type MockTicker struct {
	ch chan time.Time

	mu       sync.Mutex
	period   time.Duration
	deadline time.Time
	stopped  bool
}

func (t *MockTicker) C() <-chan time.Time { return t.ch }

func (t *MockTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *MockTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *MockTicker) fireIfDue(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || now.Before(t.deadline) {
		return
	}
	for !now.Before(t.deadline) {
		t.deadline = t.deadline.Add(t.period)
	}
	select {
	case t.ch <- now:
	default:
	}
}
