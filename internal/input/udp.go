package input

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rov.teleop/internal/monitoring"
)

// SampleHandler consumes decoded gamepad samples.
type SampleHandler interface {
	HandleSample(RawSample) error
}

// UDPListener receives JSON gamepad datagrams and hands them to a handler on
// the listener goroutine, one at a time.
type UDPListener struct {
	address     string
	handler     SampleHandler
	logInterval time.Duration

	mu   sync.Mutex
	conn *net.UDPConn

	received atomic.Uint64
	rejected atomic.Uint64
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	Handler     SampleHandler
	LogInterval time.Duration
}

// NewUDPListener creates a listener. A zero LogInterval defaults to one minute.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPListener{
		address:     config.Address,
		handler:     config.Handler,
		logInterval: logInterval,
	}
}

// Addr returns the bound address once Start has opened the socket.
func (l *UDPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Stats returns the number of datagrams received and rejected so far.
func (l *UDPListener) Stats() (received, rejected uint64) {
	return l.received.Load(), l.rejected.Load()
}

// Start listens until ctx is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	monitoring.Logf("[input] UDP listener started on %s", conn.LocalAddr())

	lastLog := time.Now()
	buffer := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[input] UDP listener stopping")
			return ctx.Err()
		default:
		}

		// short deadline so cancellation is noticed between datagrams
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("[input] UDP read error: %v", err)
			continue
		}

		if err := l.handleDatagram(buffer[:n]); err != nil {
			monitoring.Logf("[input] undecodable datagram from %v: %v", from, err)
		}

		if time.Since(lastLog) >= l.logInterval {
			rcv, rej := l.Stats()
			monitoring.Logf("[input] %d samples received, %d rejected", rcv, rej)
			lastLog = time.Now()
		}
	}
}

// handleDatagram returns an error only for datagrams that do not decode.
// Samples the handler rejects are counted; the handler reports them.
func (l *UDPListener) handleDatagram(data []byte) error {
	l.received.Add(1)
	s, err := ParseRawSample(data)
	if err != nil {
		l.rejected.Add(1)
		return err
	}
	if l.handler.HandleSample(s) != nil {
		l.rejected.Add(1)
	}
	return nil
}
