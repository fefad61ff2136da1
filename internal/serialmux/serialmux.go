// Package serialmux owns the serial link to the vehicle controller board:
// a single writer path for actuator commands and any number of subscribers
// for the lines the board sends back.
package serialmux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

var ErrWriteFailed = errors.New("failed to write to serial port")

// SafeStateCommands put the vehicle in a known state: thrusters neutral,
// lights off, lasers off.
var SafeStateCommands = []string{
	"go(1500,1500,1500);",
	"ligt(0.00);",
	"claser(0);",
}

// subscriberBuffer is how many board lines a subscriber may fall behind by
// before lines are dropped for it.
const subscriberBuffer = 16

// SerialMuxInterface is implemented by SerialMux and DisabledSerialMux.
type SerialMuxInterface interface {
	// Subscribe returns an id and a channel of lines received from the
	// board. The channel is closed by Unsubscribe or Close.
	Subscribe() (string, chan string)
	Unsubscribe(string)
	// SendCommand writes one protocol line to the board.
	SendCommand(string) error
	// Monitor reads board lines until ctx is done or the port fails.
	Monitor(context.Context) error
	Close() error

	// Initialize puts the vehicle into its safe state.
	Initialize() error

	// AttachAdminRoutes mounts debugging pages under /debug/.
	AttachAdminRoutes(*http.ServeMux)
}

// SerialMux multiplexes one serial port between a command writer and many
// line subscribers.
type SerialMux[T SerialPorter] struct {
	port T

	writeMu sync.Mutex
	subs    subscriberSet
}

func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{port: port}
}

func (s *SerialMux[T]) Subscribe() (string, chan string) {
	return s.subs.add(subscriberBuffer)
}

func (s *SerialMux[T]) Unsubscribe(id string) { s.subs.remove(id) }

// Initialize sends SafeStateCommands so nothing moves until the first
// gamepad sample arrives.
func (s *SerialMux[T]) Initialize() error {
	for _, command := range SafeStateCommands {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send safe state command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes command followed by a newline; the board parses one
// command per line. A trailing newline already present is not doubled.
func (s *SerialMux[T]) SendCommand(command string) error {
	line := strings.TrimRight(command, "\r\n") + "\n"

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	n, err := s.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrWriteFailed, n, len(line))
	}
	return nil
}

// Monitor reads the port line by line and fans each line out to the
// subscribers. It returns nil at end of input, ctx.Err() on cancellation,
// or the read error.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	// reads block, so they run on their own goroutine; Close unblocks them
	go func() {
		defer close(lines)
		r := bufio.NewReader(s.port)
		for {
			line, err := r.ReadString('\n')
			if line = strings.TrimRight(line, "\r\n"); line != "" {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			// a slow subscriber misses lines rather than stalling the port
			if !s.subs.broadcast(line) {
				return nil
			}
		}
	}
}

// Close closes every subscriber channel and then the port. Repeated calls
// are no-ops.
func (s *SerialMux[T]) Close() error {
	if !s.subs.shutdown() {
		return nil
	}
	return s.port.Close()
}
