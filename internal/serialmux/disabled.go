package serialmux

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
)

// DisabledSerialMux stands in for SerialMux when no controller board is
// attached. Commands are counted and dropped and no lines ever arrive, but
// subscriber channels still close so readers unblock at shutdown.
type DisabledSerialMux struct {
	subs subscriberSet
	sent atomic.Uint64
}

func NewDisabledSerialMux() *DisabledSerialMux { return &DisabledSerialMux{} }

func (d *DisabledSerialMux) Subscribe() (string, chan string) { return d.subs.add(0) }
func (d *DisabledSerialMux) Unsubscribe(id string)            { d.subs.remove(id) }

func (d *DisabledSerialMux) SendCommand(string) error {
	d.sent.Add(1)
	return nil
}

// Sent returns how many commands have been dropped.
func (d *DisabledSerialMux) Sent() uint64 { return d.sent.Load() }

// Monitor has nothing to read; it waits for ctx.
func (d *DisabledSerialMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (d *DisabledSerialMux) Close() error {
	d.subs.shutdown()
	return nil
}

func (d *DisabledSerialMux) Initialize() error { return nil }

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "serial disabled")
	})
}
