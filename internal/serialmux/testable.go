package serialmux

import (
	"bytes"
	"io"
	"sync"
)

// TestableSerialPort is an in-memory SerialPorter for tests. Reads block until
// data is added or the port is closed.
type TestableSerialPort struct {
	mu       sync.Mutex
	cond     *sync.Cond
	readBuf  bytes.Buffer
	written  bytes.Buffer
	closed   bool
	WriteErr error
	ShortBy  int
}

func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// AddReadData queues data to be returned by Read.
func (p *TestableSerialPort) AddReadData(data string) {
	p.mu.Lock()
	p.readBuf.WriteString(data)
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.readBuf.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return p.readBuf.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if p.WriteErr != nil {
		return 0, p.WriteErr
	}
	n := len(b) - p.ShortBy
	if n < 0 {
		n = 0
	}
	p.written.Write(b[:n])
	return n, nil
}

func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	return nil
}

// Written returns everything written to the port so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Closed reports whether Close has been called.
func (p *TestableSerialPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
