package source

import (
	"bytes"
	"errors"
	"sync"

	"go.bug.st/serial"
)

// TestablePort is an in-memory Porter for exercising the serial source
// without hardware. Reads block until data is added or the port is closed.
type TestablePort struct {
	mu     sync.Mutex
	cond   *sync.Cond
	read   bytes.Buffer
	write  bytes.Buffer
	closed bool

	// ReadError is returned by the next Read once the buffer is drained.
	ReadError error
}

// NewTestablePort creates an empty port.
func NewTestablePort() *TestablePort {
	p := &TestablePort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Read returns buffered data, blocking while empty.
func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.read.Len() == 0 && p.ReadError == nil {
		p.cond.Wait()
	}
	if p.read.Len() > 0 {
		return p.read.Read(b)
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}
	return 0, errors.New("serial port closed")
}

// Write records written data.
func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	return p.write.Write(b)
}

// Close marks the port closed and wakes blocked readers.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

// Feed appends data for subsequent reads.
func (p *TestablePort) Feed(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.read.WriteString(data)
	p.cond.Broadcast()
}

// Fail makes the next read return err.
func (p *TestablePort) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadError = err
	p.cond.Broadcast()
}

// Written returns everything written so far.
func (p *TestablePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.write.String()
}

// Opener returns an Opener that hands out this port.
func (p *TestablePort) Opener() Opener {
	return func(string, *serial.Mode) (Porter, error) { return p, nil }
}
