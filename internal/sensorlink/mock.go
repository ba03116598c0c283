package sensorlink

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// readStep is one scripted outcome of TestablePort.Read.
type readStep struct {
	data    []byte
	err     error
	timeout bool
}

// TestablePort implements TimeoutPort with scripted reads for testing.
// Reads consume the script in order: data steps may be split across several
// reads, error steps are returned once, timeout steps return (0, nil) the way
// a real serial port does when its read timeout elapses.
type TestablePort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	script []readStep

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// WriteError is returned by the next Write call if set
	WriteError error

	// CloseError is returned by Close if set
	CloseError error

	// BlockReads causes Read to wait for new script steps once the script
	// is exhausted, instead of returning io.EOF.
	BlockReads bool

	Closed      bool
	ReadCalls   int
	WriteCalls  int
	ReadTimeout time.Duration
}

// NewTestablePort creates a new TestablePort for testing.
func NewTestablePort() *TestablePort {
	p := &TestablePort{WriteBuffer: bytes.NewBuffer(nil)}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// AddReadData appends data to be returned by subsequent reads.
func (p *TestablePort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := make([]byte, len(data))
	copy(b, data)
	p.script = append(p.script, readStep{data: b})
	p.readCond.Broadcast()
}

// AddReadError appends an error to be returned once by a later read.
func (p *TestablePort) AddReadError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, readStep{err: err})
	p.readCond.Broadcast()
}

// AddTimeout appends a read that times out without data.
func (p *TestablePort) AddTimeout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, readStep{timeout: true})
	p.readCond.Broadcast()
}

// Read returns the next scripted outcome.
func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ReadCalls++
	for {
		if p.Closed {
			return 0, errors.New("serial port closed")
		}
		if len(p.script) > 0 {
			break
		}
		if !p.BlockReads {
			return 0, io.EOF
		}
		p.readCond.Wait()
	}

	step := &p.script[0]
	switch {
	case step.err != nil:
		err := step.err
		p.script = p.script[1:]
		return 0, err
	case step.timeout:
		p.script = p.script[1:]
		return 0, nil
	}

	n := copy(b, step.data)
	step.data = step.data[n:]
	if len(step.data) == 0 {
		p.script = p.script[1:]
	}
	return n, nil
}

// Write writes to the write buffer.
func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.WriteCalls++
	if p.Closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	return p.WriteBuffer.Write(b)
}

// Close marks the port as closed and wakes any blocked reader.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	p.readCond.Broadcast()
	return p.CloseError
}

// SetReadTimeout implements TimeoutPort.
func (p *TestablePort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadTimeout = timeout
	return nil
}

// IsClosed reports whether Close has been called.
func (p *TestablePort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

// Written returns all data written to the port.
func (p *TestablePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.WriteBuffer.String()
}

// MockOpener hands out a sequence of ports and errors for Link tests.
type MockOpener struct {
	mu sync.Mutex

	// Results are consumed in order by Open; the last result repeats.
	Results []MockOpenResult

	// Calls records the path of every Open call.
	Calls []string
}

// MockOpenResult is one outcome of MockOpener.Open.
type MockOpenResult struct {
	Port Port
	Err  error
}

// NewMockOpener creates an opener that yields the given results in order.
func NewMockOpener(results ...MockOpenResult) *MockOpener {
	return &MockOpener{Results: results}
}

// Open implements Opener.
func (o *MockOpener) Open(path string, _ PortOptions) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Calls = append(o.Calls, path)
	if len(o.Results) == 0 {
		return nil, errors.New("no port configured")
	}
	r := o.Results[0]
	if len(o.Results) > 1 {
		o.Results = o.Results[1:]
	}
	return r.Port, r.Err
}

// CallCount returns the number of Open calls made so far.
func (o *MockOpener) CallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Calls)
}
