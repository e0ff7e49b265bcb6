package serialcomm

import (
	"sync"
	"time"
)

type readResult struct {
	data []byte
	err  error
}

// fakeDevice stands in for the serial device. Every handle opened from it
// shares the read script and the write log. Once the script is used up reads
// time out after idle.
type fakeDevice struct {
	mu        sync.Mutex
	reads     []readResult
	idle      time.Duration
	writeErrs []error
	openErr   error

	writes     [][]byte
	writeCalls int
	readCalls  int
	opens      int
	closes     int
}

func newFakeDevice(reads ...readResult) *fakeDevice {
	return &fakeDevice{reads: reads, idle: time.Millisecond}
}

func readBytes(b ...byte) readResult {
	return readResult{data: b}
}

func readErr(err error) readResult {
	return readResult{err: err}
}

// readPartial returns bytes and an error from the same Read call.
func readPartial(err error, b ...byte) readResult {
	return readResult{data: b, err: err}
}

func (d *fakeDevice) opener() Opener {
	return func(*SerialConfig) (Port, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.openErr != nil {
			return nil, d.openErr
		}
		d.opens++
		return &fakePort{dev: d}, nil
	}
}

func (d *fakeDevice) config() *SerialConfig {
	cfg := DefaultConfig()
	cfg.ReadTimeout = d.idle
	cfg.Opener = d.opener()
	return cfg
}

func (d *fakeDevice) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	copy(out, d.writes)
	return out
}

func (d *fakeDevice) ReadCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readCalls
}

func (d *fakeDevice) WriteCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeCalls
}

func (d *fakeDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *fakeDevice) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

type fakePort struct {
	dev *fakeDevice
}

func (p *fakePort) Read(b []byte) (int, error) {
	d := p.dev
	d.mu.Lock()
	d.readCalls++
	if len(d.reads) > 0 {
		r := d.reads[0]
		d.reads = d.reads[1:]
		d.mu.Unlock()
		return copy(b, r.data), r.err
	}
	idle := d.idle
	d.mu.Unlock()

	time.Sleep(idle)
	return 0, ErrTimeout
}

func (p *fakePort) Write(b []byte) (int, error) {
	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeCalls++
	if len(d.writeErrs) > 0 {
		err := d.writeErrs[0]
		d.writeErrs = d.writeErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	d.writes = append(d.writes, append([]byte{}, b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.dev.mu.Lock()
	p.dev.closes++
	p.dev.mu.Unlock()
	return nil
}
