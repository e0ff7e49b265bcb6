// serialcomm/serialcomm.go
package serialcomm

import (
	"context"
	"time"
)

const (
	DefaultPortName    = "/dev/ttyUSB0"
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 10 * time.Millisecond
	DefaultBufferSize  = 1024
)

// ReadHandler is called with a copy of every payload the receiver stores.
type ReadHandler func(data []byte)

// Opener opens one handle to the device described by cfg.
type Opener func(cfg *SerialConfig) (Port, error)

type SerialConfig struct {
	PortName     string
	BaudRate     int
	ReadTimeout  time.Duration
	BufferSize   int
	Driver       string
	Opener       Opener
	ReadCallback ReadHandler
}

// DefaultConfig returns the fixed device settings: /dev/ttyUSB0 at 9600 baud
// with a 10ms read timeout. The go.bug.st driver is the default because it
// applies the timeout with millisecond resolution.
func DefaultConfig() *SerialConfig {
	return &SerialConfig{
		PortName:    DefaultPortName,
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
		BufferSize:  DefaultBufferSize,
		Driver:      DriverBugst,
	}
}

func (c *SerialConfig) open() (Port, error) {
	if c.Opener != nil {
		return c.Opener(c)
	}
	return OpenPort(c)
}

func (c *SerialConfig) bufferSize() int {
	if c.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return c.BufferSize
}

// Port is one open handle to the serial device.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// SerialReceiver polls its own handle and keeps the latest payload in a
// LastValueStore.
type SerialReceiver interface {
	Run(ctx context.Context) error
	Received() uint64
}

// SerialSender writes queued payloads to its own handle. Delivery is best
// effort: a payload whose write fails is dropped and counted.
type SerialSender interface {
	Run(ctx context.Context) error
	Sent() uint64
	Dropped() uint64
}
