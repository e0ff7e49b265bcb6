// serialcomm/port.go
package serialcomm

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

const (
	DriverTarm  = "tarm"
	DriverBugst = "bugst"
)

// Drivers lists the accepted values of SerialConfig.Driver.
var Drivers = []string{DriverBugst, DriverTarm}

// tarm programs VTIME, which counts tenths of a second in a single byte.
const (
	tarmTimeoutStep = 100 * time.Millisecond
	tarmTimeoutMax  = 255 * tarmTimeoutStep
)

// OpenPort opens the device with the driver named in cfg. Both drivers report
// an expired read timeout as ErrTimeout.
func OpenPort(cfg *SerialConfig) (Port, error) {
	switch cfg.Driver {
	case "", DriverBugst:
		return openBugst(cfg)
	case DriverTarm:
		return openTarm(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// EffectiveReadTimeout returns how long one read on a port opened with cfg
// actually waits. tarm truncates the timeout to whole tenths of a second,
// never less than 100ms and never more than 25.5s; go.bug.st honours it as
// given.
func EffectiveReadTimeout(cfg *SerialConfig) time.Duration {
	if cfg.Driver != DriverTarm || cfg.ReadTimeout <= 0 {
		return cfg.ReadTimeout
	}
	d := cfg.ReadTimeout.Truncate(tarmTimeoutStep)
	switch {
	case d < tarmTimeoutStep:
		return tarmTimeoutStep
	case d > tarmTimeoutMax:
		return tarmTimeoutMax
	}
	return d
}

func openTarm(cfg *SerialConfig) (Port, error) {
	portCfg := &serial.Config{
		Name:        cfg.PortName,
		Baud:        cfg.BaudRate,
		Parity:      serial.ParityNone,
		ReadTimeout: cfg.ReadTimeout,
	}
	port, err := serial.OpenPort(portCfg)
	if err != nil {
		return nil, err
	}
	return &timeoutPort{rwc: port}, nil
}

func openBugst(cfg *SerialConfig) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(cfg.PortName, mode)
	if err != nil {
		return nil, err
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return &timeoutPort{rwc: port}, nil
}

// timeoutPort turns the driver's "nothing arrived" read result into
// ErrTimeout. tarm returns (0, io.EOF) on posix and (0, nil) on windows,
// go.bug.st returns (0, nil).
type timeoutPort struct {
	rwc io.ReadWriteCloser
}

func (p *timeoutPort) Read(b []byte) (int, error) {
	n, err := p.rwc.Read(b)
	return classifyRead(len(b), n, err)
}

func (p *timeoutPort) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}

func (p *timeoutPort) Close() error {
	return p.rwc.Close()
}

func classifyRead(size, n int, err error) (int, error) {
	if size == 0 || n > 0 {
		return n, err
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, ErrTimeout
	}
	return n, err
}
