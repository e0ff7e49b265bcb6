// serialcomm/receiver.go
package serialcomm

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

type serialReceiverImpl struct {
	config   *SerialConfig
	store    *LastValueStore
	logger   *zap.SugaredLogger
	received atomic.Uint64
}

// NewSerialReceiver returns a receiver that opens its own handle when Run is
// called. Nothing is opened here.
func NewSerialReceiver(cfg *SerialConfig, store *LastValueStore, logger *zap.SugaredLogger) SerialReceiver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &serialReceiverImpl{
		config: cfg,
		store:  store,
		logger: logger,
	}
}

// Run opens the port and polls it until ctx is done. A timeout is an empty
// iteration, any other read error is logged and the same handle is read
// again. Failing to open returns an error wrapping ErrOpen before any read.
func (s *serialReceiverImpl) Run(ctx context.Context) error {
	port, err := s.config.open()
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrOpen, s.config.PortName, err)
	}
	defer port.Close()
	s.logger.Debugf("serial listener started on %s", s.config.PortName)

	data := make([]byte, s.config.bufferSize())
	for {
		select {
		case <-ctx.Done():
			s.logger.Debugf("serial listener stopped")
			return ctx.Err()
		default:
		}

		n, err := port.Read(data)
		if n > 0 || err == nil {
			s.handle(data[:n])
		}
		if err != nil && !IsTimeout(err) {
			s.logger.Errorf("Serial port error: %v", err)
		}
	}
}

// handle stores a copy of one read's bytes. Bytes returned together with an
// error are kept as well.
func (s *serialReceiverImpl) handle(data []byte) {
	received := append([]byte{}, data...)
	s.store.Update(received)
	s.received.Add(1)
	s.logger.Infof("Received: %v (crc16 %04x)", received, CalculateCRC16(received))

	if s.config.ReadCallback != nil {
		s.config.ReadCallback(received)
	}
}

func (s *serialReceiverImpl) Received() uint64 {
	return s.received.Load()
}
