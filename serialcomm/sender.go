// serialcomm/sender.go
package serialcomm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"
)

// DropHandler is told about every payload the sender gave up on.
type DropHandler func(data []byte, err error)

type serialSenderImpl struct {
	config  *SerialConfig
	queue   *OutgoingQueue
	logger  *zap.SugaredLogger
	onDrop  DropHandler
	sent    atomic.Uint64
	dropped atomic.Uint64
}

type SenderOption func(*serialSenderImpl)

// WithDropHandler registers fn to be called after a failed write. The
// payload is not requeued either way.
func WithDropHandler(fn DropHandler) SenderOption {
	return func(s *serialSenderImpl) {
		s.onDrop = fn
	}
}

func NewSerialSender(cfg *SerialConfig, queue *OutgoingQueue, logger *zap.SugaredLogger, opts ...SenderOption) SerialSender {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &serialSenderImpl{
		config: cfg,
		queue:  queue,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run opens the port and writes payloads from the queue in order. It returns
// nil once the queue is closed and drained, ctx.Err() when ctx is done, and
// an error wrapping ErrOpen if the port cannot be opened.
func (s *serialSenderImpl) Run(ctx context.Context) error {
	port, err := s.config.open()
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrOpen, s.config.PortName, err)
	}
	defer port.Close()
	s.logger.Debugf("serial sender started on %s", s.config.PortName)

	for {
		data, err := s.queue.Recv(ctx)
		if errors.Is(err, ErrQueueClosed) {
			s.logger.Debugf("outgoing queue closed, sender stopped")
			return nil
		}
		if err != nil {
			return err
		}

		if err := writeAll(port, data); err != nil {
			s.dropped.Add(1)
			s.logger.Errorf("Failed to write to serial port: %v", err)
			if s.onDrop != nil {
				s.onDrop(data, err)
			}
			continue
		}
		s.sent.Add(1)
		s.logger.Infof("Sent: %v (crc16 %04x)", data, CalculateCRC16(data))
	}
}

func (s *serialSenderImpl) Sent() uint64 {
	return s.sent.Load()
}

func (s *serialSenderImpl) Dropped() uint64 {
	return s.dropped.Load()
}

func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
