// serialcomm/supervisor.go
package serialcomm

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultSettleDelay = 2 * time.Second

// Greeting is the payload the supervisor sends once the settle delay is over.
var Greeting = []byte{0x41, 0x42, 0x43}

// Supervisor owns the last-value store and the outgoing queue and runs one
// receiver and one sender against the same device, each with its own handle.
type Supervisor struct {
	store       *LastValueStore
	queue       *OutgoingQueue
	receiver    SerialReceiver
	sender      SerialSender
	logger      *zap.SugaredLogger
	settleDelay time.Duration
	greeting    []byte
	senderOpts  []SenderOption
}

type SupervisorOption func(*Supervisor)

func WithSettleDelay(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.settleDelay = d
	}
}

func WithGreeting(data []byte) SupervisorOption {
	return func(s *Supervisor) {
		s.greeting = append([]byte{}, data...)
	}
}

func WithSenderOptions(opts ...SenderOption) SupervisorOption {
	return func(s *Supervisor) {
		s.senderOpts = append(s.senderOpts, opts...)
	}
}

func NewSupervisor(cfg *SerialConfig, logger *zap.SugaredLogger, opts ...SupervisorOption) *Supervisor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Supervisor{
		store:       NewLastValueStore(),
		queue:       NewOutgoingQueue(),
		logger:      logger,
		settleDelay: DefaultSettleDelay,
		greeting:    Greeting,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.receiver = NewSerialReceiver(cfg, s.store, logger.Named("reader"))
	s.sender = NewSerialSender(cfg, s.queue, logger.Named("writer"), s.senderOpts...)
	return s
}

func (s *Supervisor) Store() *LastValueStore {
	return s.store
}

// Queue is where additional producers can submit payloads.
func (s *Supervisor) Queue() *OutgoingQueue {
	return s.queue
}

func (s *Supervisor) Receiver() SerialReceiver {
	return s.receiver
}

func (s *Supervisor) Sender() SerialSender {
	return s.sender
}

// Run starts both workers, waits for the settle delay, traces one snapshot of
// the store, queues the greeting and then waits on the workers. Neither worker
// stops on its own, so Run only returns when one fails to open its handle or
// ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.receiver.Run(gctx) })
	g.Go(func() error { return s.sender.Run(gctx) })

	timer := time.NewTimer(s.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-gctx.Done():
		return g.Wait()
	}

	s.logger.Infof("Last Received Data: %v", s.store.Snapshot())

	if err := s.queue.Send(s.greeting); err != nil {
		s.logger.Errorf("queue greeting: %v", err)
	}

	return g.Wait()
}
