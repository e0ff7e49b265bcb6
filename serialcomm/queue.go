// serialcomm/queue.go
package serialcomm

import (
	"context"
	"sync"
)

// OutgoingQueue is an unbounded FIFO of payloads waiting for the sender.
// Any number of goroutines may Send; one goroutine should Recv.
type OutgoingQueue struct {
	mu     sync.Mutex
	items  [][]byte
	closed bool
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewOutgoingQueue() *OutgoingQueue {
	return &OutgoingQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Send appends a copy of data. It never blocks and fails only after Close.
func (q *OutgoingQueue) Send(data []byte) error {
	cp := append([]byte{}, data...)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, cp)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Recv blocks until a payload is available. Payloads queued before Close are
// still delivered; once they are drained Recv returns ErrQueueClosed.
func (q *OutgoingQueue) Recv(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			data := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return data, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of payloads waiting.
func (q *OutgoingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further sends. It is safe to call more than once.
func (q *OutgoingQueue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}
