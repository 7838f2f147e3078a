package streamhttp

import (
	"sync"
	"time"
)

type popOutcome int

const (
	popFrame popOutcome = iota
	popSentinel
	popTimeout
)

// frameQueue is an unbounded FIFO carrying frames from the producer task to
// the consumer loop. Push never blocks; Pop blocks up to a timeout. The queue
// is safe for single-producer/single-consumer use. CloseSend enqueues the
// end-of-stream sentinel: frames pushed before it still drain in order, and
// frames pushed after it are discarded.
type frameQueue struct {
	mu     sync.Mutex
	frames []Frame
	closed bool

	// signal carries at most one wakeup token; the consumer re-checks queue
	// state after every wake, so coalesced tokens are harmless.
	signal chan struct{}
}

func newFrameQueue() *frameQueue {
	return &frameQueue{signal: make(chan struct{}, 1)}
}

func (q *frameQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Push appends a frame. Late frames arriving after the sentinel are dropped.
func (q *frameQueue) Push(f Frame) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.frames = append(q.frames, f)
	q.mu.Unlock()
	q.notify()
}

// CloseSend marks end-of-stream. Idempotent.
func (q *frameQueue) CloseSend() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Pop returns the next frame, the sentinel once the queue is closed and
// drained, or a timeout indication after waiting up to timeout.
func (q *frameQueue) Pop(timeout time.Duration) (Frame, popOutcome) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			f := q.frames[0]
			q.frames = q.frames[1:]
			q.mu.Unlock()
			return f, popFrame
		}
		if q.closed {
			q.mu.Unlock()
			return Frame{}, popSentinel
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-timer.C:
			return Frame{}, popTimeout
		}
	}
}
