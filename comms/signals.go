package comms

import (
	"sync"
	"time"
)

// SignalKind classifies an activity signal.
type SignalKind string

const (
	SignalMessage SignalKind = "new_message"
	SignalStatus  SignalKind = "status_changed"
	SignalTask    SignalKind = "task_changed"
	SignalError   SignalKind = "error"
)

// Signal is a transient "who did what" notification. Signals are not a
// source of truth: observers may drop or ignore them without affecting
// correctness of the persisted record.
type Signal struct {
	Kind    SignalKind `json:"kind"`
	AgentID string     `json:"agent_id"`
	Detail  string     `json:"detail"`
	Payload any        `json:"payload,omitempty"`
	At      time.Time  `json:"at"`
}

// SignalQueue is a bounded, order-preserving, best-effort queue of activity
// signals. Publish never blocks: when the queue is full the signal is
// dropped. One consumer drains it via Out.
type SignalQueue struct {
	ch chan Signal

	mu     sync.Mutex
	closed bool
}

// NewSignalQueue creates a queue holding at most capacity signals.
func NewSignalQueue(capacity int) *SignalQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &SignalQueue{ch: make(chan Signal, capacity)}
}

// Publish enqueues the signal if there is room and reports whether it was
// accepted.
func (q *SignalQueue) Publish(sig Signal) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if sig.At.IsZero() {
		sig.At = time.Now().UTC()
	}
	select {
	case q.ch <- sig:
		return true
	default:
		return false
	}
}

// Out returns the consumer side of the queue. The channel is closed by
// Close.
func (q *SignalQueue) Out() <-chan Signal { return q.ch }

// Close stops the queue. Publishes after Close are dropped.
func (q *SignalQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
