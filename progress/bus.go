// Package progress implements MadSpark's progress bus (spec.md §4.J):
// an append-only, push-only stream of workflow events, ordered per
// request_id, with no backpressure on the publisher.
package progress

import (
	"sync"

	"go.uber.org/zap"
)

// Event is one progress notification emitted by the orchestrator.
type Event struct {
	RequestID string         `json:"request_id"`
	Stage     string         `json:"stage"`
	Progress  int            `json:"progress"` // 0-100, cumulative
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

const subscriberBuffer = 32

// Bus fans out Events to per-request_id subscribers. Publishing never
// blocks: a subscriber whose channel is full misses the event, which is
// dropped with a logged warning
// (spec.md §4.J puts backpressure on the consumer, not the bus), and
// publishing to a request_id with no subscriber is a no-op.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan Event

	logger *zap.Logger
}

// New builds an empty Bus. logger may be nil.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{subs: make(map[string][]chan Event), logger: logger}
}

// Subscribe returns a channel that receives every Event published for
// requestID from this point on. Call Unsubscribe with the returned
// channel when done to release it.
func (b *Bus) Subscribe(requestID string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[requestID] = append(b.subs[requestID], ch)
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel previously returned by
// Subscribe. It is a no-op if the channel is not currently registered.
func (b *Bus) Unsubscribe(requestID string, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[requestID]
	for i, c := range subs {
		if c == ch {
			b.subs[requestID] = append(subs[:i], subs[i+1:]...)
			close(c)
			break
		}
	}
	if len(b.subs[requestID]) == 0 {
		delete(b.subs, requestID)
	}
}

// Publish delivers event to every subscriber of event.RequestID, in the
// order Publish is called. A subscriber with a full buffer misses the
// event rather than stalling the publisher; a request_id with no
// subscriber drops the event silently.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.subs[event.RequestID]
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("progress subscriber channel full, dropping event",
				zap.String("request_id", event.RequestID), zap.String("stage", event.Stage))
		}
	}
}

// Close removes all subscribers for requestID, closing their channels.
// Call once a workflow completes so subscribers observe channel closure.
func (b *Bus) Close(requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[requestID] {
		close(ch)
	}
	delete(b.subs, requestID)
}
