package monitor

import (
	"log"
	"sync"
)

// EventChan is the bounded hand-off of CallEvents from the worker to any
// consumer. Publish never blocks the worker: when the buffer is full the
// oldest undelivered event is discarded to make room, since the most
// recent decision is the one a consumer acts on. DrainAll never blocks
// the consumer.
type EventChan struct {
	mu sync.Mutex
	ch chan CallEvent
}

// NewEventChan creates an EventChan buffering up to size events.
func NewEventChan(size int) *EventChan {
	return &EventChan{
		ch: make(chan CallEvent, size),
	}
}

// Publish appends evt without blocking. On overflow the oldest buffered
// event is dropped.
func (ec *EventChan) Publish(evt CallEvent) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	select {
	case ec.ch <- evt:
		return
	default:
	}

	// Full: evict the oldest, then retry once.
	select {
	case dropped := <-ec.ch:
		log.Printf("[Events] buffer full, dropped event %s", dropped.ID)
	default:
	}
	select {
	case ec.ch <- evt:
	default:
	}
}

// DrainAll removes and returns every buffered event in delivery order
// without blocking.
func (ec *EventChan) DrainAll() []CallEvent {
	var out []CallEvent
	for {
		select {
		case evt := <-ec.ch:
			out = append(out, evt)
		default:
			return out
		}
	}
}

// Chan exposes the receive side for consumers that prefer to select on
// delivery (e.g., a live feed).
func (ec *EventChan) Chan() <-chan CallEvent {
	return ec.ch
}

// Clear discards all buffered events.
func (ec *EventChan) Clear() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for {
		select {
		case <-ec.ch:
		default:
			return
		}
	}
}
