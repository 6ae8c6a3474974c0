package coordinator

import (
	"sync/atomic"
)

// Entry is a computed key/value pair shared between workers.
type Entry[V any] struct {
	From  int
	Key   string
	Value V
}

// Bus fans newly computed entries out to every other worker. Publishing
// never blocks: when a subscriber's inbox is full the entry is dropped and
// that worker recomputes the key if it ever needs it.
type Bus[V any] struct {
	inboxes   []chan Entry[V]
	published atomic.Int64
	dropped   atomic.Int64
}

// NewBus creates one inbox of size buffer per worker.
func NewBus[V any](workers, buffer int) *Bus[V] {
	b := &Bus[V]{inboxes: make([]chan Entry[V], workers)}
	for i := range b.inboxes {
		b.inboxes[i] = make(chan Entry[V], buffer)
	}
	return b
}

// Publish sends e to every inbox except the publisher's own.
func (b *Bus[V]) Publish(e Entry[V]) {
	b.published.Add(1)
	for id, inbox := range b.inboxes {
		if id == e.From {
			continue
		}
		select {
		case inbox <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Inbox returns worker id's receive channel.
func (b *Bus[V]) Inbox(id int) <-chan Entry[V] {
	return b.inboxes[id]
}

// Published counts Publish calls.
func (b *Bus[V]) Published() int64 { return b.published.Load() }

// Dropped counts deliveries skipped because an inbox was full.
func (b *Bus[V]) Dropped() int64 { return b.dropped.Load() }
