package coordinator

import (
	"context"
	"fmt"

	"github.com/lox/drawsolver/internal/store"
)

// WorkerStats counts what one worker did.
type WorkerStats struct {
	ID       int   `yaml:"id"`
	Items    int   `yaml:"items"`
	Computed int   `yaml:"computed"`
	Hits     int64 `yaml:"hits"`
	Misses   int64 `yaml:"misses"`
	Received int   `yaml:"received"`
	Promoted int   `yaml:"promoted"`
}

// Worker owns a private cache and append log. Its Get and Put methods make
// it usable directly as a memo cache by solver code; it must only be used
// from the goroutine that runs the worker.
type Worker[V any] struct {
	id    int
	cache map[string]V
	log   *store.Log[V]
	bus   *Bus[V]
	inbox <-chan Entry[V]
	stats WorkerStats
}

// ID returns the worker index.
func (w *Worker[V]) ID() int { return w.id }

// Get drains pending broadcasts, then looks key up locally.
func (w *Worker[V]) Get(_ context.Context, key string) (V, bool, error) {
	w.drain()
	v, ok := w.cache[key]
	if ok {
		w.stats.Hits++
	} else {
		w.stats.Misses++
	}
	return v, ok, nil
}

// Put records a newly computed value: cached locally, appended to the
// worker's log and broadcast to siblings. Keys already cached are ignored.
func (w *Worker[V]) Put(_ context.Context, key string, v V) error {
	if _, ok := w.cache[key]; ok {
		return nil
	}
	w.cache[key] = v
	if err := w.log.Append(key, v); err != nil {
		return fmt.Errorf("worker %d: %w", w.id, err)
	}
	w.stats.Computed++
	w.bus.Publish(Entry[V]{From: w.id, Key: key, Value: v})
	return nil
}

// Promote caches a value fetched from a slower tier. It is neither logged
// nor broadcast, and does not count as computed.
func (w *Worker[V]) Promote(_ context.Context, key string, v V) error {
	if _, ok := w.cache[key]; ok {
		return nil
	}
	w.cache[key] = v
	w.stats.Promoted++
	return nil
}

// Len returns the number of cached keys.
func (w *Worker[V]) Len() int { return len(w.cache) }

func (w *Worker[V]) drain() {
	for {
		select {
		case e := <-w.inbox:
			if _, ok := w.cache[e.Key]; !ok {
				w.cache[e.Key] = e.Value
				w.stats.Received++
			}
		default:
			return
		}
	}
}
