package discard

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lox/drawsolver/internal/store"
)

// Cache memoises results by table key. Implementations decide where the
// entries live; the solver only ever reads before computing and writes once
// after.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Put(ctx context.Context, key string, r Result) error
}

// MemoryCache is a concurrency-safe in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Result
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Result)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, r Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = r
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of the cache contents.
func (c *MemoryCache) Entries() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Result, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// KVCache stores msgpack encoded results in an external key-value store.
// Store errors are returned as is; they are fatal for the batch.
type KVCache struct {
	kv     store.KV
	prefix string
}

// NewKVCache wraps kv, namespacing every key with prefix.
func NewKVCache(kv store.KV, prefix string) *KVCache {
	return &KVCache{kv: kv, prefix: prefix}
}

func (c *KVCache) Get(ctx context.Context, key string) (Result, bool, error) {
	data, ok, err := c.kv.Get(ctx, c.prefix+key)
	if err != nil || !ok {
		return Result{}, false, err
	}
	var r Result
	if err := Unmarshal(data, &r); err != nil {
		return Result{}, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return r, true, nil
}

func (c *KVCache) Put(ctx context.Context, key string, r Result) error {
	data, err := Marshal(&r)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return c.kv.Set(ctx, c.prefix+key, data)
}

// Preload copies entries under the cache prefix into dst in a single batch
// read. Keys already in dst are kept, as are keys match rejects; a nil match
// accepts every result key. Keys that are not table keys are skipped.
func (c *KVCache) Preload(ctx context.Context, dst map[string]Result, match func(KeyParts) bool) (int, error) {
	keys, err := c.kv.Keys(ctx, c.prefix+"*")
	if err != nil {
		return 0, err
	}
	wanted := keys[:0]
	for _, k := range keys {
		key := strings.TrimPrefix(k, c.prefix)
		if _, ok := dst[key]; ok {
			continue
		}
		parts, err := ParseKey(key)
		if err != nil || (match != nil && !match(parts)) {
			continue
		}
		wanted = append(wanted, k)
	}
	if len(wanted) == 0 {
		return 0, nil
	}
	values, err := c.kv.GetMany(ctx, wanted)
	if err != nil {
		return 0, err
	}
	n := 0
	for k, data := range values {
		var r Result
		if err := Unmarshal(data, &r); err != nil {
			return n, fmt.Errorf("decode %q: %w", k, err)
		}
		dst[strings.TrimPrefix(k, c.prefix)] = r
		n++
	}
	return n, nil
}

// Publish writes the entries the store does not hold yet in one batch and
// returns how many it wrote.
func (c *KVCache) Publish(ctx context.Context, entries map[string]Result) (int, error) {
	existing, err := c.kv.Keys(ctx, c.prefix+"*")
	if err != nil {
		return 0, err
	}
	have := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		have[k] = struct{}{}
	}
	batch := make(map[string][]byte)
	for key, r := range entries {
		if _, ok := have[c.prefix+key]; ok {
			continue
		}
		data, err := Marshal(&r)
		if err != nil {
			return 0, fmt.Errorf("encode %q: %w", key, err)
		}
		batch[c.prefix+key] = data
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := c.kv.SetMany(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (c *KVCache) completeKey(table string) string {
	return c.prefix + "@complete/" + table
}

// Complete reports whether a finished run has published table.
func (c *KVCache) Complete(ctx context.Context, table string) (bool, error) {
	return c.kv.Exists(ctx, c.completeKey(table))
}

// MarkComplete records that table has been fully published by runID.
func (c *KVCache) MarkComplete(ctx context.Context, table, runID string) error {
	return c.kv.Set(ctx, c.completeKey(table), []byte(runID))
}

// Promoter takes values read from a slower tier without treating them as
// new work.
type Promoter interface {
	Promote(ctx context.Context, key string, r Result) error
}

// Tiered reads from the first cache that has a key and writes to all of
// them. Hits are promoted into faster tiers, through Promote when a tier
// offers it.
type Tiered []Cache

func (t Tiered) Get(ctx context.Context, key string) (Result, bool, error) {
	for i, c := range t {
		r, ok, err := c.Get(ctx, key)
		if err != nil {
			return Result{}, false, err
		}
		if !ok {
			continue
		}
		for _, faster := range t[:i] {
			if p, ok := faster.(Promoter); ok {
				err = p.Promote(ctx, key, r)
			} else {
				err = faster.Put(ctx, key, r)
			}
			if err != nil {
				return Result{}, false, err
			}
		}
		return r, true, nil
	}
	return Result{}, false, nil
}

func (t Tiered) Put(ctx context.Context, key string, r Result) error {
	for _, c := range t {
		if err := c.Put(ctx, key, r); err != nil {
			return err
		}
	}
	return nil
}
