package solver

import (
	"sort"
	"sync"

	"github.com/lox/drawsolver/internal/store"
)

// RegretEntry accumulates regrets and strategy sums for one information
// set. Slices are indexed by action and sized on first use.
type RegretEntry struct {
	Actions     []string
	RegretSum   []float64
	StrategySum []float64
	mutex       sync.Mutex
}

// RegretUpdateOptions configures how regrets and strategy sums are accumulated.
type RegretUpdateOptions struct {
	// ClampNegativeRegrets floors cumulative regrets at zero (CFR+).
	ClampNegativeRegrets bool
	// LinearAveraging weights strategy contributions by iteration.
	LinearAveraging bool
	Iteration       int
}

func (e *RegretEntry) ensureSize(actions []string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	n := len(actions)
	if len(e.RegretSum) >= n {
		return
	}
	missing := n - len(e.RegretSum)
	e.Actions = append([]string(nil), actions...)
	e.RegretSum = append(e.RegretSum, make([]float64, missing)...)
	e.StrategySum = append(e.StrategySum, make([]float64, missing)...)
}

// Strategy returns the current regret-matching distribution for the node.
func (e *RegretEntry) Strategy() []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return normalisePositive(e.RegretSum)
}

// Update accumulates regrets and strategy sums for the node. reachWeight is
// the updating player's own reach probability.
func (e *RegretEntry) Update(regret []float64, strategy []float64, reachWeight float64, opts RegretUpdateOptions) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	weight := reachWeight
	if opts.LinearAveraging {
		weight *= float64(max(opts.Iteration, 1))
	}
	for i := range regret {
		e.RegretSum[i] += regret[i]
		if opts.ClampNegativeRegrets && e.RegretSum[i] < 0 {
			e.RegretSum[i] = 0
		}
		e.StrategySum[i] += weight * strategy[i]
	}
}

// AverageStrategy returns StrategySum normalised to a distribution, uniform
// when nothing has been accumulated.
func (e *RegretEntry) AverageStrategy() []float64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return normalisePositive(e.StrategySum)
}

// normalisePositive drops non-positive values and normalises the rest,
// falling back to uniform.
func normalisePositive(values []float64) []float64 {
	out := make([]float64, len(values))
	total := 0.0
	for i, v := range values {
		if v > 0 {
			out[i] = v
			total += v
		}
	}
	if total <= 0 {
		if len(out) == 0 {
			return out
		}
		v := 1.0 / float64(len(out))
		for i := range out {
			out[i] = v
		}
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

const regretTableShardCount = 64
const regretTableShardMask = regretTableShardCount - 1

type regretShard struct {
	mu      sync.RWMutex
	entries map[string]*RegretEntry
}

// RegretTable maintains thread-safe entries keyed by info set using sharded
// maps. Entries are created lazily and never removed.
type RegretTable struct {
	shards [regretTableShardCount]regretShard
}

// NewRegretTable returns an empty regret table ready for use.
func NewRegretTable() *RegretTable {
	table := &RegretTable{}
	for i := 0; i < regretTableShardCount; i++ {
		table.shards[i].entries = make(map[string]*RegretEntry)
	}
	return table
}

// Get returns the entry for key, creating it sized for actions if missing.
func (t *RegretTable) Get(key string, actions []string) *RegretEntry {
	shard := t.shardFor(key)

	shard.mu.RLock()
	entry, ok := shard.entries[key]
	shard.mu.RUnlock()
	if ok {
		entry.ensureSize(actions)
		return entry
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if entry, ok = shard.entries[key]; ok {
		entry.ensureSize(actions)
		return entry
	}

	entry = &RegretEntry{}
	entry.ensureSize(actions)
	shard.entries[key] = entry
	return entry
}

// Lookup returns the entry for key without creating it.
func (t *RegretTable) Lookup(key string) (*RegretEntry, bool) {
	shard := t.shardFor(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	entry, ok := shard.entries[key]
	return entry, ok
}

// Entries exposes a snapshot of the underlying table for serialisation.
func (t *RegretTable) Entries() map[string]*RegretEntry {
	out := make(map[string]*RegretEntry)
	for i := 0; i < regretTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		for k, v := range shard.entries {
			out[k] = v
		}
		shard.mu.RUnlock()
	}
	return out
}

// Keys returns every info set key in sorted order.
func (t *RegretTable) Keys() []string {
	entries := t.Entries()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of info sets tracked.
func (t *RegretTable) Size() int {
	total := 0
	for i := 0; i < regretTableShardCount; i++ {
		shard := &t.shards[i]
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

func (t *RegretTable) shardFor(key string) *regretShard {
	h := hashKey(key)
	return &t.shards[h&regretTableShardMask]
}

// RegretSnapshot is the persisted form of a RegretEntry.
type RegretSnapshot struct {
	Actions     []string  `json:"actions"`
	RegretSum   []float64 `json:"regret_sum"`
	StrategySum []float64 `json:"strategy_sum"`
}

// SumSnapshots adds b into a elementwise. It is the combine step used when
// merging tables trained independently; mismatched shapes keep a.
func SumSnapshots(a, b RegretSnapshot) RegretSnapshot {
	out := RegretSnapshot{
		Actions:     a.Actions,
		RegretSum:   store.SumFloats(a.RegretSum, b.RegretSum),
		StrategySum: store.SumFloats(a.StrategySum, b.StrategySum),
	}
	return out
}

func (e *RegretEntry) snapshot() RegretSnapshot {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return RegretSnapshot{
		Actions:     append([]string(nil), e.Actions...),
		RegretSum:   append([]float64(nil), e.RegretSum...),
		StrategySum: append([]float64(nil), e.StrategySum...),
	}
}

func newRegretEntryFromSnapshot(snap RegretSnapshot) *RegretEntry {
	return &RegretEntry{
		Actions:     append([]string(nil), snap.Actions...),
		RegretSum:   append([]float64(nil), snap.RegretSum...),
		StrategySum: append([]float64(nil), snap.StrategySum...),
	}
}

// Snapshot copies every entry into its persisted form.
func (t *RegretTable) Snapshot() map[string]RegretSnapshot {
	entries := t.Entries()
	out := make(map[string]RegretSnapshot, len(entries))
	for k, e := range entries {
		out[k] = e.snapshot()
	}
	return out
}

// RestoreRegretTable rebuilds a table from persisted snapshots.
func RestoreRegretTable(snaps map[string]RegretSnapshot) *RegretTable {
	table := NewRegretTable()
	for key, snap := range snaps {
		shard := table.shardFor(key)
		shard.mu.Lock()
		shard.entries[key] = newRegretEntryFromSnapshot(snap)
		shard.mu.Unlock()
	}
	return table
}

func hashKey(key string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	var hash uint32 = offset32
	for i := 0; i < len(key); i++ {
		hash ^= uint32(key[i])
		hash *= prime32
	}
	return hash
}
