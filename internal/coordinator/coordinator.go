// Package coordinator fans a batch of independent items out to a pool of
// workers that share computed results through per-worker caches.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/lox/drawsolver/internal/fileutil"
	"github.com/lox/drawsolver/internal/store"
)

// Handler processes one item.
type Handler[T any] func(ctx context.Context, item T) error

// Factory builds the handler for one worker. It is called on the worker's
// goroutine, so per-worker state (solvers, RNGs) can be created here and
// bound to the worker's cache.
type Factory[T, V any] func(w *Worker[V]) (Handler[T], error)

// PreloadFunc adds entries held outside the table directory to seed,
// typically from a shared store. It must leave existing keys alone and
// returns how many it added.
type PreloadFunc[V any] func(ctx context.Context, seed map[string]V) (int, error)

// Options configures a Coordinator.
type Options struct {
	// Dir holds <Table>.ndjson and the per-worker <Table>.w<id>.ndjson logs.
	Dir   string
	Table string
	// Workers defaults to runtime.NumCPU().
	Workers int
	// InboxSize bounds each worker's broadcast inbox.
	InboxSize int
	// ProgressEvery enables a periodic progress log line.
	ProgressEvery time.Duration
	Clock         quartz.Clock
	Logger        zerolog.Logger
}

// Summary reports a finished batch.
type Summary struct {
	RunID     string        `yaml:"run_id"`
	Table     string        `yaml:"table"`
	Items     int           `yaml:"items"`
	Processed int           `yaml:"processed"`
	Computed  int           `yaml:"computed"`
	Keys      int           `yaml:"keys"`
	Published int64         `yaml:"published"`
	Dropped   int64         `yaml:"dropped"`
	Seeded    int           `yaml:"seeded"`
	Preloaded int           `yaml:"preloaded"`
	Promoted  int           `yaml:"promoted"`
	Corrupt   int           `yaml:"corrupt"`
	Duration  time.Duration `yaml:"duration"`
	Error     string        `yaml:"error,omitempty"`
	Workers   []WorkerStats `yaml:"workers"`
}

// Coordinator dispatches items and merges worker output. It never computes
// values itself.
type Coordinator[T, V any] struct {
	opts    Options
	preload PreloadFunc[V]
}

// New returns a coordinator with defaults applied.
func New[T, V any](opts Options) *Coordinator[T, V] {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 4096
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	return &Coordinator[T, V]{opts: opts}
}

// WithPreload sets a hook that warms the seed before workers start.
// Preloaded entries are written beside the worker logs so they reach the
// canonical table at merge time.
func (c *Coordinator[T, V]) WithPreload(fn PreloadFunc[V]) *Coordinator[T, V] {
	c.preload = fn
	return c
}

// TablePath is the canonical merged table.
func (c *Coordinator[T, V]) TablePath() string {
	return filepath.Join(c.opts.Dir, c.opts.Table+".ndjson")
}

// WorkerPath is worker id's append log.
func (c *Coordinator[T, V]) WorkerPath(id int) string {
	return filepath.Join(c.opts.Dir, fmt.Sprintf("%s.w%d.ndjson", c.opts.Table, id))
}

// PreloadPath holds entries added by the preload hook until the merge.
func (c *Coordinator[T, V]) PreloadPath() string {
	return filepath.Join(c.opts.Dir, c.opts.Table+".preload.ndjson")
}

// sidecarGlob matches worker logs and the preload file, never another
// table's files.
func (c *Coordinator[T, V]) sidecarGlob() string {
	return c.opts.Table + ".*.ndjson"
}

// SummaryPath is where Run writes its yaml report.
func (c *Coordinator[T, V]) SummaryPath() string {
	return filepath.Join(c.opts.Dir, c.opts.Table+"-summary.yaml")
}

// Seed loads the canonical table and any worker logs left by an earlier
// run, first-seen-wins.
func (c *Coordinator[T, V]) Seed() (map[string]V, store.LoadStats, error) {
	seed := make(map[string]V)
	stats, err := store.Load(c.TablePath(), seed, c.opts.Logger)
	if err != nil {
		return nil, stats, err
	}
	more, err := store.LoadDir(c.opts.Dir, c.sidecarGlob(), seed, c.opts.Logger)
	stats.Files += more.Files
	stats.Lines += more.Lines
	stats.Records += more.Records
	stats.Duplicates += more.Duplicates
	stats.Corrupt += more.Corrupt
	return seed, stats, err
}

// Run splits items into contiguous slices, one per worker, and runs them.
// Whatever happens to the workers, every worker log is merged into the
// canonical table before Run returns.
func (c *Coordinator[T, V]) Run(ctx context.Context, items []T, factory Factory[T, V]) (Summary, error) {
	logger := c.opts.Logger
	clock := c.opts.Clock
	start := clock.Now()

	summary := Summary{RunID: uuid.NewString(), Table: c.opts.Table, Items: len(items)}

	if err := fileutil.EnsureDir(c.opts.Dir); err != nil {
		return summary, err
	}
	seed, seedStats, err := c.Seed()
	if err != nil {
		return summary, fmt.Errorf("seed %s: %w", c.opts.Table, err)
	}
	summary.Seeded = len(seed)
	summary.Corrupt = seedStats.Corrupt

	if c.preload != nil {
		n, err := c.runPreload(ctx, seed)
		if err != nil {
			return summary, fmt.Errorf("preload %s: %w", c.opts.Table, err)
		}
		summary.Preloaded = n
	}

	workers := c.opts.Workers
	if workers > len(items) {
		workers = len(items)
	}

	bus := NewBus[V](workers, c.opts.InboxSize)
	stats := make([]WorkerStats, workers)
	var progress sync.Map // worker id -> items done

	logger.Info().
		Str("run_id", summary.RunID).
		Str("table", c.opts.Table).
		Int("items", len(items)).
		Int("workers", workers).
		Int("seeded", summary.Seeded).
		Int("preloaded", summary.Preloaded).
		Msg("starting batch")

	runCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	if c.opts.ProgressEvery > 0 {
		clock.TickerFunc(runCtx, c.opts.ProgressEvery, func() error {
			done := 0
			progress.Range(func(_, v any) bool {
				done += v.(int)
				return true
			})
			logger.Info().
				Int("done", done).
				Int("items", len(items)).
				Int64("published", bus.Published()).
				Dur("elapsed", clock.Since(start)).
				Msg("progress")
			return nil
		}, "progress")
	}

	g, gctx := errgroup.WithContext(runCtx)
	per := 0
	remainder := 0
	if workers > 0 {
		per = len(items) / workers
		remainder = len(items) % workers
	}
	offset := 0
	for id := 0; id < workers; id++ {
		n := per
		if id < remainder {
			n++
		}
		slice := items[offset : offset+n]
		offset += n

		w := &Worker[V]{
			id:    id,
			cache: maps.Clone(seed),
			bus:   bus,
			inbox: bus.Inbox(id),
			stats: WorkerStats{ID: id},
		}
		g.Go(func() error {
			defer func() { stats[id] = w.stats }()
			return c.runWorker(gctx, w, slice, factory, &progress)
		})
	}

	runErr := g.Wait()
	stopProgress()

	merged, mergeStats, mergeErr := c.merge(workers)
	if mergeErr != nil {
		logger.Error().Err(mergeErr).Msg("merge failed; worker logs kept")
	}

	summary.Workers = stats
	for _, s := range stats {
		summary.Processed += s.Items
		summary.Computed += s.Computed
		summary.Promoted += s.Promoted
	}
	summary.Keys = len(merged)
	summary.Corrupt += mergeStats.Corrupt
	summary.Published = bus.Published()
	summary.Dropped = bus.Dropped()
	summary.Duration = clock.Since(start)

	err = errors.Join(runErr, mergeErr)
	if err != nil {
		summary.Error = err.Error()
	}
	if werr := c.writeSummary(summary); werr != nil {
		logger.Warn().Err(werr).Msg("write summary")
	}

	logger.Info().
		Str("run_id", summary.RunID).
		Int("processed", summary.Processed).
		Int("computed", summary.Computed).
		Int("keys", summary.Keys).
		Int64("dropped", summary.Dropped).
		Dur("duration", summary.Duration).
		Msg("batch finished")
	return summary, err
}

func (c *Coordinator[T, V]) runWorker(ctx context.Context, w *Worker[V], items []T, factory Factory[T, V], progress *sync.Map) error {
	log, err := store.OpenLog[V](c.WorkerPath(w.id))
	if err != nil {
		return err
	}
	w.log = log
	defer func() {
		if err := log.Close(); err != nil {
			c.opts.Logger.Warn().Err(err).Int("worker", w.id).Msg("close worker log")
		}
	}()

	handle, err := factory(w)
	if err != nil {
		return fmt.Errorf("worker %d setup: %w", w.id, err)
	}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handle(ctx, item); err != nil {
			return fmt.Errorf("worker %d item %d: %w", w.id, i, err)
		}
		w.stats.Items++
		progress.Store(w.id, w.stats.Items)
	}
	return nil
}

// merge folds the canonical table and every worker log into the canonical
// table, first writer wins, then removes the worker logs it consumed.
func (c *Coordinator[T, V]) merge(workers int) (map[string]V, store.LoadStats, error) {
	paths, err := filepath.Glob(filepath.Join(c.opts.Dir, c.sidecarGlob()))
	if err != nil {
		return nil, store.LoadStats{}, err
	}
	sort.Strings(paths)
	srcs := append([]string{c.TablePath()}, paths...)

	merged, stats, err := store.Merge[V](c.TablePath(), srcs, c.opts.Logger)
	if err != nil {
		return nil, stats, err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			c.opts.Logger.Warn().Err(err).Str("file", p).Msg("remove merged worker log")
		}
	}
	c.opts.Logger.Debug().Int("workers", workers).Int("logs", len(paths)).Msg("merged worker logs")
	return merged, stats, nil
}

// runPreload adds the hook's entries that the seed lacks and persists them
// for the merge.
func (c *Coordinator[T, V]) runPreload(ctx context.Context, seed map[string]V) (int, error) {
	extra := make(map[string]V)
	if _, err := c.preload(ctx, extra); err != nil {
		return 0, err
	}
	added := make(map[string]V, len(extra))
	for k, v := range extra {
		if _, ok := seed[k]; ok {
			continue
		}
		seed[k] = v
		added[k] = v
	}
	if len(added) == 0 {
		return 0, nil
	}
	if err := store.WriteSnapshot(c.PreloadPath(), added); err != nil {
		return 0, err
	}
	c.opts.Logger.Debug().Int("entries", len(added)).Str("file", c.PreloadPath()).Msg("preloaded entries")
	return len(added), nil
}

func (c *Coordinator[T, V]) writeSummary(s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(c.SummaryPath(), data, 0o644)
}
