package solver

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/drawsolver/internal/randutil"
)

// TraversalStats captures instrumentation metrics for a single MCCFR iteration.
type TraversalStats struct {
	NodesVisited  int64         `json:"nodes_visited"`
	TerminalNodes int64         `json:"terminal_nodes"`
	MaxDepth      int           `json:"max_depth"`
	IterationTime time.Duration `json:"iteration_time"`
}

// Progress contains metadata emitted during long-running solver operations.
type Progress struct {
	Iteration       int
	RegretTableSize int
	Checkpoints     int
	Stats           TraversalStats
}

// Trainer runs alternating-update MCCFR over a Game.
type Trainer struct {
	game     Game
	absCfg   AbstractionConfig
	drawCfg  DrawConfig
	trainCfg TrainingConfig
	regrets  *RegretTable

	iteration atomic.Int64
	src       *randutil.Counter
	rng       *rand.Rand
	rngSeed   int64
	runID     string

	statsMu sync.Mutex
	stats   TraversalStats

	clock          quartz.Clock
	logger         zerolog.Logger
	checkpointDir  string
	lastCheckpoint time.Time
	checkpoints    int
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithClock replaces the wall clock used for time based checkpoints.
func WithClock(c quartz.Clock) Option {
	return func(t *Trainer) { t.clock = c }
}

// WithLogger sets the trainer's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// NewTrainer constructs a trainer for trainCfg.Game.
func NewTrainer(trainCfg TrainingConfig, absCfg AbstractionConfig, drawCfg DrawConfig, opts ...Option) (*Trainer, error) {
	if err := trainCfg.Validate(); err != nil {
		return nil, err
	}
	game, err := NewGame(trainCfg.Game, absCfg, drawCfg)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		game:     game,
		absCfg:   absCfg,
		drawCfg:  drawCfg,
		trainCfg: trainCfg,
		regrets:  NewRegretTable(),
		runID:    uuid.NewString(),
		clock:    quartz.NewReal(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	seed := trainCfg.Seed
	if seed == 0 {
		seed = t.clock.Now().UnixNano()
	}
	t.seedRNG(seed, 0)
	t.lastCheckpoint = t.clock.Now()
	return t, nil
}

func (t *Trainer) seedRNG(seed int64, draws uint64) {
	t.rngSeed = seed
	t.src = randutil.NewCounter(seed)
	t.src.Skip(draws)
	t.rng = rand.New(t.src)
}

// Game returns the game being trained.
func (t *Trainer) Game() Game { return t.game }

// RunID identifies this training run across checkpoints and blueprints.
func (t *Trainer) RunID() string { return t.runID }

// Regrets exposes the live regret table.
func (t *Trainer) Regrets() *RegretTable { return t.regrets }

// EnableCheckpoints makes Run write checkpoints into dir.
func (t *Trainer) EnableCheckpoints(dir string) {
	t.checkpointDir = dir
}

// Run executes CFR iterations until the configured total is reached or ctx
// is cancelled. When checkpoints are enabled a final checkpoint is written
// either way.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	batch := t.trainCfg.Iterations / 100
	if batch == 0 {
		batch = 1
	}
	if cfg := t.trainCfg.ProgressEvery; cfg > 0 {
		batch = cfg
	}

	t.logger.Info().
		Str("run_id", t.runID).
		Str("game", t.game.Name()).
		Int64("from", t.iteration.Load()).
		Int("to", t.trainCfg.Iterations).
		Str("sampling", t.trainCfg.Sampling.String()).
		Msg("training")

	for i := int(t.iteration.Load()); i < t.trainCfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return t.finish(err)
		}

		startIter := t.clock.Now()
		stats, err := t.singleIteration(ctx, i+1)
		if err != nil {
			if ctx.Err() != nil {
				return t.finish(ctx.Err())
			}
			return err
		}
		stats.IterationTime = t.clock.Since(startIter)
		t.setStats(stats)
		iter := int(t.iteration.Add(1))

		if t.checkpointDue(iter) {
			if err := t.SaveCheckpoint(t.checkpointDir); err != nil {
				return err
			}
		}

		if progress != nil && iter%batch == 0 {
			progress(t.progress())
		}
	}

	if progress != nil {
		progress(t.progress())
	}
	return t.finish(nil)
}

func (t *Trainer) finish(runErr error) error {
	if t.checkpointDir != "" {
		if err := t.SaveCheckpoint(t.checkpointDir); err != nil {
			return err
		}
	}
	return runErr
}

func (t *Trainer) checkpointDue(iter int) bool {
	if t.checkpointDir == "" {
		return false
	}
	if n := t.trainCfg.CheckpointIterations; n > 0 && iter%n == 0 {
		return true
	}
	every := t.trainCfg.CheckpointEvery
	return every > 0 && t.clock.Since(t.lastCheckpoint) >= every
}

func (t *Trainer) progress() Progress {
	return Progress{
		Iteration:       int(t.iteration.Load()),
		RegretTableSize: t.regrets.Size(),
		Checkpoints:     t.checkpoints,
		Stats:           t.Stats(),
	}
}

func (t *Trainer) singleIteration(ctx context.Context, iteration int) (TraversalStats, error) {
	parallel := max(t.trainCfg.ParallelTables, 1)

	statsSlice := make([]TraversalStats, parallel)
	seeds := make([]int64, parallel)
	for i := range seeds {
		seeds[i] = t.rng.Int64()
	}
	opts := RegretUpdateOptions{
		ClampNegativeRegrets: t.trainCfg.UseCFRPlus,
		LinearAveraging:      t.trainCfg.LinearAveraging,
		Iteration:            iteration,
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < parallel; i++ {
		g.Go(func() error {
			rng := randutil.New(seeds[i])
			tc := &tableContext{
				deal:       t.game.Deal(rng),
				stats:      &statsSlice[i],
				sampler:    rng,
				updateOpts: opts,
			}
			for player := 0; player < 2; player++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if _, err := t.traverse(tc, "", player, 0, 1.0, 1.0); err != nil {
					return fmt.Errorf("iteration %d table %d: %w", iteration, i, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TraversalStats{}, err
	}

	aggregated := TraversalStats{}
	for _, s := range statsSlice {
		aggregated.NodesVisited += s.NodesVisited
		aggregated.TerminalNodes += s.TerminalNodes
		aggregated.MaxDepth = max(aggregated.MaxDepth, s.MaxDepth)
	}
	return aggregated, nil
}

func (t *Trainer) setStats(stats TraversalStats) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	t.stats = stats
}

// Stats returns the most recent traversal statistics recorded by the trainer.
func (t *Trainer) Stats() TraversalStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

func (t *Trainer) TrainingConfig() TrainingConfig {
	return t.trainCfg
}

func (t *Trainer) Iteration() int64 {
	return t.iteration.Load()
}

// SetTotalIterations extends (never shrinks) the run, used when resuming.
func (t *Trainer) SetTotalIterations(n int) error {
	current := int(t.iteration.Load())
	if n < current {
		return fmt.Errorf("total iterations %d less than completed %d", n, current)
	}
	t.trainCfg.Iterations = n
	return nil
}

func (t *Trainer) SetProgressEvery(n int) {
	t.trainCfg.ProgressEvery = max(n, 0)
}

// Blueprint materialises the averaged strategy produced so far.
func (t *Trainer) Blueprint() *Blueprint {
	bp := BlueprintFromSnapshots(t.regrets.Snapshot())
	bp.RunID = t.runID
	bp.Game = t.game.Name()
	bp.GeneratedAt = t.clock.Now().UTC()
	bp.Iterations = int(t.iteration.Load())
	bp.Abstraction = t.absCfg
	bp.Draw = t.drawCfg
	return bp
}
