package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/drawsolver/cmd/solver/shared"
	"github.com/lox/drawsolver/internal/config"
	"github.com/lox/drawsolver/internal/coordinator"
	"github.com/lox/drawsolver/internal/discard"
	"github.com/lox/drawsolver/internal/fileutil"
	"github.com/lox/drawsolver/internal/randutil"
	"github.com/lox/drawsolver/internal/store"
	"github.com/lox/drawsolver/poker"
)

// DiscardCmd fills the discard table for every canonical hand. Flags left
// at zero keep the config file's value.
type DiscardCmd struct {
	Dir           string        `help:"table directory" type:"path"`
	Rounds        int           `help:"draw rounds remaining after this discard" default:"-1"`
	Workers       int           `help:"worker count (0 => one per CPU)"`
	Samples       int           `help:"Monte-Carlo samples per discard (0 => exhaustive)"`
	Objective     string        `help:"what to optimise (score|win)"`
	OpponentDraws int           `help:"cards the opponent draws for --objective=win" default:"-1"`
	Opponents     int           `help:"opponent samples per final hand for --objective=win"`
	Seed          int64         `help:"random seed for sampled runs"`
	Store         string        `help:"shared result store (memory|redis|postgres)"`
	Limit         int           `help:"only solve the first N canonical hands"`
	NoScores      bool          `name:"no-scores" help:"skip writing scores.ndjson"`
	ProgressEvery time.Duration `help:"progress log interval" default:"10s"`
}

func (c *DiscardCmd) Run(g *Globals) error {
	logger, cfg, err := g.setup()
	if err != nil {
		return err
	}
	if c.Dir != "" {
		cfg.Discard.Dir = c.Dir
	}
	if c.Rounds >= 0 {
		cfg.Discard.Rounds = c.Rounds
	}
	if c.Workers > 0 {
		cfg.Discard.Workers = c.Workers
	}
	if c.Samples > 0 {
		cfg.Discard.Samples = c.Samples
	}
	if c.Objective != "" {
		cfg.Discard.Objective = c.Objective
	}
	if c.OpponentDraws >= 0 {
		cfg.Discard.OpponentDraws = c.OpponentDraws
	}
	if c.Opponents > 0 {
		cfg.Discard.Opponents = c.Opponents
	}
	if c.Seed != 0 {
		cfg.Train.Seed = c.Seed
	}
	if c.Store != "" {
		cfg.Store.Backend = c.Store
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := cfg.Discard.Dir
	if err := fileutil.EnsureDir(dir); err != nil {
		logger.Fatal().Err(err).Str("dir", dir).Msg("create table directory")
	}

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	rounds := cfg.Discard.Rounds
	samples := cfg.Discard.Samples
	seed := cfg.Train.Seed
	newObjective := objectiveFactory(cfg.Discard)
	tagged, err := newObjective(seed)
	if err != nil {
		return err
	}
	tag := tagged.Tag()

	table := fmt.Sprintf("discard-r%d", rounds)
	if samples > 0 {
		table += fmt.Sprintf("-s%d", samples)
	}
	if tag != "" {
		table += "-" + strings.ToLower(tag)
	}
	if samples == 0 && tag != "" {
		logger.Warn().Str("objective", tag).Msg("exhaustive win probability samples opponents for every final hand; expect a long run")
	}

	hands := discard.CanonicalHands()
	if c.Limit > 0 && c.Limit < len(hands) {
		hands = hands[:c.Limit]
	}

	coord := coordinator.New[poker.Hand, discard.Result](coordinator.Options{
		Dir:           dir,
		Table:         table,
		Workers:       cfg.Discard.Workers,
		ProgressEvery: c.ProgressEvery,
		Logger:        logger,
	})

	var remote *discard.KVCache
	complete := false
	if cfg.Store.Backend != "memory" {
		kv, err := store.Open(ctx, cfg.StoreOptions())
		if err != nil {
			return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
		}
		defer kv.Close()
		remote = discard.NewKVCache(kv, cfg.Store.Prefix)
		if complete, err = remote.Complete(ctx, table); err != nil {
			return fmt.Errorf("check %s store: %w", cfg.Store.Backend, err)
		}
		logger.Info().
			Str("backend", cfg.Store.Backend).
			Str("prefix", cfg.Store.Prefix).
			Bool("complete", complete).
			Msg("using shared result store")

		coord.WithPreload(func(ctx context.Context, seed map[string]discard.Result) (int, error) {
			return remote.Preload(ctx, seed, func(p discard.KeyParts) bool {
				return p.Rounds <= rounds && (p.Samples > 0) == (samples > 0) && p.Objective == tag
			})
		})
	}

	factory := func(w *coordinator.Worker[discard.Result]) (coordinator.Handler[poker.Hand], error) {
		var cache discard.Cache = w
		if remote != nil {
			cache = discard.Tiered{w, remote}
		}
		workerSeed := randutil.Derive(seed, w.ID())
		objective, err := newObjective(randutil.Derive(workerSeed, 0))
		if err != nil {
			return nil, err
		}
		opts := []discard.Option{
			discard.WithLogger(logger.With().Int("worker", w.ID()).Logger()),
			discard.WithObjective(objective),
		}
		var ds *discard.Solver
		if samples > 0 {
			ds = discard.NewMonteCarlo(cache, samples, randutil.New(workerSeed), opts...)
		} else {
			ds = discard.New(cache, opts...)
		}
		return func(ctx context.Context, hand poker.Hand) error {
			_, err := ds.BestDiscard(ctx, hand, poker.Remaining(hand), rounds)
			return err
		}, nil
	}

	summary, runErr := coord.Run(ctx, hands, factory)
	logger.Info().
		Str("table", coord.TablePath()).
		Int("keys", summary.Keys).
		Int("computed", summary.Computed).
		Int("preloaded", summary.Preloaded).
		Int("promoted", summary.Promoted).
		Str("summary", coord.SummaryPath()).
		Msg("discard table written")
	if runErr != nil {
		return runErr
	}

	if remote != nil && !complete {
		if err := publish(ctx, remote, coord.TablePath(), table, summary.RunID, c.Limit == 0, logger); err != nil {
			return err
		}
	}

	if c.NoScores {
		return nil
	}
	return writeScores(filepath.Join(dir, "scores.ndjson"), logger)
}

// objectiveFactory returns a constructor for the configured objective. Each
// worker gets its own because the win probability carries an rng.
func objectiveFactory(cfg config.DiscardConfig) func(seed int64) (discard.Objective, error) {
	return func(seed int64) (discard.Objective, error) {
		if cfg.Objective != "win" {
			return discard.LowScore{}, nil
		}
		return discard.NewWinProbability(cfg.OpponentDraws, cfg.Opponents, randutil.New(seed))
	}
}

// publish pushes the local table entries the shared store lacks and, for a
// run over every canonical hand, marks the table complete.
func publish(ctx context.Context, remote *discard.KVCache, path, table, runID string, full bool, logger zerolog.Logger) error {
	entries := make(map[string]discard.Result)
	if _, err := store.Load(path, entries, logger); err != nil {
		return fmt.Errorf("reload table: %w", err)
	}
	n, err := remote.Publish(ctx, entries)
	if err != nil {
		return fmt.Errorf("publish table: %w", err)
	}
	if full {
		if err := remote.MarkComplete(ctx, table, runID); err != nil {
			return fmt.Errorf("mark table complete: %w", err)
		}
	}
	logger.Info().Str("table", table).Int("published", n).Bool("complete", full).Msg("shared store updated")
	return nil
}

// writeScores writes the canonical key to lowball score table.
func writeScores(path string, logger zerolog.Logger) error {
	table, err := discard.ScoreTable()
	if err != nil {
		return err
	}
	entries := make(map[string]poker.Score, len(table))
	for k, v := range table {
		entries[string(k)] = v
	}
	if err := store.WriteSnapshot(path, entries); err != nil {
		return fmt.Errorf("write scores: %w", err)
	}
	logger.Info().Str("path", path).Int("keys", len(entries)).Msg("score table written")
	return nil
}
