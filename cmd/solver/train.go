package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/drawsolver/cmd/solver/shared"
	"github.com/lox/drawsolver/internal/config"
	"github.com/lox/drawsolver/internal/fileutil"
	"github.com/lox/drawsolver/internal/randutil"
	"github.com/lox/drawsolver/sdk/solver"
)

// TrainCmd trains one or more independent shards and writes the averaged
// blueprint. Flags left at zero keep the config file's value.
type TrainCmd struct {
	Out                  string        `help:"path to write the blueprint (.json, .json.gz, .yaml)" required:""`
	Dir                  string        `help:"checkpoint directory" default:"checkpoints" type:"path"`
	Game                 string        `help:"game to train (kuhn|holdem|lowball)"`
	Iterations           int           `help:"number of MCCFR iterations per shard"`
	Seed                 int64         `help:"random seed"`
	Parallel             int           `help:"number of concurrent tables per iteration"`
	Shards               int           `help:"independent trainers whose regrets are summed at the end"`
	CheckpointEvery      time.Duration `help:"checkpoint wall-clock interval"`
	CheckpointIterations int           `help:"checkpoint interval in iterations"`
	ProgressEvery        int           `help:"log progress every N iterations (0 => iterations/100)"`
	CFRPlus              bool          `help:"enable CFR+ (positive regret matching with linear averaging)"`
	LinearAveraging      bool          `help:"weight the average strategy by iteration"`
	Sampling             string        `help:"sampling mode (external|full)"`
	DrawRounds           int           `help:"lowball draw rounds (1 or 3)"`
	Betting              bool          `help:"add limit betting rounds to lowball"`
	MaxBets              int           `help:"bets and raises allowed per betting round"`
	Resume               bool          `help:"continue from checkpoints in --dir when present"`
	CPUProfile           string        `help:"write CPU profile to file"`
}

func (c *TrainCmd) Run(g *Globals) error {
	logger, cfg, err := g.setup()
	if err != nil {
		return err
	}
	c.override(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	trainCfg, err := cfg.TrainingConfig()
	if err != nil {
		return err
	}

	if c.CPUProfile != "" {
		f, err := os.Create(c.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		logger.Info().Str("path", c.CPUProfile).Msg("CPU profiling enabled")
	}

	if err := fileutil.EnsureDir(c.Dir); err != nil {
		logger.Fatal().Err(err).Str("dir", c.Dir).Msg("create checkpoint directory")
	}

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	shards := cfg.Train.Shards
	start := time.Now()
	logger.Info().
		Str("game", trainCfg.Game).
		Int("iterations", trainCfg.Iterations).
		Int("shards", shards).
		Int("parallel", trainCfg.ParallelTables).
		Bool("cfr_plus", trainCfg.UseCFRPlus).
		Str("sampling", trainCfg.Sampling.String()).
		Msg("starting training run")

	if shards == 1 {
		trainer, err := c.trainer(c.Dir, trainCfg, cfg, logger)
		if err != nil {
			return err
		}
		if err := trainer.Run(ctx, progressLogger(logger)); err != nil {
			return err
		}
		return c.save(trainer.Blueprint(), start, logger)
	}

	trainers := make([]*solver.Trainer, shards)
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range shards {
		shardCfg := trainCfg
		shardCfg.Seed = randutil.Derive(trainCfg.Seed, i)
		shardLogger := logger.With().Int("shard", i).Logger()
		trainer, err := c.trainer(shardDir(c.Dir, i), shardCfg, cfg, shardLogger)
		if err != nil {
			return fmt.Errorf("shard %d: %w", i, err)
		}
		trainers[i] = trainer
		eg.Go(func() error {
			return trainer.Run(egCtx, progressLogger(shardLogger))
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	srcs := make([]string, shards)
	iterations := 0
	for i, t := range trainers {
		src, err := solver.CheckpointRegretsPath(shardDir(c.Dir, i))
		if err != nil {
			return fmt.Errorf("shard %d: %w", i, err)
		}
		srcs[i] = src
		iterations += int(t.Iteration())
	}
	merged, stats, err := solver.MergeRegrets(filepath.Join(c.Dir, "regrets.ndjson"), srcs, logger)
	if err != nil {
		return fmt.Errorf("merge shards: %w", err)
	}
	logger.Info().Int("info_sets", len(merged)).Int("files", stats.Files).Int("corrupt", stats.Corrupt).Msg("merged shard regrets")

	bp := solver.BlueprintFromSnapshots(merged)
	bp.RunID = uuid.NewString()
	bp.Game = trainCfg.Game
	bp.GeneratedAt = time.Now().UTC()
	bp.Iterations = iterations
	bp.Abstraction = cfg.Abstraction()
	bp.Draw = cfg.Draw()
	return c.save(bp, start, logger)
}

// override copies non-zero flags over the loaded config.
func (c *TrainCmd) override(cfg *config.Config) {
	t := &cfg.Train
	if c.Game != "" {
		t.Game = c.Game
	}
	if c.Iterations > 0 {
		t.Iterations = c.Iterations
	}
	if c.Seed != 0 {
		t.Seed = c.Seed
	}
	if c.Parallel > 0 {
		t.ParallelTables = c.Parallel
	}
	if c.Shards > 0 {
		t.Shards = c.Shards
	}
	if c.CheckpointEvery > 0 {
		t.CheckpointEvery = c.CheckpointEvery.String()
	}
	if c.CheckpointIterations > 0 {
		t.CheckpointIterations = c.CheckpointIterations
	}
	if c.ProgressEvery > 0 {
		t.ProgressEvery = c.ProgressEvery
	}
	if c.CFRPlus {
		t.CFRPlus = true
	}
	if c.LinearAveraging {
		t.LinearAveraging = true
	}
	if c.Sampling != "" {
		t.Sampling = c.Sampling
	}
	if c.DrawRounds > 0 {
		t.DrawRounds = c.DrawRounds
	}
	if c.Betting {
		t.Betting = true
	}
	if c.MaxBets > 0 {
		t.MaxBets = c.MaxBets
	}
	if t.ProgressEvery == 0 {
		t.ProgressEvery = max(t.Iterations/100, 1)
	}
}

// trainer creates a fresh trainer for dir, or resumes the one checkpointed
// there when --resume is set.
func (c *TrainCmd) trainer(dir string, trainCfg solver.TrainingConfig, cfg *config.Config, logger zerolog.Logger) (*solver.Trainer, error) {
	opts := []solver.Option{solver.WithLogger(logger)}

	if c.Resume {
		_, err := os.Stat(filepath.Join(dir, "checkpoint.json"))
		switch {
		case err == nil:
			trainer, err := solver.LoadTrainerFromCheckpoint(dir, opts...)
			if err != nil {
				return nil, fmt.Errorf("load checkpoint: %w", err)
			}
			if err := trainer.SetTotalIterations(trainCfg.Iterations); err != nil {
				return nil, err
			}
			trainer.SetProgressEvery(trainCfg.ProgressEvery)
			resumed := trainer.TrainingConfig()
			if resumed.Game != trainCfg.Game {
				logger.Warn().Str("requested", trainCfg.Game).Str("checkpoint", resumed.Game).Msg("cannot change game when resuming from checkpoint; keeping original")
			}
			if resumed.Sampling != trainCfg.Sampling {
				logger.Warn().Str("requested", trainCfg.Sampling.String()).Str("checkpoint", resumed.Sampling.String()).Msg("cannot change sampling mode when resuming from checkpoint; keeping original")
			}
			if resumed.UseCFRPlus != trainCfg.UseCFRPlus {
				logger.Warn().Bool("checkpoint_cfr_plus", resumed.UseCFRPlus).Msg("cannot change regret mode when resuming from checkpoint; keeping original")
			}
			trainer.EnableCheckpoints(dir)
			logger.Info().Int64("resume_iteration", trainer.Iteration()).Str("checkpoint", dir).Msg("resuming training run")
			return trainer, nil
		case errors.Is(err, fs.ErrNotExist):
			logger.Info().Str("dir", dir).Msg("no checkpoint to resume; starting fresh")
		default:
			return nil, err
		}
	}

	trainer, err := solver.NewTrainer(trainCfg, cfg.Abstraction(), cfg.Draw(), opts...)
	if err != nil {
		return nil, err
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		logger.Fatal().Err(err).Str("dir", dir).Msg("create checkpoint directory")
	}
	trainer.EnableCheckpoints(dir)
	return trainer, nil
}

func (c *TrainCmd) save(bp *solver.Blueprint, start time.Time, logger zerolog.Logger) error {
	logger.Info().Dur("duration", time.Since(start)).Int("infosets", len(bp.Strategies)).Msg("training completed")
	if err := bp.Save(c.Out); err != nil {
		return fmt.Errorf("save blueprint: %w", err)
	}
	logger.Info().Str("path", c.Out).Msg("blueprint saved")
	return nil
}

func shardDir(root string, shard int) string {
	return filepath.Join(root, fmt.Sprintf("shard-%d", shard))
}

func progressLogger(logger zerolog.Logger) func(solver.Progress) {
	return func(p solver.Progress) {
		logger.Info().
			Int("iteration", p.Iteration).
			Int("infosets", p.RegretTableSize).
			Int("checkpoints", p.Checkpoints).
			Int64("nodes", p.Stats.NodesVisited).
			Int64("terminals", p.Stats.TerminalNodes).
			Int("max_depth", p.Stats.MaxDepth).
			Dur("iter_time", p.Stats.IterationTime).
			Msg("progress")
	}
}
