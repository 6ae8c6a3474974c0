// Package config loads solver settings from an HCL or TOML file, with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/lox/drawsolver/internal/store"
	"github.com/lox/drawsolver/sdk/solver"
)

// Environment variables that override file values.
const (
	EnvStore       = "DRAWSOLVER_STORE"
	EnvRedisURL    = "DRAWSOLVER_REDIS_URL"
	EnvDatabaseURL = "DRAWSOLVER_DATABASE_URL"
	EnvSeed        = "DRAWSOLVER_SEED"
)

// Config is the complete solver configuration.
type Config struct {
	Store   StoreConfig
	Train   TrainConfig
	Discard DiscardConfig
}

// StoreConfig selects the KV backend used for discard results.
type StoreConfig struct {
	Backend     string `hcl:"backend,optional" toml:"backend"`
	RedisURL    string `hcl:"redis_url,optional" toml:"redis_url"`
	DatabaseURL string `hcl:"database_url,optional" toml:"database_url"`
	Prefix      string `hcl:"prefix,optional" toml:"prefix"`
}

// TrainConfig holds CFR training settings.
type TrainConfig struct {
	Game                 string `hcl:"game,optional" toml:"game"`
	Iterations           int    `hcl:"iterations,optional" toml:"iterations"`
	Seed                 int64  `hcl:"seed,optional" toml:"seed"`
	ParallelTables       int    `hcl:"parallel_tables,optional" toml:"parallel_tables"`
	Shards               int    `hcl:"shards,optional" toml:"shards"`
	CheckpointEvery      string `hcl:"checkpoint_every,optional" toml:"checkpoint_every"`
	CheckpointIterations int    `hcl:"checkpoint_iterations,optional" toml:"checkpoint_iterations"`
	ProgressEvery        int    `hcl:"progress_every,optional" toml:"progress_every"`
	CFRPlus              bool   `hcl:"cfr_plus,optional" toml:"cfr_plus"`
	LinearAveraging      bool   `hcl:"linear_averaging,optional" toml:"linear_averaging"`
	Sampling             string `hcl:"sampling,optional" toml:"sampling"`
	DrawRounds           int    `hcl:"draw_rounds,optional" toml:"draw_rounds"`
	Betting              bool   `hcl:"betting,optional" toml:"betting"`
	MaxBets              int    `hcl:"max_bets,optional" toml:"max_bets"`
	PreflopBuckets       int    `hcl:"preflop_buckets,optional" toml:"preflop_buckets"`
	PostflopBuckets      int    `hcl:"postflop_buckets,optional" toml:"postflop_buckets"`
}

// DiscardConfig holds discard batch settings. Objective is "score" for
// the average lowball score or "win" for the win probability against one
// opponent drawing OpponentDraws cards, estimated from Opponents samples.
type DiscardConfig struct {
	Dir           string `hcl:"dir,optional" toml:"dir"`
	Rounds        int    `hcl:"rounds,optional" toml:"rounds"`
	Workers       int    `hcl:"workers,optional" toml:"workers"`
	Samples       int    `hcl:"samples,optional" toml:"samples"`
	Objective     string `hcl:"objective,optional" toml:"objective"`
	OpponentDraws int    `hcl:"opponent_draws,optional" toml:"opponent_draws"`
	Opponents     int    `hcl:"opponents,optional" toml:"opponents"`
}

// file mirrors Config with optional blocks.
type file struct {
	Store   *StoreConfig   `hcl:"store,block" toml:"store"`
	Train   *TrainConfig   `hcl:"train,block" toml:"train"`
	Discard *DiscardConfig `hcl:"discard,block" toml:"discard"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	train := solver.DefaultTrainingConfig()
	abs := solver.DefaultAbstraction()
	draw := solver.DefaultDrawConfig()
	return &Config{
		Store: StoreConfig{Backend: "memory", Prefix: "discard:"},
		Train: TrainConfig{
			Game:            train.Game,
			Iterations:      train.Iterations,
			Seed:            train.Seed,
			ParallelTables:  train.ParallelTables,
			Shards:          1,
			CheckpointEvery: train.CheckpointEvery.String(),
			Sampling:        train.Sampling.String(),
			DrawRounds:      draw.DrawRounds,
			MaxBets:         draw.MaxBets,
			PreflopBuckets:  abs.PreflopBucketCount,
			PostflopBuckets: abs.PostflopBucketCount,
		},
		Discard: DiscardConfig{Dir: "tables", Rounds: 1, Objective: "score", Opponents: 200},
	}
}

// Load reads filename, choosing the parser by extension. A missing file
// yields Default().
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}

	var f file
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".hcl":
		parser := hclparse.NewParser()
		hf, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
		}
		if diags := gohcl.DecodeBody(hf.Body, nil, &f); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
		}
	case ".toml":
		if _, err := toml.DecodeFile(filename, &f); err != nil {
			return nil, fmt.Errorf("failed to decode TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(filename))
	}

	cfg := &Config{}
	if f.Store != nil {
		cfg.Store = *f.Store
	}
	if f.Train != nil {
		cfg.Train = *f.Train
	}
	if f.Discard != nil {
		cfg.Discard = *f.Discard
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values from Default().
func (c *Config) applyDefaults() {
	def := Default()
	if c.Store.Backend == "" {
		c.Store.Backend = def.Store.Backend
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = def.Store.Prefix
	}

	t, dt := &c.Train, def.Train
	if t.Game == "" {
		t.Game = dt.Game
	}
	if t.Iterations == 0 {
		t.Iterations = dt.Iterations
	}
	if t.Seed == 0 {
		t.Seed = dt.Seed
	}
	if t.ParallelTables == 0 {
		t.ParallelTables = dt.ParallelTables
	}
	if t.Shards == 0 {
		t.Shards = dt.Shards
	}
	if t.CheckpointEvery == "" {
		t.CheckpointEvery = dt.CheckpointEvery
	}
	if t.Sampling == "" {
		t.Sampling = dt.Sampling
	}
	if t.DrawRounds == 0 {
		t.DrawRounds = dt.DrawRounds
	}
	if t.MaxBets == 0 {
		t.MaxBets = dt.MaxBets
	}
	if t.PreflopBuckets == 0 {
		t.PreflopBuckets = dt.PreflopBuckets
	}
	if t.PostflopBuckets == 0 {
		t.PostflopBuckets = dt.PostflopBuckets
	}

	if c.Discard.Dir == "" {
		c.Discard.Dir = def.Discard.Dir
	}
	if c.Discard.Objective == "" {
		c.Discard.Objective = def.Discard.Objective
	}
	if c.Discard.Opponents == 0 {
		c.Discard.Opponents = def.Discard.Opponents
	}
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides file values from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvStore); ok && v != "" {
		c.Store.Backend = v
	}
	if v, ok := lookup(EnvRedisURL); ok && v != "" {
		c.Store.RedisURL = v
	}
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		c.Store.DatabaseURL = v
	}
	if v, ok := lookup(EnvSeed); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		c.Train.Seed = seed
	}
	return nil
}

// Validate checks the values that are not validated by the solver configs.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("invalid store backend %q", c.Store.Backend)
	}
	if c.Train.Shards < 1 {
		return fmt.Errorf("shards must be >= 1 (got %d)", c.Train.Shards)
	}
	if c.Discard.Rounds < 0 {
		return fmt.Errorf("discard rounds must be >= 0 (got %d)", c.Discard.Rounds)
	}
	if c.Discard.Samples < 0 {
		return fmt.Errorf("discard samples must be >= 0 (got %d)", c.Discard.Samples)
	}
	switch c.Discard.Objective {
	case "score", "win":
	default:
		return fmt.Errorf("invalid discard objective %q", c.Discard.Objective)
	}
	if c.Discard.OpponentDraws < 0 || c.Discard.OpponentDraws > 5 {
		return fmt.Errorf("opponent draws must be between 0 and 5 (got %d)", c.Discard.OpponentDraws)
	}
	if c.Discard.Opponents < 1 {
		return fmt.Errorf("opponent samples must be >= 1 (got %d)", c.Discard.Opponents)
	}
	if _, err := c.TrainingConfig(); err != nil {
		return err
	}
	if err := c.Abstraction().Validate(); err != nil {
		return err
	}
	return c.Draw().Validate()
}

// TrainingConfig converts the train block to the trainer's config.
func (c *Config) TrainingConfig() (solver.TrainingConfig, error) {
	mode, err := solver.ParseSamplingMode(c.Train.Sampling)
	if err != nil {
		return solver.TrainingConfig{}, err
	}
	var every time.Duration
	if c.Train.CheckpointEvery != "" {
		every, err = time.ParseDuration(c.Train.CheckpointEvery)
		if err != nil {
			return solver.TrainingConfig{}, fmt.Errorf("checkpoint_every: %w", err)
		}
	}
	cfg := solver.TrainingConfig{
		Game:                 c.Train.Game,
		Iterations:           c.Train.Iterations,
		Seed:                 c.Train.Seed,
		ParallelTables:       c.Train.ParallelTables,
		CheckpointEvery:      every,
		CheckpointIterations: c.Train.CheckpointIterations,
		ProgressEvery:        c.Train.ProgressEvery,
		UseCFRPlus:           c.Train.CFRPlus,
		LinearAveraging:      c.Train.LinearAveraging,
		Sampling:             mode,
	}
	return cfg, cfg.Validate()
}

// Abstraction returns the hold'em bucket configuration.
func (c *Config) Abstraction() solver.AbstractionConfig {
	return solver.AbstractionConfig{
		PreflopBucketCount:  c.Train.PreflopBuckets,
		PostflopBucketCount: c.Train.PostflopBuckets,
	}
}

// Draw returns the lowball draw configuration.
func (c *Config) Draw() solver.DrawConfig {
	return solver.DrawConfig{
		DrawRounds: c.Train.DrawRounds,
		Betting:    c.Train.Betting,
		MaxBets:    c.Train.MaxBets,
	}
}

// StoreOptions returns the options for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:     c.Store.Backend,
		RedisURL:    c.Store.RedisURL,
		DatabaseURL: c.Store.DatabaseURL,
	}
}
