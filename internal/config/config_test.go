package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/drawsolver/sdk/solver"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadHCL(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "solver.hcl", `
store {
  backend   = "redis"
  redis_url = "redis://localhost:6379/0"
}

train {
  game        = "lowball"
  iterations  = 5000
  draw_rounds = 3
  betting     = true
  sampling    = "full"
  checkpoint_every = "90s"
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "discard:", cfg.Store.Prefix)
	assert.Equal(t, "lowball", cfg.Train.Game)
	assert.Equal(t, solver.DrawConfig{DrawRounds: 3, Betting: true, MaxBets: 4}, cfg.Draw())

	train, err := cfg.TrainingConfig()
	require.NoError(t, err)
	assert.Equal(t, 5000, train.Iterations)
	assert.Equal(t, solver.SamplingModeFullTraversal, train.Sampling)
	assert.Equal(t, 90*time.Second, train.CheckpointEvery)
	assert.Equal(t, "tables", cfg.Discard.Dir)
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "solver.toml", `
[train]
game = "holdem"
preflop_buckets = 20
shards = 4

[discard]
rounds = 2
samples = 500
objective = "win"
opponent_draws = 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "holdem", cfg.Train.Game)
	assert.Equal(t, 4, cfg.Train.Shards)
	assert.Equal(t, solver.AbstractionConfig{PreflopBucketCount: 20, PostflopBucketCount: 10}, cfg.Abstraction())
	assert.Equal(t, DiscardConfig{Dir: "tables", Rounds: 2, Samples: 500, Objective: "win", OpponentDraws: 2, Opponents: 200}, cfg.Discard)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(writeFile(t, "solver.hcl", `train { iterations = "many" }`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "solver.toml", `[train`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "solver.json", `{}`))
	assert.ErrorContains(t, err, "unsupported")
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvStore:       "postgres",
		EnvDatabaseURL: "postgres://localhost/solver",
		EnvSeed:        "99",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "postgres://localhost/solver", cfg.StoreOptions().DatabaseURL)
	assert.Equal(t, int64(99), cfg.Train.Seed)

	env[EnvSeed] = "abc"
	assert.Error(t, cfg.ApplyEnv(lookup))
}

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))

	path := writeFile(t, ".env", "DRAWSOLVER_TEST_DOTENV=loaded\n")
	t.Setenv("DRAWSOLVER_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("DRAWSOLVER_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("DRAWSOLVER_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"backend":   func(c *Config) { c.Store.Backend = "s3" },
		"shards":    func(c *Config) { c.Train.Shards = 0 },
		"rounds":    func(c *Config) { c.Discard.Rounds = -1 },
		"sampling":  func(c *Config) { c.Train.Sampling = "outcome" },
		"duration":  func(c *Config) { c.Train.CheckpointEvery = "soon" },
		"buckets":   func(c *Config) { c.Train.PostflopBuckets = -1 },
		"draws":     func(c *Config) { c.Train.DrawRounds = 4 },
		"objective": func(c *Config) { c.Discard.Objective = "ev" },
		"opponent":  func(c *Config) { c.Discard.OpponentDraws = 6 },
		"opponents": func(c *Config) { c.Discard.Opponents = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
