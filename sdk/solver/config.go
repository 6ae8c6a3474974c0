package solver

import (
	"errors"
	"fmt"
	"time"
)

// SamplingMode controls how opponent actions are handled during traversal.
type SamplingMode uint8

const (
	// SamplingModeExternal samples one opponent action per node and
	// enumerates the traverser's own actions.
	SamplingModeExternal SamplingMode = iota
	// SamplingModeFullTraversal enumerates every action; only chance is
	// sampled.
	SamplingModeFullTraversal
)

func (m SamplingMode) String() string {
	switch m {
	case SamplingModeExternal:
		return "external"
	case SamplingModeFullTraversal:
		return "full"
	default:
		return "unknown"
	}
}

// ParseSamplingMode accepts the names produced by String.
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch s {
	case "external", "":
		return SamplingModeExternal, nil
	case "full":
		return SamplingModeFullTraversal, nil
	default:
		return 0, fmt.Errorf("unknown sampling mode %q", s)
	}
}

// AbstractionConfig sizes the hold'em card abstraction. Values must match
// between training and runtime consumption of a blueprint.
type AbstractionConfig struct {
	// PreflopBucketCount controls how many distinct hole-card classes the
	// solver maintains before shared cards are exposed.
	PreflopBucketCount int `json:"preflop_bucket_count" yaml:"preflop_bucket_count"`

	// PostflopBucketCount controls how many buckets hole and board cards map
	// into once the flop is out.
	PostflopBucketCount int `json:"postflop_bucket_count" yaml:"postflop_bucket_count"`
}

// Validate ensures the abstraction is well-formed before training begins.
func (c AbstractionConfig) Validate() error {
	if c.PreflopBucketCount <= 0 {
		return errors.New("preflop bucket count must be > 0")
	}
	if c.PostflopBucketCount <= 0 {
		return errors.New("postflop bucket count must be > 0")
	}
	return nil
}

// DrawConfig shapes the lowball draw game.
type DrawConfig struct {
	// DrawRounds is 1 for single draw and 3 for triple draw.
	DrawRounds int  `json:"draw_rounds" yaml:"draw_rounds"`
	Betting    bool `json:"betting" yaml:"betting"`
	// MaxBets caps bets and raises per betting round.
	MaxBets int `json:"max_bets" yaml:"max_bets"`
}

// Validate ensures the draw game is playable.
func (c DrawConfig) Validate() error {
	if c.DrawRounds < 1 || c.DrawRounds > 3 {
		return errors.New("draw rounds must be between 1 and 3")
	}
	if c.Betting && c.MaxBets <= 0 {
		return errors.New("max bets must be > 0 when betting")
	}
	return nil
}

// TrainingConfig aggregates parameters that control MCCFR execution.
type TrainingConfig struct {
	Game           string `json:"game" yaml:"game"`
	Iterations     int    `json:"iterations" yaml:"iterations"`
	Seed           int64  `json:"seed" yaml:"seed"`
	ParallelTables int    `json:"parallel_tables" yaml:"parallel_tables"`
	// CheckpointEvery writes a checkpoint when this much wall time has
	// passed since the last one.
	CheckpointEvery time.Duration `json:"checkpoint_every" yaml:"checkpoint_every"`
	// CheckpointIterations writes a checkpoint every n iterations.
	CheckpointIterations int          `json:"checkpoint_iterations" yaml:"checkpoint_iterations"`
	ProgressEvery        int          `json:"progress_every" yaml:"progress_every"`
	UseCFRPlus           bool         `json:"use_cfr_plus" yaml:"use_cfr_plus"`
	LinearAveraging      bool         `json:"linear_averaging" yaml:"linear_averaging"`
	Sampling             SamplingMode `json:"sampling" yaml:"sampling"`
}

// Validate ensures the training parameters are safe to use.
func (c TrainingConfig) Validate() error {
	if c.Game == "" {
		return errors.New("game is required")
	}
	if c.Iterations <= 0 {
		return errors.New("iterations must be > 0")
	}
	if c.ParallelTables <= 0 {
		return errors.New("parallel tables must be > 0")
	}
	if c.CheckpointEvery < 0 {
		return errors.New("checkpoint interval cannot be negative")
	}
	if c.CheckpointIterations < 0 {
		return errors.New("checkpoint iterations cannot be negative")
	}
	if c.ProgressEvery < 0 {
		return errors.New("progress interval cannot be negative")
	}
	if c.Sampling > SamplingModeFullTraversal {
		return errors.New("invalid sampling mode")
	}
	return nil
}

// DefaultAbstraction returns a conservative abstraction suitable for smoke tests.
func DefaultAbstraction() AbstractionConfig {
	return AbstractionConfig{
		PreflopBucketCount:  10,
		PostflopBucketCount: 10,
	}
}

// DefaultDrawConfig is single draw without betting.
func DefaultDrawConfig() DrawConfig {
	return DrawConfig{DrawRounds: 1, MaxBets: 4}
}

// DefaultTrainingConfig returns a minimal configuration for local experimentation.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Game:            "kuhn",
		Iterations:      1000,
		Seed:            1,
		ParallelTables:  1,
		CheckpointEvery: 5 * time.Minute,
		Sampling:        SamplingModeExternal,
	}
}
