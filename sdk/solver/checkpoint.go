package solver

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lox/drawsolver/internal/fileutil"
	"github.com/lox/drawsolver/internal/store"
)

const (
	checkpointFileVersion = 1
	checkpointMetaFile    = "checkpoint.json"
	checkpointRegretsGlob = "regrets-*.ndjson"
	checkpointSchemaURL   = "https://drawsolver.dev/schemas/checkpoint.json"
)

//go:embed schemas/checkpoint.json
var checkpointSchemaJSON string

var (
	checkpointSchemaOnce sync.Once
	checkpointSchema     *jsonschema.Schema
	checkpointSchemaErr  error
)

// checkpointMeta names the regret table it was written with. Each save
// writes a fresh iteration-stamped table before the meta that points at it,
// so the previous meta and table stay a consistent pair until the rename.
type checkpointMeta struct {
	Version     int               `json:"version"`
	RunID       string            `json:"run_id"`
	Game        string            `json:"game"`
	Iteration   int64             `json:"iteration"`
	RNGSeed     int64             `json:"rng_seed"`
	RNGDraws    uint64            `json:"rng_draws"`
	Regrets     string            `json:"regrets"`
	InfoSets    int               `json:"info_sets"`
	SavedAt     time.Time         `json:"saved_at"`
	Training    TrainingConfig    `json:"training"`
	Abstraction AbstractionConfig `json:"abstraction"`
	Draw        DrawConfig        `json:"draw"`
	Stats       TraversalStats    `json:"stats"`
}

func checkpointRegretsName(iteration int64) string {
	return fmt.Sprintf("regrets-%08d.ndjson", iteration)
}

// CheckpointRegretsPath returns the regret table the checkpoint in dir
// points at.
func CheckpointRegretsPath(dir string) (string, error) {
	meta, err := readCheckpointMeta(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, meta.Regrets), nil
}

// SaveCheckpoint writes the regret table and trainer metadata into dir, then
// removes tables no longer referenced.
func (t *Trainer) SaveCheckpoint(dir string) error {
	if err := fileutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	iteration := t.iteration.Load()
	name, infoSets, err := t.writeCheckpointRegrets(dir, iteration)
	if err != nil {
		return err
	}

	meta := checkpointMeta{
		Version:     checkpointFileVersion,
		RunID:       t.runID,
		Game:        t.game.Name(),
		Iteration:   iteration,
		RNGSeed:     t.rngSeed,
		RNGDraws:    t.src.Draws(),
		Regrets:     name,
		InfoSets:    infoSets,
		SavedAt:     t.clock.Now().UTC(),
		Training:    t.trainCfg,
		Abstraction: t.absCfg,
		Draw:        t.drawCfg,
		Stats:       t.Stats(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, checkpointMetaFile), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	t.pruneCheckpointRegrets(dir, name)

	t.lastCheckpoint = t.clock.Now()
	t.checkpoints++
	t.logger.Debug().
		Str("dir", dir).
		Str("regrets", name).
		Int64("iteration", meta.Iteration).
		Int("info_sets", meta.InfoSets).
		Msg("checkpoint saved")
	return nil
}

func (t *Trainer) writeCheckpointRegrets(dir string, iteration int64) (string, int, error) {
	snaps := t.regrets.Snapshot()
	name := checkpointRegretsName(iteration)
	if err := store.WriteSnapshot(filepath.Join(dir, name), snaps); err != nil {
		return "", 0, fmt.Errorf("write regrets: %w", err)
	}
	return name, len(snaps), nil
}

// pruneCheckpointRegrets removes every table except keep, including ones
// orphaned by a save that never reached its meta rename.
func (t *Trainer) pruneCheckpointRegrets(dir, keep string) {
	paths, err := filepath.Glob(filepath.Join(dir, checkpointRegretsGlob))
	if err != nil {
		t.logger.Warn().Err(err).Str("dir", dir).Msg("list checkpoint tables")
		return
	}
	for _, p := range paths {
		if filepath.Base(p) == keep {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn().Err(err).Str("file", p).Msg("remove stale checkpoint table")
		}
	}
}

func readCheckpointMeta(dir string) (*checkpointMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, checkpointMetaFile))
	if err != nil {
		return nil, err
	}
	return decodeCheckpoint(data)
}

// LoadTrainerFromCheckpoint restores a trainer from a checkpoint directory.
// The restored trainer continues the same random stream, so resuming gives
// the same tables as an uninterrupted run with one parallel table.
func LoadTrainerFromCheckpoint(dir string, opts ...Option) (*Trainer, error) {
	meta, err := readCheckpointMeta(dir)
	if err != nil {
		return nil, err
	}

	trainer, err := NewTrainer(meta.Training, meta.Abstraction, meta.Draw, opts...)
	if err != nil {
		return nil, err
	}

	snaps := make(map[string]RegretSnapshot, meta.InfoSets)
	if _, err := store.Load(filepath.Join(dir, meta.Regrets), snaps, trainer.logger); err != nil {
		return nil, fmt.Errorf("load regrets: %w", err)
	}
	if len(snaps) != meta.InfoSets {
		return nil, fmt.Errorf("checkpoint lists %d info sets, regrets file has %d", meta.InfoSets, len(snaps))
	}

	trainer.runID = meta.RunID
	trainer.iteration.Store(meta.Iteration)
	trainer.stats = meta.Stats
	trainer.seedRNG(meta.RNGSeed, meta.RNGDraws)
	trainer.regrets = RestoreRegretTable(snaps)

	trainer.logger.Info().
		Str("run_id", meta.RunID).
		Int64("iteration", meta.Iteration).
		Int("info_sets", meta.InfoSets).
		Msg("resumed from checkpoint")
	return trainer, nil
}

func compiledCheckpointSchema() (*jsonschema.Schema, error) {
	checkpointSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(checkpointSchemaURL, strings.NewReader(checkpointSchemaJSON)); err != nil {
			checkpointSchemaErr = fmt.Errorf("add checkpoint schema: %w", err)
			return
		}
		checkpointSchema, checkpointSchemaErr = compiler.Compile(checkpointSchemaURL)
	})
	return checkpointSchema, checkpointSchemaErr
}

func decodeCheckpoint(data []byte) (*checkpointMeta, error) {
	schema, err := compiledCheckpointSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid checkpoint JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("checkpoint schema validation failed: %w", err)
	}

	var meta checkpointMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if meta.Version != checkpointFileVersion {
		return nil, errors.New("unsupported checkpoint version")
	}
	if filepath.Base(meta.Regrets) != meta.Regrets {
		return nil, fmt.Errorf("checkpoint regrets %q must be a file in the checkpoint directory", meta.Regrets)
	}
	if err := meta.Training.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint training invalid: %w", err)
	}
	return &meta, nil
}

// MergeRegrets sums regret tables trained independently (one per worker)
// into dst.
func MergeRegrets(dst string, srcs []string, logger zerolog.Logger) (map[string]RegretSnapshot, store.LoadStats, error) {
	return store.MergeFunc[RegretSnapshot](dst, srcs, SumSnapshots, logger)
}
