package solver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
	"gopkg.in/yaml.v3"

	"github.com/lox/drawsolver/internal/fileutil"
)

const blueprintFileVersion = 1

// Blueprint captures the averaged strategies produced by a solver run so
// that runtime consumers can sample actions without rerunning CFR.
type Blueprint struct {
	Version     int                  `json:"version" yaml:"version"`
	RunID       string               `json:"run_id" yaml:"run_id"`
	Game        string               `json:"game" yaml:"game"`
	GeneratedAt time.Time            `json:"generated_at" yaml:"generated_at"`
	Iterations  int                  `json:"iterations" yaml:"iterations"`
	Abstraction AbstractionConfig    `json:"abstraction" yaml:"abstraction"`
	Draw        DrawConfig           `json:"draw" yaml:"draw"`
	Strategies  map[string][]float64 `json:"strategies" yaml:"strategies"`
	Actions     map[string][]string  `json:"actions" yaml:"actions"`
}

// BlueprintFromSnapshots averages every snapshot's strategy sum.
func BlueprintFromSnapshots(snaps map[string]RegretSnapshot) *Blueprint {
	bp := &Blueprint{
		Version:    blueprintFileVersion,
		Strategies: make(map[string][]float64, len(snaps)),
		Actions:    make(map[string][]string, len(snaps)),
	}
	for key, snap := range snaps {
		bp.Strategies[key] = normalisePositive(snap.StrategySum)
		bp.Actions[key] = append([]string(nil), snap.Actions...)
	}
	return bp
}

type blueprintFormat int

const (
	formatJSON blueprintFormat = iota
	formatJSONGzip
	formatYAML
)

func formatFor(path string) blueprintFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return formatJSONGzip
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// Save writes the blueprint atomically. The format follows the extension:
// .yaml/.yml, .gz (gzipped JSON) or JSON otherwise.
func (b *Blueprint) Save(path string) error {
	if b == nil {
		return errors.New("nil blueprint")
	}
	if path == "" {
		return errors.New("destination path is required")
	}
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		switch formatFor(path) {
		case formatYAML:
			enc := yaml.NewEncoder(w)
			if err := enc.Encode(b); err != nil {
				return err
			}
			return enc.Close()
		case formatJSONGzip:
			zw := pgzip.NewWriter(w)
			if err := json.NewEncoder(zw).Encode(b); err != nil {
				zw.Close()
				return err
			}
			return zw.Close()
		default:
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		}
	})
}

// LoadBlueprint reads a blueprint written by Save.
func LoadBlueprint(path string) (*Blueprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bp Blueprint
	switch formatFor(path) {
	case formatYAML:
		err = yaml.NewDecoder(f).Decode(&bp)
	case formatJSONGzip:
		var zr *pgzip.Reader
		zr, err = pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip blueprint: %w", err)
		}
		defer zr.Close()
		err = json.NewDecoder(zr).Decode(&bp)
	default:
		err = json.NewDecoder(f).Decode(&bp)
	}
	if err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	if bp.Version != blueprintFileVersion {
		return nil, errors.New("unsupported blueprint version")
	}
	if bp.Game == "holdem" {
		if err := bp.Abstraction.Validate(); err != nil {
			return nil, err
		}
	}
	return &bp, nil
}

// Strategy returns the stored average strategy for an info set key.
func (b *Blueprint) Strategy(key string) ([]float64, bool) {
	if b == nil {
		return nil, false
	}
	strat, ok := b.Strategies[key]
	return strat, ok
}
