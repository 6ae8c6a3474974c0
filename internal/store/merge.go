package store

import (
	"fmt"

	"github.com/rs/zerolog"
)

// CombineFunc folds a value from a later source into the one already merged.
type CombineFunc[V any] func(existing, incoming V) V

// FirstWins keeps the value that was merged first.
func FirstWins[V any](existing, _ V) V { return existing }

// MergeFunc loads every source in order and folds keys seen in more than one
// source with combine, then atomically writes the result to dst. dst may be
// one of the sources. Missing sources are skipped.
func MergeFunc[V any](dst string, srcs []string, combine CombineFunc[V], logger zerolog.Logger) (map[string]V, LoadStats, error) {
	merged := make(map[string]V)
	var total LoadStats
	for _, src := range srcs {
		entries := make(map[string]V)
		stats, err := Load(src, entries, logger)
		total.add(stats)
		if err != nil {
			return nil, total, fmt.Errorf("merge %s: %w", src, err)
		}
		for k, v := range entries {
			if existing, ok := merged[k]; ok {
				merged[k] = combine(existing, v)
				total.Duplicates++
				continue
			}
			merged[k] = v
		}
	}

	if err := WriteSnapshot(dst, merged); err != nil {
		return nil, total, fmt.Errorf("write %s: %w", dst, err)
	}
	logger.Info().
		Str("dst", dst).
		Int("sources", len(srcs)).
		Int("keys", len(merged)).
		Int("duplicates", total.Duplicates).
		Int("corrupt", total.Corrupt).
		Msg("merged tables")
	return merged, total, nil
}

// Merge deduplicates sources into dst with the first writer winning.
func Merge[V any](dst string, srcs []string, logger zerolog.Logger) (map[string]V, LoadStats, error) {
	return MergeFunc(dst, srcs, FirstWins[V], logger)
}

// SumFloats adds two equally shaped vectors. A length mismatch keeps the
// existing vector.
func SumFloats(existing, incoming []float64) []float64 {
	if len(existing) != len(incoming) {
		return existing
	}
	out := make([]float64, len(existing))
	for i := range existing {
		out[i] = existing[i] + incoming[i]
	}
	return out
}
