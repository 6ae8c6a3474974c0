// Package store persists solver tables.
//
// Tables are append-only NDJSON logs with one {"key":...,"value":...} record
// per line. Reloading a log is first-seen-wins: a key already present in the
// destination map is never overwritten by a later line. Within a single
// write pass the caller's in-memory map is authoritative.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/pgzip"
	"github.com/rs/zerolog"

	"github.com/lox/drawsolver/internal/fileutil"
)

// Record is a single log line.
type Record[V any] struct {
	Key   string `json:"key"`
	Value V      `json:"value"`
}

// LoadStats summarises a load or merge.
type LoadStats struct {
	Files      int `json:"files" yaml:"files"`
	Lines      int `json:"lines" yaml:"lines"`
	Records    int `json:"records" yaml:"records"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Corrupt    int `json:"corrupt" yaml:"corrupt"`
}

func (s *LoadStats) add(o LoadStats) {
	s.Files += o.Files
	s.Lines += o.Lines
	s.Records += o.Records
	s.Duplicates += o.Duplicates
	s.Corrupt += o.Corrupt
}

// Log appends records to an NDJSON file. Each record is written with a
// single write call so a crash can at worst leave one torn trailing line,
// which Load skips.
type Log[V any] struct {
	mu   sync.Mutex
	f    *os.File
	path string
	n    int
}

// OpenLog opens path for appending, creating it if needed.
func OpenLog[V any](path string) (*Log[V], error) {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return &Log[V]{f: f, path: path}, nil
}

// Append writes one record.
func (l *Log[V]) Append(key string, value V) error {
	line, err := json.Marshal(Record[V]{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encode record %q: %w", key, err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("append to closed log %s", l.path)
	}
	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", l.path, err)
	}
	l.n++
	return nil
}

// Path returns the file backing the log.
func (l *Log[V]) Path() string { return l.path }

// Appended reports how many records this handle has written.
func (l *Log[V]) Appended() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

// Close syncs and closes the file. Closing twice is a no-op.
func (l *Log[V]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", l.path, err)
	}
	return f.Close()
}

// Load replays path into dst. A missing file is not an error. Blank lines
// are ignored; lines that fail to decode or carry no key are logged and
// counted as corrupt.
func Load[V any](path string, dst map[string]V, logger zerolog.Logger) (LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LoadStats{}, nil
		}
		return LoadStats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return LoadStats{}, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	stats, err := Decode(r, dst, logger.With().Str("file", path).Logger())
	stats.Files = 1
	return stats, err
}

// Decode reads NDJSON records from r into dst, first-seen-wins.
func Decode[V any](r io.Reader, dst map[string]V, logger zerolog.Logger) (LoadStats, error) {
	var stats LoadStats
	br := bufio.NewReaderSize(r, 256<<10)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			stats.Lines++
			decodeLine(line, stats.Lines, dst, &stats, logger)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return stats, nil
			}
			return stats, fmt.Errorf("read line %d: %w", stats.Lines+1, err)
		}
	}
}

func decodeLine[V any](line []byte, lineNo int, dst map[string]V, stats *LoadStats, logger zerolog.Logger) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	var rec Record[V]
	if err := json.Unmarshal(line, &rec); err != nil {
		stats.Corrupt++
		logger.Warn().Err(err).Int("line", lineNo).Msg("skipping corrupt record")
		return
	}
	if rec.Key == "" {
		stats.Corrupt++
		logger.Warn().Int("line", lineNo).Msg("skipping record without key")
		return
	}
	if _, ok := dst[rec.Key]; ok {
		stats.Duplicates++
		return
	}
	dst[rec.Key] = rec.Value
	stats.Records++
}

// LoadDir replays every file in dir matching pattern, in name order.
func LoadDir[V any](dir, pattern string, dst map[string]V, logger zerolog.Logger) (LoadStats, error) {
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return LoadStats{}, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(paths)
	var total LoadStats
	for _, p := range paths {
		stats, err := Load(p, dst, logger)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSnapshot atomically replaces path with one record per entry, keys
// sorted. Paths ending in .gz are gzip compressed.
func WriteSnapshot[V any](path string, entries map[string]V) error {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		var gz *pgzip.Writer
		if strings.HasSuffix(path, ".gz") {
			gz = pgzip.NewWriter(w)
			w = gz
		}
		enc := json.NewEncoder(w)
		for _, k := range keys {
			if err := enc.Encode(Record[V]{Key: k, Value: entries[k]}); err != nil {
				return fmt.Errorf("encode %q: %w", k, err)
			}
		}
		if gz != nil {
			return gz.Close()
		}
		return nil
	})
}
