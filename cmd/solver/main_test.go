package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lox/drawsolver/internal/discard"
	"github.com/lox/drawsolver/internal/store"
	"github.com/lox/drawsolver/poker"
	"github.com/lox/drawsolver/sdk/solver"
)

func testGlobals(t *testing.T) *Globals {
	t.Helper()
	dir := t.TempDir()
	return &Globals{
		Config:  filepath.Join(dir, "absent.hcl"),
		EnvFile: filepath.Join(dir, ".env"),
	}
}

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestTrainShardsMergeAndInspect(t *testing.T) {
	g := testGlobals(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "kuhn.json")

	train := &TrainCmd{
		Out:        out,
		Dir:        filepath.Join(dir, "ckpt"),
		Game:       "kuhn",
		Iterations: 200,
		Seed:       9,
		Shards:     2,
	}
	if err := train.Run(g); err != nil {
		t.Fatalf("train: %v", err)
	}

	bp, err := solver.LoadBlueprint(out)
	if err != nil {
		t.Fatalf("load blueprint: %v", err)
	}
	if bp.Game != "kuhn" || bp.Iterations != 400 || len(bp.Strategies) != 12 {
		t.Fatalf("unexpected blueprint game=%q iterations=%d infosets=%d", bp.Game, bp.Iterations, len(bp.Strategies))
	}
	for i := 0; i < 2; i++ {
		if _, err := os.Stat(filepath.Join(shardDir(train.Dir, i), "checkpoint.json")); err != nil {
			t.Fatalf("shard %d checkpoint missing: %v", i, err)
		}
	}

	var buf bytes.Buffer
	policy := &PolicyCmd{Blueprint: out, Prefix: "K:", out: &buf}
	if err := policy.Run(g); err != nil {
		t.Fatalf("policy: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 king info sets, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "K:") || !strings.Contains(lines[0], "p=") || !strings.Contains(lines[0], "b=") {
		t.Fatalf("unexpected policy line %q", lines[0])
	}

	buf.Reset()
	report := &PolicyCmd{
		Blueprint: out,
		Report:    true,
		Regrets:   filepath.Join(train.Dir, "regrets.ndjson"),
		Limit:     3,
		Format:    "json",
		out:       &buf,
	}
	if err := report.Run(g); err != nil {
		t.Fatalf("report: %v", err)
	}
	var rows []solver.RegretLine
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(rows) != 3 || rows[0].Max < rows[2].Max {
		t.Fatalf("unexpected report %+v", rows)
	}

	if err := (&PolicyCmd{Blueprint: out, Report: true, out: &buf}).Run(g); err == nil {
		t.Fatalf("expected --report without --regrets to fail")
	}
}

func TestTrainResumeContinuesCheckpoint(t *testing.T) {
	g := testGlobals(t)
	dir := t.TempDir()
	ckpt := filepath.Join(dir, "ckpt")

	first := &TrainCmd{Out: filepath.Join(dir, "a.json"), Dir: ckpt, Game: "kuhn", Iterations: 50, Seed: 3}
	if err := first.Run(g); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := &TrainCmd{Out: filepath.Join(dir, "b.yaml"), Dir: ckpt, Game: "kuhn", Iterations: 80, Seed: 3, Resume: true}
	if err := second.Run(g); err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	bp, err := solver.LoadBlueprint(filepath.Join(dir, "b.yaml"))
	if err != nil {
		t.Fatalf("load blueprint: %v", err)
	}
	if bp.Iterations != 80 {
		t.Fatalf("expected 80 iterations after resume, got %d", bp.Iterations)
	}
}

func TestMergeAndCompactCommands(t *testing.T) {
	g := testGlobals(t)
	dir := t.TempDir()

	a := filepath.Join(dir, "a.ndjson")
	b := filepath.Join(dir, "b.ndjson")
	if err := store.WriteSnapshot(a, map[string]solver.RegretSnapshot{
		"J:": {Actions: []string{"p", "b"}, RegretSum: []float64{1, 2}, StrategySum: []float64{3, 1}},
	}); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := store.WriteSnapshot(b, map[string]solver.RegretSnapshot{
		"J:": {Actions: []string{"p", "b"}, RegretSum: []float64{1, 1}, StrategySum: []float64{1, 3}},
	}); err != nil {
		t.Fatalf("write b: %v", err)
	}

	bpPath := filepath.Join(dir, "bp.json")
	merge := &MergeCmd{Out: filepath.Join(dir, "sum.ndjson.gz"), Src: []string{a, b}, Blueprint: bpPath, Game: "kuhn", Iterations: 10}
	if err := merge.Run(g); err != nil {
		t.Fatalf("merge: %v", err)
	}
	summed := make(map[string]solver.RegretSnapshot)
	if _, err := store.Load(merge.Out, summed, testLogger()); err != nil {
		t.Fatalf("load merged: %v", err)
	}
	if got := summed["J:"].RegretSum; got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected summed regrets [2 3], got %v", got)
	}
	bp, err := solver.LoadBlueprint(bpPath)
	if err != nil {
		t.Fatalf("load blueprint: %v", err)
	}
	if s, _ := bp.Strategy("J:"); s[0] != 0.5 || s[1] != 0.5 {
		t.Fatalf("expected averaged strategy [0.5 0.5], got %v", s)
	}

	compact := &CompactCmd{Out: filepath.Join(dir, "first.ndjson"), Src: []string{b, a}}
	if err := compact.Run(g); err != nil {
		t.Fatalf("compact: %v", err)
	}
	first := make(map[string]solver.RegretSnapshot)
	if _, err := store.Load(compact.Out, first, testLogger()); err != nil {
		t.Fatalf("load compacted: %v", err)
	}
	if got := first["J:"].RegretSum; got[0] != 1 || got[1] != 1 {
		t.Fatalf("expected first writer to win, got %v", got)
	}
}

func TestDiscardCommandWritesTables(t *testing.T) {
	g := testGlobals(t)
	dir := t.TempDir()

	cmd := &DiscardCmd{Dir: dir, Rounds: 0, Workers: 2, Limit: 6, Store: "memory"}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("discard: %v", err)
	}

	results := make(map[string]discard.Result)
	if _, err := store.Load(filepath.Join(dir, "discard-r0.ndjson"), results, testLogger()); err != nil {
		t.Fatalf("load table: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for key, r := range results {
		if !strings.HasSuffix(key, ":R0") || r.BestDiscardCount() != 0 {
			t.Fatalf("with no draws left every hand stands pat: %s %+v", key, r)
		}
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "discard-r0.*.ndjson")); len(matches) != 0 {
		t.Fatalf("worker logs should be merged away, found %v", matches)
	}
	if _, err := os.Stat(filepath.Join(dir, "discard-r0-summary.yaml")); err != nil {
		t.Fatalf("summary missing: %v", err)
	}

	scores := make(map[string]poker.Score)
	if _, err := store.Load(filepath.Join(dir, "scores.ndjson"), scores, testLogger()); err != nil {
		t.Fatalf("load scores: %v", err)
	}
	if len(scores) != len(discard.CanonicalHands()) {
		t.Fatalf("expected a score per canonical key, got %d", len(scores))
	}
	if scores["75432|o"] >= scores["86432|o"] {
		t.Fatalf("seven-low must score better than eight-low")
	}
}

func TestDiscardCommandWinObjective(t *testing.T) {
	g := testGlobals(t)
	dir := t.TempDir()

	cmd := &DiscardCmd{
		Dir:           dir,
		Rounds:        1,
		Workers:       1,
		Samples:       4,
		Objective:     "win",
		OpponentDraws: 1,
		Opponents:     5,
		Limit:         2,
		NoScores:      true,
	}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("discard: %v", err)
	}

	results := make(map[string]discard.Result)
	if _, err := store.Load(filepath.Join(dir, "discard-r1-s4-w1x5.ndjson"), results, testLogger()); err != nil {
		t.Fatalf("load table: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for key, r := range results {
		if !strings.HasSuffix(key, ":R1:S4:W1x5") || r.Objective != "W1x5" {
			t.Fatalf("unexpected entry %s %+v", key, r)
		}
		if r.BestScore < 0 || r.BestScore > 1 {
			t.Fatalf("win probability out of range: %v", r.BestScore)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "scores.ndjson")); !os.IsNotExist(err) {
		t.Fatalf("--no-scores should skip the score table")
	}
}
