package solver

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBlueprintSaveLoadFormats(t *testing.T) {
	t.Parallel()
	bp := &Blueprint{
		Version:     blueprintFileVersion,
		RunID:       "run-1",
		Game:        "lowball",
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Iterations:  12,
		Abstraction: DefaultAbstraction(),
		Draw:        DrawConfig{DrawRounds: 1},
		Strategies:  map[string][]float64{"D0:7": {0.25, 0.75}},
		Actions:     map[string][]string{"D0:7": {"pat", "d1"}},
	}
	for _, name := range []string{"bp.json", "bp.json.gz", "bp.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		if err := bp.Save(path); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		got, err := LoadBlueprint(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if got.Iterations != 12 || got.RunID != "run-1" || got.Draw.DrawRounds != 1 {
			t.Fatalf("%s: unexpected metadata %+v", name, got)
		}
		if s, ok := got.Strategy("D0:7"); !ok || s[1] != 0.75 {
			t.Fatalf("%s: unexpected strategy %v", name, s)
		}
	}
}

func TestLoadBlueprintRejects(t *testing.T) {
	t.Parallel()
	valid := func() *Blueprint {
		return &Blueprint{
			Version:     blueprintFileVersion,
			Game:        "holdem",
			Iterations:  1,
			Abstraction: DefaultAbstraction(),
			Strategies:  map[string][]float64{},
		}
	}
	cases := map[string]func(bp *Blueprint){
		"future version": func(bp *Blueprint) { bp.Version++ },
		"empty buckets":  func(bp *Blueprint) { bp.Abstraction.PreflopBucketCount = 0 },
	}
	for name, mutate := range cases {
		bp := valid()
		mutate(bp)
		path := filepath.Join(t.TempDir(), "bp.json")
		if err := bp.Save(path); err != nil {
			t.Fatalf("%s: save: %v", name, err)
		}
		if _, err := LoadBlueprint(path); err == nil {
			t.Fatalf("%s: expected load to fail", name)
		}
	}

	path := filepath.Join(t.TempDir(), "bp.json")
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadBlueprint(path); err == nil {
		t.Fatalf("expected truncated json to fail")
	}
}

func TestLoadBlueprintKuhnIgnoresAbstraction(t *testing.T) {
	t.Parallel()
	bp := &Blueprint{
		Version:     blueprintFileVersion,
		Game:        "kuhn",
		Iterations:  1,
		Abstraction: AbstractionConfig{PostflopBucketCount: 10},
		Strategies:  map[string][]float64{},
	}
	path := filepath.Join(t.TempDir(), "kuhn.json")
	if err := bp.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := LoadBlueprint(path); err != nil {
		t.Fatalf("kuhn blueprint: %v", err)
	}
}

func TestBlueprintFromSnapshotsAverages(t *testing.T) {
	t.Parallel()
	bp := BlueprintFromSnapshots(map[string]RegretSnapshot{
		"Q:b": {Actions: []string{"p", "b"}, StrategySum: []float64{3, 1}},
		"Q:p": {Actions: []string{"p", "b"}, StrategySum: []float64{0, 0}},
	})
	if s, ok := bp.Strategy("Q:b"); !ok || s[0] != 0.75 || s[1] != 0.25 {
		t.Fatalf("unexpected average %v", s)
	}
	if s, _ := bp.Strategy("Q:p"); s[0] != 0.5 {
		t.Fatalf("expected uniform fallback, got %v", s)
	}
	if bp.Actions["Q:b"][1] != "b" || bp.Version != blueprintFileVersion {
		t.Fatalf("unexpected blueprint %+v", bp)
	}
}
