package solver

import (
	"errors"
	"testing"

	"github.com/lox/drawsolver/internal/randutil"
)

func newKuhnTrainer(t *testing.T, sampling SamplingMode) *Trainer {
	t.Helper()
	cfg := TrainingConfig{Game: "kuhn", Iterations: 1, ParallelTables: 1, Sampling: sampling}
	trainer, err := NewTrainer(cfg, DefaultAbstraction(), DefaultDrawConfig())
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	return trainer
}

func TestTraverseWeightsRegretsByOpponentReach(t *testing.T) {
	trainer := newKuhnTrainer(t, SamplingModeFullTraversal)
	tc := &tableContext{deal: *kuhnDeal(0, 1), stats: &TraversalStats{}, sampler: randutil.New(1)}

	// J vs Q with uniform strategies everywhere:
	// pass: -1/2 (pp) + 1/2 * (-1/2 - 2/2) = -1.25, bet: 1/2 - 2/2 = -0.5
	value, err := trainer.traverse(tc, "", 0, 0, 1, 1)
	if err != nil {
		t.Fatalf("traverse: %v", err)
	}
	if abs(value-(-0.875)) > 1e-9 {
		t.Fatalf("expected value -0.875, got %v", value)
	}

	root, ok := trainer.regrets.Lookup("J:")
	if !ok {
		t.Fatalf("root info set missing")
	}
	if abs(root.RegretSum[0]-(-0.375)) > 1e-9 || abs(root.RegretSum[1]-0.375) > 1e-9 {
		t.Fatalf("unexpected root regrets %v", root.RegretSum)
	}

	// J:pb is reached when the opponent bets with probability 1/2 and we
	// passed with probability 1/2.
	deep, ok := trainer.regrets.Lookup("J:pb")
	if !ok {
		t.Fatalf("J:pb info set missing")
	}
	if abs(deep.RegretSum[0]-0.25) > 1e-9 || abs(deep.RegretSum[1]-(-0.25)) > 1e-9 {
		t.Fatalf("expected regrets scaled by opponent reach, got %v", deep.RegretSum)
	}
	if abs(deep.StrategySum[0]-0.25) > 1e-9 || abs(deep.StrategySum[1]-0.25) > 1e-9 {
		t.Fatalf("expected strategy sums scaled by own reach, got %v", deep.StrategySum)
	}

	if opp, ok := trainer.regrets.Lookup("Q:b"); ok && (opp.RegretSum[0] != 0 || opp.RegretSum[1] != 0) {
		t.Fatalf("opponent regrets must not change on the target's traversal: %v", opp.RegretSum)
	}
	if tc.stats.TerminalNodes != 5 || tc.stats.MaxDepth != 3 {
		t.Fatalf("unexpected stats %+v", *tc.stats)
	}
}

func TestTraverseExternalSamplesOpponent(t *testing.T) {
	trainer := newKuhnTrainer(t, SamplingModeExternal)
	tc := &tableContext{deal: *kuhnDeal(2, 0), stats: &TraversalStats{}, sampler: randutil.New(9)}

	if _, err := trainer.traverse(tc, "", 0, 0, 1, 1); err != nil {
		t.Fatalf("traverse: %v", err)
	}
	// own actions are enumerated (2 at the root, 2 at K:pb when reached) and
	// each opponent node follows one sampled action
	if tc.stats.TerminalNodes < 2 || tc.stats.TerminalNodes > 3 {
		t.Fatalf("unexpected terminal count %d", tc.stats.TerminalNodes)
	}
}

func TestTraverseUnhandledStateIsFatal(t *testing.T) {
	trainer := newKuhnTrainer(t, SamplingModeFullTraversal)
	tc := &tableContext{deal: *kuhnDeal(0, 1), sampler: randutil.New(1)}
	if _, err := trainer.traverse(tc, "bbb", 0, 0, 1, 1); !errors.Is(err, ErrUnhandledState) {
		t.Fatalf("expected ErrUnhandledState, got %v", err)
	}
}

func TestSampleStrategyIndex(t *testing.T) {
	rng := randutil.New(5)
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		idx, prob := sampleStrategyIndex([]float64{0, 0.25, 0.75}, rng)
		if idx == 0 {
			t.Fatalf("zero probability action sampled")
		}
		if (idx == 1 && prob != 0.25) || (idx == 2 && prob != 0.75) {
			t.Fatalf("unexpected probability %v for %d", prob, idx)
		}
		counts[idx]++
	}
	if counts[2] < 2*counts[1] {
		t.Fatalf("sampling ignores weights: %v", counts)
	}

	idx, prob := sampleStrategyIndex([]float64{0, 0}, rng)
	if idx < 0 || idx > 1 || prob != 0.5 {
		t.Fatalf("expected uniform fallback, got %d %v", idx, prob)
	}
}
