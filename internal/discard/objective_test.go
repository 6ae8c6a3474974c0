package discard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/drawsolver/internal/randutil"
	"github.com/lox/drawsolver/poker"
)

func TestNewWinProbabilityValidates(t *testing.T) {
	t.Parallel()
	_, err := NewWinProbability(-1, 10, randutil.New(1))
	assert.Error(t, err)
	_, err = NewWinProbability(6, 10, randutil.New(1))
	assert.Error(t, err)
	_, err = NewWinProbability(1, 0, randutil.New(1))
	assert.Error(t, err)
	_, err = NewWinProbability(1, 10, nil)
	assert.Error(t, err)

	w, err := NewWinProbability(2, 50, randutil.New(1))
	require.NoError(t, err)
	assert.Equal(t, "W2x50", w.Tag())
}

func TestWinProbabilityBetter(t *testing.T) {
	t.Parallel()
	w, err := NewWinProbability(0, 1, randutil.New(1))
	require.NoError(t, err)
	assert.True(t, w.Better(0.6, 0.4))
	assert.False(t, w.Better(0.4, 0.4), "ties keep the earlier choice")
	assert.True(t, w.Better(0, Unreachable))
	assert.False(t, w.Better(Unreachable, 0))
	assert.False(t, w.Better(Unreachable, Unreachable))
}

func TestOpponentThrowsPairsThenHighCards(t *testing.T) {
	t.Parallel()
	hand := mustHand(t, "Ks", "Kd", "7h", "4c", "2d")
	cases := map[int][]string{
		0: nil,
		1: {"Ks"},
		2: {"Ks", "Kd"},
		3: {"Ks", "Kd", "7h"},
	}
	for n, want := range cases {
		got := opponentThrows(hand, n)
		assert.Equal(t, len(want), got.CountCards(), "n=%d", n)
		for _, c := range mustCards(t, want...) {
			assert.True(t, got.HasCard(c), "n=%d should throw %s", n, c)
		}
	}
}

func TestWinProbabilityEvaluate(t *testing.T) {
	t.Parallel()
	nut := mustHand(t, "6s", "5d", "4h", "3c", "2h")
	kings := mustHand(t, "Ks", "Kd", "7h", "4c", "2d")

	eval := func(hand poker.Hand, draws int) Score {
		w, err := NewWinProbability(draws, 400, randutil.New(9))
		require.NoError(t, err)
		p, err := w.Evaluate(hand, poker.NewHand(poker.Remaining(hand)...))
		require.NoError(t, err)
		require.GreaterOrEqual(t, float64(p), 0.0)
		require.LessOrEqual(t, float64(p), 1.0)
		return p
	}
	assert.Greater(t, eval(nut, 0), Score(0.95))
	assert.Less(t, eval(kings, 0), Score(0.5))
	assert.Equal(t, eval(kings, 2), eval(kings, 2), "same seed, same estimate")
	assert.Less(t, eval(kings, 3), eval(kings, 0), "a drawing opponent improves")

	w, err := NewWinProbability(0, 1, randutil.New(1))
	require.NoError(t, err)
	_, err = w.Evaluate(nut, poker.NewHand(mustCards(t, "9c", "Tc")...))
	assert.ErrorIs(t, err, ErrDeckTooSmall)
}

func TestSolverMaximisesWinProbability(t *testing.T) {
	t.Parallel()
	w, err := NewWinProbability(0, 30, randutil.New(2))
	require.NoError(t, err)
	s := NewMonteCarlo(NewMemoryCache(), 30, randutil.New(2), WithObjective(w))
	hand := mustHand(t, "Ks", "Kd", "7h", "4c", "2d")

	res, err := s.BestDiscard(context.Background(), hand, poker.Remaining(hand), 1)
	require.NoError(t, err)
	assert.Equal(t, "KK742|o:R1:S30:W0x30", res.Key)
	assert.Equal(t, "W0x30", res.Objective)

	best := res.ScoresPerDiscardCount[res.BestDiscardCount()]
	assert.Equal(t, best, res.BestScore)
	for k, score := range res.ScoresPerDiscardCount {
		assert.False(t, score.IsUnreachable(), "count %d", k)
		assert.GreaterOrEqual(t, res.BestScore, score, "count %d", k)
	}
	assert.Greater(t, res.ScoresPerDiscardCount[2], res.ScoresPerDiscardCount[0], "throwing the kings beats standing pat")

	// the lowball objective never shares entries with this one
	plain, err := New(NewMemoryCache()).BestDiscard(context.Background(), hand, mustCards(t, "3h", "5s", "6d"), 1)
	require.NoError(t, err)
	assert.Empty(t, plain.Objective)
}
