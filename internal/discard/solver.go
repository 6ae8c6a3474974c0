package discard

import (
	"context"
	"fmt"
	"math"
	rand "math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/lox/drawsolver/internal/combin"
	"github.com/lox/drawsolver/poker"
)

var masksByCount = combin.DiscardMasksByCount(5)

// Stats counts solver work since construction.
type Stats struct {
	CacheHits   int64 `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses int64 `json:"cache_misses" yaml:"cache_misses"`
	Evaluations int64 `json:"evaluations" yaml:"evaluations"`
}

// Solver finds the discard with the best average outcome. By default the
// outcome is the lowball score and lower is better; WithObjective swaps in
// another measure such as WinProbability.
//
// Results are memoised per canonical hand, round count, sample count and
// objective. The key does not include the deck, so a cached entry computed against one deck is reused
// for another hand with the same canonical key.
//
// A Solver is not safe for concurrent use; give each worker its own and
// share results through the Cache.
type Solver struct {
	cache     Cache
	objective Objective
	samples   int
	rng     *rand.Rand
	logger  zerolog.Logger
	stats   Stats
}

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the solver's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Solver) { s.logger = logger }
}

// WithObjective replaces the lowball score objective.
func WithObjective(o Objective) Option {
	return func(s *Solver) { s.objective = o }
}

// New returns an exhaustive solver backed by cache.
func New(cache Cache, opts ...Option) *Solver {
	s := &Solver{cache: cache, objective: LowScore{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMonteCarlo returns a solver that averages over samples random draws per
// discard instead of every draw. Each nested round uses the square root of
// the parent's sample count, never fewer than one.
func NewMonteCarlo(cache Cache, samples int, rng *rand.Rand, opts ...Option) *Solver {
	s := New(cache, opts...)
	if samples < 1 {
		samples = 1
	}
	s.samples = samples
	s.rng = rng
	return s
}

// Stats returns the work counters.
func (s *Solver) Stats() Stats { return s.stats }

// BestDiscard evaluates every discard of hand with rounds draws remaining,
// replacing from deck.
func (s *Solver) BestDiscard(ctx context.Context, hand poker.Hand, deck []poker.Card, rounds int) (Result, error) {
	if rounds < 0 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidRounds, rounds)
	}
	if _, err := poker.NewHand5(hand.Cards()); err != nil {
		return Result{}, err
	}
	var deckSet poker.Hand
	for _, c := range deck {
		if deckSet.HasCard(c) {
			return Result{}, fmt.Errorf("deck: %w: %s", poker.ErrDuplicateCard, c)
		}
		deckSet.AddCard(c)
	}
	if overlap := deckSet & hand; overlap != 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrDeckOverlap, overlap)
	}
	return s.solve(ctx, hand, deckSet, rounds, s.samples)
}

func (s *Solver) solve(ctx context.Context, hand, deck poker.Hand, rounds, samples int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	canonical, err := poker.Canonicalize(hand)
	if err != nil {
		return Result{}, err
	}
	key := Key(canonical, rounds, samples, s.objective.Tag())

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("cache get %s: %w", key, err)
	}
	if ok {
		s.stats.CacheHits++
		return cached.withCards(hand), nil
	}
	s.stats.CacheMisses++

	res := Result{Key: key, Rounds: rounds, Samples: samples, Objective: s.objective.Tag()}
	var bestMask [6]uint8
	for i := range res.ScoresPerDiscardCount {
		res.ScoresPerDiscardCount[i] = Unreachable
	}

	if rounds == 0 {
		score, err := s.objective.Evaluate(hand, deck)
		if err != nil {
			return Result{}, err
		}
		s.stats.Evaluations++
		res.ScoresPerDiscardCount[0] = score
	} else {
		sorted := hand.SortedCards()
		deckCards := deck.Cards()
		for k, masks := range masksByCount {
			if k > len(deckCards) {
				continue
			}
			var draws []poker.Hand
			if samples == 0 {
				draws = combin.HandCombinations(deckCards, k)
			}
			for _, mask := range masks {
				kept := hand
				for _, pos := range combin.MaskPositions(mask) {
					kept.RemoveCard(sorted[pos])
				}
				var avg Score
				if samples == 0 {
					avg, err = s.averageExhaustive(ctx, kept, deck, draws, rounds)
				} else {
					avg, err = s.averageSampled(ctx, kept, deck, deckCards, k, rounds, samples)
				}
				if err != nil {
					return Result{}, err
				}
				// strict: the first mask of a count wins ties
				if s.objective.Better(avg, res.ScoresPerDiscardCount[k]) {
					res.ScoresPerDiscardCount[k] = avg
					bestMask[k] = mask
				}
			}
		}
	}

	bestCount := 0
	res.BestScore = res.ScoresPerDiscardCount[0]
	for k := 1; k < len(res.ScoresPerDiscardCount); k++ {
		// strict: fewer discards win ties
		if s.objective.Better(res.ScoresPerDiscardCount[k], res.BestScore) {
			res.BestScore = res.ScoresPerDiscardCount[k]
			bestCount = k
		}
	}
	res.BestDiscard = combin.MaskPositions(bestMask[bestCount])

	if err := s.cache.Put(ctx, key, res); err != nil {
		return Result{}, fmt.Errorf("cache put %s: %w", key, err)
	}
	s.logger.Debug().
		Str("key", key).
		Float64("best", float64(res.BestScore)).
		Int("discard", bestCount).
		Msg("solved hand")
	return res.withCards(hand), nil
}

// outcome scores kept+draw: the final hand when this is the last draw,
// otherwise the best result with one fewer round and the drawn cards gone.
func (s *Solver) outcome(ctx context.Context, hand, deck poker.Hand, rounds, samples int) (Score, error) {
	if rounds == 1 {
		score, err := s.objective.Evaluate(hand, deck)
		if err != nil {
			return 0, err
		}
		s.stats.Evaluations++
		return score, nil
	}
	r, err := s.solve(ctx, hand, deck, rounds-1, samples)
	if err != nil {
		return 0, err
	}
	return r.BestScore, nil
}

func (s *Solver) averageExhaustive(ctx context.Context, kept, deck poker.Hand, draws []poker.Hand, rounds int) (Score, error) {
	if len(draws) == 0 {
		return Unreachable, nil
	}
	var sum float64
	for _, draw := range draws {
		score, err := s.outcome(ctx, kept|draw, deck&^draw, rounds, 0)
		if err != nil {
			return 0, err
		}
		sum += float64(score)
	}
	return Score(sum / float64(len(draws))), nil
}

func (s *Solver) averageSampled(ctx context.Context, kept, deck poker.Hand, deckCards []poker.Card, k, rounds, samples int) (Score, error) {
	nested := int(math.Sqrt(float64(samples)))
	if nested < 1 {
		nested = 1
	}
	scratch := make([]poker.Card, len(deckCards))
	copy(scratch, deckCards)

	var sum float64
	for i := 0; i < samples; i++ {
		var draw poker.Hand
		// partial Fisher-Yates: the first k slots become the draw
		for j := 0; j < k; j++ {
			swap := j + s.rng.IntN(len(scratch)-j)
			scratch[j], scratch[swap] = scratch[swap], scratch[j]
			draw.AddCard(scratch[j])
		}
		score, err := s.outcome(ctx, kept|draw, deck&^draw, rounds, nested)
		if err != nil {
			return 0, err
		}
		sum += float64(score)
	}
	return Score(sum / float64(samples)), nil
}
