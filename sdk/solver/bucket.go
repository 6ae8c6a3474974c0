package solver

import (
	"github.com/lox/drawsolver/internal/combin"
	"github.com/lox/drawsolver/poker"
)

// BucketMapper converts hold'em cards into coarse buckets that CFR can
// operate on. Buckets are deterministic so that blueprints stay valid
// across runs with the same abstraction.
type BucketMapper struct {
	config AbstractionConfig
}

// NewBucketMapper returns a mapper backed by the provided abstraction config.
func NewBucketMapper(cfg AbstractionConfig) (*BucketMapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BucketMapper{config: cfg}, nil
}

// HoleBucket deterministically maps a two-card hand into a preflop bucket.
func (m *BucketMapper) HoleBucket(hand poker.Hand) int {
	if hand.CountCards() != 2 {
		return 0
	}

	c0 := hand.GetCard(0)
	c1 := hand.GetCard(1)

	r0 := int(c0.Rank())
	r1 := int(c1.Rank())
	if r0 < r1 {
		r0, r1 = r1, r0
	}

	// 169 starting hands laid out as rank strength, with pairs and suited
	// hands lifted above their offsuit equivalents.
	score := float64(r0*13 + r1)
	if r0 == r1 {
		score += 200
	}
	if c0.Suit() == c1.Suit() {
		score += 13
	}
	return clampBucket(int(score/(312.0/float64(m.config.PreflopBucketCount))), m.config.PreflopBucketCount)
}

// BoardBucket maps hole cards and 3-5 visible board cards to a bucket from
// the best five card category available and whether the board is paired.
func (m *BucketMapper) BoardBucket(hole poker.Hand, board []poker.Card) int {
	if len(board) == 0 {
		return 0
	}
	pool := append(hole.Cards(), board...)
	best := poker.HighCard
	for _, h := range combin.HandCombinations(pool, 5) {
		c, err := poker.Classify(h)
		if err != nil {
			continue
		}
		if c.Type > best {
			best = c.Type
		}
	}

	score := int(best) * 2
	if countBoardPairs(board) > 0 {
		score++
	}
	const levels = int(poker.StraightFlush)*2 + 2
	return clampBucket(score*m.config.PostflopBucketCount/levels, m.config.PostflopBucketCount)
}

func clampBucket(bucket, count int) int {
	if bucket >= count {
		return count - 1
	}
	if bucket < 0 {
		return 0
	}
	return bucket
}

func countBoardPairs(board []poker.Card) int {
	var counts [13]int
	for _, c := range board {
		counts[c.Rank()]++
	}
	pairs := 0
	for _, n := range counts {
		if n >= 2 {
			pairs++
		}
	}
	return pairs
}
