package poker

import (
	"math/bits"
	"strings"
)

// Score is a 2-7 lowball hand value. Lower values are stronger.
//
// Only rank pairing counts against a hand: straights and flushes score the
// same as the unpaired ranks they contain.
type Score uint32

const (
	scoreDigitBase    = 14
	scoreCategoryBase = scoreDigitBase * scoreDigitBase * scoreDigitBase * scoreDigitBase * scoreDigitBase

	// WorstScore is greater than any real hand score.
	WorstScore = Score(6 * scoreCategoryBase)
)

// LowballScore scores the classification. Each tie-break rank becomes a base
// 14 digit (deuce=1 ... ace=13) so the result orders by category first and
// then rank by rank.
func (c Classification) LowballScore() Score {
	var category uint32
	switch c.PairingType() {
	case Pair:
		category = 1
	case TwoPair:
		category = 2
	case ThreeOfAKind:
		category = 3
	case FullHouse:
		category = 4
	case FourOfAKind:
		category = 5
	}

	var digits uint32
	for i := 0; i < 5; i++ {
		digits *= scoreDigitBase
		if i < len(c.Ranks) {
			digits += uint32(c.Ranks[i]) + 1
		}
	}
	return Score(category*scoreCategoryBase + digits)
}

// LowballScore classifies and scores a five card hand.
func LowballScore(h Hand) (Score, error) {
	c, err := Classify(h)
	if err != nil {
		return 0, err
	}
	return c.LowballScore(), nil
}

// Category returns the lowball category index (0 no pair ... 5 quads).
func (s Score) Category() int {
	return int(s / scoreCategoryBase)
}

// CanonicalKey identifies every hand that is equivalent for lowball draw
// purposes: ranks descending plus whether all five cards share a suit.
type CanonicalKey string

// Canonicalize returns the canonical key for a five card hand.
func Canonicalize(h Hand) (CanonicalKey, error) {
	if n := h.CountCards(); n != 5 {
		return "", ErrHandSize
	}
	var b strings.Builder
	b.Grow(7)
	mask := [4]uint16{h.GetSuitMask(Clubs), h.GetSuitMask(Diamonds), h.GetSuitMask(Hearts), h.GetSuitMask(Spades)}
	suited := false
	for rank := int(Ace); rank >= int(Two); rank-- {
		for _, m := range mask {
			if m&(1<<uint(rank)) != 0 {
				b.WriteByte(rankChars[rank])
			}
		}
	}
	for _, m := range mask {
		if bits.OnesCount16(m) == 5 {
			suited = true
		}
	}
	b.WriteByte('|')
	if suited {
		b.WriteByte('s')
	} else {
		b.WriteByte('o')
	}
	return CanonicalKey(b.String()), nil
}

// Ranks returns the rank part of the key.
func (k CanonicalKey) Ranks() string {
	s := string(k)
	if i := strings.IndexByte(s, '|'); i >= 0 {
		return s[:i]
	}
	return s
}

// Suited reports whether the key marks a single-suit hand.
func (k CanonicalKey) Suited() bool {
	return strings.HasSuffix(string(k), "|s")
}
