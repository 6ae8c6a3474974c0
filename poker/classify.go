package poker

import (
	"fmt"
	"math/bits"
	"sort"
)

// HandType enumerates the categories of poker hands ordered from weakest to strongest.
type HandType uint8

const (
	HighCard HandType = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (t HandType) String() string {
	switch t {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// Classification describes a five card hand.
type Classification struct {
	// Type is the standard (high hand) category.
	Type HandType
	// Ranks are the tie-break ranks: rank groups ordered by (count desc,
	// rank desc), one entry per group. Aces stay high here even for a wheel.
	Ranks []uint8
	// Counts holds the group sizes aligned with Ranks.
	Counts []uint8
	// StraightHigh is the top rank of the straight, Five for the wheel.
	StraightHigh uint8

	Straight bool
	Flush    bool
	Wheel    bool
}

type rankGroup struct {
	rank  uint8
	count uint8
}

// Classify classifies exactly five distinct cards.
func Classify(h Hand) (Classification, error) {
	if n := h.CountCards(); n != 5 {
		return Classification{}, fmt.Errorf("%w: got %d", ErrHandSize, n)
	}

	var counts [13]uint8
	for suit := Clubs; suit <= Spades; suit++ {
		mask := h.GetSuitMask(suit)
		for mask != 0 {
			r := bits.TrailingZeros16(mask)
			counts[r]++
			mask &= mask - 1
		}
	}

	groups := make([]rankGroup, 0, 5)
	for r := int(Ace); r >= int(Two); r-- {
		if counts[r] > 0 {
			groups = append(groups, rankGroup{rank: uint8(r), count: counts[r]})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	c := Classification{
		Ranks:  make([]uint8, len(groups)),
		Counts: make([]uint8, len(groups)),
	}
	for i, g := range groups {
		c.Ranks[i] = g.rank
		c.Counts[i] = g.count
	}

	for suit := Clubs; suit <= Spades; suit++ {
		if bits.OnesCount16(h.GetSuitMask(suit)) == 5 {
			c.Flush = true
		}
	}

	if len(groups) == 5 {
		// groups are rank-descending when every count is one
		if c.Ranks[0]-c.Ranks[4] == 4 {
			c.Straight = true
			c.StraightHigh = c.Ranks[0]
		} else if isWheel(c.Ranks) {
			c.Straight = true
			c.Wheel = true
			c.StraightHigh = Five
		}
	}

	c.Type = handType(c)
	return c, nil
}

// isWheel re-sorts with the ace played below the deuce and checks for five
// consecutive values. ranks is left untouched.
func isWheel(ranks []uint8) bool {
	vals := make([]int, len(ranks))
	for i, r := range ranks {
		if r == Ace {
			vals[i] = -1
		} else {
			vals[i] = int(r)
		}
	}
	sort.Ints(vals)
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1]+1 {
			return false
		}
	}
	return vals[0] == -1
}

func handType(c Classification) HandType {
	switch {
	case c.Straight && c.Flush:
		return StraightFlush
	case c.Counts[0] == 4:
		return FourOfAKind
	case c.Counts[0] == 3 && c.Counts[1] == 2:
		return FullHouse
	case c.Flush:
		return Flush
	case c.Straight:
		return Straight
	case c.Counts[0] == 3:
		return ThreeOfAKind
	case c.Counts[0] == 2 && c.Counts[1] == 2:
		return TwoPair
	case c.Counts[0] == 2:
		return Pair
	default:
		return HighCard
	}
}

// PairingType returns the category ignoring straights and flushes. This is
// the category lowball scoring is based on.
func (c Classification) PairingType() HandType {
	switch {
	case c.Counts[0] == 4:
		return FourOfAKind
	case c.Counts[0] == 3 && c.Counts[1] == 2:
		return FullHouse
	case c.Counts[0] == 3:
		return ThreeOfAKind
	case c.Counts[0] == 2 && c.Counts[1] == 2:
		return TwoPair
	case c.Counts[0] == 2:
		return Pair
	default:
		return HighCard
	}
}
