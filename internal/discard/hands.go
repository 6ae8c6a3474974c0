package discard

import (
	"github.com/lox/drawsolver/poker"
)

// CanonicalHands returns one representative hand per canonical key, ordered
// by rank multiset (descending ranks, lexicographic) with the offsuit
// variant before the suited one.
func CanonicalHands() []poker.Hand {
	var out []poker.Hand
	var ranks [5]uint8
	var walk func(pos int, maxRank int)
	walk = func(pos int, maxRank int) {
		if pos == len(ranks) {
			out = append(out, representatives(ranks)...)
			return
		}
		for r := maxRank; r >= int(poker.Two); r-- {
			ranks[pos] = uint8(r)
			if pos >= 4 && ranks[pos-4] == ranks[pos] {
				continue
			}
			walk(pos+1, r)
		}
	}
	walk(0, int(poker.Ace))
	return out
}

// representatives builds the offsuit hand for a rank multiset and, when all
// ranks differ, the suited hand too.
func representatives(ranks [5]uint8) []poker.Hand {
	var offsuit poker.Hand
	var occurrence [13]uint8
	distinct := true
	for i, r := range ranks {
		suit := occurrence[r]
		occurrence[r]++
		if suit > 0 {
			distinct = false
		}
		if i == len(ranks)-1 && distinct {
			// break the flush that occurrence-based suits would create
			suit = poker.Diamonds
		}
		offsuit.AddCard(poker.NewCard(r, suit))
	}
	if !distinct {
		return []poker.Hand{offsuit}
	}
	var suited poker.Hand
	for _, r := range ranks {
		suited.AddCard(poker.NewCard(r, poker.Spades))
	}
	return []poker.Hand{offsuit, suited}
}

// ScoreTable maps every canonical key to its lowball score.
func ScoreTable() (map[poker.CanonicalKey]poker.Score, error) {
	hands := CanonicalHands()
	out := make(map[poker.CanonicalKey]poker.Score, len(hands))
	for _, h := range hands {
		key, err := poker.Canonicalize(h)
		if err != nil {
			return nil, err
		}
		score, err := poker.LowballScore(h)
		if err != nil {
			return nil, err
		}
		out[key] = score
	}
	return out, nil
}
