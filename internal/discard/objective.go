package discard

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"strconv"

	"github.com/lox/drawsolver/poker"
)

// ErrDeckTooSmall reports too few unseen cards to deal an opponent.
var ErrDeckTooSmall = errors.New("not enough unseen cards for the opponent")

// Objective scores final hands. The solver averages Evaluate over draws and
// keeps the discard whose average Better prefers.
type Objective interface {
	// Tag is appended to table keys; the default objective has none.
	Tag() string
	// Evaluate scores a final hand while unseen cards are still undealt.
	Evaluate(hand, unseen poker.Hand) (Score, error)
	// Better reports whether a beats b. Unreachable never beats anything.
	Better(a, b Score) bool
}

// LowScore minimises the average 2-7 lowball score.
type LowScore struct{}

func (LowScore) Tag() string { return "" }

func (LowScore) Evaluate(hand, _ poker.Hand) (Score, error) {
	s, err := poker.LowballScore(hand)
	return Score(s), err
}

func (LowScore) Better(a, b Score) bool { return a < b }

// WinProbability maximises the chance of beating one opponent who is dealt
// five unseen cards, throws OpponentDraws of them and draws replacements.
// The opponent throws paired cards first, then its highest cards. Ties count
// as half a win.
//
// The opponent is sampled, Opponents times per final hand. A WinProbability
// owns its rng and is not safe for concurrent use.
type WinProbability struct {
	opponentDraws int
	opponents     int
	rng           *rand.Rand
	scratch       []poker.Card
}

// NewWinProbability returns the objective for an opponent drawing draws
// cards, estimated from opponents samples.
func NewWinProbability(draws, opponents int, rng *rand.Rand) (*WinProbability, error) {
	if draws < 0 || draws > 5 {
		return nil, fmt.Errorf("opponent draws must be between 0 and 5 (got %d)", draws)
	}
	if opponents < 1 {
		return nil, fmt.Errorf("opponent samples must be >= 1 (got %d)", opponents)
	}
	if rng == nil {
		return nil, errors.New("win probability needs an rng")
	}
	return &WinProbability{opponentDraws: draws, opponents: opponents, rng: rng}, nil
}

func (w *WinProbability) Tag() string {
	return "W" + strconv.Itoa(w.opponentDraws) + "x" + strconv.Itoa(w.opponents)
}

func (w *WinProbability) Better(a, b Score) bool {
	if a.IsUnreachable() {
		return false
	}
	return b.IsUnreachable() || a > b
}

func (w *WinProbability) Evaluate(hand, unseen poker.Hand) (Score, error) {
	mine, err := poker.LowballScore(hand)
	if err != nil {
		return 0, err
	}
	w.scratch = append(w.scratch[:0], unseen.Cards()...)
	cards := w.scratch
	if len(cards) < 5 {
		return 0, fmt.Errorf("%w: %d left", ErrDeckTooSmall, len(cards))
	}
	draws := min(w.opponentDraws, len(cards)-5)

	var won float64
	for i := 0; i < w.opponents; i++ {
		// the first five are dealt, the next draws replace the throws
		for j := 0; j < 5+draws; j++ {
			swap := j + w.rng.IntN(len(cards)-j)
			cards[j], cards[swap] = cards[swap], cards[j]
		}
		theirs := poker.NewHand(cards[:5]...)
		if draws > 0 {
			theirs = theirs&^opponentThrows(theirs, draws) | poker.NewHand(cards[5:5+draws]...)
		}
		score, err := poker.LowballScore(theirs)
		if err != nil {
			return 0, err
		}
		switch {
		case score > mine:
			won++
		case score == mine:
			won += 0.5
		}
	}
	return Score(won / float64(w.opponents)), nil
}

// opponentThrows picks n cards to throw: duplicates of a rank already held,
// highest first, then the highest singletons.
func opponentThrows(hand poker.Hand, n int) poker.Hand {
	cards := hand.SortedCards() // high to low
	var seen uint16
	var pairs, singles []poker.Card
	for i := len(cards) - 1; i >= 0; i-- {
		bit := uint16(1) << cards[i].Rank()
		if seen&bit != 0 {
			pairs = append(pairs, cards[i])
		} else {
			seen |= bit
			singles = append(singles, cards[i])
		}
	}
	var out poker.Hand
	for i := len(pairs) - 1; i >= 0 && n > 0; i-- {
		out.AddCard(pairs[i])
		n--
	}
	for i := len(singles) - 1; i >= 0 && n > 0; i-- {
		out.AddCard(singles[i])
		n--
	}
	return out
}
