package solver

import (
	rand "math/rand/v2"

	"github.com/lox/drawsolver/poker"
)

// Kuhn is three-card Kuhn poker: one card each from J, Q, K, one ante each
// and a single pass/bet round.
type Kuhn struct{}

var kuhnDeck = [3]poker.Card{
	poker.NewCard(poker.Jack, poker.Spades),
	poker.NewCard(poker.Queen, poker.Spades),
	poker.NewCard(poker.King, poker.Spades),
}

func (Kuhn) Name() string { return "kuhn" }

// Deal gives each player a distinct card from the three card deck.
func (Kuhn) Deal(rng *rand.Rand) Deal {
	perm := rng.Perm(len(kuhnDeck))
	return Deal{
		Hands: [2]poker.Hand{poker.NewHand(kuhnDeck[perm[0]]), poker.NewHand(kuhnDeck[perm[1]])},
		Stub:  []poker.Card{kuhnDeck[perm[2]]},
	}
}

func (k Kuhn) Node(deal *Deal, history string) (Node, error) {
	switch history {
	case "", "b", "p", "pb":
		return Node{Player: len(history) % 2, Actions: []string{"p", "b"}}, nil
	case "pp":
		return Node{Terminal: true, Utility: k.showdown(deal, 1)}, nil
	case "bb", "pbb":
		return Node{Terminal: true, Utility: k.showdown(deal, 2)}, nil
	case "bp":
		return Node{Terminal: true, Utility: [2]float64{1, -1}}, nil
	case "pbp":
		return Node{Terminal: true, Utility: [2]float64{-1, 1}}, nil
	default:
		return Node{}, unhandled(k.Name(), history)
	}
}

func (Kuhn) showdown(deal *Deal, stake float64) [2]float64 {
	if deal.Hands[0] > deal.Hands[1] {
		return [2]float64{stake, -stake}
	}
	return [2]float64{-stake, stake}
}

// InfoSetKey is the player's card rank followed by the history, e.g. "J:pb".
func (k Kuhn) InfoSetKey(deal *Deal, history string, player int) (string, error) {
	cards := deal.Hands[player].Cards()
	if len(cards) != 1 {
		return "", unhandled(k.Name(), history)
	}
	return cards[0].String()[:1] + ":" + history, nil
}
