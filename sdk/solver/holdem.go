package solver

import (
	"fmt"
	rand "math/rand/v2"
	"strconv"
	"strings"

	ph "github.com/paulhankin/poker"

	"github.com/lox/drawsolver/poker"
)

const holdemMaxBets = 4

var holdemBetting = bettingTokens{check: 'k', fold: 'f', bet: 'b', call: 'c'}

// boardVisible is the number of board cards shown in each betting round.
var boardVisible = [4]int{0, 3, 4, 5}

// LimitHoldem is heads-up fixed-limit hold'em: one unit ante each, four
// betting rounds of k/b/c/f capped at four bets, bet units of 1 before the
// turn and 2 after. Info sets are bucketed through a BucketMapper.
type LimitHoldem struct {
	mapper *BucketMapper
}

// NewLimitHoldem builds the game over the given abstraction.
func NewLimitHoldem(abs AbstractionConfig) (*LimitHoldem, error) {
	mapper, err := NewBucketMapper(abs)
	if err != nil {
		return nil, err
	}
	return &LimitHoldem{mapper: mapper}, nil
}

func (g *LimitHoldem) Name() string { return "holdem" }

func (g *LimitHoldem) Deal(rng *rand.Rand) Deal {
	deck := poker.NewDeck(rng)
	hands := [2]poker.Hand{poker.NewHand(deck.Deal(2)...), poker.NewHand(deck.Deal(2)...)}
	board := deck.Deal(5)
	return Deal{Hands: hands, Board: board, Stub: deck.Rest()}
}

type holdemState struct {
	round   int
	contrib [2]float64
	node    Node
}

func (g *LimitHoldem) replay(deal *Deal, history string) (holdemState, error) {
	st := holdemState{contrib: [2]float64{1, 1}}
	segs := strings.Split(history, roundSeparator)
	if len(segs) > len(boardVisible) {
		return st, unhandled(g.Name(), history)
	}
	for i, seg := range segs {
		st.round = i
		last := i == len(segs)-1
		more := i < len(boardVisible)-1
		sep := ""
		if more {
			sep = roundSeparator
		}
		r, ok := playBetting(seg, holdemBetting, betUnit(i), holdemMaxBets, &st.contrib)
		if !ok {
			return st, unhandled(g.Name(), history)
		}
		switch {
		case r.folder >= 0:
			if !last {
				return st, unhandled(g.Name(), history)
			}
			st.node = Node{Terminal: true, Utility: foldUtility(r.folder, st.contrib)}
			return st, nil
		case r.closed && last == more:
			return st, unhandled(g.Name(), history)
		case !r.closed && !last:
			return st, unhandled(g.Name(), history)
		case !r.closed:
			st.node = Node{Player: r.toAct, Actions: r.legal(holdemBetting, holdemMaxBets, sep)}
			return st, nil
		}
	}

	cmp, err := g.compare(deal)
	if err != nil {
		return st, err
	}
	st.node = Node{Terminal: true, Utility: showdownUtility(cmp, st.contrib)}
	return st, nil
}

// compare is negative when seat 0 holds the better seven card hand.
func (g *LimitHoldem) compare(deal *Deal) (int, error) {
	var scores [2]int16
	for seat := range scores {
		cards := append(deal.Hands[seat].Cards(), deal.Board...)
		if len(cards) != 7 {
			return 0, fmt.Errorf("showdown needs 7 cards, seat %d has %d", seat, len(cards))
		}
		var a7 [7]ph.Card
		for i, c := range cards {
			pc, err := toLibraryCard(c)
			if err != nil {
				return 0, err
			}
			a7[i] = pc
		}
		scores[seat] = ph.Eval7(&a7)
	}
	// higher library scores are stronger
	return int(scores[1]) - int(scores[0]), nil
}

var librarySuits = [4]ph.Suit{ph.Club, ph.Diamond, ph.Heart, ph.Spade}

// toLibraryCard converts to the evaluator's encoding, where the ace is rank 1.
func toLibraryCard(c poker.Card) (ph.Card, error) {
	rank := ph.Rank(int(c.Rank()) + 2)
	if c.Rank() == poker.Ace {
		rank = ph.Rank(1)
	}
	return ph.MakeCard(librarySuits[c.Suit()], rank)
}

func (g *LimitHoldem) Node(deal *Deal, history string) (Node, error) {
	st, err := g.replay(deal, history)
	if err != nil {
		return Node{}, err
	}
	return st.node, nil
}

// InfoSetKey is "<round>/<bucket>:<history>". Preflop buckets come from the
// hole cards alone; later rounds bucket the hole cards with the visible board.
func (g *LimitHoldem) InfoSetKey(deal *Deal, history string, player int) (string, error) {
	st, err := g.replay(deal, history)
	if err != nil {
		return "", err
	}
	hole := deal.Hands[player]
	var bucket int
	if st.round == 0 {
		bucket = g.mapper.HoleBucket(hole)
	} else {
		bucket = g.mapper.BoardBucket(hole, deal.Board[:boardVisible[st.round]])
	}
	return strconv.Itoa(st.round) + "/" + strconv.Itoa(bucket) + ":" + history, nil
}
