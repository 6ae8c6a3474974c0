package solver

import (
	"fmt"
	"math/bits"
	rand "math/rand/v2"
	"strconv"
	"strings"

	"github.com/lox/drawsolver/internal/combin"
	"github.com/lox/drawsolver/poker"
)

// maskTokens encodes a discard mask (bit i = position i of the sorted hand)
// as one base-32 character.
const maskTokens = "0123456789abcdefghijklmnopqrstuv"

var lowballBetting = bettingTokens{check: 'p', fold: 'p', bet: 'b', call: 'c'}

// LowballDraw is heads-up 2-7 draw. Betting rounds use p (check, or fold
// when facing a bet), b (bet or raise) and c (call). Draw rounds hold one
// mask token per player, seat 0 first. Rounds are separated by "_".
//
// Without betting the game is a pure discard contest over DrawRounds draws
// for the one-unit antes.
type LowballDraw struct {
	cfg DrawConfig
}

// NewLowballDraw validates cfg and returns the game.
func NewLowballDraw(cfg DrawConfig) (*LowballDraw, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LowballDraw{cfg: cfg}, nil
}

func (g *LowballDraw) Name() string { return "lowball" }

// Deal gives each player five cards; the rest of the deck is the draw stub.
func (g *LowballDraw) Deal(rng *rand.Rand) Deal {
	deck := poker.NewDeck(rng)
	return Deal{
		Hands: [2]poker.Hand{poker.NewHand(deck.Deal(5)...), poker.NewHand(deck.Deal(5)...)},
		Stub:  deck.Rest(),
	}
}

func (g *LowballDraw) segments() int {
	if g.cfg.Betting {
		return 2*g.cfg.DrawRounds + 1
	}
	return g.cfg.DrawRounds
}

// isDraw reports whether segment i is a draw round.
func (g *LowballDraw) isDraw(i int) bool {
	return !g.cfg.Betting || i%2 == 1
}

// betUnit is 1 for the first two betting rounds and 2 afterwards.
func betUnit(round int) float64 {
	if round < 2 {
		return 1
	}
	return 2
}

// lowballState is a replayed history.
type lowballState struct {
	hands   [2]poker.Hand
	contrib [2]float64
	node    Node
	public  strings.Builder
}

func (g *LowballDraw) replay(deal *Deal, history string) (*lowballState, error) {
	st := &lowballState{hands: deal.Hands, contrib: [2]float64{1, 1}}
	segs := strings.Split(history, roundSeparator)
	total := g.segments()
	if len(segs) > total {
		return nil, unhandled(g.Name(), history)
	}
	stub := 0
	for i, seg := range segs {
		last := i == len(segs)-1
		more := i < total-1
		sep := ""
		if more {
			sep = roundSeparator
		}
		if i > 0 {
			st.public.WriteString(roundSeparator)
		}

		if !g.isDraw(i) {
			r, ok := playBetting(seg, lowballBetting, betUnit(i/2), g.cfg.MaxBets, &st.contrib)
			if !ok {
				return nil, unhandled(g.Name(), history)
			}
			st.public.WriteString(seg)
			switch {
			case r.folder >= 0:
				if !last {
					return nil, unhandled(g.Name(), history)
				}
				st.node = Node{Terminal: true, Utility: foldUtility(r.folder, st.contrib)}
				return st, nil
			case r.closed && (last == more):
				// a closed round needs a separator exactly when more rounds follow
				return nil, unhandled(g.Name(), history)
			case !r.closed && !last:
				return nil, unhandled(g.Name(), history)
			case !r.closed:
				st.node = Node{Player: r.toAct, Actions: r.legal(lowballBetting, g.cfg.MaxBets, sep)}
				return st, nil
			}
			continue
		}

		if len(seg) > 2 || (len(seg) == 2 && last == more) || (len(seg) < 2 && !last) {
			return nil, unhandled(g.Name(), history)
		}
		for seat := 0; seat < len(seg); seat++ {
			mask := strings.IndexByte(maskTokens, seg[seat])
			if mask < 0 {
				return nil, unhandled(g.Name(), history)
			}
			var err error
			st.hands[seat], stub, err = drawCards(st.hands[seat], uint8(mask), deal.Stub, stub)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", unhandled(g.Name(), history), err)
			}
			st.public.WriteString(strconv.Itoa(bits.OnesCount8(uint8(mask))))
		}
		if len(seg) < 2 {
			st.node = Node{Player: len(seg), Actions: drawActions(sep, len(seg) == 1)}
			return st, nil
		}
	}

	s0, err := poker.LowballScore(st.hands[0])
	if err != nil {
		return nil, err
	}
	s1, err := poker.LowballScore(st.hands[1])
	if err != nil {
		return nil, err
	}
	st.node = Node{Terminal: true, Utility: showdownUtility(int(s0)-int(s1), st.contrib)}
	return st, nil
}

// drawCards replaces the masked positions of the sorted hand with the next
// cards of the stub.
func drawCards(hand poker.Hand, mask uint8, stub []poker.Card, next int) (poker.Hand, int, error) {
	sorted := hand.SortedCards()
	for _, pos := range combin.MaskPositions(mask) {
		if pos >= len(sorted) {
			return hand, next, fmt.Errorf("discard position %d out of range", pos)
		}
		if next >= len(stub) {
			return hand, next, fmt.Errorf("draw stub exhausted")
		}
		hand.RemoveCard(sorted[pos])
		hand.AddCard(stub[next])
		next++
	}
	return hand, next, nil
}

var drawMasks = combin.DiscardMasks(5)

// drawActions lists every discard mask. The second player's token closes the
// round so it carries sep.
func drawActions(sep string, closing bool) []string {
	out := make([]string, len(drawMasks))
	for i, m := range drawMasks {
		out[i] = string(maskTokens[m])
		if closing {
			out[i] += sep
		}
	}
	return out
}

func (g *LowballDraw) Node(deal *Deal, history string) (Node, error) {
	st, err := g.replay(deal, history)
	if err != nil {
		return Node{}, err
	}
	return st.node, nil
}

// InfoSetKey is the canonical form of the player's current hand followed by
// the public history, in which draws appear only as card counts.
func (g *LowballDraw) InfoSetKey(deal *Deal, history string, player int) (string, error) {
	st, err := g.replay(deal, history)
	if err != nil {
		return "", err
	}
	key, err := poker.Canonicalize(st.hands[player])
	if err != nil {
		return "", err
	}
	return string(key) + ":" + st.public.String(), nil
}
