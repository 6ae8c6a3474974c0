package solver

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"strings"

	"github.com/lox/drawsolver/poker"
)

// ErrUnhandledState reports a history the game does not recognise. It is
// always fatal: a game that cannot classify a history has a bug.
var ErrUnhandledState = errors.New("unhandled game state")

// Deal is the chance outcome of one training iteration.
type Deal struct {
	// Hands are each player's private cards.
	Hands [2]poker.Hand
	// Board holds community cards in reveal order.
	Board []poker.Card
	// Stub is the undealt deck in draw order.
	Stub []poker.Card
}

// Node describes the state reached by a history.
type Node struct {
	Terminal bool
	// Player is the seat to act at a decision node.
	Player int
	// Actions are the strings appended to the history for each legal move.
	// A move that closes a betting or draw round carries the round separator.
	Actions []string
	// Utility is the payoff to each seat at a terminal node.
	Utility [2]float64
}

// Game is a two-player zero-sum game the trainer can traverse. Histories are
// strings of action tokens; the game owns their grammar.
type Game interface {
	Name() string
	Deal(rng *rand.Rand) Deal
	Node(deal *Deal, history string) (Node, error)
	InfoSetKey(deal *Deal, history string, player int) (string, error)
}

const roundSeparator = "_"

// ActionLabel strips the round separator from an action string.
func ActionLabel(action string) string {
	return strings.TrimSuffix(action, roundSeparator)
}

func unhandled(game, history string) error {
	return fmt.Errorf("%w: %s history %q", ErrUnhandledState, game, history)
}

// NewGame builds a game by name.
func NewGame(name string, abs AbstractionConfig, draw DrawConfig) (Game, error) {
	switch name {
	case "kuhn":
		return Kuhn{}, nil
	case "holdem":
		return NewLimitHoldem(abs)
	case "lowball":
		return NewLowballDraw(draw)
	default:
		return nil, fmt.Errorf("unknown game %q", name)
	}
}
