// Package discard computes the average outcome, lowball score or win
// probability, of every way of discarding from a five card hand.
package discard

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lox/drawsolver/poker"
)

var (
	// ErrInvalidRounds reports a negative rounds-remaining argument.
	ErrInvalidRounds = errors.New("rounds remaining must be >= 0")
	// ErrDeckOverlap reports deck cards that are also in the hand.
	ErrDeckOverlap = errors.New("deck overlaps hand")
)

// Score is an averaged outcome: a lowball score, where lower is better, or
// a win probability, where higher is better. +Inf marks a discard count that
// cannot be played. It encodes to JSON rounded to three
// decimals, with +Inf as null.
type Score float64

// Unreachable is the score of a discard count that cannot be played.
var Unreachable = Score(math.Inf(1))

// IsUnreachable reports whether s is +Inf.
func (s Score) IsUnreachable() bool { return math.IsInf(float64(s), 1) }

// Round returns s rounded to three decimals.
func (s Score) Round() Score {
	if s.IsUnreachable() {
		return s
	}
	return Score(math.Round(float64(s)*1000) / 1000)
}

func (s Score) MarshalJSON() ([]byte, error) {
	if s.IsUnreachable() {
		return []byte("null"), nil
	}
	if math.IsNaN(float64(s)) || math.IsInf(float64(s), -1) {
		return nil, fmt.Errorf("invalid score %v", float64(s))
	}
	return strconv.AppendFloat(nil, float64(s.Round()), 'f', -1, 64), nil
}

func (s *Score) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = Unreachable
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("decode score: %w", err)
	}
	*s = Score(f)
	return nil
}

// Result is the discard table entry for one canonical hand and round count.
// BestDiscard holds positions into the hand's SortedCards order so the entry
// applies to every hand sharing the canonical key.
type Result struct {
	Key                   string   `json:"key"`
	Rounds                int      `json:"rounds"`
	Samples               int      `json:"samples,omitempty"`
	Objective             string   `json:"objective,omitempty"`
	ScoresPerDiscardCount [6]Score `json:"scores_per_discard_count"`
	BestScore             Score    `json:"best_score"`
	BestDiscard           []int    `json:"best_discard"`
	BestDiscardCards      []string `json:"best_discard_cards,omitempty"`
}

// BestDiscardCount is the number of cards the best play throws.
func (r Result) BestDiscardCount() int { return len(r.BestDiscard) }

// withCards resolves the discard positions against hand.
func (r Result) withCards(hand poker.Hand) Result {
	sorted := hand.SortedCards()
	cards := make([]string, 0, len(r.BestDiscard))
	for _, pos := range r.BestDiscard {
		if pos >= 0 && pos < len(sorted) {
			cards = append(cards, sorted[pos].String())
		}
	}
	r.BestDiscardCards = cards
	r.BestDiscard = append([]int{}, r.BestDiscard...)
	return r
}

// Key formats the table key for a canonical hand: <canonical>:R<rounds>,
// then :S<samples> for sampled entries and :<objective> for objectives
// other than the lowball score.
func Key(canonical poker.CanonicalKey, rounds, samples int, objective string) string {
	k := string(canonical) + ":R" + strconv.Itoa(rounds)
	if samples > 0 {
		k += ":S" + strconv.Itoa(samples)
	}
	if objective != "" {
		k += ":" + objective
	}
	return k
}

// KeyParts is a parsed table key.
type KeyParts struct {
	Canonical poker.CanonicalKey
	Rounds    int
	Samples   int
	Objective string
}

// ParseKey splits a key produced by Key.
func ParseKey(key string) (KeyParts, error) {
	fields := strings.Split(key, ":")
	if len(fields) < 2 || len(fields) > 4 || fields[0] == "" || !strings.HasPrefix(fields[1], "R") {
		return KeyParts{}, fmt.Errorf("malformed table key %q", key)
	}
	p := KeyParts{Canonical: poker.CanonicalKey(fields[0])}
	var err error
	if p.Rounds, err = strconv.Atoi(fields[1][1:]); err != nil || p.Rounds < 0 {
		return KeyParts{}, fmt.Errorf("malformed rounds in table key %q", key)
	}
	rest := fields[2:]
	if len(rest) > 0 && strings.HasPrefix(rest[0], "S") {
		if p.Samples, err = strconv.Atoi(rest[0][1:]); err != nil || p.Samples < 1 {
			return KeyParts{}, fmt.Errorf("malformed samples in table key %q", key)
		}
		rest = rest[1:]
	}
	if len(rest) > 1 || (len(rest) == 1 && rest[0] == "") {
		return KeyParts{}, fmt.Errorf("malformed table key %q", key)
	}
	if len(rest) == 1 {
		p.Objective = rest[0]
	}
	return p, nil
}
