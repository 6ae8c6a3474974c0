package poker

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// Card is a single playing card stored as one set bit. The bit index is
// suit*13 + rank, so a Card can be OR-ed straight into a Hand.
type Card uint64

// Ranks, deuce low.
const (
	Two uint8 = iota
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Suits.
const (
	Clubs uint8 = iota
	Diamonds
	Hearts
	Spades
)

const (
	rankChars = "23456789TJQKA"
	suitChars = "cdhs"
)

var (
	// ErrInvalidCard reports a card string or index that does not name a card.
	ErrInvalidCard = errors.New("invalid card")
	// ErrDuplicateCard reports the same card appearing twice in one hand.
	ErrDuplicateCard = errors.New("duplicate card")
	// ErrHandSize reports a hand with the wrong number of distinct cards.
	ErrHandSize = errors.New("hand must contain exactly 5 distinct cards")
)

// NewCard builds a card from a rank (0-12) and suit (0-3).
func NewCard(rank, suit uint8) Card {
	return Card(1) << (uint(suit)*13 + uint(rank))
}

// CardFromIndex converts the zero-based 0-51 encoding into a Card.
func CardFromIndex(idx int) (Card, error) {
	if idx < 0 || idx > 51 {
		return 0, fmt.Errorf("%w: index %d", ErrInvalidCard, idx)
	}
	return Card(1) << uint(idx), nil
}

// Index returns the zero-based 0-51 encoding of the card.
func (c Card) Index() int {
	return bits.TrailingZeros64(uint64(c))
}

// Rank returns 0 (deuce) through 12 (ace).
func (c Card) Rank() uint8 {
	return uint8(c.Index() % 13)
}

// Suit returns 0 (clubs) through 3 (spades).
func (c Card) Suit() uint8 {
	return uint8(c.Index() / 13)
}

func (c Card) String() string {
	if c == 0 || bits.OnesCount64(uint64(c)) != 1 || c.Index() > 51 {
		return "??"
	}
	return string([]byte{rankChars[c.Rank()], suitChars[c.Suit()]})
}

// ParseCard parses the two character form, e.g. "As" or "Tc".
func ParseCard(s string) (Card, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCard, s)
	}
	rank := strings.IndexByte(rankChars, upper(s[0]))
	suit := strings.IndexByte(suitChars, lower(s[1]))
	if rank < 0 || suit < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCard, s)
	}
	return NewCard(uint8(rank), uint8(suit)), nil
}

// ParseCards parses every string, failing on the first bad card.
func ParseCards(ss []string) ([]Card, error) {
	out := make([]Card, 0, len(ss))
	for _, s := range ss {
		c, err := ParseCard(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// Hand is an unordered set of cards.
type Hand uint64

// NewHand returns the set of the given cards. Duplicates collapse.
func NewHand(cards ...Card) Hand {
	var h Hand
	for _, c := range cards {
		h |= Hand(c)
	}
	return h
}

// NewHand5 builds a lowball hand, rejecting duplicates and wrong sizes.
func NewHand5(cards []Card) (Hand, error) {
	var h Hand
	for _, c := range cards {
		if bits.OnesCount64(uint64(c)) != 1 || c.Index() > 51 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidCard, uint64(c))
		}
		if h.HasCard(c) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateCard, c)
		}
		h.AddCard(c)
	}
	if n := h.CountCards(); n != 5 {
		return 0, fmt.Errorf("%w: got %d", ErrHandSize, n)
	}
	return h, nil
}

// ParseHand parses exactly five distinct cards.
func ParseHand(ss []string) (Hand, error) {
	cards, err := ParseCards(ss)
	if err != nil {
		return 0, err
	}
	return NewHand5(cards)
}

// AddCard adds c to the hand.
func (h *Hand) AddCard(c Card) {
	*h |= Hand(c)
}

// RemoveCard removes c from the hand.
func (h *Hand) RemoveCard(c Card) {
	*h &^= Hand(c)
}

// HasCard reports whether c is in the hand.
func (h Hand) HasCard(c Card) bool {
	return h&Hand(c) != 0
}

// CountCards returns the number of cards in the hand.
func (h Hand) CountCards() int {
	return bits.OnesCount64(uint64(h))
}

// GetSuitMask returns a 13-bit rank mask for the suit.
func (h Hand) GetSuitMask(suit uint8) uint16 {
	return uint16((uint64(h) >> (uint(suit) * 13)) & 0x1FFF)
}

// RankMask returns the ranks present in any suit.
func (h Hand) RankMask() uint16 {
	return h.GetSuitMask(Clubs) | h.GetSuitMask(Diamonds) | h.GetSuitMask(Hearts) | h.GetSuitMask(Spades)
}

// GetCard returns the i-th card in index order, or 0 when out of range.
func (h Hand) GetCard(i int) Card {
	rest := uint64(h)
	for ; rest != 0; i-- {
		low := rest & -rest
		if i == 0 {
			return Card(low)
		}
		rest &^= low
	}
	return 0
}

// Cards lists the hand in index order.
func (h Hand) Cards() []Card {
	out := make([]Card, 0, h.CountCards())
	for rest := uint64(h); rest != 0; rest &= rest - 1 {
		out = append(out, Card(rest&-rest))
	}
	return out
}

// SortedCards lists the hand by rank descending, then suit descending. Discard
// positions are always expressed against this order.
func (h Hand) SortedCards() []Card {
	out := make([]Card, 0, h.CountCards())
	for rank := int(Ace); rank >= int(Two); rank-- {
		for suit := int(Spades); suit >= int(Clubs); suit-- {
			c := NewCard(uint8(rank), uint8(suit))
			if h.HasCard(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func (h Hand) String() string {
	cards := h.SortedCards()
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
