package poker

import (
	rand "math/rand/v2"
)

// Deck is a shuffled stub of cards dealt from the top.
type Deck struct {
	cards []Card
	next  int
	rng   *rand.Rand
}

// NewDeck creates a full 52-card deck shuffled with rng.
func NewDeck(rng *rand.Rand) *Deck {
	return NewDeckWithout(rng, 0)
}

// NewDeckWithout creates a shuffled deck holding every card not in excluded.
func NewDeckWithout(rng *rand.Rand, excluded Hand) *Deck {
	d := &Deck{cards: Remaining(excluded), rng: rng}
	d.Shuffle()
	return d
}

// Remaining lists the cards not in excluded, in index order.
func Remaining(excluded Hand) []Card {
	out := make([]Card, 0, 52-excluded.CountCards())
	for idx := 0; idx < 52; idx++ {
		c := Card(1) << uint(idx)
		if !excluded.HasCard(c) {
			out = append(out, c)
		}
	}
	return out
}

// Shuffle resets the deck and applies Fisher-Yates.
func (d *Deck) Shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal deals n cards from the deck, or nil when not enough remain.
func (d *Deck) Deal(n int) []Card {
	if d.next+n > len(d.cards) {
		return nil
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards
}

// DealOne deals a single card, or 0 when the deck is empty.
func (d *Deck) DealOne() Card {
	if d.next >= len(d.cards) {
		return 0
	}
	card := d.cards[d.next]
	d.next++
	return card
}

// Rest returns a copy of the undealt cards in deal order.
func (d *Deck) Rest() []Card {
	out := make([]Card, len(d.cards)-d.next)
	copy(out, d.cards[d.next:])
	return out
}

// Reset reshuffles every card back into the deck.
func (d *Deck) Reset() {
	d.Shuffle()
}

// CardsRemaining returns the number of cards left in the deck.
func (d *Deck) CardsRemaining() int {
	return len(d.cards) - d.next
}
