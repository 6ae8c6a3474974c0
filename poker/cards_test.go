package poker

import (
	"errors"
	rand "math/rand/v2"
	"testing"
)

func TestParseCard(t *testing.T) {
	t.Parallel()
	valid := []struct {
		in    string
		rank  uint8
		suit  uint8
		index int
	}{
		{"2c", Two, Clubs, 0},
		{"7d", Seven, Diamonds, 18},
		{"Th", Ten, Hearts, 34},
		{"tH", Ten, Hearts, 34},
		{"As", Ace, Spades, 51},
	}
	for _, tc := range valid {
		card, err := ParseCard(tc.in)
		if err != nil {
			t.Fatalf("ParseCard(%q): %v", tc.in, err)
		}
		if card.Rank() != tc.rank || card.Suit() != tc.suit || card.Index() != tc.index {
			t.Fatalf("ParseCard(%q) = rank %d suit %d index %d", tc.in, card.Rank(), card.Suit(), card.Index())
		}
	}

	for _, in := range []string{"", "A", "Asd", "1s", "Xs", "Ax", "10h"} {
		if _, err := ParseCard(in); !errors.Is(err, ErrInvalidCard) {
			t.Fatalf("ParseCard(%q) error = %v, want ErrInvalidCard", in, err)
		}
	}
}

func TestCardStringRoundTrip(t *testing.T) {
	t.Parallel()
	seen := make(map[Card]bool, 52)
	for _, card := range Remaining(0) {
		parsed, err := ParseCard(card.String())
		if err != nil || parsed != card {
			t.Fatalf("round trip %s: got %v, %v", card, parsed, err)
		}
		seen[card] = true
	}
	if len(seen) != 52 {
		t.Fatalf("expected 52 distinct cards, got %d", len(seen))
	}
}

func TestHandSetOperations(t *testing.T) {
	t.Parallel()
	seven := NewCard(Seven, Hearts)
	deuce := NewCard(Two, Hearts)
	ace := NewCard(Ace, Clubs)

	hand := NewHand(seven, deuce)
	hand.AddCard(ace)
	hand.AddCard(ace)
	if hand.CountCards() != 3 {
		t.Fatalf("adding a card twice should not double count, got %d", hand.CountCards())
	}
	if got := hand.GetSuitMask(Hearts); got != 1<<Seven|1<<Two {
		t.Fatalf("hearts mask = %013b", got)
	}
	if got := hand.RankMask(); got != 1<<Seven|1<<Two|1<<Ace {
		t.Fatalf("rank mask = %013b", got)
	}

	hand.RemoveCard(seven)
	hand.RemoveCard(seven)
	if hand.HasCard(seven) || !hand.HasCard(deuce) || hand.CountCards() != 2 {
		t.Fatalf("unexpected hand after removal: %s", hand)
	}
	if hand.GetSuitMask(Spades) != 0 {
		t.Fatalf("no spades were added")
	}
}

func TestDeckDealsEveryCardOnce(t *testing.T) {
	t.Parallel()
	deck := NewDeck(rand.New(rand.NewPCG(7, 11)))

	var dealt Hand
	for deck.CardsRemaining() > 0 {
		c := deck.DealOne()
		if dealt.HasCard(c) {
			t.Fatalf("card %s dealt twice", c)
		}
		dealt.AddCard(c)
	}
	if dealt.CountCards() != 52 {
		t.Fatalf("dealt %d cards, want 52", dealt.CountCards())
	}
	if deck.DealOne() != 0 || deck.Deal(1) != nil {
		t.Fatalf("an empty deck must not deal")
	}

	deck.Reset()
	if deck.CardsRemaining() != 52 || len(deck.Deal(5)) != 5 {
		t.Fatalf("reset deck should deal again")
	}
}

func TestCardIndexRoundTrip(t *testing.T) {
	t.Parallel()
	for idx := 0; idx < 52; idx++ {
		card, err := CardFromIndex(idx)
		if err != nil {
			t.Fatalf("CardFromIndex(%d): %v", idx, err)
		}
		if card.Index() != idx {
			t.Fatalf("index round trip: got %d want %d", card.Index(), idx)
		}
		if NewCard(card.Rank(), card.Suit()) != card {
			t.Fatalf("rank/suit round trip failed for %s", card)
		}
	}
	if _, err := CardFromIndex(52); !errors.Is(err, ErrInvalidCard) {
		t.Fatalf("expected ErrInvalidCard for 52, got %v", err)
	}
}

func TestParseHandRejectsBadSizes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		cards []string
		want  error
	}{
		{"four cards", []string{"2s", "3s", "4s", "7c"}, ErrHandSize},
		{"six cards", []string{"2s", "3s", "4s", "7c", "8h", "9d"}, ErrHandSize},
		{"duplicate", []string{"2s", "3s", "4s", "7c", "2s"}, ErrDuplicateCard},
		{"bad card", []string{"2s", "3s", "4s", "7c", "1x"}, ErrInvalidCard},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseHand(tc.cards); !errors.Is(err, tc.want) {
				t.Fatalf("ParseHand(%v) error = %v, want %v", tc.cards, err, tc.want)
			}
		})
	}

	hand, err := ParseHand([]string{"2s", "3s", "4s", "7c", "8h"})
	if err != nil {
		t.Fatalf("ParseHand: %v", err)
	}
	if hand.CountCards() != 5 {
		t.Fatalf("expected 5 cards, got %d", hand.CountCards())
	}
}

func TestSortedCardsOrder(t *testing.T) {
	t.Parallel()
	hand, err := ParseHand([]string{"2s", "Ah", "7c", "7d", "Ts"})
	if err != nil {
		t.Fatalf("ParseHand: %v", err)
	}
	got := hand.SortedCards()
	want := []string{"Ah", "Ts", "7d", "7c", "2s"}
	for i, c := range got {
		if c.String() != want[i] {
			t.Fatalf("SortedCards()[%d] = %s, want %s", i, c, want[i])
		}
	}
	if hand.String() != "Ah Ts 7d 7c 2s" {
		t.Fatalf("unexpected hand string %q", hand.String())
	}
	if hand.GetCard(0) != hand.Cards()[0] {
		t.Fatalf("GetCard(0) should match first card in index order")
	}
}

func TestRemainingExcludesHand(t *testing.T) {
	t.Parallel()
	hand, _ := ParseHand([]string{"2s", "3s", "4s", "7c", "8h"})
	rest := Remaining(hand)
	if len(rest) != 47 {
		t.Fatalf("expected 47 remaining cards, got %d", len(rest))
	}
	for _, c := range rest {
		if hand.HasCard(c) {
			t.Fatalf("remaining deck contains hand card %s", c)
		}
	}

	deck := NewDeckWithout(rand.New(rand.NewPCG(1, 2)), hand)
	if deck.CardsRemaining() != 47 {
		t.Fatalf("expected 47 cards in deck, got %d", deck.CardsRemaining())
	}
	deck.Deal(5)
	if len(deck.Rest()) != 42 {
		t.Fatalf("expected 42 undealt cards, got %d", len(deck.Rest()))
	}
}

func BenchmarkParseHand(b *testing.B) {
	cards := []string{"7h", "5d", "4c", "3s", "2h"}
	for i := 0; i < b.N; i++ {
		_, _ = ParseHand(cards)
	}
}

func BenchmarkRemaining(b *testing.B) {
	hand, _ := ParseHand([]string{"7h", "5d", "4c", "3s", "2h"})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Remaining(hand)
	}
}
