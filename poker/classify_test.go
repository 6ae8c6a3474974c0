package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHand(t *testing.T, cards ...string) Hand {
	t.Helper()
	h, err := ParseHand(cards)
	require.NoError(t, err)
	return h
}

func TestClassifyCategories(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		cards []string
		want  HandType
		ranks []uint8
	}{
		{"high card", []string{"2s", "3s", "4s", "7c", "8h"}, HighCard, []uint8{Eight, Seven, Four, Three, Two}},
		{"pair", []string{"Ks", "Kd", "4s", "7c", "8h"}, Pair, []uint8{King, Eight, Seven, Four}},
		{"two pair", []string{"Ks", "Kd", "4s", "4c", "8h"}, TwoPair, []uint8{King, Four, Eight}},
		{"trips", []string{"9s", "9d", "9h", "4c", "8h"}, ThreeOfAKind, []uint8{Nine, Eight, Four}},
		{"straight", []string{"9s", "Td", "Jh", "Qc", "Kh"}, Straight, []uint8{King, Queen, Jack, Ten, Nine}},
		{"flush", []string{"2h", "9h", "Jh", "Qh", "Kh"}, Flush, []uint8{King, Queen, Jack, Nine, Two}},
		{"full house", []string{"3s", "3d", "3h", "Ac", "Ah"}, FullHouse, []uint8{Three, Ace}},
		{"quads", []string{"3s", "3d", "3h", "3c", "Ah"}, FourOfAKind, []uint8{Three, Ace}},
		{"straight flush", []string{"5d", "6d", "7d", "8d", "9d"}, StraightFlush, []uint8{Nine, Eight, Seven, Six, Five}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, err := Classify(mustHand(t, tc.cards...))
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Type, "type %s", c.Type)
			assert.Equal(t, tc.ranks, c.Ranks)
		})
	}
}

func TestClassifyWheelKeepsAceHigh(t *testing.T) {
	t.Parallel()
	c, err := Classify(mustHand(t, "As", "2d", "3h", "4c", "5h"))
	require.NoError(t, err)
	assert.True(t, c.Wheel)
	assert.True(t, c.Straight)
	assert.Equal(t, Straight, c.Type)
	assert.Equal(t, Five, c.StraightHigh)
	assert.Equal(t, []uint8{Ace, Five, Four, Three, Two}, c.Ranks)

	notWheel, err := Classify(mustHand(t, "As", "2d", "3h", "4c", "6h"))
	require.NoError(t, err)
	assert.False(t, notWheel.Wheel)
	assert.False(t, notWheel.Straight)
}

func TestClassifyRejectsWrongSize(t *testing.T) {
	t.Parallel()
	_, err := Classify(NewHand(NewCard(Two, Spades), NewCard(Three, Spades)))
	require.ErrorIs(t, err, ErrHandSize)
}
