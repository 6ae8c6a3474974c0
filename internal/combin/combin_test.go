package combin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/drawsolver/poker"
)

func TestBinomial(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n, k int
		want uint64
	}{
		{5, 0, 1},
		{5, 5, 1},
		{5, 2, 10},
		{47, 1, 47},
		{47, 3, 16215},
		{47, 5, 1533939},
		{52, 5, 2598960},
		{3, 4, 0},
		{3, -1, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Binomial(tc.n, tc.k), "C(%d,%d)", tc.n, tc.k)
	}
}

func TestIndicesLexicographic(t *testing.T) {
	t.Parallel()
	got := Indices(4, 2)
	want := [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	assert.Equal(t, want, got)

	assert.Equal(t, [][]int{{}}, Indices(3, 0))
	assert.Nil(t, Indices(2, 3))
}

func TestIndicesAreIndependent(t *testing.T) {
	t.Parallel()
	got := Indices(5, 2)
	got[0] = append(got[0], 99)
	assert.Equal(t, []int{0, 2}, got[1], "appending to one subset must not leak into the next")
}

func TestCombinationsCountAndOrder(t *testing.T) {
	t.Parallel()
	pool := []string{"a", "b", "c", "d", "e"}
	got := Combinations(pool, 3)
	require.Len(t, got, 10)
	assert.Equal(t, []string{"a", "b", "c"}, got[0])
	assert.Equal(t, []string{"c", "d", "e"}, got[9])

	seen := make(map[string]bool)
	for _, c := range got {
		key := c[0] + c[1] + c[2]
		assert.False(t, seen[key], "duplicate subset %s", key)
		seen[key] = true
	}
}

func TestHandCombinationsFullDeck(t *testing.T) {
	t.Parallel()
	deck := poker.Remaining(0)
	hands := HandCombinations(deck, 5)
	require.Len(t, hands, 2598960)
	for _, h := range hands[:1000] {
		require.Equal(t, 5, h.CountCards())
	}
	assert.Equal(t, poker.NewHand(deck[:5]...), hands[0])
	assert.Equal(t, poker.NewHand(deck[47:]...), hands[len(hands)-1])
}

func TestHandCombinationsEdgeCases(t *testing.T) {
	t.Parallel()
	pool := poker.Remaining(0)[:4]
	assert.Equal(t, []poker.Hand{0}, HandCombinations(pool, 0))
	assert.Nil(t, HandCombinations(pool, 5))
	assert.Len(t, HandCombinations(pool, 4), 1)
}

func TestDiscardMasks(t *testing.T) {
	t.Parallel()
	masks := DiscardMasks(5)
	require.Len(t, masks, 32)
	assert.Equal(t, uint8(0), masks[0])
	assert.Equal(t, uint8(31), masks[31])

	byCount := DiscardMasksByCount(5)
	require.Len(t, byCount, 6)
	total := 0
	for k, group := range byCount {
		assert.Len(t, group, int(Binomial(5, k)))
		total += len(group)
	}
	assert.Equal(t, 32, total)
	assert.Equal(t, []uint8{0}, byCount[0])
	assert.Equal(t, []uint8{1, 2, 4, 8, 16}, byCount[1])
	assert.Equal(t, []uint8{31}, byCount[5])
}

func TestMaskPositions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []int{}, MaskPositions(0))
	assert.Equal(t, []int{0, 2, 4}, MaskPositions(0b10101))
}

func BenchmarkHandCombinations47Choose3(b *testing.B) {
	pool := poker.Remaining(poker.NewHand(poker.Remaining(0)[:5]...))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = HandCombinations(pool, 3)
	}
}
