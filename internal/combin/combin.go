// Package combin enumerates k-subsets and discard masks.
//
// Every generator returns freshly allocated subsets in lexicographic index
// order; callers may hand them to other goroutines without copying.
package combin

import (
	"math/bits"

	"github.com/lox/drawsolver/poker"
)

// Binomial returns n choose k using the multiplicative formula, which stays
// exact for every deck-sized input without computing factorials.
func Binomial(n, k int) uint64 {
	if k < 0 || n < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := uint64(1)
	for i := 1; i <= k; i++ {
		// result * (n-k+i) is always divisible by i at this point
		result = result * uint64(n-k+i) / uint64(i)
	}
	return result
}

// Indices returns every k-subset of {0..n-1} in lexicographic order.
func Indices(n, k int) [][]int {
	count := Binomial(n, k)
	if count == 0 {
		return nil
	}
	out := make([][]int, 0, count)
	if k == 0 {
		return append(out, []int{})
	}
	backing := make([]int, int(count)*k)

	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		subset := backing[len(out)*k : (len(out)+1)*k : (len(out)+1)*k]
		copy(subset, idx)
		out = append(out, subset)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// Combinations returns every k-subset of pool, in lexicographic index order.
func Combinations[T any](pool []T, k int) [][]T {
	indices := Indices(len(pool), k)
	if indices == nil {
		return nil
	}
	out := make([][]T, len(indices))
	backing := make([]T, len(indices)*k)
	for n, set := range indices {
		subset := backing[n*k : (n+1)*k : (n+1)*k]
		for i, idx := range set {
			subset[i] = pool[idx]
		}
		out[n] = subset
	}
	return out
}

// HandCombinations returns every k-card draw from pool as a bitset, which is
// far more compact than Combinations for the 47-card deck case.
func HandCombinations(pool []poker.Card, k int) []poker.Hand {
	n := len(pool)
	count := Binomial(n, k)
	if count == 0 {
		return nil
	}
	out := make([]poker.Hand, 0, count)
	if k == 0 {
		return append(out, 0)
	}

	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		var h poker.Hand
		for _, i := range idx {
			h.AddCard(pool[i])
		}
		out = append(out, h)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// DiscardMasks returns the power set of handSize positions: bit i set means
// position i is discarded.
func DiscardMasks(handSize int) []uint8 {
	if handSize < 0 || handSize > 8 {
		return nil
	}
	out := make([]uint8, 1<<uint(handSize))
	for m := range out {
		out[m] = uint8(m)
	}
	return out
}

// DiscardMasksByCount groups the power set by the number of discarded cards.
// Within a group masks follow the lexicographic order of their positions.
func DiscardMasksByCount(handSize int) [][]uint8 {
	if handSize < 0 || handSize > 8 {
		return nil
	}
	out := make([][]uint8, handSize+1)
	for k := 0; k <= handSize; k++ {
		for _, set := range Indices(handSize, k) {
			var m uint8
			for _, pos := range set {
				m |= 1 << uint(pos)
			}
			out[k] = append(out[k], m)
		}
	}
	return out
}

// MaskPositions lists the positions set in mask, ascending.
func MaskPositions(mask uint8) []int {
	out := make([]int, 0, bits.OnesCount8(mask))
	for m := mask; m != 0; m &= m - 1 {
		out = append(out, bits.TrailingZeros8(m))
	}
	return out
}
