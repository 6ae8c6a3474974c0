// Package randutil derives reproducible random streams from a single seed.
package randutil

import rand "math/rand/v2"

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from seed. rand/v2's PCG
// needs two 64-bit words; both are derived here so every caller agrees.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Derive returns the seed for stream id under a parent seed. Workers and
// parallel tables use it so each gets an independent but repeatable stream.
func Derive(seed int64, id int) int64 {
	return int64(mix(uint64(seed) + uint64(id+1)*goldenRatio64))
}

// Counter wraps a PCG source and counts draws so a generator can be
// restored to the same position later.
type Counter struct {
	src   *rand.PCG
	draws uint64
}

// NewCounter returns a counting source for seed.
func NewCounter(seed int64) *Counter {
	u := uint64(seed)
	return &Counter{src: rand.NewPCG(mix(u), mix(u+goldenRatio64))}
}

// Uint64 implements rand.Source.
func (c *Counter) Uint64() uint64 {
	c.draws++
	return c.src.Uint64()
}

// Draws reports how many values have been produced.
func (c *Counter) Draws() uint64 {
	return c.draws
}

// Skip advances the source by n draws.
func (c *Counter) Skip(n uint64) {
	for i := uint64(0); i < n; i++ {
		c.Uint64()
	}
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
