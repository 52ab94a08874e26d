package sim

import rand "math/rand/v2"

// newRand returns a generator seeded deterministically from a single int64
// so tests can pin sequences. The splitmix64 finalizer expands the seed
// into the two words PCG wants.
func newRand(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+0x9e3779b97f4a7c15)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
