package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint32 returns a pseudo-random uint32.
func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint32()
}

// Bytes returns n pseudo-random bytes.
func (r *RNG) Bytes(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	r.rand.Read(b)
	return b
}

// boundaries are the values where the order-preserving codec changes width.
var boundaries = []uint32{
	0, 1, 0x7e, 0x7f, 0x80,
	0x3fff, 0x4000, 0x1fffff, 0x200000,
	0x0fffffff, 0x10000000, math.MaxUint32 - 1, math.MaxUint32,
}

// BoundaryValues returns n values, half of them drawn from the codec width
// boundaries and half uniformly.
func (r *RNG) BoundaryValues(n int) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, n)
	for i := range out {
		if r.rand.Intn(2) == 0 {
			out[i] = boundaries[r.rand.Intn(len(boundaries))]
		} else {
			out[i] = r.rand.Uint32()
		}
	}
	return out
}

// Rows returns num rows of the given arity with values in [0, maxID].
// Small maxID values produce duplicate rows and shared prefixes.
func (r *RNG) Rows(num, arity int, maxID uint32) [][]uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make([][]uint32, num)
	for i := range rows {
		row := make([]uint32, arity)
		for j := range row {
			row[j] = uint32(r.rand.Int63n(int64(maxID) + 1))
		}
		rows[i] = row
	}
	return rows
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_0123456789"

// Identifier returns a random identifier of 1 to maxLen characters.
func (r *RNG) Identifier(maxLen int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identifierLocked(maxLen)
}

func (r *RNG) identifierLocked(maxLen int) string {
	n := 1 + r.rand.Intn(maxLen)
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Symbols returns num qualified names drawn Zipf-skewed from a vocabulary of
// distinct names, so popular names repeat as they do in real code.
func (r *RNG) Symbols(num, distinct int, s float64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	vocab := make([]string, distinct)
	for i := range vocab {
		vocab[i] = fmt.Sprintf("pkg%d.%s", i%7, r.identifierLocked(12))
	}
	out := make([]string, num)
	for i := range out {
		out[i] = vocab[r.zipfLocked(distinct, s)]
	}
	return out
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	// Compute normalization constant (harmonic number with exponent s)
	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Sample from uniform and use inverse transform
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1 // 0-indexed
		}
	}

	return n - 1
}
