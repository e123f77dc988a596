// Package randsrc provides the single process-wide source of randomness
// used by every FuzzerK component that needs it (variant Specials, the
// fuzzer registry's random generators, and buf8randomize). FuzzerK has
// no seeding interface (spec §5): the generator seeds itself once from
// the OS CSPRNG at package initialization and is shared, under a mutex,
// by all callers for the lifetime of the process.
package randsrc

import (
	crand "crypto/rand"
	"math/big"
	"sync"
	"time"

	"pgregory.net/rand"
)

var (
	mu     sync.Mutex
	source = rand.New(seed())
)

func seed() int64 {
	n, err := crand.Int(crand.Reader, big.NewInt(1<<62))
	if err != nil {
		return time.Now().UnixNano()
	}
	return n.Int64()
}

// Read fills dst with fresh random bytes.
func Read(dst []byte) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = source.Read(dst)
}

// Intn returns a uniform random value in [0, n). It panics if n <= 0.
func Intn(n int) int {
	mu.Lock()
	defer mu.Unlock()
	return source.Intn(n)
}

// IntRange returns a uniform random value in the inclusive range [lo, hi].
// If hi < lo the range is treated as the single value lo.
func IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	mu.Lock()
	defer mu.Unlock()
	return lo + source.Intn(hi-lo+1)
}
