package fuzz

// Chain is a mutating fuzz chain (spec §4.C): it owns a step counter
// that advances on every Get call. Its fuzzer references are shared
// (the same Fuzzer instance may also appear in other chains), but a
// Chain itself is exclusively owned by whoever holds it — two goroutines
// must not share one Chain's Get calls without external synchronization,
// since FuzzerK's execution model is single-threaded (spec §5) anyway.
type Chain struct {
	Fuzzers []Fuzzer
	step    int
}

// NewChain returns a Chain over the given fuzzers, step counter at 0.
func NewChain(fuzzers ...Fuzzer) *Chain {
	return &Chain{Fuzzers: fuzzers}
}

// Get concatenates the output of every fuzzer in chain order into a
// freshly allocated buffer, then advances the internal step counter by
// one. A chain with zero fuzzers returns the empty buffer.
func (c *Chain) Get() []byte {
	var out []byte
	for _, f := range c.Fuzzers {
		out = f.Append(out, c.step)
	}
	c.step++
	return out
}

// Step returns the step that will be passed to the next Get call.
func (c *Chain) Step() int { return c.step }

// ChainImmut is the stateless counterpart of Chain: Get takes the step
// explicitly and the chain itself carries no mutable state, so the same
// ChainImmut can be queried out of order or concurrently.
type ChainImmut struct {
	Fuzzers []Fuzzer
}

// NewChainImmut returns a ChainImmut over the given fuzzers.
func NewChainImmut(fuzzers ...Fuzzer) *ChainImmut {
	return &ChainImmut{Fuzzers: fuzzers}
}

// Get concatenates the output of every fuzzer in chain order at the
// given step into a freshly allocated buffer, leaving no state behind.
func (c *ChainImmut) Get(step int) []byte {
	var out []byte
	for _, f := range c.Fuzzers {
		out = f.Append(out, step)
	}
	return out
}
