package wildcard

import (
	"math/rand"
	"time"
)

// DefaultCycleCeiling bounds the shuffle-bag size derived from the pool size.
const DefaultCycleCeiling = 100

// PoolOption customizes pool construction.
type PoolOption func(*Pool)

// WithSeed makes the draw order reproducible.
func WithSeed(seed int64) PoolOption {
	return func(p *Pool) {
		p.rng = rand.New(rand.NewSource(seed))
	}
}

// WithCycleLength overrides the derived shuffle-bag size.
func WithCycleLength(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.cycleLen = n
		}
	}
}

// Pool holds the value set backing one placeholder name plus the smart-cycle
// draw state: a shuffle bag of not-yet-used indices and the last drawn index.
// Values are immutable after construction. A pool is not safe for concurrent
// draws; one resolution session owns it at a time.
type Pool struct {
	name     string
	values   []string
	bag      []int
	last     int
	cycleLen int
	rng      *rand.Rand
}

// NewPool creates a pool over the given values. The shuffle bag defaults to
// min(len(values), DefaultCycleCeiling).
func NewPool(name string, values []string, opts ...PoolOption) *Pool {
	owned := make([]string, len(values))
	copy(owned, values)

	p := &Pool{
		name:   name,
		values: owned,
		last:   -1,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.cycleLen = len(owned)
	if p.cycleLen > DefaultCycleCeiling {
		p.cycleLen = DefaultCycleCeiling
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the placeholder identifier this pool backs.
func (p *Pool) Name() string { return p.name }

// Size returns the number of values in the pool.
func (p *Pool) Size() int { return len(p.values) }

// Draw consumes one value from the shuffle bag, refilling it when empty.
// Within one bag pass no value repeats unless the pool is smaller than the
// bag, and the first value after a refill never repeats the last drawn one
// for pools of at least two values.
func (p *Pool) Draw() string {
	if len(p.values) == 0 {
		return ""
	}
	if len(p.values) == 1 {
		return p.values[0]
	}
	if len(p.bag) == 0 {
		p.refill()
	}
	idx := p.bag[0]
	p.bag = p.bag[1:]
	p.last = idx
	return p.values[idx]
}

// refill rebuilds the bag from uniformly shuffled index passes until it
// reaches the cycle length.
func (p *Pool) refill() {
	prev := p.last
	bag := make([]int, 0, p.cycleLen)
	for len(bag) < p.cycleLen {
		order := p.rng.Perm(len(p.values))
		if order[0] == prev {
			// Avoid an immediate repeat across the refill boundary.
			j := 1 + p.rng.Intn(len(order)-1)
			order[0], order[j] = order[j], order[0]
		}
		bag = append(bag, order...)
		prev = order[len(order)-1]
	}
	p.bag = bag[:p.cycleLen]
}
