package services

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"raffle/domain/entities"
)

const (
	// denseThreshold is the pool size below which free numbers are always enumerated.
	// 65536 (2^16) keeps enumeration fast and memory-bounded even at full usage.
	denseThreshold = 1 << 16
)

// RandomSource yields uniform integers in [0, n)
type RandomSource interface {
	IntN(n int) int
}

// globalRandom uses the goroutine-safe top-level generator
type globalRandom struct{}

func (globalRandom) IntN(n int) int {
	return rand.IntN(n)
}

// AllocationRequest describes one "assign N numbers for giveaway G" request
type AllocationRequest struct {
	// Taken holds numbers already claimed for the giveaway
	Taken []int
	// Requested holds the buyer's preferred numbers, possibly invalid or duplicated
	Requested []int
	// Amount is the number of tickets to assign
	Amount int
	// TicketsTotal is the giveaway capacity, 0 meaning unbounded
	TicketsTotal int
}

// NumberAllocator turns an allocation request into a concrete collision-free set
// of ticket numbers. It is a pure function over its inputs; callers serialize
// access to the taken set.
type NumberAllocator struct {
	rng RandomSource
}

// NewNumberAllocator creates an allocator. A nil source uses the process-wide generator.
func NewNumberAllocator(rng RandomSource) *NumberAllocator {
	if rng == nil {
		rng = globalRandom{}
	}
	return &NumberAllocator{rng: rng}
}

// Allocate returns exactly req.Amount distinct numbers, sorted ascending, none of which
// are taken. Usable requested numbers are always kept; the remainder is drawn uniformly
// from the free pool.
func (a *NumberAllocator) Allocate(req AllocationRequest) ([]int, error) {
	if req.Amount < 1 {
		return nil, fmt.Errorf("%w: ticket amount must be at least 1", entities.ErrInvalidAmount)
	}

	taken := make(map[int]struct{}, len(req.Taken))
	for _, n := range req.Taken {
		taken[n] = struct{}{}
	}

	usable := UsableRequested(taken, req.Requested, req.Amount, req.TicketsTotal)
	if len(usable) == req.Amount {
		sort.Ints(usable)
		return usable, nil
	}

	remaining := req.Amount - len(usable)

	excluded := make(map[int]struct{}, len(taken)+len(usable))
	for n := range taken {
		excluded[n] = struct{}{}
	}
	for _, n := range usable {
		excluded[n] = struct{}{}
	}

	ceiling := req.TicketsTotal
	if ceiling <= 0 {
		ceiling = unboundedCeiling(len(taken), req.Amount)
	}

	excludedInRange := 0
	for n := range excluded {
		if n >= 1 && n <= ceiling {
			excludedInRange++
		}
	}
	free := ceiling - excludedInRange
	if free < remaining {
		return nil, fmt.Errorf("%w: need %d more numbers, only %d free", entities.ErrInsufficientCapacity, remaining, free)
	}

	var picked []int
	usedRatio := float64(excludedInRange) / float64(ceiling)
	if ceiling <= denseThreshold || usedRatio > 0.5 {
		picked = a.pickFromPool(ceiling, excluded, free, remaining)
	} else {
		picked = a.pickWithRetry(ceiling, excluded, remaining)
	}

	result := append(usable, picked...)
	sort.Ints(result)
	return result, nil
}

// pickFromPool enumerates the free numbers and runs a partial Fisher-Yates shuffle.
// Used when the pool is small or heavily used.
func (a *NumberAllocator) pickFromPool(ceiling int, excluded map[int]struct{}, free, count int) []int {
	available := make([]int, 0, free)
	for n := 1; n <= ceiling; n++ {
		if _, ok := excluded[n]; !ok {
			available = append(available, n)
		}
	}

	for i := 0; i < count; i++ {
		j := i + a.rng.IntN(len(available)-i)
		available[i], available[j] = available[j], available[i]
	}

	return available[:count]
}

// pickWithRetry draws random numbers and rejects collisions.
// Efficient for large pools where collisions are rare.
func (a *NumberAllocator) pickWithRetry(ceiling int, excluded map[int]struct{}, count int) []int {
	result := make([]int, 0, count)
	seen := make(map[int]struct{}, count)

	for len(result) < count {
		n := a.rng.IntN(ceiling) + 1
		if _, ok := excluded[n]; ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		result = append(result, n)
	}

	return result
}

// UsableRequested filters requested numbers down to in-range, distinct values that
// are not taken, preserving request order and truncating at amount.
func UsableRequested(taken map[int]struct{}, requested []int, amount, ticketsTotal int) []int {
	usable := make([]int, 0, min(len(requested), amount))
	seen := make(map[int]struct{}, len(requested))

	for _, n := range requested {
		if len(usable) == amount {
			break
		}
		if n < 1 || (ticketsTotal > 0 && n > ticketsTotal) {
			continue
		}
		if _, ok := taken[n]; ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		usable = append(usable, n)
	}

	return usable
}

// unboundedCeiling sizes a virtual pool for giveaways without a capacity limit.
// The pool always has at least |taken|+amount free slots, so allocation never fails.
func unboundedCeiling(takenCount, amount int) int {
	return 2 * (takenCount + amount)
}
