package services

import (
	"math/rand/v2"
	"testing"

	"raffle/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededAllocator(seed uint64) *NumberAllocator {
	return NewNumberAllocator(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// assertValidAllocation checks size, range, uniqueness and disjointness from taken
func assertValidAllocation(t *testing.T, got []int, taken []int, amount, ticketsTotal int) {
	t.Helper()

	require.Len(t, got, amount)
	takenSet := make(map[int]bool, len(taken))
	for _, n := range taken {
		takenSet[n] = true
	}
	seen := make(map[int]bool, len(got))
	for i, n := range got {
		assert.GreaterOrEqual(t, n, 1)
		if ticketsTotal > 0 {
			assert.LessOrEqual(t, n, ticketsTotal)
		}
		assert.False(t, takenSet[n], "number %d is already taken", n)
		assert.False(t, seen[n], "number %d assigned twice", n)
		seen[n] = true
		if i > 0 {
			assert.Less(t, got[i-1], n, "result must be sorted")
		}
	}
}

func TestNumberAllocator_ExactRequestedNumbers(t *testing.T) {
	t.Parallel()

	got, err := seededAllocator(1).Allocate(AllocationRequest{
		Requested:    []int{7, 3},
		Amount:       2,
		TicketsTotal: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, got)
}

func TestNumberAllocator_RequestedPlusRandomFill(t *testing.T) {
	t.Parallel()

	taken := []int{1, 2}
	got, err := seededAllocator(2).Allocate(AllocationRequest{
		Taken:        taken,
		Requested:    []int{3, 7},
		Amount:       3,
		TicketsTotal: 10,
	})

	require.NoError(t, err)
	assertValidAllocation(t, got, taken, 3, 10)
	assert.Contains(t, got, 3)
	assert.Contains(t, got, 7)
}

func TestNumberAllocator_ForcedPool(t *testing.T) {
	t.Parallel()

	// Only 4 and 5 remain free, so the result is fully determined
	got, err := seededAllocator(3).Allocate(AllocationRequest{
		Taken:        []int{1, 2, 3},
		Amount:       2,
		TicketsTotal: 5,
	})

	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, got)
}

func TestNumberAllocator_FiltersUnusableRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		taken     []int
		requested []int
		amount    int
		total     int
		mustHave  []int
		mustLack  []int
	}{
		{
			name:      "out of range and non-positive values dropped",
			requested: []int{0, -4, 11, 5},
			amount:    2,
			total:     10,
			mustHave:  []int{5},
			mustLack:  []int{0, -4, 11},
		},
		{
			name:      "taken values dropped",
			taken:     []int{5, 6},
			requested: []int{5, 6, 8},
			amount:    2,
			total:     10,
			mustHave:  []int{8},
			mustLack:  []int{5, 6},
		},
		{
			name:      "duplicates collapse",
			requested: []int{4, 4, 4},
			amount:    3,
			total:     10,
			mustHave:  []int{4},
		},
		{
			name:      "excess requests truncated in order",
			requested: []int{9, 8, 7, 6},
			amount:    2,
			total:     10,
			mustHave:  []int{8, 9},
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := seededAllocator(uint64(10 + i)).Allocate(AllocationRequest{
				Taken:        tt.taken,
				Requested:    tt.requested,
				Amount:       tt.amount,
				TicketsTotal: tt.total,
			})

			require.NoError(t, err)
			assertValidAllocation(t, got, tt.taken, tt.amount, tt.total)
			for _, n := range tt.mustHave {
				assert.Contains(t, got, n)
			}
			for _, n := range tt.mustLack {
				assert.NotContains(t, got, n)
			}
		})
	}
}

func TestNumberAllocator_InsufficientCapacity(t *testing.T) {
	t.Parallel()

	_, err := seededAllocator(4).Allocate(AllocationRequest{
		Taken:        []int{1, 2, 3},
		Amount:       3,
		TicketsTotal: 5,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrInsufficientCapacity)
}

func TestNumberAllocator_InvalidAmount(t *testing.T) {
	t.Parallel()

	_, err := seededAllocator(5).Allocate(AllocationRequest{Amount: 0, TicketsTotal: 5})

	assert.ErrorIs(t, err, entities.ErrInvalidAmount)
}

func TestNumberAllocator_UnboundedGiveaway(t *testing.T) {
	t.Parallel()

	taken := []int{1, 2, 3, 1000}
	got, err := seededAllocator(6).Allocate(AllocationRequest{
		Taken:        taken,
		Requested:    []int{5000},
		Amount:       5,
		TicketsTotal: 0,
	})

	require.NoError(t, err)
	assertValidAllocation(t, got, taken, 5, 0)
	assert.Contains(t, got, 5000, "no upper bound applies to requested numbers")
}

func TestNumberAllocator_LargeSparsePool(t *testing.T) {
	t.Parallel()

	taken := []int{10, 20, 30}
	got, err := seededAllocator(7).Allocate(AllocationRequest{
		Taken:        taken,
		Amount:       50,
		TicketsTotal: 1_000_000,
	})

	require.NoError(t, err)
	assertValidAllocation(t, got, taken, 50, 1_000_000)
}

func TestNumberAllocator_SameSeedSameResult(t *testing.T) {
	t.Parallel()

	req := AllocationRequest{Taken: []int{2, 4}, Amount: 4, TicketsTotal: 100}

	first, err := seededAllocator(99).Allocate(req)
	require.NoError(t, err)
	second, err := seededAllocator(99).Allocate(req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNumberAllocator_FillsEntirePool(t *testing.T) {
	t.Parallel()

	got, err := NewNumberAllocator(nil).Allocate(AllocationRequest{Amount: 20, TicketsTotal: 20})

	require.NoError(t, err)
	expected := make([]int, 20)
	for i := range expected {
		expected[i] = i + 1
	}
	assert.Equal(t, expected, got)
}
