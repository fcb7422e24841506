package scoring

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrChipSumMismatch means the submitted chip counts do not add up to
	// seats × starting chips. The game cannot settle; callers mark it
	// invalid instead.
	ErrChipSumMismatch = errors.New("chip counts do not sum to the table total")

	ErrSeatCountInvalid = errors.New("seat count does not match the rule set")
	ErrDuplicateSeat    = errors.New("duplicate seat index")
)

// Config is the scoring rule block applied to one game. Uma values are
// integers at 10^Scale, one entry per final rank.
type Config struct {
	Enabled       bool  `json:"enabled"`
	StartingChips int   `json:"starting_chips"`
	ReturnChips   int   `json:"return_chips"`
	Uma           []int `json:"uma"`
	Scale         int   `json:"scale"`
}

// SeatChips is one seat's raw submitted chip count. Seat is the original
// seat index and is the deterministic tie-break everywhere.
type SeatChips struct {
	Seat  int
	Chips int
}

// SeatResult carries the settled rank and point delta for one seat. Points
// is an integer at 10^cfg.Scale.
type SeatResult struct {
	Seat   int
	Rank   int
	Points int
}

// Settle computes ranks and point deltas for a full table.
//
// Seats are ordered by descending chips, ties broken by the lower original
// seat index. Uma for a run of equal chip counts is pooled and split by floor
// division, with the remainder assigned to the tied seat with the smallest
// original seat index. Each seat's delta is its adjusted uma plus
// ceil((chips-return)/1000), the chip component carried at the config scale.
//
// Results come back indexed by original seat order, not rank order.
func Settle(seats []SeatChips, cfg Config) ([]SeatResult, error) {
	n := len(seats)
	if n == 0 || n != len(cfg.Uma) {
		return nil, fmt.Errorf("%w: %d seats, %d uma entries", ErrSeatCountInvalid, n, len(cfg.Uma))
	}

	total := 0
	seen := make(map[int]bool, n)
	for _, s := range seats {
		if seen[s.Seat] {
			return nil, fmt.Errorf("%w: seat %d", ErrDuplicateSeat, s.Seat)
		}
		seen[s.Seat] = true
		total += s.Chips
	}
	if total != n*cfg.StartingChips {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrChipSumMismatch, total, n*cfg.StartingChips)
	}

	order := make([]SeatChips, n)
	copy(order, seats)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Chips != order[j].Chips {
			return order[i].Chips > order[j].Chips
		}
		return order[i].Seat < order[j].Seat
	})

	adjUma := make([]int, n)
	for start := 0; start < n; {
		end := start
		for end+1 < n && order[end+1].Chips == order[start].Chips {
			end++
		}
		splitUma(order, adjUma, cfg.Uma, start, end)
		start = end + 1
	}

	unit := pow10(cfg.Scale)
	results := make([]SeatResult, n)
	bySeat := make(map[int]int, n)
	for i, s := range seats {
		bySeat[s.Seat] = i
		results[i].Seat = s.Seat
	}
	for pos, s := range order {
		i := bySeat[s.Seat]
		results[i].Rank = pos + 1
		results[i].Points = adjUma[pos] + ceilDiv(s.Chips-cfg.ReturnChips, 1000)*unit
	}
	return results, nil
}

// splitUma distributes the pooled uma of the tie group order[start..end].
// Floor division (toward negative infinity, so negative pools split the same
// way the positive ones do), remainder to the smallest original seat index.
func splitUma(order []SeatChips, adjUma, uma []int, start, end int) {
	pool := 0
	for r := start; r <= end; r++ {
		pool += uma[r]
	}
	size := end - start + 1
	share := floorDiv(pool, size)
	rem := pool - share*size

	lowest := start
	for r := start; r <= end; r++ {
		adjUma[r] = share
		if order[r].Seat < order[lowest].Seat {
			lowest = r
		}
	}
	adjUma[lowest] += rem
}

// ceilDiv rounds toward positive infinity: ceilDiv(-5500, 1000) == -5.
func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}

// floorDiv rounds toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func pow10(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
