package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourPlayerConfig() Config {
	return Config{
		Enabled:       true,
		StartingChips: 25000,
		ReturnChips:   30000,
		Uma:           []int{50, 10, -10, -30},
		Scale:         0,
	}
}

func seats(chips ...int) []SeatChips {
	s := make([]SeatChips, len(chips))
	for i, c := range chips {
		s[i] = SeatChips{Seat: i, Chips: c}
	}
	return s
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name  string
		seats []SeatChips
		cfg   Config
		want  []SeatResult
	}{
		{
			name:  "no ties",
			seats: seats(29500, 26000, 24500, 20000),
			cfg:   fourPlayerConfig(),
			want: []SeatResult{
				{Seat: 0, Rank: 1, Points: 50},  // ceil(-0.5) == 0
				{Seat: 1, Rank: 2, Points: 6},   // 10 + ceil(-4.0)
				{Seat: 2, Rank: 3, Points: -15}, // -10 + ceil(-5.5) == -10 - 5
				{Seat: 3, Rank: 4, Points: -40},
			},
		},
		{
			name:  "three way tie at top, remainder to lowest seat",
			seats: seats(30000, 30000, 30000, 10000),
			cfg:   fourPlayerConfig(),
			want: []SeatResult{
				{Seat: 0, Rank: 1, Points: 18}, // floor(50/3)=16, remainder 2
				{Seat: 1, Rank: 2, Points: 16},
				{Seat: 2, Rank: 3, Points: 16},
				{Seat: 3, Rank: 4, Points: -50},
			},
		},
		{
			name:  "all four tied at the return point",
			seats: seats(25000, 25000, 25000, 25000),
			cfg: Config{
				StartingChips: 25000,
				ReturnChips:   25000,
				Uma:           []int{50, 10, -10, -30},
			},
			want: []SeatResult{
				{Seat: 0, Rank: 1, Points: 5}, // floor(20/4)=5, remainder 0
				{Seat: 1, Rank: 2, Points: 5},
				{Seat: 2, Rank: 3, Points: 5},
				{Seat: 3, Rank: 4, Points: 5},
			},
		},
		{
			name:  "two disjoint tie pairs",
			seats: seats(30000, 30000, 20000, 20000),
			cfg:   fourPlayerConfig(),
			want: []SeatResult{
				{Seat: 0, Rank: 1, Points: 30},
				{Seat: 1, Rank: 2, Points: 30},
				{Seat: 2, Rank: 3, Points: -30},
				{Seat: 3, Rank: 4, Points: -30},
			},
		},
		{
			name:  "three way tie at bottom",
			seats: seats(40000, 20000, 20000, 20000),
			cfg:   fourPlayerConfig(),
			want: []SeatResult{
				{Seat: 0, Rank: 1, Points: 60},
				{Seat: 1, Rank: 2, Points: -20},
				{Seat: 2, Rank: 3, Points: -20},
				{Seat: 3, Rank: 4, Points: -20},
			},
		},
		{
			name:  "negative pool splits by floor division",
			seats: seats(40000, 30000, 15000, 15000),
			cfg: Config{
				StartingChips: 25000,
				ReturnChips:   30000,
				Uma:           []int{50, 10, -10, -35},
			},
			want: []SeatResult{
				{Seat: 0, Rank: 1, Points: 60},
				{Seat: 1, Rank: 2, Points: 10},
				{Seat: 2, Rank: 3, Points: -37}, // floor(-45/2)=-23, remainder 1
				{Seat: 3, Rank: 4, Points: -38},
			},
		},
		{
			name:  "scaled uma scales the chip component too",
			seats: seats(30000, 30000, 20000, 20000),
			cfg: Config{
				StartingChips: 25000,
				ReturnChips:   30000,
				Uma:           []int{500, 100, -100, -300},
				Scale:         1,
			},
			want: []SeatResult{
				{Seat: 0, Rank: 1, Points: 300},
				{Seat: 1, Rank: 2, Points: 300},
				{Seat: 2, Rank: 3, Points: -300},
				{Seat: 3, Rank: 4, Points: -300},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Settle(tt.seats, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettleKeepsInputSeatOrder(t *testing.T) {
	shuffled := []SeatChips{
		{Seat: 2, Chips: 24500},
		{Seat: 0, Chips: 29500},
		{Seat: 3, Chips: 20000},
		{Seat: 1, Chips: 26000},
	}
	got, err := Settle(shuffled, fourPlayerConfig())
	require.NoError(t, err)

	assert.Equal(t, []SeatResult{
		{Seat: 2, Rank: 3, Points: -15},
		{Seat: 0, Rank: 1, Points: 50},
		{Seat: 3, Rank: 4, Points: -40},
		{Seat: 1, Rank: 2, Points: 6},
	}, got)
}

func TestSettleChipSumMismatch(t *testing.T) {
	_, err := Settle(seats(30000, 30000, 30000, 30000), fourPlayerConfig())
	assert.ErrorIs(t, err, ErrChipSumMismatch)
}

func TestSettleSeatValidation(t *testing.T) {
	_, err := Settle(seats(25000, 25000, 25000), fourPlayerConfig())
	assert.ErrorIs(t, err, ErrSeatCountInvalid)

	dup := []SeatChips{
		{Seat: 0, Chips: 25000},
		{Seat: 0, Chips: 25000},
		{Seat: 2, Chips: 25000},
		{Seat: 3, Chips: 25000},
	}
	_, err = Settle(dup, fourPlayerConfig())
	assert.ErrorIs(t, err, ErrDuplicateSeat)
}

func TestCeilDivRoundsTowardPositiveInfinity(t *testing.T) {
	assert.Equal(t, -5, ceilDiv(-5500, 1000))
	assert.Equal(t, 6, ceilDiv(5500, 1000))
	assert.Equal(t, 0, ceilDiv(-500, 1000))
	assert.Equal(t, 5, ceilDiv(5000, 1000))
}
