package models

import (
	"fmt"
	"time"
)

type GameState string

const (
	GameStateUncompleted  GameState = "uncompleted"
	GameStateCompleted    GameState = "completed"
	GameStateInvalidTotal GameState = "invalid_total_point"
)

// GameVariant tags the player count and hanchan length of a game.
type GameVariant string

const (
	VariantFourSouth  GameVariant = "four_south"
	VariantFourEast   GameVariant = "four_east"
	VariantThreeSouth GameVariant = "three_south"
	VariantThreeEast  GameVariant = "three_east"
)

func ParseGameVariant(s string) (GameVariant, error) {
	switch GameVariant(s) {
	case VariantFourSouth, VariantFourEast, VariantThreeSouth, VariantThreeEast:
		return GameVariant(s), nil
	}
	return "", fmt.Errorf("unknown game variant %q", s)
}

// Seats returns the number of players the variant seats.
func (v GameVariant) Seats() int {
	switch v {
	case VariantThreeSouth, VariantThreeEast:
		return 3
	default:
		return 4
	}
}

// Length returns the hanchan length key used to select the scoring rule block.
func (v GameVariant) Length() string {
	switch v {
	case VariantFourEast, VariantThreeEast:
		return "east"
	default:
		return "south"
	}
}

type SeatWind string

const (
	WindEast  SeatWind = "east"
	WindSouth SeatWind = "south"
	WindWest  SeatWind = "west"
	WindNorth SeatWind = "north"
)

func ParseSeatWind(s string) (SeatWind, error) {
	switch SeatWind(s) {
	case WindEast, WindSouth, WindWest, WindNorth:
		return SeatWind(s), nil
	default:
		return "", fmt.Errorf("unknown seat wind: %q", s)
	}
}

type Game struct {
	ID         int         `json:"id" db:"id"`
	Code       int         `json:"code" db:"code"` // unique within the owning group
	GroupID    int         `json:"group_id" db:"group_id"`
	SeasonID   *int        `json:"season_id,omitempty" db:"season_id"`
	PromoterID int         `json:"promoter_id" db:"promoter_id"`
	Variant    GameVariant `json:"variant" db:"variant"`
	State      GameState   `json:"state" db:"state"`
	Comment    *string     `json:"comment,omitempty" db:"comment"`

	// ProgressRound/ProgressHonba mark a game that is still mid-play. While a
	// progress marker is set, filling the fourth seat does not settle the game.
	ProgressRound *int `json:"progress_round,omitempty" db:"progress_round"`
	ProgressHonba *int `json:"progress_honba,omitempty" db:"progress_honba"`

	Accessible  bool       `json:"-" db:"accessible"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// Seat records, populated by the repository. At most one per player.
	Records []*GameRecord `json:"records,omitempty" db:"-"`
}

// InProgress reports whether a progress marker is set on the game.
func (g *Game) InProgress() bool {
	return g.ProgressRound != nil || g.ProgressHonba != nil
}

// RecordOf returns the seat record of the given player, or nil.
func (g *Game) RecordOf(userID int) *GameRecord {
	for _, r := range g.Records {
		if r != nil && r.UserID == userID {
			return r
		}
	}
	return nil
}

// GameRecord is one player's seat in a game.
type GameRecord struct {
	ID     int `json:"id" db:"id"`
	GameID int `json:"game_id" db:"game_id"`
	UserID int `json:"user_id" db:"user_id"`

	// Chips is the raw submitted score (chip count).
	Chips int       `json:"chips" db:"chips"`
	Wind  *SeatWind `json:"wind,omitempty" db:"wind"`

	// Rank and Points are populated by settlement and cleared when a
	// settlement is reverted. Points is an integer at 10^PointScale, so
	// fractional point units stay exact.
	Rank       *int `json:"rank,omitempty" db:"rank"`
	Points     *int `json:"points,omitempty" db:"points"`
	PointScale int  `json:"point_scale" db:"point_scale"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	User *User `json:"user,omitempty" db:"-"`
}
