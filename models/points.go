package models

import "time"

type PointChangeType string

const (
	PointChangeGame   PointChangeType = "game"
	PointChangeManual PointChangeType = "manual"
)

// SeasonUserPoint is the running point total for one (season, user) pair.
// Points is an integer at 10^Scale. The total always equals the sum of the
// pair's live change-log deltas; only the ledger service writes either table.
type SeasonUserPoint struct {
	ID        int       `json:"id" db:"id"`
	SeasonID  int       `json:"season_id" db:"season_id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Points    int       `json:"points" db:"points"`
	Scale     int       `json:"scale" db:"scale"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	User *User `json:"user,omitempty" db:"-"`
}

// SeasonUserPointChange is one append-only ledger entry. Rows are never
// mutated after insertion; reversal deletes the row and adjusts the running
// total. Insertion order (the serial id) is what the reversal ordering check
// relies on.
type SeasonUserPointChange struct {
	ID        int             `json:"id" db:"id"`
	SeasonID  int             `json:"season_id" db:"season_id"`
	UserID    int             `json:"user_id" db:"user_id"`
	Type      PointChangeType `json:"type" db:"type"`
	Delta     int             `json:"delta" db:"delta"` // signed, at 10^scale of the season rules
	GameID    *int            `json:"game_id,omitempty" db:"game_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
