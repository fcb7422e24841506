package models

import "time"

type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

// Group is a mahjong club or chat group that owns games and seasons.
type Group struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   int       `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	LogoKey   *string   `json:"-" db:"logo_key"`
	LogoURL   *string   `json:"logo_url,omitempty" db:"-"`

	// RunningSeasonID points at the single season currently in the running
	// state, if any. At most one per group.
	RunningSeasonID *int `json:"running_season_id,omitempty" db:"running_season_id"`

	// LastGameCode is the per-group game code sequence. Codes are allocated
	// with a single UPDATE ... RETURNING so no counter lives in process memory.
	LastGameCode int `json:"-" db:"last_game_code"`
}

type GroupMember struct {
	ID       int       `json:"id" db:"id"`
	GroupID  int       `json:"group_id" db:"group_id"`
	UserID   int       `json:"user_id" db:"user_id"`
	Role     GroupRole `json:"role" db:"role"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`

	User *User `json:"user,omitempty" db:"-"`
}
