package models

import "github.com/shopspring/decimal"

// SeasonStanding is one row of a season's ranking table. Equal totals share a
// rank; the next distinct total resumes at its positional rank.
type SeasonStanding struct {
	Rank   int    `json:"rank"`
	UserID int    `json:"user_id"`
	Points int    `json:"points"`
	Scale  int    `json:"scale"`
	User   *User  `json:"user,omitempty"`
	Pretty string `json:"points_display"`
}

// FormatPoints renders a scaled integer point value exactly, e.g. 155 at
// scale 1 -> "15.5".
func FormatPoints(points, scale int) string {
	return decimal.New(int64(points), -int32(scale)).String()
}
