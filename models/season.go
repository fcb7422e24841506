package models

import (
	"encoding/json"
	"time"
)

type SeasonState string

const (
	SeasonStateInitial  SeasonState = "initial"
	SeasonStateRunning  SeasonState = "running"
	SeasonStateFinished SeasonState = "finished"
)

// RuleVariantConfig is the scoring rule block for one hanchan length
// ("south" or "east"). Uma values and the derived point deltas are integers at
// 10^Scale so fractional point units are representable exactly.
type RuleVariantConfig struct {
	Enabled       bool  `json:"enabled"`
	StartingChips int   `json:"starting_chips"` // initial chip allocation per seat
	ReturnChips   int   `json:"return_chips"`   // origin point: chips above this accrue score
	Uma           []int `json:"uma"`            // rank-based awards, one per final rank
	Scale         int   `json:"scale"`          // decimal places carried in point integers
}

// RuleSet groups the per-length rule blocks of a season.
type RuleSet struct {
	South *RuleVariantConfig `json:"south,omitempty"`
	East  *RuleVariantConfig `json:"east,omitempty"`
}

// ForLength returns the rule block for a hanchan length key, or nil.
func (rs *RuleSet) ForLength(length string) *RuleVariantConfig {
	if rs == nil {
		return nil
	}
	switch length {
	case "east":
		return rs.East
	default:
		return rs.South
	}
}

type Season struct {
	ID         int         `json:"id" db:"id"`
	GroupID    int         `json:"group_id" db:"group_id"`
	Code       string      `json:"code" db:"code"` // unique within the owning group
	Name       string      `json:"name" db:"name"`
	State      SeasonState `json:"state" db:"state"`
	RulesJSON  string      `json:"-" db:"rules_json"`
	Accessible bool        `json:"-" db:"accessible"`
	StartedAt  *time.Time  `json:"started_at,omitempty" db:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty" db:"finished_at"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`

	// Parsed rules, populated on demand, not stored directly.
	ParsedRules *RuleSet `json:"rules,omitempty" db:"-"`
}

// Rules unmarshals and caches the season's rule set.
func (s *Season) Rules() (*RuleSet, error) {
	if s.ParsedRules != nil {
		return s.ParsedRules, nil
	}
	var rs RuleSet
	if err := json.Unmarshal([]byte(s.RulesJSON), &rs); err != nil {
		return nil, err
	}
	s.ParsedRules = &rs
	return s.ParsedRules, nil
}
