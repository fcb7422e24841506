package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/repositories"
	"github.com/Dosada05/mahjong-league/scoring"
)

func isValidSeasonTransition(current, next models.SeasonState) bool {
	allowedTransitions := map[models.SeasonState][]models.SeasonState{
		models.SeasonStateInitial:  {models.SeasonStateRunning},
		models.SeasonStateRunning:  {models.SeasonStateFinished},
		models.SeasonStateFinished: {},
	}
	for _, allowedNext := range allowedTransitions[current] {
		if next == allowedNext {
			return true
		}
	}
	return false
}

// groupAuth resolves the "acting user is group admin" checks the mutating
// operations need before touching anything.
type groupAuth struct {
	groups  repositories.GroupRepository
	members repositories.GroupMemberRepository
}

func (a groupAuth) isAdmin(ctx context.Context, groupID, userID int) (bool, error) {
	group, err := a.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return false, ErrGroupNotFound
		}
		return false, err
	}
	if group.OwnerID == userID {
		return true, nil
	}
	member, err := a.members.Get(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupMemberNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.Role == models.GroupRoleAdmin, nil
}

func (a groupAuth) requireAdmin(ctx context.Context, groupID, userID int) error {
	admin, err := a.isAdmin(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbiddenOperation
	}
	return nil
}

func (a groupAuth) requireMember(ctx context.Context, groupID, userID int) error {
	group, err := a.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			return ErrGroupNotFound
		}
		return err
	}
	if group.OwnerID == userID {
		return nil
	}
	if _, err := a.members.Get(ctx, groupID, userID); err != nil {
		if errors.Is(err, repositories.ErrGroupMemberNotFound) {
			return ErrNotGroupMember
		}
		return err
	}
	return nil
}

// defaultRules applies to games played outside any season.
var defaultRules = models.RuleSet{
	South: &models.RuleVariantConfig{
		Enabled:       true,
		StartingChips: 25000,
		ReturnChips:   30000,
		Uma:           []int{50, 10, -10, -30},
		Scale:         0,
	},
	East: &models.RuleVariantConfig{
		Enabled:       true,
		StartingChips: 25000,
		ReturnChips:   30000,
		Uma:           []int{50, 10, -10, -30},
		Scale:         0,
	},
}

// scoringConfigFor picks the rule block a game settles under.
func scoringConfigFor(game *models.Game, season *models.Season) (scoring.Config, error) {
	rules := &defaultRules
	if season != nil {
		parsed, err := season.Rules()
		if err != nil {
			return scoring.Config{}, fmt.Errorf("%w: %v", ErrRulesInvalid, err)
		}
		rules = parsed
	}

	block := rules.ForLength(game.Variant.Length())
	if block == nil || !block.Enabled {
		return scoring.Config{}, ErrVariantDisabled
	}
	if len(block.Uma) != game.Variant.Seats() {
		return scoring.Config{}, ErrVariantDisabled
	}
	return scoring.Config{
		Enabled:       block.Enabled,
		StartingChips: block.StartingChips,
		ReturnChips:   block.ReturnChips,
		Uma:           block.Uma,
		Scale:         block.Scale,
	}, nil
}

func validateRuleSet(rules *models.RuleSet) error {
	if rules == nil || (rules.South == nil && rules.East == nil) {
		return fmt.Errorf("%w: at least one rule block is required", ErrRulesInvalid)
	}
	enabled := false
	for _, block := range []*models.RuleVariantConfig{rules.South, rules.East} {
		if block == nil || !block.Enabled {
			continue
		}
		enabled = true
		if block.StartingChips <= 0 {
			return fmt.Errorf("%w: starting chips must be positive", ErrRulesInvalid)
		}
		if n := len(block.Uma); n != 3 && n != 4 {
			return fmt.Errorf("%w: uma list must have one entry per seat, got %d", ErrRulesInvalid, n)
		}
		if block.Scale < 0 || block.Scale > 3 {
			return fmt.Errorf("%w: scale must be between 0 and 3", ErrRulesInvalid)
		}
	}
	if !enabled {
		return fmt.Errorf("%w: at least one rule block must be enabled", ErrRulesInvalid)
	}
	return nil
}
