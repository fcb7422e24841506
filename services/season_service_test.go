package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSeasonValidatesRules(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner")
	group := env.seedGroup(t, owner.ID)
	ctx := context.Background()

	_, err := env.seasons.CreateSeason(ctx, owner.ID, CreateSeasonInput{
		GroupID: group.ID,
		Code:    "2026-1",
		Name:    "Spring",
		Rules:   &models.RuleSet{},
	})
	assert.ErrorIs(t, err, ErrRulesInvalid)

	badUma := testRules
	badUma.South = &models.RuleVariantConfig{
		Enabled:       true,
		StartingChips: 25000,
		ReturnChips:   30000,
		Uma:           []int{50, 10, -10, -30, -20},
	}
	_, err = env.seasons.CreateSeason(ctx, owner.ID, CreateSeasonInput{
		GroupID: group.ID,
		Code:    "2026-1",
		Name:    "Spring",
		Rules:   &badUma,
	})
	assert.ErrorIs(t, err, ErrRulesInvalid)

	rules := testRules
	season, err := env.seasons.CreateSeason(ctx, owner.ID, CreateSeasonInput{
		GroupID: group.ID,
		Code:    "2026-1",
		Name:    "Spring",
		Rules:   &rules,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SeasonStateInitial, season.State)

	// Same code again conflicts.
	_, err = env.seasons.CreateSeason(ctx, owner.ID, CreateSeasonInput{
		GroupID: group.ID,
		Code:    "2026-1",
		Name:    "Spring again",
		Rules:   &rules,
	})
	assert.ErrorIs(t, err, ErrSeasonCodeConflict)
}

func TestCreateSeasonNeedsAdmin(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner")
	member := env.seedUser(t, "member")
	group := env.seedGroup(t, owner.ID)
	env.seedMember(t, group.ID, member.ID, models.GroupRoleMember)

	rules := testRules
	_, err := env.seasons.CreateSeason(context.Background(), member.ID, CreateSeasonInput{
		GroupID: group.ID,
		Code:    "2026-1",
		Name:    "Spring",
		Rules:   &rules,
	})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestStartSeasonAllowsOnlyOneRunning(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner")
	group := env.seedGroup(t, owner.ID)
	ctx := context.Background()

	first := env.seedSeason(t, group.ID, models.SeasonStateInitial, testRules)
	second := env.seedSeason(t, group.ID, models.SeasonStateInitial, testRules)

	require.NoError(t, env.seasons.StartSeason(ctx, first.ID, owner.ID))

	group2, err := env.groups.GetByID(ctx, group.ID)
	require.NoError(t, err)
	require.NotNil(t, group2.RunningSeasonID)
	assert.Equal(t, first.ID, *group2.RunningSeasonID)
	assert.Equal(t, models.SeasonStateRunning, env.store.seasons[first.ID].State)
	assert.NotNil(t, env.store.seasons[first.ID].StartedAt)

	err = env.seasons.StartSeason(ctx, second.ID, owner.ID)
	assert.ErrorIs(t, err, ErrAnotherSeasonRunning)
}

// contestedTxManager flips the group's running season right before the
// transaction body runs, the way a concurrent start that committed first
// would.
type contestedTxManager struct {
	store    *memStore
	groupID  int
	winnerID int
}

func (m *contestedTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	m.store.groups[m.groupID].RunningSeasonID = &m.winnerID
	return fn(nil)
}

func TestStartSeasonRechecksRunningSeasonInTx(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner")
	group := env.seedGroup(t, owner.ID)
	ctx := context.Background()

	winner := env.seedSeason(t, group.ID, models.SeasonStateInitial, testRules)
	loser := env.seedSeason(t, group.ID, models.SeasonStateInitial, testRules)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tx := &contestedTxManager{store: env.store, groupID: group.ID, winnerID: winner.ID}
	contested := NewSeasonService(nil, tx,
		&fakeSeasonRepo{store: env.store}, &fakeGameRepo{store: env.store},
		env.groups, env.members, &fakePointRepo{store: env.store}, env.users,
		env.ledger, env.hub, logger)

	err := contested.StartSeason(ctx, loser.ID, owner.ID)
	assert.ErrorIs(t, err, ErrAnotherSeasonRunning)
	assert.Equal(t, models.SeasonStateInitial, env.store.seasons[loser.ID].State)
	require.NotNil(t, env.store.groups[group.ID].RunningSeasonID)
	assert.Equal(t, winner.ID, *env.store.groups[group.ID].RunningSeasonID)
}

func TestSeasonStateTransitionsAreForwardOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner")
	group := env.seedGroup(t, owner.ID)
	ctx := context.Background()

	initial := env.seedSeason(t, group.ID, models.SeasonStateInitial, testRules)
	err := env.seasons.FinishSeason(ctx, initial.ID, owner.ID)
	assert.ErrorIs(t, err, ErrSeasonInvalidState, "initial cannot finish")

	finished := env.seedSeason(t, group.ID, models.SeasonStateFinished, testRules)
	err = env.seasons.StartSeason(ctx, finished.ID, owner.ID)
	assert.ErrorIs(t, err, ErrSeasonInvalidState, "finished cannot restart")
}

func TestFinishSeasonAbandonsUnsettledGames(t *testing.T) {
	env, group, season, players := fourPlayerEnv(t)
	ctx := context.Background()

	// One game settles, one stays half-filled, one is mid-play.
	settled, err := env.games.NewGame(ctx, NewGameInput{GroupID: group.ID, PromoterID: players[0].ID})
	require.NoError(t, err)
	chips := []int{29500, 26000, 24500, 20000}
	for i, player := range players {
		recordOwnScore(t, env, group.ID, settled.Code, player.ID, chips[i])
	}

	halfFilled, err := env.games.NewGame(ctx, NewGameInput{GroupID: group.ID, PromoterID: players[0].ID})
	require.NoError(t, err)
	recordOwnScore(t, env, group.ID, halfFilled.Code, players[0].ID, 25000)

	midPlay, err := env.games.NewGame(ctx, NewGameInput{GroupID: group.ID, PromoterID: players[0].ID})
	require.NoError(t, err)
	_, err = env.games.UpdateProgress(ctx, group.ID, midPlay.Code, players[0].ID, intPtr(2), intPtr(0))
	require.NoError(t, err)

	require.NoError(t, env.seasons.FinishSeason(ctx, season.ID, players[0].ID))

	assert.Equal(t, models.SeasonStateFinished, env.store.seasons[season.ID].State)
	assert.NotNil(t, env.store.seasons[season.ID].FinishedAt)
	group2, err := env.groups.GetByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Nil(t, group2.RunningSeasonID)

	// The half-filled game is hidden without touching the ledger; the
	// settled and mid-play games survive.
	_, err = env.games.GetGame(ctx, group.ID, halfFilled.Code)
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = env.games.GetGame(ctx, group.ID, settled.Code)
	assert.NoError(t, err)
	_, err = env.games.GetGame(ctx, group.ID, midPlay.Code)
	assert.NoError(t, err)
	assert.Equal(t, 50, env.store.points[[2]int{season.ID, players[0].ID}].Points)
}

func TestRemoveSeasonOnlyBeforeStart(t *testing.T) {
	env := newTestEnv(t)
	owner := env.seedUser(t, "owner")
	group := env.seedGroup(t, owner.ID)
	ctx := context.Background()

	running := env.seedSeason(t, group.ID, models.SeasonStateRunning, testRules)
	err := env.seasons.RemoveSeason(ctx, running.ID, owner.ID)
	assert.ErrorIs(t, err, ErrSeasonInvalidState)

	initial := env.seedSeason(t, group.ID, models.SeasonStateInitial, testRules)
	require.NoError(t, env.seasons.RemoveSeason(ctx, initial.ID, owner.ID))
	_, err = env.seasons.GetSeason(ctx, initial.ID)
	assert.ErrorIs(t, err, ErrSeasonNotFound)
}

func TestStandingsShareRanksOnEqualTotals(t *testing.T) {
	env, _, season, players := fourPlayerEnv(t)
	ctx := context.Background()

	game := settledGame(env, season.ID, map[int]int{
		players[0].ID: 40,
		players[1].ID: 40,
		players[2].ID: -15,
		players[3].ID: -65,
	})
	require.NoError(t, env.ledger.ApplyGameSettlement(ctx, nil, game))

	standings, err := env.seasons.Standings(ctx, season.ID)
	require.NoError(t, err)
	require.Len(t, standings, 4)

	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 1, standings[1].Rank, "equal totals share the rank")
	assert.Equal(t, 3, standings[2].Rank, "the next distinct total resumes at its position")
	assert.Equal(t, 4, standings[3].Rank)
	assert.Equal(t, 40, standings[0].Points)
	require.NotNil(t, standings[0].User)
	assert.Empty(t, standings[0].User.PasswordHash)
}

func TestStandingsFormatScaledPoints(t *testing.T) {
	env, group, _, players := fourPlayerEnv(t)

	scaled := testRules
	scaled.South = &models.RuleVariantConfig{
		Enabled:       true,
		StartingChips: 25000,
		ReturnChips:   30000,
		Uma:           []int{500, 100, -100, -300},
		Scale:         1,
	}
	// Finish the seeded season first so a new one can run.
	require.NoError(t, env.seasons.FinishSeason(context.Background(), *env.store.groups[group.ID].RunningSeasonID, players[0].ID))
	season := env.seedSeason(t, group.ID, models.SeasonStateRunning, scaled)

	game, err := env.games.NewGame(context.Background(), NewGameInput{GroupID: group.ID, PromoterID: players[0].ID})
	require.NoError(t, err)
	chips := []int{29500, 26000, 24500, 20000}
	for i, player := range players {
		recordOwnScore(t, env, group.ID, game.Code, player.ID, chips[i])
	}

	standings, err := env.seasons.Standings(context.Background(), season.ID)
	require.NoError(t, err)
	require.Len(t, standings, 4)
	assert.Equal(t, 500, standings[0].Points, "uma 50.0 at scale 1, chip delta ceil(-0.5)=0")
	assert.Equal(t, "50", standings[0].Pretty)
	assert.Equal(t, -150, standings[2].Points)
	assert.Equal(t, "-15", standings[2].Pretty)
}

func TestDashboardBundlesStandingsAndRecentGames(t *testing.T) {
	env, group, season, players := fourPlayerEnv(t)
	ctx := context.Background()

	game, err := env.games.NewGame(ctx, NewGameInput{GroupID: group.ID, PromoterID: players[0].ID})
	require.NoError(t, err)
	chips := []int{29500, 26000, 24500, 20000}
	for i, player := range players {
		recordOwnScore(t, env, group.ID, game.Code, player.ID, chips[i])
	}

	dashboard, err := env.seasons.Dashboard(ctx, season.ID)
	require.NoError(t, err)
	assert.Equal(t, season.ID, dashboard.Season.ID)
	assert.Len(t, dashboard.Standings, 4)
	require.Len(t, dashboard.RecentGames, 1)
	assert.Equal(t, game.ID, dashboard.RecentGames[0].ID)
}

func TestManualPointChangeGoesThroughLedger(t *testing.T) {
	env, _, season, players := fourPlayerEnv(t)
	ctx := context.Background()

	// Plain members may not adjust points.
	err := env.seasons.ManualPointChange(ctx, season.ID, players[1].ID, 100, players[1].ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	require.NoError(t, env.seasons.ManualPointChange(ctx, season.ID, players[1].ID, 100, players[0].ID))
	assert.Equal(t, 100, env.store.points[[2]int{season.ID, players[1].ID}].Points)

	changes, err := env.ledger.ListChanges(ctx, season.ID, players[1].ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, models.PointChangeManual, changes[0].Type)
	assert.Equal(t, 100, changes[0].Delta)
	assert.NotEmpty(t, env.hub.seasonIDs)
}

func TestResetUserPointsNeedsAdmin(t *testing.T) {
	env, _, season, players := fourPlayerEnv(t)
	ctx := context.Background()

	require.NoError(t, env.seasons.ManualPointChange(ctx, season.ID, players[1].ID, 100, players[0].ID))

	err := env.seasons.ResetUserPoints(ctx, season.ID, players[1].ID, players[2].ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	require.NoError(t, env.seasons.ResetUserPoints(ctx, season.ID, players[1].ID, players[0].ID))
	_, ok := env.store.points[[2]int{season.ID, players[1].ID}]
	assert.False(t, ok)
}
