package services

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/Dosada05/mahjong-league/models"
)

type testEnv struct {
	store   *memStore
	hub     *recordingBroadcaster
	users   *fakeUserRepo
	groups  *fakeGroupRepo
	members *fakeMemberRepo
	ledger  LedgerService
	games   GameService
	seasons SeasonService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	hub := &recordingBroadcaster{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := &fakeUserRepo{store: store}
	groups := &fakeGroupRepo{store: store}
	members := &fakeMemberRepo{store: store}
	games := &fakeGameRepo{store: store}
	records := &fakeRecordRepo{store: store}
	seasons := &fakeSeasonRepo{store: store}
	points := &fakePointRepo{store: store}
	changes := &fakeChangeRepo{store: store}
	tx := fakeTxManager{}

	ledger := NewLedgerService(nil, tx, points, changes)
	return &testEnv{
		store:   store,
		hub:     hub,
		users:   users,
		groups:  groups,
		members: members,
		ledger:  ledger,
		games:   NewGameService(nil, tx, games, records, seasons, groups, members, users, ledger, hub, logger),
		seasons: NewSeasonService(nil, tx, seasons, games, groups, members, points, users, ledger, hub, logger),
	}
}

var testRules = models.RuleSet{
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

func (e *testEnv) seedUser(t *testing.T, nickname string) *models.User {
	t.Helper()
	user := &models.User{
		Nickname: nickname,
		Email:    nickname + "@example.com",
	}
	user.ID = e.store.id()
	e.store.users[user.ID] = user
	return user
}

// seedGroup creates a group whose owner is also an admin member.
func (e *testEnv) seedGroup(t *testing.T, ownerID int) *models.Group {
	t.Helper()
	group := &models.Group{Name: "test club", OwnerID: ownerID}
	group.ID = e.store.id()
	e.store.groups[group.ID] = group
	e.seedMember(t, group.ID, ownerID, models.GroupRoleAdmin)
	return group
}

func (e *testEnv) seedMember(t *testing.T, groupID, userID int, role models.GroupRole) {
	t.Helper()
	member := &models.GroupMember{GroupID: groupID, UserID: userID, Role: role}
	member.ID = e.store.id()
	e.store.members = append(e.store.members, member)
}

func (e *testEnv) seedSeason(t *testing.T, groupID int, state models.SeasonState, rules models.RuleSet) *models.Season {
	t.Helper()
	raw, err := json.Marshal(rules)
	if err != nil {
		t.Fatalf("marshal rules: %v", err)
	}
	season := &models.Season{
		GroupID:    groupID,
		Code:       "s" + string(rune('0'+len(e.store.seasons))),
		Name:       "test season",
		State:      state,
		RulesJSON:  string(raw),
		Accessible: true,
	}
	season.ID = e.store.id()
	e.store.seasons[season.ID] = season
	if state == models.SeasonStateRunning {
		e.store.groups[groupID].RunningSeasonID = &season.ID
	}
	return season
}

func intPtr(v int) *int { return &v }
