package services

import (
	"context"
	"sort"
	"time"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/repositories"
)

// memStore is a single in-memory backing store shared by all fake
// repositories, so cross-repository effects stay visible the way they
// would be through one database.
type memStore struct {
	users   map[int]*models.User
	groups  map[int]*models.Group
	members []*models.GroupMember
	games   map[int]*models.Game
	records map[int]*models.GameRecord
	seasons map[int]*models.Season
	points  map[[2]int]*models.SeasonUserPoint
	changes []*models.SeasonUserPointChange
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[int]*models.User),
		groups:  make(map[int]*models.Group),
		games:   make(map[int]*models.Game),
		records: make(map[int]*models.GameRecord),
		seasons: make(map[int]*models.Season),
		points:  make(map[[2]int]*models.SeasonUserPoint),
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeUserRepo struct{ store *memStore }

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, existing := range r.store.users {
		if existing.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	user.ID = r.store.id()
	user.CreatedAt = time.Now()
	copied := *user
	r.store.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	user, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range r.store.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) ListByIDs(ctx context.Context, ids []int) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if user, ok := r.store.users[id]; ok {
			copied := *user
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeGroupRepo struct{ store *memStore }

func (r *fakeGroupRepo) Create(ctx context.Context, group *models.Group) error {
	group.ID = r.store.id()
	group.CreatedAt = time.Now()
	copied := *group
	r.store.groups[group.ID] = &copied
	return nil
}

func (r *fakeGroupRepo) GetByID(ctx context.Context, id int) (*models.Group, error) {
	group, ok := r.store.groups[id]
	if !ok {
		return nil, repositories.ErrGroupNotFound
	}
	copied := *group
	return &copied, nil
}

func (r *fakeGroupRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Group, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeGroupRepo) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	group, ok := r.store.groups[id]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	group.LogoKey = logoKey
	return nil
}

func (r *fakeGroupRepo) NextGameCode(ctx context.Context, exec repositories.SQLExecutor, groupID int) (int, error) {
	group, ok := r.store.groups[groupID]
	if !ok {
		return 0, repositories.ErrGroupNotFound
	}
	group.LastGameCode++
	return group.LastGameCode, nil
}

func (r *fakeGroupRepo) SetRunningSeason(ctx context.Context, exec repositories.SQLExecutor, groupID int, seasonID *int) error {
	group, ok := r.store.groups[groupID]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	group.RunningSeasonID = seasonID
	return nil
}

type fakeMemberRepo struct{ store *memStore }

func (r *fakeMemberRepo) Add(ctx context.Context, member *models.GroupMember) error {
	for _, m := range r.store.members {
		if m.GroupID == member.GroupID && m.UserID == member.UserID {
			return repositories.ErrGroupMemberConflict
		}
	}
	member.ID = r.store.id()
	member.JoinedAt = time.Now()
	copied := *member
	r.store.members = append(r.store.members, &copied)
	return nil
}

func (r *fakeMemberRepo) Get(ctx context.Context, groupID, userID int) (*models.GroupMember, error) {
	for _, m := range r.store.members {
		if m.GroupID == groupID && m.UserID == userID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, repositories.ErrGroupMemberNotFound
}

func (r *fakeMemberRepo) ListByGroup(ctx context.Context, groupID int) ([]*models.GroupMember, error) {
	var out []*models.GroupMember
	for _, m := range r.store.members {
		if m.GroupID == groupID {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeMemberRepo) UpdateRole(ctx context.Context, groupID, userID int, role models.GroupRole) error {
	for _, m := range r.store.members {
		if m.GroupID == groupID && m.UserID == userID {
			m.Role = role
			return nil
		}
	}
	return repositories.ErrGroupMemberNotFound
}

func (r *fakeMemberRepo) Remove(ctx context.Context, groupID, userID int) error {
	for i, m := range r.store.members {
		if m.GroupID == groupID && m.UserID == userID {
			r.store.members = append(r.store.members[:i], r.store.members[i+1:]...)
			return nil
		}
	}
	return repositories.ErrGroupMemberNotFound
}

type fakeGameRepo struct{ store *memStore }

func (r *fakeGameRepo) Create(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error {
	game.ID = r.store.id()
	game.Accessible = true
	game.CreatedAt = time.Now()
	game.UpdatedAt = game.CreatedAt
	copied := *game
	copied.Records = nil
	r.store.games[game.ID] = &copied
	return nil
}

func (r *fakeGameRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
	game, ok := r.store.games[id]
	if !ok || !game.Accessible {
		return nil, repositories.ErrGameNotFound
	}
	copied := *game
	return &copied, nil
}

func (r *fakeGameRepo) GetByCode(ctx context.Context, exec repositories.SQLExecutor, groupID, code int) (*models.Game, error) {
	for _, game := range r.store.games {
		if game.GroupID == groupID && game.Code == code && game.Accessible {
			copied := *game
			return &copied, nil
		}
	}
	return nil, repositories.ErrGameNotFound
}

func (r *fakeGameRepo) UpdateState(ctx context.Context, exec repositories.SQLExecutor, id int, state models.GameState, completedAt *time.Time) error {
	game, ok := r.store.games[id]
	if !ok {
		return repositories.ErrGameNotFound
	}
	game.State = state
	game.CompletedAt = completedAt
	game.UpdatedAt = time.Now()
	return nil
}

func (r *fakeGameRepo) UpdateProgress(ctx context.Context, exec repositories.SQLExecutor, id int, round, honba *int) error {
	game, ok := r.store.games[id]
	if !ok {
		return repositories.ErrGameNotFound
	}
	game.ProgressRound = round
	game.ProgressHonba = honba
	game.UpdatedAt = time.Now()
	return nil
}

func (r *fakeGameRepo) UpdateComment(ctx context.Context, exec repositories.SQLExecutor, id int, comment *string) error {
	game, ok := r.store.games[id]
	if !ok {
		return repositories.ErrGameNotFound
	}
	game.Comment = comment
	return nil
}

func (r *fakeGameRepo) SetAccessible(ctx context.Context, exec repositories.SQLExecutor, id int, accessible bool) error {
	game, ok := r.store.games[id]
	if !ok {
		return repositories.ErrGameNotFound
	}
	game.Accessible = accessible
	return nil
}

func (r *fakeGameRepo) Touch(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	game, ok := r.store.games[id]
	if !ok {
		return repositories.ErrGameNotFound
	}
	game.UpdatedAt = time.Now()
	return nil
}

func (r *fakeGameRepo) ListBySeasonAndStates(ctx context.Context, exec repositories.SQLExecutor, seasonID int, states []models.GameState) ([]*models.Game, error) {
	var out []*models.Game
	for _, game := range r.store.games {
		if !game.Accessible || game.SeasonID == nil || *game.SeasonID != seasonID {
			continue
		}
		for _, state := range states {
			if game.State == state {
				copied := *game
				out = append(out, &copied)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeGameRepo) ListUncompletedBefore(ctx context.Context, exec repositories.SQLExecutor, cutoff time.Time) ([]*models.Game, error) {
	var out []*models.Game
	for _, game := range r.store.games {
		if game.Accessible && game.State == models.GameStateUncompleted && game.UpdatedAt.Before(cutoff) {
			copied := *game
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeGameRepo) ListRecentBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID, limit int) ([]*models.Game, error) {
	games, err := r.ListBySeasonAndStates(ctx, exec, seasonID, []models.GameState{
		models.GameStateUncompleted, models.GameStateCompleted, models.GameStateInvalidTotal,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID > games[j].ID })
	if len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

type fakeRecordRepo struct{ store *memStore }

func (r *fakeRecordRepo) Create(ctx context.Context, exec repositories.SQLExecutor, record *models.GameRecord) error {
	for _, existing := range r.store.records {
		if existing.GameID == record.GameID && existing.UserID == record.UserID {
			return repositories.ErrGameRecordConflict
		}
	}
	record.ID = r.store.id()
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	copied := *record
	r.store.records[record.ID] = &copied
	return nil
}

func (r *fakeRecordRepo) UpdateChips(ctx context.Context, exec repositories.SQLExecutor, id, chips int, wind *models.SeatWind) error {
	record, ok := r.store.records[id]
	if !ok {
		return repositories.ErrGameRecordNotFound
	}
	record.Chips = chips
	if wind != nil {
		record.Wind = wind
	}
	record.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRecordRepo) SetSettlement(ctx context.Context, exec repositories.SQLExecutor, id, rank, points, scale int) error {
	record, ok := r.store.records[id]
	if !ok {
		return repositories.ErrGameRecordNotFound
	}
	record.Rank = &rank
	record.Points = &points
	record.PointScale = scale
	return nil
}

func (r *fakeRecordRepo) ClearSettlementByGame(ctx context.Context, exec repositories.SQLExecutor, gameID int) error {
	for _, record := range r.store.records {
		if record.GameID == gameID {
			record.Rank = nil
			record.Points = nil
		}
	}
	return nil
}

func (r *fakeRecordRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.store.records[id]; !ok {
		return repositories.ErrGameRecordNotFound
	}
	delete(r.store.records, id)
	return nil
}

func (r *fakeRecordRepo) ListByGame(ctx context.Context, exec repositories.SQLExecutor, gameID int) ([]*models.GameRecord, error) {
	var out []*models.GameRecord
	for _, record := range r.store.records {
		if record.GameID == gameID {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeSeasonRepo struct{ store *memStore }

func (r *fakeSeasonRepo) Create(ctx context.Context, season *models.Season) error {
	for _, existing := range r.store.seasons {
		if existing.GroupID == season.GroupID && existing.Code == season.Code && existing.Accessible {
			return repositories.ErrSeasonCodeConflict
		}
	}
	season.ID = r.store.id()
	season.Accessible = true
	season.CreatedAt = time.Now()
	copied := *season
	r.store.seasons[season.ID] = &copied
	return nil
}

func (r *fakeSeasonRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Season, error) {
	season, ok := r.store.seasons[id]
	if !ok || !season.Accessible {
		return nil, repositories.ErrSeasonNotFound
	}
	copied := *season
	return &copied, nil
}

func (r *fakeSeasonRepo) GetByCode(ctx context.Context, groupID int, code string) (*models.Season, error) {
	for _, season := range r.store.seasons {
		if season.GroupID == groupID && season.Code == code && season.Accessible {
			copied := *season
			return &copied, nil
		}
	}
	return nil, repositories.ErrSeasonNotFound
}

func (r *fakeSeasonRepo) ListByGroup(ctx context.Context, groupID int) ([]*models.Season, error) {
	var out []*models.Season
	for _, season := range r.store.seasons {
		if season.GroupID == groupID && season.Accessible {
			copied := *season
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSeasonRepo) UpdateState(ctx context.Context, exec repositories.SQLExecutor, id int, state models.SeasonState, startedAt, finishedAt *time.Time) error {
	season, ok := r.store.seasons[id]
	if !ok {
		return repositories.ErrSeasonNotFound
	}
	season.State = state
	if startedAt != nil {
		season.StartedAt = startedAt
	}
	if finishedAt != nil {
		season.FinishedAt = finishedAt
	}
	return nil
}

func (r *fakeSeasonRepo) SetAccessible(ctx context.Context, exec repositories.SQLExecutor, id int, accessible bool) error {
	season, ok := r.store.seasons[id]
	if !ok {
		return repositories.ErrSeasonNotFound
	}
	season.Accessible = accessible
	return nil
}

type fakePointRepo struct{ store *memStore }

func (r *fakePointRepo) Get(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID int) (*models.SeasonUserPoint, error) {
	point, ok := r.store.points[[2]int{seasonID, userID}]
	if !ok {
		return nil, repositories.ErrSeasonUserPointNotFound
	}
	copied := *point
	return &copied, nil
}

func (r *fakePointRepo) AddPoints(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID, delta, scale int) error {
	key := [2]int{seasonID, userID}
	point, ok := r.store.points[key]
	if !ok {
		point = &models.SeasonUserPoint{
			ID:       r.store.id(),
			SeasonID: seasonID,
			UserID:   userID,
			Scale:    scale,
		}
		r.store.points[key] = point
	}
	point.Points += delta
	point.UpdatedAt = time.Now()
	return nil
}

func (r *fakePointRepo) SetPoints(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID, points, scale int) error {
	key := [2]int{seasonID, userID}
	point, ok := r.store.points[key]
	if !ok {
		point = &models.SeasonUserPoint{
			ID:       r.store.id(),
			SeasonID: seasonID,
			UserID:   userID,
		}
		r.store.points[key] = point
	}
	point.Points = points
	point.Scale = scale
	point.UpdatedAt = time.Now()
	return nil
}

func (r *fakePointRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID int) error {
	key := [2]int{seasonID, userID}
	if _, ok := r.store.points[key]; !ok {
		return repositories.ErrSeasonUserPointNotFound
	}
	delete(r.store.points, key)
	return nil
}

func (r *fakePointRepo) ListBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]*models.SeasonUserPoint, error) {
	var out []*models.SeasonUserPoint
	for _, point := range r.store.points {
		if point.SeasonID == seasonID {
			copied := *point
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

type fakeChangeRepo struct{ store *memStore }

func (r *fakeChangeRepo) Append(ctx context.Context, exec repositories.SQLExecutor, change *models.SeasonUserPointChange) error {
	change.ID = r.store.id()
	change.CreatedAt = time.Now()
	copied := *change
	r.store.changes = append(r.store.changes, &copied)
	return nil
}

func (r *fakeChangeRepo) ListByGame(ctx context.Context, exec repositories.SQLExecutor, gameID int) ([]*models.SeasonUserPointChange, error) {
	var out []*models.SeasonUserPointChange
	for _, change := range r.store.changes {
		if change.GameID != nil && *change.GameID == gameID {
			copied := *change
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeChangeRepo) ListByPair(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID int) ([]*models.SeasonUserPointChange, error) {
	var out []*models.SeasonUserPointChange
	for _, change := range r.store.changes {
		if change.SeasonID == seasonID && change.UserID == userID {
			copied := *change
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeChangeRepo) HasLaterEntry(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID, afterID int) (bool, error) {
	for _, change := range r.store.changes {
		if change.SeasonID == seasonID && change.UserID == userID && change.ID > afterID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeChangeRepo) CountByPair(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID int) (int, error) {
	count := 0
	for _, change := range r.store.changes {
		if change.SeasonID == seasonID && change.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeChangeRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	for i, change := range r.store.changes {
		if change.ID == id {
			r.store.changes = append(r.store.changes[:i], r.store.changes[i+1:]...)
			return nil
		}
	}
	return repositories.ErrPointChangeNotFound
}

func (r *fakeChangeRepo) DeleteByPair(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID int) error {
	kept := r.store.changes[:0]
	for _, change := range r.store.changes {
		if change.SeasonID != seasonID || change.UserID != userID {
			kept = append(kept, change)
		}
	}
	r.store.changes = kept
	return nil
}

// recordingBroadcaster captures hub notifications for assertions.
type recordingBroadcaster struct {
	seasonIDs []int
}

func (b *recordingBroadcaster) BroadcastSeason(seasonID int, payload interface{}) {
	b.seasonIDs = append(b.seasonIDs, seasonID)
}
