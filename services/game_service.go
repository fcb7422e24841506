package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/repositories"
	"github.com/Dosada05/mahjong-league/scoring"
)

// StandingsBroadcaster pushes a season's refreshed standings to live
// subscribers. Implemented by the websocket hub; nil disables broadcasts.
type StandingsBroadcaster interface {
	BroadcastSeason(seasonID int, payload interface{})
}

type NewGameInput struct {
	GroupID    int
	PromoterID int
	Variant    models.GameVariant
	Comment    *string
}

type RecordScoreInput struct {
	PlayerID int
	Chips    int
	Wind     *models.SeatWind
}

// GameService drives a game through its lifecycle: open, record scores,
// settle or invalidate once the table is full, and allow corrections that
// revert and recompute the settlement.
type GameService interface {
	NewGame(ctx context.Context, input NewGameInput) (*models.Game, error)
	GetGame(ctx context.Context, groupID, code int) (*models.Game, error)
	RecordScore(ctx context.Context, groupID, code, actorID int, input RecordScoreInput) (*models.Game, error)
	UndoScore(ctx context.Context, groupID, code, playerID, actorID int) (*models.Game, error)
	DeleteGame(ctx context.Context, groupID, code, actorID int) error
	UpdateProgress(ctx context.Context, groupID, code, actorID int, round, honba *int) (*models.Game, error)
	SetComment(ctx context.Context, groupID, code, actorID int, comment string) (*models.Game, error)
	SweepStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type gameService struct {
	db        repositories.SQLExecutor
	txManager repositories.TxManager
	games     repositories.GameRepository
	records   repositories.GameRecordRepository
	seasons   repositories.SeasonRepository
	users     repositories.UserRepository
	ledger    LedgerService
	auth      groupAuth
	hub       StandingsBroadcaster
	logger    *slog.Logger
}

func NewGameService(
	db repositories.SQLExecutor,
	txManager repositories.TxManager,
	games repositories.GameRepository,
	records repositories.GameRecordRepository,
	seasons repositories.SeasonRepository,
	groups repositories.GroupRepository,
	members repositories.GroupMemberRepository,
	users repositories.UserRepository,
	ledger LedgerService,
	hub StandingsBroadcaster,
	logger *slog.Logger,
) GameService {
	return &gameService{
		db:        db,
		txManager: txManager,
		games:     games,
		records:   records,
		seasons:   seasons,
		users:     users,
		ledger:    ledger,
		auth:      groupAuth{groups: groups, members: members},
		hub:       hub,
		logger:    logger,
	}
}

func (s *gameService) NewGame(ctx context.Context, input NewGameInput) (*models.Game, error) {
	if input.Variant == "" {
		input.Variant = models.VariantFourSouth
	}
	if _, err := models.ParseGameVariant(string(input.Variant)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if err := s.auth.requireMember(ctx, input.GroupID, input.PromoterID); err != nil {
		return nil, err
	}

	// The group's running season, if any, owns the new game. The season's
	// rule block must cover the requested variant.
	group, err := s.auth.groups.GetByID(ctx, input.GroupID)
	if err != nil {
		return nil, err
	}
	var seasonID *int
	if group.RunningSeasonID != nil {
		season, err := s.seasons.GetByID(ctx, s.db, *group.RunningSeasonID)
		if err != nil {
			return nil, err
		}
		draft := &models.Game{Variant: input.Variant}
		if _, err := scoringConfigFor(draft, season); err != nil {
			return nil, err
		}
		seasonID = &season.ID
	}

	game := &models.Game{
		GroupID:    input.GroupID,
		SeasonID:   seasonID,
		PromoterID: input.PromoterID,
		Variant:    input.Variant,
		State:      models.GameStateUncompleted,
		Comment:    input.Comment,
	}
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		code, err := s.auth.groups.NextGameCode(ctx, exec, input.GroupID)
		if err != nil {
			return err
		}
		game.Code = code
		return s.games.Create(ctx, exec, game)
	})
	if err != nil {
		return nil, err
	}
	game.Records = []*models.GameRecord{}
	return game, nil
}

func (s *gameService) GetGame(ctx context.Context, groupID, code int) (*models.Game, error) {
	game, err := s.loadGame(ctx, s.db, groupID, code)
	if err != nil {
		return nil, err
	}
	s.populateRecordUsers(ctx, game)
	return game, nil
}

// RecordScore stores or corrects one player's chip count. Correcting a score
// on a settled game first reverts the settlement; filling the last seat of a
// game with no active progress marker settles it.
func (s *gameService) RecordScore(ctx context.Context, groupID, code, actorID int, input RecordScoreInput) (*models.Game, error) {
	if input.PlayerID != actorID {
		if err := s.auth.requireAdmin(ctx, groupID, actorID); err != nil {
			return nil, err
		}
	}
	if err := s.auth.requireMember(ctx, groupID, input.PlayerID); err != nil {
		return nil, err
	}

	var game *models.Game
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		game, err = s.loadGame(ctx, exec, groupID, code)
		if err != nil {
			return err
		}

		if record := game.RecordOf(input.PlayerID); record != nil {
			// Correction. A settled game is unwound first so the whole
			// settlement recomputes instead of patching deltas in place.
			if err := s.reopen(ctx, exec, game); err != nil {
				return err
			}
			if err := s.records.UpdateChips(ctx, exec, record.ID, input.Chips, input.Wind); err != nil {
				return err
			}
			record.Chips = input.Chips
			if input.Wind != nil {
				record.Wind = input.Wind
			}
		} else {
			if len(game.Records) >= game.Variant.Seats() {
				return ErrSeatsFull
			}
			record := &models.GameRecord{
				GameID: game.ID,
				UserID: input.PlayerID,
				Chips:  input.Chips,
				Wind:   input.Wind,
			}
			if err := s.records.Create(ctx, exec, record); err != nil {
				if errors.Is(err, repositories.ErrGameRecordConflict) {
					return fmt.Errorf("%w: concurrent submission for player %d", ErrValidationFailed, input.PlayerID)
				}
				return err
			}
			game.Records = append(game.Records, record)
		}

		// Счёт живёт в game_records; саму игру надо пометить изменённой,
		// иначе её подхватит чистка заброшенных игр.
		if err := s.games.Touch(ctx, exec, game.ID); err != nil {
			return err
		}

		return s.trySettle(ctx, exec, game)
	})
	if err != nil {
		return nil, err
	}

	s.notifySeason(ctx, game)
	s.populateRecordUsers(ctx, game)
	return game, nil
}

// UndoScore removes a player's seat. Reverting a settled game is refused
// with ErrStaleReversal when later ledger entries exist; in that case the
// record stays untouched.
func (s *gameService) UndoScore(ctx context.Context, groupID, code, playerID, actorID int) (*models.Game, error) {
	if playerID != actorID {
		if err := s.auth.requireAdmin(ctx, groupID, actorID); err != nil {
			return nil, err
		}
	}

	var game *models.Game
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		game, err = s.loadGame(ctx, exec, groupID, code)
		if err != nil {
			return err
		}
		record := game.RecordOf(playerID)
		if record == nil {
			return ErrNoSuchRecord
		}
		if err := s.reopen(ctx, exec, game); err != nil {
			return err
		}
		if err := s.records.Delete(ctx, exec, record.ID); err != nil {
			return err
		}
		kept := game.Records[:0]
		for _, r := range game.Records {
			if r.ID != record.ID {
				kept = append(kept, r)
			}
		}
		game.Records = kept
		return s.games.Touch(ctx, exec, game.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notifySeason(ctx, game)
	s.populateRecordUsers(ctx, game)
	return game, nil
}

// DeleteGame soft-deletes a game; a settled one is reverted first, with the
// same staleness rule as UndoScore.
func (s *gameService) DeleteGame(ctx context.Context, groupID, code, actorID int) error {
	if err := s.auth.requireAdmin(ctx, groupID, actorID); err != nil {
		return err
	}

	var game *models.Game
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		game, err = s.loadGame(ctx, exec, groupID, code)
		if err != nil {
			return err
		}
		if err := s.reopen(ctx, exec, game); err != nil {
			return err
		}
		return s.games.SetAccessible(ctx, exec, game.ID, false)
	})
	if err != nil {
		return err
	}

	s.notifySeason(ctx, game)
	return nil
}

// UpdateProgress records the current round/repeat of a mid-play game, or
// clears the marker when both values are nil. Clearing on a full table
// triggers the deferred settlement.
func (s *gameService) UpdateProgress(ctx context.Context, groupID, code, actorID int, round, honba *int) (*models.Game, error) {
	if err := s.auth.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	var game *models.Game
	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		game, err = s.loadGame(ctx, exec, groupID, code)
		if err != nil {
			return err
		}
		if game.State != models.GameStateUncompleted {
			return ErrGameNotUpdatable
		}
		if err := s.games.UpdateProgress(ctx, exec, game.ID, round, honba); err != nil {
			return err
		}
		game.ProgressRound = round
		game.ProgressHonba = honba
		return s.trySettle(ctx, exec, game)
	})
	if err != nil {
		return nil, err
	}

	s.notifySeason(ctx, game)
	s.populateRecordUsers(ctx, game)
	return game, nil
}

func (s *gameService) SetComment(ctx context.Context, groupID, code, actorID int, comment string) (*models.Game, error) {
	if err := s.auth.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	game, err := s.loadGame(ctx, s.db, groupID, code)
	if err != nil {
		return nil, err
	}
	if err := s.games.UpdateComment(ctx, s.db, game.ID, &comment); err != nil {
		return nil, err
	}
	game.Comment = &comment
	return game, nil
}

// SweepStale invalidates abandoned games: uncompleted, no progress marker,
// untouched since the cutoff. Runs through the same contracts as a manual
// delete, never mutating rows directly.
func (s *gameService) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	stale, err := s.games.ListUncompletedBefore(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, game := range stale {
		if game.InProgress() {
			continue
		}
		err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
			return s.games.SetAccessible(ctx, exec, game.ID, false)
		})
		if err != nil {
			s.logger.Error("failed to sweep stale game",
				slog.Int("game_id", game.ID), slog.Any("error", err))
			continue
		}
		swept++
	}
	return swept, nil
}

// loadGame fetches a game with its seat records on the given executor.
func (s *gameService) loadGame(ctx context.Context, exec repositories.SQLExecutor, groupID, code int) (*models.Game, error) {
	game, err := s.games.GetByCode(ctx, exec, groupID, code)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	records, err := s.records.ListByGame(ctx, exec, game.ID)
	if err != nil {
		return nil, err
	}
	game.Records = records
	return game, nil
}

// reopen returns a game in a terminal state to uncompleted. For a completed
// game the ledger is reverted first; ErrStaleReversal propagates and aborts
// the enclosing transaction.
func (s *gameService) reopen(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error {
	switch game.State {
	case models.GameStateUncompleted:
		return nil
	case models.GameStateCompleted:
		if err := s.ledger.RevertGameSettlement(ctx, exec, game); err != nil {
			return err
		}
		if err := s.records.ClearSettlementByGame(ctx, exec, game.ID); err != nil {
			return err
		}
		for _, r := range game.Records {
			r.Rank = nil
			r.Points = nil
		}
	}
	if err := s.games.UpdateState(ctx, exec, game.ID, models.GameStateUncompleted, nil); err != nil {
		return err
	}
	game.State = models.GameStateUncompleted
	game.CompletedAt = nil
	return nil
}

// trySettle settles a full table. A chip-sum mismatch is not an error: the
// game lands in invalid_total_point and stays correctable.
func (s *gameService) trySettle(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error {
	if game.State != models.GameStateUncompleted {
		return nil
	}
	if len(game.Records) != game.Variant.Seats() || game.InProgress() {
		return nil
	}

	var season *models.Season
	if game.SeasonID != nil {
		var err error
		season, err = s.seasons.GetByID(ctx, exec, *game.SeasonID)
		if err != nil {
			return err
		}
	}
	cfg, err := scoringConfigFor(game, season)
	if err != nil {
		return err
	}

	seats := make([]scoring.SeatChips, len(game.Records))
	for i, record := range game.Records {
		seats[i] = scoring.SeatChips{Seat: i, Chips: record.Chips}
	}

	results, err := scoring.Settle(seats, cfg)
	if err != nil {
		if errors.Is(err, scoring.ErrChipSumMismatch) {
			if err := s.games.UpdateState(ctx, exec, game.ID, models.GameStateInvalidTotal, nil); err != nil {
				return err
			}
			game.State = models.GameStateInvalidTotal
			return nil
		}
		return err
	}

	for i, record := range game.Records {
		rank, points := results[i].Rank, results[i].Points
		if err := s.records.SetSettlement(ctx, exec, record.ID, rank, points, cfg.Scale); err != nil {
			return err
		}
		record.Rank = &rank
		record.Points = &points
		record.PointScale = cfg.Scale
	}

	now := time.Now()
	if err := s.games.UpdateState(ctx, exec, game.ID, models.GameStateCompleted, &now); err != nil {
		return err
	}
	game.State = models.GameStateCompleted
	game.CompletedAt = &now

	return s.ledger.ApplyGameSettlement(ctx, exec, game)
}

func (s *gameService) notifySeason(ctx context.Context, game *models.Game) {
	if s.hub == nil || game == nil || game.SeasonID == nil {
		return
	}
	s.hub.BroadcastSeason(*game.SeasonID, map[string]interface{}{
		"game_id":   game.ID,
		"game_code": game.Code,
		"state":     game.State,
	})
}

func (s *gameService) populateRecordUsers(ctx context.Context, game *models.Game) {
	if game == nil || len(game.Records) == 0 {
		return
	}
	ids := make([]int, 0, len(game.Records))
	for _, r := range game.Records {
		ids = append(ids, r.UserID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to populate game record users",
			slog.Int("game_id", game.ID), slog.Any("error", err))
		return
	}
	byID := make(map[int]*models.User, len(users))
	for _, u := range users {
		u.PasswordHash = ""
		byID[u.ID] = u
	}
	for _, r := range game.Records {
		r.User = byID[r.UserID]
	}
}
