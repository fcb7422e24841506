package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/repositories"
	"golang.org/x/sync/errgroup"
)

type CreateSeasonInput struct {
	GroupID int
	Code    string
	Name    string
	Rules   *models.RuleSet
}

// SeasonDashboard bundles everything the season page shows.
type SeasonDashboard struct {
	Season      *models.Season          `json:"season"`
	Standings   []models.SeasonStanding `json:"standings"`
	RecentGames []*models.Game          `json:"recent_games"`
}

// SeasonService owns the season state machine: initial -> running ->
// finished, forward only, with removal permitted only before the start.
type SeasonService interface {
	CreateSeason(ctx context.Context, actorID int, input CreateSeasonInput) (*models.Season, error)
	GetSeason(ctx context.Context, seasonID int) (*models.Season, error)
	ListSeasons(ctx context.Context, groupID int) ([]*models.Season, error)
	StartSeason(ctx context.Context, seasonID, actorID int) error
	FinishSeason(ctx context.Context, seasonID, actorID int) error
	RemoveSeason(ctx context.Context, seasonID, actorID int) error
	Standings(ctx context.Context, seasonID int) ([]models.SeasonStanding, error)
	Dashboard(ctx context.Context, seasonID int) (*SeasonDashboard, error)
	ManualPointChange(ctx context.Context, seasonID, userID, newPoints, actorID int) error
	ResetUserPoints(ctx context.Context, seasonID, userID, actorID int) error
}

type seasonService struct {
	db        repositories.SQLExecutor
	txManager repositories.TxManager
	seasons   repositories.SeasonRepository
	games     repositories.GameRepository
	points    repositories.SeasonUserPointRepository
	users     repositories.UserRepository
	ledger    LedgerService
	auth      groupAuth
	hub       StandingsBroadcaster
	logger    *slog.Logger
}

func NewSeasonService(
	db repositories.SQLExecutor,
	txManager repositories.TxManager,
	seasons repositories.SeasonRepository,
	games repositories.GameRepository,
	groups repositories.GroupRepository,
	members repositories.GroupMemberRepository,
	points repositories.SeasonUserPointRepository,
	users repositories.UserRepository,
	ledger LedgerService,
	hub StandingsBroadcaster,
	logger *slog.Logger,
) SeasonService {
	return &seasonService{
		db:        db,
		txManager: txManager,
		seasons:   seasons,
		games:     games,
		points:    points,
		users:     users,
		ledger:    ledger,
		auth:      groupAuth{groups: groups, members: members},
		hub:       hub,
		logger:    logger,
	}
}

func (s *seasonService) CreateSeason(ctx context.Context, actorID int, input CreateSeasonInput) (*models.Season, error) {
	if err := s.auth.requireAdmin(ctx, input.GroupID, actorID); err != nil {
		return nil, err
	}
	input.Code = strings.TrimSpace(input.Code)
	if input.Code == "" || strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: season code and name are required", ErrValidationFailed)
	}
	if err := validateRuleSet(input.Rules); err != nil {
		return nil, err
	}

	rulesJSON, err := json.Marshal(input.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal season rules: %w", err)
	}
	season := &models.Season{
		GroupID:     input.GroupID,
		Code:        input.Code,
		Name:        strings.TrimSpace(input.Name),
		State:       models.SeasonStateInitial,
		RulesJSON:   string(rulesJSON),
		ParsedRules: input.Rules,
	}
	if err := s.seasons.Create(ctx, season); err != nil {
		if errors.Is(err, repositories.ErrSeasonCodeConflict) {
			return nil, ErrSeasonCodeConflict
		}
		return nil, err
	}
	return season, nil
}

func (s *seasonService) GetSeason(ctx context.Context, seasonID int) (*models.Season, error) {
	season, err := s.seasons.GetByID(ctx, s.db, seasonID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}
	return season, nil
}

func (s *seasonService) ListSeasons(ctx context.Context, groupID int) ([]*models.Season, error) {
	return s.seasons.ListByGroup(ctx, groupID)
}

// StartSeason moves an initial season to running. A group runs at most one
// season at a time.
func (s *seasonService) StartSeason(ctx context.Context, seasonID, actorID int) error {
	season, err := s.GetSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if err := s.auth.requireAdmin(ctx, season.GroupID, actorID); err != nil {
		return err
	}
	if !isValidSeasonTransition(season.State, models.SeasonStateRunning) {
		return fmt.Errorf("%w: %s -> %s", ErrSeasonInvalidState, season.State, models.SeasonStateRunning)
	}

	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Проверка единственного запущенного сезона идёт под блокировкой
		// строки группы, параллельные старты сериализуются здесь.
		group, err := s.auth.groups.GetByIDForUpdate(ctx, exec, season.GroupID)
		if err != nil {
			return err
		}
		if group.RunningSeasonID != nil {
			return ErrAnotherSeasonRunning
		}

		now := time.Now()
		if err := s.seasons.UpdateState(ctx, exec, season.ID, models.SeasonStateRunning, &now, nil); err != nil {
			return err
		}
		return s.auth.groups.SetRunningSeason(ctx, exec, season.GroupID, &season.ID)
	})
}

// FinishSeason closes a running season. Games that never settled and are not
// mid-play are abandoned: soft-deleted without ever touching the ledger.
func (s *seasonService) FinishSeason(ctx context.Context, seasonID, actorID int) error {
	season, err := s.GetSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if err := s.auth.requireAdmin(ctx, season.GroupID, actorID); err != nil {
		return err
	}
	if !isValidSeasonTransition(season.State, models.SeasonStateFinished) {
		return fmt.Errorf("%w: %s -> %s", ErrSeasonInvalidState, season.State, models.SeasonStateFinished)
	}

	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		unsettled, err := s.games.ListBySeasonAndStates(ctx, exec, season.ID,
			[]models.GameState{models.GameStateUncompleted, models.GameStateInvalidTotal})
		if err != nil {
			return err
		}
		for _, game := range unsettled {
			if game.InProgress() {
				continue
			}
			if err := s.games.SetAccessible(ctx, exec, game.ID, false); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := s.seasons.UpdateState(ctx, exec, season.ID, models.SeasonStateFinished, nil, &now); err != nil {
			return err
		}
		return s.auth.groups.SetRunningSeason(ctx, exec, season.GroupID, nil)
	})
}

// RemoveSeason soft-deletes a season that was never started.
func (s *seasonService) RemoveSeason(ctx context.Context, seasonID, actorID int) error {
	season, err := s.GetSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if err := s.auth.requireAdmin(ctx, season.GroupID, actorID); err != nil {
		return err
	}
	if season.State != models.SeasonStateInitial {
		return fmt.Errorf("%w: only an initial season can be removed", ErrSeasonInvalidState)
	}
	return s.seasons.SetAccessible(ctx, s.db, season.ID, false)
}

// Standings returns the season ranking, best total first. Equal totals share
// a rank; the next distinct total resumes at its positional rank.
func (s *seasonService) Standings(ctx context.Context, seasonID int) ([]models.SeasonStanding, error) {
	if _, err := s.GetSeason(ctx, seasonID); err != nil {
		return nil, err
	}
	totals, err := s.points.ListBySeason(ctx, s.db, seasonID)
	if err != nil {
		return nil, err
	}

	standings := make([]models.SeasonStanding, len(totals))
	ids := make([]int, len(totals))
	for i, total := range totals {
		rank := i + 1
		if i > 0 && total.Points == totals[i-1].Points {
			rank = standings[i-1].Rank
		}
		standings[i] = models.SeasonStanding{
			Rank:   rank,
			UserID: total.UserID,
			Points: total.Points,
			Scale:  total.Scale,
			Pretty: models.FormatPoints(total.Points, total.Scale),
		}
		ids[i] = total.UserID
	}

	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to populate standings users", slog.Any("error", err))
		return standings, nil
	}
	byID := make(map[int]*models.User, len(users))
	for _, u := range users {
		u.PasswordHash = ""
		byID[u.ID] = u
	}
	for i := range standings {
		standings[i].User = byID[standings[i].UserID]
	}
	return standings, nil
}

// Dashboard assembles standings and recent games concurrently.
func (s *seasonService) Dashboard(ctx context.Context, seasonID int) (*SeasonDashboard, error) {
	season, err := s.GetSeason(ctx, seasonID)
	if err != nil {
		return nil, err
	}

	dashboard := &SeasonDashboard{Season: season}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		standings, err := s.Standings(gCtx, seasonID)
		if err != nil {
			return err
		}
		dashboard.Standings = standings
		return nil
	})
	g.Go(func() error {
		games, err := s.games.ListRecentBySeason(gCtx, s.db, seasonID, 20)
		if err != nil {
			return err
		}
		dashboard.RecentGames = games
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboard, nil
}

// ManualPointChange sets a player's season total to an absolute value
// through the ledger, so the adjustment is audited and ordered like any
// other change.
func (s *seasonService) ManualPointChange(ctx context.Context, seasonID, userID, newPoints, actorID int) error {
	season, err := s.GetSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if err := s.auth.requireAdmin(ctx, season.GroupID, actorID); err != nil {
		return err
	}

	scale := 0
	if rules, err := season.Rules(); err == nil {
		if block := rules.ForLength("south"); block != nil {
			scale = block.Scale
		} else if block := rules.ForLength("east"); block != nil {
			scale = block.Scale
		}
	}
	if err := s.ledger.ApplyManualChange(ctx, seasonID, userID, newPoints, scale); err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastSeason(seasonID, map[string]interface{}{
			"user_id": userID,
			"points":  newPoints,
		})
	}
	return nil
}

// ResetUserPoints wipes a player's ledger for the season. Administrative
// escape hatch; no staleness check applies.
func (s *seasonService) ResetUserPoints(ctx context.Context, seasonID, userID, actorID int) error {
	season, err := s.GetSeason(ctx, seasonID)
	if err != nil {
		return err
	}
	if err := s.auth.requireAdmin(ctx, season.GroupID, actorID); err != nil {
		return err
	}
	return s.ledger.ResetUser(ctx, seasonID, userID)
}
