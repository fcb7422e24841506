package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/Dosada05/mahjong-league/repositories"
)

// LedgerService is the only writer of season point totals and their change
// log. It keeps the invariant that a pair's running total equals the sum of
// its live change-log deltas.
//
// ApplyGameSettlement and RevertGameSettlement take a SQLExecutor because the
// game service calls them from inside its own transaction; the standalone
// operations open their own.
type LedgerService interface {
	ApplyGameSettlement(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error
	RevertGameSettlement(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error
	ApplyManualChange(ctx context.Context, seasonID, userID, newPoints, scale int) error
	ResetUser(ctx context.Context, seasonID, userID int) error
	ListChanges(ctx context.Context, seasonID, userID int) ([]*models.SeasonUserPointChange, error)
}

type ledgerService struct {
	db        repositories.SQLExecutor
	txManager repositories.TxManager
	points    repositories.SeasonUserPointRepository
	changes   repositories.PointChangeRepository
}

func NewLedgerService(
	db repositories.SQLExecutor,
	txManager repositories.TxManager,
	points repositories.SeasonUserPointRepository,
	changes repositories.PointChangeRepository,
) LedgerService {
	return &ledgerService{
		db:        db,
		txManager: txManager,
		points:    points,
		changes:   changes,
	}
}

// ApplyGameSettlement adds every settled seat's point delta to the season
// total and appends a game-typed change-log row. The caller's transaction
// makes the four updates atomic.
func (s *ledgerService) ApplyGameSettlement(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error {
	if game.SeasonID == nil {
		return nil // casual game, no season ledger to touch
	}
	for _, record := range game.Records {
		if record.Points == nil {
			return fmt.Errorf("game %d record %d has no settled points", game.ID, record.ID)
		}
		err := s.points.AddPoints(ctx, exec, *game.SeasonID, record.UserID, *record.Points, record.PointScale)
		if err != nil {
			return fmt.Errorf("failed to add points for user %d: %w", record.UserID, err)
		}
		change := &models.SeasonUserPointChange{
			SeasonID: *game.SeasonID,
			UserID:   record.UserID,
			Type:     models.PointChangeGame,
			Delta:    *record.Points,
			GameID:   &game.ID,
		}
		if err := s.changes.Append(ctx, exec, change); err != nil {
			return fmt.Errorf("failed to append point change for user %d: %w", record.UserID, err)
		}
	}
	return nil
}

// RevertGameSettlement exactly undoes a prior ApplyGameSettlement. If any
// affected (season, user) pair has a change-log row newer than this game's,
// the points have moved on since the settlement and reverting would
// desynchronize history: the whole reversal fails with ErrStaleReversal.
func (s *ledgerService) RevertGameSettlement(ctx context.Context, exec repositories.SQLExecutor, game *models.Game) error {
	changes, err := s.changes.ListByGame(ctx, exec, game.ID)
	if err != nil {
		return err
	}
	for _, change := range changes {
		later, err := s.changes.HasLaterEntry(ctx, exec, change.SeasonID, change.UserID, change.ID)
		if err != nil {
			return err
		}
		if later {
			return fmt.Errorf("%w: user %d in season %d", ErrStaleReversal, change.UserID, change.SeasonID)
		}
	}
	for _, change := range changes {
		err := s.points.AddPoints(ctx, exec, change.SeasonID, change.UserID, -change.Delta, 0)
		if err != nil {
			return fmt.Errorf("failed to subtract points for user %d: %w", change.UserID, err)
		}
		if err := s.changes.Delete(ctx, exec, change.ID); err != nil {
			return err
		}
		remaining, err := s.changes.CountByPair(ctx, exec, change.SeasonID, change.UserID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			err := s.points.Delete(ctx, exec, change.SeasonID, change.UserID)
			if err != nil && !errors.Is(err, repositories.ErrSeasonUserPointNotFound) {
				return err
			}
		}
	}
	return nil
}

// ApplyManualChange sets the running total to an absolute value and logs the
// signed delta for audit. The manual row participates in the same ordering
// rule as game rows, so it blocks reversal of earlier settlements.
func (s *ledgerService) ApplyManualChange(ctx context.Context, seasonID, userID, newPoints, scale int) error {
	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		current := 0
		point, err := s.points.Get(ctx, exec, seasonID, userID)
		if err != nil {
			if !errors.Is(err, repositories.ErrSeasonUserPointNotFound) {
				return err
			}
		} else {
			current = point.Points
		}

		if err := s.points.SetPoints(ctx, exec, seasonID, userID, newPoints, scale); err != nil {
			return err
		}
		change := &models.SeasonUserPointChange{
			SeasonID: seasonID,
			UserID:   userID,
			Type:     models.PointChangeManual,
			Delta:    newPoints - current,
		}
		return s.changes.Append(ctx, exec, change)
	})
}

// ResetUser wipes a pair's total and whole change log. Administrative only;
// deliberately bypasses the staleness check.
func (s *ledgerService) ResetUser(ctx context.Context, seasonID, userID int) error {
	return s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.changes.DeleteByPair(ctx, exec, seasonID, userID); err != nil {
			return err
		}
		err := s.points.Delete(ctx, exec, seasonID, userID)
		if err != nil && !errors.Is(err, repositories.ErrSeasonUserPointNotFound) {
			return err
		}
		return nil
	})
}

func (s *ledgerService) ListChanges(ctx context.Context, seasonID, userID int) ([]*models.SeasonUserPointChange, error) {
	return s.changes.ListByPair(ctx, s.db, seasonID, userID)
}
