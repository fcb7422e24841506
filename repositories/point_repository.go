package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/mahjong-league/models"
)

var (
	ErrSeasonUserPointNotFound = errors.New("season user point not found")
	ErrPointChangeNotFound     = errors.New("point change not found")
)

// SeasonUserPointRepository persists running totals. Only the ledger service
// may call the mutating methods, and always inside a transaction.
type SeasonUserPointRepository interface {
	Get(ctx context.Context, exec SQLExecutor, seasonID, userID int) (*models.SeasonUserPoint, error)
	AddPoints(ctx context.Context, exec SQLExecutor, seasonID, userID, delta, scale int) error
	SetPoints(ctx context.Context, exec SQLExecutor, seasonID, userID, points, scale int) error
	Delete(ctx context.Context, exec SQLExecutor, seasonID, userID int) error
	ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.SeasonUserPoint, error)
}

// PointChangeRepository persists the append-only change log. Rows are only
// ever inserted or deleted, never updated; the serial id provides the
// insertion order the reversal check depends on.
type PointChangeRepository interface {
	Append(ctx context.Context, exec SQLExecutor, change *models.SeasonUserPointChange) error
	ListByGame(ctx context.Context, exec SQLExecutor, gameID int) ([]*models.SeasonUserPointChange, error)
	ListByPair(ctx context.Context, exec SQLExecutor, seasonID, userID int) ([]*models.SeasonUserPointChange, error)
	HasLaterEntry(ctx context.Context, exec SQLExecutor, seasonID, userID, afterID int) (bool, error)
	CountByPair(ctx context.Context, exec SQLExecutor, seasonID, userID int) (int, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	DeleteByPair(ctx context.Context, exec SQLExecutor, seasonID, userID int) error
}

type postgresSeasonUserPointRepository struct{}

func NewPostgresSeasonUserPointRepository() SeasonUserPointRepository {
	return &postgresSeasonUserPointRepository{}
}

func (r *postgresSeasonUserPointRepository) Get(ctx context.Context, exec SQLExecutor, seasonID, userID int) (*models.SeasonUserPoint, error) {
	query := `
		SELECT id, season_id, user_id, points, scale, updated_at
		FROM season_user_points
		WHERE season_id = $1 AND user_id = $2`

	point := &models.SeasonUserPoint{}
	err := exec.QueryRowContext(ctx, query, seasonID, userID).Scan(
		&point.ID,
		&point.SeasonID,
		&point.UserID,
		&point.Points,
		&point.Scale,
		&point.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonUserPointNotFound
		}
		return nil, fmt.Errorf("failed to scan season user point: %w", err)
	}
	return point, nil
}

func (r *postgresSeasonUserPointRepository) AddPoints(ctx context.Context, exec SQLExecutor, seasonID, userID, delta, scale int) error {
	// Zero-initialized row on first touch; a later delta just accumulates.
	query := `
		INSERT INTO season_user_points (season_id, user_id, points, scale, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (season_id, user_id)
		DO UPDATE SET points = season_user_points.points + EXCLUDED.points, updated_at = NOW()`

	_, err := exec.ExecContext(ctx, query, seasonID, userID, delta, scale)
	return err
}

func (r *postgresSeasonUserPointRepository) SetPoints(ctx context.Context, exec SQLExecutor, seasonID, userID, points, scale int) error {
	query := `
		INSERT INTO season_user_points (season_id, user_id, points, scale, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (season_id, user_id)
		DO UPDATE SET points = EXCLUDED.points, updated_at = NOW()`

	_, err := exec.ExecContext(ctx, query, seasonID, userID, points, scale)
	return err
}

func (r *postgresSeasonUserPointRepository) Delete(ctx context.Context, exec SQLExecutor, seasonID, userID int) error {
	result, err := exec.ExecContext(ctx,
		`DELETE FROM season_user_points WHERE season_id = $1 AND user_id = $2`, seasonID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSeasonUserPointNotFound)
}

func (r *postgresSeasonUserPointRepository) ListBySeason(ctx context.Context, exec SQLExecutor, seasonID int) ([]*models.SeasonUserPoint, error) {
	query := `
		SELECT id, season_id, user_id, points, scale, updated_at
		FROM season_user_points
		WHERE season_id = $1
		ORDER BY points DESC, user_id`

	rows, err := exec.QueryContext(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list points for season %d: %w", seasonID, err)
	}
	defer rows.Close()

	points := make([]*models.SeasonUserPoint, 0)
	for rows.Next() {
		point := &models.SeasonUserPoint{}
		err := rows.Scan(&point.ID, &point.SeasonID, &point.UserID, &point.Points, &point.Scale, &point.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan season user point row: %w", err)
		}
		points = append(points, point)
	}
	return points, rows.Err()
}

type postgresPointChangeRepository struct{}

func NewPostgresPointChangeRepository() PointChangeRepository {
	return &postgresPointChangeRepository{}
}

const pointChangeColumns = `id, season_id, user_id, type, delta, game_id, created_at`

func scanPointChange(row interface{ Scan(...interface{}) error }) (*models.SeasonUserPointChange, error) {
	change := &models.SeasonUserPointChange{}
	err := row.Scan(
		&change.ID,
		&change.SeasonID,
		&change.UserID,
		&change.Type,
		&change.Delta,
		&change.GameID,
		&change.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (r *postgresPointChangeRepository) Append(ctx context.Context, exec SQLExecutor, change *models.SeasonUserPointChange) error {
	query := `
		INSERT INTO season_user_point_changes (season_id, user_id, type, delta, game_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return exec.QueryRowContext(ctx, query,
		change.SeasonID,
		change.UserID,
		change.Type,
		change.Delta,
		change.GameID,
	).Scan(&change.ID, &change.CreatedAt)
}

func (r *postgresPointChangeRepository) ListByGame(ctx context.Context, exec SQLExecutor, gameID int) ([]*models.SeasonUserPointChange, error) {
	query := `SELECT ` + pointChangeColumns + ` FROM season_user_point_changes WHERE game_id = $1 ORDER BY id`
	rows, err := exec.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list point changes for game %d: %w", gameID, err)
	}
	defer rows.Close()
	return collectPointChanges(rows)
}

func (r *postgresPointChangeRepository) ListByPair(ctx context.Context, exec SQLExecutor, seasonID, userID int) ([]*models.SeasonUserPointChange, error) {
	query := `SELECT ` + pointChangeColumns + ` FROM season_user_point_changes WHERE season_id = $1 AND user_id = $2 ORDER BY id`
	rows, err := exec.QueryContext(ctx, query, seasonID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list point changes: %w", err)
	}
	defer rows.Close()
	return collectPointChanges(rows)
}

func (r *postgresPointChangeRepository) HasLaterEntry(ctx context.Context, exec SQLExecutor, seasonID, userID, afterID int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM season_user_point_changes
			WHERE season_id = $1 AND user_id = $2 AND id > $3
		)`

	var exists bool
	if err := exec.QueryRowContext(ctx, query, seasonID, userID, afterID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check later point changes: %w", err)
	}
	return exists, nil
}

func (r *postgresPointChangeRepository) CountByPair(ctx context.Context, exec SQLExecutor, seasonID, userID int) (int, error) {
	var count int
	err := exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM season_user_point_changes WHERE season_id = $1 AND user_id = $2`,
		seasonID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count point changes: %w", err)
	}
	return count, nil
}

func (r *postgresPointChangeRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM season_user_point_changes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPointChangeNotFound)
}

func (r *postgresPointChangeRepository) DeleteByPair(ctx context.Context, exec SQLExecutor, seasonID, userID int) error {
	_, err := exec.ExecContext(ctx,
		`DELETE FROM season_user_point_changes WHERE season_id = $1 AND user_id = $2`, seasonID, userID)
	return err
}

func collectPointChanges(rows *sql.Rows) ([]*models.SeasonUserPointChange, error) {
	changes := make([]*models.SeasonUserPointChange, 0)
	for rows.Next() {
		change, err := scanPointChange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan point change row: %w", err)
		}
		changes = append(changes, change)
	}
	return changes, rows.Err()
}
