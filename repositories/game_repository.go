package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/lib/pq"
)

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameRecordNotFound = errors.New("game record not found")
	ErrGameRecordConflict = errors.New("player already has a record in this game")
)

// GameRepository persists games. Every method takes a SQLExecutor so reads
// and writes can join the caller's transaction; pass the plain *sql.DB when
// no transaction is needed.
type GameRepository interface {
	Create(ctx context.Context, exec SQLExecutor, game *models.Game) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error)
	GetByCode(ctx context.Context, exec SQLExecutor, groupID, code int) (*models.Game, error)
	UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.GameState, completedAt *time.Time) error
	UpdateProgress(ctx context.Context, exec SQLExecutor, id int, round, honba *int) error
	UpdateComment(ctx context.Context, exec SQLExecutor, id int, comment *string) error
	SetAccessible(ctx context.Context, exec SQLExecutor, id int, accessible bool) error
	Touch(ctx context.Context, exec SQLExecutor, id int) error
	ListBySeasonAndStates(ctx context.Context, exec SQLExecutor, seasonID int, states []models.GameState) ([]*models.Game, error)
	ListUncompletedBefore(ctx context.Context, exec SQLExecutor, cutoff time.Time) ([]*models.Game, error)
	ListRecentBySeason(ctx context.Context, exec SQLExecutor, seasonID, limit int) ([]*models.Game, error)
}

type GameRecordRepository interface {
	Create(ctx context.Context, exec SQLExecutor, record *models.GameRecord) error
	UpdateChips(ctx context.Context, exec SQLExecutor, id, chips int, wind *models.SeatWind) error
	SetSettlement(ctx context.Context, exec SQLExecutor, id, rank, points, scale int) error
	ClearSettlementByGame(ctx context.Context, exec SQLExecutor, gameID int) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	ListByGame(ctx context.Context, exec SQLExecutor, gameID int) ([]*models.GameRecord, error)
}

type postgresGameRepository struct{}

func NewPostgresGameRepository() GameRepository {
	return &postgresGameRepository{}
}

const gameColumns = `id, code, group_id, season_id, promoter_id, variant, state, comment,
	progress_round, progress_honba, accessible, created_at, updated_at, completed_at`

func scanGame(row interface{ Scan(...interface{}) error }) (*models.Game, error) {
	game := &models.Game{}
	err := row.Scan(
		&game.ID,
		&game.Code,
		&game.GroupID,
		&game.SeasonID,
		&game.PromoterID,
		&game.Variant,
		&game.State,
		&game.Comment,
		&game.ProgressRound,
		&game.ProgressHonba,
		&game.Accessible,
		&game.CreatedAt,
		&game.UpdatedAt,
		&game.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return game, nil
}

func (r *postgresGameRepository) Create(ctx context.Context, exec SQLExecutor, game *models.Game) error {
	query := `
		INSERT INTO games (code, group_id, season_id, promoter_id, variant, state, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, accessible, created_at, updated_at`

	return exec.QueryRowContext(ctx, query,
		game.Code,
		game.GroupID,
		game.SeasonID,
		game.PromoterID,
		game.Variant,
		game.State,
		game.Comment,
	).Scan(&game.ID, &game.Accessible, &game.CreatedAt, &game.UpdatedAt)
}

func (r *postgresGameRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1 AND accessible = TRUE`
	game, err := scanGame(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game by id %d: %w", id, err)
	}
	return game, nil
}

func (r *postgresGameRepository) GetByCode(ctx context.Context, exec SQLExecutor, groupID, code int) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE group_id = $1 AND code = $2 AND accessible = TRUE`
	game, err := scanGame(exec.QueryRowContext(ctx, query, groupID, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game %d of group %d: %w", code, groupID, err)
	}
	return game, nil
}

func (r *postgresGameRepository) UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.GameState, completedAt *time.Time) error {
	query := `UPDATE games SET state = $1, completed_at = $2, updated_at = NOW() WHERE id = $3`
	result, err := exec.ExecContext(ctx, query, state, completedAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) UpdateProgress(ctx context.Context, exec SQLExecutor, id int, round, honba *int) error {
	query := `UPDATE games SET progress_round = $1, progress_honba = $2, updated_at = NOW() WHERE id = $3`
	result, err := exec.ExecContext(ctx, query, round, honba, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) UpdateComment(ctx context.Context, exec SQLExecutor, id int, comment *string) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE games SET comment = $1, updated_at = NOW() WHERE id = $2`, comment, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) SetAccessible(ctx context.Context, exec SQLExecutor, id int, accessible bool) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE games SET accessible = $1, updated_at = NOW() WHERE id = $2`, accessible, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

// Touch обновляет updated_at игры. Изменения в game_records сами по себе
// строку games не трогают.
func (r *postgresGameRepository) Touch(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := exec.ExecContext(ctx, `UPDATE games SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameRepository) ListBySeasonAndStates(ctx context.Context, exec SQLExecutor, seasonID int, states []models.GameState) ([]*models.Game, error) {
	query := `SELECT ` + gameColumns + `
		FROM games
		WHERE season_id = $1 AND accessible = TRUE AND state = ANY($2)
		ORDER BY id`

	stateStrs := make([]string, len(states))
	for i, s := range states {
		stateStrs[i] = string(s)
	}
	rows, err := exec.QueryContext(ctx, query, seasonID, pq.Array(stateStrs))
	if err != nil {
		return nil, fmt.Errorf("failed to list games for season %d: %w", seasonID, err)
	}
	defer rows.Close()
	return collectGames(rows)
}

func (r *postgresGameRepository) ListUncompletedBefore(ctx context.Context, exec SQLExecutor, cutoff time.Time) ([]*models.Game, error) {
	query := `SELECT ` + gameColumns + `
		FROM games
		WHERE state = $1 AND accessible = TRUE AND updated_at < $2
		ORDER BY id`

	rows, err := exec.QueryContext(ctx, query, models.GameStateUncompleted, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale games: %w", err)
	}
	defer rows.Close()
	return collectGames(rows)
}

func (r *postgresGameRepository) ListRecentBySeason(ctx context.Context, exec SQLExecutor, seasonID, limit int) ([]*models.Game, error) {
	query := `SELECT ` + gameColumns + `
		FROM games
		WHERE season_id = $1 AND accessible = TRUE
		ORDER BY id DESC
		LIMIT $2`

	rows, err := exec.QueryContext(ctx, query, seasonID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent games for season %d: %w", seasonID, err)
	}
	defer rows.Close()
	return collectGames(rows)
}

func collectGames(rows *sql.Rows) ([]*models.Game, error) {
	games := make([]*models.Game, 0)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}

type postgresGameRecordRepository struct{}

func NewPostgresGameRecordRepository() GameRecordRepository {
	return &postgresGameRecordRepository{}
}

func (r *postgresGameRecordRepository) Create(ctx context.Context, exec SQLExecutor, record *models.GameRecord) error {
	query := `
		INSERT INTO game_records (game_id, user_id, chips, wind, point_scale)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := exec.QueryRowContext(ctx, query,
		record.GameID,
		record.UserID,
		record.Chips,
		record.Wind,
		record.PointScale,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrGameRecordConflict
	}
	return err
}

func (r *postgresGameRecordRepository) UpdateChips(ctx context.Context, exec SQLExecutor, id, chips int, wind *models.SeatWind) error {
	query := `UPDATE game_records SET chips = $1, wind = COALESCE($2, wind), updated_at = NOW() WHERE id = $3`
	result, err := exec.ExecContext(ctx, query, chips, wind, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameRecordNotFound)
}

func (r *postgresGameRecordRepository) SetSettlement(ctx context.Context, exec SQLExecutor, id, rank, points, scale int) error {
	query := `UPDATE game_records SET rank = $1, points = $2, point_scale = $3, updated_at = NOW() WHERE id = $4`
	result, err := exec.ExecContext(ctx, query, rank, points, scale, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameRecordNotFound)
}

func (r *postgresGameRecordRepository) ClearSettlementByGame(ctx context.Context, exec SQLExecutor, gameID int) error {
	query := `UPDATE game_records SET rank = NULL, points = NULL, updated_at = NOW() WHERE game_id = $1`
	_, err := exec.ExecContext(ctx, query, gameID)
	return err
}

func (r *postgresGameRecordRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM game_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameRecordNotFound)
}

func (r *postgresGameRecordRepository) ListByGame(ctx context.Context, exec SQLExecutor, gameID int) ([]*models.GameRecord, error) {
	query := `
		SELECT id, game_id, user_id, chips, wind, rank, points, point_scale, created_at, updated_at
		FROM game_records
		WHERE game_id = $1
		ORDER BY id`

	rows, err := exec.QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records for game %d: %w", gameID, err)
	}
	defer rows.Close()

	records := make([]*models.GameRecord, 0, 4)
	for rows.Next() {
		record := &models.GameRecord{}
		err := rows.Scan(
			&record.ID,
			&record.GameID,
			&record.UserID,
			&record.Chips,
			&record.Wind,
			&record.Rank,
			&record.Points,
			&record.PointScale,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game record row: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
