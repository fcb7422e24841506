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
	ErrSeasonNotFound     = errors.New("season not found")
	ErrSeasonCodeConflict = errors.New("season code already used in this group")
)

type SeasonRepository interface {
	Create(ctx context.Context, season *models.Season) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error)
	GetByCode(ctx context.Context, groupID int, code string) (*models.Season, error)
	ListByGroup(ctx context.Context, groupID int) ([]*models.Season, error)
	UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.SeasonState, startedAt, finishedAt *time.Time) error
	SetAccessible(ctx context.Context, exec SQLExecutor, id int, accessible bool) error
}

type postgresSeasonRepository struct {
	db *sql.DB
}

func NewPostgresSeasonRepository(db *sql.DB) SeasonRepository {
	return &postgresSeasonRepository{db: db}
}

const seasonColumns = `id, group_id, code, name, state, rules_json, accessible, started_at, finished_at, created_at`

func scanSeason(row interface{ Scan(...interface{}) error }) (*models.Season, error) {
	season := &models.Season{}
	err := row.Scan(
		&season.ID,
		&season.GroupID,
		&season.Code,
		&season.Name,
		&season.State,
		&season.RulesJSON,
		&season.Accessible,
		&season.StartedAt,
		&season.FinishedAt,
		&season.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return season, nil
}

func (r *postgresSeasonRepository) Create(ctx context.Context, season *models.Season) error {
	query := `
		INSERT INTO seasons (group_id, code, name, state, rules_json)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, accessible, created_at`

	err := r.db.QueryRowContext(ctx, query,
		season.GroupID,
		season.Code,
		season.Name,
		season.State,
		season.RulesJSON,
	).Scan(&season.ID, &season.Accessible, &season.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrSeasonCodeConflict
	}
	return err
}

func (r *postgresSeasonRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1 AND accessible = TRUE`
	season, err := scanSeason(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to scan season by id %d: %w", id, err)
	}
	return season, nil
}

func (r *postgresSeasonRepository) GetByCode(ctx context.Context, groupID int, code string) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE group_id = $1 AND code = $2 AND accessible = TRUE`
	season, err := scanSeason(r.db.QueryRowContext(ctx, query, groupID, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to scan season %q of group %d: %w", code, groupID, err)
	}
	return season, nil
}

func (r *postgresSeasonRepository) ListByGroup(ctx context.Context, groupID int) ([]*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE group_id = $1 AND accessible = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons for group %d: %w", groupID, err)
	}
	defer rows.Close()

	seasons := make([]*models.Season, 0)
	for rows.Next() {
		season, err := scanSeason(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan season row: %w", err)
		}
		seasons = append(seasons, season)
	}
	return seasons, rows.Err()
}

func (r *postgresSeasonRepository) UpdateState(ctx context.Context, exec SQLExecutor, id int, state models.SeasonState, startedAt, finishedAt *time.Time) error {
	query := `UPDATE seasons SET state = $1, started_at = COALESCE($2, started_at), finished_at = COALESCE($3, finished_at) WHERE id = $4`
	result, err := exec.ExecContext(ctx, query, state, startedAt, finishedAt, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSeasonNotFound)
}

func (r *postgresSeasonRepository) SetAccessible(ctx context.Context, exec SQLExecutor, id int, accessible bool) error {
	result, err := exec.ExecContext(ctx, `UPDATE seasons SET accessible = $1 WHERE id = $2`, accessible, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSeasonNotFound)
}
