package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/mahjong-league/models"
	"github.com/lib/pq"
)

var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupMemberNotFound = errors.New("group member not found")
	ErrGroupMemberConflict = errors.New("user is already a member of the group")
)

type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id int) (*models.Group, error)
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error

	// NextGameCode atomically allocates the next per-group game code. Always
	// runs on the provided executor so code allocation joins the enclosing
	// transaction.
	NextGameCode(ctx context.Context, exec SQLExecutor, groupID int) (int, error)

	// GetByIDForUpdate читает группу с блокировкой строки; две параллельные
	// транзакции над одной группой сериализуются на ней.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Group, error)

	SetRunningSeason(ctx context.Context, exec SQLExecutor, groupID int, seasonID *int) error
}

type GroupMemberRepository interface {
	Add(ctx context.Context, member *models.GroupMember) error
	Get(ctx context.Context, groupID, userID int) (*models.GroupMember, error)
	ListByGroup(ctx context.Context, groupID int) ([]*models.GroupMember, error)
	UpdateRole(ctx context.Context, groupID, userID int, role models.GroupRole) error
	Remove(ctx context.Context, groupID, userID int) error
}

type postgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) GroupRepository {
	return &postgresGroupRepository{db: db}
}

func (r *postgresGroupRepository) Create(ctx context.Context, group *models.Group) error {
	query := `
		INSERT INTO groups (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, last_game_code, created_at`

	return r.db.QueryRowContext(ctx, query, group.Name, group.OwnerID).
		Scan(&group.ID, &group.LastGameCode, &group.CreatedAt)
}

func (r *postgresGroupRepository) GetByID(ctx context.Context, id int) (*models.Group, error) {
	query := `
		SELECT id, name, owner_id, running_season_id, last_game_code, logo_key, created_at
		FROM groups
		WHERE id = $1`

	group := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.OwnerID,
		&group.RunningSeasonID,
		&group.LastGameCode,
		&group.LogoKey,
		&group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to scan group by id %d: %w", id, err)
	}
	return group, nil
}

func (r *postgresGroupRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Group, error) {
	query := `
		SELECT id, name, owner_id, running_season_id, last_game_code, logo_key, created_at
		FROM groups
		WHERE id = $1
		FOR UPDATE`

	group := &models.Group{}
	err := exec.QueryRowContext(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.OwnerID,
		&group.RunningSeasonID,
		&group.LastGameCode,
		&group.LogoKey,
		&group.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to lock group %d: %w", id, err)
	}
	return group, nil
}

func (r *postgresGroupRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE groups SET logo_key = $1 WHERE id = $2`, logoKey, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}

func (r *postgresGroupRepository) NextGameCode(ctx context.Context, exec SQLExecutor, groupID int) (int, error) {
	query := `
		UPDATE groups
		SET last_game_code = last_game_code + 1
		WHERE id = $1
		RETURNING last_game_code`

	var code int
	err := exec.QueryRowContext(ctx, query, groupID).Scan(&code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrGroupNotFound
		}
		return 0, fmt.Errorf("failed to allocate game code for group %d: %w", groupID, err)
	}
	return code, nil
}

func (r *postgresGroupRepository) SetRunningSeason(ctx context.Context, exec SQLExecutor, groupID int, seasonID *int) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE groups SET running_season_id = $1 WHERE id = $2`, seasonID, groupID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupNotFound)
}

type postgresGroupMemberRepository struct {
	db *sql.DB
}

func NewPostgresGroupMemberRepository(db *sql.DB) GroupMemberRepository {
	return &postgresGroupMemberRepository{db: db}
}

func (r *postgresGroupMemberRepository) Add(ctx context.Context, member *models.GroupMember) error {
	query := `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at`

	err := r.db.QueryRowContext(ctx, query, member.GroupID, member.UserID, member.Role).
		Scan(&member.ID, &member.JoinedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrGroupMemberConflict
	}
	return err
}

func (r *postgresGroupMemberRepository) Get(ctx context.Context, groupID, userID int) (*models.GroupMember, error) {
	query := `
		SELECT id, group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2`

	member := &models.GroupMember{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupMemberNotFound
		}
		return nil, fmt.Errorf("failed to scan group member: %w", err)
	}
	return member, nil
}

func (r *postgresGroupMemberRepository) ListByGroup(ctx context.Context, groupID int) ([]*models.GroupMember, error) {
	query := `
		SELECT id, group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.GroupMember, 0)
	for rows.Next() {
		member := &models.GroupMember{}
		if err := rows.Scan(&member.ID, &member.GroupID, &member.UserID, &member.Role, &member.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group member row: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *postgresGroupMemberRepository) UpdateRole(ctx context.Context, groupID, userID int, role models.GroupRole) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET role = $1 WHERE group_id = $2 AND user_id = $3`,
		role, groupID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupMemberNotFound)
}

func (r *postgresGroupMemberRepository) Remove(ctx context.Context, groupID, userID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGroupMemberNotFound)
}
