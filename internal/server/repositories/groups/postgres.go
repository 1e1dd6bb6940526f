package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/dbx"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, name, code string) (*models.Group, error) {
	query := `
		INSERT INTO groups (name, code)
		VALUES ($1, $2)
		RETURNING id, name, code, created_at
	`
	g := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, name, code).Scan(&g.ID, &g.Name, &g.Code, &g.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "groups_code_key") {
			return nil, common.ErrorCodeCollision
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	query := `
		SELECT id, name, code, created_at
		FROM groups
		WHERE id = $1
	`
	g := &models.Group{}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.Code, &g.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM groups WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID int64) ([]models.GroupWithRole, error) {
	query := `
		SELECT g.id, g.name, g.code, g.created_at, ug.role, ug.joined_at
		FROM groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY ug.joined_at DESC, g.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.GroupWithRole{}
	for rows.Next() {
		var g models.GroupWithRole
		if err := rows.Scan(&g.ID, &g.Name, &g.Code, &g.CreatedAt, &g.Role, &g.JoinedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) LockGroup(ctx context.Context, groupID int64) error {
	query := `SELECT id FROM groups WHERE id = $1 FOR UPDATE`
	var id int64
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, userID, groupID int64, role models.Role) (*models.Membership, error) {
	query := `
		INSERT INTO user_groups (user_id, group_id, role)
		VALUES ($1, $2, $3)
		RETURNING user_id, group_id, role, joined_at
	`
	m := &models.Membership{}
	if err := r.db.QueryRowContext(ctx, query, userID, groupID, role).Scan(&m.UserID, &m.GroupID, &m.Role, &m.JoinedAt); err != nil {
		if dbx.IsUniqueViolation(err, "user_groups_user_group_key") {
			return nil, common.NewError(common.ErrorConflict, "user is already a member of the group")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) AddMemberIfAbsent(ctx context.Context, userID, groupID int64, role models.Role) (bool, error) {
	query := `
		INSERT INTO user_groups (user_id, group_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, group_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, userID, groupID, role)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) GetRole(ctx context.Context, userID, groupID int64) (models.Role, error) {
	query := `
		SELECT role
		FROM user_groups
		WHERE user_id = $1 AND group_id = $2
	`
	var role models.Role
	if err := r.db.QueryRowContext(ctx, query, userID, groupID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoleNone, common.ErrorNotFound
		}
		return models.RoleNone, fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

func (r *PostgresRepository) SetRole(ctx context.Context, userID, groupID int64, role models.Role) (*models.Membership, error) {
	query := `
		UPDATE user_groups
		SET role = $3
		WHERE user_id = $1 AND group_id = $2
		RETURNING user_id, group_id, role, joined_at
	`
	m := &models.Membership{}
	if err := r.db.QueryRowContext(ctx, query, userID, groupID, role).Scan(&m.UserID, &m.GroupID, &m.Role, &m.JoinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) RemoveMember(ctx context.Context, userID, groupID int64) error {
	query := `DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, groupID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountAdmins(ctx context.Context, groupID int64) (int, error) {
	query := `SELECT COUNT(*) FROM user_groups WHERE group_id = $1 AND role = 'admin'`
	return r.count(ctx, query, groupID)
}

func (r *PostgresRepository) CountMembers(ctx context.Context, groupID int64) (int, error) {
	query := `SELECT COUNT(*) FROM user_groups WHERE group_id = $1`
	return r.count(ctx, query, groupID)
}

func (r *PostgresRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, groupID int64) ([]models.Member, error) {
	query := `
		SELECT u.id, u.name, u.email, ug.role, ug.joined_at
		FROM user_groups ug
		JOIN users u ON u.id = ug.user_id
		WHERE ug.group_id = $1
		ORDER BY CASE WHEN ug.role = 'admin' THEN 0 ELSE 1 END, u.name ASC, u.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.Member{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
