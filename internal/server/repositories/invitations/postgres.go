package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, groupID, createdBy int64, code string, expiresAt time.Time) (*models.Invitation, error) {
	query := `
		INSERT INTO invitations (group_id, code, created_by, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, group_id, code, created_by, expires_at, accepted_at, accepted_by, created_at
	`
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, groupID, code, createdBy, expiresAt))
	if err != nil {
		if dbx.IsUniqueViolation(err, "invitations_code_key") {
			return nil, common.ErrorCodeCollision
		}
		return nil, err
	}
	return inv, nil
}

func (r *PostgresRepository) GetByCodeForUpdate(ctx context.Context, code string) (*models.Invitation, error) {
	query := `
		SELECT id, group_id, code, created_by, expires_at, accepted_at, accepted_by, created_at
		FROM invitations
		WHERE code = $1
		FOR UPDATE
	`
	return scanInvitation(r.db.QueryRowContext(ctx, query, code))
}

func (r *PostgresRepository) MarkAccepted(ctx context.Context, id, userID int64, at time.Time) error {
	query := `
		UPDATE invitations
		SET accepted_at = $3, accepted_by = $2
		WHERE id = $1 AND accepted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.NewError(common.ErrorConflict, "invitation already accepted")
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM invitations
		WHERE expires_at < $1 AND accepted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanInvitation(row *sql.Row) (*models.Invitation, error) {
	inv := &models.Invitation{}
	var acceptedAt sql.NullTime
	var acceptedBy sql.NullInt64
	err := row.Scan(&inv.ID, &inv.GroupID, &inv.Code, &inv.CreatedBy, &inv.ExpiresAt, &acceptedAt, &acceptedBy, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	if acceptedBy.Valid {
		id := acceptedBy.Int64
		inv.AcceptedBy = &id
	}
	return inv, nil
}
