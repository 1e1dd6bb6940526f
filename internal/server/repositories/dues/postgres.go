package dues

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/groupledger/internal/dbx"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, groupID, userID int64, isPaid bool) (*models.Dues, error) {
	query := `
		INSERT INTO dues (group_id, user_id, is_paid, paid_at, updated_at)
		VALUES ($1, $2, $3, CASE WHEN $3 THEN NOW() ELSE NULL END, NOW())
		ON CONFLICT ON CONSTRAINT dues_group_user_key DO UPDATE
		SET is_paid = EXCLUDED.is_paid,
			paid_at = CASE WHEN EXCLUDED.is_paid THEN NOW() ELSE NULL END,
			updated_at = NOW()
		RETURNING group_id, user_id, is_paid, paid_at, updated_at
	`
	d := &models.Dues{}
	var paidAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, groupID, userID, isPaid).
		Scan(&d.GroupID, &d.UserID, &d.IsPaid, &paidAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		d.PaidAt = &t
	}
	return d, nil
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID int64) ([]models.MemberDues, error) {
	query := `
		SELECT u.id, u.name, u.email, COALESCE(d.is_paid, false), d.paid_at
		FROM user_groups ug
		JOIN users u ON u.id = ug.user_id
		LEFT JOIN dues d ON d.group_id = ug.group_id AND d.user_id = ug.user_id
		WHERE ug.group_id = $1
		ORDER BY u.name ASC, u.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.MemberDues{}
	for rows.Next() {
		var m models.MemberDues
		var paidAt sql.NullTime
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.IsPaid, &paidAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if paidAt.Valid {
			t := paidAt.Time
			m.PaidAt = &t
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
