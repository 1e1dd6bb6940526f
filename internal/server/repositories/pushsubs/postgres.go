package pushsubs

import (
	"context"
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

func (r *PostgresRepository) Upsert(ctx context.Context, userID int64, token, platform string) (*models.PushSubscription, error) {
	query := `
		INSERT INTO push_subscriptions (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT push_subscriptions_token_key DO UPDATE
		SET user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform
		RETURNING id, user_id, token, platform, created_at
	`
	s := &models.PushSubscription{}
	err := r.db.QueryRowContext(ctx, query, userID, token, platform).Scan(&s.ID, &s.UserID, &s.Token, &s.Platform, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID int64, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) DeleteToken(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]models.PushSubscription, error) {
	query := `
		SELECT id, user_id, token, platform, created_at
		FROM push_subscriptions
		WHERE user_id = $1
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.PushSubscription{}
	for rows.Next() {
		var s models.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Token, &s.Platform, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
