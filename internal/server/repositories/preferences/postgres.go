package preferences

import (
	"context"
	"database/sql"
	"errors"
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

func (r *PostgresRepository) Get(ctx context.Context, userID int64) (*models.UserPreference, error) {
	query := `
		SELECT user_id, receive_dues_reminders, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`
	p := &models.UserPreference{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.ReceiveDuesReminders, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UserPreference{UserID: userID, ReceiveDuesReminders: true}, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, userID int64, receiveDuesReminders bool) (*models.UserPreference, error) {
	query := `
		INSERT INTO user_preferences (user_id, receive_dues_reminders, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET receive_dues_reminders = EXCLUDED.receive_dues_reminders,
			updated_at = NOW()
		RETURNING user_id, receive_dues_reminders, updated_at
	`
	p := &models.UserPreference{}
	err := r.db.QueryRowContext(ctx, query, userID, receiveDuesReminders).Scan(&p.UserID, &p.ReceiveDuesReminders, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}
