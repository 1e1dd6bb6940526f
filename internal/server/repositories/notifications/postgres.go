package notifications

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

func (r *PostgresRepository) Append(ctx context.Context, l *models.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (user_id, group_id, type, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, sent_at
	`
	var groupID sql.NullInt64
	if l.GroupID != nil {
		groupID = sql.NullInt64{Int64: *l.GroupID, Valid: true}
	}
	if err := r.db.QueryRowContext(ctx, query, l.UserID, groupID, l.Type, l.Message).Scan(&l.ID, &l.SentAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID int64, userID *int64, limit int) ([]models.NotificationLog, error) {
	query := `
		SELECT id, user_id, group_id, type, message, sent_at
		FROM notification_logs
		WHERE group_id = $1 AND ($2::bigint IS NULL OR user_id = $2)
		ORDER BY sent_at DESC, id DESC
		LIMIT $3
	`
	var uid sql.NullInt64
	if userID != nil {
		uid = sql.NullInt64{Int64: *userID, Valid: true}
	}
	return r.list(ctx, query, groupID, uid, limit)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.NotificationLog, error) {
	query := `
		SELECT id, user_id, group_id, type, message, sent_at
		FROM notification_logs
		WHERE user_id = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.NotificationLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.NotificationLog{}
	for rows.Next() {
		var l models.NotificationLog
		var groupID sql.NullInt64
		if err := rows.Scan(&l.ID, &l.UserID, &groupID, &l.Type, &l.Message, &l.SentAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if groupID.Valid {
			id := groupID.Int64
			l.GroupID = &id
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UnpaidCandidates(ctx context.Context, groupID int64) ([]models.ReminderCandidate, error) {
	query := `
		SELECT
			g.id,
			g.name,
			u.id,
			u.name,
			u.email,
			COALESCE(p.receive_dues_reminders, true),
			COUNT(*) FILTER (WHERE d.is_paid = false OR d.is_paid IS NULL)
		FROM user_groups ug
		JOIN users u ON u.id = ug.user_id
		JOIN groups g ON g.id = ug.group_id
		LEFT JOIN dues d ON d.group_id = ug.group_id AND d.user_id = ug.user_id
		LEFT JOIN user_preferences p ON p.user_id = ug.user_id
		WHERE ug.group_id = $1
		GROUP BY g.id, g.name, u.id, u.name, u.email, p.receive_dues_reminders
		ORDER BY u.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.ReminderCandidate{}
	for rows.Next() {
		var c models.ReminderCandidate
		if err := rows.Scan(&c.GroupID, &c.GroupName, &c.UserID, &c.UserName, &c.Email, &c.ReceiveDuesReminders, &c.UnpaidCount); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
