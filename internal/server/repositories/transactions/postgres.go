package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/dbx"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, group_id, type, amount, description, date, receipt_url, category, created_by, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var receipt, category sql.NullString
	err := s.Scan(&t.ID, &t.GroupID, &t.Type, &t.Amount, &t.Description, &t.Date, &receipt, &category, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if receipt.Valid {
		v := receipt.String
		t.ReceiptURL = &v
	}
	if category.Valid {
		v := category.String
		t.Category = &v
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// rangeArgs turns an inclusive day range into a half-open [from, to+1d) pair.
func rangeArgs(rng models.DateRange) (sql.NullTime, sql.NullTime) {
	var from, to sql.NullTime
	if !rng.From.IsZero() {
		from = sql.NullTime{Time: rng.From, Valid: true}
	}
	if !rng.To.IsZero() {
		to = sql.NullTime{Time: rng.To.AddDate(0, 0, 1), Valid: true}
	}
	return from, to
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (group_id, type, amount, description, date, receipt_url, category, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		t.GroupID, t.Type, t.Amount, t.Description, t.Date,
		nullString(t.ReceiptURL), nullString(t.Category), t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByReceiptKey(ctx context.Context, key string) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE receipt_url = $1 OR receipt_url LIKE '%/' || $1
		ORDER BY id ASC
		LIMIT 1
	`
	return r.getOne(ctx, query, key)
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, patch models.TransactionPatch) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET type = COALESCE($2, type),
			amount = COALESCE($3, amount),
			description = COALESCE($4, description),
			date = COALESCE($5, date),
			receipt_url = COALESCE($6, receipt_url),
			category = COALESCE($7, category)
		WHERE id = $1
		RETURNING ` + transactionColumns

	var typ sql.NullString
	if patch.Type != nil {
		typ = sql.NullString{String: string(*patch.Type), Valid: true}
	}
	var amount decimal.NullDecimal
	if patch.Amount != nil {
		amount = decimal.NewNullDecimal(*patch.Amount)
	}

	return r.getOne(ctx, query,
		id, typ, amount, nullString(patch.Description), nullTime(patch.Date),
		nullString(patch.ReceiptURL), nullString(patch.Category),
	)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
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

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) ListByGroup(ctx context.Context, groupID int64, limit, offset int) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE group_id = $1
		ORDER BY date DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, groupID, limit, offset)
}

func (r *PostgresRepository) ListRange(ctx context.Context, groupID int64, rng models.DateRange) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE group_id = $1
			AND ($2::timestamptz IS NULL OR date >= $2)
			AND ($3::timestamptz IS NULL OR date < $3)
		ORDER BY date ASC, id ASC
	`
	from, to := rangeArgs(rng)
	return r.list(ctx, query, groupID, from, to)
}

func (r *PostgresRepository) Stats(ctx context.Context, groupID int64, rng models.DateRange) (models.GroupStats, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
		FROM transactions
		WHERE group_id = $1
			AND ($2::timestamptz IS NULL OR date >= $2)
			AND ($3::timestamptz IS NULL OR date < $3)
	`
	from, to := rangeArgs(rng)
	var s models.GroupStats
	if err := r.db.QueryRowContext(ctx, query, groupID, from, to).Scan(&s.TotalIncome, &s.TotalExpense); err != nil {
		return models.GroupStats{}, fmt.Errorf("db error: %w", err)
	}
	s.CurrentBalance = s.TotalIncome.Sub(s.TotalExpense)
	return s, nil
}

func (r *PostgresRepository) MonthlyStats(ctx context.Context, groupID int64, since time.Time) ([]models.MonthlyStat, error) {
	query := `
		SELECT
			to_char(date, 'YYYY-MM') AS month,
			COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
		FROM transactions
		WHERE group_id = $1 AND date >= $2
		GROUP BY month
		ORDER BY month ASC
	`
	rows, err := r.db.QueryContext(ctx, query, groupID, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.MonthlyStat{}
	for rows.Next() {
		var m models.MonthlyStat
		if err := rows.Scan(&m.Month, &m.Income, &m.Expense); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) CategoryStats(ctx context.Context, groupID int64, rng models.DateRange) ([]models.CategoryStat, error) {
	query := `
		SELECT category, income, expense, income - expense AS total
		FROM (
			SELECT
				COALESCE(NULLIF(TRIM(category), ''), 'uncategorized') AS category,
				COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0) AS income,
				COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0) AS expense
			FROM transactions
			WHERE group_id = $1
				AND ($2::timestamptz IS NULL OR date >= $2)
				AND ($3::timestamptz IS NULL OR date < $3)
			GROUP BY 1
		) c
		ORDER BY total DESC, category ASC
	`
	from, to := rangeArgs(rng)
	rows, err := r.db.QueryContext(ctx, query, groupID, from, to)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.CategoryStat{}
	for rows.Next() {
		var c models.CategoryStat
		if err := rows.Scan(&c.Category, &c.Income, &c.Expense, &c.Total); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
