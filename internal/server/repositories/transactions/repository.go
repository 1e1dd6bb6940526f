// Package transactions stores the financial ledger of each group.
package transactions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	// GetByReceiptKey returns the newest transaction whose receipt points at key.
	GetByReceiptKey(ctx context.Context, key string) (*models.Transaction, error)
	Update(ctx context.Context, id int64, patch models.TransactionPatch) (*models.Transaction, error)
	Delete(ctx context.Context, id int64) error

	ListByGroup(ctx context.Context, groupID int64, limit, offset int) ([]models.Transaction, error)
	// ListRange returns transactions inside rng in chronological order.
	ListRange(ctx context.Context, groupID int64, rng models.DateRange) ([]models.Transaction, error)

	Stats(ctx context.Context, groupID int64, rng models.DateRange) (models.GroupStats, error)
	MonthlyStats(ctx context.Context, groupID int64, since time.Time) ([]models.MonthlyStat, error)
	CategoryStats(ctx context.Context, groupID int64, rng models.DateRange) ([]models.CategoryStat, error)
}
