// Package dues tracks whether each group member has paid their dues.
package dues

import (
	"context"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type Repository interface {
	// Upsert sets the paid flag. paid_at is stamped when paid and cleared otherwise.
	Upsert(ctx context.Context, groupID, userID int64, isPaid bool) (*models.Dues, error)
	// ListByGroup returns every member of the group; members without a dues row are unpaid.
	ListByGroup(ctx context.Context, groupID int64) ([]models.MemberDues, error)
}
