// Package pushsubs stores device registration tokens used for push delivery.
package pushsubs

import (
	"context"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type Repository interface {
	// Upsert registers token for userID, moving it over if another user held it.
	Upsert(ctx context.Context, userID int64, token, platform string) (*models.PushSubscription, error)
	// Delete removes the user's token and reports whether anything was removed.
	Delete(ctx context.Context, userID int64, token string) (bool, error)
	// DeleteToken removes a token regardless of owner.
	DeleteToken(ctx context.Context, token string) error
	ListByUser(ctx context.Context, userID int64) ([]models.PushSubscription, error)
}
