// Package preferences stores per-user notification preferences.
package preferences

import (
	"context"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type Repository interface {
	// Get returns the stored preferences or the defaults when none exist.
	Get(ctx context.Context, userID int64) (*models.UserPreference, error)
	Upsert(ctx context.Context, userID int64, receiveDuesReminders bool) (*models.UserPreference, error)
}
