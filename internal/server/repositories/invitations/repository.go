// Package invitations stores single-use, time-limited group invitations.
package invitations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type Repository interface {
	// Create inserts an invitation. A taken code yields common.ErrorCodeCollision.
	Create(ctx context.Context, groupID, createdBy int64, code string, expiresAt time.Time) (*models.Invitation, error)
	// GetByCodeForUpdate loads the invitation and locks its row until the
	// surrounding transaction ends.
	GetByCodeForUpdate(ctx context.Context, code string) (*models.Invitation, error)
	// MarkAccepted stamps acceptance once; a second call reports common.ErrorConflict.
	MarkAccepted(ctx context.Context, id, userID int64, at time.Time) error
	// DeleteExpired removes unaccepted invitations that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
