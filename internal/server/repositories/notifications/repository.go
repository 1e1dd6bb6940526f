// Package notifications holds the append-only notification log and the
// member view the reminder policy evaluates.
package notifications

import (
	"context"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, l *models.NotificationLog) error
	// ListByGroup returns the newest logs of a group, optionally only those of userID.
	ListByGroup(ctx context.Context, groupID int64, userID *int64, limit int) ([]models.NotificationLog, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]models.NotificationLog, error)
	// UnpaidCandidates lists every member of the group with their reminder
	// preference and number of unpaid dues.
	UnpaidCandidates(ctx context.Context, groupID int64) ([]models.ReminderCandidate, error)
}
