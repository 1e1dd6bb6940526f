package ctl

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/groupledger/internal/logging"
	"github.com/dmitrijs2005/groupledger/internal/server/config"
	"github.com/dmitrijs2005/groupledger/internal/server/delivery"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/groupledger/internal/server/services"
)

// ServiceBackend runs the commands against the database directly.
type ServiceBackend struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	users       *services.UserService
	invitations *services.InvitationService
	reminders   *services.ReminderService
}

// NewServiceBackend wires the services over db. Reminders go to the log
// channel only.
func NewServiceBackend(db *sql.DB, m repomanager.RepositoryManager, c *config.Config, l logging.Logger) *ServiceBackend {
	return &ServiceBackend{
		db:          db,
		repomanager: m,
		users:       services.NewUserService(db, m, c),
		invitations: services.NewInvitationService(db, m, c.InvitationTTL),
		reminders:   services.NewReminderService(db, m, delivery.NewLogChannel(l), nil, l),
	}
}

func (b *ServiceBackend) Migrate(ctx context.Context) error {
	return b.repomanager.RunMigrations(ctx, b.db)
}

func (b *ServiceBackend) CreateUser(ctx context.Context, email, password, name string) (*models.User, error) {
	return b.users.CreateUser(ctx, email, password, name)
}

func (b *ServiceBackend) SweepExpired(ctx context.Context) (int64, int64, error) {
	inv, invErr := b.invitations.DeleteExpiredInvitations(ctx)
	tokens, tokErr := b.users.PurgeExpiredRefreshTokens(ctx)
	return inv, tokens, errors.Join(invErr, tokErr)
}

func (b *ServiceBackend) SendReminders(ctx context.Context, groupID int64) (*models.ReminderReport, error) {
	return b.reminders.SendDuesReminders(ctx, groupID, false)
}

func (b *ServiceBackend) RunReminderSweep(ctx context.Context) (models.SweepSummary, error) {
	return b.reminders.RunDuesReminderSweep(ctx)
}
