package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/groupledger/internal/dbx"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/dues"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/groups"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/invitations"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/notifications"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/preferences"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/pushsubs"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same factory
// serves both a pool and an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Groups(db dbx.DBTX) groups.Repository
	Invitations(db dbx.DBTX) invitations.Repository
	Transactions(db dbx.DBTX) transactions.Repository
	Dues(db dbx.DBTX) dues.Repository
	Notifications(db dbx.DBTX) notifications.Repository
	Preferences(db dbx.DBTX) preferences.Repository
	PushSubscriptions(db dbx.DBTX) pushsubs.Repository
}
