// Package groups stores groups and their memberships (the user_groups join
// table), the single source of authorization truth.
package groups

import (
	"context"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

type Repository interface {
	// Create inserts a group. A taken code yields common.ErrorCodeCollision.
	Create(ctx context.Context, name, code string) (*models.Group, error)
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	// Delete removes the group; dependent rows go with it through ON DELETE CASCADE.
	Delete(ctx context.Context, id int64) error
	ListIDs(ctx context.Context) ([]int64, error)
	ListForUser(ctx context.Context, userID int64) ([]models.GroupWithRole, error)

	// LockGroup takes a row lock on the group for the rest of the transaction.
	// Membership mutations that check admin counts call it first.
	LockGroup(ctx context.Context, groupID int64) error

	AddMember(ctx context.Context, userID, groupID int64, role models.Role) (*models.Membership, error)
	// AddMemberIfAbsent inserts the membership unless one exists, reporting
	// whether a row was inserted. An existing role is never touched.
	AddMemberIfAbsent(ctx context.Context, userID, groupID int64, role models.Role) (bool, error)
	// GetRole returns common.ErrorNotFound when the user is not a member.
	GetRole(ctx context.Context, userID, groupID int64) (models.Role, error)
	SetRole(ctx context.Context, userID, groupID int64, role models.Role) (*models.Membership, error)
	RemoveMember(ctx context.Context, userID, groupID int64) error
	CountAdmins(ctx context.Context, groupID int64) (int, error)
	CountMembers(ctx context.Context, groupID int64) (int, error)
	ListMembers(ctx context.Context, groupID int64) ([]models.Member, error)
}
