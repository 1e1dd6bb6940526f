// Package access decides whether a caller may act on a group. Every decision
// is a read of the caller's membership role; nothing here writes.
package access

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
)

// RoleReader is the membership lookup the guard needs.
// It returns common.ErrorNotFound when the user is not a member.
type RoleReader interface {
	GetRole(ctx context.Context, userID, groupID int64) (models.Role, error)
}

var (
	errNotMember = common.NewError(common.ErrorForbidden, "you are not a member of this group")
	errNotAdmin  = common.NewError(common.ErrorForbidden, "admin role required")
)

type Guard struct {
	roles RoleReader
}

func NewGuard(r RoleReader) *Guard {
	return &Guard{roles: r}
}

// RoleOf returns the caller's role, or models.RoleNone when they are not a member.
func (g *Guard) RoleOf(ctx context.Context, userID, groupID int64) (models.Role, error) {
	role, err := g.roles.GetRole(ctx, userID, groupID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.RoleNone, nil
		}
		return models.RoleNone, err
	}
	return role, nil
}

// Require fails with common.ErrorForbidden unless the caller's role satisfies
// minimum. A missing group and a missing membership look the same.
func (g *Guard) Require(ctx context.Context, userID, groupID int64, minimum models.Role) (models.Role, error) {
	role, err := g.RoleOf(ctx, userID, groupID)
	if err != nil {
		return models.RoleNone, err
	}
	if !Allows(role, minimum) {
		if minimum == models.RoleAdmin && role != models.RoleNone {
			return role, errNotAdmin
		}
		return role, errNotMember
	}
	return role, nil
}

// Allows reports whether role satisfies minimum. admin satisfies member.
func Allows(role, minimum models.Role) bool {
	switch minimum {
	case models.RoleAdmin:
		return role == models.RoleAdmin
	case models.RoleMember:
		return role == models.RoleAdmin || role == models.RoleMember
	default:
		return false
	}
}

// CanModifyTransaction reports whether a member with role may edit a
// transaction created by creatorID.
func CanModifyTransaction(role models.Role, callerID, creatorID int64) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleMember && callerID == creatorID
}
