package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/dbx"
	"github.com/dmitrijs2005/groupledger/internal/server/access"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/groups"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
)

var (
	errNotGroupMember   = common.NewError(common.ErrorForbidden, "you are not a member of this group")
	errTargetNotMember  = common.NewError(common.ErrorNotFound, "user is not a member of this group")
	errLastAdminDemote  = common.NewError(common.ErrorConflict, "last admin cannot be demoted")
	errLastAdminLeaving = common.NewError(common.ErrorConflict, "last admin must promote another admin or delete the group before leaving")
)

// GroupService is the Membership Ledger.
type GroupService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	guard        *access.Guard
	generateCode func(n int) (string, error)
}

func NewGroupService(db *sql.DB, m repomanager.RepositoryManager) *GroupService {
	return &GroupService{
		db:           db,
		repomanager:  m,
		guard:        access.NewGuard(m.Groups(db)),
		generateCode: common.GenerateCode,
	}
}

// CreateGroup inserts the group and the owner's admin membership together.
// A code collision rolls the attempt back and retries with a fresh code.
func (s *GroupService) CreateGroup(ctx context.Context, ownerID int64, name string) (*models.GroupWithRole, error) {
	name, err := requireText("group name", name, 1, 100)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < common.MaxCodeAttempts; attempt++ {
		code, err := s.generateCode(common.GroupCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%w: generating group code: %v", common.ErrorInternal, err)
		}

		var out *models.GroupWithRole
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repomanager.Groups(tx)
			g, err := repo.Create(ctx, name, code)
			if err != nil {
				return err
			}
			m, err := repo.AddMember(ctx, ownerID, g.ID, models.RoleAdmin)
			if err != nil {
				return err
			}
			out = &models.GroupWithRole{Group: *g, Role: m.Role, JoinedAt: m.JoinedAt}
			return nil
		})
		if errors.Is(err, common.ErrorCodeCollision) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error creating group: %w", err)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: no unique group code after %d attempts", common.ErrorInternal, common.MaxCodeAttempts)
}

func (s *GroupService) GetGroup(ctx context.Context, requesterID, groupID int64) (*models.GroupWithRole, error) {
	role, err := s.guard.Require(ctx, requesterID, groupID, models.RoleMember)
	if err != nil {
		return nil, err
	}
	g, err := s.repomanager.Groups(s.db).GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorNotFound, "group not found")
		}
		return nil, fmt.Errorf("error loading group: %w", err)
	}
	return &models.GroupWithRole{Group: *g, Role: role}, nil
}

func (s *GroupService) ListGroupsForUser(ctx context.Context, userID int64) ([]models.GroupWithRole, error) {
	list, err := s.repomanager.Groups(s.db).ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing groups: %w", err)
	}
	return list, nil
}

func (s *GroupService) ListMembers(ctx context.Context, requesterID, groupID int64) ([]models.Member, error) {
	if _, err := s.guard.Require(ctx, requesterID, groupID, models.RoleMember); err != nil {
		return nil, err
	}
	list, err := s.repomanager.Groups(s.db).ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}
	return list, nil
}

// lockGroup locks the group row. A missing group reads as no membership.
func lockGroup(ctx context.Context, repo groups.Repository, groupID int64) error {
	if err := repo.LockGroup(ctx, groupID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errNotGroupMember
		}
		return fmt.Errorf("error locking group: %w", err)
	}
	return nil
}

// ChangeRole sets targetID's role. The admin count check and the update run
// under the group row lock, so concurrent demotions cannot strip the group of
// its last admin.
func (s *GroupService) ChangeRole(ctx context.Context, requesterID, groupID, targetID int64, role models.Role) (*models.Membership, error) {
	var out *models.Membership
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Groups(tx)
		if err := lockGroup(ctx, repo, groupID); err != nil {
			return err
		}
		if _, err := access.NewGuard(repo).Require(ctx, requesterID, groupID, models.RoleAdmin); err != nil {
			return err
		}
		if !role.Valid() {
			return invalid("role must be admin or member")
		}

		current, err := repo.GetRole(ctx, targetID, groupID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errTargetNotMember
			}
			return fmt.Errorf("error loading role: %w", err)
		}

		if current == models.RoleAdmin && role == models.RoleMember {
			admins, err := repo.CountAdmins(ctx, groupID)
			if err != nil {
				return fmt.Errorf("error counting admins: %w", err)
			}
			if admins <= 1 {
				return errLastAdminDemote
			}
		}

		out, err = repo.SetRole(ctx, targetID, groupID, role)
		if err != nil {
			return fmt.Errorf("error updating role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LeaveGroup removes the caller's membership. The last admin may only leave
// when nobody else is left.
func (s *GroupService) LeaveGroup(ctx context.Context, userID, groupID int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Groups(tx)
		if err := lockGroup(ctx, repo, groupID); err != nil {
			return err
		}

		role, err := access.NewGuard(repo).RoleOf(ctx, userID, groupID)
		if err != nil {
			return fmt.Errorf("error loading role: %w", err)
		}
		if role == models.RoleNone {
			return errNotGroupMember
		}

		if role == models.RoleAdmin {
			admins, err := repo.CountAdmins(ctx, groupID)
			if err != nil {
				return fmt.Errorf("error counting admins: %w", err)
			}
			members, err := repo.CountMembers(ctx, groupID)
			if err != nil {
				return fmt.Errorf("error counting members: %w", err)
			}
			if admins <= 1 && members > 1 {
				return errLastAdminLeaving
			}
		}

		if err := repo.RemoveMember(ctx, userID, groupID); err != nil {
			return fmt.Errorf("error removing member: %w", err)
		}
		return nil
	})
}

// DeleteGroup removes the group with everything that hangs off it.
func (s *GroupService) DeleteGroup(ctx context.Context, requesterID, groupID int64) error {
	if _, err := s.guard.Require(ctx, requesterID, groupID, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.repomanager.Groups(s.db).Delete(ctx, groupID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.ErrorNotFound, "group not found")
		}
		return fmt.Errorf("error deleting group: %w", err)
	}
	return nil
}
