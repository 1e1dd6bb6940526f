package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/dbx"
	"github.com/dmitrijs2005/groupledger/internal/server/access"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
)

// MaxInvitationTTLHours bounds caller-chosen invitation lifetimes to 30 days.
const MaxInvitationTTLHours = 720

var (
	errInvitationNotFound = common.NewError(common.ErrorNotFound, "invitation not found")
	errInvitationAccepted = common.NewError(common.ErrorConflict, "invitation already accepted")
	errInvitationExpired  = common.NewError(common.ErrorGone, "invitation expired")
)

// AcceptResult is the membership an accepted invitation resolved to.
type AcceptResult struct {
	GroupID int64       `json:"groupId"`
	Role    models.Role `json:"role"`
}

type InvitationService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	guard        *access.Guard
	defaultTTL   time.Duration
	generateCode func(n int) (string, error)
}

func NewInvitationService(db *sql.DB, m repomanager.RepositoryManager, defaultTTL time.Duration) *InvitationService {
	return &InvitationService{
		db:           db,
		repomanager:  m,
		guard:        access.NewGuard(m.Groups(db)),
		defaultTTL:   defaultTTL,
		generateCode: common.GenerateCode,
	}
}

// CreateInvitation issues a single-use code for groupID. ttlHours <= 0 uses
// the configured default.
func (s *InvitationService) CreateInvitation(ctx context.Context, requesterID, groupID int64, ttlHours int) (*models.Invitation, error) {
	if _, err := s.guard.Require(ctx, requesterID, groupID, models.RoleAdmin); err != nil {
		return nil, err
	}

	ttl := s.defaultTTL
	if ttlHours > 0 {
		if ttlHours > MaxInvitationTTLHours {
			return nil, invalid("ttlHours must be between 1 and %d", MaxInvitationTTLHours)
		}
		ttl = time.Duration(ttlHours) * time.Hour
	}

	repo := s.repomanager.Invitations(s.db)
	for attempt := 0; attempt < common.MaxCodeAttempts; attempt++ {
		code, err := s.generateCode(common.InvitationCodeLength)
		if err != nil {
			return nil, fmt.Errorf("%w: generating invitation code: %v", common.ErrorInternal, err)
		}
		inv, err := repo.Create(ctx, groupID, requesterID, code, timeNow().Add(ttl))
		if errors.Is(err, common.ErrorCodeCollision) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error creating invitation: %w", err)
		}
		return inv, nil
	}

	return nil, fmt.Errorf("%w: no unique invitation code after %d attempts", common.ErrorInternal, common.MaxCodeAttempts)
}

// AcceptInvitation consumes code on behalf of userID. The invitation row stays
// locked until the membership is written and the invitation is stamped.
// An existing membership keeps its role.
func (s *InvitationService) AcceptInvitation(ctx context.Context, code string, userID int64) (*AcceptResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, invalid("code is required")
	}

	var res AcceptResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		invRepo := s.repomanager.Invitations(tx)
		groupRepo := s.repomanager.Groups(tx)

		inv, err := invRepo.GetByCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errInvitationNotFound
			}
			return fmt.Errorf("error loading invitation: %w", err)
		}

		now := timeNow()
		if inv.Accepted() {
			return errInvitationAccepted
		}
		if inv.Expired(now) {
			return errInvitationExpired
		}

		if _, err := groupRepo.AddMemberIfAbsent(ctx, userID, inv.GroupID, models.RoleMember); err != nil {
			return fmt.Errorf("error adding member: %w", err)
		}
		role, err := groupRepo.GetRole(ctx, userID, inv.GroupID)
		if err != nil {
			return fmt.Errorf("error loading role: %w", err)
		}
		if err := invRepo.MarkAccepted(ctx, inv.ID, userID, now); err != nil {
			return err
		}

		res = AcceptResult{GroupID: inv.GroupID, Role: role}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteExpiredInvitations purges unaccepted invitations past their expiry.
func (s *InvitationService) DeleteExpiredInvitations(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Invitations(s.db).DeleteExpired(ctx, timeNow())
	if err != nil {
		return 0, fmt.Errorf("error deleting expired invitations: %w", err)
	}
	return n, nil
}
