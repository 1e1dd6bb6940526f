package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/access"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
)

type DuesService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       *access.Guard
}

func NewDuesService(db *sql.DB, m repomanager.RepositoryManager) *DuesService {
	return &DuesService{db: db, repomanager: m, guard: access.NewGuard(m.Groups(db))}
}

// SetDuesStatus marks userID's dues in groupID as paid or unpaid.
func (s *DuesService) SetDuesStatus(ctx context.Context, requesterID, groupID, userID int64, isPaid bool) (*models.Dues, error) {
	if _, err := s.guard.Require(ctx, requesterID, groupID, models.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Groups(s.db).GetRole(ctx, userID, groupID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errTargetNotMember
		}
		return nil, fmt.Errorf("error loading role: %w", err)
	}
	d, err := s.repomanager.Dues(s.db).Upsert(ctx, groupID, userID, isPaid)
	if err != nil {
		return nil, fmt.Errorf("error updating dues: %w", err)
	}
	return d, nil
}

func (s *DuesService) ListDuesByGroup(ctx context.Context, requesterID, groupID int64) ([]models.MemberDues, error) {
	if _, err := s.guard.Require(ctx, requesterID, groupID, models.RoleMember); err != nil {
		return nil, err
	}
	list, err := s.repomanager.Dues(s.db).ListByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing dues: %w", err)
	}
	return list, nil
}
