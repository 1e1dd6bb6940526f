package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/access"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/reports"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
)

// RenderedReport is a finished download.
type RenderedReport struct {
	Data        []byte
	ContentType string
	Filename    string
}

type ReportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       *access.Guard
}

func NewReportService(db *sql.DB, m repomanager.RepositoryManager) *ReportService {
	return &ReportService{db: db, repomanager: m, guard: access.NewGuard(m.Groups(db))}
}

// RenderReport renders the group's ledger for the inclusive range rng.
func (s *ReportService) RenderReport(ctx context.Context, requesterID, groupID int64, rng models.DateRange, format string) (*RenderedReport, error) {
	renderer, err := reports.ForFormat(format)
	if err != nil {
		return nil, err
	}
	if err := validateRange(rng); err != nil {
		return nil, err
	}
	if _, err := s.guard.Require(ctx, requesterID, groupID, models.RoleMember); err != nil {
		return nil, err
	}

	g, err := s.repomanager.Groups(s.db).GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorNotFound, "group not found")
		}
		return nil, fmt.Errorf("error loading group: %w", err)
	}

	repo := s.repomanager.Transactions(s.db)
	items, err := repo.ListRange(ctx, groupID, rng)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	stats, err := repo.Stats(ctx, groupID, rng)
	if err != nil {
		return nil, fmt.Errorf("error computing stats: %w", err)
	}

	out, err := renderer.Render(ctx, reports.Data{Group: *g, Range: rng, Stats: stats, Transactions: items})
	if err != nil {
		return nil, fmt.Errorf("%w: rendering report: %v", common.ErrorInternal, err)
	}

	return &RenderedReport{
		Data:        out,
		ContentType: renderer.ContentType(),
		Filename:    fmt.Sprintf("summary-%d.%s", groupID, renderer.Extension()),
	}, nil
}
