package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
)

// PreferenceService is the Preference Store.
type PreferenceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewPreferenceService(db *sql.DB, m repomanager.RepositoryManager) *PreferenceService {
	return &PreferenceService{db: db, repomanager: m}
}

func (s *PreferenceService) GetPreferences(ctx context.Context, userID int64) (*models.UserPreference, error) {
	p, err := s.repomanager.Preferences(s.db).Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading preferences: %w", err)
	}
	return p, nil
}

func (s *PreferenceService) UpdatePreferences(ctx context.Context, userID int64, receiveDuesReminders bool) (*models.UserPreference, error) {
	p, err := s.repomanager.Preferences(s.db).Upsert(ctx, userID, receiveDuesReminders)
	if err != nil {
		return nil, fmt.Errorf("error updating preferences: %w", err)
	}
	return p, nil
}
