package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
)

const maxPushTokenLength = 4096

var pushPlatforms = map[string]bool{"web": true, "android": true, "ios": true}

type PushService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewPushService(db *sql.DB, m repomanager.RepositoryManager) *PushService {
	return &PushService{db: db, repomanager: m}
}

func validatePushToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", invalid("token is required")
	}
	if len(token) > maxPushTokenLength {
		return "", invalid("token is too long")
	}
	return token, nil
}

// Subscribe registers a device token. Re-subscribing is a no-op apart from
// moving the token to userID.
func (s *PushService) Subscribe(ctx context.Context, userID int64, token, platform string) (*models.PushSubscription, error) {
	token, err := validatePushToken(token)
	if err != nil {
		return nil, err
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "web"
	}
	if !pushPlatforms[platform] {
		return nil, invalid("platform must be web, android or ios")
	}
	sub, err := s.repomanager.PushSubscriptions(s.db).Upsert(ctx, userID, token, platform)
	if err != nil {
		return nil, fmt.Errorf("error saving push subscription: %w", err)
	}
	return sub, nil
}

// Unsubscribe reports whether a subscription was removed.
func (s *PushService) Unsubscribe(ctx context.Context, userID int64, token string) (bool, error) {
	token, err := validatePushToken(token)
	if err != nil {
		return false, err
	}
	removed, err := s.repomanager.PushSubscriptions(s.db).Delete(ctx, userID, token)
	if err != nil {
		return false, fmt.Errorf("error deleting push subscription: %w", err)
	}
	return removed, nil
}
