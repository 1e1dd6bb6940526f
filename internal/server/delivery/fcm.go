package delivery

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/dmitrijs2005/groupledger/internal/logging"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"google.golang.org/api/option"
)

// TokenStore lists and prunes device registrations.
type TokenStore interface {
	ListByUser(ctx context.Context, userID int64) ([]models.PushSubscription, error)
	DeleteToken(ctx context.Context, token string) error
}

type fcmSender interface {
	Send(ctx context.Context, m *messaging.Message) (string, error)
}

var (
	newFirebaseApp = firebase.NewApp

	newMessagingClient = func(ctx context.Context, app *firebase.App) (fcmSender, error) {
		return app.Messaging(ctx)
	}

	isUnregistered = messaging.IsUnregistered
)

// FCMPusher delivers push notifications through Firebase Cloud Messaging.
type FCMPusher struct {
	client fcmSender
	tokens TokenStore
	logger logging.Logger
}

// credentialsOption accepts either a path to a service account file or the
// JSON document itself.
func credentialsOption(credentials string) option.ClientOption {
	if strings.HasPrefix(strings.TrimSpace(credentials), "{") {
		return option.WithCredentialsJSON([]byte(credentials))
	}
	return option.WithCredentialsFile(credentials)
}

func NewFCMPusher(ctx context.Context, credentials string, tokens TokenStore, l logging.Logger) (*FCMPusher, error) {
	app, err := newFirebaseApp(ctx, nil, credentialsOption(credentials))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := newMessagingClient(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &FCMPusher{
		client: client,
		tokens: tokens,
		logger: l.With("module", "delivery", "channel", "fcm"),
	}, nil
}

func (p *FCMPusher) Push(ctx context.Context, to Recipient, msg Message) PushResult {
	var res PushResult

	subs, err := p.tokens.ListByUser(ctx, to.UserID)
	if err != nil {
		p.logger.Warn(ctx, "listing push subscriptions failed", "user_id", to.UserID, "error", err)
		return res
	}

	for _, s := range subs {
		_, err := p.client.Send(ctx, &messaging.Message{
			Token:        s.Token,
			Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
			Data:         msg.Data,
		})
		if err == nil {
			res.Sent++
			continue
		}

		res.Failed++
		if isUnregistered(err) {
			if derr := p.tokens.DeleteToken(ctx, s.Token); derr != nil {
				p.logger.Warn(ctx, "removing stale push token failed", "user_id", to.UserID, "error", derr)
			} else {
				p.logger.Info(ctx, "removed stale push token", "user_id", to.UserID, "subscription_id", s.ID)
			}
			continue
		}
		p.logger.Warn(ctx, "push send failed", "user_id", to.UserID, "subscription_id", s.ID, "error", err)
	}

	return res
}
