// Package delivery sends reminder messages to users. The message channel is
// authoritative for the outcome of a delivery; push is best effort.
package delivery

import (
	"context"

	"github.com/dmitrijs2005/groupledger/internal/logging"
)

type Recipient struct {
	UserID int64
	Name   string
	Email  string
}

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Channel delivers one message to one recipient.
type Channel interface {
	Send(ctx context.Context, to Recipient, msg Message) error
}

// PushResult counts per-device outcomes of a push to one user.
type PushResult struct {
	Sent   int
	Failed int
}

// Pusher fans a message out to all devices of a recipient.
type Pusher interface {
	Push(ctx context.Context, to Recipient, msg Message) PushResult
}

// LogChannel delivers by writing a structured log record.
type LogChannel struct {
	logger logging.Logger
}

func NewLogChannel(l logging.Logger) *LogChannel {
	return &LogChannel{logger: l.With("module", "delivery", "channel", "log")}
}

func (c *LogChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	c.logger.Info(ctx, "notification delivered",
		"user_id", to.UserID,
		"email", to.Email,
		"title", msg.Title,
		"body", msg.Body,
	)
	return nil
}

// NopPusher is used when push delivery is not configured.
type NopPusher struct{}

func (NopPusher) Push(context.Context, Recipient, Message) PushResult { return PushResult{} }
