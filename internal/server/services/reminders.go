package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/groupledger/internal/logging"
	"github.com/dmitrijs2005/groupledger/internal/server/access"
	"github.com/dmitrijs2005/groupledger/internal/server/delivery"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
)

// NotificationLogLimit caps every log listing.
const NotificationLogLimit = 100

// ReminderService applies the dues reminder policy and owns the
// notification log.
type ReminderService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	guard       *access.Guard
	channel     delivery.Channel
	pusher      delivery.Pusher
	log         logging.Logger
}

func NewReminderService(db *sql.DB, m repomanager.RepositoryManager, ch delivery.Channel, p delivery.Pusher, l logging.Logger) *ReminderService {
	if p == nil {
		p = delivery.NopPusher{}
	}
	if l == nil {
		l = logging.Nop{}
	}
	return &ReminderService{
		db:          db,
		repomanager: m,
		guard:       access.NewGuard(m.Groups(db)),
		channel:     ch,
		pusher:      p,
		log:         l.With("module", "reminders"),
	}
}

func reminderText(groupName string, unpaid int, test bool) string {
	msg := fmt.Sprintf("%s: %d unpaid dues notice sent", groupName, unpaid)
	if test {
		msg += " (test)"
	}
	return msg
}

// SendDuesReminders evaluates every member of groupID. Failures for one
// member are recorded in its result and never stop the run.
func (s *ReminderService) SendDuesReminders(ctx context.Context, groupID int64, test bool) (*models.ReminderReport, error) {
	candidates, err := s.repomanager.Notifications(s.db).UnpaidCandidates(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("error loading reminder candidates: %w", err)
	}

	report := &models.ReminderReport{
		GroupID:    groupID,
		TotalUsers: len(candidates),
		Results:    make([]models.ReminderResult, 0, len(candidates)),
	}
	for _, c := range candidates {
		report.Results = append(report.Results, s.remind(ctx, c, test))
	}
	return report, nil
}

func (s *ReminderService) remind(ctx context.Context, c models.ReminderCandidate, test bool) models.ReminderResult {
	res := models.ReminderResult{UserID: c.UserID, UserName: c.UserName, Email: c.Email}

	switch {
	case !c.ReceiveDuesReminders:
		res.Reason = models.ReasonRemindersDisabled
		return res
	case c.UnpaidCount == 0:
		res.Reason = models.ReasonNoUnpaidDues
		return res
	}

	text := reminderText(c.GroupName, c.UnpaidCount, test)
	to := delivery.Recipient{UserID: c.UserID, Name: c.UserName, Email: c.Email}
	msg := delivery.Message{
		Title: "Dues reminder",
		Body:  text,
		Data: map[string]string{
			"type":     models.NotificationTypeDuesReminder,
			"group_id": strconv.FormatInt(c.GroupID, 10),
		},
	}

	if err := s.channel.Send(ctx, to, msg); err != nil {
		s.log.Warn(ctx, "reminder delivery failed", "group_id", c.GroupID, "user_id", c.UserID, "error", err)
		res.Reason = models.ReasonDeliveryFailed
		return res
	}
	res.Sent = true

	pushed := s.pusher.Push(ctx, to, msg)
	res.PushSent, res.PushFail = pushed.Sent, pushed.Failed
	if pushed.Failed > 0 {
		s.log.Warn(ctx, "reminder push partially failed", "user_id", c.UserID, "sent", pushed.Sent, "failed", pushed.Failed)
	}

	groupID := c.GroupID
	entry := &models.NotificationLog{
		UserID:  c.UserID,
		GroupID: &groupID,
		Type:    models.NotificationTypeDuesReminder,
		Message: text,
	}
	if err := s.repomanager.Notifications(s.db).Append(ctx, entry); err != nil {
		s.log.Error(ctx, "error writing notification log", "group_id", c.GroupID, "user_id", c.UserID, "error", err)
	}
	return res
}

// TestDuesRemindersForGroup lets an admin run the policy on demand.
func (s *ReminderService) TestDuesRemindersForGroup(ctx context.Context, requesterID, groupID int64) (*models.ReminderReport, error) {
	if _, err := s.guard.Require(ctx, requesterID, groupID, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.SendDuesReminders(ctx, groupID, true)
}

// RunDuesReminderSweep runs the policy over every group. A failing group is
// logged and skipped.
func (s *ReminderService) RunDuesReminderSweep(ctx context.Context) (models.SweepSummary, error) {
	var sum models.SweepSummary

	ids, err := s.repomanager.Groups(s.db).ListIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("error listing groups: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		report, err := s.SendDuesReminders(ctx, id, false)
		if err != nil {
			s.log.Error(ctx, "reminder sweep failed for group", "group_id", id, "error", err)
			continue
		}
		sum.Groups++
		for _, r := range report.Results {
			switch {
			case r.Sent:
				sum.Sent++
			case r.Reason == models.ReasonDeliveryFailed:
				sum.Failed++
			default:
				sum.Skipped++
			}
		}
	}

	s.log.Info(ctx, "reminder sweep finished", "groups", sum.Groups, "sent", sum.Sent, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// ListNotificationLogs returns the newest logs visible to the requester.
// Without a group the requester sees their own; within a group a member
// sees their own and an admin sees everyone's, optionally filtered by user.
func (s *ReminderService) ListNotificationLogs(ctx context.Context, requesterID int64, groupID, userID *int64) ([]models.NotificationLog, error) {
	repo := s.repomanager.Notifications(s.db)

	if groupID == nil {
		list, err := repo.ListByUser(ctx, requesterID, NotificationLogLimit)
		if err != nil {
			return nil, fmt.Errorf("error listing notification logs: %w", err)
		}
		return list, nil
	}

	role, err := s.guard.Require(ctx, requesterID, *groupID, models.RoleMember)
	if err != nil {
		return nil, err
	}
	filter := &requesterID
	if role == models.RoleAdmin {
		filter = userID
	}
	list, err := repo.ListByGroup(ctx, *groupID, filter, NotificationLogLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing notification logs: %w", err)
	}
	return list, nil
}
