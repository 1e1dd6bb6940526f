package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/delivery"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	mu     sync.Mutex
	sent   []delivery.Message
	failOn map[int64]bool
}

func (c *recordingChannel) Send(_ context.Context, to delivery.Recipient, msg delivery.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn[to.UserID] {
		return errors.New("smtp down")
	}
	c.sent = append(c.sent, msg)
	return nil
}

type countingPusher struct {
	calls  int
	result delivery.PushResult
}

func (p *countingPusher) Push(context.Context, delivery.Recipient, delivery.Message) delivery.PushResult {
	p.calls++
	return p.result
}

type reminderFixture struct {
	s      *ReminderService
	rm     *fakeRepoManager
	ch     *recordingChannel
	push   *countingPusher
	admin  int64
	paid   int64
	muted  int64
	unpaid int64
	group  int64
}

func newReminderFixture(t *testing.T) *reminderFixture {
	t.Helper()
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	f := &reminderFixture{
		rm:   rm,
		ch:   &recordingChannel{failOn: map[int64]bool{}},
		push: &countingPusher{result: delivery.PushResult{Sent: 1, Failed: 1}},
	}
	f.admin = rm.s.addUser("Ann", "ann@example.com")
	f.paid = rm.s.addUser("Ben", "ben@example.com")
	f.muted = rm.s.addUser("Cat", "cat@example.com")
	f.unpaid = rm.s.addUser("Dan", "dan@example.com")
	f.group = rm.s.addGroup("Club", map[int64]models.Role{
		f.admin:  models.RoleAdmin,
		f.paid:   models.RoleMember,
		f.muted:  models.RoleMember,
		f.unpaid: models.RoleMember,
	})
	ctx := context.Background()
	_, err := rm.Dues(nil).Upsert(ctx, f.group, f.admin, true)
	require.NoError(t, err)
	_, err = rm.Dues(nil).Upsert(ctx, f.group, f.paid, true)
	require.NoError(t, err)
	_, err = rm.Preferences(nil).Upsert(ctx, f.muted, false)
	require.NoError(t, err)

	f.s = NewReminderService(db, rm, f.ch, f.push, nil)
	return f
}

func resultFor(t *testing.T, r *models.ReminderReport, userID int64) models.ReminderResult {
	t.Helper()
	for _, res := range r.Results {
		if res.UserID == userID {
			return res
		}
	}
	t.Fatalf("no result for user %d", userID)
	return models.ReminderResult{}
}

func TestSendDuesReminders_Policy(t *testing.T) {
	f := newReminderFixture(t)

	report, err := f.s.SendDuesReminders(context.Background(), f.group, false)
	require.NoError(t, err)
	assert.Equal(t, f.group, report.GroupID)
	assert.Equal(t, 4, report.TotalUsers)

	assert.Equal(t, models.ReasonNoUnpaidDues, resultFor(t, report, f.paid).Reason)
	assert.Equal(t, models.ReasonRemindersDisabled, resultFor(t, report, f.muted).Reason)

	sent := resultFor(t, report, f.unpaid)
	assert.True(t, sent.Sent)
	assert.Empty(t, sent.Reason)
	assert.Equal(t, 1, sent.PushSent)
	assert.Equal(t, 1, sent.PushFail)

	require.Len(t, f.rm.s.logs, 1)
	assert.Equal(t, f.unpaid, f.rm.s.logs[0].UserID)
	assert.Equal(t, models.NotificationTypeDuesReminder, f.rm.s.logs[0].Type)
	assert.Equal(t, "Club: 1 unpaid dues notice sent", f.rm.s.logs[0].Message)
	assert.Equal(t, 1, f.push.calls)
}

func TestSendDuesReminders_DeliveryFailureIsPerUser(t *testing.T) {
	f := newReminderFixture(t)
	second := f.rm.s.addUser("Eve", "eve@example.com")
	f.rm.s.members[membershipKey{second, f.group}] = &models.Membership{UserID: second, GroupID: f.group, Role: models.RoleMember}
	f.ch.failOn[f.unpaid] = true

	report, err := f.s.SendDuesReminders(context.Background(), f.group, false)
	require.NoError(t, err)

	failed := resultFor(t, report, f.unpaid)
	assert.False(t, failed.Sent)
	assert.Equal(t, models.ReasonDeliveryFailed, failed.Reason)
	assert.True(t, resultFor(t, report, second).Sent, "one failure does not abort the batch")

	require.Len(t, f.rm.s.logs, 1, "only successful deliveries are logged")
	assert.Equal(t, second, f.rm.s.logs[0].UserID)
	assert.Equal(t, 1, f.push.calls, "push only follows a delivered message")
}

func TestTestDuesReminders_AdminOnlyAndTagged(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()

	_, err := f.s.TestDuesRemindersForGroup(ctx, f.paid, f.group)
	assert.ErrorIs(t, err, common.ErrorForbidden)
	assert.Empty(t, f.rm.s.logs)

	_, err = f.s.TestDuesRemindersForGroup(ctx, f.admin, f.group)
	require.NoError(t, err)
	require.Len(t, f.rm.s.logs, 1)
	assert.Equal(t, "Club: 1 unpaid dues notice sent (test)", f.rm.s.logs[0].Message)
}

func TestRunDuesReminderSweep_ContinuesPastFailingGroup(t *testing.T) {
	f := newReminderFixture(t)
	f.rm.s.addGroup("Empty", nil)

	sum, err := f.s.RunDuesReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Groups)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 3, sum.Skipped)
	assert.Zero(t, sum.Failed)

	f.rm.s.fail["Notifications.UnpaidCandidates"] = errBoom{}
	sum, err = f.s.RunDuesReminderSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Groups)
	assert.Equal(t, 4, f.rm.s.calls["Notifications.UnpaidCandidates"], "every group was attempted")
}

func TestRunDuesReminderSweep_ListFailure(t *testing.T) {
	f := newReminderFixture(t)
	f.rm.s.fail["Groups.ListIDs"] = errBoom{}

	_, err := f.s.RunDuesReminderSweep(context.Background())
	assert.Error(t, err)
}

func TestRunDuesReminderSweep_StopsOnCancel(t *testing.T) {
	f := newReminderFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.s.RunDuesReminderSweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.ch.sent)
}

func TestListNotificationLogs_Visibility(t *testing.T) {
	f := newReminderFixture(t)
	ctx := context.Background()
	_, err := f.rm.Preferences(nil).Upsert(ctx, f.muted, true)
	require.NoError(t, err)
	_, err = f.s.SendDuesReminders(ctx, f.group, false)
	require.NoError(t, err)
	require.Len(t, f.rm.s.logs, 2)

	gid := f.group
	all, err := f.s.ListNotificationLogs(ctx, f.admin, &gid, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, f.unpaid, all[0].UserID, "newest first")

	filtered, err := f.s.ListNotificationLogs(ctx, f.admin, &gid, &f.muted)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, f.muted, filtered[0].UserID)

	own, err := f.s.ListNotificationLogs(ctx, f.unpaid, &gid, &f.muted)
	require.NoError(t, err, "a member's user filter is ignored")
	require.Len(t, own, 1)
	assert.Equal(t, f.unpaid, own[0].UserID)

	mine, err := f.s.ListNotificationLogs(ctx, f.muted, nil, nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = f.s.ListNotificationLogs(ctx, 999, &gid, nil)
	assert.ErrorIs(t, err, common.ErrorForbidden)
}
