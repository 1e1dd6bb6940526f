package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDuesStatus_IdempotentAndClearsPaidAt(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	s := NewDuesService(db, rm)
	a := rm.s.addUser("Ann", "ann@example.com")
	b := rm.s.addUser("Ben", "ben@example.com")
	gid := rm.s.addGroup("Club", map[int64]models.Role{a: models.RoleAdmin, b: models.RoleMember})
	ctx := context.Background()

	d, err := s.SetDuesStatus(ctx, a, gid, b, true)
	require.NoError(t, err)
	assert.True(t, d.IsPaid)
	require.NotNil(t, d.PaidAt)

	d, err = s.SetDuesStatus(ctx, a, gid, b, true)
	require.NoError(t, err)
	assert.True(t, d.IsPaid)

	d, err = s.SetDuesStatus(ctx, a, gid, b, false)
	require.NoError(t, err)
	assert.False(t, d.IsPaid)
	assert.Nil(t, d.PaidAt)
	assert.Len(t, rm.s.dues, 1)
}

func TestSetDuesStatus_Guards(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	s := NewDuesService(db, rm)
	a := rm.s.addUser("Ann", "ann@example.com")
	b := rm.s.addUser("Ben", "ben@example.com")
	out := rm.s.addUser("Out", "out@example.com")
	gid := rm.s.addGroup("Club", map[int64]models.Role{a: models.RoleAdmin, b: models.RoleMember})
	ctx := context.Background()

	_, err := s.SetDuesStatus(ctx, b, gid, b, true)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = s.SetDuesStatus(ctx, a, gid, out, true)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, rm.s.dues)
}

func TestListDuesByGroup_MissingRowsAreUnpaid(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	s := NewDuesService(db, rm)
	a := rm.s.addUser("Ann", "ann@example.com")
	b := rm.s.addUser("Ben", "ben@example.com")
	gid := rm.s.addGroup("Club", map[int64]models.Role{a: models.RoleAdmin, b: models.RoleMember})
	ctx := context.Background()

	_, err := s.SetDuesStatus(ctx, a, gid, a, true)
	require.NoError(t, err)

	list, err := s.ListDuesByGroup(ctx, b, gid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ann", list[0].Name)
	assert.True(t, list[0].IsPaid)
	assert.False(t, list[1].IsPaid)

	_, err = s.ListDuesByGroup(ctx, 999, gid)
	assert.ErrorIs(t, err, common.ErrorForbidden)
}

func TestPreferences_DefaultAndUpdate(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	s := NewPreferenceService(db, rm)
	ctx := context.Background()

	p, err := s.GetPreferences(ctx, 7)
	require.NoError(t, err)
	assert.True(t, p.ReceiveDuesReminders)

	p, err = s.UpdatePreferences(ctx, 7, false)
	require.NoError(t, err)
	assert.False(t, p.ReceiveDuesReminders)

	p, err = s.GetPreferences(ctx, 7)
	require.NoError(t, err)
	assert.False(t, p.ReceiveDuesReminders)

	rm.s.fail["Preferences.Get"] = errBoom{}
	_, err = s.GetPreferences(ctx, 7)
	assert.Error(t, err)
}

func TestPush_SubscribeUnsubscribe(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	s := NewPushService(db, rm)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, 1, " tok-1 ", "")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sub.Token)
	assert.Equal(t, "web", sub.Platform)

	sub2, err := s.Subscribe(ctx, 1, "tok-1", "Android")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, sub2.ID, "re-subscribing keeps the row")
	assert.Equal(t, "android", sub2.Platform)

	_, err = s.Subscribe(ctx, 1, "", "web")
	assert.ErrorIs(t, err, common.ErrorValidation)
	_, err = s.Subscribe(ctx, 1, "tok", "pager")
	assert.ErrorIs(t, err, common.ErrorValidation)

	removed, err := s.Unsubscribe(ctx, 2, "tok-1")
	require.NoError(t, err)
	assert.False(t, removed, "another user's token is left alone")

	removed, err = s.Unsubscribe(ctx, 1, "tok-1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, rm.s.push)
}
