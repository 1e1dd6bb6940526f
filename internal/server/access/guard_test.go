package access

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoles struct {
	roles map[[2]int64]models.Role
	err   error
}

func (f *fakeRoles) GetRole(_ context.Context, userID, groupID int64) (models.Role, error) {
	if f.err != nil {
		return models.RoleNone, f.err
	}
	r, ok := f.roles[[2]int64{userID, groupID}]
	if !ok {
		return models.RoleNone, common.ErrorNotFound
	}
	return r, nil
}

func newGuard() *Guard {
	return NewGuard(&fakeRoles{roles: map[[2]int64]models.Role{
		{1, 10}: models.RoleAdmin,
		{2, 10}: models.RoleMember,
	}})
}

func TestRoleOf(t *testing.T) {
	g := newGuard()
	ctx := context.Background()

	r, err := g.RoleOf(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, r)

	r, err = g.RoleOf(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, models.RoleNone, r)
}

func TestRoleOf_PropagatesStorageErrors(t *testing.T) {
	boom := errors.New("boom")
	g := NewGuard(&fakeRoles{err: boom})

	_, err := g.RoleOf(context.Background(), 1, 10)
	assert.ErrorIs(t, err, boom)
}

func TestRequire(t *testing.T) {
	g := newGuard()
	ctx := context.Background()

	tests := []struct {
		name    string
		user    int64
		group   int64
		minimum models.Role
		wantErr bool
	}{
		{"admin as admin", 1, 10, models.RoleAdmin, false},
		{"admin as member", 1, 10, models.RoleMember, false},
		{"member as member", 2, 10, models.RoleMember, false},
		{"member as admin", 2, 10, models.RoleAdmin, true},
		{"stranger as member", 3, 10, models.RoleMember, true},
		{"missing group", 1, 99, models.RoleMember, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Require(ctx, tt.user, tt.group, tt.minimum)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrorForbidden)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequire_SameMessageForMissingGroupAndStranger(t *testing.T) {
	g := newGuard()
	ctx := context.Background()

	_, errStranger := g.Require(ctx, 3, 10, models.RoleMember)
	_, errMissing := g.Require(ctx, 1, 99, models.RoleMember)
	assert.Equal(t, common.Message(errStranger), common.Message(errMissing))
}

func TestAllows(t *testing.T) {
	assert.True(t, Allows(models.RoleAdmin, models.RoleAdmin))
	assert.True(t, Allows(models.RoleAdmin, models.RoleMember))
	assert.True(t, Allows(models.RoleMember, models.RoleMember))
	assert.False(t, Allows(models.RoleMember, models.RoleAdmin))
	assert.False(t, Allows(models.RoleNone, models.RoleMember))
	assert.False(t, Allows(models.RoleAdmin, models.RoleNone))
}

func TestCanModifyTransaction(t *testing.T) {
	assert.True(t, CanModifyTransaction(models.RoleAdmin, 1, 2))
	assert.True(t, CanModifyTransaction(models.RoleMember, 2, 2))
	assert.False(t, CanModifyTransaction(models.RoleMember, 3, 2))
	assert.False(t, CanModifyTransaction(models.RoleNone, 2, 2))
}
