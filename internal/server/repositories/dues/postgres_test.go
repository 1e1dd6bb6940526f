package dues

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

const upsertPattern = `(?s)INSERT\s+INTO\s+dues.*ON\s+CONFLICT\s+ON\s+CONSTRAINT\s+dues_group_user_key\s+DO\s+UPDATE.*paid_at\s*=\s*CASE\s+WHEN\s+EXCLUDED\.is_paid\s+THEN\s+NOW\(\)\s+ELSE\s+NULL\s+END`

var duesCols = []string{"group_id", "user_id", "is_paid", "paid_at", "updated_at"}

func TestUpsert_PaidThenUnpaid(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(upsertPattern).WithArgs(int64(1), int64(7), true).
		WillReturnRows(sqlmock.NewRows(duesCols).AddRow(int64(1), int64(7), true, now, now))
	mock.ExpectQuery(upsertPattern).WithArgs(int64(1), int64(7), false).
		WillReturnRows(sqlmock.NewRows(duesCols).AddRow(int64(1), int64(7), false, nil, now))

	d, err := repo.Upsert(context.Background(), 1, 7, true)
	require.NoError(t, err)
	assert.True(t, d.IsPaid)
	require.NotNil(t, d.PaidAt)

	d, err = repo.Upsert(context.Background(), 1, 7, false)
	require.NoError(t, err)
	assert.False(t, d.IsPaid)
	assert.Nil(t, d.PaidAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(upsertPattern).WillReturnError(errors.New("fk violation"))

	_, err := repo.Upsert(context.Background(), 1, 7, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestListByGroup(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	paid := time.Now()
	mock.ExpectQuery(`(?s)LEFT\s+JOIN\s+dues\s+d.*WHERE\s+ug\.group_id\s*=\s*\$1\s+ORDER\s+BY\s+u\.name\s+ASC`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "is_paid", "paid_at"}).
			AddRow(int64(7), "Ann", "ann@example.com", true, paid).
			AddRow(int64(8), "Bob", "bob@example.com", false, nil))

	got, err := repo.ListByGroup(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsPaid)
	require.NotNil(t, got[0].PaidAt)
	assert.False(t, got[1].IsPaid)
	assert.Nil(t, got[1].PaidAt)
}
