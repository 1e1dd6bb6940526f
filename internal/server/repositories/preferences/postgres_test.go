package preferences

import (
	"context"
	"database/sql"
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

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)SELECT\s+user_id,\s*receive_dues_reminders,\s*updated_at\s+FROM\s+user_preferences\s+WHERE\s+user_id\s*=\s*\$1`
	mock.ExpectQuery(q).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "receive_dues_reminders", "updated_at"}).AddRow(int64(7), false, time.Now()))
	mock.ExpectQuery(q).WithArgs(int64(8)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs(int64(9)).WillReturnError(errors.New("down"))

	p, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, p.ReceiveDuesReminders)

	p, err = repo.Get(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), p.UserID)
	assert.True(t, p.ReceiveDuesReminders, "missing row defaults to true")

	_, err = repo.Get(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestUpsert(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+user_preferences.*ON\s+CONFLICT\s+\(user_id\)\s+DO\s+UPDATE`).
		WithArgs(int64(7), false).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "receive_dues_reminders", "updated_at"}).AddRow(int64(7), false, time.Now()))

	p, err := repo.Upsert(context.Background(), 7, false)
	require.NoError(t, err)
	assert.False(t, p.ReceiveDuesReminders)
	require.NoError(t, mock.ExpectationsWereMet())
}
