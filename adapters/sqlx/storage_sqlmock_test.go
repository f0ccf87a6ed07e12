package sqlx_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "progresskit/adapters/sqlx"
	"progresskit/core"
)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_Award_FirstTransaction(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	tx := core.XPTransaction{ID: "tx-1", UserID: "u1", Amount: 150, Source: "complete_lesson", Timestamp: ts}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM xp_transactions`).
		WithArgs(tx.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`SELECT .+ FROM user_totals WHERE user_id`).
		WithArgs(tx.UserID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO xp_transactions`).
		WithArgs(tx.ID, tx.UserID, int64(150), tx.Source, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO user_totals`).
		WithArgs(tx.UserID, int64(150), int64(150), int64(150), "2026-W35", "2026-08", int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	total, prior, applied, err := store.Award(ctx, tx)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, int64(0), prior.CumulativeXP)
	require.Equal(t, int64(150), total.CumulativeXP)
	require.Equal(t, int64(2), total.CurrentLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Award_Duplicate(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	tx := core.XPTransaction{ID: "tx-1", UserID: "u1", Amount: 150, Source: "complete_lesson", Timestamp: time.Now().UTC()}

	totalCols := []string{"user_id", "cumulative_xp", "weekly_xp", "monthly_xp", "week_key", "month_key", "current_level", "last_activity"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM xp_transactions`).
		WithArgs(tx.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT .+ FROM user_totals WHERE user_id`).
		WithArgs(tx.UserID).
		WillReturnRows(sqlmock.NewRows(totalCols).
			AddRow("u1", 150, 150, 150, "2026-W35", "2026-08", 2, time.Now().UTC()))
	mock.ExpectCommit()

	total, _, applied, err := store.Award(ctx, tx)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, int64(150), total.CumulativeXP)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SetCounter_Insert(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT value FROM user_counters`).
		WithArgs(user, core.CounterName("courses_completed")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO user_counters`).
		WithArgs(user, core.CounterName("courses_completed"), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT counter, value FROM user_counters`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"counter", "value"}).AddRow("courses_completed", 1))
	mock.ExpectQuery(`SELECT achievement_id, unlocked_at FROM user_achievements`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"achievement_id", "unlocked_at"}))

	progress, err := store.SetCounter(ctx, user, "courses_completed", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), progress.Counters["courses_completed"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SetCounter_DecreaseRejected(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT value FROM user_counters`).
		WithArgs(user, core.CounterName("courses_completed")).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(5))
	mock.ExpectRollback()

	_, err := store.SetCounter(ctx, user, "courses_completed", 4)
	require.ErrorIs(t, err, core.ErrInvalidInput)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_MarkUnlocked(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")
	at := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM user_achievements`).
		WithArgs(user, core.AchievementID("first_course")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO user_achievements`).
		WithArgs(user, core.AchievementID("first_course"), at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	newly, err := store.MarkUnlocked(ctx, user, "first_course", at)
	require.NoError(t, err)
	require.True(t, newly)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_AdvanceStreak_FirstDay(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")
	day := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM user_streaks WHERE user_id`).
		WithArgs(user).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO user_streaks`).
		WithArgs(user, int64(1), int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	state, bonus, extended, err := store.AdvanceStreak(ctx, user, day)
	require.NoError(t, err)
	require.True(t, extended)
	require.Equal(t, int64(1), state.CurrentStreakDays)
	require.Equal(t, 1.0, bonus.Multiplier)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_HasTransaction(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM xp_transactions`).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	seen, err := store.HasTransaction(ctx, "u1", "tx-1")
	require.NoError(t, err)
	require.True(t, seen)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM xp_transactions`).
		WithArgs("tx-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	seen, err = store.HasTransaction(ctx, "u1", "tx-2")
	require.NoError(t, err)
	require.False(t, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}
