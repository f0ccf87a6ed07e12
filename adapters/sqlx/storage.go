// Package sqlx provides a SQL-backed Storage implementation supporting
// PostgreSQL and MySQL through jmoiron/sqlx.
package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// drivers registered for New
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"progresskit/core"
	"progresskit/engine"
)

// Driver identifies the SQL dialect in use.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver Driver `json:"driver"`
	DSN    string `json:"dsn"`
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	switch driver {
	case DriverMySQL:
		return Config{Driver: DriverMySQL, DSN: "root:@tcp(localhost:3306)/progresskit?parseTime=true"}
	default:
		return Config{Driver: DriverPostgres, DSN: "postgres://localhost:5432/progresskit?sslmode=disable"}
	}
}

// Open connects using a Config.
func Open(cfg Config) (*Store, error) {
	return New(cfg.Driver, cfg.DSN)
}

// Store implements engine.Storage on top of a SQL database. Per-user
// linearization comes from row locks: every read-modify-write runs inside a
// transaction that selects the user's row FOR UPDATE.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a database connection and verifies it with a ping.
func New(driver Driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Store{db: db, driver: driver}, nil
}

// NewWithDB wraps an existing sqlx.DB (useful for testing with sqlmock).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_totals (
			user_id VARCHAR(128) PRIMARY KEY,
			cumulative_xp BIGINT NOT NULL DEFAULT 0,
			weekly_xp BIGINT NOT NULL DEFAULT 0,
			monthly_xp BIGINT NOT NULL DEFAULT 0,
			week_key VARCHAR(16) NOT NULL DEFAULT '',
			month_key VARCHAR(16) NOT NULL DEFAULT '',
			current_level BIGINT NOT NULL DEFAULT 1,
			last_activity TIMESTAMP NULL
		)`,
		`CREATE TABLE IF NOT EXISTS xp_transactions (
			tx_id VARCHAR(256) PRIMARY KEY,
			user_id VARCHAR(128) NOT NULL,
			amount BIGINT NOT NULL,
			source VARCHAR(64) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_counters (
			user_id VARCHAR(128) NOT NULL,
			counter VARCHAR(64) NOT NULL,
			value BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, counter)
		)`,
		`CREATE TABLE IF NOT EXISTS user_achievements (
			user_id VARCHAR(128) NOT NULL,
			achievement_id VARCHAR(64) NOT NULL,
			unlocked_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, achievement_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_streaks (
			user_id VARCHAR(128) PRIMARY KEY,
			current_days BIGINT NOT NULL DEFAULT 0,
			longest_days BIGINT NOT NULL DEFAULT 0,
			last_activity_date TIMESTAMP NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

type totalsRow struct {
	UserID       string       `db:"user_id"`
	CumulativeXP int64        `db:"cumulative_xp"`
	WeeklyXP     int64        `db:"weekly_xp"`
	MonthlyXP    int64        `db:"monthly_xp"`
	WeekKey      string       `db:"week_key"`
	MonthKey     string       `db:"month_key"`
	CurrentLevel int64        `db:"current_level"`
	LastActivity sql.NullTime `db:"last_activity"`
}

func (r totalsRow) toTotal() core.XPTotal {
	total := core.XPTotal{
		UserID:       core.UserID(r.UserID),
		CumulativeXP: r.CumulativeXP,
		WeeklyXP:     r.WeeklyXP,
		MonthlyXP:    r.MonthlyXP,
		WeekKey:      r.WeekKey,
		MonthKey:     r.MonthKey,
		CurrentLevel: r.CurrentLevel,
	}
	if total.CurrentLevel == 0 {
		total.CurrentLevel = 1
	}
	if r.LastActivity.Valid {
		total.LastActivity = r.LastActivity.Time.UTC()
	}
	return total
}

// Award applies the transaction exactly once; a replayed transaction id
// returns the stored totals with applied=false.
func (s *Store) Award(ctx context.Context, tx core.XPTransaction) (core.XPTotal, core.XPTotal, bool, error) {
	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	var exists bool
	err = dbtx.GetContext(ctx, &exists,
		s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM xp_transactions WHERE tx_id = ?)`), tx.ID)
	if err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, fmt.Errorf("failed to check transaction: %w", err)
	}

	current, found, err := s.totalsForUpdate(ctx, dbtx, tx.UserID)
	if err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, err
	}

	if exists {
		if err := dbtx.Commit(); err != nil {
			return core.XPTotal{}, core.XPTotal{}, false, err
		}
		return current, current, false, nil
	}

	next, err := core.ApplyTransaction(current, tx)
	if err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, err
	}

	_, err = dbtx.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO xp_transactions (tx_id, user_id, amount, source, created_at) VALUES (?, ?, ?, ?, ?)`),
		tx.ID, tx.UserID, tx.Amount, tx.Source, tx.Timestamp.UTC())
	if err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := s.writeTotals(ctx, dbtx, next, found); err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, err
	}
	if err := dbtx.Commit(); err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, err
	}
	return next, current, true, nil
}

func (s *Store) totalsForUpdate(ctx context.Context, dbtx *sqlx.Tx, user core.UserID) (core.XPTotal, bool, error) {
	var row totalsRow
	err := dbtx.GetContext(ctx, &row,
		s.db.Rebind(`SELECT user_id, cumulative_xp, weekly_xp, monthly_xp, week_key, month_key, current_level, last_activity FROM user_totals WHERE user_id = ? FOR UPDATE`), user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.XPTotal{UserID: user}, false, nil
	}
	if err != nil {
		return core.XPTotal{}, false, fmt.Errorf("failed to load totals: %w", err)
	}
	return row.toTotal(), true, nil
}

func (s *Store) writeTotals(ctx context.Context, dbtx *sqlx.Tx, total core.XPTotal, update bool) error {
	var err error
	if update {
		_, err = dbtx.ExecContext(ctx,
			s.db.Rebind(`UPDATE user_totals SET cumulative_xp = ?, weekly_xp = ?, monthly_xp = ?, week_key = ?, month_key = ?, current_level = ?, last_activity = ? WHERE user_id = ?`),
			total.CumulativeXP, total.WeeklyXP, total.MonthlyXP, total.WeekKey, total.MonthKey, total.CurrentLevel, total.LastActivity.UTC(), total.UserID)
	} else {
		_, err = dbtx.ExecContext(ctx,
			s.db.Rebind(`INSERT INTO user_totals (user_id, cumulative_xp, weekly_xp, monthly_xp, week_key, month_key, current_level, last_activity) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			total.UserID, total.CumulativeXP, total.WeeklyXP, total.MonthlyXP, total.WeekKey, total.MonthKey, total.CurrentLevel, total.LastActivity.UTC())
	}
	if err != nil {
		return fmt.Errorf("failed to write totals: %w", err)
	}
	return nil
}

// HasTransaction checks against the global ledger: tx ids are the primary
// key, so the user id is implied by the id itself.
func (s *Store) HasTransaction(ctx context.Context, _ core.UserID, id core.TransactionID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM xp_transactions WHERE tx_id = ?)`), id)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return exists, nil
}

func (s *Store) Totals(ctx context.Context, user core.UserID) (core.XPTotal, error) {
	var row totalsRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT user_id, cumulative_xp, weekly_xp, monthly_xp, week_key, month_key, current_level, last_activity FROM user_totals WHERE user_id = ?`), user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.XPTotal{UserID: user, CurrentLevel: 1}, nil
	}
	if err != nil {
		return core.XPTotal{}, fmt.Errorf("failed to load totals: %w", err)
	}
	return row.toTotal(), nil
}

func (s *Store) ListTotals(ctx context.Context) ([]core.XPTotal, error) {
	var rows []totalsRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT user_id, cumulative_xp, weekly_xp, monthly_xp, week_key, month_key, current_level, last_activity FROM user_totals`)
	if err != nil {
		return nil, fmt.Errorf("failed to list totals: %w", err)
	}
	out := make([]core.XPTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTotal())
	}
	return out, nil
}

func (s *Store) Transactions(ctx context.Context, user core.UserID) ([]core.XPTransaction, error) {
	type txRow struct {
		TxID      string    `db:"tx_id"`
		UserID    string    `db:"user_id"`
		Amount    int64     `db:"amount"`
		Source    string    `db:"source"`
		CreatedAt time.Time `db:"created_at"`
	}
	var rows []txRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT tx_id, user_id, amount, source, created_at FROM xp_transactions WHERE user_id = ? ORDER BY created_at`), user)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	out := make([]core.XPTransaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.XPTransaction{
			ID:        core.TransactionID(r.TxID),
			UserID:    core.UserID(r.UserID),
			Amount:    r.Amount,
			Source:    core.ActivityTag(r.Source),
			Timestamp: r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *Store) Progress(ctx context.Context, user core.UserID) (core.AchievementProgress, error) {
	progress := core.AchievementProgress{
		UserID:   user,
		Counters: map[core.CounterName]int64{},
		Unlocked: map[core.AchievementID]time.Time{},
	}

	type counterRow struct {
		Counter string `db:"counter"`
		Value   int64  `db:"value"`
	}
	var counters []counterRow
	err := s.db.SelectContext(ctx, &counters,
		s.db.Rebind(`SELECT counter, value FROM user_counters WHERE user_id = ?`), user)
	if err != nil {
		return core.AchievementProgress{}, fmt.Errorf("failed to load counters: %w", err)
	}
	for _, c := range counters {
		progress.Counters[core.CounterName(c.Counter)] = c.Value
	}

	type unlockRow struct {
		AchievementID string    `db:"achievement_id"`
		UnlockedAt    time.Time `db:"unlocked_at"`
	}
	var unlocks []unlockRow
	err = s.db.SelectContext(ctx, &unlocks,
		s.db.Rebind(`SELECT achievement_id, unlocked_at FROM user_achievements WHERE user_id = ?`), user)
	if err != nil {
		return core.AchievementProgress{}, fmt.Errorf("failed to load unlocks: %w", err)
	}
	for _, u := range unlocks {
		progress.Unlocked[core.AchievementID(u.AchievementID)] = u.UnlockedAt.UTC()
	}
	return progress, nil
}

func (s *Store) SetCounter(ctx context.Context, user core.UserID, counter core.CounterName, value int64) (core.AchievementProgress, error) {
	if value < 0 {
		return core.AchievementProgress{}, fmt.Errorf("%w: counter value must be non-negative", core.ErrInvalidInput)
	}
	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.AchievementProgress{}, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	var current int64
	err = dbtx.GetContext(ctx, &current,
		s.db.Rebind(`SELECT value FROM user_counters WHERE user_id = ? AND counter = ? FOR UPDATE`), user, counter)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = dbtx.ExecContext(ctx,
			s.db.Rebind(`INSERT INTO user_counters (user_id, counter, value) VALUES (?, ?, ?)`), user, counter, value)
	case err != nil:
		return core.AchievementProgress{}, fmt.Errorf("failed to load counter: %w", err)
	case value < current:
		return core.AchievementProgress{}, fmt.Errorf("%w: counter %q may not decrease", core.ErrInvalidInput, counter)
	default:
		_, err = dbtx.ExecContext(ctx,
			s.db.Rebind(`UPDATE user_counters SET value = ? WHERE user_id = ? AND counter = ?`), value, user, counter)
	}
	if err != nil {
		return core.AchievementProgress{}, fmt.Errorf("failed to write counter: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return core.AchievementProgress{}, err
	}
	return s.Progress(ctx, user)
}

func (s *Store) MarkUnlocked(ctx context.Context, user core.UserID, id core.AchievementID, at time.Time) (bool, error) {
	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	var exists bool
	err = dbtx.GetContext(ctx, &exists,
		s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM user_achievements WHERE user_id = ? AND achievement_id = ?)`), user, id)
	if err != nil {
		return false, fmt.Errorf("failed to check unlock: %w", err)
	}
	if exists {
		if err := dbtx.Commit(); err != nil {
			return false, err
		}
		return false, nil
	}
	_, err = dbtx.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at) VALUES (?, ?, ?)`),
		user, id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record unlock: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

type streakRow struct {
	UserID           string       `db:"user_id"`
	CurrentDays      int64        `db:"current_days"`
	LongestDays      int64        `db:"longest_days"`
	LastActivityDate sql.NullTime `db:"last_activity_date"`
}

func (r streakRow) toState() core.StreakState {
	state := core.StreakState{
		UserID:            core.UserID(r.UserID),
		CurrentStreakDays: r.CurrentDays,
		LongestStreakDays: r.LongestDays,
	}
	if r.LastActivityDate.Valid {
		state.LastActivityDate = r.LastActivityDate.Time.UTC()
	}
	return state
}

func (s *Store) Streak(ctx context.Context, user core.UserID) (core.StreakState, error) {
	var row streakRow
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT user_id, current_days, longest_days, last_activity_date FROM user_streaks WHERE user_id = ?`), user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StreakState{UserID: user}, nil
	}
	if err != nil {
		return core.StreakState{}, fmt.Errorf("failed to load streak: %w", err)
	}
	return row.toState(), nil
}

func (s *Store) AdvanceStreak(ctx context.Context, user core.UserID, activityDate time.Time) (core.StreakState, core.StreakBonus, bool, error) {
	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.StreakState{}, core.StreakBonus{}, false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	var row streakRow
	prev := core.StreakState{UserID: user}
	found := true
	err = dbtx.GetContext(ctx, &row,
		s.db.Rebind(`SELECT user_id, current_days, longest_days, last_activity_date FROM user_streaks WHERE user_id = ? FOR UPDATE`), user)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		found = false
	case err != nil:
		return core.StreakState{}, core.StreakBonus{}, false, fmt.Errorf("failed to load streak: %w", err)
	default:
		prev = row.toState()
	}

	next, bonus, err := core.AdvanceStreak(prev, activityDate)
	if err != nil {
		return prev, core.StreakBonus{}, false, err
	}
	extended := !next.LastActivityDate.Equal(prev.LastActivityDate)

	if extended {
		if found {
			_, err = dbtx.ExecContext(ctx,
				s.db.Rebind(`UPDATE user_streaks SET current_days = ?, longest_days = ?, last_activity_date = ? WHERE user_id = ?`),
				next.CurrentStreakDays, next.LongestStreakDays, next.LastActivityDate, user)
		} else {
			_, err = dbtx.ExecContext(ctx,
				s.db.Rebind(`INSERT INTO user_streaks (user_id, current_days, longest_days, last_activity_date) VALUES (?, ?, ?, ?)`),
				user, next.CurrentStreakDays, next.LongestStreakDays, next.LastActivityDate)
		}
		if err != nil {
			return prev, core.StreakBonus{}, false, fmt.Errorf("failed to write streak: %w", err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return prev, core.StreakBonus{}, false, err
	}
	return next, bonus, extended, nil
}

var _ engine.Storage = (*Store)(nil)
