package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"progresskit/core"
	"progresskit/engine"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - user:{user_id}:totals  -> hash (cumulative, weekly, monthly, week_key, month_key, level, last_ms)
// - user:{user_id}:txseen  -> set of applied transaction ids
// - user:{user_id}:ledger  -> list of JSON transactions
// - user:{user_id}:counters -> hash of counter name -> value
// - user:{user_id}:unlocked -> hash of achievement id -> RFC3339 unlock time
// - user:{user_id}:streak  -> hash (current, longest, last_day)
// - users                  -> set of known user ids
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func totalsKey(user core.UserID) string   { return fmt.Sprintf("user:%s:totals", user) }
func txSeenKey(user core.UserID) string   { return fmt.Sprintf("user:%s:txseen", user) }
func ledgerKey(user core.UserID) string   { return fmt.Sprintf("user:%s:ledger", user) }
func countersKey(user core.UserID) string { return fmt.Sprintf("user:%s:counters", user) }
func unlockedKey(user core.UserID) string { return fmt.Sprintf("user:%s:unlocked", user) }
func streakKey(user core.UserID) string   { return fmt.Sprintf("user:%s:streak", user) }

const usersKey = "users"

// awardScript applies an XP transaction atomically: idempotency check,
// period rollover, level recompute, ledger append. Timestamps travel as
// unix milliseconds so they stay within Lua number precision.
var awardScript = redis.NewScript(`
	local seen = KEYS[1]
	local totals = KEYS[2]
	local ledger = KEYS[3]
	local users = KEYS[4]
	local tx_id = ARGV[1]
	local amount = tonumber(ARGV[2])
	local week_key = ARGV[3]
	local month_key = ARGV[4]
	local ts_ms = tonumber(ARGV[5])
	local tx_json = ARGV[6]
	local user_id = ARGV[7]

	local cum = tonumber(redis.call('HGET', totals, 'cumulative') or '0')
	local weekly = tonumber(redis.call('HGET', totals, 'weekly') or '0')
	local monthly = tonumber(redis.call('HGET', totals, 'monthly') or '0')
	local last_ms = tonumber(redis.call('HGET', totals, 'last_ms') or '0')

	if redis.call('SISMEMBER', seen, tx_id) == 1 then
		return {0, cum, weekly, monthly, last_ms, cum, weekly, monthly, last_ms}
	end

	local prev_cum = cum
	local prev_weekly = weekly
	local prev_monthly = monthly
	local prev_last = last_ms

	if cum + amount > 9223372036854775807 then
		return redis.error_reply('integer overflow')
	end

	if redis.call('HGET', totals, 'week_key') ~= week_key then
		weekly = 0
	end
	if redis.call('HGET', totals, 'month_key') ~= month_key then
		monthly = 0
	end
	cum = cum + amount
	weekly = weekly + amount
	monthly = monthly + amount

	local level = math.floor(math.sqrt(cum / 100)) + 1
	while 100 * level * level <= cum do
		level = level + 1
	end
	while level > 1 and 100 * (level - 1) * (level - 1) > cum do
		level = level - 1
	end

	if ts_ms > last_ms then
		last_ms = ts_ms
	end

	redis.call('HSET', totals,
		'cumulative', cum, 'weekly', weekly, 'monthly', monthly,
		'week_key', week_key, 'month_key', month_key,
		'level', level, 'last_ms', last_ms)
	redis.call('SADD', seen, tx_id)
	redis.call('RPUSH', ledger, tx_json)
	redis.call('SADD', users, user_id)
	return {1, prev_cum, prev_weekly, prev_monthly, prev_last, cum, weekly, monthly, last_ms}
`)

// Award applies the transaction exactly once. A replayed transaction id
// returns the current totals with applied=false.
func (s *Store) Award(ctx context.Context, tx core.XPTransaction) (core.XPTotal, core.XPTotal, bool, error) {
	if tx.Amount <= 0 {
		return core.XPTotal{}, core.XPTotal{}, false, fmt.Errorf("%w: amount must be positive", core.ErrInvalidInput)
	}
	if err := core.ValidateTransactionID(tx.ID); err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, err
	}

	txJSON, err := json.Marshal(tx)
	if err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, err
	}

	weekKey := core.WeekKey(tx.Timestamp)
	monthKey := core.MonthKey(tx.Timestamp)
	keys := []string{txSeenKey(tx.UserID), totalsKey(tx.UserID), ledgerKey(tx.UserID), usersKey}
	args := []interface{}{string(tx.ID), tx.Amount, weekKey, monthKey, tx.Timestamp.UnixMilli(), string(txJSON), string(tx.UserID)}

	result, err := awardScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return core.XPTotal{}, core.XPTotal{}, false, fmt.Errorf("failed to award xp: %w", err)
	}
	vals, ok := result.([]interface{})
	if !ok || len(vals) != 9 {
		return core.XPTotal{}, core.XPTotal{}, false, errors.New("unexpected result shape from Redis script")
	}

	applied := asInt64(vals[0]) == 1
	prior := core.XPTotal{
		UserID:       tx.UserID,
		CumulativeXP: asInt64(vals[1]),
		WeeklyXP:     asInt64(vals[2]),
		MonthlyXP:    asInt64(vals[3]),
		LastActivity: msTime(asInt64(vals[4])),
	}
	prior.CurrentLevel, _ = core.Level(prior.CumulativeXP)

	total := core.XPTotal{
		UserID:       tx.UserID,
		CumulativeXP: asInt64(vals[5]),
		WeeklyXP:     asInt64(vals[6]),
		MonthlyXP:    asInt64(vals[7]),
		WeekKey:      weekKey,
		MonthKey:     monthKey,
		LastActivity: msTime(asInt64(vals[8])),
	}
	total.CurrentLevel, _ = core.Level(total.CumulativeXP)
	return total, prior, applied, nil
}

func (s *Store) HasTransaction(ctx context.Context, user core.UserID, id core.TransactionID) (bool, error) {
	dup, err := s.client.SIsMember(ctx, txSeenKey(user), string(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return dup, nil
}

func (s *Store) Totals(ctx context.Context, user core.UserID) (core.XPTotal, error) {
	fields, err := s.client.HGetAll(ctx, totalsKey(user)).Result()
	if err != nil {
		return core.XPTotal{}, fmt.Errorf("failed to get totals: %w", err)
	}
	return totalsFromHash(user, fields), nil
}

func (s *Store) ListTotals(ctx context.Context) ([]core.XPTotal, error) {
	users, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]core.XPTotal, 0, len(users))
	for _, u := range users {
		total, err := s.Totals(ctx, core.UserID(u))
		if err != nil {
			return nil, err
		}
		out = append(out, total)
	}
	return out, nil
}

func (s *Store) Transactions(ctx context.Context, user core.UserID) ([]core.XPTransaction, error) {
	raw, err := s.client.LRange(ctx, ledgerKey(user), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	out := make([]core.XPTransaction, 0, len(raw))
	for _, item := range raw {
		var tx core.XPTransaction
		if err := json.Unmarshal([]byte(item), &tx); err != nil {
			continue // skip corrupt entries
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) Progress(ctx context.Context, user core.UserID) (core.AchievementProgress, error) {
	progress := core.AchievementProgress{
		UserID:   user,
		Counters: map[core.CounterName]int64{},
		Unlocked: map[core.AchievementID]time.Time{},
	}

	counters, err := s.client.HGetAll(ctx, countersKey(user)).Result()
	if err != nil {
		return core.AchievementProgress{}, fmt.Errorf("failed to get counters: %w", err)
	}
	for name, raw := range counters {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		progress.Counters[core.CounterName(name)] = v
	}

	unlocked, err := s.client.HGetAll(ctx, unlockedKey(user)).Result()
	if err != nil {
		return core.AchievementProgress{}, fmt.Errorf("failed to get unlocks: %w", err)
	}
	for id, raw := range unlocked {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			continue
		}
		progress.Unlocked[core.AchievementID(id)] = at
	}
	return progress, nil
}

// setCounterScript enforces the monotonic counter invariant atomically.
var setCounterScript = redis.NewScript(`
	local current = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
	local value = tonumber(ARGV[2])
	if value < current then
		return redis.error_reply('counter decrease')
	end
	redis.call('HSET', KEYS[1], ARGV[1], value)
	redis.call('SADD', KEYS[2], ARGV[3])
	return value
`)

func (s *Store) SetCounter(ctx context.Context, user core.UserID, counter core.CounterName, value int64) (core.AchievementProgress, error) {
	if value < 0 {
		return core.AchievementProgress{}, fmt.Errorf("%w: counter value must be non-negative", core.ErrInvalidInput)
	}
	keys := []string{countersKey(user), usersKey}
	_, err := setCounterScript.Run(ctx, s.client, keys, string(counter), value, string(user)).Result()
	if err != nil {
		if strings.Contains(err.Error(), "counter decrease") {
			return core.AchievementProgress{}, fmt.Errorf("%w: counter %q may not decrease", core.ErrInvalidInput, counter)
		}
		return core.AchievementProgress{}, fmt.Errorf("failed to set counter: %w", err)
	}
	return s.Progress(ctx, user)
}

func (s *Store) MarkUnlocked(ctx context.Context, user core.UserID, id core.AchievementID, at time.Time) (bool, error) {
	newly, err := s.client.HSetNX(ctx, unlockedKey(user), string(id), at.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark unlock: %w", err)
	}
	return newly, nil
}

func (s *Store) Streak(ctx context.Context, user core.UserID) (core.StreakState, error) {
	fields, err := s.client.HGetAll(ctx, streakKey(user)).Result()
	if err != nil {
		return core.StreakState{}, fmt.Errorf("failed to get streak: %w", err)
	}
	return streakFromHash(user, fields), nil
}

// advanceStreakScript applies the daily streak rules atomically. Days travel
// as counts of UTC civil days since the Unix epoch.
var advanceStreakScript = redis.NewScript(`
	local key = KEYS[1]
	local day = tonumber(ARGV[1])
	local current = tonumber(redis.call('HGET', key, 'current') or '0')
	local longest = tonumber(redis.call('HGET', key, 'longest') or '0')
	local last = redis.call('HGET', key, 'last_day')

	if last then
		last = tonumber(last)
		if day < last then
			return redis.error_reply('out of order')
		end
		if day == last then
			return {0, current, longest, last}
		end
		if day == last + 1 then
			current = current + 1
		else
			current = 1
		end
	else
		current = 1
	end
	if current > longest then
		longest = current
	end
	redis.call('HSET', key, 'current', current, 'longest', longest, 'last_day', day)
	redis.call('SADD', KEYS[2], ARGV[2])
	return {1, current, longest, day}
`)

func (s *Store) AdvanceStreak(ctx context.Context, user core.UserID, activityDate time.Time) (core.StreakState, core.StreakBonus, bool, error) {
	day := activityDate.UTC().Unix() / 86400
	keys := []string{streakKey(user), usersKey}
	result, err := advanceStreakScript.Run(ctx, s.client, keys, day, string(user)).Result()
	if err != nil {
		if strings.Contains(err.Error(), "out of order") {
			return core.StreakState{}, core.StreakBonus{}, false, fmt.Errorf("%w: activity predates recorded streak", core.ErrOutOfOrderEvent)
		}
		return core.StreakState{}, core.StreakBonus{}, false, fmt.Errorf("failed to advance streak: %w", err)
	}
	vals, ok := result.([]interface{})
	if !ok || len(vals) != 4 {
		return core.StreakState{}, core.StreakBonus{}, false, errors.New("unexpected result shape from Redis script")
	}

	state := core.StreakState{
		UserID:            user,
		CurrentStreakDays: asInt64(vals[1]),
		LongestStreakDays: asInt64(vals[2]),
		LastActivityDate:  time.Unix(asInt64(vals[3])*86400, 0).UTC(),
	}
	extended := asInt64(vals[0]) == 1
	return state, core.BonusForStreak(state.CurrentStreakDays), extended, nil
}

func totalsFromHash(user core.UserID, fields map[string]string) core.XPTotal {
	total := core.XPTotal{
		UserID:       user,
		CumulativeXP: hashInt(fields, "cumulative"),
		WeeklyXP:     hashInt(fields, "weekly"),
		MonthlyXP:    hashInt(fields, "monthly"),
		WeekKey:      fields["week_key"],
		MonthKey:     fields["month_key"],
		LastActivity: msTime(hashInt(fields, "last_ms")),
	}
	total.CurrentLevel, _ = core.Level(total.CumulativeXP)
	return total
}

func streakFromHash(user core.UserID, fields map[string]string) core.StreakState {
	state := core.StreakState{
		UserID:            user,
		CurrentStreakDays: hashInt(fields, "current"),
		LongestStreakDays: hashInt(fields, "longest"),
	}
	if day, ok := fields["last_day"]; ok {
		if n, err := strconv.ParseInt(day, 10, 64); err == nil {
			state.LastActivityDate = time.Unix(n*86400, 0).UTC()
		}
	}
	return state
}

func hashInt(fields map[string]string, name string) int64 {
	v, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}

func msTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

var _ engine.Storage = (*Store)(nil)
