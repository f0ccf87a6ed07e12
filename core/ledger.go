package core

import "fmt"

// ApplyTransaction folds one ledger transaction into a user's totals. It is
// the single definition of the ledger arithmetic; storage adapters call it
// while holding their per-user lock (or inside their transaction), so the
// read-modify-write is linearized per user.
//
// Grants must be positive. Rolling counters reset when the transaction's
// timestamp opens a new ISO week or calendar month; CumulativeXP never
// resets. CurrentLevel is recomputed from the canonical curve.
func ApplyTransaction(total XPTotal, tx XPTransaction) (XPTotal, error) {
	if tx.Amount <= 0 {
		return total, fmt.Errorf("%w: grant amount must be positive, got %d", ErrInvalidInput, tx.Amount)
	}
	if err := ValidateTransactionID(tx.ID); err != nil {
		return total, err
	}

	cum, err := AddSafe(total.CumulativeXP, tx.Amount)
	if err != nil {
		return total, err
	}

	wk, mk := WeekKey(tx.Timestamp), MonthKey(tx.Timestamp)
	if total.WeekKey != wk {
		total.WeeklyXP = 0
		total.WeekKey = wk
	}
	if total.MonthKey != mk {
		total.MonthlyXP = 0
		total.MonthKey = mk
	}
	total.WeeklyXP += tx.Amount
	total.MonthlyXP += tx.Amount
	total.CumulativeXP = cum

	lvl, err := Level(cum)
	if err != nil {
		return total, err
	}
	total.CurrentLevel = lvl

	if ts := tx.Timestamp.UTC(); ts.After(total.LastActivity) {
		total.LastActivity = ts
	}
	return total, nil
}
