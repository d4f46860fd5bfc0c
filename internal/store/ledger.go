package store

import (
	"database/sql"
	"fmt"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
)

// LedgerStore owns the append-only points_history table and the cached
// users.points column. Every entry and its balance update commit together.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// applyEntry appends one ledger entry and moves the cached balance by its
// delta inside the caller's transaction. Shared with the instance and reward
// stores so approve/claim state changes and their points effects are one
// atomic unit.
//
// Unless allowNegative is set, a debit that would drive the cached balance
// below zero fails with insufficient_points and writes nothing.
func applyEntry(tx *sql.Tx, e model.PointsEntry, allowNegative bool) error {
	guard := ``
	if !allowNegative {
		guard = ` AND points + ? >= 0`
	}

	args := []any{e.Delta, e.UserID}
	if !allowNegative {
		args = append(args, e.Delta)
	}

	result, err := tx.Exec(
		`UPDATE users SET points = points + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`+guard,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.Errf(domain.CodeInsufficientPoints, "balance of user %d cannot go below zero", e.UserID)
	}

	_, err = tx.Exec(
		`INSERT INTO points_history (user_id, delta, reason, instance_id, claim_id, created_by, idempotency_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Delta, e.Reason, nullInt64(e.InstanceID), nullInt64(e.ClaimID), e.CreatedBy, e.IdempotencyKey,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Append posts a standalone ledger entry (manual adjustments).
func (s *LedgerStore) Append(e model.PointsEntry, allowNegative bool) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		return applyEntry(tx, e, allowNegative)
	})
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.PointsEntry, error) {
	var e model.PointsEntry
	var instanceID, claimID sql.NullInt64

	err := scanner.Scan(
		&e.ID, &e.UserID, &e.Delta, &e.Reason, &instanceID, &claimID,
		&e.CreatedBy, &e.IdempotencyKey, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.InstanceID = int64Ptr(instanceID)
	e.ClaimID = int64Ptr(claimID)
	return &e, nil
}

const entryCols = `id, user_id, delta, reason, instance_id, claim_id, created_by, idempotency_key, created_at`

func (s *LedgerStore) ListByUser(userID int64) ([]model.PointsEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryCols+` FROM points_history WHERE user_id = ? ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []model.PointsEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// SumForUser recomputes the authoritative balance from the ledger.
func (s *LedgerStore) SumForUser(userID int64) (int, error) {
	var sum int
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(delta), 0) FROM points_history WHERE user_id = ?`,
		userID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum history: %w", err)
	}
	return sum, nil
}
