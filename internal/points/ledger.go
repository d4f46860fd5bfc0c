// Package points maintains per-user point balances as the sum of an
// append-only transaction history, plus the audit that keeps the cached
// balance honest.
package points

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
	"github.com/tillgrange/choreboard/internal/store"
)

type Ledger struct {
	users   *store.UserStore
	entries *store.LedgerStore
	sink    domain.Sink
	logger  *slog.Logger
}

func NewLedger(users *store.UserStore, entries *store.LedgerStore, sink domain.Sink, logger *slog.Logger) *Ledger {
	return &Ledger{users: users, entries: entries, sink: sink, logger: logger}
}

// Adjust posts a manual, parent-initiated adjustment. Penalty adjustments may
// drive the balance negative; that is the one path allowed to (reward
// deductions are pre-validated for affordability and never go below zero).
func (l *Ledger) Adjust(userID int64, delta int, reason string, actorID int64) (*model.User, error) {
	actor, err := l.users.GetByID(actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, domain.Errf(domain.CodeNotFound, "actor %d not found", actorID)
	}
	if actor.Role != model.RoleParent {
		return nil, domain.Errf(domain.CodeForbidden, "only a parent can adjust points")
	}

	user, err := l.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.Errf(domain.CodeNotFound, "user %d not found", userID)
	}
	if reason == "" {
		reason = "manual adjustment"
	}

	entry := model.PointsEntry{
		UserID:         userID,
		Delta:          delta,
		Reason:         reason,
		CreatedBy:      actorID,
		IdempotencyKey: uuid.NewString(),
	}
	if err := l.entries.Append(entry, true); err != nil {
		return nil, fmt.Errorf("append adjustment: %w", err)
	}

	user, err = l.users.GetByID(userID)
	if err != nil {
		return nil, err
	}

	l.sink.Publish(domain.Event{
		Type:   domain.EventPointsChanged,
		Entity: "user",
		ID:     userID,
		Fields: map[string]any{"delta": delta, "balance": user.Points, "reason": reason},
	})
	return user, nil
}

// History returns a user's ledger entries, newest first.
func (l *Ledger) History(userID int64) ([]model.PointsEntry, error) {
	user, err := l.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.Errf(domain.CodeNotFound, "user %d not found", userID)
	}
	return l.entries.ListByUser(userID)
}

// Verify recomputes a user's balance from the ledger and compares it to the
// cache. A mismatch means a bug elsewhere; it is reported, never repaired.
func (l *Ledger) Verify(userID int64) (bool, error) {
	user, err := l.users.GetByID(userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, domain.Errf(domain.CodeNotFound, "user %d not found", userID)
	}

	sum, err := l.entries.SumForUser(userID)
	if err != nil {
		return false, err
	}
	if sum != user.Points {
		l.logger.Error("balance mismatch",
			"code", string(domain.CodeBalanceMismatch),
			"user_id", userID, "cached", user.Points, "ledger", sum)
		return false, nil
	}
	return true, nil
}

// Audit verifies every user and returns the ids whose cached balance drifted
// from the ledger sum.
func (l *Ledger) Audit() ([]int64, error) {
	ids, err := l.users.ListIDs()
	if err != nil {
		return nil, err
	}

	var mismatched []int64
	for _, id := range ids {
		ok, err := l.Verify(id)
		if err != nil {
			return mismatched, err
		}
		if !ok {
			mismatched = append(mismatched, id)
		}
	}
	return mismatched, nil
}
