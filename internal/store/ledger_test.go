package store

import (
	"testing"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
)

func TestLedgerAppendMovesBalance(t *testing.T) {
	s := setupTestDB(t)
	kid := createTestUser(t, s, "Maja", model.RoleKid)

	grantPoints(t, s, kid.ID, 10, "grant-1")

	u, _ := s.users.GetByID(kid.ID)
	if u.Points != 10 {
		t.Errorf("points = %d, want 10", u.Points)
	}

	sum, err := s.ledger.SumForUser(kid.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 10 {
		t.Errorf("ledger sum = %d, want 10", sum)
	}
}

func TestLedgerDebitGuard(t *testing.T) {
	s := setupTestDB(t)
	kid := createTestUser(t, s, "Maja", model.RoleKid)
	grantPoints(t, s, kid.ID, 5, "grant-1")

	err := s.ledger.Append(model.PointsEntry{
		UserID:         kid.ID,
		Delta:          -8,
		Reason:         "too expensive",
		CreatedBy:      kid.ID,
		IdempotencyKey: "debit-1",
	}, false)
	if !domain.HasCode(err, domain.CodeInsufficientPoints) {
		t.Fatalf("expected insufficient_points, got %v", err)
	}

	// Nothing may have landed
	u, _ := s.users.GetByID(kid.ID)
	if u.Points != 5 {
		t.Errorf("points = %d, want 5", u.Points)
	}
	entries, _ := s.ledger.ListByUser(kid.ID)
	if len(entries) != 1 {
		t.Errorf("expected 1 ledger entry, got %d", len(entries))
	}
}

func TestLedgerAllowNegative(t *testing.T) {
	s := setupTestDB(t)
	kid := createTestUser(t, s, "Maja", model.RoleKid)

	err := s.ledger.Append(model.PointsEntry{
		UserID:         kid.ID,
		Delta:          -4,
		Reason:         "manual correction",
		CreatedBy:      kid.ID,
		IdempotencyKey: "adjust-1",
	}, true)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	u, _ := s.users.GetByID(kid.ID)
	if u.Points != -4 {
		t.Errorf("points = %d, want -4", u.Points)
	}
}

func TestLedgerIdempotencyKeyUnique(t *testing.T) {
	s := setupTestDB(t)
	kid := createTestUser(t, s, "Maja", model.RoleKid)

	entry := model.PointsEntry{
		UserID:         kid.ID,
		Delta:          3,
		Reason:         "weekly bonus",
		CreatedBy:      kid.ID,
		IdempotencyKey: "bonus-2025-03",
	}
	if err := s.ledger.Append(entry, true); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.ledger.Append(entry, true); err == nil {
		t.Error("expected duplicate idempotency key to fail")
	}

	// The failed retry must not move the balance
	u, _ := s.users.GetByID(kid.ID)
	if u.Points != 3 {
		t.Errorf("points = %d, want 3", u.Points)
	}
}

func TestLedgerListByUserNewestFirst(t *testing.T) {
	s := setupTestDB(t)
	kid := createTestUser(t, s, "Maja", model.RoleKid)
	grantPoints(t, s, kid.ID, 1, "k1")
	grantPoints(t, s, kid.ID, 2, "k2")
	grantPoints(t, s, kid.ID, 3, "k3")

	entries, err := s.ledger.ListByUser(kid.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Delta != 3 || entries[2].Delta != 1 {
		t.Error("expected newest entry first")
	}
}
