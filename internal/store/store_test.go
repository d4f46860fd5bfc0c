package store

import (
	"testing"
	"time"

	"github.com/tillgrange/choreboard/internal/database"
	"github.com/tillgrange/choreboard/internal/model"
)

func setupTestDB(t *testing.T) *testStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &testStores{
		users:     NewUserStore(db),
		chores:    NewChoreStore(db),
		instances: NewInstanceStore(db),
		rewards:   NewRewardStore(db),
		ledger:    NewLedgerStore(db),
	}
}

type testStores struct {
	users     *UserStore
	chores    *ChoreStore
	instances *InstanceStore
	rewards   *RewardStore
	ledger    *LedgerStore
}

func createTestUser(t *testing.T, s *testStores, name string, role model.Role) *model.User {
	t.Helper()
	u, err := s.users.Create(name, role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createTestChore(t *testing.T, s *testStores, c model.Chore) *model.Chore {
	t.Helper()
	if c.Title == "" {
		c.Title = "Dishes"
	}
	if c.Recurrence == "" {
		c.Recurrence = "daily"
	}
	if c.AssignmentType == "" {
		c.AssignmentType = model.AssignmentIndividual
	}
	c.Active = true
	created, err := s.chores.Create(c)
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return created
}

// grantPoints seeds a balance through the ledger so the cached value and the
// history stay consistent.
func grantPoints(t *testing.T, s *testStores, userID int64, amount int, key string) {
	t.Helper()
	err := s.ledger.Append(model.PointsEntry{
		UserID:         userID,
		Delta:          amount,
		Reason:         "test grant",
		CreatedBy:      userID,
		IdempotencyKey: key,
	}, true)
	if err != nil {
		t.Fatalf("grant points: %v", err)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
