package model

import "time"

// PointsEntry is one append-only ledger record. Entries are never updated or
// deleted; a user's true balance is the sum of their deltas. Corrections are
// made with new entries of the opposite sign.
type PointsEntry struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
	// InstanceID and ClaimID back-reference the chore instance or reward
	// claim that caused the entry, when one did.
	InstanceID *int64 `json:"instance_id"`
	ClaimID    *int64 `json:"claim_id"`
	CreatedBy  int64  `json:"created_by"`
	// IdempotencyKey prevents a retried operation from posting twice.
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}
