package model

import "time"

type Reward struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	PointsCost       int       `json:"points_cost"`
	RequiresApproval bool      `json:"requires_approval"`
	CooldownDays     *int      `json:"cooldown_days"`
	MaxClaimsTotal   *int      `json:"max_claims_total"`
	MaxClaimsPerKid  *int      `json:"max_claims_per_kid"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// RewardClaim records a kid spending points on a reward. Points are deducted
// when the claim is created; a rejected or expired claim refunds them.
// Unclaiming a pending claim refunds the points and deletes the row.
type RewardClaim struct {
	ID          int64       `json:"id"`
	RewardID    int64       `json:"reward_id"`
	UserID      int64       `json:"user_id"`
	PointsSpent int         `json:"points_spent"`
	Status      ClaimStatus `json:"status"`
	ClaimedAt   time.Time   `json:"claimed_at"`
	// ExpiresAt is set only for claims awaiting approval; unresolved claims
	// auto-reject when it passes.
	ExpiresAt       *time.Time `json:"expires_at"`
	ApprovedBy      *int64     `json:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at"`
	RejectionReason string     `json:"rejection_reason"`
}
