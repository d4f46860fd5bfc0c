package model

import "time"

type InstanceStatus string

const (
	StatusAssigned InstanceStatus = "assigned"
	StatusClaimed  InstanceStatus = "claimed"
	StatusApproved InstanceStatus = "approved"
	StatusRejected InstanceStatus = "rejected"
	StatusMissed   InstanceStatus = "missed"
)

// Terminal reports whether the status ends the instance's lifecycle.
// Rejected is terminal only until the kid re-claims.
func (s InstanceStatus) Terminal() bool {
	return s == StatusApproved || s == StatusMissed
}

// ChoreInstance is one concrete, dated occurrence of a chore. Instances with
// status assigned may be deleted and regenerated when the owning chore's
// schedule changes; once claimed, approved, rejected, or missed they are
// permanent history.
type ChoreInstance struct {
	ID      int64 `json:"id"`
	ChoreID int64 `json:"chore_id"`
	// DueDate is nil for "anytime" chores, which are claimable at any point.
	DueDate *time.Time     `json:"due_date"`
	Status  InstanceStatus `json:"status"`
	// AssignedTo is set for individual chores and nil for shared ones.
	AssignedTo      *int64     `json:"assigned_to"`
	ClaimedBy       *int64     `json:"claimed_by"`
	ClaimedAt       *time.Time `json:"claimed_at"`
	ClaimedLate     bool       `json:"claimed_late"`
	ApprovedBy      *int64     `json:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at"`
	PointsAwarded   *int       `json:"points_awarded"`
	RejectedBy      *int64     `json:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason string     `json:"rejection_reason"`
	CreatedAt       time.Time  `json:"created_at"`
}
