package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleKid    Role = "kid"
	// RoleSystem marks the reserved non-human actor used for automated
	// approvals. Exactly one system user exists, seeded by migration.
	RoleSystem Role = "system"
)

type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
	// Points is a cached balance. The authoritative value is the sum of the
	// user's points_history deltas; the two are reconciled by the audit sweep.
	Points    int       `json:"points"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsApprover reports whether the user may approve or reject work.
func (u *User) IsApprover() bool {
	return u.Role == RoleParent || u.Role == RoleSystem
}
