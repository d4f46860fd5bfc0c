package model

import "time"

type AssignmentType string

const (
	// AssignmentIndividual generates one instance per assigned kid per due date.
	AssignmentIndividual AssignmentType = "individual"
	// AssignmentShared generates a single unassigned instance per due date;
	// the first kid to claim it wins.
	AssignmentShared AssignmentType = "shared"
)

type Chore struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	// Recurrence is the serialized recurrence pattern, e.g. "daily" or
	// "weekly:1,3,5". See the recurrence package for the format.
	Recurrence            string         `json:"recurrence"`
	AssignmentType        AssignmentType `json:"assignment_type"`
	StartDate             *time.Time     `json:"start_date"`
	EndDate               *time.Time     `json:"end_date"`
	AllowLateClaims       bool           `json:"allow_late_claims"`
	LatePoints            *int           `json:"late_points"`
	AutoApproveAfterHours *int           `json:"auto_approve_after_hours"`
	Active                bool           `json:"active"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`

	// AssigneeIDs is the chore's assignment set, loaded from chore_assignees.
	AssigneeIDs []int64 `json:"assignee_ids"`
}

// AssignedTo reports whether userID belongs to the chore's assignment set.
func (c *Chore) AssignedTo(userID int64) bool {
	for _, id := range c.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}
