package store

import (
	"database/sql"
	"fmt"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
)

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var startDate, endDate sql.NullTime
	var latePoints, autoApprove sql.NullInt64
	var allowLate, active int

	err := scanner.Scan(
		&c.ID, &c.Title, &c.Description, &c.Points, &c.Recurrence, &c.AssignmentType,
		&startDate, &endDate, &allowLate, &latePoints, &autoApprove, &active,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.StartDate = timePtr(startDate)
	c.EndDate = timePtr(endDate)
	c.AllowLateClaims = allowLate != 0
	c.LatePoints = intPtr(latePoints)
	c.AutoApproveAfterHours = intPtr(autoApprove)
	c.Active = active != 0
	return &c, nil
}

const choreCols = `id, title, description, points, recurrence, assignment_type, start_date, end_date, allow_late_claims, late_points, auto_approve_after_hours, active, created_at, updated_at`

func (s *ChoreStore) Create(c model.Chore) (*model.Chore, error) {
	var id int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`INSERT INTO chores (title, description, points, recurrence, assignment_type, start_date, end_date, allow_late_claims, late_points, auto_approve_after_hours, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Title, c.Description, c.Points, c.Recurrence, string(c.AssignmentType),
			nullTime(c.StartDate), nullTime(c.EndDate), boolInt(c.AllowLateClaims),
			nullInt(c.LatePoints), nullInt(c.AutoApproveAfterHours), boolInt(c.Active),
		)
		if err != nil {
			return fmt.Errorf("insert chore: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return insertAssignees(tx, id, c.AssigneeIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *ChoreStore) GetByID(id int64) (*model.Chore, error) {
	row := s.db.QueryRow(`SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	if c.AssigneeIDs, err = s.listAssignees(id); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ChoreStore) List() ([]model.Chore, error) {
	return s.list(`SELECT ` + choreCols + ` FROM chores ORDER BY title ASC`)
}

// ListActive returns the chores eligible for routine instance generation.
func (s *ChoreStore) ListActive() ([]model.Chore, error) {
	return s.list(`SELECT ` + choreCols + ` FROM chores WHERE active = 1 ORDER BY title ASC`)
}

func (s *ChoreStore) list(query string) ([]model.Chore, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chores {
		if chores[i].AssigneeIDs, err = s.listAssignees(chores[i].ID); err != nil {
			return nil, err
		}
	}
	return chores, nil
}

func (s *ChoreStore) Update(id int64, c model.Chore) (*model.Chore, error) {
	err := withTx(s.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`UPDATE chores SET title = ?, description = ?, points = ?, recurrence = ?, assignment_type = ?, start_date = ?, end_date = ?, allow_late_claims = ?, late_points = ?, auto_approve_after_hours = ?, active = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			c.Title, c.Description, c.Points, c.Recurrence, string(c.AssignmentType),
			nullTime(c.StartDate), nullTime(c.EndDate), boolInt(c.AllowLateClaims),
			nullInt(c.LatePoints), nullInt(c.AutoApproveAfterHours), boolInt(c.Active), id,
		)
		if err != nil {
			return fmt.Errorf("update chore: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM chore_assignees WHERE chore_id = ?`, id); err != nil {
			return fmt.Errorf("clear assignees: %w", err)
		}
		return insertAssignees(tx, id, c.AssigneeIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes a chore and, via cascade, its not-yet-claimed instances.
// Once any instance has been claimed, approved, rejected, or missed, the
// chore is permanent history: deletion is refused and the chore should be
// deactivated instead.
func (s *ChoreStore) Delete(id int64) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM chore_instances WHERE chore_id = ? AND status != 'assigned'`, id,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("check chore history: %w", err)
		}
		if n > 0 {
			return domain.Errf(domain.CodeInvalidTransition, "chore %d has resolved instances; deactivate it instead", id)
		}
		if _, err := tx.Exec(`DELETE FROM chores WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete chore: %w", err)
		}
		return nil
	})
}

// AddAssignee adds a user to the chore's assignment set if absent.
func (s *ChoreStore) AddAssignee(choreID, userID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO chore_assignees (chore_id, user_id) VALUES (?, ?)`,
		choreID, userID,
	)
	if err != nil {
		return fmt.Errorf("add assignee: %w", err)
	}
	return nil
}

func insertAssignees(tx *sql.Tx, choreID int64, userIDs []int64) error {
	for _, uid := range userIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO chore_assignees (chore_id, user_id) VALUES (?, ?)`,
			choreID, uid,
		); err != nil {
			return fmt.Errorf("insert assignee: %w", err)
		}
	}
	return nil
}

func (s *ChoreStore) listAssignees(choreID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM chore_assignees WHERE chore_id = ? ORDER BY user_id ASC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
