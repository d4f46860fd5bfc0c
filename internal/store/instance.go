package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tillgrange/choreboard/internal/model"
)

type InstanceStore struct {
	db *sql.DB
}

func NewInstanceStore(db *sql.DB) *InstanceStore {
	return &InstanceStore{db: db}
}

func scanInstance(scanner interface{ Scan(...any) error }) (*model.ChoreInstance, error) {
	var i model.ChoreInstance
	var dueDate, claimedAt, approvedAt, rejectedAt sql.NullTime
	var assignedTo, claimedBy, approvedBy, rejectedBy, pointsAwarded sql.NullInt64
	var claimedLate int

	err := scanner.Scan(
		&i.ID, &i.ChoreID, &dueDate, &i.Status, &assignedTo,
		&claimedBy, &claimedAt, &claimedLate,
		&approvedBy, &approvedAt, &pointsAwarded,
		&rejectedBy, &rejectedAt, &i.RejectionReason, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	i.DueDate = timePtr(dueDate)
	i.AssignedTo = int64Ptr(assignedTo)
	i.ClaimedBy = int64Ptr(claimedBy)
	i.ClaimedAt = timePtr(claimedAt)
	i.ClaimedLate = claimedLate != 0
	i.ApprovedBy = int64Ptr(approvedBy)
	i.ApprovedAt = timePtr(approvedAt)
	i.PointsAwarded = intPtr(pointsAwarded)
	i.RejectedBy = int64Ptr(rejectedBy)
	i.RejectedAt = timePtr(rejectedAt)
	return &i, nil
}

const instanceCols = `id, chore_id, due_date, status, assigned_to, claimed_by, claimed_at, claimed_late, approved_by, approved_at, points_awarded, rejected_by, rejected_at, rejection_reason, created_at`

const instanceColsJoined = `i.id, i.chore_id, i.due_date, i.status, i.assigned_to, i.claimed_by, i.claimed_at, i.claimed_late, i.approved_by, i.approved_at, i.points_awarded, i.rejected_by, i.rejected_at, i.rejection_reason, i.created_at`

func (s *InstanceStore) Create(choreID int64, dueDate *time.Time, assignedTo *int64) (*model.ChoreInstance, error) {
	result, err := s.db.Exec(
		`INSERT INTO chore_instances (chore_id, due_date, assigned_to) VALUES (?, ?, ?)`,
		choreID, nullTime(dueDate), nullInt64(assignedTo),
	)
	if err != nil {
		return nil, fmt.Errorf("insert instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *InstanceStore) GetByID(id int64) (*model.ChoreInstance, error) {
	row := s.db.QueryRow(`SELECT `+instanceCols+` FROM chore_instances WHERE id = ?`, id)
	i, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return i, nil
}

// Exists reports whether an instance already occupies the
// (chore, due date, assignee) slot. The generator checks this before every
// insert; the unique index backs it up against races.
func (s *InstanceStore) Exists(choreID int64, dueDate *time.Time, assignedTo *int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chore_instances WHERE chore_id = ? AND due_date IS ? AND assigned_to IS ?`,
		choreID, nullTime(dueDate), nullInt64(assignedTo),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check instance exists: %w", err)
	}
	return n > 0, nil
}

// HasOpenAnytime reports whether an undated instance for the slot is still
// unresolved (assigned, claimed, or rejected-and-reclaimable).
func (s *InstanceStore) HasOpenAnytime(choreID int64, assignedTo *int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM chore_instances
		 WHERE chore_id = ? AND assigned_to IS ? AND due_date IS NULL
		   AND status IN ('assigned', 'claimed', 'rejected')`,
		choreID, nullInt64(assignedTo),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check open anytime instance: %w", err)
	}
	return n > 0, nil
}

// DeletePendingFrom removes still-assigned dated instances due on or after
// the given day. This is the only instance deletion in the system; anything
// claimed, approved, rejected, or missed is history and survives.
func (s *InstanceStore) DeletePendingFrom(choreID int64, from time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM chore_instances
		 WHERE chore_id = ? AND status = 'assigned' AND due_date IS NOT NULL AND due_date >= ?`,
		choreID, from,
	)
	if err != nil {
		return 0, fmt.Errorf("delete pending instances: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	ChoreID int64
	UserID  int64 // matches assigned_to or claimed_by
	Status  model.InstanceStatus
}

func (s *InstanceStore) List(f Filter) ([]model.ChoreInstance, error) {
	query := `SELECT ` + instanceCols + ` FROM chore_instances WHERE 1=1`
	var args []any
	if f.ChoreID != 0 {
		query += ` AND chore_id = ?`
		args = append(args, f.ChoreID)
	}
	if f.UserID != 0 {
		query += ` AND (assigned_to = ? OR claimed_by = ?)`
		args = append(args, f.UserID, f.UserID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY due_date ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ChoreInstance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *i)
	}
	return instances, rows.Err()
}

// ListMissable returns assigned instances due strictly before the given day
// whose owning chore disallows late claims. Undated instances never appear.
func (s *InstanceStore) ListMissable(before time.Time) ([]model.ChoreInstance, error) {
	rows, err := s.db.Query(
		`SELECT `+instanceColsJoined+`
		 FROM chore_instances i
		 JOIN chores c ON c.id = i.chore_id
		 WHERE i.status = 'assigned' AND i.due_date IS NOT NULL AND i.due_date < ?
		   AND c.allow_late_claims = 0
		 ORDER BY i.id ASC`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("list missable instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ChoreInstance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *i)
	}
	return instances, rows.Err()
}

// AutoApproveCandidate pairs a claimed instance with its chore's
// auto-approval threshold.
type AutoApproveCandidate struct {
	Instance   model.ChoreInstance
	AfterHours int
}

// ListAutoApprovable returns claimed instances of chores that define a
// positive auto_approve_after_hours. The elapsed-time check happens in the
// lifecycle manager, which owns "now".
func (s *InstanceStore) ListAutoApprovable() ([]AutoApproveCandidate, error) {
	rows, err := s.db.Query(
		`SELECT ` + instanceColsJoined + `, c.auto_approve_after_hours
		 FROM chore_instances i
		 JOIN chores c ON c.id = i.chore_id
		 WHERE i.status = 'claimed' AND c.auto_approve_after_hours > 0
		 ORDER BY i.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list auto-approvable instances: %w", err)
	}
	defer rows.Close()

	var candidates []AutoApproveCandidate
	for rows.Next() {
		var i model.ChoreInstance
		var dueDate, claimedAt, approvedAt, rejectedAt sql.NullTime
		var assignedTo, claimedBy, approvedBy, rejectedBy, pointsAwarded sql.NullInt64
		var claimedLate, afterHours int

		err := rows.Scan(
			&i.ID, &i.ChoreID, &dueDate, &i.Status, &assignedTo,
			&claimedBy, &claimedAt, &claimedLate,
			&approvedBy, &approvedAt, &pointsAwarded,
			&rejectedBy, &rejectedAt, &i.RejectionReason, &i.CreatedAt,
			&afterHours,
		)
		if err != nil {
			return nil, fmt.Errorf("scan auto-approve candidate: %w", err)
		}

		i.DueDate = timePtr(dueDate)
		i.AssignedTo = int64Ptr(assignedTo)
		i.ClaimedBy = int64Ptr(claimedBy)
		i.ClaimedAt = timePtr(claimedAt)
		i.ClaimedLate = claimedLate != 0
		candidates = append(candidates, AutoApproveCandidate{Instance: i, AfterHours: afterHours})
	}
	return candidates, rows.Err()
}

// --- conditional transitions ---
//
// Each returns false when the row was no longer in the required status, which
// is how a lost race (concurrent claim, sweep, or reassign) surfaces.

func (s *InstanceStore) Claim(id, userID int64, at time.Time, late bool) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances
		 SET status = 'claimed', claimed_by = ?, claimed_at = ?, claimed_late = ?,
		     rejected_by = NULL, rejected_at = NULL, rejection_reason = ''
		 WHERE id = ? AND status IN ('assigned', 'rejected')`,
		userID, at, boolInt(late), id,
	)
	if err != nil {
		return false, fmt.Errorf("claim instance: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) Unclaim(id, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances
		 SET status = 'assigned', claimed_by = NULL, claimed_at = NULL, claimed_late = 0
		 WHERE id = ? AND status = 'claimed' AND claimed_by = ?`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("unclaim instance: %w", err)
	}
	return oneRow(result)
}

// Approve flips the instance to approved and credits the claimer in one
// transaction. If either side fails, neither persists. The update is pinned
// to the credit's recipient: if the instance was unclaimed and re-claimed by
// someone else since the caller read it, the row no longer matches and the
// stale approval is reported as a lost race instead of crediting the wrong
// user.
func (s *InstanceStore) Approve(id, approverID int64, at time.Time, points int, credit model.PointsEntry) (bool, error) {
	applied := false
	err := withTx(s.db, func(tx *sql.Tx) error {
		applied = false
		result, err := tx.Exec(
			`UPDATE chore_instances
			 SET status = 'approved', approved_by = ?, approved_at = ?, points_awarded = ?
			 WHERE id = ? AND status = 'claimed' AND claimed_by = ?`,
			approverID, at, points, id, credit.UserID,
		)
		if err != nil {
			return fmt.Errorf("approve instance: %w", err)
		}
		ok, err := oneRow(result)
		if err != nil || !ok {
			return err
		}
		if err := applyEntry(tx, credit, true); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// Reject pins on claimerID the same way Approve pins on its credit recipient:
// a rejection aimed at one kid's work must not land on a different claimer.
func (s *InstanceStore) Reject(id, rejecterID, claimerID int64, at time.Time, reason string) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances
		 SET status = 'rejected', rejected_by = ?, rejected_at = ?, rejection_reason = ?
		 WHERE id = ? AND status = 'claimed' AND claimed_by = ?`,
		rejecterID, at, reason, id, claimerID,
	)
	if err != nil {
		return false, fmt.Errorf("reject instance: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) Reassign(id, newUserID int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET assigned_to = ? WHERE id = ? AND status = 'assigned'`,
		newUserID, id,
	)
	if err != nil {
		return false, fmt.Errorf("reassign instance: %w", err)
	}
	return oneRow(result)
}

func (s *InstanceStore) MarkMissed(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE chore_instances SET status = 'missed' WHERE id = ? AND status = 'assigned'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark instance missed: %w", err)
	}
	return oneRow(result)
}

func oneRow(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
