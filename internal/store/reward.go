package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var cooldown, maxTotal, maxPerKid sql.NullInt64
	var requiresApproval, active int

	err := scanner.Scan(
		&r.ID, &r.Title, &r.Description, &r.PointsCost, &requiresApproval,
		&cooldown, &maxTotal, &maxPerKid, &active, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.RequiresApproval = requiresApproval != 0
	r.CooldownDays = intPtr(cooldown)
	r.MaxClaimsTotal = intPtr(maxTotal)
	r.MaxClaimsPerKid = intPtr(maxPerKid)
	r.Active = active != 0
	return &r, nil
}

const rewardCols = `id, title, description, points_cost, requires_approval, cooldown_days, max_claims_total, max_claims_per_kid, active, created_at, updated_at`

func (s *RewardStore) Create(r model.Reward) (*model.Reward, error) {
	result, err := s.db.Exec(
		`INSERT INTO rewards (title, description, points_cost, requires_approval, cooldown_days, max_claims_total, max_claims_per_kid, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Title, r.Description, r.PointsCost, boolInt(r.RequiresApproval),
		nullInt(r.CooldownDays), nullInt(r.MaxClaimsTotal), nullInt(r.MaxClaimsPerKid), boolInt(r.Active),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// List returns all rewards, active first, then by title.
func (s *RewardStore) List() ([]model.Reward, error) {
	rows, err := s.db.Query(`SELECT ` + rewardCols + ` FROM rewards ORDER BY active DESC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (s *RewardStore) Update(id int64, r model.Reward) (*model.Reward, error) {
	_, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, points_cost = ?, requires_approval = ?, cooldown_days = ?, max_claims_total = ?, max_claims_per_kid = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		r.Title, r.Description, r.PointsCost, boolInt(r.RequiresApproval),
		nullInt(r.CooldownDays), nullInt(r.MaxClaimsTotal), nullInt(r.MaxClaimsPerKid), boolInt(r.Active), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes a reward that was never claimed. Claims are permanent
// ledger-linked history (and pending ones hold deducted points), so a
// claimed reward is refused and should be deactivated instead.
func (s *RewardStore) Delete(id int64) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRow(`SELECT COUNT(*) FROM reward_claims WHERE reward_id = ?`, id).Scan(&n)
		if err != nil {
			return fmt.Errorf("check reward claims: %w", err)
		}
		if n > 0 {
			return domain.Errf(domain.CodeInvalidTransition, "reward %d has claims; deactivate it instead", id)
		}
		if _, err := tx.Exec(`DELETE FROM rewards WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete reward: %w", err)
		}
		return nil
	})
}

// --- claims ---

func scanClaim(scanner interface{ Scan(...any) error }) (*model.RewardClaim, error) {
	var c model.RewardClaim
	var expiresAt, approvedAt sql.NullTime
	var approvedBy sql.NullInt64

	err := scanner.Scan(
		&c.ID, &c.RewardID, &c.UserID, &c.PointsSpent, &c.Status, &c.ClaimedAt,
		&expiresAt, &approvedBy, &approvedAt, &c.RejectionReason,
	)
	if err != nil {
		return nil, err
	}

	c.ExpiresAt = timePtr(expiresAt)
	c.ApprovedBy = int64Ptr(approvedBy)
	c.ApprovedAt = timePtr(approvedAt)
	return &c, nil
}

const claimCols = `id, reward_id, user_id, points_spent, status, claimed_at, expires_at, approved_by, approved_at, rejection_reason`

// CreateClaim inserts a claim and posts its optimistic points deduction in
// one transaction. The debit entry's claim back-reference is filled in with
// the new claim id before it is applied.
func (s *RewardStore) CreateClaim(c model.RewardClaim, debit model.PointsEntry) (*model.RewardClaim, error) {
	var id int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`INSERT INTO reward_claims (reward_id, user_id, points_spent, status, claimed_at, expires_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.RewardID, c.UserID, c.PointsSpent, string(c.Status), c.ClaimedAt, nullTime(c.ExpiresAt),
		)
		if err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		debit.ClaimID = &id
		return applyEntry(tx, debit, false)
	})
	if err != nil {
		return nil, err
	}
	return s.GetClaimByID(id)
}

func (s *RewardStore) GetClaimByID(id int64) (*model.RewardClaim, error) {
	row := s.db.QueryRow(`SELECT `+claimCols+` FROM reward_claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

func (s *RewardStore) ListClaimsByUser(userID int64) ([]model.RewardClaim, error) {
	return s.listClaims(`SELECT `+claimCols+` FROM reward_claims WHERE user_id = ? ORDER BY claimed_at DESC`, userID)
}

func (s *RewardStore) ListClaimsByReward(rewardID int64) ([]model.RewardClaim, error) {
	return s.listClaims(`SELECT `+claimCols+` FROM reward_claims WHERE reward_id = ? ORDER BY claimed_at DESC`, rewardID)
}

// ListExpiredPending returns pending claims whose approval window has passed.
func (s *RewardStore) ListExpiredPending(now time.Time) ([]model.RewardClaim, error) {
	return s.listClaims(
		`SELECT `+claimCols+` FROM reward_claims
		 WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY id ASC`,
		now,
	)
}

func (s *RewardStore) listClaims(query string, args ...any) ([]model.RewardClaim, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []model.RewardClaim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// CountClaims counts a reward's non-rejected claims, optionally for one user.
// Rejected and expired claims refunded their points and do not consume limits.
func (s *RewardStore) CountClaims(rewardID int64, userID *int64) (int, error) {
	query := `SELECT COUNT(*) FROM reward_claims WHERE reward_id = ? AND status != 'rejected'`
	args := []any{rewardID}
	if userID != nil {
		query += ` AND user_id = ?`
		args = append(args, *userID)
	}

	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}

// LastClaimAt returns the most recent non-rejected claim time for the
// (reward, user) pair, or nil if there is none. Selecting the column rather
// than MAX() keeps the driver's time decoding; an aggregate comes back as
// bare text.
func (s *RewardStore) LastClaimAt(rewardID, userID int64) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRow(
		`SELECT claimed_at FROM reward_claims
		 WHERE reward_id = ? AND user_id = ? AND status != 'rejected'
		 ORDER BY claimed_at DESC LIMIT 1`,
		rewardID, userID,
	).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last claim time: %w", err)
	}
	return &at, nil
}

// ApproveClaim resolves a pending claim. Points were deducted at claim time,
// so no ledger action happens here.
func (s *RewardStore) ApproveClaim(id, approverID int64, at time.Time) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE reward_claims
		 SET status = 'approved', approved_by = ?, approved_at = ?, expires_at = NULL
		 WHERE id = ? AND status = 'pending'`,
		approverID, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("approve claim: %w", err)
	}
	return oneRow(result)
}

// RejectClaim finalizes a pending claim as rejected and refunds its points in
// one transaction. approved_by records whoever resolved the claim.
func (s *RewardStore) RejectClaim(id, resolverID int64, at time.Time, reason string, refund model.PointsEntry) (bool, error) {
	applied := false
	err := withTx(s.db, func(tx *sql.Tx) error {
		applied = false
		result, err := tx.Exec(
			`UPDATE reward_claims
			 SET status = 'rejected', approved_by = ?, approved_at = ?, rejection_reason = ?
			 WHERE id = ? AND status = 'pending'`,
			resolverID, at, reason, id,
		)
		if err != nil {
			return fmt.Errorf("reject claim: %w", err)
		}
		ok, err := oneRow(result)
		if err != nil || !ok {
			return err
		}
		if err := applyEntry(tx, refund, true); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// errStaleClaim forces a rollback when the claim was resolved or removed
// between the caller's read and this transaction.
var errStaleClaim = errors.New("claim no longer pending")

// DeleteClaim removes a pending claim entirely (user unclaim) and refunds its
// points in one transaction. The refund posts before the delete so its claim
// back-reference passes the foreign key; if the claim turns out to be gone,
// the whole transaction rolls back and the refund never lands. The surviving
// history entries have their claim reference nulled by the foreign key.
func (s *RewardStore) DeleteClaim(id, userID int64, refund model.PointsEntry) (bool, error) {
	err := withTx(s.db, func(tx *sql.Tx) error {
		if err := applyEntry(tx, refund, true); err != nil {
			return err
		}
		result, err := tx.Exec(
			`DELETE FROM reward_claims WHERE id = ? AND user_id = ? AND status = 'pending'`,
			id, userID,
		)
		if err != nil {
			return fmt.Errorf("delete claim: %w", err)
		}
		ok, err := oneRow(result)
		if err != nil {
			return err
		}
		if !ok {
			return errStaleClaim
		}
		return nil
	})
	if errors.Is(err, errStaleClaim) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
