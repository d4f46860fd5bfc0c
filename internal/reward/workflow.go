// Package reward implements the reward claim workflow: affordability and
// limit checks, optimistic points deduction, optional parent approval with a
// time-boxed window, and refunds on rejection, expiration, or unclaim.
package reward

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
	"github.com/tillgrange/choreboard/internal/store"
)

// DefaultPendingTTL is how long a claim may sit awaiting approval before the
// expiration sweep rejects it.
const DefaultPendingTTL = 7 * 24 * time.Hour

type Workflow struct {
	rewards    *store.RewardStore
	users      *store.UserStore
	sink       domain.Sink
	logger     *slog.Logger
	pendingTTL time.Duration
	now        func() time.Time
}

func NewWorkflow(rewards *store.RewardStore, users *store.UserStore, sink domain.Sink, logger *slog.Logger) *Workflow {
	return &Workflow{
		rewards:    rewards,
		users:      users,
		sink:       sink,
		logger:     logger,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
	}
}

// SetPendingTTL overrides the approval window for pending claims.
func (w *Workflow) SetPendingTTL(ttl time.Duration) {
	if ttl > 0 {
		w.pendingTTL = ttl
	}
}

// Claim validates and creates a reward claim, deducting the points
// immediately. Checks run in a fixed order (active, balance, per-kid limit,
// total limit, cooldown) and the first failure is the reason returned.
func (w *Workflow) Claim(rewardID, userID int64) (*model.RewardClaim, error) {
	r, err := w.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, domain.Errf(domain.CodeNotFound, "reward %d not found", rewardID)
	}
	user, err := w.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.Errf(domain.CodeNotFound, "user %d not found", userID)
	}

	if !r.Active {
		return nil, domain.Errf(domain.CodeInvalidTransition, "reward %q is not active", r.Title)
	}
	if user.Points < r.PointsCost {
		return nil, domain.Errf(domain.CodeInsufficientPoints, "reward costs %d points, balance is %d", r.PointsCost, user.Points)
	}
	if r.MaxClaimsPerKid != nil {
		n, err := w.rewards.CountClaims(rewardID, &userID)
		if err != nil {
			return nil, err
		}
		if n >= *r.MaxClaimsPerKid {
			return nil, domain.Errf(domain.CodeLimitExceeded, "reward %q already claimed %d times by this user", r.Title, n)
		}
	}
	if r.MaxClaimsTotal != nil {
		n, err := w.rewards.CountClaims(rewardID, nil)
		if err != nil {
			return nil, err
		}
		if n >= *r.MaxClaimsTotal {
			return nil, domain.Errf(domain.CodeLimitExceeded, "reward %q has no claims left", r.Title)
		}
	}
	now := w.now()
	if r.CooldownDays != nil {
		last, err := w.rewards.LastClaimAt(rewardID, userID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			ready := last.Add(time.Duration(*r.CooldownDays) * 24 * time.Hour)
			if now.Before(ready) {
				return nil, domain.Errf(domain.CodeLimitExceeded, "reward %q is on cooldown until %s", r.Title, ready.Format("2006-01-02"))
			}
		}
	}

	claim := model.RewardClaim{
		RewardID:    rewardID,
		UserID:      userID,
		PointsSpent: r.PointsCost,
		Status:      model.ClaimApproved,
		ClaimedAt:   now,
	}
	if r.RequiresApproval {
		claim.Status = model.ClaimPending
		expires := now.Add(w.pendingTTL)
		claim.ExpiresAt = &expires
	}

	debit := model.PointsEntry{
		UserID:         userID,
		Delta:          -r.PointsCost,
		Reason:         "Reward claimed: " + r.Title,
		CreatedBy:      userID,
		IdempotencyKey: uuid.NewString(),
	}
	created, err := w.rewards.CreateClaim(claim, debit)
	if err != nil {
		return nil, err
	}

	w.sink.Publish(domain.Event{
		Type:   domain.EventRewardClaimed,
		Entity: "reward_claim",
		ID:     created.ID,
		Fields: map[string]any{"reward_id": rewardID, "user_id": userID, "status": string(created.Status)},
	})
	w.sink.Publish(domain.Event{
		Type:   domain.EventPointsChanged,
		Entity: "user",
		ID:     userID,
		Fields: map[string]any{"delta": -r.PointsCost, "reason": debit.Reason},
	})
	return created, nil
}

// Approve resolves a pending claim. The points were already deducted at
// claim time, so the ledger is untouched.
func (w *Workflow) Approve(claimID, approverID int64) (*model.RewardClaim, error) {
	claim, err := w.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if err := w.requireApprover(approverID); err != nil {
		return nil, err
	}
	if claim.Status != model.ClaimPending {
		return nil, domain.Errf(domain.CodeInvalidTransition, "cannot approve a %s claim", claim.Status)
	}

	ok, err := w.rewards.ApproveClaim(claimID, approverID, w.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errf(domain.CodeInvalidTransition, "claim %d is no longer pending", claimID)
	}

	updated, err := w.rewards.GetClaimByID(claimID)
	if err != nil {
		return nil, err
	}
	w.sink.Publish(domain.Event{
		Type:   domain.EventRewardApproved,
		Entity: "reward_claim",
		ID:     claimID,
		Fields: map[string]any{"approved_by": approverID},
	})
	return updated, nil
}

// Reject resolves a pending claim as denied and refunds the snapshot the kid
// paid, in one atomic unit.
func (w *Workflow) Reject(claimID, approverID int64, reason string) (*model.RewardClaim, error) {
	claim, err := w.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if err := w.requireApprover(approverID); err != nil {
		return nil, err
	}
	if claim.Status != model.ClaimPending {
		return nil, domain.Errf(domain.CodeInvalidTransition, "cannot reject a %s claim", claim.Status)
	}

	return w.reject(claim, approverID, reason)
}

func (w *Workflow) reject(claim *model.RewardClaim, resolverID int64, reason string) (*model.RewardClaim, error) {
	refund := model.PointsEntry{
		UserID:         claim.UserID,
		Delta:          claim.PointsSpent,
		Reason:         "Reward claim refunded: " + reason,
		ClaimID:        &claim.ID,
		CreatedBy:      resolverID,
		IdempotencyKey: uuid.NewString(),
	}
	ok, err := w.rewards.RejectClaim(claim.ID, resolverID, w.now(), reason, refund)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errf(domain.CodeInvalidTransition, "claim %d is no longer pending", claim.ID)
	}

	updated, err := w.rewards.GetClaimByID(claim.ID)
	if err != nil {
		return nil, err
	}
	w.sink.Publish(domain.Event{
		Type:   domain.EventRewardRejected,
		Entity: "reward_claim",
		ID:     claim.ID,
		Fields: map[string]any{"reason": reason},
	})
	w.sink.Publish(domain.Event{
		Type:   domain.EventPointsChanged,
		Entity: "user",
		ID:     claim.UserID,
		Fields: map[string]any{"delta": claim.PointsSpent, "reason": refund.Reason},
	})
	return updated, nil
}

// Unclaim lets a kid withdraw their own pending claim: the points come back
// and the claim row is removed outright. Approved claims stay claimed.
func (w *Workflow) Unclaim(claimID, userID int64) error {
	claim, err := w.getClaim(claimID)
	if err != nil {
		return err
	}
	if claim.UserID != userID {
		return domain.Errf(domain.CodeForbidden, "claim %d does not belong to user %d", claimID, userID)
	}
	if claim.Status != model.ClaimPending {
		return domain.Errf(domain.CodeInvalidTransition, "cannot unclaim a %s claim", claim.Status)
	}

	refund := model.PointsEntry{
		UserID:         userID,
		Delta:          claim.PointsSpent,
		Reason:         "Reward claim withdrawn",
		ClaimID:        &claim.ID,
		CreatedBy:      userID,
		IdempotencyKey: uuid.NewString(),
	}
	ok, err := w.rewards.DeleteClaim(claimID, userID, refund)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Errf(domain.CodeInvalidTransition, "claim %d is no longer pending", claimID)
	}

	w.sink.Publish(domain.Event{
		Type:   domain.EventPointsChanged,
		Entity: "user",
		ID:     userID,
		Fields: map[string]any{"delta": claim.PointsSpent, "reason": refund.Reason},
	})
	return nil
}

// ExpireSweep rejects, as the system actor, every pending claim whose
// approval window has passed, refunding each. Returns how many it resolved.
func (w *Workflow) ExpireSweep() (int, error) {
	system, err := w.users.GetSystem()
	if err != nil {
		return 0, err
	}
	expired, err := w.rewards.ListExpiredPending(w.now())
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range expired {
		if _, err := w.reject(&expired[i], system.ID, "approval window expired"); err != nil {
			if domain.HasCode(err, domain.CodeInvalidTransition) {
				continue // resolved between listing and now
			}
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

func (w *Workflow) getClaim(id int64) (*model.RewardClaim, error) {
	claim, err := w.rewards.GetClaimByID(id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, domain.Errf(domain.CodeNotFound, "reward claim %d not found", id)
	}
	return claim, nil
}

func (w *Workflow) requireApprover(id int64) error {
	u, err := w.users.GetByID(id)
	if err != nil {
		return err
	}
	if u == nil {
		return domain.Errf(domain.CodeNotFound, "user %d not found", id)
	}
	if !u.IsApprover() {
		return domain.Errf(domain.CodeForbidden, "user %d cannot resolve reward claims", id)
	}
	return nil
}
