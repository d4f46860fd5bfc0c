package chore

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
	"github.com/tillgrange/choreboard/internal/recurrence"
	"github.com/tillgrange/choreboard/internal/store"
)

// Lifecycle owns the instance state machine:
//
//	assigned -> claimed -> approved | rejected
//	assigned -> missed            (time-driven only)
//	rejected -> claimed           (re-claim, no time limit)
//	claimed  -> assigned          (unclaim, before resolution)
//
// Every transition is a conditional update; approve additionally posts the
// points credit in the same transaction as the status flip.
type Lifecycle struct {
	instances *store.InstanceStore
	chores    *store.ChoreStore
	users     *store.UserStore
	sink      domain.Sink
	logger    *slog.Logger
	now       func() time.Time
}

func NewLifecycle(instances *store.InstanceStore, chores *store.ChoreStore, users *store.UserStore, sink domain.Sink, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		instances: instances,
		chores:    chores,
		users:     users,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

func (m *Lifecycle) load(instanceID int64) (*model.ChoreInstance, *model.Chore, error) {
	inst, err := m.instances.GetByID(instanceID)
	if err != nil {
		return nil, nil, err
	}
	if inst == nil {
		return nil, nil, domain.Errf(domain.CodeNotFound, "instance %d not found", instanceID)
	}
	c, err := m.chores.GetByID(inst.ChoreID)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, domain.Errf(domain.CodeNotFound, "chore %d not found", inst.ChoreID)
	}
	return inst, c, nil
}

func (m *Lifecycle) user(id int64) (*model.User, error) {
	u, err := m.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.Errf(domain.CodeNotFound, "user %d not found", id)
	}
	return u, nil
}

// Claim moves an assigned (or rejected) instance to claimed on behalf of
// userID. With two racing claimers, the first committed update wins and the
// loser gets already_claimed.
func (m *Lifecycle) Claim(instanceID, userID int64) (*model.ChoreInstance, error) {
	inst, c, err := m.load(instanceID)
	if err != nil {
		return nil, err
	}
	if _, err := m.user(userID); err != nil {
		return nil, err
	}

	switch inst.Status {
	case model.StatusAssigned, model.StatusRejected:
	case model.StatusClaimed:
		return nil, domain.Errf(domain.CodeAlreadyClaimed, "instance %d is already claimed", instanceID)
	default:
		return nil, domain.Errf(domain.CodeInvalidTransition, "cannot claim a %s instance", inst.Status)
	}

	switch c.AssignmentType {
	case model.AssignmentIndividual:
		if inst.AssignedTo == nil || *inst.AssignedTo != userID {
			return nil, domain.Errf(domain.CodeForbidden, "instance %d is not assigned to user %d", instanceID, userID)
		}
	case model.AssignmentShared:
		if !c.AssignedTo(userID) {
			return nil, domain.Errf(domain.CodeForbidden, "user %d is not in the chore's assignment set", userID)
		}
	}

	now := m.now()
	today := recurrence.Day(now)
	late := false
	if inst.DueDate != nil {
		due := recurrence.Day(*inst.DueDate)
		if due.After(today) {
			return nil, domain.Errf(domain.CodeNotYetDue, "instance %d is not due until %s", instanceID, due.Format("2006-01-02"))
		}
		late = due.Before(today)
		if late && !c.AllowLateClaims {
			// The missed sweep should already have caught this one.
			return nil, domain.Errf(domain.CodePastDeadline, "instance %d was due %s and late claims are off", instanceID, due.Format("2006-01-02"))
		}
	}

	ok, err := m.instances.Claim(instanceID, userID, now, late)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errf(domain.CodeAlreadyClaimed, "instance %d was claimed by someone else", instanceID)
	}

	inst, err = m.instances.GetByID(instanceID)
	if err != nil {
		return nil, err
	}
	m.sink.Publish(domain.Event{
		Type:   domain.EventInstanceClaimed,
		Entity: "instance",
		ID:     instanceID,
		Fields: map[string]any{"chore_id": c.ID, "claimed_by": userID, "late": late},
	})
	return inst, nil
}

// Unclaim returns a claimed instance to assigned. Only the claimer may do it,
// and only before the claim is resolved. No points are involved; none were
// awarded on claim.
func (m *Lifecycle) Unclaim(instanceID, userID int64) (*model.ChoreInstance, error) {
	inst, _, err := m.load(instanceID)
	if err != nil {
		return nil, err
	}
	if inst.Status != model.StatusClaimed {
		return nil, domain.Errf(domain.CodeInvalidTransition, "cannot unclaim a %s instance", inst.Status)
	}
	if inst.ClaimedBy == nil || *inst.ClaimedBy != userID {
		return nil, domain.Errf(domain.CodeForbidden, "instance %d was not claimed by user %d", instanceID, userID)
	}

	ok, err := m.instances.Unclaim(instanceID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errf(domain.CodeInvalidTransition, "instance %d was already resolved", instanceID)
	}
	return m.instances.GetByID(instanceID)
}

// Approve resolves a claimed instance and credits the claimer. The override,
// when non-nil, wins over the chore's configured points; otherwise a late
// claim uses the chore's late_points when defined.
func (m *Lifecycle) Approve(instanceID, approverID int64, override *int) (*model.ChoreInstance, error) {
	inst, c, err := m.load(instanceID)
	if err != nil {
		return nil, err
	}
	approver, err := m.user(approverID)
	if err != nil {
		return nil, err
	}

	if inst.Status != model.StatusClaimed || inst.ClaimedBy == nil {
		return nil, domain.Errf(domain.CodeInvalidTransition, "cannot approve a %s instance", inst.Status)
	}
	if !approver.IsApprover() {
		return nil, domain.Errf(domain.CodeForbidden, "user %d cannot approve chores", approverID)
	}
	if *inst.ClaimedBy == approverID {
		return nil, domain.Errf(domain.CodeForbidden, "claimer cannot approve their own work")
	}

	points := awardPoints(c, inst, override)
	credit := model.PointsEntry{
		UserID:         *inst.ClaimedBy,
		Delta:          points,
		Reason:         "Chore approved: " + c.Title,
		InstanceID:     &inst.ID,
		CreatedBy:      approverID,
		IdempotencyKey: uuid.NewString(),
	}

	ok, err := m.instances.Approve(instanceID, approverID, m.now(), points, credit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errf(domain.CodeInvalidTransition, "instance %d is no longer claimed", instanceID)
	}

	updated, err := m.instances.GetByID(instanceID)
	if err != nil {
		return nil, err
	}
	m.sink.Publish(domain.Event{
		Type:   domain.EventInstanceApproved,
		Entity: "instance",
		ID:     instanceID,
		Fields: map[string]any{"chore_id": c.ID, "approved_by": approverID, "points_awarded": points},
	})
	m.sink.Publish(domain.Event{
		Type:   domain.EventPointsChanged,
		Entity: "user",
		ID:     *inst.ClaimedBy,
		Fields: map[string]any{"delta": points, "reason": credit.Reason},
	})
	return updated, nil
}

// awardPoints picks the amount for an approval: explicit override, else the
// late award when the claim was late and one is configured, else the default.
func awardPoints(c *model.Chore, inst *model.ChoreInstance, override *int) int {
	if override != nil {
		return *override
	}
	if inst.ClaimedLate && c.LatePoints != nil {
		return *c.LatePoints
	}
	return c.Points
}

// Reject resolves a claimed instance as not done. No points move; none were
// awarded on claim. The kid may re-claim later.
func (m *Lifecycle) Reject(instanceID, rejecterID int64, reason string) (*model.ChoreInstance, error) {
	inst, c, err := m.load(instanceID)
	if err != nil {
		return nil, err
	}
	rejecter, err := m.user(rejecterID)
	if err != nil {
		return nil, err
	}

	if inst.Status != model.StatusClaimed || inst.ClaimedBy == nil {
		return nil, domain.Errf(domain.CodeInvalidTransition, "cannot reject a %s instance", inst.Status)
	}
	if rejecter.Role != model.RoleParent {
		return nil, domain.Errf(domain.CodeForbidden, "only a parent can reject chores")
	}
	if *inst.ClaimedBy == rejecterID {
		return nil, domain.Errf(domain.CodeForbidden, "claimer cannot reject their own work")
	}

	ok, err := m.instances.Reject(instanceID, rejecterID, *inst.ClaimedBy, m.now(), reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errf(domain.CodeInvalidTransition, "instance %d is no longer claimed", instanceID)
	}

	updated, err := m.instances.GetByID(instanceID)
	if err != nil {
		return nil, err
	}
	m.sink.Publish(domain.Event{
		Type:   domain.EventInstanceRejected,
		Entity: "instance",
		ID:     instanceID,
		Fields: map[string]any{"chore_id": c.ID, "rejected_by": rejecterID, "reason": reason},
	})
	return updated, nil
}

// Reassign hands an unclaimed individual instance to a different kid, adding
// them to the chore's assignment set if absent. Racing against a claim, the
// first committed update wins.
func (m *Lifecycle) Reassign(instanceID, newUserID, actorID int64) (*model.ChoreInstance, error) {
	inst, c, err := m.load(instanceID)
	if err != nil {
		return nil, err
	}
	actor, err := m.user(actorID)
	if err != nil {
		return nil, err
	}
	if _, err := m.user(newUserID); err != nil {
		return nil, err
	}

	if actor.Role != model.RoleParent {
		return nil, domain.Errf(domain.CodeForbidden, "only a parent can reassign chores")
	}
	if c.AssignmentType != model.AssignmentIndividual {
		return nil, domain.Errf(domain.CodeInvalidTransition, "shared chores have no per-instance assignee")
	}
	if inst.Status != model.StatusAssigned {
		return nil, domain.Errf(domain.CodeInvalidTransition, "cannot reassign a %s instance", inst.Status)
	}

	ok, err := m.instances.Reassign(instanceID, newUserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errf(domain.CodeInvalidTransition, "instance %d was claimed before reassignment", instanceID)
	}
	if err := m.chores.AddAssignee(c.ID, newUserID); err != nil {
		return nil, err
	}
	return m.instances.GetByID(instanceID)
}

// MarkMissedSweep transitions overdue assigned instances of
// no-late-claims chores to missed and returns how many it moved. Rows that
// change under the sweep (a claim landing first) are skipped silently; the
// next run sees the final state.
func (m *Lifecycle) MarkMissedSweep() (int, error) {
	today := recurrence.Day(m.now())
	candidates, err := m.instances.ListMissable(today)
	if err != nil {
		return 0, err
	}

	missed := 0
	for _, inst := range candidates {
		ok, err := m.instances.MarkMissed(inst.ID)
		if err != nil {
			return missed, err
		}
		if !ok {
			continue
		}
		missed++
		m.sink.Publish(domain.Event{
			Type:   domain.EventInstanceMissed,
			Entity: "instance",
			ID:     inst.ID,
			Fields: map[string]any{"chore_id": inst.ChoreID},
		})
	}
	return missed, nil
}

// AutoApproveSweep approves, as the system actor, every claimed instance
// whose chore-configured auto-approval delay has fully elapsed.
func (m *Lifecycle) AutoApproveSweep() (int, error) {
	system, err := m.users.GetSystem()
	if err != nil {
		return 0, err
	}
	candidates, err := m.instances.ListAutoApprovable()
	if err != nil {
		return 0, err
	}

	now := m.now()
	approved := 0
	for _, cand := range candidates {
		if cand.Instance.ClaimedAt == nil {
			continue
		}
		if now.Sub(*cand.Instance.ClaimedAt) < time.Duration(cand.AfterHours)*time.Hour {
			continue
		}
		if _, err := m.Approve(cand.Instance.ID, system.ID, nil); err != nil {
			if domain.HasCode(err, domain.CodeInvalidTransition) {
				continue // resolved by a parent between listing and now
			}
			return approved, err
		}
		approved++
	}
	return approved, nil
}
