package chore

import (
	"testing"
	"time"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
)

func TestClaimAndApprove(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	parent := env.createUser(t, "Astrid", model.RoleParent)
	c := env.createChore(t, model.Chore{Points: 5, AssigneeIDs: []int64{kid.ID}})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)

	claimed, err := env.lifecycle.Claim(inst.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != model.StatusClaimed {
		t.Errorf("status = %q, want %q", claimed.Status, model.StatusClaimed)
	}
	if claimed.ClaimedLate {
		t.Error("on-time claim flagged late")
	}

	approved, err := env.lifecycle.Approve(inst.ID, parent.ID, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("status = %q, want %q", approved.Status, model.StatusApproved)
	}
	if approved.PointsAwarded == nil || *approved.PointsAwarded != 5 {
		t.Errorf("points_awarded = %v, want 5", approved.PointsAwarded)
	}

	u, _ := env.users.GetByID(kid.ID)
	if u.Points != 5 {
		t.Errorf("balance = %d, want 5", u.Points)
	}
}

func TestClaimNotYetDue(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	c := env.createChore(t, model.Chore{AssigneeIDs: []int64{kid.ID}})

	due := date(2025, time.March, 4)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)

	_, err := env.lifecycle.Claim(inst.ID, kid.ID)
	if !domain.HasCode(err, domain.CodeNotYetDue) {
		t.Fatalf("expected not_yet_due, got %v", err)
	}
}

func TestClaimPastDeadline(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 5))
	kid := env.createUser(t, "Maja", model.RoleKid)
	c := env.createChore(t, model.Chore{AssigneeIDs: []int64{kid.ID}}) // late claims off

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)

	_, err := env.lifecycle.Claim(inst.ID, kid.ID)
	if !domain.HasCode(err, domain.CodePastDeadline) {
		t.Fatalf("expected past_deadline, got %v", err)
	}
}

func TestLateClaimUsesLatePoints(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 5))
	kid := env.createUser(t, "Maja", model.RoleKid)
	parent := env.createUser(t, "Astrid", model.RoleParent)
	late := 4
	c := env.createChore(t, model.Chore{
		Points:          10,
		AllowLateClaims: true,
		LatePoints:      &late,
		AssigneeIDs:     []int64{kid.ID},
	})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)

	claimed, err := env.lifecycle.Claim(inst.ID, kid.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed.ClaimedLate {
		t.Error("expected claim to be flagged late")
	}

	approved, err := env.lifecycle.Approve(inst.ID, parent.ID, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.PointsAwarded == nil || *approved.PointsAwarded != 4 {
		t.Errorf("points_awarded = %v, want 4", approved.PointsAwarded)
	}
}

func TestApproveOverrideWins(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	parent := env.createUser(t, "Astrid", model.RoleParent)
	c := env.createChore(t, model.Chore{Points: 5, AssigneeIDs: []int64{kid.ID}})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)
	env.lifecycle.Claim(inst.ID, kid.ID)

	override := 8
	approved, err := env.lifecycle.Approve(inst.ID, parent.ID, &override)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.PointsAwarded == nil || *approved.PointsAwarded != 8 {
		t.Errorf("points_awarded = %v, want 8", approved.PointsAwarded)
	}
}

func TestClaimForbiddenForOtherKid(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	other := env.createUser(t, "Otto", model.RoleKid)
	c := env.createChore(t, model.Chore{AssigneeIDs: []int64{kid.ID}})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)

	_, err := env.lifecycle.Claim(inst.ID, other.ID)
	if !domain.HasCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSharedClaimFirstWins(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	a := env.createUser(t, "Maja", model.RoleKid)
	b := env.createUser(t, "Otto", model.RoleKid)
	c := env.createChore(t, model.Chore{
		AssignmentType: model.AssignmentShared,
		AssigneeIDs:    []int64{a.ID, b.ID},
	})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, nil)

	if _, err := env.lifecycle.Claim(inst.ID, a.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := env.lifecycle.Claim(inst.ID, b.ID)
	if !domain.HasCode(err, domain.CodeAlreadyClaimed) {
		t.Fatalf("expected already_claimed, got %v", err)
	}
}

func TestSharedClaimOutsideSetForbidden(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	a := env.createUser(t, "Maja", model.RoleKid)
	stranger := env.createUser(t, "Nils", model.RoleKid)
	c := env.createChore(t, model.Chore{
		AssignmentType: model.AssignmentShared,
		AssigneeIDs:    []int64{a.ID},
	})

	inst, _ := env.instances.Create(c.ID, nil, nil)
	_, err := env.lifecycle.Claim(inst.ID, stranger.ID)
	if !domain.HasCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUnclaimReturnsToAssigned(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	other := env.createUser(t, "Otto", model.RoleKid)
	c := env.createChore(t, model.Chore{AssigneeIDs: []int64{kid.ID}})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)
	env.lifecycle.Claim(inst.ID, kid.ID)

	if _, err := env.lifecycle.Unclaim(inst.ID, other.ID); !domain.HasCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden for non-claimer, got %v", err)
	}

	back, err := env.lifecycle.Unclaim(inst.ID, kid.ID)
	if err != nil {
		t.Fatalf("unclaim: %v", err)
	}
	if back.Status != model.StatusAssigned {
		t.Errorf("status = %q, want %q", back.Status, model.StatusAssigned)
	}
	if back.ClaimedBy != nil {
		t.Error("expected claimed_by cleared")
	}
}

func TestSelfApprovalForbidden(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	parent := env.createUser(t, "Astrid", model.RoleParent)
	c := env.createChore(t, model.Chore{Points: 5, AssigneeIDs: []int64{parent.ID}})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &parent.ID)
	env.lifecycle.Claim(inst.ID, parent.ID)

	_, err := env.lifecycle.Approve(inst.ID, parent.ID, nil)
	if !domain.HasCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden for self-approval, got %v", err)
	}
}

func TestKidCannotApprove(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	other := env.createUser(t, "Otto", model.RoleKid)
	c := env.createChore(t, model.Chore{AssigneeIDs: []int64{kid.ID}})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)
	env.lifecycle.Claim(inst.ID, kid.ID)

	_, err := env.lifecycle.Approve(inst.ID, other.ID, nil)
	if !domain.HasCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRejectThenReclaim(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	parent := env.createUser(t, "Astrid", model.RoleParent)
	c := env.createChore(t, model.Chore{Points: 5, AllowLateClaims: true, AssigneeIDs: []int64{kid.ID}})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)
	env.lifecycle.Claim(inst.ID, kid.ID)

	rejected, err := env.lifecycle.Reject(inst.ID, parent.ID, "still dirty")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != model.StatusRejected {
		t.Errorf("status = %q, want %q", rejected.Status, model.StatusRejected)
	}
	if rejected.RejectionReason != "still dirty" {
		t.Errorf("reason = %q, want %q", rejected.RejectionReason, "still dirty")
	}

	// No points moved on rejection
	u, _ := env.users.GetByID(kid.ID)
	if u.Points != 0 {
		t.Errorf("balance = %d, want 0", u.Points)
	}

	// The kid may redo the work and claim again, even days later
	env.freeze(date(2025, time.March, 6))
	reclaimed, err := env.lifecycle.Claim(inst.ID, kid.ID)
	if err != nil {
		t.Fatalf("re-claim: %v", err)
	}
	if reclaimed.Status != model.StatusClaimed {
		t.Errorf("status = %q, want %q", reclaimed.Status, model.StatusClaimed)
	}
}

func TestReassign(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	other := env.createUser(t, "Otto", model.RoleKid)
	parent := env.createUser(t, "Astrid", model.RoleParent)
	c := env.createChore(t, model.Chore{AssigneeIDs: []int64{kid.ID}})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)

	if _, err := env.lifecycle.Reassign(inst.ID, other.ID, kid.ID); !domain.HasCode(err, domain.CodeForbidden) {
		t.Fatalf("expected forbidden for kid actor, got %v", err)
	}

	moved, err := env.lifecycle.Reassign(inst.ID, other.ID, parent.ID)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if moved.AssignedTo == nil || *moved.AssignedTo != other.ID {
		t.Errorf("assigned_to = %v, want %d", moved.AssignedTo, other.ID)
	}

	// The new kid joined the assignment set and can claim
	got, _ := env.chores.GetByID(c.ID)
	if !got.AssignedTo(other.ID) {
		t.Error("expected new assignee in the chore's assignment set")
	}
	if _, err := env.lifecycle.Claim(inst.ID, other.ID); err != nil {
		t.Fatalf("claim after reassign: %v", err)
	}
}

func TestMarkMissedSweep(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 5))
	kid := env.createUser(t, "Maja", model.RoleKid)
	strict := env.createChore(t, model.Chore{Title: "Trash", AssigneeIDs: []int64{kid.ID}})
	lenient := env.createChore(t, model.Chore{Title: "Laundry", AllowLateClaims: true, AssigneeIDs: []int64{kid.ID}})

	overdue := date(2025, time.March, 3)
	i1, _ := env.instances.Create(strict.ID, &overdue, &kid.ID)
	i2, _ := env.instances.Create(lenient.ID, &overdue, &kid.ID)

	missed, err := env.lifecycle.MarkMissedSweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if missed != 1 {
		t.Errorf("missed = %d, want 1", missed)
	}

	got, _ := env.instances.GetByID(i1.ID)
	if got.Status != model.StatusMissed {
		t.Errorf("strict chore status = %q, want %q", got.Status, model.StatusMissed)
	}
	got, _ = env.instances.GetByID(i2.ID)
	if got.Status != model.StatusAssigned {
		t.Errorf("lenient chore status = %q, want %q", got.Status, model.StatusAssigned)
	}
}

func TestAutoApproveSweep(t *testing.T) {
	env := setupTestEnv(t)
	env.freeze(date(2025, time.March, 3))
	kid := env.createUser(t, "Maja", model.RoleKid)
	hours := 24
	c := env.createChore(t, model.Chore{
		Points:                5,
		AutoApproveAfterHours: &hours,
		AssigneeIDs:           []int64{kid.ID},
	})

	due := date(2025, time.March, 3)
	inst, _ := env.instances.Create(c.ID, &due, &kid.ID)
	env.lifecycle.Claim(inst.ID, kid.ID)

	// Too early: nothing approved
	env.freeze(date(2025, time.March, 3).Add(23 * time.Hour))
	n, err := env.lifecycle.AutoApproveSweep()
	if err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("approved = %d, want 0", n)
	}

	// Past the threshold: the system actor approves and credits
	env.freeze(date(2025, time.March, 3).Add(25 * time.Hour))
	n, err = env.lifecycle.AutoApproveSweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("approved = %d, want 1", n)
	}

	got, _ := env.instances.GetByID(inst.ID)
	if got.Status != model.StatusApproved {
		t.Errorf("status = %q, want %q", got.Status, model.StatusApproved)
	}
	system, _ := env.users.GetSystem()
	if got.ApprovedBy == nil || *got.ApprovedBy != system.ID {
		t.Errorf("approved_by = %v, want system user %d", got.ApprovedBy, system.ID)
	}
	u, _ := env.users.GetByID(kid.ID)
	if u.Points != 5 {
		t.Errorf("balance = %d, want 5", u.Points)
	}
}
