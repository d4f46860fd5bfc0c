// Package chore contains the instance generator and the instance lifecycle
// manager: turning recurrence patterns into dated instances, and walking each
// instance through assigned, claimed, approved, rejected, and missed.
package chore

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tillgrange/choreboard/internal/domain"
	"github.com/tillgrange/choreboard/internal/model"
	"github.com/tillgrange/choreboard/internal/recurrence"
	"github.com/tillgrange/choreboard/internal/store"
)

// DefaultLookaheadMonths is how far past the current month routine generation
// reaches: the window ends on the last day of the month this many months out.
const DefaultLookaheadMonths = 2

type Generator struct {
	chores    *store.ChoreStore
	instances *store.InstanceStore
	sink      domain.Sink
	logger    *slog.Logger
	months    int
	now       func() time.Time
}

func NewGenerator(chores *store.ChoreStore, instances *store.InstanceStore, sink domain.Sink, logger *slog.Logger) *Generator {
	return &Generator{
		chores:    chores,
		instances: instances,
		sink:      sink,
		logger:    logger,
		months:    DefaultLookaheadMonths,
		now:       time.Now,
	}
}

// SetLookaheadMonths overrides the routine generation window length.
func (g *Generator) SetLookaheadMonths(months int) {
	if months > 0 {
		g.months = months
	}
}

// windowEnd is the last day of the month g.months calendar months after
// today. Recomputed on every pass, never cached.
func (g *Generator) windowEnd(today time.Time) time.Time {
	return time.Date(today.Year(), today.Month()+time.Month(g.months)+1, 0, 0, 0, 0, 0, time.UTC)
}

// Generate materializes instances for one chore. from and to default to
// today and the routine look-ahead window end. Only newly created instances
// are returned: a slot that already has an instance is skipped, so repeated
// runs over overlapping ranges create nothing new.
func (g *Generator) Generate(choreID int64, from, to *time.Time) ([]model.ChoreInstance, error) {
	c, err := g.chores.GetByID(choreID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.Errf(domain.CodeNotFound, "chore %d not found", choreID)
	}

	today := recurrence.Day(g.now())
	start := today
	if from != nil {
		start = recurrence.Day(*from)
	}
	end := g.windowEnd(today)
	if to != nil {
		end = recurrence.Day(*to)
	}
	return g.generateChore(c, start, end)
}

// GenerateAll runs routine generation for every active chore and returns the
// number of instances created. A chore with an invalid pattern is logged and
// skipped rather than aborting the pass.
func (g *Generator) GenerateAll() (int, error) {
	chores, err := g.chores.ListActive()
	if err != nil {
		return 0, err
	}

	today := recurrence.Day(g.now())
	end := g.windowEnd(today)

	created := 0
	for i := range chores {
		instances, err := g.generateChore(&chores[i], today, end)
		if err != nil {
			if domain.HasCode(err, domain.CodePatternInvalid) {
				g.logger.Error("skipping chore with invalid pattern",
					"chore_id", chores[i].ID, "pattern", chores[i].Recurrence, "error", err)
				continue
			}
			return created, err
		}
		created += len(instances)
	}
	return created, nil
}

// Regenerate rebuilds a chore's future schedule after its recurrence or
// assignment set changed: still-assigned instances due today or later are
// deleted, resolved instances stay untouched, and the standard window is
// generated fresh.
func (g *Generator) Regenerate(choreID int64) ([]model.ChoreInstance, error) {
	c, err := g.chores.GetByID(choreID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.Errf(domain.CodeNotFound, "chore %d not found", choreID)
	}

	today := recurrence.Day(g.now())
	deleted, err := g.instances.DeletePendingFrom(choreID, today)
	if err != nil {
		return nil, err
	}
	if deleted > 0 {
		g.logger.Info("regeneration removed pending instances", "chore_id", choreID, "count", deleted)
	}
	return g.generateChore(c, today, g.windowEnd(today))
}

func (g *Generator) generateChore(c *model.Chore, from, to time.Time) ([]model.ChoreInstance, error) {
	if !c.Active {
		return nil, nil
	}

	pattern, err := recurrence.Parse(c.Recurrence)
	if err != nil {
		return nil, err
	}

	// Clamp to the chore's own date bounds.
	if c.StartDate != nil && recurrence.Day(*c.StartDate).After(from) {
		from = recurrence.Day(*c.StartDate)
	}
	if c.EndDate != nil && recurrence.Day(*c.EndDate).Before(to) {
		to = recurrence.Day(*c.EndDate)
	}

	targets := g.targets(c)

	// A non-repeating chore with no start date is claimable anytime: one
	// undated instance per target, re-created only after the previous one
	// resolves.
	if pattern.Kind() == recurrence.KindNone && c.StartDate == nil {
		var created []model.ChoreInstance
		for _, target := range targets {
			open, err := g.instances.HasOpenAnytime(c.ID, target)
			if err != nil {
				return created, err
			}
			if open {
				continue
			}
			inst, err := g.createInstance(c, nil, target)
			if err != nil {
				return created, err
			}
			created = append(created, *inst)
		}
		return created, nil
	}

	dates := pattern.Dates(from, to, c.StartDate)

	var created []model.ChoreInstance
	for _, date := range dates {
		for _, target := range targets {
			due := date
			exists, err := g.instances.Exists(c.ID, &due, target)
			if err != nil {
				return created, err
			}
			if exists {
				continue
			}
			inst, err := g.createInstance(c, &due, target)
			if err != nil {
				return created, err
			}
			created = append(created, *inst)
		}
	}
	return created, nil
}

// targets returns the assigned_to values to generate for: each assignee for
// individual chores, a single nil for shared ones.
func (g *Generator) targets(c *model.Chore) []*int64 {
	if c.AssignmentType == model.AssignmentShared {
		return []*int64{nil}
	}
	targets := make([]*int64, 0, len(c.AssigneeIDs))
	for i := range c.AssigneeIDs {
		targets = append(targets, &c.AssigneeIDs[i])
	}
	return targets
}

func (g *Generator) createInstance(c *model.Chore, due *time.Time, assignedTo *int64) (*model.ChoreInstance, error) {
	inst, err := g.instances.Create(c.ID, due, assignedTo)
	if err != nil {
		return nil, fmt.Errorf("create instance for chore %d: %w", c.ID, err)
	}

	fields := map[string]any{"chore_id": c.ID}
	if due != nil {
		fields["due_date"] = due.Format("2006-01-02")
	}
	if assignedTo != nil {
		fields["assigned_to"] = *assignedTo
	}
	g.sink.Publish(domain.Event{Type: domain.EventInstanceCreated, Entity: "instance", ID: inst.ID, Fields: fields})
	return inst, nil
}
