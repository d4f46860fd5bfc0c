package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/tillgrange/choreboard/internal/chore"
	"github.com/tillgrange/choreboard/internal/model"
	"github.com/tillgrange/choreboard/internal/recurrence"
	"github.com/tillgrange/choreboard/internal/store"
)

type ChoreHandler struct {
	chores    *store.ChoreStore
	generator *chore.Generator
	logger    *slog.Logger
}

func NewChoreHandler(chores *store.ChoreStore, generator *chore.Generator, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: chores, generator: generator, logger: logger}
}

type choreRequest struct {
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	Points                int        `json:"points"`
	Recurrence            string     `json:"recurrence"`
	AssignmentType        string     `json:"assignment_type"`
	StartDate             *time.Time `json:"start_date"`
	EndDate               *time.Time `json:"end_date"`
	AllowLateClaims       bool       `json:"allow_late_claims"`
	LatePoints            *int       `json:"late_points"`
	AutoApproveAfterHours *int       `json:"auto_approve_after_hours"`
	Active                *bool      `json:"active"`
	AssigneeIDs           []int64    `json:"assignee_ids"`
}

func (req *choreRequest) validate() (model.Chore, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return model.Chore{}, "title is required"
	}
	if req.Points < 0 {
		return model.Chore{}, "points must be >= 0"
	}
	at := model.AssignmentType(req.AssignmentType)
	if at != model.AssignmentIndividual && at != model.AssignmentShared {
		return model.Chore{}, "assignment_type must be individual or shared"
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return model.Chore{}, "end_date must not be before start_date"
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.Chore{
		Title:                 req.Title,
		Description:           req.Description,
		Points:                req.Points,
		Recurrence:            req.Recurrence,
		AssignmentType:        at,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		AllowLateClaims:       req.AllowLateClaims,
		LatePoints:            req.LatePoints,
		AutoApproveAfterHours: req.AutoApproveAfterHours,
		Active:                active,
		AssigneeIDs:           req.AssigneeIDs,
	}, ""
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	c, msg := req.validate()
	if msg != "" {
		badRequest(w, msg)
		return
	}
	if _, err := recurrence.Parse(req.Recurrence); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.chores.Create(c)
	if err != nil {
		h.logger.Error("create chore", "error", err)
		writeError(w, err)
		return
	}

	// Fill the look-ahead window right away; the daily sweep only extends it.
	if _, err := h.generator.Generate(created.ID, nil, nil); err != nil {
		h.logger.Error("generate instances", "chore_id", created.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.chores.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	c, err := h.chores.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	existing, err := h.chores.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}

	var req choreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	c, msg := req.validate()
	if msg != "" {
		badRequest(w, msg)
		return
	}
	if _, err := recurrence.Parse(req.Recurrence); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.chores.Update(id, c)
	if err != nil {
		h.logger.Error("update chore", "chore_id", id, "error", err)
		writeError(w, err)
		return
	}

	// A changed schedule or assignment set invalidates future pending
	// instances; resolved history is never touched.
	if scheduleChanged(existing, updated) {
		if _, err := h.generator.Regenerate(id); err != nil {
			h.logger.Error("regenerate instances", "chore_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, updated)
}

func scheduleChanged(old, new *model.Chore) bool {
	if old.Recurrence != new.Recurrence || old.AssignmentType != new.AssignmentType {
		return true
	}
	if !equalDatePtr(old.StartDate, new.StartDate) || !equalDatePtr(old.EndDate, new.EndDate) {
		return true
	}
	oldIDs := slices.Clone(old.AssigneeIDs)
	newIDs := slices.Clone(new.AssigneeIDs)
	slices.Sort(oldIDs)
	slices.Sort(newIDs)
	return !slices.Equal(oldIDs, newIDs)
}

func equalDatePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	existing, err := h.chores.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "chore not found"})
		return
	}

	if err := h.chores.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Regenerate drops the chore's future pending instances and rebuilds the
// look-ahead window from today.
func (h *ChoreHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	instances, err := h.generator.Regenerate(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if instances == nil {
		instances = []model.ChoreInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}
