package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tillgrange/choreboard/internal/chore"
	"github.com/tillgrange/choreboard/internal/model"
	"github.com/tillgrange/choreboard/internal/store"
)

type InstanceHandler struct {
	instances *store.InstanceStore
	lifecycle *chore.Lifecycle
	logger    *slog.Logger
}

func NewInstanceHandler(instances *store.InstanceStore, lifecycle *chore.Lifecycle, logger *slog.Logger) *InstanceHandler {
	return &InstanceHandler{instances: instances, lifecycle: lifecycle, logger: logger}
}

func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	var f store.Filter

	q := r.URL.Query()
	if v := q.Get("chore_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid chore_id")
			return
		}
		f.ChoreID = id
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(w, "invalid user_id")
			return
		}
		f.UserID = id
	}
	if v := q.Get("status"); v != "" {
		f.Status = model.InstanceStatus(v)
	}

	instances, err := h.instances.List(f)
	if err != nil {
		writeError(w, err)
		return
	}
	if instances == nil {
		instances = []model.ChoreInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	inst, err := h.instances.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if inst == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "instance not found"})
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type claimRequest struct {
	UserID int64 `json:"user_id"`
}

func (h *InstanceHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	inst, err := h.lifecycle.Claim(id, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (h *InstanceHandler) Unclaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	inst, err := h.lifecycle.Unclaim(id, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type approveRequest struct {
	ActorID        int64 `json:"actor_id"`
	PointsOverride *int  `json:"points_override"`
}

func (h *InstanceHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.PointsOverride != nil && *req.PointsOverride < 0 {
		badRequest(w, "points_override must be >= 0")
		return
	}

	inst, err := h.lifecycle.Approve(id, req.ActorID, req.PointsOverride)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type rejectRequest struct {
	ActorID int64  `json:"actor_id"`
	Reason  string `json:"reason"`
}

func (h *InstanceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	inst, err := h.lifecycle.Reject(id, req.ActorID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type reassignRequest struct {
	UserID  int64 `json:"user_id"`
	ActorID int64 `json:"actor_id"`
}

func (h *InstanceHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req reassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	inst, err := h.lifecycle.Reassign(id, req.UserID, req.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}
