package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tillgrange/choreboard/internal/model"
	"github.com/tillgrange/choreboard/internal/points"
	"github.com/tillgrange/choreboard/internal/store"
)

type UserHandler struct {
	users  *store.UserStore
	ledger *points.Ledger
	logger *slog.Logger
}

func NewUserHandler(users *store.UserStore, ledger *points.Ledger, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, ledger: ledger, logger: logger}
}

type userRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	role := model.Role(req.Role)
	if role != model.RoleParent && role != model.RoleKid {
		badRequest(w, "role must be parent or kid")
		return
	}

	user, err := h.users.Create(req.Name, role)
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	if err := h.users.Deactivate(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustRequest struct {
	Delta   int    `json:"delta"`
	Reason  string `json:"reason"`
	ActorID int64  `json:"actor_id"`
}

// AdjustPoints applies a manual points correction. Only a parent may do it,
// and the balance may go negative.
func (h *UserHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.Delta == 0 {
		badRequest(w, "delta must be non-zero")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		badRequest(w, "reason is required")
		return
	}

	user, err := h.ledger.Adjust(id, req.Delta, req.Reason, req.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) PointsHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	entries, err := h.ledger.History(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.PointsEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// VerifyPoints recomputes the user's balance from the ledger and reports
// whether the cached value matches. Mismatches are surfaced, never repaired.
func (h *UserHandler) VerifyPoints(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	ok, err := h.ledger.Verify(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "consistent": ok})
}
