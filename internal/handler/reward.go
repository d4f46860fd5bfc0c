package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tillgrange/choreboard/internal/model"
	"github.com/tillgrange/choreboard/internal/reward"
	"github.com/tillgrange/choreboard/internal/store"
)

type RewardHandler struct {
	rewards  *store.RewardStore
	workflow *reward.Workflow
	logger   *slog.Logger
}

func NewRewardHandler(rewards *store.RewardStore, workflow *reward.Workflow, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rewards, workflow: workflow, logger: logger}
}

type rewardRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	PointsCost       int    `json:"points_cost"`
	RequiresApproval *bool  `json:"requires_approval"`
	CooldownDays     *int   `json:"cooldown_days"`
	MaxClaimsTotal   *int   `json:"max_claims_total"`
	MaxClaimsPerKid  *int   `json:"max_claims_per_kid"`
	Active           *bool  `json:"active"`
}

func (req *rewardRequest) validate() (model.Reward, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return model.Reward{}, "title is required"
	}
	if req.PointsCost < 0 {
		return model.Reward{}, "points_cost must be >= 0"
	}
	for _, p := range []*int{req.CooldownDays, req.MaxClaimsTotal, req.MaxClaimsPerKid} {
		if p != nil && *p < 1 {
			return model.Reward{}, "limits must be >= 1 when set"
		}
	}

	requiresApproval := true
	if req.RequiresApproval != nil {
		requiresApproval = *req.RequiresApproval
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.Reward{
		Title:            req.Title,
		Description:      req.Description,
		PointsCost:       req.PointsCost,
		RequiresApproval: requiresApproval,
		CooldownDays:     req.CooldownDays,
		MaxClaimsTotal:   req.MaxClaimsTotal,
		MaxClaimsPerKid:  req.MaxClaimsPerKid,
		Active:           active,
	}, ""
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	rw, msg := req.validate()
	if msg != "" {
		badRequest(w, msg)
		return
	}

	created, err := h.rewards.Create(rw)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.List()
	if err != nil {
		writeError(w, err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	rw, err := h.rewards.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rw == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}
	writeJSON(w, http.StatusOK, rw)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	existing, err := h.rewards.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	rw, msg := req.validate()
	if msg != "" {
		badRequest(w, msg)
		return
	}

	updated, err := h.rewards.Update(id, rw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	existing, err := h.rewards.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reward not found"})
		return
	}

	if err := h.rewards.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Claim spends points on a reward. The debit and the claim row commit in one
// transaction; eligibility failures leave the balance untouched.
func (h *RewardHandler) Claim(w http.ResponseWriter, r *http.Request) {
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

	claim, err := h.workflow.Claim(id, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

func (h *RewardHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	claims, err := h.rewards.ListClaimsByReward(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if claims == nil {
		claims = []model.RewardClaim{}
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *RewardHandler) ListUserClaims(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("user_id")
	if v == "" {
		badRequest(w, "user_id is required")
		return
	}
	userID, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		badRequest(w, "invalid user_id")
		return
	}

	claims, err := h.rewards.ListClaimsByUser(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if claims == nil {
		claims = []model.RewardClaim{}
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *RewardHandler) GetClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	claim, err := h.rewards.GetClaimByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if claim == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "claim not found"})
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

type resolveClaimRequest struct {
	ActorID int64  `json:"actor_id"`
	Reason  string `json:"reason"`
}

func (h *RewardHandler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req resolveClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	claim, err := h.workflow.Approve(id, req.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// RejectClaim refuses a pending claim and refunds the points.
func (h *RewardHandler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		badRequest(w, "invalid id")
		return
	}

	var req resolveClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	claim, err := h.workflow.Reject(id, req.ActorID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// UnclaimReward lets the claimer withdraw a still-pending claim; the points
// are refunded and the claim disappears.
func (h *RewardHandler) UnclaimReward(w http.ResponseWriter, r *http.Request) {
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

	if err := h.workflow.Unclaim(id, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
