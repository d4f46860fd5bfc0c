package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tillgrange/choreboard/internal/chore"
	"github.com/tillgrange/choreboard/internal/config"
	"github.com/tillgrange/choreboard/internal/handler"
	"github.com/tillgrange/choreboard/internal/middleware"
	"github.com/tillgrange/choreboard/internal/points"
	"github.com/tillgrange/choreboard/internal/reward"
	"github.com/tillgrange/choreboard/internal/scheduler"
	"github.com/tillgrange/choreboard/internal/store"
	ws "github.com/tillgrange/choreboard/internal/websocket"
)

type Server struct {
	db        *sql.DB
	hub       *ws.Hub
	userH     *handler.UserHandler
	choreH    *handler.ChoreHandler
	instanceH *handler.InstanceHandler
	rewardH   *handler.RewardHandler
	ledger    *points.Ledger
	sched     *scheduler.Scheduler
	logger    *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	choreStore := store.NewChoreStore(db)
	instanceStore := store.NewInstanceStore(db)
	rewardStore := store.NewRewardStore(db)
	ledgerStore := store.NewLedgerStore(db)

	ledger := points.NewLedger(userStore, ledgerStore, hub, logger.With("component", "points"))
	generator := chore.NewGenerator(choreStore, instanceStore, hub, logger.With("component", "generator"))
	generator.SetLookaheadMonths(cfg.LookaheadMonths)
	lifecycle := chore.NewLifecycle(instanceStore, choreStore, userStore, hub, logger.With("component", "lifecycle"))
	workflow := reward.NewWorkflow(rewardStore, userStore, hub, logger.With("component", "reward"))
	workflow.SetPendingTTL(time.Duration(cfg.ClaimTTLDays) * 24 * time.Hour)

	sched := scheduler.New(generator, lifecycle, workflow, ledger, logger.With("component", "scheduler"))
	sched.SetInterval(cfg.SweepInterval)

	return &Server{
		db:        db,
		hub:       hub,
		userH:     handler.NewUserHandler(userStore, ledger, logger.With("component", "user")),
		choreH:    handler.NewChoreHandler(choreStore, generator, logger.With("component", "chore")),
		instanceH: handler.NewInstanceHandler(instanceStore, lifecycle, logger.With("component", "instance")),
		rewardH:   handler.NewRewardHandler(rewardStore, workflow, logger.With("component", "reward")),
		ledger:    ledger,
		sched:     sched,
		logger:    logger,
	}
}

// Scheduler returns the background sweep scheduler so main can run it.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.sched
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// User API routes
	mux.HandleFunc("POST /api/users", s.userH.Create)
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("DELETE /api/users/{id}", s.userH.Deactivate)
	mux.HandleFunc("POST /api/users/{id}/points", s.userH.AdjustPoints)
	mux.HandleFunc("GET /api/users/{id}/points/history", s.userH.PointsHistory)
	mux.HandleFunc("GET /api/users/{id}/points/verify", s.userH.VerifyPoints)

	// Chore API routes
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/regenerate", s.choreH.Regenerate)

	// Instance API routes
	mux.HandleFunc("GET /api/instances", s.instanceH.List)
	mux.HandleFunc("GET /api/instances/{id}", s.instanceH.Get)
	mux.HandleFunc("POST /api/instances/{id}/claim", s.instanceH.Claim)
	mux.HandleFunc("POST /api/instances/{id}/unclaim", s.instanceH.Unclaim)
	mux.HandleFunc("POST /api/instances/{id}/approve", s.instanceH.Approve)
	mux.HandleFunc("POST /api/instances/{id}/reject", s.instanceH.Reject)
	mux.HandleFunc("POST /api/instances/{id}/reassign", s.instanceH.Reassign)

	// Reward API routes
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("GET /api/rewards/{id}", s.rewardH.Get)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/claim", s.rewardH.Claim)
	mux.HandleFunc("GET /api/rewards/{id}/claims", s.rewardH.ListClaims)

	// Claim API routes
	mux.HandleFunc("GET /api/claims", s.rewardH.ListUserClaims)
	mux.HandleFunc("GET /api/claims/{id}", s.rewardH.GetClaim)
	mux.HandleFunc("POST /api/claims/{id}/approve", s.rewardH.ApproveClaim)
	mux.HandleFunc("POST /api/claims/{id}/reject", s.rewardH.RejectClaim)
	mux.HandleFunc("POST /api/claims/{id}/unclaim", s.rewardH.UnclaimReward)

	// Ledger audit
	mux.HandleFunc("POST /api/audit", s.auditHandler)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// auditHandler recomputes every cached balance from the ledger and reports the
// user ids whose cached value drifted. Read-only; nothing is repaired.
func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	mismatched, err := s.ledger.Audit()
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "audit failed"})
		return
	}
	if mismatched == nil {
		mismatched = []int64{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"mismatched_user_ids": mismatched})
}
