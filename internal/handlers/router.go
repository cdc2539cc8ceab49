package handlers

import (
	"net/http"

	"invest/internal/config"
	"invest/internal/db"
	"invest/internal/middleware"
	"invest/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner     db.TxRunner
	cfg          config.Config
	users        UserService
	ledger       LedgerService
	investments  InvestmentService
	trades       TradeService
	reconciler   ReconcileService
	userStore    UserStore
	transactions TransactionStore
	profits      ProfitStore
	referrals    ReferralStore
	admin        AdminStore
	audit        AuditStore
	jobs         JobRunner
	hub          *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserService, ledger LedgerService, investments InvestmentService, trades TradeService, reconciler ReconcileService, userStore UserStore, transactions TransactionStore, profits ProfitStore, referrals ReferralStore, admin AdminStore, audit AuditStore, jobs JobRunner, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:     txRunner,
		cfg:          cfg,
		users:        users,
		ledger:       ledger,
		investments:  investments,
		trades:       trades,
		reconciler:   reconciler,
		userStore:    userStore,
		transactions: transactions,
		profits:      profits,
		referrals:    referrals,
		admin:        admin,
		audit:        audit,
		jobs:         jobs,
		hub:          hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/wallet", h.GetWallet)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/packages", h.ListPackages)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/investments", h.CreateInvestment)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/investments", h.ListInvestments)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/investments/{id}", h.GetInvestment)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/trades", h.InitiateTrade)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/trades", h.ListTrades)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/trades/{id}", h.GetTrade)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/trades/{id}/stop", h.StopTrade)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/transactions/deposit", h.Deposit)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/transactions/withdraw", h.Withdraw)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/transactions", h.ListTransactions)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/profits", h.ListProfits)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/referrals", h.ListReferrals)
	router.Get("/ws/wallet", h.WSWallet)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.With(middleware.RequireAdmin(h.admin, false)).Post("/deposits/{id}/settle", h.SettleDeposit)
		r.With(middleware.RequireAdmin(h.admin, false)).Post("/withdrawals/{id}/settle", h.SettleWithdrawal)
		r.With(middleware.RequireAdmin(h.admin, false)).Get("/transactions", h.AdminListTransactions)
		r.With(middleware.RequireAdmin(h.admin, false)).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.admin, false)).Post("/reconcile", h.Reconcile)
		r.With(middleware.RequireAdmin(h.admin, false)).Get("/jobs", h.ListJobs)
		r.With(middleware.RequireAdmin(h.admin, false)).Post("/jobs/{name}/run", h.TriggerJob)
		r.With(middleware.RequireAdmin(h.admin, true)).Post("/promote", h.PromoteAdmin)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
