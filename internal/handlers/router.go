package handlers

import (
	"net/http"

	"achievements/internal/config"
	"achievements/internal/db"
	"achievements/internal/middleware"
	"achievements/internal/services"
	"achievements/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	txRunner    db.TxRunner
	cfg         config.Config
	users       UserStore
	accounts    AccountStore
	entries     EntryStore
	audit       AuditStore
	points      PointsService
	credentials CredentialService
	ledger      services.PointsLedger
	hub         *websocket.Hub
	metrics     http.Handler
}

type Deps struct {
	TxRunner    db.TxRunner
	Config      config.Config
	Users       UserStore
	Accounts    AccountStore
	Entries     EntryStore
	Audit       AuditStore
	Points      PointsService
	Credentials CredentialService
	// Ledger is attached to the registry by POST /admin/credentials/ledger.
	Ledger  services.PointsLedger
	Hub     *websocket.Hub
	Metrics http.Handler
}

func New(deps Deps) *Handler {
	hub := deps.Hub
	if hub == nil {
		hub = websocket.NewHub()
	}
	return &Handler{
		txRunner:    deps.TxRunner,
		cfg:         deps.Config,
		users:       deps.Users,
		accounts:    deps.Accounts,
		entries:     deps.Entries,
		audit:       deps.Audit,
		points:      deps.Points,
		credentials: deps.Credentials,
		ledger:      deps.Ledger,
		hub:         hub,
		metrics:     deps.Metrics,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	authenticated := middleware.Auth(h.cfg.JWTSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
	})

	router.Route("/points", func(r chi.Router) {
		r.Get("/supply", h.GetSupply)
		r.With(authenticated).Post("/burn", h.Burn)
		r.With(authenticated).Post("/transfer", h.Transfer)
		r.Get("/{account}", h.GetBalance)
		r.Get("/{account}/summary", h.GetPointsSummary)
		r.Get("/{account}/entries", h.ListEntries)
	})

	router.With(authenticated).Post("/credentials/exit", h.ExitOnce)
	router.Get("/credentials/{id}", h.GetCredential)
	router.Get("/credentials/{id}/metadata", h.GetMetadata)
	router.Get("/accounts/{account}/credentials", h.ListOwned)
	router.Get("/accounts/{account}/credentials/summary", h.GetCredentialSummary)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticated)
		r.Post("/points/mint", h.AdminMint)
		r.Post("/points/burn-from", h.AdminBurnFrom)
		r.Post("/points/collaborator", h.AdminSetCollaborator)
		r.Post("/credentials", h.AdminIssue)
		r.Post("/credentials/batch", h.AdminIssueBatch)
		r.Post("/credentials/ledger", h.AdminConfigureLedger)
		r.Get("/reconcile", h.Reconcile)
	})

	router.Get("/events", h.ListEvents)
	router.Get("/ws/events", h.WSEvents)
	if h.metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.metrics)
	}
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
