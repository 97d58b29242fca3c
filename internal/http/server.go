package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"lifehub/internal/core"
	"lifehub/internal/hubs"
	"lifehub/internal/kanban"
	"lifehub/internal/log"
	"lifehub/internal/middleware/auth"
	"lifehub/internal/middleware/ratelimit"
	"lifehub/internal/middleware/security"
	"lifehub/internal/middleware/trace"
	"lifehub/internal/services"
	"lifehub/internal/session"
)

// Accounting is the part of services.AccountingService served over HTTP.
type Accounting interface {
	RegisterCreditCardPurchase(ctx context.Context, req services.PurchaseRequest) (services.PurchaseResult, error)
	PayCreditCardInvoice(ctx context.Context, req services.PaymentRequest) (services.PaymentResult, error)
	CalculateNetWorth(ctx context.Context, userID string) (core.NetWorth, error)
	NetWorthHistory(ctx context.Context, userID string, limit int) ([]core.NetWorthSnapshot, error)
	CreateAccount(ctx context.Context, a core.BankAccount) (core.BankAccount, error)
	CreateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error)
	ListAccounts(ctx context.Context, userID string) ([]core.BankAccount, error)
	ListCards(ctx context.Context, userID string) ([]core.CreditCard, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error)
}

// Board is the part of services.BoardService served over HTTP.
type Board interface {
	Board(ctx context.Context, userID string) (services.Board, error)
	CreateColumn(ctx context.Context, userID, title string, wipLimit int) (core.TaskColumn, error)
	CreateTask(ctx context.Context, userID, columnID, title string) (core.TaskCard, error)
	MoveTask(ctx context.Context, userID string, m kanban.Move) (kanban.Result, error)
}

// Hubs is the part of hubs.Controller served over HTTP.
type Hubs interface {
	Settings(ctx context.Context, userID string) ([]hubs.Setting, error)
	Toggle(ctx context.Context, userID string, h hubs.Hub) (hubs.Setting, error)
	FirstEnabled(ctx context.Context, userID string) (hubs.Hub, bool, error)
}

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EventBus reports the state of the event broker connection.
type EventBus interface {
	Healthy() bool
}

// Sizer is implemented by the caches reported on /metrics.
type Sizer interface {
	Size() int
}

// Deps are the collaborators of the server. Events and Caches are optional.
type Deps struct {
	Accounting Accounting
	Board      Board
	Hubs       Hubs
	Sessions   *session.Manager
	Store      Pinger
	Events     EventBus
	Caches     map[string]Sizer

	Tokens             auth.Tokens
	TrustedProxies     []string
	RateLimitPerMinute int
	Logger             *log.Logger
}

// Server wraps http.Server with the JSON API routes.
type Server struct {
	http.Server

	accounting Accounting
	board      Board
	hubs       Hubs
	sessions   *session.Manager
	store      Pinger
	events     EventBus
	caches     map[string]Sizer

	logger           *log.Logger
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	purchases atomic.Int64
	payments  atomic.Int64
	moves     atomic.Int64
	uptime    time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		accounting:       deps.Accounting,
		board:            deps.Board,
		hubs:             deps.Hubs,
		sessions:         deps.Sessions,
		store:            deps.Store,
		events:           deps.Events,
		caches:           deps.Caches,
		logger:           logger,
		securityDetector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
		}),
		appMetrics: &appMetrics{uptime: time.Now()},
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(deps.Tokens),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(tokens auth.Tokens) http.Handler {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware.Middleware)
	r.Use(s.securityDetector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		}))
		r.Use(auth.Middleware(tokens, func(w http.ResponseWriter, r *http.Request) {
			UnauthorizedError().Write(w)
		}))

		r.Get("/networth", s.handleNetWorth)
		r.Get("/networth/history", s.handleNetWorthHistory)
		r.Get("/accounts", s.handleListAccounts)
		r.Post("/accounts", s.handleCreateAccount)
		r.Get("/cards", s.handleListCards)
		r.Post("/cards", s.handleCreateCard)
		r.Post("/cards/{cardID}/purchases", s.handleRegisterPurchase)
		r.Post("/cards/{cardID}/payments", s.handlePayInvoice)
		r.Get("/transactions", s.handleListTransactions)

		r.Get("/board", s.handleBoard)
		r.Post("/board/columns", s.handleCreateColumn)
		r.Post("/board/tasks", s.handleCreateTask)
		r.Post("/board/moves", s.handleMoveTask)

		r.Get("/hubs", s.handleListHubs)
		r.Post("/hubs/{hub}/toggle", s.handleToggleHub)
		r.Get("/session/landing", s.handleLanding)
		r.Delete("/session", s.handleEndSession)
	})
	return r
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
