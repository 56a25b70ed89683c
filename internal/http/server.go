// Package http serves the ledger as a JSON API over gin.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/auth"
	"budgetbuddy/internal/cloudsync"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/middleware/ratelimit"
	"budgetbuddy/internal/middleware/security"
	"budgetbuddy/internal/middleware/trace"
	"budgetbuddy/internal/services"
)

// Syncer backs up and restores local data. *cloudsync.Bridge satisfies it.
type Syncer interface {
	Push(ctx context.Context) (cloudsync.PushResult, error)
	Pull(ctx context.Context) (cloudsync.PullResult, error)
}

// Deps are the collaborators of the API. Sync, Tokens and Limiter may be nil.
type Deps struct {
	Ledger  *services.Ledger
	Session *auth.Session
	Tokens  *auth.TokenService
	Sync    Syncer
	Limiter *ratelimit.Limiter

	Location *time.Location
	Now      func() time.Time
}

type Server struct {
	http.Server
	deps   Deps
	trace  *trace.Middleware
	logger *slog.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Session == nil {
		deps.Session = auth.NewSession()
	}

	logger := log.For(log.ComponentHTTP)
	s := &Server{
		deps:   deps,
		trace:  trace.NewMiddleware(logger),
		logger: logger,
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(security.TrustedProxies); err != nil {
		s.logger.Warn("Failed to set trusted proxies", log.FieldError, err)
	}
	r.Use(gin.Recovery())
	r.Use(s.trace.Handler())
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Handler())
	r.Use(security.NewDetector(s.logger).Handler())
	if s.deps.Limiter != nil {
		r.Use(s.deps.Limiter.Middleware(func(c *gin.Context) {
			Error(c, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded, please try again later")
		}))
	}

	r.GET("/healthz", handleHealth)
	r.GET("/readyz", handleReady)

	v1 := r.Group("/v1")
	{
		v1.GET("/transactions", s.handleListTransactions)
		v1.POST("/transactions", s.handleAddTransaction)
		v1.PATCH("/transactions/:id", s.handleEditTransaction)
		v1.DELETE("/transactions/:id", s.handleDeleteTransaction)

		v1.GET("/summary", s.handleSummary)
		v1.GET("/reports/monthly", s.handleMonthlyReport)
		v1.GET("/search", s.handleSearch)
		v1.GET("/search/live", s.handleLiveSearch)
		v1.PUT("/search/live", s.handleLiveSearchUpdate)
		v1.GET("/categories/:type", s.handleCategories)

		v1.GET("/budgets/:kind", s.handleBudgets)
		v1.PUT("/budgets/:kind/:category", s.handleSetBudget)
		v1.DELETE("/budgets/:kind/:category", s.handleRemoveBudget)

		v1.GET("/preferences", s.handleGetPreferences)
		v1.PUT("/preferences", s.handleUpdatePreferences)

		v1.GET("/session", s.handleGetSession)
		v1.POST("/session", s.handleLogin)
		v1.DELETE("/session", s.handleLogout)

		v1.POST("/sync/backup", s.handleBackup)
		v1.POST("/sync/restore", s.handleRestore)

		v1.GET("/export.xlsx", s.handleExport)
		v1.DELETE("/data", s.handleClearData)
	}

	r.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, CodeNotFound, "route not found")
	})
	return r
}

// Metrics returns request counters from the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.trace.GetMetrics()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.deps.Limiter != nil {
			s.deps.Limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func handleReady(c *gin.Context) {
	c.String(http.StatusOK, "ready")
}
