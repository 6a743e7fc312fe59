package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/arise/internal/api/handlers"
	"github.com/felixgeelhaar/arise/internal/api/middleware"
)

const requestTimeout = 15 * time.Second

// Router wraps the HTTP multiplexer with middleware and handlers
type Router struct {
	mux         *http.ServeMux
	app         *App
	limiter     *middleware.RateLimiter
	accounts    *handlers.AccountHandler
	scoring     *handlers.ScoringHandler
	leaderboard *handlers.LeaderboardHandler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(app *App) *Router {
	r := &Router{
		mux: http.NewServeMux(),
		app: app,
	}

	r.accounts = handlers.NewAccountHandler(app.Scoring, app.Reads)
	r.scoring = handlers.NewScoringHandler(app.Scoring)
	r.leaderboard = handlers.NewLeaderboardHandler(app.Leaderboard, app.Reads, app.Config.AdminToken)

	// A zero rate turns the limiter off
	if app.Config.SubmitRatePerMinute > 0 {
		r.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: app.Config.SubmitRatePerMinute,
			BurstMultiplier:   1,
		})
	}

	r.registerRoutes()
	return r
}

// Handler returns the router wrapped in the middleware chain
func (r *Router) Handler() http.Handler {
	return r.buildMiddlewareChain(r.mux)
}

// Close stops the rate limiter
func (r *Router) Close() error {
	if r.limiter != nil {
		return r.limiter.Close()
	}
	return nil
}

func (r *Router) registerRoutes() {
	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /ready", r.handleReady)

	// Accounts
	r.mux.HandleFunc("POST /api/v1/accounts", r.accounts.Create)
	r.mux.HandleFunc("GET /api/v1/accounts/{id}", r.accounts.Get)
	r.mux.HandleFunc("GET /api/v1/accounts/{id}/ledger", r.accounts.Ledger)

	// Challenges and scoring; flag guessing is rate limited per client
	r.mux.HandleFunc("GET /api/v1/challenges", r.scoring.Challenges)
	r.mux.HandleFunc("POST /api/v1/submissions", r.limit(r.scoring.Submit))
	r.mux.HandleFunc("POST /api/v1/hints/unlock", r.limit(r.scoring.UnlockHint))

	// Leaderboard
	r.mux.HandleFunc("GET /api/v1/leaderboard", r.leaderboard.Top)
	r.mux.HandleFunc("GET /api/v1/admin/audit", r.leaderboard.Audit)
}

func (r *Router) limit(next http.HandlerFunc) http.HandlerFunc {
	if r.limiter == nil {
		return next
	}
	return r.limiter.Wrap(next)
}

func (r *Router) buildMiddlewareChain(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	handler = middleware.Timeout(requestTimeout)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.app.Config.CORSOrigins,
	})(handler)

	return handler
}

// Health check handlers
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	if err := r.app.Ready(req.Context()); err != nil {
		slog.Error("store health check failed",
			"error", err,
			"request_id", middleware.GetRequestID(req.Context()),
		)
		handlers.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"checks": map[string]string{
				"store": "unhealthy",
			},
		})
		return
	}

	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]string{
			"store": "healthy",
		},
	})
}
