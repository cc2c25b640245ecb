package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clearbay/orgledger/internal/auth"
	"github.com/clearbay/orgledger/internal/config"
	"github.com/clearbay/orgledger/internal/http/features/members"
	"github.com/clearbay/orgledger/internal/http/features/organizations"
	"github.com/clearbay/orgledger/internal/http/features/reports"
	"github.com/clearbay/orgledger/internal/http/features/session"
	"github.com/clearbay/orgledger/internal/http/features/users"
	"github.com/clearbay/orgledger/internal/http/middleware"
	"github.com/clearbay/orgledger/internal/httputil"
	"github.com/clearbay/orgledger/pkg/ledger"
	"github.com/clearbay/orgledger/pkg/repository"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	PasswordService    *auth.PasswordService
	SessionService     *auth.SessionService
	Ledger             *ledger.Ledger
	UsersRepo          *repository.UsersRepository
	OrganizationsRepo  *repository.OrganizationsRepository
	MembershipsRepo    *repository.MembershipsRepository
	RateLimitConfig    config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	// Operator session routes
	sessionHandler := session.NewHandler(cfg.Logger, cfg.PasswordService, cfg.SessionService)
	r.Group(func(r chi.Router) {
		r.Use(rateLimiters["login"])
		r.Post("/v1/auth/login", sessionHandler.Login)
	})
	r.Post("/v1/auth/refresh", sessionHandler.Refresh)
	r.Post("/v1/auth/logout", sessionHandler.Logout)
	r.With(middleware.Auth(cfg.SessionService)).Post("/v1/auth/logout/all", sessionHandler.LogoutAll)

	orgHandler := organizations.NewHandler(cfg.Logger, cfg.OrganizationsRepo, cfg.MembershipsRepo)
	memberHandler := members.NewHandler(cfg.Logger, cfg.Ledger, cfg.UsersRepo, cfg.OrganizationsRepo)
	userHandler := users.NewHandler(cfg.Logger, cfg.UsersRepo, cfg.MembershipsRepo)
	reportHandler := reports.NewHandler(cfg.Logger, cfg.OrganizationsRepo, cfg.MembershipsRepo)

	// Everything below requires an authenticated operator.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.SessionService))

		r.Get("/v1/organizations", orgHandler.List)
		r.Get("/v1/organizations/{id}", orgHandler.Get)
		r.Get("/v1/organizations/{id}/members", orgHandler.Members)

		r.Get("/v1/users", userHandler.List)
		r.Get("/v1/users/{id}", userHandler.Get)

		r.Get("/v1/reports/organizations", reportHandler.Organizations)
		r.Get("/v1/reports/members.csv", reportHandler.MembersCSV)

		// Mutations share a rate-limit class.
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["mutation"])

			r.Post("/v1/organizations", orgHandler.Create)
			r.Patch("/v1/organizations/{id}", orgHandler.Update)
			r.Delete("/v1/organizations/{id}", orgHandler.Delete)

			r.Post("/v1/members", memberHandler.Add)
			r.Delete("/v1/members/{id}", memberHandler.Remove)
			r.Post("/v1/members/{id}/removal", memberHandler.Propose)
			r.Post("/v1/members/{id}/removal/confirm", memberHandler.Confirm)
			r.Post("/v1/members/{id}/primary", memberHandler.Primary)
		})
	})

	return r
}
