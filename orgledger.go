// Package orgledger provides an embeddable membership-consistency layer
// for multi-tenant applications: users connected to organizations through
// edges, with at most one primary organization per user and
// confirmation-gated removal of a user's last edge.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create an instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	ol, err := orgledger.New(orgledger.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	http.ListenAndServe(":8080", ol.Router())
package orgledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clearbay/orgledger/internal/auth"
	"github.com/clearbay/orgledger/internal/config"
	httpserver "github.com/clearbay/orgledger/internal/http"
	"github.com/clearbay/orgledger/internal/http/middleware"
	"github.com/clearbay/orgledger/pkg/ledger"
	"github.com/clearbay/orgledger/pkg/repository"
)

// Config holds the configuration for the embeddable ledger.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret is the secret key for signing JWT tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in JWT tokens (default: "orgledger").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 15 minutes).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens (default: 7 days).
	RefreshTokenTTL time.Duration

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// OrgLedger is the main embeddable instance.
type OrgLedger struct {
	config          Config
	db              *sql.DB
	usersRepo       *repository.UsersRepository
	credsRepo       *repository.CredentialsRepository
	orgsRepo        *repository.OrganizationsRepository
	membershipsRepo *repository.MembershipsRepository
	sessionsRepo    *repository.SessionsRepository
	passwordService *auth.PasswordService
	sessionService  *auth.SessionService
	ledger          *ledger.Ledger
}

// New creates a new instance with the given configuration.
// Returns an error if required database tables don't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*OrgLedger, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Validate schema exists
	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	usersRepo := repository.NewUsersRepository(cfg.DB)
	credsRepo := repository.NewCredentialsRepository(cfg.DB)
	orgsRepo := repository.NewOrganizationsRepository(cfg.DB)
	membershipsRepo := repository.NewMembershipsRepository(cfg.DB)
	sessionsRepo := repository.NewSessionsRepository(cfg.DB)

	passwordService := auth.NewPasswordService(usersRepo, credsRepo)
	sessionService := auth.NewSessionService(auth.SessionConfig{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		JWTSecret:       []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
	}, sessionsRepo, usersRepo)

	return &OrgLedger{
		config:          cfg,
		db:              cfg.DB,
		usersRepo:       usersRepo,
		credsRepo:       credsRepo,
		orgsRepo:        orgsRepo,
		membershipsRepo: membershipsRepo,
		sessionsRepo:    sessionsRepo,
		passwordService: passwordService,
		sessionService:  sessionService,
		ledger:          ledger.New(membershipsRepo, cfg.Logger),
	}, nil
}

// Router returns an http.Handler with all routes registered:
// operator auth under /v1/auth, organization CRUD under /v1/organizations,
// membership edges under /v1/members, the user directory under /v1/users,
// and reports under /v1/reports.
func (o *OrgLedger) Router() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             o.config.Logger,
		PasswordService:    o.passwordService,
		SessionService:     o.sessionService,
		Ledger:             o.ledger,
		UsersRepo:          o.usersRepo,
		OrganizationsRepo:  o.orgsRepo,
		MembershipsRepo:    o.membershipsRepo,
		RateLimitConfig:    config.RateLimitConfig{Enabled: false},
		SecurityHeaders:    config.SecurityHeadersConfig{Enabled: false},
		MaxRequestBodySize: 1 << 20,
	})
}

// Ledger returns the membership ledger for direct use.
func (o *OrgLedger) Ledger() *ledger.Ledger {
	return o.ledger
}

// SessionService returns the session service for advanced usage.
func (o *OrgLedger) SessionService() *auth.SessionService {
	return o.sessionService
}

// AuthMiddleware returns middleware that validates access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(ol.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (o *OrgLedger) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(o.sessionService)
}

// GetActorID extracts the authenticated operator's user ID from a context.
// Use after AuthMiddleware.
func GetActorID(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetActorID(ctx)
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("orgledger: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("orgledger: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("orgledger: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "orgledger"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "user_credentials", "organizations", "memberships", "sessions"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("orgledger: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("orgledger: failed to check schema: %w", err)
		}
	}

	return nil
}
