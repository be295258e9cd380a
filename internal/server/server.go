package server

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/evidenceledger/eseal/internal/cache"
	"github.com/evidenceledger/eseal/internal/certs"
	"github.com/evidenceledger/eseal/internal/credentials"
	"github.com/evidenceledger/eseal/internal/database"
	"github.com/evidenceledger/eseal/internal/html"
	"github.com/evidenceledger/eseal/internal/issuer"
	"github.com/evidenceledger/eseal/internal/jwt"
	"github.com/evidenceledger/eseal/internal/middleware"
	"github.com/evidenceledger/eseal/internal/sealer"
	"github.com/evidenceledger/eseal/internal/signing"
)

// Config is the configuration for the server
type Config struct {
	Port              string
	URL               string
	DatabasePath      string
	CredentialsDir    string
	KeystorePassword  string
	DefaultCredential string
	VendorID          string
	TemplateDebug     bool
	BodyLimit         int
	DisableLogger     bool
}

func (c *Config) setDefaults() {
	if c.Port == "" {
		c.Port = "8090"
	}
	if c.URL == "" {
		c.URL = "http://localhost:" + c.Port
	}
	if c.VendorID == "" {
		c.VendorID = "eseal"
	}
	if c.BodyLimit == 0 {
		c.BodyLimit = 8 * 1024 * 1024
	}
}

// Server is the seal issuing and verification service
type Server struct {
	cfg        Config
	app        *fiber.App
	db         *database.Database
	adminAuth  *middleware.AdminAuth
	jwtService *jwt.Service
	html       *html.Renderer
	registry   *signing.Registry
	certCache  *cache.Cache[string, *certs.Certificate]
	builder    *sealer.Builder
	verifier   *sealer.Verifier
	requests   *issuer.RequestFactory
	now        func() time.Time
}

//go:embed views/*
var viewsfs embed.FS

// New creates the server and opens its database
func New(adminPassword string, cfg Config) (*Server, error) {
	cfg.setDefaults()

	adminAuth, err := middleware.NewAdminAuth(adminPassword)
	if err != nil {
		return nil, err
	}

	jwtService, err := jwt.NewService(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	db := database.New(cfg.DatabasePath)
	if err := db.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Parsed certificates are cached for 10 minutes
	certCache := cache.New[string, *certs.Certificate](10 * time.Minute)
	parser := certs.NewCachingParser(certs.Default, certCache)
	registry := signing.Default()

	viewsOpts := html.Options{
		Views: viewsfs,
		Dir:   "views",
		Funcs: map[string]any{"algorithm": algorithmName(registry)},
	}
	if cfg.TemplateDebug {
		viewsOpts.Dir, viewsOpts.Reload = "internal/server/views", true
	}
	htmlrender, err := html.New(viewsOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize template engine: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "eSeal",
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	if !cfg.DisableLogger {
		app.Use(logger.New())
	}

	s := &Server{
		cfg:        cfg,
		app:        app,
		db:         db,
		adminAuth:  adminAuth,
		jwtService: jwtService,
		html:       htmlrender,
		registry:   registry,
		certCache:  certCache,
		builder:    sealer.NewBuilder(registry, parser),
		verifier:   sealer.NewVerifier(registry, parser),
		now:        time.Now,
	}
	if cfg.CredentialsDir != "" {
		s.requests = &issuer.RequestFactory{
			Store:             credentials.FileStore{Dir: cfg.CredentialsDir, KeystorePassword: cfg.KeystorePassword},
			Registry:          registry,
			DefaultCredential: cfg.DefaultCredential,
			VendorID:          cfg.VendorID,
			Now:               func() time.Time { return s.now() },
		}
	}

	s.setupRoutes()
	return s, nil
}

// algorithmName returns a template function naming a signature algorithm OID
// as registered, or the OID itself when unknown.
func algorithmName(registry *signing.Registry) func(oid string) string {
	return func(oid string) string {
		for _, name := range registry.Names() {
			if svc, err := registry.ByName(name); err == nil && svc.Algorithm().String() == oid {
				return name
			}
		}
		return oid
	}
}

// setupRoutes sets up all the server routes
func (s *Server) setupRoutes() {
	// Health check
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":              "healthy",
			"algorithms":          s.registry.Names(),
			"cached_certificates": s.certCache.Len(),
		})
	})

	// Keys for checking verification reports
	s.app.Get("/.well-known/jwks.json", s.handleJWKS)
	s.app.Get("/.well-known/report-key.pem", s.handleReportKey)
	s.app.Post("/api/reports/verify", s.handleVerifyReport)

	// Verification, open to anybody holding a seal
	s.app.Post("/api/verify", s.handleVerify)

	// Issued seals
	s.app.Get("/api/seals/:id", s.handleGetSeal)
	s.app.Get("/seals/:id", s.handleInspectSeal)

	// Admin routes (protected)
	auth := s.adminAuth.AuthMiddleware()
	s.app.Post("/api/seals", auth, s.handleCreateSeal)
	s.app.Get("/api/seals", auth, s.handleListSeals)
	s.app.Delete("/api/seals/:id", auth, s.handleDeleteSeal)
	s.app.Get("/api/seals/:id/verifications", auth, s.handleListVerifications)
}

// Start starts the server and stops it when ctx is cancelled
func (s *Server) Start(ctx context.Context) error {

	addr := net.JoinHostPort("0.0.0.0", s.cfg.Port)
	slog.Info("Starting eSeal server", "addr", addr, "url", s.cfg.URL, "algorithms", s.registry.Names())

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(addr); err != nil {
			errChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down server")
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		return s.db.Close()
	}
}

// Close releases the database
func (s *Server) Close() error {
	return s.db.Close()
}
