// Package server implements the HTTP API consumed by the SwipeFlow
// browser extension, plus the admin management API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/swipeflow/swipeflow/internal/accesskey"
	"github.com/swipeflow/swipeflow/internal/auditlog"
	"github.com/swipeflow/swipeflow/internal/config"
	"github.com/swipeflow/swipeflow/internal/database"
	"github.com/swipeflow/swipeflow/internal/middleware"
	"github.com/swipeflow/swipeflow/internal/ratelimit"
	"github.com/swipeflow/swipeflow/internal/session"
	"github.com/swipeflow/swipeflow/internal/usage"
)

// Version is the reported API version, overridden at build time.
var Version = "dev"

const adminSessionName = "swipeflow_admin"

// Server is the HTTP server for the extension API and the admin API.
type Server struct {
	server *http.Server
	config *config.Config
	engine *gin.Engine
	logger *zap.Logger

	db         *database.DB
	validator  *accesskey.Validator
	sessions   *session.Manager
	accountant *usage.Accountant
	audit      *auditlog.Logger
	limiter    *ratelimit.Limiter
}

// New creates a server wired to the given database. The rate limit store
// is chosen from the configuration: Redis when enabled, in-process memory
// otherwise.
func New(cfg *config.Config, db *database.DB, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.APIEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.APIEnv == "test" {
		gin.SetMode(gin.TestMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	// Admin cookie sessions are keyed off the management token so a token
	// rotation invalidates existing admin logins.
	store := cookie.NewStore([]byte(cfg.ManagementToken))
	engine.Use(sessions.Sessions(adminSessionName, store))

	var limitStore ratelimit.Store
	if cfg.RedisRateLimitEnabled {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		limitStore = ratelimit.NewRedisStore(client, ratelimit.RedisStoreConfig{
			KeyPrefix:     cfg.RateLimitKeyPrefix,
			KeyHashSecret: []byte(cfg.RateLimitKeySecret),
		})
		logger.Info("using redis rate limit store", zap.String("addr", cfg.RedisAddr))
	} else {
		limitStore = ratelimit.NewMemoryStore()
	}

	s := &Server{
		config:     cfg,
		engine:     engine,
		logger:     logger,
		db:         db,
		validator:  accesskey.NewValidator(db),
		sessions:   session.NewManager(db, cfg.SessionTTL, logger),
		accountant: usage.NewAccountant(db),
		audit:      auditlog.NewLogger(db, logger),
		limiter:    ratelimit.NewLimiter(limitStore, logger),
		server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      engine,
			ReadTimeout:  cfg.RequestTimeout,
			WriteTimeout: cfg.RequestTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}

	s.setupRoutes()

	return s, nil
}

// setupRoutes wires the middleware pipeline and all endpoints.
func (s *Server) setupRoutes() {
	cfg := s.config

	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.Use(middleware.CORS(cfg.CORSOriginPrefixes))
	api.Use(middleware.RequestID())

	apiLimit := middleware.RateLimit(s.limiter, "api", cfg.APIRateLimit, cfg.APIRateWindow, s.logger)
	loginLimit := middleware.RateLimit(s.limiter, "login", cfg.LoginRateLimit, cfg.LoginRateWindow, s.logger)
	errorLogLimit := middleware.RateLimit(s.limiter, "errorlog", cfg.ErrorLogRateLimit, cfg.ErrorLogRateWindow, s.logger)

	api.POST("/login", loginLimit, s.handleLogin)
	api.POST("/validate_key", apiLimit, s.handleValidateKey)
	api.POST("/get_config", apiLimit, s.handleGetConfig)
	api.POST("/update_usage", apiLimit, s.handleUpdateUsage)
	api.POST("/log_error", errorLogLimit, s.handleLogError)

	admin := s.engine.Group("/admin")
	admin.POST("/login", s.handleAdminLogin)
	admin.POST("/logout", s.handleAdminLogout)

	authed := admin.Group("")
	authed.Use(s.adminAuth())
	authed.GET("/users", s.handleAdminListUsers)
	authed.POST("/users", s.handleAdminCreateUser)
	authed.GET("/keys", s.handleAdminListKeys)
	authed.POST("/keys", s.handleAdminCreateKey)
	authed.GET("/logs", s.handleAdminListLogs)
}

// Handler exposes the gin engine, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the server. Blocks until shutdown or listen failure.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("addr", s.config.ListenAddr),
		zap.String("env", s.config.APIEnv),
		zap.String("version", Version))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server without interrupting active
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}
