package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/allisson/go-pwdhash"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	cryptoUsecase "github.com/allisson/panvault/internal/crypto/usecase"
	panHTTP "github.com/allisson/panvault/internal/pan/http"
)

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Host                    string
	Port                    int
	CORSEnabled             bool
	CORSAllowOrigins        string
	DecryptTokenHash        string
	DecryptTimeout          time.Duration
	RateLimitEnabled        bool
	RateLimitRequestsPerSec float64
	RateLimitBurst          int
}

// Server represents the HTTP API server.
type Server struct {
	server *http.Server
	logger *slog.Logger

	// cancelBackground stops goroutines owned by the middleware stack, such
	// as the rate limiter cleanup.
	cancelBackground context.CancelFunc
}

// NewServer creates the API server and registers all routes.
//
// The readiness endpoint reports 503 until the keyring holds a current key,
// so load balancers keep traffic away from instances that cannot encrypt yet.
// The decrypt route stacks its own middleware: request deadline, bearer token
// authentication and per-caller rate limiting.
func NewServer(
	config ServerConfig,
	logger *slog.Logger,
	panHandler *panHTTP.PanHandler,
	keyring cryptoUsecase.Keyring,
	metricsMiddleware gin.HandlerFunc,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(logger))

	if metricsMiddleware != nil {
		router.Use(metricsMiddleware)
	}

	if corsMiddleware := createCORSMiddleware(
		config.CORSEnabled,
		config.CORSAllowOrigins,
		logger,
	); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		if !keyring.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	v1 := router.Group("/v1")
	v1.POST("/pans", panHandler.IngestHandler)

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	decryptHandlers := decryptMiddlewareChain(backgroundCtx, config, logger)
	decryptHandlers = append(decryptHandlers, panHandler.DecryptHandler)
	v1.POST("/pans/decrypt", decryptHandlers...)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:           logger,
		cancelBackground: cancelBackground,
	}
}

// decryptMiddlewareChain builds the middleware stack for the decrypt route.
// Background goroutines started by the middleware are bound to ctx.
func decryptMiddlewareChain(ctx context.Context, config ServerConfig, logger *slog.Logger) []gin.HandlerFunc {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		// This should never happen with a valid policy
		panic(err)
	}

	handlers := []gin.HandlerFunc{
		TimeoutMiddleware(config.DecryptTimeout),
		DecryptAuthMiddleware(hasher, config.DecryptTokenHash, logger),
	}

	if config.RateLimitEnabled {
		handlers = append(handlers, RateLimitMiddleware(
			ctx,
			config.RateLimitRequestsPerSec,
			config.RateLimitBurst,
			logger,
		))
	}

	return handlers
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP API server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP API server and stops the
// middleware background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	s.cancelBackground()
	return s.server.Shutdown(ctx)
}
