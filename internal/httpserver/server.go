package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fanforge/creator-platform/internal/auth"
	"github.com/fanforge/creator-platform/internal/campaign"
	"github.com/fanforge/creator-platform/internal/chat"
	"github.com/fanforge/creator-platform/internal/handlers"
	"github.com/fanforge/creator-platform/internal/store"
)

// Deps collects everything the HTTP API wires together.
type Deps struct {
	Auth      *auth.Service
	Campaigns *campaign.Service
	Store     *store.PostgresStore
	Limiter   handlers.Limiter
	Messages  handlers.MessageQueue
	Webhook   handlers.WebhookDeps
	Chat      chat.Config
	Logger    zerolog.Logger

	// QueueReady reports broker reachability for the readiness probe.
	QueueReady func() bool
}

// NewRouter wires public endpoints, the webhook receiver and the
// authenticated creator APIs.
//
// Public: /health, /ready, /auth/*, /webhooks/autogen
// Authenticated (bearer token): /campaigns*, /dashboard, /chat/route, /messages
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB and queue dependencies are reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := deps.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		if deps.QueueReady != nil && !deps.QueueReady() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "queue brokers unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	handlers.RegisterAuthRoutes(r, deps.Auth)
	handlers.RegisterWebhookRoutes(r, deps.Webhook)

	// Bearer token group for creator-facing APIs.
	authGroup := r.Group("/")
	authGroup.Use(handlers.BearerAuth(deps.Auth))

	handlers.RegisterCampaignRoutes(authGroup, deps.Campaigns)
	handlers.RegisterDashboardRoutes(authGroup, deps.Store)
	handlers.RegisterChatRoutes(authGroup, deps.Chat)
	handlers.RegisterMessageRoutes(authGroup, deps.Messages, deps.Limiter)

	return r
}

// Server wraps http.Server with graceful shutdown.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer binds the router to the configured port.
func NewServer(port int, router *gin.Engine, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.logger.Info().Msg("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	return <-errCh
}
