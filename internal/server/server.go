package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/source"
	"github.com/nhle/tasksync/internal/sync"
)

// EventHandler processes one parsed webhook delivery.
type EventHandler interface {
	Handle(ctx context.Context, ev source.Event) (sync.Result, error)
}

// TaskPusher runs outbound pushes for the API.
type TaskPusher interface {
	Push(ctx context.Context, taskID string, provider model.Provider) (sync.PushResult, error)
	PushAll(ctx context.Context, taskID string) (map[model.Provider]sync.PushResult, error)
}

// Server provides the webhook receivers and the sync API.
type Server struct {
	engine  *gin.Engine
	events  EventHandler
	pusher  TaskPusher
	hooks   model.WebhookConfig
	schemas *schemaSet
	logger  *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
func New(events EventHandler, pusher TaskPusher, hooks model.WebhookConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:  router,
		events:  events,
		pusher:  pusher,
		hooks:   hooks,
		schemas: mustCompileSchemas(),
		logger:  logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires the webhook and API handlers together.
func (s *Server) registerRoutes() {
	hooks := s.engine.Group("/webhooks")
	{
		hooks.POST("/jira", s.handleJiraWebhook)
		hooks.POST("/github", s.handleGitHubWebhook)
		hooks.POST("/azure", s.handleAzureWebhook)
	}

	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.POST("/tasks/:id/push", s.handlePushAll)
		api.POST("/tasks/:id/push/:provider", s.handlePush)
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError logs the error and returns a failure envelope.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	s.logger.Error("request failed",
		slog.String("path", c.FullPath()),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error()})
}
