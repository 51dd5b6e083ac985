package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatcore/config"
	"chatcore/internal/auth"
	"chatcore/internal/handler"
	"chatcore/internal/middleware"
	"chatcore/internal/transport/httpdto"
	"chatcore/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	hub        *Hub
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	User         *handler.UserHandler
	WebSocket    *WebSocketHandler
}

// Dependencies are the cross-cutting collaborators the routes need.
type Dependencies struct {
	Verifier          *auth.Verifier
	ConnectionLimiter middleware.ConnectionLimiter
	MessageLimiter    middleware.MessageLimiter
	// HealthCheck reports whether the backing stores are reachable.
	HealthCheck func(ctx context.Context) error
}

func New(cfg *config.Config, l *logger.Logger, hub *Hub) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		hub:    hub,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for httptest.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ws := s.engine.Group("/ws", middleware.WebSocketAuthMiddleware(deps.Verifier))
	if deps.ConnectionLimiter != nil {
		ws.Use(middleware.WebSocketRateLimitMiddleware(deps.ConnectionLimiter))
	}
	{
		ws.GET("/conversations/:id", handlers.WebSocket.Conversation)
		ws.GET("/notifications", handlers.WebSocket.Notifications)
	}

	writes := []gin.HandlerFunc{}
	if deps.MessageLimiter != nil {
		writes = append(writes, middleware.MessageRateLimitMiddleware(deps.MessageLimiter))
	}
	withWrites := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writes...), h)
	}

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(deps.Verifier))
	{
		v1.POST("/conversations", withWrites(handlers.Conversation.Create)...)
		v1.GET("/conversations", handlers.Conversation.List)
		v1.GET("/conversations/:id", handlers.Conversation.GetByID)
		v1.POST("/conversations/:id/members", withWrites(handlers.Conversation.AddMember)...)
		v1.DELETE("/conversations/:id/members/me", handlers.Conversation.Leave)
		v1.PUT("/conversations/:id/archive", handlers.Conversation.SetArchived)
		v1.POST("/conversations/:id/delivered", handlers.Conversation.MarkDelivered)
		v1.GET("/conversations/:id/unread", handlers.Conversation.Unread)
		v1.GET("/conversations/:id/typing", handlers.Conversation.Typing)

		v1.GET("/conversations/:id/messages", handlers.Message.History)
		v1.GET("/conversations/:id/messages/moderation", handlers.Message.ModerationHistory)
		v1.PUT("/conversations/:id/messages/:message_id/pin", handlers.Message.SetPinned)
		v1.GET("/messages/:id/statuses", handlers.Message.Statuses)
		v1.GET("/messages/:id/reactions", handlers.Message.Reactions)
		v1.POST("/messages/:id/forward", withWrites(handlers.Message.Forward)...)

		v1.GET("/users/:id/presence", handlers.User.Presence)
		v1.PUT("/users/me/presence", handlers.User.UpdatePrivacy)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if s.hub != nil {
		s.hub.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
