// Package app assembles the messaging core from its configuration.
package app

import (
	"context"
	"time"

	"chatcore/config"
	"chatcore/internal/auth"
	"chatcore/internal/fanout"
	"chatcore/internal/handler"
	"chatcore/internal/middleware"
	"chatcore/internal/proxy"
	"chatcore/internal/redis"
	"chatcore/internal/repository"
	"chatcore/internal/server"
	"chatcore/internal/services"
	"chatcore/internal/session"
	"chatcore/internal/typing"
	"chatcore/pkg/database"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	membershipCacheTTL = 5 * time.Minute
	presenceMirrorTTL  = 10 * time.Minute
	typingRetention    = time.Hour
	limiterCleanup     = 5 * time.Minute
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *goredis.Client

	Router        *fanout.Router
	Access        *proxy.AccessControl
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Delivery      *services.DeliveryService
	Presence      *services.PresenceService
	Sessions      *session.Manager
	Verifier      *auth.Verifier
	Hub           *server.Hub
	Server        *server.Server

	memoryLimiter *middleware.MemoryConnectionLimiter
	log           *logger.Logger
}

// New wires every component. rdb may be nil, in which case every redis
// backed component falls back to its in-process variant.
func New(cfg *config.Config, db *gorm.DB, rdb *goredis.Client, log *logger.Logger) *App {
	if log == nil {
		log = logger.NewNop()
	}
	a := &App{Config: cfg, DB: db, Redis: rdb, log: log}

	var routerOpts []fanout.Option
	if rdb != nil && cfg.FanoutBackplane == config.BackendRedis {
		routerOpts = append(routerOpts, fanout.WithBackplane(redis.NewBackplane(rdb)))
	}
	a.Router = fanout.NewRouter(log, routerOpts...)

	var cache proxy.MembershipCache
	var mirror services.PresenceMirror
	var typingStore typing.Store = typing.NewMemoryStore()
	var connLimiter middleware.ConnectionLimiter
	var msgLimiter middleware.MessageLimiter
	if rdb != nil {
		cache = redis.NewMembershipCache(rdb, membershipCacheTTL)
		mirror = redis.NewPresenceStore(rdb, presenceMirrorTTL)
		if cfg.TypingBackend == config.BackendRedis {
			typingStore = redis.NewTypingStore(rdb, typingRetention)
		}
		rl := redis.DefaultRateLimitConfig()
		if cfg.WSConnectLimit > 0 {
			rl.ConnectLimit = cfg.WSConnectLimit
		}
		limiter := redis.NewRateLimiter(rdb, rl)
		connLimiter = limiter
		msgLimiter = limiter
	} else if cfg.WSConnectLimit > 0 {
		a.memoryLimiter = middleware.NewMemoryConnectionLimiter(cfg.WSConnectLimit, time.Minute)
		connLimiter = a.memoryLimiter
	}

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	statusRepo := repository.NewDeliveryRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)

	a.Access = proxy.NewAccessControl(convRepo, cache, log)
	a.Conversations = services.NewConversationService(db, convRepo, a.Access)
	a.Messages = services.NewMessageService(db, msgRepo, convRepo, statusRepo, a.Access, a.Router, log)
	a.Delivery = services.NewDeliveryService(db, msgRepo, convRepo, statusRepo, a.Access)
	a.Presence = services.NewPresenceService(db, presenceRepo, convRepo, mirror, log)

	a.Sessions = session.NewManager(session.Deps{
		Router:   a.Router,
		Members:  a.Conversations,
		Messages: a.Messages,
		Delivery: a.Delivery,
		Presence: a.Presence,
		Typing:   typingStore,
		Logger:   log,
	}, session.Config{
		SendBuffer:    cfg.WSSendBuffer,
		CommandRate:   rate.Limit(cfg.WSCommandRate),
		CommandBurst:  cfg.WSCommandBurst,
		TypingTimeout: time.Duration(cfg.TypingTimeoutSec) * time.Second,
	})

	a.Conversations.OnLeave(func(ctx context.Context, conversationID, userID uuid.UUID) {
		if n := a.Sessions.Evict(conversationID, userID); n > 0 {
			log.Infof("evicted %d session(s) of user %s from conversation %s", n, userID, conversationID)
		}
	})

	a.Verifier = auth.NewVerifier(cfg.JWTSecret)
	a.Hub = server.NewHub()
	a.Server = server.New(cfg, log, a.Hub)

	wsLogger := server.NewWebSocketLogger(log)
	a.Server.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(a.Conversations, a.Delivery, a.Sessions),
		Message:      handler.NewMessageHandler(a.Messages, a.Router, log),
		User:         handler.NewUserHandler(a.Presence),
		WebSocket:    server.NewWebSocketHandler(a.Hub, a.Sessions, wsLogger),
	}, server.Dependencies{
		Verifier:          a.Verifier,
		ConnectionLimiter: connLimiter,
		MessageLimiter:    msgLimiter,
		HealthCheck:       a.healthCheck,
	})
	return a
}

func (a *App) healthCheck(ctx context.Context) error {
	if err := database.HealthCheck(ctx, a.DB); err != nil {
		return err
	}
	if a.Redis != nil {
		return redis.Ping(ctx, a.Redis)
	}
	return nil
}

// RunBackground starts the long-lived workers until ctx is done.
func (a *App) RunBackground(ctx context.Context) {
	go func() {
		if err := a.Router.Run(ctx); err != nil {
			a.log.Errorf("fanout backplane stopped: %s", err)
		}
	}()
	if a.memoryLimiter != nil {
		go a.memoryLimiter.Run(ctx, limiterCleanup)
	}
}
