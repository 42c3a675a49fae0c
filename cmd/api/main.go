package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"bibomarket/internal/adapter/api"
	"bibomarket/internal/adapter/api/handler"
	apimiddleware "bibomarket/internal/adapter/api/middleware"
	"bibomarket/internal/adapter/api/router"
	"bibomarket/internal/adapter/repository"
	domainrepo "bibomarket/internal/domain/repository"
	"bibomarket/internal/infrastructure/events"
	"bibomarket/internal/infrastructure/marketapi"
	"bibomarket/internal/infrastructure/ratelimit"
	"bibomarket/internal/infrastructure/scheduler"
	"bibomarket/internal/infrastructure/storage"
	"bibomarket/internal/infrastructure/websocket"
	"bibomarket/internal/usecase"
	"bibomarket/pkg/config"
	"bibomarket/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	generated, err := cfg.Server.EnsureSecret()
	if err != nil {
		logger.Fatal("Failed to set up gateway secret: %v", err)
	}
	if generated {
		logger.Info("Generated gateway secret, written to %s", cfg.Server.SecretFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sessionRepo domainrepo.SessionRepository
	switch cfg.Session.Store {
	case "firestore":
		var opts []option.ClientOption
		if cfg.Firestore.CredentialsFile != "" {
			logger.Info("Using Firestore credentials from file: %s", cfg.Firestore.CredentialsFile)
			opts = append(opts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
		}
		firestoreClient, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID, opts...)
		if err != nil {
			logger.Fatal("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()
		sessionRepo = repository.NewFirestoreSessionRepository(firestoreClient, cfg.Firestore.Collection)
	default:
		logger.Info("Using in-memory session store; the session is lost on restart")
		sessionRepo = repository.NewMemorySessionRepository()
	}

	sources := []storage.Source{}
	if cfg.Storage.Enabled {
		gcsSource, err := storage.NewCloudStorageSource(ctx, cfg.Storage.CredentialsFile)
		if err != nil {
			logger.Fatal("Failed to initialize Cloud Storage: %v", err)
		}
		defer gcsSource.Close()
		sources = append(sources, gcsSource)
	}
	sources = append(sources, storage.NewLocalSource(cfg.Media.Root))
	mediaSource := storage.NewMultiSource(sources...)

	bus := events.NewBus()
	defer bus.Close()

	sessionUseCase := usecase.NewSessionUseCase(sessionRepo, bus, cfg.Session.Profile)
	if session, err := sessionUseCase.Restore(ctx); err != nil {
		logger.Error("Failed to restore session: %v", err)
	} else if session != nil {
		logger.Info("Restored session of user %s", session.User.ID)
	}

	apiClient := marketapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, sessionUseCase)
	apiClient.OnUnauthorized(sessionUseCase.Expire)
	messageService := marketapi.NewMessageClient(apiClient)
	cartService := marketapi.NewCartClient(apiClient)

	stager := usecase.NewMediaStager(mediaSource, cfg.Media.MaxSize)
	conversationUseCase := usecase.NewConversationUseCase(messageService, sessionUseCase, stager, bus)
	cartUseCase := usecase.NewCartUseCase(cartService, usecase.DefaultPromoRegistry(), bus)
	badgeUseCase := usecase.NewBadgeUseCase(cartService, messageService, bus)

	poller := scheduler.NewPoller(cfg.Poll.Interval, ratelimit.NewRateLimiter(cfg.Poll.EventBurst, cfg.Poll.EventCooldown))
	poller.WhenActive(func() bool {
		_, ok := sessionUseCase.Current()
		return ok
	})
	poller.Register(scheduler.JobCartBadge, badgeUseCase.RefreshCart)
	poller.Register(scheduler.JobConversationBadge, badgeUseCase.RefreshMessages)
	poller.Register(scheduler.JobSelectedThread, conversationUseCase.Refresh)

	triggers, cancelTriggers := bus.Subscribe(16, events.TopicCartUpdated, events.TopicConversationsUpdated, events.TopicSessionStarted)
	defer cancelTriggers()
	poller.Watch(triggers, map[string][]string{
		events.TopicCartUpdated:          {scheduler.JobCartBadge},
		events.TopicConversationsUpdated: {scheduler.JobConversationBadge},
		events.TopicSessionStarted:       {scheduler.JobCartBadge, scheduler.JobConversationBadge},
	})
	poller.Start()
	defer poller.Stop()

	endings, cancelEndings := bus.Subscribe(4, events.TopicSessionEnded)
	defer cancelEndings()
	go usecase.ResetOnSessionEnd(endings, conversationUseCase, cartUseCase, badgeUseCase)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)
	registerShellCommands(wsManager, conversationUseCase, poller)
	pushed, cancelPush := bus.Subscribe(256)
	defer cancelPush()
	wsManager.Forward(pushed)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(cfg.Server.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderContentType, apimiddleware.HeaderGatewaySecret},
		}))
	}
	e.Use(apimiddleware.GatewaySecret(cfg.Server.Secret, "/v1", "/ws"))
	e.Use(apimiddleware.RequireBodyType())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(sessionUseCase)
	handlers := &handler.Handlers{
		Session:      handler.NewSessionHandler(sessionUseCase),
		Conversation: handler.NewConversationHandler(conversationUseCase, poller),
		Cart:         handler.NewCartHandler(cartUseCase),
		Badge:        handler.NewBadgeHandler(badgeUseCase),
		Health:       handler.NewHealthHandler(sessionUseCase, wsManager, poller.Jobs),
		WebSocket:    handler.NewWebSocketHandler(wsManager, cfg.Server.AllowedOrigins),
	}
	refreshLimiter := ratelimit.NewRateLimiter(cfg.Poll.EventBurst, cfg.Poll.EventCooldown)
	router.Setup(e, handlers, authMiddleware, refreshLimiter)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Starting gateway on %s (backend %s)...", addr, cfg.Backend.BaseURL)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	conversationUseCase.Close()
	cartUseCase.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown Error: %v", err)
	}
}
