package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"community-chat/internal/chat"
	"community-chat/internal/config"
	"community-chat/internal/db"
	grpcserver "community-chat/internal/grpc"
	"community-chat/internal/handlers"
	"community-chat/internal/logging"
	"community-chat/internal/middleware"
	"community-chat/internal/observability"
	"community-chat/internal/presence"
	"community-chat/internal/rabbitmq"
	"community-chat/internal/relay"
	"community-chat/internal/repositories"
	"community-chat/internal/telemetry"
	"community-chat/internal/tracing"
	"community-chat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Server.Environment)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to init tracing")
	}

	database, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	registry := presence.NewRegistry()
	hub := ws.NewHub()
	service := chat.NewService(registry, hub, messageRepo, groupRepo, notificationRepo)

	if cfg.AMQP.URL != "" {
		events, err := rabbitmq.Dial(cfg.AMQP.URL, cfg.AMQP.EventsExchange, "topic")
		if err != nil {
			logging.Warn().Err(err).Msg("ws events disabled")
		} else {
			observability.SetPublisher(events)
			defer events.Close()
		}

		instanceID := uuid.NewString()
		rl, err := relay.Dial(cfg.AMQP.URL, cfg.AMQP.RelayExchange, instanceID)
		if err != nil {
			logging.Warn().Err(err).Msg("message relay disabled, running single instance")
		} else {
			service.SetRelay(rl)
			defer rl.Close()
			go func() {
				if err := rl.Consume(ctx, service); err != nil {
					logging.Error().Err(err).Msg("relay consumer stopped")
				}
			}()
		}
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.AuditExchange)
	defer auditPublisher.Close()
	logging.Info().
		Str("mode", rabbitmq.PublisherMode(auditPublisher)).
		Str("noop_reason", rabbitmq.PublisherNoopReason(auditPublisher)).
		Msg("audit publisher ready")
	audit := telemetry.NewAuditEmitter(auditPublisher, cfg.AMQP.AuditRoutingKey, cfg.Tracing.ServiceName, cfg.Server.Environment)

	verifier := middleware.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	router := newRouter(cfg, verifier, audit, service, hub, registry, messageRepo, groupRepo, notificationRepo)

	healthServer := grpcserver.NewHealthServer(func(ctx context.Context) error {
		return db.Ping(ctx, database)
	}, cfg.Database.PingInterval)
	go healthServer.Watch(ctx)

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		logging.Fatal().Err(err).Str("port", cfg.Server.GRPCPort).Msg("failed to listen for grpc")
	}
	go func() {
		logging.Info().Str("port", cfg.Server.GRPCPort).Msg("grpc health server listening")
		if err := healthServer.Serve(lis); err != nil {
			logging.Error().Err(err).Msg("grpc server error")
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info().Str("port", cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http shutdown")
	}
	healthServer.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("tracing shutdown")
	}
}

func newRouter(
	cfg *config.Config,
	verifier *middleware.Verifier,
	audit *telemetry.AuditEmitter,
	service *chat.Service,
	hub *ws.Hub,
	registry *presence.Registry,
	messageRepo repositories.MessageRepository,
	groupRepo repositories.GroupRepository,
	notificationRepo repositories.NotificationRepository,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	router.Use(logging.GinMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, hub, registry, cfg.Server.Debug)

	router.GET("/ws", ws.NewHandler(hub, service, verifier, cfg.Realtime).Handle)

	chatHandler := handlers.NewChatHandler(messageRepo, groupRepo, audit)
	groupHandler := handlers.NewGroupHandler(groupRepo, audit)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, audit)

	authMiddleware := middleware.AuthMiddleware(verifier)
	moderators := middleware.RequireRoles(middleware.RoleAdmin, middleware.RoleSubAdmin)
	api := router.Group("/", authMiddleware)

	api.GET("/chats/messages", chatHandler.ListMessages)
	api.DELETE("/chats/messages/:message_id", chatHandler.DeleteMessage)
	api.POST("/chats/messages/:message_id/report", chatHandler.ReportMessage)
	api.GET("/chats/reports", moderators, chatHandler.ListReports)
	api.PUT("/chats/messages/:message_id/report", moderators, chatHandler.UpdateReportStatus)

	api.GET("/groups", groupHandler.ListGroups)
	api.GET("/groups/:group_id", groupHandler.GetGroup)
	api.POST("/groups", moderators, groupHandler.CreateGroup)
	api.PUT("/groups/:group_id", groupHandler.UpdateGroup)
	api.DELETE("/groups/:group_id/members/me", groupHandler.LeaveGroup)
	api.DELETE("/groups/:group_id", groupHandler.DeleteGroup)

	api.GET("/notifications", notificationHandler.ListNotifications)
	api.PUT("/notifications/read", notificationHandler.MarkRead)
	api.PUT("/notifications/:notification_id", moderators, notificationHandler.UpdateNotification)
	api.DELETE("/notifications/:notification_id", moderators, notificationHandler.DeleteNotification)

	return router
}
