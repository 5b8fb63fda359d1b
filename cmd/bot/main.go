package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"warden.app/bot/common/id"
	"warden.app/bot/common/logger"
	"warden.app/bot/common/otel"
	"warden.app/bot/core/config"
	"warden.app/bot/core/db"
	"warden.app/bot/internal/audit"
	"warden.app/bot/internal/classifier"
	"warden.app/bot/internal/gateway"
	"warden.app/bot/internal/http/handler"
	"warden.app/bot/internal/http/middleware"
	httprouter "warden.app/bot/internal/http/router"
	"warden.app/bot/internal/moderation"
	"warden.app/bot/internal/notify"
	"warden.app/bot/internal/platform/discord"
	"warden.app/bot/internal/status"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "warden starting", "env", cfg.Env)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected")

	platform := discord.NewClient(discord.Config{
		BotToken: cfg.Discord.BotToken,
		BaseURL:  cfg.Discord.APIBaseURL,
	})
	restrictions := discord.NewRestrictions(platform, cfg.Discord.GuildID)

	fallback := classifier.NewKeyword(cfg.Moderation.Blocklist)
	var model classifier.Client = fallback
	if cfg.Classifier.Enabled() {
		model, err = classifier.NewOpenAI(classifier.OpenAIConfig{
			APIKey:  cfg.Classifier.APIKey,
			BaseURL: cfg.Classifier.BaseURL,
			Model:   cfg.Classifier.Model,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create classifier", "error", err)
			os.Exit(1)
		}
	} else {
		slog.WarnContext(ctx, "no model api key configured, keyword policy only")
	}

	classifierGateway := gateway.New(gateway.Config{
		Name:        "classifier",
		MinInterval: cfg.Classifier.MinInterval,
		CallTimeout: cfg.Classifier.CallTimeout,
		BaseBackoff: cfg.Classifier.BaseBackoff,
		MaxBackoff:  cfg.Classifier.MaxBackoff,
		RetryDelay:  cfg.Classifier.RetryDelay,
		MaxRetries:  cfg.Classifier.MaxRetries,
	})
	go func() {
		if err := classifierGateway.Run(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "classifier gateway stopped", "error", err)
		}
	}()

	var sink notify.Sink = notify.Nop{}
	if cfg.Discord.LogForwardingEnabled() {
		sink = notify.NewChannelSink(platform, cfg.Discord.LogChannelID)
		// Warn and error logs also land in the moderation log channel.
		slog.SetDefault(slog.New(
			notify.NewForwardHandler(slog.Default().Handler(), sink, slog.LevelWarn)))
	}

	auditStore := audit.NewStore(database)
	moderator := moderation.NewService(
		moderation.Config{RestrictionDuration: cfg.Moderation.RestrictionDuration},
		classifierGateway,
		model,
		fallback,
		restrictions,
		moderation.NewRedisDeduper(redisClient, cfg.Moderation.DedupeTTL),
		auditStore,
		sink,
	)

	reconciler := status.NewReconciler(status.Config{
		ChannelID:         cfg.Discord.StatusChannelID,
		Tick:              cfg.Status.Tick,
		RefreshInterval:   cfg.Status.RefreshInterval,
		RefreshMaxBackoff: cfg.Status.RefreshMaxBackoff,
		EditInterval:      cfg.Status.EditInterval,
		EditCooldown:      cfg.Status.EditCooldown,
	}, restrictions, platform, status.NewRedisStore(redisClient))
	go func() {
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "status reconciler stopped", "error", err)
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Handlers{
		Messages:     handler.NewMessageHandler(moderator),
		Restrictions: handler.NewRestrictionHandler(restrictions),
		Actions:      handler.NewActionHandler(auditStore),
	}, classifierGateway)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, handlers httprouter.Handlers, classifierGateway *gateway.Gateway) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, handlers, classifierGateway)

	return router
}
