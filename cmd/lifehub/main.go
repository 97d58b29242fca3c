package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"lifehub/internal/cache"
	"lifehub/internal/cli"
	apphttp "lifehub/internal/http"
	"lifehub/internal/hubs"
	"lifehub/internal/log"
	"lifehub/internal/services"
	"lifehub/internal/session"
)

const (
	boardCacheSize   = 1000
	hubStateSize     = 1000
	maxSessions      = 10000
	cacheCleanupTick = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.Setup("info", log.ComponentApp), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	tokens, err := cfg.Tokens()
	if err != nil {
		cli.Fatal(logger, "Invalid API tokens", err)
	}
	if len(tokens) == 0 {
		logger.Warn("No API tokens configured, every /api/v1 request will be rejected")
	}

	res, err := cli.OpenBackend(context.Background(), logger.WithComponent(log.ComponentBackend), cfg, false)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	var (
		publisher services.EventPublisher
		events    apphttp.EventBus
	)
	if res.Events != nil {
		publisher, events = res.Events, res.Events
	} else {
		logger.Info("Event publishing disabled - no AMQP_URL provided")
	}

	boards := cache.NewLRUCache[services.Board](boardCacheSize, cfg.BoardCacheTTL)
	hubState := cache.NewLRUCache[hubs.Preferences](hubStateSize, cfg.SessionTTL)
	sessions := session.NewManager(cfg.SessionTTL, maxSessions)

	caches := cache.NewManager()
	caches.Register(boards)
	caches.Register(hubState)
	caches.Register(sessions.Cache())
	caches.StartCleanup(cacheCleanupTick)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounting: services.NewAccountingService(res.Store, publisher, services.AccountingOptions{
			AllowOverdraft: cfg.AllowOverdraft,
		}),
		Board:    services.NewBoardService(res.Store, boards),
		Hubs:     hubs.NewController(res.Store, hubState),
		Sessions: sessions,
		Store:    res.Store,
		Events:   events,
		Caches: map[string]apphttp.Sizer{
			"board":    boards,
			"hubs":     hubState,
			"sessions": sessions,
		},
		Tokens:             tokens,
		TrustedProxies:     cfg.TrustedProxyCIDRs(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting lifehub server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	<-ctx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}
