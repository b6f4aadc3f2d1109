package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skotchmaster/shopcart/internal/config"
	"github.com/Skotchmaster/shopcart/internal/db"
	"github.com/Skotchmaster/shopcart/internal/events"
	"github.com/Skotchmaster/shopcart/internal/httpserver"
	"github.com/Skotchmaster/shopcart/internal/logging"
	"github.com/Skotchmaster/shopcart/internal/middleware/metrics"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/internal/session"
)

const sessionPurgeInterval = time.Hour

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel, cfg.LogFile).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	readyChecks := []httpserver.ReadyCheck{
		func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	}

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	var store session.Store
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client := session.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()
		rs := &session.RedisStore{Client: client, Prefix: cfg.RedisPrefix}
		readyChecks = append(readyChecks, rs.Ping)
		store = rs
	default:
		gs := &session.GormStore{DB: gdb}
		go purgeSessions(appCtx, gs)
		store = gs
	}

	sessions := &session.Manager{
		Store:  store,
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewProducer(cfg.KafkaBrokers, logger)
	}
	defer publisher.Close()

	gormRepo := &repo.GormRepo{DB: gdb}

	m := metrics.New(cfg.ServiceName)
	e := httpserver.New(logger, m)
	ipExtractor, err := httpserver.IPExtractor(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	e.IPExtractor = ipExtractor

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Svc:          &service.AuthService{Users: gormRepo, Sessions: sessions, Events: publisher},
			CookieSecure: cfg.CookieSecure,
		},
		CatalogHandler: &httpserver.CatalogHTTP{
			Svc: &service.CatalogService{Repo: gormRepo, Events: publisher},
		},
		CartHandler: &httpserver.CartHTTP{
			Svc: &service.CartService{Users: gormRepo, Products: gormRepo, Cart: gormRepo, Events: publisher},
		},
		UserHandler: &httpserver.UserHTTP{
			Svc:          &service.UserService{Users: gormRepo, Sessions: sessions, Events: publisher},
			CookieSecure: cfg.CookieSecure,
		},
		Sessions:        sessions,
		Metrics:         m,
		ReadyChecks:     readyChecks,
		LoginRatePerMin: cfg.LoginRatePerMin,
		CSRF:            cfg.CSRFEnabled,
		CookieSecure:    cfg.CookieSecure,
	})

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	go func() {
		logger.Info("server_starting", "addr", addr, "session_store", cfg.SessionStore, "kafka", len(cfg.KafkaBrokers) > 0)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server_shutting_down")
	stopApp()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo_shutdown_error", "error", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("server_stopped")
}

func purgeSessions(ctx context.Context, store *session.GormStore) {
	t := time.NewTicker(sessionPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.Purge(ctx)
			if err != nil {
				slog.Error("session_purge_error", "error", err)
				continue
			}
			slog.Debug("session_purge", "removed", n)
		}
	}
}
