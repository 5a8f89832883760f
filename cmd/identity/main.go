package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/identity/internal/audit"
	"github.com/Skotchmaster/identity/internal/config"
	"github.com/Skotchmaster/identity/internal/db"
	"github.com/Skotchmaster/identity/internal/events"
	"github.com/Skotchmaster/identity/internal/hash"
	"github.com/Skotchmaster/identity/internal/httpserver"
	"github.com/Skotchmaster/identity/internal/logging"
	loggingmw "github.com/Skotchmaster/identity/internal/middleware/logging"
	"github.com/Skotchmaster/identity/internal/middleware/ratelimit"
	"github.com/Skotchmaster/identity/internal/repo"
	"github.com/Skotchmaster/identity/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}

	l := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(l)

	openCtx, cancelOpen := context.WithTimeout(context.Background(), 30*time.Second)
	gdb, err := db.Open(openCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancelOpen()
	if err != nil {
		l.Error("db_init_error", "error", err)
		os.Exit(1)
	}

	publisher := events.NewAsync(buildPublisher(cfg, l), cfg.EventQueueSize, l)
	rdb := newRedisClient(cfg, l)

	store := repo.New(gdb)
	var rules []service.Rule
	if cfg.ValidateEmail {
		rules = append(rules, service.EmailFormat)
	}
	if cfg.MinPasswordLength > 0 {
		rules = append(rules, service.MinPasswordLength(cfg.MinPasswordLength))
	}
	auth := service.NewAuthService(store, store, hash.New(cfg.BcryptCost),
		service.WithTTL(cfg.TokenTTL),
		service.WithTokenLength(cfg.TokenLength),
		service.WithRules(rules...),
		service.WithPublisher(publisher),
		service.WithAdminEmails(cfg.AdminEmails...),
	)
	adminCtx, cancelAdmin := context.WithTimeout(logging.IntoContext(context.Background(), l), 30*time.Second)
	err = auth.EnsureAdmins(adminCtx)
	cancelAdmin()
	if err != nil {
		l.Error("admin_init_error", "error", err)
		os.Exit(1)
	}
	sweeper := &service.Sweeper{
		Store:     store,
		Retention: cfg.TokenRetention,
		Interval:  cfg.SweepInterval,
		Events:    publisher,
	}

	var limiter ratelimit.Limiter
	limitCfg := ratelimit.Config{
		Prefix:         cfg.ServiceName + ":login",
		Capacity:       cfg.LoginRateCapacity,
		RefillInterval: cfg.LoginRateRefillEvery,
	}
	if rdb != nil {
		limiter = ratelimit.NewRedisBucket(rdb, limitCfg)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), loggingmw.RequestLogger(l))

	httpserver.Register(e, &httpserver.Deps{
		DB:           gdb,
		AuthHandler:  &httpserver.AuthHandler{Auth: auth},
		AdminHandler: &httpserver.AdminHandler{Admin: &service.AdminService{Tokens: store}, Sweeper: sweeper},
		LoginLimiter: ratelimit.Middleware(limiter, limitCfg),
	})

	ctx, stop := context.WithCancel(logging.IntoContext(context.Background(), l))
	defer stop()
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		l.Info("http_server_start", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http_server_error", "error", err)
			stop()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case <-ctx.Done():
	}
	go func() {
		<-quit
		l.Warn("force_exit")
		os.Exit(1)
	}()

	l.Info("shutting_down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := publisher.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := db.Close(gdb); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		l.Error("shutdown_error", "error", err)
		os.Exit(1)
	}
	l.Info("shutdown_complete")
}

// buildPublisher fans events out to every configured sink. A sink that
// cannot be reached at startup is skipped.
func buildPublisher(cfg *config.Config, l *slog.Logger) events.Publisher {
	var sinks events.Multi

	if len(cfg.KafkaBrokers) > 0 {
		p, err := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			l.Error("kafka_init_error", "error", err)
		} else {
			sinks = append(sinks, p)
		}
	}
	if cfg.RabbitMQURL != "" {
		p, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			l.Error("rabbitmq_init_error", "error", err)
		} else {
			sinks = append(sinks, p)
		}
	}
	if cfg.ESURL != "" {
		client, err := audit.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			l.Error("es_init_error", "error", err)
		} else {
			sinks = append(sinks, audit.NewIndexer(client, cfg.ESIndex))
		}
	}

	if len(sinks) == 0 {
		return events.Noop{}
	}
	return sinks
}

func newRedisClient(cfg *config.Config, l *slog.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		l.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
