package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"careplus/internal/auth"
	channel_db "careplus/internal/channel/db"
	"careplus/internal/channel/channel_api"
	channel "careplus/internal/channel/service"
	"careplus/internal/config"
	"careplus/internal/database/migrations"
	"careplus/internal/kafka"
	"careplus/internal/logger"
	"careplus/internal/metrics"
	opd_db "careplus/internal/opd/db"
	"careplus/internal/opd/opd_api"
	"careplus/internal/opd/qr"
	opd_redis "careplus/internal/opd/redis"
	opd "careplus/internal/opd/service"
	"careplus/internal/records"
	"careplus/internal/records/records_api"
	"careplus/internal/server"
	"careplus/internal/sse"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

const roleCacheTTL = 5 * time.Minute

func connectDatabase(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var (
		sqldb *sql.DB
		err   error
	)
	attempts := cfg.ConnectRetry
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, attempts))
		sqldb, err = sql.Open("postgres", cfg.DSN())
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if sqldb != nil {
			sqldb.Close()
		}
		if i < attempts-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", attempts, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func buildVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	if cfg.Issuer != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.Issuer, cfg.ClientID)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("OIDC discovery for %s failed: %v", cfg.Issuer, err))
		}
		log.Info("AUTH", fmt.Sprintf("Verifying tokens against OIDC issuer %s", cfg.Issuer))
		return v
	}
	if cfg.JWTSecret == "" {
		log.Fatal("CONFIG", "Either OIDC_ISSUER or AUTH_JWT_SECRET must be set")
	}
	log.Warn("AUTH", "OIDC_ISSUER not set, verifying HS256 tokens with AUTH_JWT_SECRET")
	return auth.NewHMACVerifier(cfg.JWTSecret)
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	log.SetLevel(cfg.LogLevel)
	log.Info("APP", "Starting CarePlus service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB := connectDatabase(cfg.Database, log)
	defer bunDB.Close()

	if cfg.Migrations.Auto {
		runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Migrations.Dir, Auto: true}, log)
		if err := runner.Run(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Migrations failed: %v", err))
		}
		runner.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		client, err := auth.InitializeRedis(cfg.Redis.Addr, log)
		if err != nil {
			log.Warn("REDIS", "Continuing without Redis: issue holds and role caching are off")
		} else {
			redisClient = client
			defer redisClient.Close()
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	emitter := sse.NewQueueEventEmitter()
	origin := uuid.NewString()

	opdService := opd.NewOpdService(opd_db.New(bunDB), log)
	opdService.Emitter = emitter
	opdService.Metrics = m

	channelService := channel.NewChannelService(channel_db.New(bunDB), log)
	channelService.Metrics = m

	recordService := records.NewService(records.NewDB(bunDB), log)
	var resolver auth.RoleResolver = recordService

	if redisClient != nil {
		opdService.Hold = opd_redis.NewIssueHold(redisClient, cfg.Redis.HoldTTL)
		cached := auth.NewCachedRoleResolver(recordService, redisClient, roleCacheTTL, log)
		recordService.RoleCache = cached
		resolver = cached
	}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.AllTopics(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, origin, log)
		defer producer.Close()
		opdService.Publisher = producer
		channelService.Publisher = producer

		relay := kafka.NewQueueRelay(cfg.Kafka.Brokers, cfg.Kafka.Topics.SessionUpdated, origin, emitter.Emit, log)
		defer relay.Close()
		go relay.Run(ctx)
		log.Info("KAFKA", fmt.Sprintf("Kafka enabled with brokers %v", cfg.Kafka.Brokers))
	}

	gates := auth.NewGates(buildVerifier(ctx, cfg.Auth, log), resolver, log)

	router := server.NewRouter(server.Options{
		Gates: gates,
		Handlers: []server.RouteRegistrar{
			opd_api.NewHandler(opdService, emitter, qr.NewGenerator(cfg.QR.Secret), log),
			channel_api.NewHandler(channelService, log),
			records_api.NewHandler(recordService, resolver, log),
		},
		Health:         bunDB,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("CarePlus service running on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
		return
	}
	opdService.Wait()
	log.Info("HTTP", "CarePlus service shutdown complete")
}
