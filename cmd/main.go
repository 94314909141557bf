/**
 * @description
 * This is the main entry point for the movement-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, cache, message broker, repositories, the movement orchestrators,
 * the reconciler schedule, and the HTTP server. It wires everything together
 * and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for the read cache.
 * - github.com/robfig/cron/v3: Scheduler for the stuck-pending reconciler.
 * - internal/api, internal/app, internal/cache, internal/config,
 *   internal/observability, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/paygate/movement-service/internal/api"
	"github.com/paygate/movement-service/internal/app"
	"github.com/paygate/movement-service/internal/cache"
	"github.com/paygate/movement-service/internal/config"
	"github.com/paygate/movement-service/internal/observability"
	"github.com/paygate/movement-service/internal/store"
	"github.com/paygate/movement-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.AdminJWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"admin jwt secret must be configured\" env=ADMIN_JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting movement-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Configure connection pool for high-traffic scenarios.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish movement events. The
	// service only publishes; a missing broker degrades to the fallback.
	var producer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the Redis-backed read cache. A missing or unreachable Redis
	// degrades to a no-op cache; correctness never depends on it.
	var cacheStore cache.Store = cache.NoopStore{}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; read cache disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; read cache disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; read cache disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				cacheStore = cache.NewRedisStore(redisClient, time.Duration(cfg.CacheTTLSeconds)*time.Second)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the data access layer and wrap the stores with spans.
	repository := store.NewPostgresRepository(dbpool)
	sink := observability.NewOtelSink("movement-service")

	saldos := observability.ObservedSaldoStore{Inner: repository.Saldos(), Sink: sink}
	cards := observability.ObservedCardStore{Inner: repository.Cards(), Sink: sink}
	merchants := observability.ObservedMerchantStore{Inner: repository.Merchants(), Sink: sink}
	transactions := observability.ObservedTransactionStore{TransactionStore: repository.Transactions(), Sink: sink}
	transfers := observability.ObservedTransferStore{TransferStore: repository.Transfers(), Sink: sink}

	// Initialize the movement orchestrators with their dependencies.
	transactionService := app.NewTransactionService(
		transactions, merchants, cards, saldos,
		cacheStore, sink, producer,
		cfg.MovementEventExchange, cfg.StatusRetryAttempts,
	)
	transferService := app.NewTransferService(
		transfers, cards, saldos,
		cacheStore, sink, producer,
		cfg.MovementEventExchange, cfg.StatusRetryAttempts,
	)
	topupService := app.NewTopupService(
		repository.Topups(), cards, saldos,
		cacheStore, sink, producer,
		cfg.MovementEventExchange, cfg.StatusRetryAttempts,
	)
	withdrawService := app.NewWithdrawService(
		repository.Withdraws(), saldos,
		cacheStore, sink, producer,
		cfg.MovementEventExchange, cfg.StatusRetryAttempts,
	)

	// Schedule the stuck-pending reconciler.
	reconciler := app.NewReconciler(
		transactions, transfers, producer,
		cfg.MovementEventExchange,
		time.Duration(cfg.ReconcilePendingAfterMinute)*time.Minute,
	)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReconcileCronSpec, reconciler.Run); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"reconciler schedule invalid\" spec=%q err=%v", cfg.ReconcileCronSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize the API handlers and router.
	handlers := &api.MovementHandlers{
		Transactions:     transactionService,
		TransactionReads: app.NewTransactionQueryService(transactions, cacheStore),
		Transfers:        transferService,
		TransferReads:    app.NewTransferQueryService(transfers, cacheStore),
		Topups:           topupService,
		Withdraws:        withdrawService,
	}
	router := api.MovementRoutes(handlers, cfg.AdminJWTSecret)

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
