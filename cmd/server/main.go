package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/minicrm/internal/ai"
	"github.com/ignite/minicrm/internal/api"
	"github.com/ignite/minicrm/internal/auth"
	"github.com/ignite/minicrm/internal/config"
	"github.com/ignite/minicrm/internal/message"
	"github.com/ignite/minicrm/internal/pkg/distlock"
	"github.com/ignite/minicrm/internal/pkg/logger"
	"github.com/ignite/minicrm/internal/repository/postgres"
	"github.com/ignite/minicrm/internal/service/audience"
	"github.com/ignite/minicrm/internal/service/campaign"
	"github.com/ignite/minicrm/internal/service/customer"
	"github.com/ignite/minicrm/internal/service/delivery"
	"github.com/ignite/minicrm/internal/service/order"
	"github.com/ignite/minicrm/internal/vendorsim"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		*configPath = ""
	}
	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database URL is required (set DATABASE_URL or database.url)")
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("database connected")

	// Redis is optional: without it the dispatch lock falls back to a
	// Postgres advisory lock.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unreachable, using advisory locks", "error", err)
			redisClient.Close()
			redisClient = nil
		} else {
			logger.Info("redis connected")
		}
	}

	custRepo := postgres.NewCustomerRepo(db)
	orderRepo := postgres.NewOrderRepo(db)
	campRepo := postgres.NewCampaignRepo(db)
	commRepo := postgres.NewCommunicationRepo(db)

	resolver := audience.NewResolver(custRepo)
	reconciler := delivery.NewReconciler(commRepo)
	simulator := vendorsim.NewSimulator(reconciler,
		vendorsim.WithSuccessRate(cfg.Vendor.SuccessRate),
		vendorsim.WithDelay(func() time.Duration {
			spread := cfg.Vendor.MaxDelayMS - cfg.Vendor.MinDelayMS
			if spread <= 0 {
				return time.Duration(cfg.Vendor.MinDelayMS) * time.Millisecond
			}
			return time.Duration(cfg.Vendor.MinDelayMS+rand.Intn(spread)) * time.Millisecond
		}),
	)

	lockFunc := func(key string) distlock.Lock {
		return distlock.New(redisClient, db, key, campaign.DispatchLockTTL)
	}
	dispatcher := campaign.NewDispatcher(campRepo, commRepo, resolver, message.NewRenderer(), simulator, lockFunc)

	var aiSvc api.AIService
	if cfg.OpenAI.APIKey != "" {
		aiSvc = ai.NewClient(cfg.OpenAI.APIKey, nil)
	} else {
		logger.Warn("OPENAI_API_KEY not set, AI endpoints disabled")
	}

	var authManager *auth.Manager
	if len(cfg.Auth.Tokens) > 0 {
		authManager = auth.NewManager(cfg.Auth.Tokens)
	} else {
		logger.Warn("no API tokens configured, API is open")
	}

	handlers := api.NewHandlers(
		customer.NewService(custRepo),
		order.NewLedger(orderRepo),
		dispatcher,
		resolver,
		reconciler,
		simulator,
		aiSvc,
	)
	server := api.NewServer(cfg.Server, handlers, authManager)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}

	// Let in-flight campaign fan-outs finish posting their receipts.
	dispatcher.WaitForDispatch()
	if redisClient != nil {
		redisClient.Close()
	}
	logger.Info("shutdown complete")
}
