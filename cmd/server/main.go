package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/ignite/leadscore/internal/api"
	"github.com/ignite/leadscore/internal/config"
	"github.com/ignite/leadscore/internal/leaderboard"
	"github.com/ignite/leadscore/internal/repository/postgres"
	"github.com/ignite/leadscore/internal/rules"
	"github.com/ignite/leadscore/internal/scoring"
	"github.com/ignite/leadscore/internal/suppression"
	"github.com/ignite/leadscore/internal/tracking"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale/stub processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Redis unavailable (%v), leaderboard cache disabled", err)
			redisClient = nil
		} else {
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		}
		cancel()
	}

	// Repositories
	scoreRepo := postgres.NewScoreRepo(db)
	ruleRepo := postgres.NewRuleRepo(db)
	contactRepo := postgres.NewContactRepo(db)
	boardRepo := postgres.NewLeaderboardRepo(db)
	suppRepo := postgres.NewSuppressionRepo(db)

	// Services
	engine := scoring.NewEngine(scoreRepo, contactRepo)
	ruleSvc := rules.NewService(ruleRepo)
	suppSvc := suppression.NewService(suppRepo)
	boardSvc := leaderboard.NewService(boardRepo, redisClient,
		cfg.Scoring.CacheTTL(), leaderboard.SortMode(cfg.Scoring.LeaderboardSort))

	// Tracking pipeline: SQS-backed when a queue is configured, otherwise
	// events are scored in-process.
	applier := tracking.NewApplier(engine, suppSvc)
	var sink tracking.Sink
	var consumer *tracking.Consumer
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Tracking.AWSRegion))
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		sink = tracking.NewPublisher(sqsClient, cfg.Tracking.QueueURL)
		consumer = tracking.NewConsumer(sqsClient, cfg.Tracking.QueueURL, applier)
		log.Printf("Tracking events via SQS queue %s", cfg.Tracking.QueueURL)
	} else {
		sink = tracking.NewDirectSink(applier)
		log.Println("Tracking events scored in-process (no SQS queue configured)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if consumer != nil {
		consumer.Start(ctx)
	}

	scoringAPI := api.NewScoringAPI(engine, ruleSvc, boardSvc, suppSvc, scoreRepo, cfg.Scoring.DefaultOrgID)
	router := api.SetupRoutes(scoringAPI)

	trackingHandler := tracking.NewHandler(sink, cfg.Tracking.Secret)
	router.Mount("/t", trackingHandler.Routes())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("lead scoring server listening on %s:%d", host, port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if consumer != nil {
		consumer.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}
