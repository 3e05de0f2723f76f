// Package main provides the main entry point for the Convivio matching service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/convivio/convivio/app/handlers"
	"github.com/convivio/convivio/app/router"
	"github.com/convivio/convivio/app/scheduler"
	"github.com/convivio/convivio/app/services"
	businessflow "github.com/convivio/convivio/business_flow"
	"github.com/convivio/convivio/config"
	"github.com/convivio/convivio/repository"
	"github.com/convivio/convivio/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Convivio matching service...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	if client == nil {
		return func() {}
	}

	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Set(ctx, utils.CacheHealthKey, time.Now().UTC().Format(time.RFC3339), 2*interval).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotifier builds the match notifier and its delivery providers
func initializeNotifier(cfg *config.ProductionConfig, rc *redis.Client) *services.QueueNotifier {
	telegram := services.NewMockTelegramProvider()

	var email services.EmailProvider
	switch cfg.Notification.Provider {
	case "live":
		email = services.NewSMTPEmailProvider(
			cfg.Notification.SMTPHost,
			cfg.Notification.SMTPPort,
			cfg.Notification.SMTPFrom,
			cfg.Notification.SMTPUsername,
			cfg.Notification.SMTPPassword,
		)
	default:
		email = services.NewMockEmailProvider()
	}

	return services.NewQueueNotifier(rc, telegram, email, cfg.Matching.StarterQuestions)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	pairingRepo := repository.NewPairingRepository(db)
	weeklyRepo := repository.NewWeeklyMatchRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	menteeRepo := repository.NewMenteeRepository(db)
	matchRepo := repository.NewMentorshipMatchRepository(db)
	runRepo := repository.NewRunRecordRepository(db)
	scheduleRepo := repository.NewScheduleConfigRepository(db)

	// Notification pipeline
	notifier := initializeNotifier(cfg, rc)
	stopFuncs = append(stopFuncs, notifier.StartDispatchWorker(context.Background()))

	// Business flows
	loc := cfg.Matching.Location()
	eligibility := businessflow.NewEligibilityFlow(userRepo, mentorRepo, menteeRepo, matchRepo)
	runFlow := businessflow.NewRunFlow(
		eligibility,
		pairingRepo,
		weeklyRepo,
		matchRepo,
		runRepo,
		scheduleRepo,
		db,
		notifier,
		businessflow.UTCClock,
		loc,
		cfg.Matching.LookbackWeeks,
	)
	scheduleFlow := businessflow.NewScheduleFlow(
		scheduleRepo,
		userRepo,
		mentorRepo,
		menteeRepo,
		matchRepo,
		weeklyRepo,
		runRepo,
		businessflow.UTCClock,
		loc,
	)

	// Scheduled runs
	runScheduler := scheduler.NewRunScheduler(runFlow, cfg.Matching.SchedulerInterval)
	stopFuncs = append(stopFuncs, runScheduler.Start(context.Background()))

	// HTTP surface
	matchingHandler := handlers.NewMatchingHandler(runFlow, scheduleFlow)
	r := router.NewFiberRouter(matchingHandler, cfg)

	return &Application{
		router:    r,
		config:    cfg,
		server:    r.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
