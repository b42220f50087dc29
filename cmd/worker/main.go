package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/broadsend/groupcast/internal/channel"
	"github.com/broadsend/groupcast/internal/config"
	"github.com/broadsend/groupcast/internal/domain"
	"github.com/broadsend/groupcast/internal/pkg/distlock"
	"github.com/broadsend/groupcast/internal/queue"
	"github.com/broadsend/groupcast/internal/repository/postgres"
	"github.com/broadsend/groupcast/internal/service/campaign"
	"github.com/broadsend/groupcast/internal/worker"
)

func main() {
	log.Println("Starting Groupcast dispatch worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	pingCancel()
	log.Println("Connected to database")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	campaignRepo := postgres.NewCampaignRepo(db)
	jobRepo := postgres.NewJobRepo(db)
	groupRepo := postgres.NewGroupRepo(db)
	templateRepo := postgres.NewTemplateRepo(db)
	dispatchQueue := queue.New(rdb)

	adapters := channel.Registry{}
	if cfg.Gateways.WhatsApp.BaseURL != "" {
		adapters[domain.ChannelWhatsApp] = channel.NewGatewayClient(
			cfg.Gateways.WhatsApp.BaseURL, cfg.Gateways.WhatsApp.APIKey, nil)
		log.Println("WhatsApp gateway configured")
	}
	if cfg.Gateways.Telegram.BaseURL != "" {
		adapters[domain.ChannelTelegram] = channel.NewGatewayClient(
			cfg.Gateways.Telegram.BaseURL, cfg.Gateways.Telegram.APIKey, nil)
		log.Println("Telegram gateway configured")
	}
	if len(adapters) == 0 {
		log.Println("WARNING: no channel gateways configured, deliveries will fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := worker.NewDispatcher(dispatchQueue, jobRepo, templateRepo, adapters)
	dispatcher.SetWorkers(cfg.Dispatch.Workers)
	dispatcher.SetPollInterval(cfg.Dispatch.PollInterval())
	go dispatcher.Start(ctx)
	log.Printf("Dispatcher started (%d workers, poll %s)", cfg.Dispatch.Workers, cfg.Dispatch.PollInterval())

	if cfg.Watchdog.Enabled {
		svc := campaign.NewService(campaignRepo, jobRepo, groupRepo, templateRepo, dispatchQueue)
		lock := distlock.NewLock(rdb, db, "groupcast:watchdog", worker.WatchdogLockTTL)
		watchdog := worker.NewRepeatWatchdog(svc, lock)
		watchdog.SetInterval(cfg.Watchdog.Tick())
		go watchdog.Start(ctx)
		log.Printf("Repeat watchdog started (tick %s)", cfg.Watchdog.Tick())
	}

	recovery := worker.NewJobRecovery(jobRepo, dispatchQueue)
	go recovery.Start(ctx)
	log.Println("Job recovery started (reclaims stuck and overdue jobs)")

	if cfg.GroupSync.Enabled {
		groupSync := worker.NewGroupSync(adapters, groupRepo, groupRepo)
		groupSync.SetInterval(cfg.GroupSync.Interval())
		go groupSync.Start(ctx)
		log.Printf("Group sync started (every %s)", cfg.GroupSync.Interval())
	}

	// Heartbeat
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent, failed := dispatcher.Stats()
				depth, _ := dispatchQueue.Depth(ctx)
				log.Printf("Worker heartbeat: sent=%d failed=%d queued=%d", sent, failed, depth)
			}
		}
	}()

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	// Give in-flight sends time to finish
	time.Sleep(2 * time.Second)
	log.Println("Worker stopped")
}
