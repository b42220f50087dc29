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

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/broadsend/groupcast/internal/api"
	"github.com/broadsend/groupcast/internal/config"
	"github.com/broadsend/groupcast/internal/media"
	"github.com/broadsend/groupcast/internal/pkg/distlock"
	"github.com/broadsend/groupcast/internal/queue"
	"github.com/broadsend/groupcast/internal/repository/postgres"
	"github.com/broadsend/groupcast/internal/service/campaign"
	"github.com/broadsend/groupcast/internal/worker"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
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
	log.Println("Starting Groupcast API server...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
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

	svc := campaign.NewService(campaignRepo, jobRepo, groupRepo, templateRepo, dispatchQueue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mediaStore api.MediaStore
	if cfg.Media.Enabled {
		s, err := media.NewFromEnv(ctx, cfg.Media.Bucket, cfg.Media.Region,
			cfg.Media.AccessKey, cfg.Media.SecretKey, cfg.Media.BaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize media store: %v", err)
		}
		mediaStore = s
		log.Printf("Media store initialized (bucket %s)", cfg.Media.Bucket)
	}

	// The watchdog normally lives in the worker binary; embedding it here
	// covers single-binary deployments. The distributed lock keeps the two
	// from planning the same repeat wave.
	if cfg.Watchdog.Enabled {
		var lock distlock.DistLock
		if cfg.Watchdog.Distlock {
			lock = distlock.NewLock(rdb, db, "groupcast:watchdog", worker.WatchdogLockTTL)
		}
		wd := worker.NewRepeatWatchdog(svc, lock)
		wd.SetInterval(cfg.Watchdog.Tick())
		go wd.Start(ctx)
		log.Printf("Repeat watchdog started (tick %s)", cfg.Watchdog.Tick())
	}

	handlers := api.NewHandlers(svc, templateRepo, groupRepo, mediaStore, nil)
	router := api.SetupRoutes(handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
