package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipforge/clipforge-render/internal/api"
	"github.com/clipforge/clipforge-render/internal/config"
	"github.com/clipforge/clipforge-render/internal/db"
	"github.com/clipforge/clipforge-render/internal/engine"
	"github.com/clipforge/clipforge-render/internal/fetch"
	"github.com/clipforge/clipforge-render/internal/jobs"
	"github.com/clipforge/clipforge-render/internal/logging"
	"github.com/clipforge/clipforge-render/internal/playback"
	"github.com/clipforge/clipforge-render/internal/probe"
	"github.com/clipforge/clipforge-render/internal/publish"
	"github.com/clipforge/clipforge-render/internal/sweeper"
	"github.com/clipforge/clipforge-render/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting render agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	store := jobs.NewSQLiteStore(database.Conn())

	instanceID, err := ensureSetting(store, "instance_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure instance ID: %w", err)
	}
	authToken, err := ensureSetting(store, "auth_token", 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                CLIPFORGE RENDER AGENT v" + config.Version + "              ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:     http://127.0.0.1:%-26d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token:  %-44s ║\n", authToken)
	fmt.Printf("║  Instance ID: %-44s ║\n", instanceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	doctor := probe.NewCachedDoctor(
		probe.NewDoctor(cfg.FFmpegPath(), cfg.FFprobePath(), logger), logger)

	initCtx, initCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer initCancel()
	if report, err := doctor.Refresh(initCtx); err != nil {
		logger.Warn("initial toolchain check failed", "error", err)
	} else if !report.Ready {
		logger.Warn("encoding toolchain incomplete, renders will fail",
			"ffmpeg", report.FFmpeg.Present,
			"ffprobe", report.FFprobe.Present,
		)
	} else {
		logger.Info("encoding toolchain ready",
			"ffmpeg", report.FFmpeg.Version,
			"ffprobe", report.FFprobe.Version,
		)
	}

	var cache *fetch.Cache
	if cfg.CacheEnabled() {
		cache, err = fetch.NewCache(cfg.CacheDir(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize download cache: %w", err)
		}
	}
	fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout(), cache, cfg.ScratchDir(), logger)

	var publisher publish.Publisher
	if cfg.StorageEndpoint() != "" {
		s3, err := publish.NewS3Publisher(publish.S3Config{
			Endpoint:     cfg.StorageEndpoint(),
			Bucket:       cfg.StorageBucket(),
			Region:       cfg.StorageRegion(),
			AccessKey:    cfg.StorageAccessKey(),
			SecretKey:    cfg.StorageSecretKey(),
			PublicRead:   cfg.StoragePublicRead(),
			SignedURLTTL: cfg.SignedURLTTL(),
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		publisher = s3
		logger.Info("object storage enabled", "endpoint", cfg.StorageEndpoint(), "bucket", cfg.StorageBucket())
	} else {
		publisher = publish.NewStub(logger)
		logger.Info("object storage not configured, artifacts stay local")
	}

	notifier := publish.NewWebhookNotifier(cfg.CallbackSecret(), logger)

	eng, err := engine.New(engine.Options{
		Store:         store,
		Fetcher:       fetcher,
		Prober:        probe.NewFFprobe(cfg.FFprobePath(), cfg.ProbeTimeout(), logger),
		Encoder:       engine.NewFFmpeg(cfg.FFmpegPath(), logger),
		Publisher:     publisher,
		Notifier:      notifier,
		Presets:       cfg.Presets(),
		ScratchDir:    cfg.ScratchDir(),
		ArtifactsDir:  cfg.ArtifactsDir(),
		MaxConcurrent: cfg.MaxConcurrent(),
		EncodeTimeout: cfg.EncodeTimeout(),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw := sweeper.New(sweeper.Config{
		Cache:             cache,
		ScratchDir:        cfg.ScratchDir(),
		ArtifactsDir:      cfg.ArtifactsDir(),
		CacheRetention:    cfg.CacheRetention(),
		ArtifactRetention: cfg.ArtifactRetention(),
		Logger:            logger,
	})
	go sw.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Engine:     eng,
		Store:      store,
		Doctor:     doctor,
		Playback:   playback.NewServer(logger),
		Logger:     logger,
		StartTime:  startTime,
		InstanceID: instanceID,
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Engine: eng,
			Logger: logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Error("jobs still running at shutdown deadline", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// ensureSetting returns the stored value for key, generating and
// persisting a random hex string on first run.
func ensureSetting(store jobs.Store, key string, numBytes int) (string, error) {
	ctx := context.Background()

	existing, err := store.GetSetting(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	raw := make([]byte, numBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	value := hex.EncodeToString(raw)

	if err := store.SetSetting(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
