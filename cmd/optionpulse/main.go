package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/optick/optionpulse/internal/config"
	"github.com/optick/optionpulse/internal/engine"
	"github.com/optick/optionpulse/internal/kite"
	"github.com/optick/optionpulse/internal/logger"
	"github.com/optick/optionpulse/internal/market"
	"github.com/optick/optionpulse/internal/models"
	"github.com/optick/optionpulse/internal/server"
	"github.com/optick/optionpulse/internal/storage"
	"github.com/optick/optionpulse/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

// maxBurstNotify caps how many burst contracts go into one Telegram message.
const maxBurstNotify = 10

func main() {
	flag.Parse()

	_ = godotenv.Load() // .env is optional; real deployments export directly

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.InitWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File,
		cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.MaxRows, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	var token kite.TokenSource
	if cfg.Kite.RedisURL != "" {
		redisToken, err := kite.NewRedisToken(cfg.Kite.RedisURL, cfg.Kite.RedisTokenKey)
		if err != nil {
			logger.Fatal("Failed to initialize Redis token source: %v", err)
		}
		defer redisToken.Close() //nolint:errcheck
		token = redisToken
		logger.Info("Access token sourced from Redis key %q", cfg.Kite.RedisTokenKey)
	} else {
		token = kite.StaticToken(cfg.Kite.AccessToken)
	}

	kiteClient := kite.NewClient(
		cfg.Kite.APIURL,
		cfg.Kite.APIKey,
		token,
		cfg.Kite.Timeout,
		kite.ClientConfig{
			MaxRetries:     cfg.Kite.MaxRetries,
			RetryDelayBase: cfg.Kite.RetryDelayBase,
		},
	)

	eng := engine.New(kiteClient, store, engine.Config{
		Index:          cfg.Scan.Index,
		SpotInstrument: cfg.Scan.SpotInstrument,
		StrikeRange:    cfg.Scan.StrikeRange,
		MaxContracts:   cfg.Scan.MaxContracts,
		CatalogRefresh: cfg.Scan.CatalogRefresh,
	})

	hours, err := market.NewHours(cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close)
	if err != nil {
		logger.Fatal("Invalid market hours: %v", err)
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var httpServer *http.Server
	if cfg.Server.Enabled {
		srv := server.New(eng, store)
		httpServer = &http.Server{Addr: cfg.Server.ListenAddr, Handler: srv.Handler()}
		go func() {
			logger.Info("Dashboard API listening on %s", cfg.Server.ListenAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed: %v", err)
			}
		}()
	}

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		if httpServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown failed: %v", err)
			}
		}
		cancel()
	}()

	if cfg.Telegram.Enabled && telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting option chain poller (index: %s, interval: %v, strike_range: %.0f, max_contracts: %d)",
		cfg.Scan.Index,
		cfg.Scan.PollInterval,
		cfg.Scan.StrikeRange,
		cfg.Scan.MaxContracts,
	)

	ticker := time.NewTicker(cfg.Scan.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	runCycle := func() {
		if cfg.Market.Enforce && !hours.IsOpen(time.Now()) {
			logger.Debug("Market closed, skipping cycle")
			return
		}

		batch, err := eng.RunCycle(ctx)
		if err != nil {
			consecutiveFailures++
			logger.Error("Poll cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0

		bursts := burstRows(batch)
		logger.Info("Cycle %s: %d contracts scored, %d bursts, best %s (%.2f%%)",
			batch.CycleID, len(batch.Rows), len(bursts), bestSymbol(batch), bestConfidence(batch))

		if len(bursts) > 0 && telegramClient != nil {
			if err := telegramClient.SendBursts(bursts, batch.At); err != nil {
				logger.Error("Failed to send burst notification: %v", err)
			}
		}

		if err := store.Rotate(); err != nil {
			logger.Warn("Failed to rotate snapshots: %v", err)
		}
	}

	logger.Debug("Running initial poll cycle")
	runCycle()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			runCycle()
		}
	}
}

// burstRows extracts the burst-flagged rows of a batch, preserving rank
// order.
func burstRows(batch *engine.Batch) []models.ContractRow {
	var bursts []models.ContractRow
	for _, r := range batch.Rows {
		if r.VolumeBurst {
			bursts = append(bursts, r)
		}
	}
	if len(bursts) > maxBurstNotify {
		bursts = bursts[:maxBurstNotify]
	}
	return bursts
}

func bestSymbol(batch *engine.Batch) string {
	if len(batch.Rows) == 0 {
		return "-"
	}
	return batch.Rows[0].Symbol
}

func bestConfidence(batch *engine.Batch) float64 {
	if len(batch.Rows) == 0 {
		return 0
	}
	return batch.Rows[0].Confidence
}
