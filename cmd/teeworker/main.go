package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"teeworker/config"
	"teeworker/observability/logging"
	"teeworker/sealing"
	"teeworker/state"
	"teeworker/storage"
	"teeworker/txpool"
)

const envName = "TEE_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	checkShards := flag.Bool("check-shards", true, "Verify that every known shard unseals and decodes on startup")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))
	logger := logging.Setup("teeworker", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	backend, err := openBackend(cfg)
	if err != nil {
		logger.Error("Failed to open storage backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	sealer := newSealer(cfg, logger)
	if _, err := sealer.UnsealKey(); err != nil {
		logger.Error("Sealing key unavailable", slog.Any("error", err))
		os.Exit(1)
	}

	store := state.NewStore(backend, sealer, cfg.ShardsDir, cfg.StateFile)
	shards, err := store.ListShards()
	if err != nil {
		logger.Error("Failed to enumerate shards", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Shard tree opened", slog.Int("shards", len(shards)), slog.String("backend", cfg.StorageBackend))

	if *checkShards {
		for _, shard := range shards {
			if _, err := store.Load(shard); err != nil {
				logger.Error("Shard state unusable", slog.String("shard", shard.String()), slog.Any("error", err))
				os.Exit(1)
			}
		}
		logger.Info("All shards load cleanly", slog.Int("shards", len(shards)))
	}

	if cfg.MetricsAddress == "" {
		return
	}

	// The rotator is shared by reference with every pool thread; a
	// background sweep keeps expired bans from lingering between pool
	// maintenance passes.
	rotator := txpool.NewPoolRotatorWithBanTime(time.Duration(cfg.BanTimeMinutes) * time.Minute)
	go func() {
		for range time.Tick(time.Minute) {
			rotator.ClearTimeouts(time.Now())
		}
	}()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Serving metrics", slog.String("address", cfg.MetricsAddress))
	if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
		logger.Error("Metrics listener failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func openBackend(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendLevelDB:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "statedb"))
	default:
		return storage.NewFilesystem(cfg.DataDir), nil
	}
}

func newSealer(cfg *config.Config, logger *slog.Logger) sealing.Sealer {
	if cfg.InsecureSealing {
		logger.Warn("Insecure sealing enabled; shard state is stored in plaintext")
		return sealing.InsecureSealer{}
	}
	return sealing.NewAESSealer(sealing.FileKeySource(cfg.SealKeyFile))
}
