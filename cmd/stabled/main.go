package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/virpysec/defi-stablecoin/crypto"
	"github.com/virpysec/defi-stablecoin/native/stable"
	"github.com/virpysec/defi-stablecoin/native/token"
	"github.com/virpysec/defi-stablecoin/observability/logging"
	"github.com/virpysec/defi-stablecoin/storage"
)

// custodySeed derives the deterministic module custody address. Collateral in
// custody and the stable token's mint/burn capability both hang off it.
var custodySeed = []byte("stable-engine-custody000")

func main() {
	configFile := flag.String("config", "./stable.toml", "Path to the configuration file")
	dataDir := flag.String("data", "./stabled-data", "Directory for the state database")
	listenAddr := flag.String("listen", "127.0.0.1:9464", "Listen address for the metrics endpoint")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("STABLED_ENV"))
	logger := logging.Setup("stabled", env)

	cfg, err := stable.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(*dataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	registry, err := cfg.BuildRegistry(time.Now())
	if err != nil {
		logger.Error("failed to build collateral registry", slog.Any("error", err))
		os.Exit(1)
	}

	custody := crypto.MustNewAddress(crypto.ModulePrefix, custodySeed[:20])
	stableToken := token.New("DSC", 18, custody)
	ledgers := make(map[string]stable.CollateralLedger, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		ledgers[asset.Symbol] = token.New(asset.Symbol, 18, custody)
	}

	engine, err := stable.NewEngine(custody, stableToken, registry, ledgers)
	if err != nil {
		logger.Error("failed to construct engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetState(stable.NewStateStore(db))
	engine.SetLogger(logger)
	if cfg.Paused {
		engine.SetPauses(staticPauses{})
		logger.Warn("module starting paused; mutating operations will be rejected")
	}

	logger.Info("stable engine ready",
		slog.String("custody", engine.Custody().String()),
		slog.Any("assets", engine.Assets()),
		slog.Duration("maxPriceAge", cfg.MaxPriceAge()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: *listenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", slog.String("addr", *listenAddr))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	fmt.Fprintln(os.Stderr, "stabled stopped")
}

// staticPauses pauses the stable module unconditionally. Runtime pause
// toggling arrives with the governance surface; until then the config flag is
// a startup-time switch.
type staticPauses struct{}

func (staticPauses) IsPaused(string) bool { return true }
