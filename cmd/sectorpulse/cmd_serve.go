package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"

	"github.com/sectorpulse/sectorpulse/internal/cache"
	"github.com/sectorpulse/sectorpulse/internal/config"
	"github.com/sectorpulse/sectorpulse/internal/heatmap"
	httpapi "github.com/sectorpulse/sectorpulse/internal/interfaces/http"
	"github.com/sectorpulse/sectorpulse/internal/persistence"
	"github.com/sectorpulse/sectorpulse/internal/persistence/postgres"
	"github.com/sectorpulse/sectorpulse/internal/provider"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

// serveCmd runs the poller and the HTTP API until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the heatmap service",
	Long: `Run the background poll loop and the JSON API.

The poller refreshes the sector snapshot on the configured interval
(default 5 minutes). The API serves /api/crypto/categories, /api/heatmap,
/api/heatmap/history, /health, /metrics and a websocket push at
/ws/heatmap.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if logLevel == "" && cfg.LogLevel != "" {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}

	metrics := telemetry.NewMetrics()
	chain := buildChain(cfg, metrics)

	snapCache := cache.New(cfg.Redis.Addr)

	var repo persistence.SnapshotRepo
	if cfg.Postgres.DSN != "" {
		db, err := postgres.Connect(cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(cmd.Context(), db); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		repo = postgres.NewSnapshotRepo(db, cfg.Postgres.QueryTimeout)
	}

	hub := httpapi.NewHub(metrics)
	go hub.Run()

	service := heatmap.NewService(chain, metrics, heatmap.Options{
		Cache:       snapCache,
		Repo:        repo,
		Broadcaster: hub,
		MaxSectors:  cfg.Heatmap.MaxSectors,
		Overscan:    cfg.Heatmap.Overscan,
		CacheTTL:    cfg.Redis.TTL,
		StaleAfter:  2 * cfg.Poll.Interval,
		Layout: heatmap.LayoutConfig{
			DensityFactor:   cfg.Heatmap.DensityFactor,
			MinRowHeightPct: cfg.Heatmap.MinRowHeightPct,
		},
	})
	service.RestoreFromCache(cmd.Context())

	poller := heatmap.NewPoller(service, metrics, cfg.Poll.Interval, cfg.Poll.Timeout)
	poller.Start(context.Background())
	defer poller.Stop()

	handlers := httpapi.NewHandlers(service, poller, chain, repo)
	server, err := httpapi.NewServer(cfg.Server, handlers, hub, metrics)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// buildChain assembles the provider fallback chain in priority order.
func buildChain(cfg *config.Config, metrics *telemetry.Metrics) *provider.Chain {
	onBreakerChange := func(name string, from, to gobreaker.State) {
		log.Warn().
			Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state change")
		metrics.BreakerState.WithLabelValues(name).Set(provider.BreakerStateValue(to))
	}

	type entry struct {
		priority int
		p        provider.CategoryProvider
	}
	var entries []entry

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		switch name {
		case "coingecko":
			entries = append(entries, entry{pc.Priority, provider.NewCoinGecko(pc, onBreakerChange)})
		case "defillama":
			entries = append(entries, entry{pc.Priority, provider.NewDefiLlama(pc, onBreakerChange)})
		default:
			log.Warn().Str("provider", name).Msg("unknown provider in config, skipping")
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].priority < entries[j].priority })

	providers := make([]provider.CategoryProvider, 0, len(entries))
	for _, e := range entries {
		providers = append(providers, e.p)
	}
	return provider.NewChain(metrics, providers...)
}
