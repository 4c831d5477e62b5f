package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ownerwatch/ownerwatch/server/internal/api"
	"github.com/ownerwatch/ownerwatch/server/internal/cache"
	"github.com/ownerwatch/ownerwatch/server/internal/config"
	"github.com/ownerwatch/ownerwatch/server/internal/metrics"
	"github.com/ownerwatch/ownerwatch/server/internal/registry"
	"github.com/ownerwatch/ownerwatch/server/internal/scraper"
	"github.com/ownerwatch/ownerwatch/server/internal/upstream"
)

func main() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	defaultConfig := os.Getenv("OWNERWATCH_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "path to config file (env OWNERWATCH_CONFIG)")
	host := flag.String("host", "", "listen host, overrides config and "+config.EnvHost)
	port := flag.Int("port", 0, "listen port, overrides config and "+config.EnvHTTPPort)
	uiDir := flag.String("ui-dir", "web", "directory holding chart.html; leave empty to disable")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("ownerwatch-server starting", "config", *configPath)

	cfg, watchConfig, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.HTTPPort = *port
	}
	level.Set(cfg.Server.Level())

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("failed to load timezone", "timezone", cfg.Timezone, "err", err)
		os.Exit(1)
	}

	reg, err := registry.New(cfg.Stocks, cfg.DefaultStock)
	if err != nil {
		slog.Error("failed to build stock registry", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"addr", cfg.Server.Addr(),
		"upstream", cfg.Upstream.BaseURL,
		"stocks", len(reg.List()),
		"default_stock", reg.Default(),
		"owners_ttl", cfg.Cache.TTL.Owners,
		"dedupe_inflight", cfg.Cache.DedupeInflight,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	up := upstream.New(cfg.Upstream, m)

	// Response cache with background sweeping of expired entries.
	c := cache.New(cache.WithInflightDedupe(cfg.Cache.DedupeInflight))
	go c.Run(ctx, cfg.Cache.SweepInterval)
	m.CacheEntries(c.Count)

	handler := api.New(api.Deps{
		Registry: reg,
		Cache:    c,
		Upstream: up,
		Scraper:  scraper.New(up, loc, m),
		TTL:      cfg.Cache.TTL,
		Metrics:  m,
	})

	if watchConfig {
		go watch(ctx, *configPath, cfg, level)
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", handler)
	httpMux.Handle("/data.json", handler)
	httpMux.Handle("/metrics", m)

	if *uiDir != "" {
		page := filepath.Join(*uiDir, "chart.html")
		httpMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			http.ServeFile(w, r, page)
		})
		slog.Info("serving chart page", "path", page)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("ownerwatch-server shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// loadConfig reads path, falling back to built-in defaults when the file does
// not exist. The second result reports whether the file should be watched.
func loadConfig(path string) (*config.Config, bool, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	slog.Warn("config file not found, using defaults", "path", path)
	cfg, err = config.Parse(nil)
	return cfg, false, err
}

// watch applies log level changes from the config file. Everything else is
// read once at startup.
func watch(ctx context.Context, path string, current *config.Config, level *slog.LevelVar) {
	err := config.Watch(ctx, path, func(next *config.Config) {
		level.Set(next.Server.Level())
		slog.Info("log level applied", "level", next.Server.LogLevel)

		if next.Upstream != current.Upstream || next.Cache != current.Cache ||
			next.Timezone != current.Timezone || next.DefaultStock != current.DefaultStock ||
			len(next.Stocks) != len(current.Stocks) {
			slog.Warn("config changed beyond log_level; restart to apply")
		}
	})
	if err != nil {
		slog.Error("config watcher stopped", "path", path, "err", err)
	}
}
