// Command retitled keeps one tracked channel's video titles clean in a
// live browser tab.
//
// Usage:
//
//	retitled -config retitle.yaml        # full configuration
//	retitled -url https://www.youtube.com/   # defaults, explicit page
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/retitle/internal/browser"
	"github.com/hazyhaar/retitle/internal/config"
	"github.com/hazyhaar/retitle/internal/control"
	"github.com/hazyhaar/retitle/internal/dom"
	"github.com/hazyhaar/retitle/internal/rewrite"
	"github.com/hazyhaar/retitle/internal/titles"
	"github.com/hazyhaar/retitle/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "path to retitle.yaml config file")
	pageURL := flag.String("url", "", "page to observe (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *pageURL); err != nil {
		logger.Error("retitled: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, pageURL string) error {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg.ApplyDefaults()
	}
	if pageURL != "" {
		cfg.Page.URL = pageURL
	}

	session := uuid.Must(uuid.NewV7()).String()
	logger = logger.With("session", session)

	// Durable cache and remote feed.
	store, err := titles.Open(cfg.Titles.DBPath)
	if err != nil {
		return fmt.Errorf("open title store: %w", err)
	}
	defer store.Close()

	var fetcher *titles.Fetcher
	if cfg.Titles.FeedURL != "" {
		fetcher = titles.NewFetcher(cfg.Titles.FeedURL, logger)
	}
	bridge := titles.NewBridge(store, fetcher, cfg.Titles.RefreshInterval, logger)

	// Startup read. A failure here leaves nothing running: scanning with
	// an empty mapping would be indistinguishable from "no tracked
	// videos", so the daemon refuses to start instead.
	mapping, settings, err := bridge.Load(ctx)
	if err != nil {
		return fmt.Errorf("load title cache: %w", err)
	}

	// Browser and observed tab.
	mgr := browser.NewManager(browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headless:  cfg.Browser.Headless,
		Logger:    logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	tab, err := browser.OpenTab(ctx, mgr, cfg.Page.URL)
	if err != nil {
		return err
	}
	defer tab.Close()

	// Rewrite engine.
	engineCfg := rewrite.Config{
		Channel:        cfg.Channel,
		Patterns:       cfg.Patterns,
		PageShortcut:   *cfg.Classifier.PageShortcut,
		GateLookup:     cfg.Classifier.GateLookup,
		RequireVisible: cfg.Scan.RequireVisible,
		Logger:         logger,
	}
	if cfg.Scan.RequireVisible {
		engineCfg.Visible = func(n *html.Node) bool {
			visible, err := tab.Visible(ctx, dom.XPath(n))
			if err != nil {
				logger.Debug("retitled: visibility probe failed", "error", err)
				return true
			}
			return visible
		}
	}
	engine := rewrite.New(engineCfg, bridge)
	engine.SetMapping(mapping)
	engine.SetEnabled(settings.Enabled)

	// Watcher over the tab.
	watcher := watch.New(tab, engine, watch.Config{
		MutationDebounce: cfg.Scan.MutationDebounce,
		NavigationSettle: cfg.Scan.NavigationSettle,
		ScrollDebounce:   cfg.Scan.ScrollDebounce,
		RequireVisible:   cfg.Scan.RequireVisible,
		Logger:           logger,
	})

	// Feed pushes re-arm the engine and force a rescan so new titles
	// land without waiting for page activity.
	bridge.OnMapping = func(m titles.Mapping, changes []titles.Change) {
		engine.SetMapping(m)
		logger.Info("retitled: mapping updated", "changed", len(changes), "total", len(m))
		watcher.Rescan()
	}
	bridge.OnSettings = func(s titles.Settings) {
		engine.SetEnabled(s.Enabled)
		watcher.Rescan()
	}

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	go bridge.Run(ctx)

	// Control surface blocks until shutdown.
	srv := control.NewServer(control.Config{
		Listen:  cfg.Control.Listen,
		Engine:  engine,
		Bridge:  bridge,
		Rescan:  watcher,
		PageURL: func() string { return tab.PageURL },
		Logger:  logger,
	})
	return srv.Start(ctx)
}
