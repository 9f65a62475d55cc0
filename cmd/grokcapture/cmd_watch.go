package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"grokcapture/internal/browser"
	"grokcapture/internal/config"
	"grokcapture/internal/dedup"
	"grokcapture/internal/logging"
	"grokcapture/internal/pipeline"
	"grokcapture/internal/prompt"
	"grokcapture/internal/session"
	"grokcapture/internal/status"
	"grokcapture/internal/store"
	"grokcapture/internal/ui"
	"grokcapture/internal/watcher"
)

var useTUI bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the Grok conversation and save generated images",
	Long: `Connects to Chromium (attaching to debugger_url or launching a browser), opens or
reuses the Grok page and saves every generated image to the output directory.

With --tui a status panel is shown: r rescans, x resets the counter of the active
session, q quits. Without it status lines are logged and SIGUSR1 requests a rescan.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&useTUI, "tui", false, "Show the interactive status panel")
}

func browserConfig(cfg *config.Config) browser.Config {
	bc := browser.DefaultConfig()
	bc.DebuggerURL = cfg.Browser.DebuggerURL
	bc.Launch = cfg.Browser.Launch
	bc.Headless = cfg.Browser.Headless
	bc.ViewportWidth = cfg.Browser.ViewportWidth
	bc.ViewportHeight = cfg.Browser.ViewportHeight
	bc.NavigationTimeout = cfg.GetNavigationTimeout()
	bc.StartURL = cfg.Browser.StartURL
	bc.TargetID = cfg.Browser.TargetID
	bc.ImageSelector = cfg.Browser.ImageSelector
	bc.TextSelector = cfg.Browser.TextSelector
	bc.MaxDepth = cfg.Browser.MaxDepth
	bc.DrainInterval = cfg.GetDrainInterval()
	return bc
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		MaxRetries:   cfg.Pipeline.MaxRetries,
		RetryDelay:   cfg.GetRetryDelay(),
		FetchTimeout: cfg.GetFetchTimeout(),
		Quality:      cfg.Capture.JPEGQuality,
		Software:     cfg.Capture.Software,
		Prefix:       cfg.Capture.FilenamePrefix,
	}
}

func watcherConfig(cfg *config.Config) watcher.Config {
	return watcher.Config{
		SessionCheckInterval: cfg.GetSessionCheckInterval(),
		RescanInterval:       cfg.GetRescanInterval(),
		StartupDelay:         cfg.GetStartupDelay(),
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.StateDir, cfg.Logging.Settings()); err != nil {
		logger.Warn("File logging disabled", zap.Error(err))
	}
	defer logging.CloseAll()
	logging.Boot("watch starting with config %s", resolvedConfigPath())

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	backend, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	counters := store.NewCounterStore(backend)
	if err := counters.Load(ctx); err != nil {
		return fmt.Errorf("load counters: %w", err)
	}

	doc := browser.NewDocument(browserConfig(cfg))
	if err := doc.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := doc.Shutdown(context.Background()); err != nil {
			logger.Warn("Browser shutdown error", zap.Error(err))
		}
	}()
	logger.Info("Browser connected", zap.String("control_url", doc.ControlURL()))

	identity := session.NewIdentity(doc, cfg.Watcher.SessionParam)
	httpFetcher := pipeline.NewHTTPFetcher(cfg.GetFetchTimeout())
	fetcher := pipeline.SchemeFetcher{
		"blob":  doc,
		"http":  httpFetcher,
		"https": httpFetcher,
	}
	writer := pipeline.DirWriter{Dir: cfg.Capture.OutputDir}

	var w *watcher.Watcher
	var program *tea.Program
	var sink status.Sink = status.ZapSink{Logger: logger}
	if useTUI {
		model := ui.NewModel(ui.Hooks{
			Session: identity.Last,
			Peek:    counters.Peek,
			Rescan:  func() { w.Rescan() },
			Reset: func(id string) error {
				return counters.Reset(ctx, id)
			},
		}, ui.NewStyles(ui.DetectTheme()))
		program = tea.NewProgram(model, tea.WithContext(ctx))
		// The panel owns the terminal; status lines also go to the ui log.
		sink = status.Multi{
			ui.Sink(program),
			status.Func(func(msg string) { logging.UIDebug("Status: %s", msg) }),
		}
	}

	pipe := pipeline.New(pipelineConfig(cfg), fetcher, writer, counters, sink)
	if db != nil {
		pipe.SetRecorder(db)
	}

	resolver := &prompt.Resolver{MaxDepth: cfg.Browser.MaxDepth, MinFallbackLen: prompt.DefaultMinFallbackLen}
	w = watcher.New(watcherConfig(cfg), doc, identity, dedup.New(), resolver, pipe, sink)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		return config.Watch(gctx, resolvedConfigPath(), func(next *config.Config) {
			if err := logging.Initialize(next.StateDir, next.Logging.Settings()); err != nil {
				logger.Warn("Logging reload failed", zap.Error(err))
				return
			}
			logger.Info("Logging settings reloaded",
				zap.Bool("debug_mode", next.Logging.DebugMode),
				zap.String("level", next.Logging.Level))
		}, func(err error) {
			logger.Warn("Config reload failed", zap.Error(err))
		})
	})

	if program != nil {
		g.Go(func() error {
			defer cancel()
			if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("status panel: %w", err)
			}
			return nil
		})
	} else {
		g.Go(func() error {
			rescanOnSignal(gctx, w)
			return nil
		})
	}

	logger.Info("Watching for images",
		zap.String("output_dir", cfg.Capture.OutputDir),
		zap.String("session", identity.CurrentID()))

	err = g.Wait()

	logger.Info("Waiting for in-flight saves")
	pipe.Wait()
	if ferr := counters.Flush(context.Background()); ferr != nil {
		logger.Warn("Final counter flush failed", zap.Error(ferr))
	}

	stats := w.Stats()
	logger.Info("Watcher stopped",
		zap.Int("submitted", stats.Submitted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("rescans", stats.Rescans),
		zap.Int("session_changes", stats.SessionChanges))
	return err
}
