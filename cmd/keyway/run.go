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

	"keyway/internal/appfilter"
	"keyway/internal/config"
	"keyway/internal/engine"
	"keyway/internal/health"
	"keyway/internal/input"
	"keyway/internal/logging"
	"keyway/internal/metrics"
	"keyway/internal/overlay"
)

// overrides holds the settings given on the command line. Only flags that
// were set are applied, on startup and on every reload.
type overrides struct {
	set map[string]bool

	position         string
	margin           int
	customX          int
	customY          int
	dragEnabled      bool
	maxItems         int
	ttlMs            int
	showMouse        bool
	pauseHotkey      string
	repeatCoalesceMs int
	modifierGraceMs  int
	appFilterEnabled bool
	disabledApps     []string
}

func registerOverrides(fs *flag.FlagSet) *overrides {
	o := &overrides{set: map[string]bool{}}
	fs.StringVar(&o.position, "position", "", "Overlay position: "+strings.Join(overlay.PositionNames(), ", "))
	fs.IntVar(&o.margin, "margin", 0, "Distance from the screen edge in pixels")
	fs.IntVar(&o.customX, "custom-x", 0, "X coordinate for position=custom")
	fs.IntVar(&o.customY, "custom-y", 0, "Y coordinate for position=custom")
	fs.BoolVar(&o.dragEnabled, "drag-enabled", false, "Allow dragging the overlay")
	fs.IntVar(&o.maxItems, "max-items", 0, "Maximum items on screen")
	fs.IntVar(&o.ttlMs, "ttl-ms", 0, "Item lifetime in milliseconds")
	fs.BoolVar(&o.showMouse, "show-mouse", true, "Show mouse button chords")
	fs.StringVar(&o.pauseHotkey, "pause-hotkey", "", "Hotkey that toggles capture, e.g. Ctrl+Shift+P")
	fs.IntVar(&o.repeatCoalesceMs, "repeat-coalesce-ms", 0, "Window in which key repeats refresh instead of adding items")
	fs.IntVar(&o.modifierGraceMs, "modifier-grace-ms", 0, "Window in which a late modifier joins the chord")
	fs.BoolVar(&o.appFilterEnabled, "app-filter-enabled", false, "Hide the overlay for the applications given with -disabled-app")
	fs.Func("disabled-app", "Application class or title substring to hide the overlay for (repeatable)", func(v string) error {
		if v = strings.TrimSpace(v); v != "" {
			o.disabledApps = append(o.disabledApps, v)
		}
		return nil
	})
	return o
}

// collect records which flags were given. Call after fs.Parse.
func (o *overrides) collect(fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
}

func (o *overrides) empty() bool {
	for _, name := range []string{
		"position", "margin", "custom-x", "custom-y", "drag-enabled", "max-items", "ttl-ms",
		"show-mouse", "pause-hotkey", "repeat-coalesce-ms", "modifier-grace-ms",
		"app-filter-enabled", "disabled-app",
	} {
		if o.set[name] {
			return false
		}
	}
	return true
}

func (o *overrides) apply(s *config.Settings) {
	if o.set["position"] {
		s.Layout.Position = o.position
	}
	if o.set["margin"] {
		s.Layout.Margin = o.margin
	}
	if o.set["custom-x"] {
		s.Layout.CustomX = o.customX
	}
	if o.set["custom-y"] {
		s.Layout.CustomY = o.customY
	}
	if o.set["drag-enabled"] {
		s.Layout.DragEnabled = o.dragEnabled
	}
	if o.set["max-items"] {
		s.MaxItems = o.maxItems
	}
	if o.set["ttl-ms"] {
		s.TTLMs = o.ttlMs
	}
	if o.set["show-mouse"] {
		s.ShowMouse = o.showMouse
	}
	if o.set["pause-hotkey"] {
		s.PauseHotkey = o.pauseHotkey
	}
	if o.set["repeat-coalesce-ms"] {
		s.RepeatCoalesceMs = o.repeatCoalesceMs
	}
	if o.set["modifier-grace-ms"] {
		s.ModifierGraceMs = o.modifierGraceMs
	}
	if o.set["app-filter-enabled"] {
		s.AppFilterEnabled = o.appFilterEnabled
	}
	if o.set["disabled-app"] {
		s.DisabledApps = append([]string(nil), o.disabledApps...)
	}
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Settings file (default: $XDG_CONFIG_HOME/keyway/config.toml)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	replay := fs.String("replay", "", "Read raw input_event records from a file instead of devices")
	pace := fs.Bool("pace", false, "With -replay, keep the recorded timing between events")
	devicesFile := fs.String("devices-file", input.DefaultDevicesFile, "Kernel device listing")
	noHotplug := fs.Bool("no-hotplug", false, "Do not open devices connected after startup")
	ov := registerOverrides(fs)
	fs.Parse(os.Args[2:])
	ov.collect(fs)

	// Reject bad flag values before touching the settings file.
	probe := config.DefaultSettings()
	ov.apply(probe)
	var verrs config.ValidationErrors
	if errors.As(probe.Validate(), &verrs) && verrs.HasErrors() {
		fmt.Fprintf(os.Stderr, "Invalid options: %v\n", verrs.Errors())
		os.Exit(2)
	}

	path := *configPath
	if path == "" {
		if path = config.FindConfigFile(); path == "" {
			path = config.ConfigPath()
		}
	}

	if _, created, err := config.LoadOrCreate(path); created {
		slog.Info("wrote default settings", "path", path)
	} else if err != nil {
		slog.Warn("settings file unusable, falling back to defaults", "path", path, "error", err)
	}

	settings, err := config.Load(path)
	if err != nil {
		settings = config.DefaultSettings()
	}
	ov.apply(settings)

	logger, err := setupLogging(settings, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer logger.Close()
	log := logger.Logger

	diag := metrics.NewDiagnostics(nil)

	loader := config.NewLoader(path, logger.WithComponent("config").Logger)
	loader.Instrument(diag.ConfigReloadsTotal, diag.ConfigErrorsTotal)
	if !ov.empty() {
		loader.Override(ov.apply)
	}
	if s, err := loader.Load(); err == nil {
		settings = s
	}

	snap, err := settings.Snapshot()
	if err != nil {
		log.Warn("settings partially applied", "error", err)
	}
	store := config.NewStore(snap)
	loader.Bind(store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loader.Watch(); err != nil {
		log.Warn("settings will not reload automatically", "error", err)
	}
	defer loader.Close()
	go func() {
		defer logging.Recover(log, "config errors")
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				log.Warn("settings change rejected, keeping previous settings", "error", err)
			}
		}
	}()

	var src input.Source
	if *replay != "" {
		f, err := os.Open(*replay)
		if err != nil {
			log.Error("open recording", "error", err)
			os.Exit(1)
		}
		stream := input.NewStreamSource(f, input.DeviceID(*replay), input.CapKeyboard|input.CapPointer,
			logger.WithComponent("input").Logger)
		stream.Pace = *pace
		src = stream
	} else {
		src = input.NewEvdevSource(input.EvdevOptions{
			DevicesFile: *devicesFile,
			Hotplug:     !*noHotplug,
			Logger:      logger.WithComponent("input").Logger,
			Diagnostics: diag,
		})
	}
	defer src.Close()

	events, err := src.Start(ctx)
	if err != nil {
		log.Error("cannot read input", "error", err)
		if errors.Is(err, input.ErrNoDevices) {
			fmt.Fprintln(os.Stderr, "No readable keyboard or pointer. Is your user in the 'input' group? See 'keyway devices'.")
		}
		os.Exit(1)
	}
	go func() {
		defer logging.Recover(log, "input errors")
		for err := range src.Errors() {
			log.Warn("input device error", "error", err)
		}
	}()

	filterLog := logger.WithComponent("appfilter").Logger
	inspector := appfilter.Detect(appfilter.EnvFromOS(), nil)
	filterLog.Debug("window inspectors", "chain", inspector.Name())
	filter := appfilter.New(inspector, appfilter.Options{
		Logger:   filterLog,
		Failures: diag.InspectorFailuresTotal,
	})

	checker := health.NewChecker()
	if *replay == "" {
		checker.Register("input", true, health.InputCheck(diag.OpenDevices))
	}
	checker.Register("config", false, health.ErrorCheck(loader.LastError))
	checker.Register("window_inspector", false, health.ProbeCheck(func(ctx context.Context) bool {
		_, ok := filter.Focused(ctx)
		return ok
	}, "focused window cannot be determined; app filter inactive"))

	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, diag, checker, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	e := engine.New(store.Load(), engine.Options{
		Logger:      logger.WithComponent("engine").Logger,
		Diagnostics: diag,
		Filter:      filter,
	})
	loop := engine.NewLoop(e, events, store, overlay.NewTextRenderer(os.Stdout), engine.LoopOptions{
		FlushOnClose: *replay != "",
		Logger:       logger.WithComponent("engine").Logger,
		Diagnostics:  diag,
	})

	toggles := make(chan os.Signal, 1)
	notifyToggle(toggles)
	defer signal.Stop(toggles)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-toggles:
				loop.TogglePause()
			}
		}
	}()

	checker.SetReady(true)
	log.Info("keyway running", "config", path, "source", sourceName(*replay))

	err = loop.Run(ctx)
	switch {
	case err == nil:
		log.Info("shutting down")
	case errors.Is(err, engine.ErrInputClosed) && *replay != "":
		log.Info("recording finished")
	default:
		log.Error("input stopped", "error", err)
		logger.Close()
		os.Exit(1)
	}
}

func setupLogging(s *config.Settings, level string) (*logging.Logger, error) {
	cfg := s.LoggingConfig()
	if level != "" {
		lvl, err := logging.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}

	logger, err := logging.New(cfg)
	if err != nil {
		// A bad log file location should not keep the overlay from running.
		slog.Warn("log file unavailable, logging to stderr", "error", err)
		cfg.Output = "stderr"
		if logger, err = logging.New(cfg); err != nil {
			return nil, err
		}
	}
	logging.SetDefault(logger)
	return logger, nil
}

func serveMetrics(addr string, diag *metrics.Diagnostics, checker *health.Checker, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", diag.Registry.HTTPHandler())
	mux.Handle("/healthz", checker.HealthHandler())
	mux.Handle("/readyz", checker.ReadinessHandler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		defer logging.Recover(log, "metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	log.Info("serving metrics", "addr", addr)
	return srv
}

func sourceName(replay string) string {
	if replay != "" {
		return "replay"
	}
	return "evdev"
}
