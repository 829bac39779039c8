package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/murmur/bridge"
	"go.aimuz.me/murmur/cache"
	"go.aimuz.me/murmur/clipboard"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/hotkey"
	"go.aimuz.me/murmur/internal/app"
	"go.aimuz.me/murmur/notify"
	"go.aimuz.me/murmur/shortcut"
	"go.aimuz.me/murmur/surface"
	"go.aimuz.me/murmur/worker"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "murmur: %v\n", err)
		os.Exit(1)
	}
}

// loadRuntime reads the environment, then lets command-line flags override it.
func loadRuntime(args []string) (config.Runtime, bool, error) {
	rt, err := config.RuntimeLoader{}.Load()
	if err != nil {
		return config.Runtime{}, false, err
	}

	flagSet := pflag.NewFlagSet("murmur", pflag.ContinueOnError)
	flagSet.StringVar(&rt.WorkerPath, "worker", rt.WorkerPath, "path to the speech worker executable")
	flagSet.StringSliceVar(&rt.WorkerArgs, "worker-arg", rt.WorkerArgs, "extra argument passed to the worker (repeatable)")
	flagSet.StringVar(&rt.DataDir, "data-dir", rt.DataDir, "directory for settings, cache and worker data")
	flagSet.BoolVar(&rt.Development, "dev", rt.Development, "run the worker in development mode")
	flagSet.StringVar(&rt.LogLevel, "log-level", rt.LogLevel, "log level: debug, info, warn, error")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		return config.Runtime{}, false, err
	}
	if err := rt.Validate(); err != nil {
		return config.Runtime{}, false, err
	}
	return rt, *showVersion, nil
}

func run() error {
	rt, showVersion, err := loadRuntime(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("murmur %s (%s, %s)\n", version, commit, date)
		return nil
	}

	level, _ := config.ParseLogLevel(rt.LogLevel)
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)
	slog.Info("starting app", "version", version, "commit", commit, "date", date, "data_dir", rt.DataDir)

	settings := config.Open(config.FileStorage(config.SettingsPath(rt.DataDir)), logger)

	catalogue, err := cache.New(filepath.Join(rt.DataDir, "cache"))
	if err != nil {
		slog.Error("init cache", "error", err)
	}

	if clipboard.Unsupported() {
		slog.Warn("clipboard unavailable: results will not be copied")
	}

	keys := hotkey.NewManager(logger)
	if err := keys.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}

	transport := worker.New(worker.Config{
		Path:       rt.WorkerPath,
		Args:       rt.WorkerArgs,
		Production: !rt.Development,
		DataDir:    rt.DataDir,
		LogLevel:   rt.LogLevel,
	}, logger)
	b := bridge.New(transport, bridge.Options{Logger: logger})

	transport.OnMessage(b.HandleMessage)
	transport.OnExit(func(st worker.ExitStatus) {
		if st.Requested {
			b.Close(worker.ErrChannelClosed)
			return
		}
		b.HandleExit(&bridge.WorkerExitError{Code: st.Code, Signal: st.Signal})
	})

	var wails *application.App
	svc := app.New(version, app.Deps{
		Bridge:    b,
		Settings:  settings,
		Shortcuts: shortcut.NewBinder(keys, logger),
		Surfaces:  surface.NewDirectory(logger),
		Cache:     catalogue,
		Clipboard: clipboard.New(),
		Notifier:  notify.New("Murmur", "", logger),
		// Called on the worker's exit path; shutdown waits for that path
		// to finish, so quit from another goroutine.
		OnFatal: func(error) {
			if wails != nil {
				go wails.Quit()
			}
		},
	})

	wails = application.New(application.Options{
		Name:        "Murmur",
		Description: "Local voice dictation",
		Services: []application.Service{
			application.NewService(svc),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// The tray keeps the app alive.
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
		OnShutdown: func() {
			keys.Stop()
			// Stopping the worker rejects pending requests, which lets
			// the service's background work drain.
			if err := transport.Close(); err != nil {
				slog.Warn("stop worker", "error", err)
			}
			svc.Shutdown()
		},
	})

	mainWindow := wails.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:   app.SurfaceMain,
		Title:  "Murmur",
		Width:  960,
		Height: 680,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
		DevToolsEnabled: rt.Development,
	})

	recordingWindow := wails.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:           app.SurfaceRecording,
		Title:          "Recording",
		Width:          320,
		Height:         96,
		URL:            "/#/recording",
		Frameless:      true,
		AlwaysOnTop:    true,
		Hidden:         true,
		DisableResize:  true,
		BackgroundType: application.BackgroundTypeTransparent,
	})

	tray := wails.SystemTray.New()
	trayMenu := wails.NewMenu()
	trayMenu.Add("Show Murmur").OnClick(func(*application.Context) {
		svc.ShowMainWindow()
	})
	trayMenu.Add("Start/Stop Recording").OnClick(func(*application.Context) {
		if err := svc.Toggle(); err != nil {
			slog.Error("toggle from tray", "error", err)
		}
	})
	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(*application.Context) {
			wails.Quit()
		})
	tray.SetMenu(trayMenu)

	svc.Init(wails, mainWindow, recordingWindow, tray)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wails.Event.OnApplicationEvent(events.Common.ApplicationStarted, func(*application.ApplicationEvent) {
		if err := transport.Start(ctx); err != nil {
			b.HandleExit(fmt.Errorf("start worker: %w", err))
		}
	})

	return wails.Run()
}
