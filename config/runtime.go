package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	DefaultLogLevel   = "info"
	DefaultWorkerName = "murmur-worker"
)

// Runtime holds process-level options: how to launch the worker and where
// to keep data. They are fixed for the lifetime of the process.
type Runtime struct {
	WorkerPath  string
	WorkerArgs  []string
	DataDir     string
	Development bool
	LogLevel    string
}

// RuntimeLoader reads Runtime from environment variables. Tests can
// override Lookup to inject deterministic maps.
type RuntimeLoader struct {
	Lookup func(string) (string, bool)
}

// Load returns the runtime options with defaults applied.
func (l RuntimeLoader) Load() (Runtime, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	rt := Runtime{LogLevel: DefaultLogLevel}

	overrideString(l.Lookup, "MURMUR_WORKER_PATH", &rt.WorkerPath)
	overrideString(l.Lookup, "MURMUR_DATA_DIR", &rt.DataDir)
	overrideString(l.Lookup, "MURMUR_LOG_LEVEL", &rt.LogLevel)
	if args, ok := l.Lookup("MURMUR_WORKER_ARGS"); ok {
		rt.WorkerArgs = strings.Fields(args)
	}
	if env, ok := l.Lookup("MURMUR_ENV"); ok {
		rt.Development = strings.EqualFold(strings.TrimSpace(env), "development")
	}

	if err := rt.Validate(); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}

// Validate fills defaults and rejects invalid values.
func (rt *Runtime) Validate() error {
	if _, err := ParseLogLevel(rt.LogLevel); err != nil {
		return err
	}
	if rt.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		rt.DataDir = dir
	}
	if rt.WorkerPath == "" {
		path, err := defaultWorkerPath()
		if err != nil {
			return err
		}
		rt.WorkerPath = path
	}
	return nil
}

// defaultWorkerPath locates the worker next to our own executable.
func defaultWorkerPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	name := DefaultWorkerName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(exe), name), nil
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log level %q", s)
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}
