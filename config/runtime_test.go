package config

import (
	"log/slog"
	"slices"
	"testing"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestRuntimeLoader_Defaults(t *testing.T) {
	rt, err := RuntimeLoader{Lookup: mapLookup(nil)}.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rt.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", rt.LogLevel, DefaultLogLevel)
	}
	if rt.DataDir == "" || rt.WorkerPath == "" {
		t.Errorf("defaults not applied: %+v", rt)
	}
	if rt.Development {
		t.Error("Development = true, want false")
	}
}

func TestRuntimeLoader_Overrides(t *testing.T) {
	rt, err := RuntimeLoader{Lookup: mapLookup(map[string]string{
		"MURMUR_WORKER_PATH": " /opt/murmur/worker ",
		"MURMUR_WORKER_ARGS": "--model small  --cpu",
		"MURMUR_DATA_DIR":    "/tmp/murmur",
		"MURMUR_ENV":         "Development",
		"MURMUR_LOG_LEVEL":   "debug",
	})}.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if rt.WorkerPath != "/opt/murmur/worker" {
		t.Errorf("WorkerPath = %q", rt.WorkerPath)
	}
	if want := []string{"--model", "small", "--cpu"}; !slices.Equal(rt.WorkerArgs, want) {
		t.Errorf("WorkerArgs = %q, want %q", rt.WorkerArgs, want)
	}
	if rt.DataDir != "/tmp/murmur" {
		t.Errorf("DataDir = %q", rt.DataDir)
	}
	if !rt.Development {
		t.Error("Development = false, want true")
	}
	if rt.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", rt.LogLevel)
	}
}

func TestRuntimeLoader_RejectsBadLevel(t *testing.T) {
	_, err := RuntimeLoader{Lookup: mapLookup(map[string]string{"MURMUR_LOG_LEVEL": "loud"})}.Load()
	if err == nil {
		t.Fatal("Load() error = nil, want unknown level")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
