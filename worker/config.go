package worker

import (
	"os"
	"time"
)

// Environment variables forming the worker launch contract. They are set
// once at launch and never renegotiated.
const (
	EnvMode       = "MURMUR_ENV"
	EnvDataDir    = "MURMUR_DATA_DIR"
	EnvLogLevel   = "MURMUR_LOG_LEVEL"
	EnvIOEncoding = "MURMUR_IO_ENCODING"
)

// DefaultStopTimeout is how long Close waits for a graceful exit before
// killing the worker.
const DefaultStopTimeout = 3 * time.Second

// Config describes how to launch the worker.
type Config struct {
	Path string   // Executable path
	Args []string // Extra arguments
	Dir  string   // Working directory, empty for the current one

	Production bool
	DataDir    string
	LogLevel   string

	// ExtraEnv is appended after the contract variables, "KEY=VALUE".
	ExtraEnv []string

	StopTimeout time.Duration
}

// Environ returns the environment passed to the worker: the parent
// environment plus the launch contract.
func (c Config) Environ() []string {
	mode := "development"
	if c.Production {
		mode = "production"
	}
	level := c.LogLevel
	if level == "" {
		level = "info"
	}

	env := os.Environ()
	env = append(env,
		EnvMode+"="+mode,
		EnvDataDir+"="+c.DataDir,
		EnvLogLevel+"="+level,
		EnvIOEncoding+"=utf-8",
	)
	return append(env, c.ExtraEnv...)
}
