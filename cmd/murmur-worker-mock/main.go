// Command murmur-worker-mock speaks the worker protocol over stdio with
// canned data, for running the desktop app without speech models.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/worker"
)

const crashExitCode = 3

func main() {
	if err := run(); err != nil {
		if errors.Is(err, ErrCrash) {
			fmt.Fprintln(os.Stderr, "murmur-worker-mock: simulated crash")
			os.Exit(crashExitCode)
		}
		fmt.Fprintf(os.Stderr, "murmur-worker-mock: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		fixturesPath string
		crashAfter   int
	)
	flagSet := pflag.NewFlagSet("murmur-worker-mock", pflag.ContinueOnError)
	flagSet.StringVar(&fixturesPath, "fixtures", "", "YAML fixture file (default: built-in fixtures)")
	flagSet.IntVar(&crashAfter, "crash-after", 0, "exit with a non-zero code after handling N messages")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := config.ParseLogLevel(os.Getenv(worker.EnvLogLevel))
	if err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    true,
	}))
	logger.Info("mock worker starting",
		"mode", os.Getenv(worker.EnvMode),
		"data_dir", os.Getenv(worker.EnvDataDir),
		"crash_after", crashAfter,
	)

	fx, err := LoadFixtures(fixturesPath)
	if err != nil {
		return err
	}

	mock := NewMock(fx, os.Stdout, logger)
	mock.CrashAfter = crashAfter
	return mock.Serve(os.Stdin)
}
