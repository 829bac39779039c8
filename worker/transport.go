// Package worker owns the duplex line stream to the worker subprocess.
package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"go.aimuz.me/murmur/protocol"
)

// ErrChannelClosed is returned by Send once the worker has exited or its
// input pipe is broken.
var ErrChannelClosed = errors.New("worker channel closed")

// ErrAlreadyStarted is returned by Start on a running transport.
var ErrAlreadyStarted = errors.New("worker already started")

// ExitStatus describes how the worker terminated.
type ExitStatus struct {
	Code      int
	Signal    string
	Requested bool  // Termination was requested through Close
	Err       error // Wait error other than a non-zero exit
}

func (s ExitStatus) String() string {
	switch {
	case s.Signal != "":
		return "signal " + s.Signal
	case s.Err != nil:
		return s.Err.Error()
	default:
		return fmt.Sprintf("exit code %d", s.Code)
	}
}

// Transport is the single reader and writer of the worker's stdio.
// Handlers must be registered before Start. Messages are delivered on the
// read goroutine one at a time, in the order the worker wrote them.
type Transport struct {
	cfg Config
	log *slog.Logger

	onMessage func(protocol.Message)
	onExit    func(ExitStatus)

	mu      sync.Mutex
	stdin   io.WriteCloser
	closed  bool
	started bool
	kill    func() error

	// writeMu serializes frames on stdin. Close never takes it.
	writeMu sync.Mutex

	stopping  atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	exit      ExitStatus
}

// New creates a Transport for cfg. Call Start to launch the worker.
func New(cfg Config, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Transport{
		cfg:  cfg,
		log:  logger.With("component", "worker"),
		done: make(chan struct{}),
	}
}

// OnMessage registers the handler invoked once per decoded inbound message.
func (t *Transport) OnMessage(fn func(protocol.Message)) { t.onMessage = fn }

// OnExit registers the handler invoked once when the worker terminates.
func (t *Transport) OnExit(fn func(ExitStatus)) { t.onExit = fn }

// Done is closed after the worker exited and the exit handler returned.
func (t *Transport) Done() <-chan struct{} { return t.done }

// ExitStatus returns the termination status. Valid after Done is closed.
func (t *Transport) ExitStatus() ExitStatus {
	<-t.done
	return t.exit
}

// Start launches the worker process and its read loops.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Path == "" {
		return fmt.Errorf("start worker: no executable configured")
	}

	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	fail := func(err error) error {
		t.mu.Lock()
		t.started = false
		t.mu.Unlock()
		return err
	}

	cmd := exec.CommandContext(ctx, t.cfg.Path, t.cfg.Args...)
	cmd.Dir = t.cfg.Dir
	cmd.Env = t.cfg.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fail(fmt.Errorf("stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fail(fmt.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return fail(fmt.Errorf("start worker %s: %w", t.cfg.Path, err))
	}
	t.log.Info("worker started", "path", t.cfg.Path, "pid", cmd.Process.Pid)

	// Both pipes must be drained before Wait, see exec.Cmd.StdoutPipe.
	var stderrDone sync.WaitGroup
	stderrDone.Go(func() { t.pipeStderr(stderr) })

	t.attach(stdin, stdout, func() ExitStatus {
		stderrDone.Wait()
		return exitStatus(cmd.Wait())
	}, cmd.Process.Kill)
	return nil
}

// attach wires the transport to an already running peer. wait is called
// once stdout reaches EOF and must return the peer's exit status; kill
// forces the peer down when it ignores Close.
func (t *Transport) attach(stdin io.WriteCloser, stdout io.Reader, wait func() ExitStatus, kill func() error) {
	t.mu.Lock()
	t.stdin = stdin
	t.kill = kill
	t.started = true
	t.mu.Unlock()

	go t.readLoop(stdout, wait)
}

func (t *Transport) readLoop(stdout io.Reader, wait func() ExitStatus) {
	reader := bufio.NewReaderSize(stdout, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if frame := bytes.TrimSpace(line); len(frame) > 0 {
			t.dispatch(frame)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.log.Warn("read worker output", "error", err)
			}
			break
		}
	}

	status := wait()
	t.markClosed()
	status.Requested = t.stopping.Load()
	t.exit = status

	if status.Requested {
		t.log.Info("worker stopped", "status", status.String())
	} else {
		t.log.Error("worker exited unexpectedly", "status", status.String())
	}

	if t.onExit != nil {
		t.onExit(status)
	}
	close(t.done)
}

func (t *Transport) dispatch(frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		t.log.Warn("drop malformed frame", "error", err, "frame", truncate(frame, 120))
		return
	}
	if t.onMessage != nil {
		t.onMessage(msg)
	}
}

// pipeStderr re-logs the worker's diagnostic output. Invalid UTF-8 is
// replaced so a misbehaving worker cannot corrupt our log stream.
func (t *Transport) pipeStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(transform.NewReader(stderr, unicode.UTF8.NewDecoder()))
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			t.log.Debug("worker output", "line", line)
		}
	}
}

func (t *Transport) markClosed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Send writes one framed message to the worker's stdin. A write blocked on
// a worker that stopped reading is released by Close.
func (t *Transport) Send(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	stdin, closed := t.stdin, t.closed
	t.mu.Unlock()
	if closed || stdin == nil {
		return ErrChannelClosed
	}

	if _, err := stdin.Write(frame); err != nil {
		t.markClosed()
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	return nil
}

// Close asks the worker to exit by closing its stdin, kills it if it has
// not exited after the stop timeout, and waits for the exit handler.
func (t *Transport) Close() error {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return nil
	}

	t.closeOnce.Do(func() {
		t.stopping.Store(true)

		t.mu.Lock()
		t.closed = true
		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		kill := t.kill
		t.mu.Unlock()

		select {
		case <-t.done:
		case <-time.After(t.cfg.StopTimeout):
			if kill != nil {
				t.log.Warn("worker did not stop in time, killing", "timeout", t.cfg.StopTimeout)
				_ = kill()
			}
		}
	})

	<-t.done
	return nil
}

func exitStatus(err error) ExitStatus {
	if err == nil {
		return ExitStatus{}
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ExitStatus{Code: -1, Err: err}
	}

	status := ExitStatus{Code: exitErr.ExitCode()}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signal = ws.Signal().String()
	}
	return status
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
