package bridge

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("request timed out")

// ErrUnknownChannel is returned by Request for a channel the worker does
// not expose. Nothing is sent.
var ErrUnknownChannel = errors.New("unknown channel")

// TimeoutError rejects a transaction whose response did not arrive in time.
type TimeoutError struct {
	ID      string
	Channel string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s request %s timed out after %s", e.Channel, e.ID, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// WorkerExitError reports that the worker process terminated.
type WorkerExitError struct {
	Code   int
	Signal string
}

func (e *WorkerExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("worker exited: signal %s", e.Signal)
	}
	return fmt.Sprintf("worker exited with code %d", e.Code)
}

// WorkerError is a logical error the worker reported through an error update.
type WorkerError struct {
	Message string
}

func (e *WorkerError) Error() string {
	return "worker error: " + e.Message
}

// RemoteError is returned when the worker answered a request with an error.
type RemoteError struct {
	Channel string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Channel, e.Message)
}
