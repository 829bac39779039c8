// Package bridge connects the UI shell to the worker process: it correlates
// requests with responses, classifies inbound messages and publishes
// unsolicited worker updates as typed events.
package bridge

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds how long a request waits for its response.
const DefaultTimeout = 10 * time.Second

// State is the lifecycle state of a Transaction.
type State int32

const (
	StatePending State = iota
	StateResolved
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Transaction is one in-flight request awaiting its response.
// It is owned by the Registry from Register until settlement.
type Transaction struct {
	ID        string
	Channel   string
	CreatedAt time.Time

	registry *Registry
	timer    *time.Timer
	done     chan struct{}
	state    atomic.Int32

	// Written once before done is closed.
	data json.RawMessage
	err  error
}

// Done is closed when the transaction settles.
func (t *Transaction) Done() <-chan struct{} { return t.done }

// State returns the current state.
func (t *Transaction) State() State { return State(t.state.Load()) }

// Wait blocks until the transaction settles or ctx ends. If ctx ends first
// the transaction is rejected with ctx.Err() and a late response is
// discarded.
func (t *Transaction) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-t.done:
		return t.data, t.err
	case <-ctx.Done():
		t.registry.Settle(t.ID, nil, ctx.Err())
		<-t.done
		return t.data, t.err
	}
}

// Registry correlates outgoing requests with their eventual responses.
// Every transaction settles exactly once: resolved, rejected or timed out.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Transaction

	prefix  string
	counter atomic.Uint64

	defaultTimeout time.Duration
	now            func() time.Time
}

// NewRegistry creates a registry. A non-positive defaultTimeout selects
// DefaultTimeout.
func NewRegistry(defaultTimeout time.Duration) *Registry {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Registry{
		pending: make(map[string]*Transaction),
		// A random per-process prefix keeps IDs unique across restarts and
		// counter wrap-around.
		prefix:         uuid.NewString()[:8],
		defaultTimeout: defaultTimeout,
		now:            time.Now,
	}
}

func (r *Registry) nextID() string {
	return r.prefix + "-" + strconv.FormatUint(r.counter.Add(1), 36)
}

// Register allocates a fresh ID, stores a pending transaction and arms its
// timeout. A non-positive timeout selects the registry default.
func (r *Registry) Register(channel string, timeout time.Duration) *Transaction {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	tx := &Transaction{
		ID:        r.nextID(),
		Channel:   channel,
		CreatedAt: r.now(),
		registry:  r,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[tx.ID] = tx
	tx.timer = time.AfterFunc(timeout, func() {
		r.settle(tx.ID, nil, &TimeoutError{ID: tx.ID, Channel: channel, After: timeout}, StateTimedOut)
	})
	return tx
}

// Settle resolves (err == nil) or rejects the transaction with the given
// id. Unknown or already settled ids are ignored; Settle reports whether it
// settled anything.
func (r *Registry) Settle(id string, data json.RawMessage, err error) bool {
	state := StateResolved
	if err != nil {
		state = StateRejected
	}
	return r.settle(id, data, err, state)
}

func (r *Registry) settle(id string, data json.RawMessage, err error, state State) bool {
	r.mu.Lock()
	tx, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}

	tx.timer.Stop()
	tx.data = data
	tx.err = err
	tx.state.Store(int32(state))
	close(tx.done)
	return true
}

// RejectAll settles every pending transaction with err and returns how
// many it rejected.
func (r *Registry) RejectAll(err error) int {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[string]*Transaction)
	r.mu.Unlock()

	for _, tx := range pending {
		tx.timer.Stop()
		tx.err = err
		tx.state.Store(int32(StateRejected))
		close(tx.done)
	}
	return len(pending)
}

// Pending returns the number of unsettled transactions.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
