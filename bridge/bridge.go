package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.aimuz.me/murmur/protocol"
)

// Sender writes one message to the worker. worker.Transport implements it.
type Sender interface {
	Send(msg protocol.Message) error
}

// Options configures a Bridge.
type Options struct {
	// Timeout is the default per-request timeout. Zero selects DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Bridge is the single entry point the UI shell uses to talk to the worker.
type Bridge struct {
	sender   Sender
	registry *Registry
	router   *Router
	events   *Events
	log      *slog.Logger
}

// New creates a Bridge sending through sender. Inbound traffic must be fed
// to HandleMessage and worker termination to HandleExit.
func New(sender Sender, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := NewRegistry(opts.Timeout)
	events := NewEvents()
	return &Bridge{
		sender:   sender,
		registry: registry,
		router:   NewRouter(registry, events, logger),
		events:   events,
		log:      logger.With("component", "bridge"),
	}
}

// Events exposes the typed event buses.
func (b *Bridge) Events() *Events { return b.events }

// Pending returns the number of requests awaiting a response.
func (b *Bridge) Pending() int { return b.registry.Pending() }

// HandleMessage routes one inbound message. It is called from the
// transport's read loop, so updates are published in arrival order.
func (b *Bridge) HandleMessage(msg protocol.Message) {
	b.router.Route(msg)
}

// HandleExit is the crash path: every pending request is rejected with err
// at once and Fatal is published.
func (b *Bridge) HandleExit(err error) {
	n := b.registry.RejectAll(err)
	b.log.Error("worker terminated", "error", err, "rejected", n)
	b.events.Fatal.Emit(err)
}

// Close rejects every pending request with err without publishing Fatal.
// Used for a requested shutdown.
func (b *Bridge) Close(err error) {
	if n := b.registry.RejectAll(err); n > 0 {
		b.log.Info("rejected pending requests on shutdown", "count", n)
	}
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the default timeout for one request.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) { o.timeout = d }
}

// Request sends payload on channel and waits for the correlated response.
// Responses may arrive in any order relative to other requests. The timeout
// also covers the write: a request stuck behind a worker that stopped
// reading fails once its deadline passes.
func (b *Bridge) Request(ctx context.Context, channel protocol.Channel, payload any, opts ...RequestOption) (json.RawMessage, error) {
	if !channel.Known() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	tx := b.registry.Register(string(channel), o.timeout)

	msg, err := protocol.NewRequest(channel, tx.ID, payload)
	if err != nil {
		b.registry.Settle(tx.ID, nil, err)
		return nil, err
	}

	sent := make(chan error, 1)
	go func() { sent <- b.sender.Send(msg) }()

	select {
	case err := <-sent:
		if err != nil {
			err = fmt.Errorf("send %s: %w", channel, err)
			b.registry.Settle(tx.ID, nil, err)
			return nil, err
		}
		b.log.Debug("request sent", "channel", channel, "id", tx.ID)
	case <-tx.Done():
	case <-ctx.Done():
	}
	return tx.Wait(ctx)
}

// Command sends a fire-and-forget command.
func (b *Bridge) Command(action protocol.Action, payload any) error {
	msg, err := protocol.NewCommand(action, payload)
	if err != nil {
		return err
	}
	if err := b.sender.Send(msg); err != nil {
		return fmt.Errorf("send %s: %w", action, err)
	}
	return nil
}

// Call performs a Request and decodes the response data into T.
func Call[T any](ctx context.Context, b *Bridge, channel protocol.Channel, payload any, opts ...RequestOption) (T, error) {
	var out T
	data, err := b.Request(ctx, channel, payload, opts...)
	if err != nil {
		return out, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", channel, err)
	}
	return out, nil
}
