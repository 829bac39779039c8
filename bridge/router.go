package bridge

import (
	"log/slog"

	"go.aimuz.me/murmur/protocol"
)

// Router classifies inbound messages: responses settle their transaction,
// updates are published on Events. It holds no state of its own.
type Router struct {
	registry *Registry
	events   *Events
	log      *slog.Logger
}

// NewRouter creates a Router dispatching into registry and events.
func NewRouter(registry *Registry, events *Events, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: registry,
		events:   events,
		log:      logger.With("component", "bridge.Router"),
	}
}

// Route dispatches one inbound message. It never panics on bad input;
// anything it cannot route is logged and dropped.
func (r *Router) Route(msg protocol.Message) {
	switch msg.Kind {
	case protocol.KindResponse:
		r.routeResponse(msg)
	case protocol.KindUpdate:
		r.routeUpdate(msg)
	default:
		r.log.Warn("drop unroutable message", "kind", msg.Kind, "channel", msg.Channel, "action", msg.Action)
	}
}

func (r *Router) routeResponse(msg protocol.Message) {
	var err error
	if msg.Error != "" {
		err = &RemoteError{Channel: string(msg.Channel), Message: msg.Error}
	}
	if !r.registry.Settle(msg.ID, msg.Data, err) {
		r.log.Debug("discard response for settled or unknown request", "id", msg.ID, "channel", msg.Channel)
	}
}

func (r *Router) routeUpdate(msg protocol.Message) {
	u, err := protocol.ParseUpdate(msg)
	if err != nil {
		r.log.Warn("drop malformed update", "update_kind", msg.UpdateKind, "error", err)
		return
	}

	switch u := u.(type) {
	case protocol.ProgressUpdate:
		if u.ModelsReady() {
			r.log.Info("worker models ready")
			r.events.ModelsReady.Emit(struct{}{})
			return
		}
		r.events.Progress.Emit(u)
	case protocol.StatusUpdate:
		r.events.Status.Emit(u.Stage)
	case protocol.ResultUpdate:
		r.events.Result.Emit(u.Result)
	case protocol.TranscriptionUpdate:
		r.events.Transcription.Emit(u.Text)
	case protocol.AudioLevelUpdate:
		r.events.AudioLevel.Emit(u.Level)
	case protocol.ErrorUpdate:
		r.log.Error("worker reported error", "error", u.Text)
		r.events.Fatal.Emit(&WorkerError{Message: u.Text})
	case protocol.ExceptionUpdate:
		r.log.Warn("worker exception", "text", u.Text)
	default:
		r.log.Warn("drop unknown update", "update_kind", msg.UpdateKind)
	}
}
