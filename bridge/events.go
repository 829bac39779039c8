package bridge

import (
	"go.aimuz.me/murmur/eventbus"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/protocol"
)

// Events groups one typed bus per unsolicited event the router publishes.
type Events struct {
	// ModelsReady fires on every "progress init complete" update.
	ModelsReady eventbus.Bus[struct{}]
	// Progress carries every other progress update.
	Progress      eventbus.Bus[protocol.ProgressUpdate]
	Status        eventbus.Bus[protocol.Stage]
	Result        eventbus.Bus[types.Result]
	Transcription eventbus.Bus[string]
	AudioLevel    eventbus.Bus[float64]
	// Fatal fires when the shared channel is unusable: the worker exited
	// or reported an error. Subscribers decide whether to terminate.
	Fatal eventbus.Bus[error]
}

// NewEvents returns an Events with named buses.
func NewEvents() *Events {
	e := &Events{}
	e.ModelsReady.Name = "models-ready"
	e.Progress.Name = "progress"
	e.Status.Name = "status"
	e.Result.Name = "result"
	e.Transcription.Name = "transcription"
	e.AudioLevel.Name = "audio-level"
	e.Fatal.Name = "fatal"
	return e
}
