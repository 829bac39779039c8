package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.aimuz.me/murmur/bridge"
	"go.aimuz.me/murmur/cache"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/notify"
	"go.aimuz.me/murmur/shortcut"
	"go.aimuz.me/murmur/surface"
)

// Clipboard is the system clipboard plus simulated paste.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
	Paste() error
}

// Notifier shows desktop notifications and feedback sounds.
type Notifier interface {
	Notify(message string) error
	Alert(message string) error
	Beep(cue notify.Cue, volume float64)
}

// Windows controls the native windows and tray.
type Windows interface {
	ShowMain()
	ShowRecording()
	HideRecording()
	SetTrayStatus(status string)
}

// Deps are the collaborators of a Service. Cache may be nil.
type Deps struct {
	Bridge    *bridge.Bridge
	Settings  *config.Store
	Shortcuts *shortcut.Binder
	Surfaces  *surface.Directory
	Cache     *cache.Cache
	Clipboard Clipboard
	Notifier  Notifier
	Windows   Windows

	// OnFatal is called once the worker is gone for good.
	OnFatal func(error)
}

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; the bridge, settings and shortcut
// components own their state.
type Service struct {
	Deps

	version string

	// Work started from event handlers. Handlers run on the transport
	// read goroutine and must never wait on a worker response there.
	bg sync.WaitGroup

	readyOnce sync.Once
	fatalOnce sync.Once

	mu        sync.Mutex
	delivered bool // a result arrived since recording started
	closing   bool // guarded by mu; no background work after it is set

	outputMu     sync.Mutex
	shutdownOnce sync.Once

	unsubscribe []func()

	restoreDelay time.Duration
	after        func(d time.Duration, f func())
}

// New creates a new Service. Call Init once the windows exist.
func New(version string, deps Deps) *Service {
	return &Service{
		Deps:         deps,
		version:      version,
		restoreDelay: 500 * time.Millisecond,
		after:        func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// start subscribes to worker, settings and shortcut events and binds the
// configured shortcuts.
func (s *Service) start() {
	events := s.Bridge.Events()
	s.unsubscribe = append(s.unsubscribe,
		events.ModelsReady.On(func(struct{}) { s.onModelsReady() }),
		events.Progress.On(s.onProgress),
		events.Status.On(s.onStatus),
		events.Result.On(s.onResult),
		events.Transcription.On(s.onTranscription),
		events.AudioLevel.On(s.onAudioLevel),
		events.Fatal.On(s.onFatal),
		s.Settings.OnChange(s.onSettingsChanged),
		s.Shortcuts.Activated.On(s.onShortcut),
	)
	s.applyShortcuts(s.Settings.Current().Keyboard)
}

// Shutdown cleans up resources. Calls after the first are no-ops.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		for _, fn := range s.unsubscribe {
			fn()
		}
		s.unsubscribe = nil
		s.Shortcuts.Close()
		s.bg.Wait()
		if s.Cache != nil {
			if err := s.Cache.Close(); err != nil {
				slog.Error("close cache", "error", err)
			}
		}
	})
}

// background runs fn on its own goroutine unless shutdown has begun.
func (s *Service) background(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		slog.Debug("dropping background work during shutdown")
		return false
	}
	s.bg.Go(fn)
	return true
}

// emit broadcasts to every live surface.
func (s *Service) emit(name string, data any) {
	s.Surfaces.Broadcast(name, data, surface.All)
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// GetSettings returns the current settings.
func (s *Service) GetSettings() config.Settings {
	return s.Settings.Current()
}

// UpdateSettings merges partial into the named section.
func (s *Service) UpdateSettings(section string, partial json.RawMessage) error {
	return s.Settings.Update(config.Section(section), partial)
}

// DisableShortcut releases the OS binding of action while the user records
// a new combination.
func (s *Service) DisableShortcut(action string) {
	s.Shortcuts.Disable(shortcut.Action(action))
}

// RestoreShortcut rebinds action after an aborted recording.
func (s *Service) RestoreShortcut(action string) error {
	return s.Shortcuts.Restore(shortcut.Action(action))
}

// ShowMainWindow brings the main window to front.
func (s *Service) ShowMainWindow() {
	s.Windows.ShowMain()
}

func (s *Service) applyShortcuts(k config.Keyboard) {
	for action, err := range s.Shortcuts.Apply(k) {
		s.emit(EventShortcutError, ShortcutError{
			Action:      string(action),
			Accelerator: acceleratorOf(k, action),
			Error:       err.Error(),
		})
	}
}

func acceleratorOf(k config.Keyboard, a shortcut.Action) string {
	switch a {
	case shortcut.ActionToggle:
		return k.ToggleShortcut
	case shortcut.ActionCancel:
		return k.CancelShortcut
	case shortcut.ActionChangeMode:
		return k.ChangeModeShortcut
	}
	return ""
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
