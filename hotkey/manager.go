// Package hotkey provides system-wide keyboard shortcuts on top of gohook.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

var (
	ErrAlreadyRegistered = errors.New("hotkey already registered")
	ErrNotRunning        = errors.New("hotkey manager not running")
)

// Manager dispatches global key events to registered combos. A combo fires
// once per press; holding the keys does not repeat it.
type Manager struct {
	log *slog.Logger

	mu       sync.Mutex
	bindings map[Combo]func()
	mods     map[uint16]Modifier // physical modifier keys currently down
	fired    map[Combo]bool
	running  bool

	// Replaced in tests.
	start func() chan hook.Event
	end   func()
}

// NewManager creates a Manager. Call Start to begin listening.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		log:      logger.With("component", "hotkey"),
		bindings: make(map[Combo]func()),
		mods:     make(map[uint16]Modifier),
		fired:    make(map[Combo]bool),
		start:    hook.Start,
		end:      hook.End,
	}
}

// Start installs the OS keyboard hook and begins dispatching events.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	events := m.start()
	if events == nil {
		return fmt.Errorf("start keyboard hook: %w", ErrNotRunning)
	}
	m.running = true
	go m.loop(events)
	m.log.Info("keyboard hook started")
	return nil
}

// Stop removes the OS hook. Registrations are kept.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.end()
	m.log.Info("keyboard hook stopped")
}

func (m *Manager) loop(events chan hook.Event) {
	for ev := range events {
		m.handle(ev)
	}
}

// Register binds accel to fn. fn runs on the hook goroutine and must not
// block for long.
func (m *Manager) Register(accel string, fn func()) error {
	combo, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bindings[combo]; ok {
		return fmt.Errorf("register %s: %w", combo, ErrAlreadyRegistered)
	}
	m.bindings[combo] = fn
	m.log.Debug("hotkey registered", "combo", combo.String())
	return nil
}

// Unregister removes the binding for accel. Unknown combos are ignored.
func (m *Manager) Unregister(accel string) error {
	combo, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.bindings, combo)
	delete(m.fired, combo)
	m.log.Debug("hotkey unregistered", "combo", combo.String())
	return nil
}

func (m *Manager) handle(ev hook.Event) {
	switch ev.Kind {
	case hook.KeyHold:
		if fn := m.press(ev.Keycode); fn != nil {
			fn()
		}
	case hook.KeyUp:
		m.release(ev.Keycode)
	}
}

// press records a key going down and returns the callback to run, if any.
func (m *Manager) press(code uint16) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mod, ok := modifierKeys[code]; ok {
		m.mods[code] = mod
		return nil
	}

	var mods Modifier
	for _, mod := range m.mods {
		mods |= mod
	}
	combo := Combo{Mods: mods, Code: code}

	fn, ok := m.bindings[combo]
	if !ok || m.fired[combo] {
		return nil
	}
	m.fired[combo] = true
	return fn
}

func (m *Manager) release(code uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := modifierKeys[code]; ok {
		delete(m.mods, code)
		clear(m.fired)
		return
	}
	for combo := range m.fired {
		if combo.Code == code {
			delete(m.fired, combo)
		}
	}
}
