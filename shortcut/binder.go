// Package shortcut keeps OS-level shortcuts in sync with the keyboard
// settings.
package shortcut

import (
	"fmt"
	"log/slog"
	"sync"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/eventbus"
)

// Action is an abstract operation a shortcut triggers.
type Action string

const (
	ActionToggle     Action = "toggle"
	ActionCancel     Action = "cancel"
	ActionChangeMode Action = "change-mode"
)

// Actions lists every bindable action in application order.
var Actions = []Action{ActionToggle, ActionCancel, ActionChangeMode}

func accelFor(k config.Keyboard, a Action) string {
	switch a {
	case ActionToggle:
		return k.ToggleShortcut
	case ActionCancel:
		return k.CancelShortcut
	case ActionChangeMode:
		return k.ChangeModeShortcut
	}
	return ""
}

// Registrar is the OS hotkey primitive. Register must not invoke fn
// synchronously.
type Registrar interface {
	Register(accel string, fn func()) error
	Unregister(accel string) error
}

// Binder holds at most one registered combination per action. Activations
// are published on Activated.
type Binder struct {
	reg Registrar
	log *slog.Logger

	mu       sync.Mutex
	bound    map[Action]string // registered with the OS
	wanted   map[Action]string // from the last applied settings
	disabled map[Action]bool

	Activated eventbus.Bus[Action]
}

// NewBinder creates a Binder with nothing bound.
func NewBinder(reg Registrar, logger *slog.Logger) *Binder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{
		reg:       reg,
		log:       logger.With("component", "shortcut.Binder"),
		bound:     make(map[Action]string),
		wanted:    make(map[Action]string),
		disabled:  make(map[Action]bool),
		Activated: eventbus.Bus[Action]{Name: "shortcut"},
	}
}

// Apply brings the registrations in line with k. Unchanged actions are left
// alone. Every changed action is unregistered before any new combination is
// registered, so actions may swap combinations in one call. The result
// holds the actions whose registration failed; those stay unbound.
func (b *Binder) Apply(k config.Keyboard) map[Action]error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var changed []Action
	for _, a := range Actions {
		accel := accelFor(k, a)
		b.wanted[a] = accel
		if b.disabled[a] {
			continue
		}
		if cur, ok := b.bound[a]; ok && cur == accel {
			continue
		}
		b.unbindLocked(a)
		changed = append(changed, a)
	}

	errs := make(map[Action]error)
	for _, a := range changed {
		if err := b.bindLocked(a, b.wanted[a]); err != nil {
			errs[a] = err
			b.log.Warn("bind shortcut", "action", a, "accelerator", b.wanted[a], "error", err)
		}
	}
	return errs
}

// Disable unregisters the action without rebinding it, for example while
// the user records a new combination.
func (b *Binder) Disable(a Action) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.disabled[a] = true
	b.unbindLocked(a)
}

// Restore rebinds the last applied combination of a disabled action.
func (b *Binder) Restore(a Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.disabled[a] {
		return nil
	}
	delete(b.disabled, a)
	if _, ok := b.bound[a]; ok {
		return nil
	}
	return b.bindLocked(a, b.wanted[a])
}

// Bound returns the combination currently registered for a.
func (b *Binder) Bound(a Action) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	accel, ok := b.bound[a]
	return accel, ok
}

// Close unregisters every action.
func (b *Binder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range Actions {
		b.unbindLocked(a)
	}
}

func (b *Binder) unbindLocked(a Action) {
	cur, ok := b.bound[a]
	if !ok {
		return
	}
	delete(b.bound, a)
	if err := b.reg.Unregister(cur); err != nil {
		b.log.Warn("unregister shortcut", "action", a, "accelerator", cur, "error", err)
	}
}

func (b *Binder) bindLocked(a Action, accel string) error {
	if accel == "" {
		return nil
	}
	if err := b.reg.Register(accel, func() { b.fire(a, accel) }); err != nil {
		return fmt.Errorf("bind %s to %q: %w", a, accel, err)
	}
	b.bound[a] = accel
	b.log.Info("shortcut bound", "action", a, "accelerator", accel)
	return nil
}

// fire publishes an activation unless accel is no longer the combination
// bound to a.
func (b *Binder) fire(a Action, accel string) {
	b.mu.Lock()
	current, ok := b.bound[a]
	b.mu.Unlock()

	if !ok || current != accel {
		b.log.Debug("stale shortcut ignored", "action", a, "accelerator", accel)
		return
	}
	b.Activated.Emit(a)
}
