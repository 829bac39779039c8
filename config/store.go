package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/tidwall/jsonc"

	"go.aimuz.me/murmur/eventbus"
)

// ErrUnknownSection is returned by Update for a section name that does not
// exist.
var ErrUnknownSection = errors.New("unknown settings section")

// PersistError reports a failed write. The in-memory settings keep the new
// value for the rest of the session.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "persist settings: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

// Change is emitted after a mutation that altered the settings and was
// persisted.
type Change struct {
	Old, New Settings
}

// KeyboardChanged reports whether the keyboard section differs.
func (c Change) KeyboardChanged() bool { return c.Old.Keyboard != c.New.Keyboard }

// AudioChanged reports whether the audio section differs.
func (c Change) AudioChanged() bool { return c.Old.Audio != c.New.Audio }

// Store owns the process-wide settings. Mutations go through Update or the
// typed setters; readers get copies.
type Store struct {
	storage Storage
	log     *slog.Logger

	mu      sync.Mutex
	current Settings

	// emitMu is taken before mu is released and held through Emit, so
	// subscribers observe changes in commit order.
	emitMu  sync.Mutex
	changed eventbus.Bus[Change]
}

// Open creates a Store and loads the persisted settings. Loading never
// fails: missing or corrupt documents are replaced by defaults.
func Open(storage Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		storage: storage,
		log:     logger.With("component", "config.Store"),
		current: Defaults(),
		changed: eventbus.Bus[Change]{Name: "settingsChanged"},
	}
	if err := s.Load(); err != nil {
		s.log.Warn("load settings", "error", err)
	}
	return s
}

// Load reads the persisted document. Fields missing from the document keep
// their defaults. An absent or unparsable document is replaced by defaults,
// which are persisted immediately. Any other read failure keeps defaults in
// memory, leaves the document untouched and is returned.
func (s *Store) Load() error {
	settings, err := s.read()
	if err == nil {
		s.mu.Lock()
		s.current = settings
		s.mu.Unlock()
		return nil
	}

	var corrupt *corruptError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.log.Info("settings not found, writing defaults")
	case errors.As(err, &corrupt):
		s.log.Warn("settings unparsable, writing defaults", "error", err)
	default:
		s.mu.Lock()
		s.current = Defaults()
		s.mu.Unlock()
		return fmt.Errorf("read settings: %w", err)
	}

	defaults := Defaults()
	s.mu.Lock()
	s.current = defaults
	s.mu.Unlock()

	if err := s.persist(defaults); err != nil {
		return err
	}
	return nil
}

// corruptError marks a document that was read but could not be decoded.
type corruptError struct {
	err error
}

func (e *corruptError) Error() string { return "unmarshal settings: " + e.err.Error() }
func (e *corruptError) Unwrap() error { return e.err }

func (s *Store) read() (Settings, error) {
	data, err := s.storage.Read()
	if err != nil {
		return Settings{}, err
	}

	settings := Defaults()
	if err := json.Unmarshal(jsonc.ToJSON(data), &settings); err != nil {
		return Settings{}, &corruptError{err: err}
	}
	settings.normalize()
	return settings, nil
}

func (s *Store) persist(settings Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return &PersistError{Err: fmt.Errorf("marshal settings: %w", err)}
	}
	if err := s.storage.Write(data); err != nil {
		return &PersistError{Err: err}
	}
	return nil
}

// Current returns a snapshot of the settings.
func (s *Store) Current() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnChange subscribes fn to settings changes. Changes are delivered in the
// order they were committed; fn must not mutate the store synchronously.
func (s *Store) OnChange(fn func(Change)) (unsubscribe func()) {
	return s.changed.On(fn)
}

// Update merges the JSON object partial into the named section and
// persists the full document. Subscribers are notified once, after the
// write succeeded, and only if the value changed.
func (s *Store) Update(section Section, partial json.RawMessage) error {
	return s.mutate(func(next *Settings) error {
		target, err := next.section(section)
		if err != nil {
			return err
		}
		if len(partial) == 0 {
			return nil
		}
		if err := json.Unmarshal(partial, target); err != nil {
			return fmt.Errorf("decode %s settings: %w", section, err)
		}
		return nil
	})
}

// SetKeyboard replaces the keyboard section.
func (s *Store) SetKeyboard(k Keyboard) error {
	return s.mutate(func(next *Settings) error { next.Keyboard = k; return nil })
}

// SetAudio replaces the audio section.
func (s *Store) SetAudio(a Audio) error {
	return s.mutate(func(next *Settings) error { next.Audio = a; return nil })
}

// SetApplication replaces the application section.
func (s *Store) SetApplication(a Application) error {
	return s.mutate(func(next *Settings) error { next.Application = a; return nil })
}

// SetOutput replaces the output section.
func (s *Store) SetOutput(o Output) error {
	return s.mutate(func(next *Settings) error { next.Output = o; return nil })
}

func (s *Store) mutate(apply func(*Settings) error) error {
	s.mu.Lock()
	old := s.current
	next := old
	if err := apply(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	next.normalize()

	s.current = next
	err := s.persist(next)
	if err != nil || next == old {
		s.mu.Unlock()
		if err != nil {
			s.log.Error("save settings", "error", err)
		}
		return err
	}

	s.emitMu.Lock()
	s.mu.Unlock()
	s.changed.Emit(Change{Old: old, New: next})
	s.emitMu.Unlock()
	return nil
}
