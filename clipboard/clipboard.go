// Package clipboard reads and writes the system clipboard and simulates
// the paste shortcut.
package clipboard

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// System is the OS clipboard plus a virtual keyboard for pasting.
type System struct {
	read  func() (string, error)
	write func(string) error

	once   sync.Once
	kb     keybd_event.KeyBonding
	kbErr  error
	warmup time.Duration
	goos   string
}

// New returns the system clipboard.
func New() *System {
	return &System{
		read:   clipboard.ReadAll,
		write:  clipboard.WriteAll,
		warmup: keyboardWarmup,
		goos:   runtime.GOOS,
	}
}

// Unsupported reports whether no clipboard utility is available, e.g. on
// Linux without xclip, xsel or wl-clipboard.
func Unsupported() bool {
	return clipboard.Unsupported
}

func (s *System) ReadText() (string, error) {
	text, err := s.read()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

func (s *System) WriteText(text string) error {
	if err := s.write(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// Paste sends the platform paste shortcut (Cmd+V on macOS, Ctrl+V
// elsewhere) to the focused application.
func (s *System) Paste() error {
	s.once.Do(func() {
		s.kb, s.kbErr = keybd_event.NewKeyBonding()
		// The virtual device needs a moment before the OS accepts events.
		time.Sleep(s.warmup)
	})
	if s.kbErr != nil {
		return fmt.Errorf("create virtual keyboard: %w", s.kbErr)
	}

	kb := s.kb
	if s.goos == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("simulate paste: %w", err)
	}
	return nil
}
