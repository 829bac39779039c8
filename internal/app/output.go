package app

import (
	"log/slog"

	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/types"
)

// onResult delivers a finished dictation to the user. Clipboard and paste
// work runs off the read goroutine; deliveries are serialized.
func (s *Service) onResult(r types.Result) {
	s.mu.Lock()
	s.delivered = true
	s.mu.Unlock()

	s.emit(EventResult, r)

	text := r.OutputText()
	if text == "" {
		return
	}
	settings := s.Settings.Current()
	s.background(func() {
		s.outputMu.Lock()
		defer s.outputMu.Unlock()
		s.deliver(text, settings)
	})
}

func (s *Service) deliver(text string, settings config.Settings) {
	out := settings.Output

	var previous string
	restore := false
	if out.AutoPasteResult && out.RestoreClipboard {
		prev, err := s.Clipboard.ReadText()
		if err != nil {
			slog.Warn("read clipboard", "error", err)
		} else {
			previous, restore = prev, true
		}
	}

	if err := s.Clipboard.WriteText(text); err != nil {
		slog.Error("write clipboard", "error", err)
		return
	}

	if out.AutoPasteResult {
		if err := s.Clipboard.Paste(); err != nil {
			slog.Warn("paste result", "error", err)
			restore = false
		}
	}

	if restore {
		s.after(s.restoreDelay, func() {
			if err := s.Clipboard.WriteText(previous); err != nil {
				slog.Warn("restore clipboard", "error", err)
			}
		})
	}

	if !settings.Application.EnableRecordingWindow {
		if err := s.Notifier.Notify(preview(text)); err != nil {
			slog.Debug("notify result", "error", err)
		}
	}
}

func preview(text string) string {
	const limit = 120
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
