package app

import (
	"sync/atomic"
	"weak"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"go.aimuz.me/murmur/surface"
)

// windowSurface delivers events to one webview window without keeping it
// alive.
type windowSurface struct {
	w      weak.Pointer[application.WebviewWindow]
	closed atomic.Bool
}

func newWindowSurface(w *application.WebviewWindow) *windowSurface {
	s := &windowSurface{w: weak.Make(w)}
	w.OnWindowEvent(events.Common.WindowClosing, func(*application.WindowEvent) {
		s.closed.Store(true)
	})
	return s
}

func (s *windowSurface) Alive() bool {
	return !s.closed.Load() && s.w.Value() != nil
}

func (s *windowSurface) Send(channel string, data any) error {
	w := s.w.Value()
	if w == nil || s.closed.Load() {
		return surface.ErrGone
	}
	w.EmitEvent(channel, data)
	return nil
}

type wailsWindows struct {
	main      *application.WebviewWindow
	recording *application.WebviewWindow
	tray      *application.SystemTray
}

func (w *wailsWindows) ShowMain() {
	w.main.Show()
	w.main.Focus()
}

func (w *wailsWindows) ShowRecording() { w.recording.Show() }
func (w *wailsWindows) HideRecording() { w.recording.Hide() }

func (w *wailsWindows) SetTrayStatus(status string) {
	if w.tray != nil {
		w.tray.SetTooltip("Murmur: " + status)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Initialization (called from main)
// ─────────────────────────────────────────────────────────────────────────────

// Init attaches the native windows and tray, then starts the service.
func (s *Service) Init(app *application.App, main, recording *application.WebviewWindow, tray *application.SystemTray) {
	s.Windows = &wailsWindows{main: main, recording: recording, tray: tray}
	s.Windows.SetTrayStatus(TrayLoading)

	s.Surfaces.Register(SurfaceMain, newWindowSurface(main))
	s.Surfaces.Register(SurfaceRecording, newWindowSurface(recording))

	// Closing the main window either hides it to the tray or quits.
	main.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		if !s.Settings.Current().Application.CloseToTray {
			app.Quit()
			return
		}
		e.Cancel()
		main.Hide()
	})
	main.OnWindowEvent(events.Common.WindowMinimise, func(*application.WindowEvent) {
		if s.Settings.Current().Application.MinimizeToTray {
			main.Hide()
		}
	})

	// The recording window is owned by the status flow; it is never destroyed.
	recording.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		recording.Hide()
	})

	s.start()
}
