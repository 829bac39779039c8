package app

import (
	"log/slog"

	"go.aimuz.me/murmur/bridge"
	"go.aimuz.me/murmur/config"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/notify"
	"go.aimuz.me/murmur/protocol"
	"go.aimuz.me/murmur/shortcut"
	"go.aimuz.me/murmur/surface"
)

// Tray status strings.
const (
	TrayLoading = "Loading models…"
	TrayReady   = "Ready"
)

func (s *Service) onModelsReady() {
	s.readyOnce.Do(func() {
		slog.Info("worker ready")
		s.Windows.SetTrayStatus(TrayReady)

		settings := s.Settings.Current()
		if settings.Application.EnableRecordingWindow {
			s.Windows.ShowRecording()
		}

		s.background(func() {
			if err := s.SetDevice(deviceSelection(settings.Audio)); err != nil {
				slog.Warn("apply device", "error", err)
			}
			s.pushInitialState()
		})
	})
}

// pushInitialState sends the first snapshot of worker data to every window.
func (s *Service) pushInitialState() {
	ctx, cancel := requestContext()
	defer cancel()

	if modes, err := bridge.Call[[]types.Mode](ctx, s.Bridge, protocol.FetchAllModes, nil); err == nil {
		s.emit(EventModes, modes)
	} else {
		slog.Warn("fetch modes", "error", err)
	}
	if devices, err := s.FetchAllDevices(); err == nil {
		s.emit(EventDevices, devices)
	} else {
		slog.Warn("fetch devices", "error", err)
	}
	if results, err := bridge.Call[[]types.Result](ctx, s.Bridge, protocol.FetchAllResults, nil); err == nil {
		s.emit(EventHistory, results)
	} else {
		slog.Warn("fetch history", "error", err)
	}
}

func (s *Service) onProgress(p protocol.ProgressUpdate) {
	s.emit(EventProgress, p)
}

func (s *Service) onStatus(stage protocol.Stage) {
	s.Surfaces.Broadcast(EventStatus, stage, surface.Only(SurfaceRecording))

	settings := s.Settings.Current()
	win := settings.Application

	s.mu.Lock()
	delivered := s.delivered
	if stage == protocol.StageRecording {
		s.delivered = false
	}
	s.mu.Unlock()

	switch stage {
	case protocol.StageRecording:
		s.cue(settings.Audio, notify.CueStart)
		if win.EnableRecordingWindow {
			s.Windows.ShowRecording()
		}
	case protocol.StageTranscribing:
		s.cue(settings.Audio, notify.CueStop)
	case protocol.StageCancelled:
		s.cue(settings.Audio, notify.CueCancel)
		if win.AutoCloseRecordingWindow {
			s.Windows.HideRecording()
		}
	case protocol.StageIdle:
		if delivered && win.AutoCloseRecordingWindow {
			s.Windows.HideRecording()
		}
	}
}

func (s *Service) cue(a config.Audio, c notify.Cue) {
	if !a.SoundEffects {
		return
	}
	s.Notifier.Beep(c, a.SoundEffectsVolume)
}

func (s *Service) onTranscription(text string) {
	s.emit(EventTranscription, text)
}

func (s *Service) onAudioLevel(level float64) {
	s.Surfaces.Broadcast(EventAudioLevel, level, surface.Only(SurfaceRecording))
}

func (s *Service) onFatal(err error) {
	s.fatalOnce.Do(func() {
		slog.Error("worker failed", "error", err)
		if aerr := s.Notifier.Alert("The speech engine stopped: " + err.Error()); aerr != nil {
			slog.Warn("show alert", "error", aerr)
		}
		if s.OnFatal != nil {
			s.OnFatal(err)
		}
	})
}

func (s *Service) onSettingsChanged(c config.Change) {
	s.emit(EventSettingsChanged, c.New)
	if c.KeyboardChanged() {
		s.applyShortcuts(c.New.Keyboard)
	}
	if c.AudioChanged() {
		sel := deviceSelection(c.New.Audio)
		s.background(func() {
			if err := s.SetDevice(sel); err != nil {
				slog.Warn("apply device", "error", err)
			}
		})
	}
}

func (s *Service) onShortcut(a shortcut.Action) {
	var err error
	switch a {
	case shortcut.ActionToggle:
		err = s.Toggle()
	case shortcut.ActionCancel:
		err = s.Cancel()
	case shortcut.ActionChangeMode:
		s.background(s.cycleMode)
	}
	if err != nil {
		slog.Warn("shortcut action", "action", a, "error", err)
	}
}

// cycleMode activates the mode after the active one, wrapping around.
func (s *Service) cycleMode() {
	ctx, cancel := requestContext()
	defer cancel()

	modes, err := bridge.Call[[]types.Mode](ctx, s.Bridge, protocol.FetchAllModes, nil)
	if err != nil {
		slog.Warn("fetch modes", "error", err)
		return
	}
	next, ok := nextMode(modes)
	if !ok {
		return
	}
	if err := s.SwitchMode(next.ID); err != nil {
		slog.Warn("switch mode", "mode", next.ID, "error", err)
		return
	}
	for i := range modes {
		modes[i].IsActive = modes[i].ID == next.ID
	}
	s.emit(EventModesUpdate, modes)
}

func nextMode(modes []types.Mode) (types.Mode, bool) {
	if len(modes) == 0 {
		return types.Mode{}, false
	}
	for i, m := range modes {
		if m.IsActive {
			return modes[(i+1)%len(modes)], true
		}
	}
	return modes[0], true
}

func deviceSelection(a config.Audio) types.DeviceSelection {
	return types.DeviceSelection{
		DeviceID:         a.Device,
		UseSystemDefault: a.UseSystemDefault,
		BoostVolume:      a.BoostVolume,
	}
}
