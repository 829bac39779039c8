// Package config handles user settings and process runtime options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName          = "murmur"
	settingsFileName = "settings.json"
)

// Section names a top-level settings section.
type Section string

const (
	SectionKeyboard    Section = "keyboard"
	SectionAudio       Section = "audio"
	SectionApplication Section = "application"
	SectionOutput      Section = "output"
)

// Settings is the persisted user configuration. Every section is a
// comparable struct, so two snapshots can be compared with ==.
type Settings struct {
	Keyboard    Keyboard    `json:"keyboard"`
	Audio       Audio       `json:"audio"`
	Application Application `json:"application"`
	Output      Output      `json:"output"`
}

// Keyboard holds accelerator strings such as "CmdOrCtrl+Shift+Space".
// An empty string leaves the action unbound.
type Keyboard struct {
	ToggleShortcut     string `json:"toggleShortcut"`
	CancelShortcut     string `json:"cancelShortcut"`
	ChangeModeShortcut string `json:"changeModeShortcut"`
}

type Audio struct {
	Device             string  `json:"device"`
	UseSystemDefault   bool    `json:"useSystemDefault"`
	BoostVolume        bool    `json:"boostVolume"`
	SoundEffects       bool    `json:"soundEffects"`
	SoundEffectsVolume float64 `json:"soundEffectsVolume"`
}

type Application struct {
	LaunchAtStartup          bool `json:"launchAtStartup"`
	MinimizeToTray           bool `json:"minimizeToTray"`
	CloseToTray              bool `json:"closeToTray"`
	EnableRecordingWindow    bool `json:"enableRecordingWindow"`
	AutoCloseRecordingWindow bool `json:"autoCloseRecordingWindow"`
}

type Output struct {
	AutoPasteResult  bool `json:"autoPasteResult"`
	RestoreClipboard bool `json:"restoreClipboard"`
}

// Defaults returns the complete built-in settings.
func Defaults() Settings {
	return Settings{
		Keyboard: Keyboard{
			ToggleShortcut:     "CmdOrCtrl+Shift+Space",
			CancelShortcut:     "CmdOrCtrl+Shift+Escape",
			ChangeModeShortcut: "CmdOrCtrl+Shift+M",
		},
		Audio: Audio{
			UseSystemDefault:   true,
			SoundEffects:       true,
			SoundEffectsVolume: 0.5,
		},
		Application: Application{
			MinimizeToTray:           true,
			CloseToTray:              true,
			EnableRecordingWindow:    true,
			AutoCloseRecordingWindow: true,
		},
		Output: Output{
			AutoPasteResult:  true,
			RestoreClipboard: true,
		},
	}
}

// normalize clamps values the UI may send out of range.
func (s *Settings) normalize() {
	s.Audio.SoundEffectsVolume = min(max(s.Audio.SoundEffectsVolume, 0), 1)
	if s.Audio.UseSystemDefault {
		s.Audio.Device = ""
	}
}

// section returns a pointer to the named section of s.
func (s *Settings) section(name Section) (any, error) {
	switch name {
	case SectionKeyboard:
		return &s.Keyboard, nil
	case SectionAudio:
		return &s.Audio, nil
	case SectionApplication:
		return &s.Application, nil
	case SectionOutput:
		return &s.Output, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
}

// DefaultDataDir returns the per-user application data directory.
func DefaultDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// SettingsPath returns the settings file location under dataDir.
func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, settingsFileName)
}
