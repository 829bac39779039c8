// Package app provides the core application service for Wails bindings.
package app

// Surface names registered in the directory.
const (
	SurfaceMain      = "main"
	SurfaceRecording = "recording"
)

// Event names for frontend communication.
const (
	EventSettingsChanged = "settings-changed"
	EventDevices         = "devices-response"
	EventModes           = "modes-response"
	EventModesUpdate     = "modes-update"
	EventAudioLevel      = "audio-level-response"
	EventStatus          = "status-update"
	EventResult          = "result"
	EventTranscription   = "transcription"
	EventHistory         = "recording-history-response"
	EventProgress        = "progress-update"
	EventShortcutError   = "shortcut-error"
)

// ShortcutError tells the settings UI which action could not be bound.
type ShortcutError struct {
	Action      string `json:"action"`
	Accelerator string `json:"accelerator"`
	Error       string `json:"error"`
}
