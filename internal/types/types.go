// Package types provides shared type definitions for the application.
package types

// Mode is a dictation mode: which voice model transcribes and how the
// language model reformats the result.
type Mode struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	VoiceModel      string  `json:"voiceModel,omitempty"`
	LanguageModel   string  `json:"languageModel,omitempty"`
	Language        string  `json:"language,omitempty"`
	Prompt          string  `json:"prompt,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	UseAI           bool    `json:"useAi"`
	IsActive        bool    `json:"isActive"`
	CreatedAt       int64   `json:"createdAt,omitempty"`
	ExampleCount    int     `json:"exampleCount,omitempty"`
	RealtimePreview bool    `json:"realtimePreview,omitempty"`
}

// Result is one finished dictation as stored by the worker.
type Result struct {
	ID            string  `json:"id"`
	ModeID        string  `json:"modeId,omitempty"`
	ModeName      string  `json:"modeName,omitempty"`
	Transcription string  `json:"transcription"`
	FormattedText string  `json:"formattedText,omitempty"`
	Duration      float64 `json:"duration,omitempty"` // Recording length in seconds
	ProcessingMs  int64   `json:"processingMs,omitempty"`
	CreatedAt     int64   `json:"createdAt"` // Unix timestamp in milliseconds
}

// OutputText returns the text that should reach the user: the formatted
// text when AI reformatting produced one, otherwise the raw transcription.
func (r Result) OutputText() string {
	if r.FormattedText != "" {
		return r.FormattedText
	}
	return r.Transcription
}

// Example is an input/output pair used to steer a mode's formatting.
type Example struct {
	ModeID string `json:"modeId"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// TextReplacement rewrites a recognized phrase into a fixed text.
type TextReplacement struct {
	ID          string `json:"id,omitempty"`
	Original    string `json:"originalText"`
	Replacement string `json:"replacementText"`
}

// Device is an audio input device known to the worker.
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

// DeviceSelection is the payload of the setDevice channel.
type DeviceSelection struct {
	DeviceID         string `json:"deviceId"`
	UseSystemDefault bool   `json:"useSystemDefault"`
	BoostVolume      bool   `json:"boostVolume"`
}

// VoiceModel describes a speech recognition model.
type VoiceModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        string `json:"size,omitempty"`
	Languages   string `json:"languages,omitempty"`
	IsMultiLang bool   `json:"isMultilingual"`
	Downloaded  bool   `json:"downloaded"`
}

// LanguageModel describes a model used for AI reformatting.
type LanguageModel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
}

// DeleteRequest is the payload of delete channels.
type DeleteRequest struct {
	ID string `json:"id"`
}
