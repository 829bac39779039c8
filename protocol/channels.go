package protocol

// Channel names a worker-exposed request/response operation.
type Channel string

// Request/response channels understood by the worker.
const (
	FetchAllModes Channel = "fetchAllModes"
	CreateMode    Channel = "createMode"
	UpdateMode    Channel = "updateMode"
	DeleteMode    Channel = "deleteMode"

	FetchAllResults Channel = "fetchAllResults"
	DeleteResult    Channel = "deleteResult"

	AddExample Channel = "addExample"

	FetchAllTextReplacements Channel = "fetchAllTextReplacements"
	CreateTextReplacement    Channel = "createTextReplacement"
	DeleteTextReplacement    Channel = "deleteTextReplacement"

	FetchAllVoiceModels    Channel = "fetchAllVoiceModels"
	FetchAllLanguageModels Channel = "fetchAllLanguageModels"

	FetchAllDevices Channel = "fetchAllDevices"
	SetDevice       Channel = "setDevice"
)

var knownChannels = map[Channel]struct{}{
	FetchAllModes: {}, CreateMode: {}, UpdateMode: {}, DeleteMode: {},
	FetchAllResults: {}, DeleteResult: {},
	AddExample: {},
	FetchAllTextReplacements: {}, CreateTextReplacement: {}, DeleteTextReplacement: {},
	FetchAllVoiceModels: {}, FetchAllLanguageModels: {},
	FetchAllDevices: {}, SetDevice: {},
}

// Known reports whether c is one of the enumerated channels.
func (c Channel) Known() bool {
	_, ok := knownChannels[c]
	return ok
}

// Action names a fire-and-forget command.
type Action string

const (
	ActionToggle            Action = "toggle"
	ActionCancel            Action = "cancel"
	ActionRequestAudioLevel Action = "request-audio-level"
	ActionSwitchMode        Action = "switch-mode"
)

// SwitchModeData is the payload of ActionSwitchMode.
type SwitchModeData struct {
	ModeID string `json:"modeId"`
}

// UpdateKind discriminates unsolicited worker updates.
type UpdateKind string

const (
	UpdateProgress      UpdateKind = "progress"
	UpdateException     UpdateKind = "exception"
	UpdateAudioLevel    UpdateKind = "audio_level"
	UpdateError         UpdateKind = "error"
	UpdateStatus        UpdateKind = "status"
	UpdateResult        UpdateKind = "result"
	UpdateTranscription UpdateKind = "transcription"
)

// Progress steps and statuses reported during worker start-up.
const (
	StepInit         = "init"
	ProgressStarted  = "started"
	ProgressComplete = "complete"
)

// Stage is a processing stage reported by status updates.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageRecording    Stage = "recording"
	StageTranscribing Stage = "transcribing"
	StageFormatting   Stage = "formatting"
	StageCancelled    Stage = "cancelled"
)
