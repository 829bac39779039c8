package protocol

import (
	"encoding/json"
	"fmt"

	"go.aimuz.me/murmur/internal/types"
)

// Update is a discriminated union of worker updates.
// Check the concrete type via type switch.
type Update interface {
	updateKind() UpdateKind
}

// ProgressUpdate reports worker start-up progress.
type ProgressUpdate struct {
	Step   string
	Status string
}

func (ProgressUpdate) updateKind() UpdateKind { return UpdateProgress }

// ModelsReady reports whether this is the "initialisation complete" signal.
func (p ProgressUpdate) ModelsReady() bool {
	return p.Step == StepInit && p.Status == ProgressComplete
}

// ExceptionUpdate carries a non-fatal worker exception text.
type ExceptionUpdate struct {
	Text string
}

func (ExceptionUpdate) updateKind() UpdateKind { return UpdateException }

// ErrorUpdate carries a worker-reported error.
type ErrorUpdate struct {
	Text string
}

func (ErrorUpdate) updateKind() UpdateKind { return UpdateError }

// AudioLevelUpdate carries the current input level.
type AudioLevelUpdate struct {
	Level float64
}

func (AudioLevelUpdate) updateKind() UpdateKind { return UpdateAudioLevel }

// StatusUpdate carries the current processing stage.
type StatusUpdate struct {
	Stage Stage
}

func (StatusUpdate) updateKind() UpdateKind { return UpdateStatus }

// ResultUpdate carries a finished dictation.
type ResultUpdate struct {
	Result types.Result
}

func (ResultUpdate) updateKind() UpdateKind { return UpdateResult }

// TranscriptionUpdate carries raw transcription text.
type TranscriptionUpdate struct {
	Text string
}

func (TranscriptionUpdate) updateKind() UpdateKind { return UpdateTranscription }

// UnknownUpdate holds updates we don't recognize.
type UnknownUpdate struct {
	Kind UpdateKind
	Raw  json.RawMessage
}

func (u UnknownUpdate) updateKind() UpdateKind { return u.Kind }

// ParseUpdate decodes the payload of an update message into its typed form.
func ParseUpdate(m Message) (Update, error) {
	if m.Kind != KindUpdate {
		return nil, fmt.Errorf("parse update: message kind is %q", m.Kind)
	}

	switch m.UpdateKind {
	case UpdateProgress:
		return ProgressUpdate{Step: m.Step, Status: m.Status}, nil
	case UpdateException:
		text, err := decodeText(m)
		if err != nil {
			return nil, err
		}
		return ExceptionUpdate{Text: text}, nil
	case UpdateError:
		text, err := decodeText(m)
		if err != nil {
			return nil, err
		}
		return ErrorUpdate{Text: text}, nil
	case UpdateAudioLevel:
		var level float64
		if err := decodeData(m, &level); err != nil {
			return nil, err
		}
		return AudioLevelUpdate{Level: level}, nil
	case UpdateStatus:
		var stage Stage
		if err := decodeData(m, &stage); err != nil {
			return nil, err
		}
		return StatusUpdate{Stage: stage}, nil
	case UpdateResult:
		var result types.Result
		if err := decodeData(m, &result); err != nil {
			return nil, err
		}
		return ResultUpdate{Result: result}, nil
	case UpdateTranscription:
		text, err := decodeText(m)
		if err != nil {
			return nil, err
		}
		return TranscriptionUpdate{Text: text}, nil
	default:
		return UnknownUpdate{Kind: m.UpdateKind, Raw: m.Data}, nil
	}
}

func decodeData(m Message, v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s update without data", ErrMalformed, m.UpdateKind)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformed, m.UpdateKind, err)
	}
	return nil
}

// decodeText accepts a missing payload as empty text.
func decodeText(m Message) (string, error) {
	if len(m.Data) == 0 {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(m.Data, &text); err != nil {
		return "", fmt.Errorf("%w: %s data: %v", ErrMalformed, m.UpdateKind, err)
	}
	return text, nil
}
