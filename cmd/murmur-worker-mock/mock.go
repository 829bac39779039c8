package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/protocol"
)

// ErrCrash is returned by Serve when the configured crash point is reached.
var ErrCrash = errors.New("simulated crash")

// Mock is an in-memory stand-in for the speech worker. It is driven by one
// goroutine, so its state is not locked.
type Mock struct {
	log *slog.Logger
	out *bufio.Writer
	fx  *Fixtures

	// CrashAfter makes Serve fail after that many handled messages; zero
	// disables it.
	CrashAfter int

	modes        []types.Mode
	results      []types.Result
	replacements []types.TextReplacement
	device       types.DeviceSelection

	recording bool
	startedAt time.Time
	handled   int
	levels    int

	newID func() string
	now   func() time.Time
}

// NewMock creates a Mock writing protocol frames to w.
func NewMock(fx *Fixtures, w io.Writer, logger *slog.Logger) *Mock {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mock{
		log:          logger,
		out:          bufio.NewWriter(w),
		fx:           fx,
		modes:        fx.modes(),
		replacements: fx.textReplacements(),
		device:       types.DeviceSelection{UseSystemDefault: true},
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// Serve announces readiness, then handles messages from r until EOF.
func (m *Mock) Serve(r io.Reader) error {
	if err := m.write(protocol.NewProgress(protocol.StepInit, protocol.ProgressStarted)); err != nil {
		return err
	}
	if err := m.write(protocol.NewProgress(protocol.StepInit, protocol.ProgressComplete)); err != nil {
		return err
	}

	in := bufio.NewReader(r)
	for {
		line, err := in.ReadBytes('\n')
		if len(line) > 0 {
			if herr := m.handleFrame(line); herr != nil {
				return herr
			}
		}
		if errors.Is(err, io.EOF) {
			m.log.Info("input closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

func (m *Mock) handleFrame(line []byte) error {
	msg, err := protocol.Decode(line)
	if err != nil {
		m.log.Warn("drop malformed frame", "error", err)
		return nil
	}

	switch msg.Kind {
	case protocol.KindRequest:
		err = m.handleRequest(msg)
	case protocol.KindCommand:
		err = m.handleCommand(msg)
	default:
		m.log.Warn("unexpected message kind", "kind", msg.Kind)
	}
	if err != nil {
		return err
	}

	m.handled++
	if m.CrashAfter > 0 && m.handled >= m.CrashAfter {
		return ErrCrash
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Requests
// ─────────────────────────────────────────────────────────────────────────────

var errNotFound = errors.New("not found")

func (m *Mock) handleRequest(msg protocol.Message) error {
	payload, err := m.serve(msg.Channel, msg.Data)

	var resp protocol.Message
	if err != nil {
		m.log.Debug("request failed", "channel", msg.Channel, "error", err)
		resp = protocol.Message{Kind: protocol.KindResponse, Channel: msg.Channel, ID: msg.ID, Error: err.Error()}
	} else {
		resp, err = protocol.NewResponse(msg.Channel, msg.ID, payload)
		if err != nil {
			return err
		}
	}
	return m.write(resp)
}

func (m *Mock) serve(ch protocol.Channel, data json.RawMessage) (any, error) {
	switch ch {
	case protocol.FetchAllModes:
		return m.modes, nil
	case protocol.CreateMode:
		return m.createMode(data)
	case protocol.UpdateMode:
		return nil, m.updateMode(data)
	case protocol.DeleteMode:
		return nil, m.deleteMode(data)

	case protocol.FetchAllResults:
		return m.results, nil
	case protocol.DeleteResult:
		var req types.DeleteRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		n := len(m.results)
		m.results = slices.DeleteFunc(m.results, func(r types.Result) bool { return r.ID == req.ID })
		if len(m.results) == n {
			return nil, fmt.Errorf("result %q: %w", req.ID, errNotFound)
		}
		return nil, nil

	case protocol.AddExample:
		var ex types.Example
		if err := decode(data, &ex); err != nil {
			return nil, err
		}
		i := m.modeIndex(ex.ModeID)
		if i < 0 {
			return nil, fmt.Errorf("mode %q: %w", ex.ModeID, errNotFound)
		}
		m.modes[i].ExampleCount++
		return nil, nil

	case protocol.FetchAllTextReplacements:
		return m.replacements, nil
	case protocol.CreateTextReplacement:
		var r types.TextReplacement
		if err := decode(data, &r); err != nil {
			return nil, err
		}
		if r.Original == "" {
			return nil, errors.New("original text is required")
		}
		r.ID = m.newID()
		m.replacements = append(m.replacements, r)
		return r, nil
	case protocol.DeleteTextReplacement:
		var req types.DeleteRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		m.replacements = slices.DeleteFunc(m.replacements, func(r types.TextReplacement) bool { return r.ID == req.ID })
		return nil, nil

	case protocol.FetchAllVoiceModels:
		return m.fx.voiceModels(), nil
	case protocol.FetchAllLanguageModels:
		return m.fx.languageModels(), nil
	case protocol.FetchAllDevices:
		return m.fx.devices(), nil
	case protocol.SetDevice:
		var sel types.DeviceSelection
		if err := decode(data, &sel); err != nil {
			return nil, err
		}
		if !sel.UseSystemDefault && !slices.ContainsFunc(m.fx.Devices, func(d deviceFixture) bool { return d.ID == sel.DeviceID }) {
			return nil, fmt.Errorf("device %q: %w", sel.DeviceID, errNotFound)
		}
		m.device = sel
		m.log.Info("device selected", "device", sel.DeviceID, "system_default", sel.UseSystemDefault)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown channel %q", ch)
}

func (m *Mock) createMode(data json.RawMessage) (types.Mode, error) {
	var mode types.Mode
	if err := decode(data, &mode); err != nil {
		return types.Mode{}, err
	}
	if strings.TrimSpace(mode.Name) == "" {
		return types.Mode{}, errors.New("mode name is required")
	}
	mode.ID = m.newID()
	mode.IsActive = false
	mode.CreatedAt = m.now().UnixMilli()
	m.modes = append(m.modes, mode)
	return mode, nil
}

func (m *Mock) updateMode(data json.RawMessage) error {
	var mode types.Mode
	if err := decode(data, &mode); err != nil {
		return err
	}
	i := m.modeIndex(mode.ID)
	if i < 0 {
		return fmt.Errorf("mode %q: %w", mode.ID, errNotFound)
	}
	mode.IsActive = m.modes[i].IsActive
	mode.CreatedAt = m.modes[i].CreatedAt
	mode.ExampleCount = m.modes[i].ExampleCount
	m.modes[i] = mode
	return nil
}

func (m *Mock) deleteMode(data json.RawMessage) error {
	var req types.DeleteRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	i := m.modeIndex(req.ID)
	if i < 0 {
		return fmt.Errorf("mode %q: %w", req.ID, errNotFound)
	}
	wasActive := m.modes[i].IsActive
	m.modes = slices.Delete(m.modes, i, i+1)
	if wasActive && len(m.modes) > 0 {
		m.modes[0].IsActive = true
	}
	return nil
}

func (m *Mock) modeIndex(id string) int {
	return slices.IndexFunc(m.modes, func(mode types.Mode) bool { return mode.ID == id })
}

func (m *Mock) activeMode() (types.Mode, bool) {
	for _, mode := range m.modes {
		if mode.IsActive {
			return mode, true
		}
	}
	return types.Mode{}, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

func (m *Mock) handleCommand(msg protocol.Message) error {
	switch msg.Action {
	case protocol.ActionToggle:
		if !m.recording {
			m.recording = true
			m.startedAt = m.now()
			return m.status(protocol.StageRecording)
		}
		return m.finish()

	case protocol.ActionCancel:
		if !m.recording {
			return nil
		}
		m.recording = false
		if err := m.status(protocol.StageCancelled); err != nil {
			return err
		}
		return m.status(protocol.StageIdle)

	case protocol.ActionRequestAudioLevel:
		return m.update(protocol.UpdateAudioLevel, m.audioLevel())

	case protocol.ActionSwitchMode:
		var data protocol.SwitchModeData
		if err := decode(msg.Data, &data); err != nil {
			return m.update(protocol.UpdateException, err.Error())
		}
		if m.modeIndex(data.ModeID) < 0 {
			return m.update(protocol.UpdateException, fmt.Sprintf("unknown mode %q", data.ModeID))
		}
		for i := range m.modes {
			m.modes[i].IsActive = m.modes[i].ID == data.ModeID
		}
		m.log.Info("mode switched", "mode", data.ModeID)
		return nil
	}
	return m.update(protocol.UpdateException, fmt.Sprintf("unknown action %q", msg.Action))
}

// finish runs the pipeline that follows a recording.
func (m *Mock) finish() error {
	m.recording = false
	duration := m.now().Sub(m.startedAt)
	begin := m.now()

	if err := m.status(protocol.StageTranscribing); err != nil {
		return err
	}
	text := m.applyReplacements(m.fx.Transcription)
	if err := m.update(protocol.UpdateTranscription, text); err != nil {
		return err
	}

	mode, _ := m.activeMode()
	result := types.Result{
		ID:            m.newID(),
		ModeID:        mode.ID,
		ModeName:      mode.Name,
		Transcription: text,
		Duration:      duration.Seconds(),
		CreatedAt:     m.now().UnixMilli(),
	}
	if mode.UseAI {
		if err := m.status(protocol.StageFormatting); err != nil {
			return err
		}
		result.FormattedText = sentence(text)
	}
	result.ProcessingMs = m.now().Sub(begin).Milliseconds()

	m.results = append([]types.Result{result}, m.results...)
	if err := m.update(protocol.UpdateResult, result); err != nil {
		return err
	}
	return m.status(protocol.StageIdle)
}

func (m *Mock) applyReplacements(text string) string {
	for _, r := range m.replacements {
		text = strings.ReplaceAll(text, r.Original, r.Replacement)
	}
	return text
}

// audioLevel returns a level between 0 and 1 that moves while recording.
func (m *Mock) audioLevel() float64 {
	if !m.recording {
		return 0
	}
	m.levels++
	return 0.2 + 0.6*math.Abs(math.Sin(float64(m.levels)/3))
}

// sentence capitalizes text and ends it with a period.
func sentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	r, size := utf8.DecodeRuneInString(text)
	text = string(unicode.ToUpper(r)) + text[size:]
	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text
}

// ─────────────────────────────────────────────────────────────────────────────
// Output
// ─────────────────────────────────────────────────────────────────────────────

func (m *Mock) status(stage protocol.Stage) error {
	return m.update(protocol.UpdateStatus, stage)
}

func (m *Mock) update(kind protocol.UpdateKind, payload any) error {
	msg, err := protocol.NewUpdate(kind, payload)
	if err != nil {
		return err
	}
	return m.write(msg)
}

func (m *Mock) write(msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if _, err := m.out.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return m.out.Flush()
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
