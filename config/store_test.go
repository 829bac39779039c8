package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"
)

// memStorage is an in-memory Storage with injectable failures.
type memStorage struct {
	mu       sync.Mutex
	data     []byte
	writes   int
	readErr  error
	writeErr error
}

func (m *memStorage) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.data == nil {
		return nil, fs.ErrNotExist
	}
	return m.data, nil
}

func (m *memStorage) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data = append([]byte(nil), data...)
	m.writes++
	return nil
}

func TestOpen_MissingFileWritesDefaults(t *testing.T) {
	storage := &memStorage{}
	s := Open(storage, nil)

	if s.Current() != Defaults() {
		t.Errorf("Current() = %+v, want defaults", s.Current())
	}
	if storage.writes != 1 {
		t.Fatalf("writes = %d, want 1", storage.writes)
	}

	var persisted Settings
	if err := json.Unmarshal(storage.data, &persisted); err != nil {
		t.Fatalf("persisted document invalid: %v", err)
	}
	if persisted != Defaults() {
		t.Errorf("persisted = %+v, want defaults", persisted)
	}
}

func TestOpen_CorruptFileSelfHeals(t *testing.T) {
	storage := &memStorage{data: []byte(`{"keyboard": {`)}
	s := Open(storage, nil)

	if s.Current() != Defaults() {
		t.Errorf("Current() = %+v, want defaults", s.Current())
	}
	if storage.writes != 1 {
		t.Errorf("writes = %d, want 1", storage.writes)
	}
}

func TestOpen_ReadFailureKeepsDocument(t *testing.T) {
	original := []byte(`{"keyboard": {"toggleShortcut": "Alt+D"}}`)
	storage := &memStorage{data: original, readErr: fs.ErrPermission}
	s := Open(storage, nil)

	if s.Current() != Defaults() {
		t.Errorf("Current() = %+v, want defaults", s.Current())
	}
	if storage.writes != 0 {
		t.Errorf("writes = %d, want 0", storage.writes)
	}
	if string(storage.data) != string(original) {
		t.Errorf("document overwritten: %s", storage.data)
	}

	if err := s.Load(); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("Load() error = %v, want ErrPermission", err)
	}
}

func TestOpen_ToleratesCommentsAndFillsMissingFields(t *testing.T) {
	storage := &memStorage{data: []byte(`{
		// edited by hand
		"keyboard": {"toggleShortcut": "Ctrl+Shift+O",},
		"output": {"autoPasteResult": false}
	}`)}
	s := Open(storage, nil)

	got := s.Current()
	if got.Keyboard.ToggleShortcut != "Ctrl+Shift+O" {
		t.Errorf("ToggleShortcut = %q, want %q", got.Keyboard.ToggleShortcut, "Ctrl+Shift+O")
	}
	if got.Keyboard.CancelShortcut != Defaults().Keyboard.CancelShortcut {
		t.Errorf("CancelShortcut = %q, want default", got.Keyboard.CancelShortcut)
	}
	if got.Output.AutoPasteResult {
		t.Error("AutoPasteResult = true, want false from file")
	}
	if got.Application != Defaults().Application {
		t.Errorf("Application = %+v, want defaults", got.Application)
	}
	if storage.writes != 0 {
		t.Errorf("writes = %d, want 0 for a valid document", storage.writes)
	}
}

func TestStore_Update(t *testing.T) {
	tests := []struct {
		name     string
		section  Section
		partial  string
		wantEmit bool
		check    func(Settings) bool
	}{
		{
			name:     "identical value does not emit",
			section:  SectionKeyboard,
			partial:  `{"toggleShortcut":"CmdOrCtrl+Shift+Space"}`,
			wantEmit: false,
			check:    func(s Settings) bool { return s == Defaults() },
		},
		{
			name:     "changed value emits merged snapshot",
			section:  SectionKeyboard,
			partial:  `{"toggleShortcut":"Ctrl+Shift+P"}`,
			wantEmit: true,
			check: func(s Settings) bool {
				return s.Keyboard.ToggleShortcut == "Ctrl+Shift+P" &&
					s.Keyboard.CancelShortcut == Defaults().Keyboard.CancelShortcut
			},
		},
		{
			name:     "volume is clamped",
			section:  SectionAudio,
			partial:  `{"soundEffectsVolume":3}`,
			wantEmit: true,
			check:    func(s Settings) bool { return s.Audio.SoundEffectsVolume == 1 },
		},
		{
			name:     "empty partial",
			section:  SectionOutput,
			partial:  ``,
			wantEmit: false,
			check:    func(s Settings) bool { return s == Defaults() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Open(&memStorage{}, nil)

			var changes []Change
			s.OnChange(func(c Change) { changes = append(changes, c) })

			if err := s.Update(tt.section, json.RawMessage(tt.partial)); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if got := len(changes) == 1; got != tt.wantEmit || len(changes) > 1 {
				t.Fatalf("emitted %d changes, want emit=%v", len(changes), tt.wantEmit)
			}
			if !tt.check(s.Current()) {
				t.Errorf("Current() = %+v", s.Current())
			}
			if tt.wantEmit {
				if changes[0].New != s.Current() || changes[0].Old != Defaults() {
					t.Errorf("change = %+v, want defaults -> current", changes[0])
				}
			}
		})
	}
}

func TestStore_UpdateErrors(t *testing.T) {
	s := Open(&memStorage{}, nil)

	if err := s.Update("video", json.RawMessage(`{}`)); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("Update(video) error = %v, want ErrUnknownSection", err)
	}
	if err := s.Update(SectionAudio, json.RawMessage(`{"boostVolume":"yes"}`)); err == nil {
		t.Error("Update() with wrong type succeeded, want error")
	}
	if s.Current() != Defaults() {
		t.Errorf("failed updates changed settings: %+v", s.Current())
	}
}

func TestStore_PersistFailureKeepsValueWithoutEmit(t *testing.T) {
	storage := &memStorage{}
	s := Open(storage, nil)
	storage.writeErr = errors.New("disk full")

	emitted := 0
	s.OnChange(func(Change) { emitted++ })

	out := Output{AutoPasteResult: false, RestoreClipboard: false}
	err := s.SetOutput(out)

	var pe *PersistError
	if !errors.As(err, &pe) {
		t.Fatalf("SetOutput() error = %v, want PersistError", err)
	}
	if emitted != 0 {
		t.Errorf("emitted %d changes after failed write, want 0", emitted)
	}
	if s.Current().Output != out {
		t.Errorf("Output = %+v, want in-memory value %+v", s.Current().Output, out)
	}
}

func TestStore_TypedSetters(t *testing.T) {
	s := Open(&memStorage{}, nil)

	var last Change
	s.OnChange(func(c Change) { last = c })

	kb := Keyboard{ToggleShortcut: "Alt+D"}
	if err := s.SetKeyboard(kb); err != nil {
		t.Fatalf("SetKeyboard() error = %v", err)
	}
	if !last.KeyboardChanged() || last.AudioChanged() {
		t.Errorf("change flags keyboard=%v audio=%v, want true false", last.KeyboardChanged(), last.AudioChanged())
	}

	audio := Audio{Device: "usb", UseSystemDefault: false, SoundEffectsVolume: 0.2}
	if err := s.SetAudio(audio); err != nil {
		t.Fatalf("SetAudio() error = %v", err)
	}
	if !last.AudioChanged() || last.KeyboardChanged() {
		t.Errorf("change flags keyboard=%v audio=%v, want false true", last.KeyboardChanged(), last.AudioChanged())
	}

	app := Application{EnableRecordingWindow: false}
	if err := s.SetApplication(app); err != nil {
		t.Fatalf("SetApplication() error = %v", err)
	}

	want := Defaults()
	want.Keyboard = kb
	want.Audio = audio
	want.Application = app
	if s.Current() != want {
		t.Errorf("Current() = %+v, want %+v", s.Current(), want)
	}
}

func TestStore_ConcurrentSettersNotifyInCommitOrder(t *testing.T) {
	const (
		writers = 8
		rounds  = 50
	)
	s := Open(&memStorage{}, nil)

	var (
		mu   sync.Mutex
		last Keyboard
	)
	s.OnChange(func(Change) {
		// Widen the window between unlock and delivery.
		runtime.Gosched()
	})
	s.OnChange(func(c Change) {
		mu.Lock()
		last = c.New.Keyboard
		mu.Unlock()
	})

	for round := range rounds {
		var wg sync.WaitGroup
		for w := range writers {
			wg.Go(func() {
				kb := Keyboard{ToggleShortcut: "Alt+" + strconv.Itoa(round) + "-" + strconv.Itoa(w)}
				if err := s.SetKeyboard(kb); err != nil {
					t.Errorf("SetKeyboard() error = %v", err)
				}
			})
		}
		wg.Wait()

		mu.Lock()
		got := last
		mu.Unlock()
		if want := s.Current().Keyboard; got != want {
			t.Fatalf("round %d: last notified keyboard = %+v, stored = %+v", round, got, want)
		}
	}
}

func TestFileStorage_RoundTripAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	storage := FileStorage(path)

	s := Open(storage, nil)
	if err := s.Update(SectionKeyboard, json.RawMessage(`{"cancelShortcut":"Escape"}`)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	reloaded := Open(storage, nil)
	if reloaded.Current() != s.Current() {
		t.Errorf("reloaded = %+v, want %+v", reloaded.Current(), s.Current())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only settings.json (no temp files)", len(entries))
	}
}
