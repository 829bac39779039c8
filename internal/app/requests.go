package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.aimuz.me/murmur/bridge"
	"go.aimuz.me/murmur/cache"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/protocol"
)

// ─────────────────────────────────────────────────────────────────────────────
// Modes
// ─────────────────────────────────────────────────────────────────────────────

// FetchAllModes returns every dictation mode.
func (s *Service) FetchAllModes() ([]types.Mode, error) {
	ctx, cancel := requestContext()
	defer cancel()
	return bridge.Call[[]types.Mode](ctx, s.Bridge, protocol.FetchAllModes, nil)
}

// CreateMode creates a mode and pushes the new list to all windows.
func (s *Service) CreateMode(mode types.Mode) (types.Mode, error) {
	ctx, cancel := requestContext()
	defer cancel()
	created, err := bridge.Call[types.Mode](ctx, s.Bridge, protocol.CreateMode, mode)
	if err != nil {
		return types.Mode{}, err
	}
	s.pushModes(ctx)
	return created, nil
}

// UpdateMode updates a mode and pushes the new list to all windows.
func (s *Service) UpdateMode(mode types.Mode) error {
	ctx, cancel := requestContext()
	defer cancel()
	if _, err := s.Bridge.Request(ctx, protocol.UpdateMode, mode); err != nil {
		return err
	}
	s.pushModes(ctx)
	return nil
}

// DeleteMode deletes a mode and pushes the new list to all windows.
func (s *Service) DeleteMode(id string) error {
	ctx, cancel := requestContext()
	defer cancel()
	if _, err := s.Bridge.Request(ctx, protocol.DeleteMode, types.DeleteRequest{ID: id}); err != nil {
		return err
	}
	s.pushModes(ctx)
	return nil
}

// AddExample attaches a formatting example to a mode.
func (s *Service) AddExample(example types.Example) error {
	ctx, cancel := requestContext()
	defer cancel()
	_, err := s.Bridge.Request(ctx, protocol.AddExample, example)
	return err
}

// SwitchMode activates the mode with the given id.
func (s *Service) SwitchMode(id string) error {
	return s.Bridge.Command(protocol.ActionSwitchMode, protocol.SwitchModeData{ModeID: id})
}

func (s *Service) pushModes(ctx context.Context) {
	modes, err := bridge.Call[[]types.Mode](ctx, s.Bridge, protocol.FetchAllModes, nil)
	if err != nil {
		slog.Warn("refresh modes", "error", err)
		return
	}
	s.emit(EventModesUpdate, modes)
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// FetchAllResults returns the dictation history.
func (s *Service) FetchAllResults() ([]types.Result, error) {
	ctx, cancel := requestContext()
	defer cancel()
	return bridge.Call[[]types.Result](ctx, s.Bridge, protocol.FetchAllResults, nil)
}

// DeleteResult removes one history entry.
func (s *Service) DeleteResult(id string) error {
	ctx, cancel := requestContext()
	defer cancel()
	if _, err := s.Bridge.Request(ctx, protocol.DeleteResult, types.DeleteRequest{ID: id}); err != nil {
		return err
	}
	if results, err := bridge.Call[[]types.Result](ctx, s.Bridge, protocol.FetchAllResults, nil); err == nil {
		s.emit(EventHistory, results)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Text Replacements
// ─────────────────────────────────────────────────────────────────────────────

// FetchAllTextReplacements returns the configured replacements.
func (s *Service) FetchAllTextReplacements() ([]types.TextReplacement, error) {
	ctx, cancel := requestContext()
	defer cancel()
	return bridge.Call[[]types.TextReplacement](ctx, s.Bridge, protocol.FetchAllTextReplacements, nil)
}

// CreateTextReplacement adds a replacement.
func (s *Service) CreateTextReplacement(r types.TextReplacement) (types.TextReplacement, error) {
	ctx, cancel := requestContext()
	defer cancel()
	return bridge.Call[types.TextReplacement](ctx, s.Bridge, protocol.CreateTextReplacement, r)
}

// DeleteTextReplacement removes a replacement.
func (s *Service) DeleteTextReplacement(id string) error {
	ctx, cancel := requestContext()
	defer cancel()
	_, err := s.Bridge.Request(ctx, protocol.DeleteTextReplacement, types.DeleteRequest{ID: id})
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalogues
// ─────────────────────────────────────────────────────────────────────────────

// FetchAllVoiceModels lists the speech models the worker offers.
func (s *Service) FetchAllVoiceModels() ([]types.VoiceModel, error) {
	return fetchCatalogue[[]types.VoiceModel](s, protocol.FetchAllVoiceModels)
}

// FetchAllLanguageModels lists the formatting models the worker offers.
func (s *Service) FetchAllLanguageModels() ([]types.LanguageModel, error) {
	return fetchCatalogue[[]types.LanguageModel](s, protocol.FetchAllLanguageModels)
}

// FetchAllDevices lists audio input devices.
func (s *Service) FetchAllDevices() ([]types.Device, error) {
	return fetchCatalogue[[]types.Device](s, protocol.FetchAllDevices)
}

// fetchCatalogue asks the worker and caches the answer. When the worker
// fails, the last cached answer is served instead. A cached answer that no
// longer decodes is dropped and the worker's error is returned.
func fetchCatalogue[T any](s *Service, channel protocol.Channel) (T, error) {
	var out T
	ctx, cancel := requestContext()
	defer cancel()

	key := cache.GenerateKey(string(channel))
	data, err := s.Bridge.Request(ctx, channel, nil)
	if err != nil {
		entry, found := s.cached(key)
		if !found {
			return out, err
		}
		if decodeErr := json.Unmarshal(entry.Data, &out); decodeErr != nil {
			slog.Warn("drop stale catalogue", "channel", channel, "error", decodeErr)
			if err := s.Cache.Delete(key); err != nil {
				slog.Debug("delete catalogue", "channel", channel, "error", err)
			}
			var zero T
			return zero, err
		}
		slog.Warn("serving cached catalogue", "channel", channel, "error", err, "cached_at", entry.CreatedAt)
		return out, nil
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", channel, err)
	}
	if s.Cache != nil {
		entry := &cache.Entry{Channel: string(channel), Data: data, CreatedAt: time.Now()}
		if err := s.Cache.Set(key, entry, cache.DefaultTTL); err != nil {
			slog.Debug("cache catalogue", "channel", channel, "error", err)
		}
	}
	return out, nil
}

func (s *Service) cached(key string) (*cache.Entry, bool) {
	if s.Cache == nil {
		return nil, false
	}
	return s.Cache.Get(key)
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording
// ─────────────────────────────────────────────────────────────────────────────

// SetDevice selects the recording device.
func (s *Service) SetDevice(sel types.DeviceSelection) error {
	ctx, cancel := requestContext()
	defer cancel()
	_, err := s.Bridge.Request(ctx, protocol.SetDevice, sel)
	return err
}

// Toggle starts or stops recording.
func (s *Service) Toggle() error {
	return s.Bridge.Command(protocol.ActionToggle, nil)
}

// Cancel aborts the current recording.
func (s *Service) Cancel() error {
	return s.Bridge.Command(protocol.ActionCancel, nil)
}

// RequestAudioLevel asks the worker for an audio_level update.
func (s *Service) RequestAudioLevel() error {
	return s.Bridge.Command(protocol.ActionRequestAudioLevel, nil)
}
