package main

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"go.aimuz.me/murmur/internal/types"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the canned data the mock serves.
type Fixtures struct {
	Transcription    string               `yaml:"transcription"`
	Modes            []modeFixture        `yaml:"modes"`
	Devices          []deviceFixture      `yaml:"devices"`
	VoiceModels      []voiceModelFixture  `yaml:"voiceModels"`
	LanguageModels   []languageFixture    `yaml:"languageModels"`
	TextReplacements []replacementFixture `yaml:"textReplacements"`
}

type modeFixture struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	VoiceModel    string  `yaml:"voiceModel"`
	LanguageModel string  `yaml:"languageModel"`
	Language      string  `yaml:"language"`
	Prompt        string  `yaml:"prompt"`
	Temperature   float64 `yaml:"temperature"`
	UseAI         bool    `yaml:"useAi"`
	Active        bool    `yaml:"active"`
}

type deviceFixture struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Default bool   `yaml:"default"`
}

type voiceModelFixture struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Size         string `yaml:"size"`
	Languages    string `yaml:"languages"`
	Multilingual bool   `yaml:"multilingual"`
	Downloaded   bool   `yaml:"downloaded"`
}

type languageFixture struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
}

type replacementFixture struct {
	ID          string `yaml:"id"`
	Original    string `yaml:"original"`
	Replacement string `yaml:"replacement"`
}

// LoadFixtures reads fixtures from path, or the built-in set when path is
// empty.
func LoadFixtures(path string) (*Fixtures, error) {
	data := defaultFixtures
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixtures: %w", err)
		}
		data = b
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes a YAML fixture document.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if fx.Transcription == "" {
		fx.Transcription = "mock transcription"
	}
	return &fx, nil
}

func (fx *Fixtures) modes() []types.Mode {
	out := make([]types.Mode, len(fx.Modes))
	for i, m := range fx.Modes {
		out[i] = types.Mode{
			ID:            m.ID,
			Name:          m.Name,
			VoiceModel:    m.VoiceModel,
			LanguageModel: m.LanguageModel,
			Language:      m.Language,
			Prompt:        m.Prompt,
			Temperature:   m.Temperature,
			UseAI:         m.UseAI,
			IsActive:      m.Active,
		}
	}
	return out
}

func (fx *Fixtures) devices() []types.Device {
	out := make([]types.Device, len(fx.Devices))
	for i, d := range fx.Devices {
		out[i] = types.Device{ID: d.ID, Name: d.Name, IsDefault: d.Default}
	}
	return out
}

func (fx *Fixtures) voiceModels() []types.VoiceModel {
	out := make([]types.VoiceModel, len(fx.VoiceModels))
	for i, m := range fx.VoiceModels {
		out[i] = types.VoiceModel{
			ID:          m.ID,
			Name:        m.Name,
			Size:        m.Size,
			Languages:   m.Languages,
			IsMultiLang: m.Multilingual,
			Downloaded:  m.Downloaded,
		}
	}
	return out
}

func (fx *Fixtures) languageModels() []types.LanguageModel {
	out := make([]types.LanguageModel, len(fx.LanguageModels))
	for i, m := range fx.LanguageModels {
		out[i] = types.LanguageModel{ID: m.ID, Name: m.Name, Provider: m.Provider}
	}
	return out
}

func (fx *Fixtures) textReplacements() []types.TextReplacement {
	out := make([]types.TextReplacement, len(fx.TextReplacements))
	for i, r := range fx.TextReplacements {
		out[i] = types.TextReplacement{ID: r.ID, Original: r.Original, Replacement: r.Replacement}
	}
	return out
}
