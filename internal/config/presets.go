package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Quality tier names accepted in job submissions.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// QualityPreset maps a named quality tier to concrete x264 settings.
type QualityPreset struct {
	CRF          int    `yaml:"crf"`
	Preset       string `yaml:"preset"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

// PresetTable holds the preset for each quality tier.
type PresetTable map[string]QualityPreset

// DefaultPresets returns the built-in tier settings.
func DefaultPresets() PresetTable {
	return PresetTable{
		QualityHigh:   {CRF: 18, Preset: "slow", AudioBitrate: "192k"},
		QualityMedium: {CRF: 23, Preset: "medium", AudioBitrate: "128k"},
		QualityLow:    {CRF: 28, Preset: "veryfast", AudioBitrate: "96k"},
	}
}

// Lookup returns the preset for a quality name, falling back to medium
// for unknown or empty names.
func (t PresetTable) Lookup(quality string) QualityPreset {
	if p, ok := t[quality]; ok {
		return p
	}
	return t[QualityMedium]
}

// LoadPresets reads a YAML preset-override file and merges it over base.
// Only tiers present in the file are replaced; a tier entry must carry a
// valid CRF (0-51) and a non-empty encoder preset name.
func LoadPresets(path string, base PresetTable) (PresetTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	var overrides map[string]QualityPreset
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse presets file: %w", err)
	}

	merged := make(PresetTable, len(base))
	for k, v := range base {
		merged[k] = v
	}

	for name, p := range overrides {
		if _, known := base[name]; !known {
			return nil, fmt.Errorf("unknown quality tier %q (want high, medium or low)", name)
		}
		if p.CRF < 0 || p.CRF > 51 {
			return nil, fmt.Errorf("tier %q: crf %d out of range 0-51", name, p.CRF)
		}
		if p.Preset == "" {
			return nil, fmt.Errorf("tier %q: preset must not be empty", name)
		}
		if p.AudioBitrate == "" {
			p.AudioBitrate = base[name].AudioBitrate
		}
		merged[name] = p
	}

	return merged, nil
}
