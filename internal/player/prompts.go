package player

import (
	"github.com/annsts/underlay/internal/lyria"
)

// Layer is one weighted text prompt contributing to the generated mix.
type Layer struct {
	ID      string  `json:"id" yaml:"id"`
	Text    string  `json:"text" yaml:"text"`
	Weight  float64 `json:"weight" yaml:"weight"`
	Enabled bool    `json:"enabled" yaml:"enabled"`
}

// GlobalConfig is the user-facing generation parameter set. Density
// and Brightness use 0 to mean "unset, let the server decide".
type GlobalConfig struct {
	BPM              int                  `json:"bpm" yaml:"bpm"`
	Density          float64              `json:"density" yaml:"density"`
	Brightness       float64              `json:"brightness" yaml:"brightness"`
	Guidance         float64              `json:"guidance" yaml:"guidance"`
	Temperature      float64              `json:"temperature" yaml:"temperature"`
	TopK             int                  `json:"topK" yaml:"top_k"`
	Seed             int32                `json:"seed" yaml:"seed"`
	Scale            lyria.Scale          `json:"scale" yaml:"scale"`
	Mode             lyria.GenerationMode `json:"mode" yaml:"mode"`
	MuteBass         bool                 `json:"muteBass" yaml:"mute_bass"`
	MuteDrums        bool                 `json:"muteDrums" yaml:"mute_drums"`
	OnlyBassAndDrums bool                 `json:"onlyBassAndDrums" yaml:"only_bass_and_drums"`
}

// DefaultConfig returns the parameter set a fresh install starts with.
func DefaultConfig() GlobalConfig {
	return GlobalConfig{
		BPM:         120,
		Guidance:    4.0,
		Temperature: 1.1,
		TopK:        40,
		Scale:       lyria.ScaleUnspecified,
		Mode:        lyria.ModeQuality,
	}
}

// weightFloor keeps a renormalized weight from reaching a literal zero
// on the wire.
const weightFloor = 0.001

// BuildWeightedPrompts filters to enabled, positively weighted layers
// and renormalizes their weights to sum to ~1. An empty result means
// the caller must pause generation rather than send an empty list.
func BuildWeightedPrompts(layers []Layer) []lyria.WeightedPrompt {
	var sum float64
	var enabled []Layer
	for _, l := range layers {
		if l.Enabled && l.Weight > 0 {
			enabled = append(enabled, l)
			sum += l.Weight
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	prompts := make([]lyria.WeightedPrompt, 0, len(enabled))
	for _, l := range enabled {
		w := l.Weight / sum
		if w < weightFloor {
			w = weightFloor
		}
		prompts = append(prompts, lyria.WeightedPrompt{Text: l.Text, Weight: w})
	}
	return prompts
}

// EncodeConfig maps the user config to the wire config. Density and
// brightness are included only when strictly positive; zero means the
// server should choose and must be omitted, not sent as an explicit 0.
func EncodeConfig(cfg GlobalConfig) lyria.GenerationConfig {
	enc := lyria.GenerationConfig{
		BPM:                 cfg.BPM,
		Guidance:            cfg.Guidance,
		Temperature:         cfg.Temperature,
		TopK:                cfg.TopK,
		Seed:                cfg.Seed,
		Scale:               cfg.Scale,
		MusicGenerationMode: cfg.Mode,
		MuteBass:            cfg.MuteBass,
		MuteDrums:           cfg.MuteDrums,
		OnlyBassAndDrums:    cfg.OnlyBassAndDrums,
	}
	if cfg.Density > 0 {
		d := cfg.Density
		enc.Density = &d
	}
	if cfg.Brightness > 0 {
		b := cfg.Brightness
		enc.Brightness = &b
	}
	return enc
}

// DrasticChange reports which context-resetting parameters differ from
// the last values sent to the session.
type DrasticChange struct {
	BPMChanged   bool `json:"bpmChanged"`
	ScaleChanged bool `json:"scaleChanged"`
}

// Any reports whether the change requires a server-side context reset.
func (d DrasticChange) Any() bool { return d.BPMChanged || d.ScaleChanged }

// DetectDrastic compares a config against the last-sent tempo and key.
func DetectDrastic(cfg GlobalConfig, lastBPM int, lastScale lyria.Scale) DrasticChange {
	return DrasticChange{
		BPMChanged:   cfg.BPM != lastBPM,
		ScaleChanged: cfg.Scale != lastScale,
	}
}
