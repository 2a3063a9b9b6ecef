package player

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annsts/underlay/internal/lyria"
)

func TestBuildWeightedPromptsRenormalizes(t *testing.T) {
	prompts := BuildWeightedPrompts([]Layer{
		{ID: "1", Text: "rain", Weight: 1, Enabled: true},
		{ID: "2", Text: "thunder", Weight: 3, Enabled: true},
	})

	require.Len(t, prompts, 2)
	assert.Equal(t, "rain", prompts[0].Text)
	assert.InDelta(t, 0.25, prompts[0].Weight, 1e-9)
	assert.InDelta(t, 0.75, prompts[1].Weight, 1e-9)
}

func TestBuildWeightedPromptsSkipsDisabledAndZero(t *testing.T) {
	prompts := BuildWeightedPrompts([]Layer{
		{ID: "1", Text: "a", Weight: 1, Enabled: true},
		{ID: "2", Text: "b", Weight: 1, Enabled: false},
		{ID: "3", Text: "c", Weight: 0, Enabled: true},
	})

	require.Len(t, prompts, 1)
	assert.Equal(t, "a", prompts[0].Text)
	assert.InDelta(t, 1.0, prompts[0].Weight, 1e-9)
}

func TestBuildWeightedPromptsEmpty(t *testing.T) {
	assert.Nil(t, BuildWeightedPrompts(nil))
	assert.Nil(t, BuildWeightedPrompts([]Layer{
		{ID: "1", Text: "a", Weight: 1, Enabled: false},
	}))
}

func TestBuildWeightedPromptsFloorsTinyWeights(t *testing.T) {
	prompts := BuildWeightedPrompts([]Layer{
		{ID: "1", Text: "a", Weight: 1e-7, Enabled: true},
		{ID: "2", Text: "b", Weight: 1, Enabled: true},
	})

	require.Len(t, prompts, 2)
	assert.Equal(t, weightFloor, prompts[0].Weight)
}

func TestEncodeConfigOmitsUnsetDensityBrightness(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Brightness = 0.6

	enc := EncodeConfig(cfg)
	assert.Nil(t, enc.Density)
	require.NotNil(t, enc.Brightness)
	assert.Equal(t, 0.6, *enc.Brightness)

	// The zero value must be absent from the wire frame entirely.
	data, err := json.Marshal(enc)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "density")
	assert.Contains(t, string(data), "brightness")
}

func TestEncodeConfigCarriesParameters(t *testing.T) {
	cfg := GlobalConfig{
		BPM:         140,
		Guidance:    5,
		Temperature: 1.5,
		TopK:        30,
		Seed:        1234,
		Scale:       lyria.ScaleGMajorEMinor,
		Mode:        lyria.ModeDiversity,
		MuteDrums:   true,
	}

	enc := EncodeConfig(cfg)
	assert.Equal(t, 140, enc.BPM)
	assert.Equal(t, int32(1234), enc.Seed)
	assert.Equal(t, lyria.ScaleGMajorEMinor, enc.Scale)
	assert.Equal(t, lyria.ModeDiversity, enc.MusicGenerationMode)
	assert.True(t, enc.MuteDrums)
	assert.False(t, enc.MuteBass)
}

func TestDetectDrastic(t *testing.T) {
	cfg := DefaultConfig()

	change := DetectDrastic(cfg, cfg.BPM, cfg.Scale)
	assert.False(t, change.Any())

	cfg.BPM = 90
	change = DetectDrastic(cfg, 120, lyria.ScaleUnspecified)
	assert.True(t, change.BPMChanged)
	assert.False(t, change.ScaleChanged)
	assert.True(t, change.Any())

	cfg.BPM = 120
	cfg.Scale = lyria.ScaleCMajorAMinor
	change = DetectDrastic(cfg, 120, lyria.ScaleUnspecified)
	assert.False(t, change.BPMChanged)
	assert.True(t, change.ScaleChanged)
}
