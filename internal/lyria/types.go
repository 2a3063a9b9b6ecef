package lyria

// Scale is the musical key/scale requested from the generation service.
type Scale string

const (
	ScaleUnspecified          Scale = "SCALE_UNSPECIFIED"
	ScaleCMajorAMinor         Scale = "C_MAJOR_A_MINOR"
	ScaleDFlatMajorBFlatMinor Scale = "D_FLAT_MAJOR_B_FLAT_MINOR"
	ScaleDMajorBMinor         Scale = "D_MAJOR_B_MINOR"
	ScaleEFlatMajorCMinor     Scale = "E_FLAT_MAJOR_C_MINOR"
	ScaleEMajorDFlatMinor     Scale = "E_MAJOR_D_FLAT_MINOR"
	ScaleFMajorDMinor         Scale = "F_MAJOR_D_MINOR"
	ScaleGFlatMajorEFlatMinor Scale = "G_FLAT_MAJOR_E_FLAT_MINOR"
	ScaleGMajorEMinor         Scale = "G_MAJOR_E_MINOR"
	ScaleAFlatMajorFMinor     Scale = "A_FLAT_MAJOR_F_MINOR"
	ScaleAMajorGFlatMinor     Scale = "A_MAJOR_G_FLAT_MINOR"
	ScaleBFlatMajorGMinor     Scale = "B_FLAT_MAJOR_G_MINOR"
	ScaleBMajorAFlatMinor     Scale = "B_MAJOR_A_FLAT_MINOR"
)

// GenerationMode selects the service-side generation strategy.
type GenerationMode string

const (
	ModeQuality      GenerationMode = "QUALITY"
	ModeDiversity    GenerationMode = "DIVERSITY"
	ModeVocalization GenerationMode = "VOCALIZATION"
)

// WeightedPrompt is one text layer with its normalized weight.
type WeightedPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// GenerationConfig is the full generation parameter set sent to the
// service. Density and Brightness are pointers: nil means "let the
// server decide" and the field is omitted from the wire message.
type GenerationConfig struct {
	BPM                 int            `json:"bpm"`
	Density             *float64       `json:"density,omitempty"`
	Brightness          *float64       `json:"brightness,omitempty"`
	Guidance            float64        `json:"guidance"`
	Temperature         float64        `json:"temperature"`
	TopK                int            `json:"topK"`
	Seed                int32          `json:"seed"`
	Scale               Scale          `json:"scale"`
	MusicGenerationMode GenerationMode `json:"musicGenerationMode"`
	MuteBass            bool           `json:"muteBass"`
	MuteDrums           bool           `json:"muteDrums"`
	OnlyBassAndDrums    bool           `json:"onlyBassAndDrums"`
}

// AudioChunk is one generated audio segment. Data stays base64-encoded
// as received; the playback side fingerprints the encoded payload for
// dedup before decoding.
type AudioChunk struct {
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// ServerContent carries generated audio.
type ServerContent struct {
	AudioChunks []AudioChunk `json:"audioChunks,omitempty"`
}

// FilteredPrompt reports a layer rejected by content filtering.
// Informational only; generation continues with the remaining layers.
type FilteredPrompt struct {
	Text           string `json:"text,omitempty"`
	FilteredReason string `json:"filteredReason,omitempty"`
}

// ServerMessage is one inbound frame from the session.
type ServerMessage struct {
	SetupComplete  *struct{}       `json:"setupComplete,omitempty"`
	FilteredPrompt *FilteredPrompt `json:"filteredPrompt,omitempty"`
	ServerContent  *ServerContent  `json:"serverContent,omitempty"`
}

// clientMessage is one outbound frame. Exactly one field is set.
type clientMessage struct {
	Setup                 *setupPayload     `json:"setup,omitempty"`
	ClientContent         *clientContent    `json:"clientContent,omitempty"`
	MusicGenerationConfig *GenerationConfig `json:"musicGenerationConfig,omitempty"`
	PlaybackControl       string            `json:"playbackControl,omitempty"`
}

type setupPayload struct {
	Model string `json:"model"`
}

type clientContent struct {
	WeightedPrompts []WeightedPrompt `json:"weightedPrompts"`
}

// Playback control verbs understood by the service.
const (
	controlPlay         = "PLAY"
	controlPause        = "PAUSE"
	controlStop         = "STOP"
	controlResetContext = "RESET_CONTEXT"
)
