package types

// AudioAnalysis is what a beat detector reports for one audio input.
type AudioAnalysis struct {
	BeatTimes []float64 `json:"beat_times"`
	Duration  float64   `json:"duration"`
}

type TimelineSlot struct {
	Start    float64
	Duration float64
}

func (s TimelineSlot) End() float64 { return s.Start + s.Duration }

// ImageRef points at a source image. Data, when set, wins over Path.
type ImageRef struct {
	Name string
	Path string
	Data []byte
}

type RenderSlot struct {
	Image      ImageRef
	ImageIndex int
	Start      float64
	Duration   float64
}

type Plan struct {
	Analysis    AudioAnalysis
	Fallback    bool
	Slots       []TimelineSlot
	RenderSlots []RenderSlot
}

// Segment is one fixed-duration still in the encoded sequence.
type Segment struct {
	ImageIndex int
	CanvasPath string
	Start      float64
	Duration   float64
}

// RenderJob is the complete sequence description handed to an encoder.
type RenderJob struct {
	Width     int
	Height    int
	FPS       int
	Duration  float64
	AudioPath string
	Segments  []Segment
}

type Manifest struct {
	Audio    string         `json:"audio"`
	Output   string         `json:"output"`
	Duration float64        `json:"duration_sec"`
	Beats    int            `json:"beats"`
	Fallback bool           `json:"fallback"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	FPS      int            `json:"fps"`
	Slots    []ManifestSlot `json:"slots"`
}

type ManifestSlot struct {
	ID       string  `json:"id"`
	StartSec float64 `json:"start_sec"`
	Duration float64 `json:"duration_sec"`
	Image    string  `json:"image"`
}
