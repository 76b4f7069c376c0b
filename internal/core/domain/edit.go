package domain

// ProgressFunc receives transcoding progress as a percentage in [0, 100].
type ProgressFunc func(percent int)

// Segment is one piece produced by a split. End is nil for the last segment,
// which runs to the end of the input.
type Segment struct {
	Index    int      `json:"index"`
	Start    float64  `json:"start"`
	End      *float64 `json:"end,omitempty"`
	Artifact Artifact `json:"-"`
}

// ConvertQuality selects an encoder quality preset.
type ConvertQuality string

const (
	QualityHigh   ConvertQuality = "high"
	QualityMedium ConvertQuality = "medium"
	QualityLow    ConvertQuality = "low"
)
