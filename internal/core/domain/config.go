package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Resolution labels accepted in RecordingConfig.Resolution.
const (
	Resolution2160p = "2160p"
	Resolution1440p = "1440p"
	Resolution1080p = "1080p"
	Resolution720p  = "720p"
	Resolution480p  = "480p"
	Resolution360p  = "360p"
)

const (
	DefaultResolution   = Resolution1080p
	DefaultFrameRate    = 30
	DefaultVideoBitrate = 2_500_000

	// Webcam video is always requested at this ideal size, independent of the
	// configured screen resolution.
	WebcamWidth  = 640
	WebcamHeight = 480
)

// ResolutionPreset is one entry of the fixed resolution table.
type ResolutionPreset struct {
	Label            string `json:"label"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	SuggestedBitrate int    `json:"suggestedBitrate"`
}

var resolutionPresets = []ResolutionPreset{
	{Label: Resolution2160p, Width: 3840, Height: 2160, SuggestedBitrate: 8_000_000},
	{Label: Resolution1440p, Width: 2560, Height: 1440, SuggestedBitrate: 5_000_000},
	{Label: Resolution1080p, Width: 1920, Height: 1080, SuggestedBitrate: 2_500_000},
	{Label: Resolution720p, Width: 1280, Height: 720, SuggestedBitrate: 1_500_000},
	{Label: Resolution480p, Width: 854, Height: 480, SuggestedBitrate: 1_000_000},
	{Label: Resolution360p, Width: 640, Height: 360, SuggestedBitrate: 1_000_000},
}

// ResolutionPresets returns a copy of the resolution table, largest first.
func ResolutionPresets() []ResolutionPreset {
	out := make([]ResolutionPreset, len(resolutionPresets))
	copy(out, resolutionPresets)
	return out
}

// LookupResolution maps a label to its pixel size. Unknown labels fall back to 1080p.
func LookupResolution(label string) (width, height int) {
	for _, p := range resolutionPresets {
		if p.Label == label {
			return p.Width, p.Height
		}
	}
	return 1920, 1080
}

// RecordingConfig selects the capture sources and quality of one recording.
type RecordingConfig struct {
	CaptureScreen     bool   `json:"captureScreen" bson:"capture_screen" mapstructure:"capture_screen"`
	CaptureWebcam     bool   `json:"captureWebcam" bson:"capture_webcam" mapstructure:"capture_webcam"`
	CaptureMicrophone bool   `json:"captureMicrophone" bson:"capture_microphone" mapstructure:"capture_microphone"`
	Resolution        string `json:"resolution" bson:"resolution" mapstructure:"resolution"`
	FrameRate         int    `json:"frameRate" bson:"frame_rate" mapstructure:"frame_rate" validate:"gt=0,lte=120"`
	VideoBitrate      int    `json:"videoBitrate" bson:"video_bitrate" mapstructure:"video_bitrate" validate:"gt=0"`
}

// DefaultRecordingConfig mirrors the recorder screen defaults: screen plus
// microphone at 1080p, 30 fps, 2.5 Mbps.
func DefaultRecordingConfig() RecordingConfig {
	return RecordingConfig{
		CaptureScreen:     true,
		CaptureMicrophone: true,
		Resolution:        DefaultResolution,
		FrameRate:         DefaultFrameRate,
		VideoBitrate:      DefaultVideoBitrate,
	}
}

// WantsVideo reports whether any video source is requested.
func (c RecordingConfig) WantsVideo() bool {
	return c.CaptureScreen || c.CaptureWebcam
}

// ScreenSize returns the pixel size derived from the resolution label.
func (c RecordingConfig) ScreenSize() (int, int) {
	return LookupResolution(c.Resolution)
}

var configValidator = validator.New()

// Validate checks the configuration before any device is opened.
func (c RecordingConfig) Validate() error {
	if !c.CaptureScreen && !c.CaptureWebcam && !c.CaptureMicrophone {
		return ErrNoSources
	}
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
