package domain

import (
	"errors"
	"fmt"
	"sync"
)

type SourceKind string

const (
	SourceScreen     SourceKind = "screen"
	SourceWebcam     SourceKind = "webcam"
	SourceMicrophone SourceKind = "microphone"
)

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Frame encodings a track can emit. Every ReadFrame call returns exactly one
// unit in this encoding.
const (
	EncodingRawRGBA = "rgba"  // one width*height*4 byte frame
	EncodingPNG     = "png"   // one PNG image per frame
	EncodingS16LE   = "s16le" // interleaved signed 16-bit little endian samples
)

// TrackFormat describes the frames produced by a track.
type TrackFormat struct {
	Encoding   string `json:"encoding"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FrameRate  int    `json:"frameRate,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// Track is one live audio or video track of a capture source.
type Track interface {
	ID() string
	Kind() TrackKind
	Format() TrackFormat
	// ReadFrame blocks until the next complete frame is available.
	ReadFrame() ([]byte, error)
	Stop() error
}

// Source is an opened capture source such as a display or a camera.
type Source interface {
	Kind() SourceKind
	Tracks() []Track
	Stop() error
}

// VideoConstraints are the video parameters requested from a source.
type VideoConstraints struct {
	Width     int
	Height    int
	FrameRate int
}

// SourceRequest asks an opener for one source.
type SourceRequest struct {
	Kind  SourceKind
	Video *VideoConstraints
	Audio bool
}

// HasAudio reports whether the source delivered at least one audio track.
func HasAudio(src Source) bool {
	for _, t := range src.Tracks() {
		if t.Kind() == TrackAudio {
			return true
		}
	}
	return false
}

// CombinedStream is the union of the tracks of every source in a session.
type CombinedStream struct {
	tracks []Track
}

func NewCombinedStream(sources ...Source) *CombinedStream {
	s := &CombinedStream{}
	for _, src := range sources {
		s.tracks = append(s.tracks, src.Tracks()...)
	}
	return s
}

func (s *CombinedStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *CombinedStream) VideoTracks() []Track { return s.byKind(TrackVideo) }

func (s *CombinedStream) AudioTracks() []Track { return s.byKind(TrackAudio) }

func (s *CombinedStream) byKind(kind TrackKind) []Track {
	var out []Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

// CaptureHandle owns the sources opened for one session.
type CaptureHandle struct {
	sources []Source
	stream  *CombinedStream

	once       sync.Once
	releaseErr error
}

func NewCaptureHandle(sources []Source) *CaptureHandle {
	return &CaptureHandle{
		sources: sources,
		stream:  NewCombinedStream(sources...),
	}
}

func (h *CaptureHandle) Stream() *CombinedStream { return h.stream }

func (h *CaptureHandle) Sources() []Source {
	out := make([]Source, len(h.sources))
	copy(out, h.sources)
	return out
}

// Release stops every source. Only the first call stops anything; later calls
// return the same result.
func (h *CaptureHandle) Release() error {
	h.once.Do(func() {
		var errs []error
		for _, src := range h.sources {
			if err := src.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop %s: %w", src.Kind(), err))
			}
		}
		h.releaseErr = errors.Join(errs...)
	})
	return h.releaseErr
}
