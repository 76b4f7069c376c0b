package devices

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/driver"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // camera driver
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // microphone driver
	_ "github.com/pion/mediadevices/pkg/driver/screen"     // screen driver
	"github.com/pion/mediadevices/pkg/prop"
	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

// Opener opens one kind of local capture device through pion/mediadevices.
type Opener struct {
	kind   domain.SourceKind
	logger *zap.SugaredLogger
}

var _ ports.SourceOpener = (*Opener)(nil)
var _ ports.SourceProber = (*Opener)(nil)

func NewScreenOpener(logger *zap.SugaredLogger) *Opener {
	return &Opener{kind: domain.SourceScreen, logger: logger}
}

func NewCameraOpener(logger *zap.SugaredLogger) *Opener {
	return &Opener{kind: domain.SourceWebcam, logger: logger}
}

func NewMicrophoneOpener(logger *zap.SugaredLogger) *Opener {
	return &Opener{kind: domain.SourceMicrophone, logger: logger}
}

func (o *Opener) Open(ctx context.Context, req domain.SourceRequest) (domain.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.Probe(ctx); err != nil {
		return nil, err
	}

	constraints := mediadevices.MediaStreamConstraints{
		Codec: mediadevices.NewCodecSelector(),
	}
	if req.Video != nil && o.kind != domain.SourceMicrophone {
		constraints.Video = videoOption(*req.Video)
	}
	// Display capture never carries audio here; the caller falls back to
	// another source for it.
	if req.Audio && o.kind != domain.SourceScreen {
		constraints.Audio = audioOption
	}

	stream, err := o.getMedia(constraints)
	if err != nil && constraints.Video != nil && constraints.Audio != nil {
		o.logger.Warnw("opening with audio failed, retrying video only", "source", o.kind, "error", err)
		constraints.Audio = nil
		stream, err = o.getMedia(constraints)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.kind, err)
	}

	src := &source{kind: o.kind}
	for _, t := range stream.GetTracks() {
		track, err := wrapTrack(t, req.Video)
		if err != nil {
			_ = t.Close()
			o.logger.Warnw("skipping track", "source", o.kind, "track", t.ID(), "error", err)
			continue
		}
		src.tracks = append(src.tracks, track)
	}
	if len(src.tracks) == 0 {
		return nil, fmt.Errorf("%w: %s delivered no usable tracks", domain.ErrSourceUnavailable, o.kind)
	}

	o.logger.Infow("capture source opened", "source", o.kind, "tracks", len(src.tracks), "audio", domain.HasAudio(src))
	return src, nil
}

func (o *Opener) getMedia(c mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error) {
	if o.kind == domain.SourceScreen {
		return mediadevices.GetDisplayMedia(c)
	}
	return mediadevices.GetUserMedia(c)
}

// Probe checks that at least one device of this kind is registered.
func (o *Opener) Probe(ctx context.Context) error {
	want := driverType(o.kind)
	for _, d := range mediadevices.EnumerateDevices() {
		if d.DeviceType == want {
			return nil
		}
	}
	return fmt.Errorf("%w: no %s device found", domain.ErrSourceUnavailable, o.kind)
}

func driverType(kind domain.SourceKind) driver.DeviceType {
	switch kind {
	case domain.SourceScreen:
		return driver.Screen
	case domain.SourceMicrophone:
		return driver.Microphone
	default:
		return driver.Camera
	}
}

func videoOption(v domain.VideoConstraints) mediadevices.MediaOption {
	return func(c *mediadevices.MediaTrackConstraints) {
		c.Width = prop.Int(v.Width)
		c.Height = prop.Int(v.Height)
		if v.FrameRate > 0 {
			c.FrameRate = prop.Float(float32(v.FrameRate))
		}
	}
}

func audioOption(c *mediadevices.MediaTrackConstraints) {
	c.SampleSize = prop.Int(16)
	c.IsFloat = prop.BoolExact(false)
	c.IsInterleaved = prop.BoolExact(true)
}

type source struct {
	kind   domain.SourceKind
	tracks []domain.Track

	once sync.Once
	err  error
}

func (s *source) Kind() domain.SourceKind { return s.kind }

func (s *source) Tracks() []domain.Track {
	out := make([]domain.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *source) Stop() error {
	s.once.Do(func() {
		var errs []error
		for _, t := range s.tracks {
			if err := t.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}
