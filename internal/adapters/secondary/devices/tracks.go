package devices

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/audio"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/wave"
	"golang.org/x/image/draw"

	"go-screen-recorder/internal/core/domain"
)

func wrapTrack(t mediadevices.Track, v *domain.VideoConstraints) (domain.Track, error) {
	switch tr := t.(type) {
	case *mediadevices.VideoTrack:
		w, h, fps := domain.WebcamWidth, domain.WebcamHeight, domain.DefaultFrameRate
		if v != nil {
			w, h = v.Width, v.Height
			if v.FrameRate > 0 {
				fps = v.FrameRate
			}
		}
		return &videoTrack{
			track:  tr,
			reader: tr.NewReader(false),
			dst:    image.NewRGBA(image.Rect(0, 0, w, h)),
			format: domain.TrackFormat{Encoding: domain.EncodingRawRGBA, Width: w, Height: h, FrameRate: fps},
		}, nil
	case *mediadevices.AudioTrack:
		return newAudioTrack(tr)
	}
	return nil, fmt.Errorf("unsupported track type %T", t)
}

// videoTrack scales every frame to the requested size and emits raw RGBA.
type videoTrack struct {
	track  *mediadevices.VideoTrack
	reader video.Reader
	dst    *image.RGBA
	format domain.TrackFormat

	once sync.Once
	err  error
}

func (t *videoTrack) ID() string                 { return t.track.ID() }
func (t *videoTrack) Kind() domain.TrackKind     { return domain.TrackVideo }
func (t *videoTrack) Format() domain.TrackFormat { return t.format }

func (t *videoTrack) ReadFrame() ([]byte, error) {
	img, release, err := t.reader.Read()
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}
	draw.ApproxBiLinear.Scale(t.dst, t.dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	frame := make([]byte, len(t.dst.Pix))
	copy(frame, t.dst.Pix)
	return frame, nil
}

func (t *videoTrack) Stop() error {
	t.once.Do(func() { t.err = t.track.Close() })
	return t.err
}

// audioTrack emits interleaved s16le chunks. The first chunk is read on open
// so the real sample rate and channel count are known up front.
type audioTrack struct {
	track  *mediadevices.AudioTrack
	reader audio.Reader
	format domain.TrackFormat

	mu      sync.Mutex
	pending []byte

	once sync.Once
	err  error
}

func newAudioTrack(tr *mediadevices.AudioTrack) (*audioTrack, error) {
	reader := tr.NewReader(false)
	chunk, release, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read first audio chunk: %w", err)
	}
	info := chunk.ChunkInfo()
	first, err := encodeS16LE(chunk)
	if release != nil {
		release()
	}
	if err != nil {
		return nil, err
	}
	return &audioTrack{
		track:  tr,
		reader: reader,
		format: domain.TrackFormat{
			Encoding:   domain.EncodingS16LE,
			SampleRate: info.SamplingRate,
			Channels:   info.Channels,
		},
		pending: first,
	}, nil
}

func (t *audioTrack) ID() string                 { return t.track.ID() }
func (t *audioTrack) Kind() domain.TrackKind     { return domain.TrackAudio }
func (t *audioTrack) Format() domain.TrackFormat { return t.format }

func (t *audioTrack) ReadFrame() ([]byte, error) {
	t.mu.Lock()
	if p := t.pending; p != nil {
		t.pending = nil
		t.mu.Unlock()
		return p, nil
	}
	t.mu.Unlock()

	chunk, release, err := t.reader.Read()
	if err != nil {
		return nil, err
	}
	if release != nil {
		defer release()
	}
	return encodeS16LE(chunk)
}

func (t *audioTrack) Stop() error {
	t.once.Do(func() { t.err = t.track.Close() })
	return t.err
}

func encodeS16LE(chunk wave.Audio) ([]byte, error) {
	switch c := chunk.(type) {
	case *wave.Int16Interleaved:
		out := make([]byte, len(c.Data)*2)
		for i, s := range c.Data {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
		}
		return out, nil
	case *wave.Float32Interleaved:
		out := make([]byte, len(c.Data)*2)
		for i, s := range c.Data {
			v := math.Max(-1, math.Min(1, float64(s)))
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*math.MaxInt16)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported audio chunk %T", chunk)
}
