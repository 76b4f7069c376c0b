package ffmpeg

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

type stubTrack struct {
	kind   domain.TrackKind
	format domain.TrackFormat
}

func (s stubTrack) ID() string                 { return string(s.kind) }
func (s stubTrack) Kind() domain.TrackKind     { return s.kind }
func (s stubTrack) Format() domain.TrackFormat { return s.format }
func (s stubTrack) ReadFrame() ([]byte, error) { return nil, io.EOF }
func (s stubTrack) Stop() error                { return nil }

var (
	screenTrack = stubTrack{kind: domain.TrackVideo, format: domain.TrackFormat{Encoding: domain.EncodingRawRGBA, Width: 1280, Height: 720, FrameRate: 30}}
	webcamTrack = stubTrack{kind: domain.TrackVideo, format: domain.TrackFormat{Encoding: domain.EncodingRawRGBA, Width: 640, Height: 480, FrameRate: 30}}
	micTrack    = stubTrack{kind: domain.TrackAudio, format: domain.TrackFormat{Encoding: domain.EncodingS16LE, SampleRate: 48000, Channels: 2}}
	tabTrack    = stubTrack{kind: domain.TrackVideo, format: domain.TrackFormat{Encoding: domain.EncodingPNG, Width: 1280, Height: 720}}
)

var testOpts = ports.EncoderOptions{MimeType: "video/webm;codecs=vp9,opus", VideoBitrate: 1_500_000, FrameRate: 30, Width: 1280, Height: 720}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestBuildEncodeArgsScreenAndMicrophone(t *testing.T) {
	plan, _ := planFor(testOpts.MimeType)
	args := buildEncodeArgs(plan, []domain.Track{screenTrack, micTrack}, testOpts)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-f rawvideo -pix_fmt rgba -s 1280x720 -r 30 -i pipe:3")
	assert.Contains(t, joined, "-f s16le -ar 48000 -ac 2 -i pipe:4")
	assert.Equal(t, "[0:v]scale=1280:720,format=yuv420p[vout]", argValue(args, "-filter_complex"))
	assert.Contains(t, joined, "-map [vout] -map 1:a")
	assert.Equal(t, "libvpx-vp9", argValue(args, "-c:v"))
	assert.Equal(t, "1500000", argValue(args, "-b:v"))
	assert.Equal(t, "libopus", argValue(args, "-c:a"))
	assert.Equal(t, "realtime", argValue(args, "-deadline"))
	assert.NotContains(t, args, "-movflags")
	assert.Equal(t, []string{"-f", "webm", "pipe:1"}, args[len(args)-3:])
}

func TestBuildEncodeArgsPictureInPicture(t *testing.T) {
	plan, _ := planFor("video/mp4")
	args := buildEncodeArgs(plan, []domain.Track{screenTrack, webcamTrack, micTrack}, testOpts)

	filter := argValue(args, "-filter_complex")
	assert.Contains(t, filter, "[0:v]scale=1280:720[base]")
	assert.Contains(t, filter, "[1:v]scale=320:-2[pip]")
	assert.Contains(t, filter, "overlay=W-w-20:H-h-20")
	assert.Equal(t, "ultrafast", argValue(args, "-preset"))
	assert.Equal(t, "frag_keyframe+empty_moov+default_base_moof", argValue(args, "-movflags"))
	assert.Equal(t, []string{"-f", "mp4", "pipe:1"}, args[len(args)-3:])
}

func TestBuildEncodeArgsMixesAudio(t *testing.T) {
	plan, _ := planFor("video/webm")
	args := buildEncodeArgs(plan, []domain.Track{micTrack, micTrack}, testOpts)

	assert.Equal(t, "[0:a][1:a]amix=inputs=2:duration=longest[aout]", argValue(args, "-filter_complex"))
	assert.Equal(t, "[aout]", argValue(args, "-map"))
	assert.NotContains(t, args, "-c:v", "audio-only output has no video codec")
}

func TestBuildEncodeArgsPNGInput(t *testing.T) {
	plan, _ := planFor("video/webm")
	args := buildEncodeArgs(plan, []domain.Track{tabTrack}, testOpts)

	assert.Contains(t, strings.Join(args, " "), "-f image2pipe -vcodec png -r 30 -i pipe:3")
	assert.NotContains(t, args, "-c:a")
}

func TestEven(t *testing.T) {
	assert.Equal(t, 854, even(854))
	assert.Equal(t, 212, even(213))
	assert.Equal(t, 2, even(0))
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(2)
	_, _ = tb.Write([]byte("first\nsec"))
	_, _ = tb.Write([]byte("ond\nthird\npartial"))

	assert.Equal(t, "second | third | partial", tb.String())
}
