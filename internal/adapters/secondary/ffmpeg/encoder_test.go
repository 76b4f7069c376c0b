package ffmpeg

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

// scriptFFmpeg writes a shell script standing in for the ffmpeg binary.
func scriptFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("needs /bin/sh")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return bin
}

// fakeFFmpeg copies its first input pipe to stdout, so encoder output is
// exactly the frames it was fed.
func fakeFFmpeg(t *testing.T) string {
	return scriptFFmpeg(t, "exec cat <&3")
}

// feedTrack hands out frames one at a time. ready is signalled each time the
// reader comes back for another frame.
type feedTrack struct {
	frames chan []byte
	ready  chan struct{}
}

func newFeedTrack() *feedTrack {
	return &feedTrack{frames: make(chan []byte), ready: make(chan struct{})}
}

func (t *feedTrack) ID() string             { return "feed" }
func (t *feedTrack) Kind() domain.TrackKind { return domain.TrackVideo }
func (t *feedTrack) Format() domain.TrackFormat {
	return domain.TrackFormat{Encoding: domain.EncodingPNG, Width: 2, Height: 2, FrameRate: 1}
}
func (t *feedTrack) Stop() error { return nil }

func (t *feedTrack) ReadFrame() ([]byte, error) {
	t.ready <- struct{}{}
	frame, ok := <-t.frames
	if !ok {
		return nil, io.EOF
	}
	return frame, nil
}

// feed delivers one frame and returns once the encoder has handled it.
func (t *feedTrack) feed(frame string) {
	t.frames <- []byte(frame)
	<-t.ready
}

type feedSource struct{ track *feedTrack }

func (s feedSource) Kind() domain.SourceKind { return domain.SourceScreen }
func (s feedSource) Tracks() []domain.Track  { return []domain.Track{s.track} }
func (s feedSource) Stop() error             { return nil }

func TestEncoderLifecycle(t *testing.T) {
	bin := fakeFFmpeg(t)
	track := newFeedTrack()
	enc := NewEncoderFactory(NewProbe(bin), zaptest.NewLogger(t).Sugar())()

	ctx := context.Background()
	opts := ports.EncoderOptions{MimeType: "video/webm", VideoBitrate: 1000, FrameRate: 1, Width: 2, Height: 2}
	require.NoError(t, enc.Start(ctx, domain.NewCombinedStream(feedSource{track}), opts))
	assert.Error(t, enc.Start(ctx, domain.NewCombinedStream(feedSource{track}), opts), "second start is rejected")
	<-track.ready

	var drained bytes.Buffer
	drainUntil := func(want string) {
		require.Eventually(t, func() bool {
			drained.Write(enc.Drain())
			return drained.String() == want
		}, 5*time.Second, 5*time.Millisecond)
	}

	track.feed("<1>")
	track.feed("<2>")
	drainUntil("<1><2>")

	require.NoError(t, enc.Pause())
	track.feed("<dropped>")
	assert.Nil(t, enc.Drain(), "output is held back while paused")
	require.NoError(t, enc.Resume())

	track.feed("<3>")
	drainUntil("<1><2><3>")
	track.feed("<4>")
	close(track.frames)

	tail, err := enc.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<4>", string(tail))
	assert.NotContains(t, drained.String(), "dropped")

	tail, err = enc.Finish(ctx)
	assert.NoError(t, err)
	assert.Nil(t, tail, "finish is idempotent")
}

func TestEncoderFinishReportsFailure(t *testing.T) {
	bin := scriptFFmpeg(t, "cat <&3 >/dev/null\necho 'encoder exploded' >&2\nexit 1")

	track := newFeedTrack()
	enc := NewEncoderFactory(NewProbe(bin), zaptest.NewLogger(t).Sugar())()
	opts := ports.EncoderOptions{MimeType: "video/webm", FrameRate: 1, Width: 2, Height: 2}
	require.NoError(t, enc.Start(context.Background(), domain.NewCombinedStream(feedSource{track}), opts))
	<-track.ready
	close(track.frames)

	_, err := enc.Finish(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoder exploded")
}

func TestEncoderFinishWithoutStart(t *testing.T) {
	enc := NewEncoderFactory(NewProbe("ffmpeg"), zaptest.NewLogger(t).Sugar())()
	data, err := enc.Finish(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, data)
}
