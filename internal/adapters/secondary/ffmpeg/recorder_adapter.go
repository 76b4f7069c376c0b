package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

// ffmpegEncoder feeds every track of a combined stream into one ffmpeg
// process through its own pipe and collects the muxed container from stdout.
type ffmpegEncoder struct {
	probe  *Probe
	logger *zap.SugaredLogger

	mu      sync.Mutex
	cmd     *exec.Cmd
	out     bytes.Buffer
	inputs  []*trackPipe
	readers *errgroup.Group
	stderr  *tailBuffer
	started bool
	done    bool

	paused atomic.Bool
}

// NewEncoderFactory returns a factory that creates one encoder per session.
// All encoders share the probe so ffmpeg is only asked for its encoder list once.
func NewEncoderFactory(probe *Probe, logger *zap.SugaredLogger) ports.EncoderFactory {
	return func() ports.MediaEncoder {
		return &ffmpegEncoder{
			probe:  probe,
			logger: logger,
		}
	}
}

func (f *ffmpegEncoder) Supports(mimeType string) bool {
	return f.probe.SupportsMime(context.Background(), mimeType)
}

func (f *ffmpegEncoder) Start(ctx context.Context, stream *domain.CombinedStream, opts ports.EncoderOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	plan, err := planFor(opts.MimeType)
	if err != nil {
		return err
	}
	tracks := stream.Tracks()
	if len(tracks) == 0 {
		return errors.New("no tracks to encode")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return errors.New("encoder already started")
	}

	args := buildEncodeArgs(plan, tracks, opts)
	// The process outlives the request that started it; Finish ends it.
	cmd := exec.Command(f.probe.Bin(), args...)

	var readEnds []*os.File
	closeAll := func() {
		for _, r := range readEnds {
			r.Close()
		}
		for _, p := range f.inputs {
			p.close()
		}
		f.inputs = nil
	}
	for _, t := range tracks {
		r, w, err := os.Pipe()
		if err != nil {
			closeAll()
			return fmt.Errorf("create pipe for track %s: %w", t.ID(), err)
		}
		readEnds = append(readEnds, r)
		f.inputs = append(f.inputs, &trackPipe{track: t, w: w})
	}
	cmd.ExtraFiles = readEnds

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		closeAll()
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		closeAll()
		return fmt.Errorf("ffmpeg stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		closeAll()
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	// The child holds its own copies of the read ends.
	for _, r := range readEnds {
		r.Close()
	}

	f.cmd = cmd
	f.stderr = newTailBuffer(20)
	f.readers = &errgroup.Group{}
	f.readers.Go(func() error { return f.collect(stdout) })
	f.readers.Go(func() error {
		_, err := io.Copy(f.stderr, stderr)
		return err
	})
	for _, p := range f.inputs {
		go f.pump(p)
	}
	f.started = true

	f.logger.Infow("ffmpeg encoder started",
		"format", plan.format,
		"video", plan.videoCodec,
		"audio", plan.audioCodec,
		"tracks", len(tracks),
		"pid", cmd.Process.Pid,
	)
	return nil
}

// collect appends ffmpeg output to the pending buffer until stdout closes.
func (f *ffmpegEncoder) collect(stdout io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			f.mu.Lock()
			f.out.Write(buf[:n])
			f.mu.Unlock()
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read ffmpeg output: %w", err)
		}
	}
}

// pump copies whole frames from a track into its pipe. Frames read while
// paused are dropped so no media is produced for the paused interval.
func (f *ffmpegEncoder) pump(p *trackPipe) {
	for {
		frame, err := p.track.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				f.logger.Debugw("track ended", "track", p.track.ID(), "error", err)
			}
			p.close()
			return
		}
		if f.paused.Load() {
			continue
		}
		if err := p.write(frame); err != nil {
			if !errors.Is(err, errPipeClosed) {
				f.logger.Warnw("write frame to ffmpeg", "track", p.track.ID(), "error", err)
			}
			return
		}
	}
}

func (f *ffmpegEncoder) Pause() error {
	f.paused.Store(true)
	return nil
}

func (f *ffmpegEncoder) Resume() error {
	f.paused.Store(false)
	return nil
}

// Drain hands out the bytes muxed since the last call. Output is held back
// while paused.
func (f *ffmpegEncoder) Drain() []byte {
	if f.paused.Load() {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.out.Len() == 0 {
		return nil
	}
	data := make([]byte, f.out.Len())
	copy(data, f.out.Bytes())
	f.out.Reset()
	return data
}

// Finish closes every input, waits for ffmpeg to write its trailer and exit,
// and returns the output not drained yet.
func (f *ffmpegEncoder) Finish(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if !f.started || f.done {
		f.mu.Unlock()
		return nil, nil
	}
	f.done = true
	cmd, inputs, readers := f.cmd, f.inputs, f.readers
	f.mu.Unlock()

	f.paused.Store(false)
	for _, p := range inputs {
		p.close()
	}

	exited := make(chan error, 1)
	go func() {
		readErr := readers.Wait()
		waitErr := cmd.Wait()
		exited <- errors.Join(readErr, waitErr)
	}()

	var err error
	select {
	case err = <-exited:
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-exited
		err = ctx.Err()
	}

	f.mu.Lock()
	data := make([]byte, f.out.Len())
	copy(data, f.out.Bytes())
	f.out.Reset()
	f.mu.Unlock()

	if err != nil {
		return data, fmt.Errorf("ffmpeg encoder: %w (stderr: %s)", err, f.stderr.String())
	}
	f.logger.Infow("ffmpeg encoder finished", "trailing", len(data))
	return data, nil
}

var errPipeClosed = errors.New("pipe closed")

// trackPipe is the write end of one ffmpeg input. Closing does not wait for
// an in-flight write; ffmpeg discards a trailing partial frame.
type trackPipe struct {
	track domain.Track
	w     *os.File

	once   sync.Once
	closed atomic.Bool
}

func (p *trackPipe) write(frame []byte) error {
	if p.closed.Load() {
		return errPipeClosed
	}
	if _, err := p.w.Write(frame); err != nil {
		if p.closed.Load() {
			return errPipeClosed
		}
		return err
	}
	return nil
}

func (p *trackPipe) close() {
	p.once.Do(func() {
		p.closed.Store(true)
		p.w.Close()
	})
}

// buildEncodeArgs lays out one input per track (pipe:3 onwards), scales and
// overlays video, mixes audio and writes the container to stdout.
func buildEncodeArgs(plan outputPlan, tracks []domain.Track, opts ports.EncoderOptions) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}

	var videoIdx, audioIdx []int
	for i, t := range tracks {
		fd := 3 + i
		args = append(args, inputArgs(t.Format(), opts)...)
		args = append(args, "-i", "pipe:"+strconv.Itoa(fd))
		if t.Kind() == domain.TrackVideo {
			videoIdx = append(videoIdx, i)
		} else {
			audioIdx = append(audioIdx, i)
		}
	}

	var filters []string
	var maps []string

	if len(videoIdx) > 0 {
		w, h := even(opts.Width), even(opts.Height)
		if len(videoIdx) == 1 {
			filters = append(filters, fmt.Sprintf("[%d:v]scale=%d:%d,format=yuv420p[vout]", videoIdx[0], w, h))
		} else {
			// Second video track (webcam) goes picture-in-picture, bottom right.
			filters = append(filters,
				fmt.Sprintf("[%d:v]scale=%d:%d[base]", videoIdx[0], w, h),
				fmt.Sprintf("[%d:v]scale=%d:-2[pip]", videoIdx[1], even(w/4)),
				"[base][pip]overlay=W-w-20:H-h-20,format=yuv420p[vout]",
			)
		}
		maps = append(maps, "-map", "[vout]")
	}

	switch len(audioIdx) {
	case 0:
	case 1:
		maps = append(maps, "-map", fmt.Sprintf("%d:a", audioIdx[0]))
	default:
		var in strings.Builder
		for _, i := range audioIdx {
			fmt.Fprintf(&in, "[%d:a]", i)
		}
		filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=longest[aout]", in.String(), len(audioIdx)))
		maps = append(maps, "-map", "[aout]")
	}

	if len(filters) > 0 {
		args = append(args, "-filter_complex", strings.Join(filters, ";"))
	}
	args = append(args, maps...)

	if len(videoIdx) > 0 {
		args = append(args, "-c:v", plan.videoCodec, "-b:v", strconv.Itoa(opts.VideoBitrate))
		if opts.FrameRate > 0 {
			args = append(args, "-r", strconv.Itoa(opts.FrameRate))
		}
		switch plan.videoCodec {
		case "libvpx", "libvpx-vp9":
			args = append(args, "-deadline", "realtime", "-cpu-used", "8")
		case "libx264":
			args = append(args, "-preset", "ultrafast", "-tune", "zerolatency")
		}
	}
	if len(audioIdx) > 0 {
		args = append(args, "-c:a", plan.audioCodec, "-b:a", "128k")
	}

	if plan.movflags != "" {
		args = append(args, "-movflags", plan.movflags)
	}
	args = append(args, "-f", plan.format, "pipe:1")
	return args
}

func inputArgs(f domain.TrackFormat, opts ports.EncoderOptions) []string {
	args := []string{"-thread_queue_size", "512"}
	fps := f.FrameRate
	if fps <= 0 {
		fps = opts.FrameRate
	}
	switch f.Encoding {
	case domain.EncodingRawRGBA:
		return append(args,
			"-f", "rawvideo", "-pix_fmt", "rgba",
			"-s", fmt.Sprintf("%dx%d", f.Width, f.Height),
			"-r", strconv.Itoa(fps),
		)
	case domain.EncodingPNG:
		return append(args, "-f", "image2pipe", "-vcodec", "png", "-r", strconv.Itoa(fps))
	case domain.EncodingS16LE:
		return append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(f.SampleRate),
			"-ac", strconv.Itoa(f.Channels),
		)
	}
	return args
}

func even(n int) int {
	if n < 2 {
		return 2
	}
	return n &^ 1
}

// tailBuffer keeps the last few lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
	part  string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	chunks := strings.Split(t.part+string(p), "\n")
	t.part = chunks[len(chunks)-1]
	for _, l := range chunks[:len(chunks)-1] {
		if l = strings.TrimSpace(l); l != "" {
			t.lines = append(t.lines, l)
		}
	}
	if over := len(t.lines) - t.max; over > 0 {
		t.lines = t.lines[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := t.lines
	if t.part != "" {
		lines = append(lines[:len(lines):len(lines)], t.part)
	}
	return strings.Join(lines, " | ")
}
