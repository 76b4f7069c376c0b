package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zaptest.NewLogger(t).Sugar()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTrack struct {
	id      string
	kind    domain.TrackKind
	stopped atomic.Int32
}

func (t *fakeTrack) ID() string             { return t.id }
func (t *fakeTrack) Kind() domain.TrackKind { return t.kind }
func (t *fakeTrack) Format() domain.TrackFormat {
	if t.kind == domain.TrackAudio {
		return domain.TrackFormat{Encoding: domain.EncodingS16LE, SampleRate: 48000, Channels: 2}
	}
	return domain.TrackFormat{Encoding: domain.EncodingRawRGBA, Width: 640, Height: 480, FrameRate: 30}
}
func (t *fakeTrack) ReadFrame() ([]byte, error) { return nil, io.EOF }
func (t *fakeTrack) Stop() error {
	t.stopped.Add(1)
	return nil
}

type fakeSource struct {
	kind    domain.SourceKind
	tracks  []domain.Track
	stopErr error
	stops   atomic.Int32
	// onStop records the global stop order across sources.
	onStop func(kind domain.SourceKind)
}

func newFakeSource(kind domain.SourceKind, video, audio bool) *fakeSource {
	src := &fakeSource{kind: kind}
	if video {
		src.tracks = append(src.tracks, &fakeTrack{id: string(kind) + "-video", kind: domain.TrackVideo})
	}
	if audio {
		src.tracks = append(src.tracks, &fakeTrack{id: string(kind) + "-audio", kind: domain.TrackAudio})
	}
	return src
}

func (s *fakeSource) Kind() domain.SourceKind { return s.kind }
func (s *fakeSource) Tracks() []domain.Track  { return s.tracks }
func (s *fakeSource) Stop() error {
	s.stops.Add(1)
	if s.onStop != nil {
		s.onStop(s.kind)
	}
	return s.stopErr
}

// fakeOpener hands out a fresh source per Open. The audio flag of the
// returned source follows the request unless deliverAudio overrides it.
type fakeOpener struct {
	kind         domain.SourceKind
	err          error
	deliverAudio *bool
	probeErr     error
	stopErr      error
	onStop       func(kind domain.SourceKind)

	mu       sync.Mutex
	requests []domain.SourceRequest
	opened   []*fakeSource
}

func (o *fakeOpener) Open(_ context.Context, req domain.SourceRequest) (domain.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	audio := req.Audio
	if o.deliverAudio != nil {
		audio = *o.deliverAudio
	}
	src := newFakeSource(o.kind, req.Video != nil, audio)
	src.onStop = o.onStop
	src.stopErr = o.stopErr
	o.opened = append(o.opened, src)
	return src, nil
}

func (o *fakeOpener) Requests() []domain.SourceRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.SourceRequest(nil), o.requests...)
}

func (o *fakeOpener) Opened() []*fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeSource(nil), o.opened...)
}

// probingOpener adds SourceProber to fakeOpener.
type probingOpener struct {
	*fakeOpener
}

func (o probingOpener) Probe(context.Context) error { return o.probeErr }

func boolPtr(b bool) *bool { return &b }

func defaultOpeners() (map[domain.SourceKind]ports.SourceOpener, map[domain.SourceKind]*fakeOpener) {
	fakes := map[domain.SourceKind]*fakeOpener{
		domain.SourceScreen:     {kind: domain.SourceScreen, deliverAudio: boolPtr(false)},
		domain.SourceWebcam:     {kind: domain.SourceWebcam},
		domain.SourceMicrophone: {kind: domain.SourceMicrophone},
	}
	openers := make(map[domain.SourceKind]ports.SourceOpener, len(fakes))
	for k, o := range fakes {
		openers[k] = o
	}
	return openers, fakes
}

type fakeEncoder struct {
	supported map[string]bool
	startErr  error
	finishErr error
	trailing  []byte

	mu       sync.Mutex
	started  bool
	finished bool
	paused   bool
	opts     ports.EncoderOptions
	pending  [][]byte
}

func (e *fakeEncoder) Supports(mimeType string) bool {
	if e.supported == nil {
		return true
	}
	return e.supported[mimeType]
}

func (e *fakeEncoder) Start(_ context.Context, _ *domain.CombinedStream, opts ports.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	e.started = true
	e.opts = opts
	return nil
}

func (e *fakeEncoder) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
	return nil
}

func (e *fakeEncoder) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
	return nil
}

// push queues one chunk for the next Drain.
func (e *fakeEncoder) push(data string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, []byte(data))
}

func (e *fakeEncoder) Drain() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return nil
	}
	out := e.pending[0]
	e.pending = e.pending[1:]
	return out
}

func (e *fakeEncoder) Finish(context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = true
	if e.finishErr != nil {
		return nil, e.finishErr
	}
	return e.trailing, nil
}

// fakeStore keeps recordings in memory with sequential ids.
type fakeStore struct {
	mu        sync.Mutex
	clock     func() time.Time
	next      int
	recs      map[string]*domain.Recording
	artifacts map[string][]byte
	saved     []domain.NewRecording
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:     time.Now,
		recs:      make(map[string]*domain.Recording),
		artifacts: make(map[string][]byte),
	}
}

// seed stores a recording directly and returns its id.
func (s *fakeStore) seed(title string, duration float64, data string) string {
	rec, _ := s.Save(context.Background(), domain.NewRecording{
		Title:    title,
		Artifact: []byte(data),
		Duration: duration,
		Size:     int64(len(data)),
		MimeType: "video/webm",
	})
	return rec.ID
}

func (s *fakeStore) Save(_ context.Context, nr domain.NewRecording) (*domain.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.next++
	id := fmt.Sprintf("rec-%d", s.next)
	rec := &domain.Recording{
		ID:           id,
		Title:        nr.Title,
		MimeType:     nr.MimeType,
		Duration:     nr.Duration,
		Size:         nr.Size,
		SourceConfig: nr.SourceConfig,
		CreatedAt:    s.clock().Add(time.Duration(s.next) * time.Millisecond),
	}
	s.recs[id] = rec
	s.artifacts[id] = append([]byte(nil), nr.Artifact...)
	s.saved = append(s.saved, nr)
	out := *rec
	return &out, nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*domain.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, domain.ErrRecordingNotFound
	}
	out := *rec
	return &out, nil
}

func (s *fakeStore) OpenArtifact(_ context.Context, id string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.artifacts[id]
	if !ok {
		return nil, domain.ErrRecordingNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) List(context.Context) ([]domain.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Recording, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) UpdateTitle(_ context.Context, id, title string) (*domain.Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, domain.ErrRecordingNotFound
	}
	rec.Title = title
	out := *rec
	return &out, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return domain.ErrRecordingNotFound
	}
	delete(s.recs, id)
	delete(s.artifacts, id)
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = make(map[string]*domain.Recording)
	s.artifacts = make(map[string][]byte)
	return nil
}

func (s *fakeStore) TotalSize(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, r := range s.recs {
		total += r.Size
	}
	return total, nil
}

// fakeTranscoder records its inputs and returns canned outputs.
type fakeTranscoder struct {
	err error

	trimArgs   []float64
	splitArgs  []float64
	joinInputs []domain.Artifact
	convertFmt string
	convertQ   domain.ConvertQuality
	thumbAt    float64
}

var errTranscode = errors.New("ffmpeg exited with status 1")

func (f *fakeTranscoder) Trim(_ context.Context, in domain.Artifact, start, end float64, progress domain.ProgressFunc) (domain.Artifact, error) {
	if f.err != nil {
		return domain.Artifact{}, f.err
	}
	f.trimArgs = []float64{start, end}
	if progress != nil {
		progress(100)
	}
	return domain.Artifact{Data: []byte("trimmed"), MimeType: "video/mp4"}, nil
}

func (f *fakeTranscoder) Split(_ context.Context, in domain.Artifact, points []float64, _ domain.ProgressFunc) ([]domain.Segment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.splitArgs = points
	segs := make([]domain.Segment, 0, len(points)+1)
	start := 0.0
	for i, p := range points {
		end := p
		segs = append(segs, domain.Segment{Index: i, Start: start, End: &end, Artifact: domain.Artifact{Data: []byte(fmt.Sprintf("part%d", i)), MimeType: "video/mp4"}})
		start = p
	}
	segs = append(segs, domain.Segment{Index: len(points), Start: start, Artifact: domain.Artifact{Data: []byte("last"), MimeType: "video/mp4"}})
	return segs, nil
}

func (f *fakeTranscoder) Join(_ context.Context, ins []domain.Artifact, _ domain.ProgressFunc) (domain.Artifact, error) {
	if f.err != nil {
		return domain.Artifact{}, f.err
	}
	f.joinInputs = ins
	var data []byte
	for _, in := range ins {
		data = append(data, in.Data...)
	}
	return domain.Artifact{Data: data, MimeType: "video/mp4"}, nil
}

func (f *fakeTranscoder) Convert(_ context.Context, in domain.Artifact, format string, quality domain.ConvertQuality, _ domain.ProgressFunc) (domain.Artifact, error) {
	if f.err != nil {
		return domain.Artifact{}, f.err
	}
	f.convertFmt = format
	f.convertQ = quality
	return domain.Artifact{Data: in.Data, MimeType: "video/" + format}, nil
}

func (f *fakeTranscoder) Thumbnail(_ context.Context, _ domain.Artifact, at float64) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.thumbAt = at
	return []byte{0xff, 0xd8, 0xff}, nil
}
