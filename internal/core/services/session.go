package services

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

// DefaultTimeslice is the chunk accumulation cadence.
const DefaultTimeslice = 100 * time.Millisecond

const subscriberBuffer = 32

// Session is one recording from start to stop. It is never reused: after
// stop it stays in StateStopped.
type Session struct {
	id        string
	cfg       domain.RecordingConfig
	mimeType  string
	handle    *domain.CaptureHandle
	encoder   ports.MediaEncoder
	clock     func() time.Time
	timeslice time.Duration
	logger    *zap.SugaredLogger

	mu               sync.Mutex
	state            domain.SessionState
	finalizing       bool
	chunks           [][]byte
	size             int64
	seq              int
	startedAt        time.Time
	accumulatedPause time.Duration
	pauseStart       *time.Time
	subscribers      map[int]chan domain.ChunkEvent
	nextSubscriber   int

	stopTick chan struct{}
	tickDone chan struct{}
}

func newSession(
	id string,
	cfg domain.RecordingConfig,
	mimeType string,
	handle *domain.CaptureHandle,
	encoder ports.MediaEncoder,
	clock func() time.Time,
	timeslice time.Duration,
	logger *zap.SugaredLogger,
) *Session {
	if timeslice <= 0 {
		timeslice = DefaultTimeslice
	}
	return &Session{
		id:          id,
		cfg:         cfg,
		mimeType:    mimeType,
		handle:      handle,
		encoder:     encoder,
		clock:       clock,
		timeslice:   timeslice,
		logger:      logger.With("session", id),
		state:       domain.StateIdle,
		subscribers: make(map[int]chan domain.ChunkEvent),
		stopTick:    make(chan struct{}),
		tickDone:    make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) MimeType() string { return s.mimeType }

// start launches the encoder and the accumulation loop. If the encoder cannot
// start the capture handle is released and the session stays Idle.
func (s *Session) start(ctx context.Context) error {
	width, height := s.cfg.ScreenSize()
	if !s.cfg.CaptureScreen {
		width, height = domain.WebcamWidth, domain.WebcamHeight
	}
	opts := ports.EncoderOptions{
		MimeType:     s.mimeType,
		VideoBitrate: s.cfg.VideoBitrate,
		FrameRate:    s.cfg.FrameRate,
		Width:        width,
		Height:       height,
	}
	if err := s.encoder.Start(ctx, s.handle.Stream(), opts); err != nil {
		if relErr := s.handle.Release(); relErr != nil {
			s.logger.Errorw("release capture after encoder failure", "error", relErr)
		}
		return err
	}

	s.mu.Lock()
	s.startedAt = s.clock()
	s.accumulatedPause = 0
	s.pauseStart = nil
	s.state = domain.StateActive
	s.mu.Unlock()

	go s.run()
	return nil
}

func (s *Session) run() {
	defer close(s.tickDone)

	ticker := time.NewTicker(s.timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopTick:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick collects whatever the encoder produced since the previous tick.
func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateActive || s.finalizing {
		return
	}
	data := s.encoder.Drain()
	if len(data) == 0 {
		return
	}
	s.appendChunk(data, s.activeDurationAt(s.clock()))
}

func (s *Session) pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalizing || !s.state.CanTransition(domain.StatePaused) {
		return false
	}
	if err := s.encoder.Pause(); err != nil {
		s.logger.Warnw("pause encoder", "error", err)
	}
	now := s.clock()
	s.pauseStart = &now
	s.state = domain.StatePaused
	s.logger.Info("recording paused")
	return true
}

func (s *Session) resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalizing || s.state != domain.StatePaused {
		return false
	}
	if s.pauseStart != nil {
		s.accumulatedPause += s.clock().Sub(*s.pauseStart)
		s.pauseStart = nil
	}
	if err := s.encoder.Resume(); err != nil {
		s.logger.Warnw("resume encoder", "error", err)
	}
	s.state = domain.StateActive
	s.logger.Info("recording resumed")
	return true
}

// stop finalizes the session: the tick loop is stopped, the encoder flushed,
// chunks assembled in order and every capture source released. A session
// that never produced bytes yields an empty artifact.
func (s *Session) stop(ctx context.Context) (*domain.RecordingResult, error) {
	s.mu.Lock()
	if s.finalizing || !s.state.InProgress() {
		s.mu.Unlock()
		return nil, domain.ErrNotRecording
	}
	s.finalizing = true
	stopAt := s.clock()
	duration := s.activeDurationAt(stopAt)
	s.mu.Unlock()

	close(s.stopTick)
	<-s.tickDone

	trailing, err := s.encoder.Finish(ctx)
	if err != nil {
		s.logger.Errorw("encoder flush failed, artifact keeps the chunks collected so far", "error", err)
	}

	s.mu.Lock()
	if len(trailing) > 0 {
		s.appendChunk(trailing, duration)
	}
	data := bytes.Join(s.chunks, nil)
	if data == nil {
		data = []byte{}
	}
	result := &domain.RecordingResult{
		SessionID: s.id,
		Data:      data,
		Duration:  duration,
		Size:      s.size,
		MimeType:  s.mimeType,
		Config:    s.cfg,
	}
	s.chunks = nil
	s.mu.Unlock()

	if err := s.handle.Release(); err != nil {
		s.logger.Errorw("release capture", "error", err)
	}

	s.mu.Lock()
	s.publishFinal(domain.ChunkEvent{
		SessionID:      s.id,
		Sequence:       s.seq,
		TotalSize:      s.size,
		ActiveDuration: duration,
		Final:          true,
	})
	s.state = domain.StateStopped
	s.mu.Unlock()

	s.logger.Infow("recording stopped", "duration", duration, "size", result.Size, "mimeType", s.mimeType)
	return result, nil
}

// appendChunk must be called with mu held.
func (s *Session) appendChunk(data []byte, active time.Duration) {
	s.chunks = append(s.chunks, data)
	s.size += int64(len(data))
	s.seq++
	s.publish(domain.ChunkEvent{
		SessionID:      s.id,
		Sequence:       s.seq,
		ChunkSize:      len(data),
		TotalSize:      s.size,
		ActiveDuration: active,
	})
}

// publish never blocks; a subscriber that is not keeping up misses events.
func (s *Session) publish(ev domain.ChunkEvent) {
	for id, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Debugw("subscriber lagging, chunk event dropped", "subscriber", id, "sequence", ev.Sequence)
		}
	}
}

// publishFinal delivers ev to every subscriber, evicting the oldest pending
// event when a buffer is full, then closes the channels.
func (s *Session) publishFinal(ev domain.ChunkEvent) {
	for id, ch := range s.subscribers {
		for delivered := false; !delivered; {
			select {
			case ch <- ev:
				delivered = true
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
		close(ch)
		delete(s.subscribers, id)
	}
}

// subscribe registers a listener for chunk events. The returned cancel func
// is safe to call more than once and after stop.
func (s *Session) subscribe() (<-chan domain.ChunkEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.ChunkEvent, subscriberBuffer)
	if s.state == domain.StateStopped {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubscriber
	s.nextSubscriber++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			close(c)
			delete(s.subscribers, id)
		}
	}
}

// activeDurationAt must be called with mu held.
func (s *Session) activeDurationAt(now time.Time) time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	paused := s.accumulatedPause
	if s.pauseStart != nil {
		paused += now.Sub(*s.pauseStart)
	}
	d := now.Sub(s.startedAt) - paused
	if d < 0 {
		return 0
	}
	return d
}

// ActiveDuration is the recorded time so far, excluding pauses.
func (s *Session) ActiveDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateStopped {
		return 0
	}
	return s.activeDurationAt(s.clock())
}

// Size is the number of bytes accumulated so far.
func (s *Session) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := domain.SessionStatus{
		SessionID: s.id,
		State:     s.state,
		MimeType:  s.mimeType,
		Size:      s.size,
	}
	if !s.startedAt.IsZero() {
		startedAt := s.startedAt
		status.StartedAt = &startedAt
		status.Duration = s.activeDurationAt(s.clock())
	}
	return status
}
