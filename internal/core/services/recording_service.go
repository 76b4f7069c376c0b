package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

type recordingService struct {
	acquirer   *CaptureAcquirer
	newEncoder ports.EncoderFactory
	clock      func() time.Time
	timeslice  time.Duration
	logger     *zap.SugaredLogger

	mu      sync.Mutex
	current *Session
	// busy is set while a start or stop is talking to devices outside mu.
	busy bool
}

type Option func(*recordingService)

// WithClock replaces time.Now for duration accounting.
func WithClock(clock func() time.Time) Option {
	return func(s *recordingService) { s.clock = clock }
}

// WithTimeslice sets the chunk accumulation cadence.
func WithTimeslice(d time.Duration) Option {
	return func(s *recordingService) { s.timeslice = d }
}

func NewRecordingService(acquirer *CaptureAcquirer, newEncoder ports.EncoderFactory, logger *zap.SugaredLogger, opts ...Option) ports.RecordingService {
	s := &recordingService{
		acquirer:   acquirer,
		newEncoder: newEncoder,
		clock:      time.Now,
		timeslice:  DefaultTimeslice,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *recordingService) StartRecording(ctx context.Context, cfg domain.RecordingConfig) (*domain.StartResult, error) {
	s.mu.Lock()
	if s.busy || s.current != nil {
		s.mu.Unlock()
		return nil, domain.ErrAlreadyRecording
	}
	if err := cfg.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.busy = true
	s.mu.Unlock()

	session, err := s.startSession(ctx, cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.logger.Warnw("start recording failed", "error", err)
		return nil, err
	}
	s.current = session

	return &domain.StartResult{
		SessionID: session.ID(),
		Stream:    session.handle.Stream(),
		MimeType:  session.MimeType(),
	}, nil
}

func (s *recordingService) startSession(ctx context.Context, cfg domain.RecordingConfig) (*Session, error) {
	handle, err := s.acquirer.Acquire(ctx, cfg)
	if err != nil {
		return nil, err
	}

	encoder := s.newEncoder()
	mimeType := SelectMimeType(MimePreferences, encoder.Supports)
	session := newSession(uuid.New().String(), cfg, mimeType, handle, encoder, s.clock, s.timeslice, s.logger)
	if err := session.start(ctx); err != nil {
		return nil, err
	}

	s.logger.Infow("recording started",
		"session", session.ID(),
		"mimeType", mimeType,
		"screen", cfg.CaptureScreen,
		"webcam", cfg.CaptureWebcam,
		"microphone", cfg.CaptureMicrophone,
		"resolution", cfg.Resolution,
	)
	return session, nil
}

func (s *recordingService) PauseRecording() bool {
	session := s.session()
	if session == nil {
		return false
	}
	return session.pause()
}

func (s *recordingService) ResumeRecording() bool {
	session := s.session()
	if session == nil {
		return false
	}
	return session.resume()
}

// StopRecording finalizes the current session. The session is detached
// before finalization so concurrent calls see ErrNotRecording.
func (s *recordingService) StopRecording(ctx context.Context) (*domain.RecordingResult, error) {
	s.mu.Lock()
	session := s.current
	if session == nil || !session.State().InProgress() {
		s.mu.Unlock()
		return nil, domain.ErrNotRecording
	}
	s.current = nil
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	return session.stop(ctx)
}

// CancelRecording stops the current session and drops its artifact.
func (s *recordingService) CancelRecording(ctx context.Context) error {
	result, err := s.StopRecording(ctx)
	if err != nil {
		return err
	}
	s.logger.Infow("recording discarded", "session", result.SessionID, "size", result.Size)
	return nil
}

func (s *recordingService) Status() domain.SessionStatus {
	session := s.session()
	if session == nil {
		return domain.SessionStatus{State: domain.StateIdle}
	}
	return session.Status()
}

func (s *recordingService) CurrentActiveDuration() time.Duration {
	session := s.session()
	if session == nil {
		return 0
	}
	return session.ActiveDuration()
}

func (s *recordingService) CurrentAccumulatedSize() int64 {
	session := s.session()
	if session == nil {
		return 0
	}
	return session.Size()
}

func (s *recordingService) Subscribe() (<-chan domain.ChunkEvent, func(), error) {
	session := s.session()
	if session == nil {
		return nil, nil, domain.ErrNotRecording
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

func (s *recordingService) Capabilities(ctx context.Context) ports.Capabilities {
	return s.acquirer.Capabilities(ctx)
}

func (s *recordingService) session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
