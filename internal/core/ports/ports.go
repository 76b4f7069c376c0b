package ports

import (
	"context"
	"io"
	"time"

	"go-screen-recorder/internal/core/domain"
)

// Primary Port (Driving) - implemented by Service
type RecordingService interface {
	StartRecording(ctx context.Context, cfg domain.RecordingConfig) (*domain.StartResult, error)
	PauseRecording() bool
	ResumeRecording() bool
	StopRecording(ctx context.Context) (*domain.RecordingResult, error)
	CancelRecording(ctx context.Context) error
	Status() domain.SessionStatus
	CurrentActiveDuration() time.Duration
	CurrentAccumulatedSize() int64
	Subscribe() (<-chan domain.ChunkEvent, func(), error)
	Capabilities(ctx context.Context) Capabilities
}

// Primary Port (Driving) - saved recordings
type LibraryService interface {
	SaveResult(ctx context.Context, title string, result *domain.RecordingResult) (*domain.Recording, error)
	List(ctx context.Context) ([]domain.Recording, error)
	Get(ctx context.Context, id string) (*domain.Recording, error)
	OpenArtifact(ctx context.Context, id string) (io.ReadCloser, *domain.Recording, error)
	Rename(ctx context.Context, id, title string) (*domain.Recording, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Usage(ctx context.Context) (int64, error)
}

// Primary Port (Driving) - trim/split/join
type EditorService interface {
	Trim(ctx context.Context, id string, start, end float64, progress domain.ProgressFunc) (*domain.Recording, error)
	Split(ctx context.Context, id string, points []float64, progress domain.ProgressFunc) ([]domain.Recording, error)
	Join(ctx context.Context, ids []string, progress domain.ProgressFunc) (*domain.Recording, error)
	Convert(ctx context.Context, id, format string, quality domain.ConvertQuality, progress domain.ProgressFunc) (*domain.Recording, error)
	Thumbnail(ctx context.Context, id string, at float64) ([]byte, error)
}

// Capabilities reports which capture sources can be opened on this host.
type Capabilities struct {
	Screen     bool `json:"screen"`
	Camera     bool `json:"camera"`
	Microphone bool `json:"microphone"`
}

// Secondary Port (Driven) - opens one kind of capture source
type SourceOpener interface {
	Open(ctx context.Context, req domain.SourceRequest) (domain.Source, error)
}

// SourceProber is implemented by openers that can check availability without
// opening a device. Openers without it are probed by an open/stop round trip.
type SourceProber interface {
	Probe(ctx context.Context) error
}

// EncoderOptions configures one encoding run.
type EncoderOptions struct {
	MimeType     string
	VideoBitrate int
	FrameRate    int
	Width        int
	Height       int
}

// Secondary Port (Driven) - turns a combined stream into container bytes
type MediaEncoder interface {
	// Supports reports whether the encoder can produce the given mime type.
	Supports(mimeType string) bool
	Start(ctx context.Context, stream *domain.CombinedStream, opts EncoderOptions) error
	Pause() error
	Resume() error
	// Drain returns the bytes produced since the previous Drain. It must not block.
	Drain() []byte
	// Finish flushes pending output and returns it. No output follows Finish.
	Finish(ctx context.Context) ([]byte, error)
}

// EncoderFactory creates a fresh encoder for every session.
type EncoderFactory func() MediaEncoder

// Secondary Port (Driven) - storage collaborator
type RecordingStore interface {
	Save(ctx context.Context, rec domain.NewRecording) (*domain.Recording, error)
	Get(ctx context.Context, id string) (*domain.Recording, error)
	OpenArtifact(ctx context.Context, id string) (io.ReadCloser, error)
	List(ctx context.Context) ([]domain.Recording, error)
	UpdateTitle(ctx context.Context, id, title string) (*domain.Recording, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	TotalSize(ctx context.Context) (int64, error)
}

// Secondary Port (Driven) - transcoding collaborator
type Transcoder interface {
	Trim(ctx context.Context, in domain.Artifact, start, end float64, progress domain.ProgressFunc) (domain.Artifact, error)
	Split(ctx context.Context, in domain.Artifact, points []float64, progress domain.ProgressFunc) ([]domain.Segment, error)
	Join(ctx context.Context, ins []domain.Artifact, progress domain.ProgressFunc) (domain.Artifact, error)
	Convert(ctx context.Context, in domain.Artifact, format string, quality domain.ConvertQuality, progress domain.ProgressFunc) (domain.Artifact, error)
	Thumbnail(ctx context.Context, in domain.Artifact, at float64) ([]byte, error)
}
