package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

type editorService struct {
	store      ports.RecordingStore
	transcoder ports.Transcoder
	clock      func() time.Time
	logger     *zap.SugaredLogger
}

func NewEditorService(store ports.RecordingStore, transcoder ports.Transcoder, logger *zap.SugaredLogger) ports.EditorService {
	return &editorService{
		store:      store,
		transcoder: transcoder,
		clock:      time.Now,
		logger:     logger,
	}
}

// Trim keeps [start, end) of a recording and saves it as "<title> (Trimmed)".
func (e *editorService) Trim(ctx context.Context, id string, start, end float64, progress domain.ProgressFunc) (*domain.Recording, error) {
	if err := validateTrim(start, end); err != nil {
		return nil, err
	}
	src, in, err := loadArtifact(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if src.Duration > 0 {
		if start >= src.Duration {
			return nil, fmt.Errorf("%w: start %.2fs is past the end of the recording", domain.ErrInvalidEdit, start)
		}
		end = math.Min(end, src.Duration)
	}

	out, err := e.transcoder.Trim(ctx, in, start, end, progress)
	if err != nil {
		return nil, fmt.Errorf("trim %s: %w", id, err)
	}

	return e.save(ctx, fmt.Sprintf("%s (Trimmed)", src.Title), out, end-start, src.SourceConfig)
}

// Split cuts a recording at the given points and saves every part.
func (e *editorService) Split(ctx context.Context, id string, points []float64, progress domain.ProgressFunc) ([]domain.Recording, error) {
	points, err := normalizeSplitPoints(points)
	if err != nil {
		return nil, err
	}
	src, in, err := loadArtifact(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if src.Duration > 0 {
		points = pointsWithin(points, src.Duration)
		if len(points) == 0 {
			return nil, fmt.Errorf("%w: every split point is past the end of the recording", domain.ErrInvalidEdit)
		}
	}

	segments, err := e.transcoder.Split(ctx, in, points, progress)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", id, err)
	}

	saved := make([]domain.Recording, 0, len(segments))
	for _, seg := range segments {
		duration := src.Duration - seg.Start
		if seg.End != nil {
			duration = *seg.End - seg.Start
		}
		if duration < 0 {
			duration = 0
		}
		rec, err := e.save(ctx, fmt.Sprintf("%s (Part %d)", src.Title, seg.Index+1), seg.Artifact, duration, src.SourceConfig)
		if err != nil {
			return saved, err
		}
		saved = append(saved, *rec)
	}
	return saved, nil
}

// Join concatenates recordings in the given order.
func (e *editorService) Join(ctx context.Context, ids []string, progress domain.ProgressFunc) (*domain.Recording, error) {
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: join needs at least two recordings", domain.ErrInvalidEdit)
	}

	ins := make([]domain.Artifact, 0, len(ids))
	var total float64
	var cfg domain.RecordingConfig
	for i, id := range ids {
		src, in, err := loadArtifact(ctx, e.store, id)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			cfg = src.SourceConfig
		}
		total += src.Duration
		ins = append(ins, in)
	}

	out, err := e.transcoder.Join(ctx, ins, progress)
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	return e.save(ctx, domain.DefaultTitle(e.clock())+" (Joined)", out, total, cfg)
}

// Convert re-encodes a recording with a quality preset.
func (e *editorService) Convert(ctx context.Context, id, format string, quality domain.ConvertQuality, progress domain.ProgressFunc) (*domain.Recording, error) {
	if format == "" {
		format = "mp4"
	}
	src, in, err := loadArtifact(ctx, e.store, id)
	if err != nil {
		return nil, err
	}

	out, err := e.transcoder.Convert(ctx, in, format, quality, progress)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", id, err)
	}
	return e.save(ctx, fmt.Sprintf("%s (%s)", src.Title, format), out, src.Duration, src.SourceConfig)
}

func (e *editorService) Thumbnail(ctx context.Context, id string, at float64) ([]byte, error) {
	if at < 0 {
		return nil, fmt.Errorf("%w: thumbnail offset must not be negative", domain.ErrInvalidEdit)
	}
	src, in, err := loadArtifact(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	if src.Duration > 0 && at > src.Duration {
		at = src.Duration
	}
	return e.transcoder.Thumbnail(ctx, in, at)
}

func (e *editorService) save(ctx context.Context, title string, out domain.Artifact, duration float64, cfg domain.RecordingConfig) (*domain.Recording, error) {
	rec, err := e.store.Save(ctx, domain.NewRecording{
		Title:        title,
		Artifact:     out.Data,
		Duration:     duration,
		Size:         int64(len(out.Data)),
		MimeType:     out.MimeType,
		SourceConfig: cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("save edited recording: %w", err)
	}
	e.logger.Infow("edited recording saved", "id", rec.ID, "title", rec.Title)
	return rec, nil
}

func validateTrim(start, end float64) error {
	if start < 0 {
		return fmt.Errorf("%w: start must not be negative", domain.ErrInvalidEdit)
	}
	if end <= start {
		return fmt.Errorf("%w: end must be after start", domain.ErrInvalidEdit)
	}
	return nil
}

// normalizeSplitPoints sorts and de-duplicates split points. Every point must
// be positive.
func normalizeSplitPoints(points []float64) ([]float64, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: at least one split point is required", domain.ErrInvalidEdit)
	}
	sorted := make([]float64, len(points))
	copy(sorted, points)
	sort.Float64s(sorted)

	out := make([]float64, 0, len(sorted))
	for _, p := range sorted {
		if p <= 0 {
			return nil, fmt.Errorf("%w: split point %.2f must be positive", domain.ErrInvalidEdit, p)
		}
		if len(out) > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// pointsWithin keeps the sorted points strictly inside (0, duration).
func pointsWithin(points []float64, duration float64) []float64 {
	n := sort.SearchFloat64s(points, duration)
	return points[:n]
}
