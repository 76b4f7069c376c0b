package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

type libraryService struct {
	store  ports.RecordingStore
	clock  func() time.Time
	logger *zap.SugaredLogger
}

func NewLibraryService(store ports.RecordingStore, logger *zap.SugaredLogger) ports.LibraryService {
	return &libraryService{
		store:  store,
		clock:  time.Now,
		logger: logger,
	}
}

// SaveResult persists a finished recording. An empty title becomes
// "Recording <date time>".
func (l *libraryService) SaveResult(ctx context.Context, title string, result *domain.RecordingResult) (*domain.Recording, error) {
	if result == nil {
		return nil, fmt.Errorf("save recording: %w", domain.ErrNotRecording)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultTitle(l.clock())
	}

	rec, err := l.store.Save(ctx, domain.NewRecording{
		Title:        title,
		Artifact:     result.Data,
		Duration:     result.Duration.Seconds(),
		Size:         result.Size,
		MimeType:     result.MimeType,
		SourceConfig: result.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}
	l.logger.Infow("recording saved", "id", rec.ID, "title", rec.Title, "size", rec.Size)
	return rec, nil
}

func (l *libraryService) List(ctx context.Context) ([]domain.Recording, error) {
	return l.store.List(ctx)
}

func (l *libraryService) Get(ctx context.Context, id string) (*domain.Recording, error) {
	return l.store.Get(ctx, id)
}

func (l *libraryService) OpenArtifact(ctx context.Context, id string) (io.ReadCloser, *domain.Recording, error) {
	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := l.store.OpenArtifact(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rc, rec, nil
}

func (l *libraryService) Rename(ctx context.Context, id, title string) (*domain.Recording, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title must not be empty", domain.ErrInvalidEdit)
	}
	return l.store.UpdateTitle(ctx, id, title)
}

func (l *libraryService) Delete(ctx context.Context, id string) error {
	if err := l.store.Delete(ctx, id); err != nil {
		return err
	}
	l.logger.Infow("recording deleted", "id", id)
	return nil
}

func (l *libraryService) Clear(ctx context.Context) error {
	if err := l.store.Clear(ctx); err != nil {
		return err
	}
	l.logger.Info("library cleared")
	return nil
}

// Usage is the total artifact size of all saved recordings in bytes.
func (l *libraryService) Usage(ctx context.Context) (int64, error) {
	return l.store.TotalSize(ctx)
}

// loadArtifact reads a stored recording fully into memory.
func loadArtifact(ctx context.Context, store ports.RecordingStore, id string) (*domain.Recording, domain.Artifact, error) {
	rec, err := store.Get(ctx, id)
	if err != nil {
		return nil, domain.Artifact{}, err
	}
	rc, err := store.OpenArtifact(ctx, id)
	if err != nil {
		return nil, domain.Artifact{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.Artifact{}, fmt.Errorf("read artifact %s: %w", id, err)
	}
	return rec, domain.Artifact{Data: data, MimeType: rec.MimeType, Duration: rec.Duration}, nil
}
