package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

// CaptureAcquirer opens the sources a RecordingConfig asks for and merges
// them into one capture handle.
type CaptureAcquirer struct {
	openers map[domain.SourceKind]ports.SourceOpener
	logger  *zap.SugaredLogger
}

func NewCaptureAcquirer(openers map[domain.SourceKind]ports.SourceOpener, logger *zap.SugaredLogger) *CaptureAcquirer {
	return &CaptureAcquirer{
		openers: openers,
		logger:  logger,
	}
}

// Acquire opens screen, webcam and microphone as configured. Audio is taken
// from the first source that delivers it; the microphone is opened on its own
// only when neither screen nor webcam brought an audio track. On any failure
// every source opened so far is stopped before the error is returned.
func (a *CaptureAcquirer) Acquire(ctx context.Context, cfg domain.RecordingConfig) (*domain.CaptureHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opened []domain.Source
	haveAudio := false

	open := func(req domain.SourceRequest) error {
		src, err := a.open(ctx, req)
		if err != nil {
			a.rollback(opened)
			return err
		}
		opened = append(opened, src)
		if domain.HasAudio(src) {
			haveAudio = true
		}
		return nil
	}

	if cfg.CaptureScreen {
		w, h := cfg.ScreenSize()
		err := open(domain.SourceRequest{
			Kind:  domain.SourceScreen,
			Video: &domain.VideoConstraints{Width: w, Height: h, FrameRate: cfg.FrameRate},
			Audio: cfg.CaptureMicrophone,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.CaptureWebcam {
		err := open(domain.SourceRequest{
			Kind:  domain.SourceWebcam,
			Video: &domain.VideoConstraints{Width: domain.WebcamWidth, Height: domain.WebcamHeight, FrameRate: cfg.FrameRate},
			Audio: cfg.CaptureMicrophone && !haveAudio,
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.CaptureMicrophone && !haveAudio {
		if err := open(domain.SourceRequest{Kind: domain.SourceMicrophone, Audio: true}); err != nil {
			return nil, err
		}
	}

	a.logger.Infow("capture acquired", "sources", len(opened), "audio", haveAudio)
	return domain.NewCaptureHandle(opened), nil
}

// Capabilities reports which source kinds can currently be opened.
func (a *CaptureAcquirer) Capabilities(ctx context.Context) ports.Capabilities {
	return ports.Capabilities{
		Screen:     a.probe(ctx, domain.SourceScreen),
		Camera:     a.probe(ctx, domain.SourceWebcam),
		Microphone: a.probe(ctx, domain.SourceMicrophone),
	}
}

func (a *CaptureAcquirer) probe(ctx context.Context, kind domain.SourceKind) bool {
	opener, ok := a.openers[kind]
	if !ok {
		return false
	}
	if prober, ok := opener.(ports.SourceProber); ok {
		if err := prober.Probe(ctx); err != nil {
			a.logger.Debugw("capture probe failed", "source", kind, "error", err)
			return false
		}
		return true
	}

	req := domain.SourceRequest{Kind: kind, Audio: kind == domain.SourceMicrophone}
	if kind != domain.SourceMicrophone {
		req.Video = &domain.VideoConstraints{Width: domain.WebcamWidth, Height: domain.WebcamHeight, FrameRate: domain.DefaultFrameRate}
	}
	src, err := opener.Open(ctx, req)
	if err != nil {
		a.logger.Debugw("capture probe failed", "source", kind, "error", err)
		return false
	}
	if err := src.Stop(); err != nil {
		a.logger.Warnw("stop probe source", "source", kind, "error", err)
	}
	return true
}

func (a *CaptureAcquirer) open(ctx context.Context, req domain.SourceRequest) (domain.Source, error) {
	opener, ok := a.openers[req.Kind]
	if !ok {
		return nil, &domain.AcquisitionError{
			Source: req.Kind,
			Err:    fmt.Errorf("%w: no opener registered", domain.ErrSourceUnavailable),
		}
	}
	src, err := opener.Open(ctx, req)
	if err != nil {
		return nil, classifyAcquisition(req.Kind, err)
	}
	return src, nil
}

// rollback stops already opened sources in reverse order. Stop failures are
// logged and otherwise ignored so the original error reaches the caller.
func (a *CaptureAcquirer) rollback(opened []domain.Source) {
	for i := len(opened) - 1; i >= 0; i-- {
		if err := opened[i].Stop(); err != nil {
			a.logger.Errorw("capture rollback failed", "source", opened[i].Kind(), "error", err)
		}
	}
}

// classifyAcquisition maps an opener error onto PermissionDenied or
// SourceUnavailable.
func classifyAcquisition(kind domain.SourceKind, err error) error {
	var acqErr *domain.AcquisitionError
	if errors.As(err, &acqErr) {
		return err
	}
	if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrSourceUnavailable) {
		return &domain.AcquisitionError{Source: kind, Err: err}
	}

	sentinel := domain.ErrSourceUnavailable
	if errors.Is(err, os.ErrPermission) || looksLikePermission(err.Error()) {
		sentinel = domain.ErrPermissionDenied
	}
	return &domain.AcquisitionError{Source: kind, Err: fmt.Errorf("%w: %w", sentinel, err)}
}

func looksLikePermission(msg string) bool {
	msg = strings.ToLower(msg)
	for _, s := range []string{"permission", "not allowed", "denied", "notallowederror"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
