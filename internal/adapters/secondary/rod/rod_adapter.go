package rod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

// BrowserOpener is a display backend that records a headless Chrome tab
// instead of the physical screen.
type BrowserOpener struct {
	bin    string
	url    string
	logger *zap.SugaredLogger
}

var _ ports.SourceOpener = (*BrowserOpener)(nil)
var _ ports.SourceProber = (*BrowserOpener)(nil)

// NewBrowserOpener records pageURL. An empty bin lets rod find or download a
// browser.
func NewBrowserOpener(bin, pageURL string, logger *zap.SugaredLogger) *BrowserOpener {
	if pageURL == "" {
		pageURL = "about:blank"
	}
	return &BrowserOpener{bin: bin, url: pageURL, logger: logger}
}

func (r *BrowserOpener) Probe(ctx context.Context) error {
	if r.bin != "" {
		return nil
	}
	if _, ok := launcher.LookPath(); !ok {
		return fmt.Errorf("%w: no chrome or chromium binary found", domain.ErrSourceUnavailable)
	}
	return nil
}

func (r *BrowserOpener) Open(ctx context.Context, req domain.SourceRequest) (domain.Source, error) {
	if req.Video == nil {
		return nil, fmt.Errorf("%w: browser capture is video only", domain.ErrSourceUnavailable)
	}
	width, height, fps := req.Video.Width, req.Video.Height, req.Video.FrameRate
	if fps <= 0 {
		fps = domain.DefaultFrameRate
	}

	l := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-software-rasterizer").
		Set("disable-setuid-sandbox").
		Set("autoplay-policy", "no-user-gesture-required").
		Set("disable-popup-blocking").
		Set("disable-notifications").
		Set("window-size", fmt.Sprintf("%d,%d", width, height))
	if r.bin != "" {
		l = l.Bin(r.bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %v", domain.ErrSourceUnavailable, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	src := &tabSource{browser: browser, launcher: l, logger: r.logger}
	page, err := r.preparePage(ctx, browser, width, height)
	if err != nil {
		_ = src.Stop()
		return nil, err
	}

	src.track = newTabTrack(page, width, height, fps)
	r.logger.Infow("browser capture opened", "url", r.url, "width", width, "height", height, "fps", fps)
	return src, nil
}

func (r *BrowserOpener) preparePage(ctx context.Context, browser *rod.Browser, width, height int) (*rod.Page, error) {
	page, err := browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	nav := page.Context(ctx)
	if err := nav.Navigate(r.url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", r.url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		r.logger.Warnw("page did not finish loading, recording anyway", "url", r.url, "error", err)
	}
	return page, nil
}

type tabSource struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	track    *tabTrack
	logger   *zap.SugaredLogger

	once sync.Once
	err  error
}

func (s *tabSource) Kind() domain.SourceKind { return domain.SourceScreen }

func (s *tabSource) Tracks() []domain.Track {
	if s.track == nil {
		return nil
	}
	return []domain.Track{s.track}
}

func (s *tabSource) Stop() error {
	s.once.Do(func() {
		var errs []error
		if s.track != nil {
			errs = append(errs, s.track.Stop())
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		s.launcher.Cleanup()
		s.err = errors.Join(errs...)
		s.logger.Info("browser capture closed")
	})
	return s.err
}

// tabTrack screenshots the tab at the frame rate and emits PNG frames.
type tabTrack struct {
	page   *rod.Page
	format domain.TrackFormat
	ticker *time.Ticker

	stopCh chan struct{}
	once   sync.Once
}

func newTabTrack(page *rod.Page, width, height, fps int) *tabTrack {
	return &tabTrack{
		page:   page,
		format: domain.TrackFormat{Encoding: domain.EncodingPNG, Width: width, Height: height, FrameRate: fps},
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
		stopCh: make(chan struct{}),
	}
}

func (t *tabTrack) ID() string                 { return "browser-tab" }
func (t *tabTrack) Kind() domain.TrackKind     { return domain.TrackVideo }
func (t *tabTrack) Format() domain.TrackFormat { return t.format }

func (t *tabTrack) ReadFrame() ([]byte, error) {
	select {
	case <-t.stopCh:
		return nil, io.EOF
	case <-t.ticker.C:
	}
	buf, err := t.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		select {
		case <-t.stopCh:
			return nil, io.EOF
		default:
		}
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (t *tabTrack) Stop() error {
	t.once.Do(func() {
		close(t.stopCh)
		t.ticker.Stop()
	})
	return nil
}
