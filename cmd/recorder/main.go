package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"go-screen-recorder/internal/adapters/primary/cli"
	primaryHTTP "go-screen-recorder/internal/adapters/primary/http"
	"go-screen-recorder/internal/adapters/secondary/devices"
	"go-screen-recorder/internal/adapters/secondary/ffmpeg"
	store "go-screen-recorder/internal/adapters/secondary/mongo"
	"go-screen-recorder/internal/adapters/secondary/rod"
	"go-screen-recorder/internal/config"
	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
	"go-screen-recorder/internal/core/services"
	"go-screen-recorder/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	v, err := config.InitConfig()
	if err != nil {
		return err
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		return err
	}

	newLogger := logger.NewConsole
	if cfg.LogFormat == "json" {
		newLogger = logger.New
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Adapters
	probe := ffmpeg.NewProbe(cfg.FFmpeg.Bin)
	openers := captureOpeners(cfg, log)
	transcoder := ffmpeg.NewTranscoder(cfg.FFmpeg.Bin, cfg.FFmpeg.TempDir, log)

	deps := &cli.Dependencies{
		Config:  cfg,
		Logger:  log,
		Probe:   probe,
		Openers: openers,
	}

	var recordings ports.RecordingStore
	client, err := store.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		deps.StoreErr = err
	} else {
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				log.Warnw("disconnect mongodb", "error", err)
			}
		}()
		deps.PingStore = func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}
		s, err := store.NewStore(ctx, client.Database(cfg.Mongo.Database), log)
		if err != nil {
			deps.StoreErr = err
		} else {
			recordings = s
		}
	}

	// Initialize Services (Core)
	acquirer := services.NewCaptureAcquirer(openers, log)
	deps.Recorder = services.NewRecordingService(
		acquirer,
		ffmpeg.NewEncoderFactory(probe, log),
		log,
		services.WithTimeslice(cfg.Capture.Timeslice),
	)
	deps.Library = services.NewLibraryService(recordings, log)
	deps.Editor = services.NewEditorService(recordings, transcoder, log)

	// Initialize Driving Adapter (HTTP)
	handler := primaryHTTP.NewHandler(deps.Recorder, deps.Library, deps.Editor, cfg.Recording, log)
	deps.Serve = func(ctx context.Context) error {
		err := serve(ctx, cfg, handler, log)
		saveInFlight(deps, log)
		return err
	}

	return cli.NewRootCmd(deps).ExecuteContext(ctx)
}

// captureOpeners picks the display backend from config; camera and
// microphone always come from the local devices.
func captureOpeners(cfg *config.AppConfig, log *zap.SugaredLogger) map[domain.SourceKind]ports.SourceOpener {
	openers := map[domain.SourceKind]ports.SourceOpener{
		domain.SourceScreen:     devices.NewScreenOpener(log),
		domain.SourceWebcam:     devices.NewCameraOpener(log),
		domain.SourceMicrophone: devices.NewMicrophoneOpener(log),
	}
	if cfg.Capture.DisplayBackend == config.DisplayBackendBrowser {
		openers[domain.SourceScreen] = rod.NewBrowserOpener(cfg.Capture.ChromeBin, cfg.Capture.BrowserURL, log)
	}
	return openers
}

// saveInFlight finalizes and saves a recording still running at shutdown so
// capture devices are released.
func saveInFlight(deps *cli.Dependencies, log *zap.SugaredLogger) {
	if !deps.Recorder.Status().State.InProgress() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	result, err := deps.Recorder.StopRecording(ctx)
	if err != nil {
		log.Warnw("stop recording on shutdown", "error", err)
		return
	}
	if deps.StoreErr != nil {
		log.Warnw("recording discarded, store unavailable", "session", result.SessionID, "size", result.Size)
		return
	}
	rec, err := deps.Library.SaveResult(ctx, "", result)
	if err != nil {
		log.Errorw("save recording on shutdown", "session", result.SessionID, "error", err)
		return
	}
	log.Infow("saved recording on shutdown", "id", rec.ID, "title", rec.Title)
}

func serve(ctx context.Context, cfg *config.AppConfig, handler *primaryHTTP.Handler, log *zap.SugaredLogger) error {
	app := fiber.New(fiber.Config{
		ServerHeader:          cfg.Name,
		AppName:               cfg.Name,
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
		StreamRequestBody:     true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Accept,Content-Type",
		MaxAge:       300,
	}))
	handler.RegisterRoutes(app)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Infow("shutting down http server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
