package http

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"go-screen-recorder/internal/core/domain"
	"go-screen-recorder/internal/core/ports"
)

type Handler struct {
	recorder ports.RecordingService
	library  ports.LibraryService
	editor   ports.EditorService
	defaults domain.RecordingConfig
	logger   *zap.SugaredLogger

	// unsaved holds a stopped recording whose save failed, until a retry
	// through /api/recording/save succeeds.
	mu      sync.Mutex
	unsaved *domain.RecordingResult
}

func NewHandler(
	recorder ports.RecordingService,
	library ports.LibraryService,
	editor ports.EditorService,
	defaults domain.RecordingConfig,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		recorder: recorder,
		library:  library,
		editor:   editor,
		defaults: defaults,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.health)

	api := app.Group("/api")
	api.Get("/capabilities", h.capabilities)
	api.Get("/resolutions", h.resolutions)

	rec := api.Group("/recording")
	rec.Post("/start", h.startRecording)
	rec.Post("/pause", h.pauseRecording)
	rec.Post("/resume", h.resumeRecording)
	rec.Post("/stop", h.stopRecording)
	rec.Post("/cancel", h.cancelRecording)
	rec.Post("/save", h.saveUnsaved)
	rec.Get("/status", h.getStatus)

	lib := api.Group("/recordings")
	lib.Get("/", h.listRecordings)
	lib.Delete("/", h.clearRecordings)
	lib.Get("/usage", h.usage)
	lib.Post("/join", h.joinRecordings)
	lib.Get("/:id", h.getRecording)
	lib.Patch("/:id", h.renameRecording)
	lib.Delete("/:id", h.deleteRecording)
	lib.Get("/:id/artifact", h.downloadArtifact)
	lib.Get("/:id/thumbnail", h.thumbnail)
	lib.Post("/:id/trim", h.trimRecording)
	lib.Post("/:id/split", h.splitRecording)
	lib.Post("/:id/convert", h.convertRecording)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(h.streamEvents))
}

func (h *Handler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"state":  h.recorder.Status().State,
	})
}

func (h *Handler) capabilities(c *fiber.Ctx) error {
	return c.JSON(h.recorder.Capabilities(c.UserContext()))
}

func (h *Handler) resolutions(c *fiber.Ctx) error {
	return c.JSON(domain.ResolutionPresets())
}

// statusResponse adds the duration in seconds to the status snapshot.
type statusResponse struct {
	domain.SessionStatus
	Duration float64 `json:"duration"`
}

func newStatusResponse(s domain.SessionStatus) statusResponse {
	return statusResponse{SessionStatus: s, Duration: s.DurationSeconds()}
}

func (h *Handler) getStatus(c *fiber.Ctx) error {
	return c.JSON(newStatusResponse(h.recorder.Status()))
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyRecording), errors.Is(err, domain.ErrNotRecording):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, domain.ErrRecordingNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrNoSources), errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrInvalidEdit):
		return fiber.StatusBadRequest
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	code := errorStatus(err)
	if code >= fiber.StatusInternalServerError {
		h.logger.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (h *Handler) progressLogger(op, id string) domain.ProgressFunc {
	start := time.Now()
	return func(pct int) {
		h.logger.Debugw("transcode progress", "op", op, "id", id, "percent", pct, "elapsed", time.Since(start))
	}
}
