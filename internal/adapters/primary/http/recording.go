package http

import (
	"github.com/gofiber/fiber/v2"

	"go-screen-recorder/internal/core/domain"
)

type startResponse struct {
	SessionID string                 `json:"sessionId"`
	MimeType  string                 `json:"mimeType"`
	Tracks    []domain.TrackFormat   `json:"tracks"`
	Config    domain.RecordingConfig `json:"config"`
}

// startRecording accepts a partial RecordingConfig; missing fields keep the
// configured defaults.
func (h *Handler) startRecording(c *fiber.Ctx) error {
	cfg := h.defaults
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&cfg); err != nil {
			return h.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
		}
	}

	res, err := h.recorder.StartRecording(c.UserContext(), cfg)
	if err != nil {
		return h.fail(c, err)
	}

	resp := startResponse{SessionID: res.SessionID, MimeType: res.MimeType, Config: cfg}
	for _, t := range res.Stream.Tracks() {
		resp.Tracks = append(resp.Tracks, t.Format())
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) pauseRecording(c *fiber.Ctx) error {
	ok := h.recorder.PauseRecording()
	return c.JSON(fiber.Map{"ok": ok, "status": newStatusResponse(h.recorder.Status())})
}

func (h *Handler) resumeRecording(c *fiber.Ctx) error {
	ok := h.recorder.ResumeRecording()
	return c.JSON(fiber.Map{"ok": ok, "status": newStatusResponse(h.recorder.Status())})
}

type stopRequest struct {
	Title string `json:"title"`
}

// stopRecording finalizes the session and saves the artifact.
func (h *Handler) stopRecording(c *fiber.Ctx) error {
	var req stopRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
		}
	}

	result, err := h.recorder.StopRecording(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return h.save(c, req.Title, result)
}

// saveUnsaved retries the save of a recording whose stop succeeded but whose
// save failed.
func (h *Handler) saveUnsaved(c *fiber.Ctx) error {
	var req stopRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
		}
	}

	h.mu.Lock()
	result := h.unsaved
	h.unsaved = nil
	h.mu.Unlock()
	if result == nil {
		return h.fail(c, fiber.NewError(fiber.StatusNotFound, "no unsaved recording"))
	}
	return h.save(c, req.Title, result)
}

// save stores result in the library. On failure the result is kept so the
// artifact survives until a retry.
func (h *Handler) save(c *fiber.Ctx, title string, result *domain.RecordingResult) error {
	rec, err := h.library.SaveResult(c.UserContext(), title, result)
	if err != nil {
		h.logger.Errorw("save recording failed, kept for retry",
			"session", result.SessionID,
			"size", result.Size,
			"mimeType", result.MimeType,
			"error", err,
		)
		h.mu.Lock()
		if h.unsaved != nil && h.unsaved != result {
			h.logger.Warnw("discarding older unsaved recording", "session", h.unsaved.SessionID, "size", h.unsaved.Size)
		}
		h.unsaved = result
		h.mu.Unlock()
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *Handler) cancelRecording(c *fiber.Ctx) error {
	if err := h.recorder.CancelRecording(c.UserContext()); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
