package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"go-screen-recorder/internal/core/domain"
)

func (h *Handler) listRecordings(c *fiber.Ctx) error {
	recs, err := h.library.List(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	if recs == nil {
		recs = []domain.Recording{}
	}
	return c.JSON(recs)
}

func (h *Handler) getRecording(c *fiber.Ctx) error {
	rec, err := h.library.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(rec)
}

type renameRequest struct {
	Title string `json:"title"`
}

func (h *Handler) renameRecording(c *fiber.Ctx) error {
	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	}
	rec, err := h.library.Rename(c.UserContext(), c.Params("id"), req.Title)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(rec)
}

func (h *Handler) deleteRecording(c *fiber.Ctx) error {
	if err := h.library.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) clearRecordings(c *fiber.Ctx) error {
	if err := h.library.Clear(c.UserContext()); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) usage(c *fiber.Ctx) error {
	total, err := h.library.Usage(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"totalSize": total})
}

func (h *Handler) downloadArtifact(c *fiber.Ctx) error {
	rc, rec, err := h.library.OpenArtifact(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, rec.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", rec.ID+extensionFor(rec.MimeType)))
	return c.SendStream(rc, int(rec.Size))
}

func (h *Handler) thumbnail(c *fiber.Ctx) error {
	img, err := h.editor.Thumbnail(c.UserContext(), c.Params("id"), c.QueryFloat("at", 1))
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(img)
}

type trimRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (h *Handler) trimRecording(c *fiber.Ctx) error {
	var req trimRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	}
	id := c.Params("id")
	rec, err := h.editor.Trim(c.UserContext(), id, req.Start, req.End, h.progressLogger("trim", id))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

type splitRequest struct {
	Points []float64 `json:"points"`
}

func (h *Handler) splitRecording(c *fiber.Ctx) error {
	var req splitRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	}
	id := c.Params("id")
	recs, err := h.editor.Split(c.UserContext(), id, req.Points, h.progressLogger("split", id))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(recs)
}

type joinRequest struct {
	IDs []string `json:"ids"`
}

func (h *Handler) joinRecordings(c *fiber.Ctx) error {
	var req joinRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
	}
	rec, err := h.editor.Join(c.UserContext(), req.IDs, h.progressLogger("join", ""))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

type convertRequest struct {
	Format  string                `json:"format"`
	Quality domain.ConvertQuality `json:"quality"`
}

func (h *Handler) convertRecording(c *fiber.Ctx) error {
	req := convertRequest{Format: "mp4", Quality: domain.QualityMedium}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return h.fail(c, fiber.NewError(fiber.StatusBadRequest, err.Error()))
		}
	}
	id := c.Params("id")
	rec, err := h.editor.Convert(c.UserContext(), id, req.Format, req.Quality, h.progressLogger("convert", id))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "video/mp4"):
		return ".mp4"
	case strings.HasPrefix(mimeType, "video/x-matroska"):
		return ".mkv"
	default:
		return ".webm"
	}
}
