package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/persistence"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TranscriptStore reads archived transcripts.
type TranscriptStore interface {
	List() ([]string, error)
	Read(name string) (string, error)
}

// TranscriptsHandler serves the local transcript archive.
type TranscriptsHandler struct {
	archive TranscriptStore
}

// NewTranscriptsHandler constructs handler. A nil archive answers every
// request with not found.
func NewTranscriptsHandler(archive TranscriptStore) *TranscriptsHandler {
	return &TranscriptsHandler{archive: archive}
}

// List GET /transcripts.
func (h *TranscriptsHandler) List(c *fiber.Ctx) error {
	if _, err := operator(c); err != nil {
		return err
	}
	if h.archive == nil {
		return apperrors.NewNotFound("transcript archive", nil)
	}
	names, err := h.archive.List()
	if err != nil {
		return apperrors.NewUnavailable("could not list transcripts", err)
	}
	return c.JSON(fiber.Map{"data": names})
}

// Get GET /transcripts/:name returns the plain-text transcript.
func (h *TranscriptsHandler) Get(c *fiber.Ctx) error {
	if _, err := operator(c); err != nil {
		return err
	}
	if h.archive == nil {
		return apperrors.NewNotFound("transcript archive", nil)
	}
	content, err := h.archive.Read(c.Params("name"))
	if errors.Is(err, persistence.ErrTranscriptNotFound) {
		return apperrors.NewNotFound("transcript", map[string]any{"name": c.Params("name")})
	}
	if err != nil {
		return apperrors.NewUnavailable("could not read transcript", err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(content)
}
