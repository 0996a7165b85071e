package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/service"
	"github.com/uide-dev/titulacion-api/internal/utils"
)

// EvidenceHandler wires evidence submission and grading routes.
type EvidenceHandler struct {
	evidences service.EvidenceService
	summaries service.SummaryService
	logger    zerolog.Logger
}

// NewEvidenceHandler constructs the handler.
func NewEvidenceHandler(evidences service.EvidenceService, summaries service.SummaryService, logger zerolog.Logger) *EvidenceHandler {
	return &EvidenceHandler{
		evidences: evidences,
		summaries: summaries,
		logger:    logger.With().Str("component", "evidence_handler").Logger(),
	}
}

// Register attaches evidence endpoints. Students submit, tutors and
// integration instructors grade their own track.
func (h *EvidenceHandler) Register(router fiber.Router, studentOnly, tutorOnly, instructorOnly fiber.Handler, submitExtras ...fiber.Handler) {
	submit := append([]fiber.Handler{studentOnly}, submitExtras...)
	submit = append(submit, h.submit)
	router.Post("", submit...)
	router.Patch("/:id/tutor-review", tutorOnly, h.gradeAsTutor)
	router.Patch("/:id/instructor-review", instructorOnly, h.gradeAsInstructor)
	router.Get("/summary/:proposalID", h.weeklySummary)
	router.Get("/:id", h.get)
}

func (h *EvidenceHandler) submit(c *fiber.Ctx) error {
	payload := dto.EvidenceSubmitRequest{
		ActivityID: parseUintForm(c, "activity_id"),
		Week:       parseIntForm(c, "week"),
		Content:    strings.TrimSpace(c.FormValue("content")),
	}

	file, err := c.FormFile("file")
	if err != nil {
		file = nil
	}

	evidence, err := h.evidences.Submit(c.Context(), payload, file, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evidence submitted", evidence)
}

func (h *EvidenceHandler) gradeAsTutor(c *fiber.Ctx) error {
	return h.grade(c, h.evidences.GradeAsTutor)
}

func (h *EvidenceHandler) gradeAsInstructor(c *fiber.Ctx) error {
	return h.grade(c, h.evidences.GradeAsInstructor)
}

func (h *EvidenceHandler) grade(c *fiber.Ctx, apply func(ctx context.Context, id uint, payload dto.EvidenceGradeRequest, actor service.Actor) (dto.EvidenceResponse, error)) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.EvidenceGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	evidence, err := apply(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evidence graded", evidence)
}

func (h *EvidenceHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	evidence, err := h.evidences.GetByID(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evidence retrieved", evidence)
}

func (h *EvidenceHandler) weeklySummary(c *fiber.Ctx) error {
	proposalID, err := strconv.ParseUint(c.Params("proposalID"), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	summary, err := h.summaries.WeeklySummary(c.Context(), uint(proposalID))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "weekly summary retrieved", summary)
}

func (h *EvidenceHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrEvidenceNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evidence not found")
	case errors.Is(err, service.ErrActivityNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "activity not found")
	case errors.Is(err, service.ErrProposalNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "proposal not found")
	case errors.Is(err, service.ErrWeekOutOfRange):
		return utils.SendError(c, fiber.StatusBadRequest, "week must be between 1 and 16")
	case errors.Is(err, service.ErrWrongReviewTrack):
		return utils.SendError(c, fiber.StatusForbidden, "role cannot grade this review track")
	case errors.Is(err, service.ErrNotProposalOwner):
		return utils.SendError(c, fiber.StatusForbidden, "evidence belongs to another student")
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusBadRequest, "file exceeds the maximum allowed size")
	case errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, "file type not allowed")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
