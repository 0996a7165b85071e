package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/service"
	"github.com/uide-dev/titulacion-api/internal/utils"
)

// ActivityHandler wires gradable-activity HTTP routes.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register attaches activity endpoints to the router group. Mutating routes
// carry the staff-only guard.
func (h *ActivityHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/evidences", h.listEvidence)
	router.Post("", staffOnly, h.create)
	router.Patch("/:id", staffOnly, h.update)
	router.Delete("/:id", staffOnly, h.delete)
}

func (h *ActivityHandler) list(c *fiber.Ctx) error {
	var filter dto.ActivityFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	activities, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activities retrieved", activities)
}

func (h *ActivityHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	activity, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activity retrieved", activity)
}

func (h *ActivityHandler) listEvidence(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	evidences, err := h.service.ListEvidence(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evidences retrieved", evidences)
}

func (h *ActivityHandler) create(c *fiber.Ctx) error {
	var payload dto.ActivityCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	activity, err := h.service.Create(c.Context(), payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity created", activity)
}

func (h *ActivityHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ActivityUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	activity, err := h.service.Update(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activity updated", activity)
}

func (h *ActivityHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.Delete(c.Context(), id, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activity deleted", fiber.Map{"id": id})
}

func (h *ActivityHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrActivityNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "activity not found")
	case errors.Is(err, service.ErrProposalNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "proposal not found")
	case errors.Is(err, service.ErrActivityLimitReached):
		return utils.SendError(c, fiber.StatusConflict, "activity limit reached for proposal")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
