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

// DefenseHandler wires defense evaluation routes.
type DefenseHandler struct {
	service service.DefenseService
	logger  zerolog.Logger
}

// NewDefenseHandler constructs the handler.
func NewDefenseHandler(service service.DefenseService, logger zerolog.Logger) *DefenseHandler {
	return &DefenseHandler{
		service: service,
		logger:  logger.With().Str("component", "defense_handler").Logger(),
	}
}

// Register attaches defense endpoints. Creation, panel assembly, scheduling
// and finalization are staff operations; scoring belongs to the jurors.
func (h *DefenseHandler) Register(router fiber.Router, jurorOnly, staffOnly fiber.Handler) {
	router.Get("/proposals/:proposalID/defenses", h.listByProposal)
	router.Get("/defenses/mine", jurorOnly, h.listMine)
	router.Post("/defenses/:id/score", jurorOnly, h.score)
	router.Post("/defenses", staffOnly, h.create)
	router.Post("/defenses/:id/panelists", staffOnly, h.addParticipant)
	router.Patch("/defenses/:id/schedule", staffOnly, h.updateSchedule)
	router.Patch("/defenses/:id/finalize", staffOnly, h.finalize)
}

func (h *DefenseHandler) listByProposal(c *fiber.Ctx) error {
	proposalID, err := parseUintParam(c, "proposalID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	defenses, err := h.service.GetByProposal(c.Context(), proposalID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "defenses retrieved", defenses)
}

func (h *DefenseHandler) listMine(c *fiber.Ctx) error {
	defenses, err := h.service.ListForJuror(c.Context(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "defense agenda retrieved", defenses)
}

func (h *DefenseHandler) create(c *fiber.Ctx) error {
	var payload dto.DefenseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	defense, err := h.service.Create(c.Context(), payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "defense created", defense)
}

func (h *DefenseHandler) addParticipant(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.PanelistAssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	defense, err := h.service.AddParticipant(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "panelist assigned", defense)
}

func (h *DefenseHandler) score(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.PanelistScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	defense, err := h.service.Score(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "score recorded", defense)
}

func (h *DefenseHandler) updateSchedule(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DefenseScheduleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	defense, err := h.service.UpdateSchedule(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "defense schedule updated", defense)
}

func (h *DefenseHandler) finalize(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DefenseFinalizeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	defense, err := h.service.Finalize(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "defense finalized", defense)
}

func (h *DefenseHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrDefenseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "defense not found")
	case errors.Is(err, service.ErrProposalNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "proposal not found")
	case errors.Is(err, service.ErrDefenseAlreadyExists):
		return utils.SendError(c, fiber.StatusConflict, "defense already exists for proposal")
	case errors.Is(err, service.ErrStageLocked):
		return utils.SendError(c, fiber.StatusPreconditionFailed, "progression stage not complete")
	case errors.Is(err, service.ErrPrivateDefenseNotApproved):
		return utils.SendError(c, fiber.StatusPreconditionFailed, "private defense not approved")
	case errors.Is(err, service.ErrNotPanelEligible):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "user role not eligible for panel")
	case errors.Is(err, service.ErrNotPanelParticipant):
		return utils.SendError(c, fiber.StatusForbidden, "caller is not on the panel")
	case errors.Is(err, service.ErrInvalidFinalState):
		return utils.SendError(c, fiber.StatusBadRequest, "final state must be APROBADA or RECHAZADA")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
