package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/models"
	"github.com/uide-dev/titulacion-api/internal/service"
	"github.com/uide-dev/titulacion-api/internal/utils"
)

// ProgressionHandler wires prerequisite, eligibility and deliverable routes.
type ProgressionHandler struct {
	service service.ProgressionService
	logger  zerolog.Logger
}

// NewProgressionHandler constructs the handler.
func NewProgressionHandler(service service.ProgressionService, logger zerolog.Logger) *ProgressionHandler {
	return &ProgressionHandler{
		service: service,
		logger:  logger.With().Str("component", "progression_handler").Logger(),
	}
}

// Register attaches progression endpoints. Students read their own state and
// upload documents; staff validates prerequisites.
func (h *ProgressionHandler) Register(router fiber.Router, studentOnly, staffOnly fiber.Handler) {
	router.Get("/prerequisites/catalog", h.catalog)
	router.Get("/proposals/:proposalID/unlock-status", h.unlockStatus)
	router.Get("/proposals/:proposalID/deliverables", h.listDeliverables)

	router.Get("/prerequisites", studentOnly, h.listOwn)
	router.Get("/eligibility", studentOnly, h.eligibility)
	router.Post("/prerequisites", studentOnly, h.uploadPrerequisite)
	router.Post("/deliverables", studentOnly, h.uploadDeliverable)

	router.Get("/students/:studentID/prerequisites", staffOnly, h.listForStudent)
	router.Get("/students/:studentID/eligibility", staffOnly, h.eligibilityForStudent)
	router.Patch("/students/:studentID/prerequisites/:prerequisiteID", staffOnly, h.validatePrerequisite)
}

func (h *ProgressionHandler) catalog(c *fiber.Ctx) error {
	items, err := h.service.ListCatalog(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "prerequisite catalog retrieved", items)
}

func (h *ProgressionHandler) listOwn(c *fiber.Ctx) error {
	records, err := h.service.ListPrerequisites(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "prerequisites retrieved", records)
}

func (h *ProgressionHandler) listForStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	records, err := h.service.ListPrerequisites(c.Context(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "prerequisites retrieved", records)
}

func (h *ProgressionHandler) uploadPrerequisite(c *fiber.Ctx) error {
	payload := dto.PrerequisiteUploadRequest{
		PrerequisiteID: parseUintForm(c, "prerequisite_id"),
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "document file is required")
	}

	record, err := h.service.UploadPrerequisite(c.Context(), payload, file, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "prerequisite document uploaded", record)
}

func (h *ProgressionHandler) validatePrerequisite(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	prerequisiteID, err := parseUintParam(c, "prerequisiteID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.PrerequisiteValidateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	record, err := h.service.ValidatePrerequisite(c.Context(), studentID, prerequisiteID, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "prerequisite validated", record)
}

func (h *ProgressionHandler) eligibility(c *fiber.Ctx) error {
	result, err := h.service.CheckCanCreateProposal(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "eligibility retrieved", result)
}

func (h *ProgressionHandler) eligibilityForStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.CheckCanCreateProposal(c.Context(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "eligibility retrieved", result)
}

func (h *ProgressionHandler) uploadDeliverable(c *fiber.Ctx) error {
	payload := dto.DeliverableUploadRequest{
		ProposalID: parseUintForm(c, "proposal_id"),
		Type:       strings.ToUpper(strings.TrimSpace(c.FormValue("type"))),
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "document file is required")
	}

	deliverable, err := h.service.UploadFinalDeliverable(c.Context(), payload, file, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "deliverable uploaded", deliverable)
}

func (h *ProgressionHandler) listDeliverables(c *fiber.Ctx) error {
	proposalID, err := parseUintParam(c, "proposalID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	includeHistory := c.Query("history") == "true"
	if includeHistory {
		role := userRoleFromContext(c)
		if role != models.RoleDirector && role != models.RoleCoordinator {
			includeHistory = false
		}
	}

	deliverables, err := h.service.ListDeliverables(c.Context(), proposalID, includeHistory)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "deliverables retrieved", deliverables)
}

func (h *ProgressionHandler) unlockStatus(c *fiber.Ctx) error {
	proposalID, err := parseUintParam(c, "proposalID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := h.service.UnlockStatus(c.Context(), proposalID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "unlock status retrieved", status)
}

func (h *ProgressionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrPrerequisiteNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "prerequisite not found")
	case errors.Is(err, service.ErrProposalNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "proposal not found")
	case errors.Is(err, service.ErrNotProposalOwner):
		return utils.SendError(c, fiber.StatusForbidden, "proposal belongs to another student")
	case errors.Is(err, service.ErrStageLocked):
		return utils.SendError(c, fiber.StatusPreconditionFailed, "previous progression stage not complete")
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
