package service

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/models"
	"github.com/uide-dev/titulacion-api/internal/repository"
)

// ErrPrerequisiteNotFound indicates the catalog entry was not located.
var ErrPrerequisiteNotFound = errors.New("prerequisite not found")

// ErrStageLocked indicates the previous progression stage is not complete.
var ErrStageLocked = errors.New("previous stage not complete")

// ProgressionService derives whether a student may advance between stages:
// prerequisites gate proposal creation, the evidence ledger gates final
// deliverable upload, and both ledger and deliverables gate the defense.
type ProgressionService interface {
	ListCatalog(ctx context.Context) ([]dto.PrerequisiteItemResponse, error)
	ListPrerequisites(ctx context.Context, studentID uint) ([]dto.PrerequisiteRecordResponse, error)
	UploadPrerequisite(ctx context.Context, payload dto.PrerequisiteUploadRequest, file *multipart.FileHeader, actor Actor) (dto.PrerequisiteRecordResponse, error)
	ValidatePrerequisite(ctx context.Context, studentID, prerequisiteID uint, payload dto.PrerequisiteValidateRequest, actor Actor) (dto.PrerequisiteRecordResponse, error)
	CheckCanCreateProposal(ctx context.Context, studentID uint) (dto.ProposalEligibilityResponse, error)
	UploadFinalDeliverable(ctx context.Context, payload dto.DeliverableUploadRequest, file *multipart.FileHeader, actor Actor) (dto.DeliverableResponse, error)
	ListDeliverables(ctx context.Context, proposalID uint, includeHistory bool) ([]dto.DeliverableResponse, error)
	UnlockStatus(ctx context.Context, proposalID uint) (dto.UnlockStatusResponse, error)
}

type progressionService struct {
	prerequisites repository.PrerequisiteRepository
	proposals     repository.ProposalRepository
	evidences     repository.EvidenceRepository
	deliverables  repository.DeliverableRepository
	storage       FileStorage
	notifier      Notifier
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewProgressionService constructs the progression gate service.
func NewProgressionService(
	prerequisites repository.PrerequisiteRepository,
	proposals repository.ProposalRepository,
	evidences repository.EvidenceRepository,
	deliverables repository.DeliverableRepository,
	storage FileStorage,
	notifier Notifier,
	validate *validator.Validate,
	logger zerolog.Logger,
) ProgressionService {
	return &progressionService{
		prerequisites: prerequisites,
		proposals:     proposals,
		evidences:     evidences,
		deliverables:  deliverables,
		storage:       storage,
		notifier:      notifier,
		validator:     validate,
		logger:        logger.With().Str("component", "progression_service").Logger(),
		tracer:        otel.Tracer("github.com/uide-dev/titulacion-api/internal/service/progression"),
		now:           time.Now,
	}
}

func (s *progressionService) ListCatalog(ctx context.Context) ([]dto.PrerequisiteItemResponse, error) {
	items, err := s.prerequisites.ListItems(ctx, true)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.PrerequisiteItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.NewPrerequisiteItemResponse(item))
	}
	return responses, nil
}

func (s *progressionService) ListPrerequisites(ctx context.Context, studentID uint) ([]dto.PrerequisiteRecordResponse, error) {
	records, err := s.prerequisites.ListRecordsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return dto.NewPrerequisiteRecordResponseSlice(records), nil
}

func (s *progressionService) UploadPrerequisite(ctx context.Context, payload dto.PrerequisiteUploadRequest, file *multipart.FileHeader, actor Actor) (dto.PrerequisiteRecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PrerequisiteRecordResponse{}, err
	}

	if _, err := s.prerequisites.GetItem(ctx, payload.PrerequisiteID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PrerequisiteRecordResponse{}, ErrPrerequisiteNotFound
		}
		return dto.PrerequisiteRecordResponse{}, err
	}

	fileURL, err := storeDocument(ctx, s.storage, file)
	if err != nil {
		return dto.PrerequisiteRecordResponse{}, err
	}

	record := models.PrerequisiteRecord{
		StudentID:      actor.ID,
		PrerequisiteID: payload.PrerequisiteID,
		FileURL:        fileURL,
	}
	if err := s.prerequisites.UpsertRecord(ctx, &record); err != nil {
		return dto.PrerequisiteRecordResponse{}, err
	}

	return dto.NewPrerequisiteRecordResponse(record), nil
}

// ValidatePrerequisite is the staff decision that marks a record fulfilled or
// rejects it. Student uploads alone never flip the fulfilled flag.
func (s *progressionService) ValidatePrerequisite(ctx context.Context, studentID, prerequisiteID uint, payload dto.PrerequisiteValidateRequest, actor Actor) (dto.PrerequisiteRecordResponse, error) {
	record, err := s.prerequisites.GetRecord(ctx, studentID, prerequisiteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PrerequisiteRecordResponse{}, ErrPrerequisiteNotFound
		}
		return dto.PrerequisiteRecordResponse{}, err
	}

	record.Fulfilled = payload.Fulfilled
	if payload.Fulfilled {
		fulfilledAt := s.now()
		record.FulfilledAt = &fulfilledAt
	} else {
		record.FulfilledAt = nil
	}

	if err := s.prerequisites.UpdateRecord(ctx, &record); err != nil {
		return dto.PrerequisiteRecordResponse{}, err
	}

	if s.notifier != nil {
		message := "Tu requisito de titulación fue validado."
		if !payload.Fulfilled {
			message = "Tu requisito de titulación fue rechazado. Revisa el documento y vuelve a subirlo."
		}
		s.notifier.Notify(ctx, studentID, message)
	}

	s.logger.Info().
		Uint("student_id", studentID).
		Uint("prerequisite_id", prerequisiteID).
		Bool("fulfilled", payload.Fulfilled).
		Uint("actor_id", actor.ID).
		Msg("prerequisite validated")

	return dto.NewPrerequisiteRecordResponse(record), nil
}

// CheckCanCreateProposal reports whether every active prerequisite is
// fulfilled. Creation is allowed only when fulfilled == total and at least
// one prerequisite exists.
func (s *progressionService) CheckCanCreateProposal(ctx context.Context, studentID uint) (dto.ProposalEligibilityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "progression.can_create_proposal", trace.WithAttributes(
		attribute.Int64("progression.student_id", int64(studentID)),
	))
	defer span.End()

	total, err := s.prerequisites.CountActiveItems(ctx)
	if err != nil {
		span.RecordError(err)
		return dto.ProposalEligibilityResponse{}, err
	}

	fulfilled, err := s.prerequisites.CountFulfilled(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.ProposalEligibilityResponse{}, err
	}

	canCreate := total > 0 && fulfilled == total
	message := "Aún no cumple con todos los requisitos de titulación."
	if total == 0 {
		message = "No hay requisitos de titulación configurados."
	} else if canCreate {
		message = "Cumple con todos los requisitos para crear la propuesta."
	}

	span.SetAttributes(
		attribute.Int64("progression.fulfilled", fulfilled),
		attribute.Int64("progression.total", total),
		attribute.Bool("progression.can_create", canCreate),
	)

	return dto.ProposalEligibilityResponse{
		CanCreate:         canCreate,
		Fulfilled:         int(fulfilled),
		TotalRequirements: int(total),
		Message:           message,
	}, nil
}

// UploadFinalDeliverable stores a new version of a final document. The
// evidence threshold gates the upload; the previous active version is
// superseded atomically.
func (s *progressionService) UploadFinalDeliverable(ctx context.Context, payload dto.DeliverableUploadRequest, file *multipart.FileHeader, actor Actor) (dto.DeliverableResponse, error) {
	ctx, span := s.tracer.Start(ctx, "progression.upload_deliverable", trace.WithAttributes(
		attribute.Int64("progression.proposal_id", int64(payload.ProposalID)),
		attribute.String("progression.deliverable_type", payload.Type),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.DeliverableResponse{}, err
	}

	proposal, err := s.proposals.GetByID(ctx, payload.ProposalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DeliverableResponse{}, ErrProposalNotFound
		}
		span.RecordError(err)
		return dto.DeliverableResponse{}, err
	}
	if actor.Role == models.RoleStudent && proposal.StudentID != actor.ID {
		return dto.DeliverableResponse{}, ErrNotProposalOwner
	}

	approved, err := s.countApprovedEvidences(ctx, proposal.ID)
	if err != nil {
		span.RecordError(err)
		return dto.DeliverableResponse{}, err
	}
	if approved < models.WeeksPerTerm {
		span.SetStatus(codes.Error, "stage_locked")
		return dto.DeliverableResponse{}, ErrStageLocked
	}

	fileURL, err := storeDocument(ctx, s.storage, file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload_failed")
		return dto.DeliverableResponse{}, err
	}

	deliverable := models.Deliverable{
		ProposalID: proposal.ID,
		Type:       payload.Type,
		FileURL:    fileURL,
	}
	if err := s.deliverables.ReplaceActive(ctx, &deliverable); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "version_swap_failed")
		return dto.DeliverableResponse{}, err
	}

	span.SetAttributes(attribute.Int("progression.deliverable_version", deliverable.Version))
	s.logger.Info().
		Uint("proposal_id", proposal.ID).
		Str("type", deliverable.Type).
		Int("version", deliverable.Version).
		Msg("final deliverable uploaded")

	return dto.NewDeliverableResponse(deliverable), nil
}

func (s *progressionService) ListDeliverables(ctx context.Context, proposalID uint, includeHistory bool) ([]dto.DeliverableResponse, error) {
	deliverables, err := s.deliverables.ListByProposal(ctx, proposalID, !includeHistory)
	if err != nil {
		return nil, err
	}

	return dto.NewDeliverableResponseSlice(deliverables), nil
}

// UnlockStatus reports the evidence and deliverable conditions independently
// together with the combined defense-eligibility flag.
func (s *progressionService) UnlockStatus(ctx context.Context, proposalID uint) (dto.UnlockStatusResponse, error) {
	if _, err := s.proposals.GetByID(ctx, proposalID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UnlockStatusResponse{}, ErrProposalNotFound
		}
		return dto.UnlockStatusResponse{}, err
	}

	approved, err := s.countApprovedEvidences(ctx, proposalID)
	if err != nil {
		return dto.UnlockStatusResponse{}, err
	}

	missing := make([]string, 0, len(models.RequiredDeliverableTypes))
	for _, docType := range models.RequiredDeliverableTypes {
		if _, err := s.deliverables.GetActive(ctx, proposalID, docType); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				missing = append(missing, docType)
				continue
			}
			return dto.UnlockStatusResponse{}, err
		}
	}

	status := dto.UnlockStatusResponse{
		ProposalID:           proposalID,
		ApprovedEvidences:    approved,
		EvidenceComplete:     approved >= models.WeeksPerTerm,
		DeliverablesComplete: len(missing) == 0,
		MissingDeliverables:  missing,
	}
	status.Unlocked = status.EvidenceComplete && status.DeliverablesComplete

	return status, nil
}

func (s *progressionService) countApprovedEvidences(ctx context.Context, proposalID uint) (int, error) {
	evidences, err := s.evidences.ListByProposal(ctx, proposalID)
	if err != nil {
		return 0, err
	}

	approved := 0
	for _, evidence := range evidences {
		if evidence.TutorReviewStatus == models.ReviewStatusApproved {
			approved++
		}
	}
	return approved, nil
}
