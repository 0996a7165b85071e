package service

import (
	"context"
	"errors"
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
	"github.com/uide-dev/titulacion-api/internal/observability"
	"github.com/uide-dev/titulacion-api/internal/repository"
)

// ErrActivityNotFound indicates the activity was not located.
var ErrActivityNotFound = errors.New("activity not found")

// ErrProposalNotFound indicates the proposal was not located.
var ErrProposalNotFound = errors.New("proposal not found")

// ErrActivityLimitReached indicates the proposal already carries the maximum
// number of activities.
var ErrActivityLimitReached = errors.New("activity limit reached for proposal")

// zeroFillFeedback is the tutor feedback stamped on synthetic evidences.
const zeroFillFeedback = "No se registró entrega en el plazo establecido."

// ActivityService manages gradable activities and runs the deadline enforcer
// as a side effect of evidence listings.
type ActivityService interface {
	Create(ctx context.Context, payload dto.ActivityCreateRequest, actor Actor) (dto.ActivityResponse, error)
	Update(ctx context.Context, id uint, payload dto.ActivityUpdateRequest, actor Actor) (dto.ActivityResponse, error)
	Delete(ctx context.Context, id uint, actor Actor) error
	GetByID(ctx context.Context, id uint) (dto.ActivityResponse, error)
	List(ctx context.Context, filter dto.ActivityFilter) ([]dto.ActivityResponse, error)
	ListEvidence(ctx context.Context, activityID uint) ([]dto.EvidenceResponse, error)
}

type activityService struct {
	activities       repository.ActivityRepository
	evidences        repository.EvidenceRepository
	proposals        repository.ProposalRepository
	summaries        SummaryInvalidator
	validator        *validator.Validate
	logger           zerolog.Logger
	tracer           trace.Tracer
	locks            *keyedMutex
	tutorWeight      float64
	instructorWeight float64
	now              func() time.Time
}

// NewActivityService constructs the activity service.
func NewActivityService(
	activities repository.ActivityRepository,
	evidences repository.EvidenceRepository,
	proposals repository.ProposalRepository,
	summaries SummaryInvalidator,
	validate *validator.Validate,
	tutorWeight, instructorWeight float64,
	logger zerolog.Logger,
) ActivityService {
	return &activityService{
		activities:       activities,
		evidences:        evidences,
		proposals:        proposals,
		summaries:        summaries,
		validator:        validate,
		logger:           logger.With().Str("component", "activity_service").Logger(),
		tracer:           otel.Tracer("github.com/uide-dev/titulacion-api/internal/service/activity"),
		locks:            newKeyedMutex(),
		tutorWeight:      tutorWeight,
		instructorWeight: instructorWeight,
		now:              time.Now,
	}
}

func (s *activityService) Create(ctx context.Context, payload dto.ActivityCreateRequest, actor Actor) (dto.ActivityResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ActivityResponse{}, err
	}

	if _, err := s.proposals.GetByID(ctx, payload.ProposalID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityResponse{}, ErrProposalNotFound
		}
		return dto.ActivityResponse{}, err
	}

	count, err := s.activities.CountByProposal(ctx, payload.ProposalID)
	if err != nil {
		return dto.ActivityResponse{}, err
	}
	if count >= models.MaxActivitiesPerProposal {
		return dto.ActivityResponse{}, ErrActivityLimitReached
	}

	activatedAt := s.now()
	activity := models.Activity{
		ProposalID:    payload.ProposalID,
		Name:          payload.Name,
		Description:   payload.Description,
		Type:          payload.Type,
		Week:          payload.Week,
		ActivatedAt:   &activatedAt,
		DueAt:         payload.DueAt,
		RequiredItems: dto.EncodeRequiredItems(payload.RequiredItems),
		Status:        models.ActivityStatusNotSubmitted,
	}
	if err := s.activities.Create(ctx, &activity); err != nil {
		return dto.ActivityResponse{}, err
	}

	s.logger.Info().
		Uint("activity_id", activity.ID).
		Uint("proposal_id", activity.ProposalID).
		Str("type", activity.Type).
		Uint("actor_id", actor.ID).
		Msg("activity created")

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Update(ctx context.Context, id uint, payload dto.ActivityUpdateRequest, actor Actor) (dto.ActivityResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ActivityResponse{}, err
	}

	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityResponse{}, ErrActivityNotFound
		}
		return dto.ActivityResponse{}, err
	}

	if payload.Name != nil {
		activity.Name = *payload.Name
	}
	if payload.Description != nil {
		activity.Description = *payload.Description
	}
	if payload.Week != nil {
		activity.Week = payload.Week
	}
	if payload.DueAt != nil {
		activity.DueAt = payload.DueAt
	}
	if payload.RequiredItems != nil {
		activity.RequiredItems = dto.EncodeRequiredItems(payload.RequiredItems)
	}

	if err := s.activities.Update(ctx, &activity); err != nil {
		return dto.ActivityResponse{}, err
	}

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Delete(ctx context.Context, id uint, actor Actor) error {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrActivityNotFound
		}
		return err
	}

	if err := s.activities.Delete(ctx, activity.ID); err != nil {
		return err
	}

	s.logger.Info().Uint("activity_id", id).Uint("actor_id", actor.ID).Msg("activity deleted")
	return nil
}

func (s *activityService) GetByID(ctx context.Context, id uint) (dto.ActivityResponse, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityResponse{}, ErrActivityNotFound
		}
		return dto.ActivityResponse{}, err
	}

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) List(ctx context.Context, filter dto.ActivityFilter) ([]dto.ActivityResponse, error) {
	if filter.ProposalID != nil {
		activities, err := s.listWithEnforcement(ctx, *filter.ProposalID)
		if err != nil {
			return nil, err
		}

		filtered := activities[:0]
		for _, activity := range activities {
			if filter.Type != nil && activity.Type != *filter.Type {
				continue
			}
			if filter.Status != nil && activity.Status != *filter.Status {
				continue
			}
			filtered = append(filtered, activity)
		}
		return dto.NewActivityResponseSlice(filtered), nil
	}

	activities, err := s.activities.List(ctx, repository.ActivityFilter{Type: filter.Type, Status: filter.Status})
	if err != nil {
		return nil, err
	}

	return dto.NewActivityResponseSlice(activities), nil
}

// ListEvidence returns an activity's evidences. Listing is the trigger for
// deadline enforcement across the whole proposal.
func (s *activityService) ListEvidence(ctx context.Context, activityID uint) ([]dto.EvidenceResponse, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}

	if _, err := s.listWithEnforcement(ctx, activity.ProposalID); err != nil {
		return nil, err
	}

	evidences, err := s.evidences.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	return dto.NewEvidenceResponseSlice(evidences), nil
}

func (s *activityService) listWithEnforcement(ctx context.Context, proposalID uint) ([]models.Activity, error) {
	ctx, span := s.tracer.Start(ctx, "deadline.enforce", trace.WithAttributes(
		attribute.Int64("deadline.proposal_id", int64(proposalID)),
	))
	defer span.End()

	activities, err := s.activities.ListByProposalOrdered(ctx, proposalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	created := 0
	now := s.now()
	for i := range activities {
		activity := &activities[i]
		if !activity.IsOverdue(now) || len(activity.Evidences) > 0 {
			continue
		}

		evidence, ok, err := s.zeroFill(ctx, activity, i)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "zero_fill_failed")
			return nil, err
		}
		if ok {
			activity.Evidences = append(activity.Evidences, evidence)
			created++
		}
	}

	if created > 0 {
		span.SetAttributes(attribute.Int("deadline.zero_fills", created))
		if s.summaries != nil {
			s.summaries.Invalidate(ctx, proposalID)
		}
	}

	return activities, nil
}

// zeroFill creates the synthetic evidence for one overdue activity. The
// precondition is re-checked under the activity's lock so concurrent listings
// produce exactly one synthetic record.
func (s *activityService) zeroFill(ctx context.Context, activity *models.Activity, ordinal int) (models.Evidence, bool, error) {
	unlock := s.locks.lock(activity.ID)
	defer unlock()

	count, err := s.evidences.CountByActivity(ctx, activity.ID)
	if err != nil {
		return models.Evidence{}, false, err
	}
	if count > 0 {
		return models.Evidence{}, false, nil
	}

	week := ordinal + 1
	if activity.Week != nil {
		week = *activity.Week
	}

	zero := 0.0
	reviewedAt := s.now()
	evidence := models.Evidence{
		ActivityID:        activity.ID,
		Week:              week,
		Status:            models.EvidenceStatusNotSubmitted,
		TutorScore:        &zero,
		TutorFeedback:     zeroFillFeedback,
		TutorReviewStatus: models.ReviewStatusApproved,
		TutorReviewedAt:   &reviewedAt,
		TutorWeight:       s.tutorWeight,
		InstructorWeight:  s.instructorWeight,
		SubmittedAt:       reviewedAt,
	}
	if err := s.evidences.Create(ctx, &evidence); err != nil {
		return models.Evidence{}, false, err
	}

	observability.ZeroFillsCreated().Inc()
	s.logger.Info().
		Uint("activity_id", activity.ID).
		Int("week", week).
		Msg("synthetic zero evidence created for missed deadline")

	return evidence, true, nil
}
