package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
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

// ErrEvidenceNotFound indicates the evidence was not located.
var ErrEvidenceNotFound = errors.New("evidence not found")

// ErrWeekOutOfRange indicates a week outside the academic term.
var ErrWeekOutOfRange = errors.New("week must be between 1 and 16")

// ErrWrongReviewTrack indicates the caller's role does not match the track
// being graded.
var ErrWrongReviewTrack = errors.New("caller role does not match review track")

// ErrNotProposalOwner indicates a student acting on another student's proposal.
var ErrNotProposalOwner = errors.New("proposal does not belong to the acting student")

// SummaryInvalidator drops cached weekly summaries after a ledger write.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, proposalID uint)
}

// EvidenceService encapsulates the weekly evidence ledger: submissions and
// the two independent grading tracks.
type EvidenceService interface {
	Submit(ctx context.Context, payload dto.EvidenceSubmitRequest, file *multipart.FileHeader, actor Actor) (dto.EvidenceResponse, error)
	GradeAsTutor(ctx context.Context, evidenceID uint, payload dto.EvidenceGradeRequest, actor Actor) (dto.EvidenceResponse, error)
	GradeAsInstructor(ctx context.Context, evidenceID uint, payload dto.EvidenceGradeRequest, actor Actor) (dto.EvidenceResponse, error)
	GetByID(ctx context.Context, id uint) (dto.EvidenceResponse, error)
}

type evidenceService struct {
	evidences        repository.EvidenceRepository
	activities       repository.ActivityRepository
	comments         repository.CommentRepository
	storage          FileStorage
	notifier         Notifier
	summaries        SummaryInvalidator
	validator        *validator.Validate
	logger           zerolog.Logger
	tracer           trace.Tracer
	tutorWeight      float64
	instructorWeight float64
	now              func() time.Time
}

// NewEvidenceService constructs the evidence ledger service. The reviewer
// weights are stamped onto each evidence at write time so historical grades
// survive later weight reconfiguration.
func NewEvidenceService(
	evidences repository.EvidenceRepository,
	activities repository.ActivityRepository,
	comments repository.CommentRepository,
	storage FileStorage,
	notifier Notifier,
	summaries SummaryInvalidator,
	validate *validator.Validate,
	tutorWeight, instructorWeight float64,
	logger zerolog.Logger,
) EvidenceService {
	return &evidenceService{
		evidences:        evidences,
		activities:       activities,
		comments:         comments,
		storage:          storage,
		notifier:         notifier,
		summaries:        summaries,
		validator:        validate,
		logger:           logger.With().Str("component", "evidence_service").Logger(),
		tracer:           otel.Tracer("github.com/uide-dev/titulacion-api/internal/service/evidence"),
		tutorWeight:      tutorWeight,
		instructorWeight: instructorWeight,
		now:              time.Now,
	}
}

func (s *evidenceService) Submit(ctx context.Context, payload dto.EvidenceSubmitRequest, file *multipart.FileHeader, actor Actor) (dto.EvidenceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evidence.submit", trace.WithAttributes(
		attribute.Int64("evidence.activity_id", int64(payload.ActivityID)),
		attribute.Int("evidence.week", payload.Week),
		attribute.Int64("evidence.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.EvidenceResponse{}, err
	}
	if payload.Week < models.MinEvidenceWeek || payload.Week > models.MaxEvidenceWeek {
		span.SetStatus(codes.Error, "week_out_of_range")
		return dto.EvidenceResponse{}, ErrWeekOutOfRange
	}

	activity, err := s.activities.GetByID(ctx, payload.ActivityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvidenceResponse{}, ErrActivityNotFound
		}
		span.RecordError(err)
		return dto.EvidenceResponse{}, err
	}

	if actor.Role == models.RoleStudent && activity.Proposal.StudentID != actor.ID {
		span.SetStatus(codes.Error, "not_owner")
		return dto.EvidenceResponse{}, ErrNotProposalOwner
	}

	fileURL := ""
	if file != nil {
		fileURL, err = storeDocument(ctx, s.storage, file)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upload_failed")
			return dto.EvidenceResponse{}, err
		}
	}

	evidence := models.Evidence{
		ActivityID:       activity.ID,
		Week:             payload.Week,
		Content:          strings.TrimSpace(payload.Content),
		FileURL:          fileURL,
		Status:           models.EvidenceStatusSubmitted,
		TutorWeight:      s.tutorWeight,
		InstructorWeight: s.instructorWeight,
		SubmittedAt:      s.now(),
	}
	if err := s.evidences.Create(ctx, &evidence); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence_failed")
		return dto.EvidenceResponse{}, err
	}

	if activity.Status != models.ActivityStatusSubmitted {
		activity.Status = models.ActivityStatusSubmitted
		if err := s.activities.Update(ctx, &activity); err != nil {
			s.logger.Warn().Err(err).Uint("activity_id", activity.ID).Msg("failed to flag activity as submitted")
			span.RecordError(err)
		}
	}

	if evidence.Content != "" {
		comment := models.ReviewComment{EvidenceID: evidence.ID, UserID: actor.ID, Body: evidence.Content}
		if err := s.comments.Create(ctx, &comment); err != nil {
			s.logger.Warn().Err(err).Uint("evidence_id", evidence.ID).Msg("failed to mirror submission note")
		}
	}

	if s.notifier != nil && activity.Proposal.TutorID != nil {
		message := fmt.Sprintf("Nueva evidencia de la semana %d en la actividad %q.", evidence.Week, activity.Name)
		s.notifier.Notify(ctx, *activity.Proposal.TutorID, message)
	}

	if s.summaries != nil {
		s.summaries.Invalidate(ctx, activity.ProposalID)
	}

	span.SetStatus(codes.Ok, "submitted")
	return dto.NewEvidenceResponse(evidence), nil
}

func (s *evidenceService) GradeAsTutor(ctx context.Context, evidenceID uint, payload dto.EvidenceGradeRequest, actor Actor) (dto.EvidenceResponse, error) {
	if actor.Role != models.RoleTutor {
		return dto.EvidenceResponse{}, ErrWrongReviewTrack
	}
	return s.grade(ctx, evidenceID, payload, actor, "tutor")
}

func (s *evidenceService) GradeAsInstructor(ctx context.Context, evidenceID uint, payload dto.EvidenceGradeRequest, actor Actor) (dto.EvidenceResponse, error) {
	if actor.Role != models.RoleInstructor {
		return dto.EvidenceResponse{}, ErrWrongReviewTrack
	}
	return s.grade(ctx, evidenceID, payload, actor, "instructor")
}

func (s *evidenceService) grade(ctx context.Context, evidenceID uint, payload dto.EvidenceGradeRequest, actor Actor, track string) (dto.EvidenceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evidence.grade", trace.WithAttributes(
		attribute.Int64("evidence.id", int64(evidenceID)),
		attribute.String("evidence.track", track),
		attribute.Int64("evidence.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.EvidenceResponse{}, err
	}

	evidence, err := s.evidences.GetByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "evidence_not_found")
			return dto.EvidenceResponse{}, ErrEvidenceNotFound
		}
		span.RecordError(err)
		return dto.EvidenceResponse{}, err
	}

	feedback := strings.TrimSpace(payload.Feedback)
	reviewedAt := s.now()

	switch track {
	case "tutor":
		evidence.TutorFeedback = feedback
		if payload.Score != nil {
			score := *payload.Score
			evidence.TutorScore = &score
			evidence.TutorReviewStatus = models.ReviewStatusApproved
			evidence.TutorReviewedAt = &reviewedAt
		} else {
			evidence.TutorScore = nil
			evidence.TutorReviewStatus = models.ReviewStatusPending
			evidence.TutorReviewedAt = nil
		}
	case "instructor":
		evidence.InstructorFeedback = feedback
		if payload.Score != nil {
			score := *payload.Score
			evidence.InstructorScore = &score
			evidence.InstructorReviewStatus = models.ReviewStatusApproved
			evidence.InstructorReviewedAt = &reviewedAt
		} else {
			evidence.InstructorScore = nil
			evidence.InstructorReviewStatus = models.ReviewStatusPending
			evidence.InstructorReviewedAt = nil
		}
	}

	evidence.TutorWeight = s.tutorWeight
	evidence.InstructorWeight = s.instructorWeight
	evidence.RecomputeCombined()

	if err := s.evidences.Update(ctx, &evidence); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence_failed")
		return dto.EvidenceResponse{}, err
	}

	if feedback != "" {
		comment := models.ReviewComment{EvidenceID: evidence.ID, UserID: actor.ID, Body: feedback}
		if err := s.comments.Create(ctx, &comment); err != nil {
			s.logger.Warn().Err(err).Uint("evidence_id", evidence.ID).Msg("failed to append review comment")
			span.RecordError(err)
		}
	}

	observability.EvidenceGraded().WithLabelValues(track).Inc()

	activity, err := s.activities.GetByID(ctx, evidence.ActivityID)
	if err == nil {
		if s.notifier != nil && payload.Score != nil {
			message := fmt.Sprintf("Tu evidencia de la semana %d fue calificada con %.2f.", evidence.Week, *payload.Score)
			s.notifier.Notify(ctx, activity.Proposal.StudentID, message)
		}
		if s.summaries != nil {
			s.summaries.Invalidate(ctx, activity.ProposalID)
		}
	} else {
		s.logger.Warn().Err(err).Uint("activity_id", evidence.ActivityID).Msg("failed to resolve activity after grading")
	}

	if evidence.CombinedScore != nil {
		span.SetAttributes(attribute.Float64("evidence.combined_score", *evidence.CombinedScore))
	}
	span.SetStatus(codes.Ok, "graded")

	return dto.NewEvidenceResponse(evidence), nil
}

func (s *evidenceService) GetByID(ctx context.Context, id uint) (dto.EvidenceResponse, error) {
	evidence, err := s.evidences.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvidenceResponse{}, ErrEvidenceNotFound
		}
		return dto.EvidenceResponse{}, err
	}

	return dto.NewEvidenceResponse(evidence), nil
}
