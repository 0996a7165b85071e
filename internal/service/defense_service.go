package service

import (
	"context"
	"errors"
	"fmt"
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

// ErrDefenseNotFound indicates the evaluation was not located.
var ErrDefenseNotFound = errors.New("defense evaluation not found")

// ErrDefenseAlreadyExists indicates a duplicate evaluation for the proposal.
var ErrDefenseAlreadyExists = errors.New("defense evaluation already exists")

// ErrPrivateDefenseNotApproved indicates the public phase is still gated.
var ErrPrivateDefenseNotApproved = errors.New("private defense not approved")

// ErrNotPanelEligible indicates the target user's role cannot sit on a panel.
var ErrNotPanelEligible = errors.New("user role not eligible for panel")

// ErrNotPanelParticipant indicates the caller is not on the evaluation panel.
var ErrNotPanelParticipant = errors.New("caller is not a panel participant")

// ErrInvalidFinalState indicates a finalize payload outside {APROBADA, RECHAZADA}.
var ErrInvalidFinalState = errors.New("final state must be APROBADA or RECHAZADA")

// UnlockChecker reports defense eligibility for a proposal.
type UnlockChecker interface {
	UnlockStatus(ctx context.Context, proposalID uint) (dto.UnlockStatusResponse, error)
}

// Mailer delivers best-effort emails. A nil Mailer disables the channel.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// DefenseService drives the two-phase defense lifecycle: scheduling, panel
// membership, per-juror scoring, averaging and stage unlocking.
type DefenseService interface {
	Create(ctx context.Context, payload dto.DefenseCreateRequest, actor Actor) (dto.DefenseResponse, error)
	AddParticipant(ctx context.Context, evaluationID uint, payload dto.PanelistAssignRequest, actor Actor) (dto.DefenseResponse, error)
	Score(ctx context.Context, evaluationID uint, payload dto.PanelistScoreRequest, actor Actor) (dto.DefenseResponse, error)
	Finalize(ctx context.Context, evaluationID uint, payload dto.DefenseFinalizeRequest, actor Actor) (dto.DefenseResponse, error)
	UpdateSchedule(ctx context.Context, evaluationID uint, payload dto.DefenseScheduleRequest, actor Actor) (dto.DefenseResponse, error)
	GetByProposal(ctx context.Context, proposalID uint) ([]dto.DefenseResponse, error)
	ListForJuror(ctx context.Context, actor Actor) ([]dto.DefenseResponse, error)
}

type defenseService struct {
	defenses  repository.DefenseRepository
	proposals repository.ProposalRepository
	users     repository.UserRepository
	unlocks   UnlockChecker
	notifier  Notifier
	mailer    Mailer
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	locks     *keyedMutex
	now       func() time.Time
}

// NewDefenseService constructs the defense state machine service.
func NewDefenseService(
	defenses repository.DefenseRepository,
	proposals repository.ProposalRepository,
	users repository.UserRepository,
	unlocks UnlockChecker,
	notifier Notifier,
	mailer Mailer,
	validate *validator.Validate,
	logger zerolog.Logger,
) DefenseService {
	return &defenseService{
		defenses:  defenses,
		proposals: proposals,
		users:     users,
		unlocks:   unlocks,
		notifier:  notifier,
		mailer:    mailer,
		validator: validate,
		logger:    logger.With().Str("component", "defense_service").Logger(),
		tracer:    otel.Tracer("github.com/uide-dev/titulacion-api/internal/service/defense"),
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// Create opens a defense evaluation. The private phase requires the
// progression gate to be fully unlocked and seeds the dependent public slot
// in BLOQUEADA; the public phase requires an approved private evaluation and
// claims the blocked slot.
func (s *defenseService) Create(ctx context.Context, payload dto.DefenseCreateRequest, actor Actor) (dto.DefenseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "defense.create", trace.WithAttributes(
		attribute.Int64("defense.proposal_id", int64(payload.ProposalID)),
		attribute.String("defense.kind", payload.Kind),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}

	proposal, err := s.proposals.GetByID(ctx, payload.ProposalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DefenseResponse{}, ErrProposalNotFound
		}
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}

	var evaluation models.DefenseEvaluation
	switch payload.Kind {
	case models.DefenseKindPrivate:
		evaluation, err = s.createPrivate(ctx, proposal, payload)
	case models.DefenseKindPublic:
		evaluation, err = s.createPublic(ctx, proposal, payload)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create_rejected")
		return dto.DefenseResponse{}, err
	}

	s.notifyStudent(ctx, proposal, fmt.Sprintf("Se registró tu defensa %s.", kindLabel(payload.Kind)))
	s.emailStudent(ctx, proposal, "Defensa de titulación registrada", s.scheduleBody(evaluation))

	span.SetStatus(codes.Ok, "created")
	return s.response(ctx, evaluation.ID)
}

func (s *defenseService) createPrivate(ctx context.Context, proposal models.Proposal, payload dto.DefenseCreateRequest) (models.DefenseEvaluation, error) {
	if _, err := s.defenses.GetByProposalAndKind(ctx, proposal.ID, models.DefenseKindPrivate); err == nil {
		return models.DefenseEvaluation{}, ErrDefenseAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefenseEvaluation{}, err
	}

	if s.unlocks != nil {
		status, err := s.unlocks.UnlockStatus(ctx, proposal.ID)
		if err != nil {
			return models.DefenseEvaluation{}, err
		}
		if !status.Unlocked {
			return models.DefenseEvaluation{}, ErrStageLocked
		}
	}

	evaluation := models.DefenseEvaluation{
		ProposalID: proposal.ID,
		Kind:       models.DefenseKindPrivate,
		Date:       payload.Date,
		Time:       payload.Time,
		Room:       payload.Room,
		Status:     models.DefenseStatusPending,
	}
	if payload.Date != nil {
		evaluation.Status = models.DefenseStatusScheduled
	}
	if err := s.defenses.Create(ctx, &evaluation); err != nil {
		return models.DefenseEvaluation{}, err
	}

	blocked := models.DefenseEvaluation{
		ProposalID: proposal.ID,
		Kind:       models.DefenseKindPublic,
		Status:     models.DefenseStatusBlocked,
	}
	if err := s.defenses.Create(ctx, &blocked); err != nil {
		s.logger.Warn().Err(err).Uint("proposal_id", proposal.ID).Msg("failed to seed blocked public defense slot")
	}

	return evaluation, nil
}

func (s *defenseService) createPublic(ctx context.Context, proposal models.Proposal, payload dto.DefenseCreateRequest) (models.DefenseEvaluation, error) {
	private, err := s.defenses.GetByProposalAndKind(ctx, proposal.ID, models.DefenseKindPrivate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DefenseEvaluation{}, ErrPrivateDefenseNotApproved
		}
		return models.DefenseEvaluation{}, err
	}
	if !private.IsApproved() {
		return models.DefenseEvaluation{}, ErrPrivateDefenseNotApproved
	}

	existing, err := s.defenses.GetByProposalAndKind(ctx, proposal.ID, models.DefenseKindPublic)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		evaluation := models.DefenseEvaluation{
			ProposalID: proposal.ID,
			Kind:       models.DefenseKindPublic,
			Date:       payload.Date,
			Time:       payload.Time,
			Room:       payload.Room,
			Status:     models.DefenseStatusPending,
		}
		if payload.Date != nil {
			evaluation.Status = models.DefenseStatusScheduled
		}
		if err := s.defenses.Create(ctx, &evaluation); err != nil {
			return models.DefenseEvaluation{}, err
		}
		return evaluation, nil
	case err != nil:
		return models.DefenseEvaluation{}, err
	case existing.Status == models.DefenseStatusBlocked || existing.Status == models.DefenseStatusPending:
		// Claim the seeded slot instead of duplicating the row.
		existing.Date = payload.Date
		existing.Time = payload.Time
		existing.Room = payload.Room
		existing.Status = models.DefenseStatusPending
		if payload.Date != nil {
			existing.Status = models.DefenseStatusScheduled
		}
		if err := s.defenses.Update(ctx, &existing); err != nil {
			return models.DefenseEvaluation{}, err
		}
		return existing, nil
	default:
		return models.DefenseEvaluation{}, ErrDefenseAlreadyExists
	}
}

// AddParticipant assigns a juror. The stored panel type always comes from
// the user directory, never from the request.
func (s *defenseService) AddParticipant(ctx context.Context, evaluationID uint, payload dto.PanelistAssignRequest, actor Actor) (dto.DefenseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "defense.add_participant", trace.WithAttributes(
		attribute.Int64("defense.evaluation_id", int64(evaluationID)),
		attribute.Int64("defense.target_user_id", int64(payload.UserID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}

	evaluation, err := s.getEvaluation(ctx, evaluationID)
	if err != nil {
		return dto.DefenseResponse{}, err
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DefenseResponse{}, ErrNotPanelEligible
		}
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}
	if !models.IsPanelEligibleRole(user.Role) {
		span.SetStatus(codes.Error, "role_not_eligible")
		return dto.DefenseResponse{}, ErrNotPanelEligible
	}

	panelist := models.DefensePanelist{
		EvaluationID: evaluation.ID,
		UserID:       user.ID,
		Type:         user.Role,
		RoleLabel:    payload.RoleLabel,
	}
	if err := s.defenses.UpsertPanelist(ctx, &panelist); err != nil {
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}

	s.notifyStudent(ctx, evaluation.Proposal, fmt.Sprintf("Se asignó a %s al tribunal de tu defensa %s.", user.FullName(), kindLabel(evaluation.Kind)))
	if s.notifier != nil {
		s.notifier.Notify(ctx, user.ID, fmt.Sprintf("Fuiste asignado al tribunal de la defensa %s de %q.", kindLabel(evaluation.Kind), evaluation.Proposal.Title))
	}
	if evaluation.IsScheduled() {
		s.email(ctx, user.Email, "Asignación a tribunal de defensa", s.scheduleBody(evaluation))
	}

	return s.response(ctx, evaluation.ID)
}

// Score records the calling juror's own score. When the write completes the
// full panel is re-read under the evaluation's lock; once every juror has
// scored, the mean decides the evaluation.
func (s *defenseService) Score(ctx context.Context, evaluationID uint, payload dto.PanelistScoreRequest, actor Actor) (dto.DefenseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "defense.score", trace.WithAttributes(
		attribute.Int64("defense.evaluation_id", int64(evaluationID)),
		attribute.Int64("defense.actor_id", int64(actor.ID)),
		attribute.Float64("defense.score", payload.Score),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}

	evaluation, err := s.getEvaluation(ctx, evaluationID)
	if err != nil {
		return dto.DefenseResponse{}, err
	}

	panelist, err := s.defenses.GetPanelist(ctx, evaluation.ID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "not_participant")
			return dto.DefenseResponse{}, ErrNotPanelParticipant
		}
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}

	unlock := s.locks.lock(evaluation.ID)
	defer unlock()

	score := payload.Score
	panelist.Score = &score
	panelist.Comment = payload.Comment
	if err := s.defenses.UpdatePanelist(ctx, &panelist); err != nil {
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}
	observability.DefenseScores().WithLabelValues(evaluation.Kind).Inc()

	if err := s.aggregate(ctx, &evaluation, span); err != nil {
		return dto.DefenseResponse{}, err
	}

	return s.response(ctx, evaluation.ID)
}

// aggregate re-reads the panel and, when complete, decides the evaluation.
// Callers must hold the evaluation's lock.
func (s *defenseService) aggregate(ctx context.Context, evaluation *models.DefenseEvaluation, span trace.Span) error {
	panelists, err := s.defenses.ListPanelists(ctx, evaluation.ID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if len(panelists) == 0 {
		return nil
	}

	var sum float64
	for _, panelist := range panelists {
		if panelist.Score == nil {
			return nil
		}
		sum += *panelist.Score
	}

	mean := sum / float64(len(panelists))
	evaluatedAt := s.now()
	evaluation.Score = &mean
	evaluation.EvaluatedAt = &evaluatedAt
	if mean >= models.DefensePassingScore {
		evaluation.Status = models.DefenseStatusApproved
	} else {
		evaluation.Status = models.DefenseStatusRejected
	}

	if err := s.defenses.Update(ctx, evaluation); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.Float64("defense.aggregate", mean),
		attribute.String("defense.outcome", evaluation.Status),
	)
	observability.DefensesDecided().WithLabelValues(evaluation.Kind, evaluation.Status).Inc()

	return s.applyOutcome(ctx, *evaluation)
}

// applyOutcome propagates a terminal state: an approved private defense
// unblocks the public slot; a decided public defense writes the final result
// onto the proposal.
func (s *defenseService) applyOutcome(ctx context.Context, evaluation models.DefenseEvaluation) error {
	proposal, err := s.proposals.GetByID(ctx, evaluation.ProposalID)
	if err != nil {
		return err
	}

	switch evaluation.Kind {
	case models.DefenseKindPrivate:
		if evaluation.Status != models.DefenseStatusApproved {
			s.notifyStudent(ctx, proposal, "Tu defensa privada fue rechazada.")
			return nil
		}

		public, err := s.defenses.GetByProposalAndKind(ctx, evaluation.ProposalID, models.DefenseKindPublic)
		if err == nil && public.Status == models.DefenseStatusBlocked {
			public.Status = models.DefenseStatusPending
			if err := s.defenses.Update(ctx, &public); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		s.notifyStudent(ctx, proposal, "Tu defensa privada fue aprobada. La defensa pública está habilitada.")

	case models.DefenseKindPublic:
		result := models.DefenseResultFailed
		message := "Tu defensa pública fue reprobada."
		if evaluation.Status == models.DefenseStatusApproved {
			result = models.DefenseResultPassed
			message = "Felicitaciones, tu defensa pública fue aprobada."
		}
		proposal.DefenseResult = &result
		if err := s.proposals.Update(ctx, &proposal); err != nil {
			return err
		}
		s.notifyStudent(ctx, proposal, message)
	}

	return nil
}

// Finalize is the administrative override: it sets the terminal state
// directly, bypassing averaging, with the same unlock side effects.
func (s *defenseService) Finalize(ctx context.Context, evaluationID uint, payload dto.DefenseFinalizeRequest, actor Actor) (dto.DefenseResponse, error) {
	ctx, span := s.tracer.Start(ctx, "defense.finalize", trace.WithAttributes(
		attribute.Int64("defense.evaluation_id", int64(evaluationID)),
		attribute.String("defense.final_state", payload.Status),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}
	if payload.Status != models.DefenseStatusApproved && payload.Status != models.DefenseStatusRejected {
		return dto.DefenseResponse{}, ErrInvalidFinalState
	}

	evaluation, err := s.getEvaluation(ctx, evaluationID)
	if err != nil {
		return dto.DefenseResponse{}, err
	}

	unlock := s.locks.lock(evaluation.ID)
	defer unlock()

	evaluatedAt := s.now()
	evaluation.Status = payload.Status
	evaluation.Comments = payload.Comments
	evaluation.EvaluatedAt = &evaluatedAt
	if err := s.defenses.Update(ctx, &evaluation); err != nil {
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}
	observability.DefensesDecided().WithLabelValues(evaluation.Kind, evaluation.Status).Inc()

	if err := s.applyOutcome(ctx, evaluation); err != nil {
		span.RecordError(err)
		return dto.DefenseResponse{}, err
	}

	s.logger.Info().
		Uint("evaluation_id", evaluation.ID).
		Str("kind", evaluation.Kind).
		Str("state", evaluation.Status).
		Uint("actor_id", actor.ID).
		Msg("defense finalized administratively")

	return s.response(ctx, evaluation.ID)
}

// UpdateSchedule changes date, time or room and re-notifies the student and
// every current participant.
func (s *defenseService) UpdateSchedule(ctx context.Context, evaluationID uint, payload dto.DefenseScheduleRequest, actor Actor) (dto.DefenseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DefenseResponse{}, err
	}

	evaluation, err := s.getEvaluation(ctx, evaluationID)
	if err != nil {
		return dto.DefenseResponse{}, err
	}

	evaluation.Date = payload.Date
	if payload.Time != "" {
		evaluation.Time = payload.Time
	}
	if payload.Room != "" {
		evaluation.Room = payload.Room
	}
	if evaluation.Status == models.DefenseStatusPending {
		evaluation.Status = models.DefenseStatusScheduled
	}
	if err := s.defenses.Update(ctx, &evaluation); err != nil {
		return dto.DefenseResponse{}, err
	}

	body := s.scheduleBody(evaluation)
	s.notifyStudent(ctx, evaluation.Proposal, fmt.Sprintf("Se actualizó el horario de tu defensa %s.", kindLabel(evaluation.Kind)))
	s.emailStudent(ctx, evaluation.Proposal, "Horario de defensa actualizado", body)

	panelists, err := s.defenses.ListPanelists(ctx, evaluation.ID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("evaluation_id", evaluation.ID).Msg("failed to list panelists for reschedule notice")
	} else {
		for _, panelist := range panelists {
			if s.notifier != nil {
				s.notifier.Notify(ctx, panelist.UserID, fmt.Sprintf("Se actualizó el horario de la defensa %s de %q.", kindLabel(evaluation.Kind), evaluation.Proposal.Title))
			}
			s.email(ctx, panelist.User.Email, "Horario de defensa actualizado", body)
		}
	}

	return s.response(ctx, evaluation.ID)
}

func (s *defenseService) GetByProposal(ctx context.Context, proposalID uint) ([]dto.DefenseResponse, error) {
	evaluations, err := s.defenses.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	return dto.NewDefenseResponseSlice(evaluations), nil
}

func (s *defenseService) ListForJuror(ctx context.Context, actor Actor) ([]dto.DefenseResponse, error) {
	evaluations, err := s.defenses.ListForJuror(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	return dto.NewDefenseResponseSlice(evaluations), nil
}

func (s *defenseService) getEvaluation(ctx context.Context, id uint) (models.DefenseEvaluation, error) {
	evaluation, err := s.defenses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DefenseEvaluation{}, ErrDefenseNotFound
		}
		return models.DefenseEvaluation{}, err
	}
	return evaluation, nil
}

func (s *defenseService) response(ctx context.Context, id uint) (dto.DefenseResponse, error) {
	evaluation, err := s.defenses.GetByID(ctx, id)
	if err != nil {
		return dto.DefenseResponse{}, err
	}
	return dto.NewDefenseResponse(evaluation), nil
}

func (s *defenseService) notifyStudent(ctx context.Context, proposal models.Proposal, message string) {
	if s.notifier == nil || proposal.StudentID == 0 {
		return
	}
	s.notifier.Notify(ctx, proposal.StudentID, message)
}

func (s *defenseService) emailStudent(ctx context.Context, proposal models.Proposal, subject, body string) {
	if proposal.Student.Email == "" {
		return
	}
	s.email(ctx, proposal.Student.Email, subject, body)
}

func (s *defenseService) email(ctx context.Context, to, subject, body string) {
	if s.mailer == nil || to == "" {
		return
	}
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		s.logger.Warn().Err(err).Str("to", to).Msg("failed to send defense email")
	}
	observability.NotificationsPublished().WithLabelValues("email").Inc()
}

func (s *defenseService) scheduleBody(evaluation models.DefenseEvaluation) string {
	if evaluation.Date == nil {
		return "La defensa aún no tiene fecha asignada."
	}
	body := fmt.Sprintf("Fecha: %s", evaluation.Date.Format("2006-01-02"))
	if evaluation.Time != "" {
		body += fmt.Sprintf(", hora: %s", evaluation.Time)
	}
	if evaluation.Room != "" {
		body += fmt.Sprintf(", aula: %s", evaluation.Room)
	}
	return body
}

func kindLabel(kind string) string {
	if kind == models.DefenseKindPublic {
		return "pública"
	}
	return "privada"
}
