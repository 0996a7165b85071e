package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/models"
	"github.com/uide-dev/titulacion-api/internal/repository"
)

func newProgressionService(t *testing.T, db *gorm.DB, notifier Notifier) ProgressionService {
	t.Helper()
	return NewProgressionService(
		repository.NewPrerequisiteRepository(db),
		repository.NewProposalRepository(db),
		repository.NewEvidenceRepository(db),
		repository.NewDeliverableRepository(db),
		&fakeStorage{},
		notifier,
		testValidator(),
		testLogger(),
	)
}

func seedApprovedEvidences(t *testing.T, db *gorm.DB, proposalID uint, weeks int) {
	t.Helper()
	activity := models.Activity{ProposalID: proposalID, Name: "Seguimiento semanal", Type: models.ActivityTypeTutoring}
	require.NoError(t, db.Create(&activity).Error)

	for week := 1; week <= weeks; week++ {
		score := 8.0
		reviewedAt := time.Now()
		evidence := models.Evidence{
			ActivityID:        activity.ID,
			Week:              week,
			Status:            models.EvidenceStatusSubmitted,
			TutorScore:        &score,
			TutorReviewStatus: models.ReviewStatusApproved,
			TutorReviewedAt:   &reviewedAt,
			SubmittedAt:       time.Now(),
		}
		require.NoError(t, db.Create(&evidence).Error)
	}
}

func seedActiveDeliverables(t *testing.T, db *gorm.DB, proposalID uint, types []string) {
	t.Helper()
	for _, docType := range types {
		deliverable := models.Deliverable{ProposalID: proposalID, Type: docType, FileURL: "https://cdn.example.com/" + docType, Version: 1, Active: true}
		require.NoError(t, db.Create(&deliverable).Error)
	}
}

func TestProgressionCheckCanCreateProposalRequiresEveryPrerequisite(t *testing.T) {
	db := setupServiceDB(t)
	student := seedUser(t, db, models.RoleStudent, "eligibility")

	items := make([]models.PrerequisiteItem, 0, 3)
	for i := 1; i <= 3; i++ {
		item := models.PrerequisiteItem{Name: fmt.Sprintf("Requisito %d", i), Position: i, Active: true}
		require.NoError(t, db.Create(&item).Error)
		items = append(items, item)
	}
	for _, item := range items[:2] {
		fulfilledAt := time.Now()
		record := models.PrerequisiteRecord{StudentID: student.ID, PrerequisiteID: item.ID, Fulfilled: true, FulfilledAt: &fulfilledAt}
		require.NoError(t, db.Create(&record).Error)
	}

	svc := newProgressionService(t, db, nil)

	partial, err := svc.CheckCanCreateProposal(context.Background(), student.ID)
	require.NoError(t, err)
	require.False(t, partial.CanCreate)
	require.Equal(t, 2, partial.Fulfilled)
	require.Equal(t, 3, partial.TotalRequirements)

	fulfilledAt := time.Now()
	record := models.PrerequisiteRecord{StudentID: student.ID, PrerequisiteID: items[2].ID, Fulfilled: true, FulfilledAt: &fulfilledAt}
	require.NoError(t, db.Create(&record).Error)

	complete, err := svc.CheckCanCreateProposal(context.Background(), student.ID)
	require.NoError(t, err)
	require.True(t, complete.CanCreate)
	require.Equal(t, 3, complete.Fulfilled)
}

func TestProgressionCheckCanCreateProposalWithEmptyCatalog(t *testing.T) {
	db := setupServiceDB(t)
	student := seedUser(t, db, models.RoleStudent, "empty-catalog")

	svc := newProgressionService(t, db, nil)

	result, err := svc.CheckCanCreateProposal(context.Background(), student.ID)
	require.NoError(t, err)
	require.False(t, result.CanCreate, "an empty catalog never authorizes creation")
	require.Zero(t, result.TotalRequirements)
}

func TestProgressionValidatePrerequisiteMarksFulfilled(t *testing.T) {
	db := setupServiceDB(t)
	student := seedUser(t, db, models.RoleStudent, "validate")
	staff := seedUser(t, db, models.RoleDirector, "validator")

	item := models.PrerequisiteItem{Name: "Certificación de inglés", Position: 1, Active: true}
	require.NoError(t, db.Create(&item).Error)
	record := models.PrerequisiteRecord{StudentID: student.ID, PrerequisiteID: item.ID, FileURL: "https://cdn.example.com/cert.pdf"}
	require.NoError(t, db.Create(&record).Error)

	notifier := newFakeNotifier()
	svc := newProgressionService(t, db, notifier)

	validated, err := svc.ValidatePrerequisite(context.Background(), student.ID, item.ID, dto.PrerequisiteValidateRequest{Fulfilled: true}, Actor{ID: staff.ID, Role: staff.Role})
	require.NoError(t, err)
	require.True(t, validated.Fulfilled)
	require.NotNil(t, validated.FulfilledAt)
	require.NotEmpty(t, notifier.sent(student.ID))
}

func TestProgressionUploadDeliverableGatedOnEvidenceThreshold(t *testing.T) {
	db := setupServiceDB(t)
	proposal, student, _ := seedProposalWithTutor(t, db, "gated-upload")
	seedApprovedEvidences(t, db, proposal.ID, 10)

	svc := newProgressionService(t, db, nil)

	_, err := svc.UploadFinalDeliverable(context.Background(), dto.DeliverableUploadRequest{
		ProposalID: proposal.ID,
		Type:       models.DeliverableTypeThesis,
	}, nil, Actor{ID: student.ID, Role: models.RoleStudent})
	require.ErrorIs(t, err, ErrStageLocked)
}

func TestProgressionUnlockStatusReportsConditionsIndependently(t *testing.T) {
	db := setupServiceDB(t)
	proposal, _, _ := seedProposalWithTutor(t, db, "unlock")
	seedApprovedEvidences(t, db, proposal.ID, 16)
	seedActiveDeliverables(t, db, proposal.ID, []string{models.DeliverableTypeThesis, models.DeliverableTypeUserManual})

	svc := newProgressionService(t, db, nil)

	status, err := svc.UnlockStatus(context.Background(), proposal.ID)
	require.NoError(t, err)
	require.Equal(t, 16, status.ApprovedEvidences)
	require.True(t, status.EvidenceComplete)
	require.False(t, status.DeliverablesComplete)
	require.Equal(t, []string{models.DeliverableTypeArticle}, status.MissingDeliverables)
	require.False(t, status.Unlocked)

	seedActiveDeliverables(t, db, proposal.ID, []string{models.DeliverableTypeArticle})

	unlocked, err := svc.UnlockStatus(context.Background(), proposal.ID)
	require.NoError(t, err)
	require.True(t, unlocked.DeliverablesComplete)
	require.True(t, unlocked.Unlocked)
}
