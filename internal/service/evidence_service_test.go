package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/models"
	"github.com/uide-dev/titulacion-api/internal/repository"
)

func newEvidenceService(t *testing.T, db *gorm.DB, notifier Notifier) EvidenceService {
	t.Helper()
	return NewEvidenceService(
		repository.NewEvidenceRepository(db),
		repository.NewActivityRepository(db),
		repository.NewCommentRepository(db),
		&fakeStorage{},
		notifier,
		nil,
		testValidator(),
		0.5, 0.5,
		testLogger(),
	)
}

func TestEvidenceServiceSubmitRejectsWeekOutOfRange(t *testing.T) {
	db := setupServiceDB(t)
	proposal, student, _ := seedProposalWithTutor(t, db, "week-range")
	activity := models.Activity{ProposalID: proposal.ID, Name: "Avance", Type: models.ActivityTypeTutoring}
	require.NoError(t, db.Create(&activity).Error)

	svc := newEvidenceService(t, db, nil)

	_, err := svc.Submit(context.Background(), dto.EvidenceSubmitRequest{ActivityID: activity.ID, Week: 17}, nil, Actor{ID: student.ID, Role: models.RoleStudent})
	require.Error(t, err)

	_, err = svc.Submit(context.Background(), dto.EvidenceSubmitRequest{ActivityID: activity.ID, Week: 0}, nil, Actor{ID: student.ID, Role: models.RoleStudent})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Evidence{}).Where("activity_id = ?", activity.ID).Count(&count).Error)
	require.Zero(t, count, "no evidence may be created for an invalid week")
}

func TestEvidenceServiceSubmitNotifiesTutorAndFlagsActivity(t *testing.T) {
	db := setupServiceDB(t)
	proposal, student, tutor := seedProposalWithTutor(t, db, "submit")
	activity := models.Activity{ProposalID: proposal.ID, Name: "Marco teórico", Type: models.ActivityTypeTutoring}
	require.NoError(t, db.Create(&activity).Error)

	notifier := newFakeNotifier()
	svc := newEvidenceService(t, db, notifier)

	response, err := svc.Submit(context.Background(), dto.EvidenceSubmitRequest{
		ActivityID: activity.ID,
		Week:       4,
		Content:    "Avance del capítulo dos",
	}, nil, Actor{ID: student.ID, Role: models.RoleStudent})
	require.NoError(t, err)
	require.Equal(t, models.EvidenceStatusSubmitted, response.Status)
	require.Equal(t, 4, response.Week)

	var stored models.Activity
	require.NoError(t, db.First(&stored, activity.ID).Error)
	require.Equal(t, models.ActivityStatusSubmitted, stored.Status)

	require.NotEmpty(t, notifier.sent(tutor.ID), "tutor must be notified of the submission")
}

func TestEvidenceServiceCombinedScoreRequiresBothTracks(t *testing.T) {
	db := setupServiceDB(t)
	proposal, student, tutor := seedProposalWithTutor(t, db, "combined")
	instructor := seedUser(t, db, models.RoleInstructor, "instructor-combined")
	activity := models.Activity{ProposalID: proposal.ID, Name: "Capítulo 3", Type: models.ActivityTypeInstruction}
	require.NoError(t, db.Create(&activity).Error)

	svc := newEvidenceService(t, db, nil)

	submitted, err := svc.Submit(context.Background(), dto.EvidenceSubmitRequest{ActivityID: activity.ID, Week: 7}, nil, Actor{ID: student.ID, Role: models.RoleStudent})
	require.NoError(t, err)

	tutorScore := 8.0
	afterTutor, err := svc.GradeAsTutor(context.Background(), submitted.ID, dto.EvidenceGradeRequest{Score: &tutorScore, Feedback: "Bien estructurado"}, Actor{ID: tutor.ID, Role: models.RoleTutor})
	require.NoError(t, err)
	require.Nil(t, afterTutor.CombinedScore, "combined score stays undefined while one track is ungraded")
	require.Equal(t, models.ReviewStatusApproved, afterTutor.TutorReviewStatus)

	instructorScore := 9.0
	afterBoth, err := svc.GradeAsInstructor(context.Background(), submitted.ID, dto.EvidenceGradeRequest{Score: &instructorScore}, Actor{ID: instructor.ID, Role: models.RoleInstructor})
	require.NoError(t, err)
	require.NotNil(t, afterBoth.CombinedScore)
	require.InDelta(t, 8.5, *afterBoth.CombinedScore, 1e-9)
}

func TestEvidenceServiceGradeRejectsCrossRole(t *testing.T) {
	db := setupServiceDB(t)
	proposal, student, _ := seedProposalWithTutor(t, db, "cross-role")
	instructor := seedUser(t, db, models.RoleInstructor, "instructor-cross")
	activity := models.Activity{ProposalID: proposal.ID, Name: "Informe", Type: models.ActivityTypeTutoring}
	require.NoError(t, db.Create(&activity).Error)

	svc := newEvidenceService(t, db, nil)

	submitted, err := svc.Submit(context.Background(), dto.EvidenceSubmitRequest{ActivityID: activity.ID, Week: 2}, nil, Actor{ID: student.ID, Role: models.RoleStudent})
	require.NoError(t, err)

	score := 7.0
	_, err = svc.GradeAsTutor(context.Background(), submitted.ID, dto.EvidenceGradeRequest{Score: &score}, Actor{ID: instructor.ID, Role: models.RoleInstructor})
	require.ErrorIs(t, err, ErrWrongReviewTrack)

	_, err = svc.GradeAsInstructor(context.Background(), submitted.ID, dto.EvidenceGradeRequest{Score: &score}, Actor{ID: student.ID, Role: models.RoleStudent})
	require.ErrorIs(t, err, ErrWrongReviewTrack)
}

func TestEvidenceServiceGradeAppendsAuditCommentAndNotifies(t *testing.T) {
	db := setupServiceDB(t)
	proposal, student, tutor := seedProposalWithTutor(t, db, "audit")
	activity := models.Activity{ProposalID: proposal.ID, Name: "Resultados", Type: models.ActivityTypeTutoring}
	require.NoError(t, db.Create(&activity).Error)

	notifier := newFakeNotifier()
	svc := newEvidenceService(t, db, notifier)

	submitted, err := svc.Submit(context.Background(), dto.EvidenceSubmitRequest{ActivityID: activity.ID, Week: 9}, nil, Actor{ID: student.ID, Role: models.RoleStudent})
	require.NoError(t, err)

	score := 6.5
	_, err = svc.GradeAsTutor(context.Background(), submitted.ID, dto.EvidenceGradeRequest{Score: &score, Feedback: "Faltan referencias"}, Actor{ID: tutor.ID, Role: models.RoleTutor})
	require.NoError(t, err)

	var comments []models.ReviewComment
	require.NoError(t, db.Where("evidence_id = ?", submitted.ID).Find(&comments).Error)
	require.Len(t, comments, 1)
	require.Equal(t, "Faltan referencias", comments[0].Body)
	require.Equal(t, tutor.ID, comments[0].UserID)

	require.NotEmpty(t, notifier.sent(student.ID), "student must be notified of the grade")
}
