package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/models"
)

func TestActivityRepositoryListByProposalOrdered(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewActivityRepository(db)

	proposal := seedProposal(t, db, "Ordered Activities")

	first := models.Activity{ProposalID: proposal.ID, Name: "Capítulo 1", Type: models.ActivityTypeTutoring, CreatedAt: time.Now().Add(-2 * time.Hour)}
	second := models.Activity{ProposalID: proposal.ID, Name: "Capítulo 2", Type: models.ActivityTypeInstruction, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)

	activities, err := repo.ListByProposalOrdered(context.Background(), proposal.ID)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.Equal(t, "Capítulo 1", activities[0].Name)
	require.Equal(t, "Capítulo 2", activities[1].Name)

	count, err := repo.CountByProposal(context.Background(), proposal.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestEvidenceRepositoryListByProposalJoinsThroughActivities(t *testing.T) {
	db := setupRepoTestDB(t)
	activityRepo := NewActivityRepository(db)
	evidenceRepo := NewEvidenceRepository(db)

	proposal := seedProposal(t, db, "Evidence Join")
	other := seedProposal(t, db, "Unrelated")

	activity := models.Activity{ProposalID: proposal.ID, Name: "Avance semanal", Type: models.ActivityTypeTutoring}
	unrelated := models.Activity{ProposalID: other.ID, Name: "Otra", Type: models.ActivityTypeTutoring}
	require.NoError(t, activityRepo.Create(context.Background(), &activity))
	require.NoError(t, activityRepo.Create(context.Background(), &unrelated))

	mine := models.Evidence{ActivityID: activity.ID, Week: 3, Status: models.EvidenceStatusSubmitted, SubmittedAt: time.Now()}
	theirs := models.Evidence{ActivityID: unrelated.ID, Week: 1, Status: models.EvidenceStatusSubmitted, SubmittedAt: time.Now()}
	require.NoError(t, evidenceRepo.Create(context.Background(), &mine))
	require.NoError(t, evidenceRepo.Create(context.Background(), &theirs))

	evidences, err := evidenceRepo.ListByProposal(context.Background(), proposal.ID)
	require.NoError(t, err)
	require.Len(t, evidences, 1)
	require.Equal(t, mine.ID, evidences[0].ID)
	require.Equal(t, 3, evidences[0].Week)

	count, err := evidenceRepo.CountByActivity(context.Background(), activity.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestEvidenceRepositoryPreloadsComments(t *testing.T) {
	db := setupRepoTestDB(t)
	evidenceRepo := NewEvidenceRepository(db)
	commentRepo := NewCommentRepository(db)

	proposal := seedProposal(t, db, "Comment Trail")
	activity := models.Activity{ProposalID: proposal.ID, Name: "Informe", Type: models.ActivityTypeInstruction}
	require.NoError(t, db.Create(&activity).Error)

	evidence := models.Evidence{ActivityID: activity.ID, Week: 5, Status: models.EvidenceStatusSubmitted, SubmittedAt: time.Now()}
	require.NoError(t, evidenceRepo.Create(context.Background(), &evidence))

	tutor := models.User{FirstName: "Laura", LastName: "Mera", Email: "laura.mera@uide.edu.ec", NationalID: "1712345678", Role: models.RoleTutor}
	require.NoError(t, db.Create(&tutor).Error)

	comment := models.ReviewComment{EvidenceID: evidence.ID, UserID: tutor.ID, Body: "Revisar la sección de resultados"}
	require.NoError(t, commentRepo.Create(context.Background(), &comment))

	stored, err := evidenceRepo.GetByID(context.Background(), evidence.ID)
	require.NoError(t, err)
	require.Len(t, stored.Comments, 1)
	require.Equal(t, "Revisar la sección de resultados", stored.Comments[0].Body)
	require.Equal(t, "Laura Mera", stored.Comments[0].User.FullName())
}

func seedProposal(t *testing.T, db *gorm.DB, title string) models.Proposal {
	t.Helper()

	student := models.User{FirstName: "Estudiante", LastName: title, Email: title + "@uide.edu.ec", NationalID: title, Role: models.RoleStudent}
	require.NoError(t, db.Create(&student).Error)

	proposal := models.Proposal{StudentID: student.ID, Title: title, Status: models.ProposalStatusApproved}
	require.NoError(t, db.Create(&proposal).Error)

	return proposal
}

func setupRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Proposal{},
		&models.Activity{},
		&models.Evidence{},
		&models.ReviewComment{},
		&models.PrerequisiteItem{},
		&models.PrerequisiteRecord{},
		&models.Deliverable{},
		&models.DefenseEvaluation{},
		&models.DefensePanelist{},
		&models.Notification{},
	))
	return db
}
