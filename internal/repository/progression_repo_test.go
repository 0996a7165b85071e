package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uide-dev/titulacion-api/internal/models"
)

func TestPrerequisiteRepositoryUpsertRecordRefreshesUpload(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPrerequisiteRepository(db)

	item := models.PrerequisiteItem{Name: "Certificación de inglés", Position: 1, Active: true}
	require.NoError(t, repo.CreateItem(context.Background(), &item))

	student := models.User{FirstName: "Pedro", LastName: "Yánez", Email: "pedro.yanez@uide.edu.ec", NationalID: "0923456789", Role: models.RoleStudent}
	require.NoError(t, db.Create(&student).Error)

	record := models.PrerequisiteRecord{StudentID: student.ID, PrerequisiteID: item.ID, FileURL: "https://cdn.example.com/ingles-v1.pdf"}
	require.NoError(t, repo.UpsertRecord(context.Background(), &record))
	firstID := record.ID
	require.NotZero(t, firstID)

	validatedAt := time.Now()
	record.Fulfilled = true
	record.FulfilledAt = &validatedAt
	require.NoError(t, repo.UpdateRecord(context.Background(), &record))

	replacement := models.PrerequisiteRecord{StudentID: student.ID, PrerequisiteID: item.ID, FileURL: "https://cdn.example.com/ingles-v2.pdf"}
	require.NoError(t, repo.UpsertRecord(context.Background(), &replacement))
	require.Equal(t, firstID, replacement.ID, "upsert must reuse the existing row")
	require.Equal(t, "https://cdn.example.com/ingles-v2.pdf", replacement.FileURL)
	require.False(t, replacement.Fulfilled, "a replacement document needs staff re-validation")
	require.Nil(t, replacement.FulfilledAt)

	var stored models.PrerequisiteRecord
	require.NoError(t, db.First(&stored, firstID).Error)
	require.False(t, stored.Fulfilled)
	require.Nil(t, stored.FulfilledAt)

	var total int64
	require.NoError(t, db.Model(&models.PrerequisiteRecord{}).Where("student_id = ?", student.ID).Count(&total).Error)
	require.Equal(t, int64(1), total)
}

func TestPrerequisiteRepositoryCountFulfilledIgnoresInactiveItems(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewPrerequisiteRepository(db)

	active := models.PrerequisiteItem{Name: "Prácticas preprofesionales", Position: 1, Active: true}
	inactive := models.PrerequisiteItem{Name: "Requisito retirado", Position: 2, Active: false}
	require.NoError(t, repo.CreateItem(context.Background(), &active))
	require.NoError(t, repo.CreateItem(context.Background(), &inactive))
	require.NoError(t, db.Model(&models.PrerequisiteItem{}).Where("id = ?", inactive.ID).Update("active", false).Error)

	student := models.User{FirstName: "Nadia", LastName: "Coba", Email: "nadia.coba@uide.edu.ec", NationalID: "1709876543", Role: models.RoleStudent}
	require.NoError(t, db.Create(&student).Error)

	for _, itemID := range []uint{active.ID, inactive.ID} {
		record := models.PrerequisiteRecord{StudentID: student.ID, PrerequisiteID: itemID, Fulfilled: true}
		require.NoError(t, db.Create(&record).Error)
	}

	fulfilled, err := repo.CountFulfilled(context.Background(), student.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), fulfilled)

	totalActive, err := repo.CountActiveItems(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), totalActive)
}

func TestDeliverableRepositoryReplaceActiveBumpsVersion(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewDeliverableRepository(db)

	proposal := seedProposal(t, db, "Versioned Thesis")

	v1 := models.Deliverable{ProposalID: proposal.ID, Type: models.DeliverableTypeThesis, FileURL: "https://cdn.example.com/tesis-v1.pdf"}
	require.NoError(t, repo.ReplaceActive(context.Background(), &v1))
	require.Equal(t, 1, v1.Version)
	require.True(t, v1.Active)

	v2 := models.Deliverable{ProposalID: proposal.ID, Type: models.DeliverableTypeThesis, FileURL: "https://cdn.example.com/tesis-v2.pdf"}
	require.NoError(t, repo.ReplaceActive(context.Background(), &v2))
	require.Equal(t, 2, v2.Version)
	require.True(t, v2.Active)

	var old models.Deliverable
	require.NoError(t, db.First(&old, v1.ID).Error)
	require.False(t, old.Active, "previous version must be deactivated")

	current, err := repo.GetActive(context.Background(), proposal.ID, models.DeliverableTypeThesis)
	require.NoError(t, err)
	require.Equal(t, v2.ID, current.ID)
}

func TestDeliverableRepositoryCountActiveByTypes(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewDeliverableRepository(db)

	proposal := seedProposal(t, db, "Deliverable Coverage")

	thesis := models.Deliverable{ProposalID: proposal.ID, Type: models.DeliverableTypeThesis, FileURL: "https://cdn.example.com/tesis.pdf"}
	manual := models.Deliverable{ProposalID: proposal.ID, Type: models.DeliverableTypeUserManual, FileURL: "https://cdn.example.com/manual.pdf"}
	require.NoError(t, repo.ReplaceActive(context.Background(), &thesis))
	require.NoError(t, repo.ReplaceActive(context.Background(), &manual))

	count, err := repo.CountActiveByTypes(context.Background(), proposal.ID, models.RequiredDeliverableTypes)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	article := models.Deliverable{ProposalID: proposal.ID, Type: models.DeliverableTypeArticle, FileURL: "https://cdn.example.com/articulo.pdf"}
	require.NoError(t, repo.ReplaceActive(context.Background(), &article))

	count, err = repo.CountActiveByTypes(context.Background(), proposal.ID, models.RequiredDeliverableTypes)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}
