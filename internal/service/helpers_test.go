package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
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

func seedUser(t *testing.T, db *gorm.DB, role, tag string) models.User {
	t.Helper()
	user := models.User{
		FirstName:  "Test",
		LastName:   tag,
		Email:      fmt.Sprintf("%s@uide.edu.ec", tag),
		NationalID: tag,
		Role:       role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedProposalWithTutor(t *testing.T, db *gorm.DB, tag string) (models.Proposal, models.User, models.User) {
	t.Helper()
	student := seedUser(t, db, models.RoleStudent, "student-"+tag)
	tutor := seedUser(t, db, models.RoleTutor, "tutor-"+tag)
	proposal := models.Proposal{
		StudentID: student.ID,
		TutorID:   &tutor.ID,
		Title:     "Propuesta " + tag,
		Status:    models.ProposalStatusApproved,
	}
	require.NoError(t, db.Create(&proposal).Error)
	return proposal, student, tutor
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages map[uint][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{messages: make(map[uint][]string)}
}

func (f *fakeNotifier) Notify(_ context.Context, userID uint, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[userID] = append(f.messages[userID], message)
}

func (f *fakeNotifier) sent(userID uint) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[userID]
}

type fakeStorage struct {
	uploads int
}

func (f *fakeStorage) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	f.uploads++
	return "https://cdn.example.com/" + name, nil
}

type fakeUnlocks struct {
	unlocked bool
}

func (f *fakeUnlocks) UnlockStatus(_ context.Context, proposalID uint) (dto.UnlockStatusResponse, error) {
	return dto.UnlockStatusResponse{ProposalID: proposalID, Unlocked: f.unlocked}, nil
}
