package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uide-dev/titulacion-api/internal/config"
	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/handler"
	"github.com/uide-dev/titulacion-api/internal/middleware"
	"github.com/uide-dev/titulacion-api/internal/models"
	"github.com/uide-dev/titulacion-api/internal/repository"
	"github.com/uide-dev/titulacion-api/internal/router"
	"github.com/uide-dev/titulacion-api/internal/service"
)

const e2eSecret = "integration-secret"

type integrationUploader struct{}

func (integrationUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + name, nil
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	userRepo := repository.NewUserRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	prerequisiteRepo := repository.NewPrerequisiteRepository(db)
	deliverableRepo := repository.NewDeliverableRepository(db)
	defenseRepo := repository.NewDefenseRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	uploader := integrationUploader{}

	notificationService := service.NewNotificationService(notificationRepo, nil, "", nil, validate, logger)
	summaryService := service.NewSummaryService(proposalRepo, evidenceRepo, nil, time.Minute, logger)
	evidenceService := service.NewEvidenceService(evidenceRepo, activityRepo, commentRepo, uploader, notificationService, summaryService, validate, 0.5, 0.5, logger)
	activityService := service.NewActivityService(activityRepo, evidenceRepo, proposalRepo, summaryService, validate, 0.5, 0.5, logger)
	progressionService := service.NewProgressionService(prerequisiteRepo, proposalRepo, evidenceRepo, deliverableRepo, uploader, notificationService, validate, logger)
	defenseService := service.NewDefenseService(defenseRepo, proposalRepo, userRepo, progressionService, notificationService, nil, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Titulacion Test", JWTSecret: e2eSecret}, router.Dependencies{
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		EvidenceHandler:     handler.NewEvidenceHandler(evidenceService, summaryService, logger),
		ProgressionHandler:  handler.NewProgressionHandler(progressionService, logger),
		DefenseHandler:      handler.NewDefenseHandler(defenseService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, time.Second),
		JWTMiddleware:       middleware.JWTProtected(e2eSecret),
	})

	return app, db
}

func bearerToken(t *testing.T, userID uint, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  float64(userID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(e2eSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func seedUser(t *testing.T, db *gorm.DB, role, tag string) models.User {
	t.Helper()
	user := models.User{FirstName: "E2E", LastName: tag, Email: tag + "@uide.edu.ec", NationalID: tag, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func decodeEnvelope(t *testing.T, resp *http.Response, data interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success, envelope.Message)
	if data != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
}

func TestWeeklyGradingFlowEndToEnd(t *testing.T) {
	app, db := setupApp(t)

	student := seedUser(t, db, models.RoleStudent, "student")
	tutor := seedUser(t, db, models.RoleTutor, "tutor")
	director := seedUser(t, db, models.RoleDirector, "director")

	proposal := models.Proposal{StudentID: student.ID, TutorID: &tutor.ID, Title: "Sistema de gestión académica", Status: models.ProposalStatusApproved}
	require.NoError(t, db.Create(&proposal).Error)

	// Director registers the weekly activity.
	createBody, err := json.Marshal(dto.ActivityCreateRequest{
		ProposalID: proposal.ID,
		Name:       "Avance semana 1",
		Type:       models.ActivityTypeTutoring,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, director.ID, models.RoleDirector))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var activity dto.ActivityResponse
	decodeEnvelope(t, resp, &activity)

	// A student must not be able to register activities.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/activities", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, student.ID, models.RoleStudent))

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Student submits evidence for week 1.
	form := &bytes.Buffer{}
	writer := multipart.NewWriter(form)
	require.NoError(t, writer.WriteField("activity_id", strconv.FormatUint(uint64(activity.ID), 10)))
	require.NoError(t, writer.WriteField("week", "1"))
	require.NoError(t, writer.WriteField("content", "Avance inicial del marco teórico"))
	require.NoError(t, writer.Close())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/evidences", form)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", bearerToken(t, student.ID, models.RoleStudent))

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var evidence dto.EvidenceResponse
	decodeEnvelope(t, resp, &evidence)
	require.Equal(t, models.EvidenceStatusSubmitted, evidence.Status)

	// Tutor grades the tutoring track.
	score := 8.0
	gradeBody, err := json.Marshal(dto.EvidenceGradeRequest{Score: &score, Feedback: "Buen avance"})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/evidences/"+strconv.FormatUint(uint64(evidence.ID), 10)+"/tutor-review", bytes.NewReader(gradeBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, tutor.ID, models.RoleTutor))

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var graded dto.EvidenceResponse
	decodeEnvelope(t, resp, &graded)
	require.Equal(t, models.ReviewStatusApproved, graded.TutorReviewStatus)
	require.Nil(t, graded.CombinedScore)

	// The student must not grade either track.
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/evidences/"+strconv.FormatUint(uint64(evidence.ID), 10)+"/tutor-review", bytes.NewReader(gradeBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, student.ID, models.RoleStudent))

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The weekly summary places the entry in slot one.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/evidences/summary/"+strconv.FormatUint(uint64(proposal.ID), 10), nil)
	req.Header.Set("Authorization", bearerToken(t, tutor.ID, models.RoleTutor))

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var summary dto.WeeklySummaryResponse
	decodeEnvelope(t, resp, &summary)
	require.Len(t, summary.Weeks, 16)
	require.Len(t, summary.Weeks[0].Entries, 1)
}

func TestDefenseLifecycleEndToEnd(t *testing.T) {
	app, db := setupApp(t)

	student := seedUser(t, db, models.RoleStudent, "defense-student")
	coordinator := seedUser(t, db, models.RoleCoordinator, "coordinator")
	jurorA := seedUser(t, db, models.RoleTutor, "juror-a")
	jurorB := seedUser(t, db, models.RoleCommittee, "juror-b")

	proposal := models.Proposal{StudentID: student.ID, Title: "Plataforma de titulación", Status: models.ProposalStatusApproved}
	require.NoError(t, db.Create(&proposal).Error)

	// Satisfy the progression gate directly in the store.
	activity := models.Activity{ProposalID: proposal.ID, Name: "Seguimiento", Type: models.ActivityTypeTutoring}
	require.NoError(t, db.Create(&activity).Error)
	for week := 1; week <= 16; week++ {
		tutorScore := 8.0
		reviewedAt := time.Now()
		require.NoError(t, db.Create(&models.Evidence{
			ActivityID:        activity.ID,
			Week:              week,
			Status:            models.EvidenceStatusSubmitted,
			TutorScore:        &tutorScore,
			TutorReviewStatus: models.ReviewStatusApproved,
			TutorReviewedAt:   &reviewedAt,
			SubmittedAt:       time.Now(),
		}).Error)
	}
	for _, docType := range models.RequiredDeliverableTypes {
		require.NoError(t, db.Create(&models.Deliverable{ProposalID: proposal.ID, Type: docType, FileURL: "https://files.test/" + docType, Version: 1, Active: true}).Error)
	}

	// Coordinator opens the private defense.
	createBody, err := json.Marshal(dto.DefenseCreateRequest{ProposalID: proposal.ID, Kind: models.DefenseKindPrivate})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/defenses", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, coordinator.ID, models.RoleCoordinator))

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var private dto.DefenseResponse
	decodeEnvelope(t, resp, &private)
	require.Equal(t, models.DefenseStatusPending, private.Status)

	// Assemble the panel.
	for _, juror := range []models.User{jurorA, jurorB} {
		assignBody, err := json.Marshal(dto.PanelistAssignRequest{UserID: juror.ID})
		require.NoError(t, err)

		req = httptest.NewRequest(http.MethodPost, "/api/v1/defenses/"+strconv.FormatUint(uint64(private.ID), 10)+"/panelists", bytes.NewReader(assignBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", bearerToken(t, coordinator.ID, models.RoleCoordinator))

		resp, err = app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	// Both jurors score; the second score decides the evaluation.
	var decided dto.DefenseResponse
	for i, juror := range []models.User{jurorA, jurorB} {
		scoreBody, err := json.Marshal(dto.PanelistScoreRequest{Score: []float64{8, 7}[i]})
		require.NoError(t, err)

		req = httptest.NewRequest(http.MethodPost, "/api/v1/defenses/"+strconv.FormatUint(uint64(private.ID), 10)+"/score", bytes.NewReader(scoreBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", bearerToken(t, juror.ID, juror.Role))

		resp, err = app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		decodeEnvelope(t, resp, &decided)
	}

	require.Equal(t, models.DefenseStatusApproved, decided.Status)
	require.NotNil(t, decided.Score)
	require.InDelta(t, 7.5, *decided.Score, 1e-9)

	// The seeded public slot is now unblocked and the student can see both phases.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/proposals/"+strconv.FormatUint(uint64(proposal.ID), 10)+"/defenses", nil)
	req.Header.Set("Authorization", bearerToken(t, student.ID, models.RoleStudent))

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var defenses []dto.DefenseResponse
	decodeEnvelope(t, resp, &defenses)
	require.Len(t, defenses, 2)

	statusByKind := map[string]string{}
	for _, defense := range defenses {
		statusByKind[defense.Kind] = defense.Status
	}
	require.Equal(t, models.DefenseStatusApproved, statusByKind[models.DefenseKindPrivate])
	require.Equal(t, models.DefenseStatusPending, statusByKind[models.DefenseKindPublic])
}
