package handler_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/uide-dev/titulacion-api/internal/dto"
	"github.com/uide-dev/titulacion-api/internal/handler"
	"github.com/uide-dev/titulacion-api/internal/service"
)

type mockProgressionService struct {
	lastUpload dto.DeliverableUploadRequest
	lastActor  service.Actor
	unlock     dto.UnlockStatusResponse
	err        error
}

func (m *mockProgressionService) ListCatalog(_ context.Context) ([]dto.PrerequisiteItemResponse, error) {
	return nil, m.err
}

func (m *mockProgressionService) ListPrerequisites(_ context.Context, _ uint) ([]dto.PrerequisiteRecordResponse, error) {
	return nil, m.err
}

func (m *mockProgressionService) UploadPrerequisite(_ context.Context, _ dto.PrerequisiteUploadRequest, _ *multipart.FileHeader, actor service.Actor) (dto.PrerequisiteRecordResponse, error) {
	m.lastActor = actor
	return dto.PrerequisiteRecordResponse{}, m.err
}

func (m *mockProgressionService) ValidatePrerequisite(_ context.Context, _, _ uint, _ dto.PrerequisiteValidateRequest, actor service.Actor) (dto.PrerequisiteRecordResponse, error) {
	m.lastActor = actor
	return dto.PrerequisiteRecordResponse{}, m.err
}

func (m *mockProgressionService) CheckCanCreateProposal(_ context.Context, _ uint) (dto.ProposalEligibilityResponse, error) {
	return dto.ProposalEligibilityResponse{}, m.err
}

func (m *mockProgressionService) UploadFinalDeliverable(_ context.Context, payload dto.DeliverableUploadRequest, _ *multipart.FileHeader, actor service.Actor) (dto.DeliverableResponse, error) {
	m.lastUpload = payload
	m.lastActor = actor
	if m.err != nil {
		return dto.DeliverableResponse{}, m.err
	}
	return dto.DeliverableResponse{ID: 1, ProposalID: payload.ProposalID, Type: payload.Type, Version: 2, Active: true}, nil
}

func (m *mockProgressionService) ListDeliverables(_ context.Context, _ uint, _ bool) ([]dto.DeliverableResponse, error) {
	return nil, m.err
}

func (m *mockProgressionService) UnlockStatus(_ context.Context, _ uint) (dto.UnlockStatusResponse, error) {
	if m.err != nil {
		return dto.UnlockStatusResponse{}, m.err
	}
	return m.unlock, nil
}

func newProgressionApp(svc *mockProgressionService) *fiber.App {
	logger := zerolog.New(io.Discard)
	app := fiber.New()
	authed := app.Group("/api", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(11))
		c.Locals("user_role", "ESTUDIANTE")
		return c.Next()
	})
	passthrough := func(c *fiber.Ctx) error { return c.Next() }
	handler.NewProgressionHandler(svc, logger).Register(authed, passthrough, passthrough)
	return app
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 contenido"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestProgressionHandler_UploadDeliverable(t *testing.T) {
	svc := &mockProgressionService{}
	app := newProgressionApp(svc)

	body, contentType := multipartBody(t, map[string]string{
		"proposal_id": "42",
		"type":        "tesis",
	}, "file", "tesis.pdf")

	req := httptest.NewRequest(http.MethodPost, "/api/deliverables", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	require.Equal(t, uint(42), svc.lastUpload.ProposalID)
	require.Equal(t, "TESIS", svc.lastUpload.Type, "type is normalized to uppercase")
	require.Equal(t, uint(11), svc.lastActor.ID)
}

func TestProgressionHandler_UploadDeliverableRequiresFile(t *testing.T) {
	svc := &mockProgressionService{}
	app := newProgressionApp(svc)

	body, contentType := multipartBody(t, map[string]string{
		"proposal_id": "42",
		"type":        "TESIS",
	}, "", "")

	req := httptest.NewRequest(http.MethodPost, "/api/deliverables", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProgressionHandler_UploadDeliverableStageLocked(t *testing.T) {
	svc := &mockProgressionService{err: service.ErrStageLocked}
	app := newProgressionApp(svc)

	body, contentType := multipartBody(t, map[string]string{
		"proposal_id": "42",
		"type":        "TESIS",
	}, "file", "tesis.pdf")

	req := httptest.NewRequest(http.MethodPost, "/api/deliverables", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusPreconditionFailed, resp.StatusCode)
}

func TestProgressionHandler_UnlockStatus(t *testing.T) {
	svc := &mockProgressionService{unlock: dto.UnlockStatusResponse{
		ProposalID:        9,
		ApprovedEvidences: 16,
		EvidenceComplete:  true,
		Unlocked:          false,
	}}
	app := newProgressionApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/proposals/9/unlock-status", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                     `json:"success"`
		Data    dto.UnlockStatusResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, 16, response.Data.ApprovedEvidences)
	require.False(t, response.Data.Unlocked)
}
