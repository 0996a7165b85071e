package utils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func performRequest(t *testing.T, handler fiber.Handler) *http.Response {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return resp
}

func decodePayload(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload APIResponse
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestSendSuccessDefaultsMessage(t *testing.T) {
	resp := performRequest(t, func(c *fiber.Ctx) error {
		return SendSuccess(c, "", fiber.Map{"id": 1})
	})

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	payload := decodePayload(t, resp)
	require.True(t, payload.Success)
	require.Equal(t, "operación exitosa", payload.Message)
	require.NotNil(t, payload.Data)
}

func TestSendErrorOmitsData(t *testing.T) {
	resp := performRequest(t, func(c *fiber.Ctx) error {
		return SendError(c, fiber.StatusConflict, "registro duplicado")
	})

	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	payload := decodePayload(t, resp)
	require.False(t, payload.Success)
	require.Equal(t, "registro duplicado", payload.Message)
	require.Nil(t, payload.Data)
}
