package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mediarelay/internal/config"
	"mediarelay/internal/model"
	relayMocks "mediarelay/internal/relay/mocks"
	stagingMocks "mediarelay/internal/staging/mocks"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxSizeMB:         1,
		AllowedExtensions: []string{".mp3", ".wav"},
	}
}

// newUploadRequest builds a multipart POST with a single file field.
func newUploadRequest(t *testing.T, target, field, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var payload errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func TestHealth(t *testing.T) {
	app := fiber.New()
	app.Get("/health", Health())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "backend", body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestDownstreamProbe(t *testing.T) {
	t.Run("downstream healthy", func(t *testing.T) {
		mockSvc := new(relayMocks.MockService)
		mockSvc.On("Health", mock.Anything).Return([]byte(`{"status":"ok"}`), nil).Once()

		app := fiber.New()
		app.Get("/api/test", DownstreamProbe(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, map[string]any{"status": "ok"}, body["ai_service"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("downstream down", func(t *testing.T) {
		mockSvc := new(relayMocks.MockService)
		mockSvc.On("Health", mock.Anything).
			Return(nil, model.NewRelayError(model.KindDownstreamUnreachable, "downstream service at http://ai:8000 is unreachable")).Once()

		app := fiber.New()
		app.Get("/api/test", DownstreamProbe(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, false, body["ok"])
		assert.Contains(t, body["error"], "unreachable")
		mockSvc.AssertExpectations(t)
	})
}

func TestProcessUpload(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		mockSt := new(stagingMocks.MockStaging)
		mockSvc := new(relayMocks.MockService)
		app := fiber.New()
		app.Post("/api/process", ProcessUpload(testUploadConfig(), mockSt, mockSvc))

		req := httptest.NewRequest(http.MethodPost, "/api/process", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		payload := decodeError(t, resp)
		assert.Equal(t, string(model.KindMissingFile), payload.Kind)

		mockSt.AssertNotCalled(t, "Stage")
		mockSvc.AssertNotCalled(t, "Process")
	})

	t.Run("unsupported extension is rejected before staging", func(t *testing.T) {
		mockSt := new(stagingMocks.MockStaging)
		mockSvc := new(relayMocks.MockService)
		app := fiber.New()
		app.Post("/api/process", ProcessUpload(testUploadConfig(), mockSt, mockSvc))

		req := newUploadRequest(t, "/api/process", "file", "notes.TXT", []byte("plain text"))
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		payload := decodeError(t, resp)
		assert.Equal(t, string(model.KindUnsupportedType), payload.Kind)
		assert.Contains(t, payload.Error, ".txt", "rejected extension is named, lower-cased")

		mockSt.AssertNotCalled(t, "Stage")
		mockSvc.AssertNotCalled(t, "Process")
	})

	t.Run("oversized file is rejected before staging", func(t *testing.T) {
		mockSt := new(stagingMocks.MockStaging)
		mockSvc := new(relayMocks.MockService)
		app := fiber.New(fiber.Config{BodyLimit: 8 << 20})
		app.Post("/api/process", ProcessUpload(testUploadConfig(), mockSt, mockSvc))

		oversized := bytes.Repeat([]byte("a"), (1<<20)+1)
		req := newUploadRequest(t, "/api/process", "file", "big.mp3", oversized)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		payload := decodeError(t, resp)
		assert.Equal(t, string(model.KindTooLarge), payload.Kind)
		assert.Contains(t, payload.Error, "1 MB", "configured limit is named")

		mockSt.AssertNotCalled(t, "Stage")
		mockSvc.AssertNotCalled(t, "Process")
	})

	t.Run("success passes the downstream body through", func(t *testing.T) {
		downstreamBody := []byte(`{"transcript":"T","summary":"S","notes":"N","studyPlan":"P"}`)
		up := &model.Upload{OriginalFilename: "lecture.mp3", StagedPath: "/tmp/staged"}

		mockSt := new(stagingMocks.MockStaging)
		mockSt.On("Stage", mock.Anything, mock.Anything, "lecture.mp3", mock.Anything, mock.Anything).
			Return(up, nil).Once()

		mockSvc := new(relayMocks.MockService)
		mockSvc.On("Process", mock.Anything, up).
			Return(&model.RelayResult{Status: http.StatusOK, ContentType: "application/json", Body: downstreamBody}, nil).Once()

		app := fiber.New()
		app.Post("/api/process", ProcessUpload(testUploadConfig(), mockSt, mockSvc))

		req := newUploadRequest(t, "/api/process", "file", "lecture.mp3", []byte("audio bytes"))
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		got, _ := io.ReadAll(resp.Body)
		assert.Equal(t, downstreamBody, got, "body is returned unmodified")
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

		mockSt.AssertExpectations(t)
		mockSvc.AssertExpectations(t)
	})

	t.Run("staging failure", func(t *testing.T) {
		mockSt := new(stagingMocks.MockStaging)
		mockSt.On("Stage", mock.Anything, mock.Anything, "clip.wav", mock.Anything, mock.Anything).
			Return(nil, assert.AnError).Once()

		mockSvc := new(relayMocks.MockService)

		app := fiber.New()
		app.Post("/api/process", ProcessUpload(testUploadConfig(), mockSt, mockSvc))

		req := newUploadRequest(t, "/api/process", "file", "clip.wav", []byte("x"))
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		payload := decodeError(t, resp)
		assert.Equal(t, string(model.KindInternal), payload.Kind)
		mockSvc.AssertNotCalled(t, "Process")
	})

	t.Run("downstream error status is propagated", func(t *testing.T) {
		up := &model.Upload{OriginalFilename: "clip.mp3"}
		mockSt := new(stagingMocks.MockStaging)
		mockSt.On("Stage", mock.Anything, mock.Anything, "clip.mp3", mock.Anything, mock.Anything).
			Return(up, nil).Once()

		mockSvc := new(relayMocks.MockService)
		mockSvc.On("Process", mock.Anything, up).Return(nil, &model.RelayError{
			Kind:    model.KindDownstreamError,
			Message: "downstream processing failed with status 422",
			Status:  http.StatusUnprocessableEntity,
			Details: map[string]any{"detail": "unsupported codec"},
		}).Once()

		app := fiber.New()
		app.Post("/api/process", ProcessUpload(testUploadConfig(), mockSt, mockSvc))

		req := newUploadRequest(t, "/api/process", "file", "clip.mp3", []byte("x"))
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		payload := decodeError(t, resp)
		assert.Equal(t, string(model.KindDownstreamError), payload.Kind)
		assert.Equal(t, map[string]any{"detail": "unsupported codec"}, payload.Details)
	})

	t.Run("timeout maps to 504", func(t *testing.T) {
		up := &model.Upload{OriginalFilename: "slow.mp3"}
		mockSt := new(stagingMocks.MockStaging)
		mockSt.On("Stage", mock.Anything, mock.Anything, "slow.mp3", mock.Anything, mock.Anything).
			Return(up, nil).Once()

		mockSvc := new(relayMocks.MockService)
		mockSvc.On("Process", mock.Anything, up).
			Return(nil, model.NewRelayError(model.KindDownstreamTimeout, "downstream call exceeded the timeout")).Once()

		app := fiber.New()
		app.Post("/api/process", ProcessUpload(testUploadConfig(), mockSt, mockSvc))

		req := newUploadRequest(t, "/api/process", "file", "slow.mp3", []byte("x"))
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	})

	t.Run("unreachable maps to 502", func(t *testing.T) {
		up := &model.Upload{OriginalFilename: "clip.mp3"}
		mockSt := new(stagingMocks.MockStaging)
		mockSt.On("Stage", mock.Anything, mock.Anything, "clip.mp3", mock.Anything, mock.Anything).
			Return(up, nil).Once()

		mockSvc := new(relayMocks.MockService)
		mockSvc.On("Process", mock.Anything, up).
			Return(nil, model.NewRelayError(model.KindDownstreamUnreachable, "downstream service at http://ai:8000 is unreachable")).Once()

		app := fiber.New()
		app.Post("/api/process", ProcessUpload(testUploadConfig(), mockSt, mockSvc))

		req := newUploadRequest(t, "/api/process", "file", "clip.mp3", []byte("x"))
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	cfg := &config.AppConfig{Upload: testUploadConfig()}
	mockSt := new(stagingMocks.MockStaging)
	mockSvc := new(relayMocks.MockService)
	RegisterRoutes(app, cfg, mockSt, mockSvc)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		payload := decodeError(t, resp)
		assert.Equal(t, "NOT_FOUND", payload.Kind)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		payload := decodeError(t, resp)
		assert.Equal(t, "METHOD_NOT_ALLOWED", payload.Kind)
	})

	t.Run("upload alias reaches the same pipeline", func(t *testing.T) {
		up := &model.Upload{OriginalFilename: "alias.mp3"}
		mockSt.On("Stage", mock.Anything, mock.Anything, "alias.mp3", mock.Anything, mock.Anything).
			Return(up, nil).Once()
		mockSvc.On("Process", mock.Anything, up).
			Return(&model.RelayResult{Status: http.StatusOK, Body: []byte(`{}`)}, nil).Once()

		req := newUploadRequest(t, "/upload", "file", "alias.mp3", []byte("x"))
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSt.AssertExpectations(t)
		mockSvc.AssertExpectations(t)
	})
}
