package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"scanapi/internal/http/middleware"
	"scanapi/internal/model"
	"scanapi/internal/service"
	serviceMocks "scanapi/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testOwner = "owner-1"

// newTestApp returns an app whose requests carry a fixed owner ID, standing in
// for the auth middleware.
func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.OwnerIDLocalKey, testOwner)
		return c.Next()
	})
	return app
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadScan(t *testing.T) {
	mockSvc := new(serviceMocks.MockScanService)
	app := newTestApp()
	app.Post("/api/scans", UploadScan(mockSvc))

	t.Run("accepted", func(t *testing.T) {
		body, ct := multipartBody(t, "file", map[string][]byte{"sample.exe": []byte("payload")})

		rec := &model.ScanRecord{ID: uuid.New().String(), OriginalName: "sample.exe", Status: model.StatusScanning}
		mockSvc.On("Submit", mock.Anything, testOwner, mock.Anything, "sample.exe", mock.Anything).
			Return(&service.SubmitResult{Record: rec}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/scans", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var result uploadAcceptedResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, rec.ID, result.ScanID)
		assert.Equal(t, "sample.exe", result.Filename)
		assert.Equal(t, "scanning", result.Status)
		mockSvc.AssertExpectations(t)
	})

	t.Run("already scanned", func(t *testing.T) {
		body, ct := multipartBody(t, "file", map[string][]byte{"sample.exe": []byte("payload")})

		rec := &model.ScanRecord{
			ID:     uuid.New().String(),
			Status: model.StatusCompleted,
			Result: &model.ScanResult{IsInfected: false, Severity: model.SeverityLow},
		}
		mockSvc.On("Submit", mock.Anything, testOwner, mock.Anything, "sample.exe", mock.Anything).
			Return(&service.SubmitResult{Record: rec, AlreadyScanned: true}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/scans", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result uploadDedupResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "File already scanned", result.Message)
		assert.Equal(t, rec.ID, result.ScanID)
		assert.NotNil(t, result.Results)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/scans", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "FILE_REQUIRED", body.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		body, ct := multipartBody(t, "file", map[string][]byte{"sample.exe": []byte("payload")})

		mockSvc.On("Submit", mock.Anything, testOwner, mock.Anything, "sample.exe", mock.Anything).
			Return(nil, errors.New("disk full")).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/scans", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUploadScanBatch(t *testing.T) {
	mockSvc := new(serviceMocks.MockScanService)
	app := newTestApp()
	app.Post("/api/scans/batch", UploadScanBatch(mockSvc))

	t.Run("mixed outcomes", func(t *testing.T) {
		body, ct := multipartBody(t, "files", map[string][]byte{
			"a.bin": []byte("aaa"),
			"b.bin": []byte("bbb"),
		})

		fresh := &model.ScanRecord{ID: uuid.New().String(), Status: model.StatusScanning}
		dup := &model.ScanRecord{ID: uuid.New().String(), Status: model.StatusCompleted}
		mockSvc.On("Submit", mock.Anything, testOwner, mock.Anything, "a.bin", mock.Anything).
			Return(&service.SubmitResult{Record: fresh}, nil).Once()
		mockSvc.On("Submit", mock.Anything, testOwner, mock.Anything, "b.bin", mock.Anything).
			Return(&service.SubmitResult{Record: dup, AlreadyScanned: true}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/scans/batch", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var result batchUploadResponse
		json.NewDecoder(resp.Body).Decode(&result)
		require.Len(t, result.Results, 2)

		byName := map[string]batchItemResult{}
		for _, r := range result.Results {
			byName[r.Filename] = r
		}
		assert.Equal(t, "scanning", byName["a.bin"].Status)
		assert.Equal(t, "already_scanned", byName["b.bin"].Status)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no files", func(t *testing.T) {
		body, ct := multipartBody(t, "other", map[string][]byte{"a.bin": []byte("aaa")})

		req := httptest.NewRequest(http.MethodPost, "/api/scans/batch", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "FILES_REQUIRED", payload.Error.Code)
	})

	t.Run("too many files", func(t *testing.T) {
		files := map[string][]byte{}
		for i := 0; i < maxBatchFiles+1; i++ {
			files[fmt.Sprintf("f%d.bin", i)] = []byte("x")
		}
		body, ct := multipartBody(t, "files", files)

		req := httptest.NewRequest(http.MethodPost, "/api/scans/batch", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "TOO_MANY_FILES", payload.Error.Code)
	})
}

func TestGetScan(t *testing.T) {
	mockSvc := new(serviceMocks.MockScanService)
	app := newTestApp()
	app.Get("/api/scans/:id", GetScan(mockSvc))

	t.Run("found", func(t *testing.T) {
		id := uuid.New().String()
		rec := &model.ScanRecord{ID: id, OwnerID: testOwner, Status: model.StatusCompleted}
		mockSvc.On("Get", mock.Anything, testOwner, id).Return(rec, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/scans/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.ScanRecord
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		assert.Equal(t, model.StatusCompleted, result.Status)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/scans/not-a-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "INVALID_ID", payload.Error.Code)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, testOwner, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/scans/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "NOT_FOUND", payload.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestListScans(t *testing.T) {
	mockSvc := new(serviceMocks.MockScanService)
	app := newTestApp()
	app.Get("/api/scans", ListScans(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := &service.ScanListResult{
			Items: []model.ScanRecord{{ID: uuid.New().String(), OriginalName: "a.bin"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, testOwner, 10, 0).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/scans?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.ScanListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/scans?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "INVALID_LIMIT", payload.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, testOwner, 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUploadStats(t *testing.T) {
	mockSvc := new(serviceMocks.MockScanService)
	app := newTestApp()
	app.Get("/api/scans/stats", UploadStats(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := &model.ScanStats{TotalUploads: 4, InfectedFiles: 1, CleanFiles: 3}
		mockSvc.On("Stats", mock.Anything, testOwner, 7).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/scans/stats?days=7", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.ScanStats
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, 4, result.TotalUploads)
		assert.Equal(t, 1, result.InfectedFiles)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid days", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/scans/stats?days=soon", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var payload errorPayload
		json.NewDecoder(resp.Body).Decode(&payload)
		assert.Equal(t, "INVALID_DAYS", payload.Error.Code)
	})
}
