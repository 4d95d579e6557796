package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/septivank/meter-reading-uploads/internal/service"
	"github.com/septivank/meter-reading-uploads/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockUploader is a mock implementation of the Uploader interface.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) ProcessUpload(ctx context.Context, req service.UploadRequest) *upload.Result {
	body, _ := io.ReadAll(req.Data)
	args := m.Called(req.FileName, string(body))
	return args.Get(0).(*upload.Result)
}

// MockQueries is a mock implementation of the Queries interface.
type MockQueries struct {
	mock.Mock
}

func (m *MockQueries) ListAccounts(ctx context.Context) ([]service.AccountDTO, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.AccountDTO), args.Error(1)
}

func (m *MockQueries) ListReadings(ctx context.Context) ([]service.MeterReadingDTO, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.MeterReadingDTO), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

const validCSV = "AccountId,MeterReadingDateTime,MeterReadValue\n2344,22/04/2019 09:24,01002\n"

func newTestRouter(uploader Uploader, queries Queries, pinger Pinger) http.Handler {
	h := NewHandlers(uploader, queries, pinger, upload.DefaultRules(), 1<<20, zap.NewNop())
	return SetupRoutes(h, nil, []string{"http://localhost:5173"}, zap.NewNop())
}

func multipartRequest(t *testing.T, field, fileName, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/meterreadings/meter-reading-uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestUploadMeterReadings_Success(t *testing.T) {
	uploader := new(MockUploader)
	ts := time.Date(2019, 4, 22, 9, 24, 0, 0, time.UTC)
	result := &upload.Result{
		TotalProcessed:     1,
		Successful:         1,
		SuccessfulReadings: []upload.ReadingSummary{{AccountID: 2344, MeterReadingDateTime: ts, MeterReadValue: 1002}},
		Errors:             []upload.UploadError{},
	}
	uploader.On("ProcessUpload", "Meter_Reading.csv", validCSV).Return(result)

	rec := httptest.NewRecorder()
	newTestRouter(uploader, nil, nil).ServeHTTP(rec, multipartRequest(t, "csvFile", "Meter_Reading.csv", validCSV))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	assert.Equal(t, 1.0, payload["totalProcessed"])
	assert.Equal(t, 1.0, payload["successful"])
	assert.Equal(t, 0.0, payload["failed"])
	readings := payload["successfulReadings"].([]any)
	require.Len(t, readings, 1)
	first := readings[0].(map[string]any)
	assert.Equal(t, 2344.0, first["accountId"])
	assert.Equal(t, "2019-04-22T09:24:00Z", first["meterReadingDateTime"])
	assert.Equal(t, 1002.0, first["meterReadValue"])
	assert.Equal(t, []any{}, payload["errors"])
	uploader.AssertExpectations(t)
}

func TestUploadMeterReadings_UppercaseExtensionAccepted(t *testing.T) {
	uploader := new(MockUploader)
	uploader.On("ProcessUpload", "READINGS.CSV", validCSV).Return(upload.NewResult())

	rec := httptest.NewRecorder()
	newTestRouter(uploader, nil, nil).ServeHTTP(rec, multipartRequest(t, "csvFile", "READINGS.CSV", validCSV))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadMeterReadings_WrongExtension(t *testing.T) {
	uploader := new(MockUploader)

	rec := httptest.NewRecorder()
	newTestRouter(uploader, nil, nil).ServeHTTP(rec, multipartRequest(t, "csvFile", "readings.txt", validCSV))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, upload.MsgInvalidFileType, resp.Message)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	uploader.AssertNotCalled(t, "ProcessUpload", mock.Anything, mock.Anything)
}

func TestUploadMeterReadings_EmptyFile(t *testing.T) {
	uploader := new(MockUploader)

	rec := httptest.NewRecorder()
	newTestRouter(uploader, nil, nil).ServeHTTP(rec, multipartRequest(t, "csvFile", "readings.csv", ""))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, upload.MsgNoFileProvided, decodeError(t, rec).Message)
	uploader.AssertNotCalled(t, "ProcessUpload", mock.Anything, mock.Anything)
}

func TestUploadMeterReadings_MissingField(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(new(MockUploader), nil, nil).ServeHTTP(rec, multipartRequest(t, "other", "readings.csv", validCSV))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, upload.MsgNoFileProvided, decodeError(t, rec).Message)
}

func TestUploadMeterReadings_TooLarge(t *testing.T) {
	h := NewHandlers(new(MockUploader), nil, nil, upload.DefaultRules(), 64, zap.NewNop())
	router := SetupRoutes(h, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartRequest(t, "csvFile", "readings.csv", validCSV+validCSV))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadMeterReadings_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(new(MockUploader), nil, nil).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/api/meterreadings/meter-reading-uploads", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListAccounts(t *testing.T) {
	queries := new(MockQueries)
	queries.On("ListAccounts").Return([]service.AccountDTO{{AccountID: 2344, FirstName: "Tommy", LastName: "Test"}}, nil)

	rec := httptest.NewRecorder()
	newTestRouter(nil, queries, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"accountId":2344,"firstName":"Tommy","lastName":"Test"}]`, rec.Body.String())
}

func TestListReadings_Failure(t *testing.T) {
	queries := new(MockQueries)
	queries.On("ListReadings").Return(nil, errors.New("connection reset"))

	rec := httptest.NewRecorder()
	newTestRouter(nil, queries, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/meterreadings", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Failed to retrieve meter readings", resp.Message)
	assert.Equal(t, "connection reset", resp.Detail)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, stubPinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newTestRouter(nil, nil, stubPinger{err: errors.New("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/meterreadings/meter-reading-uploads", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	newTestRouter(nil, nil, nil).ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	handler := RecoverMiddleware(zap.NewNop(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", decodeError(t, rec).Detail)
}
