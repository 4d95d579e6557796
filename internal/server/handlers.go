package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-reading-uploads/internal/logging"
	"github.com/septivank/meter-reading-uploads/internal/service"
	"github.com/septivank/meter-reading-uploads/internal/upload"
	"go.uber.org/zap"
)

const uploadField = "csvFile"

// Uploader runs a CSV upload.
type Uploader interface {
	ProcessUpload(ctx context.Context, req service.UploadRequest) *upload.Result
}

// Queries serves account and reading listings.
type Queries interface {
	ListAccounts(ctx context.Context) ([]service.AccountDTO, error)
	ListReadings(ctx context.Context) ([]service.MeterReadingDTO, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrorResponse is the payload for rejected requests.
type ErrorResponse struct {
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
}

// Handlers holds the HTTP handlers of the API.
type Handlers struct {
	uploader      Uploader
	queries       Queries
	pinger        Pinger
	fileExtension string
	maxBytes      int64
	logger        *zap.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(uploader Uploader, queries Queries, pinger Pinger, rules upload.Rules, maxBytes int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		uploader:      uploader,
		queries:       queries,
		pinger:        pinger,
		fileExtension: rules.FileExtension,
		maxBytes:      maxBytes,
		logger:        logger,
	}
}

// UploadMeterReadings accepts a multipart CSV upload and returns the per-row report.
func (h *Handlers) UploadMeterReadings(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := logging.WithRequestID(h.logger, requestID)

	if h.maxBytes > 0 {
		if r.ContentLength > h.maxBytes {
			h.writeTooLarge(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeTooLarge(w)
			return
		}
		writeError(w, http.StatusBadRequest, upload.MsgNoFileProvided, err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, upload.MsgNoFileProvided, "")
		return
	}
	defer file.Close()

	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, upload.MsgNoFileProvided, "")
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), h.fileExtension) {
		writeError(w, http.StatusBadRequest, upload.MsgInvalidFileType, "")
		return
	}

	logger.Info("received meter reading upload",
		zap.String("file_name", header.Filename),
		zap.Int64("size", header.Size),
	)

	result := h.uploader.ProcessUpload(r.Context(), service.UploadRequest{
		RequestID: requestID,
		FileName:  header.Filename,
		Data:      file,
	})

	writeJSON(w, http.StatusOK, result)
}

// ListAccounts returns every account.
func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.queries.ListAccounts(r.Context())
	if err != nil {
		h.logger.Error("failed to list accounts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve accounts", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ListReadings returns every stored meter reading.
func (h *Handlers) ListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := h.queries.ListReadings(r.Context())
	if err != nil {
		h.logger.Error("failed to list meter readings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve meter readings", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// Health pings the database.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeTooLarge(w http.ResponseWriter) {
	writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d byte upload limit", h.maxBytes), "")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, ErrorResponse{
		Message:    message,
		Detail:     detail,
		StatusCode: status,
		Timestamp:  time.Now().UTC(),
	})
}
