package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/meter-reading-uploads/internal/db"
	"github.com/septivank/meter-reading-uploads/internal/logging"
	"github.com/septivank/meter-reading-uploads/internal/metrics"
	"github.com/septivank/meter-reading-uploads/internal/mq"
	"github.com/septivank/meter-reading-uploads/internal/parser"
	"github.com/septivank/meter-reading-uploads/internal/upload"
	"github.com/septivank/meter-reading-uploads/internal/validator"
	"go.uber.org/zap"
)

// ReadingStore is the persistence gateway used by an upload run.
type ReadingStore interface {
	validator.Lookup
	InsertReading(ctx context.Context, reading *db.MeterReading) (*db.MeterReading, error)
}

// RowValidator validates parsed rows against stored data.
type RowValidator interface {
	Validate(ctx context.Context, row upload.CandidateRow, rowNumber int) (bool, []upload.UploadError, error)
}

// EventPublisher announces readings that were persisted.
type EventPublisher interface {
	PublishReadingAccepted(ctx context.Context, event mq.ReadingAcceptedEvent) error
}

// UploadRequest is one CSV upload.
type UploadRequest struct {
	RequestID string
	FileName  string
	Data      io.Reader
}

type uploadState int

const (
	stateAwaitHeader uploadState = iota
	stateReadingRows
	statePersisting
	stateDone
)

// UploadService runs CSV uploads start to finish, one row at a time.
type UploadService struct {
	store     ReadingStore
	parser    *parser.RowParser
	validator RowValidator
	publisher EventPublisher
	metrics   *metrics.Metrics
	rules     upload.Rules
	logger    *zap.Logger
}

// NewUploadService creates a new upload service. publisher and m may be nil.
func NewUploadService(
	store ReadingStore,
	rowParser *parser.RowParser,
	rowValidator RowValidator,
	publisher EventPublisher,
	m *metrics.Metrics,
	rules upload.Rules,
	logger *zap.Logger,
) *UploadService {
	return &UploadService{
		store:     store,
		parser:    rowParser,
		validator: rowValidator,
		publisher: publisher,
		metrics:   m,
		rules:     rules,
		logger:    logger,
	}
}

// uploadRun holds the state of a single upload.
type uploadRun struct {
	result    *upload.Result
	reader    *bufio.Reader
	valid     []upload.CandidateRow
	rowNumber int
	dryRun    bool
	logger    *zap.Logger
}

// ProcessUpload always returns a complete result. Structural and I/O problems
// are reported inside it rather than as a Go error.
func (s *UploadService) ProcessUpload(ctx context.Context, req UploadRequest) *upload.Result {
	return s.execute(ctx, req, false)
}

// CheckUpload runs header, parse and validation checks without writing
// anything. Rows that would be inserted are reported as successful.
func (s *UploadService) CheckUpload(ctx context.Context, req UploadRequest) *upload.Result {
	return s.execute(ctx, req, true)
}

func (s *UploadService) execute(ctx context.Context, req UploadRequest, dryRun bool) (result *upload.Result) {
	// Once started a batch runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	run := &uploadRun{
		result: upload.NewResult(),
		dryRun: dryRun,
		logger: logging.WithRequestID(s.logger, req.RequestID),
	}
	start := time.Now()

	run.logger.Info("processing upload", zap.String("file_name", req.FileName), zap.Bool("dry_run", dryRun))

	defer func() {
		if r := recover(); r != nil {
			s.fail(run, fmt.Errorf("panic: %v", r))
		}
		s.metrics.ObserveUpload(run.result, time.Since(start))
		run.logger.Info("upload processed",
			zap.Int("total_processed", run.result.TotalProcessed),
			zap.Int("successful", run.result.Successful),
			zap.Int("failed", run.result.Failed),
			zap.Int("errors", len(run.result.Errors)),
			zap.Duration("duration", time.Since(start)),
		)
		result = run.result
	}()

	if req.Data == nil {
		s.fail(run, errors.New("no data stream"))
		return run.result
	}
	run.reader = bufio.NewReader(req.Data)

	state := stateAwaitHeader
	for state != stateDone {
		var err error
		switch state {
		case stateAwaitHeader:
			state, err = s.readHeader(run)
		case stateReadingRows:
			state, err = s.readRows(ctx, run)
		case statePersisting:
			state = s.persist(ctx, run, req.RequestID)
		}
		if err != nil {
			s.fail(run, err)
			state = stateDone
		}
	}

	return run.result
}

func (s *UploadService) readHeader(run *uploadRun) (uploadState, error) {
	line, ok, err := readLine(run.reader)
	if err != nil {
		return stateDone, err
	}
	if !ok {
		run.result.AddErrors(upload.UploadError{Row: 1, Message: upload.MsgEmptyFile, RawData: ""})
		return stateDone, nil
	}

	if headerErr := s.parser.CheckHeader(line); headerErr != nil {
		run.logger.Info("upload rejected", zap.String("reason", headerErr.Message))
		run.result.AddErrors(*headerErr)
		return stateDone, nil
	}

	return stateReadingRows, nil
}

func (s *UploadService) readRows(ctx context.Context, run *uploadRun) (uploadState, error) {
	for {
		line, ok, err := readLine(run.reader)
		if err != nil {
			return stateDone, err
		}
		if !ok {
			return statePersisting, nil
		}

		// Blank lines are counted and numbered but never parsed.
		run.rowNumber++
		run.result.TotalProcessed++
		if strings.TrimSpace(line) == "" {
			continue
		}

		row, hasErrors, parseErrs := s.parser.Parse(line, run.rowNumber)
		if hasErrors {
			run.logger.Debug("row rejected by parser", zap.Int("row", run.rowNumber+1), zap.Int("errors", len(parseErrs)))
			run.result.AddErrors(parseErrs...)
			run.result.Failed++
			continue
		}

		hasErrors, validationErrs, err := s.validator.Validate(ctx, *row, run.rowNumber)
		if err != nil {
			return stateDone, err
		}
		if hasErrors {
			run.logger.Debug("row rejected by validator", zap.Int("row", run.rowNumber+1), zap.Int("errors", len(validationErrs)))
			run.result.AddErrors(validationErrs...)
			run.result.Failed++
			continue
		}

		run.valid = append(run.valid, *row)
	}
}

// persist inserts each valid row on its own; one failure never affects another.
func (s *UploadService) persist(ctx context.Context, run *uploadRun, requestID string) uploadState {
	for _, row := range run.valid {
		reading := &db.MeterReading{
			AccountID:            row.AccountID,
			MeterReadingDateTime: row.ReadingTimestamp,
			MeterReadValue:       row.ReadingValue,
		}
		if run.dryRun {
			s.recordSuccess(run, reading)
			continue
		}

		created, err := s.store.InsertReading(ctx, reading)
		if err != nil {
			run.logger.Warn("failed to persist reading",
				zap.Error(err),
				zap.Int("row", row.SourceRowNumber),
				zap.Int("account_id", row.AccountID),
			)
			run.result.AddErrors(upload.UploadError{
				Row:       row.SourceRowNumber,
				AccountID: upload.AccountRef(row.AccountID),
				Message:   fmt.Sprintf(upload.MsgDatabaseErrorFmt, err.Error()),
				RawData:   row.RawData(s.rules.DisplayLayout),
			})
			run.result.Failed++
			continue
		}
		if created == nil {
			created = reading
		}

		s.recordSuccess(run, created)
		s.publishAccepted(ctx, run.logger, requestID, created)
	}
	run.valid = nil

	return stateDone
}

func (s *UploadService) recordSuccess(run *uploadRun, reading *db.MeterReading) {
	run.result.SuccessfulReadings = append(run.result.SuccessfulReadings, upload.ReadingSummary{
		AccountID:            reading.AccountID,
		MeterReadingDateTime: reading.MeterReadingDateTime.UTC(),
		MeterReadValue:       reading.MeterReadValue,
	})
	run.result.Successful++
}

func (s *UploadService) publishAccepted(ctx context.Context, logger *zap.Logger, requestID string, reading *db.MeterReading) {
	if s.publisher == nil {
		return
	}

	event := mq.ReadingAcceptedEvent{
		EventID:              uuid.NewString(),
		RequestID:            requestID,
		AccountID:            reading.AccountID,
		MeterReadingDateTime: reading.MeterReadingDateTime.UTC().Format(time.RFC3339),
		MeterReadValue:       reading.MeterReadValue,
	}
	if err := s.publisher.PublishReadingAccepted(ctx, event); err != nil {
		// Log error but don't fail the reading, it is already stored
		logger.Error("failed to publish event",
			zap.Error(err),
			zap.Int("account_id", reading.AccountID),
		)
	}
}

func (s *UploadService) fail(run *uploadRun, err error) {
	run.logger.Error("upload aborted", zap.Error(err), zap.Int("rows_seen", run.result.TotalProcessed))
	run.result.AddErrors(upload.UploadError{
		Row:     run.result.TotalProcessed,
		Message: fmt.Sprintf("%s: %s", upload.MsgFileProcessingError, err.Error()),
		RawData: "",
	})
}

// readLine returns the next line without its terminator. "\n", "\r\n" and a
// lone "\r" all end a line. ok is false once the stream is exhausted; a final
// unterminated line is still returned.
func readLine(r *bufio.Reader) (string, bool, error) {
	var b strings.Builder
	for {
		c, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.String(), b.Len() > 0, nil
			}
			return "", false, fmt.Errorf("failed to read upload: %w", err)
		}

		switch c {
		case '\n':
			return b.String(), true, nil
		case '\r':
			next, err := r.Peek(1)
			if err == nil && next[0] == '\n' {
				_, _ = r.ReadByte()
			} else if err != nil && !errors.Is(err, io.EOF) {
				return "", false, fmt.Errorf("failed to read upload: %w", err)
			}
			return b.String(), true, nil
		default:
			b.WriteByte(c)
		}
	}
}
