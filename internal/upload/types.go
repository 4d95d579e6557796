package upload

import (
	"fmt"
	"time"
)

// CandidateRow is a parsed but not yet validated meter reading.
type CandidateRow struct {
	AccountID        int
	ReadingTimestamp time.Time
	ReadingValue     int
	// SourceRowNumber is the 1-based line number in the uploaded file (header is line 1).
	SourceRowNumber int
}

// RawData re-serializes the row for diagnostics. It is not the original line.
func (r CandidateRow) RawData(displayLayout string) string {
	return fmt.Sprintf("%d,%s,%d", r.AccountID, r.ReadingTimestamp.UTC().Format(displayLayout), r.ReadingValue)
}

// UploadError is a single problem reported for an uploaded file.
type UploadError struct {
	Row       int    `json:"row"`
	AccountID *int   `json:"accountId"`
	Message   string `json:"error"`
	RawData   string `json:"rawData"`
}

// ReadingSummary describes a reading that was persisted during an upload.
type ReadingSummary struct {
	AccountID            int       `json:"accountId"`
	MeterReadingDateTime time.Time `json:"meterReadingDateTime"`
	MeterReadValue       int       `json:"meterReadValue"`
}

// Result is the per-upload report returned to the caller.
type Result struct {
	TotalProcessed     int              `json:"totalProcessed"`
	Successful         int              `json:"successful"`
	Failed             int              `json:"failed"`
	SuccessfulReadings []ReadingSummary `json:"successfulReadings"`
	Errors             []UploadError    `json:"errors"`
}

// NewResult returns an empty result whose slices encode as [] rather than null.
func NewResult() *Result {
	return &Result{
		SuccessfulReadings: []ReadingSummary{},
		Errors:             []UploadError{},
	}
}

// AddErrors appends errors in order.
func (r *Result) AddErrors(errs ...UploadError) {
	r.Errors = append(r.Errors, errs...)
}

// AccountRef returns a pointer suitable for UploadError.AccountID.
func AccountRef(id int) *int {
	return &id
}
