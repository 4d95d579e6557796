package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/septivank/meter-reading-uploads/internal/upload"
	"github.com/septivank/meter-reading-uploads/tools/timeparser"
)

const byteOrderMark = "\uFEFF"

// RowParser turns raw CSV lines into candidate rows.
type RowParser struct {
	rules upload.Rules
}

// NewRowParser creates a parser bound to the given rules.
func NewRowParser(rules upload.Rules) *RowParser {
	return &RowParser{rules: rules}
}

// CheckHeader validates the header line. It returns nil when the header is
// acceptable, otherwise the single structural error to report at row 1.
func (p *RowParser) CheckHeader(line string) *upload.UploadError {
	line = strings.TrimPrefix(line, byteOrderMark)
	if strings.TrimSpace(line) == "" {
		return &upload.UploadError{Row: 1, Message: upload.MsgEmptyFile, RawData: ""}
	}

	found := SplitHeader(line)
	if headersMatch(found, p.rules.Headers) {
		return nil
	}

	return &upload.UploadError{
		Row: 1,
		Message: fmt.Sprintf("%s. Expected: %s. Found: %s",
			upload.MsgInvalidHeaders,
			strings.Join(p.rules.Headers, ", "),
			strings.Join(found, ", "),
		),
		RawData: line,
	}
}

// SplitHeader splits a header line on commas, trimming tokens and dropping empty ones.
func SplitHeader(line string) []string {
	var tokens []string
	for _, token := range strings.Split(line, ",") {
		token = strings.TrimSpace(token)
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func headersMatch(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range expected {
		if !strings.EqualFold(actual[i], expected[i]) {
			return false
		}
	}
	return true
}

// Parse converts one data line. rowNumber is the 1-based data row index with
// the header excluded; reported rows are file line numbers (rowNumber + 1).
// Field errors are collected together; no row is returned when any occur.
func (p *RowParser) Parse(line string, rowNumber int) (*upload.CandidateRow, bool, []upload.UploadError) {
	fileRow := rowNumber + 1
	parts := strings.Split(line, ",")

	if len(parts) < p.rules.MinColumns {
		return nil, true, []upload.UploadError{{
			Row:     fileRow,
			Message: upload.MsgInsufficientColumns,
			RawData: line,
		}}
	}

	var errs []upload.UploadError

	accountID, err := parseInt(parts[0])
	accountOK := err == nil
	if !accountOK {
		errs = append(errs, upload.UploadError{
			Row:     fileRow,
			Message: upload.MsgInvalidAccountIDFormat,
			RawData: line,
		})
	}

	// Errors on the remaining fields carry the account id only when it is usable.
	var accountRef *int
	if accountOK && accountID > 0 {
		accountRef = upload.AccountRef(accountID)
	}

	readingTime, err := timeparser.ParseReadingTimestamp(parts[1], p.rules.DateTimeLayouts)
	if err != nil {
		errs = append(errs, upload.UploadError{
			Row:       fileRow,
			AccountID: accountRef,
			Message:   upload.MsgInvalidDateTimeFormat,
			RawData:   line,
		})
	}

	value, err := parseInt(parts[2])
	if err != nil {
		errs = append(errs, upload.UploadError{
			Row:       fileRow,
			AccountID: accountRef,
			Message:   upload.MsgInvalidMeterValueFormat,
			RawData:   line,
		})
	}

	if len(errs) > 0 {
		return nil, true, errs
	}

	return &upload.CandidateRow{
		AccountID:        accountID,
		ReadingTimestamp: readingTime,
		ReadingValue:     value,
		SourceRowNumber:  fileRow,
	}, false, nil
}

// parseInt accepts an optionally signed base-10 integer in the 32-bit range.
func parseInt(field string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(field), 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
