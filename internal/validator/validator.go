package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/septivank/meter-reading-uploads/internal/db"
	"github.com/septivank/meter-reading-uploads/internal/upload"
	"github.com/septivank/meter-reading-uploads/tools/timeparser"
)

// Lookup is the read-only view of stored data the rules may consult.
type Lookup interface {
	GetAccountByID(ctx context.Context, accountID int) (*db.Account, error)
	GetLatestReadingForAccount(ctx context.Context, accountID int) (*db.MeterReading, error)
	ReadingExists(ctx context.Context, accountID int, readingTime time.Time, value int) (bool, error)
}

// Rule is one independent check. It returns a non-empty message when the row
// violates it. An error means the lookup itself failed.
type Rule struct {
	Name  string
	Check func(ctx context.Context, row upload.CandidateRow, lookup Lookup) (string, error)
}

// Validator applies the ordered rule list to candidate rows.
type Validator struct {
	rules         []Rule
	lookup        Lookup
	displayLayout string
}

// NewValidator creates a validator with the standard meter reading rules.
func NewValidator(lookup Lookup, rules upload.Rules) *Validator {
	return NewValidatorWithRules(lookup, rules.DisplayLayout, StandardRules(rules))
}

// NewValidatorWithRules creates a validator with an explicit rule list.
func NewValidatorWithRules(lookup Lookup, displayLayout string, rules []Rule) *Validator {
	return &Validator{
		rules:         rules,
		lookup:        lookup,
		displayLayout: displayLayout,
	}
}

// StandardRules returns range, account existence, duplicate and monotonicity
// checks, in that order.
func StandardRules(rules upload.Rules) []Rule {
	return []Rule{
		ValueRangeRule(rules.MinValue, rules.MaxValue),
		AccountExistsRule(),
		DuplicateRule(),
		MonotonicRule(rules.DisplayLayout),
	}
}

// Validate runs every rule against row; none short-circuits another.
// rowNumber is the 1-based data row index; errors report rowNumber + 1.
func (v *Validator) Validate(ctx context.Context, row upload.CandidateRow, rowNumber int) (bool, []upload.UploadError, error) {
	var errs []upload.UploadError
	rawData := row.RawData(v.displayLayout)

	for _, rule := range v.rules {
		msg, err := rule.Check(ctx, row, v.lookup)
		if err != nil {
			return false, nil, fmt.Errorf("%s check failed for row %d: %w", rule.Name, rowNumber+1, err)
		}
		if msg == "" {
			continue
		}
		errs = append(errs, upload.UploadError{
			Row:       rowNumber + 1,
			AccountID: upload.AccountRef(row.AccountID),
			Message:   msg,
			RawData:   rawData,
		})
	}

	return len(errs) > 0, errs, nil
}

// ValueRangeRule rejects values outside [min, max].
func ValueRangeRule(min, max int) Rule {
	return Rule{
		Name: "value_range",
		Check: func(_ context.Context, row upload.CandidateRow, _ Lookup) (string, error) {
			if row.ReadingValue < min || row.ReadingValue > max {
				return fmt.Sprintf(upload.MsgValueOutOfRangeFmt, min, max), nil
			}
			return "", nil
		},
	}
}

// AccountExistsRule rejects rows for unknown accounts.
func AccountExistsRule() Rule {
	return Rule{
		Name: "account_exists",
		Check: func(ctx context.Context, row upload.CandidateRow, lookup Lookup) (string, error) {
			account, err := lookup.GetAccountByID(ctx, row.AccountID)
			if err != nil {
				return "", err
			}
			if account == nil {
				return fmt.Sprintf(upload.MsgAccountNotFoundFmt, row.AccountID), nil
			}
			return "", nil
		},
	}
}

// DuplicateRule rejects an exact (account, timestamp, value) match.
func DuplicateRule() Rule {
	return Rule{
		Name: "duplicate",
		Check: func(ctx context.Context, row upload.CandidateRow, lookup Lookup) (string, error) {
			exists, err := lookup.ReadingExists(ctx, row.AccountID, row.ReadingTimestamp, row.ReadingValue)
			if err != nil {
				return "", err
			}
			if exists {
				return upload.MsgDuplicateEntry, nil
			}
			return "", nil
		},
	}
}

// MonotonicRule requires the timestamp to be strictly after the account's latest stored reading.
func MonotonicRule(displayLayout string) Rule {
	return Rule{
		Name: "monotonic",
		Check: func(ctx context.Context, row upload.CandidateRow, lookup Lookup) (string, error) {
			latest, err := lookup.GetLatestReadingForAccount(ctx, row.AccountID)
			if err != nil {
				return "", err
			}
			if latest != nil && !row.ReadingTimestamp.After(latest.MeterReadingDateTime) {
				return fmt.Sprintf(upload.MsgReadingTooOldFmt,
					timeparser.FormatReadingTimestamp(row.ReadingTimestamp, displayLayout),
					timeparser.FormatReadingTimestamp(latest.MeterReadingDateTime, displayLayout),
				), nil
			}
			return "", nil
		},
	}
}
