package service

import (
	"context"
	"fmt"
	"time"

	"github.com/septivank/meter-reading-uploads/internal/db"
)

// AccountLister lists stored accounts.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]db.Account, error)
}

// ReadingLister lists stored meter readings.
type ReadingLister interface {
	ListReadings(ctx context.Context) ([]db.MeterReading, error)
}

// AccountDTO is the API shape of an account.
type AccountDTO struct {
	AccountID int    `json:"accountId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// MeterReadingDTO is the API shape of a stored reading.
type MeterReadingDTO struct {
	AccountID            int       `json:"accountId"`
	MeterReadingDateTime time.Time `json:"meterReadingDateTime"`
	MeterReadValue       int       `json:"meterReadValue"`
}

// QueryService serves the read side of accounts and readings.
type QueryService struct {
	accounts AccountLister
	readings ReadingLister
}

// NewQueryService creates a new query service
func NewQueryService(accounts AccountLister, readings ReadingLister) *QueryService {
	return &QueryService{accounts: accounts, readings: readings}
}

// ListAccounts returns all accounts.
func (s *QueryService) ListAccounts(ctx context.Context) ([]AccountDTO, error) {
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	out := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountDTO{AccountID: a.AccountID, FirstName: a.FirstName, LastName: a.LastName})
	}
	return out, nil
}

// ListReadings returns all stored meter readings.
func (s *QueryService) ListReadings(ctx context.Context) ([]MeterReadingDTO, error) {
	readings, err := s.readings.ListReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list meter readings: %w", err)
	}

	out := make([]MeterReadingDTO, 0, len(readings))
	for _, r := range readings {
		out = append(out, MeterReadingDTO{
			AccountID:            r.AccountID,
			MeterReadingDateTime: r.MeterReadingDateTime.UTC(),
			MeterReadValue:       r.MeterReadValue,
		})
	}
	return out, nil
}
