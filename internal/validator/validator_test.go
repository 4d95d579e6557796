package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/septivank/meter-reading-uploads/internal/db"
	"github.com/septivank/meter-reading-uploads/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLookup is a mock implementation of the Lookup interface.
type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) GetAccountByID(ctx context.Context, accountID int) (*db.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.Account), args.Error(1)
}

func (m *MockLookup) GetLatestReadingForAccount(ctx context.Context, accountID int) (*db.MeterReading, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.MeterReading), args.Error(1)
}

func (m *MockLookup) ReadingExists(ctx context.Context, accountID int, readingTime time.Time, value int) (bool, error) {
	args := m.Called(ctx, accountID, readingTime, value)
	return args.Bool(0), args.Error(1)
}

var readingTime = time.Date(2019, 4, 22, 9, 24, 0, 0, time.UTC)

func newRow(accountID, value int) upload.CandidateRow {
	return upload.CandidateRow{AccountID: accountID, ReadingTimestamp: readingTime, ReadingValue: value, SourceRowNumber: 2}
}

func TestValidate_ValidRow(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockLookup)
	lookup.On("GetAccountByID", ctx, 2344).Return(&db.Account{AccountID: 2344}, nil)
	lookup.On("ReadingExists", ctx, 2344, readingTime, 1002).Return(false, nil)
	lookup.On("GetLatestReadingForAccount", ctx, 2344).Return(&db.MeterReading{
		AccountID:            2344,
		MeterReadingDateTime: readingTime.Add(-time.Hour),
	}, nil)

	v := NewValidator(lookup, upload.DefaultRules())
	hasErrors, errs, err := v.Validate(ctx, newRow(2344, 1002), 1)

	require.NoError(t, err)
	assert.False(t, hasErrors)
	assert.Empty(t, errs)
	lookup.AssertExpectations(t)
}

func TestValidate_AccountNotFound(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockLookup)
	lookup.On("GetAccountByID", ctx, 9999).Return(nil, nil)
	lookup.On("ReadingExists", ctx, 9999, readingTime, 100).Return(false, nil)
	lookup.On("GetLatestReadingForAccount", ctx, 9999).Return(nil, nil)

	v := NewValidator(lookup, upload.DefaultRules())
	hasErrors, errs, err := v.Validate(ctx, newRow(9999, 100), 3)

	require.NoError(t, err)
	assert.True(t, hasErrors)
	require.Len(t, errs, 1)
	assert.Equal(t, "Account with AccountId 9999 not found", errs[0].Message)
	assert.Equal(t, 4, errs[0].Row)
	require.NotNil(t, errs[0].AccountID)
	assert.Equal(t, 9999, *errs[0].AccountID)
	assert.Equal(t, "9999,22/04/2019 09:24,100", errs[0].RawData)
}

func TestValidate_ChecksAreCumulative(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockLookup)
	lookup.On("GetAccountByID", ctx, 1).Return(nil, nil)
	lookup.On("ReadingExists", ctx, 1, readingTime, 100000).Return(true, nil)
	lookup.On("GetLatestReadingForAccount", ctx, 1).Return(&db.MeterReading{MeterReadingDateTime: readingTime}, nil)

	v := NewValidator(lookup, upload.DefaultRules())
	hasErrors, errs, err := v.Validate(ctx, newRow(1, 100000), 1)

	require.NoError(t, err)
	assert.True(t, hasErrors)
	require.Len(t, errs, 4)
	assert.Equal(t, "Reading value must be between 0 and 99999 (NNNNN format)", errs[0].Message)
	assert.Equal(t, "Account with AccountId 1 not found", errs[1].Message)
	assert.Equal(t, upload.MsgDuplicateEntry, errs[2].Message)
	assert.Equal(t, "New reading date (22/04/2019 09:24) must be newer than existing latest reading (22/04/2019 09:24)", errs[3].Message)
}

func TestValidate_ReadingTooOld(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockLookup)
	lookup.On("GetAccountByID", ctx, 2344).Return(&db.Account{AccountID: 2344}, nil)
	lookup.On("ReadingExists", ctx, 2344, readingTime, 5).Return(false, nil)
	lookup.On("GetLatestReadingForAccount", ctx, 2344).Return(&db.MeterReading{
		MeterReadingDateTime: readingTime.Add(24 * time.Hour),
	}, nil)

	v := NewValidator(lookup, upload.DefaultRules())
	_, errs, err := v.Validate(ctx, newRow(2344, 5), 1)

	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "New reading date (22/04/2019 09:24) must be newer than existing latest reading (23/04/2019 09:24)", errs[0].Message)
}

func TestValidate_NegativeValueOutOfRange(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockLookup)
	lookup.On("GetAccountByID", ctx, 2344).Return(&db.Account{AccountID: 2344}, nil)
	lookup.On("ReadingExists", ctx, 2344, readingTime, -1).Return(false, nil)
	lookup.On("GetLatestReadingForAccount", ctx, 2344).Return(nil, nil)

	v := NewValidator(lookup, upload.DefaultRules())
	hasErrors, errs, err := v.Validate(ctx, newRow(2344, -1), 1)

	require.NoError(t, err)
	assert.True(t, hasErrors)
	require.Len(t, errs, 1)
	assert.Equal(t, "2344,22/04/2019 09:24,-1", errs[0].RawData)
}

func TestValidate_LookupFailure(t *testing.T) {
	ctx := context.Background()
	lookup := new(MockLookup)
	lookup.On("GetAccountByID", ctx, 2344).Return(nil, errors.New("connection refused"))

	v := NewValidator(lookup, upload.DefaultRules())
	_, _, err := v.Validate(ctx, newRow(2344, 5), 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestValidateWithRules_CustomRuleList(t *testing.T) {
	v := NewValidatorWithRules(nil, "02/01/2006 15:04", []Rule{ValueRangeRule(10, 20)})

	hasErrors, errs, err := v.Validate(context.Background(), newRow(1, 5), 1)

	require.NoError(t, err)
	assert.True(t, hasErrors)
	require.Len(t, errs, 1)
	assert.Equal(t, "Reading value must be between 10 and 20 (NNNNN format)", errs[0].Message)
}
