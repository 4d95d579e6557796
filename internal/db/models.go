package db

import (
	"time"
)

// Account represents a customer account in the database
type Account struct {
	AccountID int
	FirstName string
	LastName  string
}

// MeterReading represents a stored meter reading. (AccountID, MeterReadingDateTime)
// is the primary key.
type MeterReading struct {
	AccountID            int
	MeterReadingDateTime time.Time
	MeterReadValue       int
}
