package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/meter-reading-uploads/internal/db"
)

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAccountByID returns the account, or nil when it does not exist
func (r *Repository) GetAccountByID(ctx context.Context, accountID int) (*db.Account, error) {
	query := `
		SELECT "AccountId", "FirstName", "LastName"
		FROM "Accounts"
		WHERE "AccountId" = $1
	`

	var account db.Account
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&account.AccountID,
		&account.FirstName,
		&account.LastName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	return &account, nil
}

// GetLatestReadingForAccount returns the most recent reading for an account, or nil
func (r *Repository) GetLatestReadingForAccount(ctx context.Context, accountID int) (*db.MeterReading, error) {
	query := `
		SELECT "AccountId", "MeterReadingDateTime", "MeterReadValue"
		FROM "MeterReadings"
		WHERE "AccountId" = $1
		ORDER BY "MeterReadingDateTime" DESC
		LIMIT 1
	`

	var reading db.MeterReading
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&reading.AccountID,
		&reading.MeterReadingDateTime,
		&reading.MeterReadValue,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest reading: %w", err)
	}

	reading.MeterReadingDateTime = reading.MeterReadingDateTime.UTC()
	return &reading, nil
}

// ReadingExists reports whether the exact (account, timestamp, value) reading is stored
func (r *Repository) ReadingExists(ctx context.Context, accountID int, readingTime time.Time, value int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM "MeterReadings"
			WHERE "AccountId" = $1 AND "MeterReadingDateTime" = $2 AND "MeterReadValue" = $3
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, accountID, readingTime.UTC(), value).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reading existence: %w", err)
	}

	return exists, nil
}

// InsertReading inserts a meter reading and returns the stored row
func (r *Repository) InsertReading(ctx context.Context, reading *db.MeterReading) (*db.MeterReading, error) {
	query := `
		INSERT INTO "MeterReadings" ("AccountId", "MeterReadingDateTime", "MeterReadValue")
		VALUES ($1, $2, $3)
		RETURNING "AccountId", "MeterReadingDateTime", "MeterReadValue"
	`

	var created db.MeterReading
	err := r.pool.QueryRow(ctx, query,
		reading.AccountID,
		reading.MeterReadingDateTime.UTC(),
		reading.MeterReadValue,
	).Scan(
		&created.AccountID,
		&created.MeterReadingDateTime,
		&created.MeterReadValue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert meter reading: %w", err)
	}

	created.MeterReadingDateTime = created.MeterReadingDateTime.UTC()
	return &created, nil
}

// ListAccounts returns all accounts ordered by id
func (r *Repository) ListAccounts(ctx context.Context) ([]db.Account, error) {
	query := `
		SELECT "AccountId", "FirstName", "LastName"
		FROM "Accounts"
		ORDER BY "AccountId"
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []db.Account
	for rows.Next() {
		var a db.Account
		if err := rows.Scan(&a.AccountID, &a.FirstName, &a.LastName); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return accounts, nil
}

// ListReadings returns all meter readings ordered by account and time
func (r *Repository) ListReadings(ctx context.Context) ([]db.MeterReading, error) {
	query := `
		SELECT "AccountId", "MeterReadingDateTime", "MeterReadValue"
		FROM "MeterReadings"
		ORDER BY "AccountId", "MeterReadingDateTime"
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query meter readings: %w", err)
	}
	defer rows.Close()

	var readings []db.MeterReading
	for rows.Next() {
		var m db.MeterReading
		if err := rows.Scan(&m.AccountID, &m.MeterReadingDateTime, &m.MeterReadValue); err != nil {
			return nil, fmt.Errorf("failed to scan meter reading: %w", err)
		}
		m.MeterReadingDateTime = m.MeterReadingDateTime.UTC()
		readings = append(readings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return readings, nil
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
