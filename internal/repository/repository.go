// Package repository contains the database access layer.
//
// Queries are hand-maintained SQL over database/sql with the pgx stdlib
// driver. The package mirrors the shape of generated query code: one Queries
// struct, per-operation methods with typed params, and WithTx for running a
// group of queries inside a transaction.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries provides access to all database operations.
type Queries struct {
	db DBTX
}

// New creates a Queries instance backed by the given database handle.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries instance that runs against the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// =============================================================================
// Users
// =============================================================================

// User is the database representation of a user row.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Phone        sql.NullString
	Address      sql.NullString
	CreatedAt    sql.NullTime
	UpdatedAt    sql.NullTime
}

const createUser = `
INSERT INTO users (id, email, password_hash, name, phone, address)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, email, password_hash, name, phone, address, created_at, updated_at
`

// CreateUserParams holds the inputs for CreateUser.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	Phone        sql.NullString
	Address      sql.NullString
}

// CreateUser inserts a new user row and returns it.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		uuid.New(), arg.Email, arg.PasswordHash, arg.Name, arg.Phone, arg.Address)
	return scanUser(row)
}

const getUserByEmail = `
SELECT id, email, password_hash, name, phone, address, created_at, updated_at
FROM users
WHERE email = $1
`

// GetUserByEmail retrieves a user by email address.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByID = `
SELECT id, email, password_hash, name, phone, address, created_at, updated_at
FROM users
WHERE id = $1
`

// GetUserByID retrieves a user by ID.
func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const updateUserProfile = `
UPDATE users
SET name = $2, phone = $3, address = $4, updated_at = now()
WHERE id = $1
`

// UpdateUserProfileParams holds the inputs for UpdateUserProfile.
type UpdateUserProfileParams struct {
	ID      uuid.UUID
	Name    string
	Phone   sql.NullString
	Address sql.NullString
}

// UpdateUserProfile updates the editable profile fields of a user.
// This is the only update path to the primary store.
func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) error {
	_, err := q.db.ExecContext(ctx, updateUserProfile, arg.ID, arg.Name, arg.Phone, arg.Address)
	return err
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Phone,
		&u.Address,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// =============================================================================
// Sessions
// =============================================================================

// Session is the database representation of a session row.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt sql.NullTime
}

const createSession = `
INSERT INTO sessions (id, user_id, token_hash, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, token_hash, expires_at, created_at
`

// CreateSessionParams holds the inputs for CreateSession.
type CreateSessionParams struct {
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
}

// CreateSession inserts a new session row and returns it.
func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRowContext(ctx, createSession,
		uuid.New(), arg.UserID, arg.TokenHash, arg.ExpiresAt)
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const getSessionByTokenHash = `
SELECT id, user_id, token_hash, expires_at, created_at
FROM sessions
WHERE token_hash = $1 AND expires_at > now()
`

// GetSessionByTokenHash retrieves a non-expired session by its token hash.
func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSessionByTokenHash, tokenHash)
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const deleteSession = `
DELETE FROM sessions WHERE token_hash = $1
`

// DeleteSession removes a session by its token hash.
func (q *Queries) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, tokenHash)
	return err
}

const deleteUserSessions = `
DELETE FROM sessions WHERE user_id = $1
`

// DeleteUserSessions removes all sessions for a user.
func (q *Queries) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteUserSessions, userID)
	return err
}

const deleteExpiredSessions = `
DELETE FROM sessions WHERE expires_at <= now()
`

// DeleteExpiredSessions removes all expired sessions.
func (q *Queries) DeleteExpiredSessions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteExpiredSessions)
	return err
}

// =============================================================================
// Reports
// =============================================================================

// Report is the database representation of a report row.
//
// Emergency types and attachments are stored as JSONB documents: reports are
// written once and read back whole, so there is nothing to join against.
type Report struct {
	ID             string
	ReporterID     uuid.UUID
	ReporterName   string
	EmergencyTypes []byte // JSONB array of type tags
	Location       string
	Latitude       sql.NullFloat64
	Longitude      sql.NullFloat64
	Address        sql.NullString
	Description    string
	Phone          string
	Attachments    []byte // JSONB array of attachment descriptors
	Status         string
	CreatedAt      time.Time
}

const createReport = `
INSERT INTO reports (id, reporter_id, reporter_name, emergency_types, location,
                     latitude, longitude, address, description, phone,
                     attachments, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, reporter_id, reporter_name, emergency_types, location,
          latitude, longitude, address, description, phone, attachments,
          status, created_at
`

// CreateReportParams holds the inputs for CreateReport.
type CreateReportParams struct {
	ID             string
	ReporterID     uuid.UUID
	ReporterName   string
	EmergencyTypes []byte
	Location       string
	Latitude       sql.NullFloat64
	Longitude      sql.NullFloat64
	Address        sql.NullString
	Description    string
	Phone          string
	Attachments    []byte
	Status         string
}

// CreateReport inserts a new report row and returns it. Report rows are
// immutable after creation: there is intentionally no UpdateReport query.
func (q *Queries) CreateReport(ctx context.Context, arg CreateReportParams) (Report, error) {
	row := q.db.QueryRowContext(ctx, createReport,
		arg.ID, arg.ReporterID, arg.ReporterName, arg.EmergencyTypes,
		arg.Location, arg.Latitude, arg.Longitude, arg.Address,
		arg.Description, arg.Phone, arg.Attachments, arg.Status)
	return scanReport(row)
}

const listReports = `
SELECT id, reporter_id, reporter_name, emergency_types, location,
       latitude, longitude, address, description, phone, attachments,
       status, created_at
FROM reports
ORDER BY created_at DESC
`

// ListReports returns all reports ordered by creation time descending.
func (q *Queries) ListReports(ctx context.Context) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listReports)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(
			&r.ID,
			&r.ReporterID,
			&r.ReporterName,
			&r.EmergencyTypes,
			&r.Location,
			&r.Latitude,
			&r.Longitude,
			&r.Address,
			&r.Description,
			&r.Phone,
			&r.Attachments,
			&r.Status,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

const getReportByID = `
SELECT id, reporter_id, reporter_name, emergency_types, location,
       latitude, longitude, address, description, phone, attachments,
       status, created_at
FROM reports
WHERE id = $1
`

// GetReportByID retrieves a report by its identifier.
func (q *Queries) GetReportByID(ctx context.Context, id string) (Report, error) {
	return scanReport(q.db.QueryRowContext(ctx, getReportByID, id))
}

const countReports = `
SELECT count(*) FROM reports
`

// CountReports returns the total number of reports in the store.
func (q *Queries) CountReports(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countReports).Scan(&n)
	return n, err
}

func scanReport(row *sql.Row) (Report, error) {
	var r Report
	err := row.Scan(
		&r.ID,
		&r.ReporterID,
		&r.ReporterName,
		&r.EmergencyTypes,
		&r.Location,
		&r.Latitude,
		&r.Longitude,
		&r.Address,
		&r.Description,
		&r.Phone,
		&r.Attachments,
		&r.Status,
		&r.CreatedAt,
	)
	return r, err
}
