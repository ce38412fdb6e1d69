/*
Package sqlite provides a SQLite-backed implementation of attendance.Store.

PURPOSE:
  The default record store: one file, no server. Postgres (store/postgres)
  implements the same interface for shared deployments; the SQL differs only
  in placeholders and column types.

KEY TABLES:
  profiles:          Employee accounts (never deleted, see active)
  time_entries:      Hours per user and day, unique per (user, date, type)
  sick_leaves:       Inclusive date ranges
  vacation_requests: Inclusive date ranges with approval state

COLUMN FORMATS:
  Dates are ISO "YYYY-MM-DD" TEXT, so range filters compare as strings.
  Hours are decimal TEXT (shopspring/decimal implements Scanner/Valuer).
  Timestamps are RFC 3339 TEXT in UTC.

CONCURRENCY:
  SQLite has a single writer. WithTx holds the store mutex for the whole
  transaction so that an overlap check and the insert it guards cannot
  interleave with another writer. The pool is limited to one connection.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/timetrack.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is created on New() with CREATE ... IF NOT EXISTS.

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
  - store/storetest: Behaviour shared by every implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/generic"
)

// Store implements attendance.Store using SQLite.
type Store struct {
	*queries
	db *sql.DB
	mu sync.Mutex
}

var _ attendance.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: ":memory:" databases are per connection, and SQLite
	// has one writer anyway
	db.SetMaxOpenConns(1)

	store := &Store{queries: &queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		given_name TEXT NOT NULL,
		family_name TEXT NOT NULL,
		job_title TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL CHECK (role IN ('employee', 'manager', 'admin')),
		manager_id TEXT REFERENCES profiles(id),
		vacation_days_total INTEGER NOT NULL DEFAULT 30,
		active INTEGER NOT NULL DEFAULT 1,
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		locked INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_manager
		ON profiles(manager_id) WHERE manager_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id),
		date TEXT NOT NULL,
		hours TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		location TEXT,
		comment TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One entry per user, day and type
	CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_user_date_type
		ON time_entries(user_id, date, entry_type);

	CREATE TABLE IF NOT EXISTS sick_leaves (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL CHECK (end_date >= start_date),
		comment TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sick_leaves_user_range
		ON sick_leaves(user_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS vacation_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL CHECK (end_date >= start_date),
		business_days INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('requested', 'approved', 'rejected')),
		rejection_reason TEXT,
		reviewed_by TEXT REFERENCES profiles(id),
		reviewed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vacation_requests_user_range
		ON vacation_requests(user_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_vacation_requests_status
		ON vacation_requests(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.Records) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.WrapStore("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	return generic.WrapStore("commit", sqlTx.Commit())
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"time_entries", "sick_leaves", "vacation_requests", "profiles"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return generic.WrapStore("reset "+table, err)
		}
	}
	return nil
}

// =============================================================================
// QUERIES - attendance.Records over *sql.DB or *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// PROFILES
// =============================================================================

const profileColumns = `id, email, given_name, family_name, job_title, role, manager_id,
	vacation_days_total, active, failed_login_attempts, locked, created_at, updated_at`

func (q *queries) GetProfile(ctx context.Context, id string) (attendance.UserProfile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, generic.NotFound("profile", id)
	}
	return p, generic.WrapStore("get profile", err)
}

func (q *queries) GetProfileByEmail(ctx context.Context, email string) (attendance.UserProfile, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = ?`, email)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, generic.NotFound("profile", email)
	}
	return p, generic.WrapStore("get profile by email", err)
}

func (q *queries) ListProfiles(ctx context.Context, f attendance.ProfileFilter) ([]attendance.UserProfile, error) {
	var (
		where []string
		args  []any
	)
	if f.ManagerID != "" {
		where = append(where, "manager_id = ?")
		args = append(args, f.ManagerID)
	}
	if f.Role != 0 {
		where = append(where, "role = ?")
		args = append(args, f.Role.String())
	}
	if f.ActiveOnly {
		where = append(where, "active = 1")
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles`+whereClause(where)+` ORDER BY family_name, id`, args...)
	if err != nil {
		return nil, generic.WrapStore("list profiles", err)
	}
	defer rows.Close()

	profiles := make([]attendance.UserProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, generic.WrapStore("list profiles", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, generic.WrapStore("list profiles", rows.Err())
}

func (q *queries) CreateProfile(ctx context.Context, p attendance.UserProfile) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.GivenName, p.FamilyName, p.JobTitle, p.Role.String(), nullString(p.ManagerID),
		p.VacationDaysTotal, p.Active, p.FailedLoginAttempts, p.Locked,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return &generic.ConflictError{Kind: "profile", Reason: p.Email + " is already registered"}
	}
	return generic.WrapStore("create profile", err)
}

func (q *queries) UpdateProfile(ctx context.Context, p attendance.UserProfile) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE profiles SET
			email = ?, given_name = ?, family_name = ?, job_title = ?, role = ?, manager_id = ?,
			vacation_days_total = ?, active = ?, failed_login_attempts = ?, locked = ?, updated_at = ?
		WHERE id = ?`,
		p.Email, p.GivenName, p.FamilyName, p.JobTitle, p.Role.String(), nullString(p.ManagerID),
		p.VacationDaysTotal, p.Active, p.FailedLoginAttempts, p.Locked, formatTime(p.UpdatedAt),
		p.ID,
	)
	if isUniqueConstraintError(err) {
		return &generic.ConflictError{Kind: "profile", Reason: p.Email + " is already registered"}
	}
	return affectedOne(res, err, "update profile", "profile", p.ID)
}

func scanProfile(row rowScanner) (attendance.UserProfile, error) {
	var (
		p         attendance.UserProfile
		role      string
		managerID sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.GivenName, &p.FamilyName, &p.JobTitle, &role, &managerID,
		&p.VacationDaysTotal, &p.Active, &p.FailedLoginAttempts, &p.Locked, &createdAt, &updatedAt,
	)
	if err != nil {
		return attendance.UserProfile{}, err
	}
	if p.Role, err = attendance.ParseRole(role); err != nil {
		return attendance.UserProfile{}, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	p.ManagerID = managerID.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

const entryColumns = `id, user_id, date, hours, entry_type, location, comment, created_at, updated_at`

func (q *queries) GetTimeEntry(ctx context.Context, id string) (attendance.TimeEntry, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, generic.NotFound("time entry", id)
	}
	return e, generic.WrapStore("get time entry", err)
}

func (q *queries) ListTimeEntries(ctx context.Context, f attendance.EntryFilter) ([]attendance.TimeEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		where = append(where, "entry_type = ?")
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries`+whereClause(where)+` ORDER BY date, id`, args...)
	if err != nil {
		return nil, generic.WrapStore("list time entries", err)
	}
	defer rows.Close()

	entries := make([]attendance.TimeEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, generic.WrapStore("list time entries", err)
		}
		entries = append(entries, e)
	}
	return entries, generic.WrapStore("list time entries", rows.Err())
}

func (q *queries) CreateTimeEntry(ctx context.Context, e attendance.TimeEntry) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO time_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Date, e.Hours, string(e.Type), nullString(string(e.Location)), e.Comment,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return &generic.ConflictError{Kind: "time_entry", Reason: "an entry of this type already exists for " + e.Date.String()}
	}
	return generic.WrapStore("create time entry", err)
}

func (q *queries) UpdateTimeEntry(ctx context.Context, e attendance.TimeEntry) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE time_entries SET hours = ?, location = ?, comment = ?, updated_at = ?
		WHERE id = ?`,
		e.Hours, nullString(string(e.Location)), e.Comment, formatTime(e.UpdatedAt), e.ID,
	)
	return affectedOne(res, err, "update time entry", "time entry", e.ID)
}

func (q *queries) DeleteTimeEntry(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	return affectedOne(res, err, "delete time entry", "time entry", id)
}

func scanEntry(row rowScanner) (attendance.TimeEntry, error) {
	var (
		e         attendance.TimeEntry
		entryType string
		location  sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Date, &e.Hours, &entryType, &location, &e.Comment, &createdAt, &updatedAt)
	if err != nil {
		return attendance.TimeEntry{}, err
	}
	e.Type = attendance.EntryType(entryType)
	e.Location = attendance.WorkLocation(location.String)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

// =============================================================================
// SICK LEAVES
// =============================================================================

const leaveColumns = `id, user_id, start_date, end_date, comment, created_at`

func (q *queries) GetSickLeave(ctx context.Context, id string) (attendance.SickLeave, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM sick_leaves WHERE id = ?`, id)
	l, err := scanLeave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return l, generic.NotFound("sick leave", id)
	}
	return l, generic.WrapStore("get sick leave", err)
}

func (q *queries) ListSickLeaves(ctx context.Context, f attendance.LeaveFilter) ([]attendance.SickLeave, error) {
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return []attendance.SickLeave{}, nil
	}
	where, args := rangeFilter(f.UserIDs, f.From, f.To)

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+leaveColumns+` FROM sick_leaves`+whereClause(where)+` ORDER BY start_date, id`, args...)
	if err != nil {
		return nil, generic.WrapStore("list sick leaves", err)
	}
	defer rows.Close()

	leaves := make([]attendance.SickLeave, 0)
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, generic.WrapStore("list sick leaves", err)
		}
		leaves = append(leaves, l)
	}
	return leaves, generic.WrapStore("list sick leaves", rows.Err())
}

func (q *queries) CreateSickLeave(ctx context.Context, l attendance.SickLeave) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sick_leaves (`+leaveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Start, l.End, l.Comment, formatTime(l.CreatedAt),
	)
	return generic.WrapStore("create sick leave", err)
}

func (q *queries) DeleteSickLeave(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sick_leaves WHERE id = ?`, id)
	return affectedOne(res, err, "delete sick leave", "sick leave", id)
}

func scanLeave(row rowScanner) (attendance.SickLeave, error) {
	var (
		l         attendance.SickLeave
		createdAt string
	)
	if err := row.Scan(&l.ID, &l.UserID, &l.Start, &l.End, &l.Comment, &createdAt); err != nil {
		return attendance.SickLeave{}, err
	}
	l.CreatedAt = parseTime(createdAt)
	return l, nil
}

// =============================================================================
// VACATION REQUESTS
// =============================================================================

const vacationColumns = `id, user_id, start_date, end_date, business_days, comment, status,
	rejection_reason, reviewed_by, reviewed_at, created_at`

func (q *queries) GetVacationRequest(ctx context.Context, id string) (attendance.VacationRequest, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+vacationColumns+` FROM vacation_requests WHERE id = ?`, id)
	v, err := scanVacation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, generic.NotFound("vacation request", id)
	}
	return v, generic.WrapStore("get vacation request", err)
}

func (q *queries) ListVacationRequests(ctx context.Context, f attendance.VacationFilter) ([]attendance.VacationRequest, error) {
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return []attendance.VacationRequest{}, nil
	}
	where, args := rangeFilter(f.UserIDs, f.From, f.To)
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+vacationColumns+` FROM vacation_requests`+whereClause(where)+` ORDER BY start_date, id`, args...)
	if err != nil {
		return nil, generic.WrapStore("list vacation requests", err)
	}
	defer rows.Close()

	requests := make([]attendance.VacationRequest, 0)
	for rows.Next() {
		v, err := scanVacation(rows)
		if err != nil {
			return nil, generic.WrapStore("list vacation requests", err)
		}
		requests = append(requests, v)
	}
	return requests, generic.WrapStore("list vacation requests", rows.Err())
}

func (q *queries) CreateVacationRequest(ctx context.Context, v attendance.VacationRequest) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO vacation_requests (`+vacationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.Start, v.End, v.BusinessDays, v.Comment, string(v.Status),
		nullString(v.RejectionReason), nullString(v.ReviewedBy), nullTime(v.ReviewedAt), formatTime(v.CreatedAt),
	)
	return generic.WrapStore("create vacation request", err)
}

func (q *queries) UpdateVacationRequest(ctx context.Context, v attendance.VacationRequest) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE vacation_requests SET
			status = ?, rejection_reason = ?, reviewed_by = ?, reviewed_at = ?, comment = ?
		WHERE id = ?`,
		string(v.Status), nullString(v.RejectionReason), nullString(v.ReviewedBy), nullTime(v.ReviewedAt), v.Comment,
		v.ID,
	)
	return affectedOne(res, err, "update vacation request", "vacation request", v.ID)
}

func (q *queries) DeleteVacationRequest(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM vacation_requests WHERE id = ?`, id)
	return affectedOne(res, err, "delete vacation request", "vacation request", id)
}

func scanVacation(row rowScanner) (attendance.VacationRequest, error) {
	var (
		v          attendance.VacationRequest
		status     string
		reason     sql.NullString
		reviewedBy sql.NullString
		reviewedAt sql.NullString
		createdAt  string
	)
	err := row.Scan(&v.ID, &v.UserID, &v.Start, &v.End, &v.BusinessDays, &v.Comment, &status,
		&reason, &reviewedBy, &reviewedAt, &createdAt)
	if err != nil {
		return attendance.VacationRequest{}, err
	}
	v.Status = attendance.VacationStatus(status)
	v.RejectionReason = reason.String
	v.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t := parseTime(reviewedAt.String)
		v.ReviewedAt = &t
	}
	v.CreatedAt = parseTime(createdAt)
	return v, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// rangeFilter builds the user and overlap conditions shared by the two range
// tables.
func rangeFilter(userIDs []string, from, to generic.Date) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	if len(userIDs) > 0 {
		where = append(where, "user_id IN ("+placeholders(len(userIDs))+")")
		for _, id := range userIDs {
			args = append(args, id)
		}
	}
	if !from.IsZero() {
		where = append(where, "end_date >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		where = append(where, "start_date <= ?")
		args = append(args, to)
	}
	return where, args
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func affectedOne(res sql.Result, err error, op, kind, id string) error {
	if err != nil {
		return generic.WrapStore(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return generic.WrapStore(op, err)
	}
	if n == 0 {
		return generic.NotFound(kind, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
