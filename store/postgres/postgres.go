/*
Package postgres provides a PostgreSQL-backed implementation of
attendance.Store on a pgx connection pool.

PURPOSE:
  Shared deployments run several server replicas against one database. The
  schema matches store/sqlite, with native DATE, NUMERIC and TIMESTAMPTZ
  columns.

TRANSACTIONS:
  WithTx runs at SERIALIZABLE isolation. Two replicas checking for an
  overlapping vacation request and then inserting cannot both commit; the
  loser gets a serialization failure, reported as a retryable store error.

USAGE:
  pool, err := postgres.NewPool(ctx, cfg.Postgres)
  store := postgres.New(pool)
  if err := store.EnsureSchema(ctx); err != nil {
      ...
  }

SEE ALSO:
  - store/sqlite: The single-file default
  - schema.sql: Table definitions
*/
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/timetrack/attendance"
	"github.com/warp/timetrack/config"
	"github.com/warp/timetrack/generic"
)

//go:embed schema.sql
var schema string

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
)

// Queryer is implemented by pgxpool.Pool and pgx.Tx.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Pool is the part of pgxpool.Pool the store needs.
type Pool interface {
	Queryer
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// BuildPoolConfig turns the config section into a pgxpool.Config.
func BuildPoolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}
	return poolCfg, nil
}

// NewPool creates a pool and checks that the database answers.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := BuildPoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// =============================================================================
// STORE
// =============================================================================

// Store implements attendance.Store on a pgx pool.
type Store struct {
	*queries
	pool Pool
}

var _ attendance.Store = (*Store)(nil)

// New wraps pool. The store takes ownership and closes it on Close.
func New(pool Pool) *Store {
	return &Store{queries: &queries{db: pool}, pool: pool}
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return generic.WrapStore("ensure schema", err)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// WithTx runs fn in a serializable transaction.
func (s *Store) WithTx(ctx context.Context, fn func(attendance.Records) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return generic.WrapStore("begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return generic.WrapStore("commit", err)
	}
	committed = true
	return nil
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE time_entries, sick_leaves, vacation_requests, profiles`)
	return generic.WrapStore("reset", err)
}

type queries struct {
	db Queryer
}

// =============================================================================
// PROFILES
// =============================================================================

const profileColumns = `id, email, given_name, family_name, job_title, role, manager_id, vacation_days_total, active, failed_login_attempts, locked, created_at, updated_at`

func (q *queries) GetProfile(ctx context.Context, id string) (attendance.UserProfile, error) {
	row := q.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, generic.NotFound("profile", id)
	}
	return p, translatePgError("get profile", err)
}

func (q *queries) GetProfileByEmail(ctx context.Context, email string) (attendance.UserProfile, error) {
	row := q.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE lower(email) = lower($1)`, email)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, generic.NotFound("profile", email)
	}
	return p, translatePgError("get profile by email", err)
}

func (q *queries) ListProfiles(ctx context.Context, f attendance.ProfileFilter) ([]attendance.UserProfile, error) {
	var w where
	if f.ManagerID != "" {
		w.add("manager_id = $%d", f.ManagerID)
	}
	if f.Role != 0 {
		w.add("role = $%d", f.Role.String())
	}
	if f.ActiveOnly {
		w.conds = append(w.conds, "active")
	}

	rows, err := q.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles`+w.clause()+` ORDER BY family_name, id`, w.args...)
	if err != nil {
		return nil, translatePgError("list profiles", err)
	}
	defer rows.Close()

	profiles := make([]attendance.UserProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, translatePgError("list profiles", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, translatePgError("list profiles", rows.Err())
}

func (q *queries) CreateProfile(ctx context.Context, p attendance.UserProfile) error {
	_, err := q.db.Exec(ctx, `INSERT INTO profiles (`+profileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.Email, p.GivenName, p.FamilyName, p.JobTitle, p.Role.String(), nullable(p.ManagerID),
		p.VacationDaysTotal, p.Active, p.FailedLoginAttempts, p.Locked, p.CreatedAt, p.UpdatedAt,
	)
	return translatePgError("create profile", err)
}

func (q *queries) UpdateProfile(ctx context.Context, p attendance.UserProfile) error {
	tag, err := q.db.Exec(ctx, `UPDATE profiles SET email = $1, given_name = $2, family_name = $3, job_title = $4, role = $5, manager_id = $6, vacation_days_total = $7, active = $8, failed_login_attempts = $9, locked = $10, updated_at = $11 WHERE id = $12`,
		p.Email, p.GivenName, p.FamilyName, p.JobTitle, p.Role.String(), nullable(p.ManagerID),
		p.VacationDaysTotal, p.Active, p.FailedLoginAttempts, p.Locked, p.UpdatedAt, p.ID,
	)
	return affectedOne(tag, err, "update profile", "profile", p.ID)
}

func scanProfile(row pgx.Row) (attendance.UserProfile, error) {
	var (
		p         attendance.UserProfile
		role      string
		managerID sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.GivenName, &p.FamilyName, &p.JobTitle, &role, &managerID,
		&p.VacationDaysTotal, &p.Active, &p.FailedLoginAttempts, &p.Locked, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return attendance.UserProfile{}, err
	}
	if p.Role, err = attendance.ParseRole(role); err != nil {
		return attendance.UserProfile{}, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	p.ManagerID = managerID.String
	return p, nil
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

const entryColumns = `id, user_id, date, hours::text, entry_type, location, comment, created_at, updated_at`

func (q *queries) GetTimeEntry(ctx context.Context, id string) (attendance.TimeEntry, error) {
	row := q.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, generic.NotFound("time entry", id)
	}
	return e, translatePgError("get time entry", err)
}

func (q *queries) ListTimeEntries(ctx context.Context, f attendance.EntryFilter) ([]attendance.TimeEntry, error) {
	var w where
	if f.UserID != "" {
		w.add("user_id = $%d", f.UserID)
	}
	if f.Type != "" {
		w.add("entry_type = $%d", string(f.Type))
	}
	if !f.From.IsZero() {
		w.add("date >= $%d", f.From.Time())
	}
	if !f.To.IsZero() {
		w.add("date <= $%d", f.To.Time())
	}

	rows, err := q.db.Query(ctx, `SELECT `+entryColumns+` FROM time_entries`+w.clause()+` ORDER BY date, id`, w.args...)
	if err != nil {
		return nil, translatePgError("list time entries", err)
	}
	defer rows.Close()

	entries := make([]attendance.TimeEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, translatePgError("list time entries", err)
		}
		entries = append(entries, e)
	}
	return entries, translatePgError("list time entries", rows.Err())
}

func (q *queries) CreateTimeEntry(ctx context.Context, e attendance.TimeEntry) error {
	_, err := q.db.Exec(ctx, `INSERT INTO time_entries (id, user_id, date, hours, entry_type, location, comment, created_at, updated_at) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.Date.Time(), e.Hours.String(), string(e.Type), nullable(string(e.Location)), e.Comment,
		e.CreatedAt, e.UpdatedAt,
	)
	return translatePgError("create time entry", err)
}

func (q *queries) UpdateTimeEntry(ctx context.Context, e attendance.TimeEntry) error {
	tag, err := q.db.Exec(ctx, `UPDATE time_entries SET hours = $1::numeric, location = $2, comment = $3, updated_at = $4 WHERE id = $5`,
		e.Hours.String(), nullable(string(e.Location)), e.Comment, e.UpdatedAt, e.ID,
	)
	return affectedOne(tag, err, "update time entry", "time entry", e.ID)
}

func (q *queries) DeleteTimeEntry(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	return affectedOne(tag, err, "delete time entry", "time entry", id)
}

func scanEntry(row pgx.Row) (attendance.TimeEntry, error) {
	var (
		e         attendance.TimeEntry
		date      time.Time
		hours     string
		entryType string
		location  sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &date, &hours, &entryType, &location, &e.Comment, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return attendance.TimeEntry{}, err
	}
	e.Date = generic.DateOf(date)
	if e.Hours, err = parseHours(hours); err != nil {
		return attendance.TimeEntry{}, fmt.Errorf("time entry %s: %w", e.ID, err)
	}
	e.Type = attendance.EntryType(entryType)
	e.Location = attendance.WorkLocation(location.String)
	return e, nil
}

// =============================================================================
// SICK LEAVES
// =============================================================================

const leaveColumns = `id, user_id, start_date, end_date, comment, created_at`

func (q *queries) GetSickLeave(ctx context.Context, id string) (attendance.SickLeave, error) {
	row := q.db.QueryRow(ctx, `SELECT `+leaveColumns+` FROM sick_leaves WHERE id = $1`, id)
	l, err := scanLeave(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return l, generic.NotFound("sick leave", id)
	}
	return l, translatePgError("get sick leave", err)
}

func (q *queries) ListSickLeaves(ctx context.Context, f attendance.LeaveFilter) ([]attendance.SickLeave, error) {
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return []attendance.SickLeave{}, nil
	}
	w := rangeFilter(f.UserIDs, f.From, f.To)

	rows, err := q.db.Query(ctx, `SELECT `+leaveColumns+` FROM sick_leaves`+w.clause()+` ORDER BY start_date, id`, w.args...)
	if err != nil {
		return nil, translatePgError("list sick leaves", err)
	}
	defer rows.Close()

	leaves := make([]attendance.SickLeave, 0)
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, translatePgError("list sick leaves", err)
		}
		leaves = append(leaves, l)
	}
	return leaves, translatePgError("list sick leaves", rows.Err())
}

func (q *queries) CreateSickLeave(ctx context.Context, l attendance.SickLeave) error {
	_, err := q.db.Exec(ctx, `INSERT INTO sick_leaves (`+leaveColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.UserID, l.Start.Time(), l.End.Time(), l.Comment, l.CreatedAt,
	)
	return translatePgError("create sick leave", err)
}

func (q *queries) DeleteSickLeave(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM sick_leaves WHERE id = $1`, id)
	return affectedOne(tag, err, "delete sick leave", "sick leave", id)
}

func scanLeave(row pgx.Row) (attendance.SickLeave, error) {
	var (
		l          attendance.SickLeave
		start, end time.Time
	)
	if err := row.Scan(&l.ID, &l.UserID, &start, &end, &l.Comment, &l.CreatedAt); err != nil {
		return attendance.SickLeave{}, err
	}
	l.Start, l.End = generic.DateOf(start), generic.DateOf(end)
	return l, nil
}

// =============================================================================
// VACATION REQUESTS
// =============================================================================

const vacationColumns = `id, user_id, start_date, end_date, business_days, comment, status, rejection_reason, reviewed_by, reviewed_at, created_at`

func (q *queries) GetVacationRequest(ctx context.Context, id string) (attendance.VacationRequest, error) {
	row := q.db.QueryRow(ctx, `SELECT `+vacationColumns+` FROM vacation_requests WHERE id = $1`, id)
	v, err := scanVacation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, generic.NotFound("vacation request", id)
	}
	return v, translatePgError("get vacation request", err)
}

func (q *queries) ListVacationRequests(ctx context.Context, f attendance.VacationFilter) ([]attendance.VacationRequest, error) {
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return []attendance.VacationRequest{}, nil
	}
	w := rangeFilter(f.UserIDs, f.From, f.To)
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		w.add("status = ANY($%d)", statuses)
	}

	rows, err := q.db.Query(ctx, `SELECT `+vacationColumns+` FROM vacation_requests`+w.clause()+` ORDER BY start_date, id`, w.args...)
	if err != nil {
		return nil, translatePgError("list vacation requests", err)
	}
	defer rows.Close()

	requests := make([]attendance.VacationRequest, 0)
	for rows.Next() {
		v, err := scanVacation(rows)
		if err != nil {
			return nil, translatePgError("list vacation requests", err)
		}
		requests = append(requests, v)
	}
	return requests, translatePgError("list vacation requests", rows.Err())
}

func (q *queries) CreateVacationRequest(ctx context.Context, v attendance.VacationRequest) error {
	_, err := q.db.Exec(ctx, `INSERT INTO vacation_requests (`+vacationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		v.ID, v.UserID, v.Start.Time(), v.End.Time(), v.BusinessDays, v.Comment, string(v.Status),
		nullable(v.RejectionReason), nullable(v.ReviewedBy), v.ReviewedAt, v.CreatedAt,
	)
	return translatePgError("create vacation request", err)
}

func (q *queries) UpdateVacationRequest(ctx context.Context, v attendance.VacationRequest) error {
	tag, err := q.db.Exec(ctx, `UPDATE vacation_requests SET status = $1, rejection_reason = $2, reviewed_by = $3, reviewed_at = $4, comment = $5 WHERE id = $6`,
		string(v.Status), nullable(v.RejectionReason), nullable(v.ReviewedBy), v.ReviewedAt, v.Comment, v.ID,
	)
	return affectedOne(tag, err, "update vacation request", "vacation request", v.ID)
}

func (q *queries) DeleteVacationRequest(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM vacation_requests WHERE id = $1`, id)
	return affectedOne(tag, err, "delete vacation request", "vacation request", id)
}

func scanVacation(row pgx.Row) (attendance.VacationRequest, error) {
	var (
		v          attendance.VacationRequest
		start, end time.Time
		status     string
		reason     sql.NullString
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
	)
	err := row.Scan(&v.ID, &v.UserID, &start, &end, &v.BusinessDays, &v.Comment, &status,
		&reason, &reviewedBy, &reviewedAt, &v.CreatedAt)
	if err != nil {
		return attendance.VacationRequest{}, err
	}
	v.Start, v.End = generic.DateOf(start), generic.DateOf(end)
	v.Status = attendance.VacationStatus(status)
	v.RejectionReason = reason.String
	v.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		at := reviewedAt.Time.UTC()
		v.ReviewedAt = &at
	}
	return v, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// where accumulates numbered conditions; each cond carries one $%d verb.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func rangeFilter(userIDs []string, from, to generic.Date) where {
	var w where
	if len(userIDs) > 0 {
		w.add("user_id = ANY($%d)", userIDs)
	}
	if !from.IsZero() {
		w.add("end_date >= $%d", from.Time())
	}
	if !to.IsZero() {
		w.add("start_date <= $%d", to.Time())
	}
	return w
}

func affectedOne(tag pgconn.CommandTag, err error, op, kind, id string) error {
	if err != nil {
		return translatePgError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return generic.NotFound(kind, id)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// translatePgError maps constraint violations to domain errors and wraps the
// rest as store errors.
func translatePgError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return &generic.ConflictError{Kind: tableKind(pgErr.TableName), Reason: "a record with these values already exists"}
		case foreignKeyViolationCode:
			return generic.NewValidationError(pgErr.ColumnName, "references a record that does not exist")
		}
	}
	return generic.WrapStore(op, err)
}

func tableKind(table string) string {
	switch table {
	case "profiles":
		return "profile"
	case "time_entries":
		return "time_entry"
	case "sick_leaves":
		return "sick_leave"
	case "vacation_requests":
		return "vacation_request"
	default:
		return table
	}
}
