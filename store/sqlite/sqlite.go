/*
Package sqlite provides a SQLite-backed implementation of the engine's
collaborators.

PURPOSE:
  Implements every interface the settlement engine consumes (employee and
  project directories, the three data sources, settlement persistence and
  the notification inbox) on one SQLite database.

INTERFACES IMPLEMENTED:
  generic.EmployeeDirectory, generic.WorkLogStore, generic.AttendanceStore,
  generic.LeaveStore, generic.Notifier,
  settlement.ProjectDirectory, settlement.SettlementStore

KEY TABLES:
  employees:      Identities and role (only "worker" is eligible)
  projects:       Billing configuration as factory JSON
  work_logs:      One row per submission (revisions are separate rows)
  attendance:     Clock-in/clock-out per date
  leave_requests: Leave spans with approval status
  settlements:    Finalized records, frozen breakdown as JSON
  notifications:  Inbox rows written by Send

IDEMPOTENCY:
  settlements.idempotency_key is UNIQUE. The key is derived from
  (employee, period start, period end), so a second finalize of the same
  employee and period fails inside the INSERT itself, with no
  check-then-create window between concurrent runs.

CONCURRENCY:
  Uses sync.RWMutex for writes vs reads. In-memory databases are pinned to
  a single connection, since every new connection would get its own empty
  database.

USAGE:
  store, err := sqlite.New("./data/settlements.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go, settlement/types.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - factory/project.go: Project config JSON
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/factory"
	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/settlement"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	projects *factory.ProjectFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, projects: factory.NewProjectFactory()}
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

// Ping checks the connection, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'worker',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_role ON employees(role);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		billing_model TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Work logs: several rows per employee/date/project are revisions and
	-- are all returned; the engine sums them.
	CREATE TABLE IF NOT EXISTS work_logs (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		date TEXT NOT NULL,
		hours_worked TEXT,
		achieved_count TEXT,
		submitted_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_logs_employee_date
		ON work_logs(employee_id, date);

	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		date TEXT NOT NULL,
		clock_in TEXT,
		clock_out TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee_date
		ON attendance(employee_id, date);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_employee_status
		ON leave_requests(employee_id, status, start_date, end_date);

	-- Settlements: one per employee per period, enforced by the key.
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		idempotency_key TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		notification TEXT NOT NULL DEFAULT 'QUEUED',
		breakdown_json TEXT NOT NULL,
		days_present INTEGER NOT NULL DEFAULT 0,
		days_on_leave INTEGER NOT NULL DEFAULT 0,
		total TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_employee
		ON settlements(employee_id);
	CREATE INDEX IF NOT EXISTS idx_settlements_period
		ON settlements(period_start, period_end);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.addColumnIfMissing("settlements", "notification", "TEXT NOT NULL DEFAULT 'QUEUED'")
}

// addColumnIfMissing upgrades databases created before a column existed.
func (s *Store) addColumnIfMissing(table, column, definition string) error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	_, err = s.db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN ` + column + ` ` + definition)
	return err
}

// =============================================================================
// EMPLOYEES (generic.EmployeeDirectory)
// =============================================================================

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, e generic.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role := e.Role
	if role == "" {
		role = generic.RoleWorker
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO employees (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Name, e.Email, role, now())
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee returns one employee or generic.ErrEmployeeNotFound.
func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e generic.Employee
	var email sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, role FROM employees WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &email, &e.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	e.Email = email.String
	return &e, nil
}

// ListEligible returns employees with the worker role.
func (s *Store) ListEligible(ctx context.Context) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, role FROM employees
		WHERE role = ?
		ORDER BY name, id
	`, generic.RoleWorker)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []generic.Employee
	for rows.Next() {
		var e generic.Employee
		var email sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &email, &e.Role); err != nil {
			return nil, err
		}
		e.Email = email.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// PROJECTS (settlement.ProjectDirectory)
// =============================================================================

// SaveProject stores a project's billing configuration. Callers validate
// through the factory first; rows are stored as given.
func (s *Store) SaveProject(ctx context.Context, p billing.Project) error {
	config, err := s.projects.Marshal(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, billing_model, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			billing_model = excluded.billing_model,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Model, config, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// ListProjects returns every project. Configurations are decoded but not
// validated here; the engine reports a broken formula per employee.
func (s *Store) ListProjects(ctx context.Context) ([]billing.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, config_json FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []billing.Project
	for rows.Next() {
		var id, config string
		if err := rows.Scan(&id, &config); err != nil {
			return nil, err
		}
		p, err := s.projects.Decode(config)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", id, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// WORK LOGS (generic.WorkLogStore)
// =============================================================================

// SaveWorkLog appends a work log submission.
func (s *Store) SaveWorkLog(ctx context.Context, w generic.WorkLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	submitted := w.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_logs (id, employee_id, project_id, date, hours_worked, achieved_count, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.EmployeeID, w.ProjectID, w.Date.String(),
		nullDecimal(w.HoursWorked), nullDecimal(w.AchievedCount),
		submitted.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save work log: %w", err)
	}
	return nil
}

// WorkLogs returns every submission dated within [from, to].
func (s *Store) WorkLogs(ctx context.Context, employeeID generic.EmployeeID, from, to generic.TimePoint) ([]generic.WorkLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, project_id, date, hours_worked, achieved_count, submitted_at
		FROM work_logs
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date, submitted_at, id
	`, employeeID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query work logs: %w", err)
	}
	defer rows.Close()

	var out []generic.WorkLog
	for rows.Next() {
		var w generic.WorkLog
		var date, submitted string
		var hours, count sql.NullString
		if err := rows.Scan(&w.ID, &w.EmployeeID, &w.ProjectID, &date, &hours, &count, &submitted); err != nil {
			return nil, err
		}
		if w.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		if w.HoursWorked, err = parseNullDecimal(hours); err != nil {
			return nil, fmt.Errorf("work log %s hours: %w", w.ID, err)
		}
		if w.AchievedCount, err = parseNullDecimal(count); err != nil {
			return nil, fmt.Errorf("work log %s achieved count: %w", w.ID, err)
		}
		w.SubmittedAt, _ = time.Parse(time.RFC3339, submitted)
		out = append(out, w)
	}
	return out, rows.Err()
}

// =============================================================================
// ATTENDANCE (generic.AttendanceStore)
// =============================================================================

// SaveAttendance stores an attendance record. The date is taken from the
// record, or from the clock-in when the record has none.
func (s *Store) SaveAttendance(ctx context.Context, a generic.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Date.IsZero() && a.ClockIn != nil {
		a.Date = generic.DateOf(*a.ClockIn)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO attendance (id, employee_id, date, clock_in, clock_out)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.EmployeeID, a.Date.String(), nullTime(a.ClockIn), nullTime(a.ClockOut))
	if err != nil {
		return fmt.Errorf("failed to save attendance: %w", err)
	}
	return nil
}

// Attendance returns every record dated within [from, to].
func (s *Store) Attendance(ctx context.Context, employeeID generic.EmployeeID, from, to generic.TimePoint) ([]generic.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, date, clock_in, clock_out
		FROM attendance
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date, id
	`, employeeID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var out []generic.Attendance
	for rows.Next() {
		var a generic.Attendance
		var date string
		var in, outAt sql.NullString
		if err := rows.Scan(&a.ID, &a.EmployeeID, &date, &in, &outAt); err != nil {
			return nil, err
		}
		if a.Date, err = generic.ParseDate(date); err != nil {
			return nil, err
		}
		a.ClockIn = parseNullTime(in)
		a.ClockOut = parseNullTime(outAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// LEAVE (generic.LeaveStore)
// =============================================================================

// SaveLeave inserts or replaces a leave request.
func (s *Store) SaveLeave(ctx context.Context, l generic.Leave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	status := l.Status
	if status == "" {
		status = generic.LeavePending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO leave_requests (id, employee_id, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.ID, l.EmployeeID, l.Start.String(), l.End.String(), status, now())
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	return nil
}

// ApprovedLeave returns APPROVED requests whose span overlaps [from, to].
func (s *Store) ApprovedLeave(ctx context.Context, employeeID generic.EmployeeID, from, to generic.TimePoint) ([]generic.Leave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, start_date, end_date, status
		FROM leave_requests
		WHERE employee_id = ? AND status = ?
		  AND start_date <= ? AND end_date >= ?
		ORDER BY start_date, id
	`, employeeID, generic.LeaveApproved, to.String(), from.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query leave: %w", err)
	}
	defer rows.Close()

	var out []generic.Leave
	for rows.Next() {
		var l generic.Leave
		var start, end string
		if err := rows.Scan(&l.ID, &l.EmployeeID, &start, &end, &l.Status); err != nil {
			return nil, err
		}
		if l.Start, err = generic.ParseDate(start); err != nil {
			return nil, err
		}
		if l.End, err = generic.ParseDate(end); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// =============================================================================
// SETTLEMENTS (settlement.SettlementStore)
// =============================================================================

type earningRow struct {
	ProjectID   string          `json:"project_id"`
	ProjectName string          `json:"project_name"`
	Model       string          `json:"billing_model"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	Entries     int             `json:"entries"`
	Amount      decimal.Decimal `json:"amount"`
}

// CreateSettlement inserts a record. A second record with the same
// idempotency key fails with generic.ErrDuplicateSettlement.
func (s *Store) CreateSettlement(ctx context.Context, r settlement.Record) error {
	rows := make([]earningRow, len(r.Breakdown))
	for i, e := range r.Breakdown {
		rows[i] = earningRow{
			ProjectID:   string(e.ProjectID),
			ProjectName: e.ProjectName,
			Model:       string(e.Model),
			Unit:        e.Unit,
			Quantity:    e.Quantity,
			Entries:     e.Entries,
			Amount:      e.Amount,
		}
	}
	breakdown, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode breakdown: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settlements
		(id, idempotency_key, employee_id, employee_name, period_start, period_end, status,
		 notification, breakdown_json, days_present, days_on_leave, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.IdempotencyKey,
		r.EmployeeID,
		r.EmployeeName,
		r.Period.Start.String(),
		r.Period.End.String(),
		r.Status,
		notificationOrQueued(r.Notification),
		string(breakdown),
		r.Attendance.DaysPresent,
		r.Attendance.DaysOnLeave,
		r.Total.String(),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isIdempotencyKeyConflict(err) {
			return generic.ErrDuplicateSettlement
		}
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	return nil
}

const settlementColumns = `
	id, idempotency_key, employee_id, employee_name, period_start, period_end, status,
	notification, breakdown_json, days_present, days_on_leave, total, created_at, updated_at`

// GetSettlement returns one record or generic.ErrSettlementNotFound.
func (s *Store) GetSettlement(ctx context.Context, id generic.SettlementID) (*settlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.querySettlements(ctx, `SELECT`+settlementColumns+` FROM settlements WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, generic.ErrSettlementNotFound
	}
	return &records[0], nil
}

// GetSettlementByKey returns the record behind an idempotency key.
func (s *Store) GetSettlementByKey(ctx context.Context, key string) (*settlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.querySettlements(ctx, `SELECT`+settlementColumns+` FROM settlements WHERE idempotency_key = ?`, key)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, generic.ErrSettlementNotFound
	}
	return &records[0], nil
}

// SetNotification moves the notification state in a single conditional
// UPDATE, so two runs can never both claim a failed notification.
func (s *Store) SetNotification(ctx context.Context, id generic.SettlementID, from, to settlement.NotificationState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET notification = ?, updated_at = ? WHERE id = ? AND notification = ?`,
		to, now(), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update notification state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM settlements WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, generic.ErrSettlementNotFound
	}
	return false, err
}

// ListSettlements returns records matching the filter, oldest first.
func (s *Store) ListSettlements(ctx context.Context, f settlement.Filter) ([]settlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT` + settlementColumns + ` FROM settlements WHERE 1=1`
	var args []any
	if f.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if f.Period != nil {
		query += ` AND period_start = ? AND period_end = ?`
		args = append(args, f.Period.Start.String(), f.Period.End.String())
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at, id`

	return s.querySettlements(ctx, query, args...)
}

// UpdateSettlementStatus moves a PENDING record to PAID or OVERDUE.
// Nothing but the status and updated_at is ever rewritten.
func (s *Store) UpdateSettlementStatus(ctx context.Context, id generic.SettlementID, status settlement.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current settlement.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM settlements WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.ErrSettlementNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read settlement status: %w", err)
	}
	if err := settlement.ValidateTransition(current, status); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE settlements SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, now(), id, current,
	); err != nil {
		return fmt.Errorf("failed to update settlement status: %w", err)
	}
	return tx.Commit()
}

func (s *Store) querySettlements(ctx context.Context, query string, args ...any) ([]settlement.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var out []settlement.Record
	for rows.Next() {
		r, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSettlement(rows *sql.Rows) (settlement.Record, error) {
	var r settlement.Record
	var start, end, breakdown, total, created, updated string
	err := rows.Scan(
		&r.ID, &r.IdempotencyKey, &r.EmployeeID, &r.EmployeeName, &start, &end, &r.Status,
		&r.Notification, &breakdown, &r.Attendance.DaysPresent, &r.Attendance.DaysOnLeave, &total, &created, &updated,
	)
	if err != nil {
		return r, err
	}

	if r.Period.Start, err = generic.ParseDate(start); err != nil {
		return r, err
	}
	if r.Period.End, err = generic.ParseDate(end); err != nil {
		return r, err
	}
	if r.Total, err = decimal.NewFromString(total); err != nil {
		return r, fmt.Errorf("settlement %s total: %w", r.ID, err)
	}

	var lines []earningRow
	if err := json.Unmarshal([]byte(breakdown), &lines); err != nil {
		return r, fmt.Errorf("settlement %s breakdown: %w", r.ID, err)
	}
	r.Breakdown = make([]settlement.ProjectEarning, len(lines))
	for i, l := range lines {
		r.Breakdown[i] = settlement.ProjectEarning{
			ProjectID:   generic.ProjectID(l.ProjectID),
			ProjectName: l.ProjectName,
			Model:       billing.Model(l.Model),
			Unit:        l.Unit,
			Quantity:    l.Quantity,
			Entries:     l.Entries,
			Amount:      l.Amount,
		}
	}

	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return r, nil
}

// =============================================================================
// NOTIFICATIONS (generic.Notifier)
// =============================================================================

// Send writes the message to the recipient's inbox. Delivery beyond the
// inbox (email, push) reads from this table.
func (s *Store) Send(ctx context.Context, recipientID generic.EmployeeID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, message, created_at)
		VALUES (?, ?, ?, ?)
	`, uuid.NewString(), recipientID, message, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// ListNotifications returns the recipient's inbox, newest first.
func (s *Store) ListNotifications(ctx context.Context, recipientID generic.EmployeeID, limit int) ([]generic.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_id, message, created_at
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []generic.Notification
	for rows.Next() {
		var n generic.Notification
		var created string
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Message, &created); err != nil {
			return nil, err
		}
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, n)
	}
	return out, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for scenario loading).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"notifications", "settlements", "leave_requests", "attendance", "work_logs", "projects", "employees"}
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("failed to reset %s: %w", t, err)
		}
	}
	return nil
}

// Dependencies wires the store into every engine slot.
func (s *Store) Dependencies() settlement.Dependencies {
	return settlement.Dependencies{
		Employees:   s,
		Projects:    s,
		WorkLogs:    s,
		Attendance:  s,
		Leave:       s,
		Settlements: s,
		Notifier:    s,
	}
}

// Compile-time checks
var (
	_ generic.EmployeeDirectory   = (*Store)(nil)
	_ generic.WorkLogStore        = (*Store)(nil)
	_ generic.AttendanceStore     = (*Store)(nil)
	_ generic.LeaveStore          = (*Store)(nil)
	_ generic.Notifier            = (*Store)(nil)
	_ settlement.ProjectDirectory = (*Store)(nil)
	_ settlement.SettlementStore  = (*Store)(nil)
)

// =============================================================================
// HELPERS
// =============================================================================

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// isIdempotencyKeyConflict matches only the UNIQUE violation on
// settlements.idempotency_key; a primary key collision is a real failure.
func isIdempotencyKeyConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
			strings.Contains(sqliteErr.Error(), "settlements.idempotency_key")
	}
	return false
}

func notificationOrQueued(n settlement.NotificationState) settlement.NotificationState {
	if n == "" {
		return settlement.NotificationQueued
	}
	return n
}
