// Package store provides in-memory implementations of the engine's
// collaborators, for tests and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/settlement"
)

// Op names a store operation that can be made to fail.
type Op string

const (
	OpListEmployees    Op = "list_employees"
	OpListProjects     Op = "list_projects"
	OpWorkLogs         Op = "work_logs"
	OpAttendance       Op = "attendance"
	OpLeave            Op = "leave"
	OpCreateSettlement Op = "create_settlement"
	OpNotify           Op = "notify"
)

type fault struct {
	op       Op
	employee generic.EmployeeID
}

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	employees     []generic.Employee
	projects      []billing.Project
	workLogs      []generic.WorkLog
	attendance    []generic.Attendance
	leave         []generic.Leave
	settlements   []settlement.Record
	keys          map[string]generic.SettlementID
	notifications []generic.Notification
	faults        map[fault]error
	calls         map[Op]int
}

func NewMemory() *Memory {
	return &Memory{
		keys:   make(map[string]generic.SettlementID),
		faults: make(map[fault]error),
		calls:  make(map[Op]int),
	}
}

// Fail makes op return err for the employee. An empty employee ID matches
// calls that aren't scoped to an employee (directory listings). A nil err
// clears the fault.
func (m *Memory) Fail(op Op, employeeID generic.EmployeeID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[fault{op: op, employee: employeeID}] = err
}

// Calls returns how many times op was invoked.
func (m *Memory) Calls(op Op) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// record counts the call and returns the injected fault, if any. Callers
// hold the write lock.
func (m *Memory) record(op Op, employeeID generic.EmployeeID) error {
	m.calls[op]++
	return m.faults[fault{op: op, employee: employeeID}]
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) AddEmployee(e generic.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees = append(m.employees, e)
}

func (m *Memory) AddProject(p billing.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = append(m.projects, p)
}

func (m *Memory) AddWorkLog(w generic.WorkLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workLogs = append(m.workLogs, w)
}

func (m *Memory) AddAttendance(a generic.Attendance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attendance = append(m.attendance, a)
}

func (m *Memory) AddLeave(l generic.Leave) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leave = append(m.leave, l)
}

// =============================================================================
// DIRECTORIES
// =============================================================================

func (m *Memory) ListEligible(_ context.Context) ([]generic.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpListEmployees, ""); err != nil {
		return nil, err
	}
	var out []generic.Employee
	for _, e := range m.employees {
		if e.Role == generic.RoleWorker {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]billing.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpListProjects, ""); err != nil {
		return nil, err
	}
	return append([]billing.Project(nil), m.projects...), nil
}

// =============================================================================
// DATA SOURCES
// =============================================================================

func (m *Memory) WorkLogs(_ context.Context, employeeID generic.EmployeeID, from, to generic.TimePoint) ([]generic.WorkLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpWorkLogs, employeeID); err != nil {
		return nil, err
	}
	window := generic.Period{Start: from, End: to}
	var out []generic.WorkLog
	for _, w := range m.workLogs {
		if w.EmployeeID == employeeID && window.Contains(w.Date) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *Memory) Attendance(_ context.Context, employeeID generic.EmployeeID, from, to generic.TimePoint) ([]generic.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpAttendance, employeeID); err != nil {
		return nil, err
	}
	window := generic.Period{Start: from, End: to}
	var out []generic.Attendance
	for _, a := range m.attendance {
		if a.EmployeeID == employeeID && window.Contains(a.Date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) ApprovedLeave(_ context.Context, employeeID generic.EmployeeID, from, to generic.TimePoint) ([]generic.Leave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpLeave, employeeID); err != nil {
		return nil, err
	}
	window := generic.Period{Start: from, End: to}
	var out []generic.Leave
	for _, l := range m.leave {
		if l.EmployeeID != employeeID || l.Status != generic.LeaveApproved {
			continue
		}
		if generic.OverlapDays(l.Span(), window) > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// CreateSettlement checks the idempotency key and inserts under one lock.
func (m *Memory) CreateSettlement(_ context.Context, r settlement.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpCreateSettlement, r.EmployeeID); err != nil {
		return err
	}
	if _, exists := m.keys[r.IdempotencyKey]; exists {
		return generic.ErrDuplicateSettlement
	}
	m.keys[r.IdempotencyKey] = r.ID
	m.settlements = append(m.settlements, r)
	return nil
}

func (m *Memory) GetSettlement(_ context.Context, id generic.SettlementID) (*settlement.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.settlements {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, generic.ErrSettlementNotFound
}

func (m *Memory) GetSettlementByKey(_ context.Context, key string) (*settlement.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.keys[key]
	if !ok {
		return nil, generic.ErrSettlementNotFound
	}
	for _, r := range m.settlements {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, generic.ErrSettlementNotFound
}

// SetNotification compares and swaps the notification state under the lock.
func (m *Memory) SetNotification(_ context.Context, id generic.SettlementID, from, to settlement.NotificationState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.settlements {
		if m.settlements[i].ID != id {
			continue
		}
		if m.settlements[i].Notification != from {
			return false, nil
		}
		m.settlements[i].Notification = to
		return true, nil
	}
	return false, generic.ErrSettlementNotFound
}

func (m *Memory) ListSettlements(_ context.Context, f settlement.Filter) ([]settlement.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []settlement.Record
	for _, r := range m.settlements {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) UpdateSettlementStatus(_ context.Context, id generic.SettlementID, status settlement.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.settlements {
		if m.settlements[i].ID != id {
			continue
		}
		if err := settlement.ValidateTransition(m.settlements[i].Status, status); err != nil {
			return err
		}
		m.settlements[i].Status = status
		m.settlements[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return generic.ErrSettlementNotFound
}

// =============================================================================
// NOTIFIER
// =============================================================================

func (m *Memory) Send(_ context.Context, recipientID generic.EmployeeID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(OpNotify, recipientID); err != nil {
		return err
	}
	m.notifications = append(m.notifications, generic.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

// Notifications returns the messages sent to an employee, oldest first.
func (m *Memory) Notifications(recipientID generic.EmployeeID) []generic.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []generic.Notification
	for _, n := range m.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

// Compile-time checks
var (
	_ generic.EmployeeDirectory   = (*Memory)(nil)
	_ generic.WorkLogStore        = (*Memory)(nil)
	_ generic.AttendanceStore     = (*Memory)(nil)
	_ generic.LeaveStore          = (*Memory)(nil)
	_ generic.Notifier            = (*Memory)(nil)
	_ settlement.ProjectDirectory = (*Memory)(nil)
	_ settlement.SettlementStore  = (*Memory)(nil)
)

// Dependencies wires the memory store into every engine slot.
func (m *Memory) Dependencies() settlement.Dependencies {
	return settlement.Dependencies{
		Employees:   m,
		Projects:    m,
		WorkLogs:    m,
		Attendance:  m,
		Leave:       m,
		Settlements: m,
		Notifier:    m,
	}
}
