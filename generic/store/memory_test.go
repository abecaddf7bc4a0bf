package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/settlement-engine/billing"
	"github.com/warp/settlement-engine/generic"
	"github.com/warp/settlement-engine/settlement"
)

var march = generic.Period{Start: generic.MustParseDate("2024-03-01"), End: generic.MustParseDate("2024-03-31")}

func record(id, emp string) settlement.Record {
	return settlement.NewRecord(generic.SettlementID(id), settlement.Summary{
		Employee:   generic.Employee{ID: generic.EmployeeID(emp), Name: emp},
		Period:     march,
		GrandTotal: decimal.RequireFromString("10"),
	}, time.Now())
}

func TestMemory_FaultInjection(t *testing.T) {
	// GIVEN: Work log reads fail for emp-1 only
	m := NewMemory()
	boom := errors.New("boom")
	m.Fail(OpWorkLogs, "emp-1", boom)
	ctx := context.Background()

	// WHEN/THEN: emp-1 fails, emp-2 does not, and both calls are counted
	_, err := m.WorkLogs(ctx, "emp-1", march.Start, march.End)
	assert.ErrorIs(t, err, boom)
	_, err = m.WorkLogs(ctx, "emp-2", march.Start, march.End)
	assert.NoError(t, err)
	assert.Equal(t, 2, m.Calls(OpWorkLogs))
}

func TestMemory_FiltersByPeriodAndStatus(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.AddWorkLog(generic.WorkLog{EmployeeID: "emp-1", ProjectID: "p", Date: generic.MustParseDate("2024-03-31"), HoursWorked: generic.Dec("1")})
	m.AddWorkLog(generic.WorkLog{EmployeeID: "emp-1", ProjectID: "p", Date: generic.MustParseDate("2024-04-01"), HoursWorked: generic.Dec("1")})
	m.AddLeave(generic.Leave{EmployeeID: "emp-1", Start: generic.MustParseDate("2024-02-28"), End: generic.MustParseDate("2024-03-01"), Status: generic.LeaveApproved})
	m.AddLeave(generic.Leave{EmployeeID: "emp-1", Start: generic.MustParseDate("2024-03-05"), End: generic.MustParseDate("2024-03-06"), Status: generic.LeavePending})

	logs, err := m.WorkLogs(ctx, "emp-1", march.Start, march.End)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	leave, err := m.ApprovedLeave(ctx, "emp-1", march.Start, march.End)
	require.NoError(t, err)
	assert.Len(t, leave, 1)
}

func TestMemory_EligibleAndProjects(t *testing.T) {
	m := NewMemory()
	m.AddEmployee(generic.Employee{ID: "emp-2", Name: "Bo", Role: generic.RoleWorker})
	m.AddEmployee(generic.Employee{ID: "emp-1", Name: "Ana", Role: generic.RoleWorker})
	m.AddEmployee(generic.Employee{ID: "adm-1", Name: "Admin", Role: generic.RoleAdmin})
	m.AddProject(billing.TimeBased("p", "P", decimal.RequireFromString("10")))

	eligible, err := m.ListEligible(context.Background())
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, "Bo", eligible[0].Name, "insertion order")

	projects, err := m.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestMemory_IdempotencyKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateSettlement(ctx, record("stl-1", "emp-1")))
	err := m.CreateSettlement(ctx, record("stl-2", "emp-1"))

	assert.ErrorIs(t, err, generic.ErrDuplicateSettlement)
	_, err = m.GetSettlement(ctx, "stl-2")
	assert.ErrorIs(t, err, generic.ErrSettlementNotFound)
}

func TestMemory_StatusUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateSettlement(ctx, record("stl-1", "emp-1")))

	require.NoError(t, m.UpdateSettlementStatus(ctx, "stl-1", settlement.StatusOverdue))
	got, err := m.GetSettlement(ctx, "stl-1")
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusOverdue, got.Status)

	assert.ErrorIs(t, m.UpdateSettlementStatus(ctx, "stl-1", settlement.StatusPaid), generic.ErrInvalidStatusTransition)
	assert.ErrorIs(t, m.UpdateSettlementStatus(ctx, "nope", settlement.StatusPaid), generic.ErrSettlementNotFound)
}

func TestMemory_NotificationCompareAndSet(t *testing.T) {
	// GIVEN: A freshly created settlement, notification queued
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateSettlement(ctx, record("stl-1", "emp-1")))

	// WHEN: Moving it from the wrong state, then the right one
	ok, err := m.SetNotification(ctx, "stl-1", settlement.NotificationFailed, settlement.NotificationQueued)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = m.SetNotification(ctx, "stl-1", settlement.NotificationQueued, settlement.NotificationSent)
	require.NoError(t, err)
	assert.True(t, ok)

	// THEN: The lookup by key sees the new state
	got, err := m.GetSettlementByKey(ctx, settlement.Key("emp-1", march))
	require.NoError(t, err)
	assert.Equal(t, settlement.NotificationSent, got.Notification)

	_, err = m.GetSettlementByKey(ctx, "settlement:nobody:2024-03-01:2024-03-31")
	assert.ErrorIs(t, err, generic.ErrSettlementNotFound)
	_, err = m.SetNotification(ctx, "nope", settlement.NotificationQueued, settlement.NotificationSent)
	assert.ErrorIs(t, err, generic.ErrSettlementNotFound)
}
