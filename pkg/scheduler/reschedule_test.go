package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbiterhq/orbiter-go/pkg/mission"
	"github.com/orbiterhq/orbiter-go/pkg/notify"
	"github.com/orbiterhq/orbiter-go/pkg/reschedule"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func createMission(t *testing.T, svc *Service, nodeCount int) *mission.Mission {
	t.Helper()
	nodes := make([]mission.Node, 0, nodeCount)
	for i := 0; i < nodeCount; i++ {
		nodes = append(nodes, mission.Node{ID: string(rune('a' + i)), Type: mission.NodeAction})
	}
	m, err := svc.Missions.Create("owner-1", nodes, nil)
	require.NoError(t, err)
	return m
}

func TestSetRescheduleOverrideConflictAdvisory(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Now = fixedNow(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := createMission(t, svc, 3)

	cal := &stubCalendar{events: []reschedule.CalendarEvent{
		{ID: "meeting", Start: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), End: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)},
	}}
	svc.Calendar = cal

	newStart := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	conflict, err := svc.SetRescheduleOverride(context.Background(), "owner-1", m.ID, newStart)
	require.NoError(t, err)
	assert.True(t, conflict, "overlapping event is reported")
	assert.Equal(t, 1, cal.calls)

	// Advisory only: the override is persisted anyway.
	ov, exists := svc.Overrides.Get("owner-1", m.ID)
	require.True(t, exists)
	assert.True(t, ov.NewStartAt.Equal(newStart))
}

func TestSetRescheduleOverrideNoConflict(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Now = fixedNow(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := createMission(t, svc, 3)

	svc.Calendar = &stubCalendar{events: []reschedule.CalendarEvent{
		{ID: "later", Start: time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)},
	}}

	conflict, err := svc.SetRescheduleOverride(context.Background(), "owner-1", m.ID, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestSetRescheduleOverrideIgnoresOwnEvent(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Now = fixedNow(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := createMission(t, svc, 1)

	newStart := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.Calendar = &stubCalendar{events: []reschedule.CalendarEvent{
		{ID: m.ID, Start: newStart, End: newStart.Add(time.Hour)},
	}}

	conflict, err := svc.SetRescheduleOverride(context.Background(), "owner-1", m.ID, newStart)
	require.NoError(t, err)
	assert.False(t, conflict, "the mission's own calendar entry is not a conflict")
}

func TestSetRescheduleOverridePastTimeRejected(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = fixedNow(now)
	m := createMission(t, svc, 1)

	cal := &stubCalendar{}
	svc.Calendar = cal

	_, err := svc.SetRescheduleOverride(context.Background(), "owner-1", m.ID, now.Add(-11*time.Minute))
	assert.ErrorIs(t, err, ErrPastTime)
	assert.Zero(t, cal.calls, "rejection happens before any calendar lookup")

	_, exists := svc.Overrides.Get("owner-1", m.ID)
	assert.False(t, exists, "a rejected reschedule writes nothing")
}

func TestSetRescheduleOverrideWithinPastBuffer(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = fixedNow(now)
	m := createMission(t, svc, 1)

	// Nine minutes ago is inside the grace buffer.
	_, err := svc.SetRescheduleOverride(context.Background(), "owner-1", m.ID, now.Add(-9*time.Minute))
	require.NoError(t, err)

	_, exists := svc.Overrides.Get("owner-1", m.ID)
	assert.True(t, exists)
}

func TestSetRescheduleOverrideCalendarErrorIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Now = fixedNow(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := createMission(t, svc, 1)

	svc.Calendar = &stubCalendar{err: errors.New("calendar backend down")}

	conflict, err := svc.SetRescheduleOverride(context.Background(), "owner-1", m.ID, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err, "calendar trouble never blocks the reschedule")
	assert.False(t, conflict)

	_, exists := svc.Overrides.Get("owner-1", m.ID)
	assert.True(t, exists)
}

func TestSetRescheduleOverrideUnknownMission(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Now = fixedNow(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	_, err := svc.SetRescheduleOverride(context.Background(), "owner-1", "ghost", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, mission.ErrNotFound)
}

func TestSetRescheduleOverrideRecordsOriginalTime(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Now = fixedNow(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := createMission(t, svc, 1)

	_, err := svc.Schedules.Add("owner-1", notify.Schedule{MissionID: m.ID, Time: "09:00", Enabled: true})
	require.NoError(t, err)

	_, err = svc.SetRescheduleOverride(context.Background(), "owner-1", m.ID, time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	ov, exists := svc.Overrides.Get("owner-1", m.ID)
	require.True(t, exists)
	assert.True(t, ov.OriginalTime.Equal(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
}

func TestDeleteRescheduleOverrideRestoresTrigger(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Now = fixedNow(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := createMission(t, svc, 1)

	_, err := svc.SetRescheduleOverride(context.Background(), "owner-1", m.ID, time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRescheduleOverride("owner-1", m.ID))

	_, exists := svc.Overrides.Get("owner-1", m.ID)
	assert.False(t, exists)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, estimateDuration(0))
	assert.Equal(t, 165*time.Second, estimateDuration(3))
}
