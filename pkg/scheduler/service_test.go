package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbiterhq/orbiter-go/pkg/deadletter"
	"github.com/orbiterhq/orbiter-go/pkg/deliver"
	"github.com/orbiterhq/orbiter-go/pkg/mission"
	"github.com/orbiterhq/orbiter-go/pkg/notify"
	"github.com/orbiterhq/orbiter-go/pkg/reschedule"
)

type stubDelivery struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (d *stubDelivery) Deliver(ctx context.Context, chatIDs []string, content string) []deliver.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, content)
	results := make([]deliver.Result, 0, len(chatIDs))
	for _, id := range chatIDs {
		r := deliver.Result{Channel: "stub", ChatID: id, OK: !d.fail}
		if d.fail {
			r.Err = "connection refused"
		}
		results = append(results, r)
	}
	return results
}

func (d *stubDelivery) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

type stubCalendar struct {
	events []reschedule.CalendarEvent
	err    error
	calls  int
}

func (c *stubCalendar) Events(ctx context.Context, ownerID string, windowStart, windowEnd time.Time) ([]reschedule.CalendarEvent, error) {
	c.calls++
	return c.events, c.err
}

func newTestService(t *testing.T) (*Service, *stubDelivery) {
	t.Helper()
	dir := t.TempDir()
	d := &stubDelivery{}
	svc := NewService(
		mission.NewStore(filepath.Join(dir, "missions"), nil),
		notify.NewStore(filepath.Join(dir, "notify"), nil),
		reschedule.NewStore(filepath.Join(dir, "reschedule"), nil),
		deadletter.NewLog(filepath.Join(dir, "deadletter")),
		d,
	)
	return svc, d
}

func addSchedule(t *testing.T, svc *Service, scope string, sched notify.Schedule) notify.Schedule {
	t.Helper()
	if sched.ChatIDs == nil {
		sched.ChatIDs = []string{"chat-1"}
	}
	sched.Enabled = true
	out, err := svc.Schedules.Add(scope, sched)
	require.NoError(t, err)
	return out
}

func TestTickFiresOncePerLocalDay(t *testing.T) {
	svc, d := newTestService(t)
	addSchedule(t, svc, "owner-1", notify.Schedule{Time: "09:00", Message: "hello"})

	day1 := time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)
	svc.Tick(day1)
	assert.Equal(t, 1, d.count())

	// Later ticks on the same day are deduplicated.
	svc.Tick(day1.Add(10 * time.Minute))
	svc.Tick(day1.Add(5 * time.Hour))
	assert.Equal(t, 1, d.count())

	svc.Tick(day1.Add(24 * time.Hour))
	assert.Equal(t, 2, d.count())
}

func TestTickNotDueYet(t *testing.T) {
	svc, d := newTestService(t)
	addSchedule(t, svc, "owner-1", notify.Schedule{Time: "09:00"})

	svc.Tick(time.Date(2025, 6, 1, 8, 59, 0, 0, time.UTC))
	assert.Zero(t, d.count())
}

func TestTickSkipsDisabled(t *testing.T) {
	svc, d := newTestService(t)
	sched := addSchedule(t, svc, "owner-1", notify.Schedule{Time: "09:00"})
	sched.Enabled = false
	require.NoError(t, svc.Schedules.Update("owner-1", sched))

	svc.Tick(time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC))
	assert.Zero(t, d.count())
}

func TestTickSkipsNonActiveMission(t *testing.T) {
	svc, d := newTestService(t)
	m, err := svc.Missions.Create("owner-1", nil, nil)
	require.NoError(t, err)
	m.Status = mission.StatusPaused
	require.NoError(t, svc.Missions.Save(m))

	addSchedule(t, svc, "owner-1", notify.Schedule{Time: "09:00", MissionID: m.ID})
	addSchedule(t, svc, "owner-1", notify.Schedule{Time: "09:00", MissionID: "gone"})

	svc.Tick(time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC))
	assert.Zero(t, d.count())

	// Resuming the mission makes the schedule fire again.
	m.Status = mission.StatusActive
	require.NoError(t, svc.Missions.Save(m))
	svc.Tick(time.Date(2025, 6, 1, 9, 6, 0, 0, time.UTC))
	assert.Equal(t, 1, d.count())
}

func TestTickDeliveryFailureDeadLetters(t *testing.T) {
	svc, d := newTestService(t)
	d.fail = true

	m, err := svc.Missions.Create("owner-1", nil, nil)
	require.NoError(t, err)
	sched := addSchedule(t, svc, "owner-1", notify.Schedule{Time: "09:00", MissionID: m.ID, Message: "report"})

	svc.Tick(time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC))

	entries, err := svc.DeadLetters.List("owner-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, m.ID, entries[0].ScheduleID)
	assert.Equal(t, deadletter.SourceScheduler, entries[0].Source)
	assert.Equal(t, "stub: connection refused", entries[0].Reason)
	assert.Equal(t, 1, entries[0].OutputFailCount)
	assert.Equal(t, sched.ID, entries[0].Metadata["notificationId"])

	got := svc.Schedules.Load("owner-1")[0]
	assert.Equal(t, "error", got.LastStatus)
	assert.True(t, got.Enabled, "a failed delivery never disables the schedule")
	assert.Equal(t, "2025-06-01", got.LastSentLocalDate, "the day still counts as fired")

	// The next day the schedule is eligible again.
	d.fail = false
	svc.Tick(time.Date(2025, 6, 2, 9, 5, 0, 0, time.UTC))
	assert.Equal(t, 2, d.count())
	assert.Equal(t, "ok", svc.Schedules.Load("owner-1")[0].LastStatus)
}

func TestTickOverrideWinsAndIsConsumed(t *testing.T) {
	svc, d := newTestService(t)
	m, err := svc.Missions.Create("owner-1", nil, nil)
	require.NoError(t, err)
	addSchedule(t, svc, "owner-1", notify.Schedule{Time: "23:00", MissionID: m.ID})

	require.NoError(t, svc.Overrides.Set(reschedule.Override{
		OwnerID:    "owner-1",
		MissionID:  m.ID,
		NewStartAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}))

	// 10:00 is before the regular 23:00 trigger but past the override.
	svc.Tick(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, d.count())

	_, exists := svc.Overrides.Get("owner-1", m.ID)
	assert.False(t, exists, "a fired override is consumed")
}

func TestTickOverrideNotYetDue(t *testing.T) {
	svc, d := newTestService(t)
	m, err := svc.Missions.Create("owner-1", nil, nil)
	require.NoError(t, err)
	addSchedule(t, svc, "owner-1", notify.Schedule{Time: "09:00", MissionID: m.ID})

	require.NoError(t, svc.Overrides.Set(reschedule.Override{
		OwnerID:    "owner-1",
		MissionID:  m.ID,
		NewStartAt: time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC),
	}))

	// The override pushes the fire past 09:00, so a 10:00 tick does nothing.
	svc.Tick(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	assert.Zero(t, d.count())

	_, exists := svc.Overrides.Get("owner-1", m.ID)
	assert.True(t, exists)

	svc.Tick(time.Date(2025, 6, 1, 18, 1, 0, 0, time.UTC))
	assert.Equal(t, 1, d.count())
}

func TestDeleteMissionCascades(t *testing.T) {
	svc, d := newTestService(t)
	d.fail = true

	m, err := svc.Missions.Create("owner-1", nil, nil)
	require.NoError(t, err)
	addSchedule(t, svc, "owner-1", notify.Schedule{Time: "09:00", MissionID: m.ID})
	other := addSchedule(t, svc, "owner-1", notify.Schedule{Time: "10:00"})

	svc.Tick(time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)) // produces a dead letter
	require.NoError(t, svc.Overrides.Set(reschedule.Override{
		OwnerID:    "owner-1",
		MissionID:  m.ID,
		NewStartAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, svc.DeleteMission("owner-1", m.ID))

	_, err = svc.Missions.Get("owner-1", m.ID)
	assert.ErrorIs(t, err, mission.ErrNotFound)

	_, exists := svc.Overrides.Get("owner-1", m.ID)
	assert.False(t, exists)

	entries, err := svc.DeadLetters.List("owner-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	remaining := svc.Schedules.Load("owner-1")
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].ID)
}

func TestDeleteMissionUnknown(t *testing.T) {
	svc, _ := newTestService(t)
	assert.ErrorIs(t, svc.DeleteMission("owner-1", "ghost"), mission.ErrNotFound)
}
