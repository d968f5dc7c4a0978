package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/orbiterhq/orbiter-go/pkg/notify"
	"github.com/orbiterhq/orbiter-go/pkg/reschedule"
)

// PastTimeBuffer is how far in the past a reschedule target may be
// before it is rejected.
const PastTimeBuffer = 10 * time.Minute

// ConflictWindow is the half-width of the calendar lookup window around
// the proposed start.
const ConflictWindow = 12 * time.Hour

// ErrPastTime rejects reschedules targeting the past.
var ErrPastTime = errors.New("reschedule target is in the past")

// estimateDuration guesses how long a mission run occupies the calendar:
// a fixed setup cost plus a per-node allowance.
func estimateDuration(nodeCount int) time.Duration {
	return 30*time.Second + time.Duration(nodeCount)*45*time.Second
}

// SetRescheduleOverride validates and persists a one-shot time override
// for a mission. The returned conflict flag is advisory: an overlapping
// calendar event does not block the write. A reschedule into the past
// (beyond PastTimeBuffer) is rejected before any conflict check runs
// and writes nothing.
func (s *Service) SetRescheduleOverride(ctx context.Context, ownerID, missionID string, newStartAt time.Time) (bool, error) {
	now := s.Now()
	if newStartAt.Before(now.Add(-PastTimeBuffer)) {
		return false, fmt.Errorf("%w: %s", ErrPastTime, newStartAt.Format(time.RFC3339))
	}

	m, err := s.Missions.Get(ownerID, missionID)
	if err != nil {
		return false, err
	}

	originalTime := s.originalFireTime(ownerID, missionID, newStartAt)

	conflict := false
	if s.Calendar != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, s.CalendarTimeout)
		defer cancel()
		events, err := s.Calendar.Events(lookupCtx, ownerID, newStartAt.Add(-ConflictWindow), newStartAt.Add(ConflictWindow))
		if err != nil {
			// Calendar trouble is isolated to this advisory check; the
			// override is still written.
			log.Printf("Scheduler: calendar lookup for %s: %v", missionID, err)
		} else {
			duration := estimateDuration(len(m.Nodes))
			conflict = reschedule.HasConflict(events, newStartAt, newStartAt.Add(duration), missionID)
		}
	}

	ov := reschedule.Override{
		OwnerID:      ownerID,
		MissionID:    missionID,
		NewStartAt:   newStartAt,
		OriginalTime: originalTime,
		CreatedAt:    now,
	}
	if err := s.Overrides.Set(ov); err != nil {
		return false, err
	}
	return conflict, nil
}

// DeleteRescheduleOverride drops the override, restoring the mission's
// original trigger time.
func (s *Service) DeleteRescheduleOverride(ownerID, missionID string) error {
	return s.Overrides.Delete(ownerID, missionID)
}

// originalFireTime resolves the trigger time the override displaces,
// from the notification schedule bound to the mission.
func (s *Service) originalFireTime(ownerID, missionID string, around time.Time) time.Time {
	for _, sched := range s.Schedules.Load(ownerID) {
		if sched.MissionID != missionID {
			continue
		}
		if fire, ok := notify.NextFire(sched, around); ok {
			return fire
		}
	}
	return time.Time{}
}
