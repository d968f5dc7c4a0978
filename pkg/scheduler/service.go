package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/orbiterhq/orbiter-go/pkg/deadletter"
	"github.com/orbiterhq/orbiter-go/pkg/deliver"
	"github.com/orbiterhq/orbiter-go/pkg/mission"
	"github.com/orbiterhq/orbiter-go/pkg/notify"
	"github.com/orbiterhq/orbiter-go/pkg/reschedule"
	"github.com/orbiterhq/orbiter-go/pkg/telemetry"
)

// Delivery fans a notification out and reports per-send results.
// *deliver.Dispatcher satisfies this; tests inject a stub.
type Delivery interface {
	Deliver(ctx context.Context, chatIDs []string, content string) []deliver.Result
}

// Service runs the tick loop. All state is owned by the constructed
// instance so tests can run isolated services side by side.
type Service struct {
	Missions    *mission.Store
	Schedules   *notify.Store
	Overrides   *reschedule.Store
	DeadLetters *deadletter.Log
	Delivery    Delivery
	Calendar    reschedule.CalendarAggregator
	Telemetry   *telemetry.Sink

	TickInterval    time.Duration
	CalendarTimeout time.Duration
	Now             func() time.Time

	running  bool
	stopChan chan struct{}
	tickMu   sync.Mutex
}

// NewService wires a scheduler. Delivery, Calendar and Telemetry may be
// nil; the corresponding steps are skipped.
func NewService(missions *mission.Store, schedules *notify.Store, overrides *reschedule.Store, deadLetters *deadletter.Log, delivery Delivery) *Service {
	return &Service{
		Missions:        missions,
		Schedules:       schedules,
		Overrides:       overrides,
		DeadLetters:     deadLetters,
		Delivery:        delivery,
		TickInterval:    30 * time.Second,
		CalendarTimeout: 10 * time.Second,
		Now:             func() time.Time { return time.Now().UTC() },
		stopChan:        make(chan struct{}),
	}
}

// Start starts the tick loop.
func (s *Service) Start() {
	s.running = true
	go s.loop()
	log.Printf("Scheduler started (tick every %s)", s.TickInterval)
}

// Stop stops the tick loop.
func (s *Service) Stop() {
	s.running = false
	close(s.stopChan)
}

func (s *Service) loop() {
	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if !s.running {
				return
			}
			s.Tick(s.Now())
		}
	}
}

// Tick evaluates every enabled schedule of every scope once. Ticks are
// serialized: a slow tick delays the next one but never overlaps it.
// No single schedule's failure aborts the tick.
func (s *Service) Tick(now time.Time) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	scopes, err := s.Schedules.Scopes()
	if err != nil {
		log.Printf("Scheduler: listing scopes: %v", err)
		return
	}
	for _, scope := range scopes {
		for _, sched := range s.Schedules.Load(scope) {
			if !sched.Enabled {
				continue
			}
			s.evaluate(scope, sched, now)
		}
	}
}

// evaluate runs one schedule through idle -> due -> running -> idle.
// Delivery failure is recorded as a dead letter and leaves the schedule
// eligible for its next cycle; it is never raised.
func (s *Service) evaluate(scope string, sched notify.Schedule, now time.Time) {
	var m *mission.Mission
	if sched.MissionID != "" {
		var err error
		m, err = s.Missions.Get(scope, sched.MissionID)
		if err != nil {
			log.Printf("Scheduler: skipping %s: mission %s: %v", sched.ID, sched.MissionID, err)
			s.record(scope, "schedule.skip", telemetry.OutcomeSkipped, 0)
			return
		}
		if m.Status != mission.StatusActive {
			log.Printf("Scheduler: skipping %s: mission %s is %s", sched.ID, m.ID, m.Status)
			s.record(scope, "schedule.skip", telemetry.OutcomeSkipped, 0)
			return
		}
	}

	fire, ok := notify.NextFire(sched, now)
	usedOverride := false
	if sched.MissionID != "" {
		if ov, exists := s.Overrides.Get(scope, sched.MissionID); exists {
			// The override wins. It lives outside the mission graph, so
			// deleting it reverts to the trigger time computed above.
			fire = ov.NewStartAt
			ok = true
			usedOverride = true
		}
	}
	if !ok || now.Before(fire) {
		return
	}

	localDate := now.In(sched.Location()).Format("2006-01-02")
	if sched.LastSentLocalDate == localDate {
		return
	}

	// Mark before delivering: a re-run of the same tick window must not
	// fire twice on the same local day.
	if err := s.Schedules.MarkSent(scope, sched.ID, localDate); err != nil {
		log.Printf("Scheduler: marking %s sent: %v", sched.ID, err)
		return
	}
	if usedOverride {
		if err := s.Overrides.Delete(scope, sched.MissionID); err != nil {
			log.Printf("Scheduler: consuming override for %s: %v", sched.MissionID, err)
		}
	}

	start := now
	outcome := telemetry.OutcomeOK
	if s.Delivery != nil && len(sched.ChatIDs) > 0 {
		results := s.Delivery.Deliver(context.Background(), sched.ChatIDs, sched.Message)
		okCount, failCount := deliver.Summarize(results)
		if failCount > 0 {
			outcome = telemetry.OutcomeError
			reason := firstError(results)
			scheduleID := sched.MissionID
			if scheduleID == "" {
				scheduleID = sched.ID
			}
			if _, err := s.DeadLetters.Append(deadletter.Entry{
				ScheduleID:      scheduleID,
				OwnerID:         scope,
				Source:          deadletter.SourceScheduler,
				Attempt:         1,
				Reason:          reason,
				OutputOkCount:   okCount,
				OutputFailCount: failCount,
				Metadata:        map[string]interface{}{"notificationId": sched.ID},
			}); err != nil {
				log.Printf("Scheduler: dead-lettering %s: %v", sched.ID, err)
			}
			if err := s.Schedules.MarkResult(scope, sched.ID, "error", reason); err != nil {
				log.Printf("Scheduler: recording result for %s: %v", sched.ID, err)
			}
		} else {
			if err := s.Schedules.MarkResult(scope, sched.ID, "ok", ""); err != nil {
				log.Printf("Scheduler: recording result for %s: %v", sched.ID, err)
			}
		}
	}

	s.record(scope, "schedule.fire", outcome, s.Now().Sub(start).Milliseconds())
}

func (s *Service) record(ownerID, eventType, outcome string, durationMs int64) {
	if s.Telemetry == nil {
		return
	}
	if err := s.Telemetry.Record(telemetry.Event{
		OwnerID:    ownerID,
		EventType:  eventType,
		Outcome:    outcome,
		DurationMs: durationMs,
	}); err != nil {
		log.Printf("Scheduler: telemetry: %v", err)
	}
}

func firstError(results []deliver.Result) string {
	for _, r := range results {
		if !r.OK {
			return r.Channel + ": " + r.Err
		}
	}
	return ""
}

// DeleteMission removes a mission and cascade-cleans everything scoped
// to it: its reschedule override, its dead letters, and any
// notification schedules bound to it.
func (s *Service) DeleteMission(ownerID, missionID string) error {
	if err := s.Missions.Delete(ownerID, missionID); err != nil {
		return err
	}
	if err := s.Overrides.Delete(ownerID, missionID); err != nil {
		log.Printf("Scheduler: cascade override delete for %s: %v", missionID, err)
	}
	if _, err := s.DeadLetters.PurgeForMission(ownerID, missionID); err != nil {
		log.Printf("Scheduler: cascade dead-letter purge for %s: %v", missionID, err)
	}
	for _, sched := range s.Schedules.Load(ownerID) {
		if sched.MissionID == missionID {
			if err := s.Schedules.Remove(ownerID, sched.ID); err != nil {
				log.Printf("Scheduler: cascade schedule delete for %s: %v", missionID, err)
			}
		}
	}
	return nil
}
