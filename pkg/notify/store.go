package notify

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/orbiterhq/orbiter-go/pkg/store"
)

// ErrNotFound is returned when a schedule id does not exist.
var ErrNotFound = errors.New("schedule not found")

// StoreVersion is the persisted payload schema version.
const StoreVersion = 1

type payload struct {
	Version   int        `json:"version"`
	Schedules []Schedule `json:"schedules"`
}

// Store is the crash-safe notification schedule store. Each scope (an
// owner id, or "global") maps to one schema-versioned JSON file with a
// sibling .bak written on every successful save.
type Store struct {
	Root  string
	queue *store.WriteQueue
}

// NewStore creates a notification store rooted at root.
func NewStore(root string, queue *store.WriteQueue) *Store {
	if queue == nil {
		queue = store.NewWriteQueue()
	}
	return &Store{Root: root, queue: queue}
}

func (s *Store) file(scope string) *store.JSONFile {
	if scope == "" {
		scope = "global"
	}
	return store.NewJSONFile(filepath.Join(s.Root, scope+".json"), s.queue)
}

// Load returns the scope's schedules. Parse failure falls back to the
// .bak copy, then to an empty payload; it never fails.
func (s *Store) Load(scope string) []Schedule {
	p := payload{Version: StoreVersion}
	if src := s.file(scope).Load(&p); src == store.SourceBackup {
		log.Printf("notify: primary store for %s unreadable, loaded backup", scope)
	}
	return p.Schedules
}

func (s *Store) save(scope string, schedules []Schedule) error {
	return s.file(scope).Save(payload{Version: StoreVersion, Schedules: schedules})
}

// Add creates a new enabled schedule.
func (s *Store) Add(scope string, sched Schedule) (Schedule, error) {
	now := time.Now().UTC()
	sched.ID = uuid.New().String()[:8]
	sched.CreatedAt = now
	sched.UpdatedAt = now
	if sched.ChatIDs == nil {
		sched.ChatIDs = []string{}
	}

	schedules := append(s.Load(scope), sched)
	if err := s.save(scope, schedules); err != nil {
		return Schedule{}, err
	}
	return sched, nil
}

// Update replaces the schedule with the same id.
func (s *Store) Update(scope string, sched Schedule) error {
	schedules := s.Load(scope)
	for i := range schedules {
		if schedules[i].ID == sched.ID {
			sched.CreatedAt = schedules[i].CreatedAt
			sched.UpdatedAt = time.Now().UTC()
			schedules[i] = sched
			return s.save(scope, schedules)
		}
	}
	return ErrNotFound
}

// Remove deletes a schedule by id.
func (s *Store) Remove(scope, id string) error {
	schedules := s.Load(scope)
	kept := schedules[:0]
	found := false
	for _, sched := range schedules {
		if sched.ID == id {
			found = true
			continue
		}
		kept = append(kept, sched)
	}
	if !found {
		return ErrNotFound
	}
	return s.save(scope, kept)
}

// MarkSent stamps the local calendar date a schedule last fired on.
// The scheduler calls this before delivery so the same tick window can
// never fire a schedule twice.
func (s *Store) MarkSent(scope, id, localDate string) error {
	schedules := s.Load(scope)
	for i := range schedules {
		if schedules[i].ID == id {
			schedules[i].LastSentLocalDate = localDate
			schedules[i].UpdatedAt = time.Now().UTC()
			return s.save(scope, schedules)
		}
	}
	return ErrNotFound
}

// MarkResult records the outcome of the last firing.
func (s *Store) MarkResult(scope, id, status, errMsg string) error {
	schedules := s.Load(scope)
	for i := range schedules {
		if schedules[i].ID == id {
			schedules[i].LastStatus = status
			schedules[i].LastError = errMsg
			schedules[i].UpdatedAt = time.Now().UTC()
			return s.save(scope, schedules)
		}
	}
	return ErrNotFound
}

// Scopes lists every scope that has a store file.
func (s *Store) Scopes() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var scopes []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		scopes = append(scopes, strings.TrimSuffix(name, ".json"))
	}
	return scopes, nil
}

// NextFire resolves the schedule's fire time on now's local day.
// It returns false when the schedule has no valid trigger definition.
func NextFire(sched Schedule, now time.Time) (time.Time, bool) {
	loc := sched.Location()
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	if sched.Expr != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		spec, err := parser.Parse(sched.Expr)
		if err != nil {
			log.Printf("notify: bad cron expr %q on schedule %s: %v", sched.Expr, sched.ID, err)
			return time.Time{}, false
		}
		next := spec.Next(dayStart.Add(-time.Second))
		if next.YearDay() != dayStart.YearDay() || next.Year() != dayStart.Year() {
			return time.Time{}, false
		}
		return next, true
	}

	var hh, mm int
	if _, err := fmt.Sscanf(sched.Time, "%d:%d", &hh, &mm); err != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		log.Printf("notify: bad time %q on schedule %s", sched.Time, sched.ID)
		return time.Time{}, false
	}
	return time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc), true
}
