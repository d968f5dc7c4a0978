package reschedule

import (
	"path/filepath"

	"github.com/orbiterhq/orbiter-go/pkg/store"
)

type overridePayload struct {
	Version   int                 `json:"version"`
	Overrides map[string]Override `json:"overrides"`
}

// Store persists reschedule overrides, one JSON file per owner keyed by
// mission id. Overrides live outside the mission graph so that setting
// or deleting one never changes Mission.Version.
type Store struct {
	Root  string
	queue *store.WriteQueue
}

// NewStore creates an override store rooted at root.
func NewStore(root string, queue *store.WriteQueue) *Store {
	if queue == nil {
		queue = store.NewWriteQueue()
	}
	return &Store{Root: root, queue: queue}
}

func (s *Store) file(ownerID string) *store.JSONFile {
	return store.NewJSONFile(filepath.Join(s.Root, ownerID+".json"), s.queue)
}

func (s *Store) load(ownerID string) overridePayload {
	p := overridePayload{Version: 1, Overrides: map[string]Override{}}
	s.file(ownerID).Load(&p)
	if p.Overrides == nil {
		p.Overrides = map[string]Override{}
	}
	return p
}

// Set writes or replaces the override for a mission.
func (s *Store) Set(ov Override) error {
	p := s.load(ov.OwnerID)
	p.Overrides[ov.MissionID] = ov
	return s.file(ov.OwnerID).Save(p)
}

// Get returns the override for a mission, if any.
func (s *Store) Get(ownerID, missionID string) (Override, bool) {
	p := s.load(ownerID)
	ov, ok := p.Overrides[missionID]
	return ov, ok
}

// Delete removes the override for a mission. Removing an override that
// does not exist is a no-op.
func (s *Store) Delete(ownerID, missionID string) error {
	p := s.load(ownerID)
	if _, ok := p.Overrides[missionID]; !ok {
		return nil
	}
	delete(p.Overrides, missionID)
	return s.file(ownerID).Save(p)
}
