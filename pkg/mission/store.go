package mission

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orbiterhq/orbiter-go/pkg/store"
)

// ErrNotFound is returned when a mission does not exist for the owner.
var ErrNotFound = errors.New("mission not found")

// Store persists missions as one JSON file per mission under an
// owner-scoped directory: <root>/<ownerID>/<missionID>.json.
type Store struct {
	Root  string
	queue *store.WriteQueue
}

// NewStore creates a mission store rooted at root.
func NewStore(root string, queue *store.WriteQueue) *Store {
	if queue == nil {
		queue = store.NewWriteQueue()
	}
	return &Store{Root: root, queue: queue}
}

func (s *Store) path(ownerID, missionID string) string {
	return filepath.Join(s.Root, ownerID, missionID+".json")
}

func (s *Store) file(ownerID, missionID string) *store.JSONFile {
	return store.NewJSONFile(s.path(ownerID, missionID), s.queue)
}

// Create makes a new active mission at version 1.
func (s *Store) Create(ownerID string, nodes []Node, connections []Connection) (*Mission, error) {
	now := time.Now().UTC()
	m := &Mission{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Nodes:       nodes,
		Connections: connections,
		Version:     1,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.Nodes == nil {
		m.Nodes = []Node{}
	}
	if m.Connections == nil {
		m.Connections = []Connection{}
	}
	if err := s.Save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get loads one mission.
func (s *Store) Get(ownerID, missionID string) (*Mission, error) {
	var m Mission
	f := s.file(ownerID, missionID)
	if f.Load(&m) == store.SourceNone {
		return nil, ErrNotFound
	}
	return &m, nil
}

// List returns every mission owned by ownerID.
func (s *Store) List(ownerID string) ([]*Mission, error) {
	dir := filepath.Join(s.Root, ownerID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list missions for %s: %w", ownerID, err)
	}

	var missions []*Mission
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".bak") {
			continue
		}
		m, err := s.Get(ownerID, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		missions = append(missions, m)
	}
	return missions, nil
}

// Save writes the mission through the atomic store.
func (s *Store) Save(m *Mission) error {
	return s.file(m.OwnerID, m.ID).Save(m)
}

// Delete removes the mission file and its backup. Cascade cleanup of
// overrides and dead letters is handled by the scheduler service.
func (s *Store) Delete(ownerID, missionID string) error {
	path := s.path(ownerID, missionID)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete mission %s: %w", missionID, err)
	}
	os.Remove(path + ".bak")
	return nil
}
