// Package gueststore holds guest-owned content in process memory. It
// is an explicit, injected cache with a TTL sweep, deliberately not a
// module-level singleton, so deployments can swap it for a distributed
// cache and tests can drive time deterministically.
package gueststore

import (
	"errors"
	"sync"
	"time"

	"github.com/tileboardhq/tileboard/pkg/models"
)

// ErrNotFound reports a missing guest workspace or dashboard
var ErrNotFound = errors.New("not found")

type entry struct {
	workspaces []*models.GuestWorkspace
	lastSeen   time.Time
}

// Store is a keyed in-memory store of guest workspace trees. Content
// here has no persistence guarantee across restarts; the durable copy
// only exists after migration.
type Store struct {
	mu     sync.RWMutex
	guests map[string]*entry
	ttl    time.Duration
	now    func() time.Time
}

// New creates a guest store whose entries expire ttl after last access
func New(ttl time.Duration) *Store {
	return &Store{
		guests: make(map[string]*entry),
		ttl:    ttl,
		now:    time.Now,
	}
}

// touch returns the live entry for a guest, creating it when asked
func (s *Store) touch(guestID string, create bool) *entry {
	e, ok := s.guests[guestID]
	if !ok {
		if !create {
			return nil
		}
		e = &entry{}
		s.guests[guestID] = e
	}
	e.lastSeen = s.now()
	return e
}

// CreateWorkspace adds a workspace to a guest's tree
func (s *Store) CreateWorkspace(guestID string, w models.GuestWorkspace) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touch(guestID, true)
	e.workspaces = append(e.workspaces, &w)
}

// Workspaces returns a deep copy of a guest's workspace tree
func (s *Store) Workspaces(guestID string) []models.GuestWorkspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touch(guestID, false)
	if e == nil {
		return nil
	}

	out := make([]models.GuestWorkspace, 0, len(e.workspaces))
	for _, w := range e.workspaces {
		out = append(out, copyWorkspace(w))
	}
	return out
}

// Snapshot is the migration-shaped view of a guest's content
func (s *Store) Snapshot(guestID string) models.WorkspaceData {
	return models.WorkspaceData{Workspaces: s.Workspaces(guestID)}
}

// CreateDashboard adds a dashboard to one of the guest's workspaces
func (s *Store) CreateDashboard(guestID, workspaceID string, d models.GuestDashboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.findWorkspace(guestID, workspaceID)
	if w == nil {
		return ErrNotFound
	}

	d.WorkspaceID = workspaceID
	w.Dashboards = append(w.Dashboards, d)
	return nil
}

// AddTile appends a tile to a guest dashboard
func (s *Store) AddTile(guestID, dashboardID string, tile models.GuestTile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDashboard(guestID, dashboardID)
	if d == nil {
		return ErrNotFound
	}
	d.Tiles = append(d.Tiles, tile)
	return nil
}

// AddContact appends a contact to a guest dashboard
func (s *Store) AddContact(guestID, dashboardID string, contact models.GuestContact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDashboard(guestID, dashboardID)
	if d == nil {
		return ErrNotFound
	}
	d.Contacts = append(d.Contacts, contact)
	return nil
}

// AddNote appends a note to a guest dashboard
func (s *Store) AddNote(guestID, dashboardID string, note models.GuestNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDashboard(guestID, dashboardID)
	if d == nil {
		return ErrNotFound
	}
	d.Notes = append(d.Notes, note)
	return nil
}

// FindTile looks a tile up across the guest's dashboards
func (s *Store) FindTile(guestID, tileID string) (models.GuestTile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touch(guestID, false)
	if e == nil {
		return models.GuestTile{}, false
	}
	for _, w := range e.workspaces {
		for di := range w.Dashboards {
			for _, tile := range w.Dashboards[di].Tiles {
				if tile.ID == tileID {
					return tile, true
				}
			}
		}
	}
	return models.GuestTile{}, false
}

// FindContact looks a contact up across the guest's dashboards
func (s *Store) FindContact(guestID, contactID string) (models.GuestContact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touch(guestID, false)
	if e == nil {
		return models.GuestContact{}, false
	}
	for _, w := range e.workspaces {
		for di := range w.Dashboards {
			for _, contact := range w.Dashboards[di].Contacts {
				if contact.ID == contactID {
					return contact, true
				}
			}
		}
	}
	return models.GuestContact{}, false
}

// UpdateTileContent replaces the content of a guest tile in place and
// returns the updated tile under the same lock
func (s *Store) UpdateTileContent(guestID, tileID, content string) (models.GuestTile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touch(guestID, false)
	if e == nil {
		return models.GuestTile{}, ErrNotFound
	}
	for _, w := range e.workspaces {
		for di := range w.Dashboards {
			tiles := w.Dashboards[di].Tiles
			for ti := range tiles {
				if tiles[ti].ID == tileID {
					tiles[ti].Content = content
					return tiles[ti], nil
				}
			}
		}
	}
	return models.GuestTile{}, ErrNotFound
}

// Dashboard returns a copy of one of the guest's dashboards
func (s *Store) Dashboard(guestID, dashboardID string) (models.GuestDashboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.findDashboard(guestID, dashboardID)
	if d == nil {
		return models.GuestDashboard{}, false
	}
	cd := *d
	cd.Tiles = append([]models.GuestTile(nil), d.Tiles...)
	cd.Contacts = append([]models.GuestContact(nil), d.Contacts...)
	cd.Notes = append([]models.GuestNote(nil), d.Notes...)
	return cd, true
}

// DeleteTile removes a guest tile across the guest's dashboards
func (s *Store) DeleteTile(guestID, tileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.touch(guestID, false)
	if e == nil {
		return ErrNotFound
	}
	for _, w := range e.workspaces {
		for di := range w.Dashboards {
			tiles := w.Dashboards[di].Tiles
			for ti := range tiles {
				if tiles[ti].ID == tileID {
					w.Dashboards[di].Tiles = append(tiles[:ti], tiles[ti+1:]...)
					return nil
				}
			}
		}
	}
	return ErrNotFound
}

// Drop removes all content for a guest (after successful migration)
func (s *Store) Drop(guestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guests, guestID)
}

// Sweep evicts guests idle past the TTL and returns the eviction count
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, e := range s.guests {
		if e.lastSeen.Before(cutoff) {
			delete(s.guests, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of guests currently held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.guests)
}

func (s *Store) findWorkspace(guestID, workspaceID string) *models.GuestWorkspace {
	e := s.touch(guestID, false)
	if e == nil {
		return nil
	}
	for _, w := range e.workspaces {
		if w.ID == workspaceID {
			return w
		}
	}
	return nil
}

func (s *Store) findDashboard(guestID, dashboardID string) *models.GuestDashboard {
	e := s.touch(guestID, false)
	if e == nil {
		return nil
	}
	for _, w := range e.workspaces {
		for di := range w.Dashboards {
			if w.Dashboards[di].ID == dashboardID {
				return &w.Dashboards[di]
			}
		}
	}
	return nil
}

func copyWorkspace(w *models.GuestWorkspace) models.GuestWorkspace {
	out := *w
	out.Dashboards = make([]models.GuestDashboard, len(w.Dashboards))
	for i, d := range w.Dashboards {
		cd := d
		cd.Tiles = append([]models.GuestTile(nil), d.Tiles...)
		cd.Contacts = append([]models.GuestContact(nil), d.Contacts...)
		cd.Notes = append([]models.GuestNote(nil), d.Notes...)
		out.Dashboards[i] = cd
	}
	return out
}
