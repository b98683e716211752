package gueststore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tileboardhq/tileboard/pkg/models"
)

func TestCreateAndSnapshot(t *testing.T) {
	s := New(time.Hour)

	s.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, s.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, s.AddTile("g1", "d1", models.GuestTile{ID: "t1", Title: "Summary"}))
	require.NoError(t, s.AddContact("g1", "d1", models.GuestContact{ID: "c1", Name: "Ada"}))
	require.NoError(t, s.AddNote("g1", "d1", models.GuestNote{ID: "n1", Content: "hello"}))

	snap := s.Snapshot("g1")
	require.Len(t, snap.Workspaces, 1)
	require.Len(t, snap.Workspaces[0].Dashboards, 1)

	d := snap.Workspaces[0].Dashboards[0]
	assert.Equal(t, "w1", d.WorkspaceID)
	assert.Len(t, d.Tiles, 1)
	assert.Len(t, d.Contacts, 1)
	assert.Len(t, d.Notes, 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(time.Hour)
	s.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, s.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))

	snap := s.Snapshot("g1")
	snap.Workspaces[0].Name = "mutated"
	snap.Workspaces[0].Dashboards[0].Name = "mutated"

	again := s.Snapshot("g1")
	assert.Equal(t, "Acme", again.Workspaces[0].Name)
	assert.Equal(t, "Main", again.Workspaces[0].Dashboards[0].Name)
}

func TestMissingParents(t *testing.T) {
	s := New(time.Hour)

	assert.ErrorIs(t, s.CreateDashboard("g1", "nope", models.GuestDashboard{ID: "d1"}), ErrNotFound)
	assert.ErrorIs(t, s.AddTile("g1", "nope", models.GuestTile{ID: "t1"}), ErrNotFound)
	assert.ErrorIs(t, s.AddContact("g1", "nope", models.GuestContact{ID: "c1"}), ErrNotFound)
	assert.ErrorIs(t, s.AddNote("g1", "nope", models.GuestNote{ID: "n1"}), ErrNotFound)
}

func TestFindTile(t *testing.T) {
	s := New(time.Hour)
	s.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, s.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, s.AddTile("g1", "d1", models.GuestTile{ID: "t1", Title: "Summary", Content: "text"}))

	tile, ok := s.FindTile("g1", "t1")
	require.True(t, ok)
	assert.Equal(t, "Summary", tile.Title)

	_, ok = s.FindTile("g1", "missing")
	assert.False(t, ok)

	_, ok = s.FindTile("unknown-guest", "t1")
	assert.False(t, ok)
}

func TestUpdateTileContent(t *testing.T) {
	s := New(time.Hour)
	s.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, s.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, s.AddTile("g1", "d1", models.GuestTile{ID: "t1", Content: "old"}))

	updated, err := s.UpdateTileContent("g1", "t1", "new")
	require.NoError(t, err)
	assert.Equal(t, "t1", updated.ID)
	assert.Equal(t, "new", updated.Content)

	tile, ok := s.FindTile("g1", "t1")
	require.True(t, ok)
	assert.Equal(t, "new", tile.Content)

	_, err = s.UpdateTileContent("g1", "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteTile("g1", "t1"))
	deleted, err := s.UpdateTileContent("g1", "t1", "again")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, deleted.ID)
}

func TestFindContact(t *testing.T) {
	s := New(time.Hour)
	s.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, s.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, s.AddContact("g1", "d1", models.GuestContact{ID: "c1", Name: "Ada"}))

	contact, ok := s.FindContact("g1", "c1")
	require.True(t, ok)
	assert.Equal(t, "Ada", contact.Name)

	_, ok = s.FindContact("g1", "missing")
	assert.False(t, ok)
}

func TestDashboard(t *testing.T) {
	s := New(time.Hour)
	s.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, s.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, s.AddTile("g1", "d1", models.GuestTile{ID: "t1", Title: "Summary"}))
	require.NoError(t, s.AddNote("g1", "d1", models.GuestNote{ID: "n1", Content: "hello"}))

	d, ok := s.Dashboard("g1", "d1")
	require.True(t, ok)
	assert.Len(t, d.Tiles, 1)
	assert.Len(t, d.Notes, 1)

	// the returned dashboard is a copy
	d.Tiles[0].Title = "mutated"
	again, _ := s.Dashboard("g1", "d1")
	assert.Equal(t, "Summary", again.Tiles[0].Title)

	_, ok = s.Dashboard("g1", "missing")
	assert.False(t, ok)
}

func TestDeleteTile(t *testing.T) {
	s := New(time.Hour)
	s.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})
	require.NoError(t, s.CreateDashboard("g1", "w1", models.GuestDashboard{ID: "d1", Name: "Main"}))
	require.NoError(t, s.AddTile("g1", "d1", models.GuestTile{ID: "t1", Title: "Summary"}))
	require.NoError(t, s.AddTile("g1", "d1", models.GuestTile{ID: "t2", Title: "Risks"}))

	require.NoError(t, s.DeleteTile("g1", "t1"))

	d, _ := s.Dashboard("g1", "d1")
	require.Len(t, d.Tiles, 1)
	assert.Equal(t, "t2", d.Tiles[0].ID)

	assert.ErrorIs(t, s.DeleteTile("g1", "t1"), ErrNotFound)
}

func TestSweep(t *testing.T) {
	s := New(time.Hour)

	current := time.Now()
	s.now = func() time.Time { return current }

	s.CreateWorkspace("stale", models.GuestWorkspace{ID: "w1", Name: "Old"})

	current = current.Add(30 * time.Minute)
	s.CreateWorkspace("fresh", models.GuestWorkspace{ID: "w2", Name: "New"})

	current = current.Add(45 * time.Minute)
	evicted := s.Sweep()

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, s.Len())
	assert.Nil(t, s.Workspaces("stale"))
	assert.Len(t, s.Workspaces("fresh"), 1)
}

func TestDrop(t *testing.T) {
	s := New(time.Hour)
	s.CreateWorkspace("g1", models.GuestWorkspace{ID: "w1", Name: "Acme"})

	s.Drop("g1")
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Workspaces("g1"))
}
