package models

// Snapshot bounds enforced before any migration write. They cap the
// worst-case write volume a single guest upload can cause.
const (
	MaxWorkspacesPerSnapshot   = 10
	MaxDashboardsPerWorkspace  = 25
	MaxEntriesPerDashboardList = 200
)

// GuestWorkspace is a workspace held client-side (or in the guest store)
// before the owner becomes a member
type GuestWorkspace struct {
	ID         string           `json:"id" validate:"required,max=64"`
	Name       string           `json:"name" validate:"required,max=255"`
	Website    string           `json:"website,omitempty" validate:"omitempty,max=512"`
	Dashboards []GuestDashboard `json:"dashboards" validate:"max=25,dive"`
}

// GuestDashboard mirrors Dashboard plus its owned entity lists
type GuestDashboard struct {
	ID          string         `json:"id" validate:"required,max=64"`
	Name        string         `json:"name" validate:"required,max=255"`
	WorkspaceID string         `json:"workspaceId" validate:"required,max=64"`
	BgColor     string         `json:"bgColor,omitempty" validate:"omitempty,max=32"`
	TemplateID  string         `json:"templateId,omitempty" validate:"omitempty,max=64"`
	Tiles       []GuestTile    `json:"tiles" validate:"max=200,dive"`
	Contacts    []GuestContact `json:"contacts" validate:"max=200,dive"`
	Notes       []GuestNote    `json:"notes" validate:"max=200,dive"`
}

// GuestTile is a tile inside a guest snapshot
type GuestTile struct {
	ID      string `json:"id" validate:"required,max=64"`
	Title   string `json:"title" validate:"max=255"`
	Content string `json:"content"`
	Prompt  string `json:"prompt,omitempty"`
}

// GuestContact is a contact inside a guest snapshot
type GuestContact struct {
	ID      string `json:"id" validate:"required,max=64"`
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,max=64"`
	Company string `json:"company,omitempty" validate:"omitempty,max=255"`
	Role    string `json:"role,omitempty" validate:"omitempty,max=255"`
}

// GuestNote is a note inside a guest snapshot
type GuestNote struct {
	ID      string `json:"id" validate:"required,max=64"`
	Title   string `json:"title,omitempty" validate:"omitempty,max=255"`
	Content string `json:"content"`
	Color   string `json:"color,omitempty" validate:"omitempty,max=32"`
}

// WorkspaceData wraps the workspace list of a snapshot
type WorkspaceData struct {
	Workspaces []GuestWorkspace `json:"workspaces" validate:"max=10,dive"`
}

// MigrationRequest is the client-supplied guest snapshot
type MigrationRequest struct {
	WorkspaceData WorkspaceData `json:"workspaceData" validate:"required"`
}

// MigrationStats reports per-entity migration counts and partial failures
type MigrationStats struct {
	WorkspacesMigrated int      `json:"workspacesMigrated"`
	DashboardsMigrated int      `json:"dashboardsMigrated"`
	TilesMigrated      int      `json:"tilesMigrated"`
	ContactsMigrated   int      `json:"contactsMigrated"`
	NotesMigrated      int      `json:"notesMigrated"`
	Errors             []string `json:"errors"`
}

// MigrationResponse is the migration endpoint payload. Partial failures
// still report success; the errors travel in-band inside the stats.
type MigrationResponse struct {
	Success bool           `json:"success"`
	Stats   MigrationStats `json:"stats"`
}
