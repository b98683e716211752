// Package testdata generates realistic guest snapshots for seeding
// development environments and exercising the migration path.
package testdata

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/tileboardhq/tileboard/pkg/models"
)

// SnapshotConfig configures snapshot generation parameters
type SnapshotConfig struct {
	Workspaces             int
	DashboardsPerWorkspace int
	TilesPerDashboard      int
	ContactsPerDashboard   int
	NotesPerDashboard      int
	Seed                   int64 // 0 means non-deterministic
}

// DefaultSnapshotConfig is a small snapshot well inside the migration bounds
var DefaultSnapshotConfig = SnapshotConfig{
	Workspaces:             2,
	DashboardsPerWorkspace: 2,
	TilesPerDashboard:      3,
	ContactsPerDashboard:   2,
	NotesPerDashboard:      1,
}

var tilePrompts = []string{
	"Summarize our competitive landscape",
	"What are the biggest risks this quarter?",
	"Draft an outreach plan for new leads",
	"Compare our pricing to the market",
	"List quick wins for customer retention",
	"Outline a launch checklist",
}

var noteColors = []string{"yellow", "blue", "green", "pink"}

// GenerateSnapshot produces a fake guest workspace snapshot
func GenerateSnapshot(cfg SnapshotConfig) models.WorkspaceData {
	faker := gofakeit.New(cfg.Seed)

	data := models.WorkspaceData{}
	for w := 0; w < cfg.Workspaces; w++ {
		workspace := models.GuestWorkspace{
			ID:      uuid.NewString(),
			Name:    faker.Company(),
			Website: fmt.Sprintf("https://%s", faker.DomainName()),
		}

		for d := 0; d < cfg.DashboardsPerWorkspace; d++ {
			dashboard := models.GuestDashboard{
				ID:          uuid.NewString(),
				WorkspaceID: workspace.ID,
				Name:        faker.BuzzWord() + " " + faker.HackerNoun(),
				BgColor:     faker.HexColor(),
			}

			for t := 0; t < cfg.TilesPerDashboard; t++ {
				prompt := tilePrompts[faker.Number(0, len(tilePrompts)-1)]
				dashboard.Tiles = append(dashboard.Tiles, models.GuestTile{
					ID:      uuid.NewString(),
					Title:   prompt,
					Content: faker.Paragraph(2, 3, 12, " "),
					Prompt:  prompt,
				})
			}

			for c := 0; c < cfg.ContactsPerDashboard; c++ {
				dashboard.Contacts = append(dashboard.Contacts, models.GuestContact{
					ID:      uuid.NewString(),
					Name:    faker.Name(),
					Email:   faker.Email(),
					Phone:   faker.Phone(),
					Company: faker.Company(),
					Role:    faker.JobTitle(),
				})
			}

			for n := 0; n < cfg.NotesPerDashboard; n++ {
				dashboard.Notes = append(dashboard.Notes, models.GuestNote{
					ID:      uuid.NewString(),
					Title:   faker.Sentence(3),
					Content: faker.Paragraph(1, 2, 10, " "),
					Color:   noteColors[faker.Number(0, len(noteColors)-1)],
				})
			}

			workspace.Dashboards = append(workspace.Dashboards, dashboard)
		}

		data.Workspaces = append(data.Workspaces, workspace)
	}

	return data
}
