// Package migration copies a guest's client-held workspace snapshot
// into the durable store when the guest becomes a member.
package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/models"
	"gorm.io/gorm"
)

// ErrAlreadyMigrated reports a repeated migration for the same account
var ErrAlreadyMigrated = errors.New("migration already completed")

// ErrInvalidSnapshot reports a snapshot that failed bounds validation
var ErrInvalidSnapshot = errors.New("invalid workspace snapshot")

// Engine migrates guest snapshots into durable member content.
//
// The whole snapshot is validated against the size bounds before any
// row is written. After that, inserts are best-effort: a failed entity
// is recorded in the stats and skipped, and the run continues. A failed
// workspace or dashboard insert skips its children, since they would
// dangle without a parent.
type Engine struct {
	db       *gorm.DB
	validate *validator.Validate
	logger   logger.Logger
}

// NewEngine creates a migration engine
func NewEngine(db *gorm.DB, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		db:       db,
		validate: validator.New(),
		logger:   log,
	}
}

// Migrate copies the snapshot into durable rows owned by user. It is
// idempotent per account: once an account has completed a migration,
// repeated calls return ErrAlreadyMigrated without writing anything.
func (e *Engine) Migrate(ctx context.Context, user *models.User, data models.WorkspaceData) (*models.MigrationStats, error) {
	if user.MigrationCompleted {
		return nil, ErrAlreadyMigrated
	}

	if err := e.validate.Struct(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	stats := &models.MigrationStats{Errors: []string{}}

	for _, gw := range data.Workspaces {
		e.migrateWorkspace(ctx, user.ID, gw, stats)
	}

	err := e.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"migration_completed": true,
			"migration_needed":    false,
		}).Error
	if err != nil {
		return stats, fmt.Errorf("failed to mark migration complete: %w", err)
	}
	user.MigrationCompleted = true
	user.MigrationNeeded = false

	e.logger.Info("guest migration finished",
		"user_id", user.ID,
		"workspaces", stats.WorkspacesMigrated,
		"dashboards", stats.DashboardsMigrated,
		"tiles", stats.TilesMigrated,
		"contacts", stats.ContactsMigrated,
		"notes", stats.NotesMigrated,
		"errors", len(stats.Errors))

	return stats, nil
}

func (e *Engine) migrateWorkspace(ctx context.Context, userID string, gw models.GuestWorkspace, stats *models.MigrationStats) {
	w := &models.Workspace{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   gw.Name,
	}
	if gw.Website != "" {
		website := gw.Website
		w.Website = &website
	}

	if err := e.db.WithContext(ctx).Create(w).Error; err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("workspace %q: %v", gw.Name, err))
		return
	}
	stats.WorkspacesMigrated++

	for _, gd := range gw.Dashboards {
		e.migrateDashboard(ctx, userID, w.ID, gd, stats)
	}
}

func (e *Engine) migrateDashboard(ctx context.Context, userID, workspaceID string, gd models.GuestDashboard, stats *models.MigrationStats) {
	d := &models.Dashboard{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		Name:        gd.Name,
	}
	if gd.BgColor != "" {
		bg := gd.BgColor
		d.BgColor = &bg
	}
	if gd.TemplateID != "" {
		tpl := gd.TemplateID
		d.TemplateID = &tpl
	}

	if err := e.db.WithContext(ctx).Create(d).Error; err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("dashboard %q: %v", gd.Name, err))
		return
	}
	stats.DashboardsMigrated++

	for i, gt := range gd.Tiles {
		tile := &models.Tile{
			ID:          uuid.NewString(),
			UserID:      userID,
			WorkspaceID: workspaceID,
			DashboardID: d.ID,
			Title:       gt.Title,
			Content:     gt.Content,
			Prompt:      gt.Prompt,
			Position:    i,
		}
		if err := e.db.WithContext(ctx).Create(tile).Error; err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("tile %q: %v", gt.Title, err))
			continue
		}
		stats.TilesMigrated++
	}

	for _, gc := range gd.Contacts {
		contact := &models.Contact{
			ID:          uuid.NewString(),
			UserID:      userID,
			WorkspaceID: workspaceID,
			DashboardID: d.ID,
			Name:        gc.Name,
			Email:       gc.Email,
			Phone:       gc.Phone,
			Company:     gc.Company,
			Role:        gc.Role,
		}
		if err := e.db.WithContext(ctx).Create(contact).Error; err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("contact %q: %v", gc.Name, err))
			continue
		}
		stats.ContactsMigrated++
	}

	for _, gn := range gd.Notes {
		note := &models.Note{
			ID:          uuid.NewString(),
			UserID:      userID,
			WorkspaceID: workspaceID,
			DashboardID: d.ID,
			Title:       gn.Title,
			Content:     gn.Content,
		}
		if gn.Color != "" {
			color := gn.Color
			note.Color = &color
		}
		if err := e.db.WithContext(ctx).Create(note).Error; err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("note %q: %v", gn.Title, err))
			continue
		}
		stats.NotesMigrated++
	}
}
