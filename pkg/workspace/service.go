// Package workspace is the durable content store for members:
// workspaces, dashboards, and the entities dashboards own.
package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/phone"
	"gorm.io/gorm"
)

// ErrNotFound reports a missing or foreign-owned record
var ErrNotFound = errors.New("record not found")

// ErrInvalidPhone reports an unparseable contact phone number
var ErrInvalidPhone = errors.New("invalid phone number")

// Service handles durable content operations, always scoped by the
// owning user id. Concurrent writes by one user resolve last-write-wins;
// no optimistic concurrency tokens are used.
type Service struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewService creates a workspace content service
func NewService(db *gorm.DB, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{db: db, logger: log}
}

// CreateWorkspace creates a workspace owned by userID
func (s *Service) CreateWorkspace(ctx context.Context, userID string, req models.CreateWorkspaceRequest) (*models.Workspace, error) {
	w := &models.Workspace{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   req.Name,
	}
	if req.Website != "" {
		w.Website = &req.Website
	}

	if err := s.db.WithContext(ctx).Create(w).Error; err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return w, nil
}

// ListWorkspaces lists the user's workspaces
func (s *Service) ListWorkspaces(ctx context.Context, userID string) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&workspaces).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

// GetWorkspace fetches one workspace owned by userID
func (s *Service) GetWorkspace(ctx context.Context, userID, workspaceID string) (*models.Workspace, error) {
	var w models.Workspace
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", workspaceID, userID).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &w, nil
}

// CreateDashboard creates a dashboard inside one of the user's
// workspaces. The workspace must exist and belong to the same user.
func (s *Service) CreateDashboard(ctx context.Context, userID string, req models.CreateDashboardRequest) (*models.Dashboard, error) {
	if _, err := s.GetWorkspace(ctx, userID, req.WorkspaceID); err != nil {
		return nil, err
	}

	d := &models.Dashboard{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: req.WorkspaceID,
		Name:        req.Name,
	}
	if req.BgColor != "" {
		d.BgColor = &req.BgColor
	}
	if req.TemplateID != "" {
		d.TemplateID = &req.TemplateID
	}

	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, fmt.Errorf("failed to create dashboard: %w", err)
	}
	return d, nil
}

// GetDashboard fetches one dashboard owned by userID
func (s *Service) GetDashboard(ctx context.Context, userID, dashboardID string) (*models.Dashboard, error) {
	var d models.Dashboard
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", dashboardID, userID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}
	return &d, nil
}

// ListDashboards lists the dashboards of a workspace
func (s *Service) ListDashboards(ctx context.Context, userID, workspaceID string) ([]models.Dashboard, error) {
	var dashboards []models.Dashboard
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Order("created_at ASC").
		Find(&dashboards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	return dashboards, nil
}

// CreateTile inserts a tile on one of the user's dashboards
func (s *Service) CreateTile(ctx context.Context, userID, dashboardID, title, content, prompt string) (*models.Tile, error) {
	d, err := s.GetDashboard(ctx, userID, dashboardID)
	if err != nil {
		return nil, err
	}

	t := &models.Tile{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: d.WorkspaceID,
		DashboardID: d.ID,
		Title:       title,
		Content:     content,
		Prompt:      prompt,
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("failed to create tile: %w", err)
	}
	return t, nil
}

// GetTile fetches one tile owned by userID
func (s *Service) GetTile(ctx context.Context, userID, tileID string) (*models.Tile, error) {
	var t models.Tile
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", tileID, userID).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tile: %w", err)
	}
	return &t, nil
}

// ListTiles lists the tiles of a dashboard
func (s *Service) ListTiles(ctx context.Context, userID, dashboardID string) ([]models.Tile, error) {
	var tiles []models.Tile
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND dashboard_id = ?", userID, dashboardID).
		Order("position ASC, created_at ASC").
		Find(&tiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tiles: %w", err)
	}
	return tiles, nil
}

// UpdateTileContent replaces a tile's content (regeneration).
// Last-write-wins by design.
func (s *Service) UpdateTileContent(ctx context.Context, userID, tileID, content string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Tile{}).
		Where("id = ? AND user_id = ?", tileID, userID).
		Update("content", content)
	if res.Error != nil {
		return fmt.Errorf("failed to update tile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTile removes a tile
func (s *Service) DeleteTile(ctx context.Context, userID, tileID string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", tileID, userID).
		Delete(&models.Tile{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete tile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateContact inserts a contact on one of the user's dashboards. A
// supplied phone number must parse; it is stored normalized to E.164.
func (s *Service) CreateContact(ctx context.Context, userID string, req models.CreateContactRequest) (*models.Contact, error) {
	d, err := s.GetDashboard(ctx, userID, req.DashboardID)
	if err != nil {
		return nil, err
	}

	normalized := ""
	if req.Phone != "" {
		normalized, err = phone.Normalize(req.Phone, "")
		if err != nil {
			return nil, ErrInvalidPhone
		}
	}

	c := &models.Contact{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: d.WorkspaceID,
		DashboardID: d.ID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       normalized,
		Company:     req.Company,
		Role:        req.Role,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return c, nil
}

// GetContact fetches one contact owned by userID
func (s *Service) GetContact(ctx context.Context, userID, contactID string) (*models.Contact, error) {
	var c models.Contact
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", contactID, userID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &c, nil
}

// ListContacts lists the contacts of a dashboard
func (s *Service) ListContacts(ctx context.Context, userID, dashboardID string) ([]models.Contact, error) {
	var contacts []models.Contact
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND dashboard_id = ?", userID, dashboardID).
		Order("created_at ASC").
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// CreateNote inserts a note on one of the user's dashboards
func (s *Service) CreateNote(ctx context.Context, userID string, req models.CreateNoteRequest) (*models.Note, error) {
	d, err := s.GetDashboard(ctx, userID, req.DashboardID)
	if err != nil {
		return nil, err
	}

	n := &models.Note{
		ID:          uuid.NewString(),
		UserID:      userID,
		WorkspaceID: d.WorkspaceID,
		DashboardID: d.ID,
		Title:       req.Title,
		Content:     req.Content,
	}
	if req.Color != "" {
		n.Color = &req.Color
	}

	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return n, nil
}

// ListNotes lists the notes of a dashboard
func (s *Service) ListNotes(ctx context.Context, userID, dashboardID string) ([]models.Note, error) {
	var notes []models.Note
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND dashboard_id = ?", userID, dashboardID).
		Order("created_at ASC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}
