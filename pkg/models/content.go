package models

import "time"

// Workspace is a durable workspace owned by a member
type Workspace struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"userId"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Website   *string   `gorm:"size:512" json:"website,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Dashboard belongs to exactly one workspace of the same owner
type Dashboard struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;index;not null" json:"userId"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspaceId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	BgColor     *string   `gorm:"size:32" json:"bgColor,omitempty"`
	TemplateID  *string   `gorm:"size:64" json:"templateId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Tile is an AI-generated insight pinned to a dashboard
type Tile struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;index;not null" json:"userId"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspaceId"`
	DashboardID string    `gorm:"size:36;index;not null" json:"dashboardId"`
	Title       string    `gorm:"size:255" json:"title"`
	Content     string    `gorm:"type:text" json:"content"`
	Prompt      string    `gorm:"type:text" json:"prompt,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Contact is a person attached to a dashboard
type Contact struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;index;not null" json:"userId"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspaceId"`
	DashboardID string    `gorm:"size:36;index;not null" json:"dashboardId"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Email       string    `gorm:"size:255" json:"email,omitempty"`
	Phone       string    `gorm:"size:64" json:"phone,omitempty"`
	Company     string    `gorm:"size:255" json:"company,omitempty"`
	Role        string    `gorm:"size:255" json:"role,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Note is free-form text attached to a dashboard
type Note struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;index;not null" json:"userId"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspaceId"`
	DashboardID string    `gorm:"size:36;index;not null" json:"dashboardId"`
	Title       string    `gorm:"size:255" json:"title,omitempty"`
	Content     string    `gorm:"type:text" json:"content"`
	Color       *string   `gorm:"size:32" json:"color,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Asset is a stored file attached to a dashboard
type Asset struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"size:36;index;not null" json:"userId"`
	DashboardID string    `gorm:"size:36;index" json:"dashboardId"`
	Key         string    `gorm:"size:512;not null" json:"key"`
	FileName    string    `gorm:"size:255" json:"fileName"`
	ContentType string    `gorm:"size:128" json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAt"`
}
