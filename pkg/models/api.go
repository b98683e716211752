package models

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse is the standard success payload
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// PlanLimits is the per-plan quota ceiling payload
type PlanLimits struct {
	CompaniesCount     int64 `json:"companiesCount"`
	ContactsCount      int64 `json:"contactsCount"`
	NotesCount         int64 `json:"notesCount"`
	TilesCount         int64 `json:"tilesCount"`
	TileChatsCount     int64 `json:"tileChatsCount"`
	ContactChatsCount  int64 `json:"contactChatsCount"`
	RegenerationsCount int64 `json:"regenerationsCount"`
	AssetsCount        int64 `json:"assetsCount"`
	TokensUsed         int64 `json:"tokensUsed"`
}

// UsageResponse is the usage inspection payload for the resolved identity
type UsageResponse struct {
	Usage    map[string]int64 `json:"usage"`
	Limits   PlanLimits       `json:"limits"`
	Plan     string           `json:"plan"`
	IsMember bool             `json:"isMember"`
}

// RegisterRequest is the account registration payload
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries a freshly minted JWT and the account it belongs to
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// CheckoutRequest asks for a Stripe checkout session
type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=member business"`
}

// CheckoutResponse carries the created checkout session
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ReconcileRequest references a completed checkout session
type ReconcileRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// ReconcileResponse reports the plan granted by a completed checkout
type ReconcileResponse struct {
	Success  bool       `json:"success"`
	Plan     string     `json:"plan"`
	Limits   PlanLimits `json:"limits"`
	Redirect string     `json:"redirect,omitempty"`
}

// CustomerPortalResponse carries a Stripe customer portal URL
type CustomerPortalResponse struct {
	URL string `json:"url"`
}

// CreateWorkspaceRequest creates a workspace
type CreateWorkspaceRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Website string `json:"website,omitempty" validate:"omitempty,max=512"`
}

// CreateDashboardRequest creates a dashboard inside a workspace
type CreateDashboardRequest struct {
	WorkspaceID string `json:"workspaceId" validate:"required"`
	Name        string `json:"name" validate:"required,max=255"`
	BgColor     string `json:"bgColor,omitempty" validate:"omitempty,max=32"`
	TemplateID  string `json:"templateId,omitempty" validate:"omitempty,max=64"`
}

// CreateContactRequest creates a contact on a dashboard
type CreateContactRequest struct {
	DashboardID string `json:"dashboardId" validate:"required"`
	Name        string `json:"name" validate:"required,max=255"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,max=64"`
	Company     string `json:"company,omitempty" validate:"omitempty,max=255"`
	Role        string `json:"role,omitempty" validate:"omitempty,max=255"`
}

// CreateNoteRequest creates a note on a dashboard
type CreateNoteRequest struct {
	DashboardID string `json:"dashboardId" validate:"required"`
	Title       string `json:"title,omitempty" validate:"omitempty,max=255"`
	Content     string `json:"content" validate:"required"`
	Color       string `json:"color,omitempty" validate:"omitempty,max=32"`
}

// UpdateTileRequest replaces a tile's content
type UpdateTileRequest struct {
	Content string `json:"content" validate:"required"`
}

// GenerateTileRequest asks for an AI-generated tile
type GenerateTileRequest struct {
	DashboardID string `json:"dashboardId" validate:"required"`
	Prompt      string `json:"prompt" validate:"required,max=4000"`
}

// TileChatRequest sends a chat message about an existing tile
type TileChatRequest struct {
	TileID  string `json:"tileId" validate:"required"`
	Message string `json:"message" validate:"required,max=4000"`
}

// TileChatResponse carries the assistant reply
type TileChatResponse struct {
	Reply      string `json:"reply"`
	TokensUsed int    `json:"tokensUsed"`
}
