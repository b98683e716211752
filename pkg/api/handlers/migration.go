package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierrors "github.com/tileboardhq/tileboard/pkg/api/errors"
	"github.com/tileboardhq/tileboard/pkg/email"
	"github.com/tileboardhq/tileboard/pkg/gueststore"
	"github.com/tileboardhq/tileboard/pkg/metrics"
	"github.com/tileboardhq/tileboard/pkg/middleware"
	"github.com/tileboardhq/tileboard/pkg/migration"
	"github.com/tileboardhq/tileboard/pkg/models"
	"gorm.io/gorm"
)

// MigrationHandler runs guest-to-member data migrations
type MigrationHandler struct {
	db      *gorm.DB
	engine  *migration.Engine
	guests  *gueststore.Store
	email   *email.Service
	metrics *metrics.Metrics
}

// NewMigrationHandler creates a migration handler
func NewMigrationHandler(db *gorm.DB, engine *migration.Engine, guests *gueststore.Store, emailSvc *email.Service, m *metrics.Metrics) *MigrationHandler {
	return &MigrationHandler{
		db:      db,
		engine:  engine,
		guests:  guests,
		email:   emailSvc,
		metrics: m,
	}
}

// Migrate accepts the client-held guest snapshot and copies it into the
// caller's account. Partial failures come back 200 with the errors
// in-band; the client shows them, it does not retry.
func (h *MigrationHandler) Migrate(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok || !id.IsMember() {
		return apierrors.UnauthorizedError(c, "authentication required")
	}

	var req models.MigrationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()

	var u models.User
	if err := h.db.WithContext(ctx).First(&u, "id = ?", id.MemberID).Error; err != nil {
		return apierrors.UnauthorizedError(c, "account not found")
	}

	stats, err := h.engine.Migrate(ctx, &u, req.WorkspaceData)
	if errors.Is(err, migration.ErrAlreadyMigrated) {
		return c.JSON(http.StatusOK, models.MigrationResponse{
			Success: true,
			Stats:   models.MigrationStats{Errors: []string{}},
		})
	}
	if errors.Is(err, migration.ErrInvalidSnapshot) {
		return apierrors.ValidationError(c, err)
	}
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	h.metrics.RecordMigration(
		stats.WorkspacesMigrated,
		stats.DashboardsMigrated,
		stats.TilesMigrated,
		stats.ContactsMigrated,
		stats.NotesMigrated,
	)

	// the server-side guest copy is obsolete once the durable copy exists
	if id.GuestID != "" {
		h.guests.Drop(id.GuestID)
	}

	go h.email.SendMigrationSummary(u.Email, u.Name, *stats)

	return c.JSON(http.StatusOK, models.MigrationResponse{
		Success: true,
		Stats:   *stats,
	})
}
