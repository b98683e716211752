package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	apierrors "github.com/tileboardhq/tileboard/pkg/api/errors"
	"github.com/tileboardhq/tileboard/pkg/gueststore"
	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/metrics"
	"github.com/tileboardhq/tileboard/pkg/middleware"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"github.com/tileboardhq/tileboard/pkg/quota"
	"github.com/tileboardhq/tileboard/pkg/workspace"
)

// WorkspaceHandler serves workspace, dashboard, contact and note
// endpoints for both members and guests. Member content is durable;
// guest content lives in the in-memory guest store.
type WorkspaceHandler struct {
	content   *workspace.Service
	guests    *gueststore.Store
	gate      *quota.Gate
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewWorkspaceHandler creates a workspace handler
func NewWorkspaceHandler(content *workspace.Service, guests *gueststore.Store, gate *quota.Gate, m *metrics.Metrics) *WorkspaceHandler {
	return &WorkspaceHandler{
		content:   content,
		guests:    guests,
		gate:      gate,
		metrics:   m,
		validator: validator.New(),
	}
}

// checkQuota runs the pre-action quota check and writes the 429 when denied
func (h *WorkspaceHandler) checkQuota(c echo.Context, id identity.Identity, kind plans.QuotaKind) (bool, error) {
	decision, err := h.gate.CheckLimit(c.Request().Context(), id, kind)
	if err != nil && !decision.Allowed {
		return false, apierrors.InternalError(c, err)
	}
	if !decision.Allowed {
		h.metrics.RecordQuotaDenial(string(kind), id.IsMember())
		return false, apierrors.QuotaExceededError(c, decision.Reason)
	}
	return true, nil
}

// recordUsage bumps a counter after a successful create
func (h *WorkspaceHandler) recordUsage(c echo.Context, id identity.Identity, kind plans.QuotaKind) {
	_ = h.gate.IncrementUsage(c.Request().Context(), id, kind, 1)
}

// CreateWorkspace creates a workspace for the caller
func (h *WorkspaceHandler) CreateWorkspace(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	var req models.CreateWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if ok, err := h.checkQuota(c, id, plans.KindCompanies); !ok {
		return err
	}

	if id.IsMember() {
		w, err := h.content.CreateWorkspace(c.Request().Context(), id.MemberID, req)
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		h.recordUsage(c, id, plans.KindCompanies)
		return c.JSON(http.StatusCreated, w)
	}

	gw := models.GuestWorkspace{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Website: req.Website,
	}
	h.guests.CreateWorkspace(id.GuestID, gw)
	h.recordUsage(c, id, plans.KindCompanies)
	return c.JSON(http.StatusCreated, gw)
}

// ListWorkspaces lists the caller's workspaces
func (h *WorkspaceHandler) ListWorkspaces(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	if id.IsMember() {
		workspaces, err := h.content.ListWorkspaces(c.Request().Context(), id.MemberID)
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		return c.JSON(http.StatusOK, workspaces)
	}

	workspaces := h.guests.Workspaces(id.GuestID)
	if workspaces == nil {
		workspaces = []models.GuestWorkspace{}
	}
	return c.JSON(http.StatusOK, workspaces)
}

// CreateDashboard creates a dashboard inside one of the caller's workspaces
func (h *WorkspaceHandler) CreateDashboard(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	var req models.CreateDashboardRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if id.IsMember() {
		d, err := h.content.CreateDashboard(c.Request().Context(), id.MemberID, req)
		if errors.Is(err, workspace.ErrNotFound) {
			return apierrors.NotFoundError(c, "workspace")
		}
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		return c.JSON(http.StatusCreated, d)
	}

	gd := models.GuestDashboard{
		ID:         uuid.NewString(),
		Name:       req.Name,
		BgColor:    req.BgColor,
		TemplateID: req.TemplateID,
	}
	if err := h.guests.CreateDashboard(id.GuestID, req.WorkspaceID, gd); err != nil {
		return apierrors.NotFoundError(c, "workspace")
	}
	gd.WorkspaceID = req.WorkspaceID
	return c.JSON(http.StatusCreated, gd)
}

// ListDashboards lists the dashboards of a workspace
func (h *WorkspaceHandler) ListDashboards(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}
	workspaceID := c.Param("id")

	if id.IsMember() {
		dashboards, err := h.content.ListDashboards(c.Request().Context(), id.MemberID, workspaceID)
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		return c.JSON(http.StatusOK, dashboards)
	}

	for _, w := range h.guests.Workspaces(id.GuestID) {
		if w.ID == workspaceID {
			return c.JSON(http.StatusOK, w.Dashboards)
		}
	}
	return apierrors.NotFoundError(c, "workspace")
}

// CreateContact adds a contact to one of the caller's dashboards
func (h *WorkspaceHandler) CreateContact(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	var req models.CreateContactRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if ok, err := h.checkQuota(c, id, plans.KindContacts); !ok {
		return err
	}

	if id.IsMember() {
		contact, err := h.content.CreateContact(c.Request().Context(), id.MemberID, req)
		if errors.Is(err, workspace.ErrNotFound) {
			return apierrors.NotFoundError(c, "dashboard")
		}
		if errors.Is(err, workspace.ErrInvalidPhone) {
			return apierrors.ValidationError(c, err)
		}
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		h.recordUsage(c, id, plans.KindContacts)
		return c.JSON(http.StatusCreated, contact)
	}

	gc := models.GuestContact{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Role:    req.Role,
	}
	if err := h.guests.AddContact(id.GuestID, req.DashboardID, gc); err != nil {
		return apierrors.NotFoundError(c, "dashboard")
	}
	h.recordUsage(c, id, plans.KindContacts)
	return c.JSON(http.StatusCreated, gc)
}

// CreateNote adds a note to one of the caller's dashboards
func (h *WorkspaceHandler) CreateNote(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	var req models.CreateNoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if ok, err := h.checkQuota(c, id, plans.KindNotes); !ok {
		return err
	}

	if id.IsMember() {
		note, err := h.content.CreateNote(c.Request().Context(), id.MemberID, req)
		if errors.Is(err, workspace.ErrNotFound) {
			return apierrors.NotFoundError(c, "dashboard")
		}
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		h.recordUsage(c, id, plans.KindNotes)
		return c.JSON(http.StatusCreated, note)
	}

	gn := models.GuestNote{
		ID:      uuid.NewString(),
		Title:   req.Title,
		Content: req.Content,
		Color:   req.Color,
	}
	if err := h.guests.AddNote(id.GuestID, req.DashboardID, gn); err != nil {
		return apierrors.NotFoundError(c, "dashboard")
	}
	h.recordUsage(c, id, plans.KindNotes)
	return c.JSON(http.StatusCreated, gn)
}

// ListTiles lists the tiles on a dashboard
func (h *WorkspaceHandler) ListTiles(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}
	dashboardID := c.Param("id")

	if id.IsMember() {
		tiles, err := h.content.ListTiles(c.Request().Context(), id.MemberID, dashboardID)
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		return c.JSON(http.StatusOK, tiles)
	}

	d, found := h.guests.Dashboard(id.GuestID, dashboardID)
	if !found {
		return apierrors.NotFoundError(c, "dashboard")
	}
	if d.Tiles == nil {
		d.Tiles = []models.GuestTile{}
	}
	return c.JSON(http.StatusOK, d.Tiles)
}

// ListContacts lists the contacts on a dashboard
func (h *WorkspaceHandler) ListContacts(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}
	dashboardID := c.Param("id")

	if id.IsMember() {
		contacts, err := h.content.ListContacts(c.Request().Context(), id.MemberID, dashboardID)
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		return c.JSON(http.StatusOK, contacts)
	}

	d, found := h.guests.Dashboard(id.GuestID, dashboardID)
	if !found {
		return apierrors.NotFoundError(c, "dashboard")
	}
	if d.Contacts == nil {
		d.Contacts = []models.GuestContact{}
	}
	return c.JSON(http.StatusOK, d.Contacts)
}

// ListNotes lists the notes on a dashboard
func (h *WorkspaceHandler) ListNotes(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}
	dashboardID := c.Param("id")

	if id.IsMember() {
		notes, err := h.content.ListNotes(c.Request().Context(), id.MemberID, dashboardID)
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		return c.JSON(http.StatusOK, notes)
	}

	d, found := h.guests.Dashboard(id.GuestID, dashboardID)
	if !found {
		return apierrors.NotFoundError(c, "dashboard")
	}
	if d.Notes == nil {
		d.Notes = []models.GuestNote{}
	}
	return c.JSON(http.StatusOK, d.Notes)
}

// UpdateTile replaces a tile's content with a manual edit
func (h *WorkspaceHandler) UpdateTile(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	var req models.UpdateTileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	tileID := c.Param("id")
	if id.IsMember() {
		err := h.content.UpdateTileContent(c.Request().Context(), id.MemberID, tileID, req.Content)
		if errors.Is(err, workspace.ErrNotFound) {
			return apierrors.NotFoundError(c, "tile")
		}
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
	}

	if _, err := h.guests.UpdateTileContent(id.GuestID, tileID, req.Content); err != nil {
		return apierrors.NotFoundError(c, "tile")
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// DeleteTile removes a tile from a dashboard
func (h *WorkspaceHandler) DeleteTile(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	tileID := c.Param("id")
	if id.IsMember() {
		err := h.content.DeleteTile(c.Request().Context(), id.MemberID, tileID)
		if errors.Is(err, workspace.ErrNotFound) {
			return apierrors.NotFoundError(c, "tile")
		}
		if err != nil {
			return apierrors.DatabaseError(c, err)
		}
		return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
	}

	if err := h.guests.DeleteTile(id.GuestID, tileID); err != nil {
		return apierrors.NotFoundError(c, "tile")
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}
