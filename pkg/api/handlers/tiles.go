package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	apierrors "github.com/tileboardhq/tileboard/pkg/api/errors"
	"github.com/tileboardhq/tileboard/pkg/gueststore"
	"github.com/tileboardhq/tileboard/pkg/metrics"
	"github.com/tileboardhq/tileboard/pkg/middleware"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/tiles"
	"github.com/tileboardhq/tileboard/pkg/workspace"
)

// TileHandler serves AI tile generation and chat endpoints
type TileHandler struct {
	tiles     *tiles.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewTileHandler creates a tile handler
func NewTileHandler(tileSvc *tiles.Service, m *metrics.Metrics) *TileHandler {
	return &TileHandler{
		tiles:     tileSvc,
		metrics:   m,
		validator: validator.New(),
	}
}

// GenerateTile creates a new AI tile on a dashboard
func (h *TileHandler) GenerateTile(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	var req models.GenerateTileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	result, err := h.tiles.GenerateTile(c.Request().Context(), id, req)
	if err != nil {
		return h.tileError(c, id.IsMember(), err)
	}

	h.metrics.RecordTileGenerated(id.IsMember())
	h.metrics.RecordTokensConsumed(result.TokensUsed)

	return c.JSON(http.StatusCreated, result)
}

// RegenerateTile re-runs a tile's prompt and replaces its content
func (h *TileHandler) RegenerateTile(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	result, err := h.tiles.RegenerateTile(c.Request().Context(), id, c.Param("id"))
	if err != nil {
		return h.tileError(c, id.IsMember(), err)
	}

	h.metrics.RecordTokensConsumed(result.TokensUsed)

	return c.JSON(http.StatusOK, result)
}

// TileChat answers a question about an existing tile
func (h *TileHandler) TileChat(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	var req models.TileChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.tiles.TileChat(c.Request().Context(), id, req)
	if err != nil {
		return h.tileError(c, id.IsMember(), err)
	}

	h.metrics.RecordTokensConsumed(resp.TokensUsed)

	return c.JSON(http.StatusOK, resp)
}

// ContactChat answers a question about a saved contact
func (h *TileHandler) ContactChat(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	var req models.TileChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if req.Message == "" {
		return apierrors.ValidationError(c, errors.New("message is required"))
	}

	resp, err := h.tiles.ContactChat(c.Request().Context(), id, c.Param("id"), req.Message)
	if err != nil {
		return h.tileError(c, id.IsMember(), err)
	}

	h.metrics.RecordTokensConsumed(resp.TokensUsed)

	return c.JSON(http.StatusOK, resp)
}

// tileError maps tile service failures to API responses
func (h *TileHandler) tileError(c echo.Context, isMember bool, err error) error {
	var limitErr *tiles.LimitError
	switch {
	case errors.As(err, &limitErr):
		kind := "unknown"
		if limitErr.Decision.Reason != "" {
			// the reason string starts with the quota kind
			for i, r := range limitErr.Decision.Reason {
				if r == ' ' {
					kind = limitErr.Decision.Reason[:i]
					break
				}
			}
		}
		h.metrics.RecordQuotaDenial(kind, isMember)
		return apierrors.QuotaExceededError(c, limitErr.Decision.Reason)
	case errors.Is(err, tiles.ErrTileNotFound):
		return apierrors.NotFoundError(c, "tile")
	case errors.Is(err, tiles.ErrContactNotFound):
		return apierrors.NotFoundError(c, "contact")
	case errors.Is(err, gueststore.ErrNotFound), errors.Is(err, workspace.ErrNotFound):
		return apierrors.NotFoundError(c, "dashboard")
	default:
		return apierrors.InternalError(c, err)
	}
}
