package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	apierrors "github.com/tileboardhq/tileboard/pkg/api/errors"
	"github.com/tileboardhq/tileboard/pkg/assets"
	"github.com/tileboardhq/tileboard/pkg/metrics"
	"github.com/tileboardhq/tileboard/pkg/middleware"
	"github.com/tileboardhq/tileboard/pkg/models"
)

// maxAssetSize caps a single upload at 10 MiB
const maxAssetSize = 10 << 20

// AssetHandler serves file upload endpoints
type AssetHandler struct {
	assets  *assets.Service
	metrics *metrics.Metrics
}

// NewAssetHandler creates an asset handler
func NewAssetHandler(assetSvc *assets.Service, m *metrics.Metrics) *AssetHandler {
	return &AssetHandler{assets: assetSvc, metrics: m}
}

// Upload stores a multipart file upload against the caller's asset quota
func (h *AssetHandler) Upload(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return apierrors.UnauthorizedError(c, "identity not resolved")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "A file field is required",
		})
	}
	if fileHeader.Size > maxAssetSize {
		return c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error:   "file_too_large",
			Message: "Uploads are limited to 10 MiB",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	asset, err := h.assets.Upload(
		c.Request().Context(),
		id,
		c.FormValue("dashboardId"),
		fileHeader.Filename,
		contentType,
		fileHeader.Size,
		file,
	)
	if err != nil {
		var limitErr *assets.LimitError
		if errors.As(err, &limitErr) {
			h.metrics.RecordQuotaDenial("assets", id.IsMember())
			return apierrors.QuotaExceededError(c, limitErr.Decision.Reason)
		}
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusCreated, asset)
}

// List returns the caller's stored assets
func (h *AssetHandler) List(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok || !id.IsMember() {
		return apierrors.UnauthorizedError(c, "authentication required")
	}

	list, err := h.assets.List(c.Request().Context(), id.MemberID, c.QueryParam("dashboardId"))
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Delete removes a stored asset
func (h *AssetHandler) Delete(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok || !id.IsMember() {
		return apierrors.UnauthorizedError(c, "authentication required")
	}

	err := h.assets.Delete(c.Request().Context(), id.MemberID, c.Param("id"))
	if errors.Is(err, assets.ErrNotFound) {
		return apierrors.NotFoundError(c, "asset")
	}
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}
