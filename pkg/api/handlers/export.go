package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	apierrors "github.com/tileboardhq/tileboard/pkg/api/errors"
	"github.com/tileboardhq/tileboard/pkg/export"
	"github.com/tileboardhq/tileboard/pkg/middleware"
)

// ExportHandler serves workbook downloads
type ExportHandler struct {
	export *export.Service
}

// NewExportHandler creates an export handler
func NewExportHandler(exportSvc *export.Service) *ExportHandler {
	return &ExportHandler{export: exportSvc}
}

// ExportContacts streams a dashboard's contacts as an xlsx download
func (h *ExportHandler) ExportContacts(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok || !id.IsMember() {
		return apierrors.UnauthorizedError(c, "authentication required")
	}

	f, err := h.export.ExportContacts(c.Request().Context(), id.MemberID, c.Param("id"))
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	filename := fmt.Sprintf("contacts-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().WriteHeader(http.StatusOK)

	return f.Write(c.Response())
}
