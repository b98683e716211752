package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tileboardhq/tileboard/pkg/api/errors"
	"github.com/tileboardhq/tileboard/pkg/middleware"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"github.com/tileboardhq/tileboard/pkg/quota"
)

// UsageHandler reports current usage and limits for the caller
type UsageHandler struct {
	gate     *quota.Gate
	registry *plans.Registry
}

// NewUsageHandler creates a usage handler
func NewUsageHandler(gate *quota.Gate, registry *plans.Registry) *UsageHandler {
	return &UsageHandler{gate: gate, registry: registry}
}

// GetUsage returns the caller's usage counters and plan ceilings.
// Usage moves with every action, so responses must never be cached.
func (h *UsageHandler) GetUsage(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		return errors.UnauthorizedError(c, "identity not resolved")
	}

	ctx := c.Request().Context()

	usage, err := h.gate.UsageFor(ctx, id)
	if err != nil {
		return errors.InternalError(c, err)
	}

	plan := h.registry.PlanFor(ctx, id)

	c.Response().Header().Set("Cache-Control", "no-store")

	return c.JSON(http.StatusOK, models.UsageResponse{
		Usage:    usage,
		Limits:   plans.LimitsFor(plan),
		Plan:     plan,
		IsMember: id.IsMember(),
	})
}
