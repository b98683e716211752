package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/tileboardhq/tileboard/config"
	apierrors "github.com/tileboardhq/tileboard/pkg/api/errors"
	"github.com/tileboardhq/tileboard/pkg/billing"
	"github.com/tileboardhq/tileboard/pkg/email"
	"github.com/tileboardhq/tileboard/pkg/metrics"
	"github.com/tileboardhq/tileboard/pkg/middleware"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
)

// BillingHandler handles checkout, reconciliation and webhooks
type BillingHandler struct {
	billing   *billing.Service
	email     *email.Service
	config    *config.Config
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewBillingHandler creates a billing handler
func NewBillingHandler(billingSvc *billing.Service, emailSvc *email.Service, cfg *config.Config, m *metrics.Metrics) *BillingHandler {
	return &BillingHandler{
		billing:   billingSvc,
		email:     emailSvc,
		config:    cfg,
		metrics:   m,
		validator: validator.New(),
	}
}

// CreateCheckout starts a Stripe checkout session for a plan upgrade
func (h *BillingHandler) CreateCheckout(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok || !id.IsMember() {
		return apierrors.UnauthorizedError(c, "authentication required")
	}

	var req models.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	resp, err := h.billing.CreateCheckoutSession(c.Request().Context(), id.MemberID, req.Plan)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	h.metrics.RecordCheckoutStarted(req.Plan)

	return c.JSON(http.StatusOK, resp)
}

// Reconcile grants the purchased plan after the client returns from
// checkout. It works for both authenticated buyers and guests who paid
// before creating an account.
func (h *BillingHandler) Reconcile(c echo.Context) error {
	var req models.ReconcileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	authedUserID := ""
	if id, ok := middleware.GetIdentity(c); ok && id.IsMember() {
		authedUserID = id.MemberID
	}

	u, err := h.billing.Reconcile(c.Request().Context(), req.SessionID, authedUserID)
	switch {
	case errors.Is(err, billing.ErrMissingSession),
		errors.Is(err, billing.ErrMissingSubject):
		return apierrors.ValidationError(c, err)
	case errors.Is(err, billing.ErrSessionNotFound):
		return apierrors.NotFoundError(c, "checkout session")
	case errors.Is(err, billing.ErrPaymentNotCompleted):
		return apierrors.PaymentRequiredError(c, "Payment has not completed yet.")
	case err != nil:
		return apierrors.InternalError(c, err)
	}

	h.metrics.RecordPlanGranted(u.Plan)
	go h.email.SendUpgradeConfirmation(u.Email, u.Name, u.Plan)

	redirect := h.config.FrontendURL + "/dashboard"
	if u.MigrationNeeded {
		redirect = h.config.FrontendURL + "/migrate"
	}

	return c.JSON(http.StatusOK, models.ReconcileResponse{
		Success:  true,
		Plan:     u.Plan,
		Limits:   plans.LimitsFor(u.Plan),
		Redirect: redirect,
	})
}

// Webhook receives Stripe webhook events
func (h *BillingHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Could not read request body",
		})
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if err := h.billing.HandleWebhook(c.Request().Context(), payload, signature); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "webhook_error",
			Message: "Webhook processing failed",
		})
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// CustomerPortal opens the Stripe customer portal for the caller
func (h *BillingHandler) CustomerPortal(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok || !id.IsMember() {
		return apierrors.UnauthorizedError(c, "authentication required")
	}

	resp, err := h.billing.CreateCustomerPortalSession(c.Request().Context(), id.MemberID, h.config.FrontendURL+"/settings")
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}
