// Package handlers holds the Echo HTTP handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/tileboardhq/tileboard/config"
	"github.com/tileboardhq/tileboard/pkg/api/errors"
	"github.com/tileboardhq/tileboard/pkg/auth"
	"github.com/tileboardhq/tileboard/pkg/metrics"
	"github.com/tileboardhq/tileboard/pkg/middleware"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"gorm.io/gorm"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	db        *gorm.DB
	config    *config.Config
	blacklist *auth.TokenBlacklist
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, cfg *config.Config, blacklist *auth.TokenBlacklist, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		db:        db,
		config:    cfg,
		blacklist: blacklist,
		metrics:   m,
		validator: validator.New(),
	}
}

// Register creates a new member account
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return errors.InternalError(c, err)
	}

	newUser := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashedPassword,
		Plan:         plans.PlanMember,
		IsMember:     true,
		// fresh accounts may still have guest data client-side
		MigrationNeeded: true,
	}

	if err := h.db.WithContext(ctx).Create(newUser).Error; err != nil {
		if err == gorm.ErrDuplicatedKey {
			return errors.ConflictError(c, "User with this email already exists")
		}
		return errors.DatabaseError(c, err)
	}

	h.metrics.RecordUserRegistered()

	token, err := auth.GenerateJWT(newUser.ID, newUser.Email, newUser.Plan, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusCreated, models.AuthResponse{
		Token: token,
		User:  newUser,
	})
}

// Login authenticates a member by email and password
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var u models.User
	err := h.db.WithContext(ctx).First(&u, "email = ?", req.Email).Error
	if err != nil || !auth.CheckPassword(req.Password, u.PasswordHash) {
		h.metrics.RecordLoginAttempt(false)
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid email or password",
		})
	}

	h.metrics.RecordLoginAttempt(true)

	token, err := auth.GenerateJWT(u.ID, u.Email, u.Plan, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, models.AuthResponse{
		Token: token,
		User:  &u,
	})
}

// Logout revokes the caller's token
func (h *AuthHandler) Logout(c echo.Context) error {
	header := c.Request().Header.Get("Authorization")
	if len(header) <= len("Bearer ") {
		return errors.UnauthorizedError(c, "missing token")
	}
	token := header[len("Bearer "):]

	expiry := time.Duration(h.config.JWTExpirationHours) * time.Hour
	if err := h.blacklist.Add(c.Request().Context(), token, expiry); err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Logged out",
	})
}

// Me returns the caller's account
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.GetIdentity(c)
	if !ok || !id.IsMember() {
		return errors.UnauthorizedError(c, "authentication required")
	}

	var u models.User
	if err := h.db.WithContext(c.Request().Context()).First(&u, "id = ?", id.MemberID).Error; err != nil {
		return errors.NotFoundError(c, "user")
	}

	return c.JSON(http.StatusOK, &u)
}
