package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/verdello/shop-backend/internal/hash"
	"github.com/verdello/shop-backend/internal/httperr"
	"github.com/verdello/shop-backend/internal/logging"
	mwauth "github.com/verdello/shop-backend/internal/middleware/auth"
	"github.com/verdello/shop-backend/internal/models"
	"github.com/verdello/shop-backend/internal/mykafka"
	"github.com/verdello/shop-backend/internal/token"
)

const minPasswordLen = 5

type UserHandler struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Producer *mykafka.Producer
}

// RoleForUsername is the role assignment policy: a username containing
// "admin" (any case) self-elevates to the admin role. Inherited from the
// original system; audit before replacing with an explicit grant flow.
func RoleForUsername(username string) string {
	if strings.Contains(strings.ToLower(username), "admin") {
		return "admin"
	}
	return "user"
}

func validEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

func (h *UserHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *UserHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_register")

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "error", err)
		return httperr.Validation("invalid body")
	}

	if !validEmail(req.Email) {
		l.Warn("register_failed", "status", 400, "reason", "invalid_email")
		return httperr.Validation("invalid email format")
	}

	var existing models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
			return httperr.Internal("error registering user", err)
		}
	} else {
		l.Warn("register_failed", "status", 400, "reason", "email_taken")
		return httperr.Conflict("email is already registered")
	}

	if len(req.Password) < minPasswordLen {
		l.Warn("register_failed", "status", 400, "reason", "short_password")
		return httperr.Validation("password must be at least 5 characters long")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "hash_error", "error", err)
		return httperr.Internal("error registering user", err)
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         RoleForUsername(req.Username),
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return httperr.Internal("error registering user", err)
	}

	h.publish(c, map[string]any{
		"type":     "user_registered",
		"userID":   user.ID,
		"username": user.Username,
		"role":     user.Role,
	})

	l.Info("register_success", "status", 201, "user_id", user.ID, "role", user.Role)
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered successfully",
		"user":    user,
	})
}

func (h *UserHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return httperr.Validation("invalid body")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "status", 404, "reason", "unknown_email")
			return httperr.NotFound("user not found")
		}
		l.Error("login_failed", "status", 500, "reason", "db_error", "error", err)
		return httperr.Internal("error logging in", err)
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong_password")
		return httperr.Unauthenticated("invalid credentials")
	}

	signed, err := h.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "token_error", "error", err)
		return httperr.Internal("error logging in", err)
	}

	h.publish(c, map[string]any{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	l.Info("login_success", "status", 200, "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "user logged in successfully",
		"token":   signed,
	})
}

// Profile operations act only on the identity resolved by the authentication
// gate, never on an id supplied by the client.

func (h *UserHandler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_profile")

	id, ok := mwauth.IdentityFrom(c)
	if !ok {
		return httperr.Unauthenticated("please provide a token")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.NotFound("user not found")
		}
		l.Error("profile_failed", "status", 500, "error", err)
		return httperr.Internal("error fetching user profile", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "user profile fetched successfully",
		"user":    user,
	})
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update")

	id, ok := mwauth.IdentityFrom(c)
	if !ok {
		return httperr.Unauthenticated("please provide a token")
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_failed", "status", 400, "error", err)
		return httperr.Validation("invalid body")
	}

	if req.Username == "" && req.Password == "" {
		l.Warn("update_failed", "status", 400, "reason", "no_fields")
		return httperr.Validation("please provide username or password")
	}

	updates := map[string]any{}
	if req.Username != "" {
		updates["username"] = req.Username
	}
	if req.Password != "" {
		if len(req.Password) < minPasswordLen {
			l.Warn("update_failed", "status", 400, "reason", "short_password")
			return httperr.Validation("password must be at least 5 characters long")
		}
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			return httperr.Internal("error updating user profile", err)
		}
		updates["password_hash"] = pwHash
	}

	res := h.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id.UserID).Updates(updates)
	if res.Error != nil {
		l.Error("update_failed", "status", 500, "error", res.Error)
		return httperr.Internal("error updating user profile", res.Error)
	}
	if res.RowsAffected == 0 {
		return httperr.NotFound("user not found")
	}

	h.publish(c, map[string]any{
		"type":   "user_updated",
		"userID": id.UserID,
	})

	l.Info("update_success", "status", 200, "user_id", id.UserID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "user profile updated successfully",
	})
}

func (h *UserHandler) DeleteProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_delete")

	id, ok := mwauth.IdentityFrom(c)
	if !ok {
		return httperr.Unauthenticated("please provide a token")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.NotFound("user not found")
		}
		l.Error("delete_failed", "status", 500, "error", err)
		return httperr.Internal("error deleting user", err)
	}

	// Orders, order details and reviews referencing this user go with it via
	// FK cascade.
	if err := h.DB.WithContext(ctx).Delete(&user).Error; err != nil {
		l.Error("delete_failed", "status", 500, "error", err)
		return httperr.Internal("error deleting user", err)
	}

	h.publish(c, map[string]any{
		"type":   "user_deleted",
		"userID": id.UserID,
	})

	l.Info("delete_success", "status", 200, "user_id", id.UserID)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "user deleted successfully",
	})
}
