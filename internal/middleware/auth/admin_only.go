package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/verdello/shop-backend/internal/httperr"
	"github.com/verdello/shop-backend/internal/logging"
	"github.com/verdello/shop-backend/internal/models"
)

// AdminOnly assumes Authenticate already ran and populated the Identity;
// composing it alone is a configuration error. Both failure modes map to 403
// at the boundary, the vanished-user case keeping its NotFound kind.
func (s *Service) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "admin_only")

		id, ok := IdentityFrom(c)
		if !ok {
			l.Error("admin_check_failed", "status", 401, "reason", "no_identity_in_context")
			return httperr.Unauthenticated("please provide a token")
		}

		var user models.User
		if err := s.DB.WithContext(ctx).First(&user, id.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				l.Warn("admin_check_failed", "status", 403, "reason", "user_not_found")
				return httperr.New(httperr.KindNotFound, http.StatusForbidden, "user not found")
			}
			return httperr.Internal("error resolving user", err)
		}

		if !strings.EqualFold(user.Role, "admin") {
			l.Warn("admin_check_failed", "status", 403, "reason", "not_admin", "role", user.Role)
			return httperr.Unauthorized("user is not authorized to perform this action")
		}

		return next(c)
	}
}
