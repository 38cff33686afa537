package auth

import (
	"errors"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/verdello/shop-backend/internal/httperr"
	"github.com/verdello/shop-backend/internal/logging"
	"github.com/verdello/shop-backend/internal/models"
	"github.com/verdello/shop-backend/internal/token"
)

// HeaderToken is the custom header carrying the raw signed token. The API
// predates a Bearer scheme and clients depend on this exact transport.
const HeaderToken = "token"

type Service struct {
	DB     *gorm.DB
	Tokens *token.Service
}

// Authenticate resolves the token header to a concrete user and attaches the
// Identity to the request. It never checks the role; compose AdminOnly after
// it for admin routes.
func (s *Service) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "authenticate")

		raw := c.Request().Header.Get(HeaderToken)
		if raw == "" {
			l.Warn("auth_failed", "status", 401, "reason", "missing_token")
			return httperr.Unauthenticated("please provide a token")
		}

		claims, err := s.Tokens.Verify(raw)
		if err != nil || claims == nil {
			l.Warn("auth_failed", "status", 401, "reason", "invalid_token", "error", err)
			return httperr.Unauthenticated("invalid or expired token")
		}

		userID, err := claims.UserID()
		if err != nil {
			l.Warn("auth_failed", "status", 401, "reason", "bad_subject", "error", err)
			return httperr.Unauthenticated("invalid or expired token")
		}

		// A deleted user may still hold an unexpired token; it must not
		// authenticate.
		var user models.User
		if err := s.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				l.Warn("auth_failed", "status", 401, "reason", "user_not_found")
				return httperr.Unauthenticated("user not found")
			}
			return httperr.Internal("error resolving user", err)
		}

		SetIdentity(c, Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
		return next(c)
	}
}
