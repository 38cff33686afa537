package auth

import (
	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Identity is the resolved caller attached to the request after the
// authentication gate. It is stored as one immutable value rather than loose
// context fields so downstream handlers cannot see a partial identity.
type Identity struct {
	UserID uint
	Email  string
	Role   string
}

func SetIdentity(c echo.Context, id Identity) {
	c.Set(identityKey, id)
}

func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}
