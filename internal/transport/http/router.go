package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/verdello/shop-backend/internal/handlers"
	mwauth "github.com/verdello/shop-backend/internal/middleware/auth"
)

type Deps struct {
	UserHandler    *handlers.UserHandler
	ProductHandler *handlers.ProductHandler
	Auth           *mwauth.Service
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST("/users", d.UserHandler.Register)
	e.POST("/users/login", d.UserHandler.Login)

	profile := e.Group("/users/profile", d.Auth.Authenticate)
	profile.GET("", d.UserHandler.GetProfile)
	profile.PUT("", d.UserHandler.UpdateProfile)
	profile.DELETE("", d.UserHandler.DeleteProfile)

	e.GET("/products", d.ProductHandler.ListProducts)
	e.GET("/products/:id", d.ProductHandler.GetProduct)

	// Mutations compose the gates in order: authenticate, then admin check.
	admin := e.Group("/products", d.Auth.Authenticate, d.Auth.AdminOnly)
	admin.POST("", d.ProductHandler.CreateProduct)
	admin.PUT("/:id", d.ProductHandler.UpdateProduct)
	admin.DELETE("/:id", d.ProductHandler.DeleteProduct)
}
