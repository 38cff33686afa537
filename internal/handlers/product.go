package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/verdello/shop-backend/internal/httperr"
	"github.com/verdello/shop-backend/internal/logging"
	"github.com/verdello/shop-backend/internal/models"
	"github.com/verdello/shop-backend/internal/mykafka"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func productID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, httperr.NotFound("product not found")
	}
	return uint(id), nil
}

func (h *ProductHandler) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	products := make([]models.Product, 0)
	if err := h.DB.WithContext(ctx).Order("id ASC").Find(&products).Error; err != nil {
		logging.FromContext(ctx).Error("list_products_failed", "status", 500, "error", err)
		return httperr.Internal("error fetching products", err)
	}

	return c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := productID(c)
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.NotFound("product not found")
		}
		logging.FromContext(ctx).Error("get_product_failed", "status", 500, "error", err)
		return httperr.Internal("error fetching product", err)
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_create")

	// Pointer binding distinguishes "absent" from zero values: price 0 and
	// stock 0 are valid. Non-numeric values fail the bind.
	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Stock       *uint    `json:"stock"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_failed", "status", 400, "error", err)
		return httperr.Validation("price and stock must be numeric values")
	}

	if req.Name == nil || *req.Name == "" ||
		req.Description == nil || *req.Description == "" ||
		req.Price == nil || req.Stock == nil {
		l.Warn("create_failed", "status", 400, "reason", "missing_fields")
		return httperr.Validation("missing required fields: name, description, price, stock")
	}
	if *req.Price < 0 {
		l.Warn("create_failed", "status", 400, "reason", "negative_price")
		return httperr.Validation("price must not be negative")
	}

	product := models.Product{
		Name:        *req.Name,
		Description: *req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
	}
	if err := h.DB.WithContext(ctx).Create(&product).Error; err != nil {
		l.Error("create_failed", "status", 500, "error", err)
		return httperr.Internal("error creating product", err)
	}

	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"name":      product.Name,
	})

	l.Info("create_success", "status", 201, "product_id", product.ID)
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct merges only the fields present in the body. A present zero
// (price 0, stock 0, empty description) is applied, not ignored.
func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_update")

	id, err := productID(c)
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.NotFound("product not found")
		}
		l.Error("update_failed", "status", 500, "error", err)
		return httperr.Internal("error updating product", err)
	}

	var req struct {
		Name        *string  `json:"name"`
		Description *string  `json:"description"`
		Price       *float64 `json:"price"`
		Stock       *uint    `json:"stock"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_failed", "status", 400, "error", err)
		return httperr.Validation("price and stock must be numeric values")
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return httperr.Validation("price must not be negative")
		}
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}

	if err := h.DB.WithContext(ctx).Save(&product).Error; err != nil {
		l.Error("update_failed", "status", 500, "error", err)
		return httperr.Internal("error updating product", err)
	}

	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
		"name":      product.Name,
	})

	l.Info("update_success", "status", 200, "product_id", product.ID)
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product_delete")

	id, err := productID(c)
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.NotFound("product not found")
		}
		l.Error("delete_failed", "status", 500, "error", err)
		return httperr.Internal("error deleting product", err)
	}

	if err := h.DB.WithContext(ctx).Delete(&product).Error; err != nil {
		l.Error("delete_failed", "status", 500, "error", err)
		return httperr.Internal("error deleting product", err)
	}

	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	l.Info("delete_success", "status", 200, "product_id", id)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "product deleted successfully",
	})
}
