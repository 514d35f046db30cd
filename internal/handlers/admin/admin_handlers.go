package admin

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/handlers"
	"github.com/sabinhyoju/kinmel/internal/models"
	"github.com/sabinhyoju/kinmel/internal/mykafka"
	ordersvc "github.com/sabinhyoju/kinmel/internal/service/order"
	"github.com/sabinhyoju/kinmel/internal/service/search"
)

type AdminHandler struct {
	DB       *gorm.DB
	Svc      *ordersvc.Service
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *AdminHandler) publish(c echo.Context, topic string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, fmt.Sprint(event["id"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AdminHandler) indexProduct(c echo.Context, p models.Product) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexProduct(ctx, h.ES, h.Index, p); err != nil {
		c.Logger().Errorf("search index error: %v", err)
	}
}

func pathID(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// --- products ---

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Image       string  `json:"image"`
	CategoryID  uint    `json:"category_id"`
}

func (h *AdminHandler) ListProducts(c echo.Context) error {
	var products []models.Product
	if err := h.DB.Order("id ASC").Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, products)
}

func (h *AdminHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.CategoryID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name and category_id are required")
	}

	var category models.Category
	if err := h.DB.First(&category, req.CategoryID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
		CategoryID:  req.CategoryID,
	}
	if err := h.DB.Create(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.publish(c, "product_events", map[string]any{
		"type": "product_created",
		"id":   product.ID,
		"name": product.Name,
	})
	h.indexProduct(c, product)

	return c.JSON(http.StatusCreated, product)
}

func (h *AdminHandler) UpdateProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	product.Name = req.Name
	product.Description = req.Description
	product.Price = req.Price
	product.Stock = req.Stock
	product.Image = req.Image
	if req.CategoryID != 0 {
		product.CategoryID = req.CategoryID
	}

	if err := h.DB.Save(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.publish(c, "product_events", map[string]any{
		"type": "product_updated",
		"id":   product.ID,
		"name": product.Name,
	})
	h.indexProduct(c, product)

	return c.JSON(http.StatusOK, product)
}

func (h *AdminHandler) DeleteProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.DB.Delete(&models.Product{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, "product_events", map[string]any{
		"type": "product_deleted",
		"id":   id,
	})
	if h.ES != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := search.DeleteProduct(ctx, h.ES, h.Index, id); err != nil {
			c.Logger().Errorf("search delete error: %v", err)
		}
	}

	return c.NoContent(http.StatusNoContent)
}

// --- categories ---

func (h *AdminHandler) ListCategories(c echo.Context) error {
	var categories []models.Category
	if err := h.DB.Order("id ASC").Find(&categories).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *AdminHandler) CreateCategory(c echo.Context) error {
	var category models.Category
	if err := c.Bind(&category); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if category.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if err := h.DB.Create(&category).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *AdminHandler) UpdateCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}

	var req models.Category
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	category.Name = req.Name
	category.Description = req.Description

	if err := h.DB.Save(&category).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, category)
}

func (h *AdminHandler) DeleteCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.DB.Delete(&models.Category{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// --- users ---

func (h *AdminHandler) ListUsers(c echo.Context) error {
	var users []models.User
	if err := h.DB.Order("created_at DESC").Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	var req struct {
		IsAdmin    *bool `json:"is_admin"`
		IsVerified *bool `json:"is_verified"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.IsVerified != nil {
		user.IsVerified = *req.IsVerified
	}

	if err := h.DB.Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, user)
}

// --- orders ---

// ListOrders filters by is_paid and a comma-separated status list.
func (h *AdminHandler) ListOrders(c echo.Context) error {
	q := h.DB.Model(&models.Order{}).Order("created_at DESC")

	if isPaid := c.QueryParam("is_paid"); isPaid != "" {
		switch strings.ToLower(isPaid) {
		case "true":
			q = q.Where("is_paid = ?", true)
		case "false":
			q = q.Where("is_paid = ?", false)
		}
	}
	if status := c.QueryParam("status"); status != "" {
		var statuses []string
		for _, s := range strings.Split(status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
		if len(statuses) > 0 {
			q = q.Where("status IN ?", statuses)
		}
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *AdminHandler) UpdateOrderStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.Svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return handlers.ServiceError(err)
	}

	h.publish(c, "order_events", map[string]any{
		"type":          "order_status_updated",
		"id":            updated.ID,
		"userID":        updated.UserID,
		"status":        updated.Status,
		"tracking_code": updated.TrackingCode,
	})

	return c.JSON(http.StatusOK, updated)
}
