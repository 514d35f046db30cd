package order

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/handlers"
	"github.com/sabinhyoju/kinmel/internal/models"
	"github.com/sabinhyoju/kinmel/internal/mykafka"
	ordersvc "github.com/sabinhyoju/kinmel/internal/service/order"
	"github.com/sabinhyoju/kinmel/internal/service/token"
)

type OrderHandler struct {
	DB       *gorm.DB
	Svc      *ordersvc.Service
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func orderID(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	return uint(id), nil
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ShippingAddress string          `json:"shipping_address"`
		City            string          `json:"city"`
		Items           []ordersvc.Line `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	placed, items, err := h.Svc.Create(c.Request().Context(), userID, req.ShippingAddress, req.City, req.Items)
	if err != nil {
		return handlers.ServiceError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"orderID": placed.ID,
		"userID":  userID,
		"total":   placed.TotalPrice,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"order": placed,
		"items": items,
	})
}

// ListOrders returns the caller's orders; admins see everything.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	q := h.DB.Model(&models.Order{}).Order("created_at DESC")
	if !token.IsAdmin(c) {
		q = q.Where("user_id = ?", userID)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) OrderDetail(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	id, err := orderID(c)
	if err != nil {
		return err
	}

	var order models.Order
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&order).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	var items []models.OrderItem
	if err := h.DB.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"order": order, "items": items})
}

// UpdateStatus applies a validated transition; admin only.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	if _, err := token.UserID(c); err != nil {
		return err
	}
	if !token.IsAdmin(c) {
		return echo.NewHTTPError(http.StatusForbidden, "admin only")
	}
	id, err := orderID(c)
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

	// Status notifications go out as events; a consumer owns delivery.
	h.publish(c, map[string]any{
		"type":          "order_status_updated",
		"orderID":       updated.ID,
		"userID":        updated.UserID,
		"status":        updated.Status,
		"tracking_code": updated.TrackingCode,
	})

	return c.JSON(http.StatusOK, updated)
}

// UpdateTotal replaces the order total; shipping is recomputed through
// the shared policy.
func (h *OrderHandler) UpdateTotal(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	id, err := orderID(c)
	if err != nil {
		return err
	}

	var req struct {
		TotalPrice *float64 `json:"total_price"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.TotalPrice == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "total_price required")
	}

	updated, err := h.Svc.UpdateTotal(c.Request().Context(), id, userID, *req.TotalPrice)
	if err != nil {
		return handlers.ServiceError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_price":   updated.TotalPrice,
		"shipping_cost": updated.ShippingCost,
		"status":        updated.Status,
	})
}

// TrackOrder is a public lookup; authenticated users may only see
// their own orders.
func (h *OrderHandler) TrackOrder(c echo.Context) error {
	code := c.Param("tracking_code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tracking code required")
	}

	viewerID, authErr := token.UserID(c)
	authenticated := authErr == nil

	order, err := h.Svc.Track(c.Request().Context(), code, viewerID, authenticated)
	if err != nil {
		return handlers.ServiceError(err)
	}
	return c.JSON(http.StatusOK, order)
}
