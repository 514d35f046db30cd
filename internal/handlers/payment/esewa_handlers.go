package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/esewa"
	"github.com/sabinhyoju/kinmel/internal/handlers"
	"github.com/sabinhyoju/kinmel/internal/models"
	"github.com/sabinhyoju/kinmel/internal/mykafka"
	ordersvc "github.com/sabinhyoju/kinmel/internal/service/order"
	"github.com/sabinhyoju/kinmel/internal/service/token"
)

type EsewaHandler struct {
	DB       *gorm.DB
	Svc      *ordersvc.Service
	Client   *esewa.Client
	Producer *mykafka.Producer

	FrontendSuccessURL string
	FrontendFailureURL string
}

func (h *EsewaHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *EsewaHandler) failureRedirect(c echo.Context, reason string) error {
	return c.Redirect(http.StatusFound,
		h.FrontendFailureURL+"?error="+url.QueryEscape(reason))
}

// Payment builds the signed gateway payload for an order the caller
// owns; the amount in the request must match the stored total.
func (h *EsewaHandler) Payment(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		OrderID uint     `json:"order_id"`
		Amount  *float64 `json:"amount"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.OrderID == 0 || req.Amount == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id and amount are required")
	}

	var order models.Order
	if err := h.DB.Where("id = ? AND total_price = ?", req.OrderID, *req.Amount).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if order.UserID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "unauthorized")
	}

	return c.JSON(http.StatusOK, h.Client.BuildPayment(order.ID, order.UserID, order.TotalPrice))
}

// Success handles the gateway redirect: decode the base64-JSON data
// param, verify the transaction, and bounce the browser to the
// frontend with the outcome. Confirmation is a separate step.
func (h *EsewaHandler) Success(c echo.Context) error {
	encoded := c.QueryParam("data")
	if encoded == "" {
		return h.failureRedirect(c, "Missing payment details")
	}

	data, err := esewa.DecodeCallbackData(encoded)
	if err != nil {
		c.Logger().Errorf("failed to decode eSewa data: %v", err)
		return h.failureRedirect(c, "Invalid data param")
	}
	if data.TransactionUUID == "" || data.TransactionCode == "" || data.TotalAmount == "" {
		return h.failureRedirect(c, "Missing payment details")
	}

	if err := h.Client.VerifyRaw(c.Request().Context(), data.TransactionUUID, data.TotalAmount.String()); err != nil {
		c.Logger().Errorf("payment verification failed for %s: %v", data.TransactionUUID, err)
		return h.failureRedirect(c, "Payment verification failed")
	}

	orderID, err := esewa.OrderIDFromTransactionUUID(data.TransactionUUID)
	if err != nil {
		return h.failureRedirect(c, "Invalid transaction UUID format")
	}

	var order models.Order
	if err := h.DB.First(&order, orderID).Error; err != nil {
		return h.failureRedirect(c, "Order not found")
	}

	status := "pending"
	if order.IsPaid {
		status = "success"
	}
	return c.Redirect(http.StatusFound, fmt.Sprintf(
		"%s?order_id=%d&reference_id=%s&status=%s",
		h.FrontendSuccessURL, order.ID, url.QueryEscape(data.TransactionCode), status,
	))
}

func (h *EsewaHandler) Failure(c echo.Context) error {
	return c.Redirect(http.StatusFound, h.FrontendFailureURL)
}

// Confirm runs the full payment confirmation: verification, stock
// re-check, inventory decrement, paid flag. Idempotent for orders that
// are already paid.
func (h *EsewaHandler) Confirm(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		OrderID         uint   `json:"order_id"`
		TransactionUUID string `json:"transaction_uuid"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.OrderID == 0 || req.TransactionUUID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id and transaction_uuid are required")
	}

	order, alreadyPaid, err := h.Svc.ConfirmPayment(c.Request().Context(), req.OrderID, userID, req.TransactionUUID, h.Client)
	if err != nil {
		return handlers.ServiceError(err)
	}
	if alreadyPaid {
		return c.JSON(http.StatusOK, echo.Map{"message": "Order is already paid"})
	}

	h.publish(c, map[string]any{
		"type":          "order_paid",
		"orderID":       order.ID,
		"userID":        order.UserID,
		"status":        order.Status,
		"tracking_code": order.TrackingCode,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Payment confirmed and order updated",
		"order_id": order.ID,
	})
}
