package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/handlers"
	"github.com/sabinhyoju/kinmel/internal/models"
	"github.com/sabinhyoju/kinmel/internal/mykafka"
	"github.com/sabinhyoju/kinmel/internal/service/order"
	"github.com/sabinhyoju/kinmel/internal/service/token"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Orders   *order.Service
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// AddToCart upserts the (user, product) row; the combined quantity is
// capped by current stock.
func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var item models.CartItem
	tx := h.DB.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item)
	if tx.Error == nil {
		newQuantity := item.Quantity + req.Quantity
		if product.Stock < newQuantity {
			return echo.NewHTTPError(http.StatusBadRequest, "not enough stock for "+product.Name)
		}
		item.Quantity = newQuantity
		if err := h.DB.Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		h.publish(c, map[string]any{
			"type":      "cart_item_added",
			"userID":    userID,
			"productID": req.ProductID,
			"quantity":  item.Quantity,
		})
		return c.JSON(http.StatusOK, item)
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, tx.Error.Error())
	}

	if product.Stock < req.Quantity {
		return echo.NewHTTPError(http.StatusBadRequest, "not enough stock for "+product.Name)
	}
	newItem := models.CartItem{
		UserID:    userID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}
	if err := h.DB.Create(&newItem).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  newItem.Quantity,
	})
	return c.JSON(http.StatusCreated, newItem)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be positive")
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND user_id = ?", id, userID).First(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}

	var product models.Product
	if err := h.DB.First(&product, item.ProductID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	if product.Stock < req.Quantity {
		return echo.NewHTTPError(http.StatusBadRequest, "not enough stock for "+product.Name)
	}

	item.Quantity = req.Quantity
	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteItem(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.DB.
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":         "cart_item_deleted",
		"userID":       userID,
		"deleted_item": id,
	})
	return c.NoContent(http.StatusNoContent)
}

// Checkout turns the cart into an order through the same reserving
// transaction as direct order creation, then clears the cart.
func (h *CartHandler) Checkout(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ShippingAddress string `json:"shipping_address"`
		City            string `json:"city"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var cartItems []models.CartItem
	if err := h.DB.Where("user_id = ?", userID).Find(&cartItems).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(cartItems) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
	}

	lines := make([]order.Line, 0, len(cartItems))
	for _, item := range cartItems {
		lines = append(lines, order.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	placed, items, err := h.Orders.Create(c.Request().Context(), userID, req.ShippingAddress, req.City, lines)
	if err != nil {
		return handlers.ServiceError(err)
	}

	if err := h.DB.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		c.Logger().Errorf("cart clear after checkout failed: %v", err)
	}

	h.publish(c, map[string]any{
		"type":    "checkout",
		"userID":  userID,
		"orderID": placed.ID,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"order": placed,
		"items": items,
	})
}
