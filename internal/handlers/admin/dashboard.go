package admin

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/models"
)

type SalesPoint struct {
	Date       string  `json:"date"`
	TotalSales float64 `json:"total_sales"`
}

type ProductSales struct {
	Name  string  `json:"name"`
	Sales float64 `json:"sales"`
}

type CategorySales struct {
	Category string  `json:"category"`
	Sales    float64 `json:"sales"`
}

// paidItems builds a fresh paid-order-items query; gorm builders
// accumulate conditions, so each aggregate gets its own.
func (h *AdminHandler) paidItems(start time.Time) *gorm.DB {
	q := h.DB.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.is_paid = ?", true)
	if !start.IsZero() {
		q = q.Where("orders.created_at >= ?", start)
	}
	return q
}

// Dashboard aggregates counts, a paid-order sales time series, the top
// products, and per-category sales for the admin UI. Reads are
// unlocked; stale numbers are fine here.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	var start time.Time
	switch c.QueryParam("range") {
	case "30d":
		start = time.Now().AddDate(0, 0, -30)
	case "all":
		// zero time, no lower bound
	default:
		start = time.Now().AddDate(0, 0, -7)
	}

	ordersQ := h.DB.Model(&models.Order{})
	if !start.IsZero() {
		ordersQ = ordersQ.Where("created_at >= ?", start)
	}
	var totalOrders int64
	if err := ordersQ.Count(&totalOrders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var totalProducts, totalCategories, totalUsers int64
	h.DB.Model(&models.Product{}).Count(&totalProducts)
	h.DB.Model(&models.Category{}).Count(&totalCategories)
	h.DB.Model(&models.User{}).Count(&totalUsers)

	paidQ := h.DB.Model(&models.Order{}).Where("is_paid = ?", true)
	if !start.IsZero() {
		paidQ = paidQ.Where("created_at >= ?", start)
	}

	var salesOverTime []SalesPoint
	if err := paidQ.
		Select("DATE(created_at) AS date, SUM(total_price) AS total_sales").
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&salesOverTime).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var topProducts []ProductSales
	if err := h.paidItems(start).
		Joins("JOIN products ON products.id = order_items.product_id").
		Select("products.name AS name, SUM(order_items.price * order_items.quantity) AS sales").
		Group("products.name").
		Order("sales DESC").
		Limit(5).
		Scan(&topProducts).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var salesByCategory []CategorySales
	if err := h.paidItems(start).
		Joins("JOIN products ON products.id = order_items.product_id").
		Joins("JOIN categories ON categories.id = products.category_id").
		Select("categories.name AS category, SUM(order_items.price * order_items.quantity) AS sales").
		Group("categories.name").
		Order("sales DESC").
		Scan(&salesByCategory).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_products":    totalProducts,
		"total_orders":      totalOrders,
		"total_categories":  totalCategories,
		"total_users":       totalUsers,
		"sales_over_time":   salesOverTime,
		"top_products":      topProducts,
		"sales_by_category": salesByCategory,
	})
}
