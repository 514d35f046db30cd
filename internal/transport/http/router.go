package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/handlers"
	"github.com/sabinhyoju/kinmel/internal/handlers/admin"
	"github.com/sabinhyoju/kinmel/internal/handlers/cart"
	"github.com/sabinhyoju/kinmel/internal/handlers/order"
	"github.com/sabinhyoju/kinmel/internal/handlers/payment"
	"github.com/sabinhyoju/kinmel/internal/metrics"
	"github.com/sabinhyoju/kinmel/internal/service/token"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	ReviewHandler  *handlers.ReviewHandler
	SearchHandler  *handlers.SearchHandler
	CartHandler    *cart.CartHandler
	OrderHandler   *order.OrderHandler
	EsewaHandler   *payment.EsewaHandler
	AdminHandler   *admin.AdminHandler
	TokenService   *token.TokenService
	Metrics        *metrics.ServerMetrics
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	auth := e.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.LogOut)
	auth.POST("/token/refresh", d.AuthHandler.Refresh)
	auth.GET("/profile", d.AuthHandler.Profile, d.TokenService.AutoRefreshMiddleware)

	products := e.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.SearchHandler.Search)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("/:id/recommend", d.ProductHandler.Recommend)
	products.GET("/:id/reviews", d.ReviewHandler.ListByProduct)
	products.POST("/:id/reviews", d.ReviewHandler.Create, d.TokenService.AutoRefreshMiddleware)

	myReview := products.Group("/:id/reviews/my", d.TokenService.AutoRefreshMiddleware)
	myReview.GET("", d.ReviewHandler.GetMine)
	myReview.PUT("", d.ReviewHandler.UpdateMine)
	myReview.PATCH("", d.ReviewHandler.UpdateMine)
	myReview.DELETE("", d.ReviewHandler.DeleteMine)

	cartGroup := e.Group("/cart", d.TokenService.AutoRefreshMiddleware)
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("", d.CartHandler.AddToCart)
	cartGroup.PATCH("/:id", d.CartHandler.UpdateItem)
	cartGroup.DELETE("/:id", d.CartHandler.DeleteItem)

	e.POST("/checkout", d.CartHandler.Checkout, d.TokenService.AutoRefreshMiddleware)

	orders := e.Group("/orders", d.TokenService.AutoRefreshMiddleware)
	orders.POST("/create", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.OrderDetail)
	orders.PATCH("/:id/update", d.OrderHandler.UpdateStatus)
	orders.PATCH("/:id/update-total", d.OrderHandler.UpdateTotal)

	e.GET("/user/orders", d.OrderHandler.ListOrders, d.TokenService.AutoRefreshMiddleware)
	e.GET("/track-order/:tracking_code", d.OrderHandler.TrackOrder, d.TokenService.OptionalAuthMiddleware)

	esewa := e.Group("/esewa")
	esewa.POST("/payment", d.EsewaHandler.Payment, d.TokenService.AutoRefreshMiddleware)
	esewa.GET("/success", d.EsewaHandler.Success)
	esewa.GET("/failure", d.EsewaHandler.Failure)
	esewa.POST("/payment-confirm", d.EsewaHandler.Confirm, d.TokenService.AutoRefreshMiddleware)

	adminGroup := e.Group("/admin", d.TokenService.AutoRefreshMiddlewareAdmin)
	adminGroup.GET("/dashboard", d.AdminHandler.Dashboard)

	adminGroup.GET("/products", d.AdminHandler.ListProducts)
	adminGroup.POST("/products/create", d.AdminHandler.CreateProduct)
	adminGroup.PUT("/products/:id/update", d.AdminHandler.UpdateProduct)
	adminGroup.DELETE("/products/:id/delete", d.AdminHandler.DeleteProduct)

	adminGroup.GET("/categories", d.AdminHandler.ListCategories)
	adminGroup.POST("/categories/create", d.AdminHandler.CreateCategory)
	adminGroup.PUT("/categories/:id/update", d.AdminHandler.UpdateCategory)
	adminGroup.DELETE("/categories/:id/delete", d.AdminHandler.DeleteCategory)

	adminGroup.GET("/users", d.AdminHandler.ListUsers)
	adminGroup.PUT("/users/:id", d.AdminHandler.UpdateUser)

	adminGroup.GET("/orders", d.AdminHandler.ListOrders)
	adminGroup.PATCH("/orders/:id/status", d.AdminHandler.UpdateOrderStatus)
}
