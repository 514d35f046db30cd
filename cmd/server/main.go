package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sabinhyoju/kinmel/internal/config"
	"github.com/sabinhyoju/kinmel/internal/es"
	"github.com/sabinhyoju/kinmel/internal/esewa"
	"github.com/sabinhyoju/kinmel/internal/handlers"
	"github.com/sabinhyoju/kinmel/internal/handlers/admin"
	"github.com/sabinhyoju/kinmel/internal/handlers/cart"
	orderhandlers "github.com/sabinhyoju/kinmel/internal/handlers/order"
	"github.com/sabinhyoju/kinmel/internal/handlers/payment"
	"github.com/sabinhyoju/kinmel/internal/logging"
	"github.com/sabinhyoju/kinmel/internal/metrics"
	"github.com/sabinhyoju/kinmel/internal/mykafka"
	ordersvc "github.com/sabinhyoju/kinmel/internal/service/order"
	"github.com/sabinhyoju/kinmel/internal/service/token"
	httpserver "github.com/sabinhyoju/kinmel/internal/transport/http"
)

const productIndex = "product"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	esewaClient := esewa.NewClient(esewa.Config{
		SecretKey:    configuration.ESEWA_SECRET_KEY,
		MerchantCode: configuration.ESEWA_MERCHANT_CODE,
		LocalURL:     configuration.LOCAL_URL,
	})

	orderService := &ordersvc.Service{DB: db}
	tokenService := &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		DB: db,
		AuthHandler: &handlers.AuthHandler{
			DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod,
		},
		ProductHandler: &handlers.ProductHandler{DB: db},
		ReviewHandler:  &handlers.ReviewHandler{DB: db},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: productIndex},
		CartHandler:    &cart.CartHandler{DB: db, Producer: prod, Orders: orderService},
		OrderHandler:   &orderhandlers.OrderHandler{DB: db, Svc: orderService, Producer: prod},
		EsewaHandler: &payment.EsewaHandler{
			DB:                 db,
			Svc:                orderService,
			Client:             esewaClient,
			Producer:           prod,
			FrontendSuccessURL: configuration.FRONTEND_SUCCESS_URL,
			FrontendFailureURL: configuration.FRONTEND_FAILURE_URL,
		},
		AdminHandler: &admin.AdminHandler{
			DB: db, Svc: orderService, Producer: prod, ES: esClient, Index: productIndex,
		},
		TokenService: tokenService,
		Metrics:      metrics.NewServerMetrics("server"),
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.SERVER_PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
