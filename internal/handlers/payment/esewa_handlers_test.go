package payment

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sabinhyoju/kinmel/internal/esewa"
	"github.com/sabinhyoju/kinmel/internal/models"
	ordersvc "github.com/sabinhyoju/kinmel/internal/service/order"
)

type testEnv struct {
	T       *testing.T
	E       *echo.Echo
	DB      *gorm.DB
	H       *EsewaHandler
	Gateway *gatewayState
}

// gatewayState drives the stubbed status endpoint per test.
type gatewayState struct {
	status string
	code   int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	))

	gw := &gatewayState{status: "COMPLETE", code: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(gw.code)
		fmt.Fprintf(w, `{"status":%q}`, gw.status)
	}))
	t.Cleanup(srv.Close)

	client := esewa.NewClient(esewa.Config{
		SecretKey:    "8gBm/:&EnhH.1/q",
		MerchantCode: "EPAYTEST",
		LocalURL:     "http://localhost:8080",
		StatusURL:    srv.URL,
	})

	svc := &ordersvc.Service{DB: db}
	return &testEnv{
		T:  t,
		E:  echo.New(),
		DB: db,
		H: &EsewaHandler{
			DB:                 db,
			Svc:                svc,
			Client:             client,
			FrontendSuccessURL: "http://frontend/payment/success",
			FrontendFailureURL: "http://frontend/payment/failure",
		},
		Gateway: gw,
	}
}

func (env *testEnv) doJSONRequest(method, path string, userID uint, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if userID != 0 {
		c.Set("userID", userID)
		c.Set("isAdmin", false)
	}
	return rec, c
}

func (env *testEnv) placeOrder(userID uint, price float64, stock, qty int) *models.Order {
	var cat models.Category
	if err := env.DB.Where("name = ?", "default").First(&cat).Error; err != nil {
		cat = models.Category{Name: "default"}
		require.NoError(env.T, env.DB.Create(&cat).Error)
	}
	p := models.Product{Name: "keyboard", Description: "keyboard", Price: price, Stock: stock, CategoryID: cat.ID}
	require.NoError(env.T, env.DB.Create(&p).Error)

	order, _, err := env.H.Svc.Create(env.T.Context(), userID, "Baneshwor", "Kathmandu",
		[]ordersvc.Line{{ProductID: p.ID, Quantity: qty}})
	require.NoError(env.T, err)
	return order
}

func httpErrCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	return he.Code
}

func TestPayment(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(2, 10, 5, 1) // total 110 with shipping

	rec, c := env.doJSONRequest(http.MethodPost, "/esewa/payment", 2, map[string]any{
		"order_id": order.ID,
		"amount":   order.TotalPrice,
	})
	require.NoError(t, env.H.Payment(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp esewa.PaymentRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.URL)
	require.Equal(t, "110", resp.Payload["total_amount"])
	require.Equal(t, fmt.Sprintf("ORDER_%d_2", order.ID), resp.Payload["transaction_uuid"])
	require.Equal(t, "EPAYTEST", resp.Payload["product_code"])
	require.NotEmpty(t, resp.Payload["signature"])
}

func TestPaymentAmountMismatch(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(2, 10, 5, 1)

	_, c := env.doJSONRequest(http.MethodPost, "/esewa/payment", 2, map[string]any{
		"order_id": order.ID,
		"amount":   order.TotalPrice + 1,
	})
	require.Equal(t, http.StatusNotFound, httpErrCode(t, env.H.Payment(c)))
}

func TestPaymentWrongOwner(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(2, 10, 5, 1)

	_, c := env.doJSONRequest(http.MethodPost, "/esewa/payment", 3, map[string]any{
		"order_id": order.ID,
		"amount":   order.TotalPrice,
	})
	require.Equal(t, http.StatusForbidden, httpErrCode(t, env.H.Payment(c)))
}

func TestPaymentMissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/esewa/payment", 2, map[string]any{
		"order_id": 1,
	})
	require.Equal(t, http.StatusBadRequest, httpErrCode(t, env.H.Payment(c)))
}

func TestConfirm(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(2, 1000, 5, 2)

	rec, c := env.doJSONRequest(http.MethodPost, "/esewa/payment-confirm", 2, map[string]any{
		"order_id":         order.ID,
		"transaction_uuid": esewa.TransactionUUID(order.ID, 2),
	})
	require.NoError(t, env.H.Confirm(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Payment confirmed and order updated", resp["message"])

	var got models.Order
	require.NoError(t, env.DB.First(&got, order.ID).Error)
	require.True(t, got.IsPaid)
	require.Equal(t, models.StatusShipped, got.Status)

	var p models.Product
	require.NoError(t, env.DB.First(&p).Error)
	require.Equal(t, 3, p.Stock)
}

func TestConfirmIdempotent(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(2, 1000, 5, 2)

	_, c := env.doJSONRequest(http.MethodPost, "/esewa/payment-confirm", 2, map[string]any{
		"order_id":         order.ID,
		"transaction_uuid": esewa.TransactionUUID(order.ID, 2),
	})
	require.NoError(t, env.H.Confirm(c))

	rec2, c2 := env.doJSONRequest(http.MethodPost, "/esewa/payment-confirm", 2, map[string]any{
		"order_id":         order.ID,
		"transaction_uuid": esewa.TransactionUUID(order.ID, 2),
	})
	require.NoError(t, env.H.Confirm(c2))
	require.Equal(t, http.StatusOK, rec2.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	require.Equal(t, "Order is already paid", resp["message"])

	var p models.Product
	require.NoError(t, env.DB.First(&p).Error)
	require.Equal(t, 3, p.Stock)
}

func TestConfirmGatewayRejects(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(2, 1000, 5, 2)
	env.Gateway.status = "PENDING"

	_, c := env.doJSONRequest(http.MethodPost, "/esewa/payment-confirm", 2, map[string]any{
		"order_id":         order.ID,
		"transaction_uuid": esewa.TransactionUUID(order.ID, 2),
	})
	require.Equal(t, http.StatusBadRequest, httpErrCode(t, env.H.Confirm(c)))

	var got models.Order
	require.NoError(t, env.DB.First(&got, order.ID).Error)
	require.False(t, got.IsPaid)

	var p models.Product
	require.NoError(t, env.DB.First(&p).Error)
	require.Equal(t, 5, p.Stock)
}

func TestSuccessRedirect(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(2, 1000, 5, 2)

	// Confirm first so the redirect reports success.
	_, cConfirm := env.doJSONRequest(http.MethodPost, "/esewa/payment-confirm", 2, map[string]any{
		"order_id":         order.ID,
		"transaction_uuid": esewa.TransactionUUID(order.ID, 2),
	})
	require.NoError(t, env.H.Confirm(cConfirm))

	data, err := json.Marshal(map[string]any{
		"transaction_uuid": esewa.TransactionUUID(order.ID, 2),
		"transaction_code": "000ABC",
		"total_amount":     order.TotalPrice,
		"status":           "COMPLETE",
	})
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(data)

	rec, c := env.doJSONRequest(http.MethodGet, "/esewa/success?data="+url.QueryEscape(encoded), 0, nil)
	require.NoError(t, env.H.Success(c))
	require.Equal(t, http.StatusFound, rec.Code)

	loc := rec.Header().Get(echo.HeaderLocation)
	require.Contains(t, loc, env.H.FrontendSuccessURL)
	require.Contains(t, loc, "status=success")
	require.Contains(t, loc, fmt.Sprintf("order_id=%d", order.ID))
}

func TestSuccessRedirectUnpaidOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.placeOrder(2, 1000, 5, 2)

	data, err := json.Marshal(map[string]any{
		"transaction_uuid": esewa.TransactionUUID(order.ID, 2),
		"transaction_code": "000ABC",
		"total_amount":     order.TotalPrice,
		"status":           "COMPLETE",
	})
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(data)

	rec, c := env.doJSONRequest(http.MethodGet, "/esewa/success?data="+url.QueryEscape(encoded), 0, nil)
	require.NoError(t, env.H.Success(c))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get(echo.HeaderLocation), "status=pending")
}

func TestSuccessRedirectBadData(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodGet, "/esewa/success", 0, nil)
	require.NoError(t, env.H.Success(c))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get(echo.HeaderLocation), env.H.FrontendFailureURL)

	rec2, c2 := env.doJSONRequest(http.MethodGet, "/esewa/success?data=not-base64", 0, nil)
	require.NoError(t, env.H.Success(c2))
	require.Contains(t, rec2.Header().Get(echo.HeaderLocation), env.H.FrontendFailureURL)
}

func TestFailureRedirect(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodGet, "/esewa/failure", 0, nil)
	require.NoError(t, env.H.Failure(c))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, env.H.FrontendFailureURL, rec.Header().Get(echo.HeaderLocation))
}
