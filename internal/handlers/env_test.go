package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sabinhyoju/kinmel/internal/models"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB

	A *AuthHandler
	P *ProductHandler
	R *ReviewHandler

	JWTSecret, RefreshSecret []byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Category{},
		&models.Product{},
		&models.Review{},
	))

	jwtSecret := []byte("test-jwt-secret")
	refreshSecret := []byte("test-refresh-secret")

	return &testEnv{
		T:             t,
		E:             echo.New(),
		DB:            db,
		A:             &AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret},
		P:             &ProductHandler{DB: db},
		R:             &ReviewHandler{DB: db},
		JWTSecret:     jwtSecret,
		RefreshSecret: refreshSecret,
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func asAuthed(c echo.Context, userID uint, isAdmin bool) {
	c.Set("userID", userID)
	c.Set("isAdmin", isAdmin)
}

func (env *testEnv) seedCategory(name string) models.Category {
	cat := models.Category{Name: name}
	require.NoError(env.T, env.DB.Create(&cat).Error)
	return cat
}

func (env *testEnv) seedProduct(name string, price float64, stock int, categoryID uint) models.Product {
	p := models.Product{
		Name:        name,
		Description: name,
		Price:       price,
		Stock:       stock,
		CategoryID:  categoryID,
	}
	require.NoError(env.T, env.DB.Create(&p).Error)
	return p
}

func httpErrCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError, got %v", err)
	return he.Code
}
