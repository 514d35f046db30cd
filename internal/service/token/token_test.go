package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sabinhyoju/kinmel/internal/models"
)

var (
	jwtSecret     = []byte("test-jwt-secret")
	refreshSecret = []byte("test-refresh-secret")
)

func newTestService(t *testing.T) *TokenService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RefreshToken{}))

	return &TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}
}

func TestSignAccessToken(t *testing.T) {
	raw, err := SignAccessToken(42, true, jwtSecret)
	require.NoError(t, err)

	parsed, err := jwt.Parse(raw, func(tok *jwt.Token) (interface{}, error) { return jwtSecret, nil })
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, float64(42), claims["sub"])
	require.Equal(t, true, claims["is_admin"])
}

func TestRotateToken(t *testing.T) {
	svc := newTestService(t)

	refresh, err := SignRefreshToken(7, false, refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 7))

	access, newRefresh, err := svc.RotateToken(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, newRefresh)

	parsed, err := jwt.Parse(access, func(tok *jwt.Token) (interface{}, error) { return jwtSecret, nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, float64(7), claims["sub"])
}

func TestRotateRejectsAccessToken(t *testing.T) {
	svc := newTestService(t)

	// An access token signed with the refresh secret still lacks the
	// refresh typ claim.
	access, err := SignAccessToken(7, false, refreshSecret)
	require.NoError(t, err)

	_, _, err = svc.RotateToken(access)
	require.Error(t, err)
}

func TestRotateRejectsRevoked(t *testing.T) {
	svc := newTestService(t)

	refresh, err := SignRefreshToken(7, false, refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 7))
	require.NoError(t, svc.RevokeRefresh(refresh))

	_, _, err = svc.RotateToken(refresh)
	require.Error(t, err)
}

func TestRotateRejectsUnknown(t *testing.T) {
	svc := newTestService(t)

	// Well signed but never stored.
	refresh, err := SignRefreshToken(7, false, refreshSecret)
	require.NoError(t, err)

	_, _, err = svc.RotateToken(refresh)
	require.Error(t, err)
}

func runMiddleware(t *testing.T, svc *TokenService, mw func(echo.HandlerFunc) echo.HandlerFunc, cookies ...*http.Cookie) (echo.Context, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return c, handler(c)
}

func TestAutoRefreshMiddleware(t *testing.T) {
	svc := newTestService(t)

	access, err := SignAccessToken(7, false, jwtSecret)
	require.NoError(t, err)

	c, err := runMiddleware(t, svc, svc.AutoRefreshMiddleware,
		&http.Cookie{Name: "accessToken", Value: access})
	require.NoError(t, err)

	userID, err := UserID(c)
	require.NoError(t, err)
	require.Equal(t, uint(7), userID)
	require.False(t, IsAdmin(c))
}

func TestAutoRefreshMiddlewareRotatesExpired(t *testing.T) {
	svc := newTestService(t)

	// An expired access token plus a valid refresh cookie gets new
	// cookies instead of a 401.
	claims := jwt.MapClaims{
		"sub":      float64(7),
		"is_admin": false,
		"exp":      time.Now().Add(-time.Minute).Unix(),
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
	require.NoError(t, err)

	refresh, err := SignRefreshToken(7, false, refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 7))

	c, err := runMiddleware(t, svc, svc.AutoRefreshMiddleware,
		&http.Cookie{Name: "accessToken", Value: expired},
		&http.Cookie{Name: "refreshToken", Value: refresh})
	require.NoError(t, err)

	userID, err := UserID(c)
	require.NoError(t, err)
	require.Equal(t, uint(7), userID)

	cookies := c.Response().Header().Values(echo.HeaderSetCookie)
	require.NotEmpty(t, cookies)
}

func TestAutoRefreshMiddlewareRejectsAnonymous(t *testing.T) {
	svc := newTestService(t)

	_, err := runMiddleware(t, svc, svc.AutoRefreshMiddleware)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestAdminMiddleware(t *testing.T) {
	svc := newTestService(t)

	user, err := SignAccessToken(7, false, jwtSecret)
	require.NoError(t, err)
	_, errUser := runMiddleware(t, svc, svc.AutoRefreshMiddlewareAdmin,
		&http.Cookie{Name: "accessToken", Value: user})
	he, ok := errUser.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)

	admin, err := SignAccessToken(8, true, jwtSecret)
	require.NoError(t, err)
	c, errAdmin := runMiddleware(t, svc, svc.AutoRefreshMiddlewareAdmin,
		&http.Cookie{Name: "accessToken", Value: admin})
	require.NoError(t, errAdmin)
	require.True(t, IsAdmin(c))
}

func TestOptionalAuthMiddleware(t *testing.T) {
	svc := newTestService(t)

	// Anonymous passes through without user context.
	c, err := runMiddleware(t, svc, svc.OptionalAuthMiddleware)
	require.NoError(t, err)
	_, uidErr := UserID(c)
	require.Error(t, uidErr)

	access, err := SignAccessToken(7, false, jwtSecret)
	require.NoError(t, err)
	c2, err := runMiddleware(t, svc, svc.OptionalAuthMiddleware,
		&http.Cookie{Name: "accessToken", Value: access})
	require.NoError(t, err)
	userID, err := UserID(c2)
	require.NoError(t, err)
	require.Equal(t, uint(7), userID)
}
