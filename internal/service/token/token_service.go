package token

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type TokenService struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

func CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (t *TokenService) RotateToken(rawToken string) (string, string, error) {
	claims, err := ValidateRefresh(rawToken, t.RefreshSecret, t.DB)
	if err != nil {
		return "", "", err
	}

	userID := uint(claims["sub"].(float64))
	isAdmin, _ := claims["is_admin"].(bool)

	newAccess, err := SignAccessToken(userID, isAdmin, t.JWTSecret)
	if err != nil {
		return "", "", err
	}

	newRefresh, err := SignRefreshToken(userID, isAdmin, t.RefreshSecret)
	if err != nil {
		return "", "", err
	}

	if err := SaveRefreshToken(t.DB, newRefresh, userID); err != nil {
		return "", "", err
	}

	return newAccess, newRefresh, nil
}

func (t *TokenService) RevokeRefresh(rawToken string) error {
	return t.DB.Table("refresh_tokens").
		Where("token = ?", rawToken).
		Update("revoked", true).Error
}

// UserID returns the authenticated user set by the auth middleware.
func UserID(c echo.Context) (uint, error) {
	id, ok := c.Get("userID").(uint)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return id, nil
}

func IsAdmin(c echo.Context) bool {
	isAdmin, _ := c.Get("isAdmin").(bool)
	return isAdmin
}

func setUserContext(c echo.Context, claims jwt.MapClaims) {
	c.Set("userID", uint(claims["sub"].(float64)))
	isAdmin, _ := claims["is_admin"].(bool)
	c.Set("isAdmin", isAdmin)
}

// bearerOrCookie finds the access token in the Authorization header or
// the accessToken cookie.
func bearerOrCookie(c echo.Context) string {
	const prefix = "Bearer "
	if h := c.Request().Header.Get(echo.HeaderAuthorization); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	if ck, err := c.Cookie("accessToken"); err == nil {
		return ck.Value
	}
	return ""
}

func (t *TokenService) authenticate(c echo.Context) error {
	raw := bearerOrCookie(c)
	if raw != "" {
		parsed, err := jwt.Parse(raw, func(j *jwt.Token) (interface{}, error) {
			return t.JWTSecret, nil
		})
		if err == nil && parsed.Valid {
			setUserContext(c, parsed.Claims.(jwt.MapClaims))
			return nil
		}
		if !errors.Is(err, jwt.ErrTokenExpired) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}
	}

	rfCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}
	newAccess, newRefresh, err := t.RotateToken(rfCookie.Value)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "cannot rotate token: "+err.Error())
	}

	c.SetCookie(CreateCookie("accessToken", newAccess, "/", time.Now().Add(AccessTTL)))
	c.SetCookie(CreateCookie("refreshToken", newRefresh, "/", time.Now().Add(RefreshTTL)))

	parsed, _ := jwt.Parse(newAccess, func(j *jwt.Token) (interface{}, error) { return t.JWTSecret, nil })
	setUserContext(c, parsed.Claims.(jwt.MapClaims))
	return nil
}

func (t *TokenService) AutoRefreshMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := t.authenticate(c); err != nil {
			return err
		}
		return next(c)
	}
}

func (t *TokenService) AutoRefreshMiddlewareAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := t.authenticate(c); err != nil {
			return err
		}
		if !IsAdmin(c) {
			return echo.NewHTTPError(http.StatusForbidden, "admin only")
		}
		return next(c)
	}
}

// OptionalAuthMiddleware authenticates when credentials are present but
// lets anonymous requests through (public track-order lookups).
func (t *TokenService) OptionalAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerOrCookie(c)
		if raw != "" {
			parsed, err := jwt.Parse(raw, func(j *jwt.Token) (interface{}, error) {
				return t.JWTSecret, nil
			})
			if err == nil && parsed.Valid {
				setUserContext(c, parsed.Claims.(jwt.MapClaims))
			}
		}
		return next(c)
	}
}
