package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/esewa"
	"github.com/sabinhyoju/kinmel/internal/service/order"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func ErrorResponse(c echo.Context, code int, err error) error {
	return c.JSON(code, Response{
		Status:  "error",
		Message: err.Error(),
	})
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// ServiceError maps the service error taxonomy onto HTTP status codes.
func ServiceError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, order.ErrShippingUnavailable),
		errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, esewa.ErrVerificationFailed):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		if he, ok := err.(*echo.HTTPError); ok {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
