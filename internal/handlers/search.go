package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/sabinhyoju/kinmel/internal/service/search"
	"github.com/sabinhyoju/kinmel/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return c.JSON(http.StatusOK, echo.Map{"total": 0, "products": []any{}})
	}

	page := ParseIntDefault(c.QueryParam("page"), 1)
	size := ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, size := util.Calculate(page, size)

	total, products, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		c.Logger().Errorf("search error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "an error occurred during product search")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "products": products})
}
