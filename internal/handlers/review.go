package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sabinhyoju/kinmel/internal/models"
	"github.com/sabinhyoju/kinmel/internal/service/token"
)

type ReviewHandler struct {
	DB *gorm.DB
}

func (h *ReviewHandler) productID(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	return uint(id), nil
}

func (h *ReviewHandler) ListByProduct(c echo.Context) error {
	productID, err := h.productID(c)
	if err != nil {
		return err
	}

	var reviews []models.Review
	if err := h.DB.Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandler) Create(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	productID, err := h.productID(c)
	if err != nil {
		return err
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Rating < 1 || req.Rating > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be between 1 and 5")
	}

	var product models.Product
	if err := h.DB.First(&product, productID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var existing models.Review
	err = h.DB.Where("product_id = ? AND user_id = ?", productID, userID).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusBadRequest,
			"you have already posted a review for this product")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	review := models.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := h.DB.Create(&review).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) mine(c echo.Context) (*models.Review, error) {
	userID, err := token.UserID(c)
	if err != nil {
		return nil, err
	}
	productID, err := h.productID(c)
	if err != nil {
		return nil, err
	}

	var review models.Review
	if err := h.DB.Where("product_id = ? AND user_id = ?", productID, userID).
		First(&review).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "review not found")
	}
	return &review, nil
}

func (h *ReviewHandler) GetMine(c echo.Context) error {
	review, err := h.mine(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, review)
}

func (h *ReviewHandler) UpdateMine(c echo.Context) error {
	review, err := h.mine(c)
	if err != nil {
		return err
	}

	var req struct {
		Rating  *int    `json:"rating"`
		Comment *string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Rating != nil {
		if *req.Rating < 1 || *req.Rating > 5 {
			return echo.NewHTTPError(http.StatusBadRequest, "rating must be between 1 and 5")
		}
		review.Rating = *req.Rating
	}
	if req.Comment != nil {
		review.Comment = *req.Comment
	}

	if err := h.DB.Save(review).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, review)
}

func (h *ReviewHandler) DeleteMine(c echo.Context) error {
	review, err := h.mine(c)
	if err != nil {
		return err
	}
	if err := h.DB.Delete(review).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
