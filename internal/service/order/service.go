package order

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sabinhyoju/kinmel/internal/models"
)

var (
	ErrValidation          = errors.New("validation")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrShippingUnavailable = errors.New("shipping is only available in Kathmandu, Bhaktapur, and Lalitpur")
	ErrInsufficientStock   = errors.New("insufficient stock")
)

// Verifier confirms a gateway transaction; implementations must fail
// closed on any doubt.
type Verifier interface {
	Verify(ctx context.Context, transactionUUID string, amount float64) error
}

type Line struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type Service struct {
	DB *gorm.DB
}

func TrackingCode(id uint) string {
	return fmt.Sprintf("TRK%06d", id)
}

// lockForUpdate takes a row lock on postgres. SQLite (tests) has no
// FOR UPDATE and serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Create places an order without touching stock: inventory is only
// committed at payment confirmation. The whole operation is one
// transaction; any rejection leaves no partial writes.
func (s *Service) Create(ctx context.Context, userID uint, shippingAddress, city string, lines []Line) (*models.Order, []models.OrderItem, error) {
	if shippingAddress == "" || city == "" || len(lines) == 0 {
		return nil, nil, fmt.Errorf("%w: shipping_address, city, and items are required", ErrValidation)
	}

	var (
		order models.Order
		items []models.OrderItem
	)

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]uint, 0, len(lines))
		for _, ln := range lines {
			ids = append(ids, ln.ProductID)
		}

		var products []models.Product
		if err := lockForUpdate(tx).Where("id IN ?", ids).Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[uint]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		var subtotal float64
		for _, ln := range lines {
			if ln.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive", ErrValidation)
			}
			p, ok := byID[ln.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d", ErrNotFound, ln.ProductID)
			}
			if p.Stock < ln.Quantity {
				return fmt.Errorf("%w: product %q has %d available", ErrInsufficientStock, p.Name, p.Stock)
			}
			subtotal += p.Price * float64(ln.Quantity)
		}

		fee, err := ShippingCost(city, subtotal)
		if err != nil {
			return err
		}

		order = models.Order{
			UserID:          userID,
			TotalPrice:      subtotal + fee,
			ShippingAddress: shippingAddress,
			City:            city,
			ShippingCost:    fee,
			Status:          models.StatusPending,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		// The tracking code derives from the generated id, so it is
		// patched in by a second write inside the same transaction.
		order.TrackingCode = TrackingCode(order.ID)
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("tracking_code", order.TrackingCode).Error; err != nil {
			return err
		}

		items = make([]models.OrderItem, 0, len(lines))
		for _, ln := range lines {
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: ln.ProductID,
				Quantity:  ln.Quantity,
				Price:     byID[ln.ProductID].Price,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	return &order, items, nil
}

// ConfirmPayment verifies the gateway transaction under a row lock on
// the order, re-checks stock for every line, then decrements inventory
// and flips the paid flag. Confirming an already-paid order is a no-op
// success.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, userID uint, transactionUUID string, verifier Verifier) (*models.Order, bool, error) {
	var (
		order       models.Order
		alreadyPaid bool
	)

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("id = ? AND user_id = ?", orderID, userID).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}

		if order.IsPaid {
			alreadyPaid = true
			return nil
		}

		if err := verifier.Verify(ctx, transactionUUID, order.TotalPrice); err != nil {
			return err
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return err
		}

		// Stock may have been consumed by other confirmed orders since
		// this one was placed; re-check every line before mutating.
		for _, it := range items {
			var p models.Product
			if err := lockForUpdate(tx).First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
				}
				return err
			}
			if p.Stock < it.Quantity {
				return fmt.Errorf("%w: product %d has %d available", ErrInsufficientStock, p.ID, p.Stock)
			}
		}

		for _, it := range items {
			if err := tx.Model(&models.Product{}).Where("id = ?", it.ProductID).
				UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity)).Error; err != nil {
				return err
			}
		}

		updates := map[string]any{"is_paid": true}
		order.IsPaid = true
		if order.Status == models.StatusPending {
			// Payment advances the order automatically, bypassing the
			// admin-driven transition path.
			order.Status = models.StatusShipped
			updates["status"] = models.StatusShipped
		}
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error
	})
	if txErr != nil {
		return nil, false, txErr
	}
	return &order, alreadyPaid, nil
}

// UpdateStatus applies an admin-driven transition validated against the
// status flow table.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, newStatus string) (*models.Order, error) {
	if !KnownStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	var order models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}
		if err := ValidateTransition(order.Status, newStatus); err != nil {
			return err
		}
		if order.Status == newStatus {
			return nil
		}
		order.Status = newStatus
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("status", newStatus).Error
	})
	if txErr != nil {
		return nil, txErr
	}
	return &order, nil
}

// UpdateTotal lets the owner replace the total; the shipping fee is
// recomputed through the same policy the create path used.
func (s *Service) UpdateTotal(ctx context.Context, orderID, userID uint, totalPrice float64) (*models.Order, error) {
	var order models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("id = ? AND user_id = ?", orderID, userID).
			First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
			}
			return err
		}

		fee, err := ShippingCost(order.City, totalPrice)
		if err != nil {
			return err
		}

		order.TotalPrice = totalPrice
		order.ShippingCost = fee
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Updates(map[string]any{"total_price": totalPrice, "shipping_cost": fee}).Error
	})
	if txErr != nil {
		return nil, txErr
	}
	return &order, nil
}

// Track resolves an order by tracking code. Anonymous lookups are
// public; authenticated viewers may only see their own orders.
func (s *Service) Track(ctx context.Context, trackingCode string, viewerID uint, authenticated bool) (*models.Order, error) {
	var order models.Order
	if err := s.DB.WithContext(ctx).
		Where("tracking_code = ?", trackingCode).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tracking code %q", ErrNotFound, trackingCode)
		}
		return nil, err
	}
	if authenticated && order.UserID != viewerID {
		return nil, fmt.Errorf("%w: not your order", ErrForbidden)
	}
	return &order, nil
}
