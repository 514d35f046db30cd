package models

import (
	"time"
)

const (
	StatusPending        = "pending"
	StatusShipped        = "shipped"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null"          json:"username"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	IsAdmin      bool      `gorm:"default:false"            json:"is_admin"`
	IsVerified   bool      `gorm:"default:false"            json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

type Category struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"unique;not null"          json:"name"`
	Description string `json:"description"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string    `gorm:"index;not null"            json:"name"`
	Description string    `gorm:"not null"                  json:"description"`
	Price       float64   `gorm:"not null;index"            json:"price"`
	Stock       int       `gorm:"not null;default:0"        json:"stock"`
	Image       string    `json:"image"`
	CategoryID  uint      `gorm:"not null;index"            json:"category_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                   json:"id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_review_user"       json:"product_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_review_user"       json:"user_id"`
	Rating    int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   string    `gorm:"not null"                                   json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey"                  json:"id"`
	UserID    uint `gorm:"index;not null"              json:"user_id"`
	ProductID uint `gorm:"not null"                    json:"product_id"`
	Quantity  int  `gorm:"default:1;check:quantity>0"  json:"quantity"`
}

type Order struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint      `gorm:"index;not null"           json:"user_id"`
	TotalPrice      float64   `gorm:"not null;default:0"       json:"total_price"`
	ShippingAddress string    `gorm:"not null"                 json:"shipping_address"`
	City            string    `gorm:"not null"                 json:"city"`
	ShippingCost    float64   `gorm:"not null;default:0"       json:"shipping_cost"`
	Status          string    `gorm:"not null;default:pending" json:"status"`
	TrackingCode    string    `gorm:"uniqueIndex"              json:"tracking_code"`
	IsPaid          bool      `gorm:"default:false"            json:"is_paid"`
	CreatedAt       time.Time `json:"created_at"`
}

// OrderItem snapshots the unit price at order time: later product price
// changes must not alter historical orders.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey"                  json:"id"`
	OrderID   uint    `gorm:"index;not null"              json:"order_id"`
	ProductID uint    `gorm:"not null"                    json:"product_id"`
	Quantity  int     `gorm:"not null;check:quantity>0"   json:"quantity"`
	Price     float64 `gorm:"not null"                    json:"price"`
}
