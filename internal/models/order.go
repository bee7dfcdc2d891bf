package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the closed set of order fulfillment states. It is not the
// payment transaction status; the two must never be conflated.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether the value is one of the known order states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether an order in this state may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// OrderPaymentStatus tracks how far the order payment has progressed.
type OrderPaymentStatus string

const (
	OrderPaymentPending   OrderPaymentStatus = "pending"
	OrderPaymentCompleted OrderPaymentStatus = "completed"
	OrderPaymentFailed    OrderPaymentStatus = "failed"
	OrderPaymentRefunded  OrderPaymentStatus = "refunded"
)

// Order is a placed customer order with an item snapshot.
type Order struct {
	BaseModel
	UserID             uuid.UUID          `gorm:"type:uuid;index" json:"user_id"`
	User               *User              `json:"user,omitempty"`
	Status             OrderStatus        `gorm:"type:varchar(16);default:pending" json:"status"`
	PaymentMethod      string             `json:"payment_method"`
	PaymentStatus      OrderPaymentStatus `gorm:"type:varchar(16);default:pending" json:"payment_status"`
	TransactionID      string             `gorm:"index" json:"transaction_id"`
	TotalAmount        int64              `json:"total_amount"`
	ShippingAddress    string             `json:"shipping_address"`
	ShippingCity       string             `json:"shipping_city"`
	ShippingPostalCode string             `json:"shipping_postal_code"`
	ShippingCountry    string             `gorm:"default:Vietnam" json:"shipping_country"`
	PlacedAt           time.Time          `json:"placed_at"`
	Items              []OrderItem        `json:"items,omitempty"`
}

// OrderItem snapshots product name and price at purchase time.
type OrderItem struct {
	BaseModel
	OrderID      uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	ProductID    *uuid.UUID `gorm:"type:uuid" json:"product_id"`
	ProductName  string     `json:"product_name"`
	ProductPrice int64      `json:"product_price"`
	Quantity     int        `json:"quantity"`
}
