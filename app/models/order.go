package models

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"

	DeliveryHome   = "home"
	DeliveryOffice = "office"

	// HomeDeliveryFee is charged for DeliveryHome; office pickup is free.
	HomeDeliveryFee = 10.0
)

// OrderStatuses is the accepted status vocabulary, in workflow order.
var OrderStatuses = []string{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

func ValidStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// DeliveryFee returns the fee for a delivery type.
func DeliveryFee(deliveryType string) float64 {
	if deliveryType == DeliveryHome {
		return HomeDeliveryFee
	}
	return 0
}

type Order struct {
	ID              uint        `gorm:"primaryKey"                     json:"id"`
	CustomerName    string      `gorm:"size:120;not null"              json:"customerName"`
	City            string      `gorm:"size:120;not null"              json:"city"`
	PhoneNumber     string      `gorm:"size:32;not null"               json:"phoneNumber"`
	DeliveryAddress string      `gorm:"size:255"                       json:"deliveryAddress"`
	DeliveryType    string      `gorm:"size:16;not null;default:home"  json:"deliveryType"`
	Items           []OrderItem `gorm:"constraint:OnDelete:CASCADE"    json:"items"`
	Status          string      `gorm:"size:16;not null;default:pending;index" json:"status"`
	Subtotal        float64     `gorm:"not null;default:0"             json:"subtotal"`
	DeliveryFee     float64     `gorm:"not null;default:0"             json:"deliveryFee"`
	Total           float64     `gorm:"not null;default:0"             json:"total"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// OrderItem is a snapshot of a cart line at checkout. ProductID is whatever
// id the cart carried and is not a foreign key.
type OrderItem struct {
	ID          uint    `gorm:"primaryKey"        json:"-"`
	OrderID     uint    `gorm:"not null;index"    json:"-"`
	ProductID   string  `gorm:"size:64"           json:"id"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Price       float64 `gorm:"not null"          json:"price"`
	Quantity    int     `gorm:"not null"          json:"quantity"`
	Image       string  `gorm:"size:512"          json:"image,omitempty"`
	Description string  `gorm:"type:text"         json:"description,omitempty"`
}

func (it OrderItem) LineTotal() float64 { return it.Price * float64(it.Quantity) }
