package models

import "time"

// HomeProductsLimit caps the featured section of the home page.
const HomeProductsLimit = 8

// Product is a catalogue item. JSON names match the storefront scripts.
type Product struct {
	ID           uint      `gorm:"primaryKey"                    json:"id"`
	Name         string    `gorm:"size:255;not null;index"       json:"name"`
	Description  string    `gorm:"type:text"                     json:"description"`
	Price        float64   `gorm:"not null;default:0"            json:"price"`
	Image        string    `gorm:"size:512"                      json:"image"`
	DisplayHome  bool      `gorm:"not null;default:false;index"  json:"display_home"`
	HomePosition int       `gorm:"not null;default:0"            json:"home_position"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
