package seeders

import (
	"gorm.io/gorm"

	"github.com/onyxia-store/onyxia/app/models"
)

func init() {
	Register("products", SeedProducts)
}

// DemoCatalog is inserted by SeedProducts. The first three are featured on
// the home page.
var DemoCatalog = []models.Product{
	{Name: "The Solitaire", Price: 2450, Image: "images/product-item-1.jpg", DisplayHome: true, HomePosition: 1,
		Description: "A timeless classic, this solitaire diamond ring features a brilliant-cut diamond set in a 14k white gold band. Perfect for engagements and special anniversaries."},
	{Name: "Pearl Drops", Price: 890, Image: "images/product-item-2.jpg", DisplayHome: true, HomePosition: 2,
		Description: "Elegant and sophisticated, these freshwater pearl drop earrings are accented with small diamonds and set in sterling silver."},
	{Name: "The Aurelia", Price: 1200, Image: "images/product-item-3.jpg", DisplayHome: true, HomePosition: 3,
		Description: "This stunning 18k gold necklace features a delicate chain and a unique pendant, making it a versatile piece for any occasion."},
	{Name: "Emerald Elegance", Price: 1850, Image: "images/product-item-4.jpg",
		Description: "A beautiful emerald ring surrounded by small diamonds, set in 18k white gold. The perfect statement piece for any collection."},
	{Name: "Sapphire Dreams", Price: 1350, Image: "images/product-item-5.jpg",
		Description: "A stunning sapphire pendant necklace with diamond accents, set in 14k white gold. Elegant and timeless."},
	{Name: "Ruby Passion", Price: 1650, Image: "images/product-item-6.jpg",
		Description: "Exquisite ruby earrings with diamond halos, set in 18k rose gold. A perfect gift for that special someone."},
	{Name: "Diamond Infinity", Price: 980, Image: "images/product-item-7.jpg",
		Description: "A beautiful infinity bracelet featuring small diamonds set in 14k white gold. Symbolizes eternal love and commitment."},
	{Name: "Pearl Elegance", Price: 750, Image: "images/product-item-8.jpg",
		Description: "A classic pearl necklace featuring AAA-grade freshwater pearls with a 14k gold clasp. Timeless and sophisticated."},
}

// SeedProducts inserts DemoCatalog into an empty products table and leaves a
// populated one alone.
func SeedProducts(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	rows := append([]models.Product(nil), DemoCatalog...)
	return db.Create(&rows).Error
}
