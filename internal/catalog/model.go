package catalog

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Product is a sellable item owned by a seller. Pricing is integer cents plus an ISO
// currency code. Rich content, files and archives hang off the product (or its
// variants) in the content package.
type Product struct {
	gorm.Model
	ExternalID                       string `gorm:"size:36;uniqueIndex:idx_products_external_id;not null"`
	SellerID                         uint   `gorm:"index;not null"`
	Name                             string `gorm:"size:255;not null"`
	Permalink                        string `gorm:"size:255;uniqueIndex:idx_products_permalink;not null"`
	Description                      string `gorm:"type:text"`
	PriceCents                       int64  `gorm:"not null;default:0"`
	Currency                         string `gorm:"size:3;not null;default:USD"`
	Published                        bool   `gorm:"not null;default:false"`
	ReceiptNote                      string `gorm:"type:text"`
	HasSameRichContentForAllVariants bool   `gorm:"not null;default:true"`
	Metadata                         datatypes.JSON
	Variants                         []Variant
}

// TableName defines the table name for the Product model.
func (Product) TableName() string {
	return "products"
}

// Variant is a purchasable option of a product (tier, version, duration). It may carry
// its own rich content when the product's shared-content mode is off.
type Variant struct {
	gorm.Model
	ExternalID      string `gorm:"size:36;uniqueIndex:idx_variants_external_id;not null"`
	ProductID       uint   `gorm:"index;not null"`
	Name            string `gorm:"size:255;not null"`
	PriceDeltaCents int64  `gorm:"not null;default:0"`
	Position        int    `gorm:"not null;default:0"`
}

// TableName defines the table name for the Variant model.
func (Variant) TableName() string {
	return "product_variants"
}
