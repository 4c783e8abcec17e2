package customer

import (
	"time"

	"gorm.io/gorm"
)

// Customer is a buyer known to a seller, keyed by email within that seller.
type Customer struct {
	gorm.Model
	ExternalID string `gorm:"size:36;uniqueIndex:idx_customers_external_id;not null"`
	SellerID   uint   `gorm:"uniqueIndex:idx_customers_seller_email;not null"`
	Email      string `gorm:"size:255;uniqueIndex:idx_customers_seller_email;not null"`
	Name       string `gorm:"size:255"`
}

// TableName defines the table name for the Customer model.
func (Customer) TableName() string {
	return "customers"
}

// Purchase records one sale of a product to a customer.
type Purchase struct {
	gorm.Model
	ExternalID  string `gorm:"size:36;uniqueIndex:idx_purchases_external_id;not null"`
	CustomerID  uint   `gorm:"index:idx_purchases_customer;not null"`
	ProductID   uint   `gorm:"index:idx_purchases_product;not null"`
	VariantID   *uint
	PriceCents  int64  `gorm:"not null"`
	Currency    string `gorm:"size:3;not null"`
	PurchasedAt time.Time
}

// TableName defines the table name for the Purchase model.
func (Purchase) TableName() string {
	return "purchases"
}

// Summary is a customer plus purchase aggregates for the seller dashboard.
type Summary struct {
	Customer        Customer
	PurchaseCount   int64
	TotalSpentCents int64
	LastPurchaseAt  *time.Time
}
