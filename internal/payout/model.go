package payout

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MethodKind distinguishes how a seller gets paid.
type MethodKind string

const (
	KindBank   MethodKind = "bank"
	KindPaypal MethodKind = "paypal"
)

// Method is a seller's payout destination. At most one method per seller is active;
// saving a new one deactivates the previous. Rows are soft-deleted, never removed.
type Method struct {
	gorm.Model
	ExternalID    string         `gorm:"size:36;uniqueIndex:idx_payout_methods_external_id;not null"`
	SellerID      uint           `gorm:"index:idx_payout_methods_seller;not null"`
	Kind          MethodKind     `gorm:"size:16;not null"`
	CountryCode   string         `gorm:"size:2"`
	Currency      string         `gorm:"size:3"`
	AccountHolder string         `gorm:"size:255"`
	PaypalEmail   string         `gorm:"size:255"`
	BankFields    datatypes.JSON `gorm:"type:text"`
	Active        bool           `gorm:"index:idx_payout_methods_seller;not null;default:false"`
}

// TableName defines the table name for the Method model.
func (Method) TableName() string {
	return "payout_methods"
}
