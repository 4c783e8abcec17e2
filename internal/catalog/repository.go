package catalog

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository defines persistence operations for products and variants.
type Repository interface {
	Create(ctx context.Context, product *Product) error
	Update(ctx context.Context, product *Product) error
	ByExternalID(ctx context.Context, externalID string) (*Product, error)
	ByPermalink(ctx context.Context, permalink string) (*Product, error)
	ListBySeller(ctx context.Context, sellerID uint) ([]Product, error)
	ReplaceVariants(ctx context.Context, productID uint, variants []Variant) error
	PermalinkTaken(ctx context.Context, permalink string, excludeID uint) (bool, error)
}

// GormRepository persists products using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// Create inserts a new product with its variants.
func (r *GormRepository) Create(ctx context.Context, product *Product) error {
	if product == nil {
		return eris.New("product is nil")
	}

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		r.logError(logrus.Fields{"permalink": product.Permalink}, err, "creating product")
		return eris.Wrapf(err, "creating product: %s", product.Permalink)
	}

	return nil
}

// Update saves product fields in place.
func (r *GormRepository) Update(ctx context.Context, product *Product) error {
	if product == nil {
		return eris.New("product is nil")
	}

	if err := r.db.WithContext(ctx).Omit("Variants").Save(product).Error; err != nil {
		r.logError(logrus.Fields{"product_id": product.ExternalID}, err, "updating product")
		return eris.Wrapf(err, "updating product: %s", product.ExternalID)
	}

	return nil
}

// ByExternalID returns the alive product with its variants, or nil when not found.
func (r *GormRepository) ByExternalID(ctx context.Context, externalID string) (*Product, error) {
	trimmed := strings.TrimSpace(externalID)
	if trimmed == "" {
		return nil, eris.New("product id is required")
	}

	var product Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		First(&product, "external_id = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"product_id": trimmed}, err, "fetching product")
		return nil, eris.Wrapf(err, "fetching product: %s", trimmed)
	}

	return &product, nil
}

// ByPermalink returns the alive product for the permalink, or nil when not found.
func (r *GormRepository) ByPermalink(ctx context.Context, permalink string) (*Product, error) {
	trimmed := strings.TrimSpace(permalink)
	if trimmed == "" {
		return nil, eris.New("permalink is required")
	}

	var product Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		First(&product, "permalink = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"permalink": trimmed}, err, "fetching product by permalink")
		return nil, eris.Wrapf(err, "fetching product by permalink: %s", trimmed)
	}

	return &product, nil
}

// ListBySeller returns the seller's alive products, newest first.
func (r *GormRepository) ListBySeller(ctx context.Context, sellerID uint) ([]Product, error) {
	var products []Product
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("id DESC").
		Find(&products).Error
	if err != nil {
		r.logError(logrus.Fields{"seller_id": sellerID}, err, "listing products")
		return nil, eris.Wrap(err, "listing products")
	}

	return products, nil
}

// ReplaceVariants reconciles a product's variants against the submitted set: matching
// external ids update in place, unknown ones insert, absent ones soft-delete.
func (r *GormRepository) ReplaceVariants(ctx context.Context, productID uint, variants []Variant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []Variant
		if err := tx.Where("product_id = ?", productID).Find(&existing).Error; err != nil {
			return eris.Wrap(err, "listing variants")
		}

		byExternalID := make(map[string]*Variant, len(existing))
		for i := range existing {
			byExternalID[existing[i].ExternalID] = &existing[i]
		}

		seen := make(map[string]bool, len(variants))
		for position := range variants {
			submitted := variants[position]
			submitted.ProductID = productID
			submitted.Position = position

			if current, ok := byExternalID[submitted.ExternalID]; ok && submitted.ExternalID != "" {
				seen[submitted.ExternalID] = true
				err := tx.Model(current).Updates(map[string]any{
					"name":              submitted.Name,
					"price_delta_cents": submitted.PriceDeltaCents,
					"position":          submitted.Position,
				}).Error
				if err != nil {
					return eris.Wrapf(err, "updating variant: %s", submitted.ExternalID)
				}
				continue
			}

			if err := tx.Create(&submitted).Error; err != nil {
				return eris.Wrap(err, "creating variant")
			}
		}

		var removed []string
		for i := range existing {
			if !seen[existing[i].ExternalID] {
				removed = append(removed, existing[i].ExternalID)
			}
		}
		if len(removed) > 0 {
			err := tx.Where("product_id = ? AND external_id IN ?", productID, removed).
				Delete(&Variant{}).Error
			if err != nil {
				return eris.Wrap(err, "soft-deleting variants")
			}
		}

		return nil
	})
}

// PermalinkTaken reports whether another alive product already uses the permalink.
func (r *GormRepository) PermalinkTaken(ctx context.Context, permalink string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Product{}).
		Where("permalink = ? AND id <> ?", permalink, excludeID).
		Count(&count).Error
	if err != nil {
		r.logError(logrus.Fields{"permalink": permalink}, err, "checking permalink")
		return false, eris.Wrapf(err, "checking permalink: %s", permalink)
	}

	return count > 0, nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
