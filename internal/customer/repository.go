package customer

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository provides access to customer and purchase storage.
type Repository interface {
	// UpsertCustomer finds the seller's customer by email or creates one.
	UpsertCustomer(ctx context.Context, customer *Customer) error

	// ByExternalID returns a customer by its external id.
	ByExternalID(ctx context.Context, externalID string) (*Customer, error)

	// RecordPurchase stores a purchase for a customer.
	RecordPurchase(ctx context.Context, purchase *Purchase) error

	// PurchasesByCustomer returns a customer's purchases, newest first.
	PurchasesByCustomer(ctx context.Context, customerID uint) ([]Purchase, error)

	// SummariesBySeller returns the seller's customers with purchase aggregates,
	// biggest spender first.
	SummariesBySeller(ctx context.Context, sellerID uint) ([]Summary, error)
}

// GormRepository implements Repository using GORM.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ Repository = (*GormRepository)(nil)

// NewRepository creates a new GORM-backed customer repository.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("database connection is required")
	}
	if logger == nil {
		return nil, eris.New("logger is required")
	}
	return &GormRepository{db: db, logger: logger}, nil
}

// UpsertCustomer finds an existing customer by seller and email, or creates one. The
// caller's struct is filled with the persisted row either way.
func (r *GormRepository) UpsertCustomer(ctx context.Context, customer *Customer) error {
	if customer == nil {
		return eris.New("customer is required")
	}

	var existing Customer
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND email = ?", customer.SellerID, customer.Email).
		First(&existing).Error
	if err == nil {
		if customer.Name != "" && customer.Name != existing.Name {
			existing.Name = customer.Name
			if saveErr := r.db.WithContext(ctx).Save(&existing).Error; saveErr != nil {
				wrapped := eris.Wrap(saveErr, "updating customer")
				r.logError(wrapped, "updating customer")
				return wrapped
			}
		}
		*customer = existing
		return nil
	}
	if !eris.Is(err, gorm.ErrRecordNotFound) {
		wrapped := eris.Wrap(err, "looking up customer")
		r.logError(wrapped, "looking up customer")
		return wrapped
	}

	if createErr := r.db.WithContext(ctx).Create(customer).Error; createErr != nil {
		wrapped := eris.Wrap(createErr, "creating customer")
		r.logError(wrapped, "creating customer")
		return wrapped
	}
	return nil
}

// ByExternalID returns a customer by its external id.
func (r *GormRepository) ByExternalID(ctx context.Context, externalID string) (*Customer, error) {
	var customer Customer
	err := r.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&customer).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		wrapped := eris.Wrap(err, "fetching customer")
		r.logError(wrapped, "fetching customer")
		return nil, wrapped
	}
	return &customer, nil
}

// RecordPurchase stores a purchase.
func (r *GormRepository) RecordPurchase(ctx context.Context, purchase *Purchase) error {
	if purchase == nil {
		return eris.New("purchase is required")
	}
	if purchase.PurchasedAt.IsZero() {
		purchase.PurchasedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		wrapped := eris.Wrap(err, "creating purchase")
		r.logError(wrapped, "creating purchase")
		return wrapped
	}
	return nil
}

// PurchasesByCustomer returns a customer's purchases, newest first.
func (r *GormRepository) PurchasesByCustomer(ctx context.Context, customerID uint) ([]Purchase, error) {
	var purchases []Purchase
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("purchased_at DESC, id DESC").
		Find(&purchases).Error
	if err != nil {
		wrapped := eris.Wrap(err, "listing purchases")
		r.logError(wrapped, "listing purchases")
		return nil, wrapped
	}
	return purchases, nil
}

// SummariesBySeller aggregates purchases per customer for the seller dashboard.
func (r *GormRepository) SummariesBySeller(ctx context.Context, sellerID uint) ([]Summary, error) {
	var customers []Customer
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("id ASC").
		Find(&customers).Error
	if err != nil {
		wrapped := eris.Wrap(err, "listing customers")
		r.logError(wrapped, "listing customers")
		return nil, wrapped
	}
	if len(customers) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(customers))
	for _, c := range customers {
		ids = append(ids, c.ID)
	}

	var purchases []Purchase
	err = r.db.WithContext(ctx).
		Where("customer_id IN ?", ids).
		Find(&purchases).Error
	if err != nil {
		wrapped := eris.Wrap(err, "aggregating purchases")
		r.logError(wrapped, "aggregating purchases")
		return nil, wrapped
	}

	byCustomer := make(map[uint]*Summary, len(customers))
	summaries := make([]Summary, 0, len(customers))
	for _, c := range customers {
		summaries = append(summaries, Summary{Customer: c})
		byCustomer[c.ID] = &summaries[len(summaries)-1]
	}

	for _, purchase := range purchases {
		summary, ok := byCustomer[purchase.CustomerID]
		if !ok {
			continue
		}
		summary.PurchaseCount++
		summary.TotalSpentCents += purchase.PriceCents
		if summary.LastPurchaseAt == nil || purchase.PurchasedAt.After(*summary.LastPurchaseAt) {
			at := purchase.PurchasedAt
			summary.LastPurchaseAt = &at
		}
	}

	// Biggest spenders first; seniority breaks ties so paging stays stable.
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalSpentCents != summaries[j].TotalSpentCents {
			return summaries[i].TotalSpentCents > summaries[j].TotalSpentCents
		}
		return summaries[i].Customer.ID < summaries[j].Customer.ID
	})
	return summaries, nil
}

func (r *GormRepository) logError(err error, message string) {
	if err == nil {
		return
	}
	r.logger.WithField("error", err.Error()).Error(message)
}
