package payout

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository provides access to payout method storage.
type Repository interface {
	// Replace deactivates the seller's current methods and stores the new one as
	// active, atomically.
	Replace(ctx context.Context, method *Method) error

	// ActiveBySeller returns the seller's active method, or nil when none is set.
	ActiveBySeller(ctx context.Context, sellerID uint) (*Method, error)

	// HistoryBySeller returns all of the seller's methods, newest first.
	HistoryBySeller(ctx context.Context, sellerID uint) ([]Method, error)
}

// GormRepository implements Repository using GORM.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ Repository = (*GormRepository)(nil)

// NewRepository creates a new GORM-backed payout repository.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("database connection is required")
	}
	if logger == nil {
		return nil, eris.New("logger is required")
	}
	return &GormRepository{db: db, logger: logger}, nil
}

// Replace deactivates existing methods and creates the new active one in a transaction.
func (r *GormRepository) Replace(ctx context.Context, method *Method) error {
	if method == nil {
		return eris.New("method is required")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deactivate := tx.Model(&Method{}).
			Where("seller_id = ? AND active = ?", method.SellerID, true).
			Update("active", false)
		if deactivate.Error != nil {
			return eris.Wrap(deactivate.Error, "deactivating payout methods")
		}

		method.Active = true
		if err := tx.Create(method).Error; err != nil {
			return eris.Wrap(err, "creating payout method")
		}
		return nil
	})
	if err != nil {
		r.logError(err, "replacing payout method")
		return err
	}
	return nil
}

// ActiveBySeller returns the seller's active payout method.
func (r *GormRepository) ActiveBySeller(ctx context.Context, sellerID uint) (*Method, error) {
	var method Method
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND active = ?", sellerID, true).
		First(&method).Error
	if eris.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		wrapped := eris.Wrap(err, "fetching active payout method")
		r.logError(wrapped, "fetching active payout method")
		return nil, wrapped
	}
	return &method, nil
}

// HistoryBySeller returns every payout method the seller has saved, newest first.
func (r *GormRepository) HistoryBySeller(ctx context.Context, sellerID uint) ([]Method, error) {
	var methods []Method
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("id DESC").
		Find(&methods).Error
	if err != nil {
		wrapped := eris.Wrap(err, "listing payout methods")
		r.logError(wrapped, "listing payout methods")
		return nil, wrapped
	}
	return methods, nil
}

func (r *GormRepository) logError(err error, message string) {
	if err == nil {
		return
	}
	r.logger.WithField("error", err.Error()).Error(message)
}
