package customer

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// PurchaseInput records a sale: the buyer is upserted by email and a purchase row is
// attached to them.
type PurchaseInput struct {
	SellerID    uint
	Email       string
	Name        string
	ProductID   uint
	VariantID   *uint
	PriceCents  int64
	Currency    string
	PurchasedAt time.Time
}

// Validate checks the purchase submission.
func (i PurchaseInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.SellerID, validation.Required),
		validation.Field(&i.Email, validation.Required, is.EmailFormat),
		validation.Field(&i.Name, validation.Length(0, 255)),
		validation.Field(&i.ProductID, validation.Required),
		validation.Field(&i.PriceCents, validation.Min(0)),
		validation.Field(&i.Currency, validation.Required, validation.Length(3, 3)),
	)
}

// Service manages a seller's customers and their purchase history.
type Service interface {
	// RecordPurchase upserts the buyer and stores the purchase.
	RecordPurchase(ctx context.Context, input PurchaseInput) (*Purchase, error)

	// Customers returns the seller's customers with purchase aggregates.
	Customers(ctx context.Context, sellerID uint) ([]Summary, error)

	// PurchaseHistory returns a customer's purchases by external customer id.
	PurchaseHistory(ctx context.Context, customerExternalID string) ([]Purchase, error)
}

// ErrCustomerNotFound is returned when a customer external id resolves to nothing.
var ErrCustomerNotFound = eris.New("customer not found")

type service struct {
	repo      Repository
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService creates a customer service backed by the given repository.
func NewService(repo Repository, logger *logrus.Logger, sentryHub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("repository is required")
	}
	if logger == nil {
		return nil, eris.New("logger is required")
	}
	return &service{repo: repo, logger: logger, sentryHub: sentryHub}, nil
}

func (s *service) RecordPurchase(ctx context.Context, input PurchaseInput) (*Purchase, error) {
	if err := input.Validate(); err != nil {
		return nil, eris.Wrap(err, "validating purchase")
	}

	buyer := &Customer{
		ExternalID: uuid.NewString(),
		SellerID:   input.SellerID,
		Email:      input.Email,
		Name:       input.Name,
	}
	if err := s.repo.UpsertCustomer(ctx, buyer); err != nil {
		s.recordError(logrus.Fields{"seller_id": input.SellerID}, err, "upserting customer")
		return nil, err
	}

	purchase := &Purchase{
		ExternalID:  uuid.NewString(),
		CustomerID:  buyer.ID,
		ProductID:   input.ProductID,
		VariantID:   input.VariantID,
		PriceCents:  input.PriceCents,
		Currency:    input.Currency,
		PurchasedAt: input.PurchasedAt,
	}
	if err := s.repo.RecordPurchase(ctx, purchase); err != nil {
		s.recordError(logrus.Fields{"customer_id": buyer.ExternalID}, err, "recording purchase")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"seller_id":  input.SellerID,
		"product_id": input.ProductID,
	}).Info("purchase recorded")

	return purchase, nil
}

func (s *service) Customers(ctx context.Context, sellerID uint) ([]Summary, error) {
	return s.repo.SummariesBySeller(ctx, sellerID)
}

func (s *service) PurchaseHistory(ctx context.Context, customerExternalID string) ([]Purchase, error) {
	buyer, err := s.repo.ByExternalID(ctx, customerExternalID)
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, eris.Wrapf(ErrCustomerNotFound, "customer: %s", customerExternalID)
	}
	return s.repo.PurchasesByCustomer(ctx, buyer.ID)
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	entry := s.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
