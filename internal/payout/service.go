package payout

import (
	"context"
	"encoding/json"

	"github.com/getsentry/sentry-go"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// BankAccountInput is a seller's bank account submission. Fields carries the
// country-specific values keyed by field name, validated against the country layout.
type BankAccountInput struct {
	SellerID      uint
	CountryCode   string
	AccountHolder string
	Fields        map[string]string
}

// Validate checks the country-independent parts of the submission.
func (i BankAccountInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.SellerID, validation.Required),
		validation.Field(&i.CountryCode, validation.Required, validation.Length(2, 2), is.UpperCase),
		validation.Field(&i.AccountHolder, validation.Required, validation.Length(1, 255)),
	)
}

// PaypalInput is a seller's PayPal payout submission.
type PaypalInput struct {
	SellerID uint
	Email    string
}

// Validate checks the PayPal submission.
func (i PaypalInput) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.SellerID, validation.Required),
		validation.Field(&i.Email, validation.Required, is.EmailFormat),
	)
}

// Service manages seller payout methods.
type Service interface {
	// SaveBankAccount validates the submission against the country's field layout and
	// replaces the seller's active method with it.
	SaveBankAccount(ctx context.Context, input BankAccountInput) (*Method, error)

	// SavePaypal replaces the seller's active method with a PayPal destination.
	SavePaypal(ctx context.Context, input PaypalInput) (*Method, error)

	// ActiveMethod returns the seller's active method, or nil when none is set.
	ActiveMethod(ctx context.Context, sellerID uint) (*Method, error)

	// LayoutFor returns the bank account field layout for a country.
	LayoutFor(country string) Layout

	// SupportedCountries lists the country codes with dedicated layouts.
	SupportedCountries() []string
}

type service struct {
	repo      Repository
	layouts   *Layouts
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService creates a payout service backed by the given repository and country table.
func NewService(repo Repository, layouts *Layouts, logger *logrus.Logger, sentryHub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("repository is required")
	}
	if layouts == nil {
		return nil, eris.New("country layouts are required")
	}
	if logger == nil {
		return nil, eris.New("logger is required")
	}

	return &service{
		repo:      repo,
		layouts:   layouts,
		logger:    logger,
		sentryHub: sentryHub,
	}, nil
}

func (s *service) SaveBankAccount(ctx context.Context, input BankAccountInput) (*Method, error) {
	if err := input.Validate(); err != nil {
		return nil, eris.Wrap(err, "validating bank account")
	}

	layout, _ := s.layouts.For(input.CountryCode)
	if err := layout.Validate(input.Fields); err != nil {
		return nil, eris.Wrapf(err, "validating bank account fields for %s", input.CountryCode)
	}

	fields, err := json.Marshal(input.Fields)
	if err != nil {
		return nil, eris.Wrap(err, "encoding bank account fields")
	}

	method := &Method{
		ExternalID:    uuid.NewString(),
		SellerID:      input.SellerID,
		Kind:          KindBank,
		CountryCode:   input.CountryCode,
		Currency:      layout.Currency,
		AccountHolder: input.AccountHolder,
		BankFields:    fields,
	}

	if err := s.repo.Replace(ctx, method); err != nil {
		s.recordError(logrus.Fields{"seller_id": input.SellerID}, err, "saving bank account")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"seller_id": input.SellerID,
		"country":   input.CountryCode,
	}).Info("payout bank account saved")

	return method, nil
}

func (s *service) SavePaypal(ctx context.Context, input PaypalInput) (*Method, error) {
	if err := input.Validate(); err != nil {
		return nil, eris.Wrap(err, "validating paypal payout")
	}

	method := &Method{
		ExternalID:  uuid.NewString(),
		SellerID:    input.SellerID,
		Kind:        KindPaypal,
		PaypalEmail: input.Email,
	}

	if err := s.repo.Replace(ctx, method); err != nil {
		s.recordError(logrus.Fields{"seller_id": input.SellerID}, err, "saving paypal payout")
		return nil, err
	}

	s.logger.WithField("seller_id", input.SellerID).Info("payout paypal account saved")
	return method, nil
}

func (s *service) ActiveMethod(ctx context.Context, sellerID uint) (*Method, error) {
	return s.repo.ActiveBySeller(ctx, sellerID)
}

func (s *service) LayoutFor(country string) Layout {
	layout, _ := s.layouts.For(country)
	return layout
}

func (s *service) SupportedCountries() []string {
	return s.layouts.Countries()
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
