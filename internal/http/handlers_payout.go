package http

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/payout"
)

type payoutMethodView struct {
	ID            string            `json:"id"`
	Kind          string            `json:"kind"`
	CountryCode   string            `json:"country_code,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	AccountHolder string            `json:"account_holder,omitempty"`
	PaypalEmail   string            `json:"paypal_email,omitempty"`
	BankFields    map[string]string `json:"bank_fields,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type payoutMethodResponse struct {
	Body payoutMethodView
}

type bankAccountInput struct {
	SellerID uint `path:"sellerID"`
	Body     struct {
		CountryCode   string            `json:"country_code"`
		AccountHolder string            `json:"account_holder"`
		Fields        map[string]string `json:"fields"`
	}
}

type paypalInput struct {
	SellerID uint `path:"sellerID"`
	Body     struct {
		Email string `json:"email"`
	}
}

type countryLayoutInput struct {
	Country string `path:"country"`
}

type countryLayoutResponse struct {
	Body payout.Layout
}

type countriesResponse struct {
	Body struct {
		Countries []string `json:"countries"`
	}
}

func (s *Server) registerPayoutRoutes() {
	huma.Get(s.api, "/payout/countries", s.payoutCountriesHandler, func(op *huma.Operation) {
		op.Summary = "List countries with dedicated bank layouts"
	})
	huma.Get(s.api, "/payout/countries/{country}", s.payoutLayoutHandler, func(op *huma.Operation) {
		op.Summary = "Fetch a country's bank account fields"
	})
	huma.Get(s.api, "/sellers/{sellerID}/payout-method", s.activePayoutHandler, func(op *huma.Operation) {
		op.Summary = "Fetch the seller's active payout method"
	})
	huma.Put(s.api, "/sellers/{sellerID}/payout-method/bank", s.saveBankAccountHandler, func(op *huma.Operation) {
		op.Summary = "Save a bank account payout method"
	})
	huma.Put(s.api, "/sellers/{sellerID}/payout-method/paypal", s.savePaypalHandler, func(op *huma.Operation) {
		op.Summary = "Save a PayPal payout method"
	})
}

func (s *Server) payoutCountriesHandler(_ context.Context, _ *struct{}) (*countriesResponse, error) {
	resp := &countriesResponse{}
	resp.Body.Countries = s.payouts.SupportedCountries()
	return resp, nil
}

func (s *Server) payoutLayoutHandler(_ context.Context, input *countryLayoutInput) (*countryLayoutResponse, error) {
	return &countryLayoutResponse{Body: s.payouts.LayoutFor(strings.ToUpper(input.Country))}, nil
}

func (s *Server) activePayoutHandler(ctx context.Context, input *sellerIDInput) (*payoutMethodResponse, error) {
	method, err := s.payouts.ActiveMethod(ctx, input.SellerID)
	if err != nil {
		s.recordError(ctx, err, "fetching payout method", logrus.Fields{"seller_id": input.SellerID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}
	if method == nil {
		return nil, huma.Error404NotFound("no payout method configured")
	}
	return &payoutMethodResponse{Body: viewPayoutMethod(method)}, nil
}

func (s *Server) saveBankAccountHandler(ctx context.Context, input *bankAccountInput) (*payoutMethodResponse, error) {
	method, err := s.payouts.SaveBankAccount(ctx, payout.BankAccountInput{
		SellerID:      input.SellerID,
		CountryCode:   strings.ToUpper(input.Body.CountryCode),
		AccountHolder: input.Body.AccountHolder,
		Fields:        input.Body.Fields,
	})
	if err != nil {
		if strings.Contains(err.Error(), "validating") {
			return nil, huma.Error422UnprocessableEntity(eris.Cause(err).Error())
		}
		s.recordError(ctx, err, "saving bank account", logrus.Fields{"seller_id": input.SellerID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}
	return &payoutMethodResponse{Body: viewPayoutMethod(method)}, nil
}

func (s *Server) savePaypalHandler(ctx context.Context, input *paypalInput) (*payoutMethodResponse, error) {
	method, err := s.payouts.SavePaypal(ctx, payout.PaypalInput{
		SellerID: input.SellerID,
		Email:    input.Body.Email,
	})
	if err != nil {
		if strings.Contains(err.Error(), "validating") {
			return nil, huma.Error422UnprocessableEntity(eris.Cause(err).Error())
		}
		s.recordError(ctx, err, "saving paypal payout", logrus.Fields{"seller_id": input.SellerID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}
	return &payoutMethodResponse{Body: viewPayoutMethod(method)}, nil
}

func viewPayoutMethod(method *payout.Method) payoutMethodView {
	view := payoutMethodView{
		ID:            method.ExternalID,
		Kind:          string(method.Kind),
		CountryCode:   method.CountryCode,
		Currency:      method.Currency,
		AccountHolder: method.AccountHolder,
		PaypalEmail:   method.PaypalEmail,
		CreatedAt:     method.CreatedAt,
	}
	if len(method.BankFields) > 0 {
		_ = json.Unmarshal(method.BankFields, &view.BankFields)
	}
	return view
}
