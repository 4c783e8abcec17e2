package http

import (
	"context"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/customer"
)

type customerSummaryView struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name,omitempty"`
	PurchaseCount   int64      `json:"purchase_count"`
	TotalSpentCents int64      `json:"total_spent_cents"`
	LastPurchaseAt  *time.Time `json:"last_purchase_at,omitempty"`
}

type purchaseView struct {
	ID          string    `json:"id"`
	ProductID   uint      `json:"product_id"`
	VariantID   *uint     `json:"variant_id,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	PurchasedAt time.Time `json:"purchased_at"`
}

type recordPurchaseInput struct {
	Body struct {
		SellerID   uint   `json:"seller_id"`
		Email      string `json:"email"`
		Name       string `json:"name,omitempty"`
		ProductID  uint   `json:"product_id"`
		VariantID  *uint  `json:"variant_id,omitempty"`
		PriceCents int64  `json:"price_cents"`
		Currency   string `json:"currency"`
	}
}

type purchaseResponse struct {
	Body purchaseView
}

type customersResponse struct {
	Body struct {
		Customers []customerSummaryView `json:"customers"`
	}
}

type customerIDInput struct {
	CustomerID string `path:"customerID"`
}

type purchasesResponse struct {
	Body struct {
		Purchases []purchaseView `json:"purchases"`
	}
}

func (s *Server) registerCustomerRoutes() {
	huma.Post(s.api, "/purchases", s.recordPurchaseHandler, func(op *huma.Operation) {
		op.Summary = "Record a purchase"
		op.DefaultStatus = 201
	})
	huma.Get(s.api, "/sellers/{sellerID}/customers", s.listCustomersHandler, func(op *huma.Operation) {
		op.Summary = "List seller customers with purchase aggregates"
	})
	huma.Get(s.api, "/customers/{customerID}/purchases", s.purchaseHistoryHandler, func(op *huma.Operation) {
		op.Summary = "Fetch a customer's purchase history"
	})
}

func (s *Server) recordPurchaseHandler(ctx context.Context, input *recordPurchaseInput) (*purchaseResponse, error) {
	purchase, err := s.customers.RecordPurchase(ctx, customer.PurchaseInput{
		SellerID:   input.Body.SellerID,
		Email:      input.Body.Email,
		Name:       input.Body.Name,
		ProductID:  input.Body.ProductID,
		VariantID:  input.Body.VariantID,
		PriceCents: input.Body.PriceCents,
		Currency:   strings.ToUpper(input.Body.Currency),
	})
	if err != nil {
		if strings.Contains(err.Error(), "validating") {
			return nil, huma.Error422UnprocessableEntity(eris.Cause(err).Error())
		}
		s.recordError(ctx, err, "recording purchase", logrus.Fields{"seller_id": input.Body.SellerID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}
	return &purchaseResponse{Body: viewPurchase(*purchase)}, nil
}

func (s *Server) listCustomersHandler(ctx context.Context, input *sellerIDInput) (*customersResponse, error) {
	summaries, err := s.customers.Customers(ctx, input.SellerID)
	if err != nil {
		s.recordError(ctx, err, "listing customers", logrus.Fields{"seller_id": input.SellerID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}

	resp := &customersResponse{}
	resp.Body.Customers = make([]customerSummaryView, 0, len(summaries))
	for _, summary := range summaries {
		resp.Body.Customers = append(resp.Body.Customers, customerSummaryView{
			ID:              summary.Customer.ExternalID,
			Email:           summary.Customer.Email,
			Name:            summary.Customer.Name,
			PurchaseCount:   summary.PurchaseCount,
			TotalSpentCents: summary.TotalSpentCents,
			LastPurchaseAt:  summary.LastPurchaseAt,
		})
	}
	return resp, nil
}

func (s *Server) purchaseHistoryHandler(ctx context.Context, input *customerIDInput) (*purchasesResponse, error) {
	purchases, err := s.customers.PurchaseHistory(ctx, input.CustomerID)
	if err != nil {
		if eris.Is(err, customer.ErrCustomerNotFound) {
			return nil, huma.Error404NotFound("customer not found")
		}
		s.recordError(ctx, err, "fetching purchase history", logrus.Fields{"customer_id": input.CustomerID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}

	resp := &purchasesResponse{}
	resp.Body.Purchases = make([]purchaseView, 0, len(purchases))
	for _, purchase := range purchases {
		resp.Body.Purchases = append(resp.Body.Purchases, viewPurchase(purchase))
	}
	return resp, nil
}

func viewPurchase(purchase customer.Purchase) purchaseView {
	return purchaseView{
		ID:          purchase.ExternalID,
		ProductID:   purchase.ProductID,
		VariantID:   purchase.VariantID,
		PriceCents:  purchase.PriceCents,
		Currency:    purchase.Currency,
		PurchasedAt: purchase.PurchasedAt,
	}
}
