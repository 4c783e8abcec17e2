package http

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/catalog"
)

type variantView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceDeltaCents int64  `json:"price_delta_cents"`
	Position        int    `json:"position"`
}

type productView struct {
	ID                string        `json:"id"`
	SellerID          uint          `json:"seller_id"`
	Name              string        `json:"name"`
	Permalink         string        `json:"permalink"`
	Description       string        `json:"description,omitempty"`
	PriceCents        int64         `json:"price_cents"`
	Currency          string        `json:"currency"`
	Published         bool          `json:"published"`
	ReceiptNote       string        `json:"receipt_note,omitempty"`
	SharedRichContent bool          `json:"shared_rich_content"`
	Variants          []variantView `json:"variants"`
}

type variantPayload struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	PriceDeltaCents int64  `json:"price_delta_cents,omitempty"`
}

type productPayload struct {
	SellerID    uint             `json:"seller_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	PriceCents  int64            `json:"price_cents"`
	Currency    string           `json:"currency"`
	ReceiptNote string           `json:"receipt_note,omitempty"`
	Permalink   string           `json:"permalink,omitempty"`
	Variants    []variantPayload `json:"variants,omitempty"`
}

type createProductInput struct {
	Body productPayload
}

type updateProductInput struct {
	ProductID string `path:"productID"`
	Body      productPayload
}

type productIDInput struct {
	ProductID string `path:"productID"`
}

type sellerIDInput struct {
	SellerID uint `path:"sellerID"`
}

type publishInput struct {
	ProductID string `path:"productID"`
	Body      struct {
		Published bool `json:"published"`
	}
}

type contentModeInput struct {
	ProductID string `path:"productID"`
	Body      struct {
		Shared bool `json:"shared"`
	}
}

type productResponse struct {
	Body productView
}

type productListResponse struct {
	Body struct {
		Products []productView `json:"products"`
	}
}

func (s *Server) registerProductRoutes() {
	huma.Post(s.api, "/products", s.createProductHandler, func(op *huma.Operation) {
		op.Summary = "Create product"
		op.DefaultStatus = 201
	})
	huma.Get(s.api, "/products/{productID}", s.getProductHandler, func(op *huma.Operation) {
		op.Summary = "Fetch product"
	})
	huma.Put(s.api, "/products/{productID}", s.updateProductHandler, func(op *huma.Operation) {
		op.Summary = "Update product"
	})
	huma.Patch(s.api, "/products/{productID}/published", s.publishHandler, func(op *huma.Operation) {
		op.Summary = "Toggle product visibility"
	})
	huma.Patch(s.api, "/products/{productID}/rich-content-mode", s.contentModeHandler, func(op *huma.Operation) {
		op.Summary = "Switch between shared and per-variant rich content"
	})
	huma.Get(s.api, "/sellers/{sellerID}/products", s.listProductsHandler, func(op *huma.Operation) {
		op.Summary = "List seller products"
	})
}

func (s *Server) createProductHandler(ctx context.Context, input *createProductInput) (*productResponse, error) {
	product, err := s.products.CreateProduct(ctx, productInputFromPayload(input.Body))
	if err != nil {
		return nil, s.productError(ctx, err, "creating product", logrus.Fields{"seller_id": input.Body.SellerID})
	}
	return &productResponse{Body: viewProduct(product)}, nil
}

func (s *Server) getProductHandler(ctx context.Context, input *productIDInput) (*productResponse, error) {
	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, s.productError(ctx, err, "fetching product", logrus.Fields{"product_id": input.ProductID})
	}
	return &productResponse{Body: viewProduct(product)}, nil
}

func (s *Server) updateProductHandler(ctx context.Context, input *updateProductInput) (*productResponse, error) {
	product, err := s.products.UpdateProduct(ctx, input.ProductID, productInputFromPayload(input.Body))
	if err != nil {
		return nil, s.productError(ctx, err, "updating product", logrus.Fields{"product_id": input.ProductID})
	}
	return &productResponse{Body: viewProduct(product)}, nil
}

func (s *Server) publishHandler(ctx context.Context, input *publishInput) (*productResponse, error) {
	product, err := s.products.SetPublished(ctx, input.ProductID, input.Body.Published)
	if err != nil {
		return nil, s.productError(ctx, err, "toggling publish state", logrus.Fields{"product_id": input.ProductID})
	}
	return &productResponse{Body: viewProduct(product)}, nil
}

func (s *Server) contentModeHandler(ctx context.Context, input *contentModeInput) (*productResponse, error) {
	product, err := s.products.SetSharedRichContent(ctx, input.ProductID, input.Body.Shared)
	if err != nil {
		return nil, s.productError(ctx, err, "switching content mode", logrus.Fields{"product_id": input.ProductID})
	}
	return &productResponse{Body: viewProduct(product)}, nil
}

func (s *Server) listProductsHandler(ctx context.Context, input *sellerIDInput) (*productListResponse, error) {
	products, err := s.products.ListProducts(ctx, input.SellerID)
	if err != nil {
		return nil, s.productError(ctx, err, "listing products", logrus.Fields{"seller_id": input.SellerID})
	}

	resp := &productListResponse{}
	resp.Body.Products = make([]productView, 0, len(products))
	for i := range products {
		resp.Body.Products = append(resp.Body.Products, viewProduct(&products[i]))
	}
	return resp, nil
}

// productError translates service failures into API errors and records the rest.
func (s *Server) productError(ctx context.Context, err error, message string, fields logrus.Fields) error {
	switch {
	case eris.Is(err, catalog.ErrProductNotFound):
		return huma.Error404NotFound("product not found")
	case strings.Contains(err.Error(), "validating"):
		return huma.Error422UnprocessableEntity(eris.Cause(err).Error())
	case strings.Contains(err.Error(), "permalink already in use"):
		return huma.Error409Conflict(eris.Cause(err).Error())
	default:
		s.recordError(ctx, err, message, fields)
		return huma.Error500InternalServerError("something went wrong")
	}
}

func productInputFromPayload(payload productPayload) catalog.ProductInput {
	variants := make([]catalog.VariantInput, 0, len(payload.Variants))
	for _, variant := range payload.Variants {
		variants = append(variants, catalog.VariantInput{
			ID:              variant.ID,
			Name:            variant.Name,
			PriceDeltaCents: variant.PriceDeltaCents,
		})
	}

	return catalog.ProductInput{
		SellerID:    payload.SellerID,
		Name:        payload.Name,
		Description: payload.Description,
		PriceCents:  payload.PriceCents,
		Currency:    payload.Currency,
		ReceiptNote: payload.ReceiptNote,
		Permalink:   payload.Permalink,
		Variants:    variants,
	}
}

func viewProduct(product *catalog.Product) productView {
	variants := make([]variantView, 0, len(product.Variants))
	for _, variant := range product.Variants {
		variants = append(variants, variantView{
			ID:              variant.ExternalID,
			Name:            variant.Name,
			PriceDeltaCents: variant.PriceDeltaCents,
			Position:        variant.Position,
		})
	}

	return productView{
		ID:                product.ExternalID,
		SellerID:          product.SellerID,
		Name:              product.Name,
		Permalink:         product.Permalink,
		Description:       product.Description,
		PriceCents:        product.PriceCents,
		Currency:          product.Currency,
		Published:         product.Published,
		ReceiptNote:       product.ReceiptNote,
		SharedRichContent: product.HasSameRichContentForAllVariants,
		Variants:          variants,
	}
}
