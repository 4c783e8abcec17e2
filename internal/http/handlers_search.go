package http

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/search"
)

type searchInput struct {
	Query         string `query:"q"`
	SellerID      uint   `query:"seller_id"`
	MinPriceCents *int64 `query:"min_price_cents"`
	MaxPriceCents *int64 `query:"max_price_cents"`
	PublishedOnly bool   `query:"published_only"`
	Limit         int    `query:"limit"`
	Offset        int    `query:"offset"`
}

type searchResponse struct {
	Body struct {
		Products []productView `json:"products"`
		Total    int64         `json:"total"`
	}
}

func (s *Server) registerSearchRoute() {
	huma.Get(s.api, "/products", s.searchHandler, func(op *huma.Operation) {
		op.Summary = "Search products"
	})
}

func (s *Server) searchHandler(ctx context.Context, input *searchInput) (*searchResponse, error) {
	result, err := s.discovery.Search(ctx, search.Query{
		Term:          input.Query,
		SellerID:      input.SellerID,
		MinPriceCents: input.MinPriceCents,
		MaxPriceCents: input.MaxPriceCents,
		PublishedOnly: input.PublishedOnly,
		Limit:         input.Limit,
		Offset:        input.Offset,
	})
	if err != nil {
		if strings.Contains(err.Error(), "validating") {
			return nil, huma.Error422UnprocessableEntity(eris.Cause(err).Error())
		}
		s.recordError(ctx, err, "searching products", logrus.Fields{"query": input.Query})
		return nil, huma.Error500InternalServerError("something went wrong")
	}

	resp := &searchResponse{}
	resp.Body.Total = result.Total
	resp.Body.Products = make([]productView, 0, len(result.Products))
	for i := range result.Products {
		resp.Body.Products = append(resp.Body.Products, viewProduct(&result.Products[i]))
	}
	return resp, nil
}
