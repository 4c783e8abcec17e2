package http

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/catalog"
	"merchkit/app/internal/content"
)

type pagePayload struct {
	ID          string          `json:"id,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description json.RawMessage `json:"description,omitempty"`
}

type filePayload struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	DisplayName  string `json:"display_name,omitempty"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

type variantContentPayload struct {
	ID    string        `json:"id"`
	Pages []pagePayload `json:"pages,omitempty"`
	Files []filePayload `json:"files,omitempty"`
}

type saveContentInput struct {
	ProductID string `path:"productID"`
	Body      struct {
		Pages    []pagePayload           `json:"pages,omitempty"`
		Files    []filePayload           `json:"files,omitempty"`
		Variants []variantContentPayload `json:"variants,omitempty"`
	}
}

type pageView struct {
	ID          string          `json:"id"`
	VariantID   *string         `json:"variant_id,omitempty"`
	Title       string          `json:"title"`
	Description json.RawMessage `json:"description"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type pagesResponse struct {
	Body struct {
		Pages []pageView `json:"pages"`
	}
}

func (s *Server) registerContentRoutes() {
	huma.Put(s.api, "/products/{productID}/rich-content", s.saveContentHandler, func(op *huma.Operation) {
		op.Summary = "Save product rich content"
	})
	huma.Get(s.api, "/products/{productID}/rich-content", s.getContentHandler, func(op *huma.Operation) {
		op.Summary = "Fetch product rich content"
	})
}

func (s *Server) saveContentHandler(ctx context.Context, input *saveContentInput) (*pagesResponse, error) {
	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, s.productError(ctx, err, "fetching product", logrus.Fields{"product_id": input.ProductID})
	}

	variantIDs := make([]uint, 0, len(product.Variants))
	internalByExternal := make(map[string]uint, len(product.Variants))
	for _, variant := range product.Variants {
		variantIDs = append(variantIDs, variant.ID)
		internalByExternal[variant.ExternalID] = variant.ID
	}

	pages, err := pageSpecsFromPayload(input.Body.Pages)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(eris.Cause(err).Error())
	}

	save := content.SaveInput{
		ProductID:            product.ID,
		Pages:                pages,
		Files:                fileSpecsFromPayload(input.Body.Files),
		VariantIDs:           variantIDs,
		SharedAcrossVariants: product.HasSameRichContentForAllVariants,
	}

	for _, variant := range input.Body.Variants {
		internalID, ok := internalByExternal[variant.ID]
		if !ok {
			return nil, huma.Error422UnprocessableEntity("unknown variant: " + variant.ID)
		}

		variantPages, err := pageSpecsFromPayload(variant.Pages)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(eris.Cause(err).Error())
		}

		save.Variants = append(save.Variants, content.VariantContent{
			VariantID: internalID,
			Pages:     variantPages,
			Files:     fileSpecsFromPayload(variant.Files),
		})
	}

	summaries, err := s.content.SaveRichContent(ctx, save)
	if err != nil {
		if strings.Contains(err.Error(), "validating") {
			return nil, huma.Error422UnprocessableEntity(eris.Cause(err).Error())
		}
		s.recordError(ctx, err, "saving rich content", logrus.Fields{"product_id": input.ProductID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}

	return s.pagesResponseFor(product, summaries), nil
}

func (s *Server) getContentHandler(ctx context.Context, input *productIDInput) (*pagesResponse, error) {
	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, s.productError(ctx, err, "fetching product", logrus.Fields{"product_id": input.ProductID})
	}

	summaries, err := s.content.PagesForOwner(ctx, content.Owner{ProductID: product.ID})
	if err != nil {
		s.recordError(ctx, err, "listing pages", logrus.Fields{"product_id": input.ProductID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}

	for _, variant := range product.Variants {
		id := variant.ID
		variantPages, err := s.content.PagesForOwner(ctx, content.Owner{ProductID: product.ID, VariantID: &id})
		if err != nil {
			s.recordError(ctx, err, "listing variant pages", logrus.Fields{"product_id": input.ProductID})
			return nil, huma.Error500InternalServerError("something went wrong")
		}
		summaries = append(summaries, variantPages...)
	}

	return s.pagesResponseFor(product, summaries), nil
}

func (s *Server) pagesResponseFor(product *catalog.Product, summaries []content.PageSummary) *pagesResponse {
	externalByInternal := make(map[uint]string, len(product.Variants))
	for _, variant := range product.Variants {
		externalByInternal[variant.ID] = variant.ExternalID
	}

	resp := &pagesResponse{}
	resp.Body.Pages = make([]pageView, 0, len(summaries))
	for _, summary := range summaries {
		view := pageView{
			ID:          summary.PageID,
			Title:       summary.Title,
			Description: summary.Description,
			UpdatedAt:   summary.UpdatedAt,
		}
		if summary.VariantID != nil {
			if external, ok := externalByInternal[*summary.VariantID]; ok {
				view.VariantID = &external
			}
		}
		resp.Body.Pages = append(resp.Body.Pages, view)
	}
	return resp
}

func pageSpecsFromPayload(payloads []pagePayload) ([]content.PageSpec, error) {
	specs := make([]content.PageSpec, 0, len(payloads))
	for _, payload := range payloads {
		doc, err := content.ParseDocument(payload.Description)
		if err != nil {
			return nil, eris.Wrap(err, "page description is not a valid document")
		}
		specs = append(specs, content.PageSpec{
			ID:          payload.ID,
			Title:       payload.Title,
			Description: doc,
		})
	}
	return specs, nil
}

func fileSpecsFromPayload(payloads []filePayload) []content.FileSpec {
	specs := make([]content.FileSpec, 0, len(payloads))
	for _, payload := range payloads {
		specs = append(specs, content.FileSpec{
			ID:           payload.ID,
			URL:          payload.URL,
			DisplayName:  payload.DisplayName,
			Description:  payload.Description,
			ThumbnailURL: payload.ThumbnailURL,
			FileSize:     payload.FileSize,
		})
	}
	return specs
}
