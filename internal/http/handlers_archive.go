package http

import (
	"context"
	"fmt"
	"io"
	stdhttp "net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"merchkit/app/internal/catalog"
	"merchkit/app/internal/content"
)

type archiveView struct {
	ID         string  `json:"id"`
	VariantID  *string `json:"variant_id,omitempty"`
	FolderID   *string `json:"folder_id,omitempty"`
	FolderName string  `json:"folder_name,omitempty"`
	Status     string  `json:"status"`
	Filename   string  `json:"filename"`
}

type archivesResponse struct {
	Body struct {
		Archives []archiveView `json:"archives"`
	}
}

func (s *Server) registerArchiveRoutes() {
	huma.Get(s.api, "/products/{productID}/archives", s.listArchivesHandler, func(op *huma.Operation) {
		op.Summary = "List product file archives"
	})

	// Download streams raw zip bytes, so it bypasses Huma's JSON body handling.
	s.mux.HandleFunc("GET /archives/{archiveID}/download", s.downloadArchiveHandler)
}

func (s *Server) listArchivesHandler(ctx context.Context, input *productIDInput) (*archivesResponse, error) {
	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, s.productError(ctx, err, "fetching product", logrus.Fields{"product_id": input.ProductID})
	}

	archives, err := s.content.ArchivesForOwner(ctx, content.Owner{ProductID: product.ID})
	if err != nil {
		s.recordError(ctx, err, "listing archives", logrus.Fields{"product_id": input.ProductID})
		return nil, huma.Error500InternalServerError("something went wrong")
	}

	for _, variant := range product.Variants {
		id := variant.ID
		variantArchives, err := s.content.ArchivesForOwner(ctx, content.Owner{ProductID: product.ID, VariantID: &id})
		if err != nil {
			s.recordError(ctx, err, "listing variant archives", logrus.Fields{"product_id": input.ProductID})
			return nil, huma.Error500InternalServerError("something went wrong")
		}
		archives = append(archives, variantArchives...)
	}

	externalByInternal := make(map[uint]string, len(product.Variants))
	for _, variant := range product.Variants {
		externalByInternal[variant.ID] = variant.ExternalID
	}

	resp := &archivesResponse{}
	resp.Body.Archives = make([]archiveView, 0, len(archives))
	for _, archive := range archives {
		view := archiveView{
			ID:         archive.ExternalID,
			FolderID:   archive.FolderID,
			FolderName: archive.FolderName,
			Status:     string(archive.Status),
			Filename:   archive.DownloadFilename(product.Name),
		}
		if archive.VariantID != nil {
			if external, ok := externalByInternal[*archive.VariantID]; ok {
				view.VariantID = &external
			}
		}
		resp.Body.Archives = append(resp.Body.Archives, view)
	}
	return resp, nil
}

// downloadArchiveHandler streams a ready archive's zip from the blob store.
func (s *Server) downloadArchiveHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()
	archiveID := r.PathValue("archiveID")

	archive, err := s.content.ArchiveByExternalID(ctx, archiveID)
	if err != nil {
		s.recordError(ctx, err, "fetching archive", logrus.Fields{"archive_id": archiveID})
		stdhttp.Error(w, "something went wrong", stdhttp.StatusInternalServerError)
		return
	}
	if archive == nil {
		stdhttp.Error(w, "archive not found", stdhttp.StatusNotFound)
		return
	}
	if archive.Status != content.ArchiveReady || archive.BlobKey == "" {
		// The worker hasn't produced the zip yet; the client should poll.
		w.Header().Set("Retry-After", "5")
		stdhttp.Error(w, "archive is still being generated", stdhttp.StatusConflict)
		return
	}

	fallback := "files"
	if product, err := s.productByInternalID(ctx, archive.ProductID); err == nil && product != nil {
		fallback = product.Name
	}

	blob, err := s.blobs.Get(ctx, archive.BlobKey)
	if err != nil {
		s.recordError(ctx, err, "opening archive blob", logrus.Fields{"archive_id": archiveID})
		stdhttp.Error(w, "something went wrong", stdhttp.StatusInternalServerError)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", archive.DownloadFilename(fallback)))

	if _, err := io.Copy(w, blob); err != nil {
		s.recordError(ctx, err, "streaming archive blob", logrus.Fields{"archive_id": archiveID})
	}
}

func (s *Server) productByInternalID(ctx context.Context, productID uint) (*catalog.Product, error) {
	var product catalog.Product
	err := s.db.WithContext(ctx).First(&product, productID).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}
