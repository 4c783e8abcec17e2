package content

import (
	"context"
	"encoding/json"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// VariantContent carries the submitted rich content of one variant when per-variant
// content is enabled.
type VariantContent struct {
	VariantID uint
	Pages     []PageSpec
	Files     []FileSpec
}

// SaveInput is everything one content-tab save submits. Pages and Files apply to the
// product itself; Variants apply per variant. SharedAcrossVariants is the mode switch:
// when true the product owns all content (and whole archives), when false each variant
// owns its own.
type SaveInput struct {
	ProductID            uint
	Pages                []PageSpec
	Files                []FileSpec
	Variants             []VariantContent
	VariantIDs           []uint
	SharedAcrossVariants bool
}

// PageSummary is the normalized page row handed back to the presentation layer.
type PageSummary struct {
	ID          uint            `json:"id"`
	PageID      string          `json:"page_id"`
	VariantID   *uint           `json:"variant_id"`
	Title       string          `json:"title"`
	Description json.RawMessage `json:"description"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Service defines the rich content save pipeline and its read side.
type Service interface {
	SaveRichContent(ctx context.Context, input SaveInput) ([]PageSummary, error)
	PagesForOwner(ctx context.Context, owner Owner) ([]PageSummary, error)
	ArchivesForOwner(ctx context.Context, owner Owner) ([]Archive, error)
	ArchiveByExternalID(ctx context.Context, externalID string) (*Archive, error)
}

type service struct {
	repo      Repository
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	newID     func() string
}

var _ Service = (*service)(nil)

// NewService wires the content service with its dependencies.
func NewService(repo Repository, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("content repository is required")
	}

	return &service{
		repo:      repo,
		logger:    logger,
		sentryHub: hub,
		newID:     uuid.NewString,
	}, nil
}

// SaveRichContent runs the full reconciliation in one transaction: validate and diff
// files, rewrite temporary file ids inside the submitted documents, diff pages, then
// recompute which archives should exist for every affected owner. All-or-nothing.
func (s *service) SaveRichContent(ctx context.Context, input SaveInput) ([]PageSummary, error) {
	if input.ProductID == 0 {
		return nil, eris.New("product id is required")
	}

	var summaries []PageSummary

	err := s.repo.Transaction(ctx, func(tx Repository) error {
		productOwner := Owner{ProductID: input.ProductID}

		perVariant := !input.SharedAcrossVariants && len(input.VariantIDs) > 0

		productPages := input.Pages
		if perVariant {
			// Content moved to variant level: the product's own pages go away.
			productPages = nil
		}

		pages, err := s.reconcileOwner(ctx, tx, productOwner, productPages, input.Files, !perVariant)
		if err != nil {
			return err
		}
		summaries = append(summaries, pages...)

		submittedByVariant := make(map[uint]VariantContent, len(input.Variants))
		for _, variant := range input.Variants {
			submittedByVariant[variant.VariantID] = variant
		}

		for _, variantID := range input.VariantIDs {
			id := variantID
			owner := Owner{ProductID: input.ProductID, VariantID: &id}

			var variantPages []PageSpec
			var variantFiles []FileSpec
			if perVariant {
				if submitted, ok := submittedByVariant[variantID]; ok {
					variantPages = submitted.Pages
					variantFiles = submitted.Files
				}
			}

			pages, err := s.reconcileOwner(ctx, tx, owner, variantPages, variantFiles, perVariant)
			if err != nil {
				return err
			}
			summaries = append(summaries, pages...)
		}

		return nil
	})
	if err != nil {
		s.recordError(logrus.Fields{"product_id": input.ProductID}, err, "saving rich content")
		return nil, eris.Wrap(err, "saving rich content")
	}

	return summaries, nil
}

// reconcileOwner runs the file → page → archive pipeline for one owner and returns the
// owner's alive pages afterwards.
func (s *service) reconcileOwner(ctx context.Context, tx Repository, owner Owner, pages []PageSpec, files []FileSpec, ownsWhole bool) ([]PageSummary, error) {
	existingFiles, err := tx.FilesForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	filePlan, err := ReconcileFiles(existingFiles, files, s.newID)
	if err != nil {
		return nil, eris.Wrap(err, "validating submitted files")
	}
	if err := tx.ApplyFilePlan(ctx, owner, filePlan); err != nil {
		return nil, err
	}

	knownIDs := make(map[string]bool, len(existingFiles)+len(filePlan.Creates))
	deleted := make(map[string]bool, len(filePlan.Deletes))
	for _, externalID := range filePlan.Deletes {
		deleted[externalID] = true
	}
	for _, file := range existingFiles {
		if !deleted[file.ExternalID] {
			knownIDs[file.ExternalID] = true
		}
	}
	for _, create := range filePlan.Creates {
		knownIDs[create.ExternalID] = true
	}

	rewritten := make([]PageSpec, len(pages))
	for i, spec := range pages {
		spec.Description = RewriteFileEmbeds(spec.Description, filePlan.IDMapping, knownIDs)
		rewritten[i] = spec
	}

	existingPages, err := tx.PagesForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	pagePlan := ReconcilePages(existingPages, rewritten)
	if err := tx.ApplyPagePlan(ctx, owner, pagePlan); err != nil {
		return nil, err
	}

	alivePages, err := tx.PagesForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	aliveFiles, err := tx.FilesForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	aliveArchives, err := tx.ArchivesForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	archivePlan, err := ReconcileArchives(alivePages, aliveFiles, aliveArchives, ownsWhole)
	if err != nil {
		return nil, eris.Wrap(err, "reconciling archives")
	}
	if err := tx.ApplyArchivePlan(ctx, owner, archivePlan); err != nil {
		return nil, err
	}

	return summarize(alivePages), nil
}

// PagesForOwner returns the normalized alive pages of one owner.
func (s *service) PagesForOwner(ctx context.Context, owner Owner) ([]PageSummary, error) {
	pages, err := s.repo.PagesForOwner(ctx, owner)
	if err != nil {
		s.recordError(logrus.Fields{"product_id": owner.ProductID}, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}
	return summarize(pages), nil
}

// ArchivesForOwner returns the owner's alive archives.
func (s *service) ArchivesForOwner(ctx context.Context, owner Owner) ([]Archive, error) {
	archives, err := s.repo.ArchivesForOwner(ctx, owner)
	if err != nil {
		s.recordError(logrus.Fields{"product_id": owner.ProductID}, err, "listing archives")
		return nil, eris.Wrap(err, "listing archives")
	}
	return archives, nil
}

// ArchiveByExternalID returns one alive archive, or nil when unknown.
func (s *service) ArchiveByExternalID(ctx context.Context, externalID string) (*Archive, error) {
	archive, err := s.repo.ArchiveByExternalID(ctx, externalID)
	if err != nil {
		s.recordError(logrus.Fields{"archive_id": externalID}, err, "fetching archive")
		return nil, eris.Wrapf(err, "fetching archive: %s", externalID)
	}
	return archive, nil
}

func summarize(pages []Page) []PageSummary {
	summaries := make([]PageSummary, 0, len(pages))
	for _, page := range pages {
		summaries = append(summaries, PageSummary{
			ID:          page.ID,
			PageID:      page.ExternalID,
			VariantID:   page.VariantID,
			Title:       page.Title,
			Description: json.RawMessage(page.Description),
			UpdatedAt:   page.UpdatedAt,
		})
	}
	return summaries
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
