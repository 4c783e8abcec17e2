package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/getsentry/sentry-go"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// ErrProductNotFound indicates the requested product does not exist or is deleted.
var ErrProductNotFound = eris.New("product not found")

// ProductInput carries the editable fields of a product.
type ProductInput struct {
	SellerID    uint
	Name        string
	Description string
	PriceCents  int64
	Currency    string
	ReceiptNote string
	Permalink   string
	Variants    []VariantInput
}

// VariantInput carries one submitted variant. ID is empty for new variants.
type VariantInput struct {
	ID              string
	Name            string
	PriceDeltaCents int64
}

// Validate rejects malformed product input.
func (in ProductInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SellerID, validation.Required),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.PriceCents, validation.Min(0)),
		validation.Field(&in.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&in.Variants, validation.Each(validation.By(validateVariant))),
	)
}

func validateVariant(value any) error {
	variant, ok := value.(VariantInput)
	if !ok {
		return eris.New("invalid variant payload")
	}
	return validation.ValidateStruct(&variant,
		validation.Field(&variant.Name, validation.Required, validation.Length(1, 255)),
	)
}

// Service defines higher-level catalog operations.
type Service interface {
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, externalID string, input ProductInput) (*Product, error)
	SetPublished(ctx context.Context, externalID string, published bool) (*Product, error)
	SetSharedRichContent(ctx context.Context, externalID string, shared bool) (*Product, error)
	GetProduct(ctx context.Context, externalID string) (*Product, error)
	ListProducts(ctx context.Context, sellerID uint) ([]Product, error)
}

type service struct {
	repo      Repository
	logger    *logrus.Logger
	sentryHub *sentry.Hub
}

var _ Service = (*service)(nil)

// NewService wires the catalog service with its dependencies.
func NewService(repo Repository, logger *logrus.Logger, hub *sentry.Hub) (Service, error) {
	if repo == nil {
		return nil, eris.New("catalog repository is required")
	}

	return &service{repo: repo, logger: logger, sentryHub: hub}, nil
}

// CreateProduct validates the input, derives a unique permalink and inserts the product
// with its variants.
func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if err := input.Validate(); err != nil {
		return nil, eris.Wrap(err, "validating product")
	}

	permalink, err := s.uniquePermalink(ctx, permalinkSource(input), 0)
	if err != nil {
		s.recordError(logrus.Fields{"name": input.Name}, err, "deriving permalink")
		return nil, eris.Wrap(err, "deriving permalink")
	}

	product := &Product{
		ExternalID:                       uuid.NewString(),
		SellerID:                         input.SellerID,
		Name:                             strings.TrimSpace(input.Name),
		Permalink:                        permalink,
		Description:                      input.Description,
		PriceCents:                       input.PriceCents,
		Currency:                         strings.ToUpper(input.Currency),
		ReceiptNote:                      input.ReceiptNote,
		HasSameRichContentForAllVariants: true,
		Variants:                         buildVariants(input.Variants),
	}

	if err := s.repo.Create(ctx, product); err != nil {
		s.recordError(logrus.Fields{"permalink": permalink}, err, "creating product")
		return nil, eris.Wrap(err, "creating product")
	}

	return product, nil
}

// UpdateProduct applies the editable fields and reconciles the variant set.
func (s *service) UpdateProduct(ctx context.Context, externalID string, input ProductInput) (*Product, error) {
	if err := input.Validate(); err != nil {
		return nil, eris.Wrap(err, "validating product")
	}

	product, err := s.requireProduct(ctx, externalID)
	if err != nil {
		return nil, err
	}

	product.Name = strings.TrimSpace(input.Name)
	product.Description = input.Description
	product.PriceCents = input.PriceCents
	product.Currency = strings.ToUpper(input.Currency)
	product.ReceiptNote = input.ReceiptNote

	if requested := slugify(input.Permalink); requested != "" && requested != product.Permalink {
		taken, err := s.repo.PermalinkTaken(ctx, requested, product.ID)
		if err != nil {
			return nil, eris.Wrap(err, "checking permalink")
		}
		if taken {
			return nil, eris.Errorf("permalink already in use: %s", requested)
		}
		product.Permalink = requested
	}

	if err := s.repo.Update(ctx, product); err != nil {
		s.recordError(logrus.Fields{"product_id": externalID}, err, "updating product")
		return nil, eris.Wrap(err, "updating product")
	}

	if err := s.repo.ReplaceVariants(ctx, product.ID, buildVariants(input.Variants)); err != nil {
		s.recordError(logrus.Fields{"product_id": externalID}, err, "reconciling variants")
		return nil, eris.Wrap(err, "reconciling variants")
	}

	return s.requireProduct(ctx, externalID)
}

// SetPublished toggles public visibility.
func (s *service) SetPublished(ctx context.Context, externalID string, published bool) (*Product, error) {
	product, err := s.requireProduct(ctx, externalID)
	if err != nil {
		return nil, err
	}

	product.Published = published
	if err := s.repo.Update(ctx, product); err != nil {
		s.recordError(logrus.Fields{"product_id": externalID}, err, "toggling publish state")
		return nil, eris.Wrap(err, "toggling publish state")
	}

	return product, nil
}

// SetSharedRichContent flips the shared-vs-per-variant content mode flag. The content
// save pipeline reads this to decide which owners hold pages and whole archives.
func (s *service) SetSharedRichContent(ctx context.Context, externalID string, shared bool) (*Product, error) {
	product, err := s.requireProduct(ctx, externalID)
	if err != nil {
		return nil, err
	}

	product.HasSameRichContentForAllVariants = shared
	if err := s.repo.Update(ctx, product); err != nil {
		s.recordError(logrus.Fields{"product_id": externalID}, err, "updating content mode")
		return nil, eris.Wrap(err, "updating content mode")
	}

	return product, nil
}

// GetProduct returns one product with variants.
func (s *service) GetProduct(ctx context.Context, externalID string) (*Product, error) {
	return s.requireProduct(ctx, externalID)
}

// ListProducts returns the seller's products.
func (s *service) ListProducts(ctx context.Context, sellerID uint) ([]Product, error) {
	if sellerID == 0 {
		return nil, eris.New("seller id is required")
	}

	products, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		s.recordError(logrus.Fields{"seller_id": sellerID}, err, "listing products")
		return nil, eris.Wrap(err, "listing products")
	}

	return products, nil
}

func (s *service) requireProduct(ctx context.Context, externalID string) (*Product, error) {
	product, err := s.repo.ByExternalID(ctx, externalID)
	if err != nil {
		s.recordError(logrus.Fields{"product_id": externalID}, err, "fetching product")
		return nil, eris.Wrapf(err, "fetching product: %s", externalID)
	}
	if product == nil {
		return nil, eris.Wrapf(ErrProductNotFound, "fetching product: %s", externalID)
	}
	return product, nil
}

// uniquePermalink slugifies the source and appends a numeric suffix until free.
func (s *service) uniquePermalink(ctx context.Context, source string, excludeID uint) (string, error) {
	base := slugify(source)
	if base == "" {
		base = "product"
	}

	candidate := base
	for attempt := 2; ; attempt++ {
		taken, err := s.repo.PermalinkTaken(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
}

func permalinkSource(input ProductInput) string {
	if strings.TrimSpace(input.Permalink) != "" {
		return input.Permalink
	}
	return input.Name
}

func buildVariants(inputs []VariantInput) []Variant {
	variants := make([]Variant, 0, len(inputs))
	for position, input := range inputs {
		externalID := strings.TrimSpace(input.ID)
		if externalID == "" {
			externalID = uuid.NewString()
		}
		variants = append(variants, Variant{
			ExternalID:      externalID,
			Name:            strings.TrimSpace(input.Name),
			PriceDeltaCents: input.PriceDeltaCents,
			Position:        position,
		})
	}
	return variants
}

// slugify lowercases and reduces a name to hyphen-separated alphanumerics.
func slugify(value string) string {
	var builder strings.Builder
	lastHyphen := true

	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			builder.WriteRune('-')
			lastHyphen = true
		}
	}

	return strings.Trim(builder.String(), "-")
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
