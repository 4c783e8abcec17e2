package search

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"merchkit/app/internal/catalog"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Query describes a product discovery request. The term matches name and description
// case-insensitively; price bounds are inclusive and in cents.
type Query struct {
	Term          string
	SellerID      uint
	MinPriceCents *int64
	MaxPriceCents *int64
	PublishedOnly bool
	Limit         int
	Offset        int
}

// Validate checks the query bounds.
func (q Query) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Term, validation.Length(0, 255)),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(maxLimit)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}

// Result is one page of matching products plus the total match count for pagination.
type Result struct {
	Products []catalog.Product
	Total    int64
}

// Service runs product discovery queries.
type Service interface {
	Search(ctx context.Context, query Query) (*Result, error)
}

type service struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ Service = (*service)(nil)

// NewService creates a search service over the product catalog.
func NewService(db *gorm.DB, logger *logrus.Logger) (Service, error) {
	if db == nil {
		return nil, eris.New("database connection is required")
	}
	if logger == nil {
		return nil, eris.New("logger is required")
	}
	return &service{db: db, logger: logger}, nil
}

// Search applies the query's filters and returns a deterministic page of results:
// name match ordering is by newest product first so repeated queries page stably.
func (s *service) Search(ctx context.Context, query Query) (*Result, error) {
	if err := query.Validate(); err != nil {
		return nil, eris.Wrap(err, "validating search query")
	}
	if query.Limit <= 0 {
		query.Limit = defaultLimit
	}

	scope := s.db.WithContext(ctx).Model(&catalog.Product{})

	if term := strings.TrimSpace(query.Term); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		scope = scope.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if query.SellerID != 0 {
		scope = scope.Where("seller_id = ?", query.SellerID)
	}
	if query.MinPriceCents != nil {
		scope = scope.Where("price_cents >= ?", *query.MinPriceCents)
	}
	if query.MaxPriceCents != nil {
		scope = scope.Where("price_cents <= ?", *query.MaxPriceCents)
	}
	if query.PublishedOnly {
		scope = scope.Where("published = ?", true)
	}

	var total int64
	if err := scope.Count(&total).Error; err != nil {
		wrapped := eris.Wrap(err, "counting search matches")
		s.logger.WithField("error", wrapped.Error()).Error("search count failed")
		return nil, wrapped
	}

	var products []catalog.Product
	err := scope.
		Order("id DESC").
		Limit(query.Limit).
		Offset(query.Offset).
		Find(&products).Error
	if err != nil {
		wrapped := eris.Wrap(err, "running search query")
		s.logger.WithField("error", wrapped.Error()).Error("search query failed")
		return nil, wrapped
	}

	return &Result{Products: products, Total: total}, nil
}
