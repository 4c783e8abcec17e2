package http

import (
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"merchkit/app/internal/catalog"
	"merchkit/app/internal/content"
	"merchkit/app/internal/customer"
	"merchkit/app/internal/payout"
	"merchkit/app/internal/search"
	"merchkit/app/internal/storage"
)

// Options configures the HTTP server wiring.
type Options struct {
	Products       catalog.Service
	Content        content.Service
	Payouts        payout.Service
	Discovery      search.Service
	Customers      customer.Service
	Blobs          storage.BlobStore
	Database       *gorm.DB
	Logger         *logrus.Logger
	SentryHub      *sentry.Hub
	AllowedOrigins []string
	RateLimiter    RateLimiterSettings
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the JSON API via Huma on a standard library mux.
type Server struct {
	api         huma.API
	mux         *stdhttp.ServeMux
	handler     stdhttp.Handler
	products    catalog.Service
	content     content.Service
	payouts     payout.Service
	discovery   search.Service
	customers   customer.Service
	blobs       storage.BlobStore
	db          *gorm.DB
	logger      *logrus.Logger
	sentry      *sentry.Hub
	rateLimiter *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Products == nil {
		return nil, eris.New("catalog service is required")
	}
	if opts.Content == nil {
		return nil, eris.New("content service is required")
	}
	if opts.Payouts == nil {
		return nil, eris.New("payout service is required")
	}
	if opts.Discovery == nil {
		return nil, eris.New("search service is required")
	}
	if opts.Customers == nil {
		return nil, eris.New("customer service is required")
	}
	if opts.Blobs == nil {
		return nil, eris.New("blob store is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Merchkit", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:       api,
		mux:       mux,
		products:  opts.Products,
		content:   opts.Content,
		payouts:   opts.Payouts,
		discovery: opts.Discovery,
		customers: opts.Customers,
		blobs:     opts.Blobs,
		db:        opts.Database,
		logger:    opts.Logger,
		sentry:    opts.SentryHub,
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	srv.rateLimiter = NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL)

	srv.registerMiddlewares()
	srv.registerRoutes()

	srv.handler = srv.mux
	if len(opts.AllowedOrigins) > 0 {
		srv.handler = cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(srv.mux)
	}

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.handler
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerProductRoutes()
	s.registerContentRoutes()
	s.registerArchiveRoutes()
	s.registerPayoutRoutes()
	s.registerCustomerRoutes()
	s.registerSearchRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.handler.ServeHTTP(w, r)
}
