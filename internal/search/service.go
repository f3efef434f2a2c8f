// Package search runs text search across everything the viewer may read:
// their visible ruminations and the comments on them. The two sources are
// queried concurrently and share one visibility model with the feeds.
package search

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	commodels "ruminster/internal/comment/models"
	rummodels "ruminster/internal/rumination/models"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
	"ruminster/pkg/requestcontext"
)

// MinQueryLength is the shortest accepted search needle.
const MinQueryLength = 2

// RuminationSearcher is the slice of the rumination store the search needs.
type RuminationSearcher interface {
	VisibleFeed(ctx context.Context, viewer id.UserID, q rummodels.FeedQuery) ([]*rummodels.Rumination, error)
}

// CommentSearcher is the slice of the comment store the search needs.
type CommentSearcher interface {
	SearchVisible(ctx context.Context, viewer id.UserID, needle string, page id.Page) ([]*commodels.Comment, error)
}

// Result bundles the per-source matches of one search.
type Result struct {
	Ruminations []*rummodels.Rumination `json:"ruminations"`
	Comments    []*commodels.Comment    `json:"comments"`
}

// Service fans a query out over both sources.
type Service struct {
	entries     RuminationSearcher
	comments    CommentSearcher
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	maxPageSize int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxPageSize sets the operator-configured cap on per-source page sizes.
func WithMaxPageSize(n int) Option {
	return func(s *Service) { s.maxPageSize = n }
}

// New constructs a Service.
func New(entries RuminationSearcher, comments CommentSearcher, opts ...Option) *Service {
	s := &Service{
		entries:     entries,
		comments:    comments,
		logger:      slog.Default(),
		tracer:      otel.Tracer("ruminster/search"),
		maxPageSize: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search matches the normalized query against visible ruminations and
// comments, each source paginated independently with the same page.
func (s *Service) Search(ctx context.Context, query string, page id.Page) (*Result, error) {
	viewer := requestcontext.UserID(ctx)
	if viewer.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	needle := strings.TrimSpace(query)
	if len(needle) < MinQueryLength {
		return nil, dErrors.New(dErrors.CodeValidation, "search query is too short")
	}
	page = id.NormalizePage(page.Offset, page.Limit, s.maxPageSize)

	ctx, span := s.tracer.Start(ctx, "search.Search",
		trace.WithAttributes(attribute.Int("search.query_length", len(needle))))
	defer span.End()

	var result Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entries, err := s.entries.VisibleFeed(gctx, viewer, rummodels.FeedQuery{
			ContentContains: needle,
			Page:            page,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to search ruminations")
		}
		result.Ruminations = entries
		return nil
	})
	g.Go(func() error {
		comments, err := s.comments.SearchVisible(gctx, viewer, needle, page)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to search comments")
		}
		result.Comments = comments
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("search.ruminations", len(result.Ruminations)),
		attribute.Int("search.comments", len(result.Comments)),
	)
	s.metrics.observe(len(result.Ruminations) + len(result.Comments))
	s.logger.DebugContext(ctx, "search completed",
		"ruminations", len(result.Ruminations),
		"comments", len(result.Comments),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &result, nil
}
