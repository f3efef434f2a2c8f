// Package handler exposes search over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ruminster/internal/platform/metrics"
	"ruminster/internal/platform/middleware"
	"ruminster/internal/search"
	"ruminster/internal/transport/http/shared"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

// Service defines the search operation the handler needs.
type Service interface {
	Search(ctx context.Context, query string, page id.Page) (*search.Result, error)
}

// Handler handles the search endpoint.
type Handler struct {
	searcher          Service
	logger            *slog.Logger
	metrics           *metrics.Metrics
	jwtValidator      middleware.JWTValidator
	revocationChecker middleware.TokenRevocationChecker
	requestTimeout    time.Duration
}

// New creates a search Handler.
func New(
	searcher Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	revocationChecker middleware.TokenRevocationChecker,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		searcher:          searcher,
		logger:            logger,
		metrics:           metrics,
		jwtValidator:      jwtValidator,
		revocationChecker: revocationChecker,
		requestTimeout:    requestTimeout,
	}
}

// Register adds the search route to the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(rr chi.Router) {
		rr.Use(middleware.Recovery(h.logger))
		rr.Use(middleware.RequestID)
		rr.Use(middleware.RequestTime)
		rr.Use(middleware.ClientMetadata)
		rr.Use(middleware.Logger(h.logger))
		rr.Use(middleware.Timeout(h.requestTimeout))
		rr.Use(middleware.ContentTypeJSON)
		rr.Use(middleware.LatencyMiddleware(h.metrics))
		rr.Use(middleware.RequireAuth(h.jwtValidator, h.revocationChecker, h.logger))

		rr.Get("/search", h.handleSearch)
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	var page id.Page
	if v, err := strconv.Atoi(params.Get("offset")); err == nil {
		page.Offset = v
	}
	if v, err := strconv.Atoi(params.Get("limit")); err == nil {
		page.Limit = v
	}

	result, err := h.searcher.Search(ctx, params.Get("q"), page)
	if err != nil {
		h.logError(ctx, "search failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.Is(err, dErrors.CodeInternal) || dErrors.Is(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(ctx, msg,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
}
