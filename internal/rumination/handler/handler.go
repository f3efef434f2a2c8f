// Package handler exposes ruminations over HTTP. Everything but the public
// feed requires a bearer token.
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
	"ruminster/internal/rumination/models"
	"ruminster/internal/transport/http/shared"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

// Service defines the rumination operations the handler needs.
type Service interface {
	Create(ctx context.Context, content string, published bool, audienceTypes []string) (*models.Rumination, error)
	UpdateContent(ctx context.Context, ruminationID id.RuminationID, content string) (*models.Rumination, error)
	SetPublished(ctx context.Context, ruminationID id.RuminationID, published bool) (*models.Rumination, error)
	ReplaceAudiences(ctx context.Context, ruminationID id.RuminationID, audienceTypes []string) (*models.Rumination, error)
	Delete(ctx context.Context, ruminationID id.RuminationID) error
	Get(ctx context.Context, ruminationID id.RuminationID) (*models.Rumination, error)
	Mine(ctx context.Context, q models.OwnQuery) ([]*models.Rumination, error)
	Feed(ctx context.Context, q models.FeedQuery) ([]*models.Rumination, error)
	PublicFeed(ctx context.Context, q models.FeedQuery) ([]*models.Rumination, error)
}

// Handler handles rumination endpoints.
type Handler struct {
	entries           Service
	logger            *slog.Logger
	metrics           *metrics.Metrics
	jwtValidator      middleware.JWTValidator
	revocationChecker middleware.TokenRevocationChecker
	requestTimeout    time.Duration
}

// New creates a rumination Handler.
func New(
	entries Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	revocationChecker middleware.TokenRevocationChecker,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		entries:           entries,
		logger:            logger,
		metrics:           metrics,
		jwtValidator:      jwtValidator,
		revocationChecker: revocationChecker,
		requestTimeout:    requestTimeout,
	}
}

// Register adds the rumination routes to the chi router. The public feed goes
// in its own group without the auth middleware.
func (h *Handler) Register(r chi.Router) {
	common := func(rr chi.Router) {
		rr.Use(middleware.Recovery(h.logger))
		rr.Use(middleware.RequestID)
		rr.Use(middleware.RequestTime)
		rr.Use(middleware.ClientMetadata)
		rr.Use(middleware.Logger(h.logger))
		rr.Use(middleware.Timeout(h.requestTimeout))
		rr.Use(middleware.ContentTypeJSON)
		rr.Use(middleware.LatencyMiddleware(h.metrics))
	}

	r.Group(func(rr chi.Router) {
		common(rr)
		rr.Get("/ruminations/public", h.handlePublicFeed)
	})

	r.Group(func(rr chi.Router) {
		common(rr)
		rr.Use(middleware.RequireAuth(h.jwtValidator, h.revocationChecker, h.logger))

		rr.Post("/ruminations", h.handleCreate)
		rr.Get("/ruminations/mine", h.handleMine)
		rr.Get("/ruminations/feed", h.handleFeed)
		rr.Get("/ruminations/{ruminationID}", h.handleGet)
		rr.Put("/ruminations/{ruminationID}", h.handleUpdateContent)
		rr.Post("/ruminations/{ruminationID}/publish", h.handleSetPublished)
		rr.Put("/ruminations/{ruminationID}/audiences", h.handleReplaceAudiences)
		rr.Delete("/ruminations/{ruminationID}", h.handleDelete)
	})
}

type createRequest struct {
	Content   string   `json:"content"`
	Published bool     `json:"published"`
	Audiences []string `json:"audiences,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	entry, err := h.entries.Create(ctx, req.Content, req.Published, req.Audiences)
	if err != nil {
		h.logError(ctx, "create rumination failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entry)
}

type updateContentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruminationID, err := id.ParseRuminationID(chi.URLParam(r, "ruminationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateContentRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	entry, err := h.entries.UpdateContent(ctx, ruminationID, req.Content)
	if err != nil {
		h.logError(ctx, "update rumination failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

type setPublishedRequest struct {
	Published bool `json:"published"`
}

func (h *Handler) handleSetPublished(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruminationID, err := id.ParseRuminationID(chi.URLParam(r, "ruminationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req setPublishedRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	entry, err := h.entries.SetPublished(ctx, ruminationID, req.Published)
	if err != nil {
		h.logError(ctx, "publish rumination failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

type replaceAudiencesRequest struct {
	Audiences []string `json:"audiences"`
}

func (h *Handler) handleReplaceAudiences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruminationID, err := id.ParseRuminationID(chi.URLParam(r, "ruminationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req replaceAudiencesRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	entry, err := h.entries.ReplaceAudiences(ctx, ruminationID, req.Audiences)
	if err != nil {
		h.logError(ctx, "replace audiences failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruminationID, err := id.ParseRuminationID(chi.URLParam(r, "ruminationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.entries.Delete(ctx, ruminationID); err != nil {
		h.logError(ctx, "delete rumination failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruminationID, err := id.ParseRuminationID(chi.URLParam(r, "ruminationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	entry, err := h.entries.Get(ctx, ruminationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	q := models.OwnQuery{
		ContentContains: params.Get("q"),
		IncludeDeleted:  params.Get("include_deleted") == "true",
		Sort:            params.Get("sort"),
		Page:            pageFromRequest(r),
	}
	if v := params.Get("published"); v != "" {
		published := v == "true"
		q.Published = &published
	}
	var err error
	if q.UpdatedAfter, err = timeParam(params.Get("updated_after")); err != nil {
		shared.WriteError(w, err)
		return
	}
	if q.UpdatedBefore, err = timeParam(params.Get("updated_before")); err != nil {
		shared.WriteError(w, err)
		return
	}

	entries, err := h.entries.Mine(ctx, q)
	if err != nil {
		h.logError(ctx, "list own ruminations failed", err)
		shared.WriteError(w, err)
		return
	}
	h.writeEntries(w, entries)
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := feedQueryFromRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	entries, err := h.entries.Feed(ctx, q)
	if err != nil {
		h.logError(ctx, "feed failed", err)
		shared.WriteError(w, err)
		return
	}
	h.writeEntries(w, entries)
}

func (h *Handler) handlePublicFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := feedQueryFromRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	entries, err := h.entries.PublicFeed(ctx, q)
	if err != nil {
		h.logError(ctx, "public feed failed", err)
		shared.WriteError(w, err)
		return
	}
	h.writeEntries(w, entries)
}

func (h *Handler) writeEntries(w http.ResponseWriter, entries []*models.Rumination) {
	if entries == nil {
		entries = []*models.Rumination{}
	}
	shared.WriteJSON(w, http.StatusOK, entries)
}

func feedQueryFromRequest(r *http.Request) (models.FeedQuery, error) {
	var q models.FeedQuery
	params := r.URL.Query()

	if v := params.Get("owner"); v != "" {
		owner, err := id.ParseUserID(v)
		if err != nil {
			return q, dErrors.New(dErrors.CodeValidation, "invalid owner filter")
		}
		q.Owner = owner
	}
	q.ContentContains = params.Get("q")
	var err error
	if q.UpdatedAfter, err = timeParam(params.Get("updated_after")); err != nil {
		return q, err
	}
	if q.UpdatedBefore, err = timeParam(params.Get("updated_before")); err != nil {
		return q, err
	}
	q.Sort = params.Get("sort")
	q.Page = pageFromRequest(r)
	return q, nil
}

// timeParam parses an RFC 3339 query parameter; empty means no filter.
func timeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "time filters must be RFC 3339 timestamps")
	}
	return t, nil
}

func pageFromRequest(r *http.Request) id.Page {
	var page id.Page
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		page.Offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		page.Limit = v
	}
	return page
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.Is(err, dErrors.CodeInternal) || dErrors.Is(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(ctx, msg,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
}
