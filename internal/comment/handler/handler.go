// Package handler exposes comment threads over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ruminster/internal/comment/models"
	"ruminster/internal/platform/metrics"
	"ruminster/internal/platform/middleware"
	"ruminster/internal/transport/http/shared"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

// Service defines the comment operations the handler needs.
type Service interface {
	Add(ctx context.Context, ruminationID id.RuminationID, parentID *id.CommentID, content string) (*models.Comment, error)
	Edit(ctx context.Context, commentID id.CommentID, content string) (*models.Comment, error)
	Delete(ctx context.Context, commentID id.CommentID) error
	ListForRumination(ctx context.Context, ruminationID id.RuminationID, page id.Page) ([]*models.Comment, error)
}

// Handler handles comment endpoints.
type Handler struct {
	comments          Service
	logger            *slog.Logger
	metrics           *metrics.Metrics
	jwtValidator      middleware.JWTValidator
	revocationChecker middleware.TokenRevocationChecker
	requestTimeout    time.Duration
}

// New creates a comment Handler.
func New(
	comments Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	revocationChecker middleware.TokenRevocationChecker,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		comments:          comments,
		logger:            logger,
		metrics:           metrics,
		jwtValidator:      jwtValidator,
		revocationChecker: revocationChecker,
		requestTimeout:    requestTimeout,
	}
}

// Register adds the comment routes to the chi router.
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

		rr.Post("/ruminations/{ruminationID}/comments", h.handleAdd)
		rr.Get("/ruminations/{ruminationID}/comments", h.handleList)
		rr.Put("/comments/{commentID}", h.handleEdit)
		rr.Delete("/comments/{commentID}", h.handleDelete)
	})
}

type addRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruminationID, err := id.ParseRuminationID(chi.URLParam(r, "ruminationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req addRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	var parentID *id.CommentID
	if req.ParentID != "" {
		parsed, err := id.ParseCommentID(req.ParentID)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid parent_id"))
			return
		}
		parentID = &parsed
	}

	comment, err := h.comments.Add(ctx, ruminationID, parentID, req.Content)
	if err != nil {
		h.logError(ctx, "add comment failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, comment)
}

type editRequest struct {
	Content string `json:"content"`
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	commentID, err := id.ParseCommentID(chi.URLParam(r, "commentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req editRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	comment, err := h.comments.Edit(ctx, commentID, req.Content)
	if err != nil {
		h.logError(ctx, "edit comment failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, comment)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	commentID, err := id.ParseCommentID(chi.URLParam(r, "commentID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.comments.Delete(ctx, commentID); err != nil {
		h.logError(ctx, "delete comment failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruminationID, err := id.ParseRuminationID(chi.URLParam(r, "ruminationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	comments, err := h.comments.ListForRumination(ctx, ruminationID, pageFromRequest(r))
	if err != nil {
		h.logError(ctx, "list comments failed", err)
		shared.WriteError(w, err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	shared.WriteJSON(w, http.StatusOK, comments)
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
