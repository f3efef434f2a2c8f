// Package handler exposes the relation lifecycle over HTTP.
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
	"ruminster/internal/relation/models"
	"ruminster/internal/transport/http/shared"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

// Service defines the relation operations the handler needs.
type Service interface {
	Propose(ctx context.Context, receiver id.UserID, relType id.RelationType) (*models.UserRelation, error)
	Accept(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error)
	Reject(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error)
	Remove(ctx context.Context, relationID id.RelationID) error
	Get(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error)
	List(ctx context.Context, q models.ListQuery) ([]*models.UserRelation, error)
}

// Handler handles relation endpoints.
type Handler struct {
	relations         Service
	logger            *slog.Logger
	metrics           *metrics.Metrics
	jwtValidator      middleware.JWTValidator
	revocationChecker middleware.TokenRevocationChecker
	requestTimeout    time.Duration
}

// New creates a relation Handler.
func New(
	relations Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	revocationChecker middleware.TokenRevocationChecker,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		relations:         relations,
		logger:            logger,
		metrics:           metrics,
		jwtValidator:      jwtValidator,
		revocationChecker: revocationChecker,
		requestTimeout:    requestTimeout,
	}
}

// Register adds the relation routes to the chi router.
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

		rr.Post("/relations", h.handlePropose)
		rr.Get("/relations", h.handleList)
		rr.Get("/relations/{relationID}", h.handleGet)
		rr.Post("/relations/{relationID}/accept", h.handleAccept)
		rr.Post("/relations/{relationID}/reject", h.handleReject)
		rr.Delete("/relations/{relationID}", h.handleRemove)
	})
}

type proposeRequest struct {
	ReceiverID   string `json:"receiver_id"`
	RelationType string `json:"relation_type"`
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req proposeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	receiver, err := id.ParseUserID(req.ReceiverID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid receiver_id"))
		return
	}
	relType, err := id.ParseRelationType(req.RelationType)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rel, err := h.relations.Propose(ctx, receiver, relType)
	if err != nil {
		h.logError(ctx, "propose relation failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, rel)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.relations.Accept)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.relations.Reject)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, id.RelationID) (*models.UserRelation, error)) {
	ctx := r.Context()

	relationID, err := id.ParseRelationID(chi.URLParam(r, "relationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rel, err := op(ctx, relationID)
	if err != nil {
		h.logError(ctx, "relation transition failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rel)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	relationID, err := id.ParseRelationID(chi.URLParam(r, "relationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.relations.Remove(ctx, relationID); err != nil {
		h.logError(ctx, "remove relation failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	relationID, err := id.ParseRelationID(chi.URLParam(r, "relationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rel, err := h.relations.Get(ctx, relationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, rel)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := listQueryFromRequest(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	rels, err := h.relations.List(ctx, q)
	if err != nil {
		h.logError(ctx, "list relations failed", err)
		shared.WriteError(w, err)
		return
	}
	if rels == nil {
		rels = []*models.UserRelation{}
	}
	shared.WriteJSON(w, http.StatusOK, rels)
}

func listQueryFromRequest(r *http.Request) (models.ListQuery, error) {
	var (
		q   models.ListQuery
		err error
	)
	params := r.URL.Query()

	if v := params.Get("counterparty"); v != "" {
		counterparty, err := id.ParseUserID(v)
		if err != nil {
			return q, dErrors.New(dErrors.CodeValidation, "invalid counterparty filter")
		}
		q.Counterparty = counterparty
	}
	if v := params.Get("type"); v != "" {
		q.Type = id.RelationType(v)
	}
	q.MutualOnly = params.Get("mutual") == "true"
	q.IncludeDeleted = params.Get("include_deleted") == "true"
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
