package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ruminster/internal/audit"
	"ruminster/internal/platform/metrics"
	"ruminster/internal/platform/middleware"
	"ruminster/internal/platform/uow"
	relmodels "ruminster/internal/relation/models"
	relstore "ruminster/internal/relation/store"
	"ruminster/internal/rumination"
	"ruminster/internal/rumination/models"
	"ruminster/internal/rumination/service"
	"ruminster/internal/rumination/store"
	httptransport "ruminster/internal/transport/http"
	id "ruminster/pkg/domain"
	"ruminster/pkg/testutil"
)

// httpMetrics is shared across tests; Prometheus collectors register once
// per process.
var httpMetrics = metrics.New()

// staticValidator maps bearer tokens straight to user IDs.
type staticValidator struct {
	tokens map[string]string
}

func (v *staticValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	userID, ok := v.tokens[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &middleware.JWTClaims{UserID: userID, JTI: "test-jti"}, nil
}

type HandlerSuite struct {
	suite.Suite

	owner  id.UserID
	friend id.UserID

	relations *relstore.Memory
	store     *store.Memory
	validator *staticValidator
	router    http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.owner = id.NewUserID()
	s.friend = id.NewUserID()

	s.relations = relstore.NewMemory()
	s.store = store.NewMemory(s.relations)

	logger := slog.New(slog.DiscardHandler)
	recorder := audit.NewRecorder(logger, []audit.Strategy{
		rumination.NewLoggingStrategy(s.store),
	})
	runner := uow.NewMemoryRunner(recorder, logger)

	svc := service.New(s.store, s.relations, runner, service.WithLogger(logger))

	s.validator = &staticValidator{tokens: map[string]string{
		"owner-token":  s.owner.String(),
		"friend-token": s.friend.String(),
	}}
	h := New(svc, logger, httpMetrics, s.validator, nil, 5*time.Second)
	s.router = httptransport.NewRouter(h)
}

func (s *HandlerSuite) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) befriend() {
	rel, err := relmodels.NewUserRelation(id.NewRelationID(), s.owner, s.friend, id.RelationFriend, time.Now().UTC())
	s.Require().NoError(err)
	rel.ApplyAccept(s.friend, time.Now().UTC())
	s.Require().NoError(s.relations.Create(s.T().Context(), rel))
}

func (s *HandlerSuite) create(body map[string]any) *models.Rumination {
	resp := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/ruminations", body), "owner-token")
	s.Require().Equal(http.StatusCreated, resp.Code)
	return testutil.UnmarshalResponse[models.Rumination](s.T(), resp)
}

func (s *HandlerSuite) TestCreate() {
	entry := s.create(map[string]any{
		"content":   "first entry",
		"published": true,
		"audiences": []string{"friend"},
	})

	s.Equal("first entry", entry.Content)
	s.True(entry.IsPublished)
	s.Require().Len(entry.Audiences, 1)
	s.Equal(id.RelationFriend, entry.Audiences[0].Type)
}

func (s *HandlerSuite) TestCreate_Validation() {
	resp := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/ruminations", map[string]any{
		"content": "",
	}), "owner-token")
	s.Equal(http.StatusBadRequest, resp.Code)

	resp = s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/ruminations", `{"content": "x", "bogus": true}`), "owner-token")
	s.Equal(http.StatusBadRequest, resp.Code)
}

func (s *HandlerSuite) TestCreate_RequiresAuth() {
	body := map[string]any{"content": "no token"}

	resp := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/ruminations", body), "")
	s.Equal(http.StatusUnauthorized, resp.Code)

	resp = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/ruminations", body), "bogus")
	s.Equal(http.StatusUnauthorized, resp.Code)
}

func (s *HandlerSuite) TestGet_Visibility() {
	s.befriend()
	entry := s.create(map[string]any{
		"content":   "gated entry",
		"published": true,
		"audiences": []string{"friend"},
	})
	path := "/ruminations/" + entry.ID.String()

	resp := s.do(testutil.NewRequest(s.T(), http.MethodGet, path), "friend-token")
	s.Equal(http.StatusOK, resp.Code)

	s.validator.tokens["stranger-token"] = id.NewUserID().String()
	resp = s.do(testutil.NewRequest(s.T(), http.MethodGet, path), "stranger-token")
	s.Equal(http.StatusNotFound, resp.Code)
}

func (s *HandlerSuite) TestUpdateAndDelete() {
	entry := s.create(map[string]any{"content": "draft", "published": false})
	path := "/ruminations/" + entry.ID.String()

	resp := s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{
		"content": "edited draft",
	}), "owner-token")
	s.Require().Equal(http.StatusOK, resp.Code)
	updated := testutil.UnmarshalResponse[models.Rumination](s.T(), resp)
	s.Equal("edited draft", updated.Content)

	resp = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, path+"/publish", map[string]any{
		"published": true,
	}), "owner-token")
	s.Require().Equal(http.StatusOK, resp.Code)

	resp = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, path+"/audiences", map[string]any{
		"audiences": []string{"family"},
	}), "owner-token")
	s.Require().Equal(http.StatusOK, resp.Code)

	resp = s.do(testutil.NewRequest(s.T(), http.MethodDelete, path), "owner-token")
	s.Require().Equal(http.StatusNoContent, resp.Code)

	resp = s.do(testutil.NewRequest(s.T(), http.MethodGet, path), "owner-token")
	s.Equal(http.StatusNotFound, resp.Code)
}

func (s *HandlerSuite) TestPublicFeed_NoAuth() {
	s.create(map[string]any{"content": "open thought", "published": true})

	resp := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/ruminations/public"), "")
	s.Require().Equal(http.StatusOK, resp.Code)
	feed := testutil.UnmarshalResponse[[]*models.Rumination](s.T(), resp)
	s.Require().Len(*feed, 1)
	s.Equal("open thought", (*feed)[0].Content)
}

func (s *HandlerSuite) TestFeedAndMine() {
	s.befriend()
	s.create(map[string]any{"content": "gated entry", "published": true, "audiences": []string{"friend"}})
	s.create(map[string]any{"content": "draft entry", "published": false})

	resp := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/ruminations/feed"), "friend-token")
	s.Require().Equal(http.StatusOK, resp.Code)
	feed := testutil.UnmarshalResponse[[]*models.Rumination](s.T(), resp)
	s.Require().Len(*feed, 1)
	s.Equal("gated entry", (*feed)[0].Content)

	resp = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/ruminations/mine?published=false"), "owner-token")
	s.Require().Equal(http.StatusOK, resp.Code)
	mine := testutil.UnmarshalResponse[[]*models.Rumination](s.T(), resp)
	s.Require().Len(*mine, 1)
	s.Equal("draft entry", (*mine)[0].Content)
}
