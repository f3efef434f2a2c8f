package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ruminster/internal/audit"
	"ruminster/internal/platform/uow"
	relmodels "ruminster/internal/relation/models"
	relstore "ruminster/internal/relation/store"
	"ruminster/internal/rumination"
	"ruminster/internal/rumination/models"
	"ruminster/internal/rumination/store"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
	"ruminster/pkg/requestcontext"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite

	relations *relstore.Memory
	store     *store.Memory
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.relations = relstore.NewMemory()
	s.store = store.NewMemory(s.relations)

	logger := slog.New(slog.DiscardHandler)
	recorder := audit.NewRecorder(logger, []audit.Strategy{
		rumination.NewLoggingStrategy(s.store),
	})
	runner := uow.NewMemoryRunner(recorder, logger)

	s.service = New(s.store, s.relations, runner,
		WithLogger(logger),
		WithMaxPageSize(50),
	)
}

func (s *ServiceSuite) ctxAs(userID id.UserID) context.Context {
	ctx := requestcontext.WithTime(context.Background(), fixedNow)
	return requestcontext.WithUserID(ctx, userID)
}

func newRelation(a, b id.UserID, relType id.RelationType) (*relmodels.UserRelation, error) {
	return relmodels.NewUserRelation(id.NewRelationID(), a, b, relType, fixedNow)
}

// accept wires an accepted relation of the given type between two users.
func (s *ServiceSuite) accept(a, b id.UserID, relType id.RelationType) *relmodels.UserRelation {
	s.T().Helper()
	rel, err := newRelation(a, b, relType)
	s.Require().NoError(err)
	s.Require().NoError(s.relations.Create(context.Background(), rel))
	rel.ApplyAccept(b, fixedNow)
	s.Require().NoError(s.relations.MarkAccepted(context.Background(), rel))
	return rel
}

func (s *ServiceSuite) create(owner id.UserID, content string, published bool, audiences ...string) *models.Rumination {
	s.T().Helper()
	entry, err := s.service.Create(s.ctxAs(owner), content, published, audiences)
	s.Require().NoError(err)
	return entry
}

func (s *ServiceSuite) TestCreate() {
	owner := id.NewUserID()

	s.Run("public entry", func() {
		entry := s.create(owner, "first thought", true)
		s.True(entry.IsPublic())
		s.True(entry.IsPublished)
		s.Equal(owner, entry.OwnerID)

		logs := s.store.Logs()
		s.Require().Len(logs, 1)
		s.Equal(models.OpCreate, logs[0].Operation)
		s.Equal(owner, logs[0].CreatedBy)
		s.Equal(fixedNow, logs[0].CreatedAt)
		s.Empty(logs[0].Audiences)
	})

	s.Run("gated entry dedupes audience types", func() {
		entry := s.create(owner, "for friends", true, "friend", " Friend ", "family")
		s.False(entry.IsPublic())
		s.ElementsMatch([]id.RelationType{id.RelationFriend, id.RelationFamily}, entry.LiveAudienceTypes())

		logs := s.store.Logs()
		last := logs[len(logs)-1]
		s.ElementsMatch([]string{"friend", "family"}, last.Audiences)
	})

	s.Run("unknown audience type is a validation error", func() {
		_, err := s.service.Create(s.ctxAs(owner), "x", true, []string{"fanclub"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("blank content is a validation error", func() {
		_, err := s.service.Create(s.ctxAs(owner), "   ", true, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unauthenticated caller is rejected", func() {
		ctx := requestcontext.WithTime(context.Background(), fixedNow)
		_, err := s.service.Create(ctx, "x", true, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestUpdateContent() {
	owner := id.NewUserID()
	entry := s.create(owner, "draft", false)

	s.Run("owner edits", func() {
		updated, err := s.service.UpdateContent(s.ctxAs(owner), entry.ID, "revised")
		s.Require().NoError(err)
		s.Equal("revised", updated.Content)

		logs := s.store.Logs()
		last := logs[len(logs)-1]
		s.Equal(models.OpUpdate, last.Operation)
		s.Equal("revised", last.Content)
	})

	s.Run("stranger is forbidden", func() {
		_, err := s.service.UpdateContent(s.ctxAs(id.NewUserID()), entry.ID, "hijacked")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown entry is not found", func() {
		_, err := s.service.UpdateContent(s.ctxAs(owner), id.NewRuminationID(), "x")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestSetPublished() {
	owner := id.NewUserID()
	entry := s.create(owner, "draft", false)

	published, err := s.service.SetPublished(s.ctxAs(owner), entry.ID, true)
	s.Require().NoError(err)
	s.True(published.IsPublished)

	unpublished, err := s.service.SetPublished(s.ctxAs(owner), entry.ID, false)
	s.Require().NoError(err)
	s.False(unpublished.IsPublished)

	logs := s.store.Logs()
	s.Require().Len(logs, 3)
	s.Equal(models.OpPublish, logs[1].Operation)
	s.Equal(models.OpUnpublish, logs[2].Operation)
}

func (s *ServiceSuite) TestDelete() {
	owner := id.NewUserID()

	s.Run("delete hides the entry and is terminal", func() {
		entry := s.create(owner, "ephemeral", true)
		s.Require().NoError(s.service.Delete(s.ctxAs(owner), entry.ID))

		_, err := s.service.Get(s.ctxAs(owner), entry.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		err = s.service.Delete(s.ctxAs(owner), entry.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("history keeps the final snapshot", func() {
		entry := s.create(owner, "remembered", true)
		s.Require().NoError(s.service.Delete(s.ctxAs(owner), entry.ID))

		logs := s.store.Logs()
		last := logs[len(logs)-1]
		s.Equal(models.OpDelete, last.Operation)
		s.True(last.IsDeleted)
		s.Equal("remembered", last.Content)
	})
}

func (s *ServiceSuite) TestReplaceAudiences() {
	owner := id.NewUserID()
	entry := s.create(owner, "shifting circles", true, "friend")

	s.Run("reconciles adds and removals", func() {
		updated, err := s.service.ReplaceAudiences(s.ctxAs(owner), entry.ID, []string{"family", "partner"})
		s.Require().NoError(err)
		s.ElementsMatch([]id.RelationType{id.RelationFamily, id.RelationPartner}, updated.LiveAudienceTypes())

		logs := s.store.Logs()
		last := logs[len(logs)-1]
		s.Equal(models.OpReplaceAudiences, last.Operation)
		s.ElementsMatch([]string{"family", "partner"}, last.Audiences)
	})

	s.Run("empty set makes the entry public", func() {
		updated, err := s.service.ReplaceAudiences(s.ctxAs(owner), entry.ID, nil)
		s.Require().NoError(err)
		s.True(updated.IsPublic())
	})

	s.Run("stranger is forbidden", func() {
		_, err := s.service.ReplaceAudiences(s.ctxAs(id.NewUserID()), entry.ID, []string{"friend"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown type is a validation error", func() {
		_, err := s.service.ReplaceAudiences(s.ctxAs(owner), entry.ID, []string{"nemesis"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// Replacing with the exact same set must not churn the audience rows: the
// surviving entries keep their original creation stamp even when the request
// arrives later.
func (s *ServiceSuite) TestReplaceAudiences_UnchangedSetKeepsStamps() {
	owner := id.NewUserID()
	entry := s.create(owner, "steady circles", true, "friend", "family")

	createdAt := make(map[id.RelationType]time.Time, len(entry.Audiences))
	for _, a := range entry.Audiences {
		createdAt[a.Type] = a.CreatedAt
	}

	laterCtx := requestcontext.WithUserID(
		requestcontext.WithTime(context.Background(), fixedNow.Add(time.Hour)), owner)

	for i := 0; i < 2; i++ {
		updated, err := s.service.ReplaceAudiences(laterCtx, entry.ID, []string{"friend", "family"})
		s.Require().NoError(err)
		s.Require().Len(updated.Audiences, 2)
		for _, a := range updated.Audiences {
			s.False(a.IsDeleted)
			s.Equal(createdAt[a.Type], a.CreatedAt)
		}
	}
}

func (s *ServiceSuite) TestGet_Visibility() {
	owner, friend, stranger := id.NewUserID(), id.NewUserID(), id.NewUserID()
	s.accept(owner, friend, id.RelationFriend)

	s.Run("public entry visible to anyone", func() {
		entry := s.create(owner, "open", true)
		got, err := s.service.Get(s.ctxAs(stranger), entry.ID)
		s.Require().NoError(err)
		s.Equal(entry.ID, got.ID)
	})

	s.Run("gated entry visible through matching accepted relation", func() {
		entry := s.create(owner, "for friends", true, "friend")

		_, err := s.service.Get(s.ctxAs(friend), entry.ID)
		s.Require().NoError(err)

		_, err = s.service.Get(s.ctxAs(stranger), entry.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "existence is not disclosed")
	})

	s.Run("relation type must match the audience", func() {
		entry := s.create(owner, "family only", true, "family")
		_, err := s.service.Get(s.ctxAs(friend), entry.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unpublished entry visible only to the owner", func() {
		entry := s.create(owner, "draft", false)
		_, err := s.service.Get(s.ctxAs(owner), entry.ID)
		s.Require().NoError(err)

		_, err = s.service.Get(s.ctxAs(friend), entry.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// TestVisibilityFollowsRelationLifecycle walks the full arc: a gated entry
// becomes visible when the relation is accepted and invisible again the
// moment either party removes it.
func (s *ServiceSuite) TestVisibilityFollowsRelationLifecycle() {
	owner, viewer := id.NewUserID(), id.NewUserID()
	entry := s.create(owner, "confessions", true, "friend")

	ctx := context.Background()

	// Pending proposal grants nothing.
	rel, err := newRelation(owner, viewer, id.RelationFriend)
	s.Require().NoError(err)
	s.Require().NoError(s.relations.Create(ctx, rel))
	_, err = s.service.Get(s.ctxAs(viewer), entry.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	// Acceptance opens the gate.
	rel.ApplyAccept(viewer, fixedNow)
	s.Require().NoError(s.relations.MarkAccepted(ctx, rel))
	_, err = s.service.Get(s.ctxAs(viewer), entry.ID)
	s.Require().NoError(err)

	feed, err := s.service.Feed(s.ctxAs(viewer), models.FeedQuery{})
	s.Require().NoError(err)
	s.Require().Len(feed, 1)
	s.Equal(entry.ID, feed[0].ID)

	// Removal closes it again, with no residual access.
	rel.ApplyRemove(viewer, fixedNow)
	s.Require().NoError(s.relations.MarkDeleted(ctx, rel))
	_, err = s.service.Get(s.ctxAs(viewer), entry.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	feed, err = s.service.Feed(s.ctxAs(viewer), models.FeedQuery{})
	s.Require().NoError(err)
	s.Empty(feed)
}

func (s *ServiceSuite) TestFeed() {
	owner, friend := id.NewUserID(), id.NewUserID()
	s.accept(owner, friend, id.RelationFriend)

	public := s.create(owner, "public note", true)
	gated := s.create(owner, "friends only", true, "friend")
	s.create(owner, "family only", true, "family")
	s.create(owner, "draft", false)

	s.Run("viewer sees public plus matching gated entries", func() {
		feed, err := s.service.Feed(s.ctxAs(friend), models.FeedQuery{})
		s.Require().NoError(err)
		ids := feedIDs(feed)
		s.ElementsMatch([]id.RuminationID{public.ID, gated.ID}, ids)
	})

	s.Run("owner sees all their published entries", func() {
		feed, err := s.service.Feed(s.ctxAs(owner), models.FeedQuery{})
		s.Require().NoError(err)
		s.Len(feed, 3)
	})

	s.Run("stranger sees only public entries", func() {
		feed, err := s.service.Feed(s.ctxAs(id.NewUserID()), models.FeedQuery{})
		s.Require().NoError(err)
		ids := feedIDs(feed)
		s.ElementsMatch([]id.RuminationID{public.ID}, ids)
	})

	s.Run("owner filter", func() {
		feed, err := s.service.Feed(s.ctxAs(friend), models.FeedQuery{Owner: id.NewUserID()})
		s.Require().NoError(err)
		s.Empty(feed)
	})

	s.Run("content filter is case-insensitive", func() {
		feed, err := s.service.Feed(s.ctxAs(friend), models.FeedQuery{ContentContains: "PUBLIC"})
		s.Require().NoError(err)
		s.Require().Len(feed, 1)
		s.Equal(public.ID, feed[0].ID)
	})
}

func (s *ServiceSuite) TestPublicFeed() {
	owner := id.NewUserID()
	public := s.create(owner, "for everyone", true)
	s.create(owner, "friends only", true, "friend")
	s.create(owner, "draft", false)

	feed, err := s.service.PublicFeed(context.Background(), models.FeedQuery{})
	s.Require().NoError(err)
	s.Require().Len(feed, 1)
	s.Equal(public.ID, feed[0].ID)
}

func (s *ServiceSuite) TestMine() {
	owner := id.NewUserID()
	s.create(owner, "draft", false)
	published := s.create(owner, "published", true)
	deleted := s.create(owner, "gone", true)
	s.Require().NoError(s.service.Delete(s.ctxAs(owner), deleted.ID))

	s.Run("includes drafts, excludes deleted by default", func() {
		mine, err := s.service.Mine(s.ctxAs(owner), models.OwnQuery{})
		s.Require().NoError(err)
		s.Len(mine, 2)
	})

	s.Run("published filter", func() {
		yes := true
		mine, err := s.service.Mine(s.ctxAs(owner), models.OwnQuery{Published: &yes})
		s.Require().NoError(err)
		s.Require().Len(mine, 1)
		s.Equal(published.ID, mine[0].ID)
	})

	s.Run("deleted entries on request", func() {
		mine, err := s.service.Mine(s.ctxAs(owner), models.OwnQuery{IncludeDeleted: true})
		s.Require().NoError(err)
		s.Len(mine, 3)
	})

	s.Run("limit is clamped to the configured maximum", func() {
		mine, err := s.service.Mine(s.ctxAs(owner), models.OwnQuery{Page: id.Page{Limit: 10000}})
		s.Require().NoError(err)
		s.LessOrEqual(len(mine), 50)
	})
}

// An unparseable sort expression falls back to the default order and the
// rejected value shows up in the log.
func (s *ServiceSuite) TestMine_UnknownSortFallsBack() {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	recorder := audit.NewRecorder(logger, []audit.Strategy{
		rumination.NewLoggingStrategy(s.store),
	})
	svc := New(s.store, s.relations, uow.NewMemoryRunner(recorder, logger),
		WithLogger(logger),
		WithMaxPageSize(50),
	)

	owner := id.NewUserID()
	s.create(owner, "kept", true)
	buf.Reset()

	mine, err := svc.Mine(s.ctxAs(owner), models.OwnQuery{Sort: "owner_id"})
	s.Require().NoError(err)
	s.Len(mine, 1)
	s.Contains(buf.String(), "unrecognized sort expression")
	s.Contains(buf.String(), "owner_id")
}

func feedIDs(entries []*models.Rumination) []id.RuminationID {
	ids := make([]id.RuminationID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
