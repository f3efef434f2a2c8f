//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"ruminster/internal/comment/models"
	"ruminster/internal/comment/store"
	"ruminster/internal/platform/postgres"
	relmodels "ruminster/internal/relation/models"
	relstore "ruminster/internal/relation/store"
	rummodels "ruminster/internal/rumination/models"
	rumstore "ruminster/internal/rumination/store"
	id "ruminster/pkg/domain"
	"ruminster/pkg/platform/sentinel"
	"ruminster/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg        *containers.PostgresContainer
	store     *store.Postgres
	entries   *rumstore.Postgres
	relations *relstore.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.pg.DB))
	s.store = store.NewPostgres(s.pg.DB)
	s.entries = rumstore.NewPostgres(s.pg.DB)
	s.relations = relstore.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.pg.TruncateTables(context.Background(),
		"comments", "comment_logs", "rumination_audiences", "ruminations", "user_relations")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) newEntry(owner id.UserID, published bool, audiences ...id.RelationType) *rummodels.Rumination {
	s.T().Helper()
	r, err := rummodels.NewRumination(id.NewRuminationID(), owner, "entry", published, s.now())
	s.Require().NoError(err)
	for _, t := range audiences {
		a, err := rummodels.NewAudience(r.ID, t, owner, s.now())
		s.Require().NoError(err)
		r.Audiences = append(r.Audiences, a)
	}
	s.Require().NoError(s.entries.Create(context.Background(), r))
	return r
}

func (s *PostgresStoreSuite) newComment(ruminationID id.RuminationID, parent *id.CommentID, author id.UserID, content string) *models.Comment {
	s.T().Helper()
	c, err := models.NewComment(id.NewCommentID(), ruminationID, parent, author, content, s.now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), c))
	return c
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	owner := id.NewUserID()
	entry := s.newEntry(owner, true)

	parent := s.newComment(entry.ID, nil, owner, "parent")
	reply := s.newComment(entry.ID, &parent.ID, id.NewUserID(), "reply")

	got, err := s.store.FindByID(ctx, reply.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.ParentID)
	s.Equal(parent.ID, *got.ParentID)

	top, err := s.store.FindByID(ctx, parent.ID)
	s.Require().NoError(err)
	s.Nil(top.ParentID)
}

func (s *PostgresStoreSuite) TestFindByID_Missing() {
	_, err := s.store.FindByID(context.Background(), id.NewCommentID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConditionalWrites() {
	ctx := context.Background()
	owner := id.NewUserID()
	entry := s.newEntry(owner, true)
	c := s.newComment(entry.ID, nil, owner, "original")

	s.Require().NoError(c.ApplyContent("edited", owner, s.now()))
	s.Require().NoError(s.store.UpdateEntry(ctx, c))

	c.ApplyDelete(owner, s.now())
	s.Require().NoError(s.store.MarkDeleted(ctx, c))

	s.Require().ErrorIs(s.store.UpdateEntry(ctx, c), sentinel.ErrInvalidState)
	s.Require().ErrorIs(s.store.MarkDeleted(ctx, c), sentinel.ErrInvalidState)
}

func (s *PostgresStoreSuite) TestListByRumination() {
	ctx := context.Background()
	owner := id.NewUserID()
	entry := s.newEntry(owner, true)
	other := s.newEntry(owner, true)

	first := s.newComment(entry.ID, nil, owner, "first")
	time.Sleep(5 * time.Millisecond)
	second := s.newComment(entry.ID, nil, owner, "second")
	s.newComment(other.ID, nil, owner, "elsewhere")

	deleted := s.newComment(entry.ID, nil, owner, "gone")
	deleted.ApplyDelete(owner, s.now())
	s.Require().NoError(s.store.MarkDeleted(ctx, deleted))

	thread, err := s.store.ListByRumination(ctx, entry.ID, id.Page{Limit: 20})
	s.Require().NoError(err)
	s.Require().Len(thread, 2)
	s.Equal(first.ID, thread[0].ID)
	s.Equal(second.ID, thread[1].ID)
}

func (s *PostgresStoreSuite) TestSearchVisible() {
	ctx := context.Background()
	owner, friend, stranger := id.NewUserID(), id.NewUserID(), id.NewUserID()

	rel, err := relmodels.NewUserRelation(id.NewRelationID(), owner, friend, id.RelationFriend, s.now())
	s.Require().NoError(err)
	s.Require().NoError(s.relations.Create(ctx, rel))
	rel.ApplyAccept(friend, s.now())
	s.Require().NoError(s.relations.MarkAccepted(ctx, rel))

	public := s.newEntry(owner, true)
	gated := s.newEntry(owner, true, id.RelationFriend)
	draft := s.newEntry(owner, false)

	onPublic := s.newComment(public.ID, nil, owner, "morning walk")
	onGated := s.newComment(gated.ID, nil, friend, "evening walk")
	s.newComment(draft.ID, nil, owner, "hidden walk")

	page := id.Page{Limit: 20}

	s.Run("friend reaches comments on gated entries", func() {
		found, err := s.store.SearchVisible(ctx, friend, "walk", page)
		s.Require().NoError(err)
		s.ElementsMatch([]id.CommentID{onPublic.ID, onGated.ID}, commentIDs(found))
	})

	s.Run("stranger reaches only public comments", func() {
		found, err := s.store.SearchVisible(ctx, stranger, "walk", page)
		s.Require().NoError(err)
		s.ElementsMatch([]id.CommentID{onPublic.ID}, commentIDs(found))
	})

	s.Run("owner reaches comments on their drafts", func() {
		found, err := s.store.SearchVisible(ctx, owner, "walk", page)
		s.Require().NoError(err)
		s.Len(found, 3)
	})

	s.Run("needle narrows matches", func() {
		found, err := s.store.SearchVisible(ctx, friend, "evening", page)
		s.Require().NoError(err)
		s.ElementsMatch([]id.CommentID{onGated.ID}, commentIDs(found))
	})
}

func (s *PostgresStoreSuite) TestAppendLog() {
	ctx := context.Background()
	owner := id.NewUserID()
	entry := s.newEntry(owner, true)
	c := s.newComment(entry.ID, nil, owner, "logged")

	s.Require().NoError(s.store.AppendLog(ctx, models.NewCommentLog(c, models.OpCreate)))

	var count int
	err := s.pg.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comment_logs WHERE comment_id = $1`, c.ID.String()).
		Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func commentIDs(cs []*models.Comment) []id.CommentID {
	ids := make([]id.CommentID, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	return ids
}
