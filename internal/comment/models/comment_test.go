package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

func newComment(t *testing.T) (*Comment, id.UserID) {
	t.Helper()
	author := id.NewUserID()
	c, err := NewComment(id.NewCommentID(), id.NewRuminationID(), nil, author, "nice thought", time.Now())
	require.NoError(t, err)
	return c, author
}

func TestNewComment(t *testing.T) {
	t.Run("top-level comment", func(t *testing.T) {
		c, author := newComment(t)
		assert.False(t, c.IsReply())
		assert.Equal(t, author, c.CreatedBy)
	})

	t.Run("reply carries its parent", func(t *testing.T) {
		parent, _ := newComment(t)
		reply, err := NewComment(id.NewCommentID(), parent.RuminationID, &parent.ID, id.NewUserID(), "agreed", time.Now())
		require.NoError(t, err)
		assert.True(t, reply.IsReply())
		assert.Equal(t, parent.ID, *reply.ParentID)
	})

	t.Run("requires an author", func(t *testing.T) {
		_, err := NewComment(id.NewCommentID(), id.NewRuminationID(), nil, id.UserID{}, "x", time.Now())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects blank content", func(t *testing.T) {
		_, err := NewComment(id.NewCommentID(), id.NewRuminationID(), nil, id.NewUserID(), "  ", time.Now())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects oversized content", func(t *testing.T) {
		_, err := NewComment(id.NewCommentID(), id.NewRuminationID(), nil, id.NewUserID(), strings.Repeat("a", MaxContentLength+1), time.Now())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestComment_CanModify(t *testing.T) {
	t.Run("author may modify", func(t *testing.T) {
		c, author := newComment(t)
		assert.NoError(t, c.CanModify(author))
	})

	t.Run("non-author is forbidden", func(t *testing.T) {
		c, _ := newComment(t)
		err := c.CanModify(id.NewUserID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("deleted comment reads as not found", func(t *testing.T) {
		c, author := newComment(t)
		c.ApplyDelete(author, time.Now())
		err := c.CanModify(author)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestNewCommentLog_SnapshotsUpdaterFields(t *testing.T) {
	c, author := newComment(t)
	editedAt := time.Now().Add(time.Hour)
	require.NoError(t, c.ApplyContent("edited", author, editedAt))

	log := NewCommentLog(c, OpUpdate)
	assert.Equal(t, c.ID, log.CommentID)
	assert.Equal(t, OpUpdate, log.Operation)
	assert.Equal(t, "edited", log.Content)
	assert.Equal(t, author, log.CreatedBy)
	assert.Equal(t, editedAt, log.CreatedAt)
}
