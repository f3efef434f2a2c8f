package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

func newPending(t *testing.T) (*UserRelation, id.UserID, id.UserID) {
	t.Helper()
	sender, receiver := id.NewUserID(), id.NewUserID()
	rel, err := NewUserRelation(id.NewRelationID(), sender, receiver, id.RelationFriend, time.Now())
	require.NoError(t, err)
	return rel, sender, receiver
}

func TestNewUserRelation(t *testing.T) {
	t.Run("starts pending", func(t *testing.T) {
		rel, sender, _ := newPending(t)
		assert.True(t, rel.IsPending())
		assert.False(t, rel.IsAccepted)
		assert.False(t, rel.IsRejected)
		assert.Equal(t, sender, rel.CreatedBy)
		assert.Equal(t, sender, rel.UpdatedBy)
	})

	t.Run("rejects self relation with conflict", func(t *testing.T) {
		u := id.NewUserID()
		_, err := NewUserRelation(id.NewRelationID(), u, u, id.RelationFriend, time.Now())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("rejects missing parties", func(t *testing.T) {
		_, err := NewUserRelation(id.NewRelationID(), id.UserID{}, id.NewUserID(), id.RelationFriend, time.Now())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := NewUserRelation(id.NewRelationID(), id.NewUserID(), id.NewUserID(), id.RelationType("soulmate"), time.Now())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestUserRelation_Accept(t *testing.T) {
	now := time.Now()

	t.Run("receiver accepts pending", func(t *testing.T) {
		rel, _, receiver := newPending(t)
		require.NoError(t, rel.CanAccept(receiver))
		rel.ApplyAccept(receiver, now)
		assert.True(t, rel.IsAccepted)
		assert.Equal(t, receiver, rel.UpdatedBy)
		assert.Equal(t, now, rel.UpdatedAt)
	})

	t.Run("sender cannot accept", func(t *testing.T) {
		rel, sender, _ := newPending(t)
		err := rel.CanAccept(sender)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("rejected relation cannot be accepted", func(t *testing.T) {
		rel, _, receiver := newPending(t)
		rel.ApplyReject(receiver, now)
		err := rel.CanAccept(receiver)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("double accept violates invariant", func(t *testing.T) {
		rel, _, receiver := newPending(t)
		rel.ApplyAccept(receiver, now)
		err := rel.CanAccept(receiver)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("deleted relation reads as not found", func(t *testing.T) {
		rel, _, receiver := newPending(t)
		rel.ApplyRemove(receiver, now)
		err := rel.CanAccept(receiver)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestUserRelation_Reject(t *testing.T) {
	now := time.Now()

	t.Run("receiver rejects pending", func(t *testing.T) {
		rel, _, receiver := newPending(t)
		require.NoError(t, rel.CanReject(receiver))
		rel.ApplyReject(receiver, now)
		assert.True(t, rel.IsRejected)
		assert.False(t, rel.IsAccepted)
	})

	t.Run("sender cannot reject", func(t *testing.T) {
		rel, sender, _ := newPending(t)
		err := rel.CanReject(sender)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("accepted relation cannot be rejected", func(t *testing.T) {
		rel, _, receiver := newPending(t)
		rel.ApplyAccept(receiver, now)
		err := rel.CanReject(receiver)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestUserRelation_Remove(t *testing.T) {
	now := time.Now()

	t.Run("either party removes from any live state", func(t *testing.T) {
		rel, sender, _ := newPending(t)
		require.NoError(t, rel.CanRemove(sender))

		rel2, _, receiver2 := newPending(t)
		rel2.ApplyAccept(receiver2, now)
		require.NoError(t, rel2.CanRemove(receiver2))
	})

	t.Run("stranger cannot remove", func(t *testing.T) {
		rel, _, _ := newPending(t)
		err := rel.CanRemove(id.NewUserID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("remove is terminal", func(t *testing.T) {
		rel, sender, _ := newPending(t)
		rel.ApplyRemove(sender, now)
		err := rel.CanRemove(sender)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestNewRelationLog_SnapshotsUpdaterFields(t *testing.T) {
	rel, _, receiver := newPending(t)
	acceptedAt := time.Now().Add(time.Hour)
	rel.ApplyAccept(receiver, acceptedAt)

	log := NewRelationLog(rel, OpAccept)
	assert.Equal(t, rel.ID, log.RelationID)
	assert.Equal(t, OpAccept, log.Operation)
	assert.True(t, log.IsAccepted)
	assert.Equal(t, receiver, log.CreatedBy, "log actor comes from the entity's updater")
	assert.Equal(t, acceptedAt, log.CreatedAt, "log time comes from the entity's update time")
}

func TestUserRelation_CounterpartyOf(t *testing.T) {
	rel, sender, receiver := newPending(t)

	cp, ok := rel.CounterpartyOf(sender)
	require.True(t, ok)
	assert.Equal(t, receiver, cp)

	cp, ok = rel.CounterpartyOf(receiver)
	require.True(t, ok)
	assert.Equal(t, sender, cp)

	_, ok = rel.CounterpartyOf(id.NewUserID())
	assert.False(t, ok)
}
