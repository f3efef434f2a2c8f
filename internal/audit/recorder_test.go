package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruminster/internal/platform/uow"
)

type fakeStrategy struct {
	entityType string
	logged     []string
	failOn     string
}

func (s *fakeStrategy) EntityType() string { return s.entityType }

func (s *fakeStrategy) Log(_ context.Context, entity any, operation string) error {
	if s.failOn != "" && operation == s.failOn {
		return errors.New("log store down")
	}
	s.logged = append(s.logged, operation+":"+entity.(string))
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRecorder_Flush_DispatchesByEntityType(t *testing.T) {
	relations := &fakeStrategy{entityType: "user_relation"}
	ruminations := &fakeStrategy{entityType: "rumination"}
	recorder := NewRecorder(testLogger(), []Strategy{relations, ruminations})

	changes := []uow.Change{
		{EntityType: "user_relation", Operation: "relation.propose", Entity: "r1"},
		{EntityType: "rumination", Operation: "rumination.create", Entity: "p1"},
		{EntityType: "user_relation", Operation: "relation.accept", Entity: "r1"},
	}

	require.NoError(t, recorder.Flush(context.Background(), changes))

	assert.Equal(t, []string{"relation.propose:r1", "relation.accept:r1"}, relations.logged)
	assert.Equal(t, []string{"rumination.create:p1"}, ruminations.logged)
}

func TestRecorder_Flush_SkipsUnregisteredEntityTypes(t *testing.T) {
	relations := &fakeStrategy{entityType: "user_relation"}
	recorder := NewRecorder(testLogger(), []Strategy{relations})

	changes := []uow.Change{
		{EntityType: "unknown_entity", Operation: "whatever", Entity: "x"},
		{EntityType: "user_relation", Operation: "relation.propose", Entity: "r1"},
	}

	require.NoError(t, recorder.Flush(context.Background(), changes))
	assert.Equal(t, []string{"relation.propose:r1"}, relations.logged)
}

func TestRecorder_Flush_FirstFailureAborts(t *testing.T) {
	relations := &fakeStrategy{entityType: "user_relation", failOn: "relation.accept"}
	recorder := NewRecorder(testLogger(), []Strategy{relations})

	changes := []uow.Change{
		{EntityType: "user_relation", Operation: "relation.propose", Entity: "r1"},
		{EntityType: "user_relation", Operation: "relation.accept", Entity: "r1"},
		{EntityType: "user_relation", Operation: "relation.remove", Entity: "r1"},
	}

	err := recorder.Flush(context.Background(), changes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation.accept")

	// Nothing after the failure was dispatched.
	assert.Equal(t, []string{"relation.propose:r1"}, relations.logged)
}

func TestRecorder_Flush_EmptyChanges(t *testing.T) {
	recorder := NewRecorder(testLogger(), nil)
	require.NoError(t, recorder.Flush(context.Background(), nil))
}
