package uow

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureFlusher struct {
	flushed [][]Change
	err     error
}

func (f *captureFlusher) Flush(_ context.Context, changes []Change) error {
	f.flushed = append(f.flushed, changes)
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMemoryRunner_FlushesTrackedChangesAfterFn(t *testing.T) {
	flusher := &captureFlusher{}
	runner := NewMemoryRunner(flusher, testLogger())

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		Track(ctx, "user_relation", "relation.propose", "r1")
		Track(ctx, "rumination", "rumination.create", "p1")
		return nil
	})
	require.NoError(t, err)

	require.Len(t, flusher.flushed, 1)
	assert.Equal(t, []Change{
		{EntityType: "user_relation", Operation: "relation.propose", Entity: "r1"},
		{EntityType: "rumination", Operation: "rumination.create", Entity: "p1"},
	}, flusher.flushed[0])
}

func TestMemoryRunner_FnErrorSkipsFlush(t *testing.T) {
	flusher := &captureFlusher{}
	runner := NewMemoryRunner(flusher, testLogger())

	wantErr := errors.New("store rejected")
	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		Track(ctx, "user_relation", "relation.propose", "r1")
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Empty(t, flusher.flushed)
}

func TestMemoryRunner_FlushFailureDoesNotFailMutation(t *testing.T) {
	flusher := &captureFlusher{err: errors.New("log store down")}
	runner := NewMemoryRunner(flusher, testLogger())

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		Track(ctx, "user_relation", "relation.propose", "r1")
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, flusher.flushed, 1)
}

func TestMemoryRunner_NoChangesNoFlush(t *testing.T) {
	flusher := &captureFlusher{}
	runner := NewMemoryRunner(flusher, testLogger())

	require.NoError(t, runner.RunInTx(context.Background(), func(ctx context.Context) error {
		return nil
	}))
	assert.Empty(t, flusher.flushed)
}

func TestTrack_NoUnitOfWorkIsNoop(t *testing.T) {
	// Reads run outside a runner; tracking must not panic there.
	Track(context.Background(), "user_relation", "relation.propose", "r1")
	assert.Nil(t, From(context.Background()))
}

func TestMemoryRunner_CancelledContext(t *testing.T) {
	runner := NewMemoryRunner(&captureFlusher{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunInTx(ctx, func(ctx context.Context) error { return nil })
	require.Error(t, err)
}
