package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearCaptureIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := WithCaptureSlot(context.Background(), NewCaptureSlot())

	_, err := store.Execute(ctx, "SELECT COUNT(*) AS n FROM inbound")
	require.NoError(t, err)
	require.False(t, store.Capture(ctx).Empty())

	store.ClearCapture(ctx)
	assert.True(t, store.Capture(ctx).Empty())
	store.ClearCapture(ctx)
	assert.True(t, store.Capture(ctx).Empty())
}

func TestExecuteCapturesLastQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := WithCaptureSlot(context.Background(), NewCaptureSlot())

	_, err := store.Execute(ctx, "SELECT 1 AS a")
	require.NoError(t, err)
	table, err := store.Execute(ctx, topOutboundSQL)
	require.NoError(t, err)

	cq := store.Capture(ctx)
	assert.Equal(t, topOutboundSQL, cq.Query)
	assert.Equal(t, table, cq.Result)
	assert.Equal(t, 5, cq.Result.RowCount())
}

func TestExecuteFailureClearsCapture(t *testing.T) {
	store := newTestStore(t)
	ctx := WithCaptureSlot(context.Background(), NewCaptureSlot())

	_, err := store.Execute(ctx, "SELECT 1")
	require.NoError(t, err)

	_, err = store.Execute(ctx, "SELECT * FROM no_such_table")
	require.Error(t, err)
	var qe *QueryExecutionError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "SELECT * FROM no_such_table", qe.Query)
	assert.True(t, store.Capture(ctx).Empty())
}

func TestReadDoesNotCapture(t *testing.T) {
	store := newTestStore(t)
	ctx := WithCaptureSlot(context.Background(), NewCaptureSlot())

	_, err := store.Execute(ctx, "SELECT 1 AS a")
	require.NoError(t, err)
	_, err = store.Read(ctx, "SELECT 2 AS b")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 AS a", store.Capture(ctx).Query)
}

func TestCaptureSlotsAreTurnScoped(t *testing.T) {
	store := newTestStore(t)
	turnA := WithCaptureSlot(context.Background(), NewCaptureSlot())
	turnB := WithCaptureSlot(context.Background(), NewCaptureSlot())

	_, err := store.Execute(turnA, "SELECT 1 AS a")
	require.NoError(t, err)
	assert.True(t, store.Capture(turnB).Empty())
	assert.True(t, store.Capture(context.Background()).Empty())

	// Calls without a slot share the adapter-level one.
	_, err = store.Execute(context.Background(), "SELECT 3 AS c")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3 AS c", store.Capture(context.Background()).Query)
	assert.Equal(t, "SELECT 1 AS a", store.Capture(turnA).Query)
}
