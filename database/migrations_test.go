package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDBAppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "conversations.db")

	db, err := InitDB(ctx, path, func(s string) { t.Log(s) })
	require.NoError(t, err)

	versions, err := AppliedVersions(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)

	// Running again is a no-op.
	require.NoError(t, Migrate(ctx, db, nil))
	versions, err = AppliedVersions(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)

	_, err = db.ExecContext(ctx, "INSERT INTO conversation_turns (thread_id, role, content) VALUES ('t1', 'user', 'hi')")
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestRollbackMigration(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, filepath.Join(t.TempDir(), "c.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RollbackMigration(ctx, db, 2))
	versions, err := AppliedVersions(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)

	assert.Error(t, RollbackMigration(ctx, db, 2), "already rolled back")
	assert.Error(t, RollbackMigration(ctx, db, 99), "unknown version")
}
