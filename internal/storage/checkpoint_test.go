package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStorage(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "sift.db")
	s, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s, dbPath
}

func TestCheckpointManager_InMemory(t *testing.T) {
	_, err := NewCheckpointManager(newTestStorage(t))
	assert.ErrorIs(t, err, ErrInMemoryDatabase)
}

func TestCheckpointManager_CreateAndRestore(t *testing.T) {
	ctx := context.Background()
	s, dbPath := newFileStorage(t)
	createInvoice(t, s, "inv-1", time.Now())

	cm, err := NewCheckpointManager(s)
	require.NoError(t, err)

	info, err := cm.Create(ctx, "before-import", "first invoice only")
	require.NoError(t, err)
	assert.Equal(t, "before-import", info.ID)
	assert.Equal(t, 1, info.RowCounts["invoices"])
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Positive(t, info.FileSize)
	assert.False(t, info.IsAuto)

	_, err = cm.Create(ctx, "before-import", "")
	assert.ErrorIs(t, err, ErrCheckpointExists)

	createInvoice(t, s, "inv-2", time.Now())
	require.NoError(t, cm.Restore(ctx, "before-import"))

	reopened, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	_, err = reopened.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	_, err = reopened.GetInvoice(ctx, "inv-2")
	assert.Error(t, err, "invoice added after the checkpoint is gone")
}

func TestCheckpointManager_InvalidTags(t *testing.T) {
	s, _ := newFileStorage(t)
	cm, err := NewCheckpointManager(s)
	require.NoError(t, err)

	for _, tag := range []string{"../escape", `a\b`, "x/y"} {
		_, err := cm.Create(context.Background(), tag, "")
		assert.ErrorIs(t, err, ErrInvalidCheckpoint, tag)
	}
	assert.ErrorIs(t, cm.Restore(context.Background(), "missing"), ErrCheckpointNotFound)
	assert.ErrorIs(t, cm.Delete(context.Background(), "missing"), ErrCheckpointNotFound)
}

func TestCheckpointManager_AutoCheckpointPrunes(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStorage(t)
	cm, err := NewCheckpointManager(s)
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	cm.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	_, err = cm.Create(ctx, "manual", "kept")
	require.NoError(t, err)
	for i := 0; i < maxAutoCheckpoints+2; i++ {
		info, err := cm.AutoCheckpoint(ctx, fmt.Sprintf("import%d", i))
		require.NoError(t, err)
		assert.True(t, info.IsAuto)
	}

	list, err := cm.List(ctx)
	require.NoError(t, err)

	auto := 0
	for i, cp := range list {
		if i > 0 {
			assert.False(t, cp.CreatedAt.After(list[i-1].CreatedAt), "newest first")
		}
		if cp.IsAuto {
			auto++
		}
	}
	assert.Equal(t, maxAutoCheckpoints, auto)
	assert.Len(t, list, maxAutoCheckpoints+1)
}
