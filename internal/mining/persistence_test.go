package mining

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	ctx := context.Background()

	miner := newTestMiner(t)
	r1, err := miner.Process(ctx, "Session opened for user alice from 10.0.0.1")
	require.NoError(t, err)
	_, err = miner.Process(ctx, "Disk space low on volume data")
	require.NoError(t, err)

	pm := NewPersistenceManager(miner, path, time.Hour)
	require.NoError(t, pm.Snapshot(ctx))

	// A fresh miner restores the same clusters and keeps IDs stable.
	restored := newTestMiner(t)
	pm2 := NewPersistenceManager(restored, path, time.Hour)
	require.NoError(t, pm2.Load(ctx))

	assert.Equal(t, 2, restored.ClusterCount())

	again, err := restored.Process(ctx, "Session opened for user alice from 10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, r1.TemplateID, again.TemplateID)
	assert.EqualValues(t, 2, again.ClusterSize)
}

func TestLoadMissingSnapshot(t *testing.T) {
	miner := newTestMiner(t)
	pm := NewPersistenceManager(miner, filepath.Join(t.TempDir(), "absent.json"), time.Hour)

	err := pm.Load(context.Background())
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestStartToleratesMissingSnapshot(t *testing.T) {
	miner := newTestMiner(t)
	pm := NewPersistenceManager(miner, filepath.Join(t.TempDir(), "absent.json"), time.Hour)

	require.NoError(t, pm.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pm.Stop(ctx))
}

func TestStartRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, os.WriteFile(path, []byte("{ not json"), 0644))

	miner := newTestMiner(t)
	pm := NewPersistenceManager(miner, path, time.Hour)
	assert.Error(t, pm.Start(context.Background()))
}

func TestSnapshotAtomicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.json")
	miner := newTestMiner(t)
	_, err := miner.Process(context.Background(), "one structural line here")
	require.NoError(t, err)

	pm := NewPersistenceManager(miner, path, time.Hour)
	require.NoError(t, pm.Snapshot(context.Background()))

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
