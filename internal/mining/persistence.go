package mining

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/logsieve/logsieve/internal/logging"
)

// SnapshotData is the JSON serialization format for parse-tree persistence.
// Versioned for schema evolution. The ID counter travels with the clusters so
// template IDs stay stable across restarts and evicted IDs are never reused.
type SnapshotData struct {
	Version   int               `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	NextID    uint64            `json:"next_id"`
	Clock     uint64            `json:"clock"`
	Clusters  []SnapshotCluster `json:"clusters"`
}

// SnapshotCluster is one serialized cluster. Clusters are stored oldest-match
// first so LRU recency survives a restore.
type SnapshotCluster struct {
	ID          uint64   `json:"id"`
	Tokens      []string `json:"tokens"`
	Size        int64    `json:"size"`
	LastMatched uint64   `json:"last_matched"`
}

// PersistenceManager periodically snapshots the miner's parse tree to disk
// using atomic writes (temp + rename) and restores it on startup.
// Implements lifecycle.Component.
type PersistenceManager struct {
	miner    *Miner
	path     string
	interval time.Duration
	logger   *logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPersistenceManager creates a persistence manager writing snapshots of
// the miner's tree to path every interval.
func NewPersistenceManager(miner *Miner, path string, interval time.Duration) *PersistenceManager {
	return &PersistenceManager{
		miner:    miner,
		path:     path,
		interval: interval,
		logger:   logging.GetLogger("mining.persistence"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start loads any existing snapshot, then begins the periodic snapshot loop.
func (pm *PersistenceManager) Start(ctx context.Context) error {
	if err := pm.Load(ctx); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load template snapshot: %w", err)
		}
		pm.logger.Info("No template snapshot at %s, starting empty", pm.path)
	}

	go pm.loop()
	return nil
}

// Stop halts the loop and writes a final snapshot.
func (pm *PersistenceManager) Stop(ctx context.Context) error {
	close(pm.stopCh)
	select {
	case <-pm.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name implements lifecycle.Component.
func (pm *PersistenceManager) Name() string {
	return "template-persistence"
}

func (pm *PersistenceManager) loop() {
	defer close(pm.doneCh)
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := pm.Snapshot(context.Background()); err != nil {
				// A failed snapshot loses at most one interval on crash;
				// never take the server down for it.
				pm.logger.Error("Template snapshot failed: %v", err)
			}
		case <-pm.stopCh:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := pm.Snapshot(ctx); err != nil {
				pm.logger.Error("Final template snapshot failed: %v", err)
			}
			cancel()
			return
		}
	}
}

// Snapshot serializes the current parse tree to disk.
func (pm *PersistenceManager) Snapshot(ctx context.Context) error {
	snapshot := SnapshotData{Version: 1, Timestamp: time.Now().UTC()}

	err := pm.miner.WithTree(ctx, func(t *Tree) {
		clusters, nextID, clock := t.Snapshot()
		snapshot.NextID = nextID
		snapshot.Clock = clock
		snapshot.Clusters = make([]SnapshotCluster, 0, len(clusters))
		for _, c := range clusters {
			snapshot.Clusters = append(snapshot.Clusters, SnapshotCluster{
				ID:          c.ID,
				Tokens:      append([]string(nil), c.Tokens...),
				Size:        c.Size,
				LastMatched: c.lastMatched,
			})
		}
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpPath := pm.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, pm.path); err != nil {
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}

	pm.logger.Debug("Snapshotted %d clusters to %s", len(snapshot.Clusters), pm.path)
	return nil
}

// Load restores the parse tree from a snapshot file. Returns the underlying
// os error (checkable with os.IsNotExist) when no snapshot exists.
func (pm *PersistenceManager) Load(ctx context.Context) error {
	data, err := os.ReadFile(pm.path)
	if err != nil {
		return err
	}

	var snapshot SnapshotData
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snapshot.Version != 1 {
		return fmt.Errorf("unsupported snapshot version: %d", snapshot.Version)
	}

	clusters := make([]*Cluster, 0, len(snapshot.Clusters))
	for _, sc := range snapshot.Clusters {
		clusters = append(clusters, &Cluster{
			ID:          sc.ID,
			Tokens:      sc.Tokens,
			Size:        sc.Size,
			lastMatched: sc.LastMatched,
		})
	}

	err = pm.miner.WithTree(ctx, func(t *Tree) {
		t.Restore(clusters, snapshot.NextID, snapshot.Clock)
	})
	if err != nil {
		return err
	}

	pm.logger.Info("Restored %d template clusters from %s", len(clusters), pm.path)
	return nil
}
