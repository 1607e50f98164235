package checkpointstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ryansmccoy/feedspine"
)

// FileStore persists each checkpoint as its own JSON file on disk, one
// collection id per file (grounded on the original FileCheckpointStore's
// layout). Saves are atomic: write to a temp file in the same directory,
// then rename over the target, so a crash mid-write never leaves a
// truncated checkpoint behind.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates dir (and any missing parents) and returns a
// FileStore rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &feedspine.CheckpointError{Op: "NewFileStore", Cause: err}
	}
	return &FileStore{dir: dir}, nil
}

// sanitizeID mirrors the original's filename policy: keep alphanumerics,
// '-', and '_'; replace everything else with '_'.
func sanitizeID(collectionID string) string {
	var b strings.Builder
	for _, r := range collectionID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (f *FileStore) path(collectionID string) string {
	return filepath.Join(f.dir, sanitizeID(collectionID)+".json")
}

func (f *FileStore) Save(_ context.Context, checkpoint feedspine.Checkpoint) error {
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return &feedspine.CheckpointError{Op: "Save", Cause: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(checkpoint.CollectionID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &feedspine.CheckpointError{Op: "Save", Cause: err}
	}
	if err := os.Rename(tmp, target); err != nil {
		return &feedspine.CheckpointError{Op: "Save", Cause: err}
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, collectionID string) (*feedspine.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(collectionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &feedspine.CheckpointError{Op: "Load", Cause: err}
	}

	var cp feedspine.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, &feedspine.CheckpointError{Op: "Load", Cause: err}
	}
	return &cp, nil
}

func (f *FileStore) Delete(_ context.Context, collectionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(collectionID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &feedspine.CheckpointError{Op: "Delete", Cause: err}
	}
	return true, nil
}

func (f *FileStore) ListIncomplete(_ context.Context, feedName string) ([]feedspine.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, &feedspine.CheckpointError{Op: "ListIncomplete", Cause: err}
	}

	var out []feedspine.Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, entry.Name()))
		if err != nil {
			continue
		}
		var cp feedspine.Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		if cp.IsComplete {
			continue
		}
		if feedName != "" && cp.FeedName != feedName {
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}
