package feedspine_test

import (
	"context"
	"testing"
	"time"

	"github.com/ryansmccoy/feedspine"
	"github.com/ryansmccoy/feedspine/checkpointstore"
)

func TestCheckpointManagerStartThenUpdateThenSave(t *testing.T) {
	store := checkpointstore.NewMemStore()
	mgr, err := feedspine.NewCheckpointManager(store)
	if err != nil {
		t.Fatalf("NewCheckpointManager: %v", err)
	}

	mgr.Start("run-1", "feed-a")
	if err := mgr.Update(map[string]any{"page": float64(1)}, 5, 3, 2, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := mgr.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved, err := store.Load(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved == nil || saved.Processed != 5 || saved.New != 3 {
		t.Fatalf("Load() = %+v, want Processed=5 New=3", saved)
	}
}

func TestCheckpointManagerMethodsRequireStartOrResume(t *testing.T) {
	store := checkpointstore.NewMemStore()
	mgr, err := feedspine.NewCheckpointManager(store)
	if err != nil {
		t.Fatalf("NewCheckpointManager: %v", err)
	}

	if err := mgr.Update(nil, 1, 0, 0, 0); err != feedspine.ErrCheckpointNotStarted {
		t.Fatalf("Update() before Start = %v, want ErrCheckpointNotStarted", err)
	}
	if err := mgr.Save(context.Background()); err != feedspine.ErrCheckpointNotStarted {
		t.Fatalf("Save() before Start = %v, want ErrCheckpointNotStarted", err)
	}
}

func TestCheckpointManagerResumeAdoptsExistingCheckpoint(t *testing.T) {
	store := checkpointstore.NewMemStore()
	now := time.Now().UTC()
	_ = store.Save(context.Background(), feedspine.Checkpoint{
		CollectionID: "run-1", FeedName: "feed-a", Processed: 10, StartedAt: now, UpdatedAt: now,
	})

	mgr, err := feedspine.NewCheckpointManager(store)
	if err != nil {
		t.Fatalf("NewCheckpointManager: %v", err)
	}

	cp, found, err := mgr.Resume(context.Background(), "run-1", "feed-a")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !found {
		t.Fatal("Resume() should report an existing checkpoint was found")
	}
	if cp.Processed != 10 {
		t.Fatalf("Resume() = %+v, want the persisted Processed count carried over", cp)
	}

	if err := mgr.Update(nil, 5, 0, 0, 0); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if current := mgr.Current(); current.Processed != 15 {
		t.Fatalf("Current().Processed = %d, want 15 (10 resumed + 5 updated)", current.Processed)
	}
}

func TestCheckpointManagerResumeWithNoExistingCheckpointBehavesLikeStart(t *testing.T) {
	store := checkpointstore.NewMemStore()
	mgr, err := feedspine.NewCheckpointManager(store)
	if err != nil {
		t.Fatalf("NewCheckpointManager: %v", err)
	}

	cp, found, err := mgr.Resume(context.Background(), "new-run", "feed-a")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if found {
		t.Fatal("Resume() should report no existing checkpoint was found")
	}
	if cp.CollectionID != "new-run" || cp.Processed != 0 {
		t.Fatalf("Resume() = %+v, want a fresh zeroed checkpoint", cp)
	}
}

func TestCheckpointManagerMaybeSaveRespectsSaveEvery(t *testing.T) {
	store := checkpointstore.NewMemStore()
	mgr, err := feedspine.NewCheckpointManager(store, feedspine.WithSaveEvery(3))
	if err != nil {
		t.Fatalf("NewCheckpointManager: %v", err)
	}

	mgr.Start("run-1", "feed-a")
	_ = mgr.Update(nil, 1, 0, 0, 0)

	saved, err := mgr.MaybeSave(context.Background())
	if err != nil {
		t.Fatalf("MaybeSave: %v", err)
	}
	if saved {
		t.Fatal("MaybeSave() should not save before saveEvery updates have accumulated")
	}

	_ = mgr.Update(nil, 1, 0, 0, 0)
	_ = mgr.Update(nil, 1, 0, 0, 0)
	saved, err = mgr.MaybeSave(context.Background())
	if err != nil {
		t.Fatalf("MaybeSave: %v", err)
	}
	if !saved {
		t.Fatal("MaybeSave() should save once 3 updates have accumulated")
	}
}

func TestCheckpointManagerCompleteMarksIsCompleteAndSaves(t *testing.T) {
	store := checkpointstore.NewMemStore()
	mgr, err := feedspine.NewCheckpointManager(store)
	if err != nil {
		t.Fatalf("NewCheckpointManager: %v", err)
	}

	mgr.Start("run-1", "feed-a")
	if err := mgr.Complete(context.Background()); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	saved, err := store.Load(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved == nil || !saved.IsComplete {
		t.Fatalf("Load() = %+v, want IsComplete true after Complete", saved)
	}
}
