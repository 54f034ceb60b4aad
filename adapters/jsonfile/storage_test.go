package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"travelkit/core"
)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "travelers.json")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	total, err := store.IncrementStat(ctx, "alice", core.StatStoriesShared, 3)
	if err != nil || total != 3 {
		t.Fatalf("increment: total=%d err=%v", total, err)
	}
	if added, err := store.AddVisit(ctx, "alice", "boga-lake"); err != nil || !added {
		t.Fatalf("add visit: added=%v err=%v", added, err)
	}
	if err := store.SetVerified(ctx, "alice", true); err != nil {
		t.Fatalf("set verified: %v", err)
	}
	if err := store.SetPreferences(ctx, "alice", core.Preferences{FavoriteTypes: []string{"hill"}, BudgetRange: core.BudgetMedium}); err != nil {
		t.Fatalf("set preferences: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	snap, err := reloaded.GetSnapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if snap.Stats.StoriesShared != 3 {
		t.Fatalf("expected 3 stories, got %d", snap.Stats.StoriesShared)
	}
	if !snap.Verified || !snap.HasVisited("boga-lake") {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if snap.Preferences.BudgetRange != core.BudgetMedium || len(snap.Preferences.FavoriteTypes) != 1 {
		t.Fatalf("unexpected preferences %#v", snap.Preferences)
	}
}

func TestStoreDuplicateVisitDoesNotWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "travelers.json")
	ctx := context.Background()
	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddVisit(ctx, "bob", "nilgiri"); err != nil {
		t.Fatal(err)
	}
	added, err := store.AddVisit(ctx, "bob", "nilgiri")
	if err != nil || added {
		t.Fatalf("duplicate visit: added=%v err=%v", added, err)
	}
	snap, _ := store.GetSnapshot(ctx, "bob")
	if len(snap.VisitedDestinationIDs) != 1 {
		t.Fatalf("expected one visit, got %v", snap.VisitedDestinationIDs)
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "travelers.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}

func TestStoreUnknownUser(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "travelers.json"))
	if err != nil {
		t.Fatal(err)
	}
	snap, err := store.GetSnapshot(context.Background(), "ghost")
	if err != nil || snap.UserID != "ghost" || snap.Stats.PlansCreated != 0 {
		t.Fatalf("unexpected %#v %v", snap, err)
	}
}

func TestStoreFailedWriteLeavesStateUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "travelers.json")
	ctx := context.Background()
	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.IncrementStat(ctx, "amy", core.StatPlansCreated, 2); err != nil {
		t.Fatal(err)
	}

	// a regular file where the data directory should be makes every write fail
	if err := os.RemoveAll(filepath.Join(dir, "data")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.IncrementStat(ctx, "amy", core.StatPlansCreated, 3); err == nil {
		t.Fatal("expected write error")
	}
	if _, err := store.AddVisit(ctx, "ben", "nilgiri"); err == nil {
		t.Fatal("expected write error")
	}

	snap, _ := store.GetSnapshot(ctx, "amy")
	if snap.Stats.PlansCreated != 2 {
		t.Fatalf("failed write leaked into memory: plans=%d", snap.Stats.PlansCreated)
	}
	snap, _ = store.GetSnapshot(ctx, "ben")
	if len(snap.VisitedDestinationIDs) != 0 {
		t.Fatalf("failed visit leaked into memory: %v", snap.VisitedDestinationIDs)
	}
}
