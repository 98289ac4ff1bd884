package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cpidash/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "cpi.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleObservations() []core.Observation {
	return []core.Observation{
		{Date: core.NewMonthDate(2023, time.January), Category: "All-items", Value: 153.9},
		{Date: core.NewMonthDate(2023, time.February), Category: "All-items", Value: 154.5},
		{Date: core.NewMonthDate(2023, time.January), Category: "Food", Value: 178.1},
	}
}

func TestReplaceAllAndLoadAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceAll(ctx, sampleObservations()); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	got, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d observations, want 3", len(got))
	}

	// Ordered by category then date.
	if got[0].Category != "All-items" || got[0].Value != 153.9 {
		t.Errorf("first row = %+v", got[0])
	}
	if got[2].Category != "Food" {
		t.Errorf("last row = %+v", got[2])
	}
	if !got[1].Date.Equal(core.NewMonthDate(2023, time.February)) {
		t.Errorf("second row date = %s", got[1].Date)
	}
}

func TestReplaceAllSwapsDataset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceAll(ctx, sampleObservations()); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	next := []core.Observation{
		{Date: core.NewMonthDate(2023, time.March), Category: "Shelter", Value: 166.2},
	}
	if err := store.ReplaceAll(ctx, next); err != nil {
		t.Fatalf("ReplaceAll second dataset: %v", err)
	}

	got, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Shelter" {
		t.Fatalf("stale rows survived the swap: %+v", got)
	}
}

func TestReplaceAllRejectsEmpty(t *testing.T) {
	store := newTestStore(t)

	if err := store.ReplaceAll(context.Background(), nil); err == nil {
		t.Fatal("empty dataset accepted")
	}
}

func TestLastRefreshedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.LastRefreshedAt(ctx); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v, want no refresh", ok, err)
	}

	before := time.Now().UTC().Add(-time.Second)
	if err := store.ReplaceAll(ctx, sampleObservations()); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	refreshedAt, ok, err := store.LastRefreshedAt(ctx)
	if err != nil {
		t.Fatalf("LastRefreshedAt: %v", err)
	}
	if !ok {
		t.Fatal("refresh not recorded")
	}
	if refreshedAt.Before(before) {
		t.Errorf("refreshed_at = %s, want after %s", refreshedAt, before)
	}
}

func TestCacheInfo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	info, err := store.CacheInfo(ctx)
	if err != nil {
		t.Fatalf("CacheInfo: %v", err)
	}
	if info.Exists || info.Observations != 0 {
		t.Fatalf("fresh store info = %+v", info)
	}

	if err := store.ReplaceAll(ctx, sampleObservations()); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	info, err = store.CacheInfo(ctx)
	if err != nil {
		t.Fatalf("CacheInfo: %v", err)
	}
	if !info.Exists {
		t.Error("cache should exist after refresh")
	}
	if info.Observations != 3 || info.Categories != 2 {
		t.Errorf("counts = %d observations, %d categories", info.Observations, info.Categories)
	}
	if info.AgeHours < 0 || info.AgeHours > 1 {
		t.Errorf("age_hours = %f", info.AgeHours)
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceAll(ctx, sampleObservations()); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	got, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("cleared store still holds %d rows", len(got))
	}
	if _, ok, err := store.LastRefreshedAt(ctx); err != nil || ok {
		t.Fatalf("refresh log survived clear: ok=%v err=%v", ok, err)
	}
}
