package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/1ay1/neowall-sub002/internal/model"
	"github.com/1ay1/neowall-sub002/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(output, path string, at time.Time) *model.WallpaperRecord {
	return &model.WallpaperRecord{
		ID:     model.NewID(),
		Output: output,
		Path:   path,
		SetAt:  at,
	}
}

func TestSaveAndCurrentWallpaper(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SaveWallpaper(ctx, record("DP-1", "/walls/a.png", base)); err != nil {
		t.Fatalf("SaveWallpaper: %v", err)
	}
	if err := s.SaveWallpaper(ctx, record("DP-1", "/walls/b.png", base.Add(time.Minute))); err != nil {
		t.Fatalf("SaveWallpaper: %v", err)
	}

	rec, err := s.CurrentWallpaper(ctx, "DP-1")
	if err != nil {
		t.Fatalf("CurrentWallpaper: %v", err)
	}
	if rec.Path != "/walls/b.png" {
		t.Errorf("Path = %q, want latest /walls/b.png", rec.Path)
	}
}

func TestCurrentWallpaperNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CurrentWallpaper(context.Background(), "HDMI-A-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCurrentWallpapersOnePerOutput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	seeds := []*model.WallpaperRecord{
		record("DP-1", "/walls/a.png", base),
		record("DP-1", "/walls/b.png", base.Add(time.Minute)),
		record("HDMI-A-1", "/walls/c.png", base),
	}
	for _, rec := range seeds {
		if err := s.SaveWallpaper(ctx, rec); err != nil {
			t.Fatalf("SaveWallpaper: %v", err)
		}
	}

	recs, err := s.CurrentWallpapers(ctx)
	if err != nil {
		t.Fatalf("CurrentWallpapers: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	// Ordered by output name.
	if recs[0].Output != "DP-1" || recs[0].Path != "/walls/b.png" {
		t.Errorf("recs[0] = %s %s", recs[0].Output, recs[0].Path)
	}
	if recs[1].Output != "HDMI-A-1" || recs[1].Path != "/walls/c.png" {
		t.Errorf("recs[1] = %s %s", recs[1].Output, recs[1].Path)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	paths := []string{"/walls/a.png", "/walls/b.png", "/walls/c.png"}
	for i, p := range paths {
		if err := s.SaveWallpaper(ctx, record("DP-1", p, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("SaveWallpaper: %v", err)
		}
	}

	recs, err := s.History(ctx, "DP-1", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].Path != "/walls/c.png" || recs[1].Path != "/walls/b.png" {
		t.Errorf("history order = %s, %s", recs[0].Path, recs[1].Path)
	}
}

func TestPruneHistoryKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := record("DP-1", "/walls/a.png", base.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			rec.Path = "/walls/latest.png"
		}
		if err := s.SaveWallpaper(ctx, rec); err != nil {
			t.Fatalf("SaveWallpaper: %v", err)
		}
	}

	removed, err := s.PruneHistory(ctx, 2)
	if err != nil {
		t.Fatalf("PruneHistory: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	recs, err := s.History(ctx, "DP-1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len after prune = %d, want 2", len(recs))
	}
	if recs[0].Path != "/walls/latest.png" {
		t.Errorf("newest after prune = %q", recs[0].Path)
	}
}
