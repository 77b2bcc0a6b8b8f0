package store

import (
	"context"
	"errors"

	"github.com/1ay1/neowall-sub002/internal/model"
)

// ErrNotFound is returned when no wallpaper is recorded for an output.
var ErrNotFound = errors.New("wallpaper not found")

// Store defines the persistence operations for wallpaper state. Every set
// appends a history row; Current-style reads return the latest row per
// output so the daemon can restore wallpapers across restarts.
type Store interface {
	SaveWallpaper(ctx context.Context, rec *model.WallpaperRecord) error
	CurrentWallpaper(ctx context.Context, output string) (*model.WallpaperRecord, error)
	CurrentWallpapers(ctx context.Context) ([]*model.WallpaperRecord, error)
	History(ctx context.Context, output string, limit int) ([]*model.WallpaperRecord, error)
	PruneHistory(ctx context.Context, keepPerOutput int) (int64, error)
	Close() error
}
