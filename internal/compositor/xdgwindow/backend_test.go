package xdgwindow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/compositor/xdgwindow"
)

func TestNewWithoutWaylandSession(t *testing.T) {
	t.Setenv("WAYLAND_DISPLAY", "")

	_, err := xdgwindow.New(context.Background(), compositor.EnvironmentInfo{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, compositor.ErrUnavailable) {
		t.Fatalf("New without WAYLAND_DISPLAY = %v, want ErrUnavailable", err)
	}
}

func TestNewWithUnreachableSocket(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("WAYLAND_DISPLAY", "wayland-nonexistent")

	_, err := xdgwindow.New(context.Background(), compositor.EnvironmentInfo{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, compositor.ErrUnavailable) {
		t.Fatalf("New with dead socket = %v, want ErrUnavailable", err)
	}
}

func TestDescriptorOrdersBelowLayerShell(t *testing.T) {
	d := xdgwindow.Descriptor()
	if d.Name != "xdg-window" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.Priority >= 100 {
		t.Errorf("Priority = %d, want below layer shell", d.Priority)
	}
}
