// Package e2e exercises the daemon full-stack: a stub compositor backend
// driving the real engine, store and HTTP API over a live test server.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1ay1/neowall-sub002/internal/api"
	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/config"
	"github.com/1ay1/neowall-sub002/internal/engine"
	"github.com/1ay1/neowall-sub002/internal/model"
	"github.com/1ay1/neowall-sub002/internal/reload"
	"github.com/1ay1/neowall-sub002/internal/store"
)

const (
	waitTimeout  = 10 * time.Second
	pollInterval = 25 * time.Millisecond
)

type stubHandle struct {
	width, height int
}

func (*stubHandle) BackendName() string { return "stub" }

type stubWindow struct {
	fb *image.RGBA
}

func (w *stubWindow) Size() (int, int)   { return w.fb.Rect.Dx(), w.fb.Rect.Dy() }
func (w *stubWindow) Frame() *image.RGBA { return w.fb }
func (w *stubWindow) Present() error     { return nil }
func (w *stubWindow) Destroy()           {}

// stubBackend is a minimal compositor.Instance whose surfaces configure
// synchronously. All methods run on the engine's loop goroutine.
type stubBackend struct {
	outputs []compositor.OutputInfo
	events  chan struct{}
}

func (b *stubBackend) Name() string { return "stub" }
func (b *stubBackend) Capabilities() compositor.Capability {
	return compositor.CapMultiOutput
}
func (b *stubBackend) Outputs() []compositor.OutputInfo { return b.outputs }

func (b *stubBackend) CreateSurface(cfg compositor.SurfaceConfig) (compositor.Handle, error) {
	return &stubHandle{width: cfg.Output.PixelWidth, height: cfg.Output.PixelHeight}, nil
}
func (b *stubBackend) ConfigureSurface(h compositor.Handle, cfg compositor.SurfaceConfig) error {
	return nil
}
func (b *stubBackend) CommitSurface(h compositor.Handle) error { return nil }
func (b *stubBackend) SurfaceReady(h compositor.Handle) bool   { return true }
func (b *stubBackend) SurfaceSize(h compositor.Handle) (int, int) {
	hh := h.(*stubHandle)
	return hh.width, hh.height
}
func (b *stubBackend) CreateWindow(h compositor.Handle, width, height int) (compositor.Window, error) {
	return &stubWindow{fb: image.NewRGBA(image.Rect(0, 0, width, height))}, nil
}
func (b *stubBackend) DestroySurface(h compositor.Handle) {}
func (b *stubBackend) Close() error                       { return nil }
func (b *stubBackend) Events() <-chan struct{}            { return b.events }
func (b *stubBackend) Dispatch() error                    { return nil }

func writeWalls(t *testing.T, dir string, n int) []string {
	t.Helper()
	names := []string{"a.png", "b.png", "c.png", "d.png"}
	var paths []string
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		c := color.RGBA{R: uint8(40 * (i + 1)), A: 255}
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p] = c.R
			img.Pix[p+3] = c.A
		}
		path := filepath.Join(dir, names[i])
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("create %s: %v", path, err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatalf("encode: %v", err)
		}
		f.Close()
		paths = append(paths, path)
	}
	return paths
}

// daemon bundles a running engine, its store and a test HTTP server.
type daemon struct {
	ts      *httptest.Server
	eng     *engine.Engine
	coord   *reload.Coordinator
	cfgPath string
	done    chan error
}

func writeConfig(t *testing.T, path, wallDir string) {
	t.Helper()
	content := fmt.Sprintf("framerate: 30\noutputs:\n  - name: \"*\"\n    path: %s\n    cycle: true\n    duration: 1h\n", wallDir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func startDaemon(t *testing.T, wallDir string, outputs ...string) *daemon {
	t.Helper()

	infos := make([]compositor.OutputInfo, 0, len(outputs))
	for _, name := range outputs {
		infos = append(infos, compositor.OutputInfo{
			Name:        name,
			Width:       8,
			Height:      8,
			PixelWidth:  8,
			PixelHeight: 8,
			Scale:       1,
		})
	}
	backend := &stubBackend{outputs: infos, events: make(chan struct{}, 1)}

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, cfgPath, wallDir)
	cfg := config.Config{
		Framerate: 30,
		Outputs: []config.OutputConfig{{
			Name:     "*",
			Path:     wallDir,
			Scale:    model.ScaleStretch,
			Easing:   model.EasingLinear,
			Duration: time.Hour,
			Cycle:    true,
		}},
	}

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var eng *engine.Engine
	coord := reload.NewCoordinator(cfgPath, func() {
		if eng != nil {
			eng.Wake()
		}
	}, logger)
	eng = engine.New(cfg, backend, db, coord, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Error("engine did not stop")
		}
	})

	srv := api.NewServer("127.0.0.1:0", db, eng, coord, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &daemon{ts: ts, eng: eng, coord: coord, cfgPath: cfgPath, done: done}
}

func (d *daemon) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(d.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v\n%s", path, err, body)
		}
	}
	return resp.StatusCode
}

func (d *daemon) post(t *testing.T, path string) int {
	t.Helper()
	resp, err := http.Post(d.ts.URL+path, "application/json", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

type outputState struct {
	Name      string `json:"name"`
	Wallpaper string `json:"wallpaper"`
	Cycling   bool   `json:"cycling"`
	Playlist  int    `json:"playlist"`
	Pending   bool   `json:"pending"`
}

// waitWallpaper polls one output until its wallpaper matches want.
func (d *daemon) waitWallpaper(t *testing.T, output, want string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	var last outputState
	for time.Now().Before(deadline) {
		if code := d.get(t, "/v1/outputs/"+output, &last); code == http.StatusOK && last.Wallpaper == want {
			return
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("output %s wallpaper = %q, want %q", output, last.Wallpaper, want)
}

func TestDaemonServesStatusAndOutputs(t *testing.T) {
	wallDir := t.TempDir()
	paths := writeWalls(t, wallDir, 2)
	d := startDaemon(t, wallDir, "DP-1")

	d.waitWallpaper(t, "DP-1", paths[0])

	var status struct {
		Backend     string `json:"backend"`
		Running     bool   `json:"running"`
		Paused      bool   `json:"paused"`
		OutputCount int    `json:"output_count"`
	}
	if code := d.get(t, "/v1/status", &status); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if status.Backend != "stub" || !status.Running || status.Paused {
		t.Errorf("status = %+v", status)
	}
	if status.OutputCount != 1 {
		t.Errorf("output_count = %d, want 1", status.OutputCount)
	}

	var outputs []outputState
	if code := d.get(t, "/v1/outputs", &outputs); code != http.StatusOK {
		t.Fatalf("outputs = %d", code)
	}
	if len(outputs) != 1 || outputs[0].Name != "DP-1" || outputs[0].Playlist != 2 {
		t.Errorf("outputs = %+v", outputs)
	}
}

func TestSkipAdvancesWallpaperOverHTTP(t *testing.T) {
	wallDir := t.TempDir()
	paths := writeWalls(t, wallDir, 3)
	d := startDaemon(t, wallDir, "DP-1", "HDMI-A-1")

	d.waitWallpaper(t, "DP-1", paths[0])
	d.waitWallpaper(t, "HDMI-A-1", paths[0])

	if code := d.post(t, "/v1/next"); code != http.StatusAccepted {
		t.Fatalf("next = %d", code)
	}
	d.waitWallpaper(t, "DP-1", paths[1])
	d.waitWallpaper(t, "HDMI-A-1", paths[1])
}

func TestHistoryRecordedAcrossSkips(t *testing.T) {
	wallDir := t.TempDir()
	paths := writeWalls(t, wallDir, 3)
	d := startDaemon(t, wallDir, "DP-1")

	d.waitWallpaper(t, "DP-1", paths[0])
	if code := d.post(t, "/v1/next"); code != http.StatusAccepted {
		t.Fatalf("next = %d", code)
	}
	d.waitWallpaper(t, "DP-1", paths[1])

	var hist struct {
		Output  string `json:"output"`
		Entries []struct {
			Path string `json:"path"`
		} `json:"entries"`
	}
	if code := d.get(t, "/v1/outputs/DP-1/history", &hist); code != http.StatusOK {
		t.Fatalf("history = %d", code)
	}
	if len(hist.Entries) < 2 {
		t.Fatalf("history entries = %d, want at least 2", len(hist.Entries))
	}
	// Newest first.
	if hist.Entries[0].Path != paths[1] {
		t.Errorf("latest history = %q, want %q", hist.Entries[0].Path, paths[1])
	}
}

func TestPauseAndResumeOverHTTP(t *testing.T) {
	wallDir := t.TempDir()
	paths := writeWalls(t, wallDir, 2)
	d := startDaemon(t, wallDir, "DP-1")
	d.waitWallpaper(t, "DP-1", paths[0])

	if code := d.post(t, "/v1/pause"); code != http.StatusOK {
		t.Fatalf("pause = %d", code)
	}
	var status struct {
		Paused bool `json:"paused"`
	}
	deadline := time.Now().Add(waitTimeout)
	for !status.Paused && time.Now().Before(deadline) {
		d.get(t, "/v1/status", &status)
		time.Sleep(pollInterval)
	}
	if !status.Paused {
		t.Fatal("daemon never reported paused")
	}

	if code := d.post(t, "/v1/resume"); code != http.StatusOK {
		t.Fatalf("resume = %d", code)
	}
	d.get(t, "/v1/status", &status)
	if status.Paused {
		t.Error("still paused after resume")
	}
}

func TestReloadSwitchesPlaylistOverHTTP(t *testing.T) {
	oldDir := t.TempDir()
	oldPaths := writeWalls(t, oldDir, 2)
	newDir := t.TempDir()
	newPaths := writeWalls(t, newDir, 2)

	d := startDaemon(t, oldDir, "DP-1")
	d.waitWallpaper(t, "DP-1", oldPaths[0])

	writeConfig(t, d.cfgPath, newDir)
	if code := d.post(t, "/v1/reload"); code != http.StatusAccepted {
		t.Fatalf("reload = %d", code)
	}
	d.waitWallpaper(t, "DP-1", newPaths[0])
}
