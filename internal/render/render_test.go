package render_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1ay1/neowall-sub002/internal/model"
	"github.com/1ay1/neowall-sub002/internal/render"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestScaleStretchFillsFrame(t *testing.T) {
	src := solid(10, 10, color.RGBA{R: 255, A: 255})
	dst := render.Scale(src, 40, 20, model.ScaleStretch)

	if got := dst.RGBAAt(0, 0); got.R < 250 {
		t.Errorf("corner pixel = %+v, want red", got)
	}
	if got := dst.RGBAAt(39, 19); got.R < 250 {
		t.Errorf("far corner pixel = %+v, want red", got)
	}
}

func TestScaleFitLetterboxes(t *testing.T) {
	// Wide source into a tall destination: top rows must stay black.
	src := solid(100, 10, color.RGBA{G: 255, A: 255})
	dst := render.Scale(src, 100, 100, model.ScaleFit)

	if got := dst.RGBAAt(50, 2); got.G != 0 {
		t.Errorf("letterbox band pixel = %+v, want black", got)
	}
	if got := dst.RGBAAt(50, 50); got.G < 250 {
		t.Errorf("center pixel = %+v, want green", got)
	}
}

func TestScaleFillCovers(t *testing.T) {
	src := solid(100, 10, color.RGBA{B: 255, A: 255})
	dst := render.Scale(src, 100, 100, model.ScaleFill)

	// Cover mode leaves no unpainted band.
	for _, y := range []int{0, 50, 99} {
		if got := dst.RGBAAt(50, y); got.B < 250 {
			t.Errorf("pixel at y=%d = %+v, want blue", y, got)
		}
	}
}

func TestScaleCenterPastesUnscaled(t *testing.T) {
	src := solid(10, 10, color.RGBA{R: 255, A: 255})
	dst := render.Scale(src, 30, 30, model.ScaleCenter)

	if got := dst.RGBAAt(15, 15); got.R < 250 {
		t.Errorf("center pixel = %+v, want red", got)
	}
	if got := dst.RGBAAt(2, 2); got.R != 0 {
		t.Errorf("border pixel = %+v, want black", got)
	}
}

func TestComposeStatic(t *testing.T) {
	var st render.State
	st.SetStatic(solid(4, 4, color.RGBA{R: 200, A: 255}))

	fb := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if done := st.Compose(fb, time.Now()); done {
		t.Error("static compose reported a completed transition")
	}
	if got := fb.RGBAAt(2, 2); got.R != 200 {
		t.Errorf("pixel = %+v, want R=200", got)
	}
}

func TestTransitionProgressAndCompletion(t *testing.T) {
	var st render.State
	start := time.Now()
	from := solid(4, 4, color.RGBA{A: 255})
	to := solid(4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	st.SetStatic(from)
	st.BeginTransition(to, start, time.Second, model.EasingLinear)

	if !st.Active(start.Add(500 * time.Millisecond)) {
		t.Error("Active = false mid-transition")
	}

	fb := image.NewRGBA(image.Rect(0, 0, 4, 4))

	// Midpoint: roughly half blended.
	if done := st.Compose(fb, start.Add(500*time.Millisecond)); done {
		t.Error("transition completed at midpoint")
	}
	mid := fb.RGBAAt(1, 1)
	if mid.R < 100 || mid.R > 155 {
		t.Errorf("midpoint pixel R = %d, want ~127", mid.R)
	}

	// Past the end: completes exactly once, leaves the target image.
	if done := st.Compose(fb, start.Add(1100*time.Millisecond)); !done {
		t.Error("transition did not report completion")
	}
	if st.Active(start.Add(1100 * time.Millisecond)) {
		t.Error("Active = true after completion")
	}
	if got := fb.RGBAAt(1, 1); got.R != 255 {
		t.Errorf("final pixel = %+v, want white", got)
	}
	if done := st.Compose(fb, start.Add(2*time.Second)); done {
		t.Error("completion reported twice")
	}
}

func TestTransitionFromBlackWithoutCurrent(t *testing.T) {
	var st render.State
	start := time.Now()
	st.BeginTransition(solid(4, 4, color.RGBA{R: 255, A: 255}), start, time.Second, model.EasingLinear)

	fb := image.NewRGBA(image.Rect(0, 0, 4, 4))
	st.Compose(fb, start.Add(100*time.Millisecond))
	if got := fb.RGBAAt(1, 1); got.R > 60 {
		t.Errorf("early frame pixel R = %d, want near black", got.R)
	}
}

func TestZeroDurationTransitionIsStatic(t *testing.T) {
	var st render.State
	to := solid(4, 4, color.RGBA{R: 9, A: 255})
	st.BeginTransition(to, time.Now(), 0, model.EasingLinear)
	if st.Active(time.Now()) {
		t.Error("zero-duration transition reported active")
	}
	if st.Current != to {
		t.Error("zero-duration transition did not apply target image")
	}
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, solid(2, 2, color.RGBA{A: 255})); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanPlaylistDirectorySorted(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "b.png")
	writePNG(t, dir, "a.png")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := render.ScanPlaylist(dir)
	if err != nil {
		t.Fatalf("ScanPlaylist: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("playlist = %v, want 2 images", list)
	}
	if filepath.Base(list[0]) != "a.png" || filepath.Base(list[1]) != "b.png" {
		t.Errorf("playlist not sorted: %v", list)
	}
}

func TestScanPlaylistSingleFile(t *testing.T) {
	dir := t.TempDir()
	p := writePNG(t, dir, "only.png")

	list, err := render.ScanPlaylist(p)
	if err != nil {
		t.Fatalf("ScanPlaylist: %v", err)
	}
	if len(list) != 1 || list[0] != p {
		t.Errorf("playlist = %v, want [%s]", list, p)
	}
}

func TestScanPlaylistMissingPath(t *testing.T) {
	if _, err := render.ScanPlaylist("/nonexistent/neowall-test"); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestFileDecoderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := writePNG(t, dir, "img.png")

	img, err := render.FileDecoder{}.Decode(p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 2 {
		t.Errorf("decoded bounds = %v", img.Bounds())
	}
}
