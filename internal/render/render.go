// Package render is the rendering collaborator invoked by the event loop
// once per output per frame: it scales wallpaper images to output geometry
// and composes crossfade transitions into the bound framebuffer. Image
// decoding sits behind the Decoder interface.
package render

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/1ay1/neowall-sub002/internal/model"
)

// Decoder turns a file path into a decoded image. The default implementation
// uses the stdlib registry; callers may substitute their own (procedural
// sources, caches).
type Decoder interface {
	Decode(path string) (image.Image, error)
}

// FileDecoder decodes image files through the image package's format
// registry (png, jpeg, gif plus the formats registered in formats.go).
type FileDecoder struct{}

func (FileDecoder) Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wallpaper: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Scale maps src onto a w x h framebuffer according to mode. Fit letterboxes,
// fill covers and crops, center pastes unscaled, stretch ignores aspect.
func Scale(src image.Image, w, h int, mode model.ScaleMode) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 || w == 0 || h == 0 {
		return dst
	}

	switch mode {
	case model.ScaleStretch:
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, xdraw.Src, nil)

	case model.ScaleCenter:
		offset := image.Pt((w-sw)/2, (h-sh)/2)
		draw.Draw(dst, image.Rectangle{Min: offset, Max: offset.Add(image.Pt(sw, sh))}, src, sb.Min, draw.Src)

	case model.ScaleFit:
		r := fitRect(sw, sh, w, h, false)
		xdraw.CatmullRom.Scale(dst, r, src, sb, xdraw.Src, nil)

	default: // fill
		r := fitRect(sw, sh, w, h, true)
		xdraw.CatmullRom.Scale(dst, r, src, sb, xdraw.Src, nil)
	}
	return dst
}

// fitRect computes the destination rectangle preserving the source aspect
// ratio. cover=false fits inside (letterbox); cover=true fills and crops.
func fitRect(sw, sh, dw, dh int, cover bool) image.Rectangle {
	srcAspect := float64(sw) / float64(sh)
	dstAspect := float64(dw) / float64(dh)

	var w, h int
	fitWidth := srcAspect > dstAspect
	if cover {
		fitWidth = !fitWidth
	}
	if fitWidth {
		w = dw
		h = int(float64(dw) / srcAspect)
	} else {
		h = dh
		w = int(float64(dh) * srcAspect)
	}
	x := (dw - w) / 2
	y := (dh - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// State is the per-output render and transition state. All access is from the
// event-loop goroutine.
type State struct {
	Current *image.RGBA
	Next    *image.RGBA

	Start    time.Time
	Duration time.Duration
	Easing   model.EasingMode

	fading bool
}

// SetStatic replaces the current image with no transition.
func (s *State) SetStatic(img *image.RGBA) {
	s.Current = img
	s.Next = nil
	s.fading = false
}

// BeginTransition starts a crossfade from the current image to next. With no
// current image the fade starts from black.
func (s *State) BeginTransition(next *image.RGBA, now time.Time, d time.Duration, easing model.EasingMode) {
	if d <= 0 {
		s.SetStatic(next)
		return
	}
	if s.Current == nil {
		s.Current = image.NewRGBA(next.Bounds())
	}
	s.Next = next
	s.Start = now
	s.Duration = d
	s.Easing = easing
	s.fading = true
}

// Active reports whether a transition is in flight at the given time.
func (s *State) Active(now time.Time) bool {
	return s.fading && now.Sub(s.Start) < s.Duration
}

// Compose renders the frame for the given time into fb and reports whether a
// running transition completed on this frame.
func (s *State) Compose(fb *image.RGBA, now time.Time) (done bool) {
	if !s.fading {
		if s.Current != nil {
			draw.Draw(fb, fb.Bounds(), s.Current, s.Current.Bounds().Min, draw.Src)
		}
		return false
	}

	progress := float64(now.Sub(s.Start)) / float64(s.Duration)
	if progress >= 1 {
		s.Current = s.Next
		s.Next = nil
		s.fading = false
		if s.Current != nil {
			draw.Draw(fb, fb.Bounds(), s.Current, s.Current.Bounds().Min, draw.Src)
		}
		return true
	}

	alpha := model.Ease(s.Easing, progress)
	blend(fb, s.Current, s.Next, alpha)
	return false
}

// blend writes a*(1-t) + b*t into fb. All three images must share dimensions.
func blend(fb, a, b *image.RGBA, t float64) {
	w := uint32(t * 256)
	if w > 256 {
		w = 256
	}
	inv := 256 - w

	n := len(fb.Pix)
	if len(a.Pix) < n || len(b.Pix) < n {
		return
	}
	for i := 0; i < n; i++ {
		fb.Pix[i] = uint8((uint32(a.Pix[i])*inv + uint32(b.Pix[i])*w) >> 8)
	}
}

// imageExtensions recognized by ScanPlaylist.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// ScanPlaylist resolves a configured wallpaper path into an ordered list of
// image files: a file yields itself, a directory yields its image entries
// sorted by name.
func ScanPlaylist(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("wallpaper path: %w", err)
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("scan wallpaper dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			out = append(out, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
