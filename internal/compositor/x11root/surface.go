package x11root

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1ay1/neowall-sub002/internal/compositor"
)

// putImageChunk keeps each PutImage request comfortably under the server's
// maximum request length.
const putImageChunk = 256 * 1024

// handle is this backend's surface handle: a rectangle of the shared root
// pixmap, one per output. Configuration is synchronous.
type handle struct {
	owner  *Backend
	output compositor.OutputInfo
}

// BackendName implements compositor.Handle.
func (h *handle) BackendName() string { return backendName }

// CreateSurface implements compositor.Instance.
func (b *Backend) CreateSurface(cfg compositor.SurfaceConfig) (compositor.Handle, error) {
	return &handle{owner: b, output: cfg.Output}, nil
}

func (b *Backend) handleOf(h compositor.Handle) (*handle, error) {
	hh, ok := h.(*handle)
	if !ok || hh.owner != b {
		return nil, fmt.Errorf("x11root: foreign surface handle %T", h)
	}
	return hh, nil
}

// ConfigureSurface implements compositor.Instance. X11 has no per-surface
// placement requests; geometry comes from RandR.
func (b *Backend) ConfigureSurface(h compositor.Handle, cfg compositor.SurfaceConfig) error {
	hh, err := b.handleOf(h)
	if err != nil {
		return err
	}
	hh.output = cfg.Output
	return nil
}

// CommitSurface implements compositor.Instance. A no-op: PutImage during
// Present is immediately visible in the pixmap.
func (b *Backend) CommitSurface(h compositor.Handle) error {
	_, err := b.handleOf(h)
	return err
}

// SurfaceReady implements compositor.Instance. Always true: configuration
// is synchronous, there is no compositor ack to wait for.
func (b *Backend) SurfaceReady(h compositor.Handle) bool {
	_, err := b.handleOf(h)
	return err == nil
}

// SurfaceSize implements compositor.Instance.
func (b *Backend) SurfaceSize(h compositor.Handle) (int, int) {
	hh, err := b.handleOf(h)
	if err != nil {
		return 0, 0
	}
	return hh.output.PixelWidth, hh.output.PixelHeight
}

// DestroySurface implements compositor.Instance. The shared pixmap outlives
// individual surfaces; nothing to release.
func (b *Backend) DestroySurface(h compositor.Handle) {}

// window renders one output's rectangle of the root pixmap.
type window struct {
	hh     *handle
	frame  *image.RGBA
	width  int
	height int
}

// CreateWindow implements compositor.Instance.
func (b *Backend) CreateWindow(h compositor.Handle, width, height int) (compositor.Window, error) {
	hh, err := b.handleOf(h)
	if err != nil {
		return nil, err
	}
	return &window{
		hh:     hh,
		frame:  image.NewRGBA(image.Rect(0, 0, width, height)),
		width:  width,
		height: height,
	}, nil
}

// Size implements compositor.Window.
func (w *window) Size() (int, int) { return w.width, w.height }

// Frame implements compositor.Window.
func (w *window) Frame() *image.RGBA { return w.frame }

// Present implements compositor.Window. Uploads the frame into the output's
// region of the root pixmap, then republishes the pixmap as the root
// background.
func (w *window) Present() error {
	b := w.hh.owner
	conn := b.xu.Conn()

	data := zpixmap(w.frame)
	stride := w.width * 4
	rowsPerChunk := putImageChunk / stride
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}

	dstX := int16(w.hh.output.X)
	for row := 0; row < w.height; row += rowsPerChunk {
		rows := rowsPerChunk
		if row+rows > w.height {
			rows = w.height - row
		}
		err := xproto.PutImageChecked(conn, xproto.ImageFormatZPixmap,
			xproto.Drawable(b.pixmap), b.gc,
			uint16(w.width), uint16(rows),
			dstX, int16(w.hh.output.Y+row),
			0, b.screen.RootDepth,
			data[row*stride:(row+rows)*stride]).Check()
		if err != nil {
			return fmt.Errorf("x11root: put image: %w", err)
		}
	}

	return b.publishPixmap()
}

// publishPixmap points the root window background and the retained pixmap
// properties at the shared pixmap, then clears the root so the server
// repaints it.
func (b *Backend) publishPixmap() error {
	conn := b.xu.Conn()

	pixmapBytes := []byte{
		byte(b.pixmap), byte(b.pixmap >> 8), byte(b.pixmap >> 16), byte(b.pixmap >> 24),
	}
	xproto.ChangeProperty(conn, xproto.PropModeReplace, b.root,
		b.rootPmapAtom, xproto.AtomPixmap, 32, 1, pixmapBytes)
	xproto.ChangeProperty(conn, xproto.PropModeReplace, b.root,
		b.esetrootAtom, xproto.AtomPixmap, 32, 1, pixmapBytes)

	err := xproto.ChangeWindowAttributesChecked(conn, b.root,
		xproto.CwBackPixmap, []uint32{uint32(b.pixmap)}).Check()
	if err != nil {
		return fmt.Errorf("x11root: set root background: %w", err)
	}
	err = xproto.ClearAreaChecked(conn, false, b.root, 0, 0, 0, 0).Check()
	if err != nil {
		return fmt.Errorf("x11root: clear root: %w", err)
	}
	return nil
}

// Destroy implements compositor.Window. The frame is garbage collected; the
// pixmap region keeps its last contents.
func (w *window) Destroy() {}

// zpixmap converts RGBA pixels to 32-bit ZPixmap layout (B, G, R, X).
func zpixmap(src *image.RGBA) []byte {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		drow := out[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			drow[x+0] = srow[x+2]
			drow[x+1] = srow[x+1]
			drow[x+2] = srow[x+0]
			drow[x+3] = 0
		}
	}
	return out
}
