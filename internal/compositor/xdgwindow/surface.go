package xdgwindow

import (
	"fmt"
	"image"

	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/wlclient"
)

// handle is this backend's surface handle: a wl_surface with an xdg_toplevel
// role. Sizes come from toplevel configure events; before the first
// configure the requested output size is used.
type handle struct {
	owner *Backend
	surf  *wlclient.Surface
	xdg   *wlclient.XdgSurface

	output compositor.OutputInfo
	scale  int

	width  int
	height int

	configured bool
	closed     bool
}

// BackendName implements compositor.Handle.
func (h *handle) BackendName() string { return backendName }

// CreateSurface implements compositor.Instance.
func (b *Backend) CreateSurface(cfg compositor.SurfaceConfig) (compositor.Handle, error) {
	surf, err := b.comp.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("xdgwindow: create surface: %w", err)
	}
	xdg, err := b.wmBase.GetXdgSurface(surf)
	if err != nil {
		surf.Destroy()
		return nil, fmt.Errorf("xdgwindow: toplevel role: %w", err)
	}
	if err := xdg.SetAppID(appID); err != nil {
		return nil, err
	}
	if err := xdg.SetTitle("wallpaper: " + cfg.Output.Name); err != nil {
		return nil, err
	}

	scale := cfg.Output.Scale
	if scale < 1 {
		scale = 1
	}
	return &handle{
		owner:  b,
		surf:   surf,
		xdg:    xdg,
		output: cfg.Output,
		scale:  scale,
	}, nil
}

func (b *Backend) handleOf(h compositor.Handle) (*handle, error) {
	hh, ok := h.(*handle)
	if !ok || hh.owner != b {
		return nil, fmt.Errorf("xdgwindow: foreign surface handle %T", h)
	}
	return hh, nil
}

// ConfigureSurface implements compositor.Instance. Layer and anchor fields
// are ignored; xdg-shell has no placement requests.
func (b *Backend) ConfigureSurface(h compositor.Handle, cfg compositor.SurfaceConfig) error {
	hh, err := b.handleOf(h)
	if err != nil {
		return err
	}
	if cfg.Width > 0 && cfg.Height > 0 && !hh.configured {
		hh.width = cfg.Width
		hh.height = cfg.Height
	}
	return hh.surf.SetBufferScale(int32(hh.scale))
}

// CommitSurface implements compositor.Instance.
func (b *Backend) CommitSurface(h compositor.Handle) error {
	hh, err := b.handleOf(h)
	if err != nil {
		return err
	}
	if err := hh.surf.Commit(); err != nil {
		return err
	}
	return b.display.Flush()
}

func (hh *handle) drainConfigure() {
	for {
		select {
		case cfg := <-hh.xdg.Configure:
			hh.xdg.AckConfigure(cfg.Serial)
			if cfg.Width > 0 && cfg.Height > 0 {
				hh.width = int(cfg.Width)
				hh.height = int(cfg.Height)
			}
			hh.configured = true
		case <-hh.xdg.Closed:
			hh.closed = true
		default:
			return
		}
	}
}

// SurfaceReady implements compositor.Instance.
func (b *Backend) SurfaceReady(h compositor.Handle) bool {
	hh, err := b.handleOf(h)
	if err != nil {
		return false
	}
	hh.drainConfigure()
	return hh.configured && !hh.closed
}

// SurfaceSize implements compositor.Instance.
func (b *Backend) SurfaceSize(h compositor.Handle) (int, int) {
	hh, err := b.handleOf(h)
	if err != nil {
		return 0, 0
	}
	hh.drainConfigure()
	if hh.width > 0 && hh.height > 0 {
		return hh.width * hh.scale, hh.height * hh.scale
	}
	return hh.output.PixelWidth, hh.output.PixelHeight
}

// SetScale implements compositor.ScaleSetter.
func (b *Backend) SetScale(h compositor.Handle, scale int) error {
	hh, err := b.handleOf(h)
	if err != nil {
		return err
	}
	if scale < 1 {
		scale = 1
	}
	hh.scale = scale
	return hh.surf.SetBufferScale(int32(scale))
}

// DestroySurface implements compositor.Instance.
func (b *Backend) DestroySurface(h compositor.Handle) {
	hh, err := b.handleOf(h)
	if err != nil {
		return
	}
	hh.xdg.Destroy()
	hh.surf.Destroy()
	b.display.Flush()
}

// window is the same double-buffered shm target the layer-shell backend
// uses, attached to a toplevel surface instead.
type window struct {
	hh    *handle
	frame *image.RGBA
	bufs  [2]*wlclient.Buffer
	next  int

	width  int
	height int
}

// CreateWindow implements compositor.Instance.
func (b *Backend) CreateWindow(h compositor.Handle, width, height int) (compositor.Window, error) {
	hh, err := b.handleOf(h)
	if err != nil {
		return nil, err
	}
	w := &window{
		hh:     hh,
		frame:  image.NewRGBA(image.Rect(0, 0, width, height)),
		width:  width,
		height: height,
	}
	for i := range w.bufs {
		buf, err := b.shm.NewBuffer(width, height, wlclient.FormatXRGB8888)
		if err != nil {
			w.Destroy()
			return nil, fmt.Errorf("xdgwindow: shm buffer: %w", err)
		}
		w.bufs[i] = buf
	}
	return w, nil
}

// Size implements compositor.Window.
func (w *window) Size() (int, int) { return w.width, w.height }

// Frame implements compositor.Window.
func (w *window) Frame() *image.RGBA { return w.frame }

// Present implements compositor.Window.
func (w *window) Present() error {
	b := w.hh.owner

	buf := w.bufs[w.next]
	if buf.Busy() {
		b.display.DispatchPending()
		if buf.Busy() {
			w.next = 1 - w.next
			buf = w.bufs[w.next]
		}
	}

	buf.DrawRGBA(w.frame)
	if err := w.hh.surf.Attach(buf); err != nil {
		return err
	}
	w.hh.surf.DamageBuffer(0, 0, int32(w.width), int32(w.height))
	if err := w.hh.surf.Commit(); err != nil {
		return err
	}
	if err := b.display.Flush(); err != nil {
		return err
	}
	buf.MarkBusy()
	w.next = 1 - w.next
	return nil
}

// Destroy implements compositor.Window.
func (w *window) Destroy() {
	for i, buf := range w.bufs {
		if buf != nil {
			buf.Destroy()
			w.bufs[i] = nil
		}
	}
}
