package layershell

import (
	"fmt"
	"image"

	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/wlclient"
)

// handle is this backend's surface handle. The compositor reports sizes in
// logical coordinates; pixel dimensions are logical times scale.
type handle struct {
	owner *Backend
	surf  *wlclient.Surface
	layer *wlclient.LayerSurface

	output compositor.OutputInfo
	scale  int

	// Last acked logical size from a configure event; zero until the first
	// configure arrives.
	width  int
	height int

	configured bool
	closed     bool
}

// BackendName implements compositor.Handle.
func (h *handle) BackendName() string { return backendName }

func (b *Backend) wlLayer(l compositor.Layer) uint32 {
	switch l {
	case compositor.LayerBackground:
		return wlclient.LayerBackground
	case compositor.LayerBottom:
		return wlclient.LayerBottom
	case compositor.LayerTop:
		return wlclient.LayerTop
	default:
		return wlclient.LayerOverlay
	}
}

func wlAnchor(a compositor.Anchor) uint32 {
	var out uint32
	if a&compositor.AnchorTop != 0 {
		out |= wlclient.AnchorTop
	}
	if a&compositor.AnchorBottom != 0 {
		out |= wlclient.AnchorBottom
	}
	if a&compositor.AnchorLeft != 0 {
		out |= wlclient.AnchorLeft
	}
	if a&compositor.AnchorRight != 0 {
		out |= wlclient.AnchorRight
	}
	return out
}

// CreateSurface implements compositor.Instance.
func (b *Backend) CreateSurface(cfg compositor.SurfaceConfig) (compositor.Handle, error) {
	b.mu.Lock()
	wlOut, ok := b.outputs[cfg.Output.ID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("layershell: unknown output %q", cfg.Output.Name)
	}

	surf, err := b.comp.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("layershell: create surface: %w", err)
	}
	layer, err := b.shell.GetLayerSurface(surf, wlOut.ID(), b.wlLayer(cfg.Layer), namespace)
	if err != nil {
		surf.Destroy()
		return nil, fmt.Errorf("layershell: layer surface role: %w", err)
	}

	scale := cfg.Output.Scale
	if scale < 1 {
		scale = 1
	}
	return &handle{
		owner:  b,
		surf:   surf,
		layer:  layer,
		output: cfg.Output,
		scale:  scale,
	}, nil
}

func (b *Backend) handleOf(h compositor.Handle) (*handle, error) {
	hh, ok := h.(*handle)
	if !ok || hh.owner != b {
		return nil, fmt.Errorf("layershell: foreign surface handle %T", h)
	}
	return hh, nil
}

// ConfigureSurface implements compositor.Instance. A size of zero with
// all-edge anchoring lets the compositor size the surface to the output.
func (b *Backend) ConfigureSurface(h compositor.Handle, cfg compositor.SurfaceConfig) error {
	hh, err := b.handleOf(h)
	if err != nil {
		return err
	}
	if err := hh.layer.SetAnchor(wlAnchor(cfg.Anchors)); err != nil {
		return err
	}
	if err := hh.layer.SetExclusiveZone(cfg.ExclusiveZone); err != nil {
		return err
	}
	if err := hh.layer.SetSize(uint32(cfg.Width), uint32(cfg.Height)); err != nil {
		return err
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

// drainConfigure applies any pending configure events, acking each serial.
func (hh *handle) drainConfigure() {
	for {
		select {
		case cfg := <-hh.layer.Configure:
			hh.layer.AckConfigure(cfg.Serial)
			if cfg.Width > 0 && cfg.Height > 0 {
				hh.width = int(cfg.Width)
				hh.height = int(cfg.Height)
			}
			hh.configured = true
		case <-hh.layer.Closed:
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

// SurfaceSize implements compositor.Instance. Returns pixel dimensions,
// falling back to the output mode before the first configure.
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

// Damage implements compositor.Damager.
func (b *Backend) Damage(h compositor.Handle, x, y, width, height int) {
	hh, err := b.handleOf(h)
	if err != nil {
		return
	}
	hh.surf.DamageBuffer(int32(x), int32(y), int32(width), int32(height))
}

// DestroySurface implements compositor.Instance.
func (b *Backend) DestroySurface(h compositor.Handle) {
	hh, err := b.handleOf(h)
	if err != nil {
		return
	}
	hh.layer.Destroy()
	hh.surf.Destroy()
	b.display.Flush()
}

// window is a double-buffered wl_shm render target. Frame returns a staging
// image; Present converts it into whichever buffer the compositor has
// released and commits.
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
			return nil, fmt.Errorf("layershell: shm buffer: %w", err)
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
		// Collect any pending release events before falling back to the
		// other buffer.
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
