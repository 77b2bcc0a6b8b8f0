// Package x11root implements the X11 backend. There is no surface to
// create on X11: the wallpaper is painted into a screen-sized pixmap that
// becomes the root window background, with the _XROOTPMAP_ID and
// ESETROOT_PMAP_ID properties updated so compositing managers and
// pseudo-transparent terminals pick it up.
package x11root

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/1ay1/neowall-sub002/internal/compositor"
)

const (
	backendName = "x11-root"

	// Priority places this backend last: it only wins when no Wayland
	// backend could initialize.
	Priority = 10
)

// Descriptor returns the registry descriptor for this backend.
func Descriptor() compositor.Descriptor {
	return compositor.Descriptor{
		Name:        backendName,
		Description: "X11 root window pixmap",
		Priority:    Priority,
		New:         New,
	}
}

// Backend is a live X11 connection with a retained root pixmap.
type Backend struct {
	logger *slog.Logger
	xu     *xgbutil.XUtil
	root   xproto.Window
	screen *xproto.ScreenInfo

	pixmap xproto.Pixmap
	gc     xproto.Gcontext

	rootPmapAtom xproto.Atom
	esetrootAtom xproto.Atom

	mu      sync.Mutex
	outputs []compositor.OutputInfo

	onAdd    func(compositor.OutputInfo)
	onRemove func(name string)

	events  chan struct{}
	pending chan xgbEvent
	done    chan struct{}
}

type xgbEvent struct {
	ev  interface{}
	err error
}

// New connects to the X server. Returns ErrUnavailable when there is no X11
// session reachable.
func New(ctx context.Context, env compositor.EnvironmentInfo, logger *slog.Logger) (compositor.Instance, error) {
	if os.Getenv("DISPLAY") == "" {
		return nil, fmt.Errorf("%w: no x11 session", compositor.ErrUnavailable)
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", compositor.ErrUnavailable, err)
	}

	b := &Backend{
		logger:  logger.With("backend", backendName),
		xu:      xu,
		root:    xu.RootWin(),
		screen:  xu.Screen(),
		events:  make(chan struct{}, 1),
		pending: make(chan xgbEvent, 64),
		done:    make(chan struct{}),
	}
	if err := b.init(); err != nil {
		xu.Conn().Close()
		return nil, err
	}
	go b.readPump()
	return b, nil
}

func (b *Backend) init() error {
	conn := b.xu.Conn()

	if err := randr.Init(conn); err != nil {
		return fmt.Errorf("x11root: randr init: %w", err)
	}

	outputs, err := b.enumerateOutputs()
	if err != nil {
		return err
	}
	b.outputs = outputs

	// Screen-sized background pixmap shared by all output surfaces.
	pixmap, err := xproto.NewPixmapId(conn)
	if err != nil {
		return fmt.Errorf("x11root: pixmap id: %w", err)
	}
	err = xproto.CreatePixmapChecked(conn, b.screen.RootDepth, pixmap,
		xproto.Drawable(b.root), b.screen.WidthInPixels, b.screen.HeightInPixels).Check()
	if err != nil {
		return fmt.Errorf("x11root: create pixmap: %w", err)
	}
	b.pixmap = pixmap

	gc, err := xproto.NewGcontextId(conn)
	if err != nil {
		return fmt.Errorf("x11root: gc id: %w", err)
	}
	err = xproto.CreateGCChecked(conn, gc, xproto.Drawable(pixmap), 0, nil).Check()
	if err != nil {
		return fmt.Errorf("x11root: create gc: %w", err)
	}
	b.gc = gc

	if b.rootPmapAtom, err = b.internAtom("_XROOTPMAP_ID"); err != nil {
		return err
	}
	if b.esetrootAtom, err = b.internAtom("ESETROOT_PMAP_ID"); err != nil {
		return err
	}

	// Hotplug notifications via RandR screen change events.
	err = randr.SelectInputChecked(conn, b.root,
		randr.NotifyMaskScreenChange|randr.NotifyMaskCrtcChange|randr.NotifyMaskOutputChange).Check()
	if err != nil {
		b.logger.Warn("randr select input failed, hotplug disabled", "error", err)
	}

	b.logger.Info("backend initialized", "outputs", len(b.outputs),
		"screen", fmt.Sprintf("%dx%d", b.screen.WidthInPixels, b.screen.HeightInPixels))
	return nil
}

func (b *Backend) internAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(b.xu.Conn(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("x11root: intern %s: %w", name, err)
	}
	return reply.Atom, nil
}

func (b *Backend) enumerateOutputs() ([]compositor.OutputInfo, error) {
	conn := b.xu.Conn()
	resources, err := randr.GetScreenResources(conn, b.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("x11root: screen resources: %w", err)
	}

	var outputs []compositor.OutputInfo
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("X11-%d", i)
		if out, err := randr.GetOutputInfo(conn, info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}

		outputs = append(outputs, compositor.OutputInfo{
			Name:        name,
			X:           int(info.X),
			Y:           int(info.Y),
			Width:       int(info.Width),
			Height:      int(info.Height),
			PixelWidth:  int(info.Width),
			PixelHeight: int(info.Height),
			Scale:       1,
			ID:          uint32(crtc),
		})
	}
	return outputs, nil
}

// readPump moves X events into the pending queue on its own goroutine.
// Handlers only run during Dispatch on the loop goroutine.
func (b *Backend) readPump() {
	conn := b.xu.Conn()
	for {
		ev, err := conn.WaitForEvent()
		if ev == nil && err == nil {
			// Connection closed.
			select {
			case b.pending <- xgbEvent{err: compositor.ErrDisconnected}:
			default:
			}
			b.signal()
			return
		}
		select {
		case b.pending <- xgbEvent{ev: ev, err: err}:
		default:
			// Queue full; drop. RandR changes are re-enumerated on the
			// next event anyway.
		}
		b.signal()
		select {
		case <-b.done:
			return
		default:
		}
	}
}

func (b *Backend) signal() {
	select {
	case b.events <- struct{}{}:
	default:
	}
}

// Events implements compositor.EventSource.
func (b *Backend) Events() <-chan struct{} { return b.events }

// Dispatch implements compositor.EventSource.
func (b *Backend) Dispatch() error {
	for {
		select {
		case e := <-b.pending:
			if e.err != nil {
				if e.err == compositor.ErrDisconnected {
					return e.err
				}
				b.logger.Warn("x11 event error", "error", e.err)
				continue
			}
			switch e.ev.(type) {
			case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
				b.rescanOutputs()
			}
		default:
			return nil
		}
	}
}

// rescanOutputs re-enumerates RandR outputs and diffs against the known set.
func (b *Backend) rescanOutputs() {
	fresh, err := b.enumerateOutputs()
	if err != nil {
		b.logger.Warn("output rescan failed", "error", err)
		return
	}

	b.mu.Lock()
	old := b.outputs
	b.outputs = fresh
	b.mu.Unlock()

	known := make(map[string]bool, len(old))
	for _, o := range old {
		known[o.Name] = true
	}
	current := make(map[string]bool, len(fresh))
	for _, o := range fresh {
		current[o.Name] = true
	}

	for _, o := range fresh {
		if !known[o.Name] {
			b.logger.Info("output plugged", "output", o.Name)
			if b.onAdd != nil {
				b.onAdd(o)
			}
		}
	}
	for _, o := range old {
		if !current[o.Name] {
			b.logger.Info("output unplugged", "output", o.Name)
			if b.onRemove != nil {
				b.onRemove(o.Name)
			}
		}
	}
}

// Name implements compositor.Instance.
func (b *Backend) Name() string { return backendName }

// Capabilities implements compositor.Instance. The root pixmap is always
// behind everything; no layer or zone control exists.
func (b *Backend) Capabilities() compositor.Capability {
	return compositor.CapMultiOutput
}

// Outputs implements compositor.Instance.
func (b *Backend) Outputs() []compositor.OutputInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]compositor.OutputInfo, len(b.outputs))
	copy(out, b.outputs)
	return out
}

// OnOutputChange implements compositor.OutputNotifier.
func (b *Backend) OnOutputChange(added func(compositor.OutputInfo), removed func(string)) {
	b.onAdd = added
	b.onRemove = removed
}

// Close implements compositor.Instance.
func (b *Backend) Close() error {
	b.logger.Info("closing backend")
	close(b.done)
	conn := b.xu.Conn()
	xproto.FreeGC(conn, b.gc)
	xproto.FreePixmap(conn, b.pixmap)
	conn.Close()
	return nil
}
