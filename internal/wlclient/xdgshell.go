package wlclient

// xdg_wm_base.
const (
	opWmBaseGetXdgSurface = 2
	opWmBasePong          = 3

	evWmBasePing = 0
)

// xdg_surface.
const (
	opXdgSurfaceGetToplevel  = 1
	opXdgSurfaceAckConfigure = 4

	evXdgSurfaceConfigure = 0
)

// xdg_toplevel.
const (
	opToplevelSetTitle = 2
	opToplevelSetAppID = 3

	evToplevelConfigure = 0
	evToplevelClose     = 1
)

// WmBase wraps a bound xdg_wm_base global and answers its pings.
type WmBase struct {
	display *Display
	id      uint32
}

// BindWmBase binds the xdg_wm_base global.
func BindWmBase(d *Display) (*WmBase, error) {
	id, err := d.Registry().Bind("xdg_wm_base", 1)
	if err != nil {
		return nil, err
	}
	w := &WmBase{display: d, id: id}
	d.register(id, w.handleEvent)
	return w, nil
}

func (w *WmBase) handleEvent(opcode uint16, body []byte, fds []int) {
	closeAll(fds)
	if opcode == evWmBasePing {
		rd := newReader(body)
		w.display.sendRequest(w.id, opWmBasePong, nil, rd.uint32())
	}
}

// XdgConfigure is one xdg_toplevel/xdg_surface configure cycle. Width and
// height of zero mean the client picks its own size.
type XdgConfigure struct {
	Serial uint32
	Width  int32
	Height int32
}

// XdgSurface is an xdg_surface with its toplevel role.
type XdgSurface struct {
	display    *Display
	id         uint32
	toplevelID uint32

	pendingW int32
	pendingH int32

	// Configure receives completed configure cycles.
	Configure chan XdgConfigure
	// Closed receives one value when the user closes the window.
	Closed chan struct{}
}

// GetXdgSurface assigns the xdg_surface role to surf and creates a
// toplevel for it.
func (w *WmBase) GetXdgSurface(surf *Surface) (*XdgSurface, error) {
	x := &XdgSurface{
		display:   w.display,
		id:        w.display.allocID(),
		Configure: make(chan XdgConfigure, 8),
		Closed:    make(chan struct{}, 1),
	}
	err := w.display.sendRequest(w.id, opWmBaseGetXdgSurface, nil, x.id, surf.ID())
	if err != nil {
		return nil, err
	}
	w.display.register(x.id, x.handleSurfaceEvent)

	x.toplevelID = w.display.allocID()
	err = w.display.sendRequest(x.id, opXdgSurfaceGetToplevel, nil, x.toplevelID)
	if err != nil {
		w.display.unregister(x.id)
		return nil, err
	}
	w.display.register(x.toplevelID, x.handleToplevelEvent)
	return x, nil
}

func (x *XdgSurface) handleSurfaceEvent(opcode uint16, body []byte, fds []int) {
	closeAll(fds)
	if opcode == evXdgSurfaceConfigure {
		rd := newReader(body)
		cfg := XdgConfigure{Serial: rd.uint32(), Width: x.pendingW, Height: x.pendingH}
		select {
		case x.Configure <- cfg:
		default:
		}
	}
}

func (x *XdgSurface) handleToplevelEvent(opcode uint16, body []byte, fds []int) {
	closeAll(fds)
	switch opcode {
	case evToplevelConfigure:
		rd := newReader(body)
		x.pendingW = rd.int32()
		x.pendingH = rd.int32()
	case evToplevelClose:
		select {
		case x.Closed <- struct{}{}:
		default:
		}
	}
}

// SetTitle sets the toplevel title.
func (x *XdgSurface) SetTitle(title string) error {
	return x.display.sendRequest(x.toplevelID, opToplevelSetTitle, nil, title)
}

// SetAppID sets the toplevel application id.
func (x *XdgSurface) SetAppID(appID string) error {
	return x.display.sendRequest(x.toplevelID, opToplevelSetAppID, nil, appID)
}

// AckConfigure acknowledges a configure cycle by serial.
func (x *XdgSurface) AckConfigure(serial uint32) error {
	return x.display.sendRequest(x.id, opXdgSurfaceAckConfigure, nil, serial)
}

// Destroy destroys the toplevel and surface role objects.
func (x *XdgSurface) Destroy() {
	if x.toplevelID != 0 {
		x.display.unregister(x.toplevelID)
		x.toplevelID = 0
	}
	x.display.unregister(x.id)
}
