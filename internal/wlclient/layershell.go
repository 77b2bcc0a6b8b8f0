package wlclient

// zwlr_layer_shell_v1.
const (
	opLayerShellGetLayerSurface = 0

	LayerBackground = 0
	LayerBottom     = 1
	LayerTop        = 2
	LayerOverlay    = 3
)

// zwlr_layer_surface_v1.
const (
	opLayerSurfaceSetSize          = 0
	opLayerSurfaceSetAnchor        = 1
	opLayerSurfaceSetExclusiveZone = 2
	opLayerSurfaceAckConfigure     = 6
	opLayerSurfaceDestroy          = 7

	evLayerSurfaceConfigure = 0
	evLayerSurfaceClosed    = 1

	AnchorTop    = 1
	AnchorBottom = 2
	AnchorLeft   = 4
	AnchorRight  = 8
)

// LayerShell wraps a bound zwlr_layer_shell_v1 global.
type LayerShell struct {
	display *Display
	id      uint32
}

// BindLayerShell binds the wlr layer shell global. Returns ErrNoGlobal on
// compositors that do not implement the protocol.
func BindLayerShell(d *Display) (*LayerShell, error) {
	id, err := d.Registry().Bind("zwlr_layer_shell_v1", 1)
	if err != nil {
		return nil, err
	}
	return &LayerShell{display: d, id: id}, nil
}

// LayerConfigure is one configure event from the compositor. The serial
// must be acked before attaching a buffer at the new size.
type LayerConfigure struct {
	Serial uint32
	Width  uint32
	Height uint32
}

// LayerSurface is a zwlr_layer_surface_v1 role on a wl_surface.
type LayerSurface struct {
	display *Display
	id      uint32

	// Configure receives configure events. Buffered so the read handler
	// never blocks the dispatch loop.
	Configure chan LayerConfigure
	// Closed receives one value when the compositor closes the surface.
	Closed chan struct{}
}

// GetLayerSurface assigns the layer surface role to surf, pinned to the
// given output (0 lets the compositor choose).
func (ls *LayerShell) GetLayerSurface(surf *Surface, outputID uint32, layer uint32, namespace string) (*LayerSurface, error) {
	l := &LayerSurface{
		display:   ls.display,
		id:        ls.display.allocID(),
		Configure: make(chan LayerConfigure, 8),
		Closed:    make(chan struct{}, 1),
	}
	err := ls.display.sendRequest(ls.id, opLayerShellGetLayerSurface, nil,
		l.id, surf.ID(), outputID, layer, namespace)
	if err != nil {
		return nil, err
	}
	ls.display.register(l.id, l.handleEvent)
	return l, nil
}

func (l *LayerSurface) handleEvent(opcode uint16, body []byte, fds []int) {
	closeAll(fds)
	switch opcode {
	case evLayerSurfaceConfigure:
		rd := newReader(body)
		cfg := LayerConfigure{
			Serial: rd.uint32(),
			Width:  rd.uint32(),
			Height: rd.uint32(),
		}
		select {
		case l.Configure <- cfg:
		default:
		}
	case evLayerSurfaceClosed:
		select {
		case l.Closed <- struct{}{}:
		default:
		}
	}
}

// SetSize requests a surface size; zero in a dimension anchored on both
// edges lets the compositor choose.
func (l *LayerSurface) SetSize(width, height uint32) error {
	return l.display.sendRequest(l.id, opLayerSurfaceSetSize, nil, width, height)
}

// SetAnchor anchors the surface to the given edges.
func (l *LayerSurface) SetAnchor(anchor uint32) error {
	return l.display.sendRequest(l.id, opLayerSurfaceSetAnchor, nil, anchor)
}

// SetExclusiveZone sets the exclusive zone. -1 means the surface ignores
// other exclusive zones and fills the whole output.
func (l *LayerSurface) SetExclusiveZone(zone int32) error {
	return l.display.sendRequest(l.id, opLayerSurfaceSetExclusiveZone, nil, zone)
}

// AckConfigure acknowledges a configure event by serial.
func (l *LayerSurface) AckConfigure(serial uint32) error {
	return l.display.sendRequest(l.id, opLayerSurfaceAckConfigure, nil, serial)
}

// Destroy destroys the layer surface role object.
func (l *LayerSurface) Destroy() {
	l.display.sendRequest(l.id, opLayerSurfaceDestroy, nil)
	l.display.unregister(l.id)
}
