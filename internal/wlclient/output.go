package wlclient

// wl_output events.
const (
	evOutputGeometry    = 0
	evOutputMode        = 1
	evOutputDone        = 2
	evOutputScale       = 3
	evOutputName        = 4
	evOutputDescription = 5

	outputModeCurrent = 0x1
)

// Output accumulates wl_output state. Events stream in piecewise; the
// done event marks the set atomically applied. Fields are only safe to
// read on the dispatching goroutine.
type Output struct {
	display *Display
	id      uint32

	// RegistryName is the wl_registry name the output was bound from,
	// used to match global_remove on unplug.
	RegistryName uint32

	Name        string
	Description string
	X, Y        int32
	Width       int32
	Height      int32
	Scale       int32
	Done        bool

	onDone func(*Output)
}

// BindOutput binds a wl_output by registry name. Version 4 carries the
// name and description events; older compositors get lower versions and
// the output falls back to a synthesized name.
func BindOutput(d *Display, g Global) (*Output, error) {
	version := g.Version
	if version > 4 {
		version = 4
	}
	id, err := d.Registry().BindName(g.Name, "wl_output", version)
	if err != nil {
		return nil, err
	}
	o := &Output{display: d, id: id, RegistryName: g.Name, Scale: 1}
	d.register(id, o.handleEvent)
	return o, nil
}

// OnDone installs a callback invoked each time the output's state set
// completes. It runs on the dispatching goroutine.
func (o *Output) OnDone(fn func(*Output)) { o.onDone = fn }

func (o *Output) handleEvent(opcode uint16, body []byte, fds []int) {
	closeAll(fds)
	rd := newReader(body)
	switch opcode {
	case evOutputGeometry:
		o.X = rd.int32()
		o.Y = rd.int32()
	case evOutputMode:
		flags := rd.uint32()
		w := rd.int32()
		h := rd.int32()
		if flags&outputModeCurrent != 0 {
			o.Width = w
			o.Height = h
		}
	case evOutputScale:
		o.Scale = rd.int32()
	case evOutputName:
		o.Name = rd.string()
	case evOutputDescription:
		o.Description = rd.string()
	case evOutputDone:
		o.Done = true
		if o.onDone != nil {
			o.onDone(o)
		}
	}
}

// ID returns the wl_output object id, used when creating layer surfaces
// pinned to this output.
func (o *Output) ID() uint32 { return o.id }

// Release unregisters the output object after unplug.
func (o *Output) Release() {
	o.display.unregister(o.id)
}
