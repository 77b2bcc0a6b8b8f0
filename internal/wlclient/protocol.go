package wlclient

// wl_compositor.
const (
	opCompositorCreateSurface = 0
)

// wl_surface.
const (
	opSurfaceDestroy        = 0
	opSurfaceAttach         = 1
	opSurfaceDamage         = 2
	opSurfaceFrame          = 3
	opSurfaceCommit         = 6
	opSurfaceSetBufferScale = 8
	opSurfaceDamageBuffer   = 9
)

// wl_callback.
const (
	evCallbackDone = 0
)

// Compositor wraps a bound wl_compositor global.
type Compositor struct {
	display *Display
	id      uint32
}

// BindCompositor binds the wl_compositor global at version 4, which is
// required for set_buffer_scale and damage_buffer.
func BindCompositor(d *Display) (*Compositor, error) {
	id, err := d.Registry().Bind("wl_compositor", 4)
	if err != nil {
		return nil, err
	}
	return &Compositor{display: d, id: id}, nil
}

// CreateSurface creates a new wl_surface.
func (c *Compositor) CreateSurface() (*Surface, error) {
	s := &Surface{display: c.display, id: c.display.allocID()}
	if err := c.display.sendRequest(c.id, opCompositorCreateSurface, nil, s.id); err != nil {
		return nil, err
	}
	c.display.register(s.id, func(opcode uint16, body []byte, fds []int) {
		// enter/leave events are not tracked.
		closeAll(fds)
	})
	return s, nil
}

// Surface is a wl_surface.
type Surface struct {
	display *Display
	id      uint32
}

// ID returns the wl_surface object id for shell role requests.
func (s *Surface) ID() uint32 { return s.id }

// Attach attaches a buffer at offset (0, 0). A nil buffer detaches.
func (s *Surface) Attach(b *Buffer) error {
	var bufID uint32
	if b != nil {
		bufID = b.ID()
	}
	return s.display.sendRequest(s.id, opSurfaceAttach, nil, bufID, int32(0), int32(0))
}

// Damage marks the whole surface damaged in surface coordinates.
func (s *Surface) Damage(width, height int32) error {
	return s.display.sendRequest(s.id, opSurfaceDamage, nil,
		int32(0), int32(0), width, height)
}

// DamageBuffer marks a region damaged in buffer coordinates.
func (s *Surface) DamageBuffer(x, y, width, height int32) error {
	return s.display.sendRequest(s.id, opSurfaceDamageBuffer, nil,
		x, y, width, height)
}

// SetBufferScale declares the attached buffer's scale factor.
func (s *Surface) SetBufferScale(scale int32) error {
	return s.display.sendRequest(s.id, opSurfaceSetBufferScale, nil, scale)
}

// Frame requests a frame callback. done is closed when the compositor
// signals it is a good time to draw the next frame.
func (s *Surface) Frame() (<-chan struct{}, error) {
	done := make(chan struct{})
	cbID := s.display.allocID()
	s.display.register(cbID, func(opcode uint16, body []byte, fds []int) {
		closeAll(fds)
		if opcode == evCallbackDone {
			s.display.unregister(cbID)
			close(done)
		}
	})
	if err := s.display.sendRequest(s.id, opSurfaceFrame, nil, cbID); err != nil {
		s.display.unregister(cbID)
		return nil, err
	}
	return done, nil
}

// Commit atomically applies pending surface state.
func (s *Surface) Commit() error {
	return s.display.sendRequest(s.id, opSurfaceCommit, nil)
}

// Destroy destroys the surface.
func (s *Surface) Destroy() {
	s.display.sendRequest(s.id, opSurfaceDestroy, nil)
	s.display.unregister(s.id)
}
