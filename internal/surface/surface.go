// Package surface manages the lifecycle of per-output rendering surfaces:
// creation, configuration, commit, render-window binding, and ordered
// teardown through the selected compositor backend.
package surface

import (
	"fmt"
	"log/slog"

	"github.com/1ay1/neowall-sub002/internal/compositor"
)

// State is the lifecycle position of a Surface.
type State uint8

const (
	StateCreated State = iota
	StateConfigured
	StateCommitted
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConfigured:
		return "configured"
	case StateCommitted:
		return "committed"
	case StateDestroyed:
		return "destroyed"
	default:
		return "invalid"
	}
}

// Surface is one rendering target bound to one output. The backend-agnostic
// fields here are authoritative for the renderer; everything backend-specific
// hides behind the opaque handle.
type Surface struct {
	handle  compositor.Handle
	backend compositor.Instance

	Width  int
	Height int
	Scale  int

	configured bool
	committed  bool

	window compositor.Window
	state  State

	// OnResize, when set, is invoked after a dimension change has been
	// applied and the render window rebound.
	OnResize func(width, height int)
}

// Handle returns the backend-private handle.
func (s *Surface) Handle() compositor.Handle { return s.handle }

// Window returns the bound render window, or nil before binding.
func (s *Surface) Window() compositor.Window { return s.window }

// State returns the surface's lifecycle state.
func (s *Surface) State() State { return s.state }

// Configured reports whether the surface has been configured at least once.
func (s *Surface) Configured() bool { return s.configured }

// Committed reports whether pending state has been published.
func (s *Surface) Committed() bool { return s.committed }

// Manager drives surface lifecycles through one active backend instance.
// All methods must be called from the event-loop goroutine.
type Manager struct {
	backend compositor.Instance
	logger  *slog.Logger
}

// NewManager creates a surface manager for the active backend.
func NewManager(backend compositor.Instance, logger *slog.Logger) *Manager {
	return &Manager{
		backend: backend,
		logger:  logger.With("component", "surface"),
	}
}

// Create builds a backend surface for the configured output. The returned
// Surface is in StateCreated; Configure and Commit follow.
func (m *Manager) Create(cfg compositor.SurfaceConfig) (*Surface, error) {
	h, err := m.backend.CreateSurface(cfg)
	if err != nil {
		return nil, fmt.Errorf("create surface for %s: %w", cfg.Output.Name, err)
	}
	return &Surface{
		handle:  h,
		backend: m.backend,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Scale:   max(cfg.Output.Scale, 1),
		state:   StateCreated,
	}, nil
}

// Configure applies placement and size. Idempotent: calling it again (e.g.
// on resize) re-enters StateConfigured and invalidates the committed flag
// until the next Commit.
func (m *Manager) Configure(s *Surface, cfg compositor.SurfaceConfig) error {
	if s.state == StateDestroyed {
		return fmt.Errorf("configure on destroyed surface")
	}
	if err := s.backend.ConfigureSurface(s.handle, cfg); err != nil {
		return fmt.Errorf("configure surface: %w", err)
	}
	s.configured = true
	s.committed = false
	s.state = StateConfigured
	if cfg.Width > 0 {
		s.Width = cfg.Width
	}
	if cfg.Height > 0 {
		s.Height = cfg.Height
	}
	if cfg.Output.Scale > 0 {
		s.Scale = cfg.Output.Scale
	}
	return nil
}

// Commit publishes pending surface state to the compositor.
func (m *Manager) Commit(s *Surface) error {
	if !s.configured {
		return fmt.Errorf("commit before configure")
	}
	if err := s.backend.CommitSurface(s.handle); err != nil {
		return fmt.Errorf("commit surface: %w", err)
	}
	s.committed = true
	s.state = StateCommitted
	return nil
}

// EnsureWindow binds a render window sized to the surface's current pixel
// dimensions, replacing a previously bound window whose size no longer
// matches. The backend's reported surface size is authoritative; backends
// with asynchronous configuration may have adjusted it after Commit.
func (m *Manager) EnsureWindow(s *Surface) error {
	if !s.configured {
		return fmt.Errorf("window requested before configure")
	}

	w, h := s.backend.SurfaceSize(s.handle)
	if w <= 0 || h <= 0 {
		w, h = s.Width, s.Height
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("surface has no usable dimensions")
	}

	resized := w != s.Width || h != s.Height
	s.Width, s.Height = w, h

	if s.window != nil {
		cw, ch := s.window.Size()
		if cw == w && ch == h {
			return nil
		}
		// Dimensions changed: the old window must be fully destroyed before
		// a replacement is created against the same surface.
		s.window.Destroy()
		s.window = nil
	}

	win, err := s.backend.CreateWindow(s.handle, w, h)
	if err != nil {
		return fmt.Errorf("create render window %dx%d: %w", w, h, err)
	}
	s.window = win
	m.logger.Debug("render window bound", "width", w, "height", h)

	if resized && s.OnResize != nil {
		s.OnResize(w, h)
	}
	return nil
}

// IsReady reports whether the surface can be rendered to: configured,
// committed, acknowledged by the backend, and with a bound window.
func (m *Manager) IsReady(s *Surface) bool {
	return s.configured && s.committed && s.window != nil &&
		s.backend.SurfaceReady(s.handle)
}

// Destroy tears the surface down in strict order: render window first, then
// the backend surface (which owns the underlying platform object). Safe to
// call on a surface that never reached Committed, and idempotent.
func (m *Manager) Destroy(s *Surface) {
	if s == nil || s.state == StateDestroyed {
		return
	}
	if s.window != nil {
		s.window.Destroy()
		s.window = nil
	}
	s.backend.DestroySurface(s.handle)
	s.configured = false
	s.committed = false
	s.state = StateDestroyed
}
