package compositor

import (
	"context"
	"errors"
	"image"
	"log/slog"
)

// Common backend errors.
var (
	// ErrUnavailable is returned by a backend constructor when its required
	// protocol is not advertised by the running compositor. It marks the
	// expected skip case during selection, not a failure.
	ErrUnavailable = errors.New("compositor: backend unavailable")

	// ErrNoBackend is returned by Select when no registered backend
	// initialized successfully.
	ErrNoBackend = errors.New("compositor: no backend available")

	// ErrAlreadyRegistered is returned when a descriptor name is registered twice.
	ErrAlreadyRegistered = errors.New("compositor: backend already registered")

	// ErrRegistryFull is returned when the registry's fixed table is exhausted.
	ErrRegistryFull = errors.New("compositor: registry full")

	// ErrDisconnected marks a fatal loss of the windowing connection.
	ErrDisconnected = errors.New("compositor: connection lost")
)

// Layer is the requested stacking depth for a surface.
type Layer uint8

const (
	LayerBackground Layer = iota
	LayerBottom
	LayerTop
	LayerOverlay
)

// Anchor is a bitmask of output edges a surface is anchored to.
type Anchor uint8

const (
	AnchorTop Anchor = 1 << iota
	AnchorBottom
	AnchorLeft
	AnchorRight

	AnchorAll = AnchorTop | AnchorBottom | AnchorLeft | AnchorRight
)

// SurfaceConfig describes the requested placement and size of a surface.
// A wallpaper surface uses the background layer, all-edge anchoring, no
// exclusive zone (-1) and no keyboard interactivity.
type SurfaceConfig struct {
	Output        OutputInfo
	Layer         Layer
	Anchors       Anchor
	ExclusiveZone int32
	Keyboard      bool
	Width         int
	Height        int
}

// OutputInfo describes one physical output as reported by a backend.
type OutputInfo struct {
	// Name is the connector name (e.g. "DP-1", "HDMI-A-1") and the identity
	// used for hotplug removal matching.
	Name        string
	Description string

	// Logical geometry in the global layout.
	X, Y          int
	Width, Height int

	// PixelWidth/PixelHeight are the buffer dimensions; Scale relates them to
	// the logical size.
	PixelWidth, PixelHeight int
	Scale                   int

	// ID is a backend-private identifier; opaque to callers.
	ID uint32
}

// Handle is a backend-private surface handle. Each backend returns its own
// concrete type and is the only code that may inspect it; callers treat it as
// opaque and pass it back unmodified.
type Handle interface {
	BackendName() string
}

// Window is the render target bound to a configured surface, sized to the
// surface's pixel dimensions. It must be destroyed and re-created whenever
// those dimensions change.
type Window interface {
	// Size returns the window's pixel dimensions.
	Size() (width, height int)

	// Frame returns the framebuffer for the frame being built. The returned
	// image is owned by the window and valid until the next Present.
	Frame() *image.RGBA

	// Present publishes the current frame. This is the potentially-blocking
	// swap and must never be called while shared locks are held.
	Present() error

	// Destroy releases the window. Safe to call once, before the owning
	// surface is destroyed.
	Destroy()
}

// Instance is an initialized backend. Exactly one instance is active at a
// time; all methods are called from the event-loop goroutine only.
type Instance interface {
	// Name returns the descriptor name this instance was created from.
	Name() string

	// Capabilities reports the protocol features this backend discovered.
	Capabilities() Capability

	// Outputs returns the currently known outputs.
	Outputs() []OutputInfo

	// CreateSurface creates a backend surface for the configured output.
	CreateSurface(cfg SurfaceConfig) (Handle, error)

	// ConfigureSurface applies placement and size. Idempotent; called again
	// on resize.
	ConfigureSurface(h Handle, cfg SurfaceConfig) error

	// CommitSurface publishes pending surface state to the compositor.
	CommitSurface(h Handle) error

	// SurfaceReady reports whether the compositor has acknowledged the
	// surface configuration. Backends with synchronous configuration always
	// return true after commit.
	SurfaceReady(h Handle) bool

	// SurfaceSize returns the current pixel dimensions of the surface, which
	// may differ from the requested size after a compositor-driven configure.
	SurfaceSize(h Handle) (width, height int)

	// CreateWindow binds a render window of the given pixel size to the surface.
	CreateWindow(h Handle, width, height int) (Window, error)

	// DestroySurface destroys the backend surface. The surface's window must
	// already be destroyed.
	DestroySurface(h Handle)

	// Close tears down the instance and its protocol connection. All surfaces
	// must already be destroyed.
	Close() error
}

// Optional backend operations, discovered by type assertion. Absence of any
// of these is not an error.

// EventSource is implemented by backends that deliver protocol events
// (output hotplug, surface configure/close, connection loss) to the event
// loop. Events are queued by an internal reader and must be dispatched via
// Dispatch on the loop goroutine.
type EventSource interface {
	// Events signals that protocol events are pending.
	Events() <-chan struct{}

	// Dispatch drains pending events, invoking backend handlers on the
	// calling goroutine. Returns ErrDisconnected (possibly wrapped) when the
	// connection is fatally gone.
	Dispatch() error
}

// Flusher is implemented by backends that buffer outgoing protocol requests.
type Flusher interface {
	Flush() error
}

// Syncer is implemented by backends that can perform a blocking round-trip,
// guaranteeing all prior requests have been processed by the compositor.
type Syncer interface {
	Sync(ctx context.Context) error
}

// ScaleSetter is implemented by backends that forward buffer scale hints.
type ScaleSetter interface {
	SetScale(h Handle, scale int) error
}

// Damager is implemented by backends that track damage regions; backends
// without it repaint the whole surface on every present.
type Damager interface {
	Damage(h Handle, x, y, width, height int)
}

// OutputNotifier is implemented by backends that accept a callback for output
// hotplug. The callback runs during Dispatch, on the loop goroutine; it must
// not configure surfaces directly (see display.Directory pending init).
type OutputNotifier interface {
	OnOutputChange(added func(OutputInfo), removed func(name string))
}

// Descriptor identifies a registerable backend: name, human description,
// selection priority (higher wins) and constructor. Descriptors are
// registered once at startup and immutable afterwards.
type Descriptor struct {
	Name        string
	Description string
	Priority    int

	// New attempts to initialize the backend. Returning ErrUnavailable
	// (wrapped) means the protocol is absent and the backend is skipped.
	// On any error New must not leak partially-acquired protocol state.
	New func(ctx context.Context, env EnvironmentInfo, logger *slog.Logger) (Instance, error)
}
