// Package layershell implements the primary Wayland backend on top of the
// wlr-layer-shell protocol. Surfaces are placed on the background layer,
// anchored to all edges, so the compositor stacks every other window above
// the wallpaper.
package layershell

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/wlclient"
)

const (
	backendName = "wlr-layer-shell"

	// Priority places this backend first in selection order.
	Priority = 100

	namespace = "wallpaper"
)

// Descriptor returns the registry descriptor for this backend.
func Descriptor() compositor.Descriptor {
	return compositor.Descriptor{
		Name:        backendName,
		Description: "Wayland wlr-layer-shell background surfaces",
		Priority:    Priority,
		New:         New,
	}
}

// Backend is a live layer-shell connection. All methods run on the event
// loop goroutine; the only other goroutine touching state is the wlclient
// read pump, which never invokes handlers itself.
type Backend struct {
	logger  *slog.Logger
	display *wlclient.Display
	comp    *wlclient.Compositor
	shm     *wlclient.Shm
	shell   *wlclient.LayerShell

	mu      sync.Mutex
	outputs map[uint32]*wlclient.Output

	onAdd    func(compositor.OutputInfo)
	onRemove func(name string)
}

// New connects to the Wayland display and verifies the layer shell global.
// Returns ErrUnavailable when there is no Wayland session or the compositor
// does not implement wlr-layer-shell.
func New(ctx context.Context, env compositor.EnvironmentInfo, logger *slog.Logger) (compositor.Instance, error) {
	if os.Getenv("WAYLAND_DISPLAY") == "" {
		return nil, fmt.Errorf("%w: no wayland session", compositor.ErrUnavailable)
	}

	d, err := wlclient.Connect("")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", compositor.ErrUnavailable, err)
	}

	b := &Backend{
		logger:  logger.With("backend", backendName),
		display: d,
		outputs: make(map[uint32]*wlclient.Output),
	}
	if err := b.init(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) init(ctx context.Context) error {
	reg := b.display.Registry()

	// First round-trip delivers the initial global burst.
	if err := b.display.Roundtrip(ctx); err != nil {
		return fmt.Errorf("registry roundtrip: %w", err)
	}
	if !reg.Has("zwlr_layer_shell_v1") {
		return fmt.Errorf("%w: compositor lacks zwlr_layer_shell_v1", compositor.ErrUnavailable)
	}

	var err error
	if b.comp, err = wlclient.BindCompositor(b.display); err != nil {
		return fmt.Errorf("bind wl_compositor: %w", err)
	}
	if b.shm, err = wlclient.BindShm(b.display); err != nil {
		return fmt.Errorf("bind wl_shm: %w", err)
	}
	if b.shell, err = wlclient.BindLayerShell(b.display); err != nil {
		return fmt.Errorf("bind layer shell: %w", err)
	}

	for _, g := range reg.Globals() {
		if g.Interface == "wl_output" {
			b.bindOutput(g)
		}
	}
	reg.OnChange(b.globalAdded, b.globalRemoved)

	// Second round-trip collects the bound outputs' geometry and names.
	if err := b.display.Roundtrip(ctx); err != nil {
		return fmt.Errorf("output roundtrip: %w", err)
	}

	b.logger.Info("backend initialized", "outputs", len(b.outputs))
	return nil
}

func (b *Backend) bindOutput(g wlclient.Global) {
	o, err := wlclient.BindOutput(b.display, g)
	if err != nil {
		b.logger.Warn("bind wl_output failed", "name", g.Name, "error", err)
		return
	}
	o.OnDone(b.outputDone)
	b.mu.Lock()
	b.outputs[g.Name] = o
	b.mu.Unlock()
}

func (b *Backend) outputDone(o *wlclient.Output) {
	if b.onAdd != nil {
		b.onAdd(outputInfo(o))
	}
}

func (b *Backend) globalAdded(g wlclient.Global) {
	if g.Interface != "wl_output" {
		return
	}
	b.logger.Info("output plugged", "registry_name", g.Name)
	b.bindOutput(g)
	// The added callback fires from outputDone once geometry arrives.
}

func (b *Backend) globalRemoved(g wlclient.Global) {
	if g.Interface != "wl_output" {
		return
	}
	b.mu.Lock()
	o, ok := b.outputs[g.Name]
	if ok {
		delete(b.outputs, g.Name)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	name := connectorName(o)
	b.logger.Info("output unplugged", "output", name)
	o.Release()
	if b.onRemove != nil {
		b.onRemove(name)
	}
}

func connectorName(o *wlclient.Output) string {
	if o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("wl_output-%d", o.RegistryName)
}

func outputInfo(o *wlclient.Output) compositor.OutputInfo {
	scale := int(o.Scale)
	if scale < 1 {
		scale = 1
	}
	return compositor.OutputInfo{
		Name:        connectorName(o),
		Description: o.Description,
		X:           int(o.X),
		Y:           int(o.Y),
		Width:       int(o.Width) / scale,
		Height:      int(o.Height) / scale,
		PixelWidth:  int(o.Width),
		PixelHeight: int(o.Height),
		Scale:       scale,
		ID:          o.RegistryName,
	}
}

// Name implements compositor.Instance.
func (b *Backend) Name() string { return backendName }

// Capabilities implements compositor.Instance.
func (b *Backend) Capabilities() compositor.Capability {
	return compositor.CapLayerPlacement |
		compositor.CapExclusiveZone |
		compositor.CapKeyboardInteractivity |
		compositor.CapMultiOutput
}

// Outputs implements compositor.Instance.
func (b *Backend) Outputs() []compositor.OutputInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]compositor.OutputInfo, 0, len(b.outputs))
	for _, o := range b.outputs {
		if o.Done {
			out = append(out, outputInfo(o))
		}
	}
	return out
}

// OnOutputChange implements compositor.OutputNotifier.
func (b *Backend) OnOutputChange(added func(compositor.OutputInfo), removed func(string)) {
	b.onAdd = added
	b.onRemove = removed
}

// Events implements compositor.EventSource.
func (b *Backend) Events() <-chan struct{} { return b.display.Ready() }

// Dispatch implements compositor.EventSource.
func (b *Backend) Dispatch() error {
	if err := b.display.DispatchPending(); err != nil {
		if wlclient.IsFatal(err) {
			return fmt.Errorf("%w: %v", compositor.ErrDisconnected, err)
		}
		return err
	}
	return nil
}

// Flush implements compositor.Flusher.
func (b *Backend) Flush() error { return b.display.Flush() }

// Sync implements compositor.Syncer.
func (b *Backend) Sync(ctx context.Context) error { return b.display.Roundtrip(ctx) }

// Close implements compositor.Instance.
func (b *Backend) Close() error {
	b.logger.Info("closing backend")
	return b.display.Close()
}
