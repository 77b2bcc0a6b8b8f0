package layershell

import (
	"context"
	"os"

	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/wlclient"
)

// prober performs one throwaway Wayland round-trip to enumerate advertised
// protocol extensions for environment detection.
type prober struct{}

// NewProber returns a compositor.Prober backed by a short-lived Wayland
// connection.
func NewProber() compositor.Prober { return prober{} }

// Probe implements compositor.Prober.
func (prober) Probe(ctx context.Context) (compositor.ProtocolFlags, string, error) {
	if os.Getenv("WAYLAND_DISPLAY") == "" {
		return 0, "", nil
	}
	d, err := wlclient.Connect("")
	if err != nil {
		return 0, "", err
	}
	defer d.Close()

	if err := d.Roundtrip(ctx); err != nil {
		return 0, "", err
	}

	flags := compositor.FlagWayland
	reg := d.Registry()
	if reg.Has("zwlr_layer_shell_v1") {
		flags |= compositor.FlagLayerShell
	}
	if reg.Has("xdg_wm_base") {
		flags |= compositor.FlagXDGShell
	}
	if reg.Has("zxdg_output_manager_v1") {
		flags |= compositor.FlagXDGOutput
	}
	return flags, "", nil
}
