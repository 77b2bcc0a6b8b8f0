// Package display maintains the shared directory of physical outputs: the
// list read by the render path and timer computation, and mutated by hotplug
// notifications and configuration reloads.
//
// Lock ordering: when the directory lock and any other state lock are needed
// together, the directory lock is acquired first, always. The directory lock
// is never held across a blocking presentation call; the render path builds
// its work list under the read lock, releases it, and presents afterwards.
package display

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/config"
	"github.com/1ay1/neowall-sub002/internal/render"
	"github.com/1ay1/neowall-sub002/internal/surface"
)

// Output is one physical display: its geometry, its owned surface, and its
// per-output wallpaper state. Fields are owned by the event-loop goroutine;
// the directory lock only guards membership of the list itself.
type Output struct {
	Info    compositor.OutputInfo
	Surface *surface.Surface
	Config  config.OutputConfig

	// Playlist is the resolved set of wallpaper paths for cycling.
	Playlist    []string
	playlistPos int

	// CurrentPath is the wallpaper currently shown (or being faded in).
	CurrentPath string

	// LastCycle anchors the cycle timer for this output.
	LastCycle time.Time

	// Frame is the per-output render/transition state handed to the renderer.
	Frame render.State

	// Pending marks an output announced by the backend but not yet fully
	// initialized; initialization happens on the next loop iteration, outside
	// the notification call stack.
	Pending bool

	// NeedsRedraw requests a render pass for this output.
	NeedsRedraw bool
}

// CycleEnabled reports whether this output participates in timed cycling.
func (o *Output) CycleEnabled() bool {
	return o.Config.Cycle && len(o.Playlist) > 1
}

// NextWallpaper advances the playlist and returns the next path. Returns
// false when the playlist cannot advance.
func (o *Output) NextWallpaper() (string, bool) {
	if len(o.Playlist) == 0 {
		return "", false
	}
	o.playlistPos = (o.playlistPos + 1) % len(o.Playlist)
	return o.Playlist[o.playlistPos], true
}

// SeekWallpaper positions the playlist at the entry matching path, so a
// restored wallpaper continues cycling from where it left off.
func (o *Output) SeekWallpaper(path string) bool {
	for i, p := range o.Playlist {
		if p == path {
			o.playlistPos = i
			return true
		}
	}
	return false
}

// Deadline returns the remaining time until this output's next cycle,
// clamped at zero.
func (o *Output) Deadline(now time.Time) time.Duration {
	elapsed := now.Sub(o.LastCycle)
	if remaining := o.Config.Duration - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// Directory is the concurrently-accessed list of outputs. Hotplug add/remove
// and reload take the write side; the render path and timer computation take
// the read side.
type Directory struct {
	mu      sync.RWMutex
	outputs []*Output

	// needsInit is observed by the event loop without taking the lock; set by
	// notification handlers when a pending output is added.
	needsInit atomic.Bool
}

// NewDirectory creates an empty output directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Add inserts a new output in pending state and flags the event loop to
// initialize it on its next iteration.
func (d *Directory) Add(info compositor.OutputInfo, cfg config.OutputConfig) *Output {
	o := &Output{
		Info:    info,
		Config:  cfg,
		Pending: true,
	}
	d.mu.Lock()
	d.outputs = append(d.outputs, o)
	d.mu.Unlock()
	d.needsInit.Store(true)
	return o
}

// Remove unlinks the output with the given connector name and returns it for
// teardown by the caller. Callers must not retain output pointers across a
// lock release other than the one returned here.
func (d *Directory) Remove(name string) *Output {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, o := range d.outputs {
		if o.Info.Name == name {
			d.outputs = append(d.outputs[:i], d.outputs[i+1:]...)
			return o
		}
	}
	return nil
}

// Get returns the output with the given connector name, or nil.
func (d *Directory) Get(name string) *Output {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, o := range d.outputs {
		if o.Info.Name == name {
			return o
		}
	}
	return nil
}

// Len returns the number of outputs, pending included.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.outputs)
}

// View runs fn with the read lock held over the current output list. fn must
// not block and must not call Present on any window.
func (d *Directory) View(fn func(outputs []*Output)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.outputs)
}

// Update runs fn with the write lock held.
func (d *Directory) Update(fn func(outputs []*Output)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.outputs)
}

// NeedsInit reports whether pending outputs are waiting for initialization.
// Lock-free: safe from any goroutine.
func (d *Directory) NeedsInit() bool {
	return d.needsInit.Load()
}

// TakePending clears the pending-init flag and returns the outputs still in
// pending state. Called from the event loop only.
func (d *Directory) TakePending() []*Output {
	d.needsInit.Store(false)
	d.mu.RLock()
	defer d.mu.RUnlock()
	var pending []*Output
	for _, o := range d.outputs {
		if o.Pending {
			pending = append(pending, o)
		}
	}
	return pending
}

// NextDeadline computes the earliest pending cycle deadline across all
// cycling-enabled outputs: min over outputs of max(0, duration - elapsed).
// ok is false when no output is eligible and the timer should be disarmed.
func (d *Directory) NextDeadline(now time.Time) (wait time.Duration, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, o := range d.outputs {
		if o.Pending || !o.CycleEnabled() {
			continue
		}
		remaining := o.Deadline(now)
		if !ok || remaining < wait {
			wait, ok = remaining, true
		}
	}
	return wait, ok
}

// Animating reports whether any output has an in-flight transition, which
// drives the loop's frame-interval timeout.
func (d *Directory) Animating(now time.Time) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, o := range d.outputs {
		if o.Frame.Active(now) {
			return true
		}
	}
	return false
}
