package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/1ay1/neowall-sub002/internal/compositor"
	"github.com/1ay1/neowall-sub002/internal/config"
	"github.com/1ay1/neowall-sub002/internal/display"
	"github.com/1ay1/neowall-sub002/internal/model"
	"github.com/1ay1/neowall-sub002/internal/reload"
	"github.com/1ay1/neowall-sub002/internal/render"
	"github.com/1ay1/neowall-sub002/internal/store"
	"github.com/1ay1/neowall-sub002/internal/surface"
)

// defaultTimeout caps how long one loop iteration sleeps when nothing is
// scheduled, so external flags are observed promptly.
const defaultTimeout = time.Second

// errLogInterval throttles repeated error logging per error class.
const errLogInterval = time.Second

// Engine drives the wallpaper daemon. Run owns its goroutine; all other
// methods are safe to call concurrently.
type Engine struct {
	backend  compositor.Instance
	surfaces *surface.Manager
	dir      *display.Directory
	st       store.Store
	coord    *reload.Coordinator
	broker   *ChangeBroker
	decoder  render.Decoder
	logger   *slog.Logger

	// cfg is owned by the loop goroutine once Run starts.
	cfg config.Config

	running atomic.Bool
	paused  atomic.Bool
	skips   atomic.Int32

	wake chan struct{}

	// lastErrLog throttles per-class error logging; loop goroutine only.
	lastErrLog map[string]time.Time
}

// New builds an engine around an initialized backend. The store may be nil
// to run without persistence; the coordinator may be nil to disable reloads.
func New(cfg config.Config, inst compositor.Instance, st store.Store, coord *reload.Coordinator, logger *slog.Logger) *Engine {
	return &Engine{
		backend:    inst,
		surfaces:   surface.NewManager(inst, logger),
		dir:        display.NewDirectory(),
		st:         st,
		coord:      coord,
		broker:     NewChangeBroker(),
		decoder:    render.FileDecoder{},
		logger:     logger.With("component", "engine"),
		cfg:        cfg,
		wake:       make(chan struct{}, 1),
		lastErrLog: make(map[string]time.Time),
	}
}

// Directory exposes the output directory for read-side consumers (API).
func (e *Engine) Directory() *display.Directory { return e.dir }

// Broker exposes the wallpaper change broker for SSE subscription.
func (e *Engine) Broker() *ChangeBroker { return e.broker }

// Backend returns the active backend instance.
func (e *Engine) Backend() compositor.Instance { return e.backend }

// Running reports whether the loop is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Paused reports whether cycling and transitions are suspended.
func (e *Engine) Paused() bool { return e.paused.Load() }

// Pause suspends cycle advancement. Already-painted wallpapers stay up.
func (e *Engine) Pause() {
	if !e.paused.Swap(true) {
		e.logger.Info("paused")
	}
	e.Wake()
}

// Resume re-enables cycle advancement.
func (e *Engine) Resume() {
	if e.paused.Swap(false) {
		e.logger.Info("resumed")
	}
	e.Wake()
}

// Skip requests an immediate advance of every cycling output. Each call
// consumes one loop iteration's advance, even when no output is eligible.
func (e *Engine) Skip() {
	e.skips.Add(1)
	e.Wake()
}

// Wake nudges the loop out of its select without any other request.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run executes the event loop until ctx is cancelled or the backend
// connection is fatally lost. It locks its goroutine to an OS thread:
// windowing libraries underneath the backend are thread-affine.
func (e *Engine) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.running.Store(true)
	defer e.running.Store(false)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	if n, ok := e.backend.(compositor.OutputNotifier); ok {
		n.OnOutputChange(e.outputAdded, e.outputRemoved)
	}
	for _, info := range e.backend.Outputs() {
		e.outputAdded(info)
	}

	var events <-chan struct{}
	if src, ok := e.backend.(compositor.EventSource); ok {
		events = src.Events()
	}

	e.logger.Info("event loop started",
		"backend", e.backend.Name(),
		"capabilities", e.backend.Capabilities().String(),
		"outputs", e.dir.Len())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		if err := e.iterate(ctx); err != nil {
			e.logger.Error("event loop stopping", "error", err)
			return err
		}
		loopIterations.Inc()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(e.nextTimeout(time.Now()))

		select {
		case <-ctx.Done():
			e.logger.Info("event loop stopped")
			return ctx.Err()
		case <-events:
		case <-timer.C:
		case <-e.wake:
		case sig := <-sigCh:
			e.handleSignal(sig)
		}
	}
}

// iterate services every source once. Order matters: protocol events first
// (they may add pending outputs), then pending initialization, reload, cycle
// advancement, and finally rendering.
func (e *Engine) iterate(ctx context.Context) error {
	now := time.Now()

	if src, ok := e.backend.(compositor.EventSource); ok {
		if err := src.Dispatch(); err != nil {
			if errors.Is(err, compositor.ErrDisconnected) {
				return fmt.Errorf("backend connection lost: %w", err)
			}
			e.throttledError("dispatch", err)
		}
	}

	if e.dir.NeedsInit() {
		e.initPendingOutputs(ctx, now)
	}

	if e.coord != nil && e.coord.TakeRequest() {
		e.applyReload(now)
	}

	if !e.paused.Load() {
		e.advanceCycles(now)
	}

	e.renderOutputs(now)

	if f, ok := e.backend.(compositor.Flusher); ok {
		if err := f.Flush(); err != nil {
			e.throttledError("flush", err)
		}
	}
	return nil
}

// nextTimeout implements the loop's sleep policy: zero when work is already
// queued, the frame interval while any transition runs, otherwise the time
// to the nearest cycle deadline capped at the default.
func (e *Engine) nextTimeout(now time.Time) time.Duration {
	if e.skips.Load() > 0 || e.dir.NeedsInit() {
		return 0
	}
	if e.coord != nil && e.coord.Pending() {
		return 0
	}
	if e.dir.Animating(now) {
		return e.frameInterval()
	}
	if !e.paused.Load() {
		if wait, ok := e.dir.NextDeadline(now); ok && wait < defaultTimeout {
			return wait
		}
	}
	return defaultTimeout
}

func (e *Engine) frameInterval() time.Duration {
	fr := e.cfg.Framerate
	if fr < 1 {
		fr = 1
	}
	return time.Second / time.Duration(fr)
}

func (e *Engine) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGHUP:
		if e.coord != nil {
			e.coord.Request()
		}
	case syscall.SIGUSR1:
		e.logger.Info("skip requested by signal")
		e.skips.Add(1)
	case syscall.SIGUSR2:
		if e.paused.Load() {
			e.Resume()
		} else {
			e.Pause()
		}
	}
}

// outputAdded runs on the loop goroutine, either during startup seeding or
// from backend Dispatch. It only records the output; surface setup happens
// in initPendingOutputs, outside the notification call stack.
func (e *Engine) outputAdded(info compositor.OutputInfo) {
	if e.dir.Get(info.Name) != nil {
		return
	}
	e.logger.Info("output added", "output", info.Name,
		"size", fmt.Sprintf("%dx%d", info.PixelWidth, info.PixelHeight),
		"scale", info.Scale)
	e.broker.Reopen(info.Name)
	e.dir.Add(info, e.cfg.ForOutput(info.Name))
	outputsGauge.Set(float64(e.dir.Len()))
}

// outputRemoved runs on the loop goroutine during backend Dispatch. The
// directory entry is unlinked under the write lock; the surface teardown
// happens here, after the lock is released.
func (e *Engine) outputRemoved(name string) {
	o := e.dir.Remove(name)
	if o == nil {
		return
	}
	e.logger.Info("output removed", "output", name)
	if o.Surface != nil {
		e.surfaces.Destroy(o.Surface)
	}
	e.broker.Close(name)
	outputsGauge.Set(float64(e.dir.Len()))
}

// initPendingOutputs creates surfaces for outputs added by hotplug
// notifications. Surface and window creation happen outside the directory
// lock; only the final attachment takes the write side.
func (e *Engine) initPendingOutputs(ctx context.Context, now time.Time) {
	for _, o := range e.dir.TakePending() {
		info := o.Info
		cfg := compositor.SurfaceConfig{
			Output:        info,
			Layer:         compositor.LayerBackground,
			Anchors:       compositor.AnchorAll,
			ExclusiveZone: -1,
			Width:         info.Width,
			Height:        info.Height,
		}

		s, err := e.surfaces.Create(cfg)
		if err != nil {
			e.throttledError("surface-init", err)
			continue
		}
		if err := e.surfaces.Configure(s, cfg); err != nil {
			e.surfaces.Destroy(s)
			e.throttledError("surface-init", err)
			continue
		}
		if err := e.surfaces.Commit(s); err != nil {
			e.surfaces.Destroy(s)
			e.throttledError("surface-init", err)
			continue
		}
		// A round-trip lets asynchronous backends deliver the first
		// configure before the window is sized.
		if sy, ok := e.backend.(compositor.Syncer); ok {
			if err := sy.Sync(ctx); err != nil {
				e.throttledError("surface-init", err)
			}
		}
		if err := e.surfaces.EnsureWindow(s); err != nil {
			e.surfaces.Destroy(s)
			e.throttledError("surface-init", err)
			continue
		}

		playlist, err := render.ScanPlaylist(o.Config.Path)
		if err != nil {
			e.throttledError("playlist", err)
		}

		restored := e.restorePath(ctx, info.Name, playlist)
		first := restored
		if first == "" && len(playlist) > 0 {
			first = playlist[0]
		}
		var scaled *image.RGBA
		if first != "" {
			scaled = e.loadScaled(first, s.Width, s.Height, o.Config.Scale)
		}

		e.dir.Update(func([]*display.Output) {
			o.Surface = s
			o.Pending = false
			o.Playlist = playlist
			o.LastCycle = now
			if restored != "" {
				o.SeekWallpaper(restored)
			}
			if scaled != nil {
				e.applyLocked(o, scaled, first, now, false)
			}
		})
		e.logger.Info("output initialized", "output", info.Name,
			"playlist", len(playlist), "restored", restored != "")
	}
}

// restorePath returns the persisted wallpaper for an output when it is
// still part of the configured playlist.
func (e *Engine) restorePath(ctx context.Context, output string, playlist []string) string {
	if e.st == nil {
		return ""
	}
	rec, err := e.st.CurrentWallpaper(ctx, output)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.throttledError("store", err)
		}
		return ""
	}
	for _, p := range playlist {
		if p == rec.Path {
			return rec.Path
		}
	}
	return ""
}

// advanceCycles moves due playlists forward. A pending skip forces every
// cycling output to advance and is consumed exactly once per call, whether
// or not any output was eligible. Playlist positions move under the write
// lock; the decodes happen between the two critical sections.
func (e *Engine) advanceCycles(now time.Time) {
	skip := e.skips.Load() > 0

	type advance struct {
		o      *display.Output
		path   string
		scaled *image.RGBA
	}
	var due []advance
	e.dir.Update(func(outputs []*display.Output) {
		for _, o := range outputs {
			if o.Pending || o.Surface == nil || !o.CycleEnabled() {
				continue
			}
			if !skip && o.Deadline(now) > 0 {
				continue
			}
			path, ok := o.NextWallpaper()
			if !ok {
				continue
			}
			due = append(due, advance{o: o, path: path})
		}
	})

	for i := range due {
		a := &due[i]
		a.scaled = e.loadScaled(a.path, a.o.Surface.Width, a.o.Surface.Height, a.o.Config.Scale)
	}

	if len(due) > 0 {
		e.dir.Update(func([]*display.Output) {
			for _, a := range due {
				if a.scaled == nil {
					continue
				}
				e.applyLocked(a.o, a.scaled, a.path, now, true)
				cycleAdvances.Inc()
			}
		})
	}

	if skip {
		e.skips.Add(-1)
	}
}

// loadScaled decodes a wallpaper and scales it to the surface's pixel size.
// Runs outside the directory lock; decoding is the expensive part of a paint
// and must not stall readers. Returns nil on decode failure.
func (e *Engine) loadScaled(path string, w, h int, mode model.ScaleMode) *image.RGBA {
	img, err := e.decoder.Decode(path)
	if err != nil {
		e.throttledError("decode", fmt.Errorf("%s: %w", path, err))
		return nil
	}
	return render.Scale(img, w, h, mode)
}

// applyLocked installs a prepared wallpaper into an output's render state.
// Must be called with the directory write lock held (inside dir.Update).
func (e *Engine) applyLocked(o *display.Output, scaled *image.RGBA, path string, now time.Time, fade bool) {
	if fade && o.Config.Transition > 0 {
		o.Frame.BeginTransition(scaled, now, o.Config.Transition, o.Config.Easing)
	} else {
		o.Frame.SetStatic(scaled)
	}
	o.CurrentPath = path
	o.LastCycle = now
	o.NeedsRedraw = true

	e.broker.Publish(o.Info.Name, path)
	e.persist(o.Info.Name, path, now)
}

func (e *Engine) persist(output, path string, now time.Time) {
	if e.st == nil {
		return
	}
	rec := &model.WallpaperRecord{
		ID:     model.NewID(),
		Output: output,
		Path:   path,
		SetAt:  now,
	}
	if err := e.st.SaveWallpaper(context.Background(), rec); err != nil {
		e.throttledError("store", err)
	}
}

// renderOutputs composes frames under the write lock, then presents after
// releasing it. Present can block on the compositor; holding the directory
// lock across it would stall every reader.
func (e *Engine) renderOutputs(now time.Time) {
	if e.coord != nil && e.coord.InProgress() {
		return
	}

	var pending []*display.Output
	e.dir.Update(func(outputs []*display.Output) {
		for _, o := range outputs {
			if o.Pending || o.Surface == nil {
				continue
			}
			if !o.NeedsRedraw && !o.Frame.Active(now) {
				continue
			}
			if !e.surfaces.IsReady(o.Surface) {
				continue
			}
			if err := e.surfaces.EnsureWindow(o.Surface); err != nil {
				e.throttledError("window", err)
				continue
			}
			o.Frame.Compose(o.Surface.Window().Frame(), now)
			o.NeedsRedraw = o.Frame.Active(now)
			pending = append(pending, o)
		}
	})

	for _, o := range pending {
		win := o.Surface.Window()
		if win == nil {
			continue
		}
		start := time.Now()
		if err := win.Present(); err != nil {
			e.throttledError("present", fmt.Errorf("%s: %w", o.Info.Name, err))
			continue
		}
		presentDuration.Observe(time.Since(start).Seconds())
		framesPresented.Inc()
	}
}

// applyReload swaps in a freshly-loaded config. A load failure keeps the
// current one; outputs whose source path changed get rescanned playlists.
func (e *Engine) applyReload(now time.Time) {
	cfg, err := e.coord.Apply()
	if err != nil {
		reloadsTotal.WithLabelValues("error").Inc()
		return
	}
	cfg.ListenAddr = e.cfg.ListenAddr
	cfg.StatePath = e.cfg.StatePath
	e.cfg = cfg

	type repaint struct {
		o      *display.Output
		path   string
		scaled *image.RGBA
	}
	var repaints []repaint
	e.dir.Update(func(outputs []*display.Output) {
		for _, o := range outputs {
			next := cfg.ForOutput(o.Info.Name)
			pathChanged := next.Path != o.Config.Path
			o.Config = next
			if pathChanged {
				playlist, err := render.ScanPlaylist(next.Path)
				if err != nil {
					e.throttledError("playlist", err)
					continue
				}
				o.Playlist = playlist
				o.LastCycle = now
				if len(playlist) > 0 && o.Surface != nil {
					repaints = append(repaints, repaint{o: o, path: playlist[0]})
				}
			}
		}
	})

	for i := range repaints {
		r := &repaints[i]
		r.scaled = e.loadScaled(r.path, r.o.Surface.Width, r.o.Surface.Height, r.o.Config.Scale)
	}
	if len(repaints) > 0 {
		e.dir.Update(func([]*display.Output) {
			for _, r := range repaints {
				if r.scaled == nil {
					continue
				}
				e.applyLocked(r.o, r.scaled, r.path, now, true)
			}
		})
	}
	reloadsTotal.WithLabelValues("ok").Inc()
}

// throttledError logs an error at most once per interval per class, so a
// wedged compositor cannot flood the log at frame rate.
func (e *Engine) throttledError(class string, err error) {
	now := time.Now()
	if last, ok := e.lastErrLog[class]; ok && now.Sub(last) < errLogInterval {
		return
	}
	e.lastErrLog[class] = now
	e.logger.Error("loop error", "class", class, "error", err)
}
