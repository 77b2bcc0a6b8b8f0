package wlclient

import (
	"fmt"
	"sync"
)

const (
	// wl_registry requests/events.
	opRegistryBind   = 0
	evRegistryGlobal = 0
	evRegistryRemove = 1
)

// Global is one advertised global object.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Registry tracks the compositor's advertised globals and binds them.
type Registry struct {
	display *Display
	id      uint32

	mu      sync.Mutex
	globals map[uint32]Global
	added   func(Global)
	removed func(Global)
}

func newRegistry(d *Display) *Registry {
	return &Registry{
		display: d,
		globals: make(map[uint32]Global),
	}
}

// announce allocates the registry object and requests the global listing.
// Globals arrive as events; a Roundtrip after connect guarantees the initial
// burst has been delivered.
func (r *Registry) announce() error {
	r.id = r.display.allocID()
	r.display.register(r.id, r.handleEvent)
	return r.display.sendRequest(displayID, opDisplayGetRegistry, nil, r.id)
}

func (r *Registry) handleEvent(opcode uint16, body []byte, fds []int) {
	closeAll(fds)
	switch opcode {
	case evRegistryGlobal:
		rd := newReader(body)
		g := Global{Name: rd.uint32()}
		g.Interface = rd.string()
		g.Version = rd.uint32()

		r.mu.Lock()
		r.globals[g.Name] = g
		added := r.added
		r.mu.Unlock()
		if added != nil {
			added(g)
		}

	case evRegistryRemove:
		rd := newReader(body)
		name := rd.uint32()

		r.mu.Lock()
		g, ok := r.globals[name]
		delete(r.globals, name)
		removed := r.removed
		r.mu.Unlock()
		if ok && removed != nil {
			removed(g)
		}
	}
}

// OnChange installs callbacks for global announce/removal. Callbacks run
// during DispatchPending on the dispatching goroutine.
func (r *Registry) OnChange(added, removed func(Global)) {
	r.mu.Lock()
	r.added = added
	r.removed = removed
	r.mu.Unlock()
}

// Globals returns a snapshot of the currently advertised globals.
func (r *Registry) Globals() []Global {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Global, 0, len(r.globals))
	for _, g := range r.globals {
		out = append(out, g)
	}
	return out
}

// Has reports whether a global with the given interface is advertised.
func (r *Registry) Has(iface string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.globals {
		if g.Interface == iface {
			return true
		}
	}
	return false
}

// Bind binds the first advertised global of the given interface, at the
// lesser of its advertised version and maxVersion, and returns the new
// object id. The caller installs the handler before the next dispatch.
func (r *Registry) Bind(iface string, maxVersion uint32) (uint32, error) {
	r.mu.Lock()
	var found *Global
	for _, g := range r.globals {
		if g.Interface == iface {
			g := g
			found = &g
			break
		}
	}
	r.mu.Unlock()

	if found == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoGlobal, iface)
	}

	version := found.Version
	if maxVersion < version {
		version = maxVersion
	}

	id := r.display.allocID()
	err := r.display.sendRequest(r.id, opRegistryBind, nil,
		found.Name, iface, version, id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// BindName binds a specific global by its registry name, for per-output
// globals (wl_output) where multiple instances share one interface.
func (r *Registry) BindName(name uint32, iface string, version uint32) (uint32, error) {
	id := r.display.allocID()
	err := r.display.sendRequest(r.id, opRegistryBind, nil,
		name, iface, version, id)
	if err != nil {
		return 0, err
	}
	return id, nil
}
