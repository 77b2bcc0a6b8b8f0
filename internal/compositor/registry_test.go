package compositor_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/1ay1/neowall-sub002/internal/compositor"
)

// stubInstance is a minimal Instance for registry and selector tests.
type stubInstance struct {
	name   string
	caps   compositor.Capability
	closed bool

	// teardown, when non-nil, records close order across instances.
	teardown *[]string
}

type stubHandle struct{ backend string }

func (h stubHandle) BackendName() string { return h.backend }

func (s *stubInstance) Name() string                          { return s.name }
func (s *stubInstance) Capabilities() compositor.Capability   { return s.caps }
func (s *stubInstance) Outputs() []compositor.OutputInfo      { return nil }
func (s *stubInstance) SurfaceReady(compositor.Handle) bool   { return true }
func (s *stubInstance) CommitSurface(compositor.Handle) error { return nil }
func (s *stubInstance) DestroySurface(compositor.Handle)      {}

func (s *stubInstance) SurfaceSize(compositor.Handle) (int, int) { return 0, 0 }

func (s *stubInstance) CreateSurface(compositor.SurfaceConfig) (compositor.Handle, error) {
	return stubHandle{backend: s.name}, nil
}

func (s *stubInstance) ConfigureSurface(compositor.Handle, compositor.SurfaceConfig) error {
	return nil
}

func (s *stubInstance) CreateWindow(compositor.Handle, int, int) (compositor.Window, error) {
	return nil, errors.New("stub has no windows")
}

func (s *stubInstance) Close() error {
	s.closed = true
	if s.teardown != nil {
		*s.teardown = append(*s.teardown, s.name)
	}
	return nil
}

func descriptorFor(name string, priority int, inst *stubInstance, initErr error) compositor.Descriptor {
	return compositor.Descriptor{
		Name:        name,
		Description: "stub backend " + name,
		Priority:    priority,
		New: func(context.Context, compositor.EnvironmentInfo, *slog.Logger) (compositor.Instance, error) {
			if initErr != nil {
				return nil, initErr
			}
			return inst, nil
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterAndList(t *testing.T) {
	reg := compositor.NewRegistry()

	if err := reg.Register(descriptorFor("a", 10, &stubInstance{name: "a"}, nil)); err != nil {
		t.Fatalf("Register(a): %v", err)
	}
	if err := reg.Register(descriptorFor("b", 20, &stubInstance{name: "b"}, nil)); err != nil {
		t.Fatalf("Register(b): %v", err)
	}

	ds := reg.Descriptors()
	if len(ds) != 2 {
		t.Fatalf("Descriptors() returned %d, want 2", len(ds))
	}
	// Registration order is preserved.
	if ds[0].Name != "a" || ds[1].Name != "b" {
		t.Errorf("Descriptors order = [%s %s], want [a b]", ds[0].Name, ds[1].Name)
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	reg := compositor.NewRegistry()
	if err := reg.Register(descriptorFor("dup", 1, &stubInstance{name: "dup"}, nil)); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := reg.Register(descriptorFor("dup", 2, &stubInstance{name: "dup"}, nil))
	if !errors.Is(err, compositor.ErrAlreadyRegistered) {
		t.Errorf("duplicate Register error = %v, want ErrAlreadyRegistered", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d after rejected registration, want 1", reg.Len())
	}
}

func TestRegistryFailsClosedWhenFull(t *testing.T) {
	reg := compositor.NewRegistry()
	for i := 0; i < compositor.MaxBackends; i++ {
		name := fmt.Sprintf("backend-%d", i)
		if err := reg.Register(descriptorFor(name, i, &stubInstance{name: name}, nil)); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	err := reg.Register(descriptorFor("overflow", 99, &stubInstance{name: "overflow"}, nil))
	if !errors.Is(err, compositor.ErrRegistryFull) {
		t.Errorf("overflow Register error = %v, want ErrRegistryFull", err)
	}
	if reg.Len() != compositor.MaxBackends {
		t.Errorf("Len() = %d after rejected registration, want %d", reg.Len(), compositor.MaxBackends)
	}
}

func TestRegistryRejectsMissingConstructor(t *testing.T) {
	reg := compositor.NewRegistry()
	err := reg.Register(compositor.Descriptor{Name: "broken", Priority: 1})
	if err == nil {
		t.Error("expected error for descriptor without constructor, got nil")
	}
}
