package compositor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
)

// Active pairs the winning descriptor with its live instance.
type Active struct {
	Descriptor Descriptor
	Instance   Instance
}

// Select attempts every registered backend in descending priority order and
// adopts the highest-priority one whose constructor succeeds. Equal
// priorities are broken by registration order (earlier wins). Iteration is
// exhaustive: a constructor failing because its protocol is absent is the
// common case, not an error, and every descriptor gets its attempt. Instances
// created after a winner has been adopted are closed immediately.
func Select(ctx context.Context, reg *Registry, env EnvironmentInfo, logger *slog.Logger) (*Active, error) {
	descriptors := reg.Descriptors()
	if len(descriptors) == 0 {
		return nil, ErrNoBackend
	}

	// Stable sort keeps registration order among equal priorities.
	sort.SliceStable(descriptors, func(i, j int) bool {
		return descriptors[i].Priority > descriptors[j].Priority
	})

	var winner *Active
	for _, d := range descriptors {
		inst, err := d.New(ctx, env, logger.With("backend", d.Name))
		if err != nil {
			initAttempts.WithLabelValues(d.Name, "unavailable").Inc()
			if errors.Is(err, ErrUnavailable) {
				logger.Debug("backend unavailable", "backend", d.Name, "error", err)
			} else {
				logger.Warn("backend init failed", "backend", d.Name, "error", err)
			}
			continue
		}

		if winner != nil {
			// A higher-priority backend already won; this instance loses and
			// must release everything it acquired.
			initAttempts.WithLabelValues(d.Name, "superseded").Inc()
			if cerr := inst.Close(); cerr != nil {
				logger.Warn("closing superseded backend", "backend", d.Name, "error", cerr)
			}
			continue
		}

		initAttempts.WithLabelValues(d.Name, "selected").Inc()
		winner = &Active{Descriptor: d, Instance: inst}
		logger.Info("backend selected",
			"backend", d.Name,
			"priority", d.Priority,
			"capabilities", inst.Capabilities().String(),
		)
	}

	if winner == nil {
		return nil, ErrNoBackend
	}
	activeBackend.Reset()
	activeBackend.WithLabelValues(winner.Descriptor.Name).Set(1)
	return winner, nil
}
