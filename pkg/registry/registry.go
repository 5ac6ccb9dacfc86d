package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Options configures a Registry.
type Options struct {
	// Logger receives construction events. Defaults to slog.Default().
	Logger *slog.Logger
	// BuildTimeout bounds a single factory invocation. Defaults to
	// 30 seconds; negative values disable the bound.
	BuildTimeout time.Duration
}

func (o Options) normalized() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.BuildTimeout == 0 {
		o.BuildTimeout = 30 * time.Second
	}
	return o
}

// Kind classifies a resolution failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConstructionFailed
)

// LoadError reports why an integration could not be resolved.
type LoadError struct {
	Kind        Kind
	Integration string
	Err         error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("registry: integration %q is not registered", e.Integration)
	case KindConstructionFailed:
		return fmt.Sprintf("registry: constructing integration %q: %v", e.Integration, e.Err)
	default:
		return fmt.Sprintf("registry: resolving integration %q: %v", e.Integration, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// Registry maps integration names to lazily constructed registrations. The
// registration table is fixed at startup; construction happens on first
// resolve.
type Registry struct {
	options Options

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	cfg     IntegrationConfig
	factory Factory

	registration *Registration
	building     bool
	buildCh      chan struct{}
}

func New(opts Options) *Registry {
	return &Registry{
		options: opts.normalized(),
		entries: make(map[string]*entry),
	}
}

// Register declares an integration. No construction happens here.
func (r *Registry) Register(cfg IntegrationConfig, factory Factory) error {
	if cfg.Name == "" {
		return fmt.Errorf("registry: integration name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("registry: integration %q has no factory", cfg.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[cfg.Name]; ok {
		return fmt.Errorf("registry: integration %q is already registered", cfg.Name)
	}
	r.entries[cfg.Name] = &entry{cfg: cfg, factory: factory}
	return nil
}

// Names returns the registered integration names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve returns the integration's registration, constructing it on first
// use. Concurrent first resolves share one factory invocation: later
// callers wait on the in-flight construction instead of starting another.
// Only a successful construction is cached; a failure is returned to the
// caller that ran it and the next resolve retries.
func (r *Registry) Resolve(ctx context.Context, name string) (*Registration, error) {
	for {
		r.mu.Lock()
		e, ok := r.entries[name]
		if !ok {
			r.mu.Unlock()
			return nil, &LoadError{Kind: KindNotFound, Integration: name}
		}
		if e.registration != nil {
			reg := e.registration
			r.mu.Unlock()
			return reg, nil
		}
		if e.building {
			ch := e.buildCh
			r.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ch:
				continue
			}
		}
		e.building = true
		e.buildCh = make(chan struct{})
		cfg := e.cfg
		factory := e.factory
		r.mu.Unlock()

		reg, err := r.build(ctx, cfg, factory)

		r.mu.Lock()
		e.building = false
		close(e.buildCh)
		if err != nil {
			r.mu.Unlock()
			return nil, &LoadError{Kind: KindConstructionFailed, Integration: name, Err: err}
		}
		e.registration = reg
		r.mu.Unlock()
		return reg, nil
	}
}

func (r *Registry) build(ctx context.Context, cfg IntegrationConfig, factory Factory) (*Registration, error) {
	buildCtx := ctx
	if r.options.BuildTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, r.options.BuildTimeout)
		defer cancel()
	}
	start := time.Now()
	reg, err := factory(buildCtx, cfg)
	if err != nil {
		r.options.Logger.Error("integration construction failed",
			"integration", cfg.Name, "error", err)
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("registry: factory for %q returned no registration", cfg.Name)
	}
	r.options.Logger.Debug("integration constructed",
		"integration", cfg.Name, "tools", len(reg.tools), "elapsed", time.Since(start))
	return reg, nil
}

// Evict drops a cached registration so the next resolve reconstructs it.
// The integration stays registered. Reports whether anything was dropped.
func (r *Registry) Evict(name string) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	if !ok || e.registration == nil {
		r.mu.Unlock()
		return false
	}
	reg := e.registration
	e.registration = nil
	r.mu.Unlock()

	if err := reg.close(); err != nil {
		r.options.Logger.Warn("evicted registration cleanup failed",
			"integration", name,
			"error", err)
	}
	return true
}

// Close drops every cached registration and runs their cleanup functions,
// joining any cleanup errors. Registrations stay declared; the registry is
// usable afterwards and the next resolve reconstructs.
func (r *Registry) Close() error {
	r.mu.Lock()
	type cached struct {
		name string
		reg  *Registration
	}
	var drained []cached
	for name, e := range r.entries {
		if e.registration != nil {
			drained = append(drained, cached{name: name, reg: e.registration})
			e.registration = nil
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, c := range drained {
		if err := c.reg.close(); err != nil {
			errs = append(errs, fmt.Errorf("registry: closing %q: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
