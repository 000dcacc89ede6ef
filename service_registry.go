package main

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Service is one startup unit of the application.
type Service interface {
	Name() string
	Initialize(ctx context.Context) error
	Shutdown() error
}

// Requirement decides what a failed Initialize means for startup.
type Requirement int

const (
	// Required services abort startup when they fail.
	Required Requirement = iota
	// Optional services may fail; the application keeps running degraded.
	Optional
)

type registration struct {
	svc Service
	req Requirement
}

// ServiceRegistry starts services in registration order and stops the ones
// that were started in reverse order.
type ServiceRegistry struct {
	log zerolog.Logger

	mu       sync.Mutex
	pending  []registration
	names    map[string]bool
	started  []Service
	degraded map[string]error
}

func NewServiceRegistry(log zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		log:      log.With().Str("component", "registry").Logger(),
		names:    make(map[string]bool),
		degraded: make(map[string]error),
	}
}

// Register queues svc for Start. Names must be unique.
func (r *ServiceRegistry) Register(svc Service, req Requirement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := svc.Name()
	if r.names[name] {
		return WrapError("ServiceRegistry", "Register", fmt.Errorf("service %q already registered", name))
	}
	r.names[name] = true
	r.pending = append(r.pending, registration{svc: svc, req: req})
	return nil
}

// Start initializes the queued services. A failing required service stops
// the ones already started and is returned; a failing optional service is
// recorded as degraded and still stopped on Stop.
func (r *ServiceRegistry) Start(ctx context.Context) error {
	r.mu.Lock()
	queue := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, reg := range queue {
		name := reg.svc.Name()
		err := reg.svc.Initialize(ctx)
		if err == nil {
			r.markStarted(reg.svc)
			continue
		}
		if reg.req == Optional {
			r.log.Warn().Err(err).Str("service", name).Msg("service degraded")
			r.mu.Lock()
			r.degraded[name] = err
			r.mu.Unlock()
			r.markStarted(reg.svc)
			continue
		}
		r.log.Error().Err(err).Str("service", name).Msg("required service failed to start")
		r.Stop()
		return WrapError("ServiceRegistry", "Start", fmt.Errorf("service %q: %w", name, err))
	}
	return nil
}

func (r *ServiceRegistry) markStarted(svc Service) {
	r.mu.Lock()
	r.started = append(r.started, svc)
	r.mu.Unlock()
}

// Stop shuts the started services down, newest first. Shutdown errors are
// logged and do not stop the rest. Calling Stop again is a no-op.
func (r *ServiceRegistry) Stop() {
	r.mu.Lock()
	started := r.started
	r.started = nil
	r.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Shutdown(); err != nil {
			r.log.Warn().Err(err).Str("service", started[i].Name()).Msg("service shutdown failed")
		}
	}
}

// Degraded lists the optional services that failed to initialize, sorted.
func (r *ServiceRegistry) Degraded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.degraded))
	for name := range r.degraded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
