// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"fmt"
	"sort"

	"github.com/kusari-oss/triage/internal/core/config"
)

// HandlerCreator builds a handler from its configuration
type HandlerCreator func(config.HandlerConfig) (Handler, error)

// Registry maps action names to handlers. Actions without a registered
// handler use the fallback.
type Registry struct {
	handlers map[string]Handler
	creators map[string]HandlerCreator
	fallback Handler
}

// NewRegistry creates a registry whose fallback is the simulation handler
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]Handler),
		creators: make(map[string]HandlerCreator),
		fallback: SimulationHandler{},
	}
	r.RegisterDefaultTypes()
	return r
}

// Register binds a handler to an action name
func (r *Registry) Register(action string, handler Handler) {
	r.handlers[action] = handler
}

// RegisterType registers a creator for a handler type used in configuration
func (r *Registry) RegisterType(typeName string, creator HandlerCreator) {
	r.creators[typeName] = creator
}

// RegisterDefaultTypes registers the simulation and command handler types
func (r *Registry) RegisterDefaultTypes() {
	r.RegisterType("simulation", func(config.HandlerConfig) (Handler, error) {
		return SimulationHandler{}, nil
	})

	r.RegisterType("command", func(hc config.HandlerConfig) (Handler, error) {
		return NewCommandHandler(hc)
	})
}

// Create builds a handler of the configured type. An empty type with a
// command means a command handler.
func (r *Registry) Create(hc config.HandlerConfig) (Handler, error) {
	typeName := hc.Type
	if typeName == "" {
		typeName = "simulation"
		if hc.Command != "" {
			typeName = "command"
		}
	}

	creator, ok := r.creators[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown handler type: %s", typeName)
	}
	return creator(hc)
}

// Configure creates and registers handlers from configuration. Every
// configured action must already be whitelisted.
func (r *Registry) Configure(configs map[string]config.HandlerConfig, whitelist *Whitelist) error {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !whitelist.Contains(name) {
			return fmt.Errorf("handler configured for action %q which is not whitelisted", name)
		}
		handler, err := r.Create(configs[name])
		if err != nil {
			return fmt.Errorf("error creating handler for action %q: %w", name, err)
		}
		r.Register(name, handler)
	}
	return nil
}

// Lookup returns the handler for an action
func (r *Registry) Lookup(action string) Handler {
	if handler, ok := r.handlers[action]; ok {
		return handler
	}
	return r.fallback
}
