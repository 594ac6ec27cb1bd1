package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"groupbot/core/dialog/access"
	"groupbot/core/logger"
)

// Registry maps handler ids to handlers and handler-id prefixes to access
// filter chains. Feature packages populate it at startup; decoding a token
// yields a key into this map with an explicit not-found branch.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	guards   map[string]access.Chain
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		guards:   make(map[string]access.Chain),
	}
}

// Register adds a handler under its id ("controller/action"). Duplicate or
// invalid registrations are refused; wiring mistakes should surface at boot.
func (r *Registry) Register(handlerID string, h Handler) error {
	if r == nil || handlerID == "" || h == nil {
		logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.handler.skip",
			slog.String("handler", handlerID),
			slog.Bool("handler_nil", h == nil),
		)
		return errors.New("dispatch: invalid handler registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[handlerID]; exists {
		logger.Wire.LogAttrs(context.Background(), slog.LevelWarn, "register.handler.duplicate",
			slog.String("handler", handlerID),
		)
		return errors.New("dispatch: handler already registered: " + handlerID)
	}
	r.handlers[handlerID] = h
	return nil
}

// Guard attaches an ordered filter chain to every handler whose id equals
// prefix or starts with prefix+"/". Later Guard calls for the same prefix
// append to the chain.
func (r *Registry) Guard(prefix string, filters ...access.Filter) {
	if r == nil || prefix == "" || len(filters) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards[prefix] = append(r.guards[prefix], filters...)
}

// Handler returns the handler registered under id.
func (r *Registry) Handler(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// ChainFor returns the filter chain guarding the given handler id.
func (r *Registry) ChainFor(id string) access.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prefixes := make([]string, 0, len(r.guards))
	for prefix := range r.guards {
		if id == prefix || strings.HasPrefix(id, prefix+"/") {
			prefixes = append(prefixes, prefix)
		}
	}
	// shorter (more general) prefixes run first
	sort.Strings(prefixes)
	var chain access.Chain
	for _, prefix := range prefixes {
		chain = append(chain, r.guards[prefix]...)
	}
	return chain
}

// List returns sorted handler ids for diagnostics.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
