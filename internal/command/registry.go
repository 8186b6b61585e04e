package command

import (
	"sort"
	"sync"
)

// Registration binds a command id to a handler method.
type Registration struct {
	// ID is the command id the extension host sends.
	ID string
	// Method names the handler method serving this command.
	Method string
	// Handler owns the method.
	Handler Handler
	// Return names the declared return type, for diagnostics only.
	Return string
}

// Registry maps command ids to registrations. Registering an id that
// already exists silently replaces it; the host protocol carries no
// duplicate detection, the last registration wins.
type Registry struct {
	mu   sync.RWMutex
	cmds map[string]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cmds: make(map[string]Registration),
	}
}

// Register binds id to the named method on handler.
func (r *Registry) Register(id, method string, h Handler, returnType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds[id] = Registration{ID: id, Method: method, Handler: h, Return: returnType}
}

// Unregister removes the registration for id, if any.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cmds, id)
}

// Get returns the registration for id.
func (r *Registry) Get(id string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.cmds[id]
	return reg, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cmds[id]
	return ok
}

// List returns all registered ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.cmds))
	for id := range r.cmds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cmds)
}

// Clear removes all registrations.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = make(map[string]Registration)
}
