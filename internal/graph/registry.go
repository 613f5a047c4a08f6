package graph

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps public task names to graph nodes so they can be invoked by
// name from the command line or a watcher.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*Node)}
}

// Register adds n under its own name and any extra aliases.
func (r *Registry) Register(n *Node, aliases ...string) error {
	if err := Validate(n); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range append([]string{n.Name}, aliases...) {
		if _, ok := r.nodes[name]; ok {
			return invalidf("task %q already registered", name)
		}
		r.nodes[name] = n
	}
	return nil
}

// Lookup returns the node registered under name.
func (r *Registry) Lookup(name string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return n, nil
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
