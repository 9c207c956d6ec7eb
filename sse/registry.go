package sse

import (
	"slices"
	"sync"
)

// Registry holds named clients. Clients created through it share its options.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	opts    []Option
}

// NewRegistry creates an empty registry. opts apply to every client it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{clients: make(map[string]*Client), opts: opts}
}

// Create returns the client registered under name, creating it from cfg
// when absent. cfg and opts are ignored for an existing client.
func (r *Registry) Create(name string, cfg Config, opts ...Option) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[name]; ok {
		c.log.Debug("client already registered")
		return c, nil
	}

	all := make([]Option, 0, len(r.opts)+len(opts)+1)
	all = append(all, r.opts...)
	all = append(all, WithName(name))
	all = append(all, opts...)

	c, err := New(cfg, all...)
	if err != nil {
		return nil, err
	}
	r.clients[name] = c
	return c, nil
}

// Get returns the client registered under name.
func (r *Registry) Get(name string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[name]
	return c, ok
}

// Remove destroys and unregisters the client under name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	c, ok := r.clients[name]
	delete(r.clients, name)
	r.mu.Unlock()

	if ok {
		c.Destroy()
	}
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DestroyAll destroys and unregisters every client.
func (r *Registry) DestroyAll() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Destroy()
	}
}
