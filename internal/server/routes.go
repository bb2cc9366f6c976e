package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/danmuck/blazectl/internal/protocol/packet"
)

// HandlerFunc serves one request. The packet is released by the server after
// the handler returns; handlers must not keep it or its Raw bytes.
type HandlerFunc func(ctx context.Context, c *Conn, req *packet.Buffered) error

type routeKey struct {
	component uint16
	command   uint16
}

type route struct {
	name    string
	handler HandlerFunc
}

// Router dispatches requests by component and command id.
type Router struct {
	mu     sync.RWMutex
	routes map[routeKey]route
}

func NewRouter() *Router {
	return &Router{routes: make(map[routeKey]route)}
}

// Handle registers h for component/command. A second registration for the
// same pair replaces the first.
func (r *Router) Handle(component, command uint16, h HandlerFunc) {
	r.HandleNamed(component, command, "", h)
}

// HandleNamed is Handle with a name used in logs.
func (r *Router) HandleNamed(component, command uint16, name string, h HandlerFunc) {
	if name == "" {
		name = fmt.Sprintf("%#04x/%#04x", component, command)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[routeKey{component, command}] = route{name: name, handler: h}
}

func (r *Router) lookup(component, command uint16) (route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[routeKey{component, command}]
	return rt, ok
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}
