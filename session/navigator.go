package session

import (
	"strings"
	"sync"
)

// Navigator is the view the client runs under. CurrentPath is read before
// intercepting a 401; Navigate is called with the login route when the
// session cannot be recovered.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}

// MemoryNavigator keeps the current path in memory and records every
// navigation.
type MemoryNavigator struct {
	mu      sync.Mutex
	path    string
	history []string
}

func NewMemoryNavigator(initial string) *MemoryNavigator {
	return &MemoryNavigator{path: initial}
}

func (n *MemoryNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *MemoryNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.history = append(n.history, path)
}

// History returns the paths passed to Navigate, oldest first.
func (n *MemoryNavigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.history))
	copy(out, n.history)
	return out
}

// OnLoginView reports whether nav currently shows the login view. The
// comparison is a plain prefix match on the path, query string excluded.
func OnLoginView(nav Navigator, loginPath string) bool {
	if nav == nil || loginPath == "" {
		return false
	}
	p := nav.CurrentPath()
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.HasPrefix(p, loginPath)
}
