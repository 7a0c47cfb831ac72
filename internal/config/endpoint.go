package config

import (
	"strings"
	"sync"
)

// Endpoint holds the generation-service base URL shared by every
// in-flight request. Reads are frequent (one per remote call) and
// writes rare (a settings change), so it is a single-writer,
// multi-reader holder rather than ambient global state. It is passed
// by handle into the components that need it.
type Endpoint struct {
	mu  sync.RWMutex
	url string
}

// NewEndpoint creates a holder for the given base URL. Trailing
// slashes are stripped so path joins stay predictable.
func NewEndpoint(url string) *Endpoint {
	return &Endpoint{url: strings.TrimRight(url, "/")}
}

// URL returns the current base URL.
func (e *Endpoint) URL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.url
}

// Set replaces the base URL. In-flight requests keep the value they
// already read; subsequent calls observe the new one.
func (e *Endpoint) Set(url string) {
	e.mu.Lock()
	e.url = strings.TrimRight(url, "/")
	e.mu.Unlock()
}
